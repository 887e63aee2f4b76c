package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/influencehub-backend/pkg/logger"
)

type ledgerRow struct {
	ID   int
	Note string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return conn
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := newTestDB(t)
	client := &Client{conn: conn}
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Note: "committed"}).Error
	}))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Note: "rolled back"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	var count int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestWithTxRetriesSerializationFailures(t *testing.T) {
	conn := newTestDB(t)
	client := &Client{conn: conn}
	ctx := context.Background()

	attempts := 0
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&ledgerRow{Note: "retry"}).Error; err != nil {
			return err
		}
		if attempts < 2 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	var count int64
	require.NoError(t, conn.Model(&ledgerRow{}).Where("note = ?", "retry").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	attempts = 0
	err = client.WithTx(ctx, func(*gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	assert.True(t, IsRetryableTx(err))
	assert.Equal(t, maxTxAttempts, attempts)

	attempts = 0
	err = client.WithTx(ctx, func(*gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "23505"}
	})
	assert.False(t, IsRetryableTx(err))
	assert.Equal(t, 1, attempts)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := &Client{conn: conn}

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Note: "half done"}).Error)
			panic("gateway exploded")
		})
	})

	var count int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPing(t *testing.T) {
	client := &Client{conn: newTestDB(t)}
	require.NoError(t, client.Ping(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "escrow_holds_live_campaign_idx"}
	assert.True(t, IsUniqueViolation(pgErr, ""))
	assert.True(t, IsUniqueViolation(pgErr, "escrow_holds_live_campaign_idx"))
	assert.False(t, IsUniqueViolation(pgErr, "other_idx"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: escrow_holds.campaign_id"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestQueryLoggerReportsFailuresAndSlowQueries(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &buf})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Zero(t, buf.Len())

	ql.Trace(context.Background(), time.Now(), sql, errors.New("relation does not exist"))
	assert.Contains(t, buf.String(), "query failed")

	buf.Reset()
	ql.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, buf.String(), "slow query")

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	assert.Zero(t, buf.Len())
}
