// Package dbtest opens an isolated in-memory SQLite database carrying the escrow schema.
package dbtest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Schema mirrors the Postgres migrations with SQLite-compatible types.
var Schema = []string{
	`CREATE TABLE campaigns (
  id TEXT PRIMARY KEY,
  brand_id TEXT NOT NULL,
  title TEXT NOT NULL,
  budget TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'draft',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  escrow_id TEXT,
  funded_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE applications (
  id TEXT PRIMARY KEY,
  campaign_id TEXT NOT NULL,
  influencer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  paid_amount TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE escrow_holds (
  id TEXT PRIMARY KEY,
  provider_hold_id TEXT NOT NULL UNIQUE,
  campaign_id TEXT NOT NULL,
  brand_id TEXT NOT NULL,
  gross_amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  settlement TEXT,
  captured_amount TEXT,
  refunded_amount TEXT,
  provider_refund_id TEXT,
  metadata TEXT,
  funded_at DATETIME,
  captured_at DATETIME,
  released_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX ux_escrow_holds_live_campaign ON escrow_holds (campaign_id)
  WHERE status IN ('pending_payment', 'funded', 'disputed');`,
	`CREATE TABLE transfer_records (
  id TEXT PRIMARY KEY,
  escrow_id TEXT NOT NULL UNIQUE,
  campaign_id TEXT NOT NULL,
  application_id TEXT NOT NULL,
  influencer_id TEXT NOT NULL,
  gross_amount TEXT NOT NULL,
  platform_fee TEXT NOT NULL,
  provider_fee TEXT NOT NULL,
  amount TEXT NOT NULL,
  currency TEXT NOT NULL,
  reason TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE dispute_records (
  id TEXT PRIMARY KEY,
  escrow_id TEXT NOT NULL,
  dispute_type TEXT NOT NULL,
  description TEXT,
  evidence TEXT,
  reported_by TEXT NOT NULL,
  reporter_role TEXT NOT NULL,
  reported_at DATETIME NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh database. A single connection keeps the in-memory database alive for
// the test and serializes access, so callers must not query outside an open transaction.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}
