package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)
	require.NoError(t, Validate(fsys))

	names, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(names), 4)
}

func TestEscrowMigrationReservesOneLiveHoldPerCampaign(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)
	matches, err := fs.Glob(fsys, "*_create_escrow_holds.sql")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	body, err := fs.ReadFile(fsys, matches[0])
	require.NoError(t, err)
	content := string(body)
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS escrow_holds",
		"gross_amount numeric(14,2) NOT NULL",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_escrow_holds_live_campaign",
		"WHERE status IN ('pending_payment', 'funded', 'disputed')",
		"DROP TABLE IF EXISTS escrow_holds",
	} {
		assert.Contains(t, content, want)
	}
}

func TestValidateRejectsBadMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Validate(fsys))
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Refund Index!", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260402150405_add_refund_index.sql"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "-- +goose Up"))
	require.NoError(t, Validate(os.DirFS(dir)))

	_, err = CreateSQLMigration(dir, "Add Refund Index!", now)
	assert.Error(t, err)

	_, err = CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestSourceRejectsMissingDir(t *testing.T) {
	_, err := Source(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
