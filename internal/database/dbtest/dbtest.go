// Package dbtest opens a migrated, empty Postgres database for tests.
//
// Tests that need a real store call Open; when TEST_DATABASE_URI is unset the
// test is skipped.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hray3182/sharedcal/internal/database"
	"github.com/stretchr/testify/require"
)

const envURI = "TEST_DATABASE_URI"

// lockKey serialises tests from different packages, which go test runs in
// parallel processes against the same database.
const lockKey int64 = 0x63616c74657374 // "caltest"

func Open(t *testing.T) *database.DB {
	t.Helper()

	uri := os.Getenv(envURI)
	if uri == "" {
		t.Skipf("%s not set, skipping store-backed test", envURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	conn, err := db.Pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockKey)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
		conn.Release()
	})

	require.NoError(t, db.Migrate(ctx))

	_, err = db.Pool.Exec(ctx,
		`TRUNCATE event_completions, event_shares, events, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}
