package order

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/database"
	"github.com/Proton-105/storefront-bot/internal/domain"
)

// setupPostgres connects to STOREFRONT_TEST_POSTGRES_DSN and migrates the schema.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("STOREFRONT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_POSTGRES_DSN is not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, database.NewMigrator(db, testLogger()).Apply(ctx, Migrations, MigrationsDir))

	_, err = db.ExecContext(ctx, `TRUNCATE orders`)
	require.NoError(t, err)

	return db
}

func TestPostgresLedger_Lifecycle(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	ledger := NewPostgresLedger(db, testLogger())

	o := pendingOrder(t, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, ledger.Create(ctx, o))
	assert.ErrorIs(t, ledger.Create(ctx, o), ErrDuplicateID)

	got, err := ledger.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Price, got.Price)
	assert.Equal(t, domain.OrderStatusPending, got.Status)

	resolved, err := ledger.Resolve(ctx, o.ID, domain.OrderStatusCancelled, 42, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, resolved.Status)
	assert.Equal(t, int64(42), resolved.HandledBy)

	_, err = ledger.Resolve(ctx, o.ID, domain.OrderStatusCompleted, 43, time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotPending)

	require.NoError(t, ledger.Reopen(ctx, o.ID, domain.OrderStatusCancelled))

	pending, err := ledger.ListPending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Zero(t, pending[0].HandledBy)

	_, err = ledger.Get(ctx, "ord_unknown")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
