package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// STORED DECIMAL INTEGRITY
// =============================================================================

func TestCorruptStoredDecimalSurfacesError(t *testing.T) {
	// A balance column that no longer parses must fail the read loudly;
	// zeroing it would hide the drift that reconciliation exists to catch.

	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	_, err = store.db.ExecContext(ctx, `
		INSERT INTO wallets (holder_id, balance, lifetime_earned, lifetime_debited, created_at, updated_at)
		VALUES ('dealer-1', 'garbage', '0', '0', '2025-06-01T00:00:00Z', '2025-06-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = store.GetWallet(ctx, "dealer-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt decimal")
}

func TestCorruptStoredDecimalInTransactionLog(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	_, err = store.db.ExecContext(ctx, `
		INSERT INTO wallet_transactions
		(id, holder_id, direction, points, balance_before, balance_after, created_at)
		VALUES ('tx-1', 'dealer-1', 'credit', 'not-a-number', '0', '0', '2025-06-01T00:00:00Z')`)
	require.NoError(t, err)

	_, err = store.ListTransactions(ctx, "dealer-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt decimal")
}
