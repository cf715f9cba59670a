package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rewards-ledger/catalog"
	"github.com/warp/rewards-ledger/ledger"
	"github.com/warp/rewards-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTracker() (*ledger.AllocationTracker, *store.TxMemory) {
	st := store.NewTxMemory()
	return ledger.NewAllocationTracker(st), st
}

func delta(product, qty string, uom catalog.UnitOfMeasure, pieces string) ledger.Delta {
	return ledger.Delta{
		ProductCode: product,
		Qty:         dec(qty),
		UOM:         uom,
		Pieces:      dec(pieces),
	}
}

// =============================================================================
// ALLOCATE
// =============================================================================

func TestAllocationTracker_Allocate_CreatesOnFirstUse(t *testing.T) {
	// GIVEN: A holder with no allocation for SKU-1
	// WHEN: Allocating 5 boxes (120 pieces)
	// THEN: A record is created with the delta's unit pinned

	tr, st := newTracker()
	ctx := context.Background()

	err := tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "5", catalog.UnitBox, "120"),
	})
	require.NoError(t, err)

	a, err := st.GetAllocation(ctx, "dist-1", "SKU-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, catalog.UnitBox, a.UOM)
	assert.True(t, a.Qty.Equal(dec("5")))
	assert.True(t, a.Pieces.Equal(dec("120")))
}

func TestAllocationTracker_Allocate_PinsUnitOfMeasure(t *testing.T) {
	// GIVEN: An allocation created in boxes
	// WHEN: A later transfer arrives in dozens
	// THEN: The record keeps BOX; qty adds raw counts and pieces carry
	//       the cross-unit truth

	tr, st := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "5", catalog.UnitBox, "120"),
	}))
	require.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "2", catalog.UnitDozen, "24"),
	}))

	a, err := st.GetAllocation(ctx, "dist-1", "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, catalog.UnitBox, a.UOM, "unit stays pinned to first allocation")
	assert.True(t, a.Qty.Equal(dec("7")))
	assert.True(t, a.Pieces.Equal(dec("144")))
}

// =============================================================================
// RELEASE
// =============================================================================

func TestAllocationTracker_Release_UnknownProduct(t *testing.T) {
	// GIVEN: A holder who never received SKU-9
	// WHEN: Releasing any quantity of it
	// THEN: AllocationNotFoundError

	tr, _ := newTracker()
	ctx := context.Background()

	err := tr.Release(ctx, "dist-1", []ledger.Delta{
		delta("SKU-9", "1", catalog.UnitBox, "24"),
	})
	require.Error(t, err)

	var notFound *ledger.AllocationNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, ledger.ErrAllocationNotFound)
}

func TestAllocationTracker_Release_InsufficientQty(t *testing.T) {
	// GIVEN: A holder with 3 boxes of SKU-1
	// WHEN: Releasing 5 boxes
	// THEN: InsufficientAllocationError, position unchanged

	tr, st := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "3", catalog.UnitBox, "72"),
	}))

	err := tr.Release(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "5", catalog.UnitBox, "120"),
	})
	require.Error(t, err)

	var insufficient *ledger.InsufficientAllocationError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(dec("3")))
	assert.True(t, insufficient.Requested.Equal(dec("5")))

	a, err := st.GetAllocation(ctx, "dist-1", "SKU-1")
	require.NoError(t, err)
	assert.True(t, a.Qty.Equal(dec("3")), "failed release must not change qty")
}

func TestAllocationTracker_Release_PiecesClampAtZero(t *testing.T) {
	// GIVEN: A mixed-unit history where tracked pieces undercount qty
	// WHEN: A release's piece decrement exceeds the tracked pieces
	// THEN: Qty decrements exactly; pieces clamp at zero instead of going
	//       negative

	tr, st := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "5", catalog.UnitBox, "100"),
	}))

	require.NoError(t, tr.Release(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "5", catalog.UnitBox, "120"),
	}))

	a, err := st.GetAllocation(ctx, "dist-1", "SKU-1")
	require.NoError(t, err)
	assert.True(t, a.Qty.IsZero())
	assert.True(t, a.Pieces.IsZero(), "pieces clamp at zero")
}

// =============================================================================
// CHECK AVAILABLE
// =============================================================================

func TestAllocationTracker_CheckAvailable_SumsPerProduct(t *testing.T) {
	// GIVEN: A holder with 10 boxes of SKU-1
	// WHEN: Checking an invoice with two SKU-1 lines of 6 boxes each
	// THEN: The summed requirement (12) fails even though each line alone
	//       would pass

	tr, _ := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "10", catalog.UnitBox, "240"),
	}))

	err := tr.CheckAvailable(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "6", catalog.UnitBox, "144"),
		delta("SKU-1", "6", catalog.UnitBox, "144"),
	})
	require.Error(t, err)

	var insufficient *ledger.InsufficientAllocationError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Requested.Equal(dec("12")))
}

func TestAllocationTracker_CheckAvailable_PassesWhenCovered(t *testing.T) {
	// GIVEN: Positions covering every line
	// WHEN: Checking a multi-product invoice
	// THEN: No error, and nothing is mutated

	tr, st := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "10", catalog.UnitBox, "240"),
		delta("SKU-2", "4", catalog.UnitCarton, "576"),
	}))

	err := tr.CheckAvailable(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "3", catalog.UnitBox, "72"),
		delta("SKU-2", "4", catalog.UnitCarton, "576"),
	})
	require.NoError(t, err)

	a, err := st.GetAllocation(ctx, "dist-1", "SKU-1")
	require.NoError(t, err)
	assert.True(t, a.Qty.Equal(dec("10")), "check must not mutate positions")
}

func TestAllocationTracker_CheckAvailable_MissingAllocation(t *testing.T) {
	// GIVEN: No position at all for the product
	// WHEN: Checking availability
	// THEN: Fails with available 0

	tr, _ := newTracker()
	ctx := context.Background()

	err := tr.CheckAvailable(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "1", catalog.UnitBox, "24"),
	})
	require.Error(t, err)

	var insufficient *ledger.InsufficientAllocationError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.IsZero())
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestAllocationTracker_Allocate_ConcurrentSameKey(t *testing.T) {
	// GIVEN: 50 concurrent single-piece allocations on one (holder, product)
	// WHEN: All goroutines finish
	// THEN: The per-key serialization keeps read-modify-write intact:
	//       qty and pieces are exactly 50

	tr, st := newTracker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tr.Allocate(ctx, "dist-1", []ledger.Delta{
				delta("SKU-1", "1", catalog.UnitPiece, "1"),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := st.GetAllocation(ctx, "dist-1", "SKU-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.Qty.Equal(dec("50")))
	assert.True(t, a.Pieces.Equal(dec("50")))
	assert.Equal(t, catalog.UnitPiece, a.UOM)
}

func TestAllocationTracker_ConcurrentAllocateAndRelease(t *testing.T) {
	// GIVEN: A position of 100 pieces
	// WHEN: 30 single-piece allocations race 30 single-piece releases
	// THEN: The position nets out to exactly 100

	tr, st := newTracker()
	ctx := context.Background()

	require.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
		delta("SKU-1", "100", catalog.UnitPiece, "100"),
	}))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.Allocate(ctx, "dist-1", []ledger.Delta{
				delta("SKU-1", "1", catalog.UnitPiece, "1"),
			}))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.Release(ctx, "dist-1", []ledger.Delta{
				delta("SKU-1", "1", catalog.UnitPiece, "1"),
			}))
		}()
	}
	wg.Wait()

	a, err := st.GetAllocation(ctx, "dist-1", "SKU-1")
	require.NoError(t, err)
	assert.True(t, a.Qty.Equal(dec("100")))
	assert.True(t, a.Pieces.Equal(dec("100")))
}
