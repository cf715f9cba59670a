/*
allocation.go - Allocation tracker operations

PURPOSE:
  Tracks, per (holder, product), the quantity and piece-equivalent count
  currently owned by that holder in the distribution chain. Invoices move
  allocation from sender to receiver; the Company root allocates fresh
  stock without a matching release.

INVARIANTS:
  - One allocation per (holder, product), created lazily on first transfer.
  - Qty >= 0 always; a release that would drive it negative is rejected
    with InsufficientAllocationError before anything is written.
  - The unit of measure is pinned when the allocation is first created.
    Later transfers in a different unit update qty in the pinned unit's
    count and keep the truth in Pieces. Pieces decrements clamp at zero to
    absorb rounding drift from mixed-unit history.

CONCURRENCY:
  Mutations for a (holder, product) pair are serialized through a keyed
  mutex, mirroring the wallet side.

SEE ALSO:
  - types.go: Allocation, Delta
  - invoice/: Calls CheckAvailable before any mutation (fail-fast)
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationTracker moves inventory positions between holders.
type AllocationTracker struct {
	store Store
	locks *keyedMutex
}

func NewAllocationTracker(store Store) *AllocationTracker {
	return &AllocationTracker{store: store, locks: newKeyedMutex()}
}

// WithStore rebinds the tracker to store for the duration of a store
// transaction. Lock state is shared with the parent.
func (t *AllocationTracker) WithStore(store Store) *AllocationTracker {
	return &AllocationTracker{store: store, locks: t.locks}
}

func allocationKey(holderID HolderID, productCode string) string {
	return string(holderID) + "/" + productCode
}

// Allocate increments the holder's allocation for each delta, creating the
// record on first use with the delta's unit of measure pinned.
func (t *AllocationTracker) Allocate(ctx context.Context, holderID HolderID, deltas []Delta) error {
	for _, d := range deltas {
		if err := t.allocateOne(ctx, holderID, d); err != nil {
			return err
		}
	}
	return nil
}

func (t *AllocationTracker) allocateOne(ctx context.Context, holderID HolderID, d Delta) error {
	unlock := t.locks.Lock(allocationKey(holderID, d.ProductCode))
	defer unlock()

	existing, err := t.store.GetAllocation(ctx, holderID, d.ProductCode)
	if err != nil {
		return fmt.Errorf("load allocation %s/%s: %w", holderID, d.ProductCode, err)
	}

	if existing == nil {
		existing = &Allocation{
			HolderID:    holderID,
			ProductCode: d.ProductCode,
			UOM:         d.UOM,
		}
	}
	existing.Qty = existing.Qty.Add(d.Qty)
	existing.Pieces = existing.Pieces.Add(d.Pieces)
	existing.UpdatedAt = time.Now().UTC()

	return t.store.SaveAllocation(ctx, *existing)
}

// Release is the inverse of Allocate, invoked on the sending holder of a
// transfer. Fails with AllocationNotFoundError if the holder never held the
// product, or InsufficientAllocationError if qty falls short.
func (t *AllocationTracker) Release(ctx context.Context, holderID HolderID, deltas []Delta) error {
	for _, d := range deltas {
		if err := t.releaseOne(ctx, holderID, d); err != nil {
			return err
		}
	}
	return nil
}

func (t *AllocationTracker) releaseOne(ctx context.Context, holderID HolderID, d Delta) error {
	unlock := t.locks.Lock(allocationKey(holderID, d.ProductCode))
	defer unlock()

	existing, err := t.store.GetAllocation(ctx, holderID, d.ProductCode)
	if err != nil {
		return fmt.Errorf("load allocation %s/%s: %w", holderID, d.ProductCode, err)
	}
	if existing == nil {
		return &AllocationNotFoundError{HolderID: holderID, ProductCode: d.ProductCode}
	}
	if existing.Qty.LessThan(d.Qty) {
		return &InsufficientAllocationError{
			HolderID:    holderID,
			ProductCode: d.ProductCode,
			Available:   existing.Qty,
			Requested:   d.Qty,
		}
	}

	existing.Qty = existing.Qty.Sub(d.Qty)
	// Clamp pieces at zero: mixed-unit history can leave small conversion
	// drift between qty and pieces.
	existing.Pieces = existing.Pieces.Sub(d.Pieces)
	if existing.Pieces.IsNegative() {
		existing.Pieces = decimal.Zero
	}
	existing.UpdatedAt = time.Now().UTC()

	return t.store.SaveAllocation(ctx, *existing)
}

// CheckAvailable sums requested quantities per product across all lines and
// verifies each sum against the holder's current allocation. Used before a
// distributor issues an invoice, so an under-allocated invoice is rejected
// before any mutation.
func (t *AllocationTracker) CheckAvailable(ctx context.Context, holderID HolderID, deltas []Delta) error {
	required := make(map[string]decimal.Decimal)
	order := make([]string, 0, len(deltas))
	for _, d := range deltas {
		if _, seen := required[d.ProductCode]; !seen {
			order = append(order, d.ProductCode)
		}
		required[d.ProductCode] = required[d.ProductCode].Add(d.Qty)
	}

	for _, code := range order {
		existing, err := t.store.GetAllocation(ctx, holderID, code)
		if err != nil {
			return fmt.Errorf("load allocation %s/%s: %w", holderID, code, err)
		}
		available := decimal.Zero
		if existing != nil {
			available = existing.Qty
		}
		if available.LessThan(required[code]) {
			return &InsufficientAllocationError{
				HolderID:    holderID,
				ProductCode: code,
				Available:   available,
				Requested:   required[code],
			}
		}
	}
	return nil
}

// Allocations returns the holder's current positions.
func (t *AllocationTracker) Allocations(ctx context.Context, holderID HolderID) ([]Allocation, error) {
	return t.store.ListAllocations(ctx, holderID)
}
