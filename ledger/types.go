/*
Package ledger provides the wallet and allocation core of the rewards platform.

PURPOSE:
  This package contains the types and rules for the two stateful components
  of the distribution chain:
  - Allocation Tracker: who currently holds how much of which product
  - Wallet Ledger: per-holder point balances backed by an immutable
    transaction log

KEY CONCEPTS IN THIS FILE (types.go):
  - Holder/Role: A participant in the fixed Company -> Distributor -> Dealer
    hierarchy
  - Wallet: Materialized balance plus lifetime totals
  - WalletTransaction: An immutable ledger entry with before/after snapshots
  - Allocation: Per (holder, product) inventory position

DESIGN PRINCIPLES:
  1. Immutability: Wallet transactions are never updated or deleted. The
     wallet balance is a cache that must reconcile against them.
  2. Precision: decimal.Decimal for points and quantities.
  3. Conservation: Every invoice posts a balanced credit/debit pair.

SEE ALSO:
  - wallet.go: WalletLedger operations
  - allocation.go: AllocationTracker operations
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rewards-ledger/catalog"
)

// =============================================================================
// HOLDERS AND ROLES
// =============================================================================

type HolderID string

// Role is a tier in the fixed three-level hierarchy.
type Role string

const (
	// RoleCompany is the hierarchy root and point-issuing authority. It is
	// the only role allowed to run a negative wallet balance.
	RoleCompany     Role = "company"
	RoleDistributor Role = "distributor"
	RoleDealer      Role = "dealer"
)

// IsRoot reports whether the role is the point-issuing authority.
func (r Role) IsRoot() bool { return r == RoleCompany }

// Holder is a participant in the distribution chain. A holder owns at most
// one wallet and any number of allocations.
type Holder struct {
	ID   HolderID
	Code string
	Name string
	Role Role

	// RewardLimit caps the reward a distributor may pass through on a
	// single invoice to this holder. Zero means no configured limit.
	// Only meaningful for dealers.
	RewardLimit decimal.Decimal

	CreatedAt time.Time
}

// =============================================================================
// WALLET
// =============================================================================

// Wallet holds the current point position for one holder. Exactly one per
// holder, created lazily on first transaction.
//
// INVARIANT: Balance == LifetimeEarned - LifetimeDebited, and Balance >= 0
// for every holder except the Company root.
type Wallet struct {
	HolderID        HolderID
	Balance         decimal.Decimal
	LifetimeEarned  decimal.Decimal
	LifetimeDebited decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

type TransactionID string

// WalletTransaction is an append-only ledger entry. Never updated or
// deleted; corrections require a new compensating entry.
type WalletTransaction struct {
	ID            TransactionID
	HolderID      HolderID
	Direction     Direction
	Points        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal

	// InvoiceID links the entry to the originating invoice, when any.
	InvoiceID   string
	Note        string
	PerformedBy string
	CreatedAt   time.Time
}

// Entry is the input to WalletLedger.Apply.
type Entry struct {
	HolderID    HolderID
	Direction   Direction
	Points      decimal.Decimal
	InvoiceID   string
	Note        string
	PerformedBy string
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocation records the inventory position of one holder for one product.
// One record per (holder, product), created lazily on first transfer.
//
// The unit of measure is pinned at creation and does not change on later
// transfers; Pieces carries the cross-unit truth. Qty never goes negative.
type Allocation struct {
	HolderID    HolderID
	ProductCode string
	Qty         decimal.Decimal
	UOM         catalog.UnitOfMeasure
	Pieces      decimal.Decimal
	UpdatedAt   time.Time
}

// Delta is one product movement applied by Allocate or Release.
type Delta struct {
	ProductCode string
	Qty         decimal.Decimal
	UOM         catalog.UnitOfMeasure
	Pieces      decimal.Decimal
}
