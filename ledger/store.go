/*
store.go - Persistence interfaces for the ledger core

PURPOSE:
  Defines the interface between the domain logic and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   All record persistence (holders, products, allocations, wallets,
           wallet transactions, invoices)
  TxStore: Transactional operations (atomic multi-record writes)

APPEND-ONLY CONTRACT:
  Wallet transactions are append-only: AppendTransaction exists, no update
  or delete method does. The wallet row itself is a materialized cache and
  is updated in place, but only together with the transaction that explains
  the change.

ATOMIC INVOICES:
  A single invoice touches up to five records (invoice, two allocations,
  two wallets) plus two transaction entries. TxStore.WithTx ensures either
  all of them commit or none do.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - ledger/store: In-memory for testing

SEE ALSO:
  - wallet.go, allocation.go: Domain logic on top of Store
  - invoice/: Uses WithTx for all-or-nothing invoice creation
*/
package ledger

import (
	"context"

	"github.com/warp/rewards-ledger/catalog"
)

// Store handles persistence for every record type the ledger touches.
//
// Get* methods return (nil, nil) when the record does not exist; callers
// translate that into the appropriate not-found error.
type Store interface {
	// Holders
	SaveHolder(ctx context.Context, h Holder) error
	GetHolder(ctx context.Context, id HolderID) (*Holder, error)
	GetHolderByCode(ctx context.Context, code string) (*Holder, error)
	ListHolders(ctx context.Context) ([]Holder, error)

	// Products
	SaveProduct(ctx context.Context, p catalog.Product) error
	GetProduct(ctx context.Context, code string) (*catalog.Product, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)

	// Allocations
	GetAllocation(ctx context.Context, holderID HolderID, productCode string) (*Allocation, error)
	SaveAllocation(ctx context.Context, a Allocation) error
	ListAllocations(ctx context.Context, holderID HolderID) ([]Allocation, error)

	// Wallets
	GetWallet(ctx context.Context, holderID HolderID) (*Wallet, error)
	// CreateWalletIfAbsent inserts a zero-balance wallet unless one already
	// exists, and returns the current wallet either way. Must be race-safe:
	// concurrent first-use by the same holder yields exactly one wallet.
	CreateWalletIfAbsent(ctx context.Context, holderID HolderID) (*Wallet, error)
	SaveWallet(ctx context.Context, w Wallet) error

	// Wallet transactions (append-only)
	AppendTransaction(ctx context.Context, tx WalletTransaction) error
	ListTransactions(ctx context.Context, holderID HolderID) ([]WalletTransaction, error)

	// Invoices (immutable after creation)
	SaveInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoicesByHolder(ctx context.Context, holderID HolderID) ([]Invoice, error)
}

// TxStore wraps Store with transaction support.
// Use this when several records must commit or roll back together.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, every write made through the passed Store is
	// rolled back; otherwise all of them commit.
	WithTx(ctx context.Context, fn func(Store) error) error
}
