/*
wallet.go - Wallet ledger operations

PURPOSE:
  The WalletLedger owns every balance mutation. It enforces:
  - positive point amounts (InvalidAmountError)
  - non-negative balances for every non-root holder
    (InsufficientBalanceError)
  - an immutable transaction entry with before/after snapshots for every
    credit and debit

WHY BEFORE/AFTER SNAPSHOTS?
  The wallet balance is a materialized cache. Snapshots on every entry make
  the transaction log independently reconcilable: replaying entries must
  reproduce the wallet, and any drift is detectable.

CONCURRENCY:
  Mutations for a holder are serialized through a per-holder mutex, so two
  concurrent invoices touching the same wallet cannot lose an update. The
  store transaction (TxStore.WithTx) provides atomicity across records.

SEE ALSO:
  - types.go: Wallet, WalletTransaction, Entry
  - invoice/: Posts a balanced credit/debit pair per invoice
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletLedger applies credits and debits to holder wallets.
type WalletLedger struct {
	store Store
	locks *keyedMutex
}

func NewWalletLedger(store Store) *WalletLedger {
	return &WalletLedger{store: store, locks: newKeyedMutex()}
}

// withStore returns a ledger bound to a different Store but sharing the
// same per-holder locks. Used to run operations inside a transaction.
func (l *WalletLedger) withStore(store Store) *WalletLedger {
	return &WalletLedger{store: store, locks: l.locks}
}

// WithStore rebinds the ledger to store for the duration of a store
// transaction. Lock state is shared with the parent.
func (l *WalletLedger) WithStore(store Store) *WalletLedger { return l.withStore(store) }

// EnsureWallet returns the holder's wallet, creating a zero-balance one if
// absent. Idempotent: repeated calls return the same wallet and never
// create a second one. No keyed lock here: CreateWalletIfAbsent is itself
// race-safe, and holding the holder lock across a store call that may wait
// on the store's transaction lock would invert the order WithTx uses.
func (l *WalletLedger) EnsureWallet(ctx context.Context, holderID HolderID) (*Wallet, error) {
	return l.store.CreateWalletIfAbsent(ctx, holderID)
}

// Apply posts one credit or debit. The holder's role decides whether a
// negative resulting balance is tolerated (Company root only).
//
// On success the wallet row and a new immutable transaction entry are
// persisted through the bound store; when that store is a transactional
// view, both writes commit or roll back with the rest of the invoice.
func (l *WalletLedger) Apply(ctx context.Context, role Role, e Entry) (*WalletTransaction, error) {
	if !e.Points.IsPositive() {
		return nil, &InvalidAmountError{Points: e.Points}
	}
	if e.Direction != Credit && e.Direction != Debit {
		return nil, fmt.Errorf("unknown direction %q", e.Direction)
	}

	unlock := l.locks.Lock(string(e.HolderID))
	defer unlock()

	wallet, err := l.store.CreateWalletIfAbsent(ctx, e.HolderID)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet for %s: %w", e.HolderID, err)
	}

	before := wallet.Balance
	var after decimal.Decimal
	switch e.Direction {
	case Credit:
		after = before.Add(e.Points)
		wallet.LifetimeEarned = wallet.LifetimeEarned.Add(e.Points)
	case Debit:
		after = before.Sub(e.Points)
		wallet.LifetimeDebited = wallet.LifetimeDebited.Add(e.Points)
	}

	if after.IsNegative() && !role.IsRoot() {
		return nil, &InsufficientBalanceError{
			HolderID:  e.HolderID,
			Available: before,
			Requested: e.Points,
		}
	}

	wallet.Balance = after
	wallet.UpdatedAt = time.Now().UTC()
	if err := l.store.SaveWallet(ctx, *wallet); err != nil {
		return nil, fmt.Errorf("save wallet for %s: %w", e.HolderID, err)
	}

	tx := WalletTransaction{
		ID:            TransactionID(uuid.NewString()),
		HolderID:      e.HolderID,
		Direction:     e.Direction,
		Points:        e.Points,
		BalanceBefore: before,
		BalanceAfter:  after,
		InvoiceID:     e.InvoiceID,
		Note:          e.Note,
		PerformedBy:   e.PerformedBy,
		CreatedAt:     time.Now().UTC(),
	}
	if err := l.store.AppendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("append wallet transaction for %s: %w", e.HolderID, err)
	}

	return &tx, nil
}

// Transactions returns the holder's ledger entries, oldest first.
func (l *WalletLedger) Transactions(ctx context.Context, holderID HolderID) ([]WalletTransaction, error) {
	return l.store.ListTransactions(ctx, holderID)
}

// Reconcile recomputes the balance from the transaction log and reports
// whether it matches the materialized wallet. Read-only.
func (l *WalletLedger) Reconcile(ctx context.Context, holderID HolderID) (bool, decimal.Decimal, error) {
	wallet, err := l.store.GetWallet(ctx, holderID)
	if err != nil {
		return false, decimal.Zero, err
	}
	if wallet == nil {
		return true, decimal.Zero, nil
	}

	txs, err := l.store.ListTransactions(ctx, holderID)
	if err != nil {
		return false, decimal.Zero, err
	}

	replayed := decimal.Zero
	for _, tx := range txs {
		switch tx.Direction {
		case Credit:
			replayed = replayed.Add(tx.Points)
		case Debit:
			replayed = replayed.Sub(tx.Points)
		}
	}
	return replayed.Equal(wallet.Balance), replayed, nil
}
