// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/rewards-ledger/catalog"
	"github.com/warp/rewards-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	holders      map[ledger.HolderID]ledger.Holder
	products     map[string]catalog.Product
	allocations  map[allocKey]ledger.Allocation
	wallets      map[ledger.HolderID]ledger.Wallet
	transactions map[ledger.HolderID][]ledger.WalletTransaction
	invoices     map[string]ledger.Invoice
	invoiceOrder []string
}

type allocKey struct {
	HolderID    ledger.HolderID
	ProductCode string
}

func NewMemory() *Memory {
	return &Memory{
		holders:      make(map[ledger.HolderID]ledger.Holder),
		products:     make(map[string]catalog.Product),
		allocations:  make(map[allocKey]ledger.Allocation),
		wallets:      make(map[ledger.HolderID]ledger.Wallet),
		transactions: make(map[ledger.HolderID][]ledger.WalletTransaction),
		invoices:     make(map[string]ledger.Invoice),
	}
}

// Holders

func (m *Memory) SaveHolder(_ context.Context, h ledger.Holder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holders[h.ID] = h
	return nil
}

func (m *Memory) GetHolder(_ context.Context, id ledger.HolderID) (*ledger.Holder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if h, ok := m.holders[id]; ok {
		return &h, nil
	}
	return nil, nil
}

func (m *Memory) GetHolderByCode(_ context.Context, code string) (*ledger.Holder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.holders {
		if h.Code == code {
			return &h, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListHolders(_ context.Context) ([]ledger.Holder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Holder, 0, len(m.holders))
	for _, h := range m.holders {
		out = append(out, h)
	}
	return out, nil
}

// Products

func (m *Memory) SaveProduct(_ context.Context, p catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.Code] = p
	return nil
}

func (m *Memory) GetProduct(_ context.Context, code string) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.products[code]; ok {
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

// Allocations

func (m *Memory) GetAllocation(_ context.Context, holderID ledger.HolderID, productCode string) (*ledger.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.allocations[allocKey{holderID, productCode}]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *Memory) SaveAllocation(_ context.Context, a ledger.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[allocKey{a.HolderID, a.ProductCode}] = a
	return nil
}

func (m *Memory) ListAllocations(_ context.Context, holderID ledger.HolderID) ([]ledger.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Allocation
	for k, a := range m.allocations {
		if k.HolderID == holderID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Wallets

func (m *Memory) GetWallet(_ context.Context, holderID ledger.HolderID) (*ledger.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.wallets[holderID]; ok {
		return &w, nil
	}
	return nil, nil
}

func (m *Memory) CreateWalletIfAbsent(_ context.Context, holderID ledger.HolderID) (*ledger.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[holderID]; ok {
		return &w, nil
	}
	w := ledger.Wallet{HolderID: holderID}
	m.wallets[holderID] = w
	return &w, nil
}

func (m *Memory) SaveWallet(_ context.Context, w ledger.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.HolderID] = w
	return nil
}

// Wallet transactions (append-only)

func (m *Memory) AppendTransaction(_ context.Context, tx ledger.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.HolderID] = append(m.transactions[tx.HolderID], tx)
	return nil
}

func (m *Memory) ListTransactions(_ context.Context, holderID ledger.HolderID) ([]ledger.WalletTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.WalletTransaction, len(m.transactions[holderID]))
	copy(out, m.transactions[holderID])
	return out, nil
}

// Invoices

func (m *Memory) SaveInvoice(_ context.Context, inv ledger.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.invoices[inv.ID]; !exists {
		m.invoiceOrder = append(m.invoiceOrder, inv.ID)
	}
	m.invoices[inv.ID] = inv
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id string) (*ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inv, ok := m.invoices[id]; ok {
		return &inv, nil
	}
	return nil, nil
}

func (m *Memory) ListInvoicesByHolder(_ context.Context, holderID ledger.HolderID) ([]ledger.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.Invoice
	for _, id := range m.invoiceOrder {
		inv := m.invoices[id]
		if inv.SenderID == holderID || inv.ReceiverID == holderID {
			out = append(out, inv)
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store. For the memory implementation this
// is simulated with a full snapshot, restored if fn returns an error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	holders      map[ledger.HolderID]ledger.Holder
	products     map[string]catalog.Product
	allocations  map[allocKey]ledger.Allocation
	wallets      map[ledger.HolderID]ledger.Wallet
	transactions map[ledger.HolderID][]ledger.WalletTransaction
	invoices     map[string]ledger.Invoice
	invoiceOrder []string
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		holders:      make(map[ledger.HolderID]ledger.Holder, len(tm.holders)),
		products:     make(map[string]catalog.Product, len(tm.products)),
		allocations:  make(map[allocKey]ledger.Allocation, len(tm.allocations)),
		wallets:      make(map[ledger.HolderID]ledger.Wallet, len(tm.wallets)),
		transactions: make(map[ledger.HolderID][]ledger.WalletTransaction, len(tm.transactions)),
		invoices:     make(map[string]ledger.Invoice, len(tm.invoices)),
		invoiceOrder: append([]string(nil), tm.invoiceOrder...),
	}
	for k, v := range tm.holders {
		s.holders[k] = v
	}
	for k, v := range tm.products {
		s.products[k] = v
	}
	for k, v := range tm.allocations {
		s.allocations[k] = v
	}
	for k, v := range tm.wallets {
		s.wallets[k] = v
	}
	for k, v := range tm.transactions {
		s.transactions[k] = append([]ledger.WalletTransaction(nil), v...)
	}
	for k, v := range tm.invoices {
		s.invoices[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.holders = s.holders
	tm.products = s.products
	tm.allocations = s.allocations
	tm.wallets = s.wallets
	tm.transactions = s.transactions
	tm.invoices = s.invoices
	tm.invoiceOrder = s.invoiceOrder
}
