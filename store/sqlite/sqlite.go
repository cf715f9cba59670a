/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements exist for wallet_transactions
  - Wallets are updated only alongside the transaction that explains the
    change, inside the same SQL transaction

KEY TABLES:
  holders:             Participants in the distribution hierarchy
  products:            Catalog entries with conversion and reward tables
  allocations:         Per (holder, product) inventory positions
  wallets:             Materialized balances (one row per holder)
  wallet_transactions: Immutable ledger of all balance changes
  invoices/invoice_lines: Immutable hand-off records

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. WithTx holds the
  write lock for the whole transaction, so every invoice commits or rolls
  back as a unit and no reader observes partial state.

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/rewards-ledger/catalog"
	"github.com/warp/rewards-ledger/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbConn is satisfied by both *sql.DB and *sql.Tx, so every query helper
// runs identically inside and outside a transaction.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Holders (Company / Distributor / Dealer hierarchy)
	CREATE TABLE IF NOT EXISTS holders (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		reward_limit TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	-- Products (catalog)
	CREATE TABLE IF NOT EXISTS products (
		code TEXT PRIMARY KEY,
		description TEXT,
		sales_uom TEXT,
		box_qty TEXT NOT NULL DEFAULT '0',
		carton_qty TEXT NOT NULL DEFAULT '0',
		rewards_per_piece TEXT NOT NULL DEFAULT '0',
		rewards_per_dozen TEXT,
		rewards_per_box TEXT,
		rewards_per_carton TEXT
	);

	-- Allocations: one row per (holder, product)
	CREATE TABLE IF NOT EXISTS allocations (
		holder_id TEXT NOT NULL,
		product_code TEXT NOT NULL,
		qty TEXT NOT NULL,
		uom TEXT NOT NULL,
		pieces TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (holder_id, product_code)
	);

	-- Wallets: one row per holder, created lazily.
	-- The primary key makes concurrent first-use create exactly one wallet.
	CREATE TABLE IF NOT EXISTS wallets (
		holder_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		lifetime_earned TEXT NOT NULL,
		lifetime_debited TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Wallet transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		points TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		invoice_id TEXT,
		note TEXT,
		performed_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_tx_holder
		ON wallet_transactions(holder_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_wallet_tx_invoice
		ON wallet_transactions(invoice_id) WHERE invoice_id IS NOT NULL;

	-- Invoices (immutable after creation)
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		created_by_role TEXT NOT NULL,
		total_qty TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		total_reward TEXT NOT NULL,
		invoice_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_sender ON invoices(sender_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_receiver ON invoices(receiver_id);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		invoice_id TEXT NOT NULL,
		line_no INTEGER NOT NULL,
		product_code TEXT NOT NULL,
		qty TEXT NOT NULL,
		uom TEXT NOT NULL,
		pieces TEXT NOT NULL,
		amount TEXT NOT NULL,
		reward_per_unit TEXT NOT NULL,
		reward_total TEXT NOT NULL,
		PRIMARY KEY (invoice_id, line_no)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HOLDERS
// =============================================================================

func (s *Store) SaveHolder(ctx context.Context, h ledger.Holder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveHolder(ctx, s.db, h)
}

func saveHolder(ctx context.Context, db dbConn, h ledger.Holder) error {
	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query := `
		INSERT INTO holders (id, code, name, role, reward_limit, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			role = excluded.role,
			reward_limit = excluded.reward_limit
	`
	_, err := db.ExecContext(ctx, query,
		h.ID, h.Code, h.Name, h.Role,
		h.RewardLimit.String(),
		createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetHolder(ctx context.Context, id ledger.HolderID) (*ledger.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getHolder(ctx, s.db, "id = ?", string(id))
}

func (s *Store) GetHolderByCode(ctx context.Context, code string) (*ledger.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getHolder(ctx, s.db, "code = ?", code)
}

func getHolder(ctx context.Context, db dbConn, where string, arg any) (*ledger.Holder, error) {
	var (
		h           ledger.Holder
		rewardLimit string
		createdAt   string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, code, name, role, reward_limit, created_at FROM holders WHERE "+where,
		arg,
	).Scan(&h.ID, &h.Code, &h.Name, &h.Role, &rewardLimit, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if h.RewardLimit, err = parseDec(rewardLimit); err != nil {
		return nil, err
	}
	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &h, nil
}

func (s *Store) ListHolders(ctx context.Context) ([]ledger.Holder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, code, name, role, reward_limit, created_at FROM holders ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holders []ledger.Holder
	for rows.Next() {
		var h ledger.Holder
		var rewardLimit, createdAt string
		if err := rows.Scan(&h.ID, &h.Code, &h.Name, &h.Role, &rewardLimit, &createdAt); err != nil {
			return nil, err
		}
		if h.RewardLimit, err = parseDec(rewardLimit); err != nil {
			return nil, err
		}
		h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		holders = append(holders, h)
	}
	return holders, rows.Err()
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) SaveProduct(ctx context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO products
		(code, description, sales_uom, box_qty, carton_qty,
		 rewards_per_piece, rewards_per_dozen, rewards_per_box, rewards_per_carton)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			description = excluded.description,
			sales_uom = excluded.sales_uom,
			box_qty = excluded.box_qty,
			carton_qty = excluded.carton_qty,
			rewards_per_piece = excluded.rewards_per_piece,
			rewards_per_dozen = excluded.rewards_per_dozen,
			rewards_per_box = excluded.rewards_per_box,
			rewards_per_carton = excluded.rewards_per_carton
	`
	_, err := s.db.ExecContext(ctx, query,
		p.Code, p.Description, string(p.SalesUOM),
		p.BoxQty.String(), p.CartonQty.String(),
		p.RewardsPerPiece.String(),
		nullDecimalString(p.RewardsPerDozen),
		nullDecimalString(p.RewardsPerBox),
		nullDecimalString(p.RewardsPerCarton),
	)
	return err
}

func (s *Store) GetProduct(ctx context.Context, code string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProduct(ctx, s.db, code)
}

func getProduct(ctx context.Context, db dbConn, code string) (*catalog.Product, error) {
	row := db.QueryRowContext(ctx, `
		SELECT code, description, sales_uom, box_qty, carton_qty,
		       rewards_per_piece, rewards_per_dozen, rewards_per_box, rewards_per_carton
		FROM products WHERE code = ?`, code)

	p, err := scanProduct(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanProduct(scan func(dest ...any) error) (*catalog.Product, error) {
	var (
		p                 catalog.Product
		salesUOM          sql.NullString
		boxQty, cartonQty string
		perPiece          string
		perDozen, perBox  sql.NullString
		perCarton         sql.NullString
	)
	err := scan(&p.Code, &p.Description, &salesUOM, &boxQty, &cartonQty,
		&perPiece, &perDozen, &perBox, &perCarton)
	if err != nil {
		return nil, err
	}

	p.SalesUOM = catalog.UnitOfMeasure(salesUOM.String)
	if p.BoxQty, err = parseDec(boxQty); err != nil {
		return nil, err
	}
	if p.CartonQty, err = parseDec(cartonQty); err != nil {
		return nil, err
	}
	if p.RewardsPerPiece, err = parseDec(perPiece); err != nil {
		return nil, err
	}
	if p.RewardsPerDozen, err = scanNullDecimal(perDozen); err != nil {
		return nil, err
	}
	if p.RewardsPerBox, err = scanNullDecimal(perBox); err != nil {
		return nil, err
	}
	if p.RewardsPerCarton, err = scanNullDecimal(perCarton); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, description, sales_uom, box_qty, carton_qty,
		       rewards_per_piece, rewards_per_dozen, rewards_per_box, rewards_per_carton
		FROM products ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (s *Store) GetAllocation(ctx context.Context, holderID ledger.HolderID, productCode string) (*ledger.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAllocation(ctx, s.db, holderID, productCode)
}

func getAllocation(ctx context.Context, db dbConn, holderID ledger.HolderID, productCode string) (*ledger.Allocation, error) {
	var (
		a              ledger.Allocation
		qty, pieces    string
		uom, updatedAt string
	)
	err := db.QueryRowContext(ctx, `
		SELECT holder_id, product_code, qty, uom, pieces, updated_at
		FROM allocations WHERE holder_id = ? AND product_code = ?`,
		holderID, productCode,
	).Scan(&a.HolderID, &a.ProductCode, &qty, &uom, &pieces, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if a.Qty, err = parseDec(qty); err != nil {
		return nil, err
	}
	a.UOM = catalog.UnitOfMeasure(uom)
	if a.Pieces, err = parseDec(pieces); err != nil {
		return nil, err
	}
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}

func (s *Store) SaveAllocation(ctx context.Context, a ledger.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAllocation(ctx, s.db, a)
}

func saveAllocation(ctx context.Context, db dbConn, a ledger.Allocation) error {
	// The UOM column keeps its value from the first insert: pinned at
	// creation, never reconciled on later transfers.
	query := `
		INSERT INTO allocations (holder_id, product_code, qty, uom, pieces, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(holder_id, product_code) DO UPDATE SET
			qty = excluded.qty,
			pieces = excluded.pieces,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		a.HolderID, a.ProductCode,
		a.Qty.String(), string(a.UOM), a.Pieces.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListAllocations(ctx context.Context, holderID ledger.HolderID) ([]ledger.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT holder_id, product_code, qty, uom, pieces, updated_at
		FROM allocations WHERE holder_id = ? ORDER BY product_code`, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []ledger.Allocation
	for rows.Next() {
		var a ledger.Allocation
		var qty, uom, pieces, updatedAt string
		if err := rows.Scan(&a.HolderID, &a.ProductCode, &qty, &uom, &pieces, &updatedAt); err != nil {
			return nil, err
		}
		if a.Qty, err = parseDec(qty); err != nil {
			return nil, err
		}
		a.UOM = catalog.UnitOfMeasure(uom)
		if a.Pieces, err = parseDec(pieces); err != nil {
			return nil, err
		}
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// =============================================================================
// WALLETS
// =============================================================================

func (s *Store) GetWallet(ctx context.Context, holderID ledger.HolderID) (*ledger.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getWallet(ctx, s.db, holderID)
}

func getWallet(ctx context.Context, db dbConn, holderID ledger.HolderID) (*ledger.Wallet, error) {
	var (
		w                        ledger.Wallet
		balance, earned, debited string
		createdAt, updatedAt     string
	)
	err := db.QueryRowContext(ctx, `
		SELECT holder_id, balance, lifetime_earned, lifetime_debited, created_at, updated_at
		FROM wallets WHERE holder_id = ?`, holderID,
	).Scan(&w.HolderID, &balance, &earned, &debited, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if w.Balance, err = parseDec(balance); err != nil {
		return nil, err
	}
	if w.LifetimeEarned, err = parseDec(earned); err != nil {
		return nil, err
	}
	if w.LifetimeDebited, err = parseDec(debited); err != nil {
		return nil, err
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	w.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &w, nil
}

func (s *Store) CreateWalletIfAbsent(ctx context.Context, holderID ledger.HolderID) (*ledger.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createWalletIfAbsent(ctx, s.db, holderID)
}

func createWalletIfAbsent(ctx context.Context, db dbConn, holderID ledger.HolderID) (*ledger.Wallet, error) {
	// The primary key on holder_id makes this race-safe: losers of the
	// insert race fall through to the select.
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `
		INSERT INTO wallets (holder_id, balance, lifetime_earned, lifetime_debited, created_at, updated_at)
		VALUES (?, '0', '0', '0', ?, ?)
		ON CONFLICT(holder_id) DO NOTHING`,
		holderID, now, now,
	)
	if err != nil {
		return nil, err
	}
	return getWallet(ctx, db, holderID)
}

func (s *Store) SaveWallet(ctx context.Context, w ledger.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveWallet(ctx, s.db, w)
}

func saveWallet(ctx context.Context, db dbConn, w ledger.Wallet) error {
	query := `
		UPDATE wallets SET
			balance = ?,
			lifetime_earned = ?,
			lifetime_debited = ?,
			updated_at = ?
		WHERE holder_id = ?
	`
	_, err := db.ExecContext(ctx, query,
		w.Balance.String(), w.LifetimeEarned.String(), w.LifetimeDebited.String(),
		time.Now().UTC().Format(time.RFC3339),
		w.HolderID,
	)
	return err
}

// =============================================================================
// WALLET TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx ledger.WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, tx)
}

func appendTransaction(ctx context.Context, db dbConn, tx ledger.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions
		(id, holder_id, direction, points, balance_before, balance_after,
		 invoice_id, note, performed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		tx.ID, tx.HolderID, tx.Direction,
		tx.Points.String(), tx.BalanceBefore.String(), tx.BalanceAfter.String(),
		nullString(tx.InvoiceID), tx.Note, tx.PerformedBy,
		tx.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append wallet transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, holderID ledger.HolderID) ([]ledger.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, holder_id, direction, points, balance_before, balance_after,
		       invoice_id, note, performed_by, created_at
		FROM wallet_transactions
		WHERE holder_id = ?
		ORDER BY created_at ASC, id ASC`, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ledger.WalletTransaction
	for rows.Next() {
		var (
			tx                      ledger.WalletTransaction
			points, before, after   string
			invoiceID, note, byWhom sql.NullString
			createdAt               string
		)
		if err := rows.Scan(&tx.ID, &tx.HolderID, &tx.Direction,
			&points, &before, &after, &invoiceID, &note, &byWhom, &createdAt); err != nil {
			return nil, err
		}
		if tx.Points, err = parseDec(points); err != nil {
			return nil, err
		}
		if tx.BalanceBefore, err = parseDec(before); err != nil {
			return nil, err
		}
		if tx.BalanceAfter, err = parseDec(after); err != nil {
			return nil, err
		}
		tx.InvoiceID = invoiceID.String
		tx.Note = note.String
		tx.PerformedBy = byWhom.String
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) SaveInvoice(ctx context.Context, inv ledger.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveInvoice(ctx, s.db, inv)
}

func saveInvoice(ctx context.Context, db dbConn, inv ledger.Invoice) error {
	query := `
		INSERT INTO invoices
		(id, sender_id, receiver_id, created_by_role,
		 total_qty, total_amount, total_reward, invoice_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		inv.ID, inv.SenderID, inv.ReceiverID, inv.CreatedByRole,
		inv.TotalQty.String(), inv.TotalAmount.String(), inv.TotalReward.String(),
		inv.InvoiceDate.Format(time.RFC3339),
		inv.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	for i, l := range inv.Lines {
		_, err := db.ExecContext(ctx, `
			INSERT INTO invoice_lines
			(invoice_id, line_no, product_code, qty, uom, pieces, amount, reward_per_unit, reward_total)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, i+1, l.ProductCode,
			l.Qty.String(), string(l.UOM), l.Pieces.String(),
			l.Amount.String(), l.RewardPerUnit.String(), l.RewardTotal.String(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, err := scanInvoice(s.db.QueryRowContext(ctx, `
		SELECT id, sender_id, receiver_id, created_by_role,
		       total_qty, total_amount, total_reward, invoice_date, created_at
		FROM invoices WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := s.loadLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (s *Store) ListInvoicesByHolder(ctx context.Context, holderID ledger.HolderID) ([]ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, created_by_role,
		       total_qty, total_amount, total_reward, invoice_date, created_at
		FROM invoices
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at ASC`, holderID, holderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []ledger.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range invoices {
		lines, err := s.loadLines(ctx, invoices[i].ID)
		if err != nil {
			return nil, err
		}
		invoices[i].Lines = lines
	}
	return invoices, nil
}

func (s *Store) loadLines(ctx context.Context, invoiceID string) ([]ledger.Line, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_code, qty, uom, pieces, amount, reward_per_unit, reward_total
		FROM invoice_lines WHERE invoice_id = ? ORDER BY line_no ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ledger.Line
	for rows.Next() {
		var l ledger.Line
		var qty, uom, pieces, amount, perUnit, total string
		if err := rows.Scan(&l.ProductCode, &qty, &uom, &pieces, &amount, &perUnit, &total); err != nil {
			return nil, err
		}
		if l.Qty, err = parseDec(qty); err != nil {
			return nil, err
		}
		l.UOM = catalog.UnitOfMeasure(uom)
		if l.Pieces, err = parseDec(pieces); err != nil {
			return nil, err
		}
		if l.Amount, err = parseDec(amount); err != nil {
			return nil, err
		}
		if l.RewardPerUnit, err = parseDec(perUnit); err != nil {
			return nil, err
		}
		if l.RewardTotal, err = parseDec(total); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(r rowScanner) (*ledger.Invoice, error) {
	var (
		inv                                ledger.Invoice
		totalQty, totalAmount, totalReward string
		invoiceDate, createdAt             string
	)
	err := r.Scan(&inv.ID, &inv.SenderID, &inv.ReceiverID, &inv.CreatedByRole,
		&totalQty, &totalAmount, &totalReward, &invoiceDate, &createdAt)
	if err != nil {
		return nil, err
	}
	if inv.TotalQty, err = parseDec(totalQty); err != nil {
		return nil, err
	}
	if inv.TotalAmount, err = parseDec(totalAmount); err != nil {
		return nil, err
	}
	if inv.TotalReward, err = parseDec(totalReward); err != nil {
		return nil, err
	}
	inv.InvoiceDate, _ = time.Parse(time.RFC3339, invoiceDate)
	inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &inv, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. The write lock
// is held for the duration, so no reader observes a half-applied invoice.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every read and write through the open *sql.Tx, so writes
// made earlier in the same transaction are visible to later reads.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveHolder(ctx context.Context, h ledger.Holder) error {
	return saveHolder(ctx, ts.tx, h)
}

func (ts *txStore) GetHolder(ctx context.Context, id ledger.HolderID) (*ledger.Holder, error) {
	return getHolder(ctx, ts.tx, "id = ?", string(id))
}

func (ts *txStore) GetHolderByCode(ctx context.Context, code string) (*ledger.Holder, error) {
	return getHolder(ctx, ts.tx, "code = ?", code)
}

func (ts *txStore) ListHolders(ctx context.Context) ([]ledger.Holder, error) {
	return nil, errNotInTx
}

func (ts *txStore) SaveProduct(ctx context.Context, p catalog.Product) error {
	return errNotInTx
}

func (ts *txStore) GetProduct(ctx context.Context, code string) (*catalog.Product, error) {
	return getProduct(ctx, ts.tx, code)
}

func (ts *txStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return nil, errNotInTx
}

func (ts *txStore) GetAllocation(ctx context.Context, holderID ledger.HolderID, productCode string) (*ledger.Allocation, error) {
	return getAllocation(ctx, ts.tx, holderID, productCode)
}

func (ts *txStore) SaveAllocation(ctx context.Context, a ledger.Allocation) error {
	return saveAllocation(ctx, ts.tx, a)
}

func (ts *txStore) ListAllocations(ctx context.Context, holderID ledger.HolderID) ([]ledger.Allocation, error) {
	return nil, errNotInTx
}

func (ts *txStore) GetWallet(ctx context.Context, holderID ledger.HolderID) (*ledger.Wallet, error) {
	return getWallet(ctx, ts.tx, holderID)
}

func (ts *txStore) CreateWalletIfAbsent(ctx context.Context, holderID ledger.HolderID) (*ledger.Wallet, error) {
	return createWalletIfAbsent(ctx, ts.tx, holderID)
}

func (ts *txStore) SaveWallet(ctx context.Context, w ledger.Wallet) error {
	return saveWallet(ctx, ts.tx, w)
}

func (ts *txStore) AppendTransaction(ctx context.Context, tx ledger.WalletTransaction) error {
	return appendTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) ListTransactions(ctx context.Context, holderID ledger.HolderID) ([]ledger.WalletTransaction, error) {
	return nil, errNotInTx
}

func (ts *txStore) SaveInvoice(ctx context.Context, inv ledger.Invoice) error {
	return saveInvoice(ctx, ts.tx, inv)
}

func (ts *txStore) GetInvoice(ctx context.Context, id string) (*ledger.Invoice, error) {
	return nil, errNotInTx
}

func (ts *txStore) ListInvoicesByHolder(ctx context.Context, holderID ledger.HolderID) ([]ledger.Invoice, error) {
	return nil, errNotInTx
}

// errNotInTx guards Store methods the invoice workflow never calls inside
// a transaction; supporting them would need the tx to carry list queries.
var errNotInTx = fmt.Errorf("operation not supported inside a transaction")

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"wallet_transactions", "wallets", "allocations",
		"invoice_lines", "invoices", "products", "holders"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimalString(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func scanNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDec(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// parseDec refuses corrupt stored decimals instead of zeroing them; a bad
// column surfacing as Zero would defeat wallet reconciliation.
func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt decimal %q: %w", s, err)
	}
	return d, nil
}
