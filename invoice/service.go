/*
Package invoice implements the invoice creation workflow.

PURPOSE:
  Assembles and posts the one hand-off the ledger core exists for: an
  invoice between two holders that atomically
  (a) computes reward points from the product catalog,
  (b) moves inventory allocation from sender to receiver, and
  (c) posts a balanced credit/debit pair on the two wallets.

ATOMICITY:
  The source system performed these as four loose writes and could leave
  partial state behind a mid-sequence failure. Here the whole chain runs
  inside one store transaction (ledger.TxStore.WithTx): validation failures
  reject before anything is written, and a failure after that rolls every
  record back.

ROLE RULES:
  Company -> Distributor: fresh stock, no release on the sender side.
  Distributor -> Dealer:  sender allocation is checked (fail-fast) and
                          released; an optional RequestedReward below the
                          computed total may be passed through, capped by
                          the dealer's configured reward limit.

SEE ALSO:
  - ledger/: WalletLedger, AllocationTracker, store interfaces
  - catalog/: Reward and piece computation per line
  - ingest.go: Batch CSV ingestion over this same path
*/
package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/rewards-ledger/catalog"
	"github.com/warp/rewards-ledger/ledger"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

// LineInput is one requested line item, units still raw.
type LineInput struct {
	ProductCode string
	Qty         decimal.Decimal
	Unit        string
	Amount      decimal.Decimal
}

// CreateInput is a complete invoice request with already-authenticated
// performer identity.
type CreateInput struct {
	SenderID   ledger.HolderID
	ReceiverID ledger.HolderID
	Lines      []LineInput

	// RequestedReward, when set, replaces the line-item reward total for
	// the wallet transfer. Only valid on distributor-to-dealer invoices and
	// must not exceed the computed total or the dealer's reward limit.
	RequestedReward decimal.NullDecimal

	InvoiceDate time.Time
	PerformedBy string
}

// ValidationError is a synchronous input rejection, raised before any
// mutation. The reason is human-readable and safe to surface.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// =============================================================================
// SERVICE
// =============================================================================

// Service runs the invoice workflow over a transactional store.
type Service struct {
	store       ledger.TxStore
	wallets     *ledger.WalletLedger
	allocations *ledger.AllocationTracker
}

func NewService(store ledger.TxStore) *Service {
	return &Service{
		store:       store,
		wallets:     ledger.NewWalletLedger(store),
		allocations: ledger.NewAllocationTracker(store),
	}
}

// Create validates, prices, and atomically posts one invoice.
//
// Sequence: validate input and roles, compute rewards and pieces per line,
// enforce reward caps, run the allocation access check for non-root
// senders, then commit invoice + allocations + both wallet postings in a
// single store transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (*ledger.Invoice, error) {
	sender, receiver, err := s.resolveParties(ctx, in)
	if err != nil {
		return nil, err
	}

	lines, totals, err := s.priceLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	reward := totals.reward
	if in.RequestedReward.Valid {
		reward, err = applyRequestedReward(sender, receiver, totals.reward, in.RequestedReward.Decimal)
		if err != nil {
			return nil, err
		}
	}

	deltas := make([]ledger.Delta, len(lines))
	for i, l := range lines {
		deltas[i] = ledger.Delta{
			ProductCode: l.ProductCode,
			Qty:         l.Qty,
			UOM:         l.UOM,
			Pieces:      l.Pieces,
		}
	}

	// Fail fast: an under-allocated invoice is rejected before any write.
	if !sender.Role.IsRoot() {
		if err := s.allocations.CheckAvailable(ctx, sender.ID, deltas); err != nil {
			return nil, err
		}
	}

	invoiceDate := in.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = time.Now().UTC()
	}

	inv := ledger.Invoice{
		ID:            uuid.NewString(),
		SenderID:      sender.ID,
		ReceiverID:    receiver.ID,
		CreatedByRole: sender.Role,
		Lines:         lines,
		TotalQty:      totals.qty,
		TotalAmount:   totals.amount,
		TotalReward:   reward,
		InvoiceDate:   invoiceDate,
		CreatedAt:     time.Now().UTC(),
	}

	err = s.store.WithTx(ctx, func(tx ledger.Store) error {
		wallets := s.wallets.WithStore(tx)
		allocations := s.allocations.WithStore(tx)

		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}

		if !sender.Role.IsRoot() {
			if err := allocations.Release(ctx, sender.ID, deltas); err != nil {
				return err
			}
		}
		if err := allocations.Allocate(ctx, receiver.ID, deltas); err != nil {
			return err
		}

		note := fmt.Sprintf("invoice from %s", sender.Name)
		if _, err := wallets.Apply(ctx, receiver.Role, ledger.Entry{
			HolderID:    receiver.ID,
			Direction:   ledger.Credit,
			Points:      reward,
			InvoiceID:   inv.ID,
			Note:        note,
			PerformedBy: in.PerformedBy,
		}); err != nil {
			return err
		}

		if _, err := wallets.Apply(ctx, sender.Role, ledger.Entry{
			HolderID:    sender.ID,
			Direction:   ledger.Debit,
			Points:      reward,
			InvoiceID:   inv.ID,
			Note:        fmt.Sprintf("invoice to %s", receiver.Name),
			PerformedBy: in.PerformedBy,
		}); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

// Get returns a single invoice.
func (s *Service) Get(ctx context.Context, id string) (*ledger.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("invoice %s: %w", id, ledger.ErrInvoiceNotFound)
	}
	return inv, nil
}

// ListByHolder returns invoices where the holder is sender or receiver.
func (s *Service) ListByHolder(ctx context.Context, holderID ledger.HolderID) ([]ledger.Invoice, error) {
	return s.store.ListInvoicesByHolder(ctx, holderID)
}

// =============================================================================
// VALIDATION AND PRICING
// =============================================================================

func (s *Service) resolveParties(ctx context.Context, in CreateInput) (*ledger.Holder, *ledger.Holder, error) {
	if len(in.Lines) == 0 {
		return nil, nil, &ValidationError{Reason: "invoice must have at least one line item"}
	}
	if in.SenderID == in.ReceiverID {
		return nil, nil, &ValidationError{Reason: "sender and receiver must differ"}
	}

	sender, err := s.store.GetHolder(ctx, in.SenderID)
	if err != nil {
		return nil, nil, err
	}
	if sender == nil {
		return nil, nil, fmt.Errorf("sender %s: %w", in.SenderID, ledger.ErrHolderNotFound)
	}
	receiver, err := s.store.GetHolder(ctx, in.ReceiverID)
	if err != nil {
		return nil, nil, err
	}
	if receiver == nil {
		return nil, nil, fmt.Errorf("receiver %s: %w", in.ReceiverID, ledger.ErrHolderNotFound)
	}

	// The hierarchy is fixed: invoices flow one tier down.
	switch {
	case sender.Role == ledger.RoleCompany && receiver.Role == ledger.RoleDistributor:
	case sender.Role == ledger.RoleDistributor && receiver.Role == ledger.RoleDealer:
	default:
		return nil, nil, &ValidationError{Reason: fmt.Sprintf(
			"invoices are not allowed from %s to %s", sender.Role, receiver.Role)}
	}

	return sender, receiver, nil
}

type lineTotals struct {
	qty    decimal.Decimal
	amount decimal.Decimal
	reward decimal.Decimal
}

func (s *Service) priceLines(ctx context.Context, inputs []LineInput) ([]ledger.Line, lineTotals, error) {
	var totals lineTotals
	lines := make([]ledger.Line, 0, len(inputs))

	for i, li := range inputs {
		if !li.Qty.IsPositive() {
			return nil, totals, &ValidationError{Reason: fmt.Sprintf(
				"line %d: quantity must be positive", i+1)}
		}
		if strings.TrimSpace(li.ProductCode) == "" {
			return nil, totals, &ValidationError{Reason: fmt.Sprintf(
				"line %d: product code is required", i+1)}
		}

		uom, err := catalog.NormalizeUnit(li.Unit)
		if err != nil {
			return nil, totals, &ValidationError{Reason: fmt.Sprintf(
				"line %d: %v", i+1, err)}
		}

		product, err := s.store.GetProduct(ctx, li.ProductCode)
		if err != nil {
			return nil, totals, err
		}
		if product == nil {
			return nil, totals, fmt.Errorf("line %d: product %s: %w",
				i+1, li.ProductCode, ledger.ErrProductNotFound)
		}

		perUnit, err := catalog.RewardPerUnit(*product, uom)
		if err != nil {
			return nil, totals, err
		}
		pieces, err := catalog.PiecesFor(*product, uom, li.Qty)
		if err != nil {
			return nil, totals, err
		}

		line := ledger.Line{
			ProductCode:   product.Code,
			Qty:           li.Qty,
			UOM:           uom,
			Pieces:        pieces,
			Amount:        li.Amount,
			RewardPerUnit: perUnit,
			RewardTotal:   perUnit.Mul(li.Qty),
		}
		lines = append(lines, line)

		totals.qty = totals.qty.Add(line.Qty)
		totals.amount = totals.amount.Add(line.Amount)
		totals.reward = totals.reward.Add(line.RewardTotal)
	}

	return lines, totals, nil
}

// applyRequestedReward enforces the partial pass-through caps: the issuer
// may move less reward than the lines compute, never more, and never above
// the dealer's configured limit.
func applyRequestedReward(sender, receiver *ledger.Holder, computed, requested decimal.Decimal) (decimal.Decimal, error) {
	if sender.Role != ledger.RoleDistributor || receiver.Role != ledger.RoleDealer {
		return decimal.Zero, &ValidationError{
			Reason: "requested reward is only allowed on distributor-to-dealer invoices"}
	}
	if !requested.IsPositive() {
		return decimal.Zero, &ValidationError{Reason: "requested reward must be positive"}
	}
	if requested.GreaterThan(computed) {
		return decimal.Zero, &ValidationError{Reason: fmt.Sprintf(
			"requested reward %s exceeds computed reward total %s", requested, computed)}
	}
	if receiver.RewardLimit.IsPositive() && requested.GreaterThan(receiver.RewardLimit) {
		return decimal.Zero, &ValidationError{Reason: fmt.Sprintf(
			"requested reward %s exceeds dealer limit %s", requested, receiver.RewardLimit)}
	}
	return requested, nil
}
