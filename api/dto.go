/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND POINTS:
  All decimal values cross the wire as strings to avoid float rounding in
  clients. Parsing happens in handlers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/rewards-ledger/catalog"
	"github.com/warp/rewards-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// HolderDTO represents a holder in API responses.
type HolderDTO struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	RewardLimit string `json:"reward_limit,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateHolderRequest is the request to register a holder.
type CreateHolderRequest struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	RewardLimit string `json:"reward_limit,omitempty"`
}

// ProductDTO represents a catalog product.
type ProductDTO struct {
	Code             string `json:"code"`
	Description      string `json:"description,omitempty"`
	SalesUOM         string `json:"sales_uom,omitempty"`
	BoxQty           string `json:"box_qty"`
	CartonQty        string `json:"carton_qty"`
	RewardsPerPiece  string `json:"rewards_per_piece"`
	RewardsPerDozen  string `json:"rewards_per_dozen,omitempty"`
	RewardsPerBox    string `json:"rewards_per_box,omitempty"`
	RewardsPerCarton string `json:"rewards_per_carton,omitempty"`
}

// WalletDTO represents a holder's point position.
type WalletDTO struct {
	HolderID        string `json:"holder_id"`
	Balance         string `json:"balance"`
	LifetimeEarned  string `json:"lifetime_earned"`
	LifetimeDebited string `json:"lifetime_debited"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// TransactionDTO represents one immutable wallet ledger entry.
type TransactionDTO struct {
	ID            string `json:"id"`
	HolderID      string `json:"holder_id"`
	Direction     string `json:"direction"`
	Points        string `json:"points"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	InvoiceID     string `json:"invoice_id,omitempty"`
	Note          string `json:"note,omitempty"`
	PerformedBy   string `json:"performed_by,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// AllocationDTO represents one (holder, product) inventory position.
type AllocationDTO struct {
	HolderID    string `json:"holder_id"`
	ProductCode string `json:"product_code"`
	Qty         string `json:"qty"`
	UOM         string `json:"uom"`
	Pieces      string `json:"pieces"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// InvoiceLineRequest is one requested line item.
type InvoiceLineRequest struct {
	ProductCode string `json:"product_code"`
	Qty         string `json:"qty"`
	Unit        string `json:"unit"`
	Amount      string `json:"amount,omitempty"`
}

// CreateInvoiceRequest is the request to post an invoice.
type CreateInvoiceRequest struct {
	SenderID        string               `json:"sender_id"`
	ReceiverID      string               `json:"receiver_id"`
	Lines           []InvoiceLineRequest `json:"lines"`
	RequestedReward string               `json:"requested_reward,omitempty"`
	InvoiceDate     string               `json:"invoice_date,omitempty"`
	PerformedBy     string               `json:"performed_by,omitempty"`
}

// InvoiceLineDTO is one priced line in a response.
type InvoiceLineDTO struct {
	ProductCode   string `json:"product_code"`
	Qty           string `json:"qty"`
	UOM           string `json:"uom"`
	Pieces        string `json:"pieces"`
	Amount        string `json:"amount"`
	RewardPerUnit string `json:"reward_per_unit"`
	RewardTotal   string `json:"reward_total"`
}

// InvoiceDTO represents a posted invoice.
type InvoiceDTO struct {
	ID            string           `json:"id"`
	SenderID      string           `json:"sender_id"`
	ReceiverID    string           `json:"receiver_id"`
	CreatedByRole string           `json:"created_by_role"`
	Lines         []InvoiceLineDTO `json:"lines"`
	TotalQty      string           `json:"total_qty"`
	TotalAmount   string           `json:"total_amount"`
	TotalReward   string           `json:"total_reward"`
	InvoiceDate   string           `json:"invoice_date"`
	CreatedAt     string           `json:"created_at"`
}

// BatchRequest wraps a CSV batch upload.
type BatchRequest struct {
	SenderID    string `json:"sender_id"`
	PerformedBy string `json:"performed_by,omitempty"`
	CSV         string `json:"csv"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toHolderDTO(h ledger.Holder) HolderDTO {
	dto := HolderDTO{
		ID:        string(h.ID),
		Code:      h.Code,
		Name:      h.Name,
		Role:      string(h.Role),
		CreatedAt: h.CreatedAt.Format(time.RFC3339),
	}
	if h.RewardLimit.IsPositive() {
		dto.RewardLimit = h.RewardLimit.String()
	}
	return dto
}

func toProductDTO(p catalog.Product) ProductDTO {
	dto := ProductDTO{
		Code:            p.Code,
		Description:     p.Description,
		SalesUOM:        string(p.SalesUOM),
		BoxQty:          p.BoxQty.String(),
		CartonQty:       p.CartonQty.String(),
		RewardsPerPiece: p.RewardsPerPiece.String(),
	}
	if p.RewardsPerDozen.Valid {
		dto.RewardsPerDozen = p.RewardsPerDozen.Decimal.String()
	}
	if p.RewardsPerBox.Valid {
		dto.RewardsPerBox = p.RewardsPerBox.Decimal.String()
	}
	if p.RewardsPerCarton.Valid {
		dto.RewardsPerCarton = p.RewardsPerCarton.Decimal.String()
	}
	return dto
}

func toWalletDTO(w ledger.Wallet) WalletDTO {
	return WalletDTO{
		HolderID:        string(w.HolderID),
		Balance:         w.Balance.String(),
		LifetimeEarned:  w.LifetimeEarned.String(),
		LifetimeDebited: w.LifetimeDebited.String(),
		UpdatedAt:       w.UpdatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx ledger.WalletTransaction) TransactionDTO {
	return TransactionDTO{
		ID:            string(tx.ID),
		HolderID:      string(tx.HolderID),
		Direction:     string(tx.Direction),
		Points:        tx.Points.String(),
		BalanceBefore: tx.BalanceBefore.String(),
		BalanceAfter:  tx.BalanceAfter.String(),
		InvoiceID:     tx.InvoiceID,
		Note:          tx.Note,
		PerformedBy:   tx.PerformedBy,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
}

func toAllocationDTO(a ledger.Allocation) AllocationDTO {
	return AllocationDTO{
		HolderID:    string(a.HolderID),
		ProductCode: a.ProductCode,
		Qty:         a.Qty.String(),
		UOM:         string(a.UOM),
		Pieces:      a.Pieces.String(),
		UpdatedAt:   a.UpdatedAt.Format(time.RFC3339),
	}
}

func toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	lines := make([]InvoiceLineDTO, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = InvoiceLineDTO{
			ProductCode:   l.ProductCode,
			Qty:           l.Qty.String(),
			UOM:           string(l.UOM),
			Pieces:        l.Pieces.String(),
			Amount:        l.Amount.String(),
			RewardPerUnit: l.RewardPerUnit.String(),
			RewardTotal:   l.RewardTotal.String(),
		}
	}
	return InvoiceDTO{
		ID:            inv.ID,
		SenderID:      string(inv.SenderID),
		ReceiverID:    string(inv.ReceiverID),
		CreatedByRole: string(inv.CreatedByRole),
		Lines:         lines,
		TotalQty:      inv.TotalQty.String(),
		TotalAmount:   inv.TotalAmount.String(),
		TotalReward:   inv.TotalReward.String(),
		InvoiceDate:   inv.InvoiceDate.Format("2006-01-02"),
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
}
