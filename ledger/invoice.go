/*
invoice.go - Invoice record types

PURPOSE:
  An Invoice is the immutable record of one hand-off between two holders in
  the hierarchy. It lives in this package with the rest of the data model so
  the persistence interfaces (store.go) can cover all records touched by one
  invoice inside a single transaction.

IMMUTABILITY:
  Once created, an invoice is never mutated. Corrections require a new
  invoice or a manual wallet adjustment.

SEE ALSO:
  - invoice/: The creation workflow that assembles and posts invoices
  - store.go: Persistence surface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/rewards-ledger/catalog"
)

// Line is one invoice line item with its computed reward figures.
type Line struct {
	ProductCode   string
	Qty           decimal.Decimal
	UOM           catalog.UnitOfMeasure
	Pieces        decimal.Decimal
	Amount        decimal.Decimal
	RewardPerUnit decimal.Decimal
	RewardTotal   decimal.Decimal
}

// Invoice records one transfer between sender and receiver. Owned jointly
// by both for query purposes, mutated by neither after creation.
type Invoice struct {
	ID            string
	SenderID      HolderID
	ReceiverID    HolderID
	CreatedByRole Role
	Lines         []Line

	TotalQty    decimal.Decimal
	TotalAmount decimal.Decimal

	// TotalReward is the amount actually moved between the wallets. For
	// distributor-to-dealer invoices it may be below the line-item sum when
	// a partial reward pass-through was requested.
	TotalReward decimal.Decimal

	InvoiceDate time.Time
	CreatedAt   time.Time
}
