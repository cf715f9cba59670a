/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The invoice workflow catches these and translates them into a single
  rejection for the whole invoice.

ERROR CATEGORIES:
  1. Validation errors - bad input, rejected before any mutation
  2. Not-found errors  - unknown holder, product, wallet, or allocation
  3. Business-rule errors - insufficient allocation or balance

USAGE:
  if errors.Is(err, ledger.ErrInsufficientAllocation) {
      // whole invoice rejected, nothing was written
  }

SEE ALSO:
  - wallet.go, allocation.go: Raise these errors
  - invoice/: Translates them into invoice-level rejections
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for zero or negative point amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance is returned when a debit would take a
	// non-root holder's wallet below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllocation is returned when a release exceeds the
	// holder's current allocation.
	ErrInsufficientAllocation = errors.New("insufficient allocation")

	// ErrAllocationNotFound is returned when releasing stock the holder
	// never received.
	ErrAllocationNotFound = errors.New("allocation not found")

	// ErrHolderNotFound is returned for unknown holder references.
	ErrHolderNotFound = errors.New("holder not found")

	// ErrProductNotFound is returned for unknown product codes.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvoiceNotFound is returned for unknown invoice references.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports a wallet debit shortfall.
type InsufficientBalanceError struct {
	HolderID  HolderID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance for %s: available %s, requested %s",
		e.HolderID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InsufficientAllocationError reports a stock shortfall on transfer.
type InsufficientAllocationError struct {
	HolderID    HolderID
	ProductCode string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientAllocationError) Error() string {
	return fmt.Sprintf("transfer quantity exceeds available stock of %s for %s: available %s, requested %s",
		e.ProductCode, e.HolderID, e.Available, e.Requested)
}

func (e *InsufficientAllocationError) Unwrap() error { return ErrInsufficientAllocation }

// AllocationNotFoundError reports a release against a missing allocation.
type AllocationNotFoundError struct {
	HolderID    HolderID
	ProductCode string
}

func (e *AllocationNotFoundError) Error() string {
	return fmt.Sprintf("no allocation of %s held by %s", e.ProductCode, e.HolderID)
}

func (e *AllocationNotFoundError) Unwrap() error { return ErrAllocationNotFound }

// InvalidAmountError reports a non-positive point amount.
type InvalidAmountError struct {
	Points decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("point amount must be positive, got %s", e.Points)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a business-rule or input
// rejection rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientAllocation)
}

// IsNotFound returns true if the error indicates a missing reference.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrHolderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrAllocationNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}
