/*
Package catalog defines the product catalog and reward computation rules.

PURPOSE:
  Products trade in packaging units (pieces, dozens, boxes, cartons) and
  carry a reward-per-unit table. This package owns two pure concerns:
  - Unit-of-measure normalization and conversion to base pieces
  - Reward-per-unit lookup ("explicit override else derive")

KEY CONCEPTS IN THIS FILE (product.go):
  - UnitOfMeasure: A tagged enum of supported trade units
  - NormalizeUnit: Alias folding ("PCS" -> PIECE), idempotent
  - Product: A catalog entry with conversion and reward configuration

DESIGN PRINCIPLES:
  1. Purity: No I/O, no state. Same inputs, same outputs, always.
  2. Precision: decimal.Decimal for quantities and points.
  3. Explicit failure: Unknown units are an UnsupportedUnitError, never
     a silent fallback to pieces.

SEE ALSO:
  - reward.go: RewardPerUnit and PiecesFor
  - ledger/: Consumes pieces counts for allocation bookkeeping
*/
package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UNIT OF MEASURE
// =============================================================================

type UnitOfMeasure string

const (
	UnitPiece  UnitOfMeasure = "PIECE"
	UnitDozen  UnitOfMeasure = "DOZEN"
	UnitBox    UnitOfMeasure = "BOX"
	UnitCarton UnitOfMeasure = "CARTON"
)

// PiecesPerDozen is fixed by definition; box and carton sizes come from
// each product's configuration.
var PiecesPerDozen = decimal.NewFromInt(12)

// unitAliases folds the spellings seen in uploaded invoices down to the
// canonical four units. Keys are upper-case.
var unitAliases = map[string]UnitOfMeasure{
	"PIECE":   UnitPiece,
	"PIECES":  UnitPiece,
	"PC":      UnitPiece,
	"PCS":     UnitPiece,
	"UNIT":    UnitPiece,
	"UNITS":   UnitPiece,
	"EA":      UnitPiece,
	"EACH":    UnitPiece,
	"DOZEN":   UnitDozen,
	"DOZENS":  UnitDozen,
	"DZ":      UnitDozen,
	"DOZ":     UnitDozen,
	"BOX":     UnitBox,
	"BOXES":   UnitBox,
	"BX":      UnitBox,
	"CARTON":  UnitCarton,
	"CARTONS": UnitCarton,
	"CTN":     UnitCarton,
	"CTNS":    UnitCarton,
}

// NormalizeUnit maps a raw unit string to its canonical UnitOfMeasure.
// Matching is case-insensitive and whitespace-tolerant. Normalization is
// idempotent: canonical names map to themselves.
func NormalizeUnit(raw string) (UnitOfMeasure, error) {
	folded := strings.ToUpper(strings.TrimSpace(raw))
	if uom, ok := unitAliases[folded]; ok {
		return uom, nil
	}
	return "", &UnsupportedUnitError{Unit: raw}
}

// UnsupportedUnitError is returned for unit strings outside the alias set.
type UnsupportedUnitError struct {
	Unit string
}

func (e *UnsupportedUnitError) Error() string {
	return fmt.Sprintf("unsupported unit of measure: %q", e.Unit)
}

// =============================================================================
// PRODUCT
// =============================================================================

// Product is a catalog entry. Immutable once referenced by an invoice line;
// administrative corrections go through catalog management, not the ledger.
type Product struct {
	Code        string
	Description string

	// SalesUOM is the unit this product is normally invoiced in.
	SalesUOM UnitOfMeasure

	// Conversion quantities to base pieces.
	BoxQty    decimal.Decimal
	CartonQty decimal.Decimal

	// Reward table. RewardsPerPiece is the base rate; the per-packaging
	// overrides are optional and take precedence when set, which lets the
	// catalog express non-linear promotional rewards per tier.
	RewardsPerPiece  decimal.Decimal
	RewardsPerDozen  decimal.NullDecimal
	RewardsPerBox    decimal.NullDecimal
	RewardsPerCarton decimal.NullDecimal
}

// Validate checks that the product configuration is internally usable.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("product code is required")
	}
	if p.RewardsPerPiece.IsNegative() {
		return fmt.Errorf("product %s: rewards per piece must not be negative", p.Code)
	}
	if p.BoxQty.IsNegative() || p.CartonQty.IsNegative() {
		return fmt.Errorf("product %s: conversion quantities must not be negative", p.Code)
	}
	if p.SalesUOM != "" {
		if _, err := NormalizeUnit(string(p.SalesUOM)); err != nil {
			return err
		}
	}
	return nil
}
