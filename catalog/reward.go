/*
reward.go - Reward-per-unit lookup and piece conversion

PURPOSE:
  The two pure functions the invoice workflow calls per line item:
  - RewardPerUnit: how many points one unit of this product is worth
  - PiecesFor: how many base pieces a quantity in some unit represents

POLICY ("explicit override else derive"):
  Each packaging tier may carry an explicit reward override. When absent,
  the reward derives linearly from the per-piece rate:
    DOZEN  -> perPiece x 12
    BOX    -> perPiece x BoxQty
    CARTON -> perPiece x CartonQty
  Overrides allow promotional pricing per tier (e.g. a carton rewards more
  than its pieces would).

SEE ALSO:
  - product.go: Product configuration and unit normalization
*/
package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RewardPerUnit returns the reward points for one unit of the product in the
// given unit of measure. The unit must already be canonical (see
// NormalizeUnit); unknown units fail with UnsupportedUnitError.
func RewardPerUnit(p Product, uom UnitOfMeasure) (decimal.Decimal, error) {
	switch uom {
	case UnitPiece:
		return p.RewardsPerPiece, nil
	case UnitDozen:
		if p.RewardsPerDozen.Valid {
			return p.RewardsPerDozen.Decimal, nil
		}
		return p.RewardsPerPiece.Mul(PiecesPerDozen), nil
	case UnitBox:
		if p.RewardsPerBox.Valid {
			return p.RewardsPerBox.Decimal, nil
		}
		return p.RewardsPerPiece.Mul(p.BoxQty), nil
	case UnitCarton:
		if p.RewardsPerCarton.Valid {
			return p.RewardsPerCarton.Decimal, nil
		}
		return p.RewardsPerPiece.Mul(p.CartonQty), nil
	default:
		return decimal.Zero, &UnsupportedUnitError{Unit: string(uom)}
	}
}

// PiecesFor converts a quantity in the given unit to base pieces. Used for
// inventory bookkeeping only; reward math goes through RewardPerUnit.
func PiecesFor(p Product, uom UnitOfMeasure, qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.IsNegative() {
		return decimal.Zero, fmt.Errorf("quantity must not be negative: %s", qty)
	}
	switch uom {
	case UnitPiece:
		return qty, nil
	case UnitDozen:
		return qty.Mul(PiecesPerDozen), nil
	case UnitBox:
		return qty.Mul(p.BoxQty), nil
	case UnitCarton:
		return qty.Mul(p.CartonQty), nil
	default:
		return decimal.Zero, &UnsupportedUnitError{Unit: string(uom)}
	}
}

// LineReward returns the reward total for qty units: RewardPerUnit x qty.
func LineReward(p Product, uom UnitOfMeasure, qty decimal.Decimal) (decimal.Decimal, error) {
	perUnit, err := RewardPerUnit(p, uom)
	if err != nil {
		return decimal.Zero, err
	}
	return perUnit.Mul(qty), nil
}
