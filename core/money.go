package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a monetary string into whole currency units. Amounts
// travel as strings on the wire so client float formatting can never skew a
// bid; decimal arithmetic does the exactness check. The value must be a
// positive integer number of units.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number: %w", s, ErrValidation)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("amount %q has fractional units: %w", s, ErrValidation)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount %q must be positive: %w", s, ErrValidation)
	}
	if d.Cmp(decimal.NewFromInt(maxAmount)) > 0 {
		return 0, fmt.Errorf("amount %q exceeds maximum %d: %w", s, maxAmount, ErrValidation)
	}
	return d.IntPart(), nil
}

// maxAmount bounds bids and budgets well inside int64 so sums and
// comparisons cannot overflow.
const maxAmount = int64(1) << 53

// BumpReputation applies a reputation delta and clamps the result to the
// [0,100] reputation range.
func BumpReputation(current, delta int) int {
	score := current + delta
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
