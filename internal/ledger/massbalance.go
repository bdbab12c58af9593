package ledger

import "github.com/shopspring/decimal"

// Tolerance is the absolute mass-balance epsilon: ±0.01 g. Gold-trade
// tooling operates at gram-level precision, so a fixed epsilon is used
// rather than a relative one.
var Tolerance = decimal.RequireFromString("0.01")

// SumWeights returns the exact sum of the given weights.
func SumWeights(weights []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range weights {
		sum = sum.Add(w)
	}
	return sum
}

// CheckBalance verifies that parts + wastage equals target within
// Tolerance. It returns a MassBalanceError carrying the discrepancy when
// conservation is violated, nil otherwise.
func CheckBalance(target decimal.Decimal, parts []decimal.Decimal, wastage decimal.Decimal) error {
	computed := SumWeights(parts).Add(wastage)
	discrepancy := target.Sub(computed).Abs()
	if discrepancy.GreaterThan(Tolerance) {
		return &MassBalanceError{
			Expected:    target,
			Computed:    computed,
			Discrepancy: discrepancy,
		}
	}
	return nil
}

// CheckPositiveWeights verifies that every weight in the slice is
// strictly positive.
func CheckPositiveWeights(weights []decimal.Decimal) error {
	for i, w := range weights {
		if !w.IsPositive() {
			return Validationf("weight at index %d must be positive, got %s", i, w)
		}
	}
	return nil
}
