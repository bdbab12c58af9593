package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ComputeWastage derives the wastage weight and percentage from an
// expected and an actual weight. Expected must be strictly positive and
// actual non-negative.
func ComputeWastage(expected, actual decimal.Decimal) (weight, percentage decimal.Decimal, err error) {
	if !expected.IsPositive() {
		return decimal.Zero, decimal.Zero, Validationf("expected_weight must be positive, got %s", expected)
	}
	if actual.IsNegative() {
		return decimal.Zero, decimal.Zero, Validationf("actual_weight must be non-negative, got %s", actual)
	}
	weight = expected.Sub(actual)
	percentage = weight.Div(expected).Mul(hundred)
	return weight, percentage, nil
}

// Classify maps a wastage percentage onto an approval status using the
// threshold policy for the operation type. The rules are evaluated in
// fixed order: at or below auto_approve_max the log is auto-approved, at
// or below review_required_max it goes to lab review, above that it is
// flagged for mandatory audit.
func Classify(percentage decimal.Decimal, t *model.WastageThreshold) string {
	if percentage.LessThanOrEqual(t.AutoApproveMax) {
		return model.WastageAutoApproved
	}
	if percentage.LessThanOrEqual(t.ReviewRequiredMax) {
		return model.WastagePendingReview
	}
	return model.WastageFlaggedForAudit
}

// CheckWastageUsable verifies that a wastage log referenced by a split,
// merge or product assembly may back the declared mass loss. Pending or
// flagged logs fail with ErrWastagePending, rejected logs with
// ErrWastageRejected.
func CheckWastageUsable(w *model.WastageLog) error {
	switch w.ApprovalStatus {
	case model.WastagePendingReview, model.WastageFlaggedForAudit:
		return ErrWastagePending
	case model.WastageRejected:
		return ErrWastageRejected
	}
	return nil
}

// CheckThresholdBounds validates a threshold update:
// review_required_max >= auto_approve_max >= 0.
func CheckThresholdBounds(autoMax, reviewMax decimal.Decimal) error {
	if autoMax.IsNegative() {
		return Validationf("auto_approve_max must be >= 0, got %s", autoMax)
	}
	if reviewMax.LessThan(autoMax) {
		return Validationf("review_required_max (%s) must be >= auto_approve_max (%s)", reviewMax, autoMax)
	}
	return nil
}
