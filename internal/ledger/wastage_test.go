package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriclabs/goldledger/internal/model"
)

func TestComputeWastage(t *testing.T) {
	weight, pct, err := ComputeWastage(d("100"), d("98.5"))
	require.NoError(t, err)
	assert.True(t, weight.Equal(d("1.5")), "weight %s", weight)
	assert.True(t, pct.Equal(d("1.5")), "percentage %s", pct)
}

func TestComputeWastageZeroLoss(t *testing.T) {
	weight, pct, err := ComputeWastage(d("50"), d("50"))
	require.NoError(t, err)
	assert.True(t, weight.IsZero())
	assert.True(t, pct.IsZero())
}

func TestComputeWastageRejectsBadInputs(t *testing.T) {
	_, _, err := ComputeWastage(d("0"), d("1"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, _, err = ComputeWastage(d("100"), d("-1"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestClassify(t *testing.T) {
	th := &model.WastageThreshold{
		OperationType:     model.OpCasting,
		AutoApproveMax:    d("2"),
		ReviewRequiredMax: d("5"),
	}

	cases := []struct {
		pct  string
		want string
	}{
		{"0", model.WastageAutoApproved},
		{"1.5", model.WastageAutoApproved},
		{"2", model.WastageAutoApproved},
		{"2.01", model.WastagePendingReview},
		{"5", model.WastagePendingReview},
		{"5.01", model.WastageFlaggedForAudit},
		{"40", model.WastageFlaggedForAudit},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(d(tc.pct), th), "percentage %s", tc.pct)
	}
}

func TestCheckWastageUsable(t *testing.T) {
	for _, status := range []string{model.WastageAutoApproved, model.WastageApproved} {
		assert.NoError(t, CheckWastageUsable(&model.WastageLog{ApprovalStatus: status}), status)
	}
	assert.ErrorIs(t, CheckWastageUsable(&model.WastageLog{ApprovalStatus: model.WastagePendingReview}), ErrWastagePending)
	assert.ErrorIs(t, CheckWastageUsable(&model.WastageLog{ApprovalStatus: model.WastageFlaggedForAudit}), ErrWastagePending)
	assert.ErrorIs(t, CheckWastageUsable(&model.WastageLog{ApprovalStatus: model.WastageRejected}), ErrWastageRejected)
}

func TestCheckThresholdBounds(t *testing.T) {
	require.NoError(t, CheckThresholdBounds(d("2"), d("5")))
	require.NoError(t, CheckThresholdBounds(d("0"), d("0")))

	err := CheckThresholdBounds(d("-1"), d("5"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	err = CheckThresholdBounds(d("5"), d("2"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestWastageLogDecided(t *testing.T) {
	decided := []string{model.WastageAutoApproved, model.WastageApproved, model.WastageRejected}
	for _, s := range decided {
		assert.True(t, (&model.WastageLog{ApprovalStatus: s}).Decided(), s)
	}
	open := []string{model.WastagePendingReview, model.WastageFlaggedForAudit}
	for _, s := range open {
		assert.False(t, (&model.WastageLog{ApprovalStatus: s}).Decided(), s)
	}
}
