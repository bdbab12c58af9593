package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func weights(ss ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(ss))
	for _, s := range ss {
		out = append(out, d(s))
	}
	return out
}

func TestCheckBalanceExact(t *testing.T) {
	require.NoError(t, CheckBalance(d("100"), weights("60", "40"), decimal.Zero))
}

func TestCheckBalanceWithWastage(t *testing.T) {
	// 40 + 59.99 + 0.01 wastage covers the full 100g.
	require.NoError(t, CheckBalance(d("100"), weights("40", "59.99"), d("0.01")))
}

func TestCheckBalanceWithinTolerance(t *testing.T) {
	// 0.01g off in either direction is acceptable.
	require.NoError(t, CheckBalance(d("100"), weights("40", "59.99"), decimal.Zero))
	require.NoError(t, CheckBalance(d("100"), weights("40", "60.01"), decimal.Zero))
}

func TestCheckBalanceViolation(t *testing.T) {
	err := CheckBalance(d("100"), weights("60", "50"), decimal.Zero)
	require.Error(t, err)
	require.True(t, IsMassBalance(err))

	mb, ok := err.(*MassBalanceError)
	require.True(t, ok)
	assert.True(t, mb.Expected.Equal(d("100")), "expected %s", mb.Expected)
	assert.True(t, mb.Computed.Equal(d("110")), "computed %s", mb.Computed)
	assert.True(t, mb.Discrepancy.Equal(d("10")), "discrepancy %s", mb.Discrepancy)
}

func TestCheckBalanceJustOverTolerance(t *testing.T) {
	err := CheckBalance(d("100"), weights("40", "59.989"), decimal.Zero)
	require.Error(t, err)
	require.True(t, IsMassBalance(err))
}

func TestCheckBalanceAccumulatedRounding(t *testing.T) {
	// Many small parts that sum exactly; decimal arithmetic must not
	// drift the way binary floats would.
	parts := make([]decimal.Decimal, 0, 1000)
	for i := 0; i < 1000; i++ {
		parts = append(parts, d("0.1"))
	}
	require.NoError(t, CheckBalance(d("100"), parts, decimal.Zero))
}

func TestCheckPositiveWeights(t *testing.T) {
	require.NoError(t, CheckPositiveWeights(weights("0.001", "5")))

	err := CheckPositiveWeights(weights("5", "0"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	err = CheckPositiveWeights(weights("-1"))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestSumWeights(t *testing.T) {
	assert.True(t, SumWeights(nil).IsZero())
	assert.True(t, SumWeights(weights("1.5", "2.5")).Equal(d("4")))
}
