package utils

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenCodeRe   = regexp.MustCompile(`^TOK-[0-9A-Z]+-[0-9A-Z]{5}$`)
	productCodeRe = regexp.MustCompile(`^PRD-[0-9A-Z]+-[0-9A-Z]{5}$`)
	batchCodeRe   = regexp.MustCompile(`^BV-GOLD-\d{5}$`)
)

func TestNewTokenCode(t *testing.T) {
	code := NewTokenCode()
	assert.Regexp(t, tokenCodeRe, code)
}

func TestNewProductCode(t *testing.T) {
	assert.Regexp(t, productCodeRe, NewProductCode())
}

func TestNewBatchCode(t *testing.T) {
	assert.Regexp(t, batchCodeRe, NewBatchCode())
}

func TestCodesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code := NewTokenCode()
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestNewQRRef(t *testing.T) {
	ref := NewQRRef()
	_, err := uuid.Parse(ref)
	require.NoError(t, err)
	assert.NotEqual(t, ref, NewQRRef())
}
