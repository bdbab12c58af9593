package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// randBase36 returns n cryptographically random base36 characters.
func randBase36(n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is
			// broken; fall back to a time-derived character.
			b.WriteByte(base36[time.Now().UnixNano()%36])
			continue
		}
		b.WriteByte(base36[idx.Int64()])
	}
	return b.String()
}

// newCode builds a "<prefix>-<base36 timestamp>-<5 base36>" code. The
// timestamp component keeps codes roughly sortable by creation time, the
// random tail makes collisions within one millisecond unlikely; the
// unique column constraint catches the rest.
func newCode(prefix string) string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return strings.ToUpper(prefix + "-" + ts + "-" + randBase36(5))
}

// NewTokenCode returns a fresh TOK- code.
func NewTokenCode() string { return newCode("TOK") }

// NewProductCode returns a fresh PRD- code.
func NewProductCode() string { return newCode("PRD") }

// NewBatchCode returns a fresh BV-GOLD- batch code with a 5 digit
// numeric tail.
func NewBatchCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		return fmt.Sprintf("BV-GOLD-%05d", time.Now().UnixNano()%100000)
	}
	return fmt.Sprintf("BV-GOLD-%05d", n.Int64())
}

// NewQRRef returns the opaque reference encoded into a product's QR
// code. A UUID keeps the public reference unguessable from the numeric
// product id.
func NewQRRef() string { return uuid.NewString() }
