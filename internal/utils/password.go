package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of plain using the given cost.
// A cost at or below zero falls back to the bcrypt default.
func HashPassword(plain string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
