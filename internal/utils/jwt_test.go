package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret"
	at, err := NewAccessToken(secret, 42, "craftsman", 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), at.Exp, 5*time.Second)

	parsed, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "craftsman", claims["role"])
}

func TestNewAccessTokenWrongSecret(t *testing.T) {
	at, err := NewAccessToken("right", 1, "admin", 15)
	require.NoError(t, err)

	_, err = jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("wrong"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	assert.Error(t, err)
}

func TestNewRefreshToken(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), rt.Exp, 5*time.Second)

	other, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.NotEqual(t, rt.Raw, other.Raw)
}

func TestHashRefreshRaw(t *testing.T) {
	h := HashRefreshRaw("some-raw-token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashRefreshRaw("some-raw-token"))
	assert.NotEqual(t, h, HashRefreshRaw("another-raw-token"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse battery"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
}
