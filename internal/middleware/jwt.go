package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth validates a Bearer access token and injects the participant id
// and role claims into the request context. Protected routes read them
// via ParticipantID(c) and c.Get("role").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			// Numeric claims decode as float64.
			sub, ok := claims["sub"].(float64)
			if !ok || sub <= 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			c.Set("participant_id", uint64(sub))
			c.Set("role", claims["role"])
			return next(c)
		}
	}
}

// ParticipantID returns the authenticated participant's id, or 0 when
// the request is unauthenticated.
func ParticipantID(c echo.Context) uint64 {
	if v, ok := c.Get("participant_id").(uint64); ok {
		return v
	}
	return 0
}
