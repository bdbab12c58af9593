package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auriclabs/goldledger/internal/ledger"
)

// RequirePermission gates a route on the permission evaluator. The
// participant record is loaded fresh on every request, so override and
// deactivation changes apply immediately rather than at token refresh.
// JWTAuth must run earlier in the chain.
func RequirePermission(svc *ledger.Service, permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ParticipantID(c)
			if id == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			allowed, err := svc.Authorize(c.Request().Context(), id, permission)
			if err != nil {
				if ledger.IsNotFound(err) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown participant"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
			}
			if !allowed {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "permission": permission})
			}
			return next(c)
		}
	}
}
