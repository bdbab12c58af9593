// Package handler implements the HTTP surface. Handlers bind and
// validate request bodies, call the ledger core and translate its error
// taxonomy to status codes; no custody rule lives here.
package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auriclabs/goldledger/internal/ledger"
)

// fail maps a ledger error onto the matching HTTP response. Unknown
// errors are logged and surface as an opaque 500.
func fail(c echo.Context, err error) error {
	switch {
	case ledger.IsValidation(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case ledger.IsNotFound(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case ledger.IsAuthorization(err):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case ledger.IsMassBalance(err):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrWastagePending),
		errors.Is(err, ledger.ErrWastageRejected),
		errors.Is(err, ledger.ErrAlreadyProcessed),
		errors.Is(err, ledger.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, ledger.ErrTimeout):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": err.Error()})
	default:
		log.Printf("handler: %s %s failed: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
