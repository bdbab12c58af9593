package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriclabs/goldledger/internal/ledger"
)

func TestFailStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", ledger.Validationf("weight must be positive"), http.StatusBadRequest},
		{"not found", &ledger.NotFoundError{Resource: "token", ID: "7"}, http.StatusNotFound},
		{"authorization", &ledger.AuthorizationError{Reason: "denied"}, http.StatusForbidden},
		{"mass balance", &ledger.MassBalanceError{
			Expected:    decimal.NewFromInt(100),
			Computed:    decimal.NewFromInt(110),
			Discrepancy: decimal.NewFromInt(10),
		}, http.StatusUnprocessableEntity},
		{"wastage pending", ledger.ErrWastagePending, http.StatusConflict},
		{"wastage rejected", ledger.ErrWastageRejected, http.StatusConflict},
		{"already processed", ledger.ErrAlreadyProcessed, http.StatusConflict},
		{"conflict", ledger.ErrConflict, http.StatusConflict},
		{"timeout", ledger.ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("driver went away"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, fail(c, tc.err))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestFailHidesInternalDetail(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, fail(c, errors.New("dsn user:pass@tcp leaked")))
	assert.NotContains(t, rec.Body.String(), "dsn")
	assert.Contains(t, rec.Body.String(), "internal error")
}
