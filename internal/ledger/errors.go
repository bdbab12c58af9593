// Package ledger implements the token custody core: the token lifecycle
// state machine, mass-balance validation, the wastage approval engine,
// the lineage/ancestry engine and the permission evaluator. Every
// mutation runs as a single database transaction; handlers call this
// package and translate its errors to HTTP responses.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed or out-of-range input. It is never
// retried automatically.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing token, participant, batch, product,
// wastage log or threshold.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AuthorizationError reports a role, ownership or active-status failure.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// inactiveParticipant builds the AuthorizationError for a deactivated
// counterparty. Active-status failures are authorization failures, not
// input errors: the request is well-formed, the account may not act.
func inactiveParticipant(id uint64) error {
	return &AuthorizationError{
		Reason: fmt.Sprintf("participant %d is inactive and cannot take custody", id),
	}
}

// MassBalanceError reports a conservation violation: the computed sum of
// outputs plus wastage differs from the input by more than the tolerance.
// Discrepancy carries the absolute difference for diagnostics.
type MassBalanceError struct {
	Expected    decimal.Decimal
	Computed    decimal.Decimal
	Discrepancy decimal.Decimal
}

func (e *MassBalanceError) Error() string {
	return fmt.Sprintf("mass balance violation: sum %sg must equal %sg within %sg (discrepancy %sg)",
		e.Computed, e.Expected, Tolerance, e.Discrepancy)
}

// Workflow-state conflicts on wastage logs and races on token status.
var (
	// ErrWastagePending is returned when an operation references a
	// wastage log still awaiting review or audit.
	ErrWastagePending = errors.New("wastage log requires approval before proceeding")

	// ErrWastageRejected is returned when an operation references a
	// rejected wastage log.
	ErrWastageRejected = errors.New("wastage log was rejected")

	// ErrAlreadyProcessed is returned when deciding a wastage log that
	// is already in a terminal state.
	ErrAlreadyProcessed = errors.New("wastage log already processed")

	// ErrConflict is returned when a mutation loses a race on token
	// status: another transaction consumed the token first.
	ErrConflict = errors.New("token state changed concurrently")

	// ErrCycleDetected is returned by the lineage engine when the
	// stored lineage graph contains a cycle. The store only ever writes
	// a DAG, so a cycle means corrupted data.
	ErrCycleDetected = errors.New("cycle detected in token lineage")

	// ErrTimeout is returned when the store did not answer within the
	// operation deadline.
	ErrTimeout = errors.New("store operation timed out")
)

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// IsMassBalance reports whether err is a MassBalanceError.
func IsMassBalance(err error) bool {
	var mb *MassBalanceError
	return errors.As(err, &mb)
}
