package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/contract/internal/store"
)

// ErrorCode categorizes ledger errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates a zero or otherwise invalid amount or owner.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInsufficientFunds indicates a withdrawal larger than the balance.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeIntegrity indicates a missing account row or a constraint violation.
	ErrCodeIntegrity ErrorCode = "INTEGRITY"

	// ErrCodePersistence indicates the store could not be read or written.
	ErrCodePersistence ErrorCode = "PERSISTENCE"
)

// Error is a ledger error with a category code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// AccountID identifies the affected account, if known.
	AccountID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error must abort the operation.
// Validation and insufficient-funds errors are reported and then ignored.
func (e *Error) Fatal() bool {
	return e.Code == ErrCodeIntegrity || e.Code == ErrCodePersistence
}

func hasCode(err error, code ErrorCode) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsInsufficientFunds returns true if err is an insufficient-funds error.
func IsInsufficientFunds(err error) bool { return hasCode(err, ErrCodeInsufficientFunds) }

// IsIntegrity returns true if err is an integrity error.
func IsIntegrity(err error) bool { return hasCode(err, ErrCodeIntegrity) }

// IsPersistence returns true if err is a persistence error.
func IsPersistence(err error) bool { return hasCode(err, ErrCodePersistence) }

func newValidationError(accountID, message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: message, AccountID: accountID}
}

func newInsufficientFundsError(accountID string, balance, requested uint64) *Error {
	return &Error{
		Code:      ErrCodeInsufficientFunds,
		Message:   fmt.Sprintf("balance %d is less than requested %d", balance, requested),
		AccountID: accountID,
	}
}

// classify wraps a store failure as an integrity or persistence error.
// Errors that are already *Error pass through unchanged.
func classify(err error, accountID, op string) *Error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	code := ErrCodePersistence
	if store.IsConstraint(err) || errors.Is(err, store.ErrNotFound) {
		code = ErrCodeIntegrity
	}
	return &Error{Code: code, Message: op + " failed", AccountID: accountID, Err: err}
}
