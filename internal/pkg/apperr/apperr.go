package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies ledger errors. Handlers map kinds to HTTP statuses at the
// boundary; services only deal in kinds.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	AlreadyProcessed
	InvalidInput
	InsufficientFunds
	WithdrawalLimitExceeded
	RoundingMismatch
	SettlementFailure
	Inconsistent
)

// Error is a kind-tagged error value.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a kind-tagged error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, or Unknown for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the status code used by handlers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return 404
	case AlreadyProcessed:
		return 409
	case InvalidInput, InsufficientFunds, WithdrawalLimitExceeded, RoundingMismatch:
		return 400
	case SettlementFailure:
		return 502
	default:
		return 500
	}
}
