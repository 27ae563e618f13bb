package domain

import "github.com/pkg/errors"

// ValidationError is a recoverable input error; the user is asked again.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError creates a ValidationError.
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

var (
	ErrInvalidAmount        = NewValidationError("amount must be a positive number or a percentage like 20%")
	ErrAmountExceedsBalance = NewValidationError("amount exceeds available balance")
	ErrPercentTooLarge      = NewValidationError("percentage must not exceed 100%")
	ErrInvalidPrice         = NewValidationError("price must be a positive number")
	ErrPriceOutOfBounds     = NewValidationError("price is too far from the current market price")
)

var (
	// ErrQuoteNotFound means a balance had no matching quote in a batch response.
	ErrQuoteNotFound = errors.New("quote not found for symbol")
	// ErrSessionNotFound means an action arrived for a flow with no live session.
	ErrSessionNotFound = errors.New("session not found")
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// GatewayError is a failed exchange call.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewGatewayError wraps err with the failing operation name. Nil stays nil.
func NewGatewayError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &GatewayError{Op: op, Err: err}
}
