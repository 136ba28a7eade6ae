package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrItemNotFound        = errors.New("item not found")
	ErrOutOfStock          = errors.New("out of stock")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStoreUnavailable    = errors.New("store unavailable")

	// ErrDuplicateRequest is raised by transports when a client request id
	// has already been seen.
	ErrDuplicateRequest = errors.New("duplicate request")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the offending fields of a rejected input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "invalid argument: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// InvalidField builds a single-field ValidationError.
func InvalidField(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

type InsufficientBalanceError struct {
	UserID  UserID
	Balance int64
	Price   int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: user %d has %d, price %d", e.UserID, e.Balance, e.Price)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// Unavailable wraps a storage failure so that it matches ErrStoreUnavailable
// while keeping the cause reachable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsRetryable reports whether the caller may retry. Only store failures are
// transient; every other kind is terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsRejection reports whether err is one of the terminal business outcomes.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrInsufficientBalance)
}
