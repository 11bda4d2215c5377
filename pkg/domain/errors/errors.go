// Package errors declares the sentinel errors of the collections domain.
//
// Check them with errors.Is. Handlers translate them into HTTP statuses.
package errors

import (
	"errors"
	"fmt"
)

// storage
var (
	ErrMissing  = errors.New("missing")
	ErrTooMuch  = errors.New("too much")
	ErrConflict = errors.New("conflict")
)

// start-up
var ErrConfiguration = errors.New("configuration error")

// client input
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidFilter           = errors.New("invalid filter")
	ErrUnknownColumn           = errors.New("unknown column")
	ErrNonFilterableColumn     = errors.New("column is not filterable")
	ErrInvalidSortColumn       = errors.New("invalid sort column")
	ErrTooManyIds              = errors.New("too many ids")
	ErrNoRegisteredMatcher     = errors.New("matcher is not registered on the collection")
	ErrNoSuchMatcher           = errors.New("no such matcher")
	ErrNoRegisteredDataProduct = errors.New("data product is not registered on the collection")
	ErrNoSuchDataProduct       = errors.New("no such data product")
)

// state and lookup
var (
	ErrInvalidMatchState       = errors.New("invalid match state")
	ErrInvalidSelectionState   = errors.New("invalid selection state")
	ErrMatchNotFound           = errors.New("match not found")
	ErrSelectionNotFound       = errors.New("selection not found")
	ErrNoSuchCollection        = errors.New("no such collection")
	ErrNoSuchCollectionVersion = errors.New("no such collection version")
	ErrCollectionVersionExists = errors.New("collection version exists")
)

// upstream data
var (
	ErrDataPermission        = errors.New("data permission denied")
	ErrSourceDataUnavailable = errors.New("source data unavailable")
	ErrMissingLineage        = errors.New("missing lineage")
	ErrLineageVersion        = errors.New("lineage version mismatch")
)

// InputError describes what is wrong in a request.
//
// It unwraps to Kind, one of the sentinels above.
type InputError struct {
	Kind    error
	Message string
}

func (e *InputError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
}

func (e *InputError) Unwrap() error {
	return e.Kind
}

// NewInputError builds an InputError of kind with a formatted message.
func NewInputError(kind error, format string, args ...any) error {
	return &InputError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Message returns the message part of err when err is an InputError.
// Otherwise, it returns err.Error().
func Message(err error) string {
	ie := new(InputError)
	if errors.As(err, &ie) && ie.Message != "" {
		return ie.Message
	}
	return err.Error()
}
