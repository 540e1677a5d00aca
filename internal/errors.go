package internal

import (
	"errors"
	"fmt"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrNoDataset      = errors.New("no dataset loaded for tenant")
	ErrNoIndex        = errors.New("no vector index available")
	ErrInvalidTenant  = errors.New("invalid tenant id")
	ErrQueryTooShort  = errors.New("query must be at least 10 characters")
	ErrMisaligned     = errors.New("embedding store misaligned with dataset")
)

// Kind classifies failures for callers that need a machine-readable
// category alongside the message.
type Kind string

const (
	KindInput       Kind = "input"
	KindModel       Kind = "model"
	KindIndex       Kind = "index"
	KindCache       Kind = "cache"
	KindConsistency Kind = "consistency"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind of an error chain, defaulting to input for
// bare sentinels that describe caller mistakes.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrMisaligned):
		return KindConsistency
	case errors.Is(err, ErrNoIndex):
		return KindIndex
	default:
		return KindInput
	}
}
