// Package core holds the shared types used across the SDK, including the
// error taxonomy that every public operation reports through.
package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on failure class
// without string matching.
type Kind int

const (
	// KindUnknown is the zero value; errors without an explicit kind.
	KindUnknown Kind = iota

	// KindProvider means an embedding or chat-completion call failed or
	// returned a malformed response.
	KindProvider

	// KindStore means a vector-store collection or point operation failed,
	// including dimension mismatches.
	KindStore

	// KindValidation means caller-supplied weights, limits, or filters were
	// out of contract. Raised before any external call is attempted.
	KindValidation

	// KindNotFound means a referenced id was absent where presence was
	// required.
	KindNotFound
)

// String returns a stable label for the kind.
func (k Kind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindStore:
		return "store"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a kind, the operation that failed,
// and the underlying cause.
type Error struct {
	Kind Kind
	Op   string // e.g. "embedding.EmbedBatch"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and operation name.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, op string, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// ErrorKind extracts the kind from err, walking the wrap chain.
// Returns KindUnknown for nil or unclassified errors.
func ErrorKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return ErrorKind(err) == kind
}
