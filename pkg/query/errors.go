package query

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures. Sentinel results are never errors.
type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedQuery
	KindUnknownCollection
	KindNotFound
	KindStoreFailure
	KindConflict
)

var (
	ErrMalformedQuery    = errors.New("malformed query")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrNotFound          = errors.New("not found")
	ErrStoreFailure      = errors.New("store failure")
	ErrConflict          = errors.New("conflict")
)

// ErrDuplicateKey is wrapped by Store implementations when an insert violates
// a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

func (k Kind) String() string {
	switch k {
	case KindMalformedQuery:
		return "malformed_query"
	case KindUnknownCollection:
		return "unknown_collection"
	case KindNotFound:
		return "not_found"
	case KindStoreFailure:
		return "store_failure"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindMalformedQuery:
		return ErrMalformedQuery
	case KindUnknownCollection:
		return ErrUnknownCollection
	case KindNotFound:
		return ErrNotFound
	case KindStoreFailure:
		return ErrStoreFailure
	case KindConflict:
		return ErrConflict
	default:
		return nil
	}
}

// Error is returned by every engine operation that fails.
type Error struct {
	Kind  Kind
	Op    string
	Param string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel()
	text := "query error"
	if msg != nil {
		text = msg.Error()
	}
	if e.Op != "" {
		text = e.Op + ": " + text
	}
	if e.Param != "" {
		text += fmt.Sprintf(" (parameter %q)", e.Param)
	}
	if e.Err != nil {
		text += ": " + e.Err.Error()
	}
	return text
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the package-level error matching e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the Kind from err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindUnknown
}

func malformed(op, param, format string, args ...any) *Error {
	return &Error{Kind: KindMalformedQuery, Op: op, Param: param, Err: fmt.Errorf(format, args...)}
}

func storeFailure(op string, err error) *Error {
	return &Error{Kind: KindStoreFailure, Op: op, Err: err}
}

// withOp stamps op onto errors raised below the facade.
func withOp(op string, err error) error {
	var qe *Error
	if errors.As(err, &qe) && qe.Op == "" {
		cp := *qe
		cp.Op = op
		return &cp
	}
	return err
}
