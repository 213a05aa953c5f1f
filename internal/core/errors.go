package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a pipeline failure so boundaries (HTTP, CLI) can react
// without string-matching error text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork           // timeout, DNS, connection reset
	KindRate              // HTTP 429 or 5xx after retry exhaustion
	KindBadQuery          // HTTP 400
	KindRemote            // other upstream 4xx
	KindDecode            // invalid JSON from upstream
	KindNotFound          // address could not be resolved
	KindDB                // persistence failure
	KindDeadline          // run deadline elapsed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRate:
		return "rate"
	case KindBadQuery:
		return "bad_query"
	case KindRemote:
		return "remote"
	case KindDecode:
		return "decode"
	case KindNotFound:
		return "not_found"
	case KindDB:
		return "db"
	case KindDeadline:
		return "deadline"
	default:
		return "unknown"
	}
}

// Error is the typed error carried across component boundaries.
type Error struct {
	Kind ErrorKind
	Op   string // operation that failed, e.g. "fetch hpd_violations"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and operation name.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a typed error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from an error chain. Context deadline errors
// classify as KindDeadline even when they were never wrapped.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindDeadline
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code the web boundary must return.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadQuery:
		return http.StatusBadRequest
	case KindRate, KindNetwork:
		return http.StatusServiceUnavailable
	case KindRemote, KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
