// Package errs defines the closed error-kind taxonomy used across the
// consensus core. Wrap and WrapErr return an error whose Unwrap exposes a
// sentinel kind (and, for WrapErr, the original error), so callers check
// kinds with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds below.
var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation")
	ErrTimeout             = errors.New("timeout")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrCancelled           = errors.New("cancelled")
	ErrUnsafe              = errors.New("unsafe")
	ErrCorruption          = errors.New("corruption")
	ErrContradiction       = errors.New("contradiction")
	ErrGateBlock           = errors.New("gate block")
	ErrInternal            = errors.New("internal")
)

// Wrap builds a new error of the given kind from a formatted message, so
// errors.Is(err, kind) holds. It has no underlying cause; WrapErr keeps an
// existing error's message and chain.
func Wrap(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a kind sentinel to an existing error.
func WrapErr(kind error, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, msg: err.Error(), cause: err}
}

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}
