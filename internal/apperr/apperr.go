// Package apperr defines the error kinds surfaced by the scheduling core.
//
// Every error returned across a package boundary wraps exactly one kind so
// callers can branch with errors.Is without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("authorization failed")
	ErrUpstream     = errors.New("upstream failure")
	ErrNotFound     = errors.New("not found")
)

// Error carries a kind, the operation that failed and the underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, format string, args ...any) error {
	return newError(ErrValidation, op, fmt.Errorf(format, args...))
}

func NotFound(op string, format string, args ...any) error {
	return newError(ErrNotFound, op, fmt.Errorf(format, args...))
}

// Unauthorized wraps err as an authorization failure. err may be nil.
func Unauthorized(op string, err error) error {
	return newError(ErrUnauthorized, op, err)
}

// Upstream wraps err as an upstream failure. err may be nil.
func Upstream(op string, err error) error {
	return newError(ErrUpstream, op, err)
}

// KindOf returns the kind wrapped by err, or nil when err is unclassified.
func KindOf(err error) error {
	for _, k := range []error{ErrValidation, ErrUnauthorized, ErrUpstream, ErrNotFound} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
