// Package qrerr defines the closed set of failure kinds a QR decode can end with.
//
// Every stage of the core returns one of these kinds wrapped in an *Error, so
// callers can classify a failure with errors.Is against ErrNotFound, ErrFormat
// or ErrChecksum regardless of which stage produced it.
package qrerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the terminal failure kinds of a decode attempt.
type Kind int

const (
	// KindNotFound means no symbol could be located or sampled.
	KindNotFound Kind = iota + 1
	// KindFormat means structural metadata could not be recovered.
	KindFormat
	// KindChecksum means Reed-Solomon correction could not converge.
	KindChecksum
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindFormat:
		return "format error"
	case KindChecksum:
		return "checksum error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified decode failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. This lets the
// package sentinels match any error carrying their kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is classification.
var (
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrFormat   = &Error{Kind: KindFormat}
	ErrChecksum = &Error{Kind: KindChecksum}
)

// NotFound builds a KindNotFound error for op.
func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, format, args...)
}

// Format builds a KindFormat error for op.
func Format(op, format string, args ...any) error {
	return newError(KindFormat, op, format, args...)
}

// Checksum builds a KindChecksum error for op.
func Checksum(op, format string, args ...any) error {
	return newError(KindChecksum, op, format, args...)
}

func newError(kind Kind, op, format string, args ...any) error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the failure kind from err, or 0 if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
