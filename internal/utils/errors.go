// Package utils provides shared helpers for the h5core container layer:
// error kinds and wrapping, scratch buffers, wire-width encoding of
// addresses and lengths, and overflow-checked arithmetic.
package utils

import (
	"errors"
	"fmt"
)

// The closed set of failure kinds surfaced by the container layer.
// Callers classify failures with errors.Is against these sentinels.
var (
	ErrIO          = errors.New("i/o failure")
	ErrNotHDF5     = errors.New("not an HDF5 file")
	ErrBadValue    = errors.New("bad value")
	ErrBadRange    = errors.New("value out of range")
	ErrTruncated   = errors.New("truncated file")
	ErrCantInit    = errors.New("initialization failed")
	ErrCantOpen    = errors.New("cannot open file")
	ErrUnsupported = errors.New("unsupported feature")
	ErrCantGet     = errors.New("cannot get value")
	ErrCantSet     = errors.New("cannot set value")
	ErrCantCreate  = errors.New("cannot create object")
)

// H5Error is a contextual error wrapper.
type H5Error struct {
	Context string
	Cause   error
}

// Error implements the error interface.
func (e *H5Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Context, e.Cause)
}

// Unwrap provides compatibility with errors.Is and errors.Unwrap.
func (e *H5Error) Unwrap() error {
	return e.Cause
}

// WrapError creates a contextual error. Returns nil when cause is nil.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &H5Error{
		Context: context,
		Cause:   cause,
	}
}

// Kindf builds an error of the given kind with a formatted context message.
// The result satisfies errors.Is(err, kind).
func Kindf(kind error, format string, args ...interface{}) error {
	return &H5Error{
		Context: fmt.Sprintf(format, args...),
		Cause:   kind,
	}
}
