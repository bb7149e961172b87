// Package errors provides error handling for embcluster.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Marking errors with a reference error for errors.Is checks
//   - User-facing hints
//
// Usage:
//
//	// Wrap with context
//	if err := tx.Commit(); err != nil {
//	    return errors.WrapStore(err, "commit cluster assignments")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrDimensionMismatch) {
//	    // a stored vector has the wrong width
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Assertions
var (
	AssertionFailedf   = crdb.AssertionFailedf
	IsAssertionFailure = crdb.IsAssertionFailure
)

// Sentinel errors for the clustering pipeline.
// Use these with errors.Is() after any amount of wrapping.
var (
	// ErrDimensionMismatch indicates a decoded vector does not have the configured width.
	ErrDimensionMismatch = New("vector dimension mismatch")

	// ErrDecode indicates a stored vector could not be parsed at all.
	ErrDecode = New("vector decode failed")

	// ErrStore marks any failure talking to the persistent store.
	ErrStore = New("store operation failed")
)

// DimensionMismatchError reports a stored vector whose decoded length differs
// from the configured dimension. ID is the row id, or nil when unknown.
type DimensionMismatchError struct {
	ID       any
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	if e.ID == nil {
		return fmt.Sprintf("embedding size mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("embedding size mismatch for id=%v: expected %d, got %d", e.ID, e.Expected, e.Actual)
}

// Is lets errors.Is match DimensionMismatchError against ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// NewDimensionMismatch builds a DimensionMismatchError with a stack trace.
func NewDimensionMismatch(id any, expected, actual int) error {
	return WithStack(&DimensionMismatchError{ID: id, Expected: expected, Actual: actual})
}

// NewDecodeError creates an error matching ErrDecode with a formatted message.
func NewDecodeError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrDecode)
}

// WrapDecode wraps err with context and marks it as ErrDecode.
func WrapDecode(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, format, args...), ErrDecode)
}

// WrapStore wraps err with context and marks it as ErrStore.
// Returns nil when err is nil so it can wrap call results directly.
func WrapStore(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, format, args...), ErrStore)
}

// IsDimensionMismatch checks if an error is or wraps ErrDimensionMismatch
func IsDimensionMismatch(err error) bool {
	return err != nil && Is(err, ErrDimensionMismatch)
}

// IsDecodeError checks if an error is or wraps ErrDecode
func IsDecodeError(err error) bool {
	return err != nil && Is(err, ErrDecode)
}

// IsStoreError checks if an error is or wraps ErrStore
func IsStoreError(err error) bool {
	return err != nil && Is(err, ErrStore)
}
