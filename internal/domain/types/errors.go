// Package types contains the error kinds shared across the domain packages.
package types

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	// ErrInsufficientData means an aggregation or correlation had too few
	// usable data points after filtering.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDegenerateBand means a cut-point band has upper == lower.
	ErrDegenerateBand = errors.New("degenerate cut-point band")
	// ErrNotFound means the requested contract, session or band does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStar means a star value outside 1..5.
	ErrInvalidStar = errors.New("invalid star value")
	// ErrInvalidStarType means an unknown star type tag.
	ErrInvalidStarType = errors.New("invalid star type")
	// ErrLengthMismatch means two paired series differ in length.
	ErrLengthMismatch = errors.New("series length mismatch")
	// ErrInvalidInput covers malformed rows and parameters.
	ErrInvalidInput = errors.New("invalid input")
)

// KindError ties an operation name and a sentinel kind to an optional cause.
type KindError struct {
	Op    string
	Kind  error
	Cause error
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// WrapKind returns an error of the given kind raised by op, wrapping cause.
func WrapKind(op string, kind, cause error) error {
	return &KindError{Op: op, Kind: kind, Cause: cause}
}

func (e *KindError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Cause)
}

// Is reports whether target is the error's kind.
func (e *KindError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause, if any.
func (e *KindError) Unwrap() error {
	return e.Cause
}
