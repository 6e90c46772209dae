package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNullResource is matched by every NullResourceError.
	ErrNullResource = errors.New("null resource")
	// ErrInvalidValue is matched by every ValidationError.
	ErrInvalidValue = errors.New("invalid value")
)

// NullResourceError reports an operation on a handle that owns no backend
// object, either because it was never created or because it was moved from
// or released. It always indicates a programming error.
type NullResourceError struct {
	Kind Kind
	Op   string
}

func (e *NullResourceError) Error() string {
	return fmt.Sprintf("%s: %s handle has no backing resource", e.Op, e.Kind)
}

func (e *NullResourceError) Is(target error) bool { return target == ErrNullResource }

// OperationError reports an error latched by the graphics API after a call.
type OperationError struct {
	Op    string
	Code  Enum
	Cause string
}

func (e *OperationError) Error() string {
	if e.Cause == "" {
		return fmt.Sprintf("%s: backend error %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: backend error %s: %s", e.Op, e.Code, e.Cause)
}

// ValidationError is returned by DrawState setters when a value is not
// acceptable for the field. The state is left unchanged.
type ValidationError struct {
	Field string
	Value Enum
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %s", e.Field, e.Value)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidValue }
