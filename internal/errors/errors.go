package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a machine-readable scratchpad error code.
type ErrorCode string

const (
	ErrInvalidID           ErrorCode = "INVALID_ID"             // 400
	ErrInvalidIndex        ErrorCode = "INVALID_INDEX"          // 400
	ErrAmbiguousAddressing ErrorCode = "AMBIGUOUS_ADDRESSING"   // 400
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"           // 403
	ErrNotFound            ErrorCode = "NOT_FOUND"              // 404
	ErrValidationTimeout   ErrorCode = "VALIDATION_TIMEOUT"     // 408
	ErrCapacityLimit       ErrorCode = "CAPACITY_LIMIT_REACHED" // 409
	ErrValidation          ErrorCode = "VALIDATION_ERROR"       // 422
	ErrConfig              ErrorCode = "CONFIG_ERROR"           // 500
	ErrInternal            ErrorCode = "INTERNAL"               // 500
	ErrShuttingDown        ErrorCode = "SHUTTING_DOWN"          // 503
)

// ScratchError represents a structured error with code, status, and details.
type ScratchError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ScratchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetail returns e after setting a single details entry.
func (e *ScratchError) WithDetail(key string, value any) *ScratchError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewInvalidID creates a 400 error for identifiers that fail the charset rules.
func NewInvalidID(id string) *ScratchError {
	return &ScratchError{
		Code:    ErrInvalidID,
		Status:  400,
		Message: "scratchpad identifier contains invalid characters",
		Details: map[string]any{"scratch_id": id},
	}
}

// NewAlreadyExists creates a 400 error for a create that collides with an existing pad.
func NewAlreadyExists(id string) *ScratchError {
	return &ScratchError{
		Code:    ErrInvalidID,
		Status:  400,
		Message: fmt.Sprintf("scratchpad %s already exists", id),
		Details: map[string]any{"scratch_id": id, "reason": "already_exists"},
	}
}

// NewInvalidIndex creates a 400 error for a cell index outside the pad.
func NewInvalidIndex(index int) *ScratchError {
	return &ScratchError{
		Code:    ErrInvalidIndex,
		Status:  400,
		Message: fmt.Sprintf("cell index %d out of range", index),
		Details: map[string]any{"index": index},
	}
}

// NewAmbiguousAddressing creates a 400 error for when both cell_id and index are provided.
func NewAmbiguousAddressing() *ScratchError {
	return &ScratchError{
		Code:    ErrAmbiguousAddressing,
		Status:  400,
		Message: "cannot specify both cell_id and index; use one addressing mode",
	}
}

// NewUnauthorized creates a 403 error for access outside the caller's allowed namespaces.
func NewUnauthorized(msg string) *ScratchError {
	return &ScratchError{
		Code:    ErrUnauthorized,
		Status:  403,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing scratchpad.
func NewNotFound(id string) *ScratchError {
	return &ScratchError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("scratchpad %s not found", id),
		Details: map[string]any{"scratch_id": id},
	}
}

// NewNotFoundf creates a 404 error for any other missing entity (cell, schema, namespace).
func NewNotFoundf(format string, args ...any) *ScratchError {
	return &ScratchError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewValidationTimeout creates a 408 error when validation exceeds its deadline.
func NewValidationTimeout() *ScratchError {
	return &ScratchError{
		Code:    ErrValidationTimeout,
		Status:  408,
		Message: "validation timed out",
	}
}

// NewCapacityLimit creates a 409 error when a configured ceiling is hit.
// A zero limit is omitted from details.
func NewCapacityLimit(msg string, limit int) *ScratchError {
	e := &ScratchError{
		Code:    ErrCapacityLimit,
		Status:  409,
		Message: msg,
	}
	if limit > 0 {
		e.Details = map[string]any{"limit": limit}
	}
	return e
}

// NewValidation creates a 422 error for malformed input or a failed mandatory validation.
func NewValidation(msg string) *ScratchError {
	return &ScratchError{
		Code:    ErrValidation,
		Status:  422,
		Message: msg,
	}
}

// NewConfig creates a 500 error for storage or feature misconfiguration.
func NewConfig(msg string) *ScratchError {
	return &ScratchError{
		Code:    ErrConfig,
		Status:  500,
		Message: msg,
	}
}

// NewShuttingDown creates a 503 error for requests arriving after shutdown began.
func NewShuttingDown() *ScratchError {
	return &ScratchError{
		Code:    ErrShuttingDown,
		Status:  503,
		Message: "server is shutting down",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ScratchError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ScratchError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is a ScratchError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ScratchError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// As extracts a ScratchError from err, converting anything else to INTERNAL.
func As(err error) *ScratchError {
	if err == nil {
		return nil
	}
	var sErr *ScratchError
	if stderrors.As(err, &sErr) {
		return sErr
	}
	return NewInternal(err)
}
