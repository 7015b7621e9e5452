package errors

import (
	"fmt"
	"testing"
)

func TestScratchError_Error(t *testing.T) {
	err := &ScratchError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "scratchpad pad-a not found",
	}

	expected := "NOT_FOUND: scratchpad pad-a not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *ScratchError
		code   ErrorCode
		status int
	}{
		{"invalid id", NewInvalidID("bad id"), ErrInvalidID, 400},
		{"already exists", NewAlreadyExists("pad"), ErrInvalidID, 400},
		{"invalid index", NewInvalidIndex(7), ErrInvalidIndex, 400},
		{"ambiguous", NewAmbiguousAddressing(), ErrAmbiguousAddressing, 400},
		{"unauthorized", NewUnauthorized("nope"), ErrUnauthorized, 403},
		{"not found", NewNotFound("pad"), ErrNotFound, 404},
		{"not found f", NewNotFoundf("cell %s not found", "c1"), ErrNotFound, 404},
		{"timeout", NewValidationTimeout(), ErrValidationTimeout, 408},
		{"capacity", NewCapacityLimit("full", 3), ErrCapacityLimit, 409},
		{"validation", NewValidation("bad"), ErrValidation, 422},
		{"config", NewConfig("bad config"), ErrConfig, 500},
		{"shutdown", NewShuttingDown(), ErrShuttingDown, 503},
		{"internal", NewInternal(fmt.Errorf("boom")), ErrInternal, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewAlreadyExists_Details(t *testing.T) {
	err := NewAlreadyExists("pad")
	if err.Details["scratch_id"] != "pad" {
		t.Errorf("Details[scratch_id] = %v, want pad", err.Details["scratch_id"])
	}
	if err.Details["reason"] != "already_exists" {
		t.Errorf("Details[reason] = %v, want already_exists", err.Details["reason"])
	}
}

func TestNewCapacityLimit_Details(t *testing.T) {
	err := NewCapacityLimit("too many cells", 4)
	if err.Details["limit"] != 4 {
		t.Errorf("Details[limit] = %v, want 4", err.Details["limit"])
	}

	err = NewCapacityLimit("maximum scratchpad capacity reached", 0)
	if err.Details != nil {
		t.Errorf("Details = %v, want nil", err.Details)
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestWithDetail(t *testing.T) {
	err := NewValidation("cell validation failed").WithDetail("errors", []string{"x"})
	if _, ok := err.Details["errors"]; !ok {
		t.Error("Details[errors] missing")
	}
}

func TestIs(t *testing.T) {
	err := NewNotFound("pad")
	if !Is(err, ErrNotFound) {
		t.Error("Is(err, ErrNotFound) = false, want true")
	}
	if Is(err, ErrInvalidID) {
		t.Error("Is(err, ErrInvalidID) = true, want false")
	}

	wrapped := fmt.Errorf("read: %w", err)
	if !Is(wrapped, ErrNotFound) {
		t.Error("Is(wrapped, ErrNotFound) = false, want true")
	}

	if Is(fmt.Errorf("plain"), ErrNotFound) {
		t.Error("Is(plain error) = true, want false")
	}
	if Is(nil, ErrNotFound) {
		t.Error("Is(nil) = true, want false")
	}
}

func TestAs(t *testing.T) {
	if As(nil) != nil {
		t.Error("As(nil) should be nil")
	}

	got := As(fmt.Errorf("wrapped: %w", NewConfig("dim")))
	if got.Code != ErrConfig {
		t.Errorf("Code = %q, want %q", got.Code, ErrConfig)
	}

	got = As(fmt.Errorf("disk full"))
	if got.Code != ErrInternal {
		t.Errorf("Code = %q, want %q", got.Code, ErrInternal)
	}
	if got.Message != "disk full" {
		t.Errorf("Message = %q, want %q", got.Message, "disk full")
	}
}
