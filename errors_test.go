package smklog

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorError(t *testing.T) {
	err := NewError(ErrorTypeNotFound, "module not found")

	expected := "not_found: module not found"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := NewErrorWithCause(ErrorTypeLocked, "commit failed", cause)

	expected := "locked: commit failed (caused by: database is locked)"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
}

func TestErrorIsMatchesType(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("specialization", 3))

	if !errors.Is(err, NewError(ErrorTypeNotFound, "")) {
		t.Error("Expected wrapped not found error to match by type")
	}
	if errors.Is(err, NewError(ErrorTypeDuplicate, "")) {
		t.Error("Expected type mismatch not to match")
	}
	if !IsNotFound(err) {
		t.Error("Expected IsNotFound to see through wrapping")
	}
}

func TestDisplayMessageFallsBackToMessage(t *testing.T) {
	err := InvalidInput("entity cannot be nil")
	if err.DisplayMessage() != "entity cannot be nil" {
		t.Errorf("unexpected display message %q", err.DisplayMessage())
	}
	err.Display = "Please fill in the name."
	if err.DisplayMessage() != "Please fill in the name." {
		t.Errorf("unexpected display message %q", err.DisplayMessage())
	}
}

func TestWithContextMerges(t *testing.T) {
	err := WithContext(NotFound("module", 9), map[string]interface{}{"specialization": 2})
	e, ok := AsError(err)
	if !ok {
		t.Fatal("Expected an Error")
	}
	if e.Context["id"] != 9 || e.Context["specialization"] != 2 {
		t.Errorf("unexpected context %v", e.Context)
	}

	foreign := WithContext(errors.New("boom"), map[string]interface{}{"k": "v"})
	if TypeOf(foreign) != ErrorTypeInternal {
		t.Errorf("Expected foreign error to become internal, got %s", TypeOf(foreign))
	}
	if WithContext(nil, nil) != nil {
		t.Error("Expected nil to stay nil")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err       error
		transient bool
	}{
		{NewError(ErrorTypeTimeout, ""), true},
		{NewError(ErrorTypeLocked, ""), true},
		{NewError(ErrorTypeConnection, ""), true},
		{Persistence("write failed", nil), true},
		{InvalidInput(""), false},
		{NotFound("x", 1), false},
		{MultipleResults("x", 2), false},
		{InvalidArgument("page", "bad"), false},
		{Migration("no source", nil), false},
		{errors.New("plain"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.transient {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.transient)
		}
	}
}
