package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := ErrElementNotFound.WithCause(fmt.Errorf("id foo"))
	if err.Error() != "element not found: id foo" {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if ErrAppCrashed.Error() != "exception in logs" {
		t.Errorf("unexpected message: %s", ErrAppCrashed.Error())
	}
}

func TestExecutionError_IsMatchesCopies(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same value", ErrAppCrashed, ErrAppCrashed, true},
		{"with cause", ErrDeviceCommunication.WithCause(errors.New("exit 1")), ErrDeviceCommunication, true},
		{"with details", ErrElementNotFound.WithDetails(map[string]interface{}{"id": "x"}), ErrElementNotFound, true},
		{"wrapped", fmt.Errorf("discovery: %w", ErrElementNotFound.WithMessage("no view")), ErrElementNotFound, true},
		{"different code", ErrTimeout, ErrDeviceCommunication, false},
		{"plain error", errors.New("boom"), ErrAppCrashed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("adb: exit status 1")
	err := ErrDeviceCommunication.WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}

func TestExecutionError_WithDetailsMerges(t *testing.T) {
	base := ErrElementNotFound.WithDetails(map[string]interface{}{"id": "a"})
	merged := base.WithDetails(map[string]interface{}{"screen": "b"})

	if merged.Details["id"] != "a" || merged.Details["screen"] != "b" {
		t.Errorf("unexpected details: %v", merged.Details)
	}
	if _, ok := base.Details["screen"]; ok {
		t.Error("WithDetails must not mutate the receiver")
	}
	if ErrElementNotFound.Details != nil {
		t.Error("predefined error was mutated")
	}
}

func TestIsFatalForDevice(t *testing.T) {
	if IsFatalForDevice(nil) {
		t.Error("nil must not be fatal")
	}
	if !IsFatalForDevice(ErrDeviceCommunication.WithCause(errors.New("x"))) {
		t.Error("communication error must be fatal")
	}
	if !IsFatalForDevice(fmt.Errorf("tap: %w", ErrTimeout)) {
		t.Error("timeout must be fatal")
	}
	if IsFatalForDevice(ErrAppCrashed) {
		t.Error("crash is scoped to the screen")
	}
	if IsFatalForDevice(ErrElementNotFound) {
		t.Error("element not found is scoped to discovery")
	}
}

func TestCategoryOf(t *testing.T) {
	if CategoryOf(nil) != ErrCategoryNone {
		t.Error("nil should have no category")
	}
	if CategoryOf(fmt.Errorf("x: %w", ErrAppCrashed)) != ErrCategoryApp {
		t.Error("expected app category")
	}
	if CategoryOf(errors.New("raw")) != ErrCategoryConnection {
		t.Error("expected connection category for untyped errors")
	}
}
