package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, app_crashed, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so copies made with WithCause/WithDetails still
// satisfy errors.Is against the predefined values.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// ErrElementNotFound is returned when a resource id is absent from a
	// hierarchy snapshot. It aborts discovery for the device.
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}

	// ErrAppCrashed is returned when the device log matches the crash
	// signature. It fails the current screen only.
	ErrAppCrashed = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "app_crashed",
		Message:  "exception in logs",
	}

	// ErrDeviceCommunication wraps any failed device-control call.
	// It is fatal for the current device.
	ErrDeviceCommunication = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "device_communication",
		Message:  "device communication error",
	}

	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}

	ErrNoDevices = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "no_devices",
		Message:  "no attached devices",
	}

	ErrBuildFailed = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "build_failed",
		Message:  "application build failed",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// IsFatalForDevice reports whether err must stop all further work on the
// device (communication failures and timeouts).
func IsFatalForDevice(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDeviceCommunication) || errors.Is(err, ErrTimeout)
}
