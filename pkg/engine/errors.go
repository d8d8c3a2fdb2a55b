package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies an error for retry and handling decisions.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates the cloud API rejected the call due to rate limiting.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates the resource is busy or still referenced by
	// something that has not finished settling.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a failure that will not succeed on retry.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Common error codes used throughout the engine.
const (
	ErrCodeConfiguration   = "CONFIGURATION"
	ErrCodeDiscoveryFailed = "DISCOVERY_FAILED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeServiceError    = "SERVICE_ERROR"
	ErrCodeWaitTimeout     = "WAIT_TIMEOUT"
	ErrCodeProtected       = "PROTECTED"
	ErrCodeCancelled       = "CANCELLED"
	ErrCodeNotEmpty        = "COMPARTMENT_NOT_EMPTY"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// EngineError is the standard error type used throughout the engine.
// It carries an error class driving retry behavior, an optional code for
// programmatic matching, and context about which resource and operation
// produced it.
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// Resource is the identifier of the resource involved, if any.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation that failed (e.g., "delete", "search").
	Operation string `json:"operation,omitempty"`

	// Cause is the underlying error, if any.
	Cause error `json:"-"`

	// Details contains additional structured context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation: %s)", msg, e.Operation)
	}
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource: %s)", msg, e.Resource)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by class and code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if t.Class != "" && t.Class != e.Class {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return true
}

// NewTransientError creates an error that may succeed on retry.
func NewTransientError(message string, cause error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Cause:   cause,
	}
}

// NewThrottledError creates a rate-limit error.
func NewThrottledError(message string, cause error) *EngineError {
	return &EngineError{
		Class:   ErrorClassThrottled,
		Message: message,
		Code:    ErrCodeRateLimited,
		Cause:   cause,
	}
}

// NewConflictError creates a resource-busy error.
func NewConflictError(message string, cause error) *EngineError {
	return &EngineError{
		Class:   ErrorClassConflict,
		Message: message,
		Code:    ErrCodeConflict,
		Cause:   cause,
	}
}

// NewPermanentError creates an error that will not succeed on retry.
func NewPermanentError(message string, cause error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError creates a fatal configuration error. Configuration
// errors abort a run before any deletion is attempted.
func NewConfigurationError(message string, cause error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Code:    ErrCodeConfiguration,
		Cause:   cause,
	}
}

// NewDiscoveryError creates a fatal discovery error. Discovery errors abort
// the run; without a resource list there is nothing to execute.
func NewDiscoveryError(message string, cause error) *EngineError {
	return &EngineError{
		Class:     ErrorClassPermanent,
		Message:   message,
		Code:      ErrCodeDiscoveryFailed,
		Operation: "search",
		Cause:     cause,
	}
}

// NewAlreadyGoneError creates the normalized form of a "not found" response.
// It is not treated as a failure: the executor maps it to AlreadyGone.
func NewAlreadyGoneError(message string, cause error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Code:    ErrCodeNotFound,
		Cause:   cause,
	}
}

// WithResource attaches a resource identifier to the error.
func (e *EngineError) WithResource(resource string) *EngineError {
	e.Resource = resource
	return e
}

// WithOperation attaches the failing operation to the error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode sets the machine-readable error code.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a structured detail to the error.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsTransient reports whether the error is classified as transient.
func IsTransient(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Class == ErrorClassTransient
	}
	return false
}

// IsThrottled reports whether the error is classified as throttled.
func IsThrottled(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Class == ErrorClassThrottled
	}
	return false
}

// IsConflict reports whether the error is classified as a conflict.
func IsConflict(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Class == ErrorClassConflict
	}
	return false
}

// IsPermanent reports whether the error is classified as permanent.
func IsPermanent(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Class == ErrorClassPermanent
	}
	return false
}

// IsRetryable reports whether a delete attempt hitting this error should be
// retried: transient, throttled, and conflict responses all qualify.
func IsRetryable(err error) bool {
	return IsTransient(err) || IsThrottled(err) || IsConflict(err)
}

// IsAlreadyGone reports whether the error is a normalized "not found"
// response. The executor counts these as success.
func IsAlreadyGone(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Code == ErrCodeNotFound
	}
	return false
}

// IsConfiguration reports whether the error is a fatal configuration error.
func IsConfiguration(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Code == ErrCodeConfiguration
	}
	return false
}

// IsDiscoveryFailure reports whether the error is a fatal discovery error.
func IsDiscoveryFailure(err error) bool {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Code == ErrCodeDiscoveryFailed
	}
	return false
}

// AsEngineError converts any error into an *EngineError, wrapping unknown
// errors as permanent so callers always get a classified value.
func AsEngineError(err error) *EngineError {
	if err == nil {
		return nil
	}
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr
	}
	return NewPermanentError(err.Error(), err)
}
