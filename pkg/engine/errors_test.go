package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       *EngineError
		transient bool
		throttled bool
		conflict  bool
		permanent bool
		retryable bool
	}{
		{
			name:      "transient",
			err:       NewTransientError("service unavailable", nil),
			transient: true,
			retryable: true,
		},
		{
			name:      "throttled",
			err:       NewThrottledError("too many requests", nil),
			throttled: true,
			retryable: true,
		},
		{
			name:      "conflict",
			err:       NewConflictError("resource is busy", nil),
			conflict:  true,
			retryable: true,
		},
		{
			name:      "permanent",
			err:       NewPermanentError("not authorized", nil),
			permanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}
			if got := IsThrottled(tt.err); got != tt.throttled {
				t.Errorf("IsThrottled = %v, want %v", got, tt.throttled)
			}
			if got := IsConflict(tt.err); got != tt.conflict {
				t.Errorf("IsConflict = %v, want %v", got, tt.conflict)
			}
			if got := IsPermanent(tt.err); got != tt.permanent {
				t.Errorf("IsPermanent = %v, want %v", got, tt.permanent)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestErrorClassification_WrappedErrors(t *testing.T) {
	inner := NewThrottledError("too many requests", nil)
	wrapped := fmt.Errorf("deleting instance: %w", inner)

	if !IsThrottled(wrapped) {
		t.Error("Expected IsThrottled to see through fmt.Errorf wrapping")
	}
	if !IsRetryable(wrapped) {
		t.Error("Expected IsRetryable to see through fmt.Errorf wrapping")
	}
	if IsThrottled(errors.New("plain")) {
		t.Error("Expected IsThrottled to be false for a plain error")
	}
}

func TestIsAlreadyGone(t *testing.T) {
	gone := NewAlreadyGoneError("instance not found", nil)
	if !IsAlreadyGone(gone) {
		t.Error("Expected IsAlreadyGone for a not-found error")
	}
	if IsRetryable(gone) {
		t.Error("A not-found response must not be retried")
	}
	if IsAlreadyGone(NewConflictError("busy", nil)) {
		t.Error("Expected IsAlreadyGone to be false for a conflict")
	}
}

func TestFatalErrorPredicates(t *testing.T) {
	conf := NewConfigurationError("bad descriptor", nil)
	if !IsConfiguration(conf) {
		t.Error("Expected IsConfiguration for a configuration error")
	}
	if IsRetryable(conf) {
		t.Error("Configuration errors must not be retryable")
	}

	disc := NewDiscoveryError("search failed", errors.New("boom"))
	if !IsDiscoveryFailure(disc) {
		t.Error("Expected IsDiscoveryFailure for a discovery error")
	}
	if disc.Operation != "search" {
		t.Errorf("Expected operation search, got %s", disc.Operation)
	}
}

func TestEngineError_Builders(t *testing.T) {
	err := NewConflictError("volume attached", nil).
		WithResource("ocid1.volume.oc1..v1").
		WithOperation("delete").
		WithDetail("attached_to", "ocid1.instance.oc1..i1")

	if err.Resource != "ocid1.volume.oc1..v1" {
		t.Errorf("Expected resource to be set, got %s", err.Resource)
	}
	if err.Operation != "delete" {
		t.Errorf("Expected operation to be set, got %s", err.Operation)
	}
	if err.Details["attached_to"] != "ocid1.instance.oc1..i1" {
		t.Errorf("Expected detail to be set, got %v", err.Details)
	}

	msg := err.Error()
	for _, part := range []string{"CONFLICT", "volume attached", "delete", "ocid1.volume.oc1..v1"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Expected message to contain %q, got %q", part, msg)
		}
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransientError("delete failed", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestAsEngineError(t *testing.T) {
	if AsEngineError(nil) != nil {
		t.Error("Expected nil in, nil out")
	}

	known := NewThrottledError("slow down", nil)
	if got := AsEngineError(known); got != known {
		t.Error("Expected a classified error to pass through unchanged")
	}

	plain := errors.New("something broke")
	wrapped := AsEngineError(plain)
	if wrapped.Class != ErrorClassPermanent {
		t.Errorf("Expected unknown errors to classify permanent, got %s", wrapped.Class)
	}
	if !errors.Is(wrapped, plain) {
		t.Error("Expected the original error to remain in the chain")
	}
}

func TestEngineError_Is(t *testing.T) {
	err := NewConflictError("busy", nil)

	if !errors.Is(err, &EngineError{Class: ErrorClassConflict}) {
		t.Error("Expected class-only matching")
	}
	if !errors.Is(err, &EngineError{Code: ErrCodeConflict}) {
		t.Error("Expected code-only matching")
	}
	if errors.Is(err, &EngineError{Class: ErrorClassTransient}) {
		t.Error("Expected mismatched class to fail")
	}
}
