package oci

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oracle/oci-go-sdk/v65/common"

	"github.com/ocinuke/ocinuke/pkg/engine"
)

// mapError converts an OCI SDK error into a classified engine error. The
// classification drives the executor's retry decisions: conflicts, throttling,
// server errors, and network failures retry; any other service response is
// permanent. Returns error rather than *engine.EngineError so a nil result
// stays a nil interface.
func mapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return engine.NewTransientError("call timed out", err).WithOperation(operation)
	}
	if errors.Is(err, context.Canceled) {
		return engine.NewPermanentError("call cancelled", err).
			WithCode(engine.ErrCodeCancelled).
			WithOperation(operation)
	}

	var svcErr common.ServiceError
	if !errors.As(err, &svcErr) {
		// Network failures, DNS errors, connection resets. The request may
		// never have reached the service, so retrying is safe.
		return engine.NewTransientError(err.Error(), err).WithOperation(operation)
	}

	status := svcErr.GetHTTPStatusCode()
	message := svcErr.GetMessage()
	if message == "" {
		message = fmt.Sprintf("service returned status %d", status)
	}

	switch {
	case status == http.StatusNotFound:
		return engine.NewAlreadyGoneError(message, err).WithOperation(operation)

	case status == http.StatusConflict:
		// Covers both "Conflict" and "IncorrectState": the resource is still
		// referenced by something that has not finished deleting.
		return engine.NewConflictError(message, err).WithOperation(operation)

	case status == http.StatusTooManyRequests:
		return engine.NewThrottledError(message, err).WithOperation(operation)

	case status >= http.StatusInternalServerError:
		return engine.NewTransientError(message, err).
			WithCode(engine.ErrCodeServiceError).
			WithDetail("status", status).
			WithOperation(operation)

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return engine.NewPermanentError(message, err).
			WithCode(engine.ErrCodeUnauthorized).
			WithDetail("status", status).
			WithOperation(operation)

	default:
		return engine.NewPermanentError(message, err).
			WithCode(engine.ErrCodeServiceError).
			WithDetail("status", status).
			WithDetail("service_code", svcErr.GetCode()).
			WithOperation(operation)
	}
}
