package domain

import "errors"

var (
	// ErrUnauthorized means the credential is missing or invalid. Never
	// retried by the server.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProjectMismatch means the credential is valid but bound to no
	// project, so the caller can tell "fix your key" from "finish
	// onboarding".
	ErrProjectMismatch = errors.New("project_mismatch")

	// ErrQuotaExceeded means the project's current billing period is at
	// its tier limit. SDKs back off rather than retrying.
	ErrQuotaExceeded = errors.New("quota_exceeded")

	// ErrStorageFailure is the only caller-retryable class; the gateway
	// never partially applies an event, so retries are safe.
	ErrStorageFailure = errors.New("storage_failure")

	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidTraceID   = errors.New("invalid_trace_id")
)
