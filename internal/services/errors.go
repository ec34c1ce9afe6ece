package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"walkeryt/internal/runstore"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")

	// ErrFatalSetup marks failures that abort a run before any audio exists:
	// download, split, or buffer creation.
	ErrFatalSetup = errors.New("setup failed")
	// ErrDegradedSegment marks a segment whose separation produced no output.
	// The run skips it and continues.
	ErrDegradedSegment = errors.New("segment degraded")
	// ErrProducerDied marks a background worker that exited before the buffer
	// reached the readiness threshold.
	ErrProducerDied = errors.New("producer died before first chunk")
	// ErrTimeout marks a readiness wait that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrCleanup marks a failure to terminate a process or remove a file.
	// Cleanup errors are logged, never returned as run failures.
	ErrCleanup = errors.New("cleanup failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a run error to the status persisted in the run history.
func FailureStatus(err error) runstore.Status {
	switch {
	case err == nil:
		return runstore.StatusFailed
	case errors.Is(err, context.Canceled):
		return runstore.StatusCancelled
	case errors.Is(err, ErrProducerDied):
		return runstore.StatusProducerDied
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return runstore.StatusTimedOut
	default:
		return runstore.StatusFailed
	}
}

// Diagnostic returns the short one-line explanation shown to the user when a
// run fails.
func Diagnostic(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrProducerDied):
		return "processing stopped before the first chunk was ready"
	case errors.Is(err, ErrTimeout):
		return "timed out waiting for the first chunk"
	default:
		return truncate(err.Error(), 160)
	}
}

func truncate(msg string, limit int) string {
	msg = strings.TrimSpace(msg)
	if len(msg) <= limit {
		return msg
	}
	return msg[:limit-3] + "..."
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
