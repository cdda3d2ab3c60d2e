package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBatchCancelled is returned as a run's ErrorDetails when the caller
// cancelled an in-flight batch.
var ErrBatchCancelled = errors.New("batch cancelled")

// ValidationError reports a batch that is not executable: an empty
// operation list or unresolved conflicts.
type ValidationError struct {
	Reason    string
	Conflicts int
	Cause     error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("batch validation failed: %s", e.Reason)
	if e.Conflicts > 0 {
		msg += fmt.Sprintf(" (%d unresolved conflicts)", e.Conflicts)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// CircularDependencyError reports a dependency cycle found at scheduling
// time. Remaining lists the targets that could not be ordered.
type CircularDependencyError struct {
	Remaining []TargetID
}

func (e *CircularDependencyError) Error() string {
	if len(e.Remaining) == 0 {
		return "circular dependency detected"
	}
	ids := make([]string, len(e.Remaining))
	for i, id := range e.Remaining {
		ids[i] = string(id)
	}
	return fmt.Sprintf("circular dependency detected among targets: %s", strings.Join(ids, ", "))
}

// OperationFailureError reports a single operation that exhausted its
// retries during execution.
type OperationFailureError struct {
	TargetID TargetID
	Attempts int
	Err      error
}

func (e *OperationFailureError) Error() string {
	return fmt.Sprintf("operation for target %s failed after %d attempts: %v",
		e.TargetID, e.Attempts, e.Err)
}

func (e *OperationFailureError) Unwrap() error {
	return e.Err
}

// BatchRunningError rejects a second Execute while a run is in flight.
type BatchRunningError struct {
	Status RunStatus
}

func (e *BatchRunningError) Error() string {
	return "a batch is already running on this manager"
}
