// Package batch coordinates validation, conflict resolution, and
// execution of batched record updates. It owns no transport: the caller
// supplies the single external capability of applying one update to one
// record.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/arthur-debert/batchkit/pkg/batch/core"
	"github.com/arthur-debert/batchkit/pkg/batch/execution"
)

// Updater is the external update capability consumed by batch runs.
type Updater = execution.Updater

// UpdateErrorKind classifies a failed update.
type UpdateErrorKind string

const (
	UpdateErrNotFound     UpdateErrorKind = "not_found"
	UpdateErrUnauthorized UpdateErrorKind = "unauthorized"
	UpdateErrConflict     UpdateErrorKind = "conflict"
	UpdateErrNetwork      UpdateErrorKind = "network"
	UpdateErrValidation   UpdateErrorKind = "validation"
)

// UpdateError is the typed failure an Updater yields. The executor
// retries every kind uniformly; the kind exists so callers can present
// the cause.
type UpdateError struct {
	Kind     UpdateErrorKind
	TargetID core.TargetID
	Err      error
}

func (e *UpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("update of %s failed (%s): %v", e.TargetID, e.Kind, e.Err)
	}
	return fmt.Sprintf("update of %s failed (%s)", e.TargetID, e.Kind)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// UpdateErrorKindOf extracts the kind from an error chain, or "" when the
// error carries no UpdateError.
func UpdateErrorKindOf(err error) UpdateErrorKind {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

// UpdaterFunc adapts a function to the Updater interface.
type UpdaterFunc func(ctx context.Context, id core.TargetID, data map[string]interface{},
	strategy core.MergeStrategy) (map[string]interface{}, error)

// ApplyUpdate implements Updater.
func (f UpdaterFunc) ApplyUpdate(ctx context.Context, id core.TargetID, data map[string]interface{},
	strategy core.MergeStrategy) (map[string]interface{}, error) {
	return f(ctx, id, data, strategy)
}
