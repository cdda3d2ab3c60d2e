package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

// Updater is the single external capability the executor depends on:
// apply one update to one record, yielding the updated record or a typed
// failure. The executor treats every failure as retryable.
type Updater interface {
	ApplyUpdate(ctx context.Context, id core.TargetID, data map[string]interface{},
		strategy core.MergeStrategy) (map[string]interface{}, error)
}

// Executor drives a batch run: ordering, per-operation retry with
// exponential backoff, cancellation, and transactional abort.
type Executor struct {
	updater  Updater
	logger   core.Logger
	eventBus core.EventBus
}

// NewExecutor creates an executor around the given update capability.
func NewExecutor(updater Updater, logger core.Logger) *Executor {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Executor{
		updater:  updater,
		logger:   logger,
		eventBus: core.NewMemoryEventBus(logger),
	}
}

// EventBus returns the executor's event bus for subscription.
func (e *Executor) EventBus() core.EventBus {
	return e.eventBus
}

// Execute runs a batch to completion and returns its final state.
//
// An empty operation list or a non-empty conflict set fails fast with a
// ValidationError in ErrorDetails and no updater calls. Operations run
// strictly one at a time; ParallelOps only switches ordering from
// dependency-scheduled to input order. Cancellation is observed before
// each operation and during backoff waits, never forcibly mid-call.
//
// Progress counts attempted operations, successful or not: a
// non-transactional run that reaches the end of the batch reports 100
// even when its status is error. Status, not progress, carries the
// outcome.
func (e *Executor) Execute(ctx context.Context, ops []core.Operation,
	conflicts []core.Conflict, opts core.ExecOptions) *core.RunResult {

	start := time.Now()
	result := &core.RunResult{
		Status:  core.StatusRunning,
		Results: []core.OperationResult{},
	}

	if len(ops) == 0 {
		result.Status = core.StatusError
		result.ErrorDetails = &core.ValidationError{Reason: "no operations to execute"}
		result.Duration = time.Since(start)
		return result
	}
	if len(conflicts) > 0 {
		result.Status = core.StatusError
		result.ErrorDetails = &core.ValidationError{
			Reason:    "batch has unresolved conflicts",
			Conflicts: len(conflicts),
		}
		result.Duration = time.Since(start)
		return result
	}

	// Snapshot the batch so later mutation of the live list cannot reach
	// into an in-flight run.
	snapshot := core.CloneOperations(ops)

	ordered := snapshot
	if !opts.ParallelOps {
		var err error
		ordered, err = Schedule(snapshot)
		if err != nil {
			e.logger.Info().Err(err).Msg("dependency scheduling failed")
			result.Status = core.StatusError
			result.ErrorDetails = err
			result.Duration = time.Since(start)
			return result
		}
	}

	e.logger.Info().
		Int("operations", len(ordered)).
		Bool("transactional", opts.Transactional).
		Bool("parallel_ops", opts.ParallelOps).
		Int("retry_count", opts.RetryCount).
		Msg("starting batch execution")
	e.publish(ctx, core.NewBatchStartedEvent(len(ordered), opts.Transactional))

	total := len(ordered)
	failed := false

	for i, op := range ordered {
		if err := ctx.Err(); err != nil {
			e.logger.Info().
				Int("completed", i).
				Int("total", total).
				Msg("batch cancelled before next operation")
			result.Status = core.StatusError
			result.ErrorDetails = fmt.Errorf("%w: %v", core.ErrBatchCancelled, context.Cause(ctx))
			result.Duration = time.Since(start)
			e.publish(ctx, core.NewBatchFinishedEvent(result.Status, result.Duration))
			return result
		}

		e.publish(ctx, core.NewOperationStartedEvent(op.TargetID))
		opResult := e.executeOne(ctx, op, opts)
		result.Results = append(result.Results, opResult)

		result.Progress = (i + 1) * 100 / total
		e.publish(ctx, core.NewBatchProgressEvent(i+1, total, result.Progress))

		if !opResult.Success {
			failed = true
			if errors.Is(opResult.Err, core.ErrBatchCancelled) {
				result.Status = core.StatusError
				result.ErrorDetails = opResult.Err
				result.Duration = time.Since(start)
				e.publish(ctx, core.NewBatchFinishedEvent(result.Status, result.Duration))
				return result
			}
			if opts.Transactional {
				e.logger.Info().
					Str("target_id", string(op.TargetID)).
					Msg("transactional batch aborted on first failure")
				result.Status = core.StatusError
				result.ErrorDetails = &core.OperationFailureError{
					TargetID: op.TargetID,
					Attempts: opResult.Attempts,
					Err:      opResult.Err,
				}
				result.Duration = time.Since(start)
				e.publish(ctx, core.NewBatchFinishedEvent(result.Status, result.Duration))
				return result
			}
		}
	}

	// A non-transactional run with tolerated failures still reports error
	// status; the per-operation results carry the successes.
	if failed {
		result.Status = core.StatusError
		result.ErrorDetails = errFirstFailure(result.Results)
	} else {
		result.Status = core.StatusSuccess
	}
	result.Duration = time.Since(start)

	e.logger.Info().
		Str("status", string(result.Status)).
		Int("operations", total).
		Dur("duration", result.Duration).
		Msg("batch execution finished")
	e.publish(ctx, core.NewBatchFinishedEvent(result.Status, result.Duration))
	return result
}

// executeOne attempts a single operation up to RetryCount+1 times with
// exponential backoff between attempts.
func (e *Executor) executeOne(ctx context.Context, op core.Operation,
	opts core.ExecOptions) core.OperationResult {

	baseDelay := opts.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = core.DefaultRetryBaseDelay
	}

	opStart := time.Now()
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= opts.RetryCount; attempt++ {
		if attempt > 0 {
			// Backoff doubles per retry: 2^attempt * base.
			wait := baseDelay * (1 << attempt)
			e.logger.Debug().
				Str("target_id", string(op.TargetID)).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("waiting before retry")
			if err := sleepCtx(ctx, wait); err != nil {
				return core.OperationResult{
					TargetID: op.TargetID,
					Success:  false,
					Err:      fmt.Errorf("%w during retry wait: %v", core.ErrBatchCancelled, err),
					Attempts: attempts,
				}
			}
		}

		attempts++
		value, err := e.updater.ApplyUpdate(ctx, op.TargetID, op.Data, op.EffectiveStrategy())
		if err == nil {
			e.logger.Info().
				Str("target_id", string(op.TargetID)).
				Int("attempts", attempts).
				Msg("operation succeeded")
			e.publish(ctx, core.NewOperationCompletedEvent(op.TargetID, attempts, time.Since(opStart)))
			return core.OperationResult{
				TargetID: op.TargetID,
				Success:  true,
				Value:    value,
				Attempts: attempts,
			}
		}

		lastErr = err
		e.logger.Warn().
			Str("target_id", string(op.TargetID)).
			Int("attempt", attempts).
			Err(err).
			Msg("operation attempt failed")
	}

	e.publish(ctx, core.NewOperationFailedEvent(op.TargetID, attempts, lastErr))
	return core.OperationResult{
		TargetID: op.TargetID,
		Success:  false,
		Err:      lastErr,
		Attempts: attempts,
	}
}

func (e *Executor) publish(ctx context.Context, event core.Event) {
	// Publishing must not observe a cancelled context; handlers still get
	// the terminal events of a cancelled run.
	_ = e.eventBus.Publish(context.WithoutCancel(ctx), event)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errFirstFailure summarizes a non-transactional run that had failures.
func errFirstFailure(results []core.OperationResult) error {
	failures := 0
	var first *core.OperationFailureError
	for _, r := range results {
		if r.Success {
			continue
		}
		failures++
		if first == nil {
			first = &core.OperationFailureError{
				TargetID: r.TargetID,
				Attempts: r.Attempts,
				Err:      r.Err,
			}
		}
	}
	if first == nil {
		return nil
	}
	return fmt.Errorf("%d of %d operations failed: %w", failures, len(results), first)
}
