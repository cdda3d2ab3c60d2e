package core

import (
	"time"
)

// Batch event types published by the executor.
const (
	EventBatchStarted       = "batch.started"
	EventBatchProgress      = "batch.progress"
	EventBatchFinished      = "batch.finished"
	EventOperationStarted   = "operation.started"
	EventOperationCompleted = "operation.completed"
	EventOperationFailed    = "operation.failed"
)

// BatchStartedEvent is emitted once per run, after preflight checks pass.
type BatchStartedEvent struct {
	*BaseEvent
	Operations    int
	Transactional bool
}

// NewBatchStartedEvent creates a new batch started event.
func NewBatchStartedEvent(operations int, transactional bool) *BatchStartedEvent {
	e := &BatchStartedEvent{
		Operations:    operations,
		Transactional: transactional,
	}
	e.BaseEvent = NewBaseEvent(EventBatchStarted, e)
	return e
}

// BatchProgressEvent is emitted after each operation completes.
type BatchProgressEvent struct {
	*BaseEvent
	Completed int
	Total     int
	Progress  int
}

// NewBatchProgressEvent creates a new batch progress event.
func NewBatchProgressEvent(completed, total, progress int) *BatchProgressEvent {
	e := &BatchProgressEvent{
		Completed: completed,
		Total:     total,
		Progress:  progress,
	}
	e.BaseEvent = NewBaseEvent(EventBatchProgress, e)
	return e
}

// BatchFinishedEvent is emitted when a run ends, whatever the outcome.
type BatchFinishedEvent struct {
	*BaseEvent
	Status   RunStatus
	Duration time.Duration
}

// NewBatchFinishedEvent creates a new batch finished event.
func NewBatchFinishedEvent(status RunStatus, duration time.Duration) *BatchFinishedEvent {
	e := &BatchFinishedEvent{
		Status:   status,
		Duration: duration,
	}
	e.BaseEvent = NewBaseEvent(EventBatchFinished, e)
	return e
}

// OperationEventData carries the target and attempt count for an
// operation-level event.
type OperationEventData struct {
	TargetID TargetID
	Attempts int
}

// OperationStartedEvent is emitted when an operation begins execution.
type OperationStartedEvent struct {
	*BaseEvent
	Operation OperationEventData
}

// NewOperationStartedEvent creates a new operation started event.
func NewOperationStartedEvent(id TargetID) *OperationStartedEvent {
	e := &OperationStartedEvent{
		Operation: OperationEventData{TargetID: id},
	}
	e.BaseEvent = NewBaseEvent(EventOperationStarted, e.Operation)
	return e
}

// OperationCompletedEvent is emitted when an operation succeeds.
type OperationCompletedEvent struct {
	*BaseEvent
	Operation OperationEventData
	Duration  time.Duration
}

// NewOperationCompletedEvent creates a new operation completed event.
func NewOperationCompletedEvent(id TargetID, attempts int, duration time.Duration) *OperationCompletedEvent {
	e := &OperationCompletedEvent{
		Operation: OperationEventData{TargetID: id, Attempts: attempts},
		Duration:  duration,
	}
	e.BaseEvent = NewBaseEvent(EventOperationCompleted, e.Operation)
	return e
}

// OperationFailedEvent is emitted when an operation exhausts its retries.
type OperationFailedEvent struct {
	*BaseEvent
	Operation OperationEventData
	Err       error
}

// NewOperationFailedEvent creates a new operation failed event.
func NewOperationFailedEvent(id TargetID, attempts int, err error) *OperationFailedEvent {
	e := &OperationFailedEvent{
		Operation: OperationEventData{TargetID: id, Attempts: attempts},
		Err:       err,
	}
	e.BaseEvent = NewBaseEvent(EventOperationFailed, e.Operation)
	return e
}
