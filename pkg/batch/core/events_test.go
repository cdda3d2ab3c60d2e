package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBaseEvent(t *testing.T) {
	event := NewBaseEvent("test.event", "payload")

	if event.Type() != "test.event" {
		t.Errorf("expected type 'test.event', got %q", event.Type())
	}
	if event.Data() != "payload" {
		t.Errorf("expected payload, got %v", event.Data())
	}
	if time.Since(event.Timestamp()) > time.Second {
		t.Error("expected a recent timestamp")
	}
}

func TestMemoryEventBus(t *testing.T) {
	t.Run("subscribe and publish", func(t *testing.T) {
		bus := NewMemoryEventBus(nil)

		var handled []Event
		subID := bus.Subscribe("test.event", EventHandlerFunc(func(_ context.Context, e Event) error {
			handled = append(handled, e)
			return nil
		}))
		if subID == "" {
			t.Fatal("expected a non-empty subscription ID")
		}

		if err := bus.Publish(context.Background(), NewBaseEvent("test.event", nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(handled) != 1 {
			t.Errorf("expected 1 handled event, got %d", len(handled))
		}

		// Other event types do not reach the handler.
		_ = bus.Publish(context.Background(), NewBaseEvent("other.event", nil))
		if len(handled) != 1 {
			t.Errorf("expected handler untouched by other types, got %d", len(handled))
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		bus := NewMemoryEventBus(nil)

		count := 0
		subID := bus.Subscribe("test.event", EventHandlerFunc(func(_ context.Context, _ Event) error {
			count++
			return nil
		}))

		_ = bus.Publish(context.Background(), NewBaseEvent("test.event", nil))
		bus.Unsubscribe(subID)
		_ = bus.Publish(context.Background(), NewBaseEvent("test.event", nil))

		if count != 1 {
			t.Errorf("expected 1 delivery, got %d", count)
		}
	})

	t.Run("a failing handler does not block others", func(t *testing.T) {
		bus := NewMemoryEventBus(nil)

		bus.Subscribe("test.event", EventHandlerFunc(func(_ context.Context, _ Event) error {
			return errors.New("handler failure")
		}))
		reached := false
		bus.Subscribe("test.event", EventHandlerFunc(func(_ context.Context, _ Event) error {
			reached = true
			return nil
		}))

		if err := bus.Publish(context.Background(), NewBaseEvent("test.event", nil)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reached {
			t.Error("expected the second handler to run")
		}
	})

	t.Run("unsubscribe with unknown id is a no-op", func(t *testing.T) {
		bus := NewMemoryEventBus(nil)
		bus.Unsubscribe("sub_999")
	})
}

func TestBatchEventConstructors(t *testing.T) {
	started := NewBatchStartedEvent(4, true)
	if started.Type() != EventBatchStarted || started.Operations != 4 || !started.Transactional {
		t.Errorf("unexpected started event %+v", started)
	}

	progress := NewBatchProgressEvent(2, 4, 50)
	if progress.Type() != EventBatchProgress || progress.Progress != 50 {
		t.Errorf("unexpected progress event %+v", progress)
	}

	finished := NewBatchFinishedEvent(StatusSuccess, time.Second)
	if finished.Type() != EventBatchFinished || finished.Status != StatusSuccess {
		t.Errorf("unexpected finished event %+v", finished)
	}

	opErr := errors.New("boom")
	failed := NewOperationFailedEvent("a", 3, opErr)
	if failed.Type() != EventOperationFailed || failed.Operation.Attempts != 3 || failed.Err != opErr {
		t.Errorf("unexpected failed event %+v", failed)
	}
}
