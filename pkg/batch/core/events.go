package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Event is a notification emitted during a batch run.
type Event interface {
	// Type returns the event type identifier.
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// Data returns the event payload.
	Data() interface{}
}

// EventHandler handles events.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// EventHandlerFunc is a function adapter for EventHandler.
type EventHandlerFunc func(ctx context.Context, event Event) error

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// SubscriptionID identifies a subscription.
type SubscriptionID string

// EventBus manages event publishing and subscription.
type EventBus interface {
	// Subscribe registers a handler for events of the given type.
	Subscribe(eventType string, handler EventHandler) SubscriptionID
	// Unsubscribe removes a handler using its subscription ID.
	Unsubscribe(subscriptionID SubscriptionID)
	// Publish sends an event to all registered handlers synchronously.
	Publish(ctx context.Context, event Event) error
}

// BaseEvent provides a basic implementation of Event.
type BaseEvent struct {
	EventType string
	Time      time.Time
	Payload   interface{}
}

func (e *BaseEvent) Type() string { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.Time }
func (e *BaseEvent) Data() interface{} { return e.Payload }

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType string, data interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Payload:   data,
	}
}

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// MemoryEventBus is an in-memory implementation of EventBus. It is safe
// for concurrent subscription while a run publishes.
type MemoryEventBus struct {
	mu            sync.RWMutex
	handlers      map[string][]subscription
	subscriptions map[SubscriptionID]string
	nextID        int
	logger        Logger
}

// NewMemoryEventBus creates a new in-memory event bus.
func NewMemoryEventBus(logger Logger) *MemoryEventBus {
	if logger == nil {
		logger = NopLogger{}
	}
	return &MemoryEventBus{
		handlers:      make(map[string][]subscription),
		subscriptions: make(map[SubscriptionID]string),
		nextID:        1,
		logger:        logger,
	}
}

// Subscribe registers a handler for events of the given type.
func (bus *MemoryEventBus) Subscribe(eventType string, handler EventHandler) SubscriptionID {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	subID := SubscriptionID(fmt.Sprintf("sub_%d", bus.nextID))
	bus.nextID++

	bus.handlers[eventType] = append(bus.handlers[eventType], subscription{
		id:      subID,
		handler: handler,
	})
	bus.subscriptions[subID] = eventType

	bus.logger.Debug().
		Str("event_type", eventType).
		Str("subscription_id", string(subID)).
		Msg("subscribed to event")

	return subID
}

// Unsubscribe removes a handler using its subscription ID.
func (bus *MemoryEventBus) Unsubscribe(subscriptionID SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	eventType, exists := bus.subscriptions[subscriptionID]
	if !exists {
		return
	}
	delete(bus.subscriptions, subscriptionID)

	handlers := bus.handlers[eventType]
	for i, sub := range handlers {
		if sub.id == subscriptionID {
			handlers[i] = handlers[len(handlers)-1]
			bus.handlers[eventType] = handlers[:len(handlers)-1]
			return
		}
	}
}

// Publish sends an event to all registered handlers synchronously. A
// failing handler does not prevent the remaining handlers from running.
func (bus *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	bus.mu.RLock()
	subscriptions := append([]subscription{}, bus.handlers[event.Type()]...)
	bus.mu.RUnlock()

	for _, sub := range subscriptions {
		if err := sub.handler.Handle(ctx, event); err != nil {
			bus.logger.Warn().
				Str("event_type", event.Type()).
				Str("subscription_id", string(sub.id)).
				Err(err).
				Msg("event handler failed")
		}
	}
	return nil
}
