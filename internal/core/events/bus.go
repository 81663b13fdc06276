package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Event interface {
	EventType() string
	EventID() string
	OccurredAt() time.Time
	Payload() interface{}
}

type BaseEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) EventID() string {
	return e.ID
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func (e BaseEvent) Payload() interface{} {
	return e.Data
}

type Handler func(ctx context.Context, event Event) error

// allEvents marks a subscription that receives every event type.
const allEvents = "*"

type subscription struct {
	eventType string
	handler   Handler
}

// EventBus is an append-only registry of state observers. Delivery is synchronous and
// follows registration order.
type EventBus struct {
	subscriptions []subscription
	logger        *slog.Logger
	mu            sync.RWMutex
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		subscriptions: make([]subscription, 0),
		logger:        logger,
	}
}

// Subscribe registers a handler for every state change.
func (eb *EventBus) Subscribe(handler Handler) {
	eb.SubscribeTo(allEvents, handler)
}

func (eb *EventBus) SubscribeTo(eventType string, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions = append(eb.subscriptions, subscription{eventType: eventType, handler: handler})
	eb.logger.Debug("event handler registered",
		"event_type", eventType,
		"total_handlers", len(eb.subscriptions))
}

func (eb *EventBus) HandlerCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscriptions)
}

// Publish delivers the event to every matching handler in registration order and returns the
// number of handlers that failed. A failing or panicking handler does not stop delivery.
func (eb *EventBus) Publish(ctx context.Context, event Event) int {
	eb.mu.RLock()
	snapshot := make([]subscription, len(eb.subscriptions))
	copy(snapshot, eb.subscriptions)
	eb.mu.RUnlock()

	failed := 0
	delivered := 0
	for _, sub := range snapshot {
		if sub.eventType != allEvents && sub.eventType != event.EventType() {
			continue
		}
		delivered++
		if err := eb.deliver(ctx, sub.handler, event); err != nil {
			failed++
			eb.logger.Error("event handler failed",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"error", err)
		}
	}

	if delivered == 0 {
		eb.logger.Debug("no handlers for event type", "event_type", event.EventType())
	}

	return failed
}

func (eb *EventBus) deliver(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, event)
}
