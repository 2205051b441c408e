package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type subscription struct {
	id      uint64
	handler EventHandler
}

// InMemoryEventEmitter is a simple implementation of the EventEmitter interface
// that stores subscribed handlers in memory and dispatches events to them in
// subscription order.
type InMemoryEventEmitter struct {
	subs   []subscription
	nextID uint64
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		subs:   make([]subscription, 0),
		logger: logger.With("component", "in_memory_event_emitter"),
	}
}

// Subscribe adds a new handler to receive events. The returned function
// removes the handler and is safe to call more than once.
func (e *InMemoryEventEmitter) Subscribe(handler EventHandler) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, handler: handler})
	count := len(e.subs)
	e.mu.Unlock()

	e.logger.Debug("registered new event handler", "handler_count", count)

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *InMemoryEventEmitter) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			break
		}
	}
	e.logger.Debug("removed event handler", "handler_count", len(e.subs))
}

// HandlerCount returns the number of subscribed handlers.
func (e *InMemoryEventEmitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// EmitEvent publishes the given event to all subscribed handlers.
// If any handler returns an error or panics, the event will still be sent to
// all other handlers, and the first error encountered will be returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *QueueEvent) error {
	e.mu.RLock()
	subs := make([]subscription, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	var firstErr error
	for i, s := range subs {
		if err := e.dispatch(ctx, s.handler, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"version", event.Version)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (e *InMemoryEventEmitter) dispatch(ctx context.Context, handler EventHandler, event *QueueEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}
