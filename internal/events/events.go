package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
)

// QueueEvent is a full snapshot of a curriculum queue, published after every
// state-affecting operation. Subscribers never receive diffs; each event is
// sufficient on its own to render the queue.
type QueueEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Workspace identifies the queue the snapshot belongs to
	Workspace domain.WorkspaceKey `json:"workspace"`

	// Items is a copy of the queue in pick order
	Items []domain.QueueItem `json:"items"`

	// IsProcessing is true while the scheduler loop is running
	IsProcessing bool `json:"is_processing"`

	// CircuitStatus is empty while the circuit is closed, otherwise a banner
	// describing why the run was halted
	CircuitStatus string `json:"circuit_status"`

	// RunState is one of idle, running or halted
	RunState string `json:"run_state"`

	// Version increases by one with every published snapshot of a queue
	Version uint64 `json:"version"`

	// EmittedAt is the timestamp when the event was created
	EmittedAt time.Time `json:"emitted_at"`
}

// EventHandler defines an interface for components that observe queue changes.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Handlers run synchronously on the publisher's goroutine and must not
	// call back into the component that published the event.
	HandleEvent(ctx context.Context, event *QueueEvent) error
}

// HandlerFunc adapts an ordinary function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *QueueEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *QueueEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can publish queue events.
type EventEmitter interface {
	// Subscribe registers a handler and returns a function that removes it.
	Subscribe(handler EventHandler) (unsubscribe func())

	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *QueueEvent) error
}
