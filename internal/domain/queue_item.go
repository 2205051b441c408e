package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ItemStatus represents the lifecycle state of a curriculum queue item.
type ItemStatus string

// Possible item status values
const (
	ItemStatusPending         ItemStatus = "pending"
	ItemStatusDraftingStruct  ItemStatus = "drafting_struct"
	ItemStatusStructReady     ItemStatus = "struct_ready"
	ItemStatusPausedForReview ItemStatus = "paused_for_review"
	ItemStatusGeneratingNote  ItemStatus = "generating_note"
	ItemStatusDone            ItemStatus = "done"
	ItemStatusError           ItemStatus = "error"
)

// Phase identifies one of the two generation phases an item passes through.
type Phase int

const (
	// PhaseNone is the zero value; an item that never failed has no failed phase.
	PhaseNone Phase = 0
	// PhaseStructure drafts the outline of a topic (the "architect" pass).
	PhaseStructure Phase = 1
	// PhaseContent expands an approved outline into a full note (the "factory" pass).
	PhaseContent Phase = 2
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseStructure:
		return "structure"
	case PhaseContent:
		return "content"
	default:
		return "none"
	}
}

// Common validation errors for QueueItem
var (
	ErrEmptyItemID        = errors.New("queue item ID cannot be empty")
	ErrEmptyTopic         = errors.New("queue item topic cannot be empty")
	ErrInvalidItemStatus  = errors.New("invalid queue item status")
	ErrNegativeRetryCount = errors.New("queue item retry count cannot be negative")
	ErrInvalidPhase       = errors.New("invalid queue item phase")
	ErrMissingFailedPhase = errors.New("errored queue item must record its failed phase")
	ErrInvalidTransition  = errors.New("invalid status transition")
)

// QueueItem is a single topic being driven through the two generation
// phases. Structure holds the phase 1 outline once it exists; the generated
// note itself is handed to a sink and never stored on the item.
type QueueItem struct {
	ID          uuid.UUID  `json:"id"`
	Topic       string     `json:"topic"`
	Status      ItemStatus `json:"status"`
	Structure   string     `json:"structure,omitempty"`
	RetryCount  int        `json:"retry_count"`
	ErrorMsg    string     `json:"error_msg,omitempty"`
	FailedPhase Phase      `json:"failed_phase,omitempty"`
}

// NewQueueItem creates a pending QueueItem for the given topic with a fresh ID.
// Returns ErrEmptyTopic if the topic is empty.
func NewQueueItem(topic string) (*QueueItem, error) {
	item := &QueueItem{
		ID:     uuid.New(),
		Topic:  topic,
		Status: ItemStatusPending,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the QueueItem has valid data.
func (q *QueueItem) Validate() error {
	if q.ID == uuid.Nil {
		return ErrEmptyItemID
	}

	if q.Topic == "" {
		return ErrEmptyTopic
	}

	if !IsValidItemStatus(q.Status) {
		return ErrInvalidItemStatus
	}

	if q.RetryCount < 0 {
		return ErrNegativeRetryCount
	}

	if q.FailedPhase != PhaseNone && q.FailedPhase != PhaseStructure && q.FailedPhase != PhaseContent {
		return ErrInvalidPhase
	}

	if q.Status == ItemStatusError && q.FailedPhase == PhaseNone {
		return ErrMissingFailedPhase
	}

	return nil
}

// validItemTransitions lists every edge of the item state machine.
// paused_for_review -> pending is the rejection edge used when a reviewer
// discards an outline and wants phase 1 to run again.
var validItemTransitions = map[ItemStatus]map[ItemStatus]bool{
	ItemStatusPending: {
		ItemStatusDraftingStruct: true,
	},
	ItemStatusDraftingStruct: {
		ItemStatusStructReady:     true,
		ItemStatusPausedForReview: true,
		ItemStatusError:           true,
	},
	ItemStatusPausedForReview: {
		ItemStatusStructReady: true,
		ItemStatusPending:     true,
	},
	ItemStatusStructReady: {
		ItemStatusGeneratingNote: true,
	},
	ItemStatusGeneratingNote: {
		ItemStatusDone:  true,
		ItemStatusError: true,
	},
	ItemStatusError: {
		ItemStatusDraftingStruct: true,
		ItemStatusGeneratingNote: true,
	},
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to ItemStatus) bool {
	targets, ok := validItemTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TransitionTo moves the item to the given status.
// Returns an error wrapping ErrInvalidTransition if the edge is not allowed.
func (q *QueueItem) TransitionTo(status ItemStatus) error {
	if !IsValidItemStatus(status) {
		return ErrInvalidItemStatus
	}

	if !CanTransition(q.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, status)
	}

	q.Status = status
	return nil
}

// inFlightRollbacks maps statuses that only exist while a generation call is
// outstanding to the stable status the item held before the call.
var inFlightRollbacks = map[ItemStatus]ItemStatus{
	ItemStatusDraftingStruct: ItemStatusPending,
	ItemStatusGeneratingNote: ItemStatusStructReady,
}

// RestoreInFlight rolls an item that was persisted mid-call back to its last
// stable status. It reports whether the item changed.
func (q *QueueItem) RestoreInFlight() bool {
	prev, ok := inFlightRollbacks[q.Status]
	if !ok {
		return false
	}
	q.Status = prev
	return true
}

// IsInFlight reports whether a generation call is outstanding for the item.
func (q *QueueItem) IsInFlight() bool {
	_, ok := inFlightRollbacks[q.Status]
	return ok
}

// IsValidItemStatus checks if the given status is a known ItemStatus.
func IsValidItemStatus(status ItemStatus) bool {
	switch status {
	case ItemStatusPending, ItemStatusDraftingStruct, ItemStatusStructReady,
		ItemStatusPausedForReview, ItemStatusGeneratingNote, ItemStatusDone,
		ItemStatusError:
		return true
	default:
		return false
	}
}
