package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
)

var validate = validator.New()

// SetQueueRequest defines the payload for PUT /queue. Topics builds a fresh
// pending queue; Items replaces the queue with caller-supplied items, for
// example to restore an exported queue. At most one of the two may be set,
// and an empty request clears the queue.
type SetQueueRequest struct {
	Topics []string           `json:"topics,omitempty" validate:"omitempty,max=500,dive,required,max=500"`
	Items  []domain.QueueItem `json:"items,omitempty"  validate:"omitempty,max=500"`
}

// Validate implements the validation hook used by shared.ValidateRequest.
func (r *SetQueueRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if len(r.Topics) > 0 && len(r.Items) > 0 {
		return fmt.Errorf("%w: topics and items are mutually exclusive", domain.ErrValidation)
	}
	for i, topic := range r.Topics {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("%w: topic %d: %w", domain.ErrValidation, i, domain.ErrEmptyTopic)
		}
	}
	return nil
}

// QueueItems returns the items the request describes.
func (r *SetQueueRequest) QueueItems() ([]domain.QueueItem, error) {
	if len(r.Items) > 0 {
		return r.Items, nil
	}
	items := make([]domain.QueueItem, 0, len(r.Topics))
	for _, topic := range r.Topics {
		item, err := domain.NewQueueItem(strings.TrimSpace(topic))
		if err != nil {
			return nil, errors.Join(domain.ErrValidation, err)
		}
		items = append(items, *item)
	}
	return items, nil
}

// ReorderRequest defines the payload for PUT /queue/order.
type ReorderRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required"`
}

// MoveItemRequest defines the payload for PATCH /queue/items/{itemID}/position.
type MoveItemRequest struct {
	Position *int `json:"position" validate:"required,gte=0"`
}

// UpdateStructureRequest defines the payload for PUT
// /queue/items/{itemID}/structure. An empty structure approves the drafted
// outline unchanged.
type UpdateStructureRequest struct {
	Structure string `json:"structure" validate:"max=20000"`
}

// QueueResponse is the body of every endpoint that returns the queue.
type QueueResponse = curriculum.Snapshot

// NoteResponse represents a generated note.
type NoteResponse struct {
	ItemID    string `json:"item_id"`
	Topic     string `json:"topic"`
	Structure string `json:"structure"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// noteToResponse converts a domain.Note to a NoteResponse
func noteToResponse(note *domain.Note) NoteResponse {
	return NoteResponse{
		ItemID:    note.ItemID.String(),
		Topic:     note.Topic,
		Structure: note.Structure,
		Content:   note.Content,
		CreatedAt: note.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// WorkspacesResponse is the body of GET /workspaces.
type WorkspacesResponse struct {
	Workspaces []string `json:"workspaces"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
