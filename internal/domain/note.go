package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyNoteItemID  = errors.New("note item ID cannot be empty")
	ErrEmptyNoteContent = errors.New("note content cannot be empty")
)

// Note is the phase 2 output for one queue item. Notes are keyed by the item
// that produced them; regenerating an item replaces its note.
type Note struct {
	Workspace WorkspaceKey `json:"workspace"`
	ItemID    uuid.UUID    `json:"item_id"`
	Topic     string       `json:"topic"`
	Structure string       `json:"structure"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewNote creates a Note for a completed item.
func NewNote(key WorkspaceKey, item QueueItem, content string) (*Note, error) {
	note := &Note{
		Workspace: key,
		ItemID:    item.ID,
		Topic:     item.Topic,
		Structure: item.Structure,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := note.Validate(); err != nil {
		return nil, err
	}
	return note, nil
}

// Validate checks if the Note has valid data.
func (n *Note) Validate() error {
	if err := n.Workspace.Validate(); err != nil {
		return err
	}
	if n.ItemID == uuid.Nil {
		return ErrEmptyNoteItemID
	}
	if n.Topic == "" {
		return ErrEmptyTopic
	}
	if n.Content == "" {
		return ErrEmptyNoteContent
	}
	return nil
}
