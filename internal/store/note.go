package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
)

// NoteStore defines the interface for generated note persistence.
type NoteStore interface {
	// SaveNote stores a note, replacing any earlier note for the same item.
	// Returns validation errors from the domain Note if data is invalid.
	SaveNote(ctx context.Context, note *domain.Note) error

	// GetNote retrieves the note generated for an item.
	// Returns ErrNoteNotFound if the item has no note.
	GetNote(ctx context.Context, key domain.WorkspaceKey, itemID uuid.UUID) (*domain.Note, error)

	// ListNotes returns every note of the workspace, oldest first.
	ListNotes(ctx context.Context, key domain.WorkspaceKey) ([]*domain.Note, error)

	// DeleteNotes removes every note of the workspace.
	DeleteNotes(ctx context.Context, key domain.WorkspaceKey) error
}
