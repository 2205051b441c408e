package service

import (
	"context"

	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/store"
)

// NoteSinkAdapter adapts a store.NoteStore to curriculum.NoteSink, turning
// each completed item and its content into a persisted domain.Note.
type NoteSinkAdapter struct {
	notes store.NoteStore
}

// NewNoteSinkAdapter creates a NoteSinkAdapter delegating to notes.
func NewNoteSinkAdapter(notes store.NoteStore) *NoteSinkAdapter {
	return &NoteSinkAdapter{notes: notes}
}

// Ensure NoteSinkAdapter implements curriculum.NoteSink
var _ curriculum.NoteSink = (*NoteSinkAdapter)(nil)

// SaveNote implements curriculum.NoteSink.
func (a *NoteSinkAdapter) SaveNote(
	ctx context.Context,
	key domain.WorkspaceKey,
	item domain.QueueItem,
	content string,
) error {
	note, err := domain.NewNote(key, item, content)
	if err != nil {
		return err
	}
	return a.notes.SaveNote(ctx, note)
}

// Ensure every snapshot store can persist queues directly.
var _ curriculum.SnapshotSaver = (store.SnapshotStore)(nil)
