package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
	"github.com/phrazzld/scry-curriculum/internal/store"
)

// NoteStore implements store.NoteStore on SQLite.
type NoteStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.NoteStore = (*NoteStore)(nil)

// NewNoteStore creates a NoteStore. If logger is nil, the default logger is used.
func NewNoteStore(db store.DBTX, logger *slog.Logger) *NoteStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteStore{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite_note_store")),
	}
}

// SaveNote implements store.NoteStore.SaveNote.
func (s *NoteStore) SaveNote(ctx context.Context, note *domain.Note) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := note.Validate(); err != nil {
		log.Warn("note validation failed", slog.String("error", err.Error()))
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO curriculum_notes (
			owner_id, workspace_id, item_id, topic, structure, content, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, workspace_id, item_id) DO UPDATE SET
			topic = excluded.topic,
			structure = excluded.structure,
			content = excluded.content,
			created_at = excluded.created_at`,
		note.Workspace.OwnerID.String(), note.Workspace.WorkspaceID.String(), note.ItemID.String(),
		note.Topic, note.Structure, note.Content, formatTime(note.CreatedAt),
	)
	if err != nil {
		log.Error("failed to save note",
			slog.String("item_id", note.ItemID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("note", "save", "failed to save note", err)
	}

	log.Info("note saved",
		slog.String("workspace", note.Workspace.String()),
		slog.String("item_id", note.ItemID.String()),
		slog.Int("content_length", len(note.Content)))
	return nil
}

// GetNote implements store.NoteStore.GetNote.
func (s *NoteStore) GetNote(ctx context.Context, key domain.WorkspaceKey, itemID uuid.UUID) (*domain.Note, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT item_id, topic, structure, content, created_at
		FROM curriculum_notes
		WHERE owner_id = ? AND workspace_id = ? AND item_id = ?`,
		key.OwnerID.String(), key.WorkspaceID.String(), itemID.String())

	note, err := scanNote(key, row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoteNotFound
		}
		return nil, store.NewStoreError("note", "get", "failed to read note", err)
	}
	return note, nil
}

// ListNotes implements store.NoteStore.ListNotes.
func (s *NoteStore) ListNotes(ctx context.Context, key domain.WorkspaceKey) ([]*domain.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, topic, structure, content, created_at
		FROM curriculum_notes
		WHERE owner_id = ? AND workspace_id = ?
		ORDER BY created_at ASC, item_id ASC`,
		key.OwnerID.String(), key.WorkspaceID.String())
	if err != nil {
		return nil, store.NewStoreError("note", "list", "failed to query notes", err)
	}
	defer func() { _ = rows.Close() }()

	notes := []*domain.Note{}
	for rows.Next() {
		note, err := scanNote(key, rows)
		if err != nil {
			return nil, store.NewStoreError("note", "list", "failed to scan note", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("note", "list", "failed to iterate notes", err)
	}
	return notes, nil
}

// DeleteNotes implements store.NoteStore.DeleteNotes.
func (s *NoteStore) DeleteNotes(ctx context.Context, key domain.WorkspaceKey) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM curriculum_notes WHERE owner_id = ? AND workspace_id = ?`,
		key.OwnerID.String(), key.WorkspaceID.String())
	if err != nil {
		return store.NewStoreError("note", "delete", "failed to delete notes", err)
	}
	n, _ := result.RowsAffected()
	log.Info("notes deleted",
		slog.String("workspace", key.String()),
		slog.Int64("count", n))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(key domain.WorkspaceKey, row rowScanner) (*domain.Note, error) {
	var (
		note      domain.Note
		createdAt string
	)
	if err := row.Scan(&note.ItemID, &note.Topic, &note.Structure, &note.Content, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	note.Workspace = key
	note.CreatedAt = t
	return &note, nil
}
