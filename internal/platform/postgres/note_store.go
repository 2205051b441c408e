package postgres

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

// PostgresNoteStore implements the store.NoteStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNoteStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// Ensure PostgresNoteStore implements store.NoteStore interface
var _ store.NoteStore = (*PostgresNoteStore)(nil)

// NewPostgresNoteStore creates a new PostgreSQL implementation of the NoteStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresNoteStore(db store.DBTX, logger *slog.Logger) *PostgresNoteStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresNoteStore{
		db:     db,
		logger: logger.With(slog.String("component", "note_store")),
	}
}

// SaveNote implements store.NoteStore.SaveNote
// Returns validation errors from the domain Note if data is invalid.
func (s *PostgresNoteStore) SaveNote(ctx context.Context, note *domain.Note) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := note.Validate(); err != nil {
		log.Warn("note validation failed during save",
			slog.String("error", err.Error()),
			slog.String("item_id", note.ItemID.String()))
		return err
	}

	query := `
		INSERT INTO curriculum_notes (
			owner_id, workspace_id, item_id, topic, structure, content, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, workspace_id, item_id) DO UPDATE SET
			topic = EXCLUDED.topic,
			structure = EXCLUDED.structure,
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		note.Workspace.OwnerID,
		note.Workspace.WorkspaceID,
		note.ItemID,
		note.Topic,
		note.Structure,
		note.Content,
		note.CreatedAt,
	)
	if err != nil {
		log.Error("failed to save note",
			slog.String("error", err.Error()),
			slog.String("item_id", note.ItemID.String()))
		return store.NewStoreError("note", "save", "failed to save note", MapError(err))
	}

	log.Info("note saved successfully",
		slog.String("workspace", note.Workspace.String()),
		slog.String("item_id", note.ItemID.String()))
	return nil
}

// GetNote implements store.NoteStore.GetNote
// Returns store.ErrNoteNotFound if the item has no note.
func (s *PostgresNoteStore) GetNote(
	ctx context.Context,
	key domain.WorkspaceKey,
	itemID uuid.UUID,
) (*domain.Note, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT item_id, topic, structure, content, created_at
		FROM curriculum_notes
		WHERE owner_id = $1 AND workspace_id = $2 AND item_id = $3
	`
	note := domain.Note{Workspace: key}
	err := s.db.QueryRowContext(ctx, query, key.OwnerID, key.WorkspaceID, itemID).Scan(
		&note.ItemID,
		&note.Topic,
		&note.Structure,
		&note.Content,
		&note.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("note not found", slog.String("item_id", itemID.String()))
			return nil, store.ErrNoteNotFound
		}
		log.Error("failed to get note",
			slog.String("error", err.Error()),
			slog.String("item_id", itemID.String()))
		return nil, store.NewStoreError("note", "get", "failed to read note", MapError(err))
	}
	return &note, nil
}

// ListNotes implements store.NoteStore.ListNotes.
func (s *PostgresNoteStore) ListNotes(ctx context.Context, key domain.WorkspaceKey) ([]*domain.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, topic, structure, content, created_at
		FROM curriculum_notes
		WHERE owner_id = $1 AND workspace_id = $2
		ORDER BY created_at ASC, item_id ASC`,
		key.OwnerID, key.WorkspaceID)
	if err != nil {
		return nil, store.NewStoreError("note", "list", "failed to query notes", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	notes := []*domain.Note{}
	for rows.Next() {
		note := &domain.Note{Workspace: key}
		if err := rows.Scan(&note.ItemID, &note.Topic, &note.Structure, &note.Content, &note.CreatedAt); err != nil {
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
func (s *PostgresNoteStore) DeleteNotes(ctx context.Context, key domain.WorkspaceKey) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM curriculum_notes
		WHERE owner_id = $1 AND workspace_id = $2`,
		key.OwnerID, key.WorkspaceID)
	if err != nil {
		return store.NewStoreError("note", "delete", "failed to delete notes", MapError(err))
	}

	deleted, _ := result.RowsAffected()
	log.Info("notes deleted",
		slog.String("workspace", key.String()),
		slog.Int64("count", deleted))
	return nil
}
