package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
	"github.com/phrazzld/scry-curriculum/internal/store"
)

// SnapshotStore implements store.SnapshotStore on SQLite.
type SnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a SnapshotStore. If logger is nil, the default
// logger is used.
func NewSnapshotStore(db *sql.DB, logger *slog.Logger) *SnapshotStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{
		db:     db,
		logger: logger.With(slog.String("component", "sqlite_snapshot_store")),
	}
}

// SaveSnapshot implements store.SnapshotStore.SaveSnapshot.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, key domain.WorkspaceKey, items []domain.QueueItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := store.ValidateSnapshot(key, items); err != nil {
		log.Warn("snapshot validation failed",
			slog.String("workspace", key.String()),
			slog.String("error", err.Error()))
		return err
	}

	now := formatTime(time.Now())
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM curriculum_queue_items WHERE owner_id = ? AND workspace_id = ?`,
			key.OwnerID.String(), key.WorkspaceID.String(),
		); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO curriculum_queue_items (
				owner_id, workspace_id, id, position, topic, status,
				structure, retry_count, error_msg, failed_phase, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, item := range items {
			if _, err := stmt.ExecContext(ctx,
				key.OwnerID.String(), key.WorkspaceID.String(), item.ID.String(), i,
				item.Topic, string(item.Status), item.Structure, item.RetryCount,
				item.ErrorMsg, int(item.FailedPhase), now,
			); err != nil {
				return fmt.Errorf("insert item %s: %w", item.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Error("failed to save snapshot",
			slog.String("workspace", key.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("queue_item", "save_snapshot", "failed to save snapshot", err)
	}

	log.Debug("snapshot saved",
		slog.String("workspace", key.String()),
		slog.Int("item_count", len(items)))
	return nil
}

// LoadSnapshot implements store.SnapshotStore.LoadSnapshot.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, key domain.WorkspaceKey) ([]domain.QueueItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, status, structure, retry_count, error_msg, failed_phase
		FROM curriculum_queue_items
		WHERE owner_id = ? AND workspace_id = ?
		ORDER BY position ASC`,
		key.OwnerID.String(), key.WorkspaceID.String())
	if err != nil {
		log.Error("failed to load snapshot",
			slog.String("workspace", key.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("queue_item", "load_snapshot", "failed to query items", err)
	}
	defer func() { _ = rows.Close() }()

	items := []domain.QueueItem{}
	for rows.Next() {
		var (
			item   domain.QueueItem
			status string
			phase  int
		)
		if err := rows.Scan(&item.ID, &item.Topic, &status, &item.Structure,
			&item.RetryCount, &item.ErrorMsg, &phase); err != nil {
			return nil, store.NewStoreError("queue_item", "load_snapshot", "failed to scan item", err)
		}
		item.Status = domain.ItemStatus(status)
		item.FailedPhase = domain.Phase(phase)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("queue_item", "load_snapshot", "failed to iterate items", err)
	}

	log.Debug("snapshot loaded",
		slog.String("workspace", key.String()),
		slog.Int("item_count", len(items)))
	return items, nil
}

// ListWorkspaces implements store.SnapshotStore.ListWorkspaces.
func (s *SnapshotStore) ListWorkspaces(ctx context.Context) ([]domain.WorkspaceKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id, workspace_id
		FROM curriculum_queue_items
		ORDER BY owner_id, workspace_id`)
	if err != nil {
		return nil, store.NewStoreError("queue_item", "list_workspaces", "failed to query workspaces", err)
	}
	defer func() { _ = rows.Close() }()

	keys := []domain.WorkspaceKey{}
	for rows.Next() {
		var owner, workspace uuid.UUID
		if err := rows.Scan(&owner, &workspace); err != nil {
			return nil, store.NewStoreError("queue_item", "list_workspaces", "failed to scan workspace", err)
		}
		keys = append(keys, domain.WorkspaceKey{OwnerID: owner, WorkspaceID: workspace})
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("queue_item", "list_workspaces", "failed to iterate workspaces", err)
	}
	return keys, nil
}
