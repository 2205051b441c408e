package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
	"github.com/phrazzld/scry-curriculum/internal/store"
)

// PostgresSnapshotStore implements the store.SnapshotStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSnapshotStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure PostgresSnapshotStore implements store.SnapshotStore interface
var _ store.SnapshotStore = (*PostgresSnapshotStore)(nil)

// NewPostgresSnapshotStore creates a new PostgreSQL implementation of the
// SnapshotStore interface. If logger is nil, a default logger will be used.
func NewPostgresSnapshotStore(db *sql.DB, logger *slog.Logger) *PostgresSnapshotStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresSnapshotStore{
		db:     db,
		logger: logger.With(slog.String("component", "snapshot_store")),
	}
}

// SaveSnapshot implements store.SnapshotStore.SaveSnapshot.
// The workspace's rows are deleted and re-inserted in one transaction, with
// the slice index stored as the item position.
func (s *PostgresSnapshotStore) SaveSnapshot(
	ctx context.Context,
	key domain.WorkspaceKey,
	items []domain.QueueItem,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := store.ValidateSnapshot(key, items); err != nil {
		log.Warn("snapshot validation failed",
			slog.String("workspace", key.String()),
			slog.String("error", err.Error()))
		return err
	}

	now := time.Now().UTC()
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM curriculum_queue_items
			WHERE owner_id = $1 AND workspace_id = $2`,
			key.OwnerID, key.WorkspaceID,
		); err != nil {
			return MapError(err)
		}

		for i, item := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO curriculum_queue_items (
					owner_id, workspace_id, id, position, topic, status,
					structure, retry_count, error_msg, failed_phase, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				key.OwnerID, key.WorkspaceID, item.ID, i, item.Topic, string(item.Status),
				item.Structure, item.RetryCount, item.ErrorMsg, int(item.FailedPhase), now,
			); err != nil {
				return MapError(err)
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
func (s *PostgresSnapshotStore) LoadSnapshot(
	ctx context.Context,
	key domain.WorkspaceKey,
) ([]domain.QueueItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, status, structure, retry_count, error_msg, failed_phase
		FROM curriculum_queue_items
		WHERE owner_id = $1 AND workspace_id = $2
		ORDER BY position ASC`,
		key.OwnerID, key.WorkspaceID)
	if err != nil {
		log.Error("failed to load snapshot",
			slog.String("workspace", key.String()),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("queue_item", "load_snapshot", "failed to query items", MapError(err))
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
func (s *PostgresSnapshotStore) ListWorkspaces(ctx context.Context) ([]domain.WorkspaceKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT owner_id, workspace_id
		FROM curriculum_queue_items
		ORDER BY owner_id, workspace_id`)
	if err != nil {
		return nil, store.NewStoreError("queue_item", "list_workspaces", "failed to query workspaces", MapError(err))
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
