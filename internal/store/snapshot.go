package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
)

// SnapshotStore defines the interface for curriculum queue persistence.
// The engine itself is in-memory; a SnapshotStore lets a restarted process
// re-seed each workspace queue.
type SnapshotStore interface {
	// SaveSnapshot replaces every stored item of the workspace with the given
	// items, preserving their order. It runs in a single transaction.
	// Returns validation errors if any item is invalid.
	SaveSnapshot(ctx context.Context, key domain.WorkspaceKey, items []domain.QueueItem) error

	// LoadSnapshot returns the stored items of the workspace in queue order.
	// Returns an empty slice if nothing has been stored.
	LoadSnapshot(ctx context.Context, key domain.WorkspaceKey) ([]domain.QueueItem, error)

	// ListWorkspaces returns the keys of every workspace with a stored queue.
	ListWorkspaces(ctx context.Context) ([]domain.WorkspaceKey, error)
}

// ValidateSnapshot checks a snapshot before it is written: the key must be
// complete, every item valid and no item ID may appear twice.
func ValidateSnapshot(key domain.WorkspaceKey, items []domain.QueueItem) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("%w: item %d: %w", ErrInvalidEntity, i, err)
		}
		if _, dup := seen[items[i].ID]; dup {
			return fmt.Errorf("%w: %s", ErrItemExists, items[i].ID)
		}
		seen[items[i].ID] = struct{}{}
	}
	return nil
}
