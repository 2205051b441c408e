package curriculum

import (
	"context"

	"github.com/phrazzld/scry-curriculum/internal/domain"
)

// NoteSink receives the content produced by phase 2. An item only reaches
// done once its note has been accepted by the sink; a sink error counts as a
// failed phase 2 attempt.
type NoteSink interface {
	SaveNote(ctx context.Context, key domain.WorkspaceKey, item domain.QueueItem, content string) error
}

// SnapshotSaver durably stores the queue after every transition so it can be
// re-seeded with SetQueue after a restart. Save failures are logged and never
// interrupt a run.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, key domain.WorkspaceKey, items []domain.QueueItem) error
}
