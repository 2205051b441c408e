package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/generation"
	"github.com/phrazzld/scry-curriculum/internal/store"
)

// WorkspaceManager hands out the QueueService of each workspace, creating
// and re-seeding it on first use.
type WorkspaceManager interface {
	// Get returns the workspace's QueueService, creating it if needed.
	Get(ctx context.Context, key domain.WorkspaceKey) (*curriculum.QueueService, error)

	// Clear empties the workspace queue and deletes its notes.
	// Returns curriculum.ErrRunInProgress while a run is active.
	Clear(ctx context.Context, key domain.WorkspaceKey) error

	// GetNote returns the note generated for an item of the workspace.
	// Returns store.ErrNoteNotFound if the item has no note.
	GetNote(ctx context.Context, key domain.WorkspaceKey, itemID uuid.UUID) (*domain.Note, error)

	// Workspaces lists the workspaces of ownerID that have a persisted queue.
	Workspaces(ctx context.Context, ownerID uuid.UUID) ([]domain.WorkspaceKey, error)

	// Shutdown closes every QueueService and refuses further use.
	Shutdown(ctx context.Context) error
}

// ManagerDependencies are the collaborators shared by every workspace.
type ManagerDependencies struct {
	Generator generation.Generator
	Snapshots store.SnapshotStore
	Notes     store.NoteStore
	Logger    *slog.Logger
}

// workspaceManager is the default WorkspaceManager implementation.
type workspaceManager struct {
	generator generation.Generator
	snapshots store.SnapshotStore
	notes     store.NoteStore
	noteSink  curriculum.NoteSink
	settings  curriculum.Settings
	logger    *slog.Logger

	mu       sync.Mutex
	services map[domain.WorkspaceKey]*curriculum.QueueService
	closed   bool
}

// Ensure workspaceManager implements WorkspaceManager interface
var _ WorkspaceManager = (*workspaceManager)(nil)

// NewWorkspaceManager creates a WorkspaceManager. Every dependency is required.
func NewWorkspaceManager(deps ManagerDependencies, settings curriculum.Settings) (WorkspaceManager, error) {
	if deps.Generator == nil {
		return nil, NewWorkspaceServiceError("create_manager", "generator cannot be nil", nil)
	}
	if deps.Snapshots == nil {
		return nil, NewWorkspaceServiceError("create_manager", "snapshot store cannot be nil", nil)
	}
	if deps.Notes == nil {
		return nil, NewWorkspaceServiceError("create_manager", "note store cannot be nil", nil)
	}
	if deps.Logger == nil {
		return nil, NewWorkspaceServiceError("create_manager", "logger cannot be nil", nil)
	}

	return &workspaceManager{
		generator: deps.Generator,
		snapshots: deps.Snapshots,
		notes:     deps.Notes,
		noteSink:  NewNoteSinkAdapter(deps.Notes),
		settings:  settings,
		logger:    deps.Logger.With("component", "workspace_manager"),
		services:  make(map[domain.WorkspaceKey]*curriculum.QueueService),
	}, nil
}

// Get implements WorkspaceManager.Get.
// The manager lock is held while a new service is seeded so concurrent
// callers for the same key never create two services.
func (m *workspaceManager) Get(ctx context.Context, key domain.WorkspaceKey) (*curriculum.QueueService, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if svc, ok := m.services[key]; ok {
		return svc, nil
	}

	items, err := m.snapshots.LoadSnapshot(ctx, key)
	if err != nil {
		m.logger.Error("failed to load workspace snapshot",
			"workspace", key.String(),
			"error", err)
		return nil, NewWorkspaceServiceError("open_workspace", "failed to load snapshot", err)
	}

	svc, err := curriculum.NewQueueService(key, curriculum.Dependencies{
		Structure: m.generator,
		Content:   m.generator,
		Notes:     m.noteSink,
		Snapshots: m.snapshots,
		Logger:    m.logger,
	}, m.settings)
	if err != nil {
		return nil, NewWorkspaceServiceError("open_workspace", "failed to create queue service", err)
	}

	if len(items) > 0 {
		if err := svc.SetQueue(items); err != nil {
			_ = svc.Close(ctx)
			m.logger.Error("stored snapshot is not a valid queue",
				"workspace", key.String(),
				"error", err)
			return nil, NewWorkspaceServiceError("open_workspace", "failed to restore queue", err)
		}
	}

	m.services[key] = svc
	m.logger.Info("workspace opened",
		"workspace", key.String(),
		"restored_items", len(items))
	return svc, nil
}

// Clear implements WorkspaceManager.Clear.
func (m *workspaceManager) Clear(ctx context.Context, key domain.WorkspaceKey) error {
	svc, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := svc.SetQueue(nil); err != nil {
		return err
	}
	if err := m.notes.DeleteNotes(ctx, key); err != nil {
		return NewWorkspaceServiceError("clear_workspace", "failed to delete notes", err)
	}
	m.logger.Info("workspace cleared", "workspace", key.String())
	return nil
}

// GetNote implements WorkspaceManager.GetNote.
func (m *workspaceManager) GetNote(
	ctx context.Context,
	key domain.WorkspaceKey,
	itemID uuid.UUID,
) (*domain.Note, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	note, err := m.notes.GetNote(ctx, key, itemID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, NewWorkspaceServiceError("get_note", "failed to read note", err)
	}
	return note, nil
}

// Workspaces implements WorkspaceManager.Workspaces.
func (m *workspaceManager) Workspaces(ctx context.Context, ownerID uuid.UUID) ([]domain.WorkspaceKey, error) {
	keys, err := m.snapshots.ListWorkspaces(ctx)
	if err != nil {
		return nil, NewWorkspaceServiceError("list_workspaces", "failed to list workspaces", err)
	}

	owned := make([]domain.WorkspaceKey, 0, len(keys))
	for _, key := range keys {
		if key.OwnerID == ownerID {
			owned = append(owned, key)
		}
	}
	return owned, nil
}

// Shutdown implements WorkspaceManager.Shutdown. Services are closed
// concurrently; once all have finished, every close error is returned
// joined into one.
func (m *workspaceManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	services := make([]*curriculum.QueueService, 0, len(m.services))
	for _, svc := range m.services {
		services = append(services, svc)
	}
	m.mu.Unlock()

	var (
		wg   sync.WaitGroup
		errM sync.Mutex
		errs []error
	)
	for _, svc := range services {
		wg.Add(1)
		go func(svc *curriculum.QueueService) {
			defer wg.Done()
			if err := svc.Close(ctx); err != nil {
				m.logger.Warn("queue service did not stop in time",
					"workspace", svc.Workspace().String(),
					"error", err)
				errM.Lock()
				errs = append(errs, err)
				errM.Unlock()
			}
		}(svc)
	}
	wg.Wait()

	m.logger.Info("workspace manager shut down", "workspaces", len(services))
	return errors.Join(errs...)
}
