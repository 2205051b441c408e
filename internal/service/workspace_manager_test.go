package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/generation"
	"github.com/phrazzld/scry-curriculum/internal/platform/sqlite"
	"github.com/phrazzld/scry-curriculum/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator returns fixed outputs and counts calls.
type stubGenerator struct {
	structureCalls atomic.Int32
	contentCalls   atomic.Int32
}

func (g *stubGenerator) GenerateStructure(_ context.Context, topic string, _ generation.PhaseConfig) (string, error) {
	g.structureCalls.Add(1)
	return "outline of " + topic, nil
}

func (g *stubGenerator) GenerateContent(_ context.Context, topic, structure string, _ generation.PhaseConfig) (string, error) {
	g.contentCalls.Add(1)
	return "note on " + topic + " following " + structure, nil
}

type testEnv struct {
	manager   WorkspaceManager
	snapshots store.SnapshotStore
	notes     store.NoteStore
	gen       *stubGenerator
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "state.db"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		snapshots: sqlite.NewSnapshotStore(db, quietLogger()),
		notes:     sqlite.NewNoteStore(db, quietLogger()),
		gen:       &stubGenerator{},
	}
	env.manager = newManager(t, env)
	return env
}

func newManager(t *testing.T, env *testEnv) WorkspaceManager {
	t.Helper()

	settings := curriculum.DefaultSettings()
	settings.Retry.BaseDelay = time.Millisecond
	settings.Retry.MaxDelay = 2 * time.Millisecond

	m, err := NewWorkspaceManager(ManagerDependencies{
		Generator: env.gen,
		Snapshots: env.snapshots,
		Notes:     env.notes,
		Logger:    quietLogger(),
	}, settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func runConfig() curriculum.RunConfig {
	return curriculum.RunConfig{
		Phase1:      generation.PhaseConfig{Model: "m1"},
		Phase2:      generation.PhaseConfig{Model: "m2"},
		AutoApprove: true,
	}
}

func newKey() domain.WorkspaceKey {
	return domain.WorkspaceKey{OwnerID: uuid.New(), WorkspaceID: uuid.New()}
}

func waitIdle(t *testing.T, svc *curriculum.QueueService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))
}

func TestWorkspaceManager_GetReturnsSameService(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	key := newKey()

	a, err := env.manager.Get(context.Background(), key)
	require.NoError(t, err)
	b, err := env.manager.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := env.manager.Get(context.Background(), newKey())
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	_, err = env.manager.Get(context.Background(), domain.WorkspaceKey{})
	assert.ErrorIs(t, err, domain.ErrEmptyOwnerID)
}

func TestWorkspaceManager_RunPersistsNotesAndSnapshots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	key := newKey()

	svc, err := env.manager.Get(ctx, key)
	require.NoError(t, err)

	a, err := domain.NewQueueItem("Queues")
	require.NoError(t, err)
	b, err := domain.NewQueueItem("Stacks")
	require.NoError(t, err)
	require.NoError(t, svc.SetQueue([]domain.QueueItem{*a, *b}))
	require.NoError(t, svc.StartProcessing(runConfig()))
	waitIdle(t, svc)

	snap := svc.Snapshot()
	for _, item := range snap.Items {
		assert.Equal(t, domain.ItemStatusDone, item.Status)
	}

	stored, err := env.snapshots.LoadSnapshot(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, snap.Items, stored)

	note, err := env.manager.GetNote(ctx, key, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "note on Queues following outline of Queues", note.Content)
	assert.Equal(t, "outline of Queues", note.Structure)

	_, err = env.manager.GetNote(ctx, key, uuid.New())
	assert.ErrorIs(t, err, store.ErrNoteNotFound)

	keys, err := env.manager.Workspaces(ctx, key.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, []domain.WorkspaceKey{key}, keys)

	keys, err = env.manager.Workspaces(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestWorkspaceManager_RestoresFromSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	key := newKey()

	drafting, err := domain.NewQueueItem("Interrupted")
	require.NoError(t, err)
	drafting.Status = domain.ItemStatusDraftingStruct
	paused, err := domain.NewQueueItem("Awaiting review")
	require.NoError(t, err)
	paused.Status = domain.ItemStatusPausedForReview
	paused.Structure = "draft"
	require.NoError(t, env.snapshots.SaveSnapshot(ctx, key, []domain.QueueItem{*drafting, *paused}))

	// A second manager over the same stores acts as a restarted process.
	restarted := newManager(t, env)
	svc, err := restarted.Get(ctx, key)
	require.NoError(t, err)

	snap := svc.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, domain.ItemStatusPending, snap.Items[0].Status, "in-flight items roll back")
	assert.Equal(t, domain.ItemStatusPausedForReview, snap.Items[1].Status)
	assert.Equal(t, "draft", snap.Items[1].Structure)
	assert.Equal(t, curriculum.RunStateIdle, snap.RunState)
}

func TestWorkspaceManager_Clear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	key := newKey()

	svc, err := env.manager.Get(ctx, key)
	require.NoError(t, err)
	item, err := domain.NewQueueItem("Hash maps")
	require.NoError(t, err)
	require.NoError(t, svc.SetQueue([]domain.QueueItem{*item}))
	require.NoError(t, svc.StartProcessing(runConfig()))
	waitIdle(t, svc)

	require.NoError(t, env.manager.Clear(ctx, key))
	assert.Empty(t, svc.Snapshot().Items)

	_, err = env.manager.GetNote(ctx, key, item.ID)
	assert.ErrorIs(t, err, store.ErrNoteNotFound)

	stored, err := env.snapshots.LoadSnapshot(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestWorkspaceManager_Shutdown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	key := newKey()

	svc, err := env.manager.Get(ctx, key)
	require.NoError(t, err)

	require.NoError(t, env.manager.Shutdown(ctx))
	require.NoError(t, env.manager.Shutdown(ctx), "shutdown is idempotent")

	_, err = env.manager.Get(ctx, key)
	assert.ErrorIs(t, err, ErrManagerClosed)

	err = svc.StartProcessing(runConfig())
	assert.ErrorIs(t, err, curriculum.ErrServiceClosed)
}

func TestNewWorkspaceManager_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewWorkspaceManager(ManagerDependencies{}, curriculum.DefaultSettings())
	var svcErr *WorkspaceServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "create_manager", svcErr.Operation)
}

func TestNoteSinkAdapter_RejectsEmptyContent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	item, err := domain.NewQueueItem("Empty")
	require.NoError(t, err)

	err = NewNoteSinkAdapter(env.notes).SaveNote(context.Background(), newKey(), *item, "")
	assert.ErrorIs(t, err, domain.ErrEmptyNoteContent)
}
