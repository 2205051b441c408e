package curriculum

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/events"
	"github.com/phrazzld/scry-curriculum/internal/generation"
	"github.com/stretchr/testify/require"
)

// fakeGenerator implements generation.Generator with overridable hooks and
// call tracking.
type fakeGenerator struct {
	StructureFn func(ctx context.Context, topic string, cfg generation.PhaseConfig) (string, error)
	ContentFn   func(ctx context.Context, topic, structure string, cfg generation.PhaseConfig) (string, error)

	mu             sync.Mutex
	StructureCalls []string
	ContentCalls   []string
	Structures     []string
}

func (f *fakeGenerator) GenerateStructure(ctx context.Context, topic string, cfg generation.PhaseConfig) (string, error) {
	f.mu.Lock()
	f.StructureCalls = append(f.StructureCalls, topic)
	f.mu.Unlock()

	if f.StructureFn != nil {
		return f.StructureFn(ctx, topic, cfg)
	}
	return "outline of " + topic, nil
}

func (f *fakeGenerator) GenerateContent(
	ctx context.Context,
	topic, structure string,
	cfg generation.PhaseConfig,
) (string, error) {
	f.mu.Lock()
	f.ContentCalls = append(f.ContentCalls, topic)
	f.Structures = append(f.Structures, structure)
	f.mu.Unlock()

	if f.ContentFn != nil {
		return f.ContentFn(ctx, topic, structure, cfg)
	}
	return "note about " + topic, nil
}

func (f *fakeGenerator) structureCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.StructureCalls...)
}

func (f *fakeGenerator) contentCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ContentCalls...)
}

// recordingSink captures notes handed over by phase 2.
type recordingSink struct {
	SaveFn func(item domain.QueueItem, content string) error

	mu    sync.Mutex
	Notes map[uuid.UUID]string
}

func (r *recordingSink) SaveNote(_ context.Context, _ domain.WorkspaceKey, item domain.QueueItem, content string) error {
	if r.SaveFn != nil {
		if err := r.SaveFn(item, content); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Notes == nil {
		r.Notes = make(map[uuid.UUID]string)
	}
	r.Notes[item.ID] = content
	return nil
}

// recordingSaver captures persisted snapshots.
type recordingSaver struct {
	Err error

	mu    sync.Mutex
	Saves int
	Last  []domain.QueueItem
}

func (r *recordingSaver) SaveSnapshot(_ context.Context, _ domain.WorkspaceKey, items []domain.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Saves++
	r.Last = items
	return r.Err
}

func (r *recordingSaver) last() []domain.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Last
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey() domain.WorkspaceKey {
	return domain.WorkspaceKey{OwnerID: uuid.New(), WorkspaceID: uuid.New()}
}

func fastSettings() Settings {
	return Settings{
		Retry: RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    4 * time.Millisecond,
		},
		BreakerThreshold: 3,
	}
}

func testRunConfig(autoApprove bool) RunConfig {
	return RunConfig{
		Phase1:      generation.PhaseConfig{Provider: "fake", Model: "architect-model", Prompt: "be brief"},
		Phase2:      generation.PhaseConfig{Provider: "fake", Model: "factory-model", Prompt: "be thorough"},
		AutoApprove: autoApprove,
	}
}

func newTestService(t *testing.T, gen *fakeGenerator, deps ...func(*Dependencies)) *QueueService {
	t.Helper()

	d := Dependencies{
		Structure: gen,
		Content:   gen,
		Logger:    testLogger(),
	}
	for _, apply := range deps {
		apply(&d)
	}

	svc, err := NewQueueService(testKey(), d, fastSettings())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return svc
}

func queueOf(t *testing.T, topics ...string) []domain.QueueItem {
	t.Helper()
	items := make([]domain.QueueItem, 0, len(topics))
	for _, topic := range topics {
		item, err := domain.NewQueueItem(topic)
		require.NoError(t, err)
		items = append(items, *item)
	}
	return items
}

func waitForRun(t *testing.T, svc *QueueService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx), "run did not finish in time")
}

func statusOf(t *testing.T, svc *QueueService, id uuid.UUID) domain.ItemStatus {
	t.Helper()
	item, err := svc.Item(id)
	require.NoError(t, err)
	return item.Status
}

// eventLog records every event published by a service.
type eventLog struct {
	mu     sync.Mutex
	events []events.QueueEvent
}

func (l *eventLog) HandleEvent(_ context.Context, event *events.QueueEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *event)
	return nil
}

func (l *eventLog) all() []events.QueueEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.QueueEvent(nil), l.events...)
}

// statusHistory returns the distinct consecutive statuses each item went through.
func (l *eventLog) statusHistory() map[uuid.UUID][]domain.ItemStatus {
	history := make(map[uuid.UUID][]domain.ItemStatus)
	for _, e := range l.all() {
		for _, item := range e.Items {
			seq := history[item.ID]
			if len(seq) == 0 || seq[len(seq)-1] != item.Status {
				history[item.ID] = append(seq, item.Status)
			}
		}
	}
	return history
}
