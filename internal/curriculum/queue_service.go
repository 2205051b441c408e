package curriculum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/events"
	"github.com/phrazzld/scry-curriculum/internal/generation"
)

// RunState describes whether the scheduler loop is active.
type RunState string

const (
	// RunStateIdle means no run has started, or the last run ran out of eligible work.
	RunStateIdle RunState = "idle"
	// RunStateRunning means the scheduler loop is active.
	RunStateRunning RunState = "running"
	// RunStateHalted means the last run ended early because of a stop request
	// or a circuit breaker trip.
	RunStateHalted RunState = "halted"
)

// Snapshot is a read-only copy of the service state.
type Snapshot struct {
	Workspace     domain.WorkspaceKey `json:"workspace"`
	Items         []domain.QueueItem  `json:"items"`
	RunState      RunState            `json:"run_state"`
	IsProcessing  bool                `json:"is_processing"`
	CircuitStatus string              `json:"circuit_status"`
	Circuit       CircuitState        `json:"circuit"`
	// Exhausted counts errored items with no retry budget left.
	Exhausted int    `json:"exhausted"`
	Version   uint64 `json:"version"`
}

// Dependencies are the collaborators a QueueService calls out to.
// Notes, Snapshots and Emitter are optional.
type Dependencies struct {
	Structure generation.StructureGenerator
	Content   generation.ContentGenerator
	Notes     NoteSink
	Snapshots SnapshotSaver
	Emitter   events.EventEmitter
	Logger    *slog.Logger
}

// Settings tune the failure handling of a QueueService.
type Settings struct {
	Retry            RetryPolicy
	BreakerThreshold int
}

// DefaultSettings returns the default retry policy and breaker threshold.
func DefaultSettings() Settings {
	return Settings{
		Retry:            DefaultRetryPolicy(),
		BreakerThreshold: DefaultBreakerThreshold,
	}
}

// QueueService is the only entry point to a workspace's curriculum queue. It
// owns the queue, the circuit breaker and the run state, and runs at most one
// scheduler goroutine that issues one generation call at a time.
//
// All state is guarded by mu. The lock is never held across a generation
// call, a NoteSink call or a backoff wait. Event handlers and the snapshot
// saver run with the lock held, so they must not call back into the service.
type QueueService struct {
	key       domain.WorkspaceKey
	structure generation.StructureGenerator
	content   generation.ContentGenerator
	notes     NoteSink
	snapshots SnapshotSaver
	emitter   events.EventEmitter
	retry     RetryPolicy
	logger    *slog.Logger

	// ctx is cancelled only when Close gives up waiting for an in-flight call.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	items         []domain.QueueItem
	breaker       *CircuitBreaker
	runState      RunState
	cfg           RunConfig
	stopRequested bool
	stopCh        chan struct{}
	done          chan struct{}
	inFlight      uuid.UUID
	version       uint64
	closed        bool
}

// NewQueueService creates a QueueService for one workspace with an empty queue.
// It returns an error if a required dependency is missing.
func NewQueueService(key domain.WorkspaceKey, deps Dependencies, settings Settings) (*QueueService, error) {
	if err := key.Validate(); err != nil {
		return nil, &QueueServiceError{Operation: "create_service", Message: "invalid workspace key", Err: err}
	}
	if deps.Structure == nil {
		return nil, &QueueServiceError{Operation: "create_service", Message: "structure generator cannot be nil"}
	}
	if deps.Content == nil {
		return nil, &QueueServiceError{Operation: "create_service", Message: "content generator cannot be nil"}
	}
	if deps.Logger == nil {
		return nil, &QueueServiceError{Operation: "create_service", Message: "logger cannot be nil"}
	}

	logger := deps.Logger.With("component", "queue_service", "workspace", key.String())

	emitter := deps.Emitter
	if emitter == nil {
		emitter = events.NewInMemoryEventEmitter(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &QueueService{
		key:       key,
		structure: deps.Structure,
		content:   deps.Content,
		notes:     deps.Notes,
		snapshots: deps.Snapshots,
		emitter:   emitter,
		retry:     settings.Retry.withDefaults(),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		items:     make([]domain.QueueItem, 0),
		breaker:   NewCircuitBreaker(settings.BreakerThreshold),
		runState:  RunStateIdle,
	}, nil
}

// Workspace returns the key of the workspace this service drives.
func (s *QueueService) Workspace() domain.WorkspaceKey {
	return s.key
}

// SetQueue replaces the queue wholesale and resets the breaker and run state.
// Items persisted mid-call are rolled back to their last stable status. It
// does not start the scheduler, and it is refused while a run is active.
func (s *QueueService) SetQueue(items []domain.QueueItem) error {
	next := make([]domain.QueueItem, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, item := range items {
		item.RestoreInFlight()
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%w: item %d: %w", domain.ErrValidation, i, err)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
		}
		seen[item.ID] = struct{}{}
		next[i] = item
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}
	if s.runState == RunStateRunning {
		return ErrRunInProgress
	}

	s.items = next
	s.breaker.Reset()
	s.runState = RunStateIdle
	s.stopRequested = false
	s.inFlight = uuid.Nil

	s.logger.Info("queue replaced", "item_count", len(next))
	s.publishLocked()
	return nil
}

// StartProcessing begins or resumes the scheduler with the given run
// configuration. It is a no-op if a run is already active; if that run has a
// pending stop request the request is withdrawn and the run keeps its
// original configuration.
func (s *QueueService) StartProcessing(cfg RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServiceClosed
	}
	if s.breaker.Tripped() {
		return ErrCircuitTripped
	}

	if s.runState == RunStateRunning {
		if s.stopRequested {
			s.stopRequested = false
			s.stopCh = make(chan struct{})
			s.logger.Info("stop request withdrawn")
		}
		return nil
	}

	s.cfg = cfg
	s.runState = RunStateRunning
	s.stopRequested = false
	s.stopCh = make(chan struct{})
	done := make(chan struct{})
	s.done = done

	s.logger.Info("starting curriculum run",
		"item_count", len(s.items),
		"auto_approve", cfg.AutoApprove,
		"phase1_model", cfg.Phase1.Model,
		"phase2_model", cfg.Phase2.Model)
	s.publishLocked()

	s.wg.Add(1)
	go s.run(done)
	return nil
}

// Stop asks the scheduler to halt. An in-flight generation call finishes and
// its result is recorded; no new call is started. A backoff wait in progress
// is cut short.
func (s *QueueService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestStopLocked()
}

func (s *QueueService) requestStopLocked() {
	if s.runState != RunStateRunning || s.stopRequested {
		return
	}
	s.stopRequested = true
	close(s.stopCh)
	s.logger.Info("stop requested")
}

// ResetCircuit closes the circuit breaker. It never resumes a run; call
// StartProcessing afterwards.
func (s *QueueService) ResetCircuit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.breaker.Tripped() && s.breaker.State().ConsecutiveFailures == 0 {
		return
	}
	s.breaker.Reset()
	s.logger.Info("circuit breaker reset")
	s.publishLocked()
}

// UpdateItemStructure approves a reviewed outline, moving the item from
// paused_for_review to struct_ready. A non-empty structure replaces the
// drafted outline. Outlines of struct_ready items may also be edited.
func (s *QueueService) UpdateItemStructure(id uuid.UUID, structure string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.findLocked(id)
	if err != nil {
		return err
	}

	switch item.Status {
	case domain.ItemStatusPausedForReview:
		if err := item.TransitionTo(domain.ItemStatusStructReady); err != nil {
			return err
		}
	case domain.ItemStatusStructReady:
	default:
		return fmt.Errorf("%w: cannot update structure of %s item", domain.ErrInvalidTransition, item.Status)
	}

	if structure != "" {
		item.Structure = structure
	}

	s.logger.Info("item structure approved", "item_id", id)
	s.publishLocked()
	return nil
}

// RejectStructure discards a drafted outline awaiting review and sends the
// item back to pending so phase 1 runs again with a fresh retry budget.
func (s *QueueService) RejectStructure(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.findLocked(id)
	if err != nil {
		return err
	}
	if err := item.TransitionTo(domain.ItemStatusPending); err != nil {
		return err
	}

	item.Structure = ""
	item.RetryCount = 0
	item.ErrorMsg = ""
	item.FailedPhase = domain.PhaseNone

	s.logger.Info("item structure rejected", "item_id", id)
	s.publishLocked()
	return nil
}

// RetryItem gives an errored item a fresh retry budget for the phase it
// failed in, making it eligible for the next scan.
func (s *QueueService) RetryItem(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.findLocked(id)
	if err != nil {
		return err
	}
	if item.Status != domain.ItemStatusError {
		return fmt.Errorf("%w: only errored items can be retried, item is %s", domain.ErrInvalidTransition, item.Status)
	}

	item.RetryCount = 0

	s.logger.Info("item retry budget reset", "item_id", id, "failed_phase", item.FailedPhase.String())
	s.publishLocked()
	return nil
}

// MoveItem moves an item to the given position. Positions outside the queue
// are clamped. Only the pick order changes.
func (s *QueueService) MoveItem(id uuid.UUID, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.indexLocked(id)
	if from < 0 {
		return ErrItemNotFound
	}
	index = max(0, min(index, len(s.items)-1))
	if from == index {
		return nil
	}

	item := s.items[from]
	s.items = append(s.items[:from], s.items[from+1:]...)
	s.items = append(s.items[:index], append([]domain.QueueItem{item}, s.items[index:]...)...)

	s.publishLocked()
	return nil
}

// Reorder rearranges the queue to follow ids, which must name every item
// exactly once. Only the pick order changes.
func (s *QueueService) Reorder(ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) != len(s.items) {
		return fmt.Errorf("%w: expected %d ids, got %d", ErrInvalidOrder, len(s.items), len(ids))
	}

	byID := make(map[uuid.UUID]domain.QueueItem, len(s.items))
	for _, item := range s.items {
		byID[item.ID] = item
	}

	next := make([]domain.QueueItem, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown or repeated id %s", ErrInvalidOrder, id)
		}
		delete(byID, id)
		next = append(next, item)
	}

	s.items = next
	s.publishLocked()
	return nil
}

// RemoveItem drops an item from the queue. Items with a call in flight cannot
// be removed.
func (s *QueueService) RemoveItem(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return ErrItemNotFound
	}
	if s.items[idx].IsInFlight() {
		return ErrItemInFlight
	}

	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.logger.Info("item removed", "item_id", id)
	s.publishLocked()
	return nil
}

// Item returns a copy of one item.
func (s *QueueService) Item(id uuid.UUID) (domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.findLocked(id)
	if err != nil {
		return domain.QueueItem{}, err
	}
	return *item, nil
}

// Snapshot returns a copy of the current state.
func (s *QueueService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a handler that receives a QueueEvent after every
// state-affecting operation. The returned function unsubscribes.
func (s *QueueService) Subscribe(handler events.EventHandler) func() {
	return s.emitter.Subscribe(handler)
}

// Wait blocks until the current run ends or ctx is done.
func (s *QueueService) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the scheduler and waits for it to exit. If ctx expires first,
// the in-flight generation call is cancelled and the item is rolled back to
// its last stable status. A closed service refuses new runs.
func (s *QueueService) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.requestStopLocked()
	s.mu.Unlock()

	exited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(exited)
	}()

	var err error
	select {
	case <-exited:
	case <-ctx.Done():
		err = ctx.Err()
		s.cancel()
		<-exited
	}
	s.cancel()
	return err
}

func (s *QueueService) indexLocked(id uuid.UUID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *QueueService) findLocked(id uuid.UUID) (*domain.QueueItem, error) {
	idx := s.indexLocked(id)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	return &s.items[idx], nil
}

func (s *QueueService) snapshotLocked() Snapshot {
	items := make([]domain.QueueItem, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Workspace:     s.key,
		Items:         items,
		RunState:      s.runState,
		IsProcessing:  s.runState == RunStateRunning,
		CircuitStatus: s.breaker.Status(),
		Circuit:       s.breaker.State(),
		Exhausted:     s.exhaustedLocked(),
		Version:       s.version,
	}
}

func (s *QueueService) exhaustedLocked() int {
	n := 0
	for i := range s.items {
		if s.retry.Exhausted(&s.items[i]) {
			n++
		}
	}
	return n
}

// publishLocked persists the queue and notifies subscribers. Failures are
// logged and never change the queue state.
func (s *QueueService) publishLocked() {
	s.version++
	snap := s.snapshotLocked()

	// Persist even after Close cancelled the service context.
	ctx := context.WithoutCancel(s.ctx)

	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(ctx, s.key, snap.Items); err != nil {
			s.logger.Error("failed to persist queue snapshot",
				"error", err,
				"version", snap.Version)
		}
	}

	event := &events.QueueEvent{
		ID:            uuid.New(),
		Workspace:     s.key,
		Items:         snap.Items,
		IsProcessing:  snap.IsProcessing,
		CircuitStatus: snap.CircuitStatus,
		RunState:      string(snap.RunState),
		Version:       snap.Version,
		EmittedAt:     time.Now().UTC(),
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("queue event handler failed", "error", err, "version", snap.Version)
	}
}
