package curriculum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/generation"
)

// job is one claimed generation call.
type job struct {
	itemID    uuid.UUID
	topic     string
	structure string
	phase     domain.Phase
	cfg       RunConfig
}

// run is the scheduler loop. Each iteration claims at most one item, performs
// its generation call without holding the lock, records the outcome, and
// waits out any retry backoff.
func (s *QueueService) run(done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	s.logger.Debug("scheduler loop started")

	for {
		j, ok := s.claimNext()
		if !ok {
			s.logger.Debug("scheduler loop exited")
			return
		}

		output, err := s.execute(j)

		delay, stopCh := s.complete(j, output, err)
		if delay > 0 {
			s.backoff(delay, stopCh)
		}
	}
}

// claimNext checks the halt conditions, then scans for the first eligible
// phase 1 item and, failing that, the first eligible phase 2 item. The
// claimed item is moved to its in-flight status before the lock is released.
func (s *QueueService) claimNext() (job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.breaker.Tripped():
		s.finishLocked(RunStateHalted, "circuit breaker tripped")
		return job{}, false
	case s.stopRequested:
		s.finishLocked(RunStateHalted, "stop requested")
		return job{}, false
	case s.ctx.Err() != nil:
		s.finishLocked(RunStateHalted, "service closed")
		return job{}, false
	}

	phase := domain.PhaseStructure
	idx := s.scanLocked(phase)
	if idx < 0 {
		phase = domain.PhaseContent
		idx = s.scanLocked(phase)
	}
	if idx < 0 {
		s.finishLocked(RunStateIdle, "no eligible work")
		return job{}, false
	}

	item := &s.items[idx]
	target := domain.ItemStatusDraftingStruct
	if phase == domain.PhaseContent {
		target = domain.ItemStatusGeneratingNote
		if item.Status == domain.ItemStatusStructReady {
			// Phase 2 gets its own retry budget.
			item.RetryCount = 0
			item.ErrorMsg = ""
			item.FailedPhase = domain.PhaseNone
		}
	}

	if err := item.TransitionTo(target); err != nil {
		s.logger.Error("failed to claim item", "item_id", item.ID, "error", err)
		s.finishLocked(RunStateHalted, "claim failed")
		return job{}, false
	}
	s.inFlight = item.ID

	s.logger.Debug("claimed item",
		"item_id", item.ID,
		"phase", phase.String(),
		"retry_count", item.RetryCount)
	s.publishLocked()

	return job{
		itemID:    item.ID,
		topic:     item.Topic,
		structure: item.Structure,
		phase:     phase,
		cfg:       s.cfg,
	}, true
}

// scanLocked returns the index of the first item eligible for the phase, or -1.
func (s *QueueService) scanLocked(phase domain.Phase) int {
	fresh := domain.ItemStatusPending
	if phase == domain.PhaseContent {
		fresh = domain.ItemStatusStructReady
	}

	for i := range s.items {
		item := &s.items[i]
		if item.Status == fresh {
			return i
		}
		if item.FailedPhase == phase && s.retry.CanRetry(item) {
			return i
		}
	}
	return -1
}

func (s *QueueService) finishLocked(state RunState, reason string) {
	s.runState = state
	s.stopRequested = false
	s.inFlight = uuid.Nil

	counts := s.countsLocked()
	s.logger.Info("curriculum run halted",
		"reason", reason,
		"run_state", string(state),
		"done", counts[domain.ItemStatusDone],
		"paused_for_review", counts[domain.ItemStatusPausedForReview],
		"error", counts[domain.ItemStatusError],
		"exhausted", s.exhaustedLocked(),
		"pending", counts[domain.ItemStatusPending]+counts[domain.ItemStatusStructReady])
	s.publishLocked()
}

func (s *QueueService) countsLocked() map[domain.ItemStatus]int {
	counts := make(map[domain.ItemStatus]int)
	for _, item := range s.items {
		counts[item.Status]++
	}
	return counts
}

// execute performs the generation call for a claimed item. For phase 2 the
// note is handed to the sink before the call counts as a success.
func (s *QueueService) execute(j job) (string, error) {
	start := time.Now()
	logger := s.logger.With("item_id", j.itemID, "phase", j.phase.String())

	var (
		output string
		err    error
	)
	switch j.phase {
	case domain.PhaseStructure:
		output, err = s.structure.GenerateStructure(s.ctx, j.topic, j.cfg.Phase1)
	case domain.PhaseContent:
		output, err = s.content.GenerateContent(s.ctx, j.topic, j.structure, j.cfg.Phase2)
	default:
		err = fmt.Errorf("unknown phase %d", j.phase)
	}

	if err == nil && strings.TrimSpace(output) == "" {
		err = fmt.Errorf("%w: empty %s output", generation.ErrInvalidResponse, j.phase.String())
	}

	if err == nil && j.phase == domain.PhaseContent && s.notes != nil {
		item := domain.QueueItem{
			ID:        j.itemID,
			Topic:     j.topic,
			Status:    domain.ItemStatusGeneratingNote,
			Structure: j.structure,
		}
		if sinkErr := s.notes.SaveNote(s.ctx, s.key, item, output); sinkErr != nil {
			err = fmt.Errorf("failed to save note: %w", sinkErr)
		}
	}

	if err != nil {
		logger.Warn("generation call failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
	} else {
		logger.Debug("generation call succeeded", "duration_ms", time.Since(start).Milliseconds())
	}
	return output, err
}

// complete records the outcome of a generation call. It returns the backoff
// to wait before the next tick and the stop channel that cuts the wait short.
func (s *QueueService) complete(j job, output string, callErr error) (time.Duration, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = uuid.Nil

	item, err := s.findLocked(j.itemID)
	if err != nil {
		s.logger.Error("claimed item disappeared from queue", "item_id", j.itemID)
		return 0, nil
	}

	// A call aborted by Close is not the item's fault.
	if callErr != nil && s.ctx.Err() != nil && errors.Is(callErr, context.Canceled) {
		item.RestoreInFlight()
		s.logger.Info("generation call cancelled by shutdown", "item_id", item.ID)
		s.publishLocked()
		return 0, nil
	}

	if callErr == nil {
		s.succeedLocked(item, j, output)
		s.publishLocked()
		return 0, nil
	}

	decision := s.retry.Evaluate(item, j.phase, callErr)
	if err := item.TransitionTo(domain.ItemStatusError); err != nil {
		s.logger.Error("failed to record item failure", "item_id", item.ID, "error", err)
	}

	if decision.Retry {
		s.logger.Info("item failed, will retry",
			"item_id", item.ID,
			"phase", j.phase.String(),
			"attempt", decision.Attempt,
			"max_attempts", s.retry.MaxAttempts,
			"backoff", decision.Delay.String())
		s.publishLocked()
		return decision.Delay, s.stopCh
	}

	tripped := s.breaker.RecordTerminalFailure(fmt.Sprintf("%s: %s", item.Topic, item.ErrorMsg))
	s.logger.Warn("item failed permanently",
		"item_id", item.ID,
		"phase", j.phase.String(),
		"attempts", decision.Attempt,
		"consecutive_failures", s.breaker.State().ConsecutiveFailures)
	if tripped {
		s.logger.Error("circuit breaker tripped", "status", s.breaker.Status())
	}
	s.publishLocked()
	return 0, nil
}

func (s *QueueService) succeedLocked(item *domain.QueueItem, j job, output string) {
	s.breaker.RecordSuccess()
	item.ErrorMsg = ""
	item.FailedPhase = domain.PhaseNone

	switch j.phase {
	case domain.PhaseStructure:
		item.Structure = output
		target := domain.ItemStatusPausedForReview
		if j.cfg.AutoApprove {
			target = domain.ItemStatusStructReady
		}
		if err := item.TransitionTo(target); err != nil {
			s.logger.Error("failed to record structure", "item_id", item.ID, "error", err)
			return
		}
		s.logger.Info("structure drafted", "item_id", item.ID, "status", string(item.Status))
	case domain.PhaseContent:
		if err := item.TransitionTo(domain.ItemStatusDone); err != nil {
			s.logger.Error("failed to record note", "item_id", item.ID, "error", err)
			return
		}
		s.logger.Info("note generated", "item_id", item.ID)
	}
}

// backoff waits for the retry delay, returning early on stop or shutdown.
func (s *QueueService) backoff(delay time.Duration, stopCh <-chan struct{}) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-stopCh:
	case <-s.ctx.Done():
	}
}
