package curriculum

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/phrazzld/scry-curriculum/internal/domain"
)

// Default retry settings
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 30 * time.Second

	maxErrorMsgLen = 500
)

// RetryPolicy decides whether a failed generation call is attempted again and
// how long the scheduler waits before the next attempt. The budget is counted
// in failures per phase: an item may fail MaxAttempts-1 times and still be
// retried, and the MaxAttempts-th failure is terminal.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryDecision is the outcome of evaluating one failure.
type RetryDecision struct {
	// Retry is true when the item stays eligible for its failed phase
	Retry bool
	// Delay is the backoff to wait before the next tick; zero when Retry is false
	Delay time.Duration
	// Attempt is the item's failure count after this failure
	Attempt int
}

// DefaultRetryPolicy returns a RetryPolicy with the default settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// withDefaults fills unset fields.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.BaseDelay > p.MaxDelay {
		p.BaseDelay = p.MaxDelay
	}
	return p
}

// Delay returns the capped exponential backoff for the given attempt number
// (1-based): BaseDelay, 2*BaseDelay, 4*BaseDelay, ... never above MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay >= p.MaxDelay/2 {
			return p.MaxDelay
		}
		delay *= 2
	}
	return min(delay, p.MaxDelay)
}

// Evaluate records a failure of the given phase on the item and decides
// whether it may be retried. It increments RetryCount and overwrites ErrorMsg
// and FailedPhase; the caller is responsible for the status transition.
func (p RetryPolicy) Evaluate(item *domain.QueueItem, phase domain.Phase, err error) RetryDecision {
	item.RetryCount++
	item.ErrorMsg = summarizeError(err)
	item.FailedPhase = phase

	if item.RetryCount < p.MaxAttempts {
		return RetryDecision{
			Retry:   true,
			Delay:   p.Delay(item.RetryCount),
			Attempt: item.RetryCount,
		}
	}
	return RetryDecision{Attempt: item.RetryCount}
}

// CanRetry reports whether an errored item still has budget left for its failed phase.
func (p RetryPolicy) CanRetry(item *domain.QueueItem) bool {
	return item.Status == domain.ItemStatusError && item.RetryCount < p.MaxAttempts
}

// Exhausted reports whether an errored item has used up its retry budget.
func (p RetryPolicy) Exhausted(item *domain.QueueItem) bool {
	return item.Status == domain.ItemStatusError && item.RetryCount >= p.MaxAttempts
}

// summarizeError flattens an error to a single bounded line for display.
func summarizeError(err error) string {
	if err == nil {
		return "unknown error"
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if msg == "" {
		return "unknown error"
	}
	if len(msg) > maxErrorMsgLen {
		msg = cutAtRune(msg, maxErrorMsgLen-3) + "..."
	}
	return msg
}

// cutAtRune returns the longest prefix of s that is at most n bytes and does
// not split a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
