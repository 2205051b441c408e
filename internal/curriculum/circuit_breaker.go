package curriculum

import "fmt"

// DefaultBreakerThreshold is the number of consecutive terminal item failures
// that trips the circuit.
const DefaultBreakerThreshold = 3

// CircuitState is a read-only view of the breaker.
type CircuitState struct {
	ConsecutiveFailures int    `json:"consecutive_failures"`
	Tripped             bool   `json:"tripped"`
	LastReason          string `json:"last_reason,omitempty"`
	Threshold           int    `json:"threshold"`
}

// CircuitBreaker guards a run against a broken generation service. Items that
// exhaust their own retries count toward the threshold; any successful
// generation call resets the count. Once tripped it stays open until Reset.
//
// CircuitBreaker is not safe for concurrent use; QueueService guards it.
type CircuitBreaker struct {
	threshold    int
	failureCount int
	tripped      bool
	lastReason   string
}

// NewCircuitBreaker creates a closed breaker. A threshold below one uses the default.
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	if threshold < 1 {
		threshold = DefaultBreakerThreshold
	}
	return &CircuitBreaker{threshold: threshold}
}

// RecordTerminalFailure counts an item that landed in error with no retries
// left. It returns true when this failure trips the breaker.
func (b *CircuitBreaker) RecordTerminalFailure(reason string) bool {
	b.failureCount++
	b.lastReason = reason
	if !b.tripped && b.failureCount >= b.threshold {
		b.tripped = true
		return true
	}
	return false
}

// RecordSuccess resets the consecutive failure count. It does not close a
// tripped breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.failureCount = 0
}

// Reset closes the breaker and clears its history. It does not resume a run.
func (b *CircuitBreaker) Reset() {
	b.failureCount = 0
	b.tripped = false
	b.lastReason = ""
}

// Tripped reports whether the breaker is open.
func (b *CircuitBreaker) Tripped() bool {
	return b.tripped
}

// State returns a copy of the breaker state.
func (b *CircuitBreaker) State() CircuitState {
	return CircuitState{
		ConsecutiveFailures: b.failureCount,
		Tripped:             b.tripped,
		LastReason:          b.lastReason,
		Threshold:           b.threshold,
	}
}

// Status returns the banner shown while the breaker is open, or an empty
// string while it is closed.
func (b *CircuitBreaker) Status() string {
	if !b.tripped {
		return ""
	}
	return fmt.Sprintf(
		"circuit breaker tripped after %d consecutive item failures (last error: %s); reset the circuit to resume",
		b.failureCount, b.lastReason,
	)
}
