package curriculum

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-curriculum/internal/domain"
)

// Sentinel errors returned by QueueService operations. Callers check them with
// errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrItemNotFound indicates that no item with the given ID is in the queue.
	ErrItemNotFound = errors.New("queue item not found")

	// ErrRunInProgress indicates the operation is not allowed while the scheduler is running.
	ErrRunInProgress = errors.New("a curriculum run is in progress")

	// ErrCircuitTripped indicates the circuit breaker is open and must be reset
	// before a run can start.
	ErrCircuitTripped = errors.New("circuit breaker is tripped")

	// ErrInvalidRunConfig indicates the run configuration failed validation.
	ErrInvalidRunConfig = errors.New("invalid run configuration")

	// ErrDuplicateItem indicates a queue contains the same item ID more than once.
	ErrDuplicateItem = errors.New("duplicate queue item")

	// ErrInvalidOrder indicates a reorder request is not a permutation of the queue.
	ErrInvalidOrder = errors.New("invalid queue order")

	// ErrItemInFlight indicates the item has a generation call outstanding.
	ErrItemInFlight = errors.New("queue item has a generation call in flight")

	// ErrServiceClosed indicates the service has been shut down.
	ErrServiceClosed = errors.New("queue service is closed")
)

// ErrInvalidTransition is re-exported so callers of this package need not
// import domain to detect a refused state change.
var ErrInvalidTransition = domain.ErrInvalidTransition

// QueueServiceError wraps unexpected errors from queue operations with context.
type QueueServiceError struct {
	// Operation is the operation that failed (e.g., "set_queue", "save_snapshot")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for QueueServiceError.
func (e *QueueServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("queue service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("queue service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *QueueServiceError) Unwrap() error {
	return e.Err
}
