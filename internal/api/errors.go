package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-curriculum/internal/api/shared"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/service"
	"github.com/phrazzld/scry-curriculum/internal/service/auth"
	"github.com/phrazzld/scry-curriculum/internal/store"
)

// Request-level errors raised by the handlers themselves.
var (
	// ErrInvalidRequest is returned when a request body cannot be decoded.
	ErrInvalidRequest = errors.New("invalid request body")

	// ErrInvalidPathParameter is returned when a path parameter is missing or malformed.
	ErrInvalidPathParameter = errors.New("invalid path parameter")
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, curriculum.ErrItemNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflicts with the current queue or run state
	case errors.Is(err, curriculum.ErrRunInProgress),
		errors.Is(err, curriculum.ErrInvalidTransition),
		errors.Is(err, curriculum.ErrItemInFlight),
		errors.Is(err, curriculum.ErrDuplicateItem),
		errors.Is(err, curriculum.ErrCircuitTripped),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidPathParameter),
		errors.Is(err, curriculum.ErrInvalidRunConfig),
		errors.Is(err, curriculum.ErrInvalidOrder),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyTopic),
		errors.Is(err, domain.ErrEmptyOwnerID),
		errors.Is(err, domain.ErrEmptyWorkspaceID),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	// The process is shutting down
	case errors.Is(err, curriculum.ErrServiceClosed),
		errors.Is(err, service.ErrManagerClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	// Not found errors
	case errors.Is(err, curriculum.ErrItemNotFound):
		return "Queue item not found"
	case errors.Is(err, store.ErrNoteNotFound):
		return "Note not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	// Conflict errors
	case errors.Is(err, curriculum.ErrRunInProgress):
		return "A curriculum run is in progress"
	case errors.Is(err, curriculum.ErrInvalidTransition):
		return "The item cannot make that change in its current status"
	case errors.Is(err, curriculum.ErrItemInFlight):
		return "The item is being generated"
	case errors.Is(err, curriculum.ErrDuplicateItem),
		errors.Is(err, store.ErrDuplicate):
		return "Duplicate queue item"
	case errors.Is(err, curriculum.ErrCircuitTripped):
		return "Circuit breaker is tripped; reset it before starting a run"

	// Bad request errors
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request format"
	case errors.Is(err, ErrInvalidPathParameter):
		return "Invalid path parameter"
	case errors.Is(err, curriculum.ErrInvalidRunConfig):
		return "Invalid run configuration"
	case errors.Is(err, curriculum.ErrInvalidOrder):
		return "Order must list every queue item exactly once"
	case errors.Is(err, domain.ErrEmptyTopic):
		return "Topic cannot be empty"
	case errors.Is(err, domain.ErrEmptyOwnerID),
		errors.Is(err, domain.ErrEmptyWorkspaceID):
		return "Invalid workspace"
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation):
		return "Invalid entity data"

	// Unavailable
	case errors.Is(err, curriculum.ErrServiceClosed),
		errors.Is(err, service.ErrManagerClosed):
		return "Service is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err, logging the
// redacted error. defaultMsg replaces the safe message for errors that map to
// 500, so callers can describe what failed without exposing why.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}

	var opts []shared.ResponseOption
	if status == http.StatusConflict {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message naming the first failing field.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	// Fall back to parsing the message of errors that were flattened to text
	errMsg := err.Error()
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 5 {
				return fmt.Sprintf("Invalid %s: %s", fieldParts[1], getValidationTagMessage(fieldParts[3]))
			}
			if len(fieldParts) >= 3 {
				return fmt.Sprintf("Invalid %s", fieldParts[1])
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gte":
		return "too small"
	case "lte":
		return "too large"
	case "uuid":
		return "invalid identifier"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
