package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/scry-curriculum/internal/api/shared"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/service"
	"github.com/phrazzld/scry-curriculum/internal/service/auth"
	"github.com/phrazzld/scry-curriculum/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "nil error",
			err:            nil,
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "An unexpected error occurred",
		},
		{
			name:           "expired token",
			err:            auth.ErrExpiredToken,
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "Token expired",
		},
		{
			name:           "wrapped invalid token",
			err:            fmt.Errorf("failed to authenticate: %w", auth.ErrInvalidToken),
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "Invalid token",
		},
		{
			name:           "missing token",
			err:            auth.ErrMissingToken,
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "Authentication required",
		},
		{
			name:           "item not found",
			err:            curriculum.ErrItemNotFound,
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Queue item not found",
		},
		{
			name:           "note not found",
			err:            fmt.Errorf("get note: %w", store.ErrNoteNotFound),
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "Note not found",
		},
		{
			name:           "run in progress",
			err:            curriculum.ErrRunInProgress,
			expectedStatus: http.StatusConflict,
			expectedMsg:    "A curriculum run is in progress",
		},
		{
			name:           "invalid transition",
			err:            fmt.Errorf("%w: cannot update structure of pending item", domain.ErrInvalidTransition),
			expectedStatus: http.StatusConflict,
			expectedMsg:    "The item cannot make that change in its current status",
		},
		{
			name:           "item in flight",
			err:            curriculum.ErrItemInFlight,
			expectedStatus: http.StatusConflict,
			expectedMsg:    "The item is being generated",
		},
		{
			name:           "circuit tripped",
			err:            curriculum.ErrCircuitTripped,
			expectedStatus: http.StatusConflict,
			expectedMsg:    "Circuit breaker is tripped; reset it before starting a run",
		},
		{
			name:           "duplicate item",
			err:            curriculum.ErrDuplicateItem,
			expectedStatus: http.StatusConflict,
			expectedMsg:    "Duplicate queue item",
		},
		{
			name:           "invalid run config",
			err:            fmt.Errorf("%w: phase1 model required", curriculum.ErrInvalidRunConfig),
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid run configuration",
		},
		{
			name:           "invalid order",
			err:            curriculum.ErrInvalidOrder,
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Order must list every queue item exactly once",
		},
		{
			name:           "item validation",
			err:            fmt.Errorf("%w: item 0: %w", domain.ErrValidation, domain.ErrInvalidItemStatus),
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid entity data",
		},
		{
			name:           "invalid entity",
			err:            store.ErrInvalidEntity,
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid entity data",
		},
		{
			name:           "service closed",
			err:            curriculum.ErrServiceClosed,
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "Service is shutting down",
		},
		{
			name:           "manager closed",
			err:            service.ErrManagerClosed,
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "Service is shutting down",
		},
		{
			name:           "unknown error",
			err:            errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "An unexpected error occurred",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
			assert.Equal(t, tc.expectedMsg, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	t.Run("default message replaces internal errors", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(shared.SetTraceID(req.Context()))
		rr := httptest.NewRecorder()

		HandleAPIError(rr, req, errors.New("pq: password authentication failed"), "Failed to load queue")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "Failed to load queue", resp.Error)
		assert.Equal(t, shared.GetTraceID(req.Context()), resp.TraceID)
	})

	t.Run("known errors keep their safe message", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		HandleAPIError(rr, req, curriculum.ErrItemNotFound, "Failed to load queue")

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"Queue item not found"}`, rr.Body.String())
	})
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := validate.Struct(&MoveItemRequest{})
	require.Error(t, err)
	assert.Equal(t, "Invalid Position: required field", SanitizeValidationError(err))

	negative := -1
	err = validate.Struct(&MoveItemRequest{Position: &negative})
	require.Error(t, err)
	assert.Equal(t, "Invalid Position: too small", SanitizeValidationError(err))

	flattened := errors.New("Key: 'ReorderRequest.IDs' Error:Field validation for 'IDs' failed on the 'required' tag")
	assert.Equal(t, "Invalid IDs: required field", SanitizeValidationError(flattened))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))
}
