package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withURLParams attaches chi route parameters to a request.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetUserIDFromContext(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.WithUserID(req.Context(), userID))

	got, ok := getUserIDFromContext(req)
	assert.True(t, ok)
	assert.Equal(t, userID, got)

	_, ok = getUserIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestGetPathUUID(t *testing.T) {
	t.Parallel()

	validID := uuid.New()

	tests := []struct {
		name    string
		value   string
		want    uuid.UUID
		wantErr bool
	}{
		{name: "valid", value: validID.String(), want: validID},
		{name: "missing", value: "", wantErr: true},
		{name: "malformed", value: "not-a-uuid", wantErr: true},
		{name: "nil uuid", value: uuid.Nil.String(), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = withURLParams(req, map[string]string{itemIDParam: tc.value})

			got, err := getPathUUID(req, itemIDParam)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidPathParameter)
				assert.Equal(t, uuid.Nil, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWorkspaceKeyFromRequest(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	workspaceID := uuid.New()

	t.Run("builds key from user and path", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(shared.WithUserID(req.Context(), userID))
		req = withURLParams(req, map[string]string{workspaceIDParam: workspaceID.String()})
		rr := httptest.NewRecorder()

		key, ok := workspaceKeyFromRequest(rr, req, discardLogger())
		require.True(t, ok)
		assert.Equal(t, userID, key.OwnerID)
		assert.Equal(t, workspaceID, key.WorkspaceID)
	})

	t.Run("missing user is unauthorized", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = withURLParams(req, map[string]string{workspaceIDParam: workspaceID.String()})
		rr := httptest.NewRecorder()

		_, ok := workspaceKeyFromRequest(rr, req, discardLogger())
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("bad workspace id is a bad request", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(shared.WithUserID(req.Context(), userID))
		req = withURLParams(req, map[string]string{workspaceIDParam: "nope"})
		rr := httptest.NewRecorder()

		_, ok := workspaceKeyFromRequest(rr, req, nil)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid path parameter")
	})
}

func TestDecodeAndValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantMsg    string
	}{
		{name: "valid", body: `{"position":2}`, wantOK: true},
		{name: "malformed", body: `{"position":`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid request format"},
		{name: "unknown field", body: `{"pos":1}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid request format"},
		{name: "missing position", body: `{}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid Position: required field"},
		{name: "negative position", body: `{"position":-3}`, wantStatus: http.StatusBadRequest, wantMsg: "Invalid Position: too small"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			var move MoveItemRequest
			ok := decodeAndValidate(rr, req, &move)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				require.NotNil(t, move.Position)
				assert.Equal(t, 2, *move.Position)
				return
			}
			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantMsg)
		})
	}
}
