package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/api/shared"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
)

// Path parameter names shared by the router and the handlers.
const (
	workspaceIDParam = "workspaceID"
	itemIDParam      = "itemID"
)

// getUserIDFromContext extracts the authenticated user's UUID from the request context.
// The user ID is expected to be placed in the context by the authentication middleware.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	return shared.UserIDFromContext(r.Context())
}

// getPathUUID extracts and parses a UUID path parameter.
//
// Returns:
//   - (uuid.UUID, nil): The parsed UUID if valid
//   - (uuid.Nil, error): An error wrapping ErrInvalidPathParameter if the
//     parameter is missing, malformed or the nil UUID
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", ErrInvalidPathParameter, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", ErrInvalidPathParameter, paramName)
	}

	return id, nil
}

// workspaceKeyFromRequest builds the workspace key of a request from the
// authenticated user and the workspace path parameter. It writes an error
// response and returns false if either is missing.
func workspaceKeyFromRequest(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (domain.WorkspaceKey, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return domain.WorkspaceKey{}, false
	}

	workspaceID, err := getPathUUID(r, workspaceIDParam)
	if err != nil {
		log.Debug("invalid workspace ID", slog.String("value", chi.URLParam(r, workspaceIDParam)))
		HandleAPIError(w, r, err, "")
		return domain.WorkspaceKey{}, false
	}

	return domain.WorkspaceKey{OwnerID: userID, WorkspaceID: workspaceID}, true
}

// workspaceKeyAndItemID is workspaceKeyFromRequest plus the item path parameter.
func workspaceKeyAndItemID(
	w http.ResponseWriter,
	r *http.Request,
	log *slog.Logger,
) (domain.WorkspaceKey, uuid.UUID, bool) {
	key, ok := workspaceKeyFromRequest(w, r, log)
	if !ok {
		return domain.WorkspaceKey{}, uuid.Nil, false
	}

	itemID, err := getPathUUID(r, itemIDParam)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return domain.WorkspaceKey{}, uuid.Nil, false
	}

	return key, itemID, true
}

// decodeAndValidate decodes the JSON body into v and validates it, writing a
// 400 response and returning false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err), "")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}
