package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/api/shared"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
	"github.com/phrazzld/scry-curriculum/internal/service"
)

// QueueHandler handles the curriculum queue endpoints of a workspace.
// Every handler resolves the workspace from the authenticated user and the
// workspaceID path parameter, so users only ever see their own queues.
type QueueHandler struct {
	manager service.WorkspaceManager
	logger  *slog.Logger
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(manager service.WorkspaceManager, logger *slog.Logger) *QueueHandler {
	if manager == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("workspace manager cannot be nil for QueueHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for QueueHandler")
	}

	return &QueueHandler{
		manager: manager,
		logger:  logger.With(slog.String("component", "queue_handler")),
	}
}

// queueService resolves the request's workspace and its QueueService,
// writing an error response and returning false on failure.
func (h *QueueHandler) queueService(
	w http.ResponseWriter,
	r *http.Request,
) (*curriculum.QueueService, *slog.Logger, bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	key, ok := workspaceKeyFromRequest(w, r, log)
	if !ok {
		return nil, log, false
	}

	svc, err := h.manager.Get(r.Context(), key)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to open workspace")
		return nil, log, false
	}
	return svc, log.With(slog.String("workspace", key.String())), true
}

// respondWithQueue writes the current snapshot of svc.
func respondWithQueue(w http.ResponseWriter, r *http.Request, status int, svc *curriculum.QueueService) {
	shared.RespondWithJSON(w, r, status, svc.Snapshot())
}

// ListWorkspaces handles GET /api/workspaces
// It lists the IDs of the caller's workspaces that have a stored queue.
func (h *QueueHandler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}

	keys, err := h.manager.Workspaces(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list workspaces")
		return
	}

	resp := WorkspacesResponse{Workspaces: make([]string, 0, len(keys))}
	for _, key := range keys {
		resp.Workspaces = append(resp.Workspaces, key.WorkspaceID.String())
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetQueue handles GET /api/workspaces/{workspaceID}/queue
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	svc, _, ok := h.queueService(w, r)
	if !ok {
		return
	}
	respondWithQueue(w, r, http.StatusOK, svc)
}

// SetQueue handles PUT /api/workspaces/{workspaceID}/queue
// It replaces the queue with the topics or items in the request body.
func (h *QueueHandler) SetQueue(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.queueService(w, r)
	if !ok {
		return
	}

	var req SetQueueRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	items, err := req.QueueItems()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := svc.SetQueue(items); err != nil {
		HandleAPIError(w, r, err, "Failed to set queue")
		return
	}

	log.Info("queue set", slog.Int("item_count", len(items)))
	respondWithQueue(w, r, http.StatusOK, svc)
}

// ClearQueue handles DELETE /api/workspaces/{workspaceID}/queue
// It empties the queue and deletes the workspace's notes.
func (h *QueueHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	key, ok := workspaceKeyFromRequest(w, r, log)
	if !ok {
		return
	}

	if err := h.manager.Clear(r.Context(), key); err != nil {
		HandleAPIError(w, r, err, "Failed to clear queue")
		return
	}

	log.Info("queue cleared", slog.String("workspace", key.String()))
	w.WriteHeader(http.StatusNoContent)
}

// StartRun handles POST /api/workspaces/{workspaceID}/queue/start
// The body is the run configuration held for the whole run.
func (h *QueueHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.queueService(w, r)
	if !ok {
		return
	}

	var cfg curriculum.RunConfig
	if !decodeAndValidate(w, r, &cfg) {
		return
	}

	if err := svc.StartProcessing(cfg); err != nil {
		HandleAPIError(w, r, err, "Failed to start run")
		return
	}

	log.Info("run started",
		slog.String("phase1_model", cfg.Phase1.Model),
		slog.String("phase2_model", cfg.Phase2.Model),
		slog.Bool("auto_approve", cfg.AutoApprove))
	respondWithQueue(w, r, http.StatusAccepted, svc)
}

// StopRun handles POST /api/workspaces/{workspaceID}/queue/stop
func (h *QueueHandler) StopRun(w http.ResponseWriter, r *http.Request) {
	svc, _, ok := h.queueService(w, r)
	if !ok {
		return
	}
	svc.Stop()
	respondWithQueue(w, r, http.StatusAccepted, svc)
}

// ResetCircuit handles POST /api/workspaces/{workspaceID}/queue/circuit/reset
func (h *QueueHandler) ResetCircuit(w http.ResponseWriter, r *http.Request) {
	svc, log, ok := h.queueService(w, r)
	if !ok {
		return
	}
	svc.ResetCircuit()
	log.Info("circuit reset requested")
	respondWithQueue(w, r, http.StatusOK, svc)
}

// Reorder handles PUT /api/workspaces/{workspaceID}/queue/order
func (h *QueueHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	svc, _, ok := h.queueService(w, r)
	if !ok {
		return
	}

	var req ReorderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := svc.Reorder(req.IDs); err != nil {
		HandleAPIError(w, r, err, "Failed to reorder queue")
		return
	}
	respondWithQueue(w, r, http.StatusOK, svc)
}

// itemRef identifies the queue item an item route operates on.
type itemRef struct {
	id  uuid.UUID
	log *slog.Logger
}

// itemRequest resolves the workspace service and item ID of an item route.
func (h *QueueHandler) itemRequest(w http.ResponseWriter, r *http.Request) (*curriculum.QueueService, itemRef, bool) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	key, itemID, ok := workspaceKeyAndItemID(w, r, log)
	if !ok {
		return nil, itemRef{}, false
	}

	svc, err := h.manager.Get(r.Context(), key)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to open workspace")
		return nil, itemRef{}, false
	}

	return svc, itemRef{id: itemID, log: log.With(
		slog.String("workspace", key.String()),
		slog.String("item_id", itemID.String()),
	)}, true
}

// GetItem handles GET /api/workspaces/{workspaceID}/queue/items/{itemID}
func (h *QueueHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	svc, ref, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	item, err := svc.Item(ref.id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get queue item")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, item)
}

// MoveItem handles PATCH /api/workspaces/{workspaceID}/queue/items/{itemID}/position
func (h *QueueHandler) MoveItem(w http.ResponseWriter, r *http.Request) {
	svc, ref, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	var req MoveItemRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := svc.MoveItem(ref.id, *req.Position); err != nil {
		HandleAPIError(w, r, err, "Failed to move queue item")
		return
	}
	respondWithQueue(w, r, http.StatusOK, svc)
}

// UpdateStructure handles PUT /api/workspaces/{workspaceID}/queue/items/{itemID}/structure
// It approves, and optionally edits, an outline awaiting review.
func (h *QueueHandler) UpdateStructure(w http.ResponseWriter, r *http.Request) {
	svc, ref, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	var req UpdateStructureRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := svc.UpdateItemStructure(ref.id, req.Structure); err != nil {
		HandleAPIError(w, r, err, "Failed to update structure")
		return
	}

	ref.log.Info("structure approved", slog.Bool("edited", req.Structure != ""))
	respondWithQueue(w, r, http.StatusOK, svc)
}

// RejectStructure handles POST /api/workspaces/{workspaceID}/queue/items/{itemID}/reject
func (h *QueueHandler) RejectStructure(w http.ResponseWriter, r *http.Request) {
	svc, ref, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	if err := svc.RejectStructure(ref.id); err != nil {
		HandleAPIError(w, r, err, "Failed to reject structure")
		return
	}

	ref.log.Info("structure rejected")
	respondWithQueue(w, r, http.StatusOK, svc)
}

// RetryItem handles POST /api/workspaces/{workspaceID}/queue/items/{itemID}/retry
func (h *QueueHandler) RetryItem(w http.ResponseWriter, r *http.Request) {
	svc, ref, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	if err := svc.RetryItem(ref.id); err != nil {
		HandleAPIError(w, r, err, "Failed to retry item")
		return
	}

	ref.log.Info("item retry requested")
	respondWithQueue(w, r, http.StatusOK, svc)
}

// RemoveItem handles DELETE /api/workspaces/{workspaceID}/queue/items/{itemID}
func (h *QueueHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	svc, ref, ok := h.itemRequest(w, r)
	if !ok {
		return
	}

	if err := svc.RemoveItem(ref.id); err != nil {
		HandleAPIError(w, r, err, "Failed to remove item")
		return
	}

	ref.log.Info("item removed")
	w.WriteHeader(http.StatusNoContent)
}

// GetNote handles GET /api/workspaces/{workspaceID}/queue/items/{itemID}/note
func (h *QueueHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	key, itemID, ok := workspaceKeyAndItemID(w, r, log)
	if !ok {
		return
	}

	note, err := h.manager.GetNote(r.Context(), key, itemID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get note")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, noteToResponse(note))
}
