package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/events"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
	"github.com/phrazzld/scry-curriculum/internal/service"
)

// Stream timing defaults.
const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

// StreamHandler pushes QueueEvents to WebSocket subscribers. Each connection
// first receives the current snapshot and then every later snapshot of the
// workspace. A slow client only ever sees the newest snapshot it has not
// consumed yet; intermediate ones are skipped.
type StreamHandler struct {
	manager  service.WorkspaceManager
	logger   *slog.Logger
	upgrader websocket.Upgrader

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStreamHandler creates a new StreamHandler. checkOrigin may be nil, in
// which case gorilla's same-origin check applies.
func NewStreamHandler(
	manager service.WorkspaceManager,
	checkOrigin func(r *http.Request) bool,
	logger *slog.Logger,
) *StreamHandler {
	if manager == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("workspace manager cannot be nil for StreamHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for StreamHandler")
	}

	return &StreamHandler{
		manager: manager,
		logger:  logger.With(slog.String("component", "stream_handler")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		closed: make(chan struct{}),
	}
}

// Close ends every open stream. Hijacked connections outlive
// http.Server.Shutdown, so servers register Close with RegisterOnShutdown.
func (h *StreamHandler) Close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// Stream handles GET /api/workspaces/{workspaceID}/queue/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	key, ok := workspaceKeyFromRequest(w, r, log)
	if !ok {
		return
	}
	svc, err := h.manager.Get(r.Context(), key)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to open workspace")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response
		log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	log = log.With(slog.String("workspace", key.String()))
	log.Info("queue stream opened")
	defer log.Info("queue stream closed")

	// latest holds at most one undelivered event. The publisher replaces a
	// stale event instead of blocking, since it runs under the queue lock.
	latest := make(chan *events.QueueEvent, 1)
	unsubscribe := svc.Subscribe(events.HandlerFunc(func(_ context.Context, event *events.QueueEvent) error {
		for {
			select {
			case latest <- event:
				return nil
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	}))
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.readPump(conn, cancel)

	initial := snapshotEvent(svc.Snapshot())
	if err := writeEvent(conn, initial); err != nil {
		log.Debug("failed to write initial snapshot", slog.String("error", err.Error()))
		return
	}
	lastVersion := initial.Version

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case event := <-latest:
			if event.Version <= lastVersion {
				continue
			}
			if err := writeEvent(conn, event); err != nil {
				log.Debug("failed to write queue event", slog.String("error", err.Error()))
				return
			}
			lastVersion = event.Version

		case <-ping.C:
			deadline := time.Now().Add(streamWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-h.closed:
			deadline := time.Now().Add(streamWriteWait)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return

		case <-ctx.Done():
			return
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh from
// pongs. It cancels the stream when the client goes away.
func (h *StreamHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event *events.QueueEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}

// snapshotEvent wraps a snapshot in the event shape the stream sends.
func snapshotEvent(snap curriculum.Snapshot) *events.QueueEvent {
	return &events.QueueEvent{
		ID:            uuid.New(),
		Workspace:     snap.Workspace,
		Items:         snap.Items,
		IsProcessing:  snap.IsProcessing,
		CircuitStatus: snap.CircuitStatus,
		RunState:      string(snap.RunState),
		Version:       snap.Version,
		EmittedAt:     time.Now().UTC(),
	}
}
