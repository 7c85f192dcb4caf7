package inbound

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shandysiswandi/goflight/internal/pkg/pkgrouter"
)

const (
	defaultEventsBuffer = 16
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
)

//nolint:gochecknoglobals // upgrader is safe for concurrent use
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are already filtered by the CORS layer.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Events streams the stage events of one analysis over a websocket. The first
// frame is a snapshot of the current status; the stream closes once the
// analysis reaches a terminal status.
func (h *HTTPEndpoint) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pkgrouter.GetParam(ctx, "id")

	buffer := h.cfg.EventsBuffer
	if buffer < 1 {
		buffer = defaultEventsBuffer
	}

	// Subscribe before reading the snapshot so no event falls in between.
	sub := h.hub.Subscribe(id, buffer)
	defer sub.Close()

	current, err := h.uc.Analysis(ctx, id)
	if err != nil {
		pkgrouter.WriteError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(ctx, "websocket upgrade failed", "analysis_id", id, "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	snapshot := EventMessage{
		Type:       "snapshot",
		AnalysisID: id,
		Status:     current.Meta.Status,
		Message:    current.Meta.Err,
	}
	if err := writeFrame(conn, snapshot); err != nil {
		return
	}
	if current.Meta.Status.Terminal() {
		closeNormal(conn)
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	go drainClient(conn, cancel)

	interval := h.cfg.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ping := time.NewTicker(interval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeFrame(conn, toEventMessage(ev)); err != nil {
				slog.DebugContext(ctx, "websocket write failed", "analysis_id", id, "error", err)
				return
			}
			if ev.Status.Terminal() {
				closeNormal(conn)
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg EventMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// drainClient reads until the peer goes away so control frames are handled.
func drainClient(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
