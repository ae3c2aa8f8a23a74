package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// GET /api/v1/events
//
// Streams pipeline events as JSON text frames. An optional job_id or
// schema_id query parameter narrows the stream.
func (h *ScaffoldHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	jobID := r.URL.Query().Get("job_id")
	schemaID := r.URL.Query().Get("schema_id")

	ch, unsubscribe := h.events.Subscribe()
	defer unsubscribe()

	h.logger.Info("event subscriber connected", "remote", r.RemoteAddr, "job_id", jobID, "schema_id", schemaID)
	defer h.logger.Info("event subscriber disconnected", "remote", r.RemoteAddr)

	// Reader drains control frames and notices the peer going away.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			if jobID != "" && ev.JobID != jobID {
				continue
			}
			if schemaID != "" && ev.SchemaID != schemaID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
