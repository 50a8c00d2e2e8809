package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event types pushed over /events.
const (
	EventUploadReceived   = "upload_received"
	EventTranscribed      = "transcribed"
	EventTranscribeFailed = "transcribe_failed"
	EventClipCreated      = "clip_created"
)

// Event is a lifecycle notification for the browser client.
type Event struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Timestamp string `json:"ts"`
}

// defaultWriteWait bounds a single event write. A client that stops reading
// fills its TCP buffers and would otherwise block the broadcasting handler.
const defaultWriteWait = 5 * time.Second

// Hub fans lifecycle events out to connected websocket clients. Slow or
// broken clients are dropped on write failure; there is no replay.
type Hub struct {
	log       logrus.FieldLogger
	upgrader  websocket.Upgrader
	writeWait time.Duration

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub returns an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		log:       log,
		writeWait: defaultWriteWait,
		upgrader: websocket.Upgrader{
			// The UI is served from this same origin; other origins are
			// of no concern for a push-only event stream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// handleWS upgrades the connection and keeps it registered until the client
// goes away. The read loop exists only to detect closure; clients never
// send meaningful data.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("events: upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends an event to every connected client. Each write is bounded
// by the hub's write deadline, so a client that stopped reading is dropped
// instead of blocking the broadcasting handler.
func (h *Hub) Broadcast(eventType, name string) {
	ev := Event{
		Type:      eventType,
		Name:      name,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// drop unregisters and closes a connection.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// clientCount reports the number of connected clients (used in tests).
func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
