package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scheduler-client/internal/models"
)

const writeWait = 5 * time.Second

// Hub pushes status and plan updates to every connected UI.
type Hub struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}
	upgrader    websocket.Upgrader
	log         *slog.Logger
	onConnect   func() *models.WSMessage
}

// NewHub accepts connections from allowedOrigin; an empty origin allows any.
func NewHub(allowedOrigin string, log *slog.Logger) *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// OnConnect sets the message sent to each new connection, e.g. the current
// status line.
func (h *Hub) OnConnect(fn func() *models.WSMessage) {
	h.onConnect = fn
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	h.register(conn)

	if h.onConnect != nil {
		if msg := h.onConnect(); msg != nil {
			h.send(conn, *msg)
		}
	}

	// The UI never sends anything; reading only detects the disconnect.
	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) Broadcast(msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode websocket message", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("dropping websocket client", slog.Any("error", err))
			conn.Close()
			delete(h.connections, conn)
		}
	}
}

// ConnectionCount reports the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

func (h *Hub) send(conn *websocket.Conn, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = struct{}{}
	h.log.Debug("websocket connected", slog.Int("total", len(h.connections)))
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.Close()
	delete(h.connections, conn)
	h.log.Debug("websocket disconnected", slog.Int("total", len(h.connections)))
}
