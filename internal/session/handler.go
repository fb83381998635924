package session

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/observer/syncparty/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The channel is credential-gated at the message level, not the
	// handshake, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests on /ws to session channels.
type Handler struct {
	hub    *Hub
	logger *slog.Logger
}

// NewHandler creates the /ws handler.
func NewHandler(hub *Hub, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// ServeHTTP upgrades the connection and runs the client pumps. It
// blocks until the peer disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	client := NewClient(h.hub, conn, h.logger)
	go client.WritePump()
	client.ReadPump() // blocks here until client disconnects
}
