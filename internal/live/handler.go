package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnectedMessage is sent to a client right after it connects.
type ConnectedMessage struct {
	Type    string           `json:"type"`
	Payload ConnectedPayload `json:"payload"`
}

type ConnectedPayload struct {
	ClientCount int `json:"clientCount"`
}

// Handler upgrades requests to websocket connections. The tenant is taken
// from the "tenant" query parameter; authentication happens upstream.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler creates a handler. A nil checkOrigin accepts any origin.
func NewHandler(hub *Hub, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		http.Error(w, "tenant query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	client := newClient(uuid.NewString(), tenantID, conn, h.hub)
	count := h.hub.Register(client)

	// Written before writePump starts, so this goroutine is the only writer.
	hello, _ := json.Marshal(ConnectedMessage{Type: "connected", Payload: ConnectedPayload{ClientCount: count}})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		h.hub.Unregister(client)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	slog.Debug("Websocket client connected", "client_id", client.id, "tenant_id", tenantID, "clients", count)
}
