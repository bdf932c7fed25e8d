// Package live relays tenant broadcasts from Redis pub/sub to websocket
// clients.
package live

import (
	"log/slog"
	"sync"
)

// Hub tracks connected clients per tenant.
type Hub struct {
	mu      sync.RWMutex
	tenants map[string]map[*Client]struct{}
	count   int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{tenants: make(map[string]map[*Client]struct{})}
}

// Register adds c and returns the number of connected clients.
func (h *Hub) Register(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.tenants[c.tenantID]
	if !ok {
		set = make(map[*Client]struct{})
		h.tenants[c.tenantID] = set
	}
	if _, exists := set[c]; !exists {
		set[c] = struct{}{}
		h.count++
	}
	return h.count
}

// Unregister removes c and closes its send queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.tenants[c.tenantID]
	if !ok {
		return
	}
	if _, exists := set[c]; !exists {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.tenants, c.tenantID)
	}
	h.count--
	c.closeSend()
}

// Broadcast queues msg for every client of tenantID and returns how many
// accepted it. A client whose queue is full is disconnected.
func (h *Hub) Broadcast(tenantID string, msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for c := range h.tenants[tenantID] {
		select {
		case c.send <- msg:
			delivered++
		default:
			slog.Warn("Dropping slow websocket client", "tenant_id", tenantID, "client_id", c.id)
			h.removeLocked(c)
		}
	}
	return delivered
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// TenantClientCount returns the number of clients connected for tenantID.
func (h *Hub) TenantClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tenants[tenantID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.tenants {
		for c := range set {
			h.removeLocked(c)
		}
	}
}
