package ws

import (
	"sync"

	"magicpic_admin/internal/logger"
)

// Hub tracks the open view streams of every admin.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.AdminKey]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.AdminKey] = set
	}
	set[c] = struct{}{}
	logger.Debug("ws client registered", "admin", c.AdminKey, "streams", len(set))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.AdminKey]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.AdminKey)
	}
}

// Count returns the number of open streams of an admin.
func (h *Hub) Count(adminKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[adminKey])
}

// SendTo queues msg on every stream of an admin. Slow streams drop it.
func (h *Hub) SendTo(adminKey string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[adminKey] {
		c.trySend(msg)
	}
}

// AdminUI reports grant outcomes of one admin to its open streams.
type AdminUI struct {
	hub      *Hub
	adminKey string
}

// UI returns the AdminUI of adminKey.
func (h *Hub) UI(adminKey string) *AdminUI {
	return &AdminUI{hub: h, adminKey: adminKey}
}

func (u *AdminUI) Success(msg string) {
	u.hub.SendTo(u.adminKey, encode(MsgToast, ToastPayload{Level: "success", Message: msg}))
}

func (u *AdminUI) Error(msg string) {
	u.hub.SendTo(u.adminKey, encode(MsgToast, ToastPayload{Level: "error", Message: msg}))
}

func (u *AdminUI) Navigate(path string) {
	u.hub.SendTo(u.adminKey, encode(MsgNavigate, NavigatePayload{Path: path}))
}
