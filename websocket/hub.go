package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Update types pushed to canvas clients.
const (
	UpdateTypeAmounts = "amounts"
	UpdateTypeDeleted = "tree_deleted"
)

// Update is a message sent over WebSocket to tree subscribers.
type Update struct {
	Type    string             `json:"type"`
	TreeID  string             `json:"treeId"`
	Version int64              `json:"version,omitempty"`
	Amounts map[string]float64 `json:"amounts,omitempty"`
}

// Client represents a connected canvas client subscribed to one tree.
type Client struct {
	TreeID string
	UserID string
	Conn   *websocket.Conn
}

// Hub maintains the set of active clients keyed by tree id and broadcasts
// recompute results to them.
type Hub struct {
	trees      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		trees:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.trees[client.TreeID] == nil {
				h.trees[client.TreeID] = make(map[*Client]bool)
			}
			h.trees[client.TreeID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.trees[client.TreeID]; ok {
				if _, ok := subs[client]; ok {
					delete(subs, client)
					if len(subs) == 0 {
						delete(h.trees, client.TreeID)
					}
				}
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an update to every client subscribed to a tree.
func (h *Hub) Broadcast(treeID string, update Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.trees[treeID] {
		client.Conn.WriteJSON(update)
	}
}

// BroadcastAmounts pushes a freshly resolved amount map to a tree's subscribers.
func (h *Hub) BroadcastAmounts(treeID string, version int64, amounts map[string]float64) {
	h.Broadcast(treeID, Update{
		Type:    UpdateTypeAmounts,
		TreeID:  treeID,
		Version: version,
		Amounts: amounts,
	})
}

// NotifyDeleted tells subscribers their tree was deleted.
func (h *Hub) NotifyDeleted(treeID string) {
	h.Broadcast(treeID, Update{
		Type:   UpdateTypeDeleted,
		TreeID: treeID,
	})
}
