// Package main provides the WebSocket hub for real-time dashboard events.
// Unlike a single-user desktop hub, events are routed per user: a client only
// sees events for memories it owns.
package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xmemory/xmemory/internal/auth"
	"github.com/xmemory/xmemory/internal/logging"
	"github.com/xmemory/xmemory/internal/models"
	"github.com/xmemory/xmemory/internal/uuid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The handshake already passed session auth; origin is not load-bearing.
		return true
	},
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// WebSocket event types.
const (
	EventMemorySynced   = "memory.synced"
	EventMemoryRestored = "memory.restored"
	EventMemoryDeleted  = "memory.deleted"
	EventVersionsPruned = "versions.pruned"
)

// WSClient represents one connected dashboard client.
type WSClient struct {
	id     string
	userID models.UUID
	conn   *websocket.Conn
	send   chan []byte
	hub    *WSHub
}

// wsMessage pairs a payload with its target user.
type wsMessage struct {
	userID models.UUID
	data   []byte
}

// WSHub maintains active client connections and routes events to their
// owners.
type WSHub struct {
	clients    map[string]*WSClient
	deliver    chan wsMessage
	register   chan *WSClient
	unregister chan *WSClient
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub and starts its routing loop.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		deliver:    make(chan wsMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and event delivery.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			logging.Debug("WebSocket client connected", map[string]interface{}{
				"client_id": client.id,
				"user_id":   client.userID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			logging.Debug("WebSocket client disconnected", map[string]interface{}{
				"client_id": client.id,
			})

		case message := <-h.deliver:
			h.mu.RLock()
			for _, client := range h.clients {
				if client.userID != message.userID {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					// Client send buffer is full, close connection
					close(client.send)
					delete(h.clients, client.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Emit sends one event to all connections of a user.
func (h *WSHub) Emit(userID models.UUID, eventType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("Failed to marshal WebSocket event", err)
		return
	}
	h.deliver <- wsMessage{userID: userID, data: payload}
}

// =====================================================
// cloud.Broadcaster implementation
// =====================================================

// MemorySynced notifies a user's clients of a completed sync.
func (h *WSHub) MemorySynced(userID, memoryID models.UUID, action string, versionNumber int, diffSummary string) {
	h.Emit(userID, EventMemorySynced, map[string]interface{}{
		"memory_id":      memoryID,
		"action":         action,
		"version_number": versionNumber,
		"diff_summary":   diffSummary,
	})
}

// MemoryRestored notifies a user's clients of a restore.
func (h *WSHub) MemoryRestored(userID, memoryID models.UUID, restoredFrom, newVersion int) {
	h.Emit(userID, EventMemoryRestored, map[string]interface{}{
		"memory_id":     memoryID,
		"restored_from": restoredFrom,
		"new_version":   newVersion,
	})
}

// MemoryDeleted notifies a user's clients of a deletion.
func (h *WSHub) MemoryDeleted(userID, memoryID models.UUID) {
	h.Emit(userID, EventMemoryDeleted, map[string]interface{}{
		"memory_id": memoryID,
	})
}

// VersionsPruned notifies a user's clients that retention removed history.
func (h *WSHub) VersionsPruned(userID, memoryID models.UUID, count int64) {
	h.Emit(userID, EventVersionsPruned, map[string]interface{}{
		"memory_id": memoryID,
		"deleted":   count,
	})
}

// HandleWS upgrades GET /api/cloud/events to a WebSocket connection. The
// route sits behind the session middleware, so the user is already known.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed", err)
		return
	}

	client := &WSClient{
		id:     uuid.New(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, 64),
		hub:    h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// writePump forwards queued events to the connection.
func (c *WSClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// readPump drains the connection; clients send nothing meaningful, the read
// loop exists to detect disconnects.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
