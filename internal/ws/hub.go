// Package ws is the transport layer: the connection hub, per-connection read
// and write pumps, and the gin handshake handler.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"presence-service/internal/models"
	"presence-service/internal/observability"
)

// Hub maintains live connections and transport-level room membership. It is
// safe for concurrent use; broadcast fan-out happens outside the router's
// serialization lock.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client         // connID -> client
	rooms   map[string]map[string]bool // room -> set of connIDs
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
	}
}

// Add registers a connection with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.Info.ConnID] = c
}

// Remove drops a connection and returns the rooms it had joined.
func (h *Hub) Remove(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, connID)

	var joined []string
	for room, conns := range h.rooms {
		if conns[connID] {
			delete(conns, connID)
			joined = append(joined, room)
			if len(conns) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	return joined
}

// Join adds the connection to a room's membership set.
func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][connID] = true
}

// Leave removes the connection from a room. It reports whether the connection
// was a member.
func (h *Hub) Leave(connID, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[room]
	if !ok || !conns[connID] {
		return false
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(h.rooms, room)
	}
	return true
}

// RoomConns returns the connection ids currently joined to a room.
func (h *Hub) RoomConns(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		conns = append(conns, id)
	}
	return conns
}

// EmitTo sends a named event to one connection. A push to a connection that
// has since disconnected is silently dropped.
func (h *Hub) EmitTo(connID, event string, payload any) {
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	h.deliver(c, event, payload)
}

// EmitRoom sends a named event to every connection joined to the room.
func (h *Hub) EmitRoom(room, event string, payload any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, event, payload)
	}
}

// EmitAll sends a named event to every open connection.
func (h *Hub) EmitAll(event string, payload any) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, event, payload)
	}
}

func (h *Hub) deliver(c *Client, event string, payload any) {
	data, err := json.Marshal(models.Push{Event: event, Payload: payload})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("marshal push")
		return
	}
	if !c.enqueue(data) {
		// Slow consumer: drop the connection rather than block broadcasts.
		logrus.WithFields(logrus.Fields{
			"conn_id": c.Info.ConnID,
			"user_id": c.Info.UserID,
		}).Warn("send buffer full, closing connection")
		c.Close()
		h.publishWSError(c, "send buffer full")
	}
}

func (h *Hub) publishWSError(c *Client, reason string) {
	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), "ws_events.presence", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload: observability.WSEventPayload{
			ConnID:     c.Info.ConnID,
			UserID:     c.Info.UserID,
			IP:         c.Info.IP,
			Event:      "ws_error",
			DurationMS: time.Since(c.Info.ConnectedAt).Milliseconds(),
			Reason:     reason,
		},
	}, observability.BuildHeaders(c.Info.RequestID, c.Info.TraceID))
}
