// Package router is the protocol layer: it validates inbound named events,
// mutates the session registry, room store and archive, and emits acks and
// broadcasts. All store mutation runs under a single router mutex, the
// explicit serialization contract for the shared state.
package router

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"presence-service/internal/models"
	"presence-service/internal/observability"
	"presence-service/internal/registry"
	"presence-service/internal/repositories"
	"presence-service/internal/store"
)

const (
	globalReplayCount = 50
	roomReplayCount   = 100
)

// Conn is the transport-level view of one connection: a unique id, the
// resolved identity, and emit-to-one.
type Conn interface {
	ID() string
	UserID() string
	UserName() string
	SetUserName(name string)
	Send(event string, payload any, ackID string)
}

// Transport is the connection/room-membership abstraction the router drives.
// Implemented by the websocket hub; pushes to connections that have since
// disconnected are silently dropped.
type Transport interface {
	Join(connID, room string)
	Leave(connID, room string) bool
	Remove(connID string) []string
	RoomConns(room string) []string
	EmitTo(connID, event string, payload any)
	EmitRoom(room, event string, payload any)
	EmitAll(event string, payload any)
}

// Router owns the shared stores. Stores are injected at construction so
// independent instances can be tested in isolation.
type Router struct {
	mu       sync.Mutex
	registry *registry.Registry
	rooms    *store.RoomStore
	archive  *store.Archive
	hub      Transport
	persist  repositories.Persistence // nil when persistence is disabled
	log      *logrus.Entry
}

// New builds a router over the given stores. persist may be nil.
func New(reg *registry.Registry, rooms *store.RoomStore, archive *store.Archive, hub Transport, persist repositories.Persistence) *Router {
	return &Router{
		registry: reg,
		rooms:    rooms,
		archive:  archive,
		hub:      hub,
		persist:  persist,
		log:      logrus.WithField("component", "router"),
	}
}

// HandleConnect registers a freshly upgraded connection and pushes the
// initial sync: room list, presence, and recent global history.
func (r *Router) HandleConnect(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry.Register(c.ID(), c.UserID(), c.UserName())
	r.hub.Join(c.ID(), models.GlobalRoom)

	c.Send(models.EventRooms, r.rooms.ListRooms(), "")
	r.broadcastUsers()
	c.Send(models.EventRecentMessages, r.archive.Recent(globalReplayCount), "")

	r.hub.EmitRoom(models.GlobalRoom, models.EventNotification, models.Notification{
		Type: "user_join",
		User: models.User{ID: c.UserID(), Name: c.UserName(), Online: true},
	})
}

// HandleDisconnect is the terminal transition for a connection: it leaves
// every joined room, unregisters the session and rebroadcasts presence. Valid
// at any point; it always leaves the stores consistent.
func (r *Router) HandleDisconnect(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, name, userGone := r.registry.Unregister(c.ID())
	joined := r.hub.Remove(c.ID())
	for _, room := range joined {
		r.broadcastRoomUsers(room)
	}
	if userGone {
		r.hub.EmitAll(models.EventNotification, models.Notification{
			Type: "user_leave",
			User: models.User{ID: userID, Name: name},
		})
	}
	r.broadcastUsers()
}

// HandleFrame validates and dispatches one inbound event. Every handler that
// received an ack id acks exactly once; internal failures are converted to a
// server_error ack so a malformed payload can never take the process down.
func (r *Router) HandleFrame(c Conn, frame models.Frame) {
	acked := false
	ack := func(data any) {
		if acked {
			return
		}
		acked = true
		outcome := "ok"
		if _, isErr := data.(models.ErrorAck); isErr {
			outcome = "error"
		}
		observability.IncProtocolEvent(frame.Event, outcome)
		if frame.AckID != "" {
			c.Send(models.EventAck, data, frame.AckID)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"event":   frame.Event,
				"conn_id": c.ID(),
				"panic":   rec,
			}).Error("handler panicked")
			ack(models.ErrorAck{Error: "server_error"})
		}
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	switch frame.Event {
	case "join":
		var req models.JoinRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleJoin(c, req, ack)
	case "create_room":
		var req models.CreateRoomRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleCreateRoom(c, req, ack)
	case "join_room":
		var req models.RoomRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleJoinRoom(c, req, ack)
	case "leave_room":
		var req models.RoomRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleLeaveRoom(c, req, ack)
	case "message":
		var req models.MessageRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleMessage(c, req, ack)
	case "private_message":
		var req models.PrivateMessageRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handlePrivateMessage(c, req, ack)
	case "mark_read":
		var req models.MarkReadRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleMarkRead(c, req, ack)
	case "react":
		var req models.ReactRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleReact(c, req, ack)
	case "typing":
		var req models.TypingRequest
		_ = json.Unmarshal(frame.Payload, &req)
		r.handleTyping(c, req)
		observability.IncProtocolEvent(frame.Event, "ok")
	case "rooms_request":
		r.handleRoomsRequest(c, ack)
	default:
		r.log.WithField("event", frame.Event).Debug("unknown event")
		ack(models.ErrorAck{Error: "unknown event"})
	}
}

// CreateRoom serves the HTTP admin surface; it shares the router's
// serialization lock with the websocket handlers.
func (r *Router) CreateRoom(name, createdBy string) (models.RoomSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, err := r.rooms.CreateRoom(name, createdBy)
	if err != nil {
		return models.RoomSummary{}, err
	}
	r.persistRoom(room)
	r.broadcastRooms()
	return room, nil
}

// DeleteRoom removes a room and purges its archived messages. Creator only.
func (r *Router) DeleteRoom(name, requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.rooms.DeleteRoom(name, requesterID); err != nil {
		return err
	}
	r.archive.PurgeRoom(name)
	if r.persist != nil {
		if err := r.persist.DeleteRoom(context.Background(), name); err != nil {
			r.log.WithError(err).WithField("room", name).Warn("persist delete room")
		}
	}
	r.broadcastRooms()
	return nil
}

func (r *Router) broadcastUsers() {
	users := r.registry.Snapshot()
	count := 0
	for _, u := range users {
		if u.Online {
			count++
		}
	}
	observability.SetOnlineUsers(count)
	r.hub.EmitAll(models.EventUsers, users)
	r.hub.EmitAll(models.EventUsersCount, count)
}

func (r *Router) broadcastRooms() {
	r.hub.EmitAll(models.EventRooms, r.rooms.ListRooms())
}

// broadcastRoomUsers maps each joined connection to its owning user. A user
// with several connections in the room appears once per connection, matching
// the transport-level membership view.
func (r *Router) broadcastRoomUsers(room string) {
	conns := r.hub.RoomConns(room)
	users := make([]models.User, 0, len(conns))
	for _, connID := range conns {
		if u, ok := r.registry.Lookup(connID); ok {
			users = append(users, models.User{ID: u.ID, Name: u.Name})
		}
	}
	r.hub.EmitRoom(room, models.EventRoomUsers, models.RoomUsersEvent{Room: room, Users: users})
}

func (r *Router) persistMessage(msg models.Message) {
	if r.persist == nil {
		return
	}
	if err := r.persist.SaveMessage(context.Background(), msg); err != nil {
		r.log.WithError(err).WithField("message_id", msg.ID).Warn("persist message")
	}
}

func (r *Router) persistRoom(room models.RoomSummary) {
	if r.persist == nil {
		return
	}
	if err := r.persist.SaveRoom(context.Background(), room); err != nil {
		r.log.WithError(err).WithField("room", room.Name).Warn("persist room")
	}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
