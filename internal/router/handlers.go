package router

import (
	"github.com/sirupsen/logrus"

	"presence-service/internal/models"
)

// handleJoin registers or updates the connection's identity and rebroadcasts
// presence. Re-joining with the same identity is idempotent and still
// triggers exactly one presence push for the event.
func (r *Router) handleJoin(c Conn, req models.JoinRequest, ack func(any)) {
	name := trimmed(req.Username)
	if name == "" {
		name = c.UserName()
	}
	if name == "" {
		name = "Anonymous"
	}

	r.registry.Register(c.ID(), c.UserID(), name)
	c.SetUserName(name)

	r.log.WithFields(logrus.Fields{
		"conn_id": c.ID(),
		"user_id": c.UserID(),
		"name":    name,
	}).Info("join")

	r.broadcastUsers()
	ack(models.JoinAck{Ok: true, ID: c.UserID(), Name: name})
}

func (r *Router) handleCreateRoom(c Conn, req models.CreateRoomRequest, ack func(any)) {
	name := trimmed(req.Name)
	if name == "" {
		ack(models.ErrorAck{Error: "name required"})
		return
	}

	room, err := r.rooms.CreateRoom(name, c.UserID())
	if err != nil {
		ack(models.ErrorAck{Error: "room exists"})
		return
	}
	r.persistRoom(room)
	r.broadcastRooms()
	ack(models.CreateRoomAck{Ok: true, Room: room})
}

// handleJoinRoom creates the room on demand, joins the connection at the
// transport level and replays recent history to the joining connection.
func (r *Router) handleJoinRoom(c Conn, req models.RoomRequest, ack func(any)) {
	name := trimmed(req.Room)
	if name == "" {
		ack(models.ErrorAck{Error: "room required"})
		return
	}

	room, created := r.rooms.EnsureRoom(name, c.UserID())
	if created {
		r.persistRoom(room)
		r.broadcastRooms()
	}

	r.hub.Join(c.ID(), name)

	msgs := r.rooms.RecentMessages(name, roomReplayCount)
	c.Send(models.EventRoomMessages, models.RoomMessagesEvent{Room: name, Messages: msgs}, "")
	r.broadcastRoomUsers(name)

	ack(models.JoinRoomAck{Ok: true, Room: name, Messages: msgs})
}

func (r *Router) handleLeaveRoom(c Conn, req models.RoomRequest, ack func(any)) {
	name := trimmed(req.Room)
	if name == "" {
		ack(models.ErrorAck{Error: "room required"})
		return
	}

	// The global room cannot be left.
	if name != models.GlobalRoom && r.hub.Leave(c.ID(), name) {
		r.broadcastRoomUsers(name)
	}
	ack(models.LeaveRoomAck{Ok: true, Room: name})
}

// handleMessage appends to the archive and, when the room is tracked, to the
// room's bounded history, then broadcasts to the room.
func (r *Router) handleMessage(c Conn, req models.MessageRequest, ack func(any)) {
	text := trimmed(req.Text)
	if text == "" {
		ack(models.ErrorAck{Error: "text required"})
		return
	}
	roomName := req.Room
	if roomName == "" {
		roomName = models.GlobalRoom
	}

	msg := models.NewMessage(roomName, c.UserID(), c.UserName(), text, req.Private)
	r.archive.Append(msg)
	r.rooms.AppendMessage(roomName, msg)
	r.persistMessage(msg)

	r.hub.EmitRoom(roomName, models.EventMessage, msg)
	ack(models.MessageAck{Ok: true, ID: msg.ID, TS: msg.Timestamp})
}

// handlePrivateMessage delivers to every connection of sender and recipient
// under a synthesized pair-channel id. Private messages live only in the
// archive, never in a room buffer.
func (r *Router) handlePrivateMessage(c Conn, req models.PrivateMessageRequest, ack func(any)) {
	text := trimmed(req.Text)
	if text == "" {
		ack(models.ErrorAck{Error: "text required"})
		return
	}

	channel := models.PrivateChannel(c.UserID(), req.ToUserID)
	msg := models.NewMessage(channel, c.UserID(), c.UserName(), text, true)
	r.archive.Append(msg)
	r.persistMessage(msg)

	delivered := map[string]bool{}
	for _, userID := range []string{req.ToUserID, c.UserID()} {
		for _, connID := range r.registry.Connections(userID) {
			if delivered[connID] {
				continue
			}
			delivered[connID] = true
			r.hub.EmitTo(connID, models.EventPrivateMessage, msg)
		}
	}

	ack(models.PrivateMessageAck{Ok: true, ID: msg.ID})
}

// handleMarkRead adds the reader to the message's read set (idempotent) and
// notifies the room plus the original sender's connections.
func (r *Router) handleMarkRead(c Conn, req models.MarkReadRequest, ack func(any)) {
	if req.MessageID == "" {
		ack(models.ErrorAck{Error: "messageId required"})
		return
	}

	msg, err := r.archive.MarkRead(req.MessageID, c.UserID())
	if err != nil {
		ack(models.ErrorAck{Error: "message not found"})
		return
	}

	receipt := models.MessageReadEvent{MessageID: msg.ID, UserID: c.UserID()}
	r.hub.EmitRoom(msg.Room, models.EventMessageRead, receipt)
	for _, connID := range r.registry.Connections(msg.SenderID) {
		r.hub.EmitTo(connID, models.EventMessageRead, receipt)
	}

	ack(models.SimpleAck{Ok: true})
}

func (r *Router) handleReact(c Conn, req models.ReactRequest, ack func(any)) {
	if req.MessageID == "" {
		ack(models.ErrorAck{Error: "messageId required"})
		return
	}
	if req.Reaction == "" {
		ack(models.ErrorAck{Error: "reaction required"})
		return
	}

	count, err := r.archive.React(req.MessageID, req.Reaction)
	if err != nil {
		ack(models.ErrorAck{Error: "message not found"})
		return
	}
	msg, _ := r.archive.Find(req.MessageID)

	event := models.MessageReactionEvent{
		MessageID: req.MessageID,
		UserID:    c.UserID(),
		Reaction:  req.Reaction,
		Count:     count,
	}
	r.hub.EmitRoom(msg.Room, models.EventMessageReaction, event)
	ack(models.SimpleAck{Ok: true})
}

// handleTyping relays an ephemeral signal to the room, excluding the sender.
// Fire-and-forget: nothing is persisted and invalid input silently no-ops.
func (r *Router) handleTyping(c Conn, req models.TypingRequest) {
	room := req.Room
	if room == "" {
		room = models.GlobalRoom
	}
	from := req.From
	if from == "" {
		from = c.UserName()
	}

	payload := models.TypingRequest{Room: room, From: from, Typing: req.Typing}
	for _, connID := range r.hub.RoomConns(room) {
		if connID == c.ID() {
			continue
		}
		r.hub.EmitTo(connID, models.EventTyping, payload)
	}
}

func (r *Router) handleRoomsRequest(c Conn, ack func(any)) {
	rooms := r.rooms.ListRooms()
	c.Send(models.EventRooms, rooms, "")
	ack(models.RoomsAck{Ok: true, Rooms: rooms})
}
