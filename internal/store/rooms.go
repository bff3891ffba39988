// Package store holds the in-memory room store and global message archive.
// Both are the live source of truth; the optional Postgres layer only mirrors
// them.
package store

import (
	"sync"
	"time"

	"presence-service/internal/models"
)

type room struct {
	name      string
	createdBy string
	createdAt int64
	messages  []models.Message
}

// RoomStore maps room names to metadata and a bounded, time-ordered history
// buffer. Room listing order is creation order, kept explicitly.
type RoomStore struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	order    []string
	capacity int
}

// NewRoomStore creates a store whose room histories hold at most capacity
// messages each. The well-known global room always exists.
func NewRoomStore(capacity int) *RoomStore {
	s := &RoomStore{
		rooms:    make(map[string]*room),
		capacity: capacity,
	}
	s.ensure(models.GlobalRoom, "system")
	return s
}

// Seed pre-populates a room with system messages, creating it if needed.
func (s *RoomStore) Seed(name, createdBy string, messages ...models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensure(name, createdBy)
	r.messages = append(r.messages, messages...)
}

// ensure returns the named room, creating it if absent; caller holds the lock.
func (s *RoomStore) ensure(name, creator string) *room {
	r, ok := s.rooms[name]
	if !ok {
		r = &room{name: name, createdBy: creator, createdAt: time.Now().UnixMilli()}
		s.rooms[name] = r
		s.order = append(s.order, name)
	}
	return r
}

// EnsureRoom returns the existing room summary or atomically creates the room
// with an empty history. Used by explicit creation and create-on-demand joins.
// created reports whether a new room came into existence.
func (s *RoomStore) EnsureRoom(name, creatorID string) (models.RoomSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.rooms[name]
	r := s.ensure(name, creatorID)
	return summarize(r), !existed
}

// CreateRoom creates a room, failing with ErrRoomExists if the name is taken.
func (s *RoomStore) CreateRoom(name, creatorID string) (models.RoomSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[name]; ok {
		return models.RoomSummary{}, ErrRoomExists
	}
	return summarize(s.ensure(name, creatorID)), nil
}

// DeleteRoom removes a room. Only the creator may delete it, and the global
// room is undeletable. The caller is responsible for purging archived
// messages.
func (s *RoomStore) DeleteRoom(name, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	if name == models.GlobalRoom || r.createdBy != requesterID {
		return ErrForbidden
	}
	delete(s.rooms, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Has reports whether the named room exists.
func (s *RoomStore) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[name]
	return ok
}

// AppendMessage pushes a message onto the room's bounded history, evicting the
// oldest entry when capacity is exceeded. Messages for untracked rooms
// (private channels) are ignored here; they live only in the archive.
func (s *RoomStore) AppendMessage(name string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[name]
	if !ok {
		return
	}
	r.messages = append(r.messages, msg)
	if len(r.messages) > s.capacity {
		r.messages = r.messages[1:]
	}
}

// RecentMessages returns the last n messages of a room in chronological order.
func (s *RoomStore) RecentMessages(name string, n int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[name]
	if !ok {
		return nil
	}
	start := len(r.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out
}

// ListRooms returns all rooms in creation order.
func (s *RoomStore) ListRooms() []models.RoomSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RoomSummary, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, summarize(s.rooms[name]))
	}
	return out
}

func summarize(r *room) models.RoomSummary {
	return models.RoomSummary{
		Name:      r.name,
		CreatedBy: r.createdBy,
		CreatedAt: r.createdAt,
		Count:     len(r.messages),
	}
}
