package store

import (
	"strings"
	"sync"

	"presence-service/internal/models"
)

// Archive is the bounded global append log of all messages, independent of
// per-room buffers. It backs search, pagination and read receipts.
type Archive struct {
	mu       sync.RWMutex
	messages []*models.Message
	capacity int
}

// NewArchive creates an archive holding at most capacity messages.
func NewArchive(capacity int) *Archive {
	return &Archive{capacity: capacity}
}

// Append adds a message to the log, evicting the oldest when full.
func (a *Archive) Append(msg models.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := msg
	a.messages = append(a.messages, &m)
	if len(a.messages) > a.capacity {
		a.messages = a.messages[1:]
	}
}

// Search returns the most recent limit messages whose body or sender name
// contains q (case-insensitive), optionally filtered by room, in
// chronological order.
func (a *Archive) Search(q, roomFilter string, limit int) []models.Message {
	needle := strings.ToLower(q)
	a.mu.RLock()
	defer a.mu.RUnlock()

	var matched []models.Message
	for _, m := range a.messages {
		if roomFilter != "" && m.Room != roomFilter {
			continue
		}
		if strings.Contains(strings.ToLower(m.Text), needle) ||
			strings.Contains(strings.ToLower(m.SenderName), needle) {
			matched = append(matched, *m)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// PaginateBefore returns up to limit messages in the room with timestamp
// strictly less than before, nearest-first selection, returned in
// chronological order.
func (a *Archive) PaginateBefore(roomName string, before int64, limit int) []models.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var older []models.Message
	for _, m := range a.messages {
		if m.Room == roomName && m.Timestamp < before {
			older = append(older, *m)
		}
	}
	if limit > 0 && len(older) > limit {
		older = older[len(older)-limit:]
	}
	return older
}

// Find returns the archived message with the given id.
func (a *Archive) Find(id string) (models.Message, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, m := range a.messages {
		if m.ID == id {
			return *m, nil
		}
	}
	return models.Message{}, ErrMessageNotFound
}

// MarkRead adds userID to the message's read set. It is idempotent and
// returns the updated message.
func (a *Archive) MarkRead(id, userID string) (models.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.messages {
		if m.ID != id {
			continue
		}
		for _, r := range m.ReadBy {
			if r == userID {
				return *m, nil
			}
		}
		m.ReadBy = append(m.ReadBy, userID)
		return *m, nil
	}
	return models.Message{}, ErrMessageNotFound
}

// React increments the reaction count for a symbol on the message and returns
// the new count.
func (a *Archive) React(id, symbol string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.messages {
		if m.ID != id {
			continue
		}
		if m.Reactions == nil {
			m.Reactions = make(map[string]int)
		}
		m.Reactions[symbol]++
		return m.Reactions[symbol], nil
	}
	return 0, ErrMessageNotFound
}

// PurgeRoom drops every archived message belonging to the room. Used when a
// room is deleted.
func (a *Archive) PurgeRoom(roomName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.messages[:0]
	removed := 0
	for _, m := range a.messages {
		if m.Room == roomName {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	a.messages = kept
	return removed
}

// Len returns the number of archived messages.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.messages)
}

// Recent returns the last n archived messages in chronological order.
func (a *Archive) Recent(n int) []models.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	start := len(a.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, 0, len(a.messages)-start)
	for _, m := range a.messages[start:] {
		out = append(out, *m)
	}
	return out
}
