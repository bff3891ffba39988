// Package registry tracks which connections belong to which users. A user
// exists only while at least one connection references it.
package registry

import (
	"sync"

	"presence-service/internal/models"
)

type userEntry struct {
	name  string
	conns map[string]bool
}

// Registry is the session registry: userID -> connection set plus the reverse
// connID -> userID index. It is mutated only by the event router's serialized
// handlers; the internal mutex makes reads safe from broadcast fan-out paths.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]*userEntry
	owners map[string]string // connID -> userID
	order  []string          // userIDs in first-seen order
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		users:  make(map[string]*userEntry),
		owners: make(map[string]string),
	}
}

// Register attaches connID to userID, creating the user entry if absent and
// updating the display name if it differs. It is idempotent. nameChanged
// reports whether an existing user's name was rewritten; firstConn reports
// whether this registration brought the user online.
func (r *Registry) Register(connID, userID, name string) (nameChanged, firstConn bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection can belong to exactly one user. Re-registering under a
	// different identity (repeated join events) moves it.
	if prev, ok := r.owners[connID]; ok && prev != userID {
		r.detach(connID, prev)
	}

	entry, ok := r.users[userID]
	if !ok {
		entry = &userEntry{name: name, conns: make(map[string]bool)}
		r.users[userID] = entry
		r.order = append(r.order, userID)
		firstConn = true
	} else if entry.name != name && name != "" {
		entry.name = name
		nameChanged = true
	}
	entry.conns[connID] = true
	r.owners[connID] = userID
	return nameChanged, firstConn
}

// Unregister removes connID from whichever user owns it. userGone reports
// whether the owning user's connection set became empty, in which case the
// user entry is removed entirely.
func (r *Registry) Unregister(connID string) (userID, name string, userGone bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return "", "", false
	}
	entry := r.users[userID]
	name = entry.name
	userGone = r.detach(connID, userID)
	return userID, name, userGone
}

// detach removes connID from userID's set; caller holds the lock.
func (r *Registry) detach(connID, userID string) bool {
	delete(r.owners, connID)
	entry, ok := r.users[userID]
	if !ok {
		return false
	}
	delete(entry.conns, connID)
	if len(entry.conns) > 0 {
		return false
	}
	delete(r.users, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup resolves a connection to its owning user.
func (r *Registry) Lookup(connID string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owners[connID]
	if !ok {
		return models.User{}, false
	}
	entry := r.users[userID]
	return models.User{ID: userID, Name: entry.name, Online: true}, true
}

// Connections returns the open connection ids for a user.
func (r *Registry) Connections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.users[userID]
	if !ok {
		return nil
	}
	conns := make([]string, 0, len(entry.conns))
	for id := range entry.conns {
		conns = append(conns, id)
	}
	return conns
}

// Snapshot returns every known user in first-seen order. Every entry is online
// by construction.
func (r *Registry) Snapshot() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]models.User, 0, len(r.order))
	for _, id := range r.order {
		entry := r.users[id]
		users = append(users, models.User{ID: id, Name: entry.name, Online: len(entry.conns) > 0})
	}
	return users
}

// OnlineCount returns the number of distinct users with at least one open
// connection.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
