// Package handlers exposes the HTTP snapshot surface: read and administrative
// views over the same stores the event router mutates.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"presence-service/internal/models"
	"presence-service/internal/store"
)

// RoomAdmin is the mutating slice of the event router used by the HTTP
// surface. Going through the router keeps all store mutation behind one
// serialization boundary.
type RoomAdmin interface {
	CreateRoom(name, createdBy string) (models.RoomSummary, error)
	DeleteRoom(name, requesterID string) error
}

// SnapshotHandler serves health, room and message snapshot endpoints.
type SnapshotHandler struct {
	rooms   *store.RoomStore
	archive *store.Archive
	admin   RoomAdmin
}

// NewSnapshotHandler builds a SnapshotHandler.
func NewSnapshotHandler(rooms *store.RoomStore, archive *store.Archive, admin RoomAdmin) *SnapshotHandler {
	return &SnapshotHandler{rooms: rooms, archive: archive, admin: admin}
}

// Health reports liveness.
func (h *SnapshotHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "ts": time.Now().UnixMilli()})
}

// ListRooms returns all rooms in creation order.
func (h *SnapshotHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "rooms": h.rooms.ListRooms()})
}

// CreateRoom creates a room over HTTP and broadcasts the updated room list.
func (h *SnapshotHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		CreatedBy string `json:"createdBy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name required"})
		return
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "unknown"
	}

	room, err := h.admin.CreateRoom(req.Name, createdBy)
	if err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "room exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "room": room})
}

// DeleteRoom removes a room; only its creator may do so.
func (h *SnapshotHandler) DeleteRoom(c *gin.Context) {
	name := c.Param("name")
	requester := c.Query("requesterId")

	err := h.admin.DeleteRoom(name, requester)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, store.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "room not found"})
	case errors.Is(err, store.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "server_error"})
	}
}

// SearchMessages runs a case-insensitive substring search over the archive.
func (h *SnapshotHandler) SearchMessages(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "query param `q` required"})
		return
	}
	limit := clampedIntQuery(c, "limit", 100, 1000)

	results := h.archive.Search(q, c.Query("room"), limit)
	c.JSON(http.StatusOK, gin.H{"ok": true, "results": results})
}

// PaginateMessages returns room messages strictly older than `before`.
func (h *SnapshotHandler) PaginateMessages(c *gin.Context) {
	room := c.Query("room")
	if room == "" {
		room = models.GlobalRoom
	}
	before, err := strconv.ParseInt(c.Query("before"), 10, 64)
	if err != nil || before <= 0 {
		before = time.Now().UnixMilli()
	}
	limit := clampedIntQuery(c, "limit", 50, 200)

	msgs := h.archive.PaginateBefore(room, before, limit)
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": msgs})
}

func clampedIntQuery(c *gin.Context, key string, fallback, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
