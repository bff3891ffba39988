package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-service/internal/models"
	"presence-service/internal/store"
)

// stubAdmin mutates the stores directly, standing in for the event router.
type stubAdmin struct {
	rooms   *store.RoomStore
	archive *store.Archive
}

func (a *stubAdmin) CreateRoom(name, createdBy string) (models.RoomSummary, error) {
	return a.rooms.CreateRoom(name, createdBy)
}

func (a *stubAdmin) DeleteRoom(name, requesterID string) error {
	if err := a.rooms.DeleteRoom(name, requesterID); err != nil {
		return err
	}
	a.archive.PurgeRoom(name)
	return nil
}

func newTestServer(t *testing.T) (*gin.Engine, *store.RoomStore, *store.Archive) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rooms := store.NewRoomStore(100)
	archive := store.NewArchive(100)
	h := NewSnapshotHandler(rooms, archive, &stubAdmin{rooms: rooms, archive: archive})

	engine := gin.New()
	engine.GET("/health", h.Health)
	engine.GET("/rooms", h.ListRooms)
	engine.POST("/rooms", h.CreateRoom)
	engine.DELETE("/rooms/:name", h.DeleteRoom)
	engine.GET("/messages/search", h.SearchMessages)
	engine.GET("/messages/paginate", h.PaginateMessages)
	return engine, rooms, archive
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	return w, parsed
}

func TestHealth(t *testing.T) {
	engine, _, _ := newTestServer(t)

	w, body := doRequest(t, engine, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])
	assert.NotZero(t, body["ts"])
}

func TestListRooms(t *testing.T) {
	engine, rooms, _ := newTestServer(t)
	rooms.EnsureRoom("dev", "alice")

	w, body := doRequest(t, engine, http.MethodGet, "/rooms", "")
	assert.Equal(t, http.StatusOK, w.Code)
	list := body["rooms"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, models.GlobalRoom, list[0].(map[string]any)["name"])
	assert.Equal(t, "dev", list[1].(map[string]any)["name"])
}

func TestCreateRoom(t *testing.T) {
	engine, rooms, _ := newTestServer(t)

	w, body := doRequest(t, engine, http.MethodPost, "/rooms", `{"name":"dev","createdBy":"alice"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])
	assert.True(t, rooms.Has("dev"))

	w, body = doRequest(t, engine, http.MethodPost, "/rooms", `{"name":"dev"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "room exists", body["error"])
}

func TestCreateRoomRequiresName(t *testing.T) {
	engine, _, _ := newTestServer(t)

	w, body := doRequest(t, engine, http.MethodPost, "/rooms", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name required", body["error"])

	w, _ = doRequest(t, engine, http.MethodPost, "/rooms", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteRoom(t *testing.T) {
	engine, rooms, archive := newTestServer(t)
	rooms.CreateRoom("dev", "alice")
	archive.Append(models.Message{ID: "m1", Room: "dev", Text: "x", Timestamp: 1})

	w, _ := doRequest(t, engine, http.MethodDelete, "/rooms/missing?requesterId=alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, engine, http.MethodDelete, "/rooms/dev?requesterId=bob", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = doRequest(t, engine, http.MethodDelete, "/rooms/dev?requesterId=alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, rooms.Has("dev"))
	assert.Zero(t, archive.Len())
}

func TestSearchMessages(t *testing.T) {
	engine, _, archive := newTestServer(t)
	archive.Append(models.Message{ID: "m1", Room: "global", SenderName: "alice", Text: "Hello World", Timestamp: 1})
	archive.Append(models.Message{ID: "m2", Room: "dev", SenderName: "bob", Text: "hello again", Timestamp: 2})

	w, body := doRequest(t, engine, http.MethodGet, "/messages/search?q=hello", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["results"].([]any), 2)

	w, body = doRequest(t, engine, http.MethodGet, "/messages/search?q=hello&room=dev", "")
	assert.Equal(t, http.StatusOK, w.Code)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "m2", results[0].(map[string]any)["id"])
}

func TestSearchRequiresQuery(t *testing.T) {
	engine, _, _ := newTestServer(t)

	w, body := doRequest(t, engine, http.MethodGet, "/messages/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["ok"])
}

func TestPaginateMessages(t *testing.T) {
	engine, _, archive := newTestServer(t)
	for i := 1; i <= 5; i++ {
		archive.Append(models.Message{ID: "m" + string(rune('0'+i)), Room: "global", Text: "x", Timestamp: int64(i * 100)})
	}

	w, body := doRequest(t, engine, http.MethodGet, "/messages/paginate?before=400&limit=2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].(map[string]any)["id"])
	assert.Equal(t, "m3", msgs[1].(map[string]any)["id"])
}

func TestPaginateDefaultsToGlobalAndNow(t *testing.T) {
	engine, _, archive := newTestServer(t)
	archive.Append(models.Message{ID: "m1", Room: "global", Text: "x", Timestamp: 1})
	archive.Append(models.Message{ID: "m2", Room: "dev", Text: "x", Timestamp: 2})

	w, body := doRequest(t, engine, http.MethodGet, "/messages/paginate", "")
	assert.Equal(t, http.StatusOK, w.Code)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].(map[string]any)["id"])
}

func TestLimitClamp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rooms := store.NewRoomStore(100)
	archive := store.NewArchive(500)
	h := NewSnapshotHandler(rooms, archive, &stubAdmin{rooms: rooms, archive: archive})
	engine := gin.New()
	engine.GET("/messages/paginate", h.PaginateMessages)

	for i := 0; i < 300; i++ {
		archive.Append(models.Message{ID: "m", Room: "global", Text: "x", Timestamp: int64(i)})
	}

	// Paginate caps at 200 even when more is requested.
	w, body := doRequest(t, engine, http.MethodGet, "/messages/paginate?limit=9999", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["messages"].([]any), 200)

	// Missing or invalid limits fall back to the default of 50.
	w, body = doRequest(t, engine, http.MethodGet, "/messages/paginate?limit=bogus", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["messages"].([]any), 50)
}
