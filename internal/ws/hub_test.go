package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-service/internal/models"
)

func newTestClient(connID string) *Client {
	return NewClient(nil, ConnInfo{ConnID: connID, UserID: "u-" + connID}, 10)
}

func receivedEvents(t *testing.T, c *Client) []string {
	t.Helper()
	var events []string
	for {
		select {
		case data := <-c.send:
			var push models.Push
			require.NoError(t, json.Unmarshal(data, &push))
			events = append(events, push.Event)
		default:
			return events
		}
	}
}

func TestEmitToDeliversToOneConnection(t *testing.T) {
	h := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	h.Add(c1)
	h.Add(c2)

	h.EmitTo("c1", "ping", map[string]string{"hello": "world"})

	assert.Equal(t, []string{"ping"}, receivedEvents(t, c1))
	assert.Empty(t, receivedEvents(t, c2))
}

func TestEmitToUnknownConnectionIsSafe(t *testing.T) {
	h := NewHub()
	h.EmitTo("ghost", "ping", nil)
}

func TestEmitRoomReachesOnlyMembers(t *testing.T) {
	h := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	c3 := newTestClient("c3")
	h.Add(c1)
	h.Add(c2)
	h.Add(c3)
	h.Join("c1", "dev")
	h.Join("c2", "dev")

	h.EmitRoom("dev", "message", map[string]string{"text": "hi"})

	assert.Equal(t, []string{"message"}, receivedEvents(t, c1))
	assert.Equal(t, []string{"message"}, receivedEvents(t, c2))
	assert.Empty(t, receivedEvents(t, c3))
}

func TestEmitAll(t *testing.T) {
	h := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	h.Add(c1)
	h.Add(c2)

	h.EmitAll("users_count", 2)

	assert.Equal(t, []string{"users_count"}, receivedEvents(t, c1))
	assert.Equal(t, []string{"users_count"}, receivedEvents(t, c2))
}

func TestLeaveReportsMembership(t *testing.T) {
	h := NewHub()
	c1 := newTestClient("c1")
	h.Add(c1)
	h.Join("c1", "dev")

	assert.True(t, h.Leave("c1", "dev"))
	assert.False(t, h.Leave("c1", "dev"))
	assert.False(t, h.Leave("c1", "never-joined"))
	assert.Empty(t, h.RoomConns("dev"))
}

func TestRemoveReturnsJoinedRooms(t *testing.T) {
	h := NewHub()
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")
	h.Add(c1)
	h.Add(c2)
	h.Join("c1", "global")
	h.Join("c1", "dev")
	h.Join("c2", "dev")

	joined := h.Remove("c1")
	assert.ElementsMatch(t, []string{"global", "dev"}, joined)

	// c2's membership survives and c1 no longer receives anything.
	assert.Equal(t, []string{"c2"}, h.RoomConns("dev"))
	h.EmitRoom("dev", "message", nil)
	assert.Empty(t, receivedEvents(t, c1))
	assert.Equal(t, []string{"message"}, receivedEvents(t, c2))
}

func TestRemoveUnknownConnection(t *testing.T) {
	h := NewHub()
	assert.Empty(t, h.Remove("ghost"))
}
