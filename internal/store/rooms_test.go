package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-service/internal/models"
)

func TestGlobalRoomAlwaysExists(t *testing.T) {
	s := NewRoomStore(10)

	assert.True(t, s.Has(models.GlobalRoom))
	assert.ErrorIs(t, s.DeleteRoom(models.GlobalRoom, "system"), ErrForbidden)
}

func TestCreateRoomTwiceConflicts(t *testing.T) {
	s := NewRoomStore(10)

	_, err := s.CreateRoom("X", "alice")
	require.NoError(t, err)

	_, err = s.CreateRoom("X", "bob")
	assert.ErrorIs(t, err, ErrRoomExists)

	count := 0
	for _, r := range s.ListRooms() {
		if r.Name == "X" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestEnsureRoomCreatesOnDemand(t *testing.T) {
	s := NewRoomStore(10)

	room, created := s.EnsureRoom("dev", "alice")
	assert.True(t, created)
	assert.Equal(t, "alice", room.CreatedBy)

	room, created = s.EnsureRoom("dev", "bob")
	assert.False(t, created)
	assert.Equal(t, "alice", room.CreatedBy)
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	s := NewRoomStore(3)
	s.EnsureRoom("dev", "alice")

	for i := 1; i <= 5; i++ {
		s.AppendMessage("dev", models.Message{ID: fmt.Sprintf("m%d", i), Room: "dev", Text: fmt.Sprintf("msg %d", i)})
	}

	msgs := s.RecentMessages("dev", 10)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, "m4", msgs[1].ID)
	assert.Equal(t, "m5", msgs[2].ID)
}

func TestRecentMessagesReturnsTail(t *testing.T) {
	s := NewRoomStore(10)
	s.EnsureRoom("dev", "alice")
	for i := 1; i <= 5; i++ {
		s.AppendMessage("dev", models.Message{ID: fmt.Sprintf("m%d", i), Room: "dev"})
	}

	msgs := s.RecentMessages("dev", 2)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m4", msgs[0].ID)
	assert.Equal(t, "m5", msgs[1].ID)

	assert.Nil(t, s.RecentMessages("missing", 2))
}

func TestAppendToUntrackedRoomIsIgnored(t *testing.T) {
	s := NewRoomStore(10)

	s.AppendMessage("pm:alice-bob", models.Message{ID: "m1"})
	assert.False(t, s.Has("pm:alice-bob"))
}

func TestListRoomsInCreationOrder(t *testing.T) {
	s := NewRoomStore(10)
	s.EnsureRoom("zulu", "a")
	s.EnsureRoom("alpha", "a")
	s.EnsureRoom("mike", "a")

	rooms := s.ListRooms()
	require.Len(t, rooms, 4)
	assert.Equal(t, models.GlobalRoom, rooms[0].Name)
	assert.Equal(t, "zulu", rooms[1].Name)
	assert.Equal(t, "alpha", rooms[2].Name)
	assert.Equal(t, "mike", rooms[3].Name)
}

func TestDeleteRoom(t *testing.T) {
	s := NewRoomStore(10)
	s.CreateRoom("dev", "alice")

	assert.ErrorIs(t, s.DeleteRoom("missing", "alice"), ErrRoomNotFound)
	assert.ErrorIs(t, s.DeleteRoom("dev", "bob"), ErrForbidden)
	require.NoError(t, s.DeleteRoom("dev", "alice"))
	assert.False(t, s.Has("dev"))
}

func TestRoomNamesAreCaseSensitive(t *testing.T) {
	s := NewRoomStore(10)

	_, err := s.CreateRoom("Dev", "alice")
	require.NoError(t, err)
	_, err = s.CreateRoom("dev", "alice")
	require.NoError(t, err)
}
