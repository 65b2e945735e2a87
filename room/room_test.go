package room

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomManager_CreateAndGetRoom(t *testing.T) {
	manager := NewRoomManager()

	room := manager.CreateRoom("test_room_1", "Test Room", 4)
	assert.Equal(t, "test_room_1", room.ID)
	assert.Equal(t, 4, room.MaxPlayers)
	assert.Equal(t, uint64(0), room.State.Tick)
	assert.NotNil(t, room.State.Data)

	retrieved, exists := manager.GetRoom("test_room_1")
	require.True(t, exists)
	assert.Equal(t, "Test Room", retrieved.Name)

	_, exists = manager.GetRoom("missing")
	assert.False(t, exists)
}

func TestRoomManager_DefaultCapacity(t *testing.T) {
	manager := NewRoomManager()
	room := manager.CreateRoom("r", "R", 0)
	assert.Equal(t, DefaultMaxPlayers, room.MaxPlayers)
}

func TestRoomManager_CreateRoomReplaces(t *testing.T) {
	manager := NewRoomManager()
	manager.CreateRoom("r1", "First", 4)
	require.True(t, manager.AddMember("r1", "p1"))
	require.True(t, manager.UpdateState("r1", map[string]any{"k": 1}))

	room := manager.CreateRoom("r1", "Second", 2)
	assert.Equal(t, 0, room.PlayerCount())

	stored, _ := manager.GetRoom("r1")
	assert.Equal(t, "Second", stored.Name)
	assert.Empty(t, stored.Members, "prior membership is dropped")
	assert.Equal(t, uint64(0), stored.State.Tick)
	assert.NotContains(t, stored.State.Data, "k")
}

func TestRoom_AddMember(t *testing.T) {
	manager := NewRoomManager()
	manager.CreateRoom("r", "R", 2)

	assert.True(t, manager.AddMember("r", "player1"))
	assert.True(t, manager.AddMember("r", "player1"), "re-adding is a no-op success")
	assert.Equal(t, []string{"player1"}, manager.Members("r"))

	assert.False(t, manager.AddMember("missing", "player1"))
}

func TestRoom_AddMember_Full(t *testing.T) {
	manager := NewRoomManager()
	manager.CreateRoom("r", "Full Room Test", 1)

	require.True(t, manager.AddMember("r", "player1"))
	assert.False(t, manager.AddMember("r", "player2"))
	assert.False(t, manager.AddMember("r", "player1"), "a full room rejects even a present member")

	room, _ := manager.GetRoom("r")
	assert.Equal(t, 1, room.PlayerCount())
	assert.True(t, room.IsFull())
}

func TestRoom_CapacityNeverExceeded(t *testing.T) {
	manager := NewRoomManager()
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("room%d", i)
		capacity := r.Intn(5) + 1
		manager.CreateRoom(id, id, capacity)
		for j := 0; j < 50; j++ {
			manager.AddMember(id, fmt.Sprintf("p%d", r.Intn(20)))
			if r.Intn(4) == 0 {
				manager.RemoveMember(id, fmt.Sprintf("p%d", r.Intn(20)))
			}
			room, _ := manager.GetRoom(id)
			require.LessOrEqual(t, room.PlayerCount(), room.MaxPlayers)
		}
	}
}

func TestRoom_RemoveMember(t *testing.T) {
	manager := NewRoomManager()
	manager.CreateRoom("a", "A", 4)
	manager.CreateRoom("b", "B", 4)
	manager.AddMember("a", "p1")
	manager.AddMember("b", "p1")
	manager.AddMember("b", "p2")

	assert.True(t, manager.RemoveMember("a", "p1"))
	assert.False(t, manager.RemoveMember("a", "p1"))
	assert.False(t, manager.RemoveMember("missing", "p1"))

	manager.AddMember("a", "p1")
	assert.Equal(t, 2, manager.RemoveMemberEverywhere("p1"))
	assert.Empty(t, manager.Members("a"))
	assert.Equal(t, []string{"p2"}, manager.Members("b"))
}

func TestRoomManager_UpdateState(t *testing.T) {
	now := time.UnixMilli(10_000)
	manager := NewRoomManager(WithClock(func() time.Time { return now }))
	manager.CreateRoom("r", "R", 4)

	require.True(t, manager.UpdateState("r", map[string]any{"a": 1, "nested": map[string]any{"x": 1}}))
	now = now.Add(time.Second)
	require.True(t, manager.UpdateState("r", map[string]any{"nested": map[string]any{"y": 2}}))
	assert.False(t, manager.UpdateState("missing", nil))

	room, _ := manager.GetRoom("r")
	assert.Equal(t, uint64(2), room.State.Tick)
	assert.Equal(t, int64(11_000), room.State.Timestamp)
	assert.Equal(t, 1, room.State.Data["a"])
	assert.Equal(t, map[string]any{"y": 2}, room.State.Data["nested"])
}

func TestRoomManager_ListAndAvailable(t *testing.T) {
	manager := NewRoomManager()
	manager.CreateRoom("b", "B", 1)
	manager.CreateRoom("a", "A", 2)
	manager.AddMember("b", "p1")

	rooms := manager.ListRooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "a", rooms[0].ID)

	available := manager.AvailableRooms()
	require.Len(t, available, 1)
	assert.Equal(t, "a", available[0].ID)
	assert.Equal(t, 2, manager.RoomCount())
}

func TestRoomManager_EmptyRoomsAreKept(t *testing.T) {
	manager := NewRoomManager()
	manager.CreateRoom("r", "R", 2)
	manager.AddMember("r", "p1")
	manager.RemoveMember("r", "p1")

	_, exists := manager.GetRoom("r")
	assert.True(t, exists)
}

func TestRoomManager_GetOrCreateRoom(t *testing.T) {
	manager := NewRoomManager(WithMaxRooms(1))

	room, created, err := manager.GetOrCreateRoom("r1", "Default Room", 0)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultMaxPlayers, room.MaxPlayers)

	_, created, err = manager.GetOrCreateRoom("r1", "ignored", 3)
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = manager.GetOrCreateRoom("r2", "Default Room", 0)
	assert.ErrorIs(t, err, ErrRoomLimitReached)
}

func TestRoomManager_SnapshotsAreCopies(t *testing.T) {
	manager := NewRoomManager()
	manager.CreateRoom("r", "R", 4)
	manager.AddMember("r", "p1")

	room, _ := manager.GetRoom("r")
	room.Members["p2"] = struct{}{}
	room.State.Data["x"] = 1

	stored, _ := manager.GetRoom("r")
	assert.Equal(t, 1, stored.PlayerCount())
	assert.NotContains(t, stored.State.Data, "x")
}
