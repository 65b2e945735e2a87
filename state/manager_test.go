package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/services"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestManager_TickStampsRooms(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_000)}
	rooms := room.NewRoomManager(room.WithClock(clock.Now))
	players := services.NewPlayerService(services.WithClock(clock.Now))
	rooms.CreateRoom("r1", "R1", 4)
	rooms.CreateRoom("r2", "R2", 4)

	m := NewManager(Config{TickRate: 30}, rooms, players, WithClock(clock.Now))
	m.Tick()
	clock.Advance(500 * time.Millisecond)
	m.Tick()

	for _, id := range []string{"r1", "r2"} {
		r, ok := rooms.GetRoom(id)
		require.True(t, ok)
		assert.Equal(t, uint64(2), r.State.Tick)
		assert.Equal(t, int64(1_500), r.State.Data["lastUpdate"])
		assert.InDelta(t, 0.5, r.State.Data["deltaTime"], 1e-9)
	}
	assert.Equal(t, uint64(2), m.Ticks())
}

func TestManager_ReapDoesNotCascadeIntoRooms(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	rooms := room.NewRoomManager(room.WithClock(clock.Now))
	players := services.NewPlayerService(services.WithClock(clock.Now))

	var reaped []models.Player
	m := NewManager(
		Config{TickRate: 30, DisconnectTimeout: 10 * time.Second},
		rooms, players,
		WithClock(clock.Now),
		WithReapHook(func(p models.Player) { reaped = append(reaped, p) }),
	)

	rooms.CreateRoom("r1", "R1", 4)
	players.CreatePlayer("gone", "Gone")
	players.CreatePlayer("stay", "Stay")
	rooms.AddMember("r1", "gone")
	rooms.AddMember("r1", "stay")

	clock.Advance(time.Second)
	require.True(t, players.DisconnectPlayer("gone"))

	clock.Advance(10 * time.Second)
	m.Tick()
	_, ok := players.GetPlayer("gone")
	assert.True(t, ok, "exactly the timeout is not past it")

	clock.Advance(time.Millisecond)
	m.Tick()
	_, ok = players.GetPlayer("gone")
	assert.False(t, ok, "reaped after T+D")
	_, ok = players.GetPlayer("stay")
	assert.True(t, ok, "connected players are never reaped")

	assert.Equal(t, []string{"gone", "stay"}, rooms.Members("r1"), "membership still references the reaped player")
	require.Len(t, reaped, 1)
	assert.Equal(t, "gone", reaped[0].ID)
}

func TestManager_StartStopIdempotent(t *testing.T) {
	rooms := room.NewRoomManager()
	players := services.NewPlayerService()
	m := NewManager(Config{TickRate: 200}, rooms, players)

	assert.False(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())

	m.Start()
	m.Start()
	assert.True(t, m.IsRunning())

	m.Stop()
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManager_StopThenStartResumes(t *testing.T) {
	rooms := room.NewRoomManager()
	players := services.NewPlayerService()
	rooms.CreateRoom("r1", "R1", 4)
	players.CreatePlayer("p1", "P1")
	rooms.AddMember("r1", "p1")

	m := NewManager(Config{TickRate: 200}, rooms, players)
	m.Start()
	assert.Eventually(t, func() bool {
		r, _ := rooms.GetRoom("r1")
		return r.State.Tick >= 2
	}, 2*time.Second, 2*time.Millisecond)
	m.Stop()

	r, _ := rooms.GetRoom("r1")
	stoppedAt := r.State.Tick
	time.Sleep(30 * time.Millisecond)
	r, _ = rooms.GetRoom("r1")
	assert.Equal(t, stoppedAt, r.State.Tick, "no ticks while stopped")

	m.Start()
	defer m.Stop()
	assert.Eventually(t, func() bool {
		r, _ := rooms.GetRoom("r1")
		return r.State.Tick > stoppedAt
	}, 2*time.Second, 2*time.Millisecond)

	assert.Equal(t, []string{"p1"}, rooms.Members("r1"))
	_, ok := players.GetPlayer("p1")
	assert.True(t, ok)
}

func TestManager_GlobalState(t *testing.T) {
	rooms := room.NewRoomManager()
	players := services.NewPlayerService()
	rooms.CreateRoom("r1", "R1", 4)
	players.CreatePlayer("p1", "P1")
	players.CreatePlayer("p2", "P2")
	players.DisconnectPlayer("p2")

	m := NewManager(Config{}, rooms, players)
	m.Tick()

	gs := m.GlobalState()
	assert.Equal(t, uint64(1), gs.Tick)
	assert.Equal(t, 2, gs.Data["playerCount"])
	assert.Equal(t, 1, gs.Data["roomCount"])
	assert.Equal(t, 1, gs.Data["connectedPlayers"])
}

// rejoiningRegistry re-creates a player right after the reaper's snapshot, the way a
// JOIN on the same socket can land between the snapshot and the removal.
type rejoiningRegistry struct {
	*services.PlayerService
	rejoin string
}

func (r *rejoiningRegistry) AllPlayers() []models.Player {
	snapshot := r.PlayerService.AllPlayers()
	if r.rejoin != "" {
		r.PlayerService.CreatePlayer(r.rejoin, "Rejoined")
		r.rejoin = ""
	}
	return snapshot
}

func TestManager_ReapSparesPlayerRecreatedDuringTick(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(0)}
	rooms := room.NewRoomManager(room.WithClock(clock.Now))
	players := services.NewPlayerService(services.WithClock(clock.Now))
	registry := &rejoiningRegistry{PlayerService: players}

	var reaped []models.Player
	m := NewManager(
		Config{TickRate: 30, DisconnectTimeout: 10 * time.Second},
		rooms, registry,
		WithClock(clock.Now),
		WithReapHook(func(p models.Player) { reaped = append(reaped, p) }),
	)

	players.CreatePlayer("p1", "P1")
	players.DisconnectPlayer("p1")
	clock.Advance(time.Minute)

	registry.rejoin = "p1"
	m.Tick()

	p, ok := players.GetPlayer("p1")
	require.True(t, ok, "the re-created player survives the tick")
	assert.True(t, p.Connected)
	assert.Equal(t, "Rejoined", p.Name)
	assert.Empty(t, reaped)
}
