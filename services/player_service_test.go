package services

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/roomserver/models"
)

func TestPlayerService_CreatePlayer(t *testing.T) {
	now := time.UnixMilli(5000)
	s := NewPlayerService(WithClock(func() time.Time { return now }))

	p := s.CreatePlayer("p1", "alice")
	assert.Equal(t, models.Player{
		ID:         "p1",
		Name:       "alice",
		Health:     100,
		Connected:  true,
		LastUpdate: now,
	}, p)

	s.UpdateScore("p1", 50)
	again := s.CreatePlayer("p1", "bob")
	assert.Equal(t, "bob", again.Name)
	assert.Equal(t, int64(0), again.Score, "re-creating overwrites the previous player")
	assert.Equal(t, 1, s.PlayerCount())
}

func TestPlayerService_UnknownID(t *testing.T) {
	s := NewPlayerService()

	assert.False(t, s.UpdatePosition("ghost", models.Vector2D{X: 1}))
	assert.False(t, s.UpdateHealth("ghost", 10))
	assert.False(t, s.UpdateScore("ghost", 10))
	assert.False(t, s.DisconnectPlayer("ghost"))
	assert.False(t, s.RemovePlayer("ghost"))

	_, ok := s.GetPlayer("ghost")
	assert.False(t, ok)
}

func TestPlayerService_Updates(t *testing.T) {
	current := time.UnixMilli(1000)
	s := NewPlayerService(WithClock(func() time.Time { return current }))
	s.CreatePlayer("p1", "alice")

	current = time.UnixMilli(2000)
	require.True(t, s.UpdatePosition("p1", models.Vector2D{X: 3, Y: 4}))
	require.True(t, s.UpdateScore("p1", 42))

	p, ok := s.GetPlayer("p1")
	require.True(t, ok)
	assert.Equal(t, models.Vector2D{X: 3, Y: 4}, p.Position)
	assert.Equal(t, int64(42), p.Score)
	assert.Equal(t, current, p.LastUpdate)
}

func TestPlayerService_HealthAlwaysClamped(t *testing.T) {
	s := NewPlayerService()
	s.CreatePlayer("p1", "alice")

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := (r.Float64() - 0.5) * 1000
		require.True(t, s.UpdateHealth("p1", v))
		p, _ := s.GetPlayer("p1")
		require.GreaterOrEqual(t, p.Health, 0.0)
		require.LessOrEqual(t, p.Health, 100.0)
	}

	for _, v := range []float64{-10, 250, math.Inf(1), math.Inf(-1), math.NaN()} {
		s.UpdateHealth("p1", v)
		p, _ := s.GetPlayer("p1")
		assert.True(t, p.Health >= 0 && p.Health <= 100, "health %v out of range after %v", p.Health, v)
	}
}

func TestPlayerService_DisconnectAndRemove(t *testing.T) {
	s := NewPlayerService()
	s.CreatePlayer("p1", "alice")
	s.CreatePlayer("p2", "bob")

	require.True(t, s.DisconnectPlayer("p1"))
	assert.Equal(t, 2, s.PlayerCount())
	assert.Equal(t, 1, s.ConnectedCount())
	assert.Len(t, s.ConnectedPlayers(), 1)

	require.True(t, s.RemovePlayer("p1"))
	assert.False(t, s.RemovePlayer("p1"))
	assert.Len(t, s.AllPlayers(), 1)

	s.Clear()
	assert.Equal(t, 0, s.PlayerCount())
}

func TestPlayerService_ReturnsCopies(t *testing.T) {
	s := NewPlayerService()
	p := s.CreatePlayer("p1", "alice")
	p.Health = 1

	stored, _ := s.GetPlayer("p1")
	assert.Equal(t, 100.0, stored.Health)
}

func TestPlayerService_RemoveIfStale(t *testing.T) {
	now := time.UnixMilli(0)
	s := NewPlayerService(WithClock(func() time.Time { return now }))
	cutoff := time.UnixMilli(1_000)

	s.CreatePlayer("online", "Online")
	s.CreatePlayer("offline", "Offline")
	s.DisconnectPlayer("offline")

	_, ok := s.RemoveIfStale("online", cutoff)
	assert.False(t, ok, "connected players are kept")
	_, ok = s.RemoveIfStale("ghost", cutoff)
	assert.False(t, ok)
	_, ok = s.RemoveIfStale("offline", time.UnixMilli(0))
	assert.False(t, ok, "last update at the cutoff is not stale")

	p, ok := s.RemoveIfStale("offline", cutoff)
	require.True(t, ok)
	assert.Equal(t, "Offline", p.Name)
	_, ok = s.GetPlayer("offline")
	assert.False(t, ok)

	// a disconnected player re-created before the removal is fresh again
	s.CreatePlayer("back", "Back")
	s.DisconnectPlayer("back")
	s.CreatePlayer("back", "Back")
	_, ok = s.RemoveIfStale("back", cutoff)
	assert.False(t, ok)
	assert.Equal(t, 2, s.PlayerCount())
}
