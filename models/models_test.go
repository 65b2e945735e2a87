package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameState_ApplyShallowMerge(t *testing.T) {
	now := time.UnixMilli(1_000)
	s := NewGameState(now)
	s.Apply(map[string]any{"a": 1, "nested": map[string]any{"x": 1, "y": 2}}, now)
	s.Apply(map[string]any{"b": 2, "nested": map[string]any{"x": 5}}, now.Add(time.Second))

	assert.Equal(t, uint64(2), s.Tick)
	assert.Equal(t, int64(2_000), s.Timestamp)
	assert.Equal(t, 1, s.Data["a"])
	assert.Equal(t, 2, s.Data["b"])
	assert.Equal(t, map[string]any{"x": 5}, s.Data["nested"], "nested values are replaced, not merged")
}

func TestGameState_CloneIsIndependent(t *testing.T) {
	s := NewGameState(time.Now())
	s.Apply(map[string]any{"k": "v"}, time.Now())

	c := s.Clone()
	c.Data["k"] = "changed"
	c.Data["extra"] = true

	assert.Equal(t, "v", s.Data["k"])
	assert.NotContains(t, s.Data, "extra")
}

func TestPlayer_MarshalJSON(t *testing.T) {
	p := Player{
		ID:         "p1",
		Name:       "alice",
		Position:   Vector2D{X: 1, Y: 2},
		Health:     100,
		Connected:  true,
		LastUpdate: time.UnixMilli(12345),
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(12345), raw["lastUpdate"])
	assert.Equal(t, "alice", raw["name"])
	assert.Equal(t, map[string]any{"x": float64(1), "y": float64(2)}, raw["position"])
}
