// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// Vector2D 二维坐标
type Vector2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Player 玩家的权威状态，只由玩家注册表修改
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Position   Vector2D  `json:"position"`
	Health     float64   `json:"health"`
	Score      int64     `json:"score"`
	Connected  bool      `json:"connected"`
	LastUpdate time.Time `json:"-"`
}

// MarshalJSON writes lastUpdate as Unix milliseconds.
func (p Player) MarshalJSON() ([]byte, error) {
	type alias Player
	return json.Marshal(struct {
		alias
		LastUpdate int64 `json:"lastUpdate"`
	}{alias(p), p.LastUpdate.UnixMilli()})
}

// View returns the projection sent in state syncs.
func (p Player) View() PlayerView {
	return PlayerView{
		ID:       p.ID,
		Name:     p.Name,
		Position: p.Position,
		Health:   p.Health,
		Score:    p.Score,
	}
}

// PlayerView 状态同步中每个玩家的精简投影
type PlayerView struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Vector2D `json:"position"`
	Health   float64  `json:"health"`
	Score    int64    `json:"score"`
}

// GameState 房间状态
type GameState struct {
	Tick      uint64         `json:"tick"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func NewGameState(now time.Time) GameState {
	return GameState{
		Timestamp: now.UnixMilli(),
		Data:      make(map[string]any),
	}
}

// Apply advances the tick, stamps the timestamp and shallow-merges patch into Data.
// A nested value in patch replaces the existing value under the same key.
func (s *GameState) Apply(patch map[string]any, now time.Time) {
	s.Tick++
	s.Timestamp = now.UnixMilli()
	if s.Data == nil {
		s.Data = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		s.Data[k] = v
	}
}

// Clone copies the top level of Data. Nested values are shared; Apply never mutates them.
func (s GameState) Clone() GameState {
	data := make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		data[k] = v
	}
	s.Data = data
	return s
}

// RoomSummary 加入房间应答中的房间摘要
type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
}

// Stats 服务器运行统计
type Stats struct {
	PlayerCount      int `json:"playerCount"`
	ConnectedPlayers int `json:"connectedPlayers"`
	RoomCount        int `json:"roomCount"`
	ClientCount      int `json:"clientCount"`
}

// RoomRecord 存档用的房间快照
type RoomRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	MaxPlayers int       `json:"max_players"`
	Members    []string  `json:"members"`
	State      GameState `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
}
