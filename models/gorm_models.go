// models/gorm_models.go
package models

import (
	"time"
)

// GormPlayer 玩家存档表
type GormPlayer struct {
	PlayerID   string    `gorm:"primaryKey;size:64"`
	Name       string    `gorm:"not null"`
	X          float64   `gorm:"not null"`
	Y          float64   `gorm:"not null"`
	Health     float64   `gorm:"not null"`
	Score      int64     `gorm:"not null"`
	Connected  bool      `gorm:"not null"`
	LastUpdate time.Time `gorm:"not null"`
	UpdatedAt  time.Time
}

func (GormPlayer) TableName() string { return "players" }

// GormRoom 房间存档表，成员与状态以 JSON 文本保存
type GormRoom struct {
	RoomID     string `gorm:"primaryKey;size:64"`
	Name       string `gorm:"not null"`
	MaxPlayers int    `gorm:"not null"`
	Members    string `gorm:"type:jsonb;not null"`
	State      string `gorm:"type:jsonb;not null"`
	Tick       uint64 `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (GormRoom) TableName() string { return "rooms" }

// ToGormPlayer converts a live player into its archive row.
func ToGormPlayer(p Player) GormPlayer {
	return GormPlayer{
		PlayerID:   p.ID,
		Name:       p.Name,
		X:          p.Position.X,
		Y:          p.Position.Y,
		Health:     p.Health,
		Score:      p.Score,
		Connected:  p.Connected,
		LastUpdate: p.LastUpdate,
	}
}

// Player converts the archive row back.
func (g GormPlayer) Player() Player {
	return Player{
		ID:         g.PlayerID,
		Name:       g.Name,
		Position:   Vector2D{X: g.X, Y: g.Y},
		Health:     g.Health,
		Score:      g.Score,
		Connected:  g.Connected,
		LastUpdate: g.LastUpdate,
	}
}
