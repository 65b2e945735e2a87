// services/player_service.go
package services

import (
	"math"
	"sync"
	"time"

	"github.com/wfunc/roomserver/models"
)

const (
	MinHealth     = 0
	MaxHealth     = 100
	InitialHealth = 100
)

// PlayerService 玩家注册表：玩家状态的唯一持有者
//
// Every read returns a copy. Operations on unknown IDs report false instead of failing.
type PlayerService struct {
	players map[string]*models.Player
	mutex   sync.RWMutex
	now     func() time.Time
}

type PlayerOption func(*PlayerService)

// WithClock overrides the time source used to stamp lastUpdate.
func WithClock(now func() time.Time) PlayerOption {
	return func(s *PlayerService) {
		s.now = now
	}
}

func NewPlayerService(opts ...PlayerOption) *PlayerService {
	s := &PlayerService{
		players: make(map[string]*models.Player),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePlayer 创建玩家；同 ID 已存在时直接覆盖
func (s *PlayerService) CreatePlayer(id, name string) models.Player {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p := &models.Player{
		ID:         id,
		Name:       name,
		Health:     InitialHealth,
		Connected:  true,
		LastUpdate: s.now(),
	}
	s.players[id] = p
	return *p
}

func (s *PlayerService) GetPlayer(id string) (models.Player, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

func (s *PlayerService) UpdatePosition(id string, pos models.Vector2D) bool {
	return s.update(id, func(p *models.Player) {
		p.Position = pos
	})
}

// UpdateHealth stores health clamped to [MinHealth, MaxHealth].
func (s *PlayerService) UpdateHealth(id string, health float64) bool {
	return s.update(id, func(p *models.Player) {
		p.Health = ClampHealth(health)
	})
}

func (s *PlayerService) UpdateScore(id string, score int64) bool {
	return s.update(id, func(p *models.Player) {
		p.Score = score
	})
}

// DisconnectPlayer 标记离线，不影响房间成员关系
func (s *PlayerService) DisconnectPlayer(id string) bool {
	return s.update(id, func(p *models.Player) {
		p.Connected = false
	})
}

// RemovePlayer 删除玩家。房间中引用该 ID 的成员关系不会被清理
func (s *PlayerService) RemovePlayer(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	return true
}

// RemoveIfStale deletes the player only if it is disconnected and was last updated
// before cutoff. The check and the delete happen under one lock, so a player
// re-created in the meantime survives. It returns the removed player.
func (s *PlayerService) RemoveIfStale(id string, cutoff time.Time) (models.Player, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.players[id]
	if !ok || p.Connected || !p.LastUpdate.Before(cutoff) {
		return models.Player{}, false
	}
	delete(s.players, id)
	return *p, true
}

func (s *PlayerService) AllPlayers() []models.Player {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]models.Player, 0, len(s.players))
	for _, p := range s.players {
		result = append(result, *p)
	}
	return result
}

func (s *PlayerService) ConnectedPlayers() []models.Player {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []models.Player
	for _, p := range s.players {
		if p.Connected {
			result = append(result, *p)
		}
	}
	return result
}

func (s *PlayerService) PlayerCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.players)
}

func (s *PlayerService) ConnectedCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	n := 0
	for _, p := range s.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (s *PlayerService) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.players = make(map[string]*models.Player)
}

func (s *PlayerService) update(id string, fn func(p *models.Player)) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.players[id]
	if !ok {
		return false
	}
	fn(p)
	p.LastUpdate = s.now()
	return true
}

// ClampHealth limits health to [MinHealth, MaxHealth]. NaN becomes MinHealth.
func ClampHealth(health float64) float64 {
	switch {
	case math.IsNaN(health), health < MinHealth:
		return MinHealth
	case health > MaxHealth:
		return MaxHealth
	}
	return health
}
