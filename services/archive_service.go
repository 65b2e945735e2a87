// services/archive_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/persistence"
	"github.com/wfunc/roomserver/timer"
)

const archiveTimeout = 5 * time.Second

// RoomSource lists room snapshots to archive.
type RoomSource interface {
	Records() []models.RoomRecord
}

// ArchiveService 定时把房间与玩家快照写入数据库；写入失败只记录日志，不影响游戏
type ArchiveService struct {
	db      persistence.Database
	rooms   RoomSource
	players *PlayerService
	task    *timer.Task
}

// NewArchiveService creates the service. A non-positive interval disables the
// periodic save; ArchivePlayer and SaveAll still work.
func NewArchiveService(db persistence.Database, rooms RoomSource, players *PlayerService, interval time.Duration) *ArchiveService {
	s := &ArchiveService{
		db:      db,
		rooms:   rooms,
		players: players,
	}
	s.task = timer.NewTask(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.SaveAll(ctx); err != nil {
			logger.Log.Errorf("Auto-save failed: %v", err)
		}
	})
	return s
}

func (s *ArchiveService) Start() {
	if s.task.Start() {
		logger.Log.Infof("Auto-save every %v", s.task.Interval())
	}
}

func (s *ArchiveService) Stop() {
	s.task.Stop()
}

// SaveAll writes every room and every player. It keeps going past failures and returns
// them joined.
func (s *ArchiveService) SaveAll(ctx context.Context) error {
	var errs []error
	for _, rec := range s.rooms.Records() {
		if err := s.db.SaveRoom(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range s.players.AllPlayers() {
		if err := s.db.SavePlayer(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ArchivePlayer stores the final state of a player leaving the registry.
func (s *ArchiveService) ArchivePlayer(p models.Player) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.db.SavePlayer(ctx, p); err != nil {
		logger.Log.Errorf("Failed to archive player %s: %v", p.ID, err)
	}
}
