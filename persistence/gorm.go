// persistence/gorm.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/wfunc/roomserver/models"
)

// GormDatabase 基于 GORM 的存档实现，PostgreSQL 与 SQLite 共用
type GormDatabase struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormDatabase, error) {
	return NewGormDatabase(postgres.Open(postgresDSN(host, port, user, password, dbname)))
}

// NewGormSQLite opens (or creates) an SQLite database file.
func NewGormSQLite(path string) (*GormDatabase, error) {
	return NewGormDatabase(sqlite.Open(path))
}

func NewGormDatabase(dialector gorm.Dialector) (*GormDatabase, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormPlayer{}, &models.GormRoom{}); err != nil {
		return nil, err
	}
	return &GormDatabase{db: db}, nil
}

// SavePlayer upserts the player's archive row.
func (g *GormDatabase) SavePlayer(ctx context.Context, player models.Player) error {
	row := models.ToGormPlayer(player)
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (g *GormDatabase) LoadPlayer(ctx context.Context, playerID string) (models.Player, error) {
	var row models.GormPlayer
	err := g.db.WithContext(ctx).Where("player_id = ?", playerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Player{}, ErrRecordNotFound
	}
	if err != nil {
		return models.Player{}, err
	}
	return row.Player(), nil
}

// SaveRoom upserts the room's archive row.
func (g *GormDatabase) SaveRoom(ctx context.Context, room models.RoomRecord) error {
	row, err := toGormRoom(room)
	if err != nil {
		return err
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (g *GormDatabase) LoadRoom(ctx context.Context, roomID string) (models.RoomRecord, error) {
	var row models.GormRoom
	err := g.db.WithContext(ctx).Where("room_id = ?", roomID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RoomRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return models.RoomRecord{}, err
	}
	return fromGormRoom(row)
}

// Close 关闭数据库连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toGormRoom(room models.RoomRecord) (models.GormRoom, error) {
	members, err := json.Marshal(room.Members)
	if err != nil {
		return models.GormRoom{}, err
	}
	state, err := json.Marshal(room.State)
	if err != nil {
		return models.GormRoom{}, err
	}
	return models.GormRoom{
		RoomID:     room.ID,
		Name:       room.Name,
		MaxPlayers: room.MaxPlayers,
		Members:    string(members),
		State:      string(state),
		Tick:       room.State.Tick,
		CreatedAt:  room.CreatedAt,
	}, nil
}

func fromGormRoom(row models.GormRoom) (models.RoomRecord, error) {
	rec := models.RoomRecord{
		ID:         row.RoomID,
		Name:       row.Name,
		MaxPlayers: row.MaxPlayers,
		CreatedAt:  row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Members), &rec.Members); err != nil {
		return models.RoomRecord{}, err
	}
	if err := json.Unmarshal([]byte(row.State), &rec.State); err != nil {
		return models.RoomRecord{}, err
	}
	return rec, nil
}
