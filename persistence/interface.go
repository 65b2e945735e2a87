// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/models"
)

// Database 存档接口
type Database interface {
	SavePlayer(ctx context.Context, player models.Player) error
	LoadPlayer(ctx context.Context, playerID string) (models.Player, error)
	SaveRoom(ctx context.Context, room models.RoomRecord) error
	LoadRoom(ctx context.Context, roomID string) (models.RoomRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrNoDriver       = errors.New("no database driver configured")
)

// Open connects the database selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "gorm":
		return NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "postgres":
		return NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "sqlite":
		return NewGormSQLite(cfg.SQLite.Path)
	case "":
		return nil, ErrNoDriver
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func postgresDSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}
