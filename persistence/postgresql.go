// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/roomserver/models"
)

// PostgreSQL 直接使用 database/sql 的存档实现，表结构与 GormDatabase 相同
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", postgresDSN(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS players (
            player_id VARCHAR(64) PRIMARY KEY,
            name TEXT NOT NULL,
            x DOUBLE PRECISION NOT NULL,
            y DOUBLE PRECISION NOT NULL,
            health DOUBLE PRECISION NOT NULL,
            score BIGINT NOT NULL,
            connected BOOLEAN NOT NULL,
            last_update TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS rooms (
            room_id VARCHAR(64) PRIMARY KEY,
            name TEXT NOT NULL,
            max_players INTEGER NOT NULL,
            members JSONB NOT NULL,
            state JSONB NOT NULL,
            tick BIGINT NOT NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	return err
}

func (p *PostgreSQL) SavePlayer(ctx context.Context, player models.Player) error {
	query := `
        INSERT INTO players (player_id, name, x, y, health, score, connected, last_update)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (player_id)
        DO UPDATE SET name = $2, x = $3, y = $4, health = $5, score = $6,
            connected = $7, last_update = $8, updated_at = CURRENT_TIMESTAMP
    `
	_, err := p.db.ExecContext(ctx, query,
		player.ID, player.Name, player.Position.X, player.Position.Y,
		player.Health, player.Score, player.Connected, player.LastUpdate)
	return err
}

func (p *PostgreSQL) LoadPlayer(ctx context.Context, playerID string) (models.Player, error) {
	var player models.Player
	query := `SELECT player_id, name, x, y, health, score, connected, last_update FROM players WHERE player_id = $1`
	err := p.db.QueryRowContext(ctx, query, playerID).Scan(
		&player.ID, &player.Name, &player.Position.X, &player.Position.Y,
		&player.Health, &player.Score, &player.Connected, &player.LastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Player{}, ErrRecordNotFound
	}
	return player, err
}

func (p *PostgreSQL) SaveRoom(ctx context.Context, room models.RoomRecord) error {
	members, err := json.Marshal(room.Members)
	if err != nil {
		return err
	}
	state, err := json.Marshal(room.State)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO rooms (room_id, name, max_players, members, state, tick, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (room_id)
        DO UPDATE SET name = $2, max_players = $3, members = $4, state = $5, tick = $6,
            updated_at = CURRENT_TIMESTAMP
    `
	_, err = p.db.ExecContext(ctx, query,
		room.ID, room.Name, room.MaxPlayers, members, state, int64(room.State.Tick), room.CreatedAt)
	return err
}

func (p *PostgreSQL) LoadRoom(ctx context.Context, roomID string) (models.RoomRecord, error) {
	var (
		rec     models.RoomRecord
		members []byte
		state   []byte
	)
	query := `SELECT room_id, name, max_players, members, state, created_at FROM rooms WHERE room_id = $1`
	err := p.db.QueryRowContext(ctx, query, roomID).Scan(
		&rec.ID, &rec.Name, &rec.MaxPlayers, &members, &state, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RoomRecord{}, ErrRecordNotFound
	}
	if err != nil {
		return models.RoomRecord{}, err
	}
	if err := json.Unmarshal(members, &rec.Members); err != nil {
		return models.RoomRecord{}, err
	}
	if err := json.Unmarshal(state, &rec.State); err != nil {
		return models.RoomRecord{}, err
	}
	return rec, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
