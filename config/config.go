package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	RPC      RPCConfig      `mapstructure:"rpc"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	TickRate           int           `mapstructure:"tick_rate"`
	MaxRooms           int           `mapstructure:"max_rooms"` // 0 means unlimited
	StateSyncFrequency int           `mapstructure:"state_sync_frequency"`
	DisconnectTimeout  time.Duration `mapstructure:"disconnect_timeout"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	MaxMessageSize     int64         `mapstructure:"max_message_size"`
	StatsInterval      time.Duration `mapstructure:"stats_interval"`
}

// Addr returns host:port for the gateway listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RPCConfig struct {
	Address       string `mapstructure:"address"`
	HealthAddress string `mapstructure:"health_address"`
}

type DatabaseConfig struct {
	Driver           string         `mapstructure:"driver"`
	AutoSaveInterval time.Duration  `mapstructure:"auto_save_interval"`
	Postgres         PostgresConfig `mapstructure:"postgres"`
	SQLite           SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			TickRate:           30,
			MaxRooms:           0,
			StateSyncFrequency: 10,
			DisconnectTimeout:  60 * time.Second,
			MaxMessageSize:     64 * 1024,
			StatsInterval:      30 * time.Second,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:   "localhost",
				Port:   5432,
				User:   "postgres",
				DBName: "gameserver",
			},
			SQLite: SQLiteConfig{Path: "gameserver.db"},
		},
		Log: LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.tick_rate", d.Server.TickRate)
	v.SetDefault("server.max_rooms", d.Server.MaxRooms)
	v.SetDefault("server.state_sync_frequency", d.Server.StateSyncFrequency)
	v.SetDefault("server.disconnect_timeout", d.Server.DisconnectTimeout)
	v.SetDefault("server.heartbeat_interval", d.Server.HeartbeatInterval)
	v.SetDefault("server.max_message_size", d.Server.MaxMessageSize)
	v.SetDefault("server.stats_interval", d.Server.StatsInterval)
	v.SetDefault("rpc.address", d.RPC.Address)
	v.SetDefault("rpc.health_address", d.RPC.HealthAddress)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.auto_save_interval", d.Database.AutoSaveInterval)
	v.SetDefault("database.postgres.host", d.Database.Postgres.Host)
	v.SetDefault("database.postgres.port", d.Database.Postgres.Port)
	v.SetDefault("database.postgres.user", d.Database.Postgres.User)
	v.SetDefault("database.postgres.password", d.Database.Postgres.Password)
	v.SetDefault("database.postgres.dbname", d.Database.Postgres.DBName)
	v.SetDefault("database.sqlite.path", d.Database.SQLite.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// Flags declares the command-line overrides understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("gameserver", pflag.ContinueOnError)
	fs.String("config", ".", "directory containing config.yaml")
	fs.String("host", "", "listen host")
	fs.Int("port", 0, "listen port")
	fs.Int("tick-rate", 0, "simulation ticks per second")
	fs.Int("sync-rate", 0, "state sync broadcasts per second")
	fs.String("log-level", "", "log level")
	return fs
}

var flagKeys = map[string]string{
	"host":      "server.host",
	"port":      "server.port",
	"tick-rate": "server.tick_rate",
	"sync-rate": "server.state_sync_frequency",
	"log-level": "log.level",
}

// LoadConfig reads config.yaml from path (optional), GAMESERVER_* environment variables
// and the given flags, in increasing order of precedence. flags may be nil.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("GAMESERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is honoured for platforms that inject it.
	if err := v.BindEnv("server.port", "GAMESERVER_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values the server cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Server.TickRate <= 0:
		return fmt.Errorf("%w: tick_rate must be positive", ErrInvalidConfig)
	case c.Server.StateSyncFrequency <= 0:
		return fmt.Errorf("%w: state_sync_frequency must be positive", ErrInvalidConfig)
	case c.Server.DisconnectTimeout < 0:
		return fmt.Errorf("%w: disconnect_timeout must not be negative", ErrInvalidConfig)
	}
	switch c.Database.Driver {
	case "", "gorm", "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	return nil
}
