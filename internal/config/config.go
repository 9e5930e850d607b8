// Package config loads server configuration from YAML and CHITTI_ environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/chitti-game/chitti-server/internal/card"
	"github.com/chitti-game/chitti-server/internal/game"
)

// EnvPrefix is prepended to every environment override, e.g.
// CHITTI_DATABASE_DRIVER.
const EnvPrefix = "CHITTI"

// Config is the complete server configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Bot      BotConfig      `mapstructure:"bot"`
	Database DatabaseConfig `mapstructure:"database"`
}

// LoggingConfig selects the zap logger flavour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
	GRPC            GRPCConfig      `mapstructure:"grpc"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
}

// WebSocketConfig configures the chat gateway endpoint.
type WebSocketConfig struct {
	Address        string   `mapstructure:"address"`
	Path           string   `mapstructure:"path"`
	ReadLimit      int64    `mapstructure:"read_limit"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GRPCConfig configures the health endpoint.
type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

// GameConfig holds round rules and shell tuning. MinPlayers may only raise
// the table minimum.
type GameConfig struct {
	CardSymbols     []string      `mapstructure:"card_symbols"`
	MinPlayers      int           `mapstructure:"min_players"`
	CommandCooldown time.Duration `mapstructure:"command_cooldown"`
	DMCacheTTL      time.Duration `mapstructure:"dm_cache_ttl"`
	DMCacheSize     int           `mapstructure:"dm_cache_size"`
}

// BotConfig identifies the bot and its owner.
type BotConfig struct {
	OwnerID int64  `mapstructure:"owner_id"`
	Name    string `mapstructure:"name"`
}

// DatabaseConfig selects the user/chat directory backend.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.read_limit", 4096)
	v.SetDefault("server.websocket.allowed_origins", []string{})
	v.SetDefault("server.grpc.address", ":9090")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("game.card_symbols", []string{})
	v.SetDefault("game.min_players", game.MinPlayers)
	v.SetDefault("game.command_cooldown", 2*time.Second)
	v.SetDefault("game.dm_cache_ttl", 10*time.Minute)
	v.SetDefault("game.dm_cache_size", 4096)

	v.SetDefault("bot.owner_id", 0)
	v.SetDefault("bot.name", "Chitti")

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
}

// Load reads the YAML file at path, if it exists, applies environment
// overrides and validates the result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
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

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.format %q is not json or console", c.Logging.Format))
	}

	if c.Server.WebSocket.Address == "" {
		err = multierr.Append(err, errors.New("server.websocket.address is required"))
	}
	if !strings.HasPrefix(c.Server.WebSocket.Path, "/") {
		err = multierr.Append(err, fmt.Errorf("server.websocket.path %q must start with /", c.Server.WebSocket.Path))
	}
	if c.Server.WebSocket.ReadLimit <= 0 {
		err = multierr.Append(err, errors.New("server.websocket.read_limit must be positive"))
	}

	if _, symErr := card.NewSymbols(c.Game.CardSymbols); symErr != nil {
		err = multierr.Append(err, fmt.Errorf("game.card_symbols: %w", symErr))
	}
	if c.Game.MinPlayers < game.MinPlayers || c.Game.MinPlayers > game.MaxPlayers {
		err = multierr.Append(err, fmt.Errorf("game.min_players must be within [%d,%d]", game.MinPlayers, game.MaxPlayers))
	}
	if c.Game.CommandCooldown < 0 {
		err = multierr.Append(err, errors.New("game.command_cooldown must not be negative"))
	}
	if c.Game.DMCacheTTL <= 0 {
		err = multierr.Append(err, errors.New("game.dm_cache_ttl must be positive"))
	}
	if c.Game.DMCacheSize <= 0 {
		err = multierr.Append(err, errors.New("game.dm_cache_size must be positive"))
	}

	switch c.Database.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			err = multierr.Append(err, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("database.driver %q is not memory, sqlite or postgres", c.Database.Driver))
	}
	if c.Database.MaxConns < 1 {
		err = multierr.Append(err, errors.New("database.max_conns must be at least 1"))
	}

	return err
}

// Symbols returns the configured card symbols. Load has already validated
// them.
func (c *Config) Symbols() card.Symbols {
	s, err := card.NewSymbols(c.Game.CardSymbols)
	if err != nil {
		return card.DefaultSymbols()
	}
	return s
}
