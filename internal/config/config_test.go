package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/chitti-game/chitti-server/internal/card"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
	assert.Equal(t, "/ws", cfg.Server.WebSocket.Path)
	assert.Equal(t, 4, cfg.Game.MinPlayers)
	assert.Equal(t, 2*time.Second, cfg.Game.CommandCooldown)
	assert.Equal(t, 10*time.Minute, cfg.Game.DMCacheTTL)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, card.DefaultSymbols(), cfg.Symbols())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
server:
  websocket:
    address: ":9000"
    path: /chat
game:
  card_symbols: ["A", "B"]
  command_cooldown: 500ms
bot:
  owner_id: 77
database:
  driver: sqlite
  dsn: file:chitti.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":9000", cfg.Server.WebSocket.Address)
	assert.Equal(t, "/chat", cfg.Server.WebSocket.Path)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.CommandCooldown)
	assert.Equal(t, int64(77), cfg.Bot.OwnerID)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	symbols := cfg.Symbols()
	assert.Equal(t, "A", symbols.Of(card.KindApple))
	assert.Equal(t, "B", symbols.Of(card.KindWatermelon))
	assert.Equal(t, card.KindCherry.Symbol(), symbols.Of(card.KindCherry))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CHITTI_LOGGING_LEVEL", "warn")
	t.Setenv("CHITTI_GAME_MIN_PLAYERS", "6")
	t.Setenv("CHITTI_DATABASE_DRIVER", "postgres")
	t.Setenv("CHITTI_DATABASE_DSN", "postgres://localhost/chitti")

	path := writeConfig(t, "logging:\n  level: debug\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 6, cfg.Game.MinPlayers)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/chitti", cfg.Database.DSN)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeConfig(t, "logging: [unterminated\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Logging.Level = "loud"
	cfg.Server.WebSocket.Path = "ws"
	cfg.Game.MinPlayers = 9
	cfg.Game.CardSymbols = []string{"X", "X"}
	cfg.Database.Driver = "sqlite"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 5)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Database.Driver = "mongo"
	assert.ErrorContains(t, cfg.Validate(), "database.driver")
}

func TestValidateKeepsTableMinimum(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Game.MinPlayers = 2
	assert.ErrorContains(t, cfg.Validate(), "game.min_players")
	cfg.Game.MinPlayers = 8
	assert.NoError(t, cfg.Validate())

	t.Setenv("CHITTI_GAME_MIN_PLAYERS", "3")
	_, err = Load("")
	assert.ErrorContains(t, err, "game.min_players")
}
