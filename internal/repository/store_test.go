package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/chitti-game/chitti-server/internal/config"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.AddUser(ctx, 1, "alice"))
	require.NoError(t, s.AddUser(ctx, 2, ""))
	require.NoError(t, s.AddUser(ctx, 1, "alice_renamed"))
	users, err := s.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), users)

	require.NoError(t, s.AddChat(ctx, -100, "group"))
	require.NoError(t, s.AddChat(ctx, -200, "other"))
	require.NoError(t, s.AddChat(ctx, -100, "group renamed"))
	chats, err := s.ChatCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), chats)

	require.NoError(t, s.RemoveChat(ctx, -100))
	require.NoError(t, s.RemoveChat(ctx, -999))
	chats, err = s.ChatCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), chats)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	assert.NoError(t, s.Close())
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chitti.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.AddUser(ctx, 5, "eve"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	n, err := reopened.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), "  ")
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CHITTI_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHITTI_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE users, chats`)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestOpenSelectsDriver(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	s, err := Open(ctx, config.DatabaseConfig{Driver: "memory"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.DatabaseConfig{Driver: "mongo"}, logger)
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
