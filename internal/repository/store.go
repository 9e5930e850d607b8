// Package repository persists the user and chat directory: who has started
// the bot privately and which chats it serves. Sessions themselves are never
// stored.
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/config"
)

// ErrUnknownDriver is returned by Open for unsupported database drivers.
var ErrUnknownDriver = errors.New("unknown database driver")

// Store is the user/chat directory.
type Store interface {
	// AddUser records a user, updating the username if already known.
	AddUser(ctx context.Context, id int64, username string) error
	// AddChat records a chat, updating the title if already known.
	AddChat(ctx context.Context, id int64, title string) error
	// RemoveChat forgets a chat. Unknown ids are not an error.
	RemoveChat(ctx context.Context, id int64) error
	UserCount(ctx context.Context) (int64, error)
	ChatCount(ctx context.Context) (int64, error)
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("using in-memory directory store")
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("sqlite directory store ready", zap.String("dsn", cfg.DSN))
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		stats := s.pool.Stat()
		logger.Info("postgres directory store ready",
			zap.Int32("max_conns", stats.MaxConns()),
			zap.Int32("total_conns", stats.TotalConns()),
		)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
