package server

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/chitti-game/chitti-server/internal/game"
)

const (
	cooldownEntries = 8192
	cooldownIdle    = 10 * time.Minute
)

// cooldowns allows one command per user per interval. Idle limiters expire.
type cooldowns struct {
	every time.Duration

	mu       sync.Mutex
	limiters *expirable.LRU[game.PlayerID, *rate.Limiter]
}

func newCooldowns(every time.Duration) *cooldowns {
	c := &cooldowns{every: every}
	if every > 0 {
		idle := cooldownIdle
		if every > idle {
			idle = every
		}
		c.limiters = expirable.NewLRU[game.PlayerID, *rate.Limiter](cooldownEntries, nil, idle)
	}
	return c
}

func (c *cooldowns) allow(user game.PlayerID) bool {
	if c.limiters == nil {
		return true
	}
	c.mu.Lock()
	lim, ok := c.limiters.Get(user)
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.every), 1)
		c.limiters.Add(user, lim)
	}
	c.mu.Unlock()
	return lim.Allow()
}

// dmCache remembers users known to accept direct messages. Negative answers
// are never cached so a user who starts the bot is picked up immediately.
type dmCache struct {
	dir   Directory
	known *expirable.LRU[game.PlayerID, struct{}]
}

func newDMCache(dir Directory, size int, ttl time.Duration) *dmCache {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &dmCache{
		dir:   dir,
		known: expirable.NewLRU[game.PlayerID, struct{}](size, nil, ttl),
	}
}

func (c *dmCache) canDM(ctx context.Context, user game.PlayerID) bool {
	if c.known.Contains(user) {
		return true
	}
	if !c.dir.CanDirectMessage(ctx, user) {
		return false
	}
	c.known.Add(user, struct{}{})
	return true
}
