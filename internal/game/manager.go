package game

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EndHook runs after a session has been removed from the registry.
type EndHook func(g *Game)

// Option configures a Manager.
type Option func(*Manager)

// WithRandFactory sets the source of per-session randomness.
func WithRandFactory(f RandFactory) Option {
	return func(m *Manager) {
		if f != nil {
			m.randFactory = f
		}
	}
}

// WithClock overrides time.Now for session timestamps and tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMinPlayers sets the membership required to start a session.
func WithMinPlayers(n int) Option {
	return func(m *Manager) {
		if n >= 2 && n <= MaxPlayers {
			m.minPlayers = n
		}
	}
}

// WithEndHook registers a hook fired by End.
func WithEndHook(h EndHook) Option {
	return func(m *Manager) {
		m.hooks = append(m.hooks, h)
	}
}

// Manager is the process-wide registry of sessions. It maps each chat to its
// session and each bound player to the chat they play in. Lock order is
// always Manager before Game.
type Manager struct {
	games   map[ChatID]*Game
	players map[PlayerID]ChatID
	mu      sync.RWMutex
	logger  *zap.Logger

	randFactory RandFactory
	now         func() time.Time
	minPlayers  int
	hooks       []EndHook
}

// NewManager creates an empty registry.
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		games:       make(map[ChatID]*Game),
		players:     make(map[PlayerID]ChatID),
		logger:      logger,
		randFactory: defaultRandFactory,
		now:         time.Now,
		minPlayers:  MinPlayers,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnEnd registers a hook fired by End. Hooks run outside the registry lock.
func (m *Manager) OnEnd(h EndHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Create starts a new FORMING session for chat hosted by host. The host is
// bound to the chat immediately, before joining.
func (m *Manager) Create(host PlayerID, chat ChatID) (*Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.games[chat]; exists {
		return nil, ErrSessionExists
	}
	if m.boundElsewhere(host, chat) {
		return nil, ErrPlayerBusy
	}

	g := newGame(host, chat, m.randFactory(), m.now, m.minPlayers)
	m.games[chat] = g
	m.players[host] = chat

	m.logger.Info("session created",
		zap.Int64("chat_id", int64(chat)),
		zap.Int64("host_id", int64(host)),
		zap.String("token", g.Token()),
	)
	return g, nil
}

// Get returns the session bound to chat.
func (m *Manager) Get(chat ChatID) (*Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.games[chat]
	return g, ok
}

// GetByPlayer returns the session player is bound to.
func (m *Manager) GetByPlayer(player PlayerID) (*Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.players[player]
	if !ok {
		return nil, false
	}
	g, ok := m.games[chat]
	return g, ok
}

// ActiveChat returns the chat player is currently bound to.
func (m *Manager) ActiveChat(player PlayerID) (ChatID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.players[player]
	if !ok {
		return 0, false
	}
	if _, live := m.games[chat]; !live {
		return 0, false
	}
	return chat, true
}

// AddPlayer joins player to chat's session and binds them to it.
func (m *Manager) AddPlayer(chat ChatID, player PlayerID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[chat]
	if !ok {
		return ErrNoActiveSession
	}
	if m.boundElsewhere(player, chat) {
		return ErrPlayerBusy
	}
	if err := g.Join(Player{ID: player, Name: name}); err != nil {
		return err
	}
	m.players[player] = chat

	m.logger.Debug("player joined",
		zap.Int64("chat_id", int64(chat)),
		zap.Int64("player_id", int64(player)),
		zap.String("token", g.Token()),
	)
	return nil
}

// End removes chat's session, releases every player bound to it and fires
// the end hooks. The returned Game is in the ENDED state.
func (m *Manager) End(chat ChatID) (*Game, error) {
	m.mu.Lock()
	g, ok := m.games[chat]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	delete(m.games, chat)
	m.release(g.Host(), chat)
	for _, p := range g.Players() {
		m.release(p.ID, chat)
	}
	g.end()
	hooks := append([]EndHook(nil), m.hooks...)
	m.mu.Unlock()

	m.logger.Info("session ended",
		zap.Int64("chat_id", int64(chat)),
		zap.String("token", g.Token()),
	)
	for _, h := range hooks {
		h(g)
	}
	return g, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// Games returns all live sessions.
func (m *Manager) Games() []*Game {
	m.mu.RLock()
	defer m.mu.RUnlock()

	games := make([]*Game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	return games
}

func (m *Manager) boundElsewhere(player PlayerID, chat ChatID) bool {
	bound, ok := m.players[player]
	if !ok || bound == chat {
		return false
	}
	_, live := m.games[bound]
	return live
}

func (m *Manager) release(player PlayerID, chat ChatID) {
	if bound, ok := m.players[player]; ok && bound == chat {
		delete(m.players, player)
	}
}
