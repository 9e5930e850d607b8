// Package gateway is a websocket chat transport. It implements the server's
// Messenger and Directory so the bot can be played from any websocket client.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/game"
	"github.com/chitti-game/chitti-server/internal/server"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256

	pendingCallbacks = 4096
	callbackTTL      = time.Minute
)

var (
	ErrNotConnected = errors.New("user is not connected")
	ErrUnknownChat  = errors.New("unknown chat")
	ErrUnknownQuery = errors.New("unknown callback")
	ErrSlowClient   = errors.New("client send buffer full")
)

// Handler consumes chat updates. *server.Server implements it.
type Handler interface {
	HandleCommand(ctx context.Context, cmd server.Command)
	HandleCallback(ctx context.Context, cb server.Callback)
	HandleChatUpdate(ctx context.Context, u server.ChatUpdate)
}

// Config tunes the gateway.
type Config struct {
	ReadLimit      int64
	AllowedOrigins []string
	// OwnerID is an administrator of every chat.
	OwnerID game.PlayerID
}

type chatRoom struct {
	title   string
	admin   game.PlayerID
	members map[game.PlayerID]struct{}
}

// Gateway tracks websocket connections, chat membership and message ids.
type Gateway struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.RWMutex
	handler Handler
	conns   map[game.PlayerID]*Connection
	names   map[game.PlayerID]string
	started map[game.PlayerID]bool
	chats   map[game.ChatID]*chatRoom

	nextMessageID atomic.Int64
	callbacks     *expirable.LRU[string, game.PlayerID]
}

// New creates a gateway. Updates are dropped until a handler is set.
func New(cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 4096
	}
	g := &Gateway{
		cfg:       cfg,
		logger:    logger,
		conns:     make(map[game.PlayerID]*Connection),
		names:     make(map[game.PlayerID]string),
		started:   make(map[game.PlayerID]bool),
		chats:     make(map[game.ChatID]*chatRoom),
		callbacks: expirable.NewLRU[string, game.PlayerID](pendingCallbacks, nil, callbackTTL),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// SetHandler installs the update consumer.
func (g *Gateway) SetHandler(h Handler) {
	g.mu.Lock()
	g.handler = h
	g.mu.Unlock()
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(g.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeHTTP upgrades a client. The user is identified by the user_id and
// name query parameters; a new connection replaces the user's previous one.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "user_id must be a positive integer", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "user" + strconv.FormatInt(id, 10)
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		ID:      uuid.NewString(),
		UserID:  game.PlayerID(id),
		Name:    name,
		conn:    ws,
		send:    make(chan []byte, sendBuffer),
		gateway: g,
		ctx:     ctx,
		cancel:  cancel,
	}

	g.mu.Lock()
	old := g.conns[c.UserID]
	g.conns[c.UserID] = c
	g.names[c.UserID] = name
	total := len(g.conns)
	g.mu.Unlock()
	if old != nil {
		old.close()
	}

	g.logger.Info("client connected",
		zap.String("conn_id", c.ID),
		zap.Int64("player_id", id),
		zap.Int("connections", total),
	)

	go c.writePump()
	go c.readPump()
}

// Close disconnects every client.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.conns = make(map[game.PlayerID]*Connection)
	g.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

// Connections reports how many users are connected.
func (g *Gateway) Connections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	if g.conns[c.UserID] == c {
		delete(g.conns, c.UserID)
	}
	total := len(g.conns)
	g.mu.Unlock()
	g.logger.Info("client disconnected",
		zap.String("conn_id", c.ID),
		zap.Int64("player_id", int64(c.UserID)),
		zap.Int("connections", total),
	)
}

func (g *Gateway) currentHandler() Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.handler
}

// dispatch turns one client frame into an update.
func (g *Gateway) dispatch(c *Connection, in inbound) {
	switch in.Type {
	case frameJoinChat, frameLeaveChat:
		if in.ChatID >= 0 {
			c.sendError("group chat ids must be negative")
			return
		}
		g.membership(c, in)
		return
	case frameCommand, frameCallback:
	default:
		c.sendError("unknown frame type " + strconv.Quote(in.Type))
		return
	}

	chat, private, ok := g.resolveChat(c, in.ChatID)
	if !ok {
		c.sendError("join the chat first")
		return
	}
	h := g.currentHandler()
	if h == nil {
		return
	}
	from := server.User{ID: c.UserID, Name: c.Name, Username: c.Name}

	if in.Type == frameCommand {
		if private && strings.HasPrefix(strings.TrimSpace(in.Text), "/start") {
			g.mu.Lock()
			g.started[c.UserID] = true
			g.mu.Unlock()
		}
		h.HandleCommand(c.ctx, server.Command{
			ChatID:    chat,
			ChatTitle: g.chatTitle(chat),
			Private:   private,
			From:      from,
			Text:      in.Text,
		})
		return
	}

	id := in.CallbackID
	if id == "" {
		id = uuid.NewString()
	}
	g.callbacks.Add(id, c.UserID)
	h.HandleCallback(c.ctx, server.Callback{
		ID:      id,
		From:    from,
		Message: game.ButtonRef{ChatID: chat, MessageID: in.MessageID},
		Data:    in.Data,
	})
}

// resolveChat maps a frame's chat id to the platform chat. The private chat
// with the bot has the user's own id.
func (g *Gateway) resolveChat(c *Connection, raw int64) (game.ChatID, bool, bool) {
	if raw == 0 {
		return game.ChatID(c.UserID), true, true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.chats[game.ChatID(raw)]
	if !ok {
		return 0, false, false
	}
	_, member := room.members[c.UserID]
	return game.ChatID(raw), false, member
}

// membership applies a join or leave. The bot is in a group while the group
// has members: the first join adds it and the last leave removes it.
func (g *Gateway) membership(c *Connection, in inbound) {
	chat := game.ChatID(in.ChatID)
	var update *server.ChatUpdate
	if in.Type == frameJoinChat {
		if g.joinChat(chat, in.ChatTitle, c.UserID) {
			update = &server.ChatUpdate{ChatID: chat, Title: in.ChatTitle, Added: true}
		}
	} else {
		member, emptied := g.leaveChat(chat, c.UserID)
		if !member {
			c.sendError("not a member of this chat")
			return
		}
		if emptied {
			update = &server.ChatUpdate{ChatID: chat}
		}
	}
	if update == nil {
		return
	}
	if h := g.currentHandler(); h != nil {
		h.HandleChatUpdate(c.ctx, *update)
	}
}

// joinChat adds user to chat and reports whether the chat was created.
func (g *Gateway) joinChat(chat game.ChatID, title string, user game.PlayerID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.chats[chat]
	if !ok {
		room = &chatRoom{admin: user, members: make(map[game.PlayerID]struct{})}
		g.chats[chat] = room
	}
	if title != "" {
		room.title = title
	}
	room.members[user] = struct{}{}
	return !ok
}

// leaveChat removes user from chat. A departing admin hands over to the
// lowest remaining member id; an empty chat is forgotten.
func (g *Gateway) leaveChat(chat game.ChatID, user game.PlayerID) (member, emptied bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.chats[chat]
	if !ok {
		return false, false
	}
	if _, ok := room.members[user]; !ok {
		return false, false
	}
	delete(room.members, user)
	if len(room.members) == 0 {
		delete(g.chats, chat)
		return true, true
	}
	if room.admin == user {
		room.admin = 0
		for id := range room.members {
			if room.admin == 0 || id < room.admin {
				room.admin = id
			}
		}
	}
	return true, false
}

func (g *Gateway) chatTitle(chat game.ChatID) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if room, ok := g.chats[chat]; ok {
		return room.title
	}
	return ""
}

// deliver routes a frame to a DM (positive chat) or to every connected
// member of a group chat.
func (g *Gateway) deliver(chat game.ChatID, frame outbound) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if chat > 0 {
		g.mu.RLock()
		c := g.conns[game.PlayerID(chat)]
		g.mu.RUnlock()
		if c == nil {
			return ErrNotConnected
		}
		return c.push(data)
	}

	g.mu.RLock()
	room, ok := g.chats[chat]
	var targets []*Connection
	if ok {
		for id := range room.members {
			if c := g.conns[id]; c != nil {
				targets = append(targets, c)
			}
		}
	}
	g.mu.RUnlock()
	if !ok {
		return ErrUnknownChat
	}
	for _, c := range targets {
		if err := c.push(data); err != nil {
			g.logger.Debug("dropped group frame", zap.Int64("player_id", int64(c.UserID)), zap.Error(err))
		}
	}
	return nil
}

func wireChat(chat game.ChatID) int64 {
	if chat > 0 {
		return 0
	}
	return int64(chat)
}

// SendMessage implements server.Messenger.
func (g *Gateway) SendMessage(_ context.Context, chat game.ChatID, text string, kb server.Keyboard) (game.ButtonRef, error) {
	id := g.nextMessageID.Add(1)
	err := g.deliver(chat, outbound{
		Type:      frameMessage,
		ChatID:    wireChat(chat),
		MessageID: id,
		Text:      text,
		Buttons:   kb,
	})
	if err != nil {
		return game.ButtonRef{}, err
	}
	return game.ButtonRef{ChatID: chat, MessageID: id}, nil
}

// SendDirect implements server.Messenger.
func (g *Gateway) SendDirect(ctx context.Context, user game.PlayerID, text string, kb server.Keyboard) (game.ButtonRef, error) {
	return g.SendMessage(ctx, game.ChatID(user), text, kb)
}

// EditMessage implements server.Messenger.
func (g *Gateway) EditMessage(_ context.Context, ref game.ButtonRef, text string, kb server.Keyboard) error {
	chat := ref.ChatID
	return g.deliver(chat, outbound{
		Type:      frameEdit,
		ChatID:    wireChat(chat),
		MessageID: ref.MessageID,
		Text:      text,
		Buttons:   kb,
	})
}

// AnswerCallback implements server.Messenger.
func (g *Gateway) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	user, ok := g.callbacks.Get(callbackID)
	if !ok {
		return ErrUnknownQuery
	}
	g.callbacks.Remove(callbackID)
	return g.deliver(game.ChatID(user), outbound{
		Type:       frameAnswer,
		CallbackID: callbackID,
		Text:       text,
		Alert:      alert,
	})
}

// Mention implements server.Directory.
func (g *Gateway) Mention(_ context.Context, user game.PlayerID, name string) string {
	if name != "" {
		return name
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if known, ok := g.names[user]; ok {
		return known
	}
	return "user" + strconv.FormatInt(int64(user), 10)
}

// CanDirectMessage implements server.Directory: the user is connected and has
// started the bot privately.
func (g *Gateway) CanDirectMessage(_ context.Context, user game.PlayerID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, connected := g.conns[user]
	return connected && g.started[user]
}

// IsChatAdmin implements server.Directory. The first member of a chat is its
// admin.
func (g *Gateway) IsChatAdmin(_ context.Context, chat game.ChatID, user game.PlayerID) bool {
	if g.cfg.OwnerID != 0 && user == g.cfg.OwnerID {
		return true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.chats[chat]
	return ok && room.admin == user
}

var (
	_ server.Messenger = (*Gateway)(nil)
	_ server.Directory = (*Gateway)(nil)
)
