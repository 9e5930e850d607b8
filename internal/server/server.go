// Package server is the chat shell around the session engine: it turns chat
// commands and button presses into game operations and renders the results
// through a Messenger.
package server

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/card"
	"github.com/chitti-game/chitti-server/internal/game"
	"github.com/chitti-game/chitti-server/internal/repository"
	"github.com/chitti-game/chitti-server/internal/vote"
)

// Button is one inline button. Data is returned in the Callback when pressed.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Keyboard is a grid of buttons, row by row.
type Keyboard [][]Button

// Messenger delivers messages on the chat platform. A direct message lives in
// the private chat whose id equals the user id.
type Messenger interface {
	SendMessage(ctx context.Context, chat game.ChatID, text string, kb Keyboard) (game.ButtonRef, error)
	SendDirect(ctx context.Context, user game.PlayerID, text string, kb Keyboard) (game.ButtonRef, error)
	EditMessage(ctx context.Context, ref game.ButtonRef, text string, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Directory answers questions about users and chats.
type Directory interface {
	// Mention renders a user reference, falling back to name.
	Mention(ctx context.Context, user game.PlayerID, name string) string
	CanDirectMessage(ctx context.Context, user game.PlayerID) bool
	IsChatAdmin(ctx context.Context, chat game.ChatID, user game.PlayerID) bool
}

// User is the sender of an update.
type User struct {
	ID       game.PlayerID
	Name     string
	Username string
}

// Command is a slash command typed in a chat.
type Command struct {
	ChatID    game.ChatID
	ChatTitle string
	Private   bool
	From      User
	Text      string
}

// ChatUpdate reports the bot being added to or removed from a group chat.
type ChatUpdate struct {
	ChatID game.ChatID
	Title  string
	Added  bool
}

// Callback is a button press.
type Callback struct {
	ID      string
	From    User
	Message game.ButtonRef
	Data    string
}

// Config tunes the shell.
type Config struct {
	Symbols         card.Symbols
	CommandCooldown time.Duration
	DMCacheTTL      time.Duration
	DMCacheSize     int
	BotName         string
}

// Server dispatches chat updates to game operations.
type Server struct {
	games   *game.Manager
	votes   *vote.Boxes
	store   repository.Store
	msg     Messenger
	dir     Directory
	symbols card.Symbols
	botName string

	cooldown *cooldowns
	dmCache  *dmCache
	logger   *zap.Logger
}

// New wires a shell. The vote boxes are registered as an end hook so a box
// never outlives its session.
func New(games *game.Manager, votes *vote.Boxes, store repository.Store, msg Messenger, dir Directory, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BotName == "" {
		cfg.BotName = "Chitti"
	}
	games.OnEnd(votes.SessionEnded)
	return &Server{
		games:    games,
		votes:    votes,
		store:    store,
		msg:      msg,
		dir:      dir,
		symbols:  cfg.Symbols,
		botName:  cfg.BotName,
		cooldown: newCooldowns(cfg.CommandCooldown),
		dmCache:  newDMCache(dir, cfg.DMCacheSize, cfg.DMCacheTTL),
		logger:   logger,
	}
}

// HandleCommand runs one slash command. Unknown commands are ignored.
func (s *Server) HandleCommand(ctx context.Context, cmd Command) {
	name := commandName(cmd.Text)
	handler, ok := commandHandlers[name]
	if !ok {
		return
	}
	if !s.cooldown.allow(cmd.From.ID) {
		s.reply(ctx, cmd, waitText(s.cooldown.every))
		return
	}
	s.logger.Debug("command",
		zap.String("command", name),
		zap.Int64("chat_id", int64(cmd.ChatID)),
		zap.Int64("player_id", int64(cmd.From.ID)),
	)
	handler(s, ctx, cmd)
}

// HandleCallback runs one button press.
func (s *Server) HandleCallback(ctx context.Context, cb Callback) {
	switch {
	case game.IsActionRef(cb.Data):
		s.handlePass(ctx, cb)
	case strings.HasPrefix(cb.Data, voteData):
		s.handleVote(ctx, cb)
	case cb.Data == rulesData:
		s.answer(ctx, cb, "", false)
		s.edit(ctx, cb.Message, rulesText(), backKeyboard("🔙 Back to Main"))
	case cb.Data == createInfoData:
		s.answer(ctx, cb, "", false)
		s.edit(ctx, cb.Message, createInfoText(game.MinPlayers, game.MaxPlayers), backKeyboard("🔙 Back"))
	case cb.Data == backData:
		s.answer(ctx, cb, "", false)
		s.handleBack(ctx, cb)
	default:
		s.answer(ctx, cb, invalidButtonText, true)
	}
}

// HandleChatUpdate keeps the chat directory in step with the groups the bot is
// in. Removal from a group also ends the session running there.
func (s *Server) HandleChatUpdate(ctx context.Context, u ChatUpdate) {
	if u.Added {
		if err := s.store.AddChat(ctx, int64(u.ChatID), u.Title); err != nil {
			s.logger.Warn("failed to record chat", zap.Int64("chat_id", int64(u.ChatID)), zap.Error(err))
			return
		}
		s.logger.Info("added to chat", zap.Int64("chat_id", int64(u.ChatID)), zap.String("title", u.Title))
		return
	}

	if err := s.store.RemoveChat(ctx, int64(u.ChatID)); err != nil {
		s.logger.Warn("failed to remove chat", zap.Int64("chat_id", int64(u.ChatID)), zap.Error(err))
	}
	if g, ok := s.games.Get(u.ChatID); ok && s.closeSession(ctx, u.ChatID, g.Token()) {
		for _, p := range g.Players() {
			s.direct(ctx, p.ID, chatGoneDMText, nil)
		}
	}
	s.logger.Info("removed from chat", zap.Int64("chat_id", int64(u.ChatID)))
}

// commandName extracts "game" from "/game@ChittiBot extra".
func commandName(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func (s *Server) reply(ctx context.Context, cmd Command, text string) {
	if cmd.Private {
		s.direct(ctx, cmd.From.ID, text, nil)
		return
	}
	s.send(ctx, cmd.ChatID, text, nil)
}

func (s *Server) send(ctx context.Context, chat game.ChatID, text string, kb Keyboard) (game.ButtonRef, bool) {
	ref, err := s.msg.SendMessage(ctx, chat, text, kb)
	if err != nil {
		s.logger.Warn("send message failed", zap.Int64("chat_id", int64(chat)), zap.Error(err))
		return game.ButtonRef{}, false
	}
	return ref, true
}

func (s *Server) direct(ctx context.Context, user game.PlayerID, text string, kb Keyboard) (game.ButtonRef, error) {
	ref, err := s.msg.SendDirect(ctx, user, text, kb)
	if err != nil {
		s.logger.Debug("direct message failed", zap.Int64("player_id", int64(user)), zap.Error(err))
	}
	return ref, err
}

func (s *Server) edit(ctx context.Context, ref game.ButtonRef, text string, kb Keyboard) {
	if err := s.msg.EditMessage(ctx, ref, text, kb); err != nil {
		s.logger.Debug("edit message failed",
			zap.Int64("chat_id", int64(ref.ChatID)),
			zap.Int64("message_id", ref.MessageID),
			zap.Error(err),
		)
	}
}

func (s *Server) answer(ctx context.Context, cb Callback, text string, alert bool) {
	if err := s.msg.AnswerCallback(ctx, cb.ID, text, alert); err != nil {
		s.logger.Debug("answer callback failed", zap.String("callback_id", cb.ID), zap.Error(err))
	}
}

func (s *Server) mention(ctx context.Context, p game.Player) string {
	return s.dir.Mention(ctx, p.ID, p.Name)
}

// checkInvariants surfaces internal consistency failures to operators only.
func (s *Server) checkInvariants(g *game.Game) {
	if err := g.CheckInvariants(); err != nil {
		s.logger.Error("session invariant violated",
			zap.Int64("chat_id", int64(g.ChatID())),
			zap.String("token", g.Token()),
			zap.Error(err),
		)
	}
}
