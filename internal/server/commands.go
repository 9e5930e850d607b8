package server

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/game"
)

type commandHandler func(s *Server, ctx context.Context, cmd Command)

var commandHandlers = map[string]commandHandler{
	"start":   (*Server).cmdStart,
	"game":    (*Server).cmdGame,
	"join":    (*Server).cmdJoin,
	"begin":   (*Server).cmdBegin,
	"lock":    (*Server).cmdLock,
	"stop":    (*Server).cmdStop,
	"players": (*Server).cmdPlayers,
	"rules":   (*Server).cmdRules,
	"help":    (*Server).cmdRules,
}

func (s *Server) cmdStart(ctx context.Context, cmd Command) {
	mention := s.dir.Mention(ctx, cmd.From.ID, cmd.From.Name)
	if cmd.Private {
		if err := s.store.AddUser(ctx, int64(cmd.From.ID), cmd.From.Username); err != nil {
			s.logger.Warn("failed to record user", zap.Int64("player_id", int64(cmd.From.ID)), zap.Error(err))
		}
		s.direct(ctx, cmd.From.ID, greetPrivateText(mention, s.botName), privateMenu())
		return
	}
	if err := s.store.AddChat(ctx, int64(cmd.ChatID), cmd.ChatTitle); err != nil {
		s.logger.Warn("failed to record chat", zap.Int64("chat_id", int64(cmd.ChatID)), zap.Error(err))
	}
	s.send(ctx, cmd.ChatID, greetGroupText(mention), groupMenu())
}

// handleBack restores the /start greeting on a menu message.
func (s *Server) handleBack(ctx context.Context, cb Callback) {
	mention := s.dir.Mention(ctx, cb.From.ID, cb.From.Name)
	if cb.Message.ChatID == game.ChatID(cb.From.ID) {
		s.edit(ctx, cb.Message, greetPrivateText(mention, s.botName), privateMenu())
		return
	}
	s.edit(ctx, cb.Message, greetGroupText(mention), groupMenu())
}

func (s *Server) cmdGame(ctx context.Context, cmd Command) {
	if cmd.Private {
		s.reply(ctx, cmd, "Please use this command in a group chat.")
		return
	}
	g, err := s.games.Create(cmd.From.ID, cmd.ChatID)
	if err != nil {
		s.logBusy(err, cmd)
		s.reply(ctx, cmd, errorText(err, 0))
		return
	}
	mention := s.dir.Mention(ctx, cmd.From.ID, cmd.From.Name)
	s.send(ctx, cmd.ChatID, createdText(mention, g.Token(), g.MinPlayers()), nil)
}

func (s *Server) cmdJoin(ctx context.Context, cmd Command) {
	if cmd.Private {
		s.reply(ctx, cmd, "Please use this command in a group chat.")
		return
	}
	g, ok := s.games.Get(cmd.ChatID)
	if !ok {
		s.reply(ctx, cmd, errorText(game.ErrNoActiveSession, 0))
		return
	}
	if err := s.games.AddPlayer(cmd.ChatID, cmd.From.ID, cmd.From.Name); err != nil {
		s.logBusy(err, cmd)
		s.reply(ctx, cmd, errorText(err, g.MinPlayers()))
		return
	}
	mention := s.dir.Mention(ctx, cmd.From.ID, cmd.From.Name)
	s.send(ctx, cmd.ChatID, joinedText(mention, len(g.Players()), g.MinPlayers()), nil)
}

func (s *Server) logBusy(err error, cmd Command) {
	if !errors.Is(err, game.ErrPlayerBusy) {
		return
	}
	if bound, ok := s.games.ActiveChat(cmd.From.ID); ok {
		s.logger.Info("player busy in another chat",
			zap.Int64("player_id", int64(cmd.From.ID)),
			zap.Int64("chat_id", int64(cmd.ChatID)),
			zap.Int64("bound_chat_id", int64(bound)),
		)
	}
}

func (s *Server) cmdBegin(ctx context.Context, cmd Command) {
	if cmd.Private {
		s.reply(ctx, cmd, "Please use this command in a group chat.")
		return
	}
	g, ok := s.games.Get(cmd.ChatID)
	if !ok {
		s.reply(ctx, cmd, errorText(game.ErrNoActiveSession, 0))
		return
	}
	if cmd.From.ID != g.Host() {
		s.reply(ctx, cmd, "🔒 Only the host can start the game.")
		return
	}
	if g.Started() {
		s.reply(ctx, cmd, errorText(game.ErrAlreadyStarted, 0))
		return
	}
	players := g.Players()
	if len(players) < g.MinPlayers() {
		s.reply(ctx, cmd, errorText(game.ErrNotEnoughPlayers, g.MinPlayers()))
		return
	}

	var unreachable []string
	for _, p := range players {
		if !s.dmCache.canDM(ctx, p.ID) {
			unreachable = append(unreachable, s.mention(ctx, p))
		}
	}
	if len(unreachable) > 0 {
		s.send(ctx, cmd.ChatID, unreachableText(unreachable), nil)
		return
	}

	if err := g.Start(); err != nil {
		s.reply(ctx, cmd, errorText(err, g.MinPlayers()))
		return
	}
	s.logger.Info("session started",
		zap.Int64("chat_id", int64(cmd.ChatID)),
		zap.String("token", g.Token()),
		zap.Int("players", len(players)),
	)
	s.send(ctx, cmd.ChatID, "🎮 Game started! Check your DMs for your cards.", nil)

	first, ok := g.Current()
	if !ok {
		return
	}
	s.send(ctx, cmd.ChatID, turnText(s.mention(ctx, first)), nil)
	s.promptTurn(ctx, g, first, "🎮 You're first! Select a card to pass.")

	for _, p := range players {
		if p.ID == first.ID {
			continue
		}
		before := g.TurnsBefore(p.ID)
		if len(before) == 0 {
			continue
		}
		mentions := make([]string, len(before))
		for i, b := range before {
			mentions[i] = s.mention(ctx, b)
		}
		s.direct(ctx, p.ID, waitTurnText(mentions), nil)
	}
}

func (s *Server) cmdLock(ctx context.Context, cmd Command) {
	if !cmd.Private {
		s.reply(ctx, cmd, "Send /lock to me in a private chat.")
		return
	}
	g, ok := s.games.GetByPlayer(cmd.From.ID)
	if !ok || !g.IsMember(cmd.From.ID) {
		s.reply(ctx, cmd, errorText(game.ErrNotInSession, 0))
		return
	}

	claim, err := g.ClaimWin(cmd.From.ID)
	if err != nil {
		s.reply(ctx, cmd, errorText(err, g.MinPlayers()))
		return
	}
	switch {
	case !claim.Won:
		s.reply(ctx, cmd, "You don't have matching cards yet!")
		return
	case claim.Already:
		s.reply(ctx, cmd, "You've already completed your set!")
		return
	}
	s.checkInvariants(g)

	player, _ := g.Player(cmd.From.ID)
	mention := s.mention(ctx, player)
	s.logger.Info("player locked",
		zap.Int64("chat_id", int64(g.ChatID())),
		zap.Int64("player_id", int64(player.ID)),
		zap.String("token", g.Token()),
		zap.Int("moved_cards", len(claim.Moved)),
	)
	s.reply(ctx, cmd, "🎮 You completed your set and are now out!")
	s.send(ctx, g.ChatID(), "🏆 "+mention+" has completed their set!", nil)

	if claim.Complete {
		s.finishRound(ctx, g)
		return
	}
	if claim.HasCurrent {
		s.send(ctx, g.ChatID(), "🎮 "+s.mention(ctx, claim.Current)+"'s turn now!", nil)
		s.promptTurn(ctx, g, claim.Current, "🎮 Select a card to pass to the next player.")
	}
}

func (s *Server) cmdStop(ctx context.Context, cmd Command) {
	if cmd.Private {
		s.reply(ctx, cmd, "Please use this command in a group chat.")
		return
	}
	g, ok := s.games.Get(cmd.ChatID)
	if !ok {
		s.reply(ctx, cmd, "⚠️ No active game to end!")
		return
	}

	if cmd.From.ID == g.Host() || s.dir.IsChatAdmin(ctx, cmd.ChatID, cmd.From.ID) {
		by := "admin"
		if cmd.From.ID == g.Host() {
			by = "host"
		}
		if s.closeSession(ctx, cmd.ChatID, g.Token()) {
			s.send(ctx, cmd.ChatID, "🎮 Game ended by "+by+"!", nil)
		}
		return
	}

	count := s.votes.Count(cmd.ChatID, g.Token())
	ref, sent := s.send(ctx, cmd.ChatID, voteText(count, s.votes.Quorum()), voteKeyboard(g.Token(), count, s.votes.Quorum()))
	if sent {
		g.TrackButton(ref)
	}
}

func (s *Server) cmdPlayers(ctx context.Context, cmd Command) {
	var g *game.Game
	var ok bool
	if cmd.Private {
		g, ok = s.games.GetByPlayer(cmd.From.ID)
	} else {
		g, ok = s.games.Get(cmd.ChatID)
	}
	if !ok {
		s.reply(ctx, cmd, errorText(game.ErrNoActiveSession, 0))
		return
	}
	s.reply(ctx, cmd, "👥 Players:\n"+playerListText(g.Players()))
}

func (s *Server) cmdRules(ctx context.Context, cmd Command) {
	s.reply(ctx, cmd, rulesText())
}

// closeSession ends the chat's session if it still carries token and disables
// every button it issued. It reports whether this call ended it.
func (s *Server) closeSession(ctx context.Context, chat game.ChatID, token string) bool {
	g, ok := s.games.Get(chat)
	if !ok || !g.IsValidToken(token) {
		return false
	}
	if _, err := s.games.End(chat); err != nil {
		if !errors.Is(err, game.ErrNoActiveSession) {
			s.logger.Warn("end session failed", zap.Int64("chat_id", int64(chat)), zap.Error(err))
		}
		return false
	}
	for _, ref := range g.DrainButtons() {
		s.edit(ctx, ref, buttonsEndedText, nil)
	}
	s.logger.Debug("session history",
		zap.Int64("chat_id", int64(chat)),
		zap.String("token", token),
		zap.Stringers("events", g.History()),
	)
	return true
}
