package server

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/game"
	"github.com/chitti-game/chitti-server/internal/vote"
)

func (s *Server) handlePass(ctx context.Context, cb Callback) {
	action, err := game.ParseActionRef(cb.Data)
	if err != nil {
		s.answer(ctx, cb, invalidButtonText, true)
		return
	}
	g, ok := s.games.GetByPlayer(cb.From.ID)
	if !ok {
		s.answer(ctx, cb, sessionMissingText, true)
		return
	}
	if !g.IsValidToken(action.Token) {
		s.answer(ctx, cb, errorText(game.ErrStaleToken, 0), true)
		s.edit(ctx, cb.Message, staleButtonText, nil)
		return
	}

	t, err := g.PassCard(cb.From.ID, action.KindIndex)
	if err != nil {
		if game.IsInvariant(err) {
			s.logger.Error("pass failed", zap.Int64("chat_id", int64(g.ChatID())), zap.Error(err))
		}
		s.answer(ctx, cb, errorText(err, g.MinPlayers()), true)
		return
	}
	s.answer(ctx, cb, "", false)
	g.UntrackButton(cb.Message)

	to, _ := g.Player(t.To)
	s.edit(ctx, cb.Message, "🎮 You passed "+s.symbols.Of(t.Card)+" to "+s.mention(ctx, to), nil)
	s.checkInvariants(g)
	s.nextTurn(ctx, g)
}

func (s *Server) handleVote(ctx context.Context, cb Callback) {
	token, ok := strings.CutPrefix(cb.Data, voteData+"_")
	if !ok || len(token) != game.TokenLength {
		s.answer(ctx, cb, invalidButtonText, true)
		return
	}
	chat := cb.Message.ChatID
	g, ok := s.games.Get(chat)
	if !ok || !g.IsValidToken(token) {
		s.answer(ctx, cb, errorText(game.ErrStaleToken, 0), true)
		s.edit(ctx, cb.Message, staleButtonText, nil)
		return
	}

	privileged := cb.From.ID == g.Host() || s.dir.IsChatAdmin(ctx, chat, cb.From.ID)
	res, err := s.votes.Toggle(chat, token, cb.From.ID, privileged)
	if errors.Is(err, vote.ErrPrivileged) {
		s.answer(ctx, cb, "You can end the game directly with /stop", true)
		return
	}
	if err != nil {
		s.answer(ctx, cb, genericErrorText, true)
		return
	}
	if cur, live := s.games.Get(chat); !live || !cur.IsValidToken(token) {
		// The session ended while the vote was being cast.
		s.votes.Discard(chat, token)
		s.answer(ctx, cb, errorText(game.ErrStaleToken, 0), true)
		s.edit(ctx, cb.Message, staleButtonText, nil)
		return
	}
	if res.Voted {
		s.answer(ctx, cb, "✅ Vote recorded", false)
	} else {
		s.answer(ctx, cb, "↩️ Vote removed", false)
	}

	if !res.Reached {
		s.edit(ctx, cb.Message, voteText(res.Count, res.Quorum), voteKeyboard(token, res.Count, res.Quorum))
		return
	}
	g.UntrackButton(cb.Message)
	if s.closeSession(ctx, chat, token) {
		s.logger.Info("session ended by vote", zap.Int64("chat_id", int64(chat)), zap.String("token", token))
		s.edit(ctx, cb.Message, "🎮 Game ended by majority vote!", nil)
	}
}
