package server

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/game"
)

// nextTurn announces and prompts whoever acts now, or ends the round.
func (s *Server) nextTurn(ctx context.Context, g *game.Game) {
	if g.Complete() {
		s.finishRound(ctx, g)
		return
	}
	cur, ok := g.Current()
	if !ok {
		return
	}
	s.send(ctx, g.ChatID(), turnText(s.mention(ctx, cur)), nil)
	s.promptTurn(ctx, g, cur, "🎮 Your turn! Select a card to pass.")
}

// promptTurn sends p their card buttons. Players who cannot be reached are
// auto-passed for, repeatedly, until a reachable player is prompted or the
// round ends. The loop is bounded by twice the table size.
func (s *Server) promptTurn(ctx context.Context, g *game.Game, p game.Player, header string) {
	limit := 2 * len(g.Players())
	for i := 0; i < limit; i++ {
		if s.deliverCards(ctx, g, p, header) {
			return
		}

		t, err := g.AutoPass(p.ID)
		if err != nil {
			s.logger.Warn("auto-pass failed",
				zap.Int64("chat_id", int64(g.ChatID())),
				zap.Int64("player_id", int64(p.ID)),
				zap.Error(err),
			)
			return
		}
		to, _ := g.Player(t.To)
		s.send(ctx, g.ChatID(), "⚠️ "+s.mention(ctx, p)+" couldn't be reached. Auto-passed card to "+s.mention(ctx, to), nil)
		s.checkInvariants(g)

		if g.Complete() {
			s.finishRound(ctx, g)
			return
		}
		next, ok := g.Current()
		if !ok {
			return
		}
		s.send(ctx, g.ChatID(), turnText(s.mention(ctx, next)), nil)
		p, header = next, "🎮 Your turn! Select a card to pass."
	}
	s.logger.Warn("auto-pass limit reached", zap.Int64("chat_id", int64(g.ChatID())), zap.String("token", g.Token()))
}

// deliverCards sends the hand and its pass buttons to p. It reports false
// when p cannot receive direct messages.
func (s *Server) deliverCards(ctx context.Context, g *game.Game, p game.Player, header string) bool {
	sel := g.SelectableCards(p.ID)
	if len(sel) == 0 {
		return false
	}
	if !s.dmCache.canDM(ctx, p.ID) {
		return false
	}
	ref, err := s.direct(ctx, p.ID, header+"\n\n"+s.handText(g, p.ID), cardKeyboard(s.symbols, sel))
	if err != nil {
		return false
	}
	g.TrackButton(ref)
	return true
}

func (s *Server) handText(g *game.Game, p game.PlayerID) string {
	var b strings.Builder
	b.WriteString("🎴 Your cards: ")
	for _, k := range g.Hand(p).Sorted() {
		b.WriteString(s.symbols.Of(k))
	}
	return b.String()
}

// finishRound posts the standings and closes the session.
func (s *Server) finishRound(ctx context.Context, g *game.Game) {
	standings := g.Standings()
	if !s.closeSession(ctx, g.ChatID(), g.Token()) {
		return
	}
	s.logger.Info("round complete",
		zap.Int64("chat_id", int64(g.ChatID())),
		zap.String("token", g.Token()),
		zap.Int("winners", len(standings.Winners)),
	)

	for _, p := range g.Players() {
		s.direct(ctx, p.ID, gameOverDMText, nil)
	}
	winners := make([]string, len(standings.Winners))
	for i, w := range standings.Winners {
		winners[i] = s.mention(ctx, w)
	}
	loser := "Nobody"
	if standings.HasLoser {
		loser = s.mention(ctx, standings.Loser)
	}
	s.send(ctx, g.ChatID(), standingsText(winners, loser), nil)
}
