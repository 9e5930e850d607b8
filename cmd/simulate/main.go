// Command simulate plays one round among bot players in process and prints
// every move. It is a quick way to watch the engine converge.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/card"
	"github.com/chitti-game/chitti-server/internal/game"
)

var (
	players  = flag.Int("players", 4, "number of bot players")
	seed     = flag.Int64("seed", 1, "random seed")
	maxTurns = flag.Int("max-turns", 5000, "give up after this many passes")
	verbose  = flag.Bool("v", false, "print every pass")
)

const simChat game.ChatID = -1

// result is the outcome of one simulated round.
type result struct {
	Standings game.Standings
	Turns     int
	Players   []game.Player
}

// simulate plays a round with eager win claims. Bots keep their most common
// kind and pass the rarest one, with an occasional random pass to break
// cycles. Each event is handed to report. Some tables never converge, since a
// locked player's cards keep circulating; those return an incomplete result.
func simulate(n int, seed int64, maxTurns int, report func(format string, args ...any)) (result, error) {
	if n < 2 || n > game.MaxPlayers {
		return result{}, fmt.Errorf("players must be between 2 and %d", game.MaxPlayers)
	}
	m := game.NewManager(zap.NewNop(),
		game.WithRandFactory(game.SeededRandFactory(seed)),
		game.WithMinPlayers(n),
	)
	g, err := m.Create(1, simChat)
	if err != nil {
		return result{}, err
	}
	for i := 1; i <= n; i++ {
		if err := m.AddPlayer(simChat, game.PlayerID(i), "bot"+strconv.Itoa(i)); err != nil {
			return result{}, err
		}
	}
	if err := g.Start(); err != nil {
		return result{}, err
	}

	symbols := card.DefaultSymbols()
	rng := rand.New(rand.NewSource(seed))
	claimAll := func() {
		for _, p := range g.Players() {
			c, err := g.ClaimWin(p.ID)
			if err == nil && c.Won && !c.Already {
				report("%s completed a set, %d cards moved on", p.Name, len(c.Moved))
			}
			if c.Complete {
				return
			}
		}
	}
	claimAll()

	turns := 0
	for ; turns < maxTurns && !g.Complete(); turns++ {
		cur, ok := g.Current()
		if !ok {
			break
		}
		t, err := pass(g, cur.ID, rng)
		if err != nil {
			return result{}, fmt.Errorf("turn %d: %w", turns, err)
		}
		to, _ := g.Player(t.To)
		report("%s passed %s to %s", cur.Name, symbols.Of(t.Card), to.Name)
		claimAll()
		if err := g.CheckInvariants(); err != nil {
			return result{}, err
		}
	}

	res := result{Standings: g.Standings(), Turns: turns, Players: g.Players()}
	if _, err := m.End(simChat); err != nil {
		return result{}, err
	}
	return res, nil
}

func pass(g *game.Game, player game.PlayerID, rng *rand.Rand) (game.Transfer, error) {
	sel := g.SelectableCards(player)
	if len(sel) == 0 || rng.Intn(5) == 0 {
		return g.AutoPass(player)
	}
	var rarest []game.Selection
	for _, s := range sel {
		switch {
		case len(rarest) == 0 || s.Count < rarest[0].Count:
			rarest = []game.Selection{s}
		case s.Count == rarest[0].Count:
			rarest = append(rarest, s)
		}
	}
	choice := rarest[rng.Intn(len(rarest))]
	return g.PassCard(player, choice.Action.KindIndex)
}

func main() {
	flag.Parse()

	pterm.DefaultHeader.WithFullWidth().Println("Chitti round simulation")
	pterm.Info.Printfln("players=%d seed=%d", *players, *seed)

	report := func(format string, args ...any) {
		if *verbose {
			pterm.Println(pterm.Sprintf(format, args...))
		}
	}
	res, err := simulate(*players, *seed, *maxTurns, report)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	if !res.Standings.Complete {
		pterm.Warning.Printfln("Round did not finish within %d passes", *maxTurns)
	}

	rows := pterm.TableData{{"Place", "Player"}}
	for i, w := range res.Standings.Winners {
		rows = append(rows, []string{strconv.Itoa(i + 1), w.Name})
	}
	if res.Standings.HasLoser {
		rows = append(rows, []string{"last", res.Standings.Loser.Name})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	if res.Standings.Complete {
		pterm.Success.Printfln("Round finished after %d passes", res.Turns)
	}
}
