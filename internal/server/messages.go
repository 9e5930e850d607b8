package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chitti-game/chitti-server/internal/card"
	"github.com/chitti-game/chitti-server/internal/game"
)

const (
	voteData       = "vote_end"
	rulesData      = "game_rules"
	createInfoData = "create_game_info"
	backData       = "back_to_start"

	invalidButtonText  = "❌ Invalid button data!"
	sessionMissingText = "⌛ Game session not found."
	staleButtonText    = "🚫 This button is from a previous game session and is no longer valid."
	buttonsEndedText   = "🎮 Game session ended. Buttons disabled."
	gameOverDMText     = "🎉 Game Over! Thanks for playing."
	genericErrorText   = "⚠️ Something went wrong. Please try again."
	chatGoneDMText     = "🎮 The game ended because I was removed from the group."
)

// errorText maps engine failures to the text shown to players.
func errorText(err error, minPlayers int) string {
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return "Not your turn!"
	case errors.Is(err, game.ErrAlreadyLocked):
		return "You've already won!"
	case errors.Is(err, game.ErrInvalidCardIndex):
		return "Invalid card"
	case errors.Is(err, game.ErrCardNotHeld):
		return "You don't have this card"
	case errors.Is(err, game.ErrReceiverLocked):
		return "Next player already won!"
	case errors.Is(err, game.ErrStaleToken):
		return "❌ This button is from an old game session!"
	case errors.Is(err, game.ErrNotActive):
		return "⌛ Game hasn't started yet!"
	case errors.Is(err, game.ErrAlreadyJoined):
		return "⚠️ You're already in this game."
	case errors.Is(err, game.ErrFull):
		return fmt.Sprintf("⚠️ Game is full! (Max %d players)", game.MaxPlayers)
	case errors.Is(err, game.ErrAlreadyStarted):
		return "⚠️ Game already started!"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return fmt.Sprintf("👥 Need at least %d players to start!", minPlayers)
	case errors.Is(err, game.ErrPlayerBusy):
		return "⚠️ You're already playing in another group! Finish that game first."
	case errors.Is(err, game.ErrSessionExists):
		return "⚠️ A game is already in progress!"
	case errors.Is(err, game.ErrNoActiveSession):
		return "⚠️ No game found in this group."
	case errors.Is(err, game.ErrNotInSession):
		return "❌ You're not in any active game!"
	case errors.Is(err, game.ErrNoCard), errors.Is(err, game.ErrNoReceiver):
		return "⚠️ There is no card to pass right now."
	default:
		return genericErrorText
	}
}

func waitText(every time.Duration) string {
	return fmt.Sprintf("⚠️ Please wait %s between commands", every)
}

func greetPrivateText(mention, bot string) string {
	return fmt.Sprintf("Hey %s 💫\n\nWelcome to %s, your companion for group card games! 🃏\n\n"+
		"Collect a full set of matching emoji cards before everyone else. "+
		"Add me to a group and use /game to start.", mention, bot)
}

func greetGroupText(mention string) string {
	return fmt.Sprintf("Hey %s, I'm here to bring excitement to your group! 🎉\nUse /game to create a game.", mention)
}

func privateMenu() Keyboard {
	return Keyboard{{{Text: "📚 Game Rules", Data: rulesData}}}
}

func groupMenu() Keyboard {
	return Keyboard{
		{{Text: "📚 How to Play", Data: rulesData}},
		{{Text: "🎮 Create Game", Data: createInfoData}},
	}
}

func backKeyboard(label string) Keyboard {
	return Keyboard{{{Text: label, Data: backData}}}
}

func createInfoText(minPlayers, maxPlayers int) string {
	return strings.Join([]string{
		"🎮 Creating a Game",
		"",
		"1. Type /game in this group to create a new game session.",
		fmt.Sprintf("2. Other members use /join to participate (%d-%d players).", minPlayers, maxPlayers),
		"3. The game creator uses /begin to start the match.",
		"4. Cards arrive in your DMs; take turns passing them on.",
		"",
		"⚠️ All players must start the bot first, and you can only play in one group at a time.",
	}, "\n")
}

func rulesText() string {
	return strings.Join([]string{
		"🎮 Game Rules",
		"",
		"🎯 Collect all cards of one emoji type.",
		"",
		fmt.Sprintf("• %d-%d players; each gets N cards where N is the player count.", game.MinPlayers, game.MaxPlayers),
		"• Host creates with /game, players /join, host starts with /begin.",
		"• On your turn pick ONE card to pass to the next player.",
		"• When your hand matches, send /lock to me privately.",
		"• The round ends when only one player is left without a set.",
		"• /stop ends the game (host or admin, or 3 votes).",
	}, "\n")
}

func createdText(mention, token string, minPlayers int) string {
	return fmt.Sprintf("🎮 New game created by %s! (Game ID: %s)\nPlayers can join with /join\n"+
		"Game requires %d–%d players.\nHost can use /begin to start.", mention, token, minPlayers, game.MaxPlayers)
}

func joinedText(mention string, joined, minPlayers int) string {
	return fmt.Sprintf("🎮 %s joined!\n👥 Players: %d/%d joined (need minimum %d)", mention, joined, game.MaxPlayers, minPlayers)
}

func playerListText(players []game.Player) string {
	if len(players) == 0 {
		return "No players yet"
	}
	lines := make([]string, len(players))
	for i, p := range players {
		lines[i] = fmt.Sprintf("%d. %s", i+1, p.Name)
	}
	return strings.Join(lines, "\n")
}

func unreachableText(mentions []string) string {
	var b strings.Builder
	b.WriteString("⚠️ The following players need to start the bot privately:\n")
	for _, m := range mentions {
		b.WriteString("\n• ")
		b.WriteString(m)
	}
	return b.String()
}

func turnText(mention string) string {
	return fmt.Sprintf("🎮 %s's turn! Choose a card to pass.", mention)
}

func waitTurnText(mentions []string) string {
	return "⏳ Your turn comes after: " + strings.Join(mentions, ", ")
}

func standingsText(winners []string, loser string) string {
	var b strings.Builder
	b.WriteString("🎉 Game Over!\n🏆 Winners:")
	for _, w := range winners {
		b.WriteString("\n• ")
		b.WriteString(w)
	}
	fmt.Fprintf(&b, "\n\n%s was the last without a set.", loser)
	return b.String()
}

func voteText(count, quorum int) string {
	need := quorum - count
	if need < 0 {
		need = 0
	}
	return fmt.Sprintf("🎮 End Game Voting\n\nCurrent votes: %d/%d\n%d more votes needed to end the game.", count, quorum, need)
}

func voteKeyboard(token string, count, quorum int) Keyboard {
	return Keyboard{{{
		Text: fmt.Sprintf("🗳️ Vote to End (%d/%d)", count, quorum),
		Data: voteData + "_" + token,
	}}}
}

// cardKeyboard lays out the selectable cards two per row.
func cardKeyboard(symbols card.Symbols, sel []game.Selection) Keyboard {
	var kb Keyboard
	var row []Button
	for i, s := range sel {
		row = append(row, Button{
			Text: fmt.Sprintf("%s ×%d", symbols.Of(s.Kind), s.Count),
			Data: s.Action.Encode(),
		})
		if len(row) == 2 || i == len(sel)-1 {
			kb = append(kb, row)
			row = nil
		}
	}
	return kb
}
