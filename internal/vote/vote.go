// Package vote tracks per-chat votes to end a session early.
package vote

import (
	"errors"
	"sync"

	"github.com/chitti-game/chitti-server/internal/game"
)

// DefaultQuorum is the number of distinct voters that ends a session.
const DefaultQuorum = 3

// ErrPrivileged is returned when a host or chat admin tries to vote. They end
// sessions directly instead.
var ErrPrivileged = errors.New("privileged actor cannot vote")

// Result reports the state of a ballot box after a toggle.
type Result struct {
	// Voted is true when the toggle added the voter and false when it
	// removed them.
	Voted   bool
	Count   int
	Quorum  int
	Reached bool
}

type box struct {
	token  string
	voters map[game.PlayerID]struct{}
}

// Boxes holds one ballot box per chat. A box belongs to one session token and
// never carries votes over to another session in the same chat.
type Boxes struct {
	quorum int

	mu    sync.Mutex
	boxes map[game.ChatID]*box
}

// New returns an empty set of boxes. A non-positive quorum uses
// DefaultQuorum.
func New(quorum int) *Boxes {
	if quorum <= 0 {
		quorum = DefaultQuorum
	}
	return &Boxes{
		quorum: quorum,
		boxes:  make(map[game.ChatID]*box),
	}
}

// Quorum returns the configured quorum.
func (b *Boxes) Quorum() int { return b.quorum }

// Toggle flips voter's vote in the chat's box for the session identified by
// token. Reaching quorum discards the box; the caller then ends the session.
func (b *Boxes) Toggle(chat game.ChatID, token string, voter game.PlayerID, privileged bool) (Result, error) {
	if privileged {
		return Result{}, ErrPrivileged
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bx, ok := b.boxes[chat]
	if !ok || bx.token != token {
		bx = &box{token: token, voters: make(map[game.PlayerID]struct{})}
		b.boxes[chat] = bx
	}

	res := Result{Quorum: b.quorum}
	if _, voted := bx.voters[voter]; voted {
		delete(bx.voters, voter)
	} else {
		bx.voters[voter] = struct{}{}
		res.Voted = true
	}
	res.Count = len(bx.voters)
	res.Reached = res.Count >= b.quorum
	if res.Reached {
		delete(b.boxes, chat)
	}
	return res, nil
}

// Count returns the votes cast in chat for the session identified by token.
func (b *Boxes) Count(chat game.ChatID, token string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	bx, ok := b.boxes[chat]
	if !ok || bx.token != token {
		return 0
	}
	return len(bx.voters)
}

// Discard drops the chat's box if it belongs to token.
func (b *Boxes) Discard(chat game.ChatID, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bx, ok := b.boxes[chat]; ok && bx.token == token {
		delete(b.boxes, chat)
	}
}

// SessionEnded is a game.EndHook that discards the ended session's box.
func (b *Boxes) SessionEnded(g *game.Game) {
	b.Discard(g.ChatID(), g.Token())
}

// Len returns the number of open boxes.
func (b *Boxes) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.boxes)
}
