package game

import (
	"errors"
	"fmt"
)

// Failure kinds returned by session and registry operations. All of them are
// recoverable by the caller and are meant to be translated into user text.
var (
	ErrAlreadyJoined    = errors.New("player already joined")
	ErrFull             = errors.New("session is full")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrAlreadyStarted   = errors.New("session already started")
	ErrNotActive        = errors.New("session not in progress")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAlreadyLocked    = errors.New("player already completed a set")
	ErrInvalidCardIndex = errors.New("invalid card index")
	ErrCardNotHeld      = errors.New("card not held")
	ErrReceiverLocked   = errors.New("receiver already completed a set")
	ErrStaleToken       = errors.New("action belongs to a previous session")
	ErrNoActiveSession  = errors.New("no active session")
	ErrNotInSession     = errors.New("player not in session")
	ErrPlayerBusy       = errors.New("player already in another chat's session")
	ErrSessionExists    = errors.New("chat already has an active session")
	ErrNoCard           = errors.New("player holds no cards")
	ErrNoReceiver       = errors.New("no active receiver")
)

// InvariantError reports a violated internal invariant. It is never caused by
// user input and is surfaced to operators rather than players.
type InvariantError struct {
	Token  string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("session %s: invariant violated: %s", e.Token, e.Detail)
}

// IsInvariant reports whether err wraps an *InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
