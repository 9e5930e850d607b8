package game

import "github.com/chitti-game/chitti-server/internal/card"

// TurnOrder is a fixed permutation of player ids with a movable cursor. It is
// not safe for concurrent use; a Game owns one and guards it with its lock.
type TurnOrder struct {
	order  []PlayerID
	cursor int
}

// Set stores a uniformly random permutation of players and resets the cursor.
func (t *TurnOrder) Set(players []PlayerID, rng card.Shuffler) {
	t.order = append(t.order[:0:0], players...)
	rng.Shuffle(len(t.order), func(i, j int) { t.order[i], t.order[j] = t.order[j], t.order[i] })
	t.cursor = 0
}

// Order returns a copy of the permutation.
func (t *TurnOrder) Order() []PlayerID {
	return append([]PlayerID(nil), t.order...)
}

// Len returns the number of ids in the permutation.
func (t *TurnOrder) Len() int {
	return len(t.order)
}

// Position returns the index of id in the permutation, or -1.
func (t *TurnOrder) Position(id PlayerID) int {
	for i, p := range t.order {
		if p == id {
			return i
		}
	}
	return -1
}

// Current resolves the cursor to the first id at or after it that is not
// locked, moving the stored cursor there. It returns false only when every id
// is locked.
func (t *TurnOrder) Current(locked func(PlayerID) bool) (PlayerID, bool) {
	n := len(t.order)
	for i := 0; i < n; i++ {
		idx := (t.cursor + i) % n
		if !locked(t.order[idx]) {
			t.cursor = idx
			return t.order[idx], true
		}
	}
	return 0, false
}

// NextActiveAfter returns the first unlocked id strictly after id's position,
// wrapping, without touching the cursor. It returns false when id is not in
// the order or no other id is unlocked.
func (t *TurnOrder) NextActiveAfter(id PlayerID, locked func(PlayerID) bool) (PlayerID, bool) {
	start := t.Position(id)
	if start < 0 {
		return 0, false
	}
	n := len(t.order)
	for i := 1; i < n; i++ {
		next := t.order[(start+i)%n]
		if !locked(next) {
			return next, true
		}
	}
	return 0, false
}

// Advance moves the cursor one step past its current position and then past
// any locked ids. Once lockedCount >= joined-1 the cursor is frozen.
func (t *TurnOrder) Advance(locked func(PlayerID) bool, lockedCount, joined int) {
	n := len(t.order)
	if n == 0 || lockedCount >= joined-1 {
		return
	}
	t.cursor = (t.cursor + 1) % n
	for i := 0; i < n && locked(t.order[t.cursor]); i++ {
		t.cursor = (t.cursor + 1) % n
	}
}
