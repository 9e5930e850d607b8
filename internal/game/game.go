// Package game implements the chitti session engine: one Game per chat room,
// the card-passing state machine, win detection and the process-wide Manager
// that binds players to sessions.
package game

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chitti-game/chitti-server/internal/card"
)

// PlayerID identifies a player on the chat platform.
type PlayerID int64

// ChatID identifies a chat room. Zero is reserved for direct messages.
type ChatID int64

// Player is a session member. Name is advisory and only used for rendering
// when the platform cannot resolve the id.
type Player struct {
	ID   PlayerID
	Name string
}

const (
	// MaxPlayers is bounded by the number of card kinds.
	MaxPlayers = card.NumKinds
	// MinPlayers is the default minimum membership required to start.
	MinPlayers = 4

	maxButtons = 512
)

// State represents the lifecycle phase of a session
type State int

const (
	StateForming State = iota
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateForming:
		return "FORMING"
	case StateActive:
		return "ACTIVE"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Transfer describes one card moving between two players.
type Transfer struct {
	Card card.Kind
	From PlayerID
	To   PlayerID
}

// ActionRef is the compact reference embedded in a pass button.
type ActionRef struct {
	KindIndex int
	Token     string
}

const actionPrefix = "pass_"

var actionPattern = regexp.MustCompile(`^pass_(\d+)_([0-9a-f]{8})$`)

// Encode renders the reference in its wire form, pass_<index>_<token>.
func (a ActionRef) Encode() string {
	return actionPrefix + strconv.Itoa(a.KindIndex) + "_" + a.Token
}

// ParseActionRef decodes the wire form produced by Encode. It does not check
// that the index names a real kind; PassCard does that.
func ParseActionRef(data string) (ActionRef, error) {
	m := actionPattern.FindStringSubmatch(data)
	if m == nil {
		return ActionRef{}, fmt.Errorf("malformed action reference %q", data)
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return ActionRef{}, fmt.Errorf("action reference %q: %w", data, err)
	}
	return ActionRef{KindIndex: idx, Token: m[2]}, nil
}

// IsActionRef reports whether data looks like a pass action.
func IsActionRef(data string) bool {
	return strings.HasPrefix(data, actionPrefix)
}

// Selection is one selectable card kind in a player's hand.
type Selection struct {
	Kind   card.Kind
	Count  int
	Action ActionRef
}

// ButtonRef locates an interactive message issued for a session.
type ButtonRef struct {
	ChatID    ChatID
	MessageID int64
}

// Claim is the outcome of ClaimWin.
type Claim struct {
	Won bool
	// Already is set when the player had locked before this call.
	Already bool
	Moved   []Transfer
	// Current is the player to act after the claim, if the round goes on.
	Current    Player
	HasCurrent bool
	Complete   bool
}

// Standings summarizes a round. Winners are in lock order.
type Standings struct {
	Winners  []Player
	Loser    Player
	HasLoser bool
	Complete bool
}

// Snapshot captures a consistent view of a session.
type Snapshot struct {
	Token      string
	ChatID     ChatID
	HostID     PlayerID
	State      State
	Players    []Player
	Hands      map[PlayerID]card.Hand
	TurnOrder  []PlayerID
	Current    PlayerID
	HasCurrent bool
	Locked     []PlayerID
	Passed     []PlayerID
	DeckSize   int
	CreateTime time.Time
	StartTime  *time.Time
}

// Game is one round bound to one chat. All methods are safe for concurrent
// use; each read-then-mutate operation runs under the session lock.
type Game struct {
	host       PlayerID
	chat       ChatID
	token      string
	minPlayers int
	createTime time.Time
	now        func() time.Time

	mu        sync.Mutex
	state     State
	startTime *time.Time
	players   []Player
	hands     map[PlayerID]card.Hand
	deck      []card.Kind
	turns     TurnOrder
	locked    map[PlayerID]struct{}
	lockOrder []PlayerID
	passed    map[PlayerID]struct{}
	buttons   []ButtonRef
	history   history
	rng       Rand
}

// NewGame creates a session in the FORMING state. The host is not joined
// automatically.
func NewGame(host PlayerID, chat ChatID, rng Rand) *Game {
	return newGame(host, chat, rng, time.Now, MinPlayers)
}

func newGame(host PlayerID, chat ChatID, rng Rand, now func() time.Time, minPlayers int) *Game {
	created := now()
	return &Game{
		host:       host,
		chat:       chat,
		token:      newToken(chat, host, created, rng),
		minPlayers: minPlayers,
		createTime: created,
		now:        now,
		state:      StateForming,
		players:    make([]Player, 0, MaxPlayers),
		hands:      make(map[PlayerID]card.Hand),
		locked:     make(map[PlayerID]struct{}),
		passed:     make(map[PlayerID]struct{}),
		rng:        rng,
	}
}

// Host returns the id of the player who created the session.
func (g *Game) Host() PlayerID { return g.host }

// ChatID returns the chat the session is bound to.
func (g *Game) ChatID() ChatID { return g.chat }

// Token returns the session token embedded in action references.
func (g *Game) Token() string { return g.token }

// MinPlayers returns the membership required to start.
func (g *Game) MinPlayers() int { return g.minPlayers }

// IsValidToken reports whether t is this session's token.
func (g *Game) IsValidToken(t string) bool {
	return t == g.token
}

// State returns the lifecycle phase.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Started reports whether cards have been dealt.
func (g *Game) Started() bool {
	return g.State() != StateForming
}

// Join appends a player in arrival order.
func (g *Game) Join(p Player) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateForming {
		return ErrAlreadyStarted
	}
	if g.memberIndex(p.ID) >= 0 {
		return ErrAlreadyJoined
	}
	if len(g.players) >= MaxPlayers {
		return ErrFull
	}
	g.players = append(g.players, p)
	g.history.record(Event{Type: EventJoin, Player: p.ID, At: g.now()})
	return nil
}

// Start deals n cards to each of the n players and fixes the turn order.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateForming {
		return ErrAlreadyStarted
	}
	n := len(g.players)
	if n < g.minPlayers {
		return ErrNotEnoughPlayers
	}

	deck, err := card.BuildDeck(n, g.rng)
	if err != nil {
		return err
	}
	hands, rest, err := card.Deal(deck, n, n)
	if err != nil {
		return err
	}

	ids := make([]PlayerID, n)
	for i, p := range g.players {
		ids[i] = p.ID
		g.hands[p.ID] = hands[i]
	}
	g.deck = rest
	g.turns.Set(ids, g.rng)
	g.locked = make(map[PlayerID]struct{})
	g.lockOrder = nil
	g.passed = make(map[PlayerID]struct{})
	g.buttons = nil

	started := g.now()
	g.startTime = &started
	g.state = StateActive
	g.history.record(Event{Type: EventStart, Player: g.host, At: started})
	return nil
}

// PassCard moves one card of the given kind from actor to the next active
// player and advances the turn.
func (g *Game) PassCard(actor PlayerID, kindIndex int) (Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateActive {
		return Transfer{}, ErrNotActive
	}
	current, ok := g.turns.Current(g.isLocked)
	if !ok || current != actor {
		return Transfer{}, ErrNotYourTurn
	}
	if g.isLocked(actor) {
		return Transfer{}, ErrAlreadyLocked
	}
	kind, ok := card.KindAt(kindIndex)
	if !ok {
		return Transfer{}, ErrInvalidCardIndex
	}
	if !g.hands[actor].Has(kind) {
		return Transfer{}, ErrCardNotHeld
	}
	receiver, err := g.receiverFor(actor)
	if err != nil {
		return Transfer{}, err
	}

	t := g.move(actor, receiver, kind)
	g.history.record(Event{Type: EventPass, Player: actor, To: receiver, Card: kind, At: g.now()})
	return t, nil
}

// AutoPass moves a uniformly chosen card from actor's hand, for players the
// platform cannot reach.
func (g *Game) AutoPass(actor PlayerID) (Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateActive {
		return Transfer{}, ErrNotActive
	}
	if g.memberIndex(actor) < 0 {
		return Transfer{}, ErrNotInSession
	}
	if g.isLocked(actor) {
		return Transfer{}, ErrAlreadyLocked
	}
	hand := g.hands[actor]
	if len(hand) == 0 {
		return Transfer{}, ErrNoCard
	}
	receiver, err := g.receiverFor(actor)
	if err != nil {
		return Transfer{}, err
	}

	kind := hand[g.rng.Intn(len(hand))]
	t := g.move(actor, receiver, kind)
	g.history.record(Event{Type: EventAutoPass, Player: actor, To: receiver, Card: kind, At: g.now()})
	return t, nil
}

func (g *Game) receiverFor(actor PlayerID) (PlayerID, error) {
	receiver, ok := g.turns.NextActiveAfter(actor, g.isLocked)
	if !ok {
		return 0, ErrNoReceiver
	}
	if g.isLocked(receiver) {
		return 0, ErrReceiverLocked
	}
	return receiver, nil
}

// move performs the remove/append pair and advances the turn. Callers have
// validated that from holds kind.
func (g *Game) move(from, to PlayerID, kind card.Kind) Transfer {
	hand := g.hands[from]
	hand.Remove(kind)
	g.hands[from] = hand

	recv := g.hands[to]
	recv.Add(kind)
	g.hands[to] = recv

	g.passed[from] = struct{}{}
	g.turns.Advance(g.isLocked, len(g.locked), len(g.players))
	return Transfer{Card: kind, From: from, To: to}
}

// CheckWin reports whether player holds a completed set, locking them the
// first time it does. It never moves the turn cursor.
func (g *Game) CheckWin(player PlayerID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkWin(player)
}

func (g *Game) checkWin(player PlayerID) bool {
	if g.isLocked(player) {
		return true
	}
	if g.state != StateActive {
		return false
	}
	if !g.hands[player].Uniform() {
		return false
	}
	g.locked[player] = struct{}{}
	g.lockOrder = append(g.lockOrder, player)
	g.history.record(Event{Type: EventLock, Player: player, At: g.now()})
	return true
}

// RedistributeOnLock empties a locked player's hand into the first active
// player after them in turn order. It is a no-op for players who are not
// locked.
func (g *Game) RedistributeOnLock(player PlayerID) []Transfer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.redistribute(player)
}

func (g *Game) redistribute(player PlayerID) []Transfer {
	if !g.isLocked(player) {
		return nil
	}
	remaining := g.hands[player]
	if len(remaining) == 0 {
		return nil
	}

	receiver, ok := g.redistributionTarget(player)
	if !ok {
		return nil
	}

	moved := make([]Transfer, 0, len(remaining))
	recv := g.hands[receiver]
	for _, k := range remaining {
		recv.Add(k)
		moved = append(moved, Transfer{Card: k, From: player, To: receiver})
		g.history.record(Event{Type: EventRedistribute, Player: player, To: receiver, Card: k, At: g.now()})
	}
	g.hands[receiver] = recv
	g.hands[player] = card.Hand{}
	return moved
}

// redistributionTarget walks the turn order after player. The join-order
// fallback only matters if every id in the turn order were locked, which the
// completion rule prevents.
func (g *Game) redistributionTarget(player PlayerID) (PlayerID, bool) {
	start := g.turns.Position(player)
	if start < 0 {
		start = 0
	}
	n := g.turns.Len()
	for i := 0; i < n; i++ {
		id := g.turns.order[(start+1+i)%n]
		if !g.isLocked(id) {
			return id, true
		}
	}
	for _, p := range g.players {
		if !g.isLocked(p.ID) {
			return p.ID, true
		}
	}
	return 0, false
}

// ClaimWin checks player for a completed set and, on success, moves any
// remaining cards and resolves who acts next, all in one critical section.
func (g *Game) ClaimWin(player PlayerID) (Claim, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.memberIndex(player) < 0 {
		return Claim{}, ErrNotInSession
	}
	if g.state != StateActive {
		return Claim{}, ErrNotActive
	}

	var c Claim
	c.Already = g.isLocked(player)
	c.Won = g.checkWin(player)
	if !c.Won {
		return c, nil
	}
	if !c.Already {
		c.Moved = g.redistribute(player)
	}
	c.Complete = g.complete()
	if !c.Complete {
		if id, ok := g.turns.Current(g.isLocked); ok {
			c.Current, c.HasCurrent = g.players[g.memberIndex(id)], true
		}
	}
	return c, nil
}

// Current resolves the player whose turn it is.
func (g *Game) Current() (Player, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateActive {
		return Player{}, false
	}
	id, ok := g.turns.Current(g.isLocked)
	if !ok {
		return Player{}, false
	}
	return g.players[g.memberIndex(id)], true
}

// NextAfter returns the active player who would receive a card from id.
func (g *Game) NextAfter(id PlayerID) (Player, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	next, ok := g.turns.NextActiveAfter(id, g.isLocked)
	if !ok {
		return Player{}, false
	}
	return g.players[g.memberIndex(next)], true
}

// TurnsBefore lists the active players ahead of id in turn order.
func (g *Game) TurnsBefore(id PlayerID) []Player {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos := g.turns.Position(id)
	if pos < 0 {
		return nil
	}
	var out []Player
	for _, pid := range g.turns.order[:pos] {
		if !g.isLocked(pid) {
			out = append(out, g.players[g.memberIndex(pid)])
		}
	}
	return out
}

// SelectableCards lists the distinct kinds in player's hand, ordered by kind
// index, each with its pass action. Locked or empty-handed players get nil.
func (g *Game) SelectableCards(player PlayerID) []Selection {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isLocked(player) {
		return nil
	}
	hand := g.hands[player]
	if len(hand) == 0 {
		return nil
	}
	kinds := hand.Distinct()
	out := make([]Selection, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Selection{
			Kind:   k,
			Count:  hand.Count(k),
			Action: ActionRef{KindIndex: k.Index(), Token: g.token},
		})
	}
	return out
}

// Hand returns a copy of player's hand.
func (g *Game) Hand(player PlayerID) card.Hand {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hands[player].Clone()
}

// Players returns the members in join order.
func (g *Game) Players() []Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Player(nil), g.players...)
}

// Player looks up a member by id.
func (g *Game) Player(id PlayerID) (Player, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.memberIndex(id)
	if i < 0 {
		return Player{}, false
	}
	return g.players[i], true
}

// IsMember reports whether id has joined.
func (g *Game) IsMember(id PlayerID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.memberIndex(id) >= 0
}

// IsLocked reports whether id has completed a set.
func (g *Game) IsLocked(id PlayerID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isLocked(id)
}

// Complete reports whether at most one player is still without a set.
func (g *Game) Complete() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.complete()
}

// An ended session keeps its final standings.
func (g *Game) complete() bool {
	return g.state != StateForming && len(g.locked) >= len(g.players)-1
}

// Standings returns winners in lock order and, once complete, the loser.
func (g *Game) Standings() Standings {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Standings{Complete: g.complete()}
	for _, id := range g.lockOrder {
		s.Winners = append(s.Winners, g.players[g.memberIndex(id)])
	}
	if s.Complete {
		for _, p := range g.players {
			if !g.isLocked(p.ID) {
				s.Loser, s.HasLoser = p, true
				break
			}
		}
	}
	return s
}

// TrackButton records an interactive message issued for this session. The
// oldest reference is dropped once the list is full.
func (g *Game) TrackButton(ref ButtonRef) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buttons = append(g.buttons, ref)
	if len(g.buttons) > maxButtons {
		g.buttons = g.buttons[len(g.buttons)-maxButtons:]
	}
}

// UntrackButton forgets a reference whose message no longer carries buttons.
func (g *Game) UntrackButton(ref ButtonRef) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, b := range g.buttons {
		if b == ref {
			g.buttons = append(g.buttons[:i], g.buttons[i+1:]...)
			return
		}
	}
}

// Buttons returns the outstanding references.
func (g *Game) Buttons() []ButtonRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ButtonRef(nil), g.buttons...)
}

// DrainButtons returns the outstanding references and clears the list.
func (g *Game) DrainButtons() []ButtonRef {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := g.buttons
	g.buttons = nil
	return out
}

// History returns the recorded events, oldest first.
func (g *Game) History() []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.history.snapshot()
}

// Snapshot returns a copy of the session state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Token:      g.token,
		ChatID:     g.chat,
		HostID:     g.host,
		State:      g.state,
		Players:    append([]Player(nil), g.players...),
		Hands:      make(map[PlayerID]card.Hand, len(g.hands)),
		TurnOrder:  g.turns.Order(),
		Locked:     append([]PlayerID(nil), g.lockOrder...),
		DeckSize:   len(g.deck),
		CreateTime: g.createTime,
	}
	if g.startTime != nil {
		st := *g.startTime
		s.StartTime = &st
	}
	for id, h := range g.hands {
		s.Hands[id] = h.Clone()
	}
	for id := range g.passed {
		s.Passed = append(s.Passed, id)
	}
	sort.Slice(s.Passed, func(i, j int) bool { return s.Passed[i] < s.Passed[j] })
	if g.state == StateActive {
		s.Current, s.HasCurrent = g.turns.Current(g.isLocked)
	}
	return s
}

// CheckInvariants verifies card conservation and the membership relations
// between players, locks and turn order.
func (g *Game) CheckInvariants() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fail := func(format string, args ...interface{}) error {
		return &InvariantError{Token: g.token, Detail: fmt.Sprintf(format, args...)}
	}

	if len(g.lockOrder) != len(g.locked) {
		return fail("lock order has %d entries, locked set %d", len(g.lockOrder), len(g.locked))
	}
	for id := range g.locked {
		if g.memberIndex(id) < 0 {
			return fail("locked player %d is not a member", id)
		}
	}
	for id := range g.hands {
		if g.memberIndex(id) < 0 {
			return fail("hand held by non-member %d", id)
		}
	}
	if g.state == StateForming {
		return nil
	}

	n := len(g.players)
	total := len(g.deck)
	for _, h := range g.hands {
		total += len(h)
	}
	if total != n*n {
		return fail("card count %d, want %d", total, n*n)
	}
	if g.turns.Len() != n {
		return fail("turn order has %d ids for %d players", g.turns.Len(), n)
	}
	seen := make(map[PlayerID]bool, n)
	for _, id := range g.turns.order {
		if seen[id] || g.memberIndex(id) < 0 {
			return fail("turn order entry %d is duplicated or not a member", id)
		}
		seen[id] = true
	}
	for id := range g.locked {
		if len(g.hands[id]) > 0 && !g.hands[id].Uniform() {
			return fail("locked player %d holds a mixed hand", id)
		}
	}
	return nil
}

// end moves the session to ENDED. Later card operations fail with
// ErrNotActive.
func (g *Game) end() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateEnded {
		return
	}
	g.state = StateEnded
	g.history.record(Event{Type: EventEnd, Player: g.host, At: g.now()})
}

func (g *Game) isLocked(id PlayerID) bool {
	_, ok := g.locked[id]
	return ok
}

func (g *Game) memberIndex(id PlayerID) int {
	for i, p := range g.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
