// Package card defines the card kinds, deck construction and per-player hands
// used by a chitti round.
package card

import (
	"fmt"
	"sort"
)

// Kind identifies one of the fixed card symbols. The numeric value is the
// stable index used for button layout and for compact action references.
type Kind uint8

const (
	KindApple Kind = iota
	KindWatermelon
	KindCherry
	KindStrawberry
	KindOrange
	KindLemon
	KindPineapple
	KindKiwi
)

// NumKinds is the size of the kind enumeration and therefore the largest
// deck dimension (and player count) a round supports.
const NumKinds = 8

var defaultSymbols = [NumKinds]string{
	KindApple:      "🍎",
	KindWatermelon: "🍉",
	KindCherry:     "🍒",
	KindStrawberry: "🍓",
	KindOrange:     "🍊",
	KindLemon:      "🍋",
	KindPineapple:  "🍍",
	KindKiwi:       "🥝",
}

var kindNames = [NumKinds]string{
	KindApple:      "APPLE",
	KindWatermelon: "WATERMELON",
	KindCherry:     "CHERRY",
	KindStrawberry: "STRAWBERRY",
	KindOrange:     "ORANGE",
	KindLemon:      "LEMON",
	KindPineapple:  "PINEAPPLE",
	KindKiwi:       "KIWI",
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// Symbol returns the default emoji for the kind.
func (k Kind) Symbol() string {
	if k.Valid() {
		return defaultSymbols[k]
	}
	return "?"
}

// Index returns the stable index of the kind.
func (k Kind) Index() int {
	return int(k)
}

// Valid reports whether k is part of the enumeration.
func (k Kind) Valid() bool {
	return int(k) < NumKinds
}

// KindAt converts a stable index back into a Kind.
func KindAt(index int) (Kind, bool) {
	if index < 0 || index >= NumKinds {
		return 0, false
	}
	return Kind(index), true
}

// Symbols maps kinds to display strings. A zero-value entry falls back to the
// kind's default symbol.
type Symbols [NumKinds]string

// DefaultSymbols returns the reference symbol set.
func DefaultSymbols() Symbols {
	return Symbols(defaultSymbols)
}

// NewSymbols builds a symbol set from configuration, keeping defaults for
// missing or blank entries.
func NewSymbols(configured []string) (Symbols, error) {
	if len(configured) > NumKinds {
		return Symbols{}, fmt.Errorf("too many card symbols: got %d, max %d", len(configured), NumKinds)
	}
	s := DefaultSymbols()
	seen := make(map[string]Kind, NumKinds)
	for i, sym := range configured {
		if sym != "" {
			s[i] = sym
		}
	}
	for i, sym := range s {
		if prev, ok := seen[sym]; ok {
			return Symbols{}, fmt.Errorf("card symbol %q used by both %s and %s", sym, prev, Kind(i))
		}
		seen[sym] = Kind(i)
	}
	return s, nil
}

// Of returns the display string for k.
func (s Symbols) Of(k Kind) string {
	if !k.Valid() {
		return "?"
	}
	if s[k] == "" {
		return k.Symbol()
	}
	return s[k]
}

// Hand is a multiset of kinds held by one player. Order carries no meaning
// beyond arrival order.
type Hand []Kind

// Len returns the number of cards in the hand.
func (h Hand) Len() int {
	return len(h)
}

// Count returns how many cards of kind k the hand holds.
func (h Hand) Count(k Kind) int {
	n := 0
	for _, c := range h {
		if c == k {
			n++
		}
	}
	return n
}

// Has reports whether the hand holds at least one card of kind k.
func (h Hand) Has(k Kind) bool {
	for _, c := range h {
		if c == k {
			return true
		}
	}
	return false
}

// Add appends one card.
func (h *Hand) Add(k Kind) {
	*h = append(*h, k)
}

// Remove takes out one card of kind k, reporting whether one was present.
func (h *Hand) Remove(k Kind) bool {
	for i, c := range *h {
		if c == k {
			*h = append((*h)[:i], (*h)[i+1:]...)
			return true
		}
	}
	return false
}

// Uniform reports whether the hand is non-empty and every card is the same kind.
func (h Hand) Uniform() bool {
	if len(h) == 0 {
		return false
	}
	first := h[0]
	for _, c := range h[1:] {
		if c != first {
			return false
		}
	}
	return true
}

// Distinct returns the kinds present in the hand ordered by stable index.
func (h Hand) Distinct() []Kind {
	var present [NumKinds]bool
	for _, c := range h {
		if c.Valid() {
			present[c] = true
		}
	}
	out := make([]Kind, 0, NumKinds)
	for i, ok := range present {
		if ok {
			out = append(out, Kind(i))
		}
	}
	return out
}

// Clone returns an independent copy of the hand.
func (h Hand) Clone() Hand {
	if h == nil {
		return nil
	}
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

// Sorted returns a copy of the hand ordered by kind index.
func (h Hand) Sorted() Hand {
	out := h.Clone()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
