package card

import "fmt"

// Shuffler permutes n elements through swap. *math/rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// BuildDeck returns n copies of each of the first n kinds, shuffled.
func BuildDeck(n int, rng Shuffler) ([]Kind, error) {
	if n <= 0 || n > NumKinds {
		return nil, fmt.Errorf("deck dimension %d out of range [1,%d]", n, NumKinds)
	}
	deck := make([]Kind, 0, n*n)
	for k := 0; k < n; k++ {
		for c := 0; c < n; c++ {
			deck = append(deck, Kind(k))
		}
	}
	rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck, nil
}

// Deal slices the deck into players consecutive hands of size each, in order,
// and returns the hands together with whatever is left undealt.
func Deal(deck []Kind, players, size int) ([]Hand, []Kind, error) {
	if players < 0 || size < 0 {
		return nil, deck, fmt.Errorf("invalid deal of %d hands of %d", players, size)
	}
	if players*size > len(deck) {
		return nil, deck, fmt.Errorf("deck has %d cards, need %d", len(deck), players*size)
	}
	hands := make([]Hand, players)
	for i := range hands {
		hand := make(Hand, size)
		copy(hand, deck[:size])
		hands[i] = hand
		deck = deck[size:]
	}
	return hands, deck, nil
}
