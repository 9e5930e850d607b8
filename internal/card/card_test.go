package card

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeckCounts(t *testing.T) {
	for n := 1; n <= NumKinds; n++ {
		deck, err := BuildDeck(n, rand.New(rand.NewSource(int64(n))))
		require.NoError(t, err)
		require.Len(t, deck, n*n)

		counts := make(map[Kind]int)
		for _, k := range deck {
			counts[k]++
		}
		assert.Len(t, counts, n)
		for k, c := range counts {
			assert.Less(t, k.Index(), n, "kind %s beyond first %d", k, n)
			assert.Equal(t, n, c, "kind %s", k)
		}
	}
}

func TestBuildDeckRejectsBadDimension(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := BuildDeck(0, rng)
	assert.Error(t, err)
	_, err = BuildDeck(NumKinds+1, rng)
	assert.Error(t, err)
}

func TestBuildDeckIsSeedDeterministic(t *testing.T) {
	a, err := BuildDeck(6, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := BuildDeck(6, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDealConsumesDeck(t *testing.T) {
	deck, err := BuildDeck(5, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	original := append([]Kind(nil), deck...)

	hands, rest, err := Deal(deck, 5, 5)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, hands, 5)
	for i, h := range hands {
		assert.Equal(t, Hand(original[i*5:(i+1)*5]), h, "hand %d is a sequential slice", i)
	}
}

func TestDealTooFewCards(t *testing.T) {
	_, rest, err := Deal([]Kind{KindApple, KindApple}, 2, 2)
	assert.Error(t, err)
	assert.Len(t, rest, 2)
}

func TestHandOperations(t *testing.T) {
	h := Hand{KindLemon, KindApple, KindLemon}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, 2, h.Count(KindLemon))
	assert.True(t, h.Has(KindApple))
	assert.False(t, h.Has(KindKiwi))
	assert.Equal(t, []Kind{KindApple, KindLemon}, h.Distinct())
	assert.False(t, h.Uniform())

	require.True(t, h.Remove(KindApple))
	assert.False(t, h.Remove(KindApple))
	assert.True(t, h.Uniform())

	h.Add(KindKiwi)
	assert.Equal(t, Hand{KindLemon, KindLemon, KindKiwi}, h)
	assert.Equal(t, Hand{KindLemon, KindLemon, KindKiwi}, h.Clone())
	assert.Equal(t, Hand{KindLemon, KindLemon, KindKiwi}, h.Sorted())
}

func TestEmptyHandIsNotUniform(t *testing.T) {
	var h Hand
	assert.False(t, h.Uniform())
	assert.Empty(t, h.Distinct())
	assert.Nil(t, h.Clone())
}

func TestKindAt(t *testing.T) {
	k, ok := KindAt(2)
	require.True(t, ok)
	assert.Equal(t, KindCherry, k)
	assert.Equal(t, "🍒", k.Symbol())

	_, ok = KindAt(-1)
	assert.False(t, ok)
	_, ok = KindAt(NumKinds)
	assert.False(t, ok)
	assert.Equal(t, "KIND_9", Kind(9).String())
}

func TestNewSymbols(t *testing.T) {
	s, err := NewSymbols([]string{"A", "", "C"})
	require.NoError(t, err)
	assert.Equal(t, "A", s.Of(KindApple))
	assert.Equal(t, KindWatermelon.Symbol(), s.Of(KindWatermelon))
	assert.Equal(t, "C", s.Of(KindCherry))

	_, err = NewSymbols([]string{"X", "X"})
	assert.Error(t, err)

	_, err = NewSymbols(make([]string, NumKinds+1))
	assert.Error(t, err)
}
