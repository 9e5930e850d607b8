package vote

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chitti-game/chitti-server/internal/game"
)

const (
	chat  game.ChatID = 7
	token             = "aaaaaaaa"
)

func TestQuorumOfThreeDistinctVoters(t *testing.T) {
	b := New(0)
	require.Equal(t, DefaultQuorum, b.Quorum())

	res, err := b.Toggle(chat, token, 1, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Voted: true, Count: 1, Quorum: 3}, res)

	res, err = b.Toggle(chat, token, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.False(t, res.Reached)

	res, err = b.Toggle(chat, token, 3, false)
	require.NoError(t, err)
	assert.True(t, res.Reached)
	assert.Equal(t, 3, res.Count)
	assert.Zero(t, b.Len(), "quorum discards the box")
}

func TestRepeatedVoterUnvotes(t *testing.T) {
	b := New(3)

	_, err := b.Toggle(chat, token, 1, false)
	require.NoError(t, err)
	_, err = b.Toggle(chat, token, 2, false)
	require.NoError(t, err)

	res, err := b.Toggle(chat, token, 2, false)
	require.NoError(t, err)
	assert.False(t, res.Voted)
	assert.Equal(t, 1, res.Count)

	res, err = b.Toggle(chat, token, 3, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.False(t, res.Reached, "an unvote must not count")
}

func TestPrivilegedActorsCannotVote(t *testing.T) {
	b := New(3)
	_, err := b.Toggle(chat, token, 1, true)
	assert.ErrorIs(t, err, ErrPrivileged)
	assert.Zero(t, b.Count(chat, token))
}

func TestVotesDoNotLeakAcrossSessions(t *testing.T) {
	b := New(3)
	_, err := b.Toggle(chat, token, 1, false)
	require.NoError(t, err)
	_, err = b.Toggle(chat, token, 2, false)
	require.NoError(t, err)

	res, err := b.Toggle(chat, "bbbbbbbb", 3, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Zero(t, b.Count(chat, token))
}

func TestDiscardMatchesToken(t *testing.T) {
	b := New(3)
	_, err := b.Toggle(chat, token, 1, false)
	require.NoError(t, err)

	b.Discard(chat, "bbbbbbbb")
	assert.Equal(t, 1, b.Count(chat, token))

	b.Discard(chat, token)
	assert.Zero(t, b.Len())
}

func TestSessionEndHookDiscardsBox(t *testing.T) {
	b := New(3)
	m := game.NewManager(zap.NewNop(), game.WithEndHook(b.SessionEnded))
	g, err := m.Create(100, chat)
	require.NoError(t, err)

	_, err = b.Toggle(chat, g.Token(), 1, false)
	require.NoError(t, err)
	require.Equal(t, 1, b.Len())

	_, err = m.End(chat)
	require.NoError(t, err)
	assert.Zero(t, b.Len())
}

func TestConcurrentVotesCountOnce(t *testing.T) {
	b := New(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id game.PlayerID) {
			defer wg.Done()
			_, _ = b.Toggle(chat, token, id, false)
		}(game.PlayerID(i))
	}
	wg.Wait()
	assert.Equal(t, 50, b.Count(chat, token))
}
