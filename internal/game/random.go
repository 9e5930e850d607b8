package game

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"
)

// TokenLength is the number of hex characters in a session token.
const TokenLength = 8

// Rand is the randomness a session needs: deck and turn-order shuffles, the
// auto-pass card choice and token salt. *math/rand.Rand satisfies it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
	Intn(n int) int
	Int63() int64
}

// RandFactory returns a fresh Rand for each new session. A session uses its
// Rand only while holding its own lock.
type RandFactory func() Rand

var seedCounter atomic.Int64

func defaultRandFactory() Rand {
	seed := time.Now().UnixNano() ^ (seedCounter.Add(1) << 32)
	return rand.New(rand.NewSource(seed))
}

// SeededRandFactory returns a factory whose n-th session is seeded with
// base+n. Sessions created from it are reproducible.
func SeededRandFactory(base int64) RandFactory {
	var n atomic.Int64
	return func() Rand {
		return rand.New(rand.NewSource(base + n.Add(1)))
	}
}

// newToken derives the short session token from the chat, the host, the
// creation time and a random salt.
func newToken(chatID ChatID, hostID PlayerID, now time.Time, rng Rand) string {
	raw := fmt.Sprintf("%d_%d_%d_%d", chatID, hostID, now.UnixNano(), rng.Int63())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:TokenLength]
}
