package game

import (
	"fmt"
	"time"

	"github.com/chitti-game/chitti-server/internal/card"
)

// maxHistory bounds the per-session event log.
const maxHistory = 200

// EventType identifies a recorded session event.
type EventType int

const (
	EventJoin EventType = iota
	EventStart
	EventPass
	EventAutoPass
	EventLock
	EventRedistribute
	EventEnd
)

func (t EventType) String() string {
	switch t {
	case EventJoin:
		return "JOIN"
	case EventStart:
		return "START"
	case EventPass:
		return "PASS"
	case EventAutoPass:
		return "AUTO_PASS"
	case EventLock:
		return "LOCK"
	case EventRedistribute:
		return "REDISTRIBUTE"
	case EventEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry of a session's history. Card and To are only set for
// card movements.
type Event struct {
	Type   EventType
	Player PlayerID
	To     PlayerID
	Card   card.Kind
	At     time.Time
}

func (e Event) String() string {
	switch e.Type {
	case EventPass, EventAutoPass, EventRedistribute:
		return fmt.Sprintf("%s %d->%d %s", e.Type, e.Player, e.To, e.Card)
	default:
		return fmt.Sprintf("%s %d", e.Type, e.Player)
	}
}

type history struct {
	events []Event
}

func (h *history) record(e Event) {
	h.events = append(h.events, e)
	if len(h.events) > maxHistory {
		h.events = h.events[len(h.events)-maxHistory:]
	}
}

func (h *history) snapshot() []Event {
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}
