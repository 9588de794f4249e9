package game

import (
	"sort"

	"github.com/lox/blackjacktable/internal/deck"
)

// Status is the table-level phase.
type Status string

const (
	StatusBetting  Status = "betting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Turn pointer values beyond a player id.
const (
	TurnNone     = ""
	TurnDealer   = "dealer_turn"
	TurnFinished = "finished"
)

// Dealer status values.
const (
	DealerWaiting = "waiting"
	DealerPlaying = "playing"
	DealerDone    = "done"
)

// Dealer is the house hand. Singleton per table, not a player. The
// second card is tracked openly here; hiding it before the dealer's
// turn is a view concern.
type Dealer struct {
	Hand   []deck.Card `json:"hand"`
	Score  int         `json:"score"`
	Status string      `json:"status"`
}

// Table is the replicated aggregate for one room: the shoe, every
// seated player, the dealer and the turn pointer. It is the unit of
// atomic replication; every mutation below touches a subset of its
// paths and is expressed as a Delta.
type Table struct {
	Status  Status             `json:"status"`
	Deck    deck.Shoe          `json:"deck"`
	Players map[string]*Player `json:"players"`
	Dealer  Dealer             `json:"dealer"`
	Turn    string             `json:"turn"`

	// Error carries a fatal round failure (shoe exhaustion) to every
	// client. Validation errors never appear here; they are local to
	// the acting participant.
	Error string `json:"error,omitempty"`
}

// Delta maps table-relative store paths to the values an action writes.
// The store adapter prefixes the room namespace and submits the whole
// map as one atomic multi-path update, so every observer applies the
// same transition. A nil value deletes the path.
type Delta map[string]any

// NewTable creates a table in the betting phase with its creator seated
// as host.
func NewTable(host *Player) *Table {
	host.IsHost = true
	return &Table{
		Status:  StatusBetting,
		Players: map[string]*Player{host.ID: host},
		Dealer:  Dealer{Status: DealerWaiting},
		Turn:    TurnNone,
	}
}

// Clone returns a deep copy of the table. Actions mutate a clone so the
// snapshot a client observed stays untouched.
func (t *Table) Clone() *Table {
	out := &Table{
		Status:  t.Status,
		Deck:    t.Deck.Clone(),
		Players: make(map[string]*Player, len(t.Players)),
		Dealer: Dealer{
			Hand:   append([]deck.Card(nil), t.Dealer.Hand...),
			Score:  t.Dealer.Score,
			Status: t.Dealer.Status,
		},
		Turn:  t.Turn,
		Error: t.Error,
	}
	for id, p := range t.Players {
		out.Players[id] = p.Clone()
	}
	return out
}

// TurnOrder returns player ids in acting order: a stable sort by
// (joinedAt, id). Map insertion order is irrelevant.
func (t *Table) TurnOrder() []string {
	ids := make([]string, 0, len(t.Players))
	for id := range t.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.Players[ids[i]].Before(t.Players[ids[j]])
	})
	return ids
}

// HostCandidate returns the player to promote when no seat holds the
// host flag: the remaining player least by (joinedAt, id). ok is false
// while a host is present or the table is empty.
func (t *Table) HostCandidate() (id string, ok bool) {
	var candidate *Player
	for _, p := range t.Players {
		if p.IsHost {
			return "", false
		}
		if candidate == nil || p.Before(candidate) {
			candidate = p
		}
	}
	if candidate == nil {
		return "", false
	}
	return candidate.ID, true
}

// PromoteHost marks id as host. Applied by the migration winner's own
// client; every other client derives the same winner and writes nothing.
func (t *Table) PromoteHost(id string) (*Table, Delta, error) {
	p, ok := t.Players[id]
	if !ok {
		return nil, nil, ErrUnknownPlayer
	}
	if p.IsHost {
		return t, Delta{}, nil
	}
	next := t.Clone()
	next.Players[id].IsHost = true
	return next, Delta{"players/" + id + "/isHost": true}, nil
}

// CardsInPlay counts every card outside the shoe. Together with the
// shoe it must account for all 312 cards for a round's lifetime.
func (t *Table) CardsInPlay() int {
	n := len(t.Dealer.Hand)
	for _, p := range t.Players {
		for _, h := range p.Hands {
			n += len(h.Cards)
		}
	}
	return n
}

func (t *Table) draw() (deck.Card, error) {
	card, ok := t.Deck.Draw()
	if !ok {
		return deck.Card{}, ErrShoeExhausted
	}
	return card, nil
}
