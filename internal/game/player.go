package game

// Player is a seated participant: identity, bankroll and the hands
// currently in front of them.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Balance  int    `json:"balance"`
	Bet      int    `json:"bet"`
	Hands    []Hand `json:"hands"`
	IsHost   bool   `json:"isHost"`
	JoinedAt int64  `json:"joinedAt"`
}

// ActiveHand returns the index of the first hand still in playing
// status. A player with several hands from a split resolves them
// strictly left to right. Returns -1 when no hand can act.
func (p *Player) ActiveHand() int {
	for i := range p.Hands {
		if p.Hands[i].Playing() {
			return i
		}
	}
	return -1
}

// HasPlayingHand reports whether any of the player's hands can still act.
func (p *Player) HasPlayingHand() bool {
	return p.ActiveHand() >= 0
}

// Before orders players for turn order and host election: earliest
// joinedAt first, identifier ordering breaking ties. Every client
// applies the same comparator so they converge without coordination.
func (p *Player) Before(other *Player) bool {
	if p.JoinedAt != other.JoinedAt {
		return p.JoinedAt < other.JoinedAt
	}
	return p.ID < other.ID
}

// Clone returns an independent copy of the player.
func (p *Player) Clone() *Player {
	out := *p
	out.Hands = make([]Hand, len(p.Hands))
	for i := range p.Hands {
		out.Hands[i] = p.Hands[i].Clone()
	}
	return &out
}
