package deck

import (
	rand "math/rand/v2"

	"github.com/lox/blackjacktable/internal/randutil"
)

// DecksPerShoe is the number of 52-card sets in a standard shoe.
const DecksPerShoe = 6

// Shoe is an ordered sequence of cards. The top of the shoe is the end
// of the slice: cards are drawn by popping the tail, matching the wire
// representation where the deck array shrinks from the back.
type Shoe []Card

// NewShoe builds decks concatenated 52-card sets and shuffles them with
// a uniform Fisher-Yates permutation.
func NewShoe(decks int, rng *rand.Rand) Shoe {
	s := make(Shoe, 0, decks*52)
	for i := 0; i < decks; i++ {
		for _, suit := range Suits {
			for _, rank := range Ranks {
				s = append(s, NewCard(suit, rank))
			}
		}
	}
	randutil.Shuffle(rng, s)
	return s
}

// Draw removes and returns the top card. Returns false when the shoe
// is exhausted; callers must treat that as fatal mid-round.
func (s *Shoe) Draw() (Card, bool) {
	if len(*s) == 0 {
		return Card{}, false
	}
	card := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return card, true
}

// Len returns the number of cards remaining in the shoe.
func (s Shoe) Len() int {
	return len(s)
}

// Clone returns an independent copy of the shoe.
func (s Shoe) Clone() Shoe {
	out := make(Shoe, len(s))
	copy(out, s)
	return out
}
