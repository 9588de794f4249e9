package deck

import (
	"encoding/json"
	"fmt"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Clubs
	Diamonds
)

// Suits lists every suit in deck-construction order.
var Suits = []Suit{Spades, Hearts, Clubs, Diamonds}

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// ParseSuit parses the string representation produced by String
func ParseSuit(s string) (Suit, error) {
	for _, suit := range Suits {
		if suit.String() == s {
			return suit, nil
		}
	}
	return 0, fmt.Errorf("invalid suit %q", s)
}

// Rank represents a card rank
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// Ranks lists every rank in deck-construction order.
var Ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	default:
		if r >= Two && r <= Ten {
			return fmt.Sprintf("%d", int(r))
		}
		return "?"
	}
}

// ParseRank parses the string representation produced by String
func ParseRank(s string) (Rank, error) {
	for _, rank := range Ranks {
		if rank.String() == s {
			return rank, nil
		}
	}
	return 0, fmt.Errorf("invalid rank %q", s)
}

// Card represents a playing card. Cards are immutable once drawn.
type Card struct {
	Suit Suit
	Rank Rank
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the string representation of a card (e.g., "A♠")
func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// Weight returns the blackjack weight of the card: aces count 11 until
// scoring softens them, face cards count 10, everything else its pip value.
func (c Card) Weight() int {
	switch {
	case c.Rank == Ace:
		return 11
	case c.Rank >= Ten:
		return 10
	default:
		return int(c.Rank)
	}
}

type cardJSON struct {
	Suit   string `json:"suit"`
	Rank   string `json:"rank"`
	Weight int    `json:"weight"`
}

// MarshalJSON encodes the card in the wire form stored under a table's
// deck and hand paths. The weight is redundant but kept on the wire so
// thin clients can score a hand without rank tables.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{
		Suit:   c.Suit.String(),
		Rank:   c.Rank.String(),
		Weight: c.Weight(),
	})
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	suit, err := ParseSuit(cj.Suit)
	if err != nil {
		return err
	}
	rank, err := ParseRank(cj.Rank)
	if err != nil {
		return err
	}
	c.Suit = suit
	c.Rank = rank
	return nil
}
