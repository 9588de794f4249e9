package game

import "github.com/lox/blackjacktable/internal/deck"

// HandStatus is the lifecycle state of a single bettable hand.
type HandStatus string

const (
	HandBetting   HandStatus = "betting"
	HandPlaying   HandStatus = "playing"
	HandStanding  HandStatus = "standing"
	HandBusted    HandStatus = "busted"
	HandBlackjack HandStatus = "blackjack"
)

// Hand is one bettable unit of cards. A player owns one hand after the
// deal and more than one only after splitting. A hand is immutable once
// its status leaves playing.
type Hand struct {
	Cards   []deck.Card `json:"cards"`
	Score   int         `json:"score"`
	Bet     int         `json:"bet"`
	Status  HandStatus  `json:"status"`
	Doubled bool        `json:"isDoubled"`
}

// NewHand creates a hand carrying the player's staged bet. A hand with
// no bet is still betting; a funded hand starts playing, or blackjack
// on an initial 21.
func NewHand(cards []deck.Card, bet int) Hand {
	h := Hand{Cards: cards, Bet: bet, Status: HandPlaying}
	if bet <= 0 {
		h.Status = HandBetting
	}
	h.Rescore()
	if h.Status == HandPlaying && len(cards) == 2 && h.Score == 21 {
		h.Status = HandBlackjack
	}
	return h
}

// Rescore recomputes the hand's cached score from its cards.
func (h *Hand) Rescore() {
	h.Score = Score(h.Cards)
}

// Playing reports whether the hand may still act.
func (h Hand) Playing() bool {
	return h.Status == HandPlaying
}

// Clone returns an independent copy of the hand.
func (h Hand) Clone() Hand {
	out := h
	out.Cards = make([]deck.Card, len(h.Cards))
	copy(out.Cards, h.Cards)
	return out
}
