package game

import "github.com/lox/blackjacktable/internal/deck"

// Score computes the blackjack value of a set of cards: the sum of card
// weights, with aces softened from 11 to 1 one at a time while the
// total exceeds 21. An empty hand scores 0.
func Score(cards []deck.Card) int {
	total := 0
	aces := 0
	for _, c := range cards {
		total += c.Weight()
		if c.IsAce() {
			aces++
		}
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}
