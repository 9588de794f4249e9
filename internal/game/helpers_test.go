package game

import (
	"github.com/lox/blackjacktable/internal/deck"
)

// testTable seats the given players in join order with 1000 balance
// each; the first is host.
func testTable(ids ...string) *Table {
	t := NewTable(&Player{ID: ids[0], Name: ids[0], Balance: 1000, JoinedAt: 1})
	for i, id := range ids[1:] {
		t.Players[id] = &Player{ID: id, Name: id, Balance: 1000, JoinedAt: int64(i + 2)}
	}
	return t
}

// shoeOf builds a rigged shoe whose cards come off in the listed order.
// The shoe pops from the tail, so the sequence is stored reversed.
func shoeOf(specs ...string) deck.Shoe {
	drawn := cards(specs...)
	s := make(deck.Shoe, len(drawn))
	for i, c := range drawn {
		s[len(drawn)-1-i] = c
	}
	return s
}

// betAll stages the same bet for every player and returns the table.
func betAll(t *Table, amount int) *Table {
	for _, id := range t.TurnOrder() {
		next, _, err := t.PlaceBet(id, amount)
		if err != nil {
			panic(err)
		}
		t = next
	}
	return t
}
