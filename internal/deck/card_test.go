package deck

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjacktable/internal/randutil"
)

func TestCardWeights(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 11, NewCard(Spades, Ace).Weight())
	assert.Equal(t, 10, NewCard(Hearts, King).Weight())
	assert.Equal(t, 10, NewCard(Clubs, Queen).Weight())
	assert.Equal(t, 10, NewCard(Diamonds, Jack).Weight())
	assert.Equal(t, 10, NewCard(Spades, Ten).Weight())
	assert.Equal(t, 2, NewCard(Spades, Two).Weight())
	assert.Equal(t, 9, NewCard(Spades, Nine).Weight())
}

func TestCardString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A♠", NewCard(Spades, Ace).String())
	assert.Equal(t, "10♥", NewCard(Hearts, Ten).String())
	assert.Equal(t, "K♦", NewCard(Diamonds, King).String())
}

func TestCardJSONRoundTrip(t *testing.T) {
	t.Parallel()

	card := NewCard(Hearts, Ace)
	data, err := json.Marshal(card)
	require.NoError(t, err)
	assert.JSONEq(t, `{"suit":"♥","rank":"A","weight":11}`, string(data))

	var back Card
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, card, back)
}

func TestNewShoeComposition(t *testing.T) {
	t.Parallel()

	shoe := NewShoe(DecksPerShoe, randutil.New(1))
	require.Equal(t, 312, shoe.Len())

	// Every card appears exactly six times.
	counts := make(map[Card]int)
	for _, c := range shoe {
		counts[c]++
	}
	require.Len(t, counts, 52)
	for card, n := range counts {
		assert.Equalf(t, 6, n, "card %s", card)
	}
}

func TestShoeDrawFromTail(t *testing.T) {
	t.Parallel()

	shoe := Shoe{NewCard(Spades, Two), NewCard(Hearts, King)}
	card, ok := shoe.Draw()
	require.True(t, ok)
	assert.Equal(t, NewCard(Hearts, King), card)
	assert.Equal(t, 1, shoe.Len())

	card, ok = shoe.Draw()
	require.True(t, ok)
	assert.Equal(t, NewCard(Spades, Two), card)

	_, ok = shoe.Draw()
	assert.False(t, ok)
}

func TestShoeShuffleDeterministic(t *testing.T) {
	t.Parallel()

	a := NewShoe(DecksPerShoe, randutil.New(42))
	b := NewShoe(DecksPerShoe, randutil.New(42))
	c := NewShoe(DecksPerShoe, randutil.New(43))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
