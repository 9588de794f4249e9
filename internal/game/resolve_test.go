package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandPayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		hand        Hand
		dealerScore int
		dealerCards int
		want        int
	}{
		{"standing beats dealer bust", Hand{Status: HandStanding, Score: 19, Bet: 100}, 22, 3, 200},
		{"standing outscores dealer", Hand{Status: HandStanding, Score: 20, Bet: 100}, 18, 3, 200},
		{"standing pushes", Hand{Status: HandStanding, Score: 18, Bet: 100}, 18, 3, 100},
		{"standing loses", Hand{Status: HandStanding, Score: 17, Bet: 100}, 18, 3, 0},
		{"busted forfeits", Hand{Status: HandBusted, Score: 25, Bet: 100}, 18, 3, 0},
		{"busted forfeits even against dealer bust", Hand{Status: HandBusted, Score: 25, Bet: 100}, 22, 3, 0},
		{"blackjack pays three to two", Hand{Status: HandBlackjack, Score: 21, Bet: 100}, 18, 3, 250},
		{"blackjack pushes dealer natural", Hand{Status: HandBlackjack, Score: 21, Bet: 100}, 21, 2, 100},
		{"blackjack beats drawn twenty-one", Hand{Status: HandBlackjack, Score: 21, Bet: 100}, 21, 3, 250},
		{"doubled standing win", Hand{Status: HandStanding, Score: 20, Bet: 200, Doubled: true}, 19, 3, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HandPayout(tt.hand, tt.dealerScore, tt.dealerCards))
		})
	}
}

func TestDealerDrawLoop(t *testing.T) {
	t.Parallel()

	tbl := betAll(testTable("alice"), 100)
	// Alice stands on 19; dealer starts at 9♦ 5♥ (14), draws 2♠ (16)
	// then 5♣ (21).
	dealt, _, err := tbl.Deal("alice", shoeOf("K♠", "9♥", "9♦", "5♥", "2♠", "5♣"))
	require.NoError(t, err)
	stood, _, err := dealt.Stand("alice")
	require.NoError(t, err)
	require.Equal(t, TurnDealer, stood.Turn)

	state := stood
	draws := 0
	for !state.DealerDoneDrawing() {
		next, delta, err := state.DealerDraw()
		require.NoError(t, err)
		assert.Contains(t, delta, "dealer/hand")
		assert.Contains(t, delta, "dealer/score")
		state = next
		draws++
	}
	assert.Equal(t, 2, draws)
	assert.Equal(t, 21, state.Dealer.Score)
	assert.Equal(t, 312, state.Deck.Len()+state.CardsInPlay())

	// The loop refuses to keep drawing once satisfied.
	_, _, err = state.DealerDraw()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestDealerDrawExhaustedShoeIsFatal(t *testing.T) {
	t.Parallel()

	tbl := betAll(testTable("alice"), 100)
	dealt, _, err := tbl.Deal("alice", shoeOf("K♠", "9♥", "9♦", "5♥"))
	require.NoError(t, err)
	stood, _, err := dealt.Stand("alice")
	require.NoError(t, err)

	_, _, err = stood.DealerDraw()
	assert.ErrorIs(t, err, ErrShoeExhausted)
}

func TestResolvePaysEveryHandIndependently(t *testing.T) {
	t.Parallel()

	tbl := betAll(testTable("alice", "bob"), 100)
	// Alice K♠ 9♥ (19), bob Q♦ 6♣ (16), dealer 10♦ 8♣ (18).
	dealt, _, err := tbl.Deal("alice", shoeOf("K♠", "9♥", "Q♦", "6♣", "10♦", "8♣"))
	require.NoError(t, err)
	state, _, err := dealt.Stand("alice")
	require.NoError(t, err)
	state, _, err = state.Stand("bob")
	require.NoError(t, err)

	resolved, delta, err := state.Resolve()
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, resolved.Status)
	assert.Equal(t, TurnFinished, resolved.Turn)
	// Alice wins even money on top of her 900, bob loses his stake.
	assert.Equal(t, 1100, resolved.Players["alice"].Balance)
	assert.Equal(t, 900, resolved.Players["bob"].Balance)
	assert.Contains(t, delta, "players/alice/balance")
	assert.Contains(t, delta, "players/bob/balance")

	// Resolution is not re-enterable.
	_, _, err = resolved.Resolve()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestResolveRequiresDealerDone(t *testing.T) {
	t.Parallel()

	tbl := betAll(testTable("alice"), 100)
	// Dealer 9♦ 5♥ is 14: still drawing.
	dealt, _, err := tbl.Deal("alice", shoeOf("K♠", "9♥", "9♦", "5♥", "2♠"))
	require.NoError(t, err)
	stood, _, err := dealt.Stand("alice")
	require.NoError(t, err)

	_, _, err = stood.Resolve()
	assert.ErrorIs(t, err, ErrWrongPhase)
}

// The end-to-end scenario from the design review: a lone player bets
// 100, is dealt a natural, the dealer draws to seventeen or better
// without a two-card twenty-one, and the round pays 250 into the 900
// remaining balance.
func TestSinglePlayerBlackjackRound(t *testing.T) {
	t.Parallel()

	tbl := testTable("alice")
	state, _, err := tbl.PlaceBet("alice", 100)
	require.NoError(t, err)
	require.Equal(t, 900, state.Players["alice"].Balance)

	// Alice A♠ K♥; dealer 9♦ 4♣ (13) draws 6♥ for 19.
	state, _, err = state.Deal("alice", shoeOf("A♠", "K♥", "9♦", "4♣", "6♥"))
	require.NoError(t, err)
	assert.Equal(t, HandBlackjack, state.Players["alice"].Hands[0].Status)
	require.Equal(t, TurnDealer, state.Turn)

	for !state.DealerDoneDrawing() {
		state, _, err = state.DealerDraw()
		require.NoError(t, err)
	}
	require.Equal(t, 19, state.Dealer.Score)
	require.Len(t, state.Dealer.Hand, 3)

	state, _, err = state.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 1150, state.Players["alice"].Balance)
	assert.Equal(t, StatusFinished, state.Status)
}
