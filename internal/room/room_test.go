package room

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjacktable/internal/deck"
	"github.com/lox/blackjacktable/internal/game"
	"github.com/lox/blackjacktable/internal/store"
)

// riggedShoe builds a shoe that yields the listed cards in order. Cards
// are stored back to front because drawing pops the tail.
func riggedShoe(t *testing.T, specs ...string) deck.Shoe {
	t.Helper()
	shoe := make(deck.Shoe, len(specs))
	for i, spec := range specs {
		// The suit rune is 3 bytes of UTF-8 at the end.
		rank, err := deck.ParseRank(spec[:len(spec)-3])
		require.NoError(t, err)
		suit, err := deck.ParseSuit(spec[len(spec)-3:])
		require.NoError(t, err)
		shoe[len(specs)-1-i] = deck.NewCard(suit, rank)
	}
	return shoe
}

func testOptions(shoe deck.Shoe) Options {
	return Options{
		Logger:       log.New(io.Discard),
		DrawDelay:    5 * time.Millisecond,
		ResolveDelay: 5 * time.Millisecond,
		NewShoe:      func() deck.Shoe { return shoe.Clone() },
	}
}

// waitFor polls the session's latest snapshot until cond holds.
func waitFor(t *testing.T, s *Session, cond func(*game.Table) bool) *game.Table {
	t.Helper()
	var got *game.Table
	require.Eventually(t, func() bool {
		got = s.Table()
		return got != nil && cond(got)
	}, 5*time.Second, 2*time.Millisecond)
	return got
}

func TestFullRoundTwoPlayers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemStore()
	defer st.Close()

	// Draw order: alice's two, bob's two, dealer's two, then the
	// dealer's forced hit. Dealer shows 16, draws to 25 and busts.
	opts := testOptions(riggedShoe(t,
		"K♠", "9♥", // alice: 19
		"J♦", "7♣", // bob: 17
		"Q♠", "6♥", // dealer: 16
		"9♦", // dealer hit: 25, bust
	))

	alice, err := Create(ctx, st, "alice", "Alice", opts)
	require.NoError(t, err)
	defer alice.Close()
	waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["alice"] != nil })

	bob, err := Join(ctx, st, alice.Code(), "bob", "Bob", opts)
	require.NoError(t, err)
	defer bob.Close()
	waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["bob"] != nil })

	require.NoError(t, alice.Bet(100))
	waitFor(t, bob, func(tb *game.Table) bool { return tb.Players["bob"] != nil })
	require.NoError(t, bob.Bet(100))

	waitFor(t, alice, func(tb *game.Table) bool {
		return tb.Players["alice"].Bet == 100 && tb.Players["bob"].Bet == 100
	})
	require.NoError(t, alice.Deal())

	waitFor(t, alice, func(tb *game.Table) bool { return tb.Turn == "alice" })
	require.NoError(t, alice.Stand())

	waitFor(t, bob, func(tb *game.Table) bool { return tb.Turn == "bob" })
	require.NoError(t, bob.Stand())

	// The host's dealer automation draws and resolves from here.
	final := waitFor(t, bob, func(tb *game.Table) bool {
		return tb.Status == game.StatusFinished
	})

	assert.Equal(t, game.TurnFinished, final.Turn)
	assert.Equal(t, game.DealerDone, final.Dealer.Status)
	assert.Equal(t, 25, final.Dealer.Score)
	assert.Equal(t, 1100, final.Players["alice"].Balance)
	assert.Equal(t, 1100, final.Players["bob"].Balance)
	assert.Empty(t, final.Error)
}

func TestServerPublishedConfigApplied(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemStore()
	defer st.Close()

	require.NoError(t, PublishConfig(ctx, st, TableConfig{
		StartingBalance: 500,
		Decks:           2,
		DealerDrawMs:    5,
		DealerResolveMs: 5,
	}))

	alice, err := Create(ctx, st, "alice", "Alice", Options{Logger: log.New(io.Discard)})
	require.NoError(t, err)
	defer alice.Close()

	tb := waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["alice"] != nil })
	assert.Equal(t, 500, tb.Players["alice"].Balance)
	assert.Equal(t, 5*time.Millisecond, alice.opts.DrawDelay)
	assert.Equal(t, 5*time.Millisecond, alice.opts.ResolveDelay)
	assert.Len(t, alice.opts.NewShoe(), 2*52)

	bob, err := Join(ctx, st, alice.Code(), "bob", "Bob", Options{Logger: log.New(io.Discard)})
	require.NoError(t, err)
	defer bob.Close()
	tb = waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["bob"] != nil })
	assert.Equal(t, 500, tb.Players["bob"].Balance)
}

func TestExplicitOptionsBeatPublishedConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemStore()
	defer st.Close()

	require.NoError(t, PublishConfig(ctx, st, TableConfig{StartingBalance: 500}))

	alice, err := Create(ctx, st, "alice", "Alice", Options{
		Logger:          log.New(io.Discard),
		StartingBalance: 2000,
	})
	require.NoError(t, err)
	defer alice.Close()

	tb := waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["alice"] != nil })
	assert.Equal(t, 2000, tb.Players["alice"].Balance)
}

func TestShoeExhaustionAbortsRoundForEveryone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemStore()
	defer st.Close()

	// The shoe empties exactly at the deal; the dealer sits on 14 and
	// must draw, which fails and aborts the round for the whole table.
	opts := testOptions(riggedShoe(t,
		"K♠", "9♥", // alice: 19
		"J♦", "7♣", // bob: 17
		"9♦", "5♥", // dealer: 14
	))

	alice, err := Create(ctx, st, "alice", "Alice", opts)
	require.NoError(t, err)
	defer alice.Close()
	waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["alice"] != nil })

	bob, err := Join(ctx, st, alice.Code(), "bob", "Bob", opts)
	require.NoError(t, err)
	defer bob.Close()
	waitFor(t, bob, func(tb *game.Table) bool { return tb.Players["bob"] != nil })

	require.NoError(t, alice.Bet(100))
	require.NoError(t, bob.Bet(100))
	waitFor(t, alice, func(tb *game.Table) bool {
		return tb.Players["alice"].Bet == 100 && tb.Players["bob"].Bet == 100
	})
	require.NoError(t, alice.Deal())

	waitFor(t, alice, func(tb *game.Table) bool { return tb.Turn == "alice" })
	require.NoError(t, alice.Stand())
	waitFor(t, bob, func(tb *game.Table) bool { return tb.Turn == "bob" })
	require.NoError(t, bob.Stand())

	// Every session observes the abort, not just the host's.
	for _, s := range []*Session{alice, bob} {
		final := waitFor(t, s, func(tb *game.Table) bool { return tb.Error != "" })
		assert.Equal(t, game.StatusFinished, final.Status)
		assert.Equal(t, game.TurnFinished, final.Turn)
		assert.Contains(t, final.Error, "shoe exhausted")
	}
}

func TestDealerPacingDrivenByClock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemStore()
	defer st.Close()

	mock := quartz.NewMock(t)
	opts := Options{
		Logger: log.New(io.Discard),
		Clock:  mock,
		NewShoe: func() deck.Shoe {
			return riggedShoe(t,
				"K♠", "9♥", // alice: 19
				"Q♠", "7♣", // dealer: 17, no draws
			)
		},
	}

	alice, err := Create(ctx, st, "alice", "Alice", opts)
	require.NoError(t, err)
	defer alice.Close()
	waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["alice"] != nil })

	require.NoError(t, alice.Bet(100))
	waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["alice"].Bet == 100 })
	require.NoError(t, alice.Deal())
	waitFor(t, alice, func(tb *game.Table) bool { return tb.Turn == "alice" })
	require.NoError(t, alice.Stand())

	// Nothing resolves until the mocked resolve delay elapses.
	final := waitFor(t, alice, func(tb *game.Table) bool {
		if d, ok := mock.Peek(); ok {
			mock.Advance(d)
		}
		return tb.Status == game.StatusFinished
	})
	assert.Equal(t, 17, final.Dealer.Score)
	assert.Equal(t, 1100, final.Players["alice"].Balance)
}

func TestDealRequiresBets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemStore()
	defer st.Close()

	opts := testOptions(riggedShoe(t, "K♠", "9♥", "Q♠", "6♥"))
	alice, err := Create(ctx, st, "alice", "Alice", opts)
	require.NoError(t, err)
	defer alice.Close()

	waitFor(t, alice, func(tb *game.Table) bool { return tb.Players["alice"] != nil })
	require.ErrorIs(t, alice.Deal(), game.ErrBetsNotPlaced)
}

func TestJoinUnknownRoom(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	defer st.Close()

	_, err := Join(context.Background(), st, "ZZZZ", "bob", "Bob", testOptions(nil))
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestHostMigration(t *testing.T) {
	t.Parallel()

	st := store.NewMemStore()
	defer st.Close()

	hostCtx, disconnectHost := context.WithCancel(context.Background())
	opts := testOptions(nil)

	alice, err := Create(hostCtx, st, "alice", "Alice", opts)
	require.NoError(t, err)
	defer alice.Close()

	bob, err := Join(context.Background(), st, alice.Code(), "bob", "Bob", opts)
	require.NoError(t, err)
	defer bob.Close()
	waitFor(t, bob, func(tb *game.Table) bool { return tb.Players["bob"] != nil })

	// Simulate the host's connection dropping; the store's disconnect
	// hook removes the player entry and bob promotes himself.
	disconnectHost()

	final := waitFor(t, bob, func(tb *game.Table) bool {
		_, present := tb.Players["alice"]
		return !present && tb.Players["bob"] != nil && tb.Players["bob"].IsHost
	})
	assert.Len(t, final.Players, 1)
}

func TestLobbyListsOpenRooms(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemStore()
	defer st.Close()

	listings, err := Lobby(ctx, st)
	require.NoError(t, err)
	assert.Empty(t, listings)

	alice, err := Create(ctx, st, "alice", "Alice", testOptions(nil))
	require.NoError(t, err)
	defer alice.Close()

	listings, err = Lobby(ctx, st)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, alice.Code(), listings[0].Code)
	assert.Equal(t, game.StatusBetting, listings[0].Status)
	assert.Equal(t, 1, listings[0].Players)
	assert.True(t, listings[0].Open)
}
