package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestWriteAtomicAndReadOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemStore()

	err := m.WriteAtomic(ctx, map[string]any{
		"rooms/AB12/status":              "betting",
		"rooms/AB12/players/p1/balance":  1000,
		"rooms/AB12/players/p1/name":     "alice",
		"rooms/AB12/players/p1/joinedAt": 1,
	})
	require.NoError(t, err)

	data, ok, err := m.ReadOnce(ctx, "rooms/AB12/players/p1/name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"alice"`, string(data))

	data, ok, err = m.ReadOnce(ctx, "rooms/AB12")
	require.NoError(t, err)
	require.True(t, ok)
	var room map[string]any
	require.NoError(t, json.Unmarshal(data, &room))
	assert.Equal(t, "betting", room["status"])

	_, ok, err = m.ReadOnce(ctx, "rooms/XXXX")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubscribeDeliversInitialAndUpdates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemStore()
	require.NoError(t, m.WriteAtomic(ctx, map[string]any{"rooms/AB12/status": "betting"}))

	ch, err := m.Subscribe(ctx, "rooms/AB12")
	require.NoError(t, err)

	first := recvSnapshot(t, ch)
	assert.JSONEq(t, `{"status":"betting"}`, string(first.Data))

	// A multi-path write arrives as one notification of the new subtree.
	require.NoError(t, m.WriteAtomic(ctx, map[string]any{
		"rooms/AB12/status": "playing",
		"rooms/AB12/turn":   "p1",
	}))
	second := recvSnapshot(t, ch)
	assert.JSONEq(t, `{"status":"playing","turn":"p1"}`, string(second.Data))

	// Writes outside the subtree do not notify.
	require.NoError(t, m.WriteAtomic(ctx, map[string]any{"rooms/ZZ99/status": "betting"}))
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot: %s", snap.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotificationsArriveInCommitOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemStore()

	ch, err := m.Subscribe(ctx, "counter")
	require.NoError(t, err)
	recvSnapshot(t, ch) // initial, absent

	for i := 1; i <= 20; i++ {
		require.NoError(t, m.WriteAtomic(ctx, map[string]any{"counter": i}))
	}
	for i := 1; i <= 20; i++ {
		snap := recvSnapshot(t, ch)
		var got int
		require.NoError(t, json.Unmarshal(snap.Data, &got))
		assert.Equal(t, i, got)
	}
}

func TestDeleteAndPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.WriteAtomic(ctx, map[string]any{"rooms/AB12/players/p1/name": "alice"}))

	require.NoError(t, m.WriteAtomic(ctx, map[string]any{"rooms/AB12/players/p1": nil}))

	// Emptied ancestors read as absent too.
	_, ok, err := m.ReadOnce(ctx, "rooms/AB12/players")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastWriteWinsPerPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemStore()

	// Two writers race from the same stale snapshot; the later write
	// wins at each touched path.
	require.NoError(t, m.WriteAtomic(ctx, map[string]any{"rooms/AB12/turn": "p1"}))
	require.NoError(t, m.WriteAtomic(ctx, map[string]any{"rooms/AB12/turn": "p2"}))

	data, ok, err := m.ReadOnce(ctx, "rooms/AB12/turn")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `"p2"`, string(data))
}

func TestCreateWithDisconnectCleanup(t *testing.T) {
	t.Parallel()

	clientCtx, disconnect := context.WithCancel(context.Background())
	m := NewMemStore()

	cleaned := make(chan string, 1)
	m.OnCleanup(func(path string) { cleaned <- path })

	err := m.CreateWithDisconnectCleanup(clientCtx, "rooms/AB12/players/p1", map[string]any{"name": "alice"})
	require.NoError(t, err)

	_, ok, err := m.ReadOnce(context.Background(), "rooms/AB12/players/p1")
	require.NoError(t, err)
	require.True(t, ok)

	disconnect()
	require.Eventually(t, func() bool {
		_, ok, _ := m.ReadOnce(context.Background(), "rooms/AB12/players/p1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	select {
	case path := <-cleaned:
		assert.Equal(t, "rooms/AB12/players/p1", path)
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup hook never fired")
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemStore()
	ch, err := m.Subscribe(ctx, "rooms")
	require.NoError(t, err)
	recvSnapshot(t, ch)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
