package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// subscriber buffer size. Notifications are delivered in commit order
// into the buffer; a subscriber that falls this far behind is closed
// rather than allowed to stall every writer.
const subscriberBuffer = 256

type subscriber struct {
	path string
	ch   chan Snapshot
	dead bool
}

// MemStore is the in-process Store: a JSON tree with per-path
// last-write-wins and notifications in commit order. It backs the
// websocket store server and stands in for the network entirely in
// tests.
type MemStore struct {
	mu       sync.Mutex
	tree     map[string]any
	subs     map[*subscriber]struct{}
	cleanups []func(path string)
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		tree: make(map[string]any),
		subs: make(map[*subscriber]struct{}),
	}
}

// OnCleanup registers fn to run after a disconnect-cleanup removal, with
// the removed path. The surrounding directory service uses this to
// garbage-collect rooms emptied by a departure; the engine itself never
// deletes a table.
func (m *MemStore) OnCleanup(fn func(path string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, fn)
}

// Subscribe implements Store.
func (m *MemStore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	sub := &subscriber{path: path, ch: make(chan Snapshot, subscriberBuffer)}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	// Initial snapshot so every subscriber starts from the current state.
	sub.ch <- Snapshot{Path: path, Data: m.snapshotLocked(path)}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if _, ok := m.subs[sub]; ok {
			delete(m.subs, sub)
			close(sub.ch)
		}
		m.mu.Unlock()
	}()

	return sub.ch, nil
}

// ReadOnce implements Store.
func (m *MemStore) ReadOnce(_ context.Context, path string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.snapshotLocked(path)
	return data, data != nil, nil
}

// WriteAtomic implements Store. Values are normalised through JSON so
// the tree always holds the wire representation.
func (m *MemStore) WriteAtomic(_ context.Context, writes map[string]any) error {
	normalised := make(map[string]any, len(writes))
	for path, value := range writes {
		if value == nil {
			normalised[path] = nil
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", path, err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("decode value for %s: %w", path, err)
		}
		normalised[path] = decoded
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for path, value := range normalised {
		m.setLocked(path, value)
	}
	m.notifyLocked(normalised)
	return nil
}

// CreateWithDisconnectCleanup implements Store. The path is removed,
// and the cleanup hooks run, once ctx is done.
func (m *MemStore) CreateWithDisconnectCleanup(ctx context.Context, path string, value any) error {
	if err := m.WriteAtomic(ctx, map[string]any{path: value}); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		m.RemoveForCleanup(path)
	}()
	return nil
}

// RemoveForCleanup deletes path as a disconnect cleanup and fires the
// cleanup hooks. The websocket server calls this directly for its
// remote clients.
func (m *MemStore) RemoveForCleanup(path string) {
	_ = m.WriteAtomic(context.Background(), map[string]any{path: nil})
	m.mu.Lock()
	hooks := append([]func(string){}, m.cleanups...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(path)
	}
}

// Close implements Store. MemStore has no connection to tear down.
func (m *MemStore) Close() error { return nil }

func (m *MemStore) snapshotLocked(path string) json.RawMessage {
	node := m.lookupLocked(path)
	if node == nil {
		return nil
	}
	data, err := json.Marshal(node)
	if err != nil {
		return nil
	}
	return data
}

func (m *MemStore) lookupLocked(path string) any {
	var node any = m.tree
	for _, seg := range splitPath(path) {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = obj[seg]
		if !ok {
			return nil
		}
	}
	return node
}

func (m *MemStore) setLocked(path string, value any) {
	segs := splitPath(path)
	if len(segs) == 0 {
		if obj, ok := value.(map[string]any); ok {
			m.tree = obj
		} else if value == nil {
			m.tree = make(map[string]any)
		}
		return
	}

	node := m.tree
	parents := make([]map[string]any, 0, len(segs))
	for _, seg := range segs[:len(segs)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}

	last := segs[len(segs)-1]
	if value == nil {
		delete(node, last)
		// Prune emptied ancestors so absent paths read as absent.
		for i := len(parents) - 1; i >= 0; i-- {
			if len(node) > 0 {
				break
			}
			delete(parents[i], segs[i])
			node = parents[i]
		}
		return
	}
	node[last] = value
}

func (m *MemStore) notifyLocked(writes map[string]any) {
	for sub := range m.subs {
		if sub.dead {
			continue
		}
		touched := false
		for path := range writes {
			if related(path, sub.path) {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		snap := Snapshot{Path: sub.path, Data: m.snapshotLocked(sub.path)}
		select {
		case sub.ch <- snap:
		default:
			sub.dead = true
			delete(m.subs, sub)
			close(sub.ch)
		}
	}
}
