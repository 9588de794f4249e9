// Package store defines the replicated key-path store the table engine
// runs against, and an in-process implementation of it.
//
// The contract mirrors what the engine needs and nothing more: whole
// subtree subscriptions, one-shot reads, atomic multi-path writes and
// create-with-disconnect-cleanup. There is no compare-and-swap; a write
// is applied from whatever snapshot the writer last observed and the
// later write wins at each touched path.
package store

import (
	"context"
	"encoding/json"
	"strings"
)

// Snapshot is one full-subtree notification. Data is nil when the
// subtree no longer exists.
type Snapshot struct {
	Path string
	Data json.RawMessage
}

// Store is the replicated store contract. All writes are durable before
// the call returns, and subscribers observe writes in the order they
// were committed.
type Store interface {
	// Subscribe streams the full subtree under path, first the current
	// value and then once per committed change touching the subtree.
	// The stream closes when ctx is done.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, error)

	// ReadOnce returns the current subtree under path, ok=false when
	// absent.
	ReadOnce(ctx context.Context, path string) (json.RawMessage, bool, error)

	// WriteAtomic applies every path->value entry as a single
	// all-or-nothing write. A nil value deletes the path.
	WriteAtomic(ctx context.Context, writes map[string]any) error

	// CreateWithDisconnectCleanup writes value at path and registers a
	// hook removing the path when this client disconnects.
	CreateWithDisconnectCleanup(ctx context.Context, path string, value any) error

	// Close releases the client's resources and fires its cleanup hooks.
	Close() error
}

// Join builds a store path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// related reports whether a write at one path is visible to a
// subscription at the other: equal, ancestor or descendant.
func related(a, b string) bool {
	return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
