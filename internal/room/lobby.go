package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lox/blackjacktable/internal/game"
	"github.com/lox/blackjacktable/internal/store"
)

// Listing is one row in the room directory.
type Listing struct {
	Code    string
	Status  game.Status
	Players int
	Open    bool // joinable right now
}

// Lobby reads the room directory once and returns the tables that
// currently exist, sorted by code. Rooms are joinable only while they
// sit in the betting phase.
func Lobby(ctx context.Context, st store.Store) ([]Listing, error) {
	data, ok, err := st.ReadOnce(ctx, roomsRoot)
	if err != nil {
		return nil, fmt.Errorf("read room directory: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var rooms map[string]struct {
		Status  game.Status                `json:"status"`
		Players map[string]json.RawMessage `json:"players"`
	}
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("decode room directory: %w", err)
	}

	listings := make([]Listing, 0, len(rooms))
	for code, r := range rooms {
		listings = append(listings, Listing{
			Code:    code,
			Status:  r.Status,
			Players: len(r.Players),
			Open:    r.Status == game.StatusBetting,
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].Code < listings[j].Code })
	return listings, nil
}
