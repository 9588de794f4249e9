// Package room is the client side of a table: it creates or joins a
// room on the store, feeds table snapshots to the local view, turns
// player actions into atomic multi-path writes, and runs the two duties
// only the host performs — the dealer automation and host migration.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/blackjacktable/internal/deck"
	"github.com/lox/blackjacktable/internal/game"
	"github.com/lox/blackjacktable/internal/roomid"
	"github.com/lox/blackjacktable/internal/store"
)

var (
	// ErrRoomNotFound is returned when joining a code with no table
	// behind it, or when the table disappears under a live session.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned when code generation keeps colliding,
	// which at 36^4 rooms means something is very wrong.
	ErrRoomExists = errors.New("could not allocate an unused room code")
)

const (
	roomsRoot        = "rooms"
	configRoot       = "config"
	createAttempts   = 5
	defaultBalance   = 1000
	defaultDraw      = 900 * time.Millisecond
	defaultResolve   = 600 * time.Millisecond
	updateBufferSize = 64
)

// TableConfig is the game configuration the server publishes at the
// store's config path. Sessions apply it to every option the caller
// did not set explicitly.
type TableConfig struct {
	StartingBalance int `json:"startingBalance"`
	Decks           int `json:"decks"`
	DealerDrawMs    int `json:"dealerDrawMs"`
	DealerResolveMs int `json:"dealerResolveMs"`
}

// PublishConfig writes the table configuration joining clients pick up.
func PublishConfig(ctx context.Context, st store.Store, cfg TableConfig) error {
	return st.WriteAtomic(ctx, map[string]any{configRoot: cfg})
}

// applyStoreConfig overlays the server-published configuration onto
// opts. Explicit caller options win; a missing or undecodable config
// path leaves the defaults in place.
func applyStoreConfig(ctx context.Context, st store.Store, opts Options) Options {
	data, ok, err := st.ReadOnce(ctx, configRoot)
	if err != nil || !ok {
		return opts
	}
	var cfg TableConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return opts
	}
	if opts.StartingBalance == 0 && cfg.StartingBalance > 0 {
		opts.StartingBalance = cfg.StartingBalance
	}
	if opts.DrawDelay == 0 && cfg.DealerDrawMs > 0 {
		opts.DrawDelay = time.Duration(cfg.DealerDrawMs) * time.Millisecond
	}
	if opts.ResolveDelay == 0 && cfg.DealerResolveMs > 0 {
		opts.ResolveDelay = time.Duration(cfg.DealerResolveMs) * time.Millisecond
	}
	if opts.NewShoe == nil && cfg.Decks > 0 {
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		decks := cfg.Decks
		opts.NewShoe = func() deck.Shoe {
			return deck.NewShoe(decks, rng)
		}
	}
	return opts
}

// Options tune a session. The zero value works for production use.
type Options struct {
	Logger          *log.Logger
	Clock           quartz.Clock  // dealer pacing; mock in tests
	DrawDelay       time.Duration // pause before each dealer card
	ResolveDelay    time.Duration // pause before payout
	StartingBalance int
	// NewShoe builds the shoe for each deal. Defaults to a fresh
	// six-deck shoe; tests rig exact card orders through it.
	NewShoe func() deck.Shoe
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Clock == nil {
		o.Clock = quartz.NewReal()
	}
	if o.DrawDelay == 0 {
		o.DrawDelay = defaultDraw
	}
	if o.ResolveDelay == 0 {
		o.ResolveDelay = defaultResolve
	}
	if o.StartingBalance == 0 {
		o.StartingBalance = defaultBalance
	}
	if o.NewShoe == nil {
		rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		o.NewShoe = func() deck.Shoe {
			return deck.NewShoe(deck.DecksPerShoe, rng)
		}
	}
	return o
}

// Update is one observed table state. Err is set instead of Table when
// the room vanished or a snapshot failed to decode.
type Update struct {
	Table *game.Table
	Err   error
}

// Session is one participant's live connection to a room.
type Session struct {
	store    store.Store
	code     string
	playerID string
	logger   *log.Logger
	opts     Options

	mu           sync.Mutex
	table        *game.Table
	timerPending bool

	updates chan Update
	ctx     context.Context
	cancel  context.CancelFunc
}

// Create allocates a fresh room with the caller seated as host and
// returns a running session. The room code is re-checked against the
// store and regenerated on collision.
func Create(ctx context.Context, st store.Store, playerID, name string, opts Options) (*Session, error) {
	opts = applyStoreConfig(ctx, st, opts).withDefaults()

	var code string
	for attempt := 0; attempt < createAttempts; attempt++ {
		candidate := roomid.Generate()
		_, exists, err := st.ReadOnce(ctx, store.Join(roomsRoot, candidate))
		if err != nil {
			return nil, fmt.Errorf("check room code: %w", err)
		}
		if !exists {
			code = candidate
			break
		}
	}
	if code == "" {
		return nil, ErrRoomExists
	}

	table := game.NewTable(&game.Player{
		ID:       playerID,
		Name:     name,
		Balance:  opts.StartingBalance,
		JoinedAt: time.Now().UnixMilli(),
	})
	if err := st.WriteAtomic(ctx, map[string]any{store.Join(roomsRoot, code): table}); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	// Re-register our own player entry so the server removes it if we
	// disconnect.
	playerPath := store.Join(roomsRoot, code, "players", playerID)
	if err := st.CreateWithDisconnectCleanup(ctx, playerPath, table.Players[playerID]); err != nil {
		return nil, fmt.Errorf("register disconnect cleanup: %w", err)
	}

	return newSession(st, code, playerID, opts)
}

// Join seats the caller at an existing room and returns a running
// session.
func Join(ctx context.Context, st store.Store, code, playerID, name string, opts Options) (*Session, error) {
	opts = applyStoreConfig(ctx, st, opts).withDefaults()

	if err := roomid.Validate(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoomNotFound, err)
	}
	table, err := readTable(ctx, st, code)
	if err != nil {
		return nil, err
	}

	player := &game.Player{
		ID:       playerID,
		Name:     name,
		Balance:  opts.StartingBalance,
		JoinedAt: time.Now().UnixMilli(),
	}
	next, _, err := table.AddPlayer(player)
	if err != nil {
		return nil, err
	}
	playerPath := store.Join(roomsRoot, code, "players", playerID)
	if err := st.CreateWithDisconnectCleanup(ctx, playerPath, next.Players[playerID]); err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}

	return newSession(st, code, playerID, opts)
}

func newSession(st store.Store, code, playerID string, opts Options) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:    st,
		code:     code,
		playerID: playerID,
		logger:   opts.Logger.WithPrefix("room").With("room", code, "player", playerID),
		opts:     opts,
		updates:  make(chan Update, updateBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	snapshots, err := st.Subscribe(ctx, s.roomPath())
	if err != nil {
		cancel()
		return nil, err
	}
	go s.watch(snapshots)
	return s, nil
}

// Code returns the 4-character room code others use to join.
func (s *Session) Code() string { return s.code }

// PlayerID returns the identity this session acts as.
func (s *Session) PlayerID() string { return s.playerID }

// Updates streams every observed table state in commit order.
func (s *Session) Updates() <-chan Update { return s.updates }

// Table returns the latest observed snapshot, nil before the first one.
func (s *Session) Table() *game.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table
}

// Close leaves the room. The server-side disconnect hook removes our
// player entry once the store connection drops.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) roomPath() string {
	return store.Join(roomsRoot, s.code)
}

// watch is the reactive core: every committed change to the room
// arrives here as a full snapshot, updates the local view and triggers
// whatever host duty now applies.
func (s *Session) watch(snapshots <-chan store.Snapshot) {
	defer close(s.updates)
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			s.handleSnapshot(snap)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) handleSnapshot(snap store.Snapshot) {
	if snap.Data == nil {
		s.publish(Update{Err: ErrRoomNotFound})
		return
	}
	var table game.Table
	if err := json.Unmarshal(snap.Data, &table); err != nil {
		s.logger.Error("undecodable table snapshot", "error", err)
		s.publish(Update{Err: fmt.Errorf("decode table: %w", err)})
		return
	}

	s.mu.Lock()
	s.table = &table
	s.mu.Unlock()

	s.publish(Update{Table: &table})
	s.maybeMigrateHost(&table)
	s.maybeScheduleDealer(&table)
}

func (s *Session) publish(u Update) {
	select {
	case s.updates <- u:
	default:
		// The view only cares about the latest state; drop the oldest.
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- u:
		default:
		}
	}
}

// maybeMigrateHost promotes this client when every client's comparator
// agrees it is next. Only the winner writes, so there is no dueling.
func (s *Session) maybeMigrateHost(t *game.Table) {
	id, ok := t.HostCandidate()
	if !ok || id != s.playerID {
		return
	}
	s.logger.Info("promoting self to host")
	_, delta, err := t.PromoteHost(id)
	if err != nil {
		s.logger.Error("host promotion failed", "error", err)
		return
	}
	if err := s.write(delta); err != nil {
		s.logger.Error("host promotion write failed", "error", err)
	}
}

// write prefixes a table-relative delta with the room namespace and
// submits it as one atomic update.
func (s *Session) write(delta game.Delta) error {
	if len(delta) == 0 {
		return nil
	}
	writes := make(map[string]any, len(delta))
	for path, value := range delta {
		writes[store.Join(s.roomPath(), path)] = value
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	return s.store.WriteAtomic(ctx, writes)
}

// act runs one engine mutator against the latest snapshot and submits
// its delta. Validation failures surface only to this participant;
// nothing was written.
func (s *Session) act(fn func(t *game.Table) (*game.Table, game.Delta, error)) error {
	s.mu.Lock()
	table := s.table
	s.mu.Unlock()
	if table == nil {
		return ErrRoomNotFound
	}
	_, delta, err := fn(table)
	if err != nil {
		return err
	}
	return s.write(delta)
}

// Bet stages chips on the next deal.
func (s *Session) Bet(amount int) error {
	return s.act(func(t *game.Table) (*game.Table, game.Delta, error) {
		return t.PlaceBet(s.playerID, amount)
	})
}

// Deal starts the round. Host only.
func (s *Session) Deal() error {
	return s.act(func(t *game.Table) (*game.Table, game.Delta, error) {
		return t.Deal(s.playerID, s.opts.NewShoe())
	})
}

// Hit draws onto the active hand.
func (s *Session) Hit() error {
	return s.act(func(t *game.Table) (*game.Table, game.Delta, error) {
		return t.Hit(s.playerID)
	})
}

// Stand ends the active hand.
func (s *Session) Stand() error {
	return s.act(func(t *game.Table) (*game.Table, game.Delta, error) {
		return t.Stand(s.playerID)
	})
}

// Double doubles down on the active hand.
func (s *Session) Double() error {
	return s.act(func(t *game.Table) (*game.Table, game.Delta, error) {
		return t.Double(s.playerID)
	})
}

// Split splits the active pair.
func (s *Session) Split() error {
	return s.act(func(t *game.Table) (*game.Table, game.Delta, error) {
		return t.Split(s.playerID)
	})
}

// NextRound resets the table for fresh bets. Host only.
func (s *Session) NextRound() error {
	return s.act(func(t *game.Table) (*game.Table, game.Delta, error) {
		return t.NextRound(s.playerID)
	})
}

func readTable(ctx context.Context, st store.Store, code string) (*game.Table, error) {
	data, ok, err := st.ReadOnce(ctx, store.Join(roomsRoot, code))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRoomNotFound
	}
	var table game.Table
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	return &table, nil
}
