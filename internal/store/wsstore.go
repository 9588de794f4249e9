package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// WSStore implements Store over a websocket connection to a store
// server. One WSStore is one client identity: the server ties
// disconnect cleanups to this connection's lifetime.
type WSStore struct {
	conn   *websocket.Conn
	logger *log.Logger

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	subs    map[string]*pathSub
	pending map[string]chan *Message
	nextID  atomic.Uint64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// pathSub is the fan-out state for one subscribed path. The last
// snapshot is cached so subscribers arriving after the server's initial
// send still start with the current value.
type pathSub struct {
	chans []chan Snapshot
	last  Snapshot
	seen  bool
}

// DialWSStore connects to a store server at url (ws://host:port/store).
func DialWSStore(ctx context.Context, url string, logger *log.Logger) (*WSStore, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial store server: %w", err)
	}
	cctx, cancel := context.WithCancel(context.Background())
	s := &WSStore{
		conn:    conn,
		logger:  logger.WithPrefix("wsstore"),
		subs:    make(map[string]*pathSub),
		pending: make(map[string]chan *Message),
		ctx:     cctx,
		cancel:  cancel,
	}
	go s.readPump()
	return s, nil
}

// Close tears the connection down; the server then fires this client's
// disconnect cleanups.
func (s *WSStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
		s.mu.Lock()
		for _, ps := range s.subs {
			for _, ch := range ps.chans {
				close(ch)
			}
		}
		s.subs = make(map[string]*pathSub)
		s.mu.Unlock()
	})
	return err
}

// Subscribe implements Store.
func (s *WSStore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	ch := make(chan Snapshot, subscriberBuffer)
	s.mu.Lock()
	ps, ok := s.subs[path]
	if !ok {
		ps = &pathSub{}
		s.subs[path] = ps
	}
	ps.chans = append(ps.chans, ch)
	if ps.seen {
		// The server only sends the initial snapshot to the first
		// subscriber; later ones get the cached value.
		ch <- ps.last
	}
	s.mu.Unlock()

	if !ok {
		msg, err := NewMessage(MessageTypeSubscribe, SubscribeData{Path: path})
		if err != nil {
			return nil, err
		}
		if err := s.send(msg); err != nil {
			return nil, err
		}
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
			return
		}
		s.mu.Lock()
		var last bool
		if ps, ok := s.subs[path]; ok {
			for i, c := range ps.chans {
				if c == ch {
					ps.chans = append(ps.chans[:i], ps.chans[i+1:]...)
					close(c)
					break
				}
			}
			if len(ps.chans) == 0 {
				delete(s.subs, path)
				last = true
			}
		}
		s.mu.Unlock()
		if last {
			if msg, err := NewMessage(MessageTypeUnsubscribe, UnsubscribeData{Path: path}); err == nil {
				_ = s.send(msg)
			}
		}
	}()

	return ch, nil
}

// ReadOnce implements Store.
func (s *WSStore) ReadOnce(ctx context.Context, path string) (json.RawMessage, bool, error) {
	msg, err := NewMessage(MessageTypeRead, ReadData{Path: path})
	if err != nil {
		return nil, false, err
	}
	resp, err := s.request(ctx, msg)
	if err != nil {
		return nil, false, err
	}
	var result ReadResultData
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, false, err
	}
	return result.Data, result.Exists, nil
}

// WriteAtomic implements Store. The call returns once the server has
// acknowledged the commit, so the write is durable before the caller
// proceeds.
func (s *WSStore) WriteAtomic(ctx context.Context, writes map[string]any) error {
	wire := make(map[string]json.RawMessage, len(writes))
	for path, value := range writes {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal value for %s: %w", path, err)
		}
		wire[path] = raw
	}
	msg, err := NewMessage(MessageTypeWrite, WriteData{Writes: wire})
	if err != nil {
		return err
	}
	_, err = s.request(ctx, msg)
	return err
}

// CreateWithDisconnectCleanup implements Store.
func (s *WSStore) CreateWithDisconnectCleanup(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	msg, err := NewMessage(MessageTypeCreate, CreateData{Path: path, Value: raw})
	if err != nil {
		return err
	}
	_, err = s.request(ctx, msg)
	return err
}

// request sends msg with a fresh request id and blocks until the
// matching ack/result or an error response arrives.
func (s *WSStore) request(ctx context.Context, msg *Message) (*Message, error) {
	id := fmt.Sprintf("req-%d", s.nextID.Add(1))
	msg.RequestID = id
	respCh := make(chan *Message, 1)

	s.mu.Lock()
	s.pending[id] = respCh
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.send(msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Type == MessageTypeError {
			var errData ErrorData
			if err := json.Unmarshal(resp.Data, &errData); err != nil {
				return nil, fmt.Errorf("store error: unparseable")
			}
			return nil, fmt.Errorf("store error %s: %s", errData.Code, errData.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ctx.Done():
		return nil, fmt.Errorf("store connection closed")
	}
}

func (s *WSStore) send(msg *Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(msg)
}

func (s *WSStore) readPump() {
	defer func() { _ = s.Close() }()
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("store connection lost", "error", err)
			}
			return
		}
		s.dispatch(&msg)
	}
}

func (s *WSStore) dispatch(msg *Message) {
	if msg.RequestID != "" {
		s.mu.Lock()
		respCh, ok := s.pending[msg.RequestID]
		s.mu.Unlock()
		if ok {
			respCh <- msg
		}
		return
	}

	if msg.Type != MessageTypeSnapshot {
		s.logger.Debug("ignoring unexpected message", "type", msg.Type)
		return
	}
	var snap SnapshotData
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		s.logger.Error("bad snapshot payload", "error", err)
		return
	}

	// Deliver under the lock so a concurrent unsubscribe cannot close a
	// channel mid-send. Sends never block: the buffer soaks bursts and a
	// full subscriber just skips one snapshot (a later one supersedes it).
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.subs[snap.Path]
	if !ok {
		return
	}
	ps.last = Snapshot{Path: snap.Path, Data: snap.Data}
	ps.seen = true
	for _, ch := range ps.chans {
		select {
		case ch <- ps.last:
		default:
			s.logger.Warn("dropping snapshot for slow subscriber", "path", snap.Path)
		}
	}
}
