// Package storeserver exposes a MemStore to remote clients over
// websockets. It is the replication substrate the tables run on, plus
// the small directory duties that sit outside the engine: removing a
// departed player's path and garbage-collecting rooms left empty.
package storeserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/blackjacktable/internal/store"
)

// Server is the websocket store server.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	store    *store.MemStore
	logger   *log.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// New creates a server replicating st.
func New(addr string, st *store.MemStore, logger *log.Logger) *Server {
	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		store:  st,
		logger: logger.WithPrefix("storeserver"),
		conns:  make(map[*conn]struct{}),
	}
	st.OnCleanup(s.collectEmptyRoom)
	return s
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/store", s.handleStore)
	mux.HandleFunc("/health", s.handleHealth)

	srv := &http.Server{Addr: s.addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("store server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		s.mu.Lock()
		for c := range s.conns {
			c.close()
		}
		s.mu.Unlock()
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(ws, s.store, s.logger)
	s.mu.Lock()
	s.conns[c] = struct{}{}
	total := len(s.conns)
	s.mu.Unlock()
	s.logger.Info("client connected", "total", total)

	c.start()
	go func() {
		<-c.done()
		s.mu.Lock()
		delete(s.conns, c)
		total := len(s.conns)
		s.mu.Unlock()
		s.logger.Info("client disconnected", "total", total)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// collectEmptyRoom destroys a room once its last player path is removed
// by disconnect cleanup. Tables with zero players are directory litter;
// the engine never deletes them itself.
func (s *Server) collectEmptyRoom(path string) {
	segs := strings.Split(path, "/")
	if len(segs) < 4 || segs[0] != "rooms" || segs[2] != "players" {
		return
	}
	roomPath := store.Join(segs[0], segs[1])
	_, ok, err := s.store.ReadOnce(context.Background(), store.Join(roomPath, "players"))
	if err != nil || ok {
		return
	}
	s.logger.Info("collecting empty room", "room", segs[1])
	_ = s.store.WriteAtomic(context.Background(), map[string]any{roomPath: nil})
}
