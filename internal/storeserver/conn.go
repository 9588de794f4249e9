package storeserver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/blackjacktable/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1 << 20
)

// conn is one client connection: its subscriptions and the paths it
// asked to have removed on disconnect.
type conn struct {
	ws     *websocket.Conn
	store  *store.MemStore
	send   chan *store.Message
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	subCancels   map[string]context.CancelFunc
	cleanupPaths []string

	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, st *store.MemStore, logger *log.Logger) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		ws:         ws,
		store:      st,
		send:       make(chan *store.Message, 256),
		logger:     logger.WithPrefix("conn"),
		ctx:        ctx,
		cancel:     cancel,
		subCancels: make(map[string]context.CancelFunc),
	}
}

func (c *conn) start() {
	go c.writePump()
	go c.readPump()
}

func (c *conn) done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.Close()

		c.mu.Lock()
		cleanups := append([]string(nil), c.cleanupPaths...)
		c.mu.Unlock()
		// Fire the client's disconnect hooks after the connection is
		// gone, mirroring the server-side remove-on-disconnect contract.
		for _, path := range cleanups {
			c.logger.Info("disconnect cleanup", "path", path)
			c.store.RemoveForCleanup(path)
		}
	})
}

func (c *conn) enqueue(msg *store.Message) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	default:
		c.logger.Warn("send buffer full, closing connection")
		c.close()
	}
}

func (c *conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg store.Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *conn) handleMessage(msg *store.Message) {
	c.logger.Debug("received message", "type", msg.Type, "requestId", msg.RequestID)

	switch msg.Type {
	case store.MessageTypeSubscribe:
		var data store.SubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "failed to parse subscribe data")
			return
		}
		c.handleSubscribe(data.Path)

	case store.MessageTypeUnsubscribe:
		var data store.UnsubscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "failed to parse unsubscribe data")
			return
		}
		c.handleUnsubscribe(data.Path)

	case store.MessageTypeWrite:
		var data store.WriteData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "failed to parse write data")
			return
		}
		c.handleWrite(msg.RequestID, data)

	case store.MessageTypeCreate:
		var data store.CreateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "failed to parse create data")
			return
		}
		c.handleCreate(msg.RequestID, data)

	case store.MessageTypeRead:
		var data store.ReadData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg.RequestID, "invalid_message", "failed to parse read data")
			return
		}
		c.handleRead(msg.RequestID, data.Path)

	default:
		c.sendError(msg.RequestID, "unknown_message_type", "unknown message type: "+msg.Type.String())
	}
}

func (c *conn) handleSubscribe(path string) {
	c.mu.Lock()
	if _, ok := c.subCancels[path]; ok {
		c.mu.Unlock()
		return
	}
	subCtx, cancel := context.WithCancel(c.ctx)
	c.subCancels[path] = cancel
	c.mu.Unlock()

	ch, err := c.store.Subscribe(subCtx, path)
	if err != nil {
		cancel()
		c.sendError("", "subscribe_failed", err.Error())
		return
	}
	go func() {
		for snap := range ch {
			out, err := store.NewMessage(store.MessageTypeSnapshot, store.SnapshotData{
				Path: snap.Path,
				Data: snap.Data,
			})
			if err != nil {
				continue
			}
			c.enqueue(out)
		}
	}()
}

func (c *conn) handleUnsubscribe(path string) {
	c.mu.Lock()
	cancel, ok := c.subCancels[path]
	if ok {
		delete(c.subCancels, path)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *conn) handleWrite(requestID string, data store.WriteData) {
	writes := make(map[string]any, len(data.Writes))
	for path, raw := range data.Writes {
		if len(raw) == 0 || string(raw) == "null" {
			writes[path] = nil
			continue
		}
		writes[path] = raw
	}
	if err := c.store.WriteAtomic(c.ctx, writes); err != nil {
		c.sendError(requestID, "write_failed", err.Error())
		return
	}
	c.sendAck(requestID)
}

func (c *conn) handleCreate(requestID string, data store.CreateData) {
	if err := c.store.WriteAtomic(c.ctx, map[string]any{data.Path: data.Value}); err != nil {
		c.sendError(requestID, "create_failed", err.Error())
		return
	}
	c.mu.Lock()
	c.cleanupPaths = append(c.cleanupPaths, data.Path)
	c.mu.Unlock()
	c.sendAck(requestID)
}

func (c *conn) handleRead(requestID, path string) {
	data, exists, err := c.store.ReadOnce(c.ctx, path)
	if err != nil {
		c.sendError(requestID, "read_failed", err.Error())
		return
	}
	msg, err := store.NewMessage(store.MessageTypeReadResult, store.ReadResultData{
		Path:   path,
		Data:   data,
		Exists: exists,
	})
	if err != nil {
		return
	}
	msg.RequestID = requestID
	c.enqueue(msg)
}

func (c *conn) sendAck(requestID string) {
	msg, err := store.NewMessage(store.MessageTypeAck, struct{}{})
	if err != nil {
		return
	}
	msg.RequestID = requestID
	c.enqueue(msg)
}

func (c *conn) sendError(requestID, code, message string) {
	msg, err := store.NewMessage(store.MessageTypeError, store.ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	msg.RequestID = requestID
	c.enqueue(msg)
}
