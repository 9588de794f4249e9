package store

import (
	"encoding/json"
	"time"
)

// MessageType discriminates wire envelopes between a store client and
// the store server.
type MessageType string

const (
	// Client -> server
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeWrite       MessageType = "write"
	MessageTypeCreate      MessageType = "create"
	MessageTypeRead        MessageType = "read"

	// Server -> client
	MessageTypeSnapshot   MessageType = "snapshot"
	MessageTypeReadResult MessageType = "read_result"
	MessageTypeAck        MessageType = "ack"
	MessageTypeError      MessageType = "error"
)

func (t MessageType) String() string { return string(t) }

// Message is the base wire envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client -> server payloads

type SubscribeData struct {
	Path string `json:"path"`
}

type UnsubscribeData struct {
	Path string `json:"path"`
}

type WriteData struct {
	// Writes maps store paths to JSON values; a JSON null deletes the
	// path. Applied by the server as one atomic multi-path update.
	Writes map[string]json.RawMessage `json:"writes"`
}

type CreateData struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

type ReadData struct {
	Path string `json:"path"`
}

// Server -> client payloads

type SnapshotData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ReadResultData struct {
	Path   string          `json:"path"`
	Data   json.RawMessage `json:"data,omitempty"`
	Exists bool            `json:"exists"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
