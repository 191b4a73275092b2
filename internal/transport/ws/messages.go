package ws

import (
	"encoding/json"
	"errors"
	"time"

	"groupplay/internal/domain"
)

// MessageType represents the type of WebSocket message
type MessageType string

// Client → Server message types. Each carries a request id echoed in the reply.
const (
	MsgCreate      MessageType = "create"
	MsgGet         MessageType = "get"
	MsgUpdate      MessageType = "update"
	MsgDelete      MessageType = "delete"
	MsgSubscribe   MessageType = "subscribe"
	MsgUnsubscribe MessageType = "unsubscribe"
	MsgBroadcast   MessageType = "broadcast"
	MsgPing        MessageType = "ping"
)

// Server → Client message types
const (
	MsgResult MessageType = "result"
	MsgError  MessageType = "error"
	MsgEvent  MessageType = "event" // pushed room change, no request id
	MsgPong   MessageType = "pong"
)

// ClientMessage represents a message from client to server
type ClientMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewServerMessage creates a new server message with current timestamp
func NewServerMessage(id string, msgType MessageType, payload interface{}) *ServerMessage {
	return &ServerMessage{
		ID:        id,
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Client message payloads

// CreatePayload is the payload for create message
type CreatePayload struct {
	Room domain.Room `json:"room"`
}

// RoomKeyPayload is the payload for get, delete, subscribe and unsubscribe messages
type RoomKeyPayload struct {
	RoomID string `json:"roomId"`
}

// UpdatePayload is the payload for update message
type UpdatePayload struct {
	RoomID string            `json:"roomId"`
	Update domain.RoomUpdate `json:"update"`
}

// BroadcastPayload is the payload for broadcast message
type BroadcastPayload struct {
	RoomID    string           `json:"roomId"`
	Broadcast domain.Broadcast `json:"broadcast"`
}

// Server message payloads

// ResultPayload is the payload for result message. Room is set for get.
type ResultPayload struct {
	Room *domain.Room `json:"room,omitempty"`
}

// ErrorPayload is the payload for error message
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeRoomNotFound     = "ROOM_NOT_FOUND"
	ErrCodeRoomExists       = "ROOM_EXISTS"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// ErrorCode maps a store error to its wire code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, domain.ErrRoomExists):
		return ErrCodeRoomExists
	case errors.Is(err, domain.ErrStoreUnavailable):
		return ErrCodeStoreUnavailable
	default:
		return ErrCodeInternalError
	}
}

// CodeError maps a wire code back to the matching sentinel, keeping the server message.
func CodeError(p ErrorPayload) error {
	var base error
	switch p.Code {
	case ErrCodeRoomNotFound:
		base = domain.ErrRoomNotFound
	case ErrCodeRoomExists:
		base = domain.ErrRoomExists
	case ErrCodeStoreUnavailable, ErrCodeRateLimited:
		base = domain.ErrStoreUnavailable
	default:
		return &RemoteError{Code: p.Code, Message: p.Message}
	}
	if p.Message == "" || p.Message == base.Error() {
		return base
	}
	return &RemoteError{Code: p.Code, Message: p.Message, base: base}
}

// RemoteError is an error reported by the relay
type RemoteError struct {
	Code    string
	Message string
	base    error
}

func (e *RemoteError) Error() string {
	return e.Code + ": " + e.Message
}

// Unwrap returns the sentinel the code maps to, if any.
func (e *RemoteError) Unwrap() error {
	return e.base
}
