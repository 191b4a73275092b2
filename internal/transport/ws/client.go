package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"groupplay/internal/domain"
	"groupplay/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Size of the send channel buffer
	sendBufferSize = 256

	// Time allowed for one store operation
	opTimeout = 10 * time.Second
)

// Client is one relay connection. It runs store operations on behalf of
// the peer and forwards events of the rooms it subscribed to.
type Client struct {
	conn    *websocket.Conn
	backend store.Backend
	connID  string
	send    chan []byte
	done    chan struct{}
	logger  *slog.Logger
	limiter *rate.Limiter
	mu      sync.Mutex
	closed  bool

	subsMu sync.Mutex
	subs   map[string]*store.Subscription // roomID -> subscription
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, backend store.Backend, connID string, limiter *rate.Limiter, logger *slog.Logger) *Client {
	return &Client{
		conn:    conn,
		backend: backend,
		connID:  connID,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		logger:  logger,
		limiter: limiter,
		subs:    make(map[string]*store.Subscription),
	}
}

// Send queues a message for the write pump
func (c *Client) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	select {
	case c.send <- data:
		return nil
	default:
		// Buffer full, message dropped
		c.logger.Warn("send buffer full, message dropped", "connID", c.connID)
		return nil
	}
}

// Close closes the connection and every subscription
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.subsMu.Lock()
	subs := c.subs
	c.subs = make(map[string]*store.Subscription)
	c.subsMu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	return c.conn.Close()
}

// Run starts the client's read and write pumps
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the WebSocket connection
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
// Queued messages are coalesced into one frame separated by newlines.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message from the client
func (c *Client) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", ErrCodeInvalidMessage, "Invalid message format")
		return
	}

	if c.limiter != nil && !c.limiter.Allow() {
		c.sendError(msg.ID, ErrCodeRateLimited, "Too many messages")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg.Type {
	case MsgCreate:
		var p CreatePayload
		if !c.decode(msg, &p) {
			return
		}
		c.reply(msg.ID, nil, c.backend.Create(ctx, p.Room))
	case MsgGet:
		var p RoomKeyPayload
		if !c.decode(msg, &p) {
			return
		}
		room, err := c.backend.Get(ctx, p.RoomID)
		c.reply(msg.ID, &room, err)
	case MsgUpdate:
		var p UpdatePayload
		if !c.decode(msg, &p) {
			return
		}
		c.reply(msg.ID, nil, c.backend.Update(ctx, p.RoomID, p.Update))
	case MsgDelete:
		var p RoomKeyPayload
		if !c.decode(msg, &p) {
			return
		}
		c.reply(msg.ID, nil, c.backend.Delete(ctx, p.RoomID))
	case MsgSubscribe:
		var p RoomKeyPayload
		if !c.decode(msg, &p) {
			return
		}
		c.reply(msg.ID, nil, c.subscribe(ctx, p.RoomID))
	case MsgUnsubscribe:
		var p RoomKeyPayload
		if !c.decode(msg, &p) {
			return
		}
		c.unsubscribe(p.RoomID)
		c.reply(msg.ID, nil, nil)
	case MsgBroadcast:
		var p BroadcastPayload
		if !c.decode(msg, &p) {
			return
		}
		c.reply(msg.ID, nil, c.backend.Broadcast(ctx, p.RoomID, p.Broadcast))
	case MsgPing:
		c.Send(NewServerMessage(msg.ID, MsgPong, nil))
	default:
		c.sendError(msg.ID, ErrCodeInvalidMessage, "Unknown message type")
	}
}

// decode unmarshals the payload of msg, replying with an error on failure
func (c *Client) decode(msg ClientMessage, v interface{}) bool {
	if len(msg.Payload) == 0 {
		c.sendError(msg.ID, ErrCodeInvalidMessage, "Payload is required")
		return false
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		c.sendError(msg.ID, ErrCodeInvalidMessage, "Invalid payload")
		return false
	}
	return true
}

// subscribe registers for events on a room and forwards them until unsubscribed
func (c *Client) subscribe(ctx context.Context, roomID string) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	if _, ok := c.subs[roomID]; ok {
		return nil
	}

	sub, err := c.backend.Subscribe(ctx, roomID)
	if err != nil {
		return err
	}
	c.subs[roomID] = sub

	go c.forward(sub)
	return nil
}

func (c *Client) unsubscribe(roomID string) {
	c.subsMu.Lock()
	sub, ok := c.subs[roomID]
	delete(c.subs, roomID)
	c.subsMu.Unlock()

	if ok {
		sub.Close()
	}
}

// forward relays subscription events to the peer
func (c *Client) forward(sub *store.Subscription) {
	for event := range sub.Events() {
		if err := c.Send(NewServerMessage("", MsgEvent, event)); err != nil {
			c.logger.Debug("failed to send to client", "connID", c.connID, "error", err)
		}
	}
}

// reply sends the outcome of a store operation
func (c *Client) reply(id string, room *domain.Room, err error) {
	if err != nil {
		code := ErrorCode(err)
		if code == ErrCodeInternalError {
			c.logger.Error("store operation failed", "connID", c.connID, "error", err)
		}
		c.sendError(id, code, err.Error())
		return
	}
	c.Send(NewServerMessage(id, MsgResult, &ResultPayload{Room: room}))
}

// sendError sends an error message to the client
func (c *Client) sendError(id, code, message string) {
	payload := &ErrorPayload{
		Code:    code,
		Message: message,
	}

	c.Send(NewServerMessage(id, MsgError, payload))
}
