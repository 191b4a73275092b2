// Package remote is a room backend that talks to a relay server over WebSocket.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"groupplay/internal/domain"
	"groupplay/internal/store"
	"groupplay/internal/transport/ws"
)

const (
	writeWait          = 10 * time.Second
	unsubscribeTimeout = 5 * time.Second
)

// ErrClosed is returned for calls made after the connection went away
var ErrClosed = errors.New("relay connection closed")

// frame is a server message with its payload left raw
type frame struct {
	ID      string          `json:"id,omitempty"`
	Type    ws.MessageType  `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is a store.Backend backed by a relay connection
type Client struct {
	conn   *websocket.Conn
	fanout *store.Fanout
	logger *slog.Logger

	writeMu sync.Mutex
	subMu   sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan frame
	nextID    atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

var _ store.Backend = (*Client)(nil)

// Dial connects to the relay at url, e.g. ws://localhost:8080/ws
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	c := &Client{
		conn:    conn,
		fanout:  store.NewFanout(logger, store.DefaultBuffer),
		logger:  logger,
		pending: make(map[string]chan frame),
		done:    make(chan struct{}),
	}
	c.fanout.OnEmpty(func(roomID string) {
		go c.unsubscribe(roomID)
	})

	go c.readLoop()

	return c, nil
}

// Create inserts a new room
func (c *Client) Create(ctx context.Context, room domain.Room) error {
	_, err := c.call(ctx, ws.MsgCreate, ws.CreatePayload{Room: room})
	return err
}

// Get fetches a room
func (c *Client) Get(ctx context.Context, roomID string) (domain.Room, error) {
	raw, err := c.call(ctx, ws.MsgGet, ws.RoomKeyPayload{RoomID: roomID})
	if err != nil {
		return domain.Room{}, err
	}

	var result ws.ResultPayload
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Room{}, fmt.Errorf("%w: decode room: %w", domain.ErrStoreUnavailable, err)
	}
	if result.Room == nil {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return *result.Room, nil
}

// Update writes a partial update
func (c *Client) Update(ctx context.Context, roomID string, u domain.RoomUpdate) error {
	_, err := c.call(ctx, ws.MsgUpdate, ws.UpdatePayload{RoomID: roomID, Update: u})
	return err
}

// Delete removes a room
func (c *Client) Delete(ctx context.Context, roomID string) error {
	_, err := c.call(ctx, ws.MsgDelete, ws.RoomKeyPayload{RoomID: roomID})
	return err
}

// Broadcast publishes an application message on a room topic
func (c *Client) Broadcast(ctx context.Context, roomID string, msg domain.Broadcast) error {
	_, err := c.call(ctx, ws.MsgBroadcast, ws.BroadcastPayload{RoomID: roomID, Broadcast: msg})
	return err
}

// Subscribe registers for events on a room. The relay is asked to forward
// the room only for the first local subscriber.
func (c *Client) Subscribe(ctx context.Context, roomID string) (*store.Subscription, error) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.fanout.Count(roomID) == 0 {
		if _, err := c.call(ctx, ws.MsgSubscribe, ws.RoomKeyPayload{RoomID: roomID}); err != nil {
			return nil, err
		}
	}
	return c.fanout.Add(roomID), nil
}

// unsubscribe stops relay forwarding once nobody locally listens to roomID
func (c *Client) unsubscribe(roomID string) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.fanout.Count(roomID) > 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()

	if _, err := c.call(ctx, ws.MsgUnsubscribe, ws.RoomKeyPayload{RoomID: roomID}); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Debug("unsubscribe failed", "roomCode", roomID, "error", err)
	}
}

// Close closes the connection and every subscription
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
		<-c.done
	})
	return err
}

// call sends one request and waits for the reply with the same id
func (c *Client) call(ctx context.Context, typ ws.MessageType, payload interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	id := strconv.FormatUint(c.nextID.Add(1), 10)
	data, err := json.Marshal(ws.ClientMessage{ID: id, Type: typ, Payload: raw})
	if err != nil {
		return nil, err
	}

	reply := make(chan frame, 1)
	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(data); err != nil {
		return nil, err
	}

	select {
	case f := <-reply:
		if f.Type == ws.MsgError {
			var p ws.ErrorPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				return nil, fmt.Errorf("%w: decode error reply: %w", domain.ErrStoreUnavailable, err)
			}
			return nil, ws.CodeError(p)
		}
		return f.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, ErrClosed)
	}
}

func (c *Client) write(data []byte) error {
	select {
	case <-c.done:
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, ErrClosed)
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// readLoop routes replies to pending calls and events to subscribers.
// The relay may coalesce several messages into one frame, one per line.
func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		c.fanout.CloseAll()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("relay connection lost", "error", err)
			}
			return
		}

		for _, line := range bytes.Split(message, []byte{'\n'}) {
			if len(line) == 0 {
				continue
			}
			c.route(line)
		}
	}
}

func (c *Client) route(line []byte) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		c.logger.Warn("invalid relay message", "error", err)
		return
	}

	if f.Type == ws.MsgEvent {
		var event domain.ChangeEvent
		if err := json.Unmarshal(f.Payload, &event); err != nil {
			c.logger.Warn("invalid relay event", "error", err)
			return
		}
		c.fanout.Publish(event)
		return
	}

	if f.ID == "" {
		c.logger.Debug("unsolicited relay message", "type", f.Type)
		return
	}

	c.pendingMu.Lock()
	reply, ok := c.pending[f.ID]
	c.pendingMu.Unlock()

	if !ok {
		return
	}
	select {
	case reply <- f:
	default:
	}
}
