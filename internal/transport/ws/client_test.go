package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupplay/internal/domain"
	"groupplay/internal/store/memory"
)

func dialRelay(t *testing.T, ratePerSecond float64, burst int) *websocket.Conn {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := memory.New(logger, memory.Options{})
	srv := httptest.NewServer(NewHandler(backend, ratePerSecond, burst, logger))
	t.Cleanup(func() {
		srv.Close()
		backend.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type rawServerMessage struct {
	ID      string          `json:"id"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// replies buffers server messages, which may arrive several to a frame
type replies struct {
	conn  *websocket.Conn
	queue []rawServerMessage
}

func (r *replies) read(t *testing.T) {
	t.Helper()
	r.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := r.conn.ReadMessage()
	require.NoError(t, err)

	for _, line := range strings.Split(string(data), "\n") {
		var m rawServerMessage
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		r.queue = append(r.queue, m)
	}
}

// next returns the reply with the given request id
func (r *replies) next(t *testing.T, id string) rawServerMessage {
	t.Helper()
	for attempt := 0; attempt < 10; attempt++ {
		for i, m := range r.queue {
			if m.ID == id {
				r.queue = append(r.queue[:i], r.queue[i+1:]...)
				return m
			}
		}
		r.read(t)
	}
	t.Fatalf("no reply for %s", id)
	return rawServerMessage{}
}

func send(t *testing.T, conn *websocket.Conn, id string, typ MessageType, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ClientMessage{ID: id, Type: typ, Payload: raw}))
}

func TestClient_RelaysStoreOperations(t *testing.T) {
	conn := dialRelay(t, 0, 0)
	r := &replies{conn: conn}

	host := domain.NewPlayer("host", "Host", time.Now().UTC())
	room := domain.NewRoom("ABC234", host, domain.CategoryDare, []string{"x"}, time.Now().UTC())

	send(t, conn, "1", MsgCreate, CreatePayload{Room: room})
	assert.Equal(t, MsgResult, r.next(t, "1").Type)

	send(t, conn, "2", MsgGet, RoomKeyPayload{RoomID: "ABC234"})
	reply := r.next(t, "2")
	require.Equal(t, MsgResult, reply.Type)
	var result ResultPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &result))
	require.NotNil(t, result.Room)
	assert.Equal(t, "host", result.Room.HostID)

	send(t, conn, "3", MsgGet, RoomKeyPayload{RoomID: "NOPE22"})
	reply = r.next(t, "3")
	require.Equal(t, MsgError, reply.Type)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &e))
	assert.Equal(t, ErrCodeRoomNotFound, e.Code)

	send(t, conn, "4", MessageType("teleport"), RoomKeyPayload{})
	reply = r.next(t, "4")
	require.NoError(t, json.Unmarshal(reply.Payload, &e))
	assert.Equal(t, ErrCodeInvalidMessage, e.Code)
}

func TestClient_RateLimited(t *testing.T) {
	conn := dialRelay(t, 0.001, 2)
	r := &replies{conn: conn}

	for _, id := range []string{"1", "2", "3"} {
		send(t, conn, id, MsgPing, struct{}{})
	}

	assert.Equal(t, MsgPong, r.next(t, "1").Type)
	assert.Equal(t, MsgPong, r.next(t, "2").Type)

	reply := r.next(t, "3")
	require.Equal(t, MsgError, reply.Type)
	var e ErrorPayload
	require.NoError(t, json.Unmarshal(reply.Payload, &e))
	assert.Equal(t, ErrCodeRateLimited, e.Code)
}
