package remote

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupplay/internal/domain"
	"groupplay/internal/store"
	"groupplay/internal/store/memory"
	"groupplay/internal/transport/ws"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRelay starts a relay server over a memory backend and dials it.
func newRelay(t *testing.T) (*Client, *memory.Store) {
	t.Helper()

	backend := memory.New(testLogger(), memory.Options{})
	srv := httptest.NewServer(ws.NewHandler(backend, 0, 0, testLogger()))
	t.Cleanup(func() {
		srv.Close()
		backend.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, err := Dial(context.Background(), url, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return c, backend
}

func nextEvent(t *testing.T, sub *store.Subscription) domain.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return domain.ChangeEvent{}
	}
}

func TestClient_StoreOperations(t *testing.T) {
	c, backend := newRelay(t)
	ctx := context.Background()

	host := domain.NewPlayer("host", "Host", time.Now().UTC())
	room := domain.NewRoom("ABC234", host, domain.CategoryChill, []string{"a", "b"}, time.Now().UTC())

	require.NoError(t, c.Create(ctx, room))
	assert.ErrorIs(t, c.Create(ctx, room), domain.ErrRoomExists)

	started := true
	require.NoError(t, c.Update(ctx, "ABC234", domain.RoomUpdate{Started: &started}))

	got, err := c.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.True(t, got.Started)
	assert.Equal(t, "host", got.Players[0].ID)

	direct, err := backend.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.True(t, direct.Started)

	_, err = c.Get(ctx, "NOPE22")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.ErrorIs(t, c.Update(ctx, "NOPE22", domain.RoomUpdate{Started: &started}), domain.ErrRoomNotFound)

	require.NoError(t, c.Delete(ctx, "ABC234"))
	assert.ErrorIs(t, c.Delete(ctx, "ABC234"), domain.ErrRoomNotFound)
}

func TestClient_EventsReachEverySubscriber(t *testing.T) {
	writer, backend := newRelay(t)
	ctx := context.Background()

	sub, err := writer.Subscribe(ctx, "ABC234")
	require.NoError(t, err)
	second, err := writer.Subscribe(ctx, "ABC234")
	require.NoError(t, err)

	host := domain.NewPlayer("host", "Host", time.Now().UTC())
	require.NoError(t, writer.Create(ctx, domain.NewRoom("ABC234", host, domain.CategoryChill, nil, time.Now().UTC())))

	revealed := true
	require.NoError(t, backend.Update(ctx, "ABC234", domain.RoomUpdate{Revealed: &revealed}))
	require.NoError(t, writer.Broadcast(ctx, "ABC234", domain.EndedBroadcast(domain.EndReasonHostEnded)))
	require.NoError(t, writer.Delete(ctx, "ABC234"))

	for _, s := range []*store.Subscription{sub, second} {
		assert.Equal(t, domain.ChangeInserted, nextEvent(t, s).Kind)

		ev := nextEvent(t, s)
		assert.Equal(t, domain.ChangeUpdated, ev.Kind)
		require.NotNil(t, ev.Room)
		assert.True(t, ev.Room.Revealed)

		ev = nextEvent(t, s)
		assert.Equal(t, domain.ChangeBroadcast, ev.Kind)
		assert.Equal(t, domain.EndReasonHostEnded, ev.Broadcast.Reason)

		assert.Equal(t, domain.ChangeDeleted, nextEvent(t, s).Kind)
	}
}

func TestClient_CloseEndsSubscriptions(t *testing.T) {
	c, _ := newRelay(t)
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, "ABC234")
	require.NoError(t, err)

	require.NoError(t, c.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}

	_, err = c.Get(ctx, "ABC234")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
