package memory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupplay/internal/domain"
	"groupplay/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	t.Cleanup(func() { s.Close() })
	return s
}

func testRoom(code string) domain.Room {
	host := domain.NewPlayer("host", "Host", time.Now())
	return domain.NewRoom(code, host, domain.CategoryChill, []string{"a", "b", "c"}, time.Now())
}

func nextEvent(t *testing.T, sub *store.Subscription) domain.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.ChangeEvent{}
	}
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "NOPE22")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	room := testRoom("ABC234")
	require.NoError(t, s.Create(ctx, room))
	assert.ErrorIs(t, s.Create(ctx, room), domain.ErrRoomExists)

	got, err := s.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, "host", got.HostID)

	idx := 2
	require.NoError(t, s.Update(ctx, "ABC234", domain.RoomUpdate{CurrentPromptIndex: &idx}))
	got, err = s.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentPromptIndex)
	assert.Equal(t, []string{"a", "b", "c"}, got.Prompts)

	assert.ErrorIs(t, s.Update(ctx, "NOPE22", domain.RoomUpdate{}), domain.ErrRoomNotFound)

	require.NoError(t, s.Delete(ctx, "ABC234"))
	assert.ErrorIs(t, s.Delete(ctx, "ABC234"), domain.ErrRoomNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Create(ctx, testRoom("ABC234")))

	got, err := s.Get(ctx, "ABC234")
	require.NoError(t, err)
	got.Players[0].Name = "mutated"

	again, err := s.Get(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, "Host", again.Players[0].Name)
}

func TestStore_NotifiesEverySubscriberIncludingWriter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	writer, err := s.Subscribe(ctx, "ABC234")
	require.NoError(t, err)
	reader, err := s.Subscribe(ctx, "ABC234")
	require.NoError(t, err)

	require.NoError(t, s.Create(ctx, testRoom("ABC234")))
	revealed := true
	require.NoError(t, s.Update(ctx, "ABC234", domain.RoomUpdate{Revealed: &revealed}))
	require.NoError(t, s.Broadcast(ctx, "ABC234", domain.EndedBroadcast(domain.EndReasonHostEnded)))
	require.NoError(t, s.Delete(ctx, "ABC234"))

	for _, sub := range []*store.Subscription{writer, reader} {
		ev := nextEvent(t, sub)
		assert.Equal(t, domain.ChangeInserted, ev.Kind)

		ev = nextEvent(t, sub)
		assert.Equal(t, domain.ChangeUpdated, ev.Kind)
		require.NotNil(t, ev.Room)
		assert.True(t, ev.Room.Revealed)
		assert.Len(t, ev.Room.Players, 1, "updates carry the full record")

		ev = nextEvent(t, sub)
		assert.Equal(t, domain.ChangeBroadcast, ev.Kind)
		require.NotNil(t, ev.Broadcast)
		assert.Equal(t, domain.EndReasonHostEnded, ev.Broadcast.Reason)

		ev = nextEvent(t, sub)
		assert.Equal(t, domain.ChangeDeleted, ev.Kind)
		assert.Equal(t, "ABC234", ev.RoomID)
	}
}

func TestStore_ReapStale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.staleTimeout = time.Hour

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Create(ctx, testRoom("OLD234")))

	now = now.Add(30 * time.Minute)
	require.NoError(t, s.Create(ctx, testRoom("NEW234")))

	sub, err := s.Subscribe(ctx, "OLD234")
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, s.reapStale())

	ev := nextEvent(t, sub)
	assert.Equal(t, domain.ChangeBroadcast, ev.Kind)
	assert.Equal(t, domain.EndReasonExpired, ev.Broadcast.Reason)
	assert.Equal(t, domain.ChangeDeleted, nextEvent(t, sub).Kind)

	_, err = s.Get(ctx, "OLD234")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	_, err = s.Get(ctx, "NEW234")
	assert.NoError(t, err)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	room := testRoom("ABC234")
	room.Players = append(room.Players, domain.NewPlayer("g", "Guest", time.Now()))
	require.NoError(t, s.Create(ctx, room))
	require.NoError(t, s.Create(ctx, testRoom("XYZ234")))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Rooms: 2, Players: 3}, stats)
}

func TestStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestStore(t)

	assert.ErrorIs(t, s.Create(ctx, testRoom("ABC234")), context.Canceled)
	_, err := s.Subscribe(ctx, "ABC234")
	assert.ErrorIs(t, err, context.Canceled)
}
