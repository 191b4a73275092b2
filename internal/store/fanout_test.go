package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupplay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFanout_PublishesToRoomSubscribersOnly(t *testing.T) {
	f := NewFanout(testLogger(), 4)
	a := f.Add("AAAAAA")
	b := f.Add("AAAAAA")
	other := f.Add("BBBBBB")

	n := f.Publish(domain.NewDeletedEvent("AAAAAA"))
	assert.Equal(t, 2, n)

	for _, sub := range []*Subscription{a, b} {
		ev := <-sub.Events()
		assert.Equal(t, domain.ChangeDeleted, ev.Kind)
	}
	assert.Empty(t, other.Events())
}

func TestFanout_CloseRemovesSubscriber(t *testing.T) {
	f := NewFanout(testLogger(), 4)
	sub := f.Add("AAAAAA")
	require.Equal(t, 1, f.Count("AAAAAA"))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, f.Count("AAAAAA"))
	assert.Empty(t, f.Rooms())
	assert.Equal(t, 0, f.Publish(domain.NewDeletedEvent("AAAAAA")))

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestSubscription_DropsWhenFull(t *testing.T) {
	sub := NewSubscription("AAAAAA", 1, nil)
	assert.True(t, sub.Deliver(domain.NewDeletedEvent("AAAAAA")))
	assert.False(t, sub.Deliver(domain.NewDeletedEvent("AAAAAA")))

	sub.Close()
	assert.False(t, sub.Deliver(domain.NewDeletedEvent("AAAAAA")))
}

func TestFanout_CloseAll(t *testing.T) {
	f := NewFanout(testLogger(), 4)
	a := f.Add("AAAAAA")
	b := f.Add("BBBBBB")

	f.CloseAll()

	_, open := <-a.Events()
	assert.False(t, open)
	_, open = <-b.Events()
	assert.False(t, open)
	assert.Empty(t, f.Rooms())
}

func TestFanout_OnEmpty(t *testing.T) {
	f := NewFanout(testLogger(), 4)
	var emptied []string
	f.OnEmpty(func(roomID string) { emptied = append(emptied, roomID) })

	a := f.Add("AAAAAA")
	b := f.Add("AAAAAA")

	a.Close()
	assert.Empty(t, emptied)

	b.Close()
	assert.Equal(t, []string{"AAAAAA"}, emptied)
}
