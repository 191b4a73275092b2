package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"groupplay/internal/domain"
)

func submissionRoom(submitted ...bool) domain.Room {
	base := time.Now()
	r := domain.NewRoom("ABC234", domain.NewPlayer("host", "Host", base), domain.CategoryBuildYourOwn, nil, base)
	r.Players = append(r.Players, domain.NewPlayer("guest", "Guest", base.Add(time.Second)))
	r.Started = true
	r.PromptSubmissionPhase = true
	for i, s := range submitted {
		r.Players[i].PromptSubmitted = s
	}
	return r
}

func TestReduce_SnapshotIsIdempotent(t *testing.T) {
	m := NewMirror("guest", "ABC234", nil)
	room := submissionRoom(true, false)
	ev := Event{Kind: EventRecordUpdated, RoomID: "ABC234", Room: &room}

	once, sig := Reduce(m, ev)
	assert.True(t, sig.Changed)
	twice, _ := Reduce(once, ev)

	assert.Equal(t, once, twice)
	assert.Equal(t, room, *twice.Room)

	room.Players[0].Name = "changed after delivery"
	assert.Equal(t, "Host", twice.Room.Players[0].Name, "mirror holds its own copy")
}

func TestReduce_FullOverwrite(t *testing.T) {
	first := submissionRoom(true, true)
	second := submissionRoom(false, false)
	second.Players = second.Players[:1]

	m, _ := Reduce(NewMirror("host", "ABC234", nil), Event{Kind: EventRecordInserted, RoomID: "ABC234", Room: &first})
	m, _ = Reduce(m, Event{Kind: EventRecordUpdated, RoomID: "ABC234", Room: &second})

	assert.Len(t, m.Room.Players, 1)
	assert.False(t, m.Room.Players[0].PromptSubmitted)
}

func TestReduce_IgnoresOtherRooms(t *testing.T) {
	room := submissionRoom()
	m := NewMirror("guest", "ABC234", &room)

	other := submissionRoom()
	other.ID = "XYZ789"
	next, sig := Reduce(m, Event{Kind: EventRecordUpdated, RoomID: "XYZ789", Room: &other})

	assert.Equal(t, m, next)
	assert.False(t, sig.Changed)
}

func TestReduce_EndedExactlyOnce(t *testing.T) {
	room := submissionRoom()
	m := NewMirror("guest", "ABC234", &room)

	m, sig := Reduce(m, Event{Kind: EventBroadcastEnded, RoomID: "ABC234", Reason: domain.EndReasonHostEnded})
	assert.True(t, sig.Ended)
	assert.Equal(t, domain.EndReasonHostEnded, sig.EndReason)
	assert.Nil(t, m.Room)
	assert.True(t, m.Ended)

	again, sig := Reduce(m, Event{Kind: EventRecordDeleted, RoomID: "ABC234"})
	assert.False(t, sig.Ended)
	assert.False(t, sig.Changed)
	assert.Equal(t, m, again)
	assert.Equal(t, domain.EndReasonHostEnded, again.EndReason)
}

func TestReduce_BareDeleteIsRoomClosed(t *testing.T) {
	room := submissionRoom()
	m := NewMirror("guest", "ABC234", &room)

	m, sig := Reduce(m, Event{Kind: EventRecordDeleted, RoomID: "ABC234"})
	assert.True(t, sig.Ended)
	assert.Equal(t, domain.EndReasonRoomClosed, sig.EndReason)
	assert.Equal(t, domain.EndReasonRoomClosed, m.EndReason)
}

func TestReduce_HostGetsNoEndedSignal(t *testing.T) {
	room := submissionRoom()
	m := NewMirror("host", "ABC234", &room)

	m, sig := Reduce(m, Event{Kind: EventBroadcastEnded, RoomID: "ABC234", Reason: domain.EndReasonHostEnded})
	assert.False(t, sig.Ended)
	assert.True(t, m.Ended)
	assert.Nil(t, m.Room)
}

func TestReduce_CompileReadyEverySnapshot(t *testing.T) {
	m := NewMirror("host", "ABC234", nil)

	partial := submissionRoom(true, false)
	m, sig := Reduce(m, Event{Kind: EventRecordUpdated, RoomID: "ABC234", Room: &partial})
	assert.False(t, sig.CompileReady)

	full := submissionRoom(true, true)
	m, sig = Reduce(m, Event{Kind: EventRecordUpdated, RoomID: "ABC234", Room: &full})
	assert.True(t, sig.CompileReady)

	m, sig = Reduce(m, Event{Kind: EventRecordUpdated, RoomID: "ABC234", Room: &full})
	assert.True(t, sig.CompileReady, "the guard is evaluated again for every snapshot")

	compiled := full
	compiled.PromptSubmissionPhase = false
	_, sig = Reduce(m, Event{Kind: EventRecordUpdated, RoomID: "ABC234", Room: &compiled})
	assert.False(t, sig.CompileReady)
}

func TestEventFromChange(t *testing.T) {
	room := submissionRoom()

	ev, ok := EventFromChange(domain.NewRecordEvent(domain.ChangeInserted, room))
	assert.True(t, ok)
	assert.Equal(t, EventRecordInserted, ev.Kind)

	ev, ok = EventFromChange(domain.NewBroadcastEvent("ABC234", domain.Broadcast{Type: domain.BroadcastEnded}))
	assert.True(t, ok)
	assert.Equal(t, domain.EndReasonHostEnded, ev.Reason)

	_, ok = EventFromChange(domain.NewBroadcastEvent("ABC234", domain.Broadcast{Type: "confetti"}))
	assert.False(t, ok)

	_, ok = EventFromChange(domain.ChangeEvent{Kind: domain.ChangeUpdated, RoomID: "ABC234"})
	assert.False(t, ok)
}
