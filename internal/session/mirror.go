package session

import (
	"groupplay/internal/domain"
)

// EventKind tags the inputs of the reducer
type EventKind string

const (
	EventRecordInserted EventKind = "record-inserted"
	EventRecordUpdated  EventKind = "record-updated"
	EventRecordDeleted  EventKind = "record-deleted"
	EventBroadcastEnded EventKind = "broadcast-ended"
)

// Event is one store notification as seen by the reducer
type Event struct {
	Kind   EventKind
	RoomID string
	Room   *domain.Room     // inserted, updated
	Reason domain.EndReason // broadcast-ended
}

// EventFromChange converts a store change event. Broadcasts other than
// "ended" have no reducer meaning and report false.
func EventFromChange(ch domain.ChangeEvent) (Event, bool) {
	ev := Event{RoomID: ch.RoomID}

	switch ch.Kind {
	case domain.ChangeInserted, domain.ChangeUpdated:
		if ch.Room == nil {
			return Event{}, false
		}
		ev.Kind = EventRecordUpdated
		if ch.Kind == domain.ChangeInserted {
			ev.Kind = EventRecordInserted
		}
		ev.Room = ch.Room
	case domain.ChangeDeleted:
		ev.Kind = EventRecordDeleted
	case domain.ChangeBroadcast:
		if ch.Broadcast == nil || ch.Broadcast.Type != domain.BroadcastEnded {
			return Event{}, false
		}
		ev.Kind = EventBroadcastEnded
		ev.Reason = ch.Broadcast.Reason
		if ev.Reason == "" {
			ev.Reason = domain.EndReasonHostEnded
		}
	default:
		return Event{}, false
	}
	return ev, true
}

// Mirror is the local projection of one room. It is replaced, never
// mutated, on every notification.
type Mirror struct {
	SelfID    string           `json:"selfId"`
	RoomID    string           `json:"roomId,omitempty"`
	Room      *domain.Room     `json:"room,omitempty"` // nil outside a room and after the end
	Ended     bool             `json:"ended"`
	EndReason domain.EndReason `json:"endReason,omitempty"`
}

// NewMirror returns the mirror of a client that just entered roomID
func NewMirror(selfID, roomID string, room *domain.Room) Mirror {
	m := Mirror{SelfID: selfID, RoomID: roomID}
	if room != nil {
		r := room.Clone()
		m.Room = &r
	}
	return m
}

// Active reports whether the mirror follows a live room
func (m Mirror) Active() bool {
	return m.RoomID != "" && !m.Ended
}

// IsHost reports whether the local player hosts the mirrored room
func (m Mirror) IsHost() bool {
	return m.Room != nil && m.Room.IsHost(m.SelfID)
}

// Phase returns the phase of the mirrored room, or "" outside a room
func (m Mirror) Phase() domain.Phase {
	if m.Room == nil {
		return ""
	}
	return m.Room.Phase()
}

// Signals are the side effects a reduction asks the client to surface
type Signals struct {
	Changed bool
	// Ended is set on the first end of the session, for non-host players only
	Ended        bool
	EndReason    domain.EndReason
	CompileReady bool // the "all prompts submitted" guard holds for this snapshot
}

// Reduce applies one event to a mirror. Record events overwrite the whole
// room, so applying the same snapshot twice gives the same mirror. Once
// the session has ended every further event is a no-op.
func Reduce(m Mirror, ev Event) (Mirror, Signals) {
	if !m.Active() || ev.RoomID != m.RoomID {
		return m, Signals{}
	}

	switch ev.Kind {
	case EventRecordInserted, EventRecordUpdated:
		next := NewMirror(m.SelfID, m.RoomID, ev.Room)

		return next, Signals{
			Changed:      true,
			CompileReady: domain.ReadyToCompile(*next.Room),
		}

	case EventRecordDeleted, EventBroadcastEnded:
		reason := ev.Reason
		if ev.Kind == EventRecordDeleted {
			reason = domain.EndReasonRoomClosed
		}

		host := m.IsHost()
		next := Mirror{
			SelfID:    m.SelfID,
			RoomID:    m.RoomID,
			Ended:     true,
			EndReason: reason,
		}

		return next, Signals{
			Changed:   true,
			Ended:     !host,
			EndReason: reason,
		}
	}

	return m, Signals{}
}
