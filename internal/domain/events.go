package domain

import "time"

// ChangeKind is the kind of a room change notification
type ChangeKind string

const (
	ChangeInserted  ChangeKind = "inserted"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeBroadcast ChangeKind = "broadcast"
)

// BroadcastType is the type of an application-level message on a room topic
type BroadcastType string

const (
	BroadcastEnded BroadcastType = "ended"
)

// EndReason explains why a session ended
type EndReason string

const (
	EndReasonHostEnded  EndReason = "host-ended"  // host left or ended the session
	EndReasonExpired    EndReason = "expired"     // reaped after inactivity
	EndReasonRoomClosed EndReason = "room-closed" // record deleted without an explanation
)

// Broadcast is an application-level message published on a room topic
type Broadcast struct {
	Type   BroadcastType `json:"type"`
	Reason EndReason     `json:"reason,omitempty"`
}

// EndedBroadcast builds the "room ended" message
func EndedBroadcast(reason EndReason) Broadcast {
	return Broadcast{Type: BroadcastEnded, Reason: reason}
}

// ChangeEvent is delivered to every subscriber of a room key, including the writer.
type ChangeEvent struct {
	Kind      ChangeKind `json:"kind"`
	RoomID    string     `json:"roomId"`
	Room      *Room      `json:"room,omitempty"`      // inserted, updated
	Broadcast *Broadcast `json:"broadcast,omitempty"` // broadcast
	Timestamp time.Time  `json:"timestamp"`
}

// NewRecordEvent creates an inserted or updated event carrying a copy of the room
func NewRecordEvent(kind ChangeKind, room Room) ChangeEvent {
	r := room.Clone()
	return ChangeEvent{
		Kind:      kind,
		RoomID:    room.ID,
		Room:      &r,
		Timestamp: time.Now(),
	}
}

// NewDeletedEvent creates a deletion event
func NewDeletedEvent(roomID string) ChangeEvent {
	return ChangeEvent{
		Kind:      ChangeDeleted,
		RoomID:    roomID,
		Timestamp: time.Now(),
	}
}

// NewBroadcastEvent creates an application-level broadcast event
func NewBroadcastEvent(roomID string, msg Broadcast) ChangeEvent {
	return ChangeEvent{
		Kind:      ChangeBroadcast,
		RoomID:    roomID,
		Broadcast: &msg,
		Timestamp: time.Now(),
	}
}
