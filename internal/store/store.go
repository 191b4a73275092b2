package store

import (
	"context"

	"groupplay/internal/domain"
)

// RoomStore is a keyed store where one room is one record.
type RoomStore interface {
	// Create inserts a new room. It fails with domain.ErrRoomExists when the code is taken.
	Create(ctx context.Context, room domain.Room) error
	// Get fetches a room by code, or domain.ErrRoomNotFound.
	Get(ctx context.Context, roomID string) (domain.Room, error)
	// Update writes the non-nil fields of u. There is no version check.
	Update(ctx context.Context, roomID string, u domain.RoomUpdate) error
	// Delete removes the room, or fails with domain.ErrRoomNotFound.
	Delete(ctx context.Context, roomID string) error
}

// Channel is the per-room notification topic. Every change to a room key
// is delivered to all of its subscribers, the writer included.
type Channel interface {
	Subscribe(ctx context.Context, roomID string) (*Subscription, error)
	Broadcast(ctx context.Context, roomID string, msg domain.Broadcast) error
}

// Backend is a store together with its notification channel.
type Backend interface {
	RoomStore
	Channel
	Close() error
}

// Stats is a point-in-time count of rooms and players held by a backend.
type Stats struct {
	Rooms   int `json:"rooms"`
	Players int `json:"players"`
}

// StatsProvider is implemented by backends that can count their rooms.
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}
