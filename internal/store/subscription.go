package store

import (
	"sync"

	"groupplay/internal/domain"
)

// DefaultBuffer is the number of undelivered events a subscription holds
// before new ones are dropped.
const DefaultBuffer = 64

// Subscription receives change events for one room key.
type Subscription struct {
	roomID  string
	events  chan domain.ChangeEvent
	mu      sync.Mutex
	closed  bool
	onClose func()
}

// NewSubscription creates a subscription. onClose runs once, after the
// events channel has been closed.
func NewSubscription(roomID string, buffer int, onClose func()) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Subscription{
		roomID:  roomID,
		events:  make(chan domain.ChangeEvent, buffer),
		onClose: onClose,
	}
}

// RoomID returns the subscribed room key
func (s *Subscription) RoomID() string {
	return s.roomID
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan domain.ChangeEvent {
	return s.events
}

// Deliver queues an event without blocking. It returns false when the
// subscription is closed or its buffer is full.
func (s *Subscription) Deliver(event domain.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose()
	}
}
