package store

import (
	"log/slog"
	"sync"

	"groupplay/internal/domain"
)

// Fanout tracks the subscribers of every room key and delivers events to them.
type Fanout struct {
	subs   map[string]map[*Subscription]struct{}
	mu     sync.RWMutex
	buffer int
	logger *slog.Logger

	onEmpty func(roomID string)
}

// NewFanout creates an empty subscriber registry
func NewFanout(logger *slog.Logger, buffer int) *Fanout {
	return &Fanout{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Add registers a new subscriber for roomID. Closing the subscription removes it.
func (f *Fanout) Add(roomID string) *Subscription {
	var sub *Subscription
	sub = NewSubscription(roomID, f.buffer, func() {
		f.remove(sub)
	})

	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.subs[roomID]
	if !ok {
		set = make(map[*Subscription]struct{})
		f.subs[roomID] = set
	}
	set[sub] = struct{}{}

	f.logger.Debug("subscribed", "roomCode", roomID, "subscribers", len(set))
	return sub
}

// OnEmpty sets a callback run when the last subscriber of a room closes.
// It must be set before the first Add.
func (f *Fanout) OnEmpty(fn func(roomID string)) {
	f.onEmpty = fn
}

func (f *Fanout) remove(sub *Subscription) {
	f.mu.Lock()
	set, ok := f.subs[sub.RoomID()]
	if !ok {
		f.mu.Unlock()
		return
	}
	delete(set, sub)
	empty := len(set) == 0
	if empty {
		delete(f.subs, sub.RoomID())
	}
	f.mu.Unlock()

	if empty && f.onEmpty != nil {
		f.onEmpty(sub.RoomID())
	}
}

// Publish delivers an event to every subscriber of its room and returns
// how many accepted it.
func (f *Fanout) Publish(event domain.ChangeEvent) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	delivered := 0
	for sub := range f.subs[event.RoomID] {
		if sub.Deliver(event) {
			delivered++
			continue
		}
		f.logger.Warn("subscriber queue full, dropping event", "roomCode", event.RoomID, "kind", event.Kind)
	}
	return delivered
}

// Count returns the number of subscribers of roomID
func (f *Fanout) Count(roomID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[roomID])
}

// Rooms returns the keys that currently have subscribers.
func (f *Fanout) Rooms() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	rooms := make([]string, 0, len(f.subs))
	for roomID := range f.subs {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// CloseAll closes every subscription.
func (f *Fanout) CloseAll() {
	f.mu.Lock()
	all := make([]*Subscription, 0)
	for _, set := range f.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}
