// Package memory is an in-process room backend. It keeps rooms in a map
// and delivers change events synchronously to every subscriber.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"groupplay/internal/domain"
	"groupplay/internal/store"
)

const (
	// DefaultStaleTimeout is how long a room may go untouched before it is reaped
	DefaultStaleTimeout = 2 * time.Hour

	// DefaultCleanupInterval is how often the reaper runs
	DefaultCleanupInterval = 10 * time.Minute
)

// Options configures a Store
type Options struct {
	StaleTimeout    time.Duration // 0 disables reaping
	CleanupInterval time.Duration
	Buffer          int
}

type entry struct {
	room    domain.Room
	touched time.Time
}

// Store holds every room in memory
type Store struct {
	rooms        map[string]*entry
	mu           sync.RWMutex
	fanout       *store.Fanout
	logger       *slog.Logger
	staleTimeout time.Duration
	now          func() time.Time
	done         chan struct{}
	closeOnce    sync.Once
}

var (
	_ store.Backend       = (*Store)(nil)
	_ store.StatsProvider = (*Store)(nil)
)

// New creates a store and starts its cleanup loop when reaping is enabled.
func New(logger *slog.Logger, opts Options) *Store {
	s := &Store{
		rooms:        make(map[string]*entry),
		fanout:       store.NewFanout(logger, opts.Buffer),
		logger:       logger,
		staleTimeout: opts.StaleTimeout,
		now:          time.Now,
		done:         make(chan struct{}),
	}

	if s.staleTimeout > 0 {
		interval := opts.CleanupInterval
		if interval <= 0 {
			interval = DefaultCleanupInterval
		}
		go s.cleanupLoop(interval)
	}

	return s
}

// Create inserts a new room
func (s *Store) Create(ctx context.Context, room domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.ID]; exists {
		return domain.ErrRoomExists
	}

	room = room.Clone()
	s.rooms[room.ID] = &entry{room: room, touched: s.now()}
	s.fanout.Publish(domain.NewRecordEvent(domain.ChangeInserted, room))

	s.logger.Info("room created", "roomCode", room.ID, "hostID", room.HostID)
	return nil
}

// Get returns a copy of a room
func (s *Store) Get(ctx context.Context, roomID string) (domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return domain.Room{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return e.room.Clone(), nil
}

// Update overwrites the fields set in u and notifies subscribers with the full record
func (s *Store) Update(ctx context.Context, roomID string, u domain.RoomUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}

	e.room = u.Apply(e.room)
	e.touched = s.now()
	s.fanout.Publish(domain.NewRecordEvent(domain.ChangeUpdated, e.room))

	return nil
}

// Delete removes a room and notifies subscribers
func (s *Store) Delete(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomID]; !ok {
		return domain.ErrRoomNotFound
	}

	delete(s.rooms, roomID)
	s.fanout.Publish(domain.NewDeletedEvent(roomID))

	s.logger.Info("room deleted", "roomCode", roomID)
	return nil
}

// Subscribe registers for change events on a room key. The room need not exist yet.
func (s *Store) Subscribe(ctx context.Context, roomID string) (*store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fanout.Add(roomID), nil
}

// Broadcast publishes an application message on a room topic
func (s *Store) Broadcast(ctx context.Context, roomID string, msg domain.Broadcast) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Hold the read lock so the message is ordered against writes to the room.
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.fanout.Publish(domain.NewBroadcastEvent(roomID, msg))
	return nil
}

// Stats counts rooms and players
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := store.Stats{Rooms: len(s.rooms)}
	for _, e := range s.rooms {
		stats.Players += len(e.room.Players)
	}
	return stats, nil
}

// Close stops the cleanup loop and closes every subscription
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.fanout.CloseAll()
	})
	return nil
}

// cleanupLoop periodically reaps stale rooms
func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.reapStale()
		}
	}
}

// reapStale removes rooms that have not been written for longer than the
// stale timeout. Subscribers get an expired message before the delete.
func (s *Store) reapStale() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stale := make([]string, 0)

	for roomID, e := range s.rooms {
		if now.Sub(e.touched) > s.staleTimeout {
			stale = append(stale, roomID)
		}
	}

	for _, roomID := range stale {
		s.fanout.Publish(domain.NewBroadcastEvent(roomID, domain.EndedBroadcast(domain.EndReasonExpired)))
		delete(s.rooms, roomID)
		s.fanout.Publish(domain.NewDeletedEvent(roomID))
		s.logger.Info("stale room cleaned up", "roomCode", roomID)
	}

	return len(stale)
}
