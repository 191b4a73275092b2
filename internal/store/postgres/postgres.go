// Package postgres stores rooms as JSONB documents and fans change
// notifications out through LISTEN/NOTIFY.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"groupplay/internal/domain"
	"groupplay/internal/store"
)

// NotifyChannel is the postgres channel carrying room change notices
const NotifyChannel = "room_changes"

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         text PRIMARY KEY,
	doc        jsonb NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// notice is the NOTIFY payload. Records are fetched by the listener so
// the payload stays under the 8000 byte limit.
type notice struct {
	Kind      domain.ChangeKind `json:"kind"`
	RoomID    string            `json:"roomId"`
	Broadcast *domain.Broadcast `json:"broadcast,omitempty"`
}

// Options configures a Store
type Options struct {
	StaleTimeout    time.Duration // 0 disables reaping
	CleanupInterval time.Duration
}

// Store is a room backend on top of a pgx connection pool
type Store struct {
	pool   *pgxpool.Pool
	fanout *store.Fanout
	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	ready     chan struct{} // closed once the first LISTEN succeeded
	readyOnce sync.Once
}

var (
	_ store.Backend       = (*Store)(nil)
	_ store.StatsProvider = (*Store)(nil)
)

// New connects to postgres, ensures the schema and starts the notification listener.
func New(ctx context.Context, connString string, logger *slog.Logger, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	s, err := NewWithPool(ctx, pool, logger, opts)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool builds a store on an existing pool. The store owns the pool afterwards.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, opts Options) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, wrapErr(err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, wrapErr(err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		fanout: store.NewFanout(logger, store.DefaultBuffer),
		logger: logger,
		cancel: cancel,
		ready:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.listen(listenCtx)

	if opts.StaleTimeout > 0 {
		interval := opts.CleanupInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		s.wg.Add(1)
		go s.cleanupLoop(listenCtx, interval, opts.StaleTimeout)
	}

	select {
	case <-s.ready:
	case <-ctx.Done():
		s.cancel()
		s.wg.Wait()
		return nil, ctx.Err()
	}

	return s, nil
}

// Create inserts a room and notifies in the same transaction
func (s *Store) Create(ctx context.Context, room domain.Room) error {
	doc, err := json.Marshal(room)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO rooms(id, doc, created_at) VALUES($1, $2::jsonb, $3)", room.ID, doc, room.CreatedAt)
		if err != nil {
			return err
		}
		return notify(ctx, tx, notice{Kind: domain.ChangeInserted, RoomID: room.ID})
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23505" is the PostgreSQL error code for unique_violation
			if pgErr.Code == "23505" {
				return domain.ErrRoomExists
			}
		}
		return wrapErr(err)
	}

	s.logger.Info("room created", "roomCode", room.ID, "hostID", room.HostID)
	return nil
}

// Get fetches a room document
func (s *Store) Get(ctx context.Context, roomID string) (domain.Room, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, "SELECT doc FROM rooms WHERE id = $1", roomID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, wrapErr(err)
	}

	var room domain.Room
	if err := json.Unmarshal(doc, &room); err != nil {
		return domain.Room{}, fmt.Errorf("%w: decode room %s: %w", domain.ErrStoreUnavailable, roomID, err)
	}
	return room, nil
}

// Update merges the set fields of u into the stored document
func (s *Store) Update(ctx context.Context, roomID string, u domain.RoomUpdate) error {
	patch, err := json.Marshal(u)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "UPDATE rooms SET doc = doc || $2::jsonb, updated_at = now() WHERE id = $1", roomID, patch)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRoomNotFound
		}
		return notify(ctx, tx, notice{Kind: domain.ChangeUpdated, RoomID: roomID})
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}
	return wrapErr(err)
}

// Delete removes a room
func (s *Store) Delete(ctx context.Context, roomID string) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM rooms WHERE id = $1", roomID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRoomNotFound
		}
		return notify(ctx, tx, notice{Kind: domain.ChangeDeleted, RoomID: roomID})
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}
	if err != nil {
		return wrapErr(err)
	}

	s.logger.Info("room deleted", "roomCode", roomID)
	return nil
}

// Subscribe registers for change events on a room key
func (s *Store) Subscribe(ctx context.Context, roomID string) (*store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fanout.Add(roomID), nil
}

// Broadcast publishes an application message through NOTIFY
func (s *Store) Broadcast(ctx context.Context, roomID string, msg domain.Broadcast) error {
	return wrapErr(notify(ctx, s.pool, notice{Kind: domain.ChangeBroadcast, RoomID: roomID, Broadcast: &msg}))
}

// Stats counts rooms and players
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := s.pool.QueryRow(ctx,
		"SELECT count(*), coalesce(sum(jsonb_array_length(doc->'players')), 0) FROM rooms",
	).Scan(&stats.Rooms, &stats.Players)
	if err != nil {
		return store.Stats{}, wrapErr(err)
	}
	return stats, nil
}

// DeleteStale removes rooms not written for longer than maxAge, sending an
// expired message to their subscribers first.
func (s *Store) DeleteStale(ctx context.Context, maxAge time.Duration) (int, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM rooms WHERE updated_at < now() - make_interval(secs => $1)", maxAge.Seconds())
	if err != nil {
		return 0, wrapErr(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, wrapErr(err)
	}

	reaped := 0
	for _, id := range ids {
		if err := s.Broadcast(ctx, id, domain.EndedBroadcast(domain.EndReasonExpired)); err != nil {
			return reaped, err
		}
		if err := s.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			return reaped, err
		}
		reaped++
	}
	return reaped, nil
}

// cleanupLoop periodically reaps stale rooms
func (s *Store) cleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteStale(ctx, maxAge)
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("stale room cleanup failed", "error", err)
			}
			if n > 0 {
				s.logger.Info("stale rooms cleaned up", "count", n)
			}
		}
	}
}

// Close stops the listener, closes every subscription and the pool
func (s *Store) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.fanout.CloseAll()
		s.pool.Close()
	})
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func notify(ctx context.Context, db execer, n notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload))
	return err
}

// wrapErr marks backend failures as ErrStoreUnavailable. Context errors pass through.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
