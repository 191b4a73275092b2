package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"groupplay/internal/domain"
)

const listenRetryDelay = time.Second

// listen holds one pooled connection on LISTEN and reconnects until ctx is canceled.
func (s *Store) listen(ctx context.Context) {
	defer s.wg.Done()

	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("notification listener stopped, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return err
	}
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.dispatch(ctx, n.Payload)
	}
}

// dispatch turns a notice into a change event for local subscribers.
// Inserted and updated notices are resolved to the current record.
func (s *Store) dispatch(ctx context.Context, payload string) {
	var n notice
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		s.logger.Warn("invalid notification payload", "error", err)
		return
	}
	if s.fanout.Count(n.RoomID) == 0 {
		return
	}

	switch n.Kind {
	case domain.ChangeInserted, domain.ChangeUpdated:
		room, err := s.Get(ctx, n.RoomID)
		if errors.Is(err, domain.ErrRoomNotFound) {
			// deleted since; the delete notice follows
			return
		}
		if err != nil {
			s.logger.Warn("failed to load changed room", "roomCode", n.RoomID, "error", err)
			return
		}
		s.fanout.Publish(domain.NewRecordEvent(n.Kind, room))
	case domain.ChangeDeleted:
		s.fanout.Publish(domain.NewDeletedEvent(n.RoomID))
	case domain.ChangeBroadcast:
		if n.Broadcast == nil {
			return
		}
		s.fanout.Publish(domain.NewBroadcastEvent(n.RoomID, *n.Broadcast))
	default:
		s.logger.Debug("ignoring notification", "kind", n.Kind)
	}
}
