package session

import (
	"context"
	"strings"

	"groupplay/internal/domain"
)

// transition computes the update a command writes
type transition func(r domain.Room) (domain.RoomUpdate, error)

// apply checks a command against the mirror and writes its update. The
// mirror is not touched; it changes when the store notification arrives.
func (c *Client) apply(ctx context.Context, fn transition) error {
	c.mu.RLock()
	m := c.mirror
	c.mu.RUnlock()

	if !m.Active() || m.Room == nil {
		return domain.ErrNotInRoom
	}

	u, err := fn(*m.Room)
	if err != nil {
		return err
	}
	if u.IsEmpty() {
		return nil
	}
	return c.backend.Update(ctx, m.RoomID, u)
}

// applyFresh is apply for commands that rewrite the roster. After the
// command passes against the mirror it is recomputed on the current record,
// so the write carries every other player's latest fields. The read and
// the write are not atomic.
func (c *Client) applyFresh(ctx context.Context, fn transition) error {
	c.mu.RLock()
	m := c.mirror
	c.mu.RUnlock()

	if !m.Active() || m.Room == nil {
		return domain.ErrNotInRoom
	}
	if _, err := fn(*m.Room); err != nil {
		return err
	}

	room, err := c.backend.Get(ctx, m.RoomID)
	if err != nil {
		return err
	}

	u, err := fn(room)
	if err != nil {
		return err
	}
	if u.IsEmpty() {
		return nil
	}
	return c.backend.Update(ctx, m.RoomID, u)
}

// StartGame leaves the lobby. Host only, at least MinPlayers players.
func (c *Client) StartGame(ctx context.Context) error {
	return c.applyFresh(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.StartGame(r, c.id, c.cfg.MinPlayers, c.rng)
	})
}

// SubmitPrompt stores the caller's custom prompt
func (c *Client) SubmitPrompt(ctx context.Context, prompt string) error {
	return c.applyFresh(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.SubmitPrompt(r, c.id, prompt)
	})
}

// CompilePrompts deranges the submitted prompts and starts active play.
// Any player may compile once everyone has submitted.
func (c *Client) CompilePrompts(ctx context.Context) error {
	err := c.applyFresh(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.CompilePrompts(r, c.deranger)
	})
	if err != nil {
		return err
	}

	c.logger.Info("prompts compiled", "roomCode", c.Snapshot().RoomID)
	return nil
}

// RevealCard shows the current prompt. Active player only.
func (c *Client) RevealCard(ctx context.Context) error {
	return c.apply(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.RevealPrompt(r, c.id)
	})
}

// NextPrompt advances the cursor, finishing the game after the last prompt
func (c *Client) NextPrompt(ctx context.Context) error {
	return c.apply(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.AdvancePrompt(r, c.id, c.rng)
	})
}

// PreviousPrompt steps the cursor back by one. Host only.
func (c *Client) PreviousPrompt(ctx context.Context) error {
	return c.apply(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.RetreatPrompt(r, c.id)
	})
}

// FinishGame ends active play early
func (c *Client) FinishGame(ctx context.Context) error {
	return c.apply(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.FinishGame(r, c.id)
	})
}

// SubmitVote records the caller's vote for the prompt on screen
func (c *Client) SubmitVote(ctx context.Context, targetID string) error {
	return c.applyFresh(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.CastVote(r, c.id, targetID)
	})
}

// Tally counts the votes for the prompt on screen
func (c *Client) Tally() (domain.Tally, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mirror.Room == nil {
		return domain.Tally{}, domain.ErrNotInRoom
	}
	r := c.mirror.Room
	return domain.TallyVotes(r.CurrentPromptIndex, r.Players), nil
}

// UpdatePlayerName renames the caller
func (c *Client) UpdatePlayerName(ctx context.Context, name string) error {
	err := c.applyFresh(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.RenamePlayer(r, c.id, name)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.name = strings.TrimSpace(name)
	c.mu.Unlock()
	return nil
}

// ChangeCategory swaps the prompt deck. Host only, lobby only.
func (c *Client) ChangeCategory(ctx context.Context, category domain.Category) error {
	return c.applyFresh(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.ChangeCategory(r, c.id, category, c.rng)
	})
}

// PlayAgain resets a finished room to the lobby. Host only.
func (c *Client) PlayAgain(ctx context.Context) error {
	return c.applyFresh(ctx, func(r domain.Room) (domain.RoomUpdate, error) {
		return domain.PlayAgain(r, c.id, c.rng)
	})
}
