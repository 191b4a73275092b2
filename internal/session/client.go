// Package session is the per-device session client. It mirrors one room
// record, guards commands against the local role and writes partial
// updates to the shared store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"groupplay/internal/domain"
	"groupplay/internal/store"
)

// AutoCompilePolicy decides which clients compile custom prompts on their own
type AutoCompilePolicy string

const (
	AutoCompileHost AutoCompilePolicy = "host" // only the host compiles
	AutoCompileAny  AutoCompilePolicy = "any"  // every client races to compile
	AutoCompileOff  AutoCompilePolicy = "off"  // CompilePrompts must be called
)

// Valid returns true for known policies
func (p AutoCompilePolicy) Valid() bool {
	return p == AutoCompileHost || p == AutoCompileAny || p == AutoCompileOff
}

const (
	createAttempts     = 10
	autoCompileTimeout = 10 * time.Second
	changesBufferSize  = 32
	endedBufferSize    = 4
)

// Config configures a Client
type Config struct {
	PlayerID       string // random when empty
	DisplayName    string
	MinPlayers     int
	MaxPlayers     int // 0 means unlimited
	RoomCodeLength int
	AutoCompile    AutoCompilePolicy
	Rand           domain.Rand // shared with the auto-compile goroutine under a lock
	Deranger       domain.Deranger
}

// Client is one device's view of a room
type Client struct {
	backend  store.Backend
	cfg      Config
	id       string
	logger   *slog.Logger
	rng      domain.Rand
	deranger domain.Deranger
	now      func() time.Time

	mu     sync.RWMutex
	name   string
	mirror Mirror
	sub    *store.Subscription

	changes chan Mirror
	ended   chan domain.EndReason

	compileMu      sync.Mutex
	compiling      bool
	compilePending bool // a ready snapshot arrived during an attempt
}

// NewClient creates a client with its own identity
func NewClient(backend store.Backend, cfg Config, logger *slog.Logger) *Client {
	if cfg.PlayerID == "" {
		cfg.PlayerID = uuid.New().String()
	}
	if cfg.MinPlayers < domain.DefaultMinPlayers {
		cfg.MinPlayers = domain.DefaultMinPlayers
	}
	if cfg.RoomCodeLength <= 0 {
		cfg.RoomCodeLength = domain.DefaultRoomCodeLength
	}
	if cfg.AutoCompile == "" {
		cfg.AutoCompile = AutoCompileHost
	}

	rng := cfg.Rand
	if rng == nil {
		rng = domain.DefaultRand
	}
	deranger := cfg.Deranger
	if deranger.Rand == nil {
		deranger.Rand = rng
	}

	// commands and auto-compilation draw from these on different goroutines
	randMu := new(sync.Mutex)
	rng = lockedRand{mu: randMu, r: rng}
	deranger.Rand = lockedRand{mu: randMu, r: deranger.Rand}

	return &Client{
		backend:  backend,
		cfg:      cfg,
		id:       cfg.PlayerID,
		logger:   logger.With("playerID", cfg.PlayerID),
		rng:      rng,
		deranger: deranger,
		now:      time.Now,
		name:     strings.TrimSpace(cfg.DisplayName),
		mirror:   Mirror{SelfID: cfg.PlayerID},
		changes:  make(chan Mirror, changesBufferSize),
		ended:    make(chan domain.EndReason, endedBufferSize),
	}
}

// ID returns the local player identity
func (c *Client) ID() string {
	return c.id
}

// Snapshot returns the current mirror
func (c *Client) Snapshot() Mirror {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mirror
}

// Room returns a copy of the mirrored room, if any
func (c *Client) Room() (domain.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.mirror.Room == nil {
		return domain.Room{}, false
	}
	return c.mirror.Room.Clone(), true
}

// Changes delivers a mirror after every reconciliation. Slow readers miss
// intermediate mirrors; Snapshot is always current.
func (c *Client) Changes() <-chan Mirror {
	return c.changes
}

// Ended delivers one reason per session ended by someone else
func (c *Client) Ended() <-chan domain.EndReason {
	return c.ended
}

// CreateRoom creates a room with the caller as host and sole player.
// A colliding code is retried with a fresh one.
func (c *Client) CreateRoom(ctx context.Context, category domain.Category) (string, error) {
	if !category.Valid() {
		return "", domain.ErrInvalidCategory
	}
	if c.inRoom() {
		return "", domain.ErrAlreadyInRoom
	}

	host := domain.NewPlayer(c.id, c.displayName(), c.now().UTC())

	for attempt := 0; attempt < createAttempts; attempt++ {
		code := domain.GenerateRoomCode(c.cfg.RoomCodeLength)
		room := domain.NewRoom(code, host, category, domain.CategoryPrompts(category, c.rng), c.now().UTC())

		sub, err := c.backend.Subscribe(ctx, code)
		if err != nil {
			return "", err
		}

		err = c.backend.Create(ctx, room)
		if errors.Is(err, domain.ErrRoomExists) {
			sub.Close()
			c.logger.Debug("room code collision", "roomCode", code)
			continue
		}
		if err != nil {
			sub.Close()
			return "", err
		}

		c.enter(sub, NewMirror(c.id, code, &room))
		c.logger.Info("room created", "roomCode", code, "category", category)
		return code, nil
	}

	return "", fmt.Errorf("%w: no free room code after %d attempts", domain.ErrRoomExists, createAttempts)
}

// JoinRoom adds the caller to an existing room and starts mirroring it.
// Joining a room whose roster already holds the caller only resubscribes.
func (c *Client) JoinRoom(ctx context.Context, code, displayName string) error {
	code = domain.NormalizeRoomCode(code)
	if !domain.ValidRoomCode(code) {
		return domain.ErrRoomNotFound
	}
	if c.inRoom() {
		return domain.ErrAlreadyInRoom
	}
	if name := strings.TrimSpace(displayName); name != "" {
		c.mu.Lock()
		c.name = name
		c.mu.Unlock()
	}

	room, err := c.backend.Get(ctx, code)
	if err != nil {
		return err
	}

	player := domain.NewPlayer(c.id, c.displayName(), c.now().UTC())
	u, err := domain.AddPlayer(room, player, c.cfg.MaxPlayers)
	rejoin := errors.Is(err, domain.ErrAlreadyInRoom)
	if err != nil && !rejoin {
		return err
	}

	sub, err := c.backend.Subscribe(ctx, code)
	if err != nil {
		return err
	}

	if !rejoin {
		if err := c.backend.Update(ctx, code, u); err != nil {
			sub.Close()
			return err
		}
		room = u.Apply(room)
	}

	c.enter(sub, NewMirror(c.id, code, &room))
	c.logger.Info("joined room", "roomCode", code, "rejoin", rejoin)
	return nil
}

// LeaveRoom leaves the current room. The host ends the session for
// everyone: an explicit ended message goes out before the record is
// deleted. A guest removes itself from the roster. The local subscription
// is always closed, even when a store call fails.
func (c *Client) LeaveRoom(ctx context.Context) error {
	c.mu.RLock()
	m, sub := c.mirror, c.sub
	c.mu.RUnlock()

	if sub == nil {
		return domain.ErrNotInRoom
	}
	defer c.exit(sub)

	if m.Ended {
		return nil
	}

	if m.IsHost() {
		if err := c.backend.Broadcast(ctx, m.RoomID, domain.EndedBroadcast(domain.EndReasonHostEnded)); err != nil {
			c.logger.Warn("failed to broadcast room end", "roomCode", m.RoomID, "error", err)
		}
		if err := c.backend.Delete(ctx, m.RoomID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			return err
		}
		c.logger.Info("room ended by host", "roomCode", m.RoomID)
		return nil
	}

	room, err := c.backend.Get(ctx, m.RoomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	u, empty, err := domain.RemovePlayer(room, c.id)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if empty {
		err = c.backend.Delete(ctx, m.RoomID)
		if errors.Is(err, domain.ErrRoomNotFound) {
			err = nil
		}
	} else {
		err = c.backend.Update(ctx, m.RoomID, u)
	}
	if err != nil {
		return err
	}

	c.logger.Info("left room", "roomCode", m.RoomID)
	return nil
}

// Close leaves mirroring without touching the room
func (c *Client) Close() {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()

	if sub != nil {
		c.exit(sub)
	}
}

func (c *Client) displayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.name != "" {
		return c.name
	}
	return "Player " + c.id[:min(4, len(c.id))]
}

func (c *Client) inRoom() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sub != nil && c.mirror.Active()
}

// enter swaps in a new subscription and mirror and starts its event loop
func (c *Client) enter(sub *store.Subscription, m Mirror) {
	c.mu.Lock()
	old := c.sub
	c.sub = sub
	c.mirror = m
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	c.publish(m)
	go c.eventLoop(sub)
}

// exit closes sub and clears the mirror if sub is still current
func (c *Client) exit(sub *store.Subscription) {
	sub.Close()

	c.mu.Lock()
	if c.sub != sub {
		c.mu.Unlock()
		return
	}
	c.sub = nil
	c.mirror = Mirror{SelfID: c.id}
	m := c.mirror
	c.mu.Unlock()

	c.publish(m)
}

// eventLoop reconciles the mirror from every event of sub
func (c *Client) eventLoop(sub *store.Subscription) {
	for change := range sub.Events() {
		ev, ok := EventFromChange(change)
		if !ok {
			continue
		}

		c.mu.Lock()
		if c.sub != sub {
			c.mu.Unlock()
			return
		}
		next, sig := Reduce(c.mirror, ev)
		c.mirror = next
		c.mu.Unlock()

		if sig.Changed {
			c.publish(next)
		}
		if sig.Ended {
			c.logger.Info("session ended", "roomCode", next.RoomID, "reason", sig.EndReason)
			select {
			case c.ended <- sig.EndReason:
			default:
				c.logger.Warn("ended queue full, dropping signal", "reason", sig.EndReason)
			}
		}
		if next.Ended {
			sub.Close()
			return
		}
		if sig.CompileReady && c.shouldAutoCompile(next) {
			c.requestCompile()
		}
	}

	c.mu.RLock()
	current := c.sub == sub
	c.mu.RUnlock()
	if current {
		c.logger.Warn("room subscription closed by backend")
	}
}

func (c *Client) publish(m Mirror) {
	select {
	case c.changes <- m:
	default:
		c.logger.Debug("changes queue full, dropping mirror")
	}
}

func (c *Client) shouldAutoCompile(m Mirror) bool {
	switch c.cfg.AutoCompile {
	case AutoCompileAny:
		return true
	case AutoCompileHost:
		return m.IsHost()
	default:
		return false
	}
}

// requestCompile starts an auto-compile attempt, or queues one more
// attempt if one is already running.
func (c *Client) requestCompile() {
	c.compileMu.Lock()
	defer c.compileMu.Unlock()

	if c.compiling {
		c.compilePending = true
		return
	}
	c.compiling = true
	go c.autoCompile()
}

// autoCompile runs attempts until no ready snapshot arrived during the last one.
// A failed attempt is retried on the next snapshot that passes the guard.
func (c *Client) autoCompile() {
	for {
		c.compileOnce()

		c.compileMu.Lock()
		if !c.compilePending {
			c.compiling = false
			c.compileMu.Unlock()
			return
		}
		c.compilePending = false
		c.compileMu.Unlock()
	}
}

func (c *Client) compileOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), autoCompileTimeout)
	defer cancel()

	err := c.CompilePrompts(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidPhase), errors.Is(err, domain.ErrInvalidTransition):
		// another client got there first
		c.logger.Debug("auto compile skipped", "error", err)
	default:
		c.logger.Warn("auto compile failed", "error", err)
	}
}
