package domain

import (
	"time"
)

// Room is the shared record coordinating one game session. It is stored
// under its code and replicated to every subscribed client.
type Room struct {
	ID                    string    `json:"id"`
	HostID                string    `json:"hostId"`
	Players               []Player  `json:"players"`
	Category              Category  `json:"category"`
	Prompts               []string  `json:"prompts"`
	CurrentPromptIndex    int       `json:"currentPromptIndex"`
	ActivePlayerID        string    `json:"activePlayerId,omitempty"`
	Started               bool      `json:"started"`
	PromptSubmissionPhase bool      `json:"promptSubmissionPhase"`
	GameFinished          bool      `json:"gameFinished"`
	Revealed              bool      `json:"revealed"`
	CreatedAt             time.Time `json:"createdAt"`
}

// NewRoom creates a room in the lobby with the host as its sole player
func NewRoom(code string, host Player, category Category, prompts []string, createdAt time.Time) Room {
	if prompts == nil {
		prompts = []string{}
	}
	return Room{
		ID:                 code,
		HostID:             host.ID,
		Players:            []Player{host},
		Category:           category,
		Prompts:            prompts,
		CurrentPromptIndex: 0,
		CreatedAt:          createdAt,
	}
}

// Phase returns the phase derived from the room flags
func (r Room) Phase() Phase {
	return PhaseOf(r)
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	r.Players = ClonePlayers(r.Players)
	if r.Prompts != nil {
		prompts := make([]string, len(r.Prompts))
		copy(prompts, r.Prompts)
		r.Prompts = prompts
	}
	return r
}

// IsHost checks if the given player is the host
func (r Room) IsHost(playerID string) bool {
	return r.HostID == playerID
}

// IsActivePlayer checks if the given player holds the turn
func (r Room) IsActivePlayer(playerID string) bool {
	return r.ActivePlayerID != "" && r.ActivePlayerID == playerID
}

// PlayerIndex returns the roster position of a player, or -1.
func (r Room) PlayerIndex(playerID string) int {
	for i, p := range r.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// GetPlayer returns a player by ID
func (r Room) GetPlayer(playerID string) (Player, error) {
	if i := r.PlayerIndex(playerID); i >= 0 {
		return r.Players[i], nil
	}
	return Player{}, ErrPlayerNotFound
}

// CurrentPrompt returns the prompt on screen, if any.
func (r Room) CurrentPrompt() (string, bool) {
	if r.CurrentPromptIndex < 0 || r.CurrentPromptIndex >= len(r.Prompts) {
		return "", false
	}
	return r.Prompts[r.CurrentPromptIndex], true
}

// IsLastPrompt reports whether the cursor is on the final prompt.
func (r Room) IsLastPrompt() bool {
	return r.CurrentPromptIndex >= len(r.Prompts)-1
}

// AllPromptsSubmitted checks if every player has submitted a custom prompt
func (r Room) AllPromptsSubmitted() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.PromptSubmitted {
			return false
		}
	}
	return true
}

// SubmittedCount returns how many players have submitted a prompt
func (r Room) SubmittedCount() int {
	n := 0
	for _, p := range r.Players {
		if p.PromptSubmitted {
			n++
		}
	}
	return n
}

// RoomUpdate is a partial write to a room record. Nil fields are left untouched.
type RoomUpdate struct {
	Players               *[]Player `json:"players,omitempty"`
	Category              *Category `json:"category,omitempty"`
	Prompts               *[]string `json:"prompts,omitempty"`
	CurrentPromptIndex    *int      `json:"currentPromptIndex,omitempty"`
	ActivePlayerID        *string   `json:"activePlayerId,omitempty"`
	Started               *bool     `json:"started,omitempty"`
	PromptSubmissionPhase *bool     `json:"promptSubmissionPhase,omitempty"`
	GameFinished          *bool     `json:"gameFinished,omitempty"`
	Revealed              *bool     `json:"revealed,omitempty"`
}

// IsEmpty returns true if the update writes no field
func (u RoomUpdate) IsEmpty() bool {
	return u.Players == nil && u.Category == nil && u.Prompts == nil &&
		u.CurrentPromptIndex == nil && u.ActivePlayerID == nil && u.Started == nil &&
		u.PromptSubmissionPhase == nil && u.GameFinished == nil && u.Revealed == nil
}

// Apply returns a copy of r with the update's fields overwritten.
func (u RoomUpdate) Apply(r Room) Room {
	r = r.Clone()
	if u.Players != nil {
		r.Players = ClonePlayers(*u.Players)
	}
	if u.Category != nil {
		r.Category = *u.Category
	}
	if u.Prompts != nil {
		prompts := make([]string, len(*u.Prompts))
		copy(prompts, *u.Prompts)
		r.Prompts = prompts
	}
	if u.CurrentPromptIndex != nil {
		r.CurrentPromptIndex = *u.CurrentPromptIndex
	}
	if u.ActivePlayerID != nil {
		r.ActivePlayerID = *u.ActivePlayerID
	}
	if u.Started != nil {
		r.Started = *u.Started
	}
	if u.PromptSubmissionPhase != nil {
		r.PromptSubmissionPhase = *u.PromptSubmissionPhase
	}
	if u.GameFinished != nil {
		r.GameFinished = *u.GameFinished
	}
	if u.Revealed != nil {
		r.Revealed = *u.Revealed
	}
	return r
}

// ptr returns a pointer to v, for building updates.
func ptr[T any](v T) *T {
	return &v
}

// PlayersUpdate builds an update that rewrites the roster only.
func PlayersUpdate(players []Player) RoomUpdate {
	return RoomUpdate{Players: ptr(players)}
}
