package domain

import "time"

// Player is one participant in a room. Identities are random per device.
type Player struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	JoinedAt        time.Time `json:"joinedAt"`
	Prompt          string    `json:"prompt,omitempty"`
	PromptSubmitted bool      `json:"promptSubmitted,omitempty"`
	VotePromptIndex *int      `json:"votePromptIndex,omitempty"`
	VoteFor         string    `json:"voteFor,omitempty"`
}

// NewPlayer creates a new player with the given ID and name
func NewPlayer(id, name string, joinedAt time.Time) Player {
	return Player{
		ID:       id,
		Name:     name,
		JoinedAt: joinedAt,
	}
}

// ResetForNewGame clears the per-game fields of the player
func (p *Player) ResetForNewGame() {
	p.Prompt = ""
	p.PromptSubmitted = false
	p.VotePromptIndex = nil
	p.VoteFor = ""
}

// HasVotedOn reports whether the player recorded a vote for the prompt at index.
func (p Player) HasVotedOn(index int) bool {
	return p.VotePromptIndex != nil && *p.VotePromptIndex == index && p.VoteFor != ""
}

// Clone returns a deep copy of the player.
func (p Player) Clone() Player {
	if p.VotePromptIndex != nil {
		idx := *p.VotePromptIndex
		p.VotePromptIndex = &idx
	}
	return p
}

// ClonePlayers deep-copies a roster. A nil roster stays nil.
func ClonePlayers(players []Player) []Player {
	if players == nil {
		return nil
	}
	out := make([]Player, len(players))
	for i, p := range players {
		out[i] = p.Clone()
	}
	return out
}
