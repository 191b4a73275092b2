package domain

import "sort"

// VoteResult is the number of votes one player received for a prompt
type VoteResult struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	VoteCount int    `json:"voteCount"`
}

// Tally aggregates the votes cast for one prompt index
type Tally struct {
	PromptIndex   int            `json:"promptIndex"`
	Counts        map[string]int `json:"counts"`
	Results       []VoteResult   `json:"results"` // targets with votes, winner first
	Winner        string         `json:"winner,omitempty"`
	VotesCast     int            `json:"votesCast"`
	EveryoneVoted bool           `json:"everyoneVoted"`
}

// VotesRemaining returns how many roster members still have to vote
func (t Tally) VotesRemaining(rosterSize int) int {
	if n := rosterSize - t.VotesCast; n > 0 {
		return n
	}
	return 0
}

// TallyVotes counts votes recorded for promptIndex. The winner is the target
// with the most votes; ties go to the earliest joinedAt among the tied targets,
// then roster order. Targets no longer in the roster rank after members,
// ordered by id. The result does not depend on vote arrival order.
func TallyVotes(promptIndex int, players []Player) Tally {
	t := Tally{
		PromptIndex: promptIndex,
		Counts:      make(map[string]int),
	}

	for _, p := range players {
		if !p.HasVotedOn(promptIndex) {
			continue
		}
		t.Counts[p.VoteFor]++
		t.VotesCast++
	}
	t.EveryoneVoted = len(players) > 0 && t.VotesCast == len(players)

	position := make(map[string]int, len(players))
	names := make(map[string]string, len(players))
	for i, p := range players {
		position[p.ID] = i
		names[p.ID] = p.Name
	}

	results := make([]VoteResult, 0, len(t.Counts))
	for id, count := range t.Counts {
		results = append(results, VoteResult{PlayerID: id, Name: names[id], VoteCount: count})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		return joinedBefore(players, position, a.PlayerID, b.PlayerID)
	})

	t.Results = results
	if len(results) > 0 {
		t.Winner = results[0].PlayerID
	}
	return t
}

// joinedBefore orders two vote targets for tie-breaking.
func joinedBefore(players []Player, position map[string]int, a, b string) bool {
	ia, aok := position[a]
	ib, bok := position[b]
	switch {
	case aok && bok:
		ja, jb := players[ia].JoinedAt, players[ib].JoinedAt
		if !ja.Equal(jb) {
			return ja.Before(jb)
		}
		return ia < ib
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}
