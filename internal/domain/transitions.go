package domain

import "strings"

// DefaultMinPlayers is the smallest roster that can start a game
const DefaultMinPlayers = 2

// Transitions compute the partial update a command writes to the room
// record. They never mutate the room they are given; a rejected command
// returns an error and no update.

// AddPlayer appends a player to the roster. maxPlayers <= 0 means no limit.
func AddPlayer(r Room, p Player, maxPlayers int) (RoomUpdate, error) {
	if r.PlayerIndex(p.ID) >= 0 {
		return RoomUpdate{}, ErrAlreadyInRoom
	}
	if maxPlayers > 0 && len(r.Players) >= maxPlayers {
		return RoomUpdate{}, ErrRoomFull
	}
	players := append(ClonePlayers(r.Players), p)
	return PlayersUpdate(players), nil
}

// RemovePlayer drops a player from the roster. empty is true when nobody
// is left, in which case the caller deletes the room instead of writing.
func RemovePlayer(r Room, playerID string) (u RoomUpdate, empty bool, err error) {
	if r.PlayerIndex(playerID) < 0 {
		return RoomUpdate{}, false, ErrPlayerNotFound
	}
	players := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.ID != playerID {
			players = append(players, p.Clone())
		}
	}
	if len(players) == 0 {
		return RoomUpdate{}, true, nil
	}
	return PlayersUpdate(players), false, nil
}

// RenamePlayer changes the caller's own display name
func RenamePlayer(r Room, actorID, name string) (RoomUpdate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RoomUpdate{}, ErrEmptyName
	}
	return updateSelf(r, actorID, func(p *Player) {
		p.Name = name
	})
}

// StartGame leaves the lobby. Custom rooms without prompts enter prompt
// submission; everything else goes straight to active play with a random
// starting player.
func StartGame(r Room, actorID string, minPlayers int, rng Rand) (RoomUpdate, error) {
	if !r.IsHost(actorID) {
		return RoomUpdate{}, ErrNotHost
	}
	if err := requirePhase(r, CmdStartGame); err != nil {
		return RoomUpdate{}, err
	}
	if minPlayers < DefaultMinPlayers {
		minPlayers = DefaultMinPlayers
	}
	if len(r.Players) < minPlayers {
		return RoomUpdate{}, ErrNotEnoughPlayers
	}

	if r.Category.IsCustom() && len(r.Prompts) == 0 {
		players := ClonePlayers(r.Players)
		for i := range players {
			players[i].ResetForNewGame()
		}
		return RoomUpdate{
			Players:               ptr(players),
			Started:               ptr(true),
			PromptSubmissionPhase: ptr(true),
			GameFinished:          ptr(false),
			Revealed:              ptr(false),
			CurrentPromptIndex:    ptr(0),
			ActivePlayerID:        ptr(""),
		}, nil
	}

	if len(r.Prompts) == 0 {
		return RoomUpdate{}, ErrNoPrompts
	}

	return RoomUpdate{
		Started:               ptr(true),
		PromptSubmissionPhase: ptr(false),
		GameFinished:          ptr(false),
		Revealed:              ptr(false),
		CurrentPromptIndex:    ptr(0),
		ActivePlayerID:        ptr(randomPlayerID(r.Players, rng)),
	}, nil
}

// SubmitPrompt stores the caller's custom prompt. Resubmitting overwrites.
func SubmitPrompt(r Room, actorID, prompt string) (RoomUpdate, error) {
	if err := requirePhase(r, CmdSubmitPrompt); err != nil {
		return RoomUpdate{}, err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return RoomUpdate{}, ErrEmptyPrompt
	}
	return updateSelf(r, actorID, func(p *Player) {
		p.Prompt = prompt
		p.PromptSubmitted = true
	})
}

// ReadyToCompile is the guard for leaving prompt submission
func ReadyToCompile(r Room) bool {
	return r.Phase().Allows(CmdCompilePrompts) && r.AllPromptsSubmitted()
}

// CompilePrompts collects the submitted prompts in roster order, deranges
// them and starts active play with a random player. Any player may run it.
func CompilePrompts(r Room, d Deranger) (RoomUpdate, error) {
	if err := requirePhase(r, CmdCompilePrompts); err != nil {
		return RoomUpdate{}, err
	}
	if !r.AllPromptsSubmitted() {
		return RoomUpdate{}, ErrInvalidTransition
	}

	collected := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		collected = append(collected, p.Prompt)
	}

	prompts, err := d.Derange(collected)
	if err != nil {
		return RoomUpdate{}, err
	}

	return RoomUpdate{
		Prompts:               ptr(prompts),
		ActivePlayerID:        ptr(randomPlayerID(r.Players, d.Rand)),
		PromptSubmissionPhase: ptr(false),
		CurrentPromptIndex:    ptr(0),
		Revealed:              ptr(false),
	}, nil
}

// RevealPrompt shows the current prompt. Only the active player may reveal.
func RevealPrompt(r Room, actorID string) (RoomUpdate, error) {
	if err := requirePhase(r, CmdReveal); err != nil {
		return RoomUpdate{}, err
	}
	if !canDrive(r, actorID) {
		return RoomUpdate{}, ErrNotYourTurn
	}
	return RoomUpdate{Revealed: ptr(true)}, nil
}

// AdvancePrompt moves past the current prompt. On the last prompt it
// finishes the game instead of running the cursor out of range. Voting
// categories require a vote from every player first.
func AdvancePrompt(r Room, actorID string, rng Rand) (RoomUpdate, error) {
	if err := requirePhase(r, CmdAdvance); err != nil {
		return RoomUpdate{}, err
	}
	if !canDrive(r, actorID) {
		return RoomUpdate{}, ErrNotYourTurn
	}
	if r.Category.HasVoting() && !TallyVotes(r.CurrentPromptIndex, r.Players).EveryoneVoted {
		return RoomUpdate{}, ErrVotingIncomplete
	}
	if r.IsLastPrompt() {
		return finishUpdate(), nil
	}

	next := r.CurrentPromptIndex + 1
	return RoomUpdate{
		CurrentPromptIndex: ptr(next),
		ActivePlayerID:     ptr(NextActivePlayer(r, next, rng)),
		Revealed:           ptr(false),
	}, nil
}

// RetreatPrompt steps the cursor back by one. Host only.
func RetreatPrompt(r Room, actorID string) (RoomUpdate, error) {
	if !r.IsHost(actorID) {
		return RoomUpdate{}, ErrNotHost
	}
	if err := requirePhase(r, CmdRetreat); err != nil {
		return RoomUpdate{}, err
	}
	if r.CurrentPromptIndex == 0 {
		return RoomUpdate{}, ErrInvalidTransition
	}
	return RoomUpdate{
		CurrentPromptIndex: ptr(r.CurrentPromptIndex - 1),
		Revealed:           ptr(false),
	}, nil
}

// FinishGame ends active play. The host or the active player may finish.
func FinishGame(r Room, actorID string) (RoomUpdate, error) {
	if err := requirePhase(r, CmdFinish); err != nil {
		return RoomUpdate{}, err
	}
	if !r.IsHost(actorID) && !canDrive(r, actorID) {
		return RoomUpdate{}, ErrPermissionDenied
	}
	return finishUpdate(), nil
}

// PlayAgain resets a finished room back to the lobby. Host only.
func PlayAgain(r Room, actorID string, rng Rand) (RoomUpdate, error) {
	if !r.IsHost(actorID) {
		return RoomUpdate{}, ErrNotHost
	}
	if err := requirePhase(r, CmdPlayAgain); err != nil {
		return RoomUpdate{}, err
	}

	players := ClonePlayers(r.Players)
	for i := range players {
		players[i].ResetForNewGame()
	}

	return RoomUpdate{
		Players:               ptr(players),
		Prompts:               ptr(CategoryPrompts(r.Category, rng)),
		CurrentPromptIndex:    ptr(0),
		ActivePlayerID:        ptr(""),
		Started:               ptr(false),
		PromptSubmissionPhase: ptr(false),
		GameFinished:          ptr(false),
		Revealed:              ptr(false),
	}, nil
}

// ChangeCategory swaps the deck while still in the lobby. Host only.
func ChangeCategory(r Room, actorID string, c Category, rng Rand) (RoomUpdate, error) {
	if !r.IsHost(actorID) {
		return RoomUpdate{}, ErrNotHost
	}
	if err := requirePhase(r, CmdChangeCategory); err != nil {
		return RoomUpdate{}, err
	}
	if !c.Valid() {
		return RoomUpdate{}, ErrInvalidCategory
	}

	players := ClonePlayers(r.Players)
	for i := range players {
		players[i].ResetForNewGame()
	}

	return RoomUpdate{
		Category: ptr(c),
		Prompts:  ptr(CategoryPrompts(c, rng)),
		Players:  ptr(players),
	}, nil
}

// CastVote records the caller's vote for the prompt on screen. A later
// vote for the same prompt overwrites the earlier one.
func CastVote(r Room, actorID, targetID string) (RoomUpdate, error) {
	if !r.Category.HasVoting() || !r.Phase().Allows(CmdVote) {
		return RoomUpdate{}, ErrInvalidPhase
	}
	if actorID == targetID {
		return RoomUpdate{}, ErrCannotVoteSelf
	}
	if r.PlayerIndex(targetID) < 0 {
		return RoomUpdate{}, ErrInvalidVoteTarget
	}
	index := r.CurrentPromptIndex
	return updateSelf(r, actorID, func(p *Player) {
		p.VotePromptIndex = &index
		p.VoteFor = targetID
	})
}

// NextActivePlayer picks who holds the turn at prompt index next. Custom
// rooms follow roster order so prompt i is revealed by player i, whose own
// prompt the derangement kept away from position i. Other rooms pick a
// random player other than the current one.
func NextActivePlayer(r Room, next int, rng Rand) string {
	if len(r.Players) == 0 {
		return ""
	}
	if r.Category.IsCustom() {
		return r.Players[next%len(r.Players)].ID
	}

	candidates := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.ID != r.ActivePlayerID {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates = r.Players
	}
	return randomPlayerID(candidates, rng)
}

// canDrive reports whether actor may reveal or advance. When the active
// player has left the roster the host takes over the turn.
func canDrive(r Room, actorID string) bool {
	if r.IsActivePlayer(actorID) {
		return true
	}
	return r.IsHost(actorID) && r.PlayerIndex(r.ActivePlayerID) < 0
}

func finishUpdate() RoomUpdate {
	return RoomUpdate{
		GameFinished: ptr(true),
		Revealed:     ptr(false),
	}
}

func updateSelf(r Room, actorID string, mutate func(p *Player)) (RoomUpdate, error) {
	i := r.PlayerIndex(actorID)
	if i < 0 {
		return RoomUpdate{}, ErrPlayerNotFound
	}
	players := ClonePlayers(r.Players)
	mutate(&players[i])
	return PlayersUpdate(players), nil
}

func randomPlayerID(players []Player, rng Rand) string {
	if len(players) == 0 {
		return ""
	}
	if rng == nil {
		rng = DefaultRand
	}
	return players[rng.Intn(len(players))].ID
}
