package domain

// Phase represents the current phase of a room
type Phase string

const (
	PhaseLobby            Phase = "LOBBY"             // Waiting for players to join
	PhasePromptSubmission Phase = "PROMPT_SUBMISSION" // Every player writes one custom prompt
	PhaseActive           Phase = "ACTIVE"            // Prompts revealed one at a time
	PhaseVoting           Phase = "VOTING"            // Revealed prompt in a voting category
	PhaseFinished         Phase = "FINISHED"          // Last prompt done
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// Command names a room command whose acceptance depends on the phase
type Command string

const (
	CmdStartGame      Command = "start-game"
	CmdSubmitPrompt   Command = "submit-prompt"
	CmdCompilePrompts Command = "compile-prompts"
	CmdReveal         Command = "reveal"
	CmdAdvance        Command = "advance"
	CmdRetreat        Command = "retreat"
	CmdFinish         Command = "finish"
	CmdPlayAgain      Command = "play-again"
	CmdChangeCategory Command = "change-category"
	CmdVote           Command = "vote"
)

// commandPhases is the phase state machine: the phases each command is
// accepted in. Roster commands (join, leave, rename) are accepted in any phase.
var commandPhases = map[Command][]Phase{
	CmdStartGame:      {PhaseLobby},
	CmdChangeCategory: {PhaseLobby},
	CmdSubmitPrompt:   {PhasePromptSubmission},
	CmdCompilePrompts: {PhasePromptSubmission},
	CmdReveal:         {PhaseActive, PhaseVoting},
	CmdAdvance:        {PhaseActive, PhaseVoting},
	CmdRetreat:        {PhaseActive, PhaseVoting},
	CmdFinish:         {PhaseActive, PhaseVoting},
	CmdVote:           {PhaseVoting},
	CmdPlayAgain:      {PhaseFinished},
}

// Allows checks if cmd is accepted in phase p
func (p Phase) Allows(cmd Command) bool {
	for _, phase := range commandPhases[cmd] {
		if phase == p {
			return true
		}
	}
	return false
}

// requirePhase fails with ErrInvalidPhase unless the room accepts cmd
func requirePhase(r Room, cmd Command) error {
	if !r.Phase().Allows(cmd) {
		return ErrInvalidPhase
	}
	return nil
}

// PhaseOf derives the phase from the flag fields of a room record.
func PhaseOf(r Room) Phase {
	switch {
	case r.GameFinished:
		return PhaseFinished
	case !r.Started:
		return PhaseLobby
	case r.PromptSubmissionPhase:
		return PhasePromptSubmission
	case r.Revealed && r.Category.HasVoting():
		return PhaseVoting
	default:
		return PhaseActive
	}
}
