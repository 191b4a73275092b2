package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomExists        = errors.New("room code already in use")
	ErrRoomFull          = errors.New("room is full")
	ErrStoreUnavailable  = errors.New("room store unavailable")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotEnoughPlayers  = errors.New("not enough players to start")
	ErrInvalidPhase      = errors.New("invalid action for current phase")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNotInRoom         = errors.New("not in a room")
	ErrAlreadyInRoom     = errors.New("already in a room")
	ErrEmptyPrompt       = errors.New("prompt cannot be empty")
	ErrEmptyName         = errors.New("name cannot be empty")
	ErrNoPrompts         = errors.New("room has no prompts")
	ErrVotingIncomplete  = errors.New("not everyone has voted")
	ErrCannotVoteSelf    = errors.New("cannot vote for yourself")
	ErrInvalidVoteTarget = errors.New("invalid vote target")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrDerangementFailed = errors.New("could not derange prompts")
)

// Permission refinements; both satisfy errors.Is(err, ErrPermissionDenied).
var (
	ErrNotHost     = fmt.Errorf("%w: only the host can perform this action", ErrPermissionDenied)
	ErrNotYourTurn = fmt.Errorf("%w: only the active player can perform this action", ErrPermissionDenied)
)
