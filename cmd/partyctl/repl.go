package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"groupplay/internal/domain"
	"groupplay/internal/session"
)

const (
	commandTimeout = 10 * time.Second
	helpText       = `commands:
  start               start the game (host)
  submit TEXT         submit your custom prompt
  compile             shuffle and assign custom prompts (host)
  reveal              reveal the current card (active player)
  next | prev         move between prompts
  vote NAME|#         vote for a player by name or roster number
  tally               show the votes for the current prompt
  finish              end the round (host)
  again               back to the lobby after a round (host)
  name NAME           change your display name
  category NAME       change the category in the lobby (host)
  state               print the room
  leave               leave the room`
)

// repl drives a session client from line-based input
type repl struct {
	client *session.Client
	in     io.Reader
	out    io.Writer
}

func newREPL(client *session.Client, in io.Reader, out io.Writer) *repl {
	return &repl{client: client, in: in, out: out}
}

func (r *repl) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(r.out, "type help for commands")
	r.render(r.client.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return r.leave()
		case m := <-r.client.Changes():
			r.render(m)
		case reason := <-r.client.Ended():
			fmt.Fprintf(r.out, "session ended: %s\n", reason)
			return nil
		case line, ok := <-lines:
			if !ok {
				return r.leave()
			}
			done, err := r.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

func (r *repl) leave() error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := r.client.LeaveRoom(ctx)
	if errors.Is(err, domain.ErrNotInRoom) {
		return nil
	}
	return err
}

// exec runs one command line. done is true once the room has been left.
func (r *repl) exec(ctx context.Context, line string) (done bool, err error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch strings.ToLower(cmd) {
	case "":
	case "help", "?":
		fmt.Fprintln(r.out, helpText)
	case "state":
		r.render(r.client.Snapshot())
	case "start":
		err = r.client.StartGame(ctx)
	case "submit":
		err = r.client.SubmitPrompt(ctx, arg)
	case "compile":
		err = r.client.CompilePrompts(ctx)
	case "reveal":
		err = r.client.RevealCard(ctx)
	case "next":
		err = r.client.NextPrompt(ctx)
	case "prev":
		err = r.client.PreviousPrompt(ctx)
	case "finish":
		err = r.client.FinishGame(ctx)
	case "again":
		err = r.client.PlayAgain(ctx)
	case "vote":
		var target string
		if target, err = resolvePlayer(r.client.Snapshot(), arg); err == nil {
			err = r.client.SubmitVote(ctx, target)
		}
	case "tally":
		var t domain.Tally
		if t, err = r.client.Tally(); err == nil {
			r.renderTally(t)
		}
	case "name":
		err = r.client.UpdatePlayerName(ctx, arg)
	case "category":
		var c domain.Category
		if c, err = parseCategory(arg); err == nil {
			err = r.client.ChangeCategory(ctx, c)
		}
	case "leave", "quit", "exit":
		return true, r.leave()
	default:
		err = fmt.Errorf("unknown command %q, type help", cmd)
	}
	return false, err
}

// resolvePlayer maps a 1-based roster number or a case-insensitive name to a player id
func resolvePlayer(m session.Mirror, arg string) (string, error) {
	if m.Room == nil {
		return "", domain.ErrNotInRoom
	}
	players := m.Room.Players

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(players) {
			return "", domain.ErrPlayerNotFound
		}
		return players[n-1].ID, nil
	}
	for _, p := range players {
		if strings.EqualFold(p.Name, arg) {
			return p.ID, nil
		}
	}
	return "", domain.ErrPlayerNotFound
}

func (r *repl) render(m session.Mirror) {
	if m.Room == nil {
		return
	}
	room := m.Room
	phase := room.Phase()

	fmt.Fprintf(r.out, "\n[%s] %s  category=%s\n", room.ID, phase, room.Category)
	for i, p := range room.Players {
		var marks []string
		if p.ID == room.HostID {
			marks = append(marks, "host")
		}
		if p.ID == m.SelfID {
			marks = append(marks, "you")
		}
		if p.ID == room.ActivePlayerID {
			marks = append(marks, "turn")
		}
		if phase == domain.PhasePromptSubmission && p.PromptSubmitted {
			marks = append(marks, "submitted")
		}
		suffix := ""
		if len(marks) > 0 {
			suffix = " (" + strings.Join(marks, ", ") + ")"
		}
		fmt.Fprintf(r.out, "  %d. %s%s\n", i+1, p.Name, suffix)
	}

	switch phase {
	case domain.PhasePromptSubmission:
		fmt.Fprintf(r.out, "prompts submitted: %d/%d\n", room.SubmittedCount(), len(room.Players))
	case domain.PhaseActive, domain.PhaseVoting:
		fmt.Fprintf(r.out, "prompt %d/%d", room.CurrentPromptIndex+1, len(room.Prompts))
		if prompt, ok := room.CurrentPrompt(); ok && room.Revealed {
			fmt.Fprintf(r.out, ": %s", prompt)
		}
		fmt.Fprintln(r.out)
	case domain.PhaseFinished:
		fmt.Fprintln(r.out, "round finished")
	}
}

func (r *repl) renderTally(t domain.Tally) {
	if len(t.Results) == 0 {
		fmt.Fprintln(r.out, "no votes yet")
		return
	}
	for _, res := range t.Results {
		name := res.Name
		if name == "" {
			name = res.PlayerID
		}
		fmt.Fprintf(r.out, "  %s: %d\n", name, res.VoteCount)
	}
	if t.EveryoneVoted {
		fmt.Fprintln(r.out, "everyone has voted")
	}
}
