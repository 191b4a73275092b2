package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupplay/internal/domain"
	"groupplay/internal/session"
	"groupplay/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolvePlayer(t *testing.T) {
	m := session.Mirror{Room: &domain.Room{Players: []domain.Player{
		{ID: "a", Name: "Alice"},
		{ID: "b", Name: "Bob"},
	}}}

	tests := []struct {
		arg     string
		want    string
		wantErr error
	}{
		{"1", "a", nil},
		{"2", "b", nil},
		{"bob", "b", nil},
		{"3", "", domain.ErrPlayerNotFound},
		{"carol", "", domain.ErrPlayerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := resolvePlayer(m, tt.arg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := resolvePlayer(session.Mirror{}, "1")
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestREPL_HostStartsAndLeaves(t *testing.T) {
	ctx := context.Background()
	backend := memory.New(testLogger(), memory.Options{})
	defer backend.Close()

	host := session.NewClient(backend, session.Config{DisplayName: "Host"}, testLogger())
	defer host.Close()
	guest := session.NewClient(backend, session.Config{DisplayName: "Guest"}, testLogger())
	defer guest.Close()

	code, err := host.CreateRoom(ctx, domain.CategoryChill)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, code, ""))
	require.Eventually(t, func() bool {
		room, ok := host.Room()
		return ok && len(room.Players) == 2
	}, time.Second, 10*time.Millisecond)

	var out bytes.Buffer
	in := strings.NewReader("help\nstart\nbogus\nleave\n")
	require.NoError(t, newREPL(host, in, &out).run(ctx))

	assert.Contains(t, out.String(), "commands:")
	assert.Contains(t, out.String(), `unknown command "bogus"`)

	_, err = backend.Get(ctx, code)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound, "host leaving deletes the room")

	select {
	case reason := <-guest.Ended():
		assert.Equal(t, domain.EndReasonHostEnded, reason)
	case <-time.After(time.Second):
		t.Fatal("guest was not told the session ended")
	}
}

func TestREPL_GuestSeesEnd(t *testing.T) {
	ctx := context.Background()
	backend := memory.New(testLogger(), memory.Options{})
	defer backend.Close()

	host := session.NewClient(backend, session.Config{DisplayName: "Host"}, testLogger())
	defer host.Close()
	guest := session.NewClient(backend, session.Config{DisplayName: "Guest"}, testLogger())
	defer guest.Close()

	code, err := host.CreateRoom(ctx, domain.CategoryChill)
	require.NoError(t, err)
	require.NoError(t, guest.JoinRoom(ctx, code, ""))

	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	errCh := make(chan error, 1)
	go func() { errCh <- newREPL(guest, pr, &out).run(ctx) }()

	require.NoError(t, host.LeaveRoom(ctx))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("repl did not stop after the host left")
	}
	assert.Contains(t, out.String(), "session ended: host-ended")
}
