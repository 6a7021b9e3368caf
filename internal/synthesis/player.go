package synthesis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Player plays one synthesized audio artifact to completion.
type Player interface {
	// Play blocks until playback finishes or ctx is cancelled.
	Play(ctx context.Context, audio []byte) error
}

// ExecPlayer shells out to a configured playback command, handing it the
// audio as a temporary file appended as the final argument. Typical commands
// are ["afplay"] on macOS and ["mpv", "--really-quiet"] on Linux.
type ExecPlayer struct {
	command []string
}

var _ Player = (*ExecPlayer)(nil)

// NewExecPlayer returns a player for the given command. An empty command
// disables playback entirely: Play succeeds and the audio is dropped.
func NewExecPlayer(command []string) *ExecPlayer {
	if len(command) == 0 {
		slog.Info("synthesis: no player command configured; replies will not be audible")
	}
	return &ExecPlayer{command: command}
}

// Play writes audio to a temporary file and runs the playback command on it,
// blocking until the command exits. The temporary file is removed afterwards.
func (p *ExecPlayer) Play(ctx context.Context, audio []byte) error {
	if len(p.command) == 0 {
		return nil
	}
	if len(audio) == 0 {
		return errors.New("synthesis: no audio to play")
	}

	f, err := os.CreateTemp("", "clue2-reply-*.mp3")
	if err != nil {
		return fmt.Errorf("synthesis: create playback file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("synthesis: write playback file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("synthesis: close playback file: %w", err)
	}

	args := append(append([]string(nil), p.command[1:]...), f.Name())
	cmd := exec.CommandContext(ctx, p.command[0], args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("synthesis: player %q: %w: %s", p.command[0], err, msg)
		}
		return fmt.Errorf("synthesis: player %q: %w", p.command[0], err)
	}
	return nil
}
