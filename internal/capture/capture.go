// Package capture owns the external audio-capture subprocess.
//
// The capture helper is a separate OS binary that writes raw interleaved
// signed 16-bit little-endian PCM to its stdout. [Process] spawns exactly one
// helper, pumps stdout chunks into a callback, logs stderr, and tears the
// helper down with SIGTERM followed by SIGKILL after a grace period. A helper
// that dies on its own is never restarted here; the control surface decides
// whether to start capture again.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/internal/config"
)

const (
	// defaultStopGraceMS is how long Stop waits between SIGTERM and SIGKILL
	// when capture.stop_grace_ms is unset.
	defaultStopGraceMS = 3000

	// staleKillTimeout bounds the best-effort pre-start sweep for leftover
	// helper processes.
	staleKillTimeout = 2 * time.Second

	// readBufSize is the stdout read buffer size. 4 KiB is ~43 ms of
	// 24 kHz stereo s16le audio.
	readBufSize = 4096

	// Geometry defaults applied when the corresponding config value is zero.
	defaultSampleRate = 24000
	defaultChannels   = 2
)

// Environment variables the helper reads its configuration from.
const (
	envDevice     = "CLUE2_CAPTURE_DEVICE"
	envSampleRate = "CLUE2_CAPTURE_SAMPLE_RATE"
	envChannels   = "CLUE2_CAPTURE_CHANNELS"
)

var (
	// ErrUnsupported is returned by Start when no capture binary is
	// configured for this install.
	ErrUnsupported = errors.New("capture: no capture binary configured")

	// ErrAlreadyRunning is returned by Start when the helper is already up.
	ErrAlreadyRunning = errors.New("capture: helper already running")
)

// Process owns a single external capture subprocess.
//
// Start spawns the helper and begins forwarding stdout chunks; forwarding
// stops on helper exit or read error without restarting. Stop sends SIGTERM
// and escalates to SIGKILL after the grace period; calling it with nothing
// running is a no-op. All methods are safe for concurrent use.
type Process struct {
	cfg     config.CaptureConfig
	onChunk func([]byte)

	// stopping is set for the duration of Stop so the exit watcher can tell
	// a requested shutdown from a helper crash.
	stopping atomic.Bool

	mu   sync.Mutex
	cmd  *exec.Cmd
	exit chan error
}

// New returns a Process that will run the helper described by cfg and hand
// every stdout chunk to onChunk. onChunk is invoked from a dedicated pump
// goroutine and owns the slice it receives.
func New(cfg config.CaptureConfig, onChunk func([]byte)) *Process {
	return &Process{cfg: cfg, onChunk: onChunk}
}

// Start kills any leftover helper process system-wide (best-effort, bounded
// by a short timeout), then spawns the configured binary with the capture
// device, sample rate, and channel count in its environment.
//
// Returns [ErrUnsupported] when no binary is configured, [ErrAlreadyRunning]
// when the helper is already up, and a wrapped error when the spawn itself
// fails or yields no process ID. ctx bounds only the pre-start sweep; the
// helper's lifetime is governed by [Process.Stop].
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.Binary == "" {
		return ErrUnsupported
	}
	if p.cmd != nil {
		return ErrAlreadyRunning
	}

	killStale(ctx, filepath.Base(p.cfg.Binary))

	cmd := exec.Command(p.cfg.Binary)
	cmd.Env = append(os.Environ(),
		envDevice+"="+p.cfg.Device,
		envSampleRate+"="+strconv.Itoa(orDefault(p.cfg.SampleRate, defaultSampleRate)),
		envChannels+"="+strconv.Itoa(orDefault(p.cfg.Channels, defaultChannels)),
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture: open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("capture: open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("capture: start helper %q: %w", p.cfg.Binary, err)
	}
	if cmd.Process == nil || cmd.Process.Pid <= 0 {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
		return fmt.Errorf("capture: helper %q reported no pid", p.cfg.Binary)
	}

	slog.Info("capture: helper started", "binary", p.cfg.Binary, "pid", cmd.Process.Pid)

	p.stopping.Store(false)
	p.cmd = cmd
	p.exit = make(chan error, 1)

	var readers sync.WaitGroup
	readers.Add(2)
	go p.pumpStdout(stdout, &readers)
	go p.logStderr(stderr, &readers)
	go p.watchExit(cmd, &readers, p.exit)

	return nil
}

// Running reports whether the helper subprocess is currently up.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// Stop terminates the helper: SIGTERM, then SIGKILL once the configured
// grace period elapses. It returns after the helper has exited and is a
// no-op when nothing is running.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd, exit := p.cmd, p.exit
	p.mu.Unlock()

	if cmd == nil {
		return nil
	}

	p.stopping.Store(true)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Windows has no SIGTERM; the hard kill below covers it.
		slog.Debug("capture: SIGTERM failed", "err", err)
	}

	grace := time.Duration(orDefault(p.cfg.StopGraceMS, defaultStopGraceMS)) * time.Millisecond
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-exit:
	case <-timer.C:
		slog.Warn("capture: helper ignored SIGTERM, killing", "grace", grace)
		_ = cmd.Process.Kill()
		<-exit
	}
	return nil
}

// pumpStdout forwards raw stdout chunks to the configured callback until the
// pipe drains. Chunks keep flowing while a stopped helper drains its buffers;
// whether they reach the recognizer is the caller's decision.
func (p *Process) pumpStdout(r io.Reader, readers *sync.WaitGroup) {
	defer readers.Done()
	buf := make([]byte, readBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 && p.onChunk != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.onChunk(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				slog.Warn("capture: stdout read failed", "err", err)
			}
			return
		}
	}
}

// logStderr logs each helper stderr line verbatim. The helper's chatter is
// diagnostics only and is never parsed.
func (p *Process) logStderr(r io.Reader, readers *sync.WaitGroup) {
	defer readers.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		slog.Debug("capture: helper stderr", "line", sc.Text())
	}
}

// watchExit reaps the helper once both pipe readers are done, reports the
// result on exit, and clears the handle so forwarding stops for good.
func (p *Process) watchExit(cmd *exec.Cmd, readers *sync.WaitGroup, exit chan error) {
	readers.Wait()
	err := cmd.Wait()

	p.mu.Lock()
	if p.cmd == cmd {
		p.cmd = nil
		p.exit = nil
	}
	p.mu.Unlock()

	if err != nil && !p.stopping.Load() {
		slog.Warn("capture: helper exited unexpectedly", "err", err)
	} else {
		slog.Info("capture: helper stopped")
	}

	exit <- err
	close(exit)
}

// killStale terminates any process with the helper's name system-wide. The
// sweep is best-effort: a missing kill utility or no matching process is
// normal and only logged.
func killStale(ctx context.Context, name string) {
	if name == "" || name == "." {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, staleKillTimeout)
	defer cancel()

	var kill *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		kill = exec.CommandContext(ctx, "taskkill", "/F", "/IM", name)
	default:
		kill = exec.CommandContext(ctx, "pkill", "-x", name)
	}

	out, err := kill.CombinedOutput()
	if err != nil {
		// Exit code 1 from pkill means no process matched.
		slog.Debug("capture: stale-helper sweep found nothing", "helper", name, "err", err)
		return
	}
	slog.Info("capture: killed stale helper", "helper", name, "output", string(out))
}

// orDefault returns v, or def when v is zero.
func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
