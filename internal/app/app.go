// Package app wires all clue2 subsystems into a running copilot.
//
// The App struct owns the full pipeline lifecycle: New connects capture →
// frame assembly → recognizer → transcript gate → conversation log →
// orchestrator → synthesis queue, the control surface drives sessions
// (Initialize, SubmitManualText, StartCapture, StopCapture, Close), Run
// serves the observability endpoint, and Shutdown tears everything down in
// order.
//
// For testing, inject doubles via functional options (WithEmitter,
// WithMetrics, WithPlayer). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/internal/capture"
	"github.com/Trolleroof/Clue2-hackathon/internal/config"
	"github.com/Trolleroof/Clue2-hackathon/internal/conversation"
	"github.com/Trolleroof/Clue2-hackathon/internal/events"
	"github.com/Trolleroof/Clue2-hackathon/internal/observe"
	"github.com/Trolleroof/Clue2-hackathon/internal/orchestrator"
	"github.com/Trolleroof/Clue2-hackathon/internal/session"
	"github.com/Trolleroof/Clue2-hackathon/internal/synthesis"
	"github.com/Trolleroof/Clue2-hackathon/internal/transcript"
	"github.com/Trolleroof/Clue2-hackathon/pkg/audio"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
)

// Providers holds one interface value per provider slot, plus the registry
// name of each for log and metric attribution. Nil means the provider is not
// configured; the app degrades instead of failing (no recognizer → manual
// input only, no synthesizer → text-only replies).
type Providers struct {
	Recognizer     recognizer.Provider
	RecognizerName string

	Reply     replygen.Provider
	ReplyName string

	Synthesizer     synthesizer.Provider
	SynthesizerName string

	// Search is the optional augmentation provider consulted before reply
	// generation when the session enables it.
	Search orchestrator.SearchProvider
}

// App owns all subsystem lifetimes and runs the clue2 pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics *observe.Metrics
	emitter events.Emitter

	state     *session.State
	log       *conversation.Log
	corrector *transcript.Corrector
	gate      *transcript.Gate
	batcher   *transcript.Batcher
	capture   *capture.Process
	player    synthesis.Player
	queue     *synthesis.Queue
	orch      *orchestrator.Orchestrator

	// initMu serializes Initialize and Close against each other.
	initMu sync.Mutex

	// mu guards the recognizer stream handle and the assembler, which is not
	// safe for concurrent use on its own.
	mu        sync.Mutex
	stream    recognizer.Stream
	assembler *audio.Assembler

	streamWG sync.WaitGroup

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithEmitter injects a presentation event emitter. Default: events.LogEmitter.
func WithEmitter(e events.Emitter) Option {
	return func(a *App) { a.emitter = e }
}

// WithMetrics injects a metrics instrument set. Default: observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithPlayer injects an audio player for the synthesis queue instead of the
// exec player built from config.
func WithPlayer(p synthesis.Player) Option {
	return func(a *App) { a.player = p }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). New performs no
// I/O; sessions start with Initialize and the capture subprocess with
// StartCapture.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if providers == nil {
		providers = &Providers{}
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		state:     session.NewState(),
		log:       conversation.NewLog(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.emitter == nil {
		a.emitter = events.LogEmitter{}
	}

	// ── Transcript path ──────────────────────────────────────────────────
	a.corrector = transcript.NewCorrector(cfg.Transcript.Vocabulary)
	a.gate = transcript.NewGate(a.corrector)
	a.batcher = transcript.NewBatcher(
		time.Duration(cfg.Transcript.BatchQuietMS)*time.Millisecond,
		func(batch string) {
			slog.Debug("app: batched utterance", "len", len(batch), "text", batch)
		},
	)
	a.closers = append(a.closers, func() error { a.batcher.Close(); return nil })

	// ── Audio path ───────────────────────────────────────────────────────
	a.assembler = audio.NewAssembler(
		audio.WithSampleRate(cfg.Capture.SampleRate),
		audio.WithChannels(cfg.Capture.Channels),
		audio.WithFrameDuration(time.Duration(cfg.Capture.FrameMS)*time.Millisecond),
	)
	a.capture = capture.New(cfg.Capture, a.onCaptureChunk)

	// ── Synthesis path ───────────────────────────────────────────────────
	if providers.Synthesizer != nil {
		if a.player == nil {
			a.player = synthesis.NewExecPlayer(cfg.Synthesis.Player)
		}
		a.queue = synthesis.NewQueue(synthesis.QueueConfig{
			Provider:     providers.Synthesizer,
			ProviderName: providers.SynthesizerName,
			Player:       a.player,
			Voice: synthesizer.VoiceOptions{
				Voice: cfg.Synthesis.Voice,
				Speed: cfg.Synthesis.Speed,
			},
			Metrics: a.metrics,
		})
		a.closers = append(a.closers, func() error { a.queue.Close(); return nil })
	} else {
		slog.Info("app: no synthesizer configured, replies will be text-only")
	}

	// ── Reply path ───────────────────────────────────────────────────────
	if providers.Reply != nil {
		a.orch = orchestrator.New(orchestrator.Config{
			Generator:     providers.Reply,
			GeneratorName: providers.ReplyName,
			Search:        providers.Search,
			Log:           a.log,
			State:         a.state,
			Queue:         a.queue,
			Emitter:       a.emitter,
			Metrics:       a.metrics,
			SystemPrompt:  cfg.Reply.SystemPrompt,
			Temperature:   cfg.Reply.Temperature,
			MaxTokens:     cfg.Reply.MaxTokens,
		})
	} else {
		slog.Warn("app: no reply provider configured, transcripts will be recorded but never answered")
	}

	return a, nil
}

// ─── Control surface ─────────────────────────────────────────────────────────

// Initialize starts a session: any previous recognizer stream is flushed and
// closed, the conversation log, dedup gate, batcher and assembler are reset,
// a fresh recognizer stream is opened, and the session state becomes Active
// under a newly minted session ID, which is returned.
//
// Initializing while a session is already active re-initializes in place.
func (a *App) Initialize(ctx context.Context, settings session.Settings) (string, error) {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	a.closeStream()

	wasActive := a.state.Active()
	id := a.state.Activate(settings)
	a.log.Reset(id)
	a.gate.Reset()
	a.batcher.Reset()
	a.mu.Lock()
	a.assembler.Reset()
	a.mu.Unlock()

	if a.providers.Recognizer != nil {
		stream, err := a.providers.Recognizer.StartStream(ctx, recognizer.StreamConfig{
			SampleRate: a.assembler.SampleRate(),
			Language:   a.cfg.Transcript.Language,
			Phrases:    a.cfg.Transcript.Vocabulary,
		})
		if err != nil {
			a.state.Deactivate()
			if wasActive {
				a.metrics.SessionActive.Add(ctx, -1)
			}
			a.metrics.RecordProviderError(ctx, a.providers.RecognizerName, "recognizer")
			return "", fmt.Errorf("app: start recognizer stream: %w", err)
		}
		a.mu.Lock()
		a.stream = stream
		a.mu.Unlock()
		a.streamWG.Add(1)
		go a.consumeStream(stream)
	} else {
		slog.Warn("app: no recognizer configured, only manual input will produce turns")
	}

	if !wasActive {
		a.metrics.SessionActive.Add(ctx, 1)
	}
	a.emitter.UpdateStatus(orchestrator.StatusListening)
	slog.Info("app: session initialized",
		"session_id", id,
		"recognizer", a.providers.RecognizerName,
		"auto_respond", settings.AutoRespond,
		"search_enabled", settings.SearchEnabled,
	)
	return id, nil
}

// SubmitManualText feeds operator-typed text into the pipeline. Manual input
// passes the same normalization and dedup gate as captured speech but always
// qualifies for a reply. Returns an error when no session is active.
func (a *App) SubmitManualText(ctx context.Context, text string) error {
	if !a.state.Active() {
		return errors.New("app: no active session, initialize first")
	}
	a.submit(ctx, text, conversation.SourceManual)
	return nil
}

// StartCapture launches the audio capture subprocess. Frames reach the
// recognizer only while a session is active; capture may be started before
// Initialize, in which case frames are assembled and discarded.
func (a *App) StartCapture(ctx context.Context) error {
	return a.capture.Start(ctx)
}

// StopCapture terminates the capture subprocess. Idempotent.
func (a *App) StopCapture() error {
	return a.capture.Stop()
}

// Close ends the session: capture is stopped, the recognizer stream is
// flushed and closed best-effort, and the state becomes Idle. Queued
// synthesis keeps draining; only Shutdown stops the queue worker.
func (a *App) Close(ctx context.Context) error {
	a.initMu.Lock()
	defer a.initMu.Unlock()

	var errs []error
	if err := a.capture.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop capture: %w", err))
	}
	a.closeStream()

	if a.state.Active() {
		id := a.state.ID()
		a.state.Deactivate()
		a.metrics.SessionActive.Add(ctx, -1)
		slog.Info("app: session closed", "session_id", id, "turns", a.log.Len())
	}
	return errors.Join(errs...)
}

// closeStream clears the stream handle, flushes and closes the stream, and
// waits for the consumer goroutine to drain the closed events channel.
func (a *App) closeStream() {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.mu.Unlock()
	if stream == nil {
		return
	}
	if err := stream.Flush(); err != nil {
		slog.Debug("app: recognizer flush on close", "err", err)
	}
	if err := stream.Close(); err != nil {
		slog.Warn("app: recognizer close", "err", err)
	}
	a.streamWG.Wait()
}

// ─── Pipeline internals ──────────────────────────────────────────────────────

// onCaptureChunk is the capture subprocess stdout callback. Every chunk is
// assembled into frames; frames are forwarded to the recognizer only while
// the session is Active and a stream is open, and discarded otherwise (never
// buffered).
func (a *App) onCaptureChunk(chunk []byte) {
	ctx := context.Background()
	a.metrics.CaptureBytes.Add(ctx, int64(len(chunk)))

	a.mu.Lock()
	frames := a.assembler.Write(chunk)
	stream := a.stream
	a.mu.Unlock()
	if len(frames) == 0 {
		return
	}

	forward := stream != nil && a.state.Active()
	for i, f := range frames {
		if !forward {
			a.metrics.RecordFrame(ctx, "discarded")
			continue
		}
		if err := stream.SendAudio(f.Data); err != nil {
			// The stream is gone; drop the rest of this chunk's frames.
			slog.Warn("app: recognizer send failed", "err", err, "dropped_frames", len(frames)-i)
			a.metrics.RecordProviderError(ctx, a.providers.RecognizerName, "recognizer")
			forward = false
			a.metrics.RecordFrame(ctx, "discarded")
			continue
		}
		a.metrics.RecordFrame(ctx, "forwarded")
	}
}

// consumeStream drains one recognizer stream's event channel until the
// provider closes it. Interim segments are advisory and dropped; finals enter
// the transcript gate.
func (a *App) consumeStream(stream recognizer.Stream) {
	defer a.streamWG.Done()
	ctx := context.Background()

	for ev := range stream.Events() {
		switch ev.Type {
		case recognizer.EventSegment:
			if !ev.Segment.IsFinal {
				a.metrics.RecordSegment(ctx, "interim")
				continue
			}
			a.metrics.RecordSegment(ctx, "final")
			if !a.state.Active() {
				slog.Debug("app: final segment while idle, dropping", "text", ev.Segment.Text)
				continue
			}
			a.submit(ctx, ev.Segment.Text, conversation.SourceAuto)

		case recognizer.EventError:
			a.metrics.RecordProviderError(ctx, a.providers.RecognizerName, "recognizer")
			slog.Warn("app: recognizer error", "err", ev.Err)

		case recognizer.EventFlushComplete:
			slog.Debug("app: recognizer flush complete")

		case recognizer.EventStreamComplete:
			slog.Info("app: recognizer stream ended")
		}
	}
}

// submit runs one transcript (captured or manual) through the gate, records
// the accepted turn, surfaces it, and kicks off reply generation when the
// classifier says the text deserves one.
func (a *App) submit(ctx context.Context, text string, source conversation.Source) {
	clean, verdict := a.gate.Admit(text)
	a.metrics.RecordGateDecision(ctx, verdict.String())
	if verdict != transcript.Accepted {
		slog.Debug("app: transcript rejected", "verdict", verdict.String(), "text", clean)
		return
	}

	turn := a.log.Append(clean, source)
	a.emitter.TranscriptCaptured(clean, turn.Timestamp, source)
	a.emitter.SaveConversationTurn(a.log.SessionID(), turn, a.log.History())
	a.batcher.Add(clean)

	respond, rule := transcript.ShouldRespond(clean, transcript.ClassifyOptions{
		AutoRespond: a.state.AutoRespond(),
		Manual:      source == conversation.SourceManual,
	})
	if !respond {
		slog.Debug("app: not responding", "rule", rule, "text", clean)
		return
	}
	if a.orch == nil {
		slog.Warn("app: transcript qualifies for a reply but no reply provider is configured")
		return
	}
	// Generation outlives the submitting event; provider clients carry their
	// own timeouts.
	go a.orch.Respond(context.Background(), turn)
}

// ─── Accessors for the config reload path ────────────────────────────────────

// State returns the session state, for settings toggles on config reload.
func (a *App) State() *session.State { return a.state }

// Orchestrator returns the reply orchestrator, or nil when no reply provider
// is configured.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Queue returns the synthesis queue, or nil when no synthesizer is configured.
func (a *App) Queue() *synthesis.Queue { return a.queue }

// SetVocabulary replaces the correction vocabulary. Recognizer keyword hints
// pick the change up on the next Initialize; correction applies immediately.
func (a *App) SetVocabulary(words []string) {
	a.corrector.SetVocabulary(words)
}
