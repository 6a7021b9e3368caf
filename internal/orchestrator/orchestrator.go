// Package orchestrator turns accepted transcripts into generated, spoken
// replies.
//
// Respond calls run concurrently when transcripts arrive faster than replies
// complete; there is deliberately no call-level lock. Correctness under
// out-of-order completion rests entirely on turn-ID keying: a reply is
// attached to the turn that triggered it, or dropped when that turn no longer
// exists.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Trolleroof/Clue2-hackathon/internal/conversation"
	"github.com/Trolleroof/Clue2-hackathon/internal/events"
	"github.com/Trolleroof/Clue2-hackathon/internal/observe"
	"github.com/Trolleroof/Clue2-hackathon/internal/session"
	"github.com/Trolleroof/Clue2-hackathon/internal/synthesis"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen"
)

// Status line values emitted while the pipeline works.
const (
	StatusListening = "listening"
	StatusThinking  = "thinking"
)

// searchTimeout bounds the optional search augmentation so a slow search
// backend cannot stall reply generation indefinitely.
const searchTimeout = 5 * time.Second

// SearchProvider returns a short textual summary of results for a query.
// An empty summary means nothing useful was found.
type SearchProvider interface {
	Search(ctx context.Context, query string) (string, error)
}

// Config wires an Orchestrator's collaborators.
type Config struct {
	// Generator produces replies.
	Generator replygen.Provider

	// GeneratorName labels provider errors in metrics (e.g. "openai").
	GeneratorName string

	// Search augments prompts with live context. Nil disables augmentation
	// regardless of the session setting.
	Search SearchProvider

	// Log is the conversation record replies are attached to.
	Log *conversation.Log

	// State supplies the per-session custom prompt and search toggle.
	State *session.State

	// Queue speaks successful replies. Nil disables synthesis.
	Queue *synthesis.Queue

	// Emitter receives status, turn, and response events.
	Emitter events.Emitter

	// Metrics receives instrumentation. Nil means the process-wide default.
	Metrics *observe.Metrics

	// SystemPrompt, Temperature, and MaxTokens are the base generation
	// settings; changeable later via SetReplySettings.
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Orchestrator drives the transcript-to-spoken-reply path.
type Orchestrator struct {
	generator     replygen.Provider
	generatorName string
	search        SearchProvider
	log           *conversation.Log
	state         *session.State
	queue         *synthesis.Queue
	emitter       events.Emitter
	metrics       *observe.Metrics

	mu           sync.Mutex
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// New creates an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	if cfg.Emitter == nil {
		cfg.Emitter = events.LogEmitter{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Orchestrator{
		generator:     cfg.Generator,
		generatorName: cfg.GeneratorName,
		search:        cfg.Search,
		log:           cfg.Log,
		state:         cfg.State,
		queue:         cfg.Queue,
		emitter:       cfg.Emitter,
		metrics:       cfg.Metrics,
		systemPrompt:  cfg.SystemPrompt,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
	}
}

// SetReplySettings replaces the generation settings for subsequent Respond
// calls. In-flight calls keep the settings they started with.
func (o *Orchestrator) SetReplySettings(systemPrompt string, temperature float64, maxTokens int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.systemPrompt = systemPrompt
	o.temperature = temperature
	o.maxTokens = maxTokens
}

// Respond generates a reply for the given turn, attaches it to that turn,
// emits it, and queues it for synthesis. It blocks until generation finishes
// or fails; callers run it on its own goroutine when overlap is wanted.
//
// A failed or empty generation reverts the status to listening and leaves the
// turn untouched. A reply whose turn disappeared mid-generation (session
// reset) is dropped.
func (o *Orchestrator) Respond(ctx context.Context, turn conversation.Turn) {
	ctx, span := observe.StartSpan(ctx, "orchestrator.respond",
		trace.WithAttributes(attribute.String("turn.source", string(turn.Source))),
	)
	defer span.End()
	log := observe.Logger(ctx)

	o.emitter.UpdateStatus(StatusThinking)

	req := replygen.Request{
		PromptText: o.promptFor(ctx, turn),
		History:    historyFromTurns(o.log.History(), turn.ID),
	}
	req.SystemPrompt, req.Temperature, req.MaxTokens = o.replySettings()

	start := time.Now()
	reply, err := o.generator.Generate(ctx, req)
	o.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
	reply = strings.TrimSpace(reply)

	if err != nil {
		o.metrics.RecordReply(ctx, string(turn.Source), "error")
		o.metrics.RecordProviderError(ctx, o.generatorName, "reply")
		log.Warn("orchestrator: reply generation failed", "turn_id", turn.ID, "err", err)
		o.emitter.UpdateStatus(StatusListening)
		return
	}
	if reply == "" {
		o.metrics.RecordReply(ctx, string(turn.Source), "empty")
		log.Info("orchestrator: model produced no reply", "turn_id", turn.ID)
		o.emitter.UpdateStatus(StatusListening)
		return
	}

	updated, ok := o.log.AttachResponse(turn.ID, reply)
	if !ok {
		o.metrics.RecordReply(ctx, string(turn.Source), "dropped")
		log.Info("orchestrator: turn vanished before reply arrived, dropping", "turn_id", turn.ID)
		o.emitter.UpdateStatus(StatusListening)
		return
	}

	o.metrics.RecordReply(ctx, string(turn.Source), "ok")
	o.emitter.SaveConversationTurn(o.log.SessionID(), updated, o.log.History())
	o.emitter.UpdateResponse(reply, turn.Source)
	if o.queue != nil {
		o.queue.Enqueue(reply)
	}
	o.emitter.UpdateStatus(StatusListening)
}

// promptFor returns the turn's transcription, prefixed with a search summary
// when search augmentation is on and yields something.
func (o *Orchestrator) promptFor(ctx context.Context, turn conversation.Turn) string {
	if o.search == nil || o.state == nil || !o.state.SearchEnabled() {
		return turn.Transcription
	}

	sctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	start := time.Now()
	summary, err := o.search.Search(sctx, turn.Transcription)
	o.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		observe.Logger(ctx).Warn("orchestrator: search augmentation failed, replying without it", "err", err)
		return turn.Transcription
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return turn.Transcription
	}
	return "Context from a quick search:\n" + summary + "\n\n" + turn.Transcription
}

// replySettings snapshots the generation settings under the lock.
func (o *Orchestrator) replySettings() (string, float64, int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	system := o.systemPrompt
	if o.state != nil {
		if custom := o.state.CustomPrompt(); custom != "" {
			system = strings.TrimSpace(system + "\n\n" + custom)
		}
	}
	return system, o.temperature, o.maxTokens
}

// historyFromTurns converts the log snapshot into role-tagged messages in log
// order, skipping the originating turn so the prompt text is not repeated.
func historyFromTurns(turns []conversation.Turn, excludeTurnID string) []replygen.Message {
	msgs := make([]replygen.Message, 0, len(turns)*2)
	for _, t := range turns {
		if t.ID == excludeTurnID {
			continue
		}
		if t.Transcription != "" {
			msgs = append(msgs, replygen.Message{Role: "user", Content: t.Transcription})
		}
		if t.AIResponse != "" {
			msgs = append(msgs, replygen.Message{Role: "assistant", Content: t.AIResponse})
		}
	}
	return msgs
}
