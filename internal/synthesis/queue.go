// Package synthesis speaks generated replies in order.
//
// [Queue] is an unbounded FIFO drained by a single worker goroutine: each
// reply is synthesized through the provider, then handed to a blocking
// [Player], and only then does the next reply start. Failures are logged and
// the chain keeps going. The queue outlives sessions; it stops only when
// [Queue.Close] is called at process shutdown.
package synthesis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Trolleroof/Clue2-hackathon/internal/observe"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
)

// minSpeakRunes is the minimum trimmed reply length worth speaking. Shorter
// replies are confirmations and fillers that would only interrupt the user.
const minSpeakRunes = 12

// QueueConfig wires a Queue's collaborators.
type QueueConfig struct {
	// Provider performs text-to-speech.
	Provider synthesizer.Provider

	// ProviderName labels provider errors in metrics (e.g. "elevenlabs").
	ProviderName string

	// Player plays each artifact. Nil means playback is disabled.
	Player Player

	// Voice is the initial voice selection; changeable later via SetVoice.
	Voice synthesizer.VoiceOptions

	// Metrics receives queue instrumentation. Nil means the process-wide
	// default instance.
	Metrics *observe.Metrics
}

// Queue serializes reply synthesis and playback.
type Queue struct {
	provider     synthesizer.Provider
	providerName string
	player       Player
	metrics      *observe.Metrics

	// ctx spans the queue's lifetime; Close cancels it to abort the
	// in-flight provider call and playback.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	voice   synthesizer.VoiceOptions
	pending []string
	closed  bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewQueue creates the queue and starts its worker goroutine.
func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Player == nil {
		cfg.Player = NewExecPlayer(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		provider:     cfg.Provider,
		providerName: cfg.ProviderName,
		player:       cfg.Player,
		metrics:      cfg.Metrics,
		ctx:          ctx,
		cancel:       cancel,
		voice:        cfg.Voice,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Enqueue queues text for synthesis and returns immediately. Replies whose
// trimmed length is under the speaking threshold are dropped here.
func (q *Queue) Enqueue(text string) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minSpeakRunes {
		q.metrics.RecordSynthesisTask(q.ctx, "skipped")
		slog.Debug("synthesis: reply too short to speak")
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		slog.Debug("synthesis: queue closed, dropping reply")
		return
	}
	q.pending = append(q.pending, text)
	q.mu.Unlock()

	q.metrics.SynthesisQueueDepth.Add(q.ctx, 1)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// SetVoice replaces the voice selection for subsequently started tasks.
func (q *Queue) SetVoice(v synthesizer.VoiceOptions) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.voice = v
}

// Depth returns the number of replies waiting in the queue, excluding the one
// currently being spoken.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops the worker after the current task, cancelling its in-flight
// provider call and playback, and discards anything still queued. Idempotent.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		q.cancel()
		close(q.done)
		q.wg.Wait()
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			q.discardPending()
			return
		default:
		}

		text, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.done:
				q.discardPending()
				return
			}
		}
		q.runTask(text)
	}
}

// pop removes and returns the head of the queue.
func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return "", false
	}
	text := q.pending[0]
	q.pending = q.pending[1:]
	q.mu.Unlock()

	q.metrics.SynthesisQueueDepth.Add(q.ctx, -1)
	return text, true
}

// runTask synthesizes one reply and plays it. Any failure ends this task
// only; the worker moves on to the next reply.
func (q *Queue) runTask(text string) {
	q.mu.Lock()
	voice := q.voice
	q.mu.Unlock()

	start := time.Now()
	audio, err := q.provider.Synthesize(q.ctx, text, voice)
	q.metrics.SynthesisDuration.Record(q.ctx, time.Since(start).Seconds())

	if err == nil && len(audio) == 0 {
		err = errors.New("provider returned no audio")
	}
	if err != nil {
		q.metrics.RecordSynthesisTask(q.ctx, "error")
		q.metrics.RecordProviderError(q.ctx, q.providerName, "synthesizer")
		slog.Warn("synthesis: synthesize failed, continuing with next reply", "err", err)
		return
	}

	start = time.Now()
	err = q.player.Play(q.ctx, audio)
	q.metrics.PlaybackDuration.Record(q.ctx, time.Since(start).Seconds())
	if err != nil {
		q.metrics.RecordSynthesisTask(q.ctx, "error")
		slog.Warn("synthesis: playback failed, continuing with next reply", "err", err)
		return
	}

	q.metrics.RecordSynthesisTask(q.ctx, "ok")
}

// discardPending drops whatever is still queued at shutdown.
func (q *Queue) discardPending() {
	q.mu.Lock()
	n := len(q.pending)
	q.pending = nil
	q.mu.Unlock()

	if n > 0 {
		q.metrics.SynthesisQueueDepth.Add(q.ctx, int64(-n))
		slog.Warn("synthesis: dropping queued replies at shutdown", "count", n)
	}
}
