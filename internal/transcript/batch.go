package transcript

import (
	"strings"
	"sync"
	"time"
)

// defaultQuietPeriod is how long the batcher waits after the last accepted
// final before emitting the pending batch.
const defaultQuietPeriod = 1200 * time.Millisecond

// Batcher accumulates accepted finals and emits them as one combined string
// after a quiet period with no new input. The quiet timer resets on every
// Add, so a run of rapid finals is joined into a single sentence-level batch.
//
// This path is independent of the per-segment response decision; it exists
// for consumers that want sentence-level batching rather than per-utterance
// triggers. The emit callback runs on the batcher's own goroutine.
type Batcher struct {
	quiet time.Duration
	emit  func(string)

	in      chan string
	resetCh chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewBatcher starts a batcher that emits through emit after quiet of silence.
// A non-positive quiet uses the 1200 ms default. Close must be called to
// release the worker goroutine.
func NewBatcher(quiet time.Duration, emit func(string)) *Batcher {
	if quiet <= 0 {
		quiet = defaultQuietPeriod
	}
	b := &Batcher{
		quiet:   quiet,
		emit:    emit,
		in:      make(chan string, 32),
		resetCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.loop()
	return b
}

// Add appends text to the pending batch and restarts the quiet timer.
// Calls after Close are dropped.
func (b *Batcher) Add(text string) {
	select {
	case b.in <- text:
	case <-b.done:
	}
}

// Reset discards the pending batch without emitting. Called when a session
// initializes.
func (b *Batcher) Reset() {
	select {
	case b.resetCh <- struct{}{}:
	case <-b.done:
	}
}

// Close stops the worker goroutine. Pending text is discarded, not emitted.
// Idempotent.
func (b *Batcher) Close() {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
}

func (b *Batcher) loop() {
	defer b.wg.Done()

	var pending []string

	timer := time.NewTimer(b.quiet)
	defer timer.Stop()

	for {
		select {
		case <-b.done:
			return

		case text := <-b.in:
			pending = append(pending, text)
			// Drain the timer channel before Reset to avoid a spurious
			// immediate expiry (per the time.Timer documentation).
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(b.quiet)

		case <-b.resetCh:
			pending = nil
			// Drop anything still queued from before the reset.
			for drained := false; !drained; {
				select {
				case <-b.in:
				default:
					drained = true
				}
			}

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := strings.Join(pending, " ")
			pending = nil
			b.emit(batch)
		}
	}
}
