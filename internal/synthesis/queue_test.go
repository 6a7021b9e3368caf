package synthesis_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/internal/synthesis"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer/mock"
)

// playerFunc adapts a function to the synthesis.Player interface.
type playerFunc func(ctx context.Context, audio []byte) error

func (f playerFunc) Play(ctx context.Context, audio []byte) error { return f(ctx, audio) }

var noopPlayer = playerFunc(func(context.Context, []byte) error { return nil })

// eventLog collects ordered pipeline events from provider and player fakes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEnqueue_SkipsShortReplies(t *testing.T) {
	prov := mock.New()
	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: noopPlayer})
	t.Cleanup(q.Close)

	q.Enqueue("ok")
	q.Enqueue("   got it   ")
	q.Enqueue("12345678901")       // 11 runes: below threshold
	q.Enqueue("こんにちは、元気ですか")      // 11 runes, 33 bytes: still below
	q.Enqueue("123456789012")      // 12 runes: exactly at threshold
	q.Enqueue("こんにちは、元気ですか?")     // 12 runes
	q.Enqueue("a fully fledged spoken reply")

	waitFor(t, 3*time.Second, func() bool { return prov.SynthesizeCallCount() == 3 },
		"expected exactly the three long replies to be synthesized")

	want := []string{"123456789012", "こんにちは、元気ですか?", "a fully fledged spoken reply"}
	for i, call := range prov.SynthesizeCalls {
		if call.Text != want[i] {
			t.Errorf("call %d text = %q, want %q", i, call.Text, want[i])
		}
	}
}

func TestQueue_StrictFIFOAndNonOverlapping(t *testing.T) {
	log := &eventLog{}
	tag := func(s string) string { return strings.Fields(s)[0] }

	prov := mock.New()
	prov.SynthesizeFunc = func(_ context.Context, text string, _ synthesizer.VoiceOptions) ([]byte, error) {
		log.add("synth:" + tag(text))
		time.Sleep(20 * time.Millisecond)
		log.add("synth-done:" + tag(text))
		return []byte(text), nil
	}
	player := playerFunc(func(_ context.Context, audio []byte) error {
		log.add("play:" + tag(string(audio)))
		time.Sleep(10 * time.Millisecond)
		log.add("play-done:" + tag(string(audio)))
		return nil
	})

	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: player})
	t.Cleanup(q.Close)

	q.Enqueue("alpha reply long enough to speak")
	q.Enqueue("bravo reply long enough to speak")
	q.Enqueue("charlie reply long enough to speak")

	waitFor(t, 5*time.Second, func() bool { return len(log.snapshot()) == 12 },
		"not all tasks completed")

	want := []string{
		"synth:alpha", "synth-done:alpha", "play:alpha", "play-done:alpha",
		"synth:bravo", "synth-done:bravo", "play:bravo", "play-done:bravo",
		"synth:charlie", "synth-done:charlie", "play:charlie", "play-done:charlie",
	}
	got := log.snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q\nfull sequence: %v", i, got[i], want[i], got)
		}
	}
}

func TestQueue_SynthesizeFailureContinuesChain(t *testing.T) {
	prov := mock.New()
	prov.SynthesizeFunc = func(_ context.Context, text string, _ synthesizer.VoiceOptions) ([]byte, error) {
		if strings.Contains(text, "boom") {
			return nil, errors.New("tts backend unavailable")
		}
		return []byte(text), nil
	}

	var mu sync.Mutex
	var played []string
	player := playerFunc(func(_ context.Context, audio []byte) error {
		mu.Lock()
		played = append(played, string(audio))
		mu.Unlock()
		return nil
	})

	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: player})
	t.Cleanup(q.Close)

	q.Enqueue("first healthy reply text")
	q.Enqueue("boom goes the provider here")
	q.Enqueue("second healthy reply text")

	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(played) == 2
	}, "surviving replies were not played")

	if prov.SynthesizeCallCount() != 3 {
		t.Errorf("Synthesize calls = %d, want 3 (failure must not stop the chain)", prov.SynthesizeCallCount())
	}
	mu.Lock()
	defer mu.Unlock()
	if played[0] != "first healthy reply text" || played[1] != "second healthy reply text" {
		t.Errorf("played = %v, want the two healthy replies in order", played)
	}
}

func TestQueue_PlaybackFailureContinuesChain(t *testing.T) {
	prov := mock.New()
	prov.SynthesizeFunc = func(_ context.Context, text string, _ synthesizer.VoiceOptions) ([]byte, error) {
		return []byte(text), nil
	}

	var mu sync.Mutex
	var played []string
	player := playerFunc(func(_ context.Context, audio []byte) error {
		if strings.Contains(string(audio), "unplayable") {
			return errors.New("audio device busy")
		}
		mu.Lock()
		played = append(played, string(audio))
		mu.Unlock()
		return nil
	})

	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: player})
	t.Cleanup(q.Close)

	q.Enqueue("unplayable reply goes first")
	q.Enqueue("playable reply goes second")

	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(played) == 1 && played[0] == "playable reply goes second"
	}, "playback failure stopped the chain")
}

func TestQueue_EmptyAudioIsAFailure(t *testing.T) {
	prov := mock.New()
	prov.Audio = nil // nil bytes, nil error: provider contract violation

	playCalls := make(chan struct{}, 4)
	player := playerFunc(func(context.Context, []byte) error {
		playCalls <- struct{}{}
		return nil
	})

	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: player})
	t.Cleanup(q.Close)

	q.Enqueue("a reply that yields no audio")
	waitFor(t, 3*time.Second, func() bool { return prov.SynthesizeCallCount() == 1 },
		"task never ran")

	select {
	case <-playCalls:
		t.Fatal("player was invoked with empty audio")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestQueue_DepthTracksPending(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 8)

	prov := mock.New()
	prov.SynthesizeFunc = func(ctx context.Context, _ string, _ synthesizer.VoiceOptions) ([]byte, error) {
		started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
		}
		return []byte("audio"), nil
	}

	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: noopPlayer})
	t.Cleanup(q.Close)

	q.Enqueue("reply number one padded out")
	q.Enqueue("reply number two padded out")
	q.Enqueue("reply number three padded out")

	<-started // first task popped and in flight
	if depth := q.Depth(); depth != 2 {
		t.Errorf("Depth() = %d while first task in flight, want 2", depth)
	}

	close(gate)
	waitFor(t, 3*time.Second, func() bool { return prov.SynthesizeCallCount() == 3 && q.Depth() == 0 },
		"queue did not drain")
}

func TestQueue_VoiceSelection(t *testing.T) {
	prov := mock.New()
	q := synthesis.NewQueue(synthesis.QueueConfig{
		Provider: prov,
		Player:   noopPlayer,
		Voice:    synthesizer.VoiceOptions{Voice: "alloy"},
	})
	t.Cleanup(q.Close)

	q.Enqueue("spoken with the initial voice")
	waitFor(t, 3*time.Second, func() bool { return prov.SynthesizeCallCount() == 1 },
		"first task never ran")

	q.SetVoice(synthesizer.VoiceOptions{Voice: "nova", Speed: 1.2})
	q.Enqueue("spoken with the swapped voice")
	waitFor(t, 3*time.Second, func() bool { return prov.SynthesizeCallCount() == 2 },
		"second task never ran")

	if got := prov.SynthesizeCalls[0].Opts.Voice; got != "alloy" {
		t.Errorf("first call voice = %q, want alloy", got)
	}
	if got := prov.SynthesizeCalls[1].Opts; got.Voice != "nova" || got.Speed != 1.2 {
		t.Errorf("second call opts = %+v, want nova at 1.2x", got)
	}
}

func TestQueue_CloseStopsWorkerAndDropsLateReplies(t *testing.T) {
	prov := mock.New()
	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: noopPlayer})

	q.Enqueue("one reply before the close")
	waitFor(t, 3*time.Second, func() bool { return prov.SynthesizeCallCount() == 1 },
		"pre-close task never ran")

	q.Close()
	q.Enqueue("a reply after the queue closed")

	time.Sleep(150 * time.Millisecond)
	if got := prov.SynthesizeCallCount(); got != 1 {
		t.Errorf("Synthesize calls after Close = %d, want 1", got)
	}

	q.Close() // idempotent
}

func TestQueue_CloseAbortsInFlightTask(t *testing.T) {
	started := make(chan struct{})

	prov := mock.New()
	prov.SynthesizeFunc = func(ctx context.Context, _ string, _ synthesizer.VoiceOptions) ([]byte, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	q := synthesis.NewQueue(synthesis.QueueConfig{Provider: prov, Player: noopPlayer})
	q.Enqueue("a reply that will hang in the provider")
	<-started

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not cancel the in-flight provider call")
	}
}
