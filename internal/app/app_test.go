package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/internal/app"
	"github.com/Trolleroof/Clue2-hackathon/internal/config"
	"github.com/Trolleroof/Clue2-hackathon/internal/conversation"
	"github.com/Trolleroof/Clue2-hackathon/internal/events"
	"github.com/Trolleroof/Clue2-hackathon/internal/orchestrator"
	"github.com/Trolleroof/Clue2-hackathon/internal/session"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer"
	recmock "github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer/mock"
	genmock "github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen/mock"
)

// testConfig returns a minimal config: no capture binary, no HTTP endpoint,
// auto-respond on.
func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogInfo},
		Transcript: config.TranscriptConfig{Language: "en"},
		Reply:      config.ReplyConfig{SystemPrompt: "You are a meeting copilot."},
		Session:    config.SessionConfig{AutoRespond: true},
	}
}

func receive(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived")
		return events.Event{}
	}
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

// harness bundles an App with its mocks. The recognizer stream's events
// channel is owned by the test: close it before calling a.Close or
// re-initializing, so the stream consumer can drain.
type harness struct {
	app    *app.App
	stream *recmock.Stream
	rec    *recmock.Provider
	gen    *genmock.Provider
	emit   *events.ChannelEmitter
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	st := &recmock.Stream{EventsCh: make(chan recognizer.Event, 16)}
	rec := &recmock.Provider{Stream: st}
	gen := &genmock.Provider{Reply: "Paris is the capital of France."}
	emit := events.NewChannelEmitter(32)

	a, err := app.New(cfg, &app.Providers{
		Recognizer:     rec,
		RecognizerName: "mock-recognizer",
		Reply:          gen,
		ReplyName:      "mock-reply",
	}, app.WithEmitter(emit))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return &harness{app: a, stream: st, rec: rec, gen: gen, emit: emit}
}

// initAndDrainStatus initializes a session and consumes the initial
// update-status event so tests start from a quiet channel.
func (h *harness) initAndDrainStatus(t *testing.T, settings session.Settings) string {
	t.Helper()
	id, err := h.app.Initialize(context.Background(), settings)
	if err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	e := receive(t, h.emit.Events())
	if e.Type != events.TypeUpdateStatus || e.UpdateStatus.Text != orchestrator.StatusListening {
		t.Fatalf("first event = %+v, want status listening", e)
	}
	return id
}

func TestInitialize_OpensStreamAndActivates(t *testing.T) {
	h := newHarness(t, testConfig())

	id := h.initAndDrainStatus(t, session.Settings{AutoRespond: true})
	if id == "" {
		t.Error("Initialize returned an empty session ID")
	}
	if !h.app.State().Active() {
		t.Error("state is not Active after Initialize")
	}
	if got := h.rec.StartStreamCallCount(); got != 1 {
		t.Fatalf("StartStream calls = %d, want 1", got)
	}
	cfg := h.rec.StartStreamCalls[0].Cfg
	if cfg.SampleRate != 24000 || cfg.Language != "en" {
		t.Errorf("stream config = %+v, want 24000 Hz / en", cfg)
	}

	close(h.stream.EventsCh)
	if err := h.app.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestInitialize_StreamFailureStaysIdle(t *testing.T) {
	h := newHarness(t, testConfig())
	h.rec.StartStreamErr = errors.New("handshake refused")

	if _, err := h.app.Initialize(context.Background(), session.Settings{}); err == nil {
		t.Fatal("Initialize succeeded despite stream failure")
	}
	if h.app.State().Active() {
		t.Error("state is Active after a failed Initialize")
	}
}

func TestFinalSegment_BecomesTurnAndReply(t *testing.T) {
	h := newHarness(t, testConfig())
	h.initAndDrainStatus(t, session.Settings{AutoRespond: true})

	h.stream.EventsCh <- recognizer.Event{
		Type:    recognizer.EventSegment,
		Segment: recognizer.Segment{Text: "What is the capital of France?", IsFinal: true},
	}

	e := receive(t, h.emit.Events())
	if e.Type != events.TypeTranscriptCaptured || e.TranscriptCaptured.Transcript != "What is the capital of France?" {
		t.Fatalf("event 1 = %+v, want transcript-captured", e)
	}
	if e.TranscriptCaptured.Source != conversation.SourceAuto {
		t.Errorf("transcript source = %q, want auto", e.TranscriptCaptured.Source)
	}

	e = receive(t, h.emit.Events())
	if e.Type != events.TypeSaveConversationTurn || e.SaveConversationTurn.Turn.AIResponse != "" {
		t.Fatalf("event 2 = %+v, want saved turn without reply", e)
	}
	turnID := e.SaveConversationTurn.Turn.ID

	e = receive(t, h.emit.Events())
	if e.Type != events.TypeUpdateStatus || e.UpdateStatus.Text != orchestrator.StatusThinking {
		t.Fatalf("event 3 = %+v, want status thinking", e)
	}
	e = receive(t, h.emit.Events())
	if e.Type != events.TypeSaveConversationTurn {
		t.Fatalf("event 4 type = %q, want save-conversation-turn", e.Type)
	}
	if e.SaveConversationTurn.Turn.ID != turnID || e.SaveConversationTurn.Turn.AIResponse != "Paris is the capital of France." {
		t.Errorf("replied turn = %+v, want the original turn carrying the reply", e.SaveConversationTurn.Turn)
	}
	e = receive(t, h.emit.Events())
	if e.Type != events.TypeUpdateResponse || e.UpdateResponse.Source != conversation.SourceAuto {
		t.Fatalf("event 5 = %+v, want update-response from auto", e)
	}
	e = receive(t, h.emit.Events())
	if e.Type != events.TypeUpdateStatus || e.UpdateStatus.Text != orchestrator.StatusListening {
		t.Fatalf("event 6 = %+v, want status listening", e)
	}
}

func TestInterimSegmentsAreDropped(t *testing.T) {
	h := newHarness(t, testConfig())
	h.initAndDrainStatus(t, session.Settings{AutoRespond: true})

	h.stream.EventsCh <- recognizer.Event{
		Type:    recognizer.EventSegment,
		Segment: recognizer.Segment{Text: "an interim guess at the sentence", IsFinal: false},
	}

	select {
	case e := <-h.emit.Events():
		t.Fatalf("interim segment produced event %+v", e)
	case <-time.After(150 * time.Millisecond):
	}
	if got := h.gen.GenerateCallCount(); got != 0 {
		t.Errorf("interim segment triggered %d generations", got)
	}
}

func TestDuplicateFinalIsDropped(t *testing.T) {
	h := newHarness(t, testConfig())
	h.initAndDrainStatus(t, session.Settings{AutoRespond: false})

	seg := recognizer.Event{
		Type:    recognizer.EventSegment,
		Segment: recognizer.Segment{Text: "we shipped the release on friday", IsFinal: true},
	}
	h.stream.EventsCh <- seg
	h.stream.EventsCh <- seg

	e := receive(t, h.emit.Events()) // transcript-captured
	if e.Type != events.TypeTranscriptCaptured {
		t.Fatalf("event 1 = %+v", e)
	}
	e = receive(t, h.emit.Events()) // save-conversation-turn
	if e.Type != events.TypeSaveConversationTurn || len(e.SaveConversationTurn.FullHistory) != 1 {
		t.Fatalf("event 2 = %+v, want one-turn history", e)
	}

	select {
	case extra := <-h.emit.Events():
		t.Fatalf("duplicate final produced event %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSubmitManualText_AlwaysQualifies(t *testing.T) {
	h := newHarness(t, testConfig())
	// Auto-respond off and the text is under the captured-speech length
	// floor; manual input must generate a reply anyway.
	h.initAndDrainStatus(t, session.Settings{AutoRespond: false})

	if err := h.app.SubmitManualText(context.Background(), "help me out"); err != nil {
		t.Fatalf("SubmitManualText() error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return h.gen.GenerateCallCount() == 1 },
		"manual text never reached the reply provider")
	if got := h.gen.GenerateCalls[0].Req.PromptText; got != "help me out" {
		t.Errorf("prompt = %q", got)
	}

	e := receive(t, h.emit.Events())
	if e.Type != events.TypeTranscriptCaptured || e.TranscriptCaptured.Source != conversation.SourceManual {
		t.Fatalf("event 1 = %+v, want manual transcript-captured", e)
	}
}

func TestSubmitManualText_RequiresActiveSession(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.app.SubmitManualText(context.Background(), "anyone there?"); err == nil {
		t.Fatal("SubmitManualText succeeded without a session")
	}
}

func TestFinalWhileIdle_IsDropped(t *testing.T) {
	h := newHarness(t, testConfig())
	h.initAndDrainStatus(t, session.Settings{AutoRespond: true})

	// Simulate the session flipping Idle while the stream consumer is still
	// draining provider events.
	h.app.State().Deactivate()

	h.stream.EventsCh <- recognizer.Event{
		Type:    recognizer.EventSegment,
		Segment: recognizer.Segment{Text: "speech that arrived after close", IsFinal: true},
	}

	select {
	case e := <-h.emit.Events():
		t.Fatalf("idle session produced event %+v", e)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClose_FlushesAndIdles(t *testing.T) {
	h := newHarness(t, testConfig())
	h.initAndDrainStatus(t, session.Settings{AutoRespond: true})

	close(h.stream.EventsCh)
	if err := h.app.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if h.app.State().Active() {
		t.Error("state still Active after Close")
	}
	if h.stream.FlushCallCount != 1 {
		t.Errorf("flush calls = %d, want 1", h.stream.FlushCallCount)
	}
	if h.stream.CloseCallCount != 1 {
		t.Errorf("close calls = %d, want 1", h.stream.CloseCallCount)
	}

	// Second Close is a no-op.
	if err := h.app.Close(context.Background()); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

func TestReinitialize_StartsAFreshConversation(t *testing.T) {
	h := newHarness(t, testConfig())
	// Empty replies keep each manual submit to a fixed four-event sequence:
	// transcript-captured, save-conversation-turn, thinking, listening.
	h.gen.Reply = ""
	id1 := h.initAndDrainStatus(t, session.Settings{AutoRespond: false})

	if err := h.app.SubmitManualText(context.Background(), "note from the first session"); err != nil {
		t.Fatalf("SubmitManualText() error: %v", err)
	}
	for range 4 {
		receive(t, h.emit.Events())
	}

	close(h.stream.EventsCh)
	id2 := h.initAndDrainStatus(t, session.Settings{AutoRespond: false})
	if id2 == "" || id2 == id1 {
		t.Errorf("re-initialize minted id %q, want a fresh one (old %q)", id2, id1)
	}

	if err := h.app.SubmitManualText(context.Background(), "note from the second session"); err != nil {
		t.Fatalf("SubmitManualText() error: %v", err)
	}
	receive(t, h.emit.Events()) // transcript-captured
	e := receive(t, h.emit.Events())
	if e.Type != events.TypeSaveConversationTurn {
		t.Fatalf("event = %+v, want save-conversation-turn", e)
	}
	if e.SaveConversationTurn.SessionID != id2 {
		t.Errorf("turn session = %q, want %q", e.SaveConversationTurn.SessionID, id2)
	}
	if got := len(e.SaveConversationTurn.FullHistory); got != 1 {
		t.Errorf("history after re-initialize has %d turns, want 1", got)
	}
}

func TestIdleSessionDiscardsCaptureFrames(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("capture helper test uses a shell script")
	}

	// Tiny frame geometry so the helper's output assembles into frames fast:
	// 800 Hz mono 100 ms frames need 160 bytes each.
	cfg := testConfig()
	cfg.Capture = config.CaptureConfig{
		Binary:      writeFeedScript(t),
		SampleRate:  800,
		Channels:    1,
		FrameMS:     100,
		StopGraceMS: 500,
	}
	h := newHarness(t, cfg)
	h.initAndDrainStatus(t, session.Settings{AutoRespond: false})

	if err := h.app.StartCapture(context.Background()); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	t.Cleanup(func() { _ = h.app.StopCapture() })

	waitFor(t, 5*time.Second, func() bool { return h.stream.SendAudioCallCount() >= 3 },
		"no frames reached the recognizer while active")

	h.app.State().Deactivate()
	time.Sleep(150 * time.Millisecond) // let in-flight sends settle
	before := h.stream.SendAudioCallCount()
	time.Sleep(300 * time.Millisecond)
	if after := h.stream.SendAudioCallCount(); after != before {
		t.Errorf("recognizer received %d frames while idle", after-before)
	}
}

// writeFeedScript writes a helper that streams zero bytes to stdout forever.
// The name is longer than 15 characters so the stale-helper sweep cannot
// match other processes.
func writeFeedScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clue2-app-test-pcm-feed")
	script := "#!/bin/sh\ntrap 'exit 0' TERM\nwhile :; do head -c 320 /dev/zero; sleep 0.02; done\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write helper script: %v", err)
	}
	return path
}

func TestRunAndShutdown(t *testing.T) {
	h := newHarness(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	if err := h.app.Shutdown(shCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	// Idempotent.
	if err := h.app.Shutdown(shCtx); err != nil {
		t.Fatalf("second Shutdown() error: %v", err)
	}
}
