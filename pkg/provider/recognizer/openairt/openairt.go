// Package openairt implements the recognizer.Provider interface for OpenAI's
// Realtime transcription API.
//
// It establishes a WebSocket connection with transcription intent and
// exchanges JSON events according to the Realtime API protocol. Audio is
// transmitted as base64-encoded PCM16 chunks; transcription deltas and
// completions are mapped onto the recognizer event union. A Flush call is
// expressed as an input_audio_buffer.commit and acknowledged once the server
// confirms the commit.
package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer"
	"github.com/coder/websocket"
)

// Compile-time assertions that Provider and stream satisfy the recognizer
// interfaces.
var _ recognizer.Provider = (*Provider)(nil)
var _ recognizer.Stream = (*stream)(nil)

const (
	defaultModel   = "gpt-4o-transcribe"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the transcription model used for streams.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// ── Provider ───────────────────────────────────────────────────────────────────

// Provider implements recognizer.Provider for OpenAI's Realtime
// transcription API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new OpenAI Realtime transcription Provider with the given API
// key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// StartStream opens a new transcription stream. The returned Stream accepts
// audio immediately after the transcription_session.update message is sent.
func (p *Provider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Stream, error) {
	wsURL := p.baseURL + "?intent=transcription"

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + p.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openairt: dial: %w", err)
	}

	streamCtx, streamCancel := context.WithCancel(context.Background())
	s := &stream{
		conn:    conn,
		events:  make(chan recognizer.Event, 64),
		started: time.Now(),
		ctx:     streamCtx,
		cancel:  streamCancel,
	}

	if err := s.sendSessionUpdate(p.model, cfg); err != nil {
		streamCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("openairt: session update: %w", err)
	}

	go s.receiveLoop()

	return s, nil
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	InputAudioFormat   string              `json:"input_audio_format"`
	InputTranscription transcriptionParams `json:"input_audio_transcription"`
	TurnDetection      turnDetectionParams `json:"turn_detection"`
}

type transcriptionParams struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

type turnDetectionParams struct {
	Type string `json:"type"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

// serverErrorDetail represents the nested error object in a Realtime error
// event: {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type serverEvent struct {
	Type string `json:"type"`

	// conversation.item.input_audio_transcription.delta
	Delta string `json:"delta,omitempty"`

	// conversation.item.input_audio_transcription.completed
	Transcript string `json:"transcript,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

// ── stream ─────────────────────────────────────────────────────────────────────

type stream struct {
	conn    *websocket.Conn
	events  chan recognizer.Event
	started time.Time

	mu     sync.Mutex
	closed bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// sendSessionUpdate configures the audio format, transcription model, and
// server-side turn detection for this stream.
func (s *stream) sendSessionUpdate(model string, cfg recognizer.StreamConfig) error {
	params := sessionParams{
		InputAudioFormat: "pcm16",
		InputTranscription: transcriptionParams{
			Model:    model,
			Language: cfg.Language,
			Prompt:   strings.Join(cfg.Phrases, ", "),
		},
		TurnDetection: turnDetectionParams{Type: "server_vad"},
	}
	return s.writeJSON(sessionUpdateMessage{Type: "transcription_session.update", Session: params})
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *stream) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("openairt: marshal: %w", err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads events from the WebSocket and dispatches them.
// It owns the events channel: it emits the final stream-complete event and
// closes the channel when it exits.
func (s *stream) receiveLoop() {
	defer s.finish()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.emit(recognizer.Event{Type: recognizer.EventError, Err: fmt.Errorf("openairt: read: %w", err)})
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}

		s.handleServerEvent(&evt)
	}
}

func (s *stream) handleServerEvent(evt *serverEvent) {
	switch evt.Type {
	case "conversation.item.input_audio_transcription.delta":
		if evt.Delta == "" {
			return
		}
		s.emit(recognizer.Event{Type: recognizer.EventSegment, Segment: recognizer.Segment{
			Text:      evt.Delta,
			IsFinal:   false,
			Timestamp: time.Since(s.started),
		}})

	case "conversation.item.input_audio_transcription.completed":
		if evt.Transcript == "" {
			return
		}
		s.emit(recognizer.Event{Type: recognizer.EventSegment, Segment: recognizer.Segment{
			Text:      evt.Transcript,
			IsFinal:   true,
			Timestamp: time.Since(s.started),
		}})

	case "input_audio_buffer.committed":
		s.emit(recognizer.Event{Type: recognizer.EventFlushComplete})

	case "error":
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		s.emit(recognizer.Event{Type: recognizer.EventError, Err: fmt.Errorf("openairt: %s", msg)})
	}
}

// emit delivers an event unless the stream context has been cancelled.
func (s *stream) emit(evt recognizer.Event) {
	select {
	case s.events <- evt:
	case <-s.ctx.Done():
	}
}

// finish emits the terminal stream-complete event and closes the events
// channel. Only the receive loop calls it, so channel ownership stays with a
// single goroutine.
func (s *stream) finish() {
	s.closeOnce.Do(func() {
		select {
		case s.events <- recognizer.Event{Type: recognizer.EventStreamComplete}:
		default:
		}
		close(s.events)
	})
}

// ── Stream methods ─────────────────────────────────────────────────────────────

// SendAudio delivers a mono PCM16 chunk as a base64 append message.
func (s *stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("openairt: stream closed")
	}
	s.mu.Unlock()

	encoded := base64.StdEncoding.EncodeToString(chunk)
	return s.writeJSON(appendAudioMessage{
		Type:  "input_audio_buffer.append",
		Audio: encoded,
	})
}

// Events returns the channel on which transcription events arrive.
func (s *stream) Events() <-chan recognizer.Event { return s.events }

// Flush commits the input audio buffer so buffered speech is transcribed
// without waiting for a server-side turn boundary.
func (s *stream) Flush() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("openairt: stream closed")
	}
	s.mu.Unlock()

	return s.writeJSON(map[string]string{"type": "input_audio_buffer.commit"})
}

// Close terminates the stream and releases all resources. Idempotent.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "stream closed")
	return nil
}
