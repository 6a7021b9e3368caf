// Package deepgram provides a Deepgram-backed recognition stream using the
// Deepgram streaming WebSocket API. It implements the recognizer.Provider
// interface.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer"
	"github.com/coder/websocket"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// Provider implements recognizer.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with Deepgram.
// It respects cfg.SampleRate, cfg.Language, and cfg.Phrases.
func (p *Provider) StartStream(ctx context.Context, cfg recognizer.StreamConfig) (recognizer.Stream, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	s := &stream{
		conn:   conn,
		events: make(chan recognizer.Event, 64),
		audio:  make(chan []byte, 256),
		done:   make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop(ctx)
	go s.writeLoop(ctx)

	return s, nil
}

// buildURL constructs the Deepgram streaming endpoint URL for the given config.
// The pipeline always sends raw mono PCM, so encoding and channel count are fixed.
func (p *Provider) buildURL(cfg recognizer.StreamConfig) (string, error) {
	u, err := url.Parse(deepgramEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("encoding", "linear16")
	q.Set("channels", "1")
	if cfg.SampleRate > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	}

	for _, phrase := range cfg.Phrases {
		q.Add("keywords", phrase)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- stream ----

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type         string  `json:"type"`
	IsFinal      bool    `json:"is_final"`
	FromFinalize bool    `json:"from_finalize"`
	Start        float64 `json:"start"`
	Channel      struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// stream is a live Deepgram streaming session. It implements recognizer.Stream.
type stream struct {
	conn   *websocket.Conn
	events chan recognizer.Event
	audio  chan []byte

	done      chan struct{}
	once      sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
func (s *stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("deepgram: stream is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("deepgram: stream is closed")
	}
}

// Events returns the channel of recognition events.
func (s *stream) Events() <-chan recognizer.Event { return s.events }

// Flush sends a Finalize message so Deepgram transcribes any buffered audio
// immediately. Deepgram acknowledges with a Results message flagged
// from_finalize, which the read loop maps to a flush-complete event.
func (s *stream) Flush() error {
	select {
	case <-s.done:
		return errors.New("deepgram: stream is closed")
	default:
	}
	return s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"Finalize"}`))
}

// Close terminates the stream cleanly.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		// Send a close message to Deepgram to flush pending audio.
		_ = s.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		s.wg.Wait()
		s.conn.Close(websocket.StatusNormalClosure, "stream closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Deepgram.
func (s *stream) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain the audio channel before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Deepgram and dispatches them onto the
// events channel. It owns the channel and closes it on exit, after emitting
// the terminal stream-complete event.
func (s *stream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer s.finish()

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
				// Local close; exit quietly.
			default:
				if ctx.Err() == nil {
					s.emit(recognizer.Event{Type: recognizer.EventError, Err: fmt.Errorf("deepgram: read: %w", err)})
				}
			}
			return
		}

		seg, fromFinalize, ok := parseResult(msg)
		if !ok {
			continue
		}

		if seg.Text != "" {
			s.emit(recognizer.Event{Type: recognizer.EventSegment, Segment: seg})
		}
		if fromFinalize {
			s.emit(recognizer.Event{Type: recognizer.EventFlushComplete})
		}
	}
}

// emit delivers an event unless the stream has been closed locally.
func (s *stream) emit(evt recognizer.Event) {
	select {
	case s.events <- evt:
	case <-s.done:
	}
}

// finish emits the terminal stream-complete event and closes the events channel.
func (s *stream) finish() {
	s.closeOnce.Do(func() {
		select {
		case s.events <- recognizer.Event{Type: recognizer.EventStreamComplete}:
		default:
		}
		close(s.events)
	})
}

// parseResult parses a raw Deepgram WebSocket message into a Segment.
// Returns ok=false if the message should be ignored. fromFinalize reports
// whether this result was produced in response to a Finalize message.
func parseResult(data []byte) (seg recognizer.Segment, fromFinalize bool, ok bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return recognizer.Segment{}, false, false
	}
	if resp.Type != "Results" {
		return recognizer.Segment{}, false, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return recognizer.Segment{}, false, false
	}

	return recognizer.Segment{
		Text:      resp.Channel.Alternatives[0].Transcript,
		IsFinal:   resp.IsFinal,
		Timestamp: time.Duration(resp.Start * float64(time.Second)),
	}, resp.FromFinalize, true
}
