// Package recognizer defines the Provider interface for streaming
// speech-recognition backends.
//
// A recognizer provider wraps a real-time transcription service (e.g., the
// OpenAI Realtime transcription API or Deepgram) and exposes a uniform
// streaming interface. The central abstraction is Stream: once opened, a
// stream accepts mono 16-bit PCM audio chunks and emits a single ordered
// series of typed events covering interim and final transcript segments,
// flush acknowledgements, stream termination, and provider errors.
//
// Implementations must be safe for concurrent use. The audio input path and
// the event output channel are goroutine-safe by construction.
package recognizer

import (
	"context"
	"time"
)

// EventType discriminates the variants of an [Event].
type EventType int

const (
	// EventSegment carries a transcript segment in Event.Segment.
	EventSegment EventType = iota

	// EventFlushComplete acknowledges that audio sent before the last
	// [Stream.Flush] call has been fully transcribed.
	EventFlushComplete

	// EventStreamComplete reports that the provider stream has ended and no
	// further events will follow. It is always the last event delivered.
	EventStreamComplete

	// EventError carries a provider-reported error in Event.Err. The stream
	// stays open; a fatal transport failure is followed by EventStreamComplete.
	EventError
)

// String returns the lowercase wire-style name of the event type.
func (t EventType) String() string {
	switch t {
	case EventSegment:
		return "segment"
	case EventFlushComplete:
		return "flush-complete"
	case EventStreamComplete:
		return "stream-complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Segment is one piece of recognized speech.
type Segment struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this segment is authoritative. Interim
	// (IsFinal=false) segments are advisory and may be revised; only final
	// segments feed the conversation log.
	IsFinal bool

	// Timestamp marks when the segment was produced, relative to stream start.
	Timestamp time.Duration
}

// Event is the typed union emitted by a [Stream]. Exactly one payload field is
// meaningful, selected by Type: Segment for EventSegment, Err for EventError,
// and neither for the two completion variants.
type Event struct {
	Type    EventType
	Segment Segment
	Err     error
}

// StreamConfig describes the audio format and recognition hints for a new
// stream. The core pipeline always sends mono 16-bit little-endian PCM, so
// only the sample rate is negotiable.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (e.g., 24000).
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en"). An
	// empty string lets the provider auto-detect, if supported.
	Language string

	// Phrases is a list of vocabulary hints that increase recognition
	// probability for uncommon words such as product and company names.
	Phrases []string
}

// Stream represents an open recognition stream. It is an interface so that
// test code can provide mock implementations without a live provider
// connection.
//
// Callers must call Close when the stream is no longer needed. Failing to do
// so may leak goroutines and network connections inside the provider
// implementation. All methods must be safe for concurrent use.
type Stream interface {
	// SendAudio delivers a chunk of mono 16-bit PCM audio to the provider.
	// The chunk must match the SampleRate agreed in StreamConfig. Calling
	// SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Events returns the read-only channel on which all stream events
	// arrive, in provider order. The channel is closed after
	// EventStreamComplete is delivered.
	Events() <-chan Event

	// Flush asks the provider to transcribe any buffered audio immediately
	// instead of waiting for further input. The provider acknowledges with
	// EventFlushComplete once the buffered audio has been processed.
	Flush() error

	// Close terminates the stream and releases all associated resources.
	// After Close returns, the Events channel will be closed. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any streaming recognition backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// StartStream opens a new streaming recognition session with the given
	// audio format and recognition configuration. The returned Stream is
	// ready to accept audio immediately.
	//
	// Returns an error if the provider cannot establish the stream (e.g.,
	// authentication failure, unsupported configuration, or ctx already
	// cancelled). The caller owns the Stream and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
