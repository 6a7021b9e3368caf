// Package synthesizer defines the Provider interface for text-to-speech backends.
//
// Reply synthesis in clue2 is single-shot rather than streaming: the
// orchestrator produces one reply at a time and the synthesis queue speaks
// each reply in full before moving on to the next. A provider therefore takes
// the complete reply text and returns one playable audio artifact.
//
// Implementations must be safe for concurrent use.
package synthesizer

import "context"

// VoiceOptions selects the voice characteristics for a synthesis request.
// Zero values mean "use the provider default".
type VoiceOptions struct {
	// Voice is the provider-specific voice identifier: an ElevenLabs voice ID,
	// an OpenAI voice name such as "alloy", and so on.
	Voice string

	// Speed scales speaking rate where the backend supports it. 0 means the
	// provider default (typically 1.0).
	Speed float64
}

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize renders text into a single playable audio artifact (an
	// encoded audio file image, e.g. MP3 bytes). It blocks until the full
	// artifact is available or ctx is cancelled.
	//
	// Returns an error if text is empty or synthesis fails. A failed
	// synthesis never yields partial audio.
	Synthesize(ctx context.Context, text string, opts VoiceOptions) ([]byte, error)
}
