// Package mock provides a test double for the synthesizer.Provider interface.
//
// The mock records every call and returns configurable canned responses, so
// pipeline tests can assert on synthesis traffic without a real TTS backend.
package mock

import (
	"context"
	"sync"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
)

// Compile-time check that Provider implements synthesizer.Provider.
var _ synthesizer.Provider = (*Provider)(nil)

// SynthesizeCall records one call to Synthesize.
type SynthesizeCall struct {
	Ctx  context.Context
	Text string
	Opts synthesizer.VoiceOptions
}

// Provider is a configurable mock synthesizer.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize when SynthesizeErr and SynthesizeFunc
	// are unset.
	Audio []byte

	// SynthesizeErr, when non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// SynthesizeFunc, when set, overrides the canned behaviour entirely.
	// Useful for per-call audio and latency injection in queue tests.
	SynthesizeFunc func(ctx context.Context, text string, opts synthesizer.VoiceOptions) ([]byte, error)

	// SynthesizeCalls records every call in order.
	SynthesizeCalls []SynthesizeCall
}

// New creates a mock Provider that returns a short placeholder artifact.
func New() *Provider {
	return &Provider{Audio: []byte("mock-audio")}
}

// Synthesize records the call and returns the configured audio or error.
func (p *Provider) Synthesize(ctx context.Context, text string, opts synthesizer.VoiceOptions) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Opts: opts})
	fn := p.SynthesizeFunc
	audio, err := p.Audio, p.SynthesizeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, opts)
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// SynthesizeCallCount returns the number of Synthesize calls so far.
func (p *Provider) SynthesizeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}
