// Package mock provides a test double for the replygen.Provider interface.
//
// Use Provider in unit tests to verify that the orchestrator sends correct
// Requests and to feed controlled replies without a live backend. All fields
// are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{Reply: "Sounds good, let's do that."}
//	reply, err := p.Generate(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Req is the Request passed to Generate.
	Req replygen.Request
}

// Provider is a mock implementation of replygen.Provider.
// Zero values cause Generate to return "" and a nil error.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Reply is returned by Generate when GenerateFunc is nil.
	Reply string

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// GenerateFunc, if non-nil, is invoked instead of returning Reply and
	// GenerateErr. Useful for per-call replies and latency injection in
	// concurrency tests.
	GenerateFunc func(ctx context.Context, req replygen.Request) (string, error)

	// --- Call records (read after test) ---

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall
}

// Generate records the call and returns the configured reply.
func (p *Provider) Generate(ctx context.Context, req replygen.Request) (string, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Req: req})
	fn := p.GenerateFunc
	reply, err := p.Reply, p.GenerateErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return reply, err
}

// GenerateCallCount returns the number of Generate calls. Thread-safe.
func (p *Provider) GenerateCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
}

// Ensure Provider implements replygen.Provider at compile time.
var _ replygen.Provider = (*Provider)(nil)
