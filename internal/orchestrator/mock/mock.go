// Package mock provides a test double for the orchestrator.SearchProvider
// interface.
package mock

import (
	"context"
	"sync"

	"github.com/Trolleroof/Clue2-hackathon/internal/orchestrator"
)

// Compile-time check that Search implements orchestrator.SearchProvider.
var _ orchestrator.SearchProvider = (*Search)(nil)

// Search is a configurable mock search provider.
type Search struct {
	mu sync.Mutex

	// Summary is returned by every Search call when Err is nil.
	Summary string

	// Err, when non-nil, is returned by every Search call.
	Err error

	// Queries records every query in order.
	Queries []string
}

// Search records the query and returns the canned summary or error.
func (s *Search) Search(_ context.Context, query string) (string, error) {
	s.mu.Lock()
	s.Queries = append(s.Queries, query)
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	return s.Summary, nil
}

// CallCount returns the number of Search calls so far.
func (s *Search) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Queries)
}
