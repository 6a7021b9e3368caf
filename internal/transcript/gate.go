// Package transcript decides what happens to finalized recognizer output.
//
// Final segments pass through the [Gate], which normalizes the text, applies
// the optional vocabulary [Corrector], and suppresses duplicates against a
// bounded window of recently accepted strings. Accepted text is classified by
// [ShouldRespond] and independently fed to the [Batcher], which emits
// sentence-level batches after a quiet period. Interim segments never reach
// this package; they are advisory and dropped upstream.
package transcript

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// minAcceptRunes is the minimum cleaned length for a final to be admitted.
	minAcceptRunes = 4

	// dedupWindowSize bounds the recently-accepted window.
	dedupWindowSize = 12
)

// Verdict is the outcome of a [Gate.Admit] call. Its String form matches the
// metric attribute values recorded for gate decisions.
type Verdict int

const (
	Accepted Verdict = iota
	TooShort
	Duplicate
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case TooShort:
		return "too_short"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Normalize collapses internal whitespace runs to single spaces and trims.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Gate deduplicates and filters finalized transcript text. Safe for
// concurrent use.
//
// Rejections are ordinary outcomes, not errors: recognizers resend finals
// after reconnects and some emit the same sentence twice around a flush, so
// duplicates are expected traffic.
type Gate struct {
	corrector *Corrector

	mu           sync.Mutex
	lastAccepted string
	window       []string
	inWindow     map[string]struct{}
}

// NewGate returns a Gate with an empty dedup window. corrector may be nil,
// in which case no vocabulary correction is applied.
func NewGate(corrector *Corrector) *Gate {
	return &Gate{
		corrector: corrector,
		inWindow:  make(map[string]struct{}),
	}
}

// Admit normalizes and corrects text, then decides whether it may proceed
// downstream. The returned string is the cleaned text; it is the value that
// was checked against the dedup window, so callers must use it (not the raw
// input) for everything that follows.
//
// The window holds the last [dedupWindowSize] accepted strings with FIFO
// eviction; the most recently accepted string is additionally checked first.
func (g *Gate) Admit(text string) (string, Verdict) {
	clean := Normalize(text)
	if g.corrector != nil {
		clean = g.corrector.Apply(clean)
	}
	if utf8.RuneCountInString(clean) < minAcceptRunes {
		return clean, TooShort
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if clean == g.lastAccepted {
		return clean, Duplicate
	}
	if _, seen := g.inWindow[clean]; seen {
		return clean, Duplicate
	}

	g.window = append(g.window, clean)
	g.inWindow[clean] = struct{}{}
	if len(g.window) > dedupWindowSize {
		evicted := g.window[0]
		g.window = g.window[1:]
		delete(g.inWindow, evicted)
	}
	g.lastAccepted = clean
	return clean, Accepted
}

// Reset clears the dedup window and the last-accepted slot. Called when a
// session initializes.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastAccepted = ""
	g.window = nil
	g.inWindow = make(map[string]struct{})
}
