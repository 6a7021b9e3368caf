package transcript

import (
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

const (
	// defaultPhoneticThreshold is the minimum Jaro-Winkler score for a window
	// that shares a Double Metaphone code with a vocabulary term.
	defaultPhoneticThreshold = 0.70

	// defaultFuzzyThreshold is the minimum Jaro-Winkler score when no phonetic
	// overlap exists. Deliberately strict: a correction rewrites what the
	// speaker actually said, so pure string similarity alone must be near
	// certain.
	defaultFuzzyThreshold = 0.92
)

// CorrectorOption configures a [Corrector].
type CorrectorOption func(*Corrector)

// WithPhoneticThreshold overrides the score floor for phonetically matched
// terms. Default: 0.70.
func WithPhoneticThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) { c.phoneticThreshold = threshold }
}

// WithFuzzyThreshold overrides the score floor for terms with no phonetic
// overlap. Default: 0.92.
func WithFuzzyThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) { c.fuzzyThreshold = threshold }
}

// term is a vocabulary entry with its phonetic codes precomputed. Codes are
// derived from the space-stripped term so that a split or fused mishearing
// still encodes identically.
type term struct {
	canonical string
	lower     string
	tokens    []string
	codes     map[string]struct{}
}

// Corrector rewrites misheard vocabulary terms (product names, jargon) in
// transcript text. Candidate windows are filtered by Double Metaphone code
// overlap and ranked by Jaro-Winkler similarity; multi-word terms are matched
// against n-gram windows, longest first, so "sprint retro board" heard as
// "sprint retro bored" is restored whole.
//
// Safe for concurrent use; the vocabulary can be swapped at runtime.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	mu       sync.RWMutex
	terms    []term
	maxWords int
}

// NewCorrector builds a corrector for the given vocabulary. An empty
// vocabulary yields a corrector whose Apply returns its input unchanged.
func NewCorrector(vocabulary []string, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	c.SetVocabulary(vocabulary)
	return c
}

// SetVocabulary replaces the active vocabulary. Used when the config file is
// reloaded with new terms.
func (c *Corrector) SetVocabulary(vocabulary []string) {
	terms := make([]term, 0, len(vocabulary))
	maxWords := 0
	for _, v := range vocabulary {
		lower := strings.ToLower(strings.TrimSpace(v))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		terms = append(terms, term{
			canonical: strings.TrimSpace(v),
			lower:     lower,
			tokens:    tokens,
			codes:     phoneticCodes(strings.Join(tokens, "")),
		})
		if len(tokens) > maxWords {
			maxWords = len(tokens)
		}
	}

	c.mu.Lock()
	c.terms = terms
	c.maxWords = maxWords
	c.mu.Unlock()
}

// Apply returns text with recognized vocabulary terms replaced by their
// canonical spelling. Unmatched tokens pass through untouched; with an empty
// vocabulary the input is returned as-is.
//
// The walk tries n-gram windows from the longest configured term down to one
// word at each position, so multi-word terms win over partial single-word
// matches, and advances past whatever it consumed.
func (c *Corrector) Apply(text string) string {
	c.mu.RLock()
	terms := c.terms
	maxWords := c.maxWords
	c.mu.RUnlock()

	if len(terms) == 0 {
		return text
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text
	}

	var out []string
	i := 0
	for i < len(tokens) {
		maxN := maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			canonical, ok := c.matchWindow(window, terms)
			if !ok {
				continue
			}
			out = append(out, strings.Fields(canonical)...)
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	return strings.Join(out, " ")
}

// matchWindow tests one n-gram window against every term and returns the
// best-scoring canonical spelling. Phonetically overlapping terms are
// preferred over pure string similarity regardless of score.
//
// Overlap is judged on the space-stripped window, never per token: a window
// that merely contains one word of a multi-word term ("status of the" against
// "status sync meeting") must not earn the lower phonetic score floor.
func (c *Corrector) matchWindow(window string, terms []term) (string, bool) {
	windowLower := strings.ToLower(window)
	windowTokens := strings.Fields(windowLower)
	windowCodes := phoneticCodes(strings.Join(windowTokens, ""))

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)

	for _, t := range terms {
		if windowLower == t.lower {
			// Exact hit: canonicalize the casing and stop looking.
			return t.canonical, true
		}

		phonetic := codesOverlap(windowCodes, t.codes)
		score := bestSimilarity(windowTokens, t.tokens, windowLower, t.lower)

		if phonetic {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t.canonical, score, true
			}
		} else if !bestPhonetic {
			if score >= c.fuzzyThreshold && score > bestScore {
				best, bestScore = t.canonical, score
			}
		}
	}

	return best, best != ""
}

// phoneticCodes returns the Double Metaphone codes for s. Empty codes are
// excluded.
func phoneticCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, sec := matchr.DoubleMetaphone(s)
	if p != "" {
		codes[p] = struct{}{}
	}
	if sec != "" {
		codes[sec] = struct{}{}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity computes the highest Jaro-Winkler score between the window
// and the term across two views: the full strings and the space-stripped
// strings. The stripped view keeps recognizer word splits ("deep gram" vs
// "Deepgram") from scoring artificially low. Per-token scoring is deliberately
// not used: a window sharing a single word with a multi-word term would
// otherwise swallow unrelated neighbours.
func bestSimilarity(windowTokens, termTokens []string, windowFull, termFull string) float64 {
	score := matchr.JaroWinkler(windowFull, termFull, false)

	if len(windowTokens) > 1 || len(termTokens) > 1 {
		joined1 := strings.Join(windowTokens, "")
		joined2 := strings.Join(termTokens, "")
		if s := matchr.JaroWinkler(joined1, joined2, false); s > score {
			score = s
		}
	}

	return score
}
