// Package session tracks the Idle/Active lifecycle that gates the audio
// pipeline.
//
// Exactly one [State] lives per process. It is created Idle, flips to Active
// when the app initializes a session, and back to Idle on close. Components
// that receive data asynchronously (capture chunks, recognizer segments)
// consult it and drop their input while Idle instead of buffering.
package session

import (
	"sync"
	"time"
)

// sessionIDFormat is the UTC timestamp layout embedded in session IDs.
const sessionIDFormat = "20060102-150405"

// Settings are the per-session behaviour toggles, seeded from config at
// initialize and adjustable afterwards (e.g. on a config reload).
type Settings struct {
	// AutoRespond enables reply generation for captured speech. When false
	// the pipeline still transcribes and records turns, but only manual
	// input produces replies.
	AutoRespond bool

	// CustomPrompt overrides the configured system prompt for this session.
	// Empty means use the configured default.
	CustomPrompt string

	// SearchEnabled allows the orchestrator to consult its search provider
	// before generating a reply.
	SearchEnabled bool
}

// State is the single mutable session record. It is mutated in place by
// activate/deactivate transitions, never swapped for a fresh object while
// Active. Safe for concurrent use.
type State struct {
	mu       sync.Mutex
	id       string
	active   bool
	settings Settings
}

// NewState returns an Idle state with no session ID.
func NewState() *State {
	return &State{}
}

// Activate transitions to Active, mints a fresh session ID and installs the
// given settings. Returns the new session ID. Activating an already-active
// state re-mints the ID, matching a re-initialize.
func (s *State) Activate(settings Settings) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = "session-" + time.Now().UTC().Format(sessionIDFormat)
	s.active = true
	s.settings = settings
	return s.id
}

// Deactivate transitions to Idle. The last session ID is retained so that
// trailing events can still be labelled; it is replaced on the next Activate.
func (s *State) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Active reports whether a session is currently running.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ID returns the current session ID, or "" before the first Activate.
func (s *State) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Snapshot returns the current settings as one consistent read.
func (s *State) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// AutoRespond reports whether captured speech may trigger reply generation.
func (s *State) AutoRespond() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.AutoRespond
}

// SetAutoRespond toggles automatic replies for the running session.
func (s *State) SetAutoRespond(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.AutoRespond = v
}

// CustomPrompt returns the session's system prompt override ("" = none).
func (s *State) CustomPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.CustomPrompt
}

// SetCustomPrompt installs a system prompt override for the running session.
func (s *State) SetCustomPrompt(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.CustomPrompt = p
}

// SearchEnabled reports whether reply generation may consult search.
func (s *State) SearchEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.SearchEnabled
}

// SetSearchEnabled toggles search lookups for the running session.
func (s *State) SetSearchEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.SearchEnabled = v
}
