// Package conversation keeps the in-memory record of a session's turns.
//
// The [Log] is append-only for the lifetime of a session: every accepted
// transcript becomes a [Turn] with an empty reply, and a reply is attached
// later by turn ID once generation completes. Nothing is persisted beyond the
// process; a new session resets the log wholesale.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source identifies how a turn's transcription entered the pipeline.
type Source string

const (
	// SourceAuto marks turns transcribed from live capture.
	SourceAuto Source = "auto"

	// SourceManual marks turns typed in by the operator.
	SourceManual Source = "manual"
)

// Turn is one exchange in the conversation. Transcription is fixed at append;
// AIResponse is empty until a reply is attached. The JSON shape is what the
// presentation layer receives in save-conversation-turn events.
type Turn struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Transcription string    `json:"transcription"`
	AIResponse    string    `json:"aiResponse"`
	Source        Source    `json:"source"`
}

// Log records turns for the active session. Safe for concurrent use.
//
// Replies are attached strictly by turn ID, so concurrent generations that
// complete out of order each land on the turn that triggered them. A reply
// whose turn has disappeared (the session was reset mid-generation) is
// reported back to the caller instead of being attached to a newer turn.
type Log struct {
	mu        sync.Mutex
	sessionID string
	turns     []Turn
	byID      map[string]int
}

// NewLog returns an empty log with no session attached.
func NewLog() *Log {
	return &Log{byID: make(map[string]int)}
}

// Reset clears all turns and binds the log to a new session.
func (l *Log) Reset(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = sessionID
	l.turns = nil
	l.byID = make(map[string]int)
}

// SessionID returns the session this log currently belongs to.
func (l *Log) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// Append records a new turn with an empty reply and returns it. The turn ID
// is minted here and is the only handle for attaching a reply later.
func (l *Log) Append(transcription string, source Source) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := Turn{
		ID:            uuid.New().String(),
		Timestamp:     time.Now(),
		Transcription: transcription,
		Source:        source,
	}
	l.byID[t.ID] = len(l.turns)
	l.turns = append(l.turns, t)
	return t
}

// AttachResponse sets the reply on the turn with the given ID and returns the
// updated turn. Reports false when no such turn exists, which happens when
// the log was reset while the reply was being generated; callers drop the
// reply in that case.
func (l *Log) AttachResponse(turnID, reply string) (Turn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byID[turnID]
	if !ok {
		return Turn{}, false
	}
	l.turns[i].AIResponse = reply
	return l.turns[i], true
}

// History returns a copy of all turns in append order.
func (l *Log) History() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of recorded turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
