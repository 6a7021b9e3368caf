// Package events defines the outbound presentation events of the clue2
// pipeline and the Emitter implementations that deliver them.
//
// Four events mirror what a frontend needs to render the copilot: every
// accepted transcript, every saved turn, status line changes, and generated
// replies. Emitters must never block: events are fired from the pipeline's
// hot paths, and a slow consumer loses events rather than stalling audio.
package events

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/internal/conversation"
)

// Type discriminates the variants of an [Event].
type Type string

const (
	TypeTranscriptCaptured   Type = "transcript-captured"
	TypeSaveConversationTurn Type = "save-conversation-turn"
	TypeUpdateStatus         Type = "update-status"
	TypeUpdateResponse       Type = "update-response"
)

// TranscriptCaptured announces an accepted transcript, before any decision
// about responding to it is made.
type TranscriptCaptured struct {
	Transcript string              `json:"transcript"`
	Timestamp  time.Time           `json:"timestamp"`
	Source     conversation.Source `json:"source"`
}

// SaveConversationTurn carries a turn snapshot whenever a turn is created or
// gains its reply, plus the full history for stateless consumers.
type SaveConversationTurn struct {
	SessionID   string              `json:"sessionId"`
	Turn        conversation.Turn   `json:"turn"`
	FullHistory []conversation.Turn `json:"fullHistory"`
}

// UpdateStatus carries the one-line pipeline status shown to the user.
type UpdateStatus struct {
	Text string `json:"text"`
}

// UpdateResponse carries a generated reply.
type UpdateResponse struct {
	Reply  string              `json:"reply"`
	Source conversation.Source `json:"source"`
}

// Event is the typed union delivered to channel consumers. Exactly one
// payload field is meaningful, selected by Type.
type Event struct {
	Type                 Type
	TranscriptCaptured   TranscriptCaptured
	SaveConversationTurn SaveConversationTurn
	UpdateStatus         UpdateStatus
	UpdateResponse       UpdateResponse
}

// Emitter delivers presentation events. Implementations must return without
// blocking.
type Emitter interface {
	TranscriptCaptured(transcript string, timestamp time.Time, source conversation.Source)
	SaveConversationTurn(sessionID string, turn conversation.Turn, fullHistory []conversation.Turn)
	UpdateStatus(text string)
	UpdateResponse(reply string, source conversation.Source)
}

// LogEmitter writes every event to the default logger. It is the fallback
// when no frontend is attached.
type LogEmitter struct{}

var _ Emitter = LogEmitter{}

func (LogEmitter) TranscriptCaptured(transcript string, _ time.Time, source conversation.Source) {
	slog.Info("event: transcript-captured", "transcript", transcript, "source", source)
}

func (LogEmitter) SaveConversationTurn(sessionID string, turn conversation.Turn, fullHistory []conversation.Turn) {
	slog.Info("event: save-conversation-turn",
		"session_id", sessionID,
		"turn_id", turn.ID,
		"has_reply", turn.AIResponse != "",
		"history_len", len(fullHistory),
	)
}

func (LogEmitter) UpdateStatus(text string) {
	slog.Info("event: update-status", "text", text)
}

func (LogEmitter) UpdateResponse(reply string, source conversation.Source) {
	slog.Info("event: update-response", "source", source, "reply_len", len(reply))
}

// ChannelEmitter queues events on a buffered channel for a single consumer.
// When the buffer is full the event is dropped and counted; the channel is
// never closed, so consumers should select against their own done signal.
type ChannelEmitter struct {
	ch      chan Event
	dropped atomic.Int64
}

var _ Emitter = (*ChannelEmitter)(nil)

// NewChannelEmitter creates an emitter with the given buffer capacity.
// A capacity of 0 or less defaults to 64.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelEmitter{ch: make(chan Event, buffer)}
}

// Events returns the channel events arrive on.
func (c *ChannelEmitter) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *ChannelEmitter) Dropped() int64 {
	return c.dropped.Load()
}

func (c *ChannelEmitter) send(e Event) {
	select {
	case c.ch <- e:
	default:
		n := c.dropped.Add(1)
		slog.Warn("event: consumer too slow, dropping", "type", e.Type, "dropped_total", n)
	}
}

func (c *ChannelEmitter) TranscriptCaptured(transcript string, timestamp time.Time, source conversation.Source) {
	c.send(Event{Type: TypeTranscriptCaptured, TranscriptCaptured: TranscriptCaptured{
		Transcript: transcript, Timestamp: timestamp, Source: source,
	}})
}

func (c *ChannelEmitter) SaveConversationTurn(sessionID string, turn conversation.Turn, fullHistory []conversation.Turn) {
	c.send(Event{Type: TypeSaveConversationTurn, SaveConversationTurn: SaveConversationTurn{
		SessionID: sessionID, Turn: turn, FullHistory: fullHistory,
	}})
}

func (c *ChannelEmitter) UpdateStatus(text string) {
	c.send(Event{Type: TypeUpdateStatus, UpdateStatus: UpdateStatus{Text: text}})
}

func (c *ChannelEmitter) UpdateResponse(reply string, source conversation.Source) {
	c.send(Event{Type: TypeUpdateResponse, UpdateResponse: UpdateResponse{Reply: reply, Source: source}})
}

// Multi fans every event out to each wrapped emitter in order.
type Multi []Emitter

var _ Emitter = Multi(nil)

func (m Multi) TranscriptCaptured(transcript string, timestamp time.Time, source conversation.Source) {
	for _, e := range m {
		e.TranscriptCaptured(transcript, timestamp, source)
	}
}

func (m Multi) SaveConversationTurn(sessionID string, turn conversation.Turn, fullHistory []conversation.Turn) {
	for _, e := range m {
		e.SaveConversationTurn(sessionID, turn, fullHistory)
	}
}

func (m Multi) UpdateStatus(text string) {
	for _, e := range m {
		e.UpdateStatus(text)
	}
}

func (m Multi) UpdateResponse(reply string, source conversation.Source) {
	for _, e := range m {
		e.UpdateResponse(reply, source)
	}
}
