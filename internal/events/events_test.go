package events_test

import (
	"testing"
	"time"

	"github.com/Trolleroof/Clue2-hackathon/internal/conversation"
	"github.com/Trolleroof/Clue2-hackathon/internal/events"
)

func receive(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event arrived")
		return events.Event{}
	}
}

func TestChannelEmitter_DeliversAllEventTypes(t *testing.T) {
	c := events.NewChannelEmitter(8)
	ts := time.Now()
	turn := conversation.Turn{ID: "turn-1", Transcription: "hello there", Source: conversation.SourceAuto}

	c.TranscriptCaptured("hello there", ts, conversation.SourceAuto)
	c.SaveConversationTurn("session-1", turn, []conversation.Turn{turn})
	c.UpdateStatus("thinking…")
	c.UpdateResponse("a generated reply", conversation.SourceManual)

	e := receive(t, c.Events())
	if e.Type != events.TypeTranscriptCaptured {
		t.Fatalf("event 1 type = %q, want transcript-captured", e.Type)
	}
	if e.TranscriptCaptured.Transcript != "hello there" || e.TranscriptCaptured.Source != conversation.SourceAuto {
		t.Errorf("transcript payload = %+v", e.TranscriptCaptured)
	}
	if !e.TranscriptCaptured.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", e.TranscriptCaptured.Timestamp, ts)
	}

	e = receive(t, c.Events())
	if e.Type != events.TypeSaveConversationTurn {
		t.Fatalf("event 2 type = %q, want save-conversation-turn", e.Type)
	}
	if e.SaveConversationTurn.SessionID != "session-1" || e.SaveConversationTurn.Turn.ID != "turn-1" {
		t.Errorf("turn payload = %+v", e.SaveConversationTurn)
	}
	if len(e.SaveConversationTurn.FullHistory) != 1 {
		t.Errorf("full history len = %d, want 1", len(e.SaveConversationTurn.FullHistory))
	}

	e = receive(t, c.Events())
	if e.Type != events.TypeUpdateStatus || e.UpdateStatus.Text != "thinking…" {
		t.Errorf("event 3 = %+v, want update-status thinking…", e)
	}

	e = receive(t, c.Events())
	if e.Type != events.TypeUpdateResponse {
		t.Fatalf("event 4 type = %q, want update-response", e.Type)
	}
	if e.UpdateResponse.Reply != "a generated reply" || e.UpdateResponse.Source != conversation.SourceManual {
		t.Errorf("response payload = %+v", e.UpdateResponse)
	}
}

func TestChannelEmitter_DropsWhenFull(t *testing.T) {
	c := events.NewChannelEmitter(1)

	c.UpdateStatus("one")
	c.UpdateStatus("two")
	c.UpdateStatus("three")

	if got := c.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	e := receive(t, c.Events())
	if e.UpdateStatus.Text != "one" {
		t.Errorf("buffered event = %q, want the first one", e.UpdateStatus.Text)
	}
}

func TestChannelEmitter_DefaultBuffer(t *testing.T) {
	c := events.NewChannelEmitter(0)
	for i := 0; i < 64; i++ {
		c.UpdateStatus("filler")
	}
	if got := c.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d after filling the default buffer, want 0", got)
	}
	c.UpdateStatus("overflow")
	if got := c.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d after overflow, want 1", got)
	}
}

func TestMulti_FansOut(t *testing.T) {
	a := events.NewChannelEmitter(4)
	b := events.NewChannelEmitter(4)
	m := events.Multi{a, b}

	m.UpdateStatus("listening")
	m.UpdateResponse("fanned out reply", conversation.SourceAuto)

	for name, c := range map[string]*events.ChannelEmitter{"first": a, "second": b} {
		e := receive(t, c.Events())
		if e.Type != events.TypeUpdateStatus || e.UpdateStatus.Text != "listening" {
			t.Errorf("%s emitter event 1 = %+v", name, e)
		}
		e = receive(t, c.Events())
		if e.Type != events.TypeUpdateResponse || e.UpdateResponse.Reply != "fanned out reply" {
			t.Errorf("%s emitter event 2 = %+v", name, e)
		}
	}
}

func TestLogEmitter_DoesNotPanic(t *testing.T) {
	var e events.Emitter = events.LogEmitter{}
	e.TranscriptCaptured("text", time.Now(), conversation.SourceAuto)
	e.SaveConversationTurn("session-1", conversation.Turn{}, nil)
	e.UpdateStatus("listening")
	e.UpdateResponse("reply", conversation.SourceManual)
}
