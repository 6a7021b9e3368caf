package openaitts

import (
	"testing"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
)

// TestNew_EmptyAPIKey checks that a missing key is rejected up front.
func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey, got nil")
	}
}

// TestNew_Defaults checks the default model and response format.
func TestNew_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "gpt-4o-mini-tts" {
		t.Errorf("expected default model gpt-4o-mini-tts, got %s", p.model)
	}
	if p.format != "mp3" {
		t.Errorf("expected default format mp3, got %s", p.format)
	}
}

// TestNew_Options checks that WithModel and WithResponseFormat apply.
func TestNew_Options(t *testing.T) {
	p, err := New("test-key", WithModel("tts-1"), WithResponseFormat("wav"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.model != "tts-1" {
		t.Errorf("expected model tts-1, got %s", p.model)
	}
	if p.format != "wav" {
		t.Errorf("expected format wav, got %s", p.format)
	}
}

// TestBuildParams_Defaults checks the payload for zero-value voice options.
func TestBuildParams_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := p.buildParams("hello there", synthesizer.VoiceOptions{})
	if string(params.Model) != "gpt-4o-mini-tts" {
		t.Errorf("expected model gpt-4o-mini-tts, got %s", params.Model)
	}
	if params.Input != "hello there" {
		t.Errorf("unexpected input: %s", params.Input)
	}
	if string(params.Voice) != "alloy" {
		t.Errorf("expected default voice alloy, got %s", params.Voice)
	}
	if string(params.ResponseFormat) != "mp3" {
		t.Errorf("expected response format mp3, got %s", params.ResponseFormat)
	}
	if params.Speed.Valid() {
		t.Errorf("expected speed unset, got %v", params.Speed)
	}
}

// TestBuildParams_VoiceAndSpeed checks that voice options override defaults.
func TestBuildParams_VoiceAndSpeed(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := p.buildParams("hi", synthesizer.VoiceOptions{Voice: "nova", Speed: 1.25})
	if string(params.Voice) != "nova" {
		t.Errorf("expected voice nova, got %s", params.Voice)
	}
	if !params.Speed.Valid() {
		t.Fatal("expected speed to be set")
	}
	if got := params.Speed.Or(0); got != 1.25 {
		t.Errorf("expected speed 1.25, got %v", got)
	}
}
