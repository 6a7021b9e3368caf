package config_test

import (
	"strings"
	"testing"

	"github.com/Trolleroof/Clue2-hackathon/internal/config"
)

func TestValidate_NegativeBatchQuiet(t *testing.T) {
	t.Parallel()
	yaml := `
transcript:
  batch_quiet_ms: -100
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative batch_quiet_ms, got nil")
	}
	if !strings.Contains(err.Error(), "batch_quiet_ms") {
		t.Errorf("error should mention batch_quiet_ms, got: %v", err)
	}
}

func TestValidate_NegativeMaxTokens(t *testing.T) {
	t.Parallel()
	yaml := `
reply:
  max_tokens: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative max_tokens, got nil")
	}
}

func TestValidate_NegativeStopGrace(t *testing.T) {
	t.Parallel()
	yaml := `
capture:
  stop_grace_ms: -500
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative stop_grace_ms, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
capture:
  channels: -2
reply:
  temperature: 9
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "channels") {
		t.Errorf("error should mention channels, got: %v", err)
	}
	if !strings.Contains(errStr, "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestValidate_ZeroGeometryIsDefault(t *testing.T) {
	t.Parallel()
	// Unset capture geometry means "use the built-in defaults" and must
	// pass validation.
	yaml := `
capture:
  binary: ./bin/audiotap
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	recNames := config.ValidProviderNames["recognizer"]
	if len(recNames) == 0 {
		t.Fatal("ValidProviderNames[\"recognizer\"] should not be empty")
	}
	found := false
	for _, n := range recNames {
		if n == "deepgram" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"recognizer\"] should contain \"deepgram\"")
	}
	replyNames := config.ValidProviderNames["reply"]
	if len(replyNames) < 5 {
		t.Errorf("ValidProviderNames[\"reply\"] looks truncated: %v", replyNames)
	}
}
