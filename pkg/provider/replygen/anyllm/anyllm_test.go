package anyllm

import (
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen"
)

// ── buildParams ───────────────────────────────────────────────────────────────

// TestBuildParams_MessageOrder checks that the system prompt comes first, the
// history follows in order, and the prompt text lands as the final user message.
func TestBuildParams_MessageOrder(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	req := replygen.Request{
		PromptText:   "What did we decide about the rollout?",
		SystemPrompt: "You are a concise meeting copilot.",
		History: []replygen.Message{
			{Role: "user", Content: "Let's talk about the rollout plan."},
			{Role: "assistant", Content: "Sure, the rollout has three phases."},
		},
	}

	params := p.buildParams(req)

	if params.Model != "gpt-4o-mini" {
		t.Errorf("model = %q; want gpt-4o-mini", params.Model)
	}
	if len(params.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(params.Messages))
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	for i, role := range wantRoles {
		if params.Messages[i].Role != role {
			t.Errorf("message %d role = %q; want %q", i, params.Messages[i].Role, role)
		}
	}
	if got := params.Messages[0].ContentString(); got != "You are a concise meeting copilot." {
		t.Errorf("system content = %q", got)
	}
	if got := params.Messages[3].ContentString(); got != "What did we decide about the rollout?" {
		t.Errorf("final user content = %q", got)
	}
}

// TestBuildParams_NoSystemPrompt checks that an empty system prompt is omitted.
func TestBuildParams_NoSystemPrompt(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	params := p.buildParams(replygen.Request{PromptText: "hello"})

	if len(params.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(params.Messages))
	}
	if params.Messages[0].Role != "user" {
		t.Errorf("role = %q; want user", params.Messages[0].Role)
	}
}

// TestBuildParams_Temperature checks the optional temperature pointer.
func TestBuildParams_Temperature(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}

	params := p.buildParams(replygen.Request{PromptText: "hi"})
	if params.Temperature != nil {
		t.Error("expected nil Temperature for zero value")
	}

	params = p.buildParams(replygen.Request{PromptText: "hi", Temperature: 0.7})
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("Temperature = %v; want 0.7", params.Temperature)
	}
}

// TestBuildParams_MaxTokens checks the optional max-tokens pointer.
func TestBuildParams_MaxTokens(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}

	params := p.buildParams(replygen.Request{PromptText: "hi"})
	if params.MaxTokens != nil {
		t.Error("expected nil MaxTokens for zero value")
	}

	params = p.buildParams(replygen.Request{PromptText: "hi", MaxTokens: 300})
	if params.MaxTokens == nil || *params.MaxTokens != 300 {
		t.Errorf("MaxTokens = %v; want 300", params.MaxTokens)
	}
}

// ── Constructor ───────────────────────────────────────────────────────────────

// TestNew_EmptyProviderName checks that an empty provider name returns an error.
func TestNew_EmptyProviderName(t *testing.T) {
	_, err := New("", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for empty providerName")
	}
}

// TestNew_EmptyModel checks that an empty model name returns an error.
func TestNew_EmptyModel(t *testing.T) {
	_, err := New("openai", "")
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

// TestNew_UnsupportedProvider checks that an unsupported provider returns an error.
func TestNew_UnsupportedProvider(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

// TestNew_OpenAI_WithAPIKey checks that the OpenAI backend constructs with a key.
func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	p, err := New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
	if p.model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %q", p.model)
	}
}

// TestNew_OpenAI_MissingAPIKey checks that OpenAI errors when no key is available.
// This relies on OPENAI_API_KEY not being set in the test environment.
func TestNew_OpenAI_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "") // Ensure env var is clear.
	_, err := New("openai", "gpt-4o-mini")
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}

// TestNew_Ollama_NoAPIKey checks that Ollama works without an API key.
func TestNew_Ollama_NoAPIKey(t *testing.T) {
	p, err := New("ollama", "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected non-nil provider")
	}
}
