// Package replygen defines the Provider interface for reply-generation
// backends.
//
// A reply generator wraps a remote or local language-model API (e.g., OpenAI,
// Anthropic Claude, or a local Ollama instance) and exposes a single-shot
// interface: given a prompt, the conversation so far, and a system prompt, it
// returns the assistant's reply as plain text. Streaming output, tool calling,
// and token accounting are deliberately out of scope; the pipeline speaks its
// replies, so only the final text matters.
//
// Implementations must be safe for concurrent use. The orchestrator may issue
// overlapping Generate calls when transcripts arrive faster than replies
// complete.
package replygen

import "context"

// Message is one role-tagged entry in the conversation history. Role is
// "user" for captured transcripts and "assistant" for generated replies.
type Message struct {
	Role    string
	Content string
}

// Request carries everything the generator needs to produce a reply.
type Request struct {
	// PromptText is the text that drives the reply, typically the latest
	// captured transcript, optionally prefixed with search context.
	PromptText string

	// History is the ordered conversation so far, oldest first. It does not
	// include PromptText.
	History []Message

	// SystemPrompt is a high-priority instruction injected before the
	// conversation history.
	SystemPrompt string

	// Temperature controls output randomness. Zero means use the provider
	// default.
	Temperature float64

	// MaxTokens caps the reply length in model tokens. Zero means use the
	// provider default.
	MaxTokens int
}

// Provider is the abstraction over any reply-generation backend.
type Provider interface {
	// Generate produces a reply for req. An empty string with a nil error
	// means the model produced no output; callers treat that as a no-reply
	// signal rather than a failure.
	//
	// Returns an error if the request fails or if ctx is cancelled before the
	// reply arrives.
	Generate(ctx context.Context, req Request) (string, error)
}
