// Package config provides the configuration schema, loader, and provider
// registry for the clue2 conversation copilot.
package config

// LogLevel controls log verbosity for the clue2 process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for clue2.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Capture    CaptureConfig    `yaml:"capture"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Reply      ReplyConfig      `yaml:"reply"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Session    SessionConfig    `yaml:"session"`
}

// ServerConfig holds the observability endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for the health and metrics endpoint
	// (e.g., ":8080"). When empty, no HTTP endpoint is started.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig describes the external audio capture subprocess and the frame
// geometry of the PCM it produces.
type CaptureConfig struct {
	// Binary is the path to the capture helper executable. When empty,
	// audio capture is unsupported on this install and only manual text
	// input works.
	Binary string `yaml:"binary"`

	// Device is the capture device identifier handed to the helper via its
	// environment (e.g., "BlackHole 2ch", "default").
	Device string `yaml:"device"`

	// SampleRate is the PCM sample rate in Hz the helper is asked to
	// produce. 0 means the built-in default of 24000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the interleaved channel count of the helper's output.
	// 0 means the built-in default of 2.
	Channels int `yaml:"channels"`

	// FrameMS is the frame duration in milliseconds used when slicing the
	// helper's output for the recognizer. 0 means the default of 100.
	FrameMS int `yaml:"frame_ms"`

	// StopGraceMS is how long Stop waits after SIGTERM before sending
	// SIGKILL, in milliseconds. 0 means the default of 3000.
	StopGraceMS int `yaml:"stop_grace_ms"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	Recognizer  ProviderEntry `yaml:"recognizer"`
	Reply       ProviderEntry `yaml:"reply"`
	Synthesizer ProviderEntry `yaml:"synthesizer"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "openairt", "deepgram", "openai", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-transcribe", "nova-3", "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above. Values may be strings, numbers, booleans,
	// or nested maps.
	Options map[string]any `yaml:"options"`
}

// TranscriptConfig tunes the transcript gate and batcher.
type TranscriptConfig struct {
	// Language is the spoken-language hint forwarded to the recognizer
	// (e.g., "en"). Empty means the provider default.
	Language string `yaml:"language"`

	// BatchQuietMS is the quiet period in milliseconds after which pending
	// finals are batched and emitted. 0 means the default of 1200.
	BatchQuietMS int `yaml:"batch_quiet_ms"`

	// Vocabulary lists domain terms (product names, jargon) used two ways:
	// as recognizer keyword hints and as the correction dictionary for
	// near-miss transcriptions.
	Vocabulary []string `yaml:"vocabulary"`
}

// ReplyConfig tunes reply generation.
type ReplyConfig struct {
	// SystemPrompt is the base system prompt for the reply generator. The
	// per-session custom prompt, when set, is appended to it.
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature is the sampling temperature in [0, 2]. 0 means the
	// provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the reply length. 0 means the provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// SynthesisConfig tunes speech synthesis and playback.
type SynthesisConfig struct {
	// Voice is the provider-specific voice identifier. Empty means the
	// provider default.
	Voice string `yaml:"voice"`

	// Speed scales speaking rate in [0.5, 2.0]. 0 means the provider
	// default.
	Speed float64 `yaml:"speed"`

	// Player is the playback command invoked with the synthesized audio
	// file appended as the final argument (e.g., ["afplay"] on macOS,
	// ["mpv", "--really-quiet"] on Linux). Empty disables playback; audio
	// is synthesized and dropped.
	Player []string `yaml:"player"`
}

// SessionConfig holds the session defaults applied at initialize. The control
// surface can override each of them per session.
type SessionConfig struct {
	// AutoRespond enables the automatic reply path for qualifying
	// transcriptions. Manual input always generates a reply.
	AutoRespond bool `yaml:"auto_respond"`

	// CustomPrompt is extra context appended to the system prompt
	// (e.g., "You are helping with a job interview for a Go role.").
	CustomPrompt string `yaml:"custom_prompt"`

	// SearchEnabled turns on the search augmentation step before reply
	// generation, when a search provider is wired.
	SearchEnabled bool `yaml:"search_enabled"`
}
