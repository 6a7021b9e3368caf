package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognizer":  {"openairt", "deepgram"},
	"reply":       {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"synthesizer": {"openai", "elevenlabs"},
}

// keylessReplyProviders run locally and need no API key.
var keylessReplyProviders = []string{"ollama", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Capture geometry. Zero means "use the built-in default"; negatives are
	// always mistakes.
	if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must not be negative", cfg.Capture.SampleRate))
	}
	if cfg.Capture.Channels < 0 {
		errs = append(errs, fmt.Errorf("capture.channels %d must not be negative", cfg.Capture.Channels))
	}
	if cfg.Capture.FrameMS < 0 {
		errs = append(errs, fmt.Errorf("capture.frame_ms %d must not be negative", cfg.Capture.FrameMS))
	}
	if cfg.Capture.StopGraceMS < 0 {
		errs = append(errs, fmt.Errorf("capture.stop_grace_ms %d must not be negative", cfg.Capture.StopGraceMS))
	}

	// Transcript
	if cfg.Transcript.BatchQuietMS < 0 {
		errs = append(errs, fmt.Errorf("transcript.batch_quiet_ms %d must not be negative", cfg.Transcript.BatchQuietMS))
	}

	// Reply
	if cfg.Reply.Temperature < 0 || cfg.Reply.Temperature > 2 {
		errs = append(errs, fmt.Errorf("reply.temperature %.2f is out of range [0, 2]", cfg.Reply.Temperature))
	}
	if cfg.Reply.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("reply.max_tokens %d must not be negative", cfg.Reply.MaxTokens))
	}

	// Synthesis
	if cfg.Synthesis.Speed != 0 {
		if cfg.Synthesis.Speed < 0.5 || cfg.Synthesis.Speed > 2.0 {
			errs = append(errs, fmt.Errorf("synthesis.speed %.2f is out of range [0.5, 2.0]", cfg.Synthesis.Speed))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)
	validateProviderName("reply", cfg.Providers.Reply.Name)
	validateProviderName("synthesizer", cfg.Providers.Synthesizer.Name)

	// Provider availability warnings
	if cfg.Providers.Recognizer.Name == "" {
		slog.Warn("no recognizer provider configured; live transcription is disabled and only manual input will work")
	}
	if cfg.Providers.Reply.Name == "" {
		slog.Warn("no reply provider configured; transcripts will be captured but no replies generated")
	} else if cfg.Providers.Synthesizer.Name == "" {
		slog.Warn("no synthesizer provider configured; replies will be shown but not spoken")
	}
	if cfg.Session.AutoRespond && cfg.Providers.Reply.Name == "" {
		slog.Warn("session.auto_respond is enabled but providers.reply is not configured; automatic replies will fail")
	}

	// Missing-key warnings. Providers fall back to their environment
	// variables, so this is soft.
	warnEmptyAPIKey("recognizer", cfg.Providers.Recognizer)
	warnEmptyAPIKey("synthesizer", cfg.Providers.Synthesizer)
	if cfg.Providers.Reply.Name != "" && !slices.Contains(keylessReplyProviders, cfg.Providers.Reply.Name) {
		warnEmptyAPIKey("reply", cfg.Providers.Reply)
	}

	// Capture coherence
	if cfg.Capture.Binary == "" && cfg.Providers.Recognizer.Name != "" {
		slog.Warn("capture.binary is empty; the recognizer is configured but no audio will be captured")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

// warnEmptyAPIKey logs a warning when a configured provider has no API key.
func warnEmptyAPIKey(kind string, entry ProviderEntry) {
	if entry.Name == "" || entry.APIKey != "" {
		return
	}
	slog.Warn("provider api_key is empty; construction will fall back to the provider's environment variable",
		"kind", kind,
		"name", entry.Name,
	)
}
