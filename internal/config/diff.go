package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Fields that can be
// hot-reloaded are tracked individually; everything else lands in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ReplyChanged is true when system_prompt, temperature or max_tokens
	// changed.
	ReplyChanged bool

	// SynthesisChanged is true when voice or speed changed.
	SynthesisChanged bool

	// VocabularyChanged is true when transcript.vocabulary changed.
	VocabularyChanged bool

	// SessionChanged is true when the session toggles changed. The running
	// session picks them up immediately.
	SessionChanged bool

	// RestartRequired lists config sections whose change cannot be applied
	// to a running process.
	RestartRequired []string
}

// Empty reports whether the diff carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.ReplyChanged && !d.SynthesisChanged &&
		!d.VocabularyChanged && !d.SessionChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Hot-reloadable fields.
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Reply != new.Reply {
		d.ReplyChanged = true
	}
	if old.Synthesis.Voice != new.Synthesis.Voice || old.Synthesis.Speed != new.Synthesis.Speed {
		d.SynthesisChanged = true
	}
	if !slices.Equal(old.Transcript.Vocabulary, new.Transcript.Vocabulary) {
		d.VocabularyChanged = true
	}
	if old.Session != new.Session {
		d.SessionChanged = true
	}

	// Restart-required sections.
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Capture != new.Capture {
		d.RestartRequired = append(d.RestartRequired, "capture")
	}
	if !providerEntryEqual(old.Providers.Recognizer, new.Providers.Recognizer) {
		d.RestartRequired = append(d.RestartRequired, "providers.recognizer")
	}
	if !providerEntryEqual(old.Providers.Reply, new.Providers.Reply) {
		d.RestartRequired = append(d.RestartRequired, "providers.reply")
	}
	if !providerEntryEqual(old.Providers.Synthesizer, new.Providers.Synthesizer) {
		d.RestartRequired = append(d.RestartRequired, "providers.synthesizer")
	}
	if !slices.Equal(old.Synthesis.Player, new.Synthesis.Player) {
		d.RestartRequired = append(d.RestartRequired, "synthesis.player")
	}
	if old.Transcript.Language != new.Transcript.Language {
		d.RestartRequired = append(d.RestartRequired, "transcript.language")
	}
	if old.Transcript.BatchQuietMS != new.Transcript.BatchQuietMS {
		d.RestartRequired = append(d.RestartRequired, "transcript.batch_quiet_ms")
	}

	return d
}

// providerEntryEqual compares two provider entries including their free-form
// options map.
func providerEntryEqual(a, b ProviderEntry) bool {
	if a.Name != b.Name || a.APIKey != b.APIKey || a.BaseURL != b.BaseURL || a.Model != b.Model {
		return false
	}
	return reflect.DeepEqual(a.Options, b.Options)
}
