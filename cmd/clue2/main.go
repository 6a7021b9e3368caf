// Command clue2 is the main entry point for the clue2 conversation copilot.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Trolleroof/Clue2-hackathon/internal/app"
	"github.com/Trolleroof/Clue2-hackathon/internal/config"
	"github.com/Trolleroof/Clue2-hackathon/internal/observe"
	"github.com/Trolleroof/Clue2-hackathon/internal/session"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer/deepgram"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/recognizer/openairt"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/replygen/anyllm"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer/elevenlabs"
	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer/openaitts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listVoices := flag.Bool("list-voices", false, "list the configured synthesizer's voices and exit")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "clue2: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "clue2: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("clue2 starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	// The meter provider must exist before any component grabs the default
	// metrics, or instruments bind to the no-op meter.
	otelShutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "clue2",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	if *listVoices {
		return runListVoices(cfg, reg)
	}

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	sessionID, err := application.Initialize(ctx, session.Settings{
		AutoRespond:   cfg.Session.AutoRespond,
		CustomPrompt:  cfg.Session.CustomPrompt,
		SearchEnabled: cfg.Session.SearchEnabled,
	})
	if err != nil {
		slog.Error("failed to initialize session", "err", err)
		return 1
	}
	slog.Info("session started", "session_id", sessionID)

	if cfg.Capture.Binary != "" {
		if err := application.StartCapture(ctx); err != nil {
			slog.Warn("audio capture unavailable, continuing with manual input only", "err", err)
		}
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyConfigChange(application, logLevel, old, new)
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Manual input loop ─────────────────────────────────────────────────────
	go readManualInput(ctx, application)

	slog.Info("clue2 ready — type a line for manual input, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider kinds to the implementations that ship with
// clue2. Used for startup logging.
var builtinProviders = map[string][]string{
	"recognizer":  {"openairt", "deepgram"},
	"reply":       {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"synthesizer": {"openai", "elevenlabs"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Recognizers ───────────────────────────────────────────────────────────

	reg.RegisterRecognizer("openairt", func(entry config.ProviderEntry) (recognizer.Provider, error) {
		var opts []openairt.Option
		if entry.Model != "" {
			opts = append(opts, openairt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openairt.WithBaseURL(entry.BaseURL))
		}
		return openairt.New(apiKeyOrEnv(entry, "OPENAI_API_KEY"), opts...), nil
	})

	reg.RegisterRecognizer("deepgram", func(entry config.ProviderEntry) (recognizer.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(apiKeyOrEnv(entry, "DEEPGRAM_API_KEY"), opts...)
	})

	// ── Reply generators ──────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL. any-llm-go
	// falls back to each provider's environment variable when no key is given.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterReplyGen(providerName, func(entry config.ProviderEntry) (replygen.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterReplyGen("ollama", func(entry config.ProviderEntry) (replygen.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	// ── Synthesizers ──────────────────────────────────────────────────────────

	reg.RegisterSynthesizer("openai", func(entry config.ProviderEntry) (synthesizer.Provider, error) {
		var opts []openaitts.Option
		if entry.Model != "" {
			opts = append(opts, openaitts.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "response_format"); format != "" {
			opts = append(opts, openaitts.WithResponseFormat(format))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openaitts.WithBaseURL(entry.BaseURL))
		}
		return openaitts.New(apiKeyOrEnv(entry, "OPENAI_API_KEY"), opts...)
	})

	reg.RegisterSynthesizer("elevenlabs", func(entry config.ProviderEntry) (synthesizer.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(apiKeyOrEnv(entry, "ELEVENLABS_API_KEY"), opts...)
	})

	// Debug log of all registered providers.
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.Recognizer.Name; name != "" {
		p, err := reg.CreateRecognizer(cfg.Providers.Recognizer)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "recognizer", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create recognizer provider %q: %w", name, err)
		} else {
			ps.Recognizer = p
			ps.RecognizerName = name
			slog.Info("provider created", "kind", "recognizer", "name", name)
		}
	}

	if name := cfg.Providers.Reply.Name; name != "" {
		p, err := reg.CreateReplyGen(cfg.Providers.Reply)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "reply", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create reply provider %q: %w", name, err)
		} else {
			ps.Reply = p
			ps.ReplyName = name
			slog.Info("provider created", "kind", "reply", "name", name)
		}
	}

	if name := cfg.Providers.Synthesizer.Name; name != "" {
		p, err := reg.CreateSynthesizer(cfg.Providers.Synthesizer)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "synthesizer", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create synthesizer provider %q: %w", name, err)
		} else {
			ps.Synthesizer = p
			ps.SynthesizerName = name
			slog.Info("provider created", "kind", "synthesizer", "name", name)
		}
	}

	return ps, nil
}

// apiKeyOrEnv returns the entry's API key, falling back to the named
// environment variable when the config leaves it empty.
func apiKeyOrEnv(entry config.ProviderEntry, envVar string) string {
	if entry.APIKey != "" {
		return entry.APIKey
	}
	return os.Getenv(envVar)
}

// ── Voice listing ─────────────────────────────────────────────────────────────

// runListVoices prints the configured synthesizer's voice catalogue so an
// operator can pick a voice ID for synthesis.voice. Only providers with a
// listing API support it.
func runListVoices(cfg *config.Config, reg *config.Registry) int {
	if cfg.Providers.Synthesizer.Name == "" {
		fmt.Fprintln(os.Stderr, "clue2: no synthesizer configured")
		return 1
	}
	p, err := reg.CreateSynthesizer(cfg.Providers.Synthesizer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clue2: %v\n", err)
		return 1
	}
	lister, ok := p.(interface {
		ListVoices(ctx context.Context) ([]elevenlabs.Voice, error)
	})
	if !ok {
		fmt.Fprintf(os.Stderr, "clue2: synthesizer %q does not support voice listing\n", cfg.Providers.Synthesizer.Name)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	voices, err := lister.ListVoices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clue2: %v\n", err)
		return 1
	}

	fmt.Printf("%-24s %-24s %s\n", "VOICE ID", "NAME", "CATEGORY")
	for _, v := range voices {
		fmt.Printf("%-24s %-24s %s\n", v.ID, v.Name, v.Category)
	}
	return 0
}

// ── Config hot reload ─────────────────────────────────────────────────────────

// applyConfigChange applies a reloaded config to the running application.
// Hot-reloadable fields take effect immediately; everything else is logged as
// requiring a restart.
func applyConfigChange(application *app.App, level *slog.LevelVar, old, new *config.Config) {
	diff := config.Diff(old, new)
	if diff.Empty() {
		return
	}

	if diff.LogLevelChanged {
		level.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.ReplyChanged {
		if orch := application.Orchestrator(); orch != nil {
			orch.SetReplySettings(new.Reply.SystemPrompt, new.Reply.Temperature, new.Reply.MaxTokens)
			slog.Info("reply settings updated",
				"temperature", new.Reply.Temperature,
				"max_tokens", new.Reply.MaxTokens,
			)
		}
	}
	if diff.SynthesisChanged {
		if q := application.Queue(); q != nil {
			q.SetVoice(synthesizer.VoiceOptions{Voice: new.Synthesis.Voice, Speed: new.Synthesis.Speed})
			slog.Info("synthesis voice updated", "voice", new.Synthesis.Voice, "speed", new.Synthesis.Speed)
		}
	}
	if diff.VocabularyChanged {
		application.SetVocabulary(new.Transcript.Vocabulary)
		slog.Info("vocabulary updated", "terms", len(new.Transcript.Vocabulary))
	}
	if diff.SessionChanged {
		st := application.State()
		st.SetAutoRespond(new.Session.AutoRespond)
		st.SetCustomPrompt(new.Session.CustomPrompt)
		st.SetSearchEnabled(new.Session.SearchEnabled)
		slog.Info("session settings updated",
			"auto_respond", new.Session.AutoRespond,
			"search_enabled", new.Session.SearchEnabled,
		)
	}
	for _, section := range diff.RestartRequired {
		slog.Warn("config change requires a restart to take effect", "section", section)
	}
}

// ── Manual input ──────────────────────────────────────────────────────────────

// readManualInput forwards stdin lines to the app as manual input. A typed
// line always generates a reply even when auto-respond is off.
func readManualInput(ctx context.Context, application *app.App) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := application.SubmitManualText(ctx, line); err != nil {
			slog.Warn("manual input rejected", "err", err)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("stdin reader stopped", "err", err)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║           clue2 — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Recognizer", cfg.Providers.Recognizer.Name, cfg.Providers.Recognizer.Model)
	printProvider("Reply", cfg.Providers.Reply.Name, cfg.Providers.Reply.Model)
	printProvider("Synthesizer", cfg.Providers.Synthesizer.Name, cfg.Providers.Synthesizer.Model)
	if cfg.Capture.Binary != "" {
		printRow("Capture", filepath.Base(cfg.Capture.Binary))
	} else {
		printRow("Capture", "(manual input only)")
	}
	if len(cfg.Synthesis.Player) > 0 {
		printRow("Player", cfg.Synthesis.Player[0])
	} else {
		printRow("Player", "(playback disabled)")
	}
	printRow("Auto-respond", fmt.Sprintf("%t", cfg.Session.AutoRespond))
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. The returned LevelVar lets the config
// watcher change verbosity without recreating the handler.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
