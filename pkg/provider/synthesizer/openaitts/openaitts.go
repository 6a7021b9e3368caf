// Package openaitts provides an OpenAI-backed synthesizer using the
// /v1/audio/speech endpoint. It implements the synthesizer.Provider interface.
package openaitts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/Trolleroof/Clue2-hackathon/pkg/provider/synthesizer"
)

// Compile-time check that Provider implements synthesizer.Provider.
var _ synthesizer.Provider = (*Provider)(nil)

const (
	defaultModel  = "gpt-4o-mini-tts"
	defaultVoice  = "alloy"
	defaultFormat = "mp3"
)

// config holds optional settings applied via Option functions.
type config struct {
	model   string
	format  string
	baseURL string
	timeout time.Duration
}

// Option customises the OpenAI synthesizer.
type Option func(*config)

// WithModel overrides the speech model (default "gpt-4o-mini-tts").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithResponseFormat overrides the audio container format (default "mp3").
// Supported values follow the OpenAI speech API: "mp3", "opus", "aac",
// "flac", "wav", "pcm".
func WithResponseFormat(format string) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithBaseURL overrides the API base URL. Useful for proxies and tests.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets the HTTP client timeout for synthesis requests.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements synthesizer.Provider backed by the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
	format string
}

// New creates an OpenAI synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openaitts: apiKey must not be empty")
	}
	cfg := config{model: defaultModel, format: defaultFormat}
	for _, o := range opts {
		o(&cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		format: cfg.format,
	}, nil
}

// Synthesize renders text via POST /v1/audio/speech and returns the encoded
// audio bytes.
func (p *Provider) Synthesize(ctx context.Context, text string, opts synthesizer.VoiceOptions) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("openaitts: text must not be empty")
	}

	res, err := p.client.Audio.Speech.New(ctx, p.buildParams(text, opts))
	if err != nil {
		return nil, fmt.Errorf("openaitts: speech request: %w", err)
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("openaitts: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openaitts: empty audio response")
	}
	return audio, nil
}

// buildParams assembles the speech request payload for a synthesis call.
func (p *Provider) buildParams(text string, opts synthesizer.VoiceOptions) oai.AudioSpeechNewParams {
	voice := opts.Voice
	if voice == "" {
		voice = defaultVoice
	}
	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat(p.format),
	}
	if opts.Speed > 0 {
		params.Speed = param.NewOpt(opts.Speed)
	}
	return params
}
