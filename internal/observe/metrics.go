// Package observe provides application-wide observability primitives for
// clue2: OpenTelemetry metrics, tracing, structured logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all clue2 metrics.
const meterName = "github.com/Trolleroof/Clue2-hackathon"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// GenerationDuration tracks reply generation latency.
	GenerationDuration metric.Float64Histogram

	// SynthesisDuration tracks speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks how long audio playback blocks the queue
	// worker.
	PlaybackDuration metric.Float64Histogram

	// SearchDuration tracks search augmentation latency.
	SearchDuration metric.Float64Histogram

	// --- Counters ---

	// CaptureBytes counts raw PCM bytes read from the capture subprocess.
	CaptureBytes metric.Int64Counter

	// CaptureFrames counts assembled audio frames. Use with attribute:
	//   attribute.String("outcome", "forwarded"|"discarded")
	CaptureFrames metric.Int64Counter

	// TranscriptSegments counts recognizer segments. Use with attribute:
	//   attribute.String("kind", "interim"|"final")
	TranscriptSegments metric.Int64Counter

	// GateDecisions counts transcript gate outcomes. Use with attribute:
	//   attribute.String("outcome", "accepted"|"too_short"|"duplicate")
	GateDecisions metric.Int64Counter

	// Replies counts reply generation outcomes. Use with attributes:
	//   attribute.String("source", "auto"|"manual"),
	//   attribute.String("status", "ok"|"empty"|"error"|"dropped")
	Replies metric.Int64Counter

	// SynthesisTasks counts synthesis queue task outcomes. Use with attribute:
	//   attribute.String("status", "ok"|"skipped"|"error")
	SynthesisTasks metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// SessionActive is 1 while a session is active, 0 when idle.
	SessionActive metric.Int64UpDownCounter

	// SynthesisQueueDepth tracks the number of queued synthesis tasks.
	SynthesisQueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for conversation-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.GenerationDuration, err = m.Float64Histogram("clue2.generation.duration",
		metric.WithDescription("Latency of reply generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("clue2.synthesis.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("clue2.playback.duration",
		metric.WithDescription("Time the queue worker spends in audio playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("clue2.search.duration",
		metric.WithDescription("Latency of search augmentation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CaptureBytes, err = m.Int64Counter("clue2.capture.bytes",
		metric.WithDescription("Raw PCM bytes read from the capture subprocess."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.CaptureFrames, err = m.Int64Counter("clue2.capture.frames",
		metric.WithDescription("Assembled audio frames by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptSegments, err = m.Int64Counter("clue2.transcript.segments",
		metric.WithDescription("Recognizer segments by kind."),
	); err != nil {
		return nil, err
	}
	if met.GateDecisions, err = m.Int64Counter("clue2.gate.decisions",
		metric.WithDescription("Transcript gate outcomes."),
	); err != nil {
		return nil, err
	}
	if met.Replies, err = m.Int64Counter("clue2.replies",
		metric.WithDescription("Reply generation outcomes by source and status."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisTasks, err = m.Int64Counter("clue2.synthesis.tasks",
		metric.WithDescription("Synthesis queue task outcomes."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("clue2.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.SessionActive, err = m.Int64UpDownCounter("clue2.session.active",
		metric.WithDescription("1 while a session is active, 0 when idle."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisQueueDepth, err = m.Int64UpDownCounter("clue2.synthesis.queue_depth",
		metric.WithDescription("Number of queued synthesis tasks."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("clue2.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFrame records an assembled capture frame with its outcome
// ("forwarded" while a session is active, "discarded" when idle).
func (m *Metrics) RecordFrame(ctx context.Context, outcome string) {
	m.CaptureFrames.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordSegment records a recognizer segment ("interim" or "final").
func (m *Metrics) RecordSegment(ctx context.Context, kind string) {
	m.TranscriptSegments.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordGateDecision records a transcript gate outcome.
func (m *Metrics) RecordGateDecision(ctx context.Context, outcome string) {
	m.GateDecisions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordReply records a reply generation outcome with the standard attribute
// set.
func (m *Metrics) RecordReply(ctx context.Context, source, status string) {
	m.Replies.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordSynthesisTask records a synthesis queue task outcome.
func (m *Metrics) RecordSynthesisTask(ctx context.Context, status string) {
	m.SynthesisTasks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
