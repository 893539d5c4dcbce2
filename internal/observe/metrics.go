// Package observe provides observability primitives for patchbay:
// OpenTelemetry metrics, tracing, and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported via
// a Prometheus bridge (see [InitProvider]) so the standard /metrics endpoint
// keeps working. A package-level default [Metrics] instance is available
// through [DefaultMetrics]; tests should build their own with [NewMetrics]
// and a private meter provider to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all patchbay metrics.
const meterName = "github.com/patchbay-voice/patchbay"

// Metrics holds all OpenTelemetry metric instruments for the relay.
// The underlying OTel instruments are safe for concurrent use.
type Metrics struct {
	// --- Gauges (UpDownCounters) ---

	// ActiveGameLegs tracks currently connected game clients.
	ActiveGameLegs metric.Int64UpDownCounter

	// ActiveCallLegs tracks currently connected telephony streams.
	ActiveCallLegs metric.Int64UpDownCounter

	// CodesAvailable tracks unclaimed codes remaining in the pool.
	CodesAvailable metric.Int64UpDownCounter

	// --- Counters ---

	// PairingsCompleted counts spoken-code matches that attached a call to a
	// game session.
	PairingsCompleted metric.Int64Counter

	// TranscriptsForwarded counts transcript messages relayed to game legs.
	TranscriptsForwarded metric.Int64Counter

	// AudioFrames counts audio frames forwarded to the recognizer.
	AudioFrames metric.Int64Counter

	// TimestampGaps counts media fragments that arrived with a timestamp
	// discontinuity.
	TimestampGaps metric.Int64Counter

	// RelayDrops counts messages dropped because a relay channel was full.
	RelayDrops metric.Int64Counter

	// CodesExhausted counts game connections refused because no code was free.
	CodesExhausted metric.Int64Counter

	// RecognizerErrors counts failures to reach or stream to the recognition
	// service.
	RecognizerErrors metric.Int64Counter

	// --- Histograms ---

	// PairingWait tracks the time between a game session registering its code
	// and a caller speaking it.
	PairingWait metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// pairingWaitBuckets defines histogram bucket boundaries (in seconds) sized
// for the time a human takes to dial a phone number and speak a code.
var pairingWaitBuckets = []float64{
	1, 5, 10, 20, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] using the given meter
// provider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Gauges.
	if met.ActiveGameLegs, err = m.Int64UpDownCounter("patchbay.game_legs.active",
		metric.WithDescription("Number of currently connected game clients."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCallLegs, err = m.Int64UpDownCounter("patchbay.call_legs.active",
		metric.WithDescription("Number of currently connected telephony streams."),
	); err != nil {
		return nil, err
	}
	if met.CodesAvailable, err = m.Int64UpDownCounter("patchbay.codes.available",
		metric.WithDescription("Unclaimed codes remaining in the pool."),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.PairingsCompleted, err = m.Int64Counter("patchbay.pairings.completed",
		metric.WithDescription("Total spoken-code matches that completed a pairing."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptsForwarded, err = m.Int64Counter("patchbay.transcripts.forwarded",
		metric.WithDescription("Total transcript messages relayed to game legs."),
	); err != nil {
		return nil, err
	}
	if met.AudioFrames, err = m.Int64Counter("patchbay.audio.frames",
		metric.WithDescription("Total audio frames forwarded to the recognizer."),
	); err != nil {
		return nil, err
	}
	if met.TimestampGaps, err = m.Int64Counter("patchbay.audio.timestamp_gaps",
		metric.WithDescription("Total media fragments with a timestamp discontinuity."),
	); err != nil {
		return nil, err
	}
	if met.RelayDrops, err = m.Int64Counter("patchbay.relay.drops",
		metric.WithDescription("Total relay messages dropped on a full channel."),
	); err != nil {
		return nil, err
	}
	if met.CodesExhausted, err = m.Int64Counter("patchbay.codes.exhausted",
		metric.WithDescription("Total game connections refused for lack of a free code."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("patchbay.recognizer.errors",
		metric.WithDescription("Total recognition service connect/stream failures."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.PairingWait, err = m.Float64Histogram("patchbay.pairing.wait",
		metric.WithDescription("Seconds between code registration and the spoken-code match."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(pairingWaitBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("patchbay.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from the global meter provider. Panics if instrument creation
// fails, which cannot happen with the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
