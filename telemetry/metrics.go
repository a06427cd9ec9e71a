// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	BlocksProcessed   prometheus.Counter
	BlocksMalformed   prometheus.Counter
	Reconnects        prometheus.Counter
	FlaggedMessages   prometheus.Counter
	RelaySendFailures prometheus.Counter
	EventsByKind      *prometheus.CounterVec

	// Histograms (seconds)
	BlockDispatchDuration prometheus.Observer

	// Gauges
	OnlineGauge     prometheus.Gauge // 1=connected,0=offline
	PopulationGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		BlocksProcessed = promauto.NewCounter(prometheus.CounterOpts{Name: "monitor_blocks_processed_total", Help: "Number of complete begin/end blocks dispatched"})
		BlocksMalformed = promauto.NewCounter(prometheus.CounterOpts{Name: "monitor_blocks_malformed_total", Help: "Number of end sentinels seen without a preceding begin"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "monitor_reconnects_total", Help: "Number of reconnect attempts to the upstream monitor"})
		FlaggedMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "monitor_flagged_messages_total", Help: "Number of chat messages that hit the banned-word list"})
		RelaySendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "relay_send_failures_total", Help: "Number of failed outbound sink sends"})
		EventsByKind = promauto.NewCounterVec(prometheus.CounterOpts{Name: "monitor_events_total", Help: "Number of event lines dispatched, by kind"}, []string{"kind"})
		BlockDispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "monitor_block_dispatch_duration_seconds", Help: "Block dispatch duration seconds", Buckets: prometheus.DefBuckets})
		OnlineGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "monitor_online", Help: "Upstream monitor connection state, connected=1 offline=0"})
		PopulationGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "monitor_population", Help: "Player count from the most recent block"})
	})
}

// UpdateOnlineGauge sets gauge to 1 if connected else 0.
func UpdateOnlineGauge(online bool) {
	if OnlineGauge != nil {
		if online {
			OnlineGauge.Set(1)
		} else {
			OnlineGauge.Set(0)
		}
	}
}

// SetPopulation records the player count of the last processed block.
func SetPopulation(n int) {
	if PopulationGauge != nil {
		PopulationGauge.Set(float64(n))
	}
}

// CountEvent increments the per-kind event counter.
func CountEvent(kind string) {
	if EventsByKind != nil {
		EventsByKind.WithLabelValues(kind).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
