// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsDispatched prometheus.Counter
	CommandsFailed     prometheus.Counter
	MessagesLogged     prometheus.Counter
	MarkovRowsIngested prometheus.Counter
	HooksMatched       prometheus.Counter
	TriviaStarted      prometheus.Counter
	CacheEvictions     prometheus.Counter

	// Histograms (seconds)
	DispatchDuration prometheus.Observer

	// Gauges
	IdentityCacheSize prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsDispatched = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_dispatched_total", Help: "Number of top-level command dispatches"})
		CommandsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_failed_total", Help: "Number of dispatches that ended in an internal error"})
		MessagesLogged = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_logged_total", Help: "Number of chat messages written to the raw log"})
		MarkovRowsIngested = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_markov_rows_ingested_total", Help: "Number of (word, succ) adjacency rows appended"})
		HooksMatched = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_hooks_matched_total", Help: "Number of messages that matched a channel hook"})
		TriviaStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_trivia_started_total", Help: "Number of trivia sessions started"})
		CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_cache_evictions_total", Help: "Number of identity cache wholesale evictions"})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_dispatch_duration_seconds", Help: "Top-level command dispatch duration seconds", Buckets: prometheus.DefBuckets})
		IdentityCacheSize = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_identity_cache_size", Help: "Current number of name->id bindings cached"})
	})
}

// SetIdentityCacheSize records the current identity cache population.
func SetIdentityCacheSize(n int) {
	if IdentityCacheSize != nil {
		IdentityCacheSize.Set(float64(n))
	}
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
	if s, ok := ctx.Value(corrKey).(string); ok {
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
