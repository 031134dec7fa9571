// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
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
	ScrapeCycles   prometheus.Counter
	MessagesLogged prometheus.Counter
	PollErrors     prometheus.Counter
	SendsAttempted prometheus.Counter
	SendsFailed    prometheus.Counter
	SessionOpens   prometheus.Counter

	// Histograms (seconds)
	PollDuration  prometheus.Observer
	LoginDuration prometheus.Observer

	// Gauges
	SeenSetGauge   prometheus.Gauge
	SessionUpGauge prometheus.Gauge // 1=authenticated session attached, 0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ScrapeCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_scrape_cycles_total", Help: "Number of poll cycles executed"})
		MessagesLogged = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_messages_logged_total", Help: "Number of chat messages appended to the session log"})
		PollErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_poll_errors_total", Help: "Number of failed poll cycles"})
		SendsAttempted = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_sends_total", Help: "Number of outgoing message attempts"})
		SendsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_sends_failed_total", Help: "Number of outgoing message attempts that failed"})
		SessionOpens = promauto.NewCounter(prometheus.CounterOpts{Name: "scribe_session_opens_total", Help: "Number of browser sessions opened (restarts included)"})
		PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "scribe_poll_duration_seconds", Help: "Poll duration seconds", Buckets: prometheus.DefBuckets})
		LoginDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "scribe_login_duration_seconds", Help: "Login flow duration seconds", Buckets: prometheus.DefBuckets})
		SeenSetGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "scribe_seen_set_size", Help: "Current number of message identifiers tracked this run"})
		SessionUpGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "scribe_session_up", Help: "Authenticated browser session attached=1 detached=0"})
	})
}

// SetSeenSetSize records the current seen-set cardinality.
func SetSeenSetSize(n int) {
	if SeenSetGauge != nil {
		SeenSetGauge.Set(float64(n))
	}
}

// UpdateSessionGauge sets the session gauge to 1 if up else 0.
func UpdateSessionGauge(up bool) {
	if SessionUpGauge != nil {
		if up {
			SessionUpGauge.Set(1)
		} else {
			SessionUpGauge.Set(0)
		}
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

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
