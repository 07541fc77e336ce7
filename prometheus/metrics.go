// Package prometheus records stream session outcomes as Prometheus metrics.
//
// A [Metrics] value owns a private registry. Each session gets its own
// listener from [Metrics.Listener]; the listener derives run boundaries from
// the snapshots it receives.
package prometheus

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labnote/labnote"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "labnote"
	subsystem = "stream"
)

// OutcomeSuperseded labels a run replaced by a new Start or a Reset before it
// reached a terminal state.
const OutcomeSuperseded = "superseded"

// Metrics holds the stream collectors.
type Metrics struct {
	registry *prom.Registry
	now      func() time.Time

	started    prom.Counter
	finished   *prom.CounterVec // by outcome
	errors     *prom.CounterVec // by kind
	chunkBytes prom.Counter
	active     prom.Gauge
	duration   *prom.HistogramVec // by outcome
}

// Option configures [Metrics].
type Option func(*Metrics)

// WithClock sets the time source used for run durations.
func WithClock(now func() time.Time) Option {
	return func(m *Metrics) { m.now = now }
}

// New creates Metrics registered with a fresh registry.
func New(opts ...Option) *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		now:      time.Now,

		started: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "started_total",
			Help:      "Total number of stream runs started",
		}),
		finished: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "finished_total",
			Help:      "Total number of stream runs finished, by outcome",
		}, []string{"outcome"}), // completed, errored, aborted, superseded
		errors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of failed stream runs, by error kind",
		}, []string{"kind"}), // transport, protocol
		chunkBytes: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chunk_bytes_total",
			Help:      "Total bytes of generated text received",
		}),
		active: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active",
			Help:      "Number of stream runs currently streaming",
		}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Stream run duration in seconds, by outcome",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
	}
	for _, o := range opts {
		o(m)
	}
	m.registry.MustRegister(m.started, m.finished, m.errors, m.chunkBytes, m.active, m.duration)
	return m
}

// Registry returns the registry holding the stream collectors.
func (m *Metrics) Registry() *prom.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Listener returns a listener that records the runs of one session. Use a
// separate listener per session.
func (m *Metrics) Listener() labnote.Listener {
	t := &tracker{m: m}
	return t.observe
}

// tracker follows the runs of a single session.
type tracker struct {
	m *Metrics

	mu      sync.Mutex
	active  bool
	run     uint64
	textLen int
	begun   time.Time
}

func (t *tracker) observe(s labnote.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active && s.Run != t.run {
		t.finish(OutcomeSuperseded)
	}
	if s.Streaming() && !t.active {
		t.active = true
		t.run = s.Run
		t.textLen = 0
		t.begun = t.m.now()
		t.m.started.Inc()
		t.m.active.Inc()
	}
	if !t.active {
		return
	}

	if n := len(s.Text) - t.textLen; n > 0 {
		t.m.chunkBytes.Add(float64(n))
		t.textLen = len(s.Text)
	}
	if s.State.Terminal() {
		if s.State == labnote.StateErrored {
			t.m.errors.WithLabelValues(errorKind(s.Err)).Inc()
		}
		t.finish(s.State.String())
	}
}

func (t *tracker) finish(outcome string) {
	t.active = false
	t.m.active.Dec()
	t.m.finished.WithLabelValues(outcome).Inc()
	t.m.duration.WithLabelValues(outcome).Observe(t.m.now().Sub(t.begun).Seconds())
}

func errorKind(err error) string {
	var le *labnote.Error
	if errors.As(err, &le) {
		return le.Kind.String()
	}
	return "unknown"
}
