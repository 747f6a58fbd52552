// Package metrics exposes Prometheus collectors for page rendering.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "frontpage"

// Render modes.
const (
	ModeGenerate = "generate"
	ModeReplay   = "replay"
)

// Metrics groups the collectors of the page handler. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PagesGenerated     prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	UncachedFragments  prometheus.Counter
	RenderDuration     *prometheus.HistogramVec
	GenerationFailures *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PagesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_generated_total",
			Help:      "Pages generated from the setup tree.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Requests served from the page cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Requests that found no cached page.",
		}),
		UncachedFragments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uncached_fragments_total",
			Help:      "Non-cacheable instructions rendered per request.",
		}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to produce a response body.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		GenerationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Requests that failed before a body was written.",
		}, []string{"code"}),
	}
	for _, c := range []prometheus.Collector{
		m.PagesGenerated, m.CacheHits, m.CacheMisses, m.UncachedFragments,
		m.RenderDuration, m.GenerationFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Generated counts a generated page.
func (m *Metrics) Generated() {
	if m != nil {
		m.PagesGenerated.Inc()
	}
}

// Hit counts a cache hit.
func (m *Metrics) Hit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// Miss counts a cache miss.
func (m *Metrics) Miss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// Fragments counts n rendered uncached instructions.
func (m *Metrics) Fragments(n int) {
	if m != nil && n > 0 {
		m.UncachedFragments.Add(float64(n))
	}
}

// Observe records the duration of one render in mode.
func (m *Metrics) Observe(mode string, d time.Duration) {
	if m != nil {
		m.RenderDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// Failed counts a failed request by error code.
func (m *Metrics) Failed(code string) {
	if m != nil {
		m.GenerationFailures.WithLabelValues(code).Inc()
	}
}
