package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Generated()
	m.Hit()
	m.Hit()
	m.Miss()
	m.Fragments(3)
	m.Fragments(0)
	m.Observe(ModeGenerate, 10*time.Millisecond)
	m.Failed("MALFORMED_PAGE_SETUP")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesGenerated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.UncachedFragments))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationFailures.WithLabelValues("MALFORMED_PAGE_SETUP")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RenderDuration, "frontpage_render_duration_seconds"))

	_, err = New(reg)
	assert.Error(t, err, "registering twice fails")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Generated()
		m.Hit()
		m.Miss()
		m.Fragments(1)
		m.Observe(ModeReplay, time.Second)
		m.Failed("x")
	})
}
