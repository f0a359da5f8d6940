package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(prometheus.NewRegistry())
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	sample := &io_prometheus_client.Metric{}
	require.NoError(t, c.Write(sample))
	return sample.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	sample := &io_prometheus_client.Metric{}
	require.NoError(t, g.Write(sample))
	return sample.GetGauge().GetValue()
}

func TestSettleTimerRecordsOutcome(t *testing.T) {
	m := newTestRegistry(t)

	timer := m.StartSettleTimer("down")
	timer.Stop("ban_triggered")

	c, err := m.Settlements.GetMetricWithLabelValues("down", "ban_triggered")
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(t, c))
}

func TestBanAndWipeoutCounters(t *testing.T) {
	m := newTestRegistry(t)

	m.RecordBan()
	m.RecordBan()
	m.RecordWipeout()

	assert.Equal(t, 2.0, counterValue(t, m.Bans))
	assert.Equal(t, 1.0, counterValue(t, m.Wipeouts))
}

func TestCacheHitRatio(t *testing.T) {
	m := newTestRegistry(t)

	m.RecordCacheHit("redis")
	m.RecordCacheHit("redis")
	m.RecordCacheHit("local")
	m.RecordCacheMiss("redis")

	assert.InDelta(t, 0.75, gaugeValue(t, m.CacheHitRatio), 1e-9)
}

func TestHandlerServesExposition(t *testing.T) {
	m := newTestRegistry(t)
	m.RecordBan()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "rankforum_bans_total 1")
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	a := newTestRegistry(t)
	b := newTestRegistry(t)

	a.RecordBan()

	assert.Equal(t, 1.0, counterValue(t, a.Bans))
	assert.Equal(t, 0.0, counterValue(t, b.Bans))
}
