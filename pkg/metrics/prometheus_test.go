package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequestCountsTokensOnSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveRequest("claude-sonnet-4-20250514", 1200, 300, true, 2*time.Second)
	rec.ObserveRequest("claude-sonnet-4-20250514", 800, 0, false, time.Second)

	assert.Equal(t, float64(1200), testutil.ToFloat64(
		rec.tokensTotal.WithLabelValues("claude-sonnet-4-20250514", "input")))
	assert.Equal(t, float64(300), testutil.ToFloat64(
		rec.tokensTotal.WithLabelValues("claude-sonnet-4-20250514", "output")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		rec.requestsTotal.WithLabelValues("claude-sonnet-4-20250514", "error")))
}

func TestObserveToolExec(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveToolExec("computer", true, 500*time.Millisecond)
	rec.ObserveToolExec("computer", false, 100*time.Millisecond)
	rec.ObserveToolExec("bash", true, 50*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.toolExecsTotal.WithLabelValues("computer", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.toolExecsTotal.WithLabelValues("computer", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.toolExecsTotal.WithLabelValues("bash", "success")))
}

func TestObserveImagesTrimmedIgnoresZero(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveImagesTrimmed(0)
	rec.ObserveImagesTrimmed(10)

	assert.Equal(t, float64(10), testutil.ToFloat64(rec.imagesTrimmed))
}
