package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal    *prometheus.CounterVec
	tokensTotal      *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	toolExecsTotal   *prometheus.CounterVec
	toolExecDuration *prometheus.HistogramVec
	imagesTrimmed    prometheus.Counter
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder
// registered with the given registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_requests_total",
				Help: "Total number of model requests by model and status",
			},
			[]string{"model", "status"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tokens_total",
				Help: "Total number of tokens used in model requests",
			},
			[]string{"model", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_request_duration_seconds",
				Help:    "Duration of model requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		toolExecsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_tool_executions_total",
				Help: "Total number of tool dispatches by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolExecDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_tool_execution_duration_seconds",
				Help:    "Duration of tool dispatches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		imagesTrimmed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agent_images_trimmed_total",
				Help: "Total number of screenshots evicted by context trimming",
			},
		),
	}
}

// ObserveRequest records metrics for a completed model request.
func (p *PrometheusRecorder) ObserveRequest(model string, inputTokens, outputTokens int, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, status).Inc()
	if success {
		p.tokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
		p.tokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
	p.requestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// ObserveToolExec records metrics for a single tool dispatch.
func (p *PrometheusRecorder) ObserveToolExec(tool string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.toolExecsTotal.WithLabelValues(tool, status).Inc()
	p.toolExecDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveImagesTrimmed records screenshots evicted by context trimming.
func (p *PrometheusRecorder) ObserveImagesTrimmed(count int) {
	if count > 0 {
		p.imagesTrimmed.Add(float64(count))
	}
}
