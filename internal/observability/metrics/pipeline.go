package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/study-assistant/internal/core/domain"
)

// PipelineMetrics covers the upload queue, extraction engines and hand-offs.
type PipelineMetrics struct {
	service string

	extractionTotal    *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	extractionInFlight prometheus.Gauge
	queueDepth         prometheus.Gauge
	engineLoadsTotal   *prometheus.CounterVec
	engineLoadDuration *prometheus.HistogramVec
	handoffTotal       *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	extractionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aass",
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Total finished extractions by format and status.",
		},
		[]string{"service", "format", "status"},
	)
	extractionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aass",
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Extraction duration in seconds by format and status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "format", "status"},
	)
	extractionInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aass",
			Subsystem: "extraction",
			Name:      "in_flight",
			Help:      "Number of extractions in progress.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aass",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of items waiting in the upload queue.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	engineLoadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aass",
			Subsystem: "engine",
			Name:      "loads_total",
			Help:      "Total engine load attempts by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	engineLoadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aass",
			Subsystem: "engine",
			Name:      "load_duration_seconds",
			Help:      "Engine load duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "kind"},
	)
	handoffTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aass",
			Subsystem: "handoff",
			Name:      "total",
			Help:      "Total best-effort hand-offs by name and status.",
		},
		[]string{"service", "handoff", "status"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aass",
			Subsystem: "resilience",
			Name:      "breaker_open",
			Help:      "1 when the circuit breaker of an operation is not closed.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(
		extractionTotal,
		extractionDuration,
		extractionInFlight,
		queueDepth,
		engineLoadsTotal,
		engineLoadDuration,
		handoffTotal,
		breakerState,
	)

	return &PipelineMetrics{
		service:            service,
		extractionTotal:    extractionTotal,
		extractionDuration: extractionDuration,
		extractionInFlight: extractionInFlight,
		queueDepth:         queueDepth,
		engineLoadsTotal:   engineLoadsTotal,
		engineLoadDuration: engineLoadDuration,
		handoffTotal:       handoffTotal,
		breakerState:       breakerState,
	}
}

func (m *PipelineMetrics) StartExtraction() {
	m.extractionInFlight.Inc()
}

func (m *PipelineMetrics) FinishExtraction(format domain.Format, duration time.Duration, err error) {
	m.extractionInFlight.Dec()

	status := statusOf(err)
	m.extractionTotal.WithLabelValues(m.service, string(format), status).Inc()
	m.extractionDuration.WithLabelValues(m.service, string(format), status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *PipelineMetrics) ObserveHandoff(name string, err error) {
	m.handoffTotal.WithLabelValues(m.service, name, statusOf(err)).Inc()
}

// ObserveEngineLoad matches engine.LoadObserver.
func (m *PipelineMetrics) ObserveEngineLoad(kind domain.EngineKind, duration time.Duration, err error) {
	m.engineLoadsTotal.WithLabelValues(m.service, string(kind), statusOf(err)).Inc()
	if err == nil {
		m.engineLoadDuration.WithLabelValues(m.service, string(kind)).Observe(duration.Seconds())
	}
}

// ObserveBreakerState matches resilience.Config.OnStateChange.
func (m *PipelineMetrics) ObserveBreakerState(operation, _, to string) {
	open := 0.0
	if to != "closed" {
		open = 1
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(open)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
