package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the assistant. Each instance
// owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry
	latency  *latencyWindow

	Turns             *prometheus.CounterVec
	BackendCalls      *prometheus.CounterVec
	BackendErrors     *prometheus.CounterVec
	MemoryErrors      *prometheus.CounterVec
	WakeEvents        *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	HistoryTurns      prometheus.Gauge
	GenerationLatency *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		latency:  newLatencyWindow(256),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Handled turns by backend and routing rule.",
		}, []string{"backend", "rule"}),
		BackendCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Model client calls by client and outcome.",
		}, []string{"client", "outcome"}),
		BackendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_errors_total",
			Help:      "Model client errors by client and code.",
		}, []string{"client", "code"}),
		MemoryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_errors_total",
			Help:      "Memory store failures by operation.",
		}, []string{"op"}),
		WakeEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_events_total",
			Help:      "Wake-word supervisor events by type.",
		}, []string{"event"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		HistoryTurns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_turns",
			Help:      "Turns in the in-process conversation history.",
		}),
		GenerationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_ms",
			Help:      "Model client latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 12000},
		}, []string{"client"}),
	}
}

// The helpers below accept a nil receiver so components can run without metrics.

func (m *Metrics) ObserveTurn(backend, rule string, historyLen int) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(backend, rule).Inc()
	m.HistoryTurns.Set(float64(historyLen))
	m.latency.countRoute(backend, rule)
}

func (m *Metrics) ObserveBackendCall(client, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(client, outcome).Inc()
	if outcome == "ok" || outcome == "error" {
		m.GenerationLatency.WithLabelValues(client).Observe(float64(d.Milliseconds()))
	}
}

func (m *Metrics) ObserveBackendError(client, code string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(client, code).Inc()
}

func (m *Metrics) ObserveMemoryError(op string) {
	if m == nil {
		return
	}
	m.MemoryErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveWakeEvent(event string) {
	if m == nil {
		return
	}
	m.WakeEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// ObserveStage records one latency sample for the window served by /v1/perf/latency.
// Each stage must be observed from exactly one place.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.observe(stage, d)
}

// StageSnapshot summarizes the latency window and the per-route turn counts.
func (m *Metrics) StageSnapshot() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC(), Stages: []StageStats{}}
	}
	return m.latency.snapshot()
}

func (m *Metrics) ResetStages() {
	if m == nil {
		return
	}
	m.latency.reset()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
