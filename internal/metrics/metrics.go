// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	workflowsTotalCounter    *prometheus.CounterVec
	stepsTotalCounter        *prometheus.CounterVec
	providerAttemptsCounter  *prometheus.CounterVec
	providerFallbacksCounter prometheus.Counter
	stepDurationMetric       prometheus.Histogram
	busDroppedEventsCounter  prometheus.Counter
	streamConnectionsGauge   *prometheus.GaugeVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		workflowsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflows_total",
				Help: "Total number of workflow status transitions by status.",
			},
			[]string{"status"},
		)

		stepsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_steps_total",
				Help: "Total number of step terminal updates by status.",
			},
			[]string{"status"},
		)

		providerAttemptsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provider_attempts_total",
				Help: "Provider chain attempts by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		providerFallbacksCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "provider_fallbacks_total",
				Help: "Completions served by a provider other than the first attempted.",
			},
		)

		stepDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "step_execution_duration_seconds",
				Help:    "Duration of agent step executions in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		busDroppedEventsCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bus_dropped_events_total",
				Help: "Events dropped because a subscriber buffer was full.",
			},
		)

		streamConnectionsGauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stream_connections",
				Help: "Live delivery adapter connections by transport.",
			},
			[]string{"transport"},
		)

		prometheus.MustRegister(
			workflowsTotalCounter,
			stepsTotalCounter,
			providerAttemptsCounter,
			providerFallbacksCounter,
			stepDurationMetric,
			busDroppedEventsCounter,
			streamConnectionsGauge,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, status := range []domain.WorkflowStatus{
			domain.WorkflowPending,
			domain.WorkflowRunning,
			domain.WorkflowCompleted,
			domain.WorkflowFailed,
		} {
			workflowsTotalCounter.WithLabelValues(string(status))
		}

		for _, status := range []domain.StepStatus{
			domain.StepPending,
			domain.StepProcessing,
			domain.StepCompleted,
			domain.StepError,
		} {
			stepsTotalCounter.WithLabelValues(string(status))
		}

		for _, transport := range []string{"sse", "websocket"} {
			streamConnectionsGauge.WithLabelValues(transport)
		}
	})
}

func IncWorkflowStatus(status domain.WorkflowStatus) {
	Init()
	workflowsTotalCounter.WithLabelValues(string(status)).Inc()
}

func IncStepStatus(status domain.StepStatus) {
	Init()
	stepsTotalCounter.WithLabelValues(string(status)).Inc()
}

func IncProviderAttempt(provider, outcome string) {
	Init()
	providerAttemptsCounter.WithLabelValues(provider, outcome).Inc()
}

func IncProviderFallback() {
	Init()
	providerFallbacksCounter.Inc()
}

func ObserveStepDuration(d time.Duration) {
	Init()
	stepDurationMetric.Observe(d.Seconds())
}

func IncDroppedEvents() {
	Init()
	busDroppedEventsCounter.Inc()
}

func IncStreamConnections(transport string) {
	Init()
	streamConnectionsGauge.WithLabelValues(transport).Inc()
}

func DecStreamConnections(transport string) {
	Init()
	streamConnectionsGauge.WithLabelValues(transport).Dec()
}
