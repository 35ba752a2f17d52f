package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type lendingMetrics struct {
	operations   *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	flashLoans   *prometheus.CounterVec
	scanLatency  prometheus.Histogram
}

var (
	lendingMetricsOnce sync.Once
	lendingRegistry    *lendingMetrics
)

// Lending returns the lazily-initialised metrics registry tracking protocol
// operations and liquidator activity.
func Lending() *lendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &lendingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendex",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Total engine operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendex",
				Subsystem: "engine",
				Name:      "rejections_total",
				Help:      "Rejected engine calls segmented by operation and error class.",
			}, []string{"operation", "class"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendex",
				Subsystem: "liquidator",
				Name:      "liquidations_total",
				Help:      "Liquidation attempts segmented by outcome.",
			}, []string{"outcome"}),
			flashLoans: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendex",
				Subsystem: "liquidator",
				Name:      "flash_loans_total",
				Help:      "Flash loan chains segmented by terminal phase.",
			}, []string{"phase"}),
			scanLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "lendex",
				Subsystem: "liquidator",
				Name:      "scan_duration_seconds",
				Help:      "Latency distribution for full borrower sweeps.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.operations,
			lendingRegistry.rejections,
			lendingRegistry.liquidations,
			lendingRegistry.flashLoans,
			lendingRegistry.scanLatency,
		)
	})
	return lendingRegistry
}

// RecordOperation counts an engine call by operation name and outcome.
func (m *lendingMetrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(normalize(operation), outcome).Inc()
}

// RecordRejection counts a rejected call by operation and taxonomy class.
func (m *lendingMetrics) RecordRejection(operation, class string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(normalize(operation), normalize(class)).Inc()
}

// RecordLiquidation counts a liquidation attempt outcome.
func (m *lendingMetrics) RecordLiquidation(outcome string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(normalize(outcome)).Inc()
}

// RecordFlashLoan counts a flash loan chain by its terminal phase.
func (m *lendingMetrics) RecordFlashLoan(phase string) {
	if m == nil {
		return
	}
	m.flashLoans.WithLabelValues(normalize(phase)).Inc()
}

// ObserveScan records the duration of one full borrower sweep in seconds.
func (m *lendingMetrics) ObserveScan(seconds float64) {
	if m == nil {
		return
	}
	m.scanLatency.Observe(seconds)
}

func normalize(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	if label == "" {
		return "unknown"
	}
	return label
}
