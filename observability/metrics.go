package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type programMetrics struct {
	instructions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	transactions *prometheus.CounterVec
}

var (
	programMetricsOnce sync.Once
	programRegistry    *programMetrics
)

// Programs returns the lazily-initialised registry recording instruction
// execution per program.
func Programs() *programMetrics {
	programMetricsOnce.Do(func() {
		programRegistry = &programMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "runtime",
				Name:      "instructions_total",
				Help:      "Total instructions processed segmented by program and outcome.",
			}, []string{"program", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rfq",
				Subsystem: "runtime",
				Name:      "instruction_duration_seconds",
				Help:      "Latency distribution for instruction processing.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"program"}),
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "runtime",
				Name:      "transactions_total",
				Help:      "Total transactions segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			programRegistry.instructions,
			programRegistry.latency,
			programRegistry.transactions,
		)
	})
	return programRegistry
}

// ObserveInstruction records the outcome of one instruction.
func (m *programMetrics) ObserveInstruction(program string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if program == "" {
		program = "unknown"
	}
	m.instructions.WithLabelValues(program, outcome(err)).Inc()
	m.latency.WithLabelValues(program).Observe(duration.Seconds())
}

// ObserveTransaction records whether a transaction committed.
func (m *programMetrics) ObserveTransaction(err error) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
