package metrics

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SettlementMetrics tracks the RFQ settlement engine. Every observation goes
// to the Prometheus registry and to the global OpenTelemetry meter, which
// exports only when a meter provider has been installed.
type SettlementMetrics struct {
	settlements  *prometheus.CounterVec
	legs         *prometheus.CounterVec
	bridges      *prometheus.CounterVec
	partialFills prometheus.Counter
	delegated    prometheus.Counter

	otelSettlements metric.Int64Counter
	otelLegs        metric.Int64Counter
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

// Settlement returns the lazily registered settlement metrics.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "settlement",
				Name:      "calls_total",
				Help:      "Settlement calls segmented by outcome and the last stage reached.",
			}, []string{"outcome", "stage"}),
			legs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "settlement",
				Name:      "legs_total",
				Help:      "Committed transfer legs segmented by leg and routing strategy.",
			}, []string{"leg", "strategy"}),
			bridges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "bridge",
				Name:      "transitions_total",
				Help:      "Bridging account lifecycle transitions.",
			}, []string{"phase"}),
			partialFills: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "settlement",
				Name:      "partial_fills_total",
				Help:      "Settlements whose filled input was below the quoted input.",
			}),
			delegated: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "settlement",
				Name:      "delegated_total",
				Help:      "Settlements executed on behalf of the delegated identity.",
			}),
		}
		prometheus.MustRegister(
			settlementRegistry.settlements,
			settlementRegistry.legs,
			settlementRegistry.bridges,
			settlementRegistry.partialFills,
			settlementRegistry.delegated,
		)

		meter := otel.Meter("rfqsettle/settlement")
		if counter, err := meter.Int64Counter("rfq.settlement.calls",
			metric.WithDescription("Settlement calls segmented by outcome and stage.")); err == nil {
			settlementRegistry.otelSettlements = counter
		}
		if counter, err := meter.Int64Counter("rfq.settlement.legs",
			metric.WithDescription("Committed transfer legs segmented by leg and strategy.")); err == nil {
			settlementRegistry.otelLegs = counter
		}
	})
	return settlementRegistry
}

func label(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}

// ObserveSettlement records the outcome of a settlement call.
func (m *SettlementMetrics) ObserveSettlement(outcome, stage string) {
	if m == nil {
		return
	}
	outcome, stage = label(outcome), label(stage)
	m.settlements.WithLabelValues(outcome, stage).Inc()
	if m.otelSettlements != nil {
		m.otelSettlements.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("stage", stage),
		))
	}
}

// ObserveLeg records the strategy used for a transfer leg.
func (m *SettlementMetrics) ObserveLeg(leg, strategy string) {
	if m == nil {
		return
	}
	leg, strategy = label(leg), label(strategy)
	m.legs.WithLabelValues(leg, strategy).Inc()
	if m.otelLegs != nil {
		m.otelLegs.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("leg", leg),
			attribute.String("strategy", strategy),
		))
	}
}

// ObserveBridge records a bridging account lifecycle transition.
func (m *SettlementMetrics) ObserveBridge(phase string) {
	if m == nil {
		return
	}
	m.bridges.WithLabelValues(label(phase)).Inc()
}

// IncPartialFill counts a prorated fill.
func (m *SettlementMetrics) IncPartialFill() {
	if m == nil {
		return
	}
	m.partialFills.Inc()
}

// IncDelegated counts a settlement by the delegated identity.
func (m *SettlementMetrics) IncDelegated() {
	if m == nil {
		return
	}
	m.delegated.Inc()
}
