package rfq

import (
	"log/slog"

	"rfqsettle/core/events"
	"rfqsettle/observability/metrics"
)

// SettlementObserver is an events.Emitter that turns committed settlement
// events into metrics and log lines. Install it on the executor so calls
// rolled back with their transaction are never counted.
type SettlementObserver struct {
	metrics *metrics.SettlementMetrics
	logger  *slog.Logger
}

// NewSettlementObserver returns an observer recording into the settlement
// metrics. A nil logger falls back to slog.Default().
func NewSettlementObserver(logger *slog.Logger) *SettlementObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettlementObserver{metrics: metrics.Settlement(), logger: logger.With("component", "rfq")}
}

// Emit implements events.Emitter.
func (o *SettlementObserver) Emit(evt events.Event) {
	if o == nil || evt == nil {
		return
	}
	switch e := evt.(type) {
	case SettlementRecord:
		o.metrics.ObserveSettlement("settled", StageEmitted.String())
		o.logger.Info("settlement committed",
			"eventId", e.EventID,
			"maker", e.Maker.String(),
			"filledTakerAmount", e.FilledTakerAmount,
			"filledMakerAmount", e.FilledMakerAmount)
	case FillComputed:
		if e.Delegated {
			o.metrics.IncDelegated()
		}
		if e.Partial() {
			o.metrics.IncPartialFill()
		}
	case LegSettled:
		o.metrics.ObserveLeg(e.Leg, e.Strategy)
	case BridgeCycled:
		o.metrics.ObserveBridge(bridgeReleased.String())
	}
}
