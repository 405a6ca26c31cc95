package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rfqsettle/core/events"
	"rfqsettle/native/rfq"
)

// Sink is an events.Emitter that persists every settlement record it
// receives under one run identifier. Emit cannot report failures, so they are
// logged and counted.
type Sink struct {
	store   *Storage
	run     uuid.UUID
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	failed int
}

// NewSink wraps store with a fresh run identifier. A nil logger falls back to
// slog.Default().
func NewSink(store *Storage, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	run := uuid.New()
	return &Sink{
		store:   store,
		run:     run,
		logger:  logger.With("component", "indexer", "run", run.String()),
		timeout: 5 * time.Second,
	}
}

// RunID identifies the records written through this sink.
func (s *Sink) RunID() uuid.UUID { return s.run }

// Emit implements events.Emitter. Events other than settlement records are
// ignored.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil || evt.EventType() != rfq.TypeSettled {
		return
	}
	var rec rfq.SettlementRecord
	switch v := evt.(type) {
	case rfq.SettlementRecord:
		rec = v
	case *rfq.SettlementRecord:
		if v == nil {
			return
		}
		rec = *v
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.store.Record(ctx, s.run, rec); err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.logger.Error("persist settlement", "eventId", rec.EventID, "error", err)
	}
}

// Failed returns how many records could not be persisted.
func (s *Sink) Failed() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
