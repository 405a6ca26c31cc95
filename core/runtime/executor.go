package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rfqsettle/core/events"
	"rfqsettle/core/state"
	"rfqsettle/core/types"
	"rfqsettle/observability"
)

var (
	errNilState = errors.New("runtime: state not configured")
	// ErrUnknownProgram is returned when an instruction targets a program that
	// is not registered with the executor.
	ErrUnknownProgram = errors.New("runtime: unknown program")
	// ErrEmptyTransaction is returned for transactions without instructions.
	ErrEmptyTransaction = errors.New("runtime: transaction has no instructions")
)

// Program processes instructions addressed to its ID.
type Program interface {
	ID() solana.PublicKey
	Process(inv *Invocation, accounts []types.AccountMeta, data []byte) error
}

// Receipt describes a committed transaction.
type Receipt struct {
	ID     string
	Root   []byte
	Events []events.Event
}

// Executor runs transactions atomically against the account state: either
// every instruction succeeds and all effects commit, or nothing changes.
type Executor struct {
	state    *state.Manager
	programs map[solana.PublicKey]Program
	emitter  events.Emitter
	nowFn    func() time.Time
	epochFn  func(time.Time) uint64
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewExecutor creates an executor with a no-op emitter and the wall clock.
func NewExecutor(st *state.Manager) *Executor {
	return &Executor{
		state:    st,
		programs: make(map[solana.PublicKey]Program),
		emitter:  events.NoopEmitter{},
		nowFn:    time.Now,
		epochFn:  func(time.Time) uint64 { return 0 },
		logger:   slog.Default(),
		tracer:   otel.Tracer("rfqsettle/core/runtime"),
	}
}

// Register adds a program. Registering the same ID twice replaces it.
func (e *Executor) Register(programs ...Program) {
	for _, p := range programs {
		if p != nil {
			e.programs[p.ID()] = p
		}
	}
}

// SetEmitter configures the event emitter used after commit. Passing nil
// resets the emitter to a no-op implementation.
func (e *Executor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for the clock.
func (e *Executor) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetEpochFunc configures how the clock epoch is derived from time.
func (e *Executor) SetEpochFunc(epoch func(time.Time) uint64) {
	if epoch == nil {
		e.epochFn = func(time.Time) uint64 { return 0 }
		return
	}
	e.epochFn = epoch
}

// SetLogger overrides the executor logger.
func (e *Executor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// Execute verifies signatures and runs every instruction in order. On error
// the state is rolled back to where it was before the transaction and no
// events are delivered.
func (e *Executor) Execute(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if tx == nil || len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}
	ctx, span := e.tracer.Start(ctx, "runtime.Execute", trace.WithAttributes(
		attribute.Int("tx.instructions", len(tx.Instructions)),
	))
	defer span.End()

	verified, err := tx.VerifySignatures()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := e.nowFn()
	clock := Clock{UnixTimestamp: now.Unix(), Epoch: e.epochFn(now)}
	logger := e.logger.With("tx", tx.ID())

	snap := e.state.Snapshot()
	var buffered []events.Event
	for i, ix := range tx.Instructions {
		program, ok := e.programs[ix.ProgramID]
		if !ok {
			err = fmt.Errorf("instruction %d: %w: %s", i, ErrUnknownProgram, ix.ProgramID)
			break
		}
		_, ixSpan := e.tracer.Start(ctx, "runtime.Instruction", trace.WithAttributes(
			attribute.Int("ix.index", i),
			attribute.String("ix.program", ix.ProgramID.String()),
		))
		inv := NewInvocation(e.state, ix.ProgramID, instructionSigners(ix, verified), clock, logger.With("program", ix.ProgramID.String()))
		started := time.Now()
		procErr := program.Process(inv, ix.Accounts, ix.Data)
		observability.Programs().ObserveInstruction(ix.ProgramID.String(), procErr, time.Since(started))
		if procErr != nil {
			ixSpan.SetStatus(codes.Error, procErr.Error())
			ixSpan.End()
			err = fmt.Errorf("instruction %d: %w", i, procErr)
			break
		}
		ixSpan.End()
		buffered = append(buffered, inv.Events()...)
	}
	observability.Programs().ObserveTransaction(err)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("transaction aborted", "error", err)
		return nil, err
	}

	root, err := e.state.Commit()
	if err != nil {
		e.state.Discard()
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for _, evt := range buffered {
		e.emitter.Emit(evt)
	}
	logger.Debug("transaction committed", "events", len(buffered))
	return &Receipt{ID: tx.ID(), Root: root, Events: buffered}, nil
}

// instructionSigners returns the verified signers that ix itself flags as
// signing. A signature on one instruction does not authorise another.
func instructionSigners(ix types.Instruction, verified map[solana.PublicKey]struct{}) []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(ix.Accounts))
	for _, meta := range ix.Accounts {
		if !meta.IsSigner {
			continue
		}
		if _, ok := verified[meta.PublicKey]; ok {
			out = append(out, meta.PublicKey)
		}
	}
	return out
}
