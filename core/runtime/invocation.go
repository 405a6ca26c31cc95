package runtime

import (
	"errors"
	"fmt"
	"log/slog"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/events"
	"rfqsettle/core/state"
)

// ErrInvalidSeeds is returned when signer seeds do not produce a valid
// derived address for the invoking program.
var ErrInvalidSeeds = errors.New("runtime: invalid signer seeds")

// Clock is the time view every instruction of a transaction shares.
type Clock struct {
	UnixTimestamp int64
	Epoch         uint64
}

// Invocation is the execution context of one program call. Nested calls into
// other programs reuse the same state and event buffer; Signed extends the
// signer set with addresses derived from the calling program.
type Invocation struct {
	state   *state.Manager
	program solana.PublicKey
	signers map[solana.PublicKey]struct{}
	clock   Clock
	events  *[]events.Event
	logger  *slog.Logger
}

// NewInvocation builds a top-level invocation. It is exported for programs'
// unit tests; the executor is the normal constructor.
func NewInvocation(st *state.Manager, program solana.PublicKey, signers []solana.PublicKey, clock Clock, logger *slog.Logger) *Invocation {
	set := make(map[solana.PublicKey]struct{}, len(signers))
	for _, signer := range signers {
		set[signer] = struct{}{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	buf := make([]events.Event, 0)
	return &Invocation{state: st, program: program, signers: set, clock: clock, events: &buf, logger: logger}
}

// State exposes the account state shared by the whole transaction.
func (inv *Invocation) State() *state.Manager { return inv.state }

// ProgramID returns the program currently executing.
func (inv *Invocation) ProgramID() solana.PublicKey { return inv.program }

// Clock returns the transaction clock.
func (inv *Invocation) Clock() Clock { return inv.clock }

// Logger returns the logger scoped to the current program.
func (inv *Invocation) Logger() *slog.Logger { return inv.logger }

// IsSigner reports whether addr authorised this invocation, either by
// signature or through derived-address seeds.
func (inv *Invocation) IsSigner(addr solana.PublicKey) bool {
	if inv == nil {
		return false
	}
	_, ok := inv.signers[addr]
	return ok
}

// Signed returns a child invocation whose signer set also contains the
// address derived from each seed set under the current program.
func (inv *Invocation) Signed(seedSets ...[][]byte) (*Invocation, error) {
	child := inv.clone(inv.program)
	for _, seeds := range seedSets {
		addr, err := solana.CreateProgramAddress(seeds, inv.program)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		child.signers[addr] = struct{}{}
	}
	return child, nil
}

// Enter returns the context used when the current program calls program.
// Signer privileges carry over unchanged.
func (inv *Invocation) Enter(program solana.PublicKey) *Invocation {
	return inv.clone(program)
}

func (inv *Invocation) clone(program solana.PublicKey) *Invocation {
	signers := make(map[solana.PublicKey]struct{}, len(inv.signers))
	for k := range inv.signers {
		signers[k] = struct{}{}
	}
	logger := inv.logger
	if program != inv.program {
		logger = logger.With("program", program.String())
	}
	return &Invocation{
		state:   inv.state,
		program: program,
		signers: signers,
		clock:   inv.clock,
		events:  inv.events,
		logger:  logger,
	}
}

// Emit buffers an event until the transaction commits.
func (inv *Invocation) Emit(evt events.Event) {
	if inv == nil || evt == nil {
		return
	}
	*inv.events = append(*inv.events, evt)
}

// Events returns the events buffered so far.
func (inv *Invocation) Events() []events.Event {
	if inv == nil || inv.events == nil {
		return nil
	}
	return append([]events.Event(nil), (*inv.events)...)
}
