package rfq

import (
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/runtime"
	"rfqsettle/core/state"
	"rfqsettle/core/types"
	"rfqsettle/native/token"
	"rfqsettle/observability/metrics"
)

var errNilEngine = errors.New("rfq: engine not configured")

// Stage is the progress of a settlement call.
type Stage uint8

// Stages in the order a settlement call passes through them. A failed call
// reports the last stage it completed.
const (
	// StageStart is the stage before any check has passed.
	StageStart Stage = iota
	// StageLadderEvaluated means the binding output amount is known.
	StageLadderEvaluated
	// StageIdentityResolved means the taker and its filled input are known.
	StageIdentityResolved
	// StageInputLegSettled means the taker's asset reached the maker.
	StageInputLegSettled
	// StageFillComputed means the filled output amount is known.
	StageFillComputed
	// StageOutputLegSettled means the maker's asset reached the receiver.
	StageOutputLegSettled
	// StageEmitted means the settlement record has been buffered.
	StageEmitted
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageLadderEvaluated:
		return "ladder_evaluated"
	case StageIdentityResolved:
		return "identity_resolved"
	case StageInputLegSettled:
		return "input_leg_settled"
	case StageFillComputed:
		return "fill_computed"
	case StageOutputLegSettled:
		return "output_leg_settled"
	case StageEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// Engine settles RFQ quotes. It is registered with the executor as the
// settlement program and keeps no state between calls.
type Engine struct {
	params   Params
	programs map[solana.PublicKey]*token.Program
	resolver *IdentityResolver
	router   *Router
	bridge   *Bridge
	metrics  *metrics.SettlementMetrics
}

// NewEngine wires the engine with the standard and the extended custody
// programs named in params.
func NewEngine(params Params, standard, extended *token.Program) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if standard == nil || !standard.ID().Equals(params.TokenProgram) || standard.Extended() {
		return nil, fmt.Errorf("rfq: standard token program %s required", params.TokenProgram)
	}
	if extended == nil || !extended.ID().Equals(params.Token2022Program) || !extended.Extended() {
		return nil, fmt.Errorf("rfq: extended token program %s required", params.Token2022Program)
	}
	resolver, err := NewIdentityResolver(params)
	if err != nil {
		return nil, err
	}
	router := NewRouter(params)
	return &Engine{
		params: params,
		programs: map[solana.PublicKey]*token.Program{
			standard.ID(): standard,
			extended.ID(): extended,
		},
		resolver: resolver,
		router:   router,
		bridge:   router.bridge,
		metrics:  metrics.Settlement(),
	}, nil
}

// ID implements runtime.Program.
func (e *Engine) ID() solana.PublicKey { return e.params.ProgramID }

// Params returns the engine parameters.
func (e *Engine) Params() Params { return e.params }

// DelegatedAddress returns the delegated identity other calls can deposit to.
func (e *Engine) DelegatedAddress() solana.PublicKey { return e.resolver.DelegatedAddress() }

// BridgeAddress returns the bridging account a settlement with maker uses.
func (e *Engine) BridgeAddress(maker solana.PublicKey) (solana.PublicKey, error) {
	derived, err := e.bridge.Derive(maker)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return derived.Address, nil
}

// Process implements runtime.Program.
func (e *Engine) Process(inv *runtime.Invocation, accounts []types.AccountMeta, data []byte) error {
	if e == nil {
		return errNilEngine
	}
	call, err := DecodeCall(e.params.ProgramID, accounts, data)
	if err != nil {
		return err
	}
	_, err = e.Settle(inv, call)
	return err
}

// Settle runs one settlement call. The record is buffered on the invocation
// and delivered once the enclosing transaction commits. On error the caller's
// environment must discard every mutation the call made. Only failures are
// counted here; committed settlements are counted by SettlementObserver.
func (e *Engine) Settle(inv *runtime.Invocation, call Call) (*SettlementRecord, error) {
	if e == nil {
		return nil, errNilEngine
	}
	stage := StageStart
	record, err := e.settle(inv, call, &stage)
	if err != nil {
		e.metrics.ObserveSettlement("failed", stage.String())
		inv.Logger().Warn("settlement failed",
			"eventId", call.Args.EventID,
			"stage", stage.String(),
			"error", err)
		return nil, err
	}
	inv.Logger().Debug("settlement staged",
		"eventId", record.EventID,
		"maker", record.Maker.String(),
		"filledTakerAmount", record.FilledTakerAmount,
		"filledMakerAmount", record.FilledMakerAmount)
	return record, nil
}

func (e *Engine) settle(inv *runtime.Invocation, call Call, stage *Stage) (*SettlementRecord, error) {
	inputProgram, outputProgram, err := e.checkAccounts(inv, call)
	if err != nil {
		return nil, err
	}

	// Timestamps before the unix epoch evaluate as 0.
	var now uint64
	if ts := inv.Clock().UnixTimestamp; ts > 0 {
		now = uint64(ts)
	}
	outputAmount, err := call.Args.Ladder.Evaluate(now)
	if err != nil {
		return nil, err
	}
	*stage = StageLadderEvaluated

	taker := Holding{Party: call.Taker, Custody: call.TakerInputAccount}
	identity, err := e.resolver.Resolve(inv, taker, inputProgram, call.Args.InputAmount)
	if err != nil {
		return nil, err
	}
	*stage = StageIdentityResolved

	input := Leg{
		EventID:       call.Args.EventID,
		Name:          "input",
		From:          taker,
		To:            Holding{Party: call.Maker, Custody: call.MakerInputAccount},
		Maker:         call.Maker,
		Mint:          call.InputMint,
		Program:       inputProgram,
		Amount:        identity.FilledTakerAmount,
		Capability:    identity.Delegated,
		BridgeAccount: call.BridgeAccount,
	}
	output := Leg{
		EventID:       call.Args.EventID,
		Name:          "output",
		From:          Holding{Party: call.Maker, Custody: call.MakerOutputAccount},
		To:            Holding{Party: call.Receiver, Custody: call.ReceiverOutputAccount},
		Maker:         call.Maker,
		Mint:          call.OutputMint,
		Program:       outputProgram,
		BridgeAccount: call.BridgeAccount,
	}
	// Fee-charging assets are rejected before either leg moves value.
	for _, leg := range []Leg{input, output} {
		if leg.From.Kind() == HoldingCustody && leg.To.Kind() == HoldingCustody {
			if _, err := CheckTransferFee(inv.State(), leg.Program, leg.Mint, inv.Clock().Epoch); err != nil {
				return nil, err
			}
		}
	}

	if err := e.router.Execute(inv, input); err != nil {
		return nil, err
	}
	*stage = StageInputLegSettled

	filledMaker, err := FillMakerAmount(identity.FilledTakerAmount, call.Args.InputAmount, outputAmount)
	if err != nil {
		return nil, err
	}
	inv.Emit(FillComputed{
		EventID:           call.Args.EventID,
		Delegated:         identity.IsDelegated(),
		QuotedInputAmount: call.Args.InputAmount,
		FilledTakerAmount: identity.FilledTakerAmount,
		FilledMakerAmount: filledMaker,
	})
	*stage = StageFillComputed

	output.Amount = filledMaker
	if err := e.router.Execute(inv, output); err != nil {
		return nil, err
	}
	*stage = StageOutputLegSettled

	record := &SettlementRecord{
		EventID:           call.Args.EventID,
		Maker:             call.Maker,
		TakerMint:         call.InputMint,
		MakerMint:         call.OutputMint,
		FilledTakerAmount: identity.FilledTakerAmount,
		FilledMakerAmount: filledMaker,
	}
	inv.Emit(*record)
	*stage = StageEmitted
	return record, nil
}

// checkAccounts enforces the account constraints of a swap: the maker signs,
// both custody programs are supported, and every supplied custody account
// belongs to its party, asset and program.
func (e *Engine) checkAccounts(inv *runtime.Invocation, call Call) (*token.Program, *token.Program, error) {
	if !inv.IsSigner(call.Maker) {
		return nil, nil, fmt.Errorf("%w: %s", ErrMakerNotSigner, call.Maker)
	}
	inputProgram, ok := e.programs[call.InputTokenProgram]
	if !ok {
		return nil, nil, fmt.Errorf("%w: input %s", ErrUnsupportedTokenProgram, call.InputTokenProgram)
	}
	outputProgram, ok := e.programs[call.OutputTokenProgram]
	if !ok {
		return nil, nil, fmt.Errorf("%w: output %s", ErrUnsupportedTokenProgram, call.OutputTokenProgram)
	}
	st := inv.State()
	checks := []struct {
		name      string
		account   *solana.PublicKey
		authority solana.PublicKey
		mint      solana.PublicKey
		program   *token.Program
	}{
		{"taker input", call.TakerInputAccount, call.Taker, call.InputMint, inputProgram},
		{"maker input", call.MakerInputAccount, call.Maker, call.InputMint, inputProgram},
		{"receiver output", call.ReceiverOutputAccount, call.Receiver, call.OutputMint, outputProgram},
		{"maker output", call.MakerOutputAccount, call.Maker, call.OutputMint, outputProgram},
	}
	for _, c := range checks {
		if c.account == nil {
			continue
		}
		if err := checkCustody(st, c.program, *c.account, c.authority, c.mint); err != nil {
			return nil, nil, fmt.Errorf("%s account: %w", c.name, err)
		}
	}
	return inputProgram, outputProgram, nil
}

func checkCustody(st *state.Manager, program *token.Program, addr, authority, mint solana.PublicKey) error {
	acc, err := program.LoadAccount(st, addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	if !acc.Token.Authority.Equals(authority) {
		return fmt.Errorf("%w: %s authority is %s, want %s", ErrInvalidAccount, addr, acc.Token.Authority, authority)
	}
	if !acc.Token.Mint.Equals(mint) {
		return fmt.Errorf("%w: %s mint is %s, want %s", ErrInvalidAccount, addr, acc.Token.Mint, mint)
	}
	return nil
}
