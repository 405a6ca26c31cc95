package rfq

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/runtime"
	"rfqsettle/crypto"
	"rfqsettle/native/system"
	"rfqsettle/native/token"
)

type bridgePhase uint8

const (
	bridgeDerived bridgePhase = iota
	bridgeAcquired
	bridgeFilled
	bridgeReleased
)

func (p bridgePhase) String() string {
	switch p {
	case bridgeDerived:
		return "derived"
	case bridgeAcquired:
		return "acquired"
	case bridgeFilled:
		return "filled"
	case bridgeReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Bridge converts wrapped-native custody balances into native balance through
// an ephemeral custody account derived from the destination party. The account
// is created, filled and closed within one call.
type Bridge struct {
	params Params
}

// NewBridge constructs a bridge for params.
func NewBridge(params Params) *Bridge {
	return &Bridge{params: params}
}

// Derive returns the bridging account for destination.
func (b *Bridge) Derive(destination solana.PublicKey) (*crypto.DerivedAddress, error) {
	return crypto.Derive(b.params.ProgramID, []byte(b.params.BridgeSeed), destination.Bytes())
}

type bridgeLease struct {
	account     *crypto.DerivedAddress
	destination solana.PublicKey
	program     *token.Program
	phase       bridgePhase
}

// Unwrap moves leg.Amount of wrapped-native asset from the sender's custody
// account to leg.Maker as native balance, then forwards it to the receiving
// party when that party is not the maker.
func (b *Bridge) Unwrap(inv *runtime.Invocation, leg Leg) error {
	lease, err := b.acquire(inv, leg)
	if err != nil {
		return err
	}
	if err := lease.fill(inv, leg.From, leg.Amount); err != nil {
		return err
	}
	if err := lease.release(inv); err != nil {
		return err
	}
	inv.Emit(BridgeCycled{Account: lease.account.Address, Destination: lease.destination, Amount: leg.Amount})
	if leg.To.Party.Equals(leg.Maker) {
		return nil
	}
	return system.Transfer(inv.Enter(system.ProgramID), leg.Maker, leg.To.Party, leg.Amount)
}

func (b *Bridge) acquire(inv *runtime.Invocation, leg Leg) (*bridgeLease, error) {
	if leg.BridgeAccount == nil {
		return nil, ErrMissingTemporaryWrappedSolTokenAccount
	}
	derived, err := b.Derive(leg.Maker)
	if err != nil {
		return nil, err
	}
	if !derived.Matches(*leg.BridgeAccount) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongBridgeAccountAddress, *leg.BridgeAccount, derived.Address)
	}
	lease := &bridgeLease{account: derived, destination: leg.Maker, program: leg.Program, phase: bridgeDerived}

	signed, err := inv.Signed(derived.SignerSeeds())
	if err != nil {
		return nil, err
	}
	if err := system.CreateAccount(signed.Enter(system.ProgramID), leg.Maker, derived.Address, b.params.RentExemptReserve, leg.Program.ID()); err != nil {
		return nil, fmt.Errorf("create bridge account: %w", err)
	}
	if err := leg.Program.InitializeAccount3(inv.Enter(leg.Program.ID()), derived.Address, b.params.NativeMint, leg.Maker); err != nil {
		return nil, fmt.Errorf("initialize bridge account: %w", err)
	}
	lease.phase = bridgeAcquired
	inv.Logger().Debug("bridge account acquired", "account", derived.Address.String(), "destination", leg.Maker.String())
	return lease, nil
}

func (l *bridgeLease) fill(inv *runtime.Invocation, from Holding, amount uint64) error {
	if l.phase != bridgeAcquired {
		return fmt.Errorf("rfq: bridge fill in phase %s", l.phase)
	}
	if err := l.program.Transfer(inv.Enter(l.program.ID()), *from.Custody, l.account.Address, from.Party, amount); err != nil {
		return fmt.Errorf("fill bridge account: %w", err)
	}
	l.phase = bridgeFilled
	return nil
}

func (l *bridgeLease) release(inv *runtime.Invocation) error {
	if l.phase != bridgeFilled {
		return fmt.Errorf("rfq: bridge release in phase %s", l.phase)
	}
	if err := l.program.CloseAccount(inv.Enter(l.program.ID()), l.account.Address, l.destination, l.destination); err != nil {
		return fmt.Errorf("close bridge account: %w", err)
	}
	l.phase = bridgeReleased
	return nil
}
