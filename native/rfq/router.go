package rfq

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/runtime"
	"rfqsettle/crypto"
	"rfqsettle/native/system"
	"rfqsettle/native/token"
)

// Leg is one directed value movement of a settlement.
type Leg struct {
	EventID uint64
	Name    string
	From    Holding
	To      Holding
	Maker   solana.PublicKey
	Mint    solana.PublicKey
	Program *token.Program
	Amount  uint64
	// Capability authorises the transfer on behalf of From.Party when it is
	// the delegated identity.
	Capability    *crypto.DerivedAddress
	BridgeAccount *solana.PublicKey
}

type strategy struct {
	name string
	run  func(r *Router, inv *runtime.Invocation, leg Leg) error
}

var strategies = map[[2]HoldingKind]strategy{
	{HoldingNative, HoldingNative}:   {name: "native", run: (*Router).transferNative},
	{HoldingNative, HoldingCustody}:  {name: "wrap", run: (*Router).wrapNative},
	{HoldingCustody, HoldingNative}:  {name: "unwrap", run: (*Router).unwrapNative},
	{HoldingCustody, HoldingCustody}: {name: "custody", run: (*Router).transferCustody},
}

// Router picks the transfer strategy for a leg from the holding shapes of its
// two sides.
type Router struct {
	params Params
	bridge *Bridge
}

// NewRouter constructs a router for params.
func NewRouter(params Params) *Router {
	return &Router{params: params, bridge: NewBridge(params)}
}

// Strategy returns the name of the strategy a leg would use.
func Strategy(from, to HoldingKind) string {
	return strategies[[2]HoldingKind{from, to}].name
}

// Execute moves leg.Amount from leg.From to leg.To.
func (r *Router) Execute(inv *runtime.Invocation, leg Leg) error {
	route, ok := strategies[[2]HoldingKind{leg.From.Kind(), leg.To.Kind()}]
	if !ok {
		return fmt.Errorf("%w: no strategy for %s -> %s", ErrInvalidInstruction, leg.From.Kind(), leg.To.Kind())
	}
	if leg.Capability != nil {
		signed, err := inv.Signed(leg.Capability.SignerSeeds())
		if err != nil {
			return err
		}
		inv = signed
	}
	if err := route.run(r, inv, leg); err != nil {
		return fmt.Errorf("%s leg (%s): %w", leg.Name, route.name, err)
	}
	inv.Emit(LegSettled{EventID: leg.EventID, Leg: leg.Name, Strategy: route.name, Mint: leg.Mint, Amount: leg.Amount})
	inv.Logger().Debug("leg settled", "leg", leg.Name, "strategy", route.name, "amount", leg.Amount)
	return nil
}

func (r *Router) requireNativeMint(leg Leg) error {
	if !leg.Mint.Equals(r.params.NativeMint) {
		return fmt.Errorf("%w: %s", ErrInvalidNativeTokenAddress, leg.Mint)
	}
	return nil
}

func (r *Router) transferNative(inv *runtime.Invocation, leg Leg) error {
	if err := r.requireNativeMint(leg); err != nil {
		return err
	}
	return system.Transfer(inv.Enter(system.ProgramID), leg.From.Party, leg.To.Party, leg.Amount)
}

func (r *Router) wrapNative(inv *runtime.Invocation, leg Leg) error {
	if err := r.requireNativeMint(leg); err != nil {
		return err
	}
	if err := system.Transfer(inv.Enter(system.ProgramID), leg.From.Party, *leg.To.Custody, leg.Amount); err != nil {
		return err
	}
	return leg.Program.SyncNative(inv.Enter(leg.Program.ID()), *leg.To.Custody)
}

func (r *Router) unwrapNative(inv *runtime.Invocation, leg Leg) error {
	if err := r.requireNativeMint(leg); err != nil {
		return err
	}
	return r.bridge.Unwrap(inv, leg)
}

func (r *Router) transferCustody(inv *runtime.Invocation, leg Leg) error {
	desc, err := CheckTransferFee(inv.State(), leg.Program, leg.Mint, inv.Clock().Epoch)
	if err != nil {
		return err
	}
	tokenInv := inv.Enter(leg.Program.ID())
	if desc != nil {
		return leg.Program.TransferChecked(tokenInv, *leg.From.Custody, leg.Mint, *leg.To.Custody, leg.From.Party, leg.Amount, desc.Decimals)
	}
	return leg.Program.Transfer(tokenInv, *leg.From.Custody, *leg.To.Custody, leg.From.Party, leg.Amount)
}
