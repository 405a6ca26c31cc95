package rfq

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/runtime"
	"rfqsettle/crypto"
	"rfqsettle/native/token"
)

// Identity is the resolved taker of a settlement call.
type Identity struct {
	Taker solana.PublicKey
	// Delegated is set when the taker is the delegated identity. It is the
	// capability presented instead of a signature on the taker's behalf.
	Delegated         *crypto.DerivedAddress
	FilledTakerAmount uint64
}

// IsDelegated reports whether the taker acts through the delegated identity.
func (id Identity) IsDelegated() bool { return id.Delegated != nil }

// IdentityResolver decides whether a taker is directly authenticated or the
// delegated identity, and how much it actually supplies.
type IdentityResolver struct {
	delegated *crypto.DerivedAddress
}

// NewIdentityResolver derives the delegated identity for params.
func NewIdentityResolver(params Params) (*IdentityResolver, error) {
	derived, err := crypto.Derive(params.ProgramID, []byte(params.DelegatedSeed))
	if err != nil {
		return nil, err
	}
	return &IdentityResolver{delegated: derived}, nil
}

// DelegatedAddress returns the delegated identity's address.
func (r *IdentityResolver) DelegatedAddress() solana.PublicKey {
	return r.delegated.Address
}

// Resolve returns the taker identity. A signing taker supplies inputAmount.
// Any other taker must be the delegated identity, which supplies its current
// balance of the input asset: the custody account balance when one is given,
// its native lamports otherwise.
func (r *IdentityResolver) Resolve(inv *runtime.Invocation, taker Holding, program *token.Program, inputAmount uint64) (Identity, error) {
	id := Identity{Taker: taker.Party}
	if inv.IsSigner(taker.Party) {
		id.FilledTakerAmount = inputAmount
	} else {
		if !r.delegated.Matches(taker.Party) {
			return Identity{}, fmt.Errorf("%w: got %s, want %s", ErrWrongSharedAccountAddress, taker.Party, r.delegated.Address)
		}
		id.Delegated = r.delegated
		balance, err := r.balance(inv, taker, program)
		if err != nil {
			return Identity{}, err
		}
		id.FilledTakerAmount = balance
	}
	if id.FilledTakerAmount == 0 {
		return Identity{}, ErrZeroTakerAmount
	}
	return id, nil
}

func (r *IdentityResolver) balance(inv *runtime.Invocation, taker Holding, program *token.Program) (uint64, error) {
	if taker.Kind() == HoldingNative {
		return inv.State().Lamports(taker.Party)
	}
	acc, err := program.LoadAccount(inv.State(), *taker.Custody)
	if err != nil {
		return 0, err
	}
	return acc.Token.Amount, nil
}
