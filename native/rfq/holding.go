package rfq

import solana "github.com/gagliardetto/solana-go"

// HoldingKind distinguishes how a party holds an asset for one leg.
type HoldingKind uint8

const (
	// HoldingNative means the party's balance is its native lamports.
	HoldingNative HoldingKind = iota
	// HoldingCustody means the party holds the asset in a custody account.
	HoldingCustody
)

func (k HoldingKind) String() string {
	switch k {
	case HoldingNative:
		return "native"
	case HoldingCustody:
		return "custody"
	default:
		return "unknown"
	}
}

// Holding is a party together with the custody account it uses for an asset,
// if any.
type Holding struct {
	Party   solana.PublicKey
	Custody *solana.PublicKey
}

// NativeHolding returns a holding tracked as native balance.
func NativeHolding(party solana.PublicKey) Holding {
	return Holding{Party: party}
}

// CustodyHolding returns a holding backed by a custody account.
func CustodyHolding(party, account solana.PublicKey) Holding {
	return Holding{Party: party, Custody: &account}
}

// Kind reports the holding shape.
func (h Holding) Kind() HoldingKind {
	if h.Custody != nil {
		return HoldingCustody
	}
	return HoldingNative
}

// Address is the account whose balance moves: the custody account when
// present, otherwise the party itself.
func (h Holding) Address() solana.PublicKey {
	if h.Custody != nil {
		return *h.Custody
	}
	return h.Party
}
