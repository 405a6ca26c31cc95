package events

import (
	"strconv"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/types"
)

const (
	// TypeNativeTransfer is emitted for native balance movements.
	TypeNativeTransfer = "transfer.native"
	// TypeTokenTransfer is emitted for custody account balance movements.
	TypeTokenTransfer = "transfer.token"
)

// NativeTransfer records a lamport movement performed by the system program.
type NativeTransfer struct {
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
}

func (NativeTransfer) EventType() string { return TypeNativeTransfer }

func (e NativeTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeNativeTransfer,
		Attributes: map[string]string{
			"from":   e.From.String(),
			"to":     e.To.String(),
			"amount": strconv.FormatUint(e.Amount, 10),
		},
	}
}

// TokenTransfer records a movement between two custody accounts. Fee is the
// amount withheld by the extended program, zero otherwise.
type TokenTransfer struct {
	Program solana.PublicKey
	Mint    solana.PublicKey
	From    solana.PublicKey
	To      solana.PublicKey
	Amount  uint64
	Fee     uint64
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	attrs := map[string]string{
		"program": e.Program.String(),
		"mint":    e.Mint.String(),
		"from":    e.From.String(),
		"to":      e.To.String(),
		"amount":  strconv.FormatUint(e.Amount, 10),
	}
	if e.Fee > 0 {
		attrs["fee"] = strconv.FormatUint(e.Fee, 10)
	}
	return &types.Event{Type: TypeTokenTransfer, Attributes: attrs}
}
