package rfq

import (
	"strconv"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/types"
)

const (
	// TypeSettled is the event type of SettlementRecord.
	TypeSettled = "rfq.settled"
	// TypeFill is the event type of FillComputed.
	TypeFill = "rfq.fill"
	// TypeLeg is the event type of LegSettled.
	TypeLeg = "rfq.leg"
	// TypeBridge is the event type of BridgeCycled.
	TypeBridge = "rfq.bridge"
)

// SettlementRecord is emitted once per successful settlement call.
type SettlementRecord struct {
	EventID           uint64           `json:"eventId"`
	Maker             solana.PublicKey `json:"maker"`
	TakerMint         solana.PublicKey `json:"takerMint"`
	MakerMint         solana.PublicKey `json:"makerMint"`
	FilledTakerAmount uint64           `json:"filledTakerAmount"`
	FilledMakerAmount uint64           `json:"filledMakerAmount"`
}

// EventType implements events.Event.
func (SettlementRecord) EventType() string { return TypeSettled }

// Event renders the record as attributes.
func (r SettlementRecord) Event() *types.Event {
	return &types.Event{
		Type: TypeSettled,
		Attributes: map[string]string{
			"eventId":           strconv.FormatUint(r.EventID, 10),
			"maker":             r.Maker.String(),
			"takerMint":         r.TakerMint.String(),
			"makerMint":         r.MakerMint.String(),
			"filledTakerAmount": strconv.FormatUint(r.FilledTakerAmount, 10),
			"filledMakerAmount": strconv.FormatUint(r.FilledMakerAmount, 10),
		},
	}
}

// FillComputed reports how the input of a settlement was resolved.
type FillComputed struct {
	EventID           uint64
	Delegated         bool
	QuotedInputAmount uint64
	FilledTakerAmount uint64
	FilledMakerAmount uint64
}

// EventType implements events.Event.
func (FillComputed) EventType() string { return TypeFill }

// Partial reports whether the taker supplied less than the quoted input.
func (f FillComputed) Partial() bool { return f.FilledTakerAmount < f.QuotedInputAmount }

// Event renders the fill as attributes.
func (f FillComputed) Event() *types.Event {
	return &types.Event{
		Type: TypeFill,
		Attributes: map[string]string{
			"eventId":           strconv.FormatUint(f.EventID, 10),
			"delegated":         strconv.FormatBool(f.Delegated),
			"quotedInputAmount": strconv.FormatUint(f.QuotedInputAmount, 10),
			"filledTakerAmount": strconv.FormatUint(f.FilledTakerAmount, 10),
			"filledMakerAmount": strconv.FormatUint(f.FilledMakerAmount, 10),
		},
	}
}

// LegSettled is emitted for each transfer leg a settlement executes.
type LegSettled struct {
	EventID  uint64
	Leg      string
	Strategy string
	Mint     solana.PublicKey
	Amount   uint64
}

// EventType implements events.Event.
func (LegSettled) EventType() string { return TypeLeg }

// Event renders the leg as attributes.
func (l LegSettled) Event() *types.Event {
	return &types.Event{
		Type: TypeLeg,
		Attributes: map[string]string{
			"eventId":  strconv.FormatUint(l.EventID, 10),
			"leg":      l.Leg,
			"strategy": l.Strategy,
			"mint":     l.Mint.String(),
			"amount":   strconv.FormatUint(l.Amount, 10),
		},
	}
}

// BridgeCycled is emitted once a bridging account has been created, filled
// and closed.
type BridgeCycled struct {
	Account     solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
}

// EventType implements events.Event.
func (BridgeCycled) EventType() string { return TypeBridge }

// Event renders the bridge cycle as attributes.
func (b BridgeCycled) Event() *types.Event {
	return &types.Event{
		Type: TypeBridge,
		Attributes: map[string]string{
			"account":     b.Account.String(),
			"destination": b.Destination.String(),
			"amount":      strconv.FormatUint(b.Amount, 10),
		},
	}
}
