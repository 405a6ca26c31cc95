package rfq

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/types"
	"rfqsettle/native/system"
)

// InstructionSwap is the only instruction tag of the settlement program.
const InstructionSwap uint8 = 0

// Positions of the fixed accounts of a swap instruction. The bridging
// account, when supplied, follows them.
const (
	accTaker = iota
	accMaker
	accReceiver
	accTakerInput
	accMakerInput
	accReceiverOutput
	accMakerOutput
	accInputMint
	accInputTokenProgram
	accOutputMint
	accOutputTokenProgram
	accSystemProgram
	fixedAccounts
)

// SwapArgs are the caller-supplied arguments of a settlement call.
type SwapArgs struct {
	InputAmount uint64 `json:"inputAmount" yaml:"input_amount"`
	Ladder      Ladder `json:"ladder" yaml:"ladder"`
	EventID     uint64 `json:"eventId" yaml:"event_id"`
}

type swapData struct {
	Tag  uint8
	Args SwapArgs
}

// Call is a decoded settlement call. Optional custody accounts are nil when
// the party holds the asset as native balance.
type Call struct {
	Taker    solana.PublicKey
	Maker    solana.PublicKey
	Receiver solana.PublicKey

	TakerInputAccount     *solana.PublicKey
	MakerInputAccount     *solana.PublicKey
	ReceiverOutputAccount *solana.PublicKey
	MakerOutputAccount    *solana.PublicKey

	InputMint          solana.PublicKey
	InputTokenProgram  solana.PublicKey
	OutputMint         solana.PublicKey
	OutputTokenProgram solana.PublicKey

	BridgeAccount *solana.PublicKey

	Args SwapArgs
}

// NewSwapInstruction encodes call for the program at programID. An absent
// optional account is encoded as programID. takerSigns must be false when the
// taker is the delegated identity.
func NewSwapInstruction(programID solana.PublicKey, call Call, takerSigns bool) (types.Instruction, error) {
	data, err := rlp.EncodeToBytes(swapData{Tag: InstructionSwap, Args: call.Args})
	if err != nil {
		return types.Instruction{}, fmt.Errorf("rfq: encode swap: %w", err)
	}
	optional := func(addr *solana.PublicKey) types.AccountMeta {
		if addr == nil {
			return types.AccountMeta{PublicKey: programID}
		}
		return types.AccountMeta{PublicKey: *addr, IsWritable: true}
	}
	accounts := []types.AccountMeta{
		{PublicKey: call.Taker, IsSigner: takerSigns, IsWritable: true},
		{PublicKey: call.Maker, IsSigner: true, IsWritable: true},
		{PublicKey: call.Receiver, IsWritable: true},
		optional(call.TakerInputAccount),
		optional(call.MakerInputAccount),
		optional(call.ReceiverOutputAccount),
		optional(call.MakerOutputAccount),
		{PublicKey: call.InputMint},
		{PublicKey: call.InputTokenProgram},
		{PublicKey: call.OutputMint},
		{PublicKey: call.OutputTokenProgram},
		{PublicKey: system.ProgramID},
	}
	if call.BridgeAccount != nil {
		accounts = append(accounts, types.AccountMeta{PublicKey: *call.BridgeAccount, IsWritable: true})
	}
	return types.Instruction{ProgramID: programID, Accounts: accounts, Data: data}, nil
}

// DecodeCall parses the accounts and data of a swap instruction addressed to
// programID.
func DecodeCall(programID solana.PublicKey, accounts []types.AccountMeta, data []byte) (Call, error) {
	var decoded swapData
	if err := rlp.DecodeBytes(data, &decoded); err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	if decoded.Tag != InstructionSwap {
		return Call{}, fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, decoded.Tag)
	}
	if len(accounts) < fixedAccounts {
		return Call{}, fmt.Errorf("%w: need %d accounts, got %d", ErrInvalidInstruction, fixedAccounts, len(accounts))
	}
	if !accounts[accSystemProgram].PublicKey.Equals(system.ProgramID) {
		return Call{}, fmt.Errorf("%w: system program %s", ErrInvalidAccount, accounts[accSystemProgram].PublicKey)
	}
	optional := func(i int) *solana.PublicKey {
		key := accounts[i].PublicKey
		if key.Equals(programID) {
			return nil
		}
		return &key
	}
	call := Call{
		Taker:                 accounts[accTaker].PublicKey,
		Maker:                 accounts[accMaker].PublicKey,
		Receiver:              accounts[accReceiver].PublicKey,
		TakerInputAccount:     optional(accTakerInput),
		MakerInputAccount:     optional(accMakerInput),
		ReceiverOutputAccount: optional(accReceiverOutput),
		MakerOutputAccount:    optional(accMakerOutput),
		InputMint:             accounts[accInputMint].PublicKey,
		InputTokenProgram:     accounts[accInputTokenProgram].PublicKey,
		OutputMint:            accounts[accOutputMint].PublicKey,
		OutputTokenProgram:    accounts[accOutputTokenProgram].PublicKey,
		Args:                  decoded.Args,
	}
	if len(accounts) > fixedAccounts {
		bridge := accounts[fixedAccounts].PublicKey
		call.BridgeAccount = &bridge
	}
	return call, nil
}
