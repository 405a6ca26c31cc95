package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/runtime"
	"rfqsettle/core/types"
)

var errInvalidData = errors.New("token: invalid instruction data")

// Instruction tags understood by Process. The values follow the custody
// program's instruction numbering.
const (
	InstructionTransfer           uint8 = 3
	InstructionMintTo             uint8 = 7
	InstructionCloseAccount       uint8 = 9
	InstructionTransferChecked    uint8 = 12
	InstructionSyncNative         uint8 = 17
	InstructionInitializeAccount3 uint8 = 18
)

type instructionArgs struct {
	Tag       uint8
	Amount    uint64
	Decimals  uint8
	Authority solana.PublicKey
}

func encode(args instructionArgs) []byte {
	data, err := rlp.EncodeToBytes(args)
	if err != nil {
		// Fixed-size fields only; encoding cannot fail.
		panic(err)
	}
	return data
}

// NewTransferCheckedInstruction builds a top-level TransferChecked.
func (p *Program) NewTransferCheckedInstruction(from, mint, to, authority solana.PublicKey, amount uint64, decimals uint8) types.Instruction {
	return types.Instruction{
		ProgramID: p.id,
		Accounts: []types.AccountMeta{
			{PublicKey: from, IsWritable: true},
			{PublicKey: mint},
			{PublicKey: to, IsWritable: true},
			{PublicKey: authority, IsSigner: true},
		},
		Data: encode(instructionArgs{Tag: InstructionTransferChecked, Amount: amount, Decimals: decimals}),
	}
}

// NewMintToInstruction builds a top-level MintTo.
func (p *Program) NewMintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) types.Instruction {
	return types.Instruction{
		ProgramID: p.id,
		Accounts: []types.AccountMeta{
			{PublicKey: mint, IsWritable: true},
			{PublicKey: destination, IsWritable: true},
			{PublicKey: authority, IsSigner: true},
		},
		Data: encode(instructionArgs{Tag: InstructionMintTo, Amount: amount}),
	}
}

// NewSyncNativeInstruction builds a top-level SyncNative.
func (p *Program) NewSyncNativeInstruction(account solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: p.id,
		Accounts:  []types.AccountMeta{{PublicKey: account, IsWritable: true}},
		Data:      encode(instructionArgs{Tag: InstructionSyncNative}),
	}
}

// NewCloseAccountInstruction builds a top-level CloseAccount.
func (p *Program) NewCloseAccountInstruction(account, destination, authority solana.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: p.id,
		Accounts: []types.AccountMeta{
			{PublicKey: account, IsWritable: true},
			{PublicKey: destination, IsWritable: true},
			{PublicKey: authority, IsSigner: true},
		},
		Data: encode(instructionArgs{Tag: InstructionCloseAccount}),
	}
}

// Process implements runtime.Program.
func (p *Program) Process(inv *runtime.Invocation, accounts []types.AccountMeta, data []byte) error {
	var args instructionArgs
	if err := rlp.DecodeBytes(data, &args); err != nil {
		return fmt.Errorf("%w: %v", errInvalidData, err)
	}
	need := func(n int) error {
		if len(accounts) < n {
			return fmt.Errorf("%w: tag %d needs %d accounts, got %d", errInvalidData, args.Tag, n, len(accounts))
		}
		return nil
	}
	key := func(i int) solana.PublicKey { return accounts[i].PublicKey }

	switch args.Tag {
	case InstructionTransfer:
		if err := need(3); err != nil {
			return err
		}
		return p.Transfer(inv, key(0), key(1), key(2), args.Amount)
	case InstructionMintTo:
		if err := need(3); err != nil {
			return err
		}
		return p.MintTo(inv, key(0), key(1), key(2), args.Amount)
	case InstructionCloseAccount:
		if err := need(3); err != nil {
			return err
		}
		return p.CloseAccount(inv, key(0), key(1), key(2))
	case InstructionTransferChecked:
		if err := need(4); err != nil {
			return err
		}
		return p.TransferChecked(inv, key(0), key(1), key(2), key(3), args.Amount, args.Decimals)
	case InstructionSyncNative:
		if err := need(1); err != nil {
			return err
		}
		return p.SyncNative(inv, key(0))
	case InstructionInitializeAccount3:
		if err := need(2); err != nil {
			return err
		}
		return p.InitializeAccount3(inv, key(0), key(1), args.Authority)
	default:
		return fmt.Errorf("%w: unknown tag %d", errInvalidData, args.Tag)
	}
}
