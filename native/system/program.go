package system

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/events"
	"rfqsettle/core/runtime"
	"rfqsettle/core/types"
)

var (
	// ErrMissingSigner is returned when the debited account did not authorise
	// the call.
	ErrMissingSigner = errors.New("system: missing required signature")
	// ErrInsufficientFunds is returned when the sender lacks lamports.
	ErrInsufficientFunds = errors.New("system: insufficient lamports")
	// ErrNotSystemOwned is returned when lamports are debited from an account
	// owned by another program.
	ErrNotSystemOwned = errors.New("system: from account not owned by system program")
	// ErrAccountInUse is returned when creating an account that already exists.
	ErrAccountInUse = errors.New("system: account already in use")
	errInvalidData  = errors.New("system: invalid instruction data")
)

// Instruction tags understood by Process.
const (
	InstructionTransfer uint8 = 2
)

// ProgramID is the identity of the system program.
var ProgramID = solana.SystemProgramID

// Program exposes the system program to the executor.
type Program struct{}

// ID implements runtime.Program.
func (Program) ID() solana.PublicKey { return ProgramID }

type transferArgs struct {
	Tag      uint8
	Lamports uint64
}

// NewTransferInstruction builds a top-level native transfer.
func NewTransferInstruction(from, to solana.PublicKey, lamports uint64) (types.Instruction, error) {
	data, err := rlp.EncodeToBytes(transferArgs{Tag: InstructionTransfer, Lamports: lamports})
	if err != nil {
		return types.Instruction{}, err
	}
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsWritable: true},
		},
		Data: data,
	}, nil
}

// Process implements runtime.Program.
func (Program) Process(inv *runtime.Invocation, accounts []types.AccountMeta, data []byte) error {
	var args transferArgs
	if err := rlp.DecodeBytes(data, &args); err != nil {
		return fmt.Errorf("%w: %v", errInvalidData, err)
	}
	switch args.Tag {
	case InstructionTransfer:
		if len(accounts) < 2 {
			return fmt.Errorf("%w: transfer needs 2 accounts", errInvalidData)
		}
		return Transfer(inv, accounts[0].PublicKey, accounts[1].PublicKey, args.Lamports)
	default:
		return fmt.Errorf("%w: unknown tag %d", errInvalidData, args.Tag)
	}
}

// Transfer moves lamports between two accounts. The source must be a plain
// native account that authorised the invocation. The destination may be any
// account; it is created as a native account when absent.
func Transfer(inv *runtime.Invocation, from, to solana.PublicKey, lamports uint64) error {
	if !inv.IsSigner(from) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, from)
	}
	st := inv.State()
	fromAcc, ok, err := st.Account(from)
	if err != nil {
		return err
	}
	if !ok {
		fromAcc = &types.Account{Owner: ProgramID}
	}
	if !fromAcc.Owner.Equals(ProgramID) || fromAcc.Token != nil || fromAcc.Mint != nil {
		return fmt.Errorf("%w: %s", ErrNotSystemOwned, from)
	}
	if fromAcc.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, fromAcc.Lamports, lamports)
	}
	if lamports == 0 || from.Equals(to) {
		return nil
	}
	fromAcc.Lamports -= lamports
	if err := st.PutAccount(from, fromAcc); err != nil {
		return err
	}
	toAcc, ok, err := st.Account(to)
	if err != nil {
		return err
	}
	if !ok {
		toAcc = &types.Account{Owner: ProgramID}
	}
	toAcc.Lamports += lamports
	if err := st.PutAccount(to, toAcc); err != nil {
		return err
	}
	inv.Emit(events.NativeTransfer{From: from, To: to, Amount: lamports})
	return nil
}

// CreateAccount funds a new account at addr and assigns it to owner. Both
// the funder and the new address must have authorised the invocation; derived
// addresses do so through runtime.Invocation.Signed. A plain native account
// already holding lamports at addr is topped up to lamports and reassigned.
func CreateAccount(inv *runtime.Invocation, funder, addr solana.PublicKey, lamports uint64, owner solana.PublicKey) error {
	if !inv.IsSigner(funder) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, funder)
	}
	if !inv.IsSigner(addr) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, addr)
	}
	st := inv.State()
	existing, ok, err := st.Account(addr)
	if err != nil {
		return err
	}
	var prefunded uint64
	if ok {
		if !existing.Owner.Equals(ProgramID) || existing.Token != nil || existing.Mint != nil {
			return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
		}
		prefunded = existing.Lamports
	}
	required := uint64(0)
	if lamports > prefunded {
		required = lamports - prefunded
	}
	if required > 0 {
		funderAcc, ok, err := st.Account(funder)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s has 0, needs %d", ErrInsufficientFunds, funder, required)
		}
		if !funderAcc.Owner.Equals(ProgramID) || funderAcc.Token != nil || funderAcc.Mint != nil {
			return fmt.Errorf("%w: %s", ErrNotSystemOwned, funder)
		}
		if funderAcc.Lamports < required {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, funder, funderAcc.Lamports, required)
		}
		funderAcc.Lamports -= required
		if err := st.PutAccount(funder, funderAcc); err != nil {
			return err
		}
	}
	return st.PutAccount(addr, &types.Account{Lamports: prefunded + required, Owner: owner})
}
