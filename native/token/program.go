package token

import (
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/events"
	"rfqsettle/core/runtime"
	"rfqsettle/core/state"
	"rfqsettle/core/types"
)

var (
	// ErrAccountNotFound is returned when a referenced account does not exist.
	ErrAccountNotFound = errors.New("token: account not found")
	// ErrIncorrectProgram is returned when an account is owned by another
	// program than the one processing the call.
	ErrIncorrectProgram = errors.New("token: account owned by another program")
	// ErrNotTokenAccount is returned when a custody record was expected.
	ErrNotTokenAccount = errors.New("token: not a custody account")
	// ErrNotMint is returned when an asset descriptor was expected.
	ErrNotMint = errors.New("token: not a mint")
	// ErrAlreadyInitialized is returned when initialising an account twice.
	ErrAlreadyInitialized = errors.New("token: account already initialized")
	// ErrMintMismatch is returned when two custody accounts hold different assets.
	ErrMintMismatch = errors.New("token: mint mismatch")
	// ErrOwnerMismatch is returned when the supplied authority is not the
	// custody account authority.
	ErrOwnerMismatch = errors.New("token: authority mismatch")
	// ErrMissingSigner is returned when the authority did not authorise the call.
	ErrMissingSigner = errors.New("token: missing required signature")
	// ErrInsufficientFunds is returned when the source holds too little.
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	// ErrDecimalsMismatch is returned by TransferChecked when the declared
	// decimals differ from the mint.
	ErrDecimalsMismatch = errors.New("token: decimals mismatch")
	// ErrNonNativeHasBalance is returned when closing a non-empty account.
	ErrNonNativeHasBalance = errors.New("token: non-native account has balance")
	// ErrNonNative is returned by SyncNative for non-native accounts.
	ErrNonNative = errors.New("token: account is not native")
	// ErrNativeNotSupported is returned when minting the wrapped-native asset.
	ErrNativeNotSupported = errors.New("token: operation not supported for native mint")
	// ErrFeeNotSupported is returned when a transfer fee is configured on a
	// mint of the standard program.
	ErrFeeNotSupported = errors.New("token: transfer fee requires the extended program")
)

// Program is the asset custody program. The standard and the extended variant
// share the implementation and differ in their identity: only the extended
// variant supports transfer fees and enforces them on TransferChecked.
type Program struct {
	id                solana.PublicKey
	extended          bool
	nativeMint        solana.PublicKey
	rentExemptReserve uint64
}

// NewProgram returns the custody program identified by id.
func NewProgram(id solana.PublicKey, extended bool, nativeMint solana.PublicKey, rentExemptReserve uint64) *Program {
	return &Program{id: id, extended: extended, nativeMint: nativeMint, rentExemptReserve: rentExemptReserve}
}

// ID implements runtime.Program.
func (p *Program) ID() solana.PublicKey { return p.id }

// Extended reports whether this is the extension-capable variant.
func (p *Program) Extended() bool { return p.extended }

// NativeMint returns the wrapped-native asset descriptor.
func (p *Program) NativeMint() solana.PublicKey { return p.nativeMint }

// LoadAccount returns the custody record at addr, checking it is owned by
// the program.
func (p *Program) LoadAccount(st *state.Manager, addr solana.PublicKey) (*types.Account, error) {
	acc, ok, err := st.Account(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if !acc.Owner.Equals(p.id) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgram, addr)
	}
	if acc.Token == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotTokenAccount, addr)
	}
	return acc, nil
}

// LoadMint returns the asset descriptor at addr, checking it is owned by the
// program.
func (p *Program) LoadMint(st *state.Manager, addr solana.PublicKey) (*types.Mint, error) {
	acc, ok, err := st.Account(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if !acc.Owner.Equals(p.id) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgram, addr)
	}
	if acc.Mint == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotMint, addr)
	}
	return acc.Mint, nil
}

// InitializeMint writes an asset descriptor into an account already assigned
// to the program.
func (p *Program) InitializeMint(inv *runtime.Invocation, mint solana.PublicKey, decimals uint8, authority solana.PublicKey, fee *types.TransferFeeConfig) error {
	if fee != nil && !p.extended {
		return ErrFeeNotSupported
	}
	st := inv.State()
	acc, err := p.loadUninitialized(st, mint)
	if err != nil {
		return err
	}
	acc.Mint = &types.Mint{Decimals: decimals, MintAuthority: authority, TransferFee: fee}
	return st.PutAccount(mint, acc)
}

// InitializeAccount3 turns an account assigned to the program into a custody
// record for mint held on behalf of authority. No signature is needed.
func (p *Program) InitializeAccount3(inv *runtime.Invocation, account, mint, authority solana.PublicKey) error {
	st := inv.State()
	if _, err := p.LoadMint(st, mint); err != nil {
		return err
	}
	acc, err := p.loadUninitialized(st, account)
	if err != nil {
		return err
	}
	record := &types.TokenAccount{Mint: mint, Authority: authority}
	if mint.Equals(p.nativeMint) {
		reserve := p.rentExemptReserve
		if acc.Lamports < reserve {
			reserve = acc.Lamports
		}
		record.IsNative = true
		record.NativeReserve = reserve
		record.Amount = acc.Lamports - reserve
	}
	acc.Token = record
	return st.PutAccount(account, acc)
}

func (p *Program) loadUninitialized(st *state.Manager, addr solana.PublicKey) (*types.Account, error) {
	acc, ok, err := st.Account(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if !acc.Owner.Equals(p.id) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgram, addr)
	}
	if acc.Token != nil || acc.Mint != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, addr)
	}
	return acc, nil
}

// MintTo issues new units of mint into a custody account.
func (p *Program) MintTo(inv *runtime.Invocation, mint, destination, authority solana.PublicKey, amount uint64) error {
	if mint.Equals(p.nativeMint) {
		return ErrNativeNotSupported
	}
	st := inv.State()
	mintAcc, ok, err := st.Account(mint)
	if err != nil {
		return err
	}
	if !ok || mintAcc.Mint == nil {
		return fmt.Errorf("%w: %s", ErrNotMint, mint)
	}
	if !mintAcc.Owner.Equals(p.id) {
		return fmt.Errorf("%w: %s", ErrIncorrectProgram, mint)
	}
	if !mintAcc.Mint.MintAuthority.Equals(authority) {
		return fmt.Errorf("%w: mint authority %s", ErrOwnerMismatch, authority)
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, authority)
	}
	dest, err := p.LoadAccount(st, destination)
	if err != nil {
		return err
	}
	if !dest.Token.Mint.Equals(mint) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, destination)
	}
	mintAcc.Mint.Supply += amount
	dest.Token.Amount += amount
	if err := st.PutAccount(mint, mintAcc); err != nil {
		return err
	}
	return st.PutAccount(destination, dest)
}

// Transfer moves amount between two custody accounts without a decimals
// check. The authority must own the source and have authorised the call.
func (p *Program) Transfer(inv *runtime.Invocation, from, to, authority solana.PublicKey, amount uint64) error {
	return p.transfer(inv, from, to, authority, nil, amount, nil)
}

// TransferChecked is Transfer with the mint and its decimals declared by the
// caller. On the extended program the epoch transfer fee is withheld from the
// credited amount.
func (p *Program) TransferChecked(inv *runtime.Invocation, from, mint, to, authority solana.PublicKey, amount uint64, decimals uint8) error {
	return p.transfer(inv, from, to, authority, &mint, amount, &decimals)
}

func (p *Program) transfer(inv *runtime.Invocation, from, to, authority solana.PublicKey, mint *solana.PublicKey, amount uint64, decimals *uint8) error {
	st := inv.State()
	src, err := p.LoadAccount(st, from)
	if err != nil {
		return err
	}
	dst, err := p.LoadAccount(st, to)
	if err != nil {
		return err
	}
	if !src.Token.Mint.Equals(dst.Token.Mint) {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, from, to)
	}
	if !src.Token.Authority.Equals(authority) {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, from)
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, authority)
	}
	if src.Token.Amount < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, src.Token.Amount, amount)
	}
	var fee uint64
	if mint != nil {
		if !mint.Equals(src.Token.Mint) {
			return fmt.Errorf("%w: declared %s", ErrMintMismatch, *mint)
		}
		desc, err := p.LoadMint(st, *mint)
		if err != nil {
			return err
		}
		if decimals != nil && *decimals != desc.Decimals {
			return fmt.Errorf("%w: declared %d, mint has %d", ErrDecimalsMismatch, *decimals, desc.Decimals)
		}
		if p.extended {
			fee = desc.TransferFee.EpochFee(inv.Clock().Epoch).Calculate(amount)
		}
	}
	if from.Equals(to) || amount == 0 {
		return nil
	}

	src.Token.Amount -= amount
	dst.Token.Amount += amount - fee
	dst.Token.Withheld += fee
	if src.Token.IsNative {
		src.Lamports -= amount
		dst.Lamports += amount
	}
	if err := st.PutAccount(from, src); err != nil {
		return err
	}
	if err := st.PutAccount(to, dst); err != nil {
		return err
	}
	inv.Emit(events.TokenTransfer{Program: p.id, Mint: src.Token.Mint, From: from, To: to, Amount: amount, Fee: fee})
	return nil
}

// SyncNative sets the amount of a wrapped-native custody account to its
// lamports above the reserve.
func (p *Program) SyncNative(inv *runtime.Invocation, account solana.PublicKey) error {
	st := inv.State()
	acc, err := p.LoadAccount(st, account)
	if err != nil {
		return err
	}
	if !acc.Token.IsNative {
		return fmt.Errorf("%w: %s", ErrNonNative, account)
	}
	if acc.Lamports < acc.Token.NativeReserve {
		return fmt.Errorf("%w: %s below reserve", ErrInsufficientFunds, account)
	}
	acc.Token.Amount = acc.Lamports - acc.Token.NativeReserve
	return st.PutAccount(account, acc)
}

// CloseAccount removes a custody account and credits all of its lamports to
// destination. Wrapped-native accounts may be closed with a balance: the
// balance is converted back into native lamports.
func (p *Program) CloseAccount(inv *runtime.Invocation, account, destination, authority solana.PublicKey) error {
	st := inv.State()
	acc, err := p.LoadAccount(st, account)
	if err != nil {
		return err
	}
	if !acc.Token.Authority.Equals(authority) {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, account)
	}
	if !inv.IsSigner(authority) {
		return fmt.Errorf("%w: %s", ErrMissingSigner, authority)
	}
	if !acc.Token.IsNative && acc.Token.Amount != 0 {
		return fmt.Errorf("%w: %s", ErrNonNativeHasBalance, account)
	}
	lamports := acc.Lamports
	if err := st.DeleteAccount(account); err != nil {
		return err
	}
	destAcc, ok, err := st.Account(destination)
	if err != nil {
		return err
	}
	if !ok {
		destAcc = &types.Account{Owner: solana.SystemProgramID}
	}
	destAcc.Lamports += lamports
	return st.PutAccount(destination, destAcc)
}
