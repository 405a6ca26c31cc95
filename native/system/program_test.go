package system

import (
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"rfqsettle/core/events"
	"rfqsettle/core/runtime"
	"rfqsettle/core/state"
	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/storage"
)

func newTestState(t *testing.T) *state.Manager {
	t.Helper()
	st, err := state.NewManager(storage.NewMemDB())
	require.NoError(t, err)
	return st
}

func fund(t *testing.T, st *state.Manager, addr solana.PublicKey, lamports uint64) {
	t.Helper()
	require.NoError(t, st.PutAccount(addr, &types.Account{Lamports: lamports, Owner: ProgramID}))
}

func TestTransferMovesLamportsAndEmits(t *testing.T) {
	st := newTestState(t)
	alice := crypto.DevKey("alice").Address()
	bob := crypto.DevKey("bob").Address()
	fund(t, st, alice, 1_000)

	inv := runtime.NewInvocation(st, ProgramID, []solana.PublicKey{alice}, runtime.Clock{}, nil)
	require.NoError(t, Transfer(inv, alice, bob, 400))

	got, err := st.Lamports(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(600), got)
	got, err = st.Lamports(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(400), got)

	evts := inv.Events()
	require.Len(t, evts, 1)
	require.Equal(t, events.TypeNativeTransfer, evts[0].EventType())
}

func TestTransferRequiresSigner(t *testing.T) {
	st := newTestState(t)
	alice := crypto.DevKey("alice").Address()
	fund(t, st, alice, 1_000)

	inv := runtime.NewInvocation(st, ProgramID, nil, runtime.Clock{}, nil)
	err := Transfer(inv, alice, crypto.DevKey("bob").Address(), 1)
	require.ErrorIs(t, err, ErrMissingSigner)
}

func TestTransferInsufficientFunds(t *testing.T) {
	st := newTestState(t)
	alice := crypto.DevKey("alice").Address()
	fund(t, st, alice, 10)

	inv := runtime.NewInvocation(st, ProgramID, []solana.PublicKey{alice}, runtime.Clock{}, nil)
	err := Transfer(inv, alice, crypto.DevKey("bob").Address(), 11)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTransferRejectsProgramOwnedSource(t *testing.T) {
	st := newTestState(t)
	vault := crypto.DevKey("vault").Address()
	require.NoError(t, st.PutAccount(vault, &types.Account{Lamports: 50, Owner: solana.TokenProgramID}))

	inv := runtime.NewInvocation(st, ProgramID, []solana.PublicKey{vault}, runtime.Clock{}, nil)
	err := Transfer(inv, vault, crypto.DevKey("bob").Address(), 10)
	require.ErrorIs(t, err, ErrNotSystemOwned)
}

func TestTransferDrainingSourceRemovesAccount(t *testing.T) {
	st := newTestState(t)
	alice := crypto.DevKey("alice").Address()
	bob := crypto.DevKey("bob").Address()
	fund(t, st, alice, 25)

	inv := runtime.NewInvocation(st, ProgramID, []solana.PublicKey{alice}, runtime.Clock{}, nil)
	require.NoError(t, Transfer(inv, alice, bob, 25))

	_, ok, err := st.Account(alice)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransferFromDerivedAddress(t *testing.T) {
	st := newTestState(t)
	program := crypto.DevKey("program").Address()
	pda, err := crypto.Derive(program, []byte("vault"))
	require.NoError(t, err)
	fund(t, st, pda.Address, 500)
	dest := crypto.DevKey("dest").Address()

	inv := runtime.NewInvocation(st, program, nil, runtime.Clock{}, nil)
	require.ErrorIs(t, Transfer(inv.Enter(ProgramID), pda.Address, dest, 100), ErrMissingSigner)

	signed, err := inv.Signed(pda.SignerSeeds())
	require.NoError(t, err)
	require.NoError(t, Transfer(signed.Enter(ProgramID), pda.Address, dest, 100))

	got, err := st.Lamports(dest)
	require.NoError(t, err)
	require.Equal(t, uint64(100), got)
}

func TestCreateAccount(t *testing.T) {
	st := newTestState(t)
	funder := crypto.DevKey("funder").Address()
	fund(t, st, funder, 10_000)
	program := crypto.DevKey("program").Address()
	pda, err := crypto.Derive(program, []byte("temp"))
	require.NoError(t, err)

	inv := runtime.NewInvocation(st, program, []solana.PublicKey{funder}, runtime.Clock{}, nil)
	err = CreateAccount(inv, funder, pda.Address, 2_000, solana.TokenProgramID)
	require.ErrorIs(t, err, ErrMissingSigner)

	signed, err := inv.Signed(pda.SignerSeeds())
	require.NoError(t, err)
	require.NoError(t, CreateAccount(signed, funder, pda.Address, 2_000, solana.TokenProgramID))

	acc, ok, err := st.Account(pda.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2_000), acc.Lamports)
	require.True(t, acc.Owner.Equals(solana.TokenProgramID))

	err = CreateAccount(signed, funder, pda.Address, 2_000, solana.TokenProgramID)
	require.ErrorIs(t, err, ErrAccountInUse)
}

func TestCreateAccountTopsUpPrefundedAddress(t *testing.T) {
	st := newTestState(t)
	funder := crypto.DevKey("funder").Address()
	fund(t, st, funder, 10_000)
	program := crypto.DevKey("program").Address()
	pda, err := crypto.Derive(program, []byte("temp"))
	require.NoError(t, err)
	fund(t, st, pda.Address, 500)

	inv := runtime.NewInvocation(st, program, []solana.PublicKey{funder}, runtime.Clock{}, nil)
	signed, err := inv.Signed(pda.SignerSeeds())
	require.NoError(t, err)
	require.NoError(t, CreateAccount(signed, funder, pda.Address, 2_000, solana.TokenProgramID))

	acc, ok, err := st.Account(pda.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2_000), acc.Lamports)
	got, err := st.Lamports(funder)
	require.NoError(t, err)
	require.Equal(t, uint64(8_500), got)
}

func TestProcessDecodesTransfer(t *testing.T) {
	st := newTestState(t)
	alice := crypto.DevKey("alice").Address()
	bob := crypto.DevKey("bob").Address()
	fund(t, st, alice, 100)

	ix, err := NewTransferInstruction(alice, bob, 30)
	require.NoError(t, err)
	inv := runtime.NewInvocation(st, ProgramID, []solana.PublicKey{alice}, runtime.Clock{}, nil)
	require.NoError(t, Program{}.Process(inv, ix.Accounts, ix.Data))

	got, err := st.Lamports(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(30), got)

	require.Error(t, Program{}.Process(inv, ix.Accounts, []byte{0xff}))
}
