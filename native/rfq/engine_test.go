package rfq

import (
	"context"
	"testing"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"rfqsettle/core/events"
	"rfqsettle/core/runtime"
	"rfqsettle/core/state"
	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/system"
	"rfqsettle/native/token"
	"rfqsettle/storage"
)

const (
	testNow        int64  = 1_700_000_000
	farFuture      uint64 = 4_000_000_000
	testReserve    uint64 = DefaultRentExemptReserve
	startingSOL    uint64 = 10_000_000_000
	makerInventory uint64 = 5_000_000_000
)

type harness struct {
	t        *testing.T
	st       *state.Manager
	exec     *runtime.Executor
	engine   *Engine
	standard *token.Program
	extended *token.Program
	rec      *events.Recorder

	taker    *crypto.PrivateKey
	maker    *crypto.PrivateKey
	receiver *crypto.PrivateKey
	mintA    solana.PublicKey
	mintB    solana.PublicKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := state.NewManager(storage.NewMemDB())
	require.NoError(t, err)

	params := DefaultParams(crypto.DevKey("rfq-program").Address())
	standard := token.NewProgram(params.TokenProgram, false, params.NativeMint, params.RentExemptReserve)
	extended := token.NewProgram(params.Token2022Program, true, params.NativeMint, params.RentExemptReserve)
	engine, err := NewEngine(params, standard, extended)
	require.NoError(t, err)

	rec := &events.Recorder{}
	exec := runtime.NewExecutor(st)
	exec.Register(system.Program{}, standard, extended, engine)
	exec.SetEmitter(events.Multi{rec, NewSettlementObserver(nil)})
	exec.SetNowFunc(func() time.Time { return time.Unix(testNow, 0) })

	h := &harness{
		t:        t,
		st:       st,
		exec:     exec,
		engine:   engine,
		standard: standard,
		extended: extended,
		rec:      rec,
		taker:    crypto.DevKey("taker"),
		maker:    crypto.DevKey("maker"),
		receiver: crypto.DevKey("receiver"),
	}
	for _, key := range []*crypto.PrivateKey{h.taker, h.maker, h.receiver} {
		h.fund(key.Address(), startingSOL)
	}
	h.put(params.NativeMint, &types.Account{Lamports: 1, Owner: standard.ID(), Mint: &types.Mint{Decimals: 9}})
	h.mintA = h.mint(standard, "A", 9, nil)
	h.mintB = h.mint(standard, "B", 6, nil)
	h.commit()
	return h
}

func (h *harness) put(addr solana.PublicKey, acc *types.Account) {
	h.t.Helper()
	require.NoError(h.t, h.st.PutAccount(addr, acc))
}

func (h *harness) commit() {
	h.t.Helper()
	_, err := h.st.Commit()
	require.NoError(h.t, err)
}

func (h *harness) fund(addr solana.PublicKey, lamports uint64) {
	h.put(addr, &types.Account{Lamports: lamports, Owner: system.ProgramID})
}

func (h *harness) mint(p *token.Program, label string, decimals uint8, fee *types.TransferFeeConfig) solana.PublicKey {
	addr := crypto.DevKey("mint/" + label).Address()
	h.put(addr, &types.Account{Lamports: 1, Owner: p.ID(), Mint: &types.Mint{Decimals: decimals, TransferFee: fee}})
	return addr
}

func (h *harness) custody(p *token.Program, label string, mint, authority solana.PublicKey, amount uint64) *solana.PublicKey {
	addr := crypto.DevKey("custody/" + label).Address()
	h.put(addr, &types.Account{
		Lamports: testReserve,
		Owner:    p.ID(),
		Token:    &types.TokenAccount{Mint: mint, Authority: authority, Amount: amount},
	})
	return &addr
}

func (h *harness) wrapped(label string, authority solana.PublicKey, amount uint64) *solana.PublicKey {
	addr := crypto.DevKey("wrapped/" + label).Address()
	h.put(addr, &types.Account{
		Lamports: testReserve + amount,
		Owner:    h.standard.ID(),
		Token: &types.TokenAccount{
			Mint:          solana.SolMint,
			Authority:     authority,
			Amount:        amount,
			IsNative:      true,
			NativeReserve: testReserve,
		},
	})
	return &addr
}

func (h *harness) lamports(addr solana.PublicKey) uint64 {
	h.t.Helper()
	got, err := h.st.Lamports(addr)
	require.NoError(h.t, err)
	return got
}

func (h *harness) balance(addr *solana.PublicKey) uint64 {
	h.t.Helper()
	acc, ok, err := h.st.Account(*addr)
	require.NoError(h.t, err)
	require.True(h.t, ok, "custody account %s missing", addr)
	require.NotNil(h.t, acc.Token)
	return acc.Token.Amount
}

func (h *harness) exists(addr solana.PublicKey) bool {
	h.t.Helper()
	_, ok, err := h.st.Account(addr)
	require.NoError(h.t, err)
	return ok
}

func (h *harness) swapIx(call Call, takerSigns bool) types.Instruction {
	h.t.Helper()
	ix, err := NewSwapInstruction(h.engine.ID(), call, takerSigns)
	require.NoError(h.t, err)
	return ix
}

func (h *harness) execute(signers []*crypto.PrivateKey, ixs ...types.Instruction) (*runtime.Receipt, error) {
	h.t.Helper()
	tx := &types.Transaction{Instructions: ixs}
	keys := make([]solana.PrivateKey, 0, len(signers))
	for _, key := range signers {
		keys = append(keys, key.PrivateKey)
	}
	require.NoError(h.t, tx.Sign(keys...))
	return h.exec.Execute(context.Background(), tx)
}

func (h *harness) settle(call Call) (*runtime.Receipt, error) {
	h.t.Helper()
	return h.execute([]*crypto.PrivateKey{h.taker, h.maker}, h.swapIx(call, true))
}

func (h *harness) baseCall(inputAmount, outputAmount uint64) Call {
	return Call{
		Taker:              h.taker.Address(),
		Maker:              h.maker.Address(),
		Receiver:           h.receiver.Address(),
		InputMint:          h.mintA,
		InputTokenProgram:  h.standard.ID(),
		OutputMint:         h.mintB,
		OutputTokenProgram: h.standard.ID(),
		Args: SwapArgs{
			InputAmount: inputAmount,
			Ladder:      Ladder{{Amount: outputAmount, Expiry: farFuture}},
			EventID:     42,
		},
	}
}

func (h *harness) settled() []SettlementRecord {
	out := make([]SettlementRecord, 0)
	for _, evt := range h.rec.OfType(TypeSettled) {
		out = append(out, evt.(SettlementRecord))
	}
	return out
}

func TestDirectTokenSwap(t *testing.T) {
	h := newHarness(t)
	takerA := h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 1_000_000_000)
	makerA := h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
	makerB := h.custody(h.standard, "maker-B", h.mintB, h.maker.Address(), makerInventory)
	receiverB := h.custody(h.standard, "receiver-B", h.mintB, h.receiver.Address(), 0)
	h.commit()

	call := h.baseCall(1_000_000_000, 2_000_000_000)
	call.TakerInputAccount = takerA
	call.MakerInputAccount = makerA
	call.MakerOutputAccount = makerB
	call.ReceiverOutputAccount = receiverB

	receipt, err := h.settle(call)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.Root)

	require.Equal(t, uint64(0), h.balance(takerA))
	require.Equal(t, uint64(1_000_000_000), h.balance(makerA))
	require.Equal(t, makerInventory-2_000_000_000, h.balance(makerB))
	require.Equal(t, uint64(2_000_000_000), h.balance(receiverB))
	for _, key := range []*crypto.PrivateKey{h.taker, h.maker, h.receiver} {
		require.Equal(t, startingSOL, h.lamports(key.Address()))
	}

	records := h.settled()
	require.Len(t, records, 1)
	require.Equal(t, SettlementRecord{
		EventID:           42,
		Maker:             h.maker.Address(),
		TakerMint:         h.mintA,
		MakerMint:         h.mintB,
		FilledTakerAmount: 1_000_000_000,
		FilledMakerAmount: 2_000_000_000,
	}, records[0])
}

func TestNativeToNativeSwap(t *testing.T) {
	h := newHarness(t)
	call := h.baseCall(1_000_000, 3_000_000)
	call.InputMint = solana.SolMint
	call.OutputMint = solana.SolMint

	_, err := h.settle(call)
	require.NoError(t, err)
	require.Equal(t, startingSOL-1_000_000, h.lamports(h.taker.Address()))
	require.Equal(t, startingSOL+1_000_000-3_000_000, h.lamports(h.maker.Address()))
	require.Equal(t, startingSOL+3_000_000, h.lamports(h.receiver.Address()))
}

func TestNativeInUnwrapOutWithDistinctReceiver(t *testing.T) {
	h := newHarness(t)
	makerWSOL := h.wrapped("maker", h.maker.Address(), makerInventory)
	bridge, err := h.engine.BridgeAddress(h.maker.Address())
	require.NoError(t, err)
	h.commit()

	const fill = 1_500_000_000
	call := h.baseCall(fill, fill)
	call.InputMint = solana.SolMint
	call.OutputMint = solana.SolMint
	call.MakerInputAccount = makerWSOL
	call.MakerOutputAccount = makerWSOL
	call.BridgeAccount = &bridge

	_, err = h.settle(call)
	require.NoError(t, err)

	require.Equal(t, startingSOL-fill, h.lamports(h.taker.Address()))
	require.Equal(t, startingSOL, h.lamports(h.maker.Address()))
	require.Equal(t, startingSOL+fill, h.lamports(h.receiver.Address()))
	require.Equal(t, makerInventory, h.balance(makerWSOL))
	require.Equal(t, testReserve+makerInventory, h.lamports(*makerWSOL))
	require.False(t, h.exists(bridge))
}

func TestTokenInUnwrapOut(t *testing.T) {
	h := newHarness(t)
	takerA := h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 1_000)
	makerA := h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
	makerWSOL := h.wrapped("maker", h.maker.Address(), makerInventory)
	bridge, err := h.engine.BridgeAddress(h.maker.Address())
	require.NoError(t, err)
	h.commit()

	call := h.baseCall(1_000, 700_000_000)
	call.TakerInputAccount = takerA
	call.MakerInputAccount = makerA
	call.OutputMint = solana.SolMint
	call.MakerOutputAccount = makerWSOL
	call.BridgeAccount = &bridge

	_, err = h.settle(call)
	require.NoError(t, err)

	require.Equal(t, uint64(1_000), h.balance(makerA))
	require.Equal(t, makerInventory-700_000_000, h.balance(makerWSOL))
	require.Equal(t, startingSOL, h.lamports(h.maker.Address()))
	require.Equal(t, startingSOL+700_000_000, h.lamports(h.receiver.Address()))
	require.False(t, h.exists(bridge))
}

func TestInputLegUnwrapCreditsMaker(t *testing.T) {
	h := newHarness(t)
	takerWSOL := h.wrapped("taker", h.taker.Address(), 900_000_000)
	makerB := h.custody(h.standard, "maker-B", h.mintB, h.maker.Address(), makerInventory)
	receiverB := h.custody(h.standard, "receiver-B", h.mintB, h.receiver.Address(), 0)
	bridge, err := h.engine.BridgeAddress(h.maker.Address())
	require.NoError(t, err)
	h.commit()

	call := h.baseCall(900_000_000, 50)
	call.InputMint = solana.SolMint
	call.TakerInputAccount = takerWSOL
	call.MakerOutputAccount = makerB
	call.ReceiverOutputAccount = receiverB
	call.BridgeAccount = &bridge

	_, err = h.settle(call)
	require.NoError(t, err)

	require.Equal(t, uint64(0), h.balance(takerWSOL))
	require.Equal(t, startingSOL+900_000_000, h.lamports(h.maker.Address()))
	require.Equal(t, uint64(50), h.balance(receiverB))
	require.False(t, h.exists(bridge))
}

func TestWrapIntoReceiverCustody(t *testing.T) {
	h := newHarness(t)
	takerA := h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 10)
	makerA := h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
	receiverWSOL := h.wrapped("receiver", h.receiver.Address(), 0)
	h.commit()

	call := h.baseCall(10, 123_456)
	call.TakerInputAccount = takerA
	call.MakerInputAccount = makerA
	call.OutputMint = solana.SolMint
	call.ReceiverOutputAccount = receiverWSOL

	_, err := h.settle(call)
	require.NoError(t, err)
	require.Equal(t, startingSOL-123_456, h.lamports(h.maker.Address()))
	require.Equal(t, uint64(123_456), h.balance(receiverWSOL))
	require.Equal(t, testReserve+123_456, h.lamports(*receiverWSOL))
}

func TestDelegatedIdentityUsesCurrentBalance(t *testing.T) {
	h := newHarness(t)
	pda := h.engine.DelegatedAddress()
	pdaA := h.custody(h.standard, "pda-A", h.mintA, pda, 777)
	makerA := h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
	makerB := h.custody(h.standard, "maker-B", h.mintB, h.maker.Address(), makerInventory)
	receiverB := h.custody(h.standard, "receiver-B", h.mintB, h.receiver.Address(), 0)
	h.commit()

	call := h.baseCall(1, 1_000)
	call.Taker = pda
	call.TakerInputAccount = pdaA
	call.MakerInputAccount = makerA
	call.MakerOutputAccount = makerB
	call.ReceiverOutputAccount = receiverB

	_, err := h.execute([]*crypto.PrivateKey{h.maker}, h.swapIx(call, false))
	require.NoError(t, err)

	records := h.settled()
	require.Len(t, records, 1)
	require.Equal(t, uint64(777), records[0].FilledTakerAmount)
	require.Equal(t, uint64(1_000), records[0].FilledMakerAmount)
	require.Equal(t, uint64(0), h.balance(pdaA))
	require.Equal(t, uint64(777), h.balance(makerA))
}

func TestDelegatedNativeBalance(t *testing.T) {
	h := newHarness(t)
	pda := h.engine.DelegatedAddress()
	h.fund(pda, 5_000)
	h.commit()

	call := h.baseCall(10_000, 20_000)
	call.Taker = pda
	call.InputMint = solana.SolMint
	call.OutputMint = solana.SolMint

	_, err := h.execute([]*crypto.PrivateKey{h.maker}, h.swapIx(call, false))
	require.NoError(t, err)

	records := h.settled()
	require.Len(t, records, 1)
	require.Equal(t, uint64(5_000), records[0].FilledTakerAmount)
	require.Equal(t, uint64(10_000), records[0].FilledMakerAmount)
	require.False(t, h.exists(pda))
	require.Equal(t, startingSOL+10_000, h.lamports(h.receiver.Address()))
}

func TestDelegatedUnwrapUsesCapability(t *testing.T) {
	h := newHarness(t)
	pda := h.engine.DelegatedAddress()
	pdaWSOL := h.wrapped("pda", pda, 300_000_000)
	makerB := h.custody(h.standard, "maker-B", h.mintB, h.maker.Address(), makerInventory)
	receiverB := h.custody(h.standard, "receiver-B", h.mintB, h.receiver.Address(), 0)
	bridge, err := h.engine.BridgeAddress(h.maker.Address())
	require.NoError(t, err)
	h.commit()

	call := h.baseCall(300_000_000, 9_000)
	call.Taker = pda
	call.InputMint = solana.SolMint
	call.TakerInputAccount = pdaWSOL
	call.MakerOutputAccount = makerB
	call.ReceiverOutputAccount = receiverB
	call.BridgeAccount = &bridge

	_, err = h.execute([]*crypto.PrivateKey{h.maker}, h.swapIx(call, false))
	require.NoError(t, err)
	require.Equal(t, uint64(0), h.balance(pdaWSOL))
	require.Equal(t, startingSOL+300_000_000, h.lamports(h.maker.Address()))
	require.Equal(t, uint64(9_000), h.balance(receiverB))
}

func TestTwoLegChainThroughDelegatedIdentity(t *testing.T) {
	h := newHarness(t)
	mintC := h.mint(h.standard, "C", 9, nil)
	pda := h.engine.DelegatedAddress()
	maker2 := crypto.DevKey("maker-2")
	h.fund(maker2.Address(), startingSOL)

	takerA := h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 1_000_000)
	makerA := h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
	makerC := h.custody(h.standard, "maker-C", mintC, h.maker.Address(), makerInventory)
	pdaC := h.custody(h.standard, "pda-C", mintC, pda, 0)
	maker2C := h.custody(h.standard, "maker2-C", mintC, maker2.Address(), 0)
	maker2B := h.custody(h.standard, "maker2-B", h.mintB, maker2.Address(), makerInventory)
	takerB := h.custody(h.standard, "taker-B", h.mintB, h.taker.Address(), 0)
	h.commit()

	first := Call{
		Taker:                 h.taker.Address(),
		Maker:                 h.maker.Address(),
		Receiver:              pda,
		TakerInputAccount:     takerA,
		MakerInputAccount:     makerA,
		MakerOutputAccount:    makerC,
		ReceiverOutputAccount: pdaC,
		InputMint:             h.mintA,
		InputTokenProgram:     h.standard.ID(),
		OutputMint:            mintC,
		OutputTokenProgram:    h.standard.ID(),
		Args: SwapArgs{
			InputAmount: 1_000_000,
			Ladder:      Ladder{{Amount: 2_500_000, Expiry: farFuture}},
			EventID:     1,
		},
	}
	second := Call{
		Taker:                 pda,
		Maker:                 maker2.Address(),
		Receiver:              h.taker.Address(),
		TakerInputAccount:     pdaC,
		MakerInputAccount:     maker2C,
		MakerOutputAccount:    maker2B,
		ReceiverOutputAccount: takerB,
		InputMint:             mintC,
		InputTokenProgram:     h.standard.ID(),
		OutputMint:            h.mintB,
		OutputTokenProgram:    h.standard.ID(),
		Args: SwapArgs{
			InputAmount: 5_000_000,
			Ladder:      Ladder{{Amount: 10_000_000, Expiry: farFuture}},
			EventID:     2,
		},
	}

	_, err := h.execute(
		[]*crypto.PrivateKey{h.taker, h.maker, maker2},
		h.swapIx(first, true),
		h.swapIx(second, false),
	)
	require.NoError(t, err)

	records := h.settled()
	require.Len(t, records, 2)
	require.Equal(t, records[0].FilledMakerAmount, records[1].FilledTakerAmount)
	require.Equal(t, uint64(2_500_000), records[1].FilledTakerAmount)
	require.Equal(t, uint64(5_000_000), records[1].FilledMakerAmount)

	require.Equal(t, uint64(0), h.balance(pdaC))
	require.Equal(t, uint64(2_500_000), h.balance(maker2C))
	require.Equal(t, uint64(5_000_000), h.balance(takerB))
}

func TestFeeBearingExtendedAssetRejectedBeforeMutation(t *testing.T) {
	h := newHarness(t)
	fee := &types.TransferFeeConfig{Newer: types.TransferFee{Epoch: 0, BasisPoints: 100, MaximumFee: 1_000_000}}
	mintX := h.mint(h.extended, "X", 6, fee)
	takerA := h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 1_000)
	makerA := h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
	makerX := h.custody(h.extended, "maker-X", mintX, h.maker.Address(), makerInventory)
	receiverX := h.custody(h.extended, "receiver-X", mintX, h.receiver.Address(), 0)
	h.commit()

	call := h.baseCall(1_000, 2_000)
	call.TakerInputAccount = takerA
	call.MakerInputAccount = makerA
	call.OutputMint = mintX
	call.OutputTokenProgram = h.extended.ID()
	call.MakerOutputAccount = makerX
	call.ReceiverOutputAccount = receiverX

	inv := runtime.NewInvocation(h.st, h.engine.ID(), []solana.PublicKey{h.taker.Address(), h.maker.Address()},
		runtime.Clock{UnixTimestamp: testNow}, nil)
	_, err := h.engine.Settle(inv, call)
	require.ErrorIs(t, err, ErrToken2022MintExtensionNotSupported)
	require.Equal(t, uint64(1_000), h.balance(takerA))
	require.Equal(t, uint64(0), h.balance(makerA))
	require.Empty(t, inv.Events())

	_, err = h.settle(call)
	require.ErrorIs(t, err, ErrToken2022MintExtensionNotSupported)
}

func TestExtendedAssetFeeDependsOnEpoch(t *testing.T) {
	h := newHarness(t)
	fee := &types.TransferFeeConfig{
		Older: types.TransferFee{Epoch: 0, BasisPoints: 25, MaximumFee: 1_000},
		Newer: types.TransferFee{Epoch: 5, BasisPoints: 0, MaximumFee: 0},
	}
	mintX := h.mint(h.extended, "X", 6, fee)
	takerX := h.custody(h.extended, "taker-X", mintX, h.taker.Address(), 4_000)
	makerX := h.custody(h.extended, "maker-X", mintX, h.maker.Address(), 0)
	makerB := h.custody(h.standard, "maker-B", h.mintB, h.maker.Address(), makerInventory)
	receiverB := h.custody(h.standard, "receiver-B", h.mintB, h.receiver.Address(), 0)
	h.commit()

	call := h.baseCall(4_000, 8_000)
	call.InputMint = mintX
	call.InputTokenProgram = h.extended.ID()
	call.TakerInputAccount = takerX
	call.MakerInputAccount = makerX
	call.MakerOutputAccount = makerB
	call.ReceiverOutputAccount = receiverB

	h.exec.SetEpochFunc(func(time.Time) uint64 { return 3 })
	_, err := h.settle(call)
	require.ErrorIs(t, err, ErrToken2022MintExtensionNotSupported)
	require.Equal(t, uint64(4_000), h.balance(takerX))

	h.exec.SetEpochFunc(func(time.Time) uint64 { return 7 })
	_, err = h.settle(call)
	require.NoError(t, err)
	require.Equal(t, uint64(4_000), h.balance(makerX))
	require.Equal(t, uint64(8_000), h.balance(receiverB))
}

func TestZeroMakerAmountRevertsInputLeg(t *testing.T) {
	h := newHarness(t)
	pda := h.engine.DelegatedAddress()
	pdaA := h.custody(h.standard, "pda-A", h.mintA, pda, 1)
	makerA := h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
	makerB := h.custody(h.standard, "maker-B", h.mintB, h.maker.Address(), makerInventory)
	receiverB := h.custody(h.standard, "receiver-B", h.mintB, h.receiver.Address(), 0)
	h.commit()
	rootBefore := h.st.Root()

	call := h.baseCall(3, 2)
	call.Taker = pda
	call.TakerInputAccount = pdaA
	call.MakerInputAccount = makerA
	call.MakerOutputAccount = makerB
	call.ReceiverOutputAccount = receiverB

	_, err := h.execute([]*crypto.PrivateKey{h.maker}, h.swapIx(call, false))
	require.ErrorIs(t, err, ErrZeroMakerAmount)
	require.Equal(t, uint64(1), h.balance(pdaA))
	require.Equal(t, uint64(0), h.balance(makerA))
	require.Equal(t, rootBefore, h.st.Root())
	require.Empty(t, h.rec.Events())
}

func TestSettlementErrors(t *testing.T) {
	type setup struct {
		h    *harness
		call Call
	}
	tokenSwap := func(t *testing.T) setup {
		h := newHarness(t)
		call := h.baseCall(100, 200)
		call.TakerInputAccount = h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 100)
		call.MakerInputAccount = h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
		call.MakerOutputAccount = h.custody(h.standard, "maker-B", h.mintB, h.maker.Address(), 1_000)
		call.ReceiverOutputAccount = h.custody(h.standard, "receiver-B", h.mintB, h.receiver.Address(), 0)
		h.commit()
		return setup{h: h, call: call}
	}
	unwrapOut := func(t *testing.T) setup {
		h := newHarness(t)
		call := h.baseCall(100, 200)
		call.TakerInputAccount = h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 100)
		call.MakerInputAccount = h.custody(h.standard, "maker-A", h.mintA, h.maker.Address(), 0)
		call.OutputMint = solana.SolMint
		call.MakerOutputAccount = h.wrapped("maker", h.maker.Address(), 1_000)
		h.commit()
		return setup{h: h, call: call}
	}

	cases := []struct {
		name   string
		build  func(t *testing.T) setup
		mutate func(s *setup)
		want   error
	}{
		{
			name:  "expired ladder",
			build: tokenSwap,
			mutate: func(s *setup) {
				s.call.Args.Ladder = Ladder{{Amount: 200, Expiry: uint64(testNow - 1)}}
			},
			want: ErrOrderExpired,
		},
		{
			name:  "non monotonic ladder",
			build: tokenSwap,
			mutate: func(s *setup) {
				s.call.Args.Ladder = Ladder{{Amount: 100, Expiry: farFuture}, {Amount: 200, Expiry: farFuture + 1}}
			},
			want: ErrInvalidOutputAmount,
		},
		{
			name:   "zero taker amount",
			build:  tokenSwap,
			mutate: func(s *setup) { s.call.Args.InputAmount = 0 },
			want:   ErrZeroTakerAmount,
		},
		{
			name:   "native path with non native mint",
			build:  tokenSwap,
			mutate: func(s *setup) { s.call.TakerInputAccount = nil; s.call.MakerInputAccount = nil },
			want:   ErrInvalidNativeTokenAddress,
		},
		{
			name:   "missing bridge account",
			build:  unwrapOut,
			mutate: func(s *setup) {},
			want:   ErrMissingTemporaryWrappedSolTokenAccount,
		},
		{
			name:  "wrong bridge account",
			build: unwrapOut,
			mutate: func(s *setup) {
				wrong := crypto.DevKey("not-a-bridge").Address()
				s.call.BridgeAccount = &wrong
			},
			want: ErrWrongBridgeAccountAddress,
		},
		{
			name:  "custody authority mismatch",
			build: tokenSwap,
			mutate: func(s *setup) {
				s.call.ReceiverOutputAccount = s.call.MakerOutputAccount
			},
			want: ErrInvalidAccount,
		},
		{
			name:  "custody mint mismatch",
			build: tokenSwap,
			mutate: func(s *setup) {
				s.call.MakerInputAccount = s.call.MakerOutputAccount
			},
			want: ErrInvalidAccount,
		},
		{
			name:   "unsupported token program",
			build:  tokenSwap,
			mutate: func(s *setup) { s.call.InputTokenProgram = system.ProgramID },
			want:   ErrUnsupportedTokenProgram,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.build(t)
			tc.mutate(&s)
			_, err := s.h.settle(s.call)
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, s.h.rec.Events())
		})
	}
}

func TestClockBeforeEpochEvaluatesAsZero(t *testing.T) {
	h := newHarness(t)
	call := h.baseCall(100, 200)
	call.InputMint = solana.SolMint
	call.OutputMint = solana.SolMint
	call.Args.Ladder = Ladder{{Amount: 200, Expiry: 10}}

	signers := []solana.PublicKey{h.taker.Address(), h.maker.Address()}
	inv := runtime.NewInvocation(h.st, h.engine.ID(), signers, runtime.Clock{UnixTimestamp: -5}, nil)
	record, err := h.engine.Settle(inv, call)
	require.NoError(t, err)
	require.Equal(t, uint64(200), record.FilledMakerAmount)
	require.Equal(t, startingSOL+200, h.lamports(h.receiver.Address()))
}

func TestWrongSharedAccountAddress(t *testing.T) {
	h := newHarness(t)
	call := h.baseCall(100, 200)
	call.InputMint = solana.SolMint
	call.OutputMint = solana.SolMint

	_, err := h.execute([]*crypto.PrivateKey{h.maker}, h.swapIx(call, false))
	require.ErrorIs(t, err, ErrWrongSharedAccountAddress)
	require.Equal(t, startingSOL, h.lamports(h.taker.Address()))
}

func TestTakerSignatureIsScopedToEachCall(t *testing.T) {
	h := newHarness(t)
	call := h.baseCall(100, 200)
	call.InputMint = solana.SolMint
	call.OutputMint = solana.SolMint

	deposit, err := system.NewTransferInstruction(h.taker.Address(), h.receiver.Address(), 1)
	require.NoError(t, err)
	_, err = h.execute([]*crypto.PrivateKey{h.taker, h.maker}, deposit, h.swapIx(call, false))
	require.ErrorIs(t, err, ErrWrongSharedAccountAddress)
	require.Equal(t, startingSOL, h.lamports(h.taker.Address()))
	require.Equal(t, startingSOL, h.lamports(h.receiver.Address()))
	require.Empty(t, h.settled())
}

func TestMakerMustSign(t *testing.T) {
	h := newHarness(t)
	call := h.baseCall(100, 200)
	call.InputMint = solana.SolMint
	call.OutputMint = solana.SolMint

	ix := h.swapIx(call, true)
	ix.Accounts[accMaker].IsSigner = false
	_, err := h.execute([]*crypto.PrivateKey{h.taker}, ix)
	require.ErrorIs(t, err, ErrMakerNotSigner)
}

func TestDecodeCallOptionalAccounts(t *testing.T) {
	h := newHarness(t)
	bridge, err := h.engine.BridgeAddress(h.maker.Address())
	require.NoError(t, err)
	call := h.baseCall(5, 6)
	call.TakerInputAccount = h.custody(h.standard, "taker-A", h.mintA, h.taker.Address(), 5)
	call.BridgeAccount = &bridge

	ix := h.swapIx(call, true)
	require.Equal(t, h.engine.ID(), ix.Accounts[accMakerInput].PublicKey)

	decoded, err := DecodeCall(h.engine.ID(), ix.Accounts, ix.Data)
	require.NoError(t, err)
	require.Equal(t, call, decoded)

	_, err = DecodeCall(h.engine.ID(), ix.Accounts[:accSystemProgram], ix.Data)
	require.ErrorIs(t, err, ErrInvalidInstruction)
}

func TestParamsValidate(t *testing.T) {
	params := DefaultParams(crypto.DevKey("rfq-program").Address())
	require.NoError(t, params.Validate())

	broken := params
	broken.BridgeSeed = ""
	require.Error(t, broken.Validate())

	broken = params
	broken.Token2022Program = broken.TokenProgram
	require.Error(t, broken.Validate())

	_, err := NewEngine(params,
		token.NewProgram(params.Token2022Program, true, params.NativeMint, 1),
		token.NewProgram(params.TokenProgram, false, params.NativeMint, 1))
	require.Error(t, err)
}
