package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"rfqsettle/core/genesis"
	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/rfq"
	"rfqsettle/native/system"
	"rfqsettle/native/token"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Scenario is an ordered list of transactions replayed against the ledger.
type Scenario struct {
	Name         string   `yaml:"name"`
	Start        string   `yaml:"start"`
	Transactions []TxSpec `yaml:"transactions"`

	start time.Time
}

// TxSpec is one transaction. Its instructions run in the order transfers,
// token transfers, mints, swaps. Advance moves the clock before it runs.
type TxSpec struct {
	Name           string              `yaml:"name"`
	Advance        Duration            `yaml:"advance"`
	Signers        []string            `yaml:"signers"`
	ExpectError    string              `yaml:"expect_error"`
	Transfers      []TransferSpec      `yaml:"transfers"`
	TokenTransfers []TokenTransferSpec `yaml:"token_transfers"`
	MintTo         []MintToSpec        `yaml:"mint_to"`
	Swaps          []SwapSpec          `yaml:"swaps"`
}

// TransferSpec moves native balance between wallets.
type TransferSpec struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

// TokenTransferSpec moves an asset between custody accounts.
type TokenTransferSpec struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Authority string `yaml:"authority"`
	Mint      string `yaml:"mint"`
	Amount    string `yaml:"amount"`
}

// MintToSpec issues new units of an asset into a custody account.
type MintToSpec struct {
	Mint      string `yaml:"mint"`
	To        string `yaml:"to"`
	Authority string `yaml:"authority"`
	Amount    string `yaml:"amount"`
}

// SwapSpec is one settlement call. Custody fields name custody accounts and
// are left empty when the party settles in native balance.
type SwapSpec struct {
	Taker          string     `yaml:"taker"`
	Maker          string     `yaml:"maker"`
	Receiver       string     `yaml:"receiver"`
	TakerInput     string     `yaml:"taker_input"`
	MakerInput     string     `yaml:"maker_input"`
	ReceiverOutput string     `yaml:"receiver_output"`
	MakerOutput    string     `yaml:"maker_output"`
	InputMint      string     `yaml:"input_mint"`
	OutputMint     string     `yaml:"output_mint"`
	InputAmount    string     `yaml:"input_amount"`
	EventID        uint64     `yaml:"event_id"`
	Bridge         bool       `yaml:"bridge"`
	Ladder         []RungSpec `yaml:"ladder"`
}

// RungSpec is a ladder entry whose expiry is relative to the transaction
// clock. Negative offsets describe rungs already expired.
type RungSpec struct {
	Amount    string   `yaml:"amount"`
	ExpiresIn Duration `yaml:"expires_in"`
}

// LoadScenario reads and validates the YAML scenario at path.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %q: %w", path, err)
	}
	scenario, err := ParseScenario(raw)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", path, err)
	}
	return scenario, nil
}

// ParseScenario decodes a YAML scenario. Unknown keys are rejected.
func ParseScenario(raw []byte) (*Scenario, error) {
	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if strings.TrimSpace(scenario.Start) != "" {
		start, err := time.Parse(time.RFC3339, scenario.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid start %q: %w", scenario.Start, err)
		}
		scenario.start = start
	}
	if len(scenario.Transactions) == 0 {
		return nil, fmt.Errorf("scenario has no transactions")
	}
	for i, tx := range scenario.Transactions {
		if len(tx.Transfers)+len(tx.TokenTransfers)+len(tx.MintTo)+len(tx.Swaps) == 0 {
			return nil, fmt.Errorf("transaction[%d] %q has no instructions", i, tx.Name)
		}
		if tx.Advance.Duration < 0 {
			return nil, fmt.Errorf("transaction[%d] %q: advance must not be negative", i, tx.Name)
		}
	}
	return &scenario, nil
}

// builder turns scenario entries into signed transactions.
type builder struct {
	dir      *genesis.Directory
	engine   *rfq.Engine
	programs map[solana.PublicKey]*token.Program
}

func (b *builder) build(spec TxSpec, now time.Time) (*types.Transaction, error) {
	signers := make(map[solana.PublicKey]*crypto.PrivateKey, len(spec.Signers))
	for _, name := range spec.Signers {
		key, ok := b.dir.Signer(name)
		if !ok {
			return nil, fmt.Errorf("no signing key for %q", name)
		}
		signers[key.Address()] = key
	}

	tx := &types.Transaction{}
	for i, t := range spec.Transfers {
		ix, err := b.transfer(t)
		if err != nil {
			return nil, fmt.Errorf("transfer[%d]: %w", i, err)
		}
		tx.Instructions = append(tx.Instructions, ix)
	}
	for i, t := range spec.TokenTransfers {
		ix, err := b.tokenTransfer(t)
		if err != nil {
			return nil, fmt.Errorf("token transfer[%d]: %w", i, err)
		}
		tx.Instructions = append(tx.Instructions, ix)
	}
	for i, m := range spec.MintTo {
		ix, err := b.mintTo(m)
		if err != nil {
			return nil, fmt.Errorf("mint to[%d]: %w", i, err)
		}
		tx.Instructions = append(tx.Instructions, ix)
	}
	for i, s := range spec.Swaps {
		ix, err := b.swap(s, now, signers)
		if err != nil {
			return nil, fmt.Errorf("swap[%d]: %w", i, err)
		}
		tx.Instructions = append(tx.Instructions, ix)
	}

	keys := make([]solana.PrivateKey, 0, len(signers))
	for _, key := range signers {
		keys = append(keys, key.PrivateKey)
	}
	if err := tx.Sign(keys...); err != nil {
		return nil, err
	}
	return tx, nil
}

func (b *builder) transfer(t TransferSpec) (types.Instruction, error) {
	from, err := b.dir.Resolve(t.From)
	if err != nil {
		return types.Instruction{}, err
	}
	to, err := b.dir.Resolve(t.To)
	if err != nil {
		return types.Instruction{}, err
	}
	lamports, err := genesis.ParseAmount(t.Amount, genesis.NativeDecimals)
	if err != nil {
		return types.Instruction{}, err
	}
	return system.NewTransferInstruction(from, to, lamports)
}

func (b *builder) tokenTransfer(t TokenTransferSpec) (types.Instruction, error) {
	mint, program, err := b.mint(t.Mint)
	if err != nil {
		return types.Instruction{}, err
	}
	from, err := b.dir.Resolve(t.From)
	if err != nil {
		return types.Instruction{}, err
	}
	to, err := b.dir.Resolve(t.To)
	if err != nil {
		return types.Instruction{}, err
	}
	authority, err := b.dir.Resolve(t.Authority)
	if err != nil {
		return types.Instruction{}, err
	}
	amount, err := genesis.ParseAmount(t.Amount, mint.Decimals)
	if err != nil {
		return types.Instruction{}, err
	}
	return program.NewTransferCheckedInstruction(from, mint.Address, to, authority, amount, mint.Decimals), nil
}

func (b *builder) mintTo(m MintToSpec) (types.Instruction, error) {
	mint, program, err := b.mint(m.Mint)
	if err != nil {
		return types.Instruction{}, err
	}
	to, err := b.dir.Resolve(m.To)
	if err != nil {
		return types.Instruction{}, err
	}
	authority, err := b.dir.Resolve(m.Authority)
	if err != nil {
		return types.Instruction{}, err
	}
	amount, err := genesis.ParseAmount(m.Amount, mint.Decimals)
	if err != nil {
		return types.Instruction{}, err
	}
	return program.NewMintToInstruction(mint.Address, to, authority, amount), nil
}

func (b *builder) swap(s SwapSpec, now time.Time, signers map[solana.PublicKey]*crypto.PrivateKey) (types.Instruction, error) {
	inputMint, _, err := b.mint(s.InputMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("input mint: %w", err)
	}
	outputMint, _, err := b.mint(s.OutputMint)
	if err != nil {
		return types.Instruction{}, fmt.Errorf("output mint: %w", err)
	}

	call := rfq.Call{
		InputMint:          inputMint.Address,
		InputTokenProgram:  inputMint.Program,
		OutputMint:         outputMint.Address,
		OutputTokenProgram: outputMint.Program,
		Args:               rfq.SwapArgs{EventID: s.EventID},
	}
	if call.Taker, err = b.dir.Resolve(s.Taker); err != nil {
		return types.Instruction{}, fmt.Errorf("taker: %w", err)
	}
	if call.Maker, err = b.dir.Resolve(s.Maker); err != nil {
		return types.Instruction{}, fmt.Errorf("maker: %w", err)
	}
	call.Receiver = call.Taker
	if strings.TrimSpace(s.Receiver) != "" {
		if call.Receiver, err = b.dir.Resolve(s.Receiver); err != nil {
			return types.Instruction{}, fmt.Errorf("receiver: %w", err)
		}
	}
	optional := []struct {
		name string
		ref  string
		dst  **solana.PublicKey
	}{
		{"taker_input", s.TakerInput, &call.TakerInputAccount},
		{"maker_input", s.MakerInput, &call.MakerInputAccount},
		{"receiver_output", s.ReceiverOutput, &call.ReceiverOutputAccount},
		{"maker_output", s.MakerOutput, &call.MakerOutputAccount},
	}
	for _, o := range optional {
		if strings.TrimSpace(o.ref) == "" {
			continue
		}
		addr, err := b.dir.Resolve(o.ref)
		if err != nil {
			return types.Instruction{}, fmt.Errorf("%s: %w", o.name, err)
		}
		*o.dst = &addr
	}
	if s.Bridge {
		bridge, err := b.engine.BridgeAddress(call.Maker)
		if err != nil {
			return types.Instruction{}, err
		}
		call.BridgeAccount = &bridge
	}

	if call.Args.InputAmount, err = genesis.ParseAmount(s.InputAmount, inputMint.Decimals); err != nil {
		return types.Instruction{}, fmt.Errorf("input_amount: %w", err)
	}
	for i, rung := range s.Ladder {
		amount, err := genesis.ParseAmount(rung.Amount, outputMint.Decimals)
		if err != nil {
			return types.Instruction{}, fmt.Errorf("ladder[%d]: %w", i, err)
		}
		call.Args.Ladder = append(call.Args.Ladder, rfq.AmountWithExpiry{
			Amount: amount,
			Expiry: expiryAt(now, rung.ExpiresIn.Duration),
		})
	}

	_, takerSigns := signers[call.Taker]
	return rfq.NewSwapInstruction(b.engine.ID(), call, takerSigns)
}

func (b *builder) mint(ref string) (genesis.MintInfo, *token.Program, error) {
	addr, err := b.dir.Resolve(ref)
	if err != nil {
		return genesis.MintInfo{}, nil, err
	}
	info, ok := b.dir.Mint(addr)
	if !ok {
		return genesis.MintInfo{}, nil, fmt.Errorf("%q is not a known mint", ref)
	}
	program, ok := b.programs[info.Program]
	if !ok {
		return genesis.MintInfo{}, nil, fmt.Errorf("mint %q: no program %s", ref, info.Program)
	}
	return info, program, nil
}

func expiryAt(now time.Time, offset time.Duration) uint64 {
	at := now.Add(offset).Unix()
	if at < 0 {
		return 0
	}
	return uint64(at)
}
