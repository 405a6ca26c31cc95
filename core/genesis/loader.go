package genesis

import (
	"fmt"
	"sort"
	"strings"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/core/state"
	"rfqsettle/core/types"
	"rfqsettle/crypto"
	"rfqsettle/native/system"
)

// Options names the programs the ledger is built for.
type Options struct {
	NativeMint        solana.PublicKey
	TokenProgram      solana.PublicKey
	Token2022Program  solana.PublicKey
	RentExemptReserve uint64
	// Aliases are extra names custody owners may refer to, such as the
	// delegated identity of the settlement program.
	Aliases map[string]solana.PublicKey
}

// MintInfo describes an asset known to a Directory.
type MintInfo struct {
	Name     string
	Address  solana.PublicKey
	Program  solana.PublicKey
	Decimals uint8
}

// Directory maps the names used by a genesis spec to ledger addresses.
type Directory struct {
	names map[string]solana.PublicKey
	mints map[solana.PublicKey]MintInfo
	keys  map[string]*crypto.PrivateKey
}

func newDirectory() *Directory {
	return &Directory{
		names: make(map[string]solana.PublicKey),
		mints: make(map[solana.PublicKey]MintInfo),
		keys:  make(map[string]*crypto.PrivateKey),
	}
}

// Resolve returns the address bound to name. Anything that is not a known
// name must be a base58 address.
func (d *Directory) Resolve(ref string) (solana.PublicKey, error) {
	ref = strings.TrimSpace(ref)
	if addr, ok := d.names[ref]; ok {
		return addr, nil
	}
	addr, err := crypto.ParseAddress(ref)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("unknown name or address %q", ref)
	}
	return addr, nil
}

// Signer returns the development key of a party declared without an explicit
// address.
func (d *Directory) Signer(name string) (*crypto.PrivateKey, bool) {
	key, ok := d.keys[strings.TrimSpace(name)]
	return key, ok
}

// Signers returns the development keys by party name.
func (d *Directory) Signers() map[string]*crypto.PrivateKey {
	out := make(map[string]*crypto.PrivateKey, len(d.keys))
	for name, key := range d.keys {
		out[name] = key
	}
	return out
}

// Mint returns the asset at addr.
func (d *Directory) Mint(addr solana.PublicKey) (MintInfo, bool) {
	info, ok := d.mints[addr]
	return info, ok
}

// Name returns the name bound to addr, or its base58 form.
func (d *Directory) Name(addr solana.PublicKey) string {
	best := ""
	for name, bound := range d.names {
		if bound.Equals(addr) && (best == "" || name < best) {
			best = name
		}
	}
	if best == "" {
		return addr.String()
	}
	return best
}

// Names returns every bound name in order.
func (d *Directory) Names() []string {
	out := make([]string, 0, len(d.names))
	for name := range d.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (d *Directory) bind(name string, addr solana.PublicKey) {
	d.names[strings.TrimSpace(name)] = addr
}

func addressOrDevKey(explicit, label string) (solana.PublicKey, *crypto.PrivateKey, error) {
	if strings.TrimSpace(explicit) != "" {
		addr, err := crypto.ParseAddress(explicit)
		return addr, nil, err
	}
	key := crypto.DevKey(label)
	return key.Address(), key, nil
}

// BuildGenesisFromSpec writes the ledger described by spec into st and
// commits it. It returns the name directory and the resulting state root.
func BuildGenesisFromSpec(spec *GenesisSpec, st *state.Manager, opts Options) (*Directory, []byte, error) {
	if st == nil {
		return nil, nil, fmt.Errorf("state must not be nil")
	}
	if len(st.Root()) != 0 {
		return nil, nil, fmt.Errorf("genesis: state already initialised")
	}
	return build(spec, st, opts)
}

// ResolveDirectory computes the names of spec without touching any state, for
// reopening a ledger built earlier from the same spec.
func ResolveDirectory(spec *GenesisSpec, opts Options) (*Directory, error) {
	dir, _, err := build(spec, nil, opts)
	return dir, err
}

func build(spec *GenesisSpec, st *state.Manager, opts Options) (*Directory, []byte, error) {
	if spec == nil {
		return nil, nil, fmt.Errorf("genesis spec must not be nil")
	}
	put := func(addr solana.PublicKey, acc *types.Account) error {
		if st == nil {
			return nil
		}
		return st.PutAccount(addr, acc)
	}
	if opts.NativeMint.IsZero() || opts.TokenProgram.IsZero() || opts.Token2022Program.IsZero() {
		return nil, nil, fmt.Errorf("genesis: program identities required")
	}

	dir := newDirectory()
	for name, addr := range opts.Aliases {
		dir.bind(name, addr)
	}
	programs := map[string]solana.PublicKey{
		ProgramStandard: opts.TokenProgram,
		ProgramExtended: opts.Token2022Program,
	}

	// 1) Parties
	for i, p := range spec.Parties {
		addr, key, err := addressOrDevKey(p.Address, p.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("party %q: %w", p.Name, err)
		}
		lamports, err := ParseAmount(p.Balance, NativeDecimals)
		if err != nil {
			return nil, nil, fmt.Errorf("party %q balance: %w", p.Name, err)
		}
		if err := put(addr, &types.Account{Lamports: lamports, Owner: system.ProgramID}); err != nil {
			return nil, nil, fmt.Errorf("party[%d]: %w", i, err)
		}
		dir.bind(p.Name, addr)
		if key != nil {
			dir.keys[strings.TrimSpace(p.Name)] = key
		}
	}

	// 2) Mints, starting with the native asset
	mints := make(map[solana.PublicKey]*types.Account)
	native := &types.Account{
		Lamports: opts.RentExemptReserve,
		Owner:    opts.TokenProgram,
		Mint:     &types.Mint{Decimals: NativeDecimals},
	}
	mints[opts.NativeMint] = native
	dir.bind(NativeMintName, opts.NativeMint)
	dir.mints[opts.NativeMint] = MintInfo{Name: NativeMintName, Address: opts.NativeMint, Program: opts.TokenProgram, Decimals: NativeDecimals}
	mintOrder := []solana.PublicKey{opts.NativeMint}

	for _, m := range spec.Mints {
		addr, _, err := addressOrDevKey(m.Address, "mint/"+m.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("mint %q: %w", m.Name, err)
		}
		if dir.bound(addr) {
			return nil, nil, fmt.Errorf("mint %q: address %s already used", m.Name, addr)
		}
		mint := &types.Mint{Decimals: m.Decimals}
		if strings.TrimSpace(m.MintAuthority) != "" {
			authority, err := dir.Resolve(m.MintAuthority)
			if err != nil {
				return nil, nil, fmt.Errorf("mint %q authority: %w", m.Name, err)
			}
			mint.MintAuthority = authority
		}
		if m.TransferFee != nil {
			fee, err := m.TransferFee.config(m.Decimals)
			if err != nil {
				return nil, nil, fmt.Errorf("mint %q: %w", m.Name, err)
			}
			mint.TransferFee = fee
		}
		program := programs[m.Program]
		mints[addr] = &types.Account{Lamports: opts.RentExemptReserve, Owner: program, Mint: mint}
		mintOrder = append(mintOrder, addr)
		dir.bind(m.Name, addr)
		dir.mints[addr] = MintInfo{Name: m.Name, Address: addr, Program: program, Decimals: m.Decimals}
	}

	// 3) Custody accounts; supplies accumulate on the mints
	for _, c := range spec.Custody {
		addr, _, err := addressOrDevKey(c.Address, "custody/"+c.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("custody %q: %w", c.Name, err)
		}
		owner, err := dir.Resolve(c.Owner)
		if err != nil {
			return nil, nil, fmt.Errorf("custody %q owner: %w", c.Name, err)
		}
		mintAddr, err := dir.Resolve(c.Mint)
		if err != nil {
			return nil, nil, fmt.Errorf("custody %q mint: %w", c.Name, err)
		}
		info, ok := dir.mints[mintAddr]
		if !ok {
			return nil, nil, fmt.Errorf("custody %q: %s is not a mint", c.Name, c.Mint)
		}
		amount, err := ParseAmount(c.Amount, info.Decimals)
		if err != nil {
			return nil, nil, fmt.Errorf("custody %q amount: %w", c.Name, err)
		}
		if _, used := dir.mints[addr]; used || dir.bound(addr) {
			return nil, nil, fmt.Errorf("custody %q: address %s already used", c.Name, addr)
		}
		acc := &types.Account{
			Lamports: opts.RentExemptReserve,
			Owner:    info.Program,
			Token:    &types.TokenAccount{Mint: mintAddr, Authority: owner, Amount: amount},
		}
		if mintAddr.Equals(opts.NativeMint) {
			acc.Lamports += amount
			acc.Token.IsNative = true
			acc.Token.NativeReserve = opts.RentExemptReserve
		} else {
			supply := mints[mintAddr].Mint.Supply
			if supply+amount < supply {
				return nil, nil, fmt.Errorf("custody %q: supply of %s overflows", c.Name, info.Name)
			}
			mints[mintAddr].Mint.Supply = supply + amount
		}
		if err := put(addr, acc); err != nil {
			return nil, nil, fmt.Errorf("custody %q: %w", c.Name, err)
		}
		dir.bind(c.Name, addr)
	}

	for _, addr := range mintOrder {
		if err := put(addr, mints[addr]); err != nil {
			return nil, nil, fmt.Errorf("mint %s: %w", dir.Name(addr), err)
		}
	}

	if st == nil {
		return dir, nil, nil
	}
	root, err := st.Commit()
	if err != nil {
		return nil, nil, fmt.Errorf("commit genesis: %w", err)
	}
	return dir, root, nil
}

func (d *Directory) bound(addr solana.PublicKey) bool {
	for _, existing := range d.names {
		if existing.Equals(addr) {
			return true
		}
	}
	return false
}

func (f *TransferFeeSpec) config(decimals uint8) (*types.TransferFeeConfig, error) {
	older, err := f.Older.fee(decimals)
	if err != nil {
		return nil, err
	}
	newer, err := f.Newer.fee(decimals)
	if err != nil {
		return nil, err
	}
	return &types.TransferFeeConfig{Older: older, Newer: newer}, nil
}

func (f FeeSpec) fee(decimals uint8) (types.TransferFee, error) {
	maximum, err := ParseAmount(f.MaximumFee, decimals)
	if err != nil {
		return types.TransferFee{}, fmt.Errorf("maximumFee: %w", err)
	}
	return types.TransferFee{Epoch: f.Epoch, BasisPoints: f.BasisPoints, MaximumFee: maximum}, nil
}
