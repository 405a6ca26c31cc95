package types

import (
	solana "github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Account is the ledger record stored for every address. Native balance is
// held in Lamports; program owned data lives in exactly one of the optional
// sections. An account without data sections is a plain native wallet owned
// by the system program.
type Account struct {
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Token    *TokenAccount    `json:"token,omitempty" rlp:"nil"`
	Mint     *Mint            `json:"mint,omitempty" rlp:"nil"`
}

// TokenAccount is a custody record holding a balance of one asset on behalf of
// an authority.
type TokenAccount struct {
	Mint      solana.PublicKey `json:"mint"`
	Authority solana.PublicKey `json:"authority"`
	Amount    uint64           `json:"amount"`
	// IsNative marks custody records of the wrapped-native asset. Their amount
	// mirrors the account lamports above NativeReserve.
	IsNative      bool   `json:"isNative"`
	NativeReserve uint64 `json:"nativeReserve"`
	// Withheld accumulates transfer fees collected by the extended program.
	Withheld uint64 `json:"withheld"`
}

// Mint describes an asset. TransferFee is only meaningful for assets issued
// by the extended custody program.
type Mint struct {
	Decimals      uint8              `json:"decimals"`
	Supply        uint64             `json:"supply"`
	MintAuthority solana.PublicKey   `json:"mintAuthority"`
	TransferFee   *TransferFeeConfig `json:"transferFee,omitempty" rlp:"nil"`
}

// TransferFee is a proportional fee schedule entry that becomes active at
// Epoch.
type TransferFee struct {
	Epoch       uint64 `json:"epoch"`
	MaximumFee  uint64 `json:"maximumFee"`
	BasisPoints uint16 `json:"basisPoints"`
}

// TransferFeeConfig keeps the previous and the upcoming fee so a change can
// be scheduled for a future epoch.
type TransferFeeConfig struct {
	Older TransferFee `json:"older"`
	Newer TransferFee `json:"newer"`
}

// EpochFee returns the fee in force during epoch.
func (c *TransferFeeConfig) EpochFee(epoch uint64) TransferFee {
	if c == nil {
		return TransferFee{}
	}
	if epoch >= c.Newer.Epoch {
		return c.Newer
	}
	return c.Older
}

// Calculate returns the fee withheld from a transfer of amount, rounded up and
// capped at MaximumFee.
func (f TransferFee) Calculate(amount uint64) uint64 {
	if f.BasisPoints == 0 || amount == 0 {
		return 0
	}
	num := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(f.BasisPoints)))
	num.AddUint64(num, 9_999)
	fee := num.Div(num, uint256.NewInt(10_000)).Uint64()
	if fee > f.MaximumFee {
		return f.MaximumFee
	}
	return fee
}

// Clone returns a deep copy so callers can mutate the copy freely.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Token != nil {
		token := *a.Token
		clone.Token = &token
	}
	if a.Mint != nil {
		mint := *a.Mint
		if a.Mint.TransferFee != nil {
			fee := *a.Mint.TransferFee
			mint.TransferFee = &fee
		}
		clone.Mint = &mint
	}
	return &clone
}

// IsEmpty reports whether the account carries neither balance nor data and can
// be dropped from state.
func (a *Account) IsEmpty() bool {
	return a == nil || (a.Lamports == 0 && a.Token == nil && a.Mint == nil)
}
