package rfq

import (
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"
)

const (
	// DefaultDelegatedSeed derives the delegated identity.
	DefaultDelegatedSeed = "shared-account"
	// DefaultBridgeSeed prefixes the derivation of bridging accounts. The
	// destination party's address is the second seed.
	DefaultBridgeSeed = "temporary-wsol-token-account"
	// DefaultRentExemptReserve is the lamport reserve of a custody record.
	DefaultRentExemptReserve uint64 = 2_039_280
)

// Params carries every identity and seed the engine depends on.
type Params struct {
	ProgramID         solana.PublicKey
	DelegatedSeed     string
	BridgeSeed        string
	NativeMint        solana.PublicKey
	TokenProgram      solana.PublicKey
	Token2022Program  solana.PublicKey
	RentExemptReserve uint64
}

// DefaultParams returns the canonical parameters for an engine deployed at
// programID.
func DefaultParams(programID solana.PublicKey) Params {
	return Params{
		ProgramID:         programID,
		DelegatedSeed:     DefaultDelegatedSeed,
		BridgeSeed:        DefaultBridgeSeed,
		NativeMint:        solana.SolMint,
		TokenProgram:      solana.TokenProgramID,
		Token2022Program:  solana.Token2022ProgramID,
		RentExemptReserve: DefaultRentExemptReserve,
	}
}

// Validate ensures the parameters are usable.
func (p Params) Validate() error {
	if p.ProgramID.IsZero() {
		return fmt.Errorf("rfq: program id required")
	}
	if strings.TrimSpace(p.DelegatedSeed) == "" {
		return fmt.Errorf("rfq: delegated seed required")
	}
	if strings.TrimSpace(p.BridgeSeed) == "" {
		return fmt.Errorf("rfq: bridge seed required")
	}
	if len(p.DelegatedSeed) > solana.MaxSeedLength || len(p.BridgeSeed) > solana.MaxSeedLength {
		return fmt.Errorf("rfq: seeds must not exceed %d bytes", solana.MaxSeedLength)
	}
	if p.NativeMint.IsZero() {
		return fmt.Errorf("rfq: native mint required")
	}
	if p.TokenProgram.IsZero() || p.Token2022Program.IsZero() {
		return fmt.Errorf("rfq: token programs required")
	}
	if p.TokenProgram.Equals(p.Token2022Program) {
		return fmt.Errorf("rfq: token programs must differ")
	}
	if p.RentExemptReserve == 0 {
		return fmt.Errorf("rfq: rent exempt reserve must be positive")
	}
	return nil
}
