package crypto

import (
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// ErrDerivationMismatch is returned when an address does not match the
// derivation it claims to come from.
var ErrDerivationMismatch = errors.New("crypto: derived address mismatch")

// DerivedAddress is a keyless identity computed from seeds and the identity of
// the program that owns it. Holding one is the capability to act on behalf of
// the address: programs accept the seeds in place of a signature and verify
// them by recomputing the derivation.
type DerivedAddress struct {
	Address Address
	Program Address
	Seeds   [][]byte
	Bump    uint8
}

// Derive finds the canonical derived address for the seeds under program.
func Derive(program Address, seeds ...[]byte) (*DerivedAddress, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return nil, fmt.Errorf("derive address: %w", err)
	}
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	return &DerivedAddress{Address: addr, Program: program, Seeds: copied, Bump: bump}, nil
}

// SignerSeeds returns the seeds followed by the bump, the exact input that
// recreates the address through CreateProgramAddress.
func (d *DerivedAddress) SignerSeeds() [][]byte {
	if d == nil {
		return nil
	}
	out := make([][]byte, 0, len(d.Seeds)+1)
	for _, seed := range d.Seeds {
		out = append(out, append([]byte(nil), seed...))
	}
	return append(out, []byte{d.Bump})
}

// Matches reports whether addr equals the derived address.
func (d *DerivedAddress) Matches(addr Address) bool {
	return d != nil && d.Address.Equals(addr)
}

// Verify recomputes the derivation from the signer seeds and checks it still
// yields the recorded address.
func (d *DerivedAddress) Verify() error {
	if d == nil {
		return ErrDerivationMismatch
	}
	addr, err := solana.CreateProgramAddress(d.SignerSeeds(), d.Program)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDerivationMismatch, err)
	}
	if !addr.Equals(d.Address) {
		return ErrDerivationMismatch
	}
	return nil
}
