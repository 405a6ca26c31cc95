package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// NativeMintName refers to the wrapped-native asset. It is always present.
	NativeMintName = "native"
	// NativeDecimals is the precision of the native balance.
	NativeDecimals uint8 = 9

	ProgramStandard = "token"
	ProgramExtended = "token-2022"
)

// GenesisSpec describes the initial ledger of a simulation: funded parties,
// assets and custody accounts. Amounts are decimal strings in whole units of
// the asset and are scaled by its decimals.
type GenesisSpec struct {
	GenesisTime string        `json:"genesisTime"`
	Parties     []PartySpec   `json:"parties"`
	Mints       []MintSpec    `json:"mints"`
	Custody     []CustodySpec `json:"custody"`

	genesisTimestamp time.Time
}

// PartySpec funds a wallet. Without an address the party gets the
// deterministic development key derived from its name, which lets scenarios
// sign on its behalf.
type PartySpec struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Balance string `json:"balance"`
}

// MintSpec issues an asset under one of the custody programs.
type MintSpec struct {
	Name          string           `json:"name"`
	Address       string           `json:"address,omitempty"`
	Program       string           `json:"program"`
	Decimals      uint8            `json:"decimals"`
	MintAuthority string           `json:"mintAuthority,omitempty"`
	TransferFee   *TransferFeeSpec `json:"transferFee,omitempty"`
}

// TransferFeeSpec schedules the fee of an extended asset.
type TransferFeeSpec struct {
	Older FeeSpec `json:"older"`
	Newer FeeSpec `json:"newer"`
}

// FeeSpec is one fee schedule entry. MaximumFee is in whole units.
type FeeSpec struct {
	Epoch       uint64 `json:"epoch"`
	BasisPoints uint16 `json:"basisPoints"`
	MaximumFee  string `json:"maximumFee"`
}

// CustodySpec creates a custody account of Mint held for Owner. Owner and
// Mint are names declared elsewhere in the spec, an alias supplied at build
// time, or base58 addresses.
type CustodySpec struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Amount  string `json:"amount"`
}

// LoadGenesisSpec reads and validates the JSON spec at path. Unknown fields
// are rejected.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON spec.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	names := map[string]struct{}{NativeMintName: {}}
	claim := func(kind string, i int, name string) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("%s[%d]: name must be provided", kind, i)
		}
		if _, exists := names[name]; exists {
			return fmt.Errorf("%s[%d]: duplicate name %q", kind, i, name)
		}
		names[name] = struct{}{}
		return nil
	}

	for i, p := range s.Parties {
		if err := claim("party", i, p.Name); err != nil {
			return err
		}
		if _, err := ParseAmount(p.Balance, NativeDecimals); err != nil {
			return fmt.Errorf("party[%d] balance: %w", i, err)
		}
	}

	decimals := map[string]uint8{NativeMintName: NativeDecimals}
	for i := range s.Mints {
		m := &s.Mints[i]
		if err := claim("mint", i, m.Name); err != nil {
			return err
		}
		switch m.Program {
		case ProgramStandard:
			if m.TransferFee != nil {
				return fmt.Errorf("mint[%d]: transfer fees require program %q", i, ProgramExtended)
			}
		case ProgramExtended:
		default:
			return fmt.Errorf("mint[%d]: unknown program %q", i, m.Program)
		}
		if m.TransferFee != nil {
			if err := m.TransferFee.validate(m.Decimals); err != nil {
				return fmt.Errorf("mint[%d] transferFee: %w", i, err)
			}
		}
		decimals[strings.TrimSpace(m.Name)] = m.Decimals
	}

	for i, c := range s.Custody {
		if err := claim("custody", i, c.Name); err != nil {
			return err
		}
		if strings.TrimSpace(c.Owner) == "" {
			return fmt.Errorf("custody[%d]: owner must be provided", i)
		}
		// Mints given by address are checked when the ledger is built.
		if d, ok := decimals[strings.TrimSpace(c.Mint)]; ok {
			if _, err := ParseAmount(c.Amount, d); err != nil {
				return fmt.Errorf("custody[%d] amount: %w", i, err)
			}
		} else if strings.TrimSpace(c.Mint) == "" {
			return fmt.Errorf("custody[%d]: mint must be provided", i)
		}
	}
	return nil
}

func (f *TransferFeeSpec) validate(decimals uint8) error {
	for _, entry := range []FeeSpec{f.Older, f.Newer} {
		if entry.BasisPoints > 10_000 {
			return fmt.Errorf("basisPoints %d exceeds 10000", entry.BasisPoints)
		}
		if _, err := ParseAmount(entry.MaximumFee, decimals); err != nil {
			return fmt.Errorf("maximumFee: %w", err)
		}
	}
	if f.Newer.Epoch < f.Older.Epoch {
		return fmt.Errorf("newer epoch %d precedes older epoch %d", f.Newer.Epoch, f.Older.Epoch)
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
