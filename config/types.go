package config

import (
	"fmt"
	"strings"

	solana "github.com/gagliardetto/solana-go"

	"rfqsettle/crypto"
	"rfqsettle/native/rfq"
)

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level       string `toml:"Level"`
	Environment string `toml:"Environment"`
	// File enables rotated file output in addition to stdout.
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Traces   bool              `toml:"Traces"`
	Metrics  bool              `toml:"Metrics"`
	Headers  map[string]string `toml:"Headers,omitempty"`
}

// RFQConfig holds the settlement program identities and seeds. Empty fields
// fall back to the canonical values.
type RFQConfig struct {
	ProgramID         string `toml:"ProgramID"`
	DelegatedSeed     string `toml:"DelegatedSeed"`
	BridgeSeed        string `toml:"BridgeSeed"`
	NativeMint        string `toml:"NativeMint"`
	TokenProgram      string `toml:"TokenProgram"`
	Token2022Program  string `toml:"Token2022Program"`
	RentExemptReserve uint64 `toml:"RentExemptReserve"`
}

func (c *RFQConfig) applyDefaults() {
	if strings.TrimSpace(c.DelegatedSeed) == "" {
		c.DelegatedSeed = rfq.DefaultDelegatedSeed
	}
	if strings.TrimSpace(c.BridgeSeed) == "" {
		c.BridgeSeed = rfq.DefaultBridgeSeed
	}
	if strings.TrimSpace(c.NativeMint) == "" {
		c.NativeMint = solana.SolMint.String()
	}
	if strings.TrimSpace(c.TokenProgram) == "" {
		c.TokenProgram = solana.TokenProgramID.String()
	}
	if strings.TrimSpace(c.Token2022Program) == "" {
		c.Token2022Program = solana.Token2022ProgramID.String()
	}
	if c.RentExemptReserve == 0 {
		c.RentExemptReserve = rfq.DefaultRentExemptReserve
	}
}

// Params converts the section into engine parameters.
func (c RFQConfig) Params() (rfq.Params, error) {
	var (
		params rfq.Params
		err    error
	)
	parse := func(name, value string, dst *solana.PublicKey) {
		if err != nil {
			return
		}
		var addr solana.PublicKey
		if addr, err = crypto.ParseAddress(value); err != nil {
			err = fmt.Errorf("rfq.%s: %w", name, err)
			return
		}
		*dst = addr
	}
	parse("ProgramID", c.ProgramID, &params.ProgramID)
	parse("NativeMint", c.NativeMint, &params.NativeMint)
	parse("TokenProgram", c.TokenProgram, &params.TokenProgram)
	parse("Token2022Program", c.Token2022Program, &params.Token2022Program)
	if err != nil {
		return rfq.Params{}, err
	}
	params.DelegatedSeed = c.DelegatedSeed
	params.BridgeSeed = c.BridgeSeed
	params.RentExemptReserve = c.RentExemptReserve
	if err := params.Validate(); err != nil {
		return rfq.Params{}, err
	}
	return params, nil
}
