package epoch

import (
	"fmt"
	"time"
)

// Config describes how the clock sysvar derives epochs from wall time.
type Config struct {
	// Genesis is the start of epoch zero.
	Genesis time.Time
	// Length is the duration of a single epoch. The value must be positive.
	Length time.Duration
}

// DefaultLength matches a two-day epoch.
const DefaultLength = 432_000 * time.Second

// DefaultConfig returns a configuration starting at genesis.
func DefaultConfig(genesis time.Time) Config {
	return Config{Genesis: genesis, Length: DefaultLength}
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	if c.Length <= 0 {
		return fmt.Errorf("epoch length must be greater than zero")
	}
	if c.Length%time.Second != 0 {
		return fmt.Errorf("epoch length must be a whole number of seconds")
	}
	return nil
}

// At returns the epoch in force at t. Times before genesis fall in epoch zero.
func (c Config) At(t time.Time) uint64 {
	if c.Length <= 0 || !t.After(c.Genesis) {
		return 0
	}
	return uint64(t.Sub(c.Genesis) / c.Length)
}

// Start returns the first instant of epoch n.
func (c Config) Start(n uint64) time.Time {
	return c.Genesis.Add(time.Duration(n) * c.Length)
}
