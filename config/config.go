package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"rfqsettle/crypto"
)

// Config is the simulator configuration stored as TOML.
type Config struct {
	DataDir      string `toml:"DataDir"`
	GenesisFile  string `toml:"GenesisFile"`
	IndexerPath  string `toml:"IndexerPath"`
	IndexerURL   string `toml:"IndexerURL"`
	NetworkName  string `toml:"NetworkName"`
	EpochSeconds uint64 `toml:"EpochSeconds"`

	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	RFQ       RFQConfig       `toml:"rfq"`
}

const (
	defaultNetworkName  = "rfq-local"
	defaultEpochSeconds = uint64(432_000)
)

// Load reads the configuration at path. A missing file is replaced by a
// default configuration, which is written back to disk. The program identity
// is generated on first use and persisted.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	applyDefaults(cfg)
	if strings.TrimSpace(cfg.RFQ.ProgramID) == "" {
		if err := ensureProgramID(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = defaultNetworkName
	}
	if cfg.EpochSeconds == 0 {
		cfg.EpochSeconds = defaultEpochSeconds
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	cfg.RFQ.applyDefaults()
}

func ensureProgramID(path string, cfg *Config) error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	cfg.RFQ.ProgramID = key.Address().String()
	return persist(path, cfg)
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:      "./rfq-data",
		GenesisFile:  "",
		IndexerPath:  "",
		IndexerURL:   "",
		NetworkName:  defaultNetworkName,
		EpochSeconds: defaultEpochSeconds,
		Logging:      LoggingConfig{Level: "info"},
		Telemetry:    TelemetryConfig{Endpoint: "localhost:4318", Insecure: true},
	}
	cfg.RFQ.ProgramID = key.Address().String()
	cfg.RFQ.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// IndexerFile returns the sqlite path of the settlement indexer, defaulting to
// a file inside the data directory.
func (c *Config) IndexerFile() string {
	if strings.TrimSpace(c.IndexerPath) != "" {
		return c.IndexerPath
	}
	return filepath.Join(c.DataDir, "settlements.db")
}

// IndexerDSN returns the database the settlement indexer writes to. A
// configured IndexerURL wins over the sqlite file.
func (c *Config) IndexerDSN() string {
	if url := strings.TrimSpace(c.IndexerURL); url != "" {
		return url
	}
	return c.IndexerFile()
}

// StateDir returns the LevelDB directory of the account state.
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, "state")
}
