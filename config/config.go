package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"refvault/native/vault"
)

// Config is the on-disk vault configuration. Amounts are decimal strings in
// reference-currency units with up to six fractional digits.
type Config struct {
	Service           string `toml:"Service"`
	Env               string `toml:"Env"`
	DataDir           string `toml:"DataDir"`
	Admin             string `toml:"Admin"`
	VaultAddress      string `toml:"VaultAddress"`
	ReferenceAsset    string `toml:"ReferenceAsset"`
	WrappedNative     string `toml:"WrappedNative"`
	OracleID          string `toml:"OracleID"`
	RouterID          string `toml:"RouterID"`
	InitialCapacity   string `toml:"InitialCapacity"`
	WithdrawalCeiling string `toml:"WithdrawalCeiling"`
	SlippageBps       uint64 `toml:"SlippageBps"`
}

// Load reads the configuration from the given path and applies defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Service) == "" {
		c.Service = "refvault"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "local"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./vault-data"
	}
	if strings.TrimSpace(c.ReferenceAsset) == "" {
		c.ReferenceAsset = "USD6"
	}
	if strings.TrimSpace(c.WrappedNative) == "" {
		c.WrappedNative = "WNATIVE"
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 100
	}
}

// EngineParams converts the textual configuration into validated engine
// initialization parameters.
func (c *Config) EngineParams() (vault.InitParams, error) {
	params := vault.InitParams{
		ReferenceAsset: c.ReferenceAsset,
		WrappedNative:  c.WrappedNative,
		OracleID:       c.OracleID,
		RouterID:       c.RouterID,
		SlippageBps:    c.SlippageBps,
	}
	admin, err := vault.ParseAccount(c.Admin)
	if err != nil {
		return vault.InitParams{}, fmt.Errorf("config: invalid Admin %q: %w", c.Admin, err)
	}
	params.Admin = admin
	holding, err := vault.ParseAccount(c.VaultAddress)
	if err != nil {
		return vault.InitParams{}, fmt.Errorf("config: invalid VaultAddress %q: %w", c.VaultAddress, err)
	}
	params.Vault = holding
	capacity, err := vault.ParseAmount(c.InitialCapacity)
	if err != nil {
		return vault.InitParams{}, fmt.Errorf("config: invalid InitialCapacity: %w", err)
	}
	params.CapacityLimit = capacity
	ceiling, err := vault.ParseAmount(c.WithdrawalCeiling)
	if err != nil {
		return vault.InitParams{}, fmt.Errorf("config: invalid WithdrawalCeiling: %w", err)
	}
	params.WithdrawalCeiling = ceiling
	normalized := params.Normalise()
	if err := normalized.Validate(); err != nil {
		return vault.InitParams{}, err
	}
	return normalized, nil
}
