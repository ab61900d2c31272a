package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the vaultd service settings.
type Config struct {
	ListenAddress   string `toml:"ListenAddress"`
	DataDir         string `toml:"DataDir"`
	Env             string `toml:"Env"`
	SwapFeeBps      uint32 `toml:"SwapFeeBps"`
	WithdrawFeeBps  uint32 `toml:"WithdrawFeeBps"`
	FlashLoanFeeBps uint32 `toml:"FlashLoanFeeBps"`
	PauseVault      bool   `toml:"PauseVault"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := defaultConfig()
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress: ":8551",
		DataDir:       "./vaultd-data",
	}
}

// Validate rejects settings the engine would refuse at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.SwapFeeBps > 1_000 {
		return fmt.Errorf("config: SwapFeeBps %d above maximum", c.SwapFeeBps)
	}
	if c.WithdrawFeeBps > 500 {
		return fmt.Errorf("config: WithdrawFeeBps %d above maximum", c.WithdrawFeeBps)
	}
	if c.FlashLoanFeeBps > 500 {
		return fmt.Errorf("config: FlashLoanFeeBps %d above maximum", c.FlashLoanFeeBps)
	}
	return nil
}
