package liquidator

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the liquidator daemon.
type Config struct {
	ListenAddress string            `yaml:"listen"`
	Environment   string            `yaml:"environment"`
	Account       string            `yaml:"account"`
	GenesisPath   string            `yaml:"genesis"`
	ScanInterval  time.Duration     `yaml:"scan_interval"`
	SweepRate     float64           `yaml:"sweep_rate"`
	MaxPerSweep   int               `yaml:"max_per_sweep"`
	MinProfit     string            `yaml:"min_profit"`
	FlashPool     FlashPoolConfig   `yaml:"flash_pool"`
	Swap          SwapConfig        `yaml:"swap"`
	LogRotation   LogRotationConfig `yaml:"log_rotation"`
}

// FlashPoolConfig names the flash lending pool and its fee.
type FlashPoolConfig struct {
	Account string `yaml:"account"`
	FeeBps  uint64 `yaml:"fee_bps"`
}

// SwapConfig names the swap venue account and its fee.
type SwapConfig struct {
	Venue  string `yaml:"venue"`
	FeeBps uint64 `yaml:"fee_bps"`
}

// LogRotationConfig mirrors the rotating log sink settings.
type LogRotationConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// LoadConfig reads the YAML configuration from disk and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":7540",
		Environment:   "dev",
		ScanInterval:  15 * time.Second,
		SweepRate:     4,
		MaxPerSweep:   10,
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7540"
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}
	cfg.Account = strings.TrimSpace(cfg.Account)
	cfg.GenesisPath = strings.TrimSpace(cfg.GenesisPath)
	cfg.MinProfit = strings.TrimSpace(cfg.MinProfit)
	cfg.FlashPool.Account = strings.TrimSpace(cfg.FlashPool.Account)
	cfg.Swap.Venue = strings.TrimSpace(cfg.Swap.Venue)
	cfg.LogRotation.Path = strings.TrimSpace(cfg.LogRotation.Path)
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 15 * time.Second
	}
	if cfg.SweepRate <= 0 {
		cfg.SweepRate = 4
	}
	if cfg.MaxPerSweep <= 0 {
		cfg.MaxPerSweep = 10
	}
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.Account == "" {
		return fmt.Errorf("account is required")
	}
	if cfg.GenesisPath == "" {
		return fmt.Errorf("genesis path is required")
	}
	if cfg.FlashPool.Account == "" {
		return fmt.Errorf("flash_pool.account is required")
	}
	if cfg.FlashPool.FeeBps >= 10_000 {
		return fmt.Errorf("flash_pool.fee_bps must be below 10000")
	}
	if cfg.Swap.Venue == "" {
		return fmt.Errorf("swap.venue is required")
	}
	if cfg.Swap.FeeBps >= 10_000 {
		return fmt.Errorf("swap.fee_bps must be below 10000")
	}
	if _, err := cfg.MinProfitAmount(); err != nil {
		return err
	}
	return nil
}

// MinProfitAmount parses the configured minimum profit as a base-10 integer.
// An empty setting means any non-negative profit is acceptable.
func (cfg Config) MinProfitAmount() (*big.Int, error) {
	if cfg.MinProfit == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(cfg.MinProfit, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("min_profit must be a non-negative integer, got %q", cfg.MinProfit)
	}
	return amount, nil
}
