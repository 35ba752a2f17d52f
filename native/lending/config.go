package lending

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the protocol genesis: global risk parameters, the market
// set, and seeded balances. Amount-valued fields are decimal strings in the
// smallest underlying unit; prices use an 18-decimal mantissa.
type Config struct {
	CloseFactorBps          uint64          `toml:"CloseFactorBps"`
	LiquidationIncentiveBps uint64          `toml:"LiquidationIncentiveBps"`
	MaxAssets               int             `toml:"MaxAssets"`
	Markets                 []MarketConfig  `toml:"market"`
	Accounts                []AccountConfig `toml:"account"`
}

// MarketConfig describes one listed market.
type MarketConfig struct {
	Asset               string      `toml:"Asset"`
	CollateralFactorBps uint64      `toml:"CollateralFactorBps"`
	ReserveFactorBps    uint64      `toml:"ReserveFactorBps"`
	Price               string      `toml:"Price"`
	BorrowCap           string      `toml:"BorrowCap"`
	PerBlockBorrowCap   string      `toml:"PerBlockBorrowCap"`
	InitialExchangeRate string      `toml:"InitialExchangeRate"`
	Rates               RatesConfig `toml:"rates"`
}

// RatesConfig selects and parameterises the market's interest rate model.
// Rates are decimals, e.g. a 2% base rate is 0.02.
type RatesConfig struct {
	Kind     string  `toml:"Kind"` // "whitepaper" or "jump"
	BaseRate float64 `toml:"BaseRate"`
	Slope1   float64 `toml:"Slope1"`
	Slope2   float64 `toml:"Slope2"`
	Kink     float64 `toml:"Kink"`
}

// AccountConfig seeds an account's underlying balances at genesis.
type AccountConfig struct {
	Address  string            `toml:"Address"`
	Balances map[string]string `toml:"Balances"`
}

// LoadConfig reads and validates a TOML protocol config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks structural soundness before any state is built.
func (c Config) Validate() error {
	if c.CloseFactorBps == 0 || c.CloseFactorBps > 10_000 {
		return fmt.Errorf("close factor bps out of range: %d", c.CloseFactorBps)
	}
	if c.LiquidationIncentiveBps < 10_000 {
		return fmt.Errorf("liquidation incentive bps below 1.0: %d", c.LiquidationIncentiveBps)
	}
	seen := make(map[string]struct{}, len(c.Markets))
	for _, market := range c.Markets {
		asset := strings.TrimSpace(market.Asset)
		if asset == "" {
			return fmt.Errorf("market with empty asset")
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("duplicate market: %s", asset)
		}
		seen[asset] = struct{}{}
		if market.CollateralFactorBps > 10_000 {
			return fmt.Errorf("market %s: collateral factor bps out of range: %d", asset, market.CollateralFactorBps)
		}
		if market.ReserveFactorBps > 10_000 {
			return fmt.Errorf("market %s: reserve factor bps out of range: %d", asset, market.ReserveFactorBps)
		}
		switch strings.ToLower(strings.TrimSpace(market.Rates.Kind)) {
		case "", "whitepaper", "jump":
		default:
			return fmt.Errorf("market %s: unknown rate model kind %q", asset, market.Rates.Kind)
		}
	}
	return nil
}

// Build constructs an engine, oracle and store from the config.
func (c Config) Build() (*Engine, *SimpleOracle, error) {
	engine := NewEngine(NewMemState())
	oracle := NewSimpleOracle()
	engine.SetPriceOracle(oracle)

	if err := engine.SetCloseFactor(bpsToExp(c.CloseFactorBps)); err != nil {
		return nil, nil, fmt.Errorf("close factor: %w", err)
	}
	if err := engine.SetLiquidationIncentive(bpsToExp(c.LiquidationIncentiveBps)); err != nil {
		return nil, nil, fmt.Errorf("liquidation incentive: %w", err)
	}
	engine.SetMaxAssets(c.MaxAssets)

	for _, account := range c.Accounts {
		address := strings.TrimSpace(account.Address)
		if address == "" {
			continue
		}
		for asset, raw := range account.Balances {
			amount, err := parseAmount(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("account %s balance %s: %w", address, asset, err)
			}
			if err := engine.SetBalance(address, asset, amount); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, market := range c.Markets {
		asset := strings.TrimSpace(market.Asset)
		initialRate, err := parseAmount(market.InitialExchangeRate)
		if err != nil {
			return nil, nil, fmt.Errorf("market %s initial exchange rate: %w", asset, err)
		}
		if err := engine.SupportMarket(asset, initialRate); err != nil {
			return nil, nil, fmt.Errorf("market %s: %w", asset, err)
		}

		if price, err := parseAmount(market.Price); err != nil {
			return nil, nil, fmt.Errorf("market %s price: %w", asset, err)
		} else if price != nil {
			oracle.SetPrice(asset, price)
		}

		if market.CollateralFactorBps > 0 {
			if err := engine.SetCollateralFactor(asset, bpsToExp(market.CollateralFactorBps)); err != nil {
				return nil, nil, fmt.Errorf("market %s collateral factor: %w", asset, err)
			}
		}
		if market.ReserveFactorBps > 0 {
			if err := engine.SetReserveFactor(asset, bpsToExp(market.ReserveFactorBps)); err != nil {
				return nil, nil, fmt.Errorf("market %s reserve factor: %w", asset, err)
			}
		}
		if cap, err := parseAmount(market.BorrowCap); err != nil {
			return nil, nil, fmt.Errorf("market %s borrow cap: %w", asset, err)
		} else if cap != nil {
			if err := engine.SetBorrowCap(asset, cap); err != nil {
				return nil, nil, err
			}
		}
		if cap, err := parseAmount(market.PerBlockBorrowCap); err != nil {
			return nil, nil, fmt.Errorf("market %s per-block borrow cap: %w", asset, err)
		} else if cap != nil {
			if err := engine.SetPerBlockBorrowCap(asset, cap); err != nil {
				return nil, nil, err
			}
		}

		engine.SetRateModel(asset, market.Rates.model())
	}

	return engine, oracle, nil
}

func (r RatesConfig) model() RateModel {
	switch strings.ToLower(strings.TrimSpace(r.Kind)) {
	case "jump":
		return NewJumpRateModel(r.BaseRate, r.Slope1, r.Slope2, r.Kink)
	case "whitepaper":
		return NewWhitePaperModel(r.BaseRate, r.Slope1)
	default:
		return DefaultRateModel
	}
}

func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}
