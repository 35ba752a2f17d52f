package lending

import (
	"errors"
	"math/big"
	"testing"
)

const (
	assetETH  = "ETH"
	assetUSDX = "USDX"

	accAlice      = "alice"
	accWhale      = "whale"
	accLiquidator = "liq"
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), expScale)
}

// newTestProtocol lists two markets: ETH as collateral at factor 0.8 priced
// 1000, USDX as the borrowable stable priced 1. The whale seeds the USDX
// market with cash; alice holds raw ETH; the liquidator holds USDX.
func newTestProtocol(t *testing.T) (*Engine, *SimpleOracle) {
	t.Helper()
	engine := NewEngine(NewMemState())
	oracle := NewSimpleOracle()
	engine.SetPriceOracle(oracle)

	for _, market := range []string{assetETH, assetUSDX} {
		if err := engine.SupportMarket(market, nil); err != nil {
			t.Fatalf("support %s: %v", market, err)
		}
	}
	oracle.SetPrice(assetETH, e18(1000))
	oracle.SetPrice(assetUSDX, e18(1))
	if err := engine.SetCollateralFactor(assetETH, mantissa(8)); err != nil {
		t.Fatalf("collateral factor: %v", err)
	}
	if err := engine.SetCloseFactor(mantissa(5)); err != nil {
		t.Fatalf("close factor: %v", err)
	}
	if err := engine.SetLiquidationIncentive(mustBigInt("1080000000000000000")); err != nil {
		t.Fatalf("incentive: %v", err)
	}

	for account, balances := range map[string]map[string]int64{
		accAlice:      {assetETH: 100},
		accWhale:      {assetUSDX: 1_000_000},
		accLiquidator: {assetUSDX: 100_000},
	} {
		for asset, amount := range balances {
			if err := engine.SetBalance(account, asset, big.NewInt(amount)); err != nil {
				t.Fatalf("seed %s %s: %v", account, asset, err)
			}
		}
	}
	if _, err := engine.Mint(accWhale, assetUSDX, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("seed market cash: %v", err)
	}
	return engine, oracle
}

// supplyAndBorrow puts alice in the canonical position: 100 ETH of collateral
// against a 70_000 USDX borrow.
func supplyAndBorrow(t *testing.T, engine *Engine) {
	t.Helper()
	if _, err := engine.Mint(accAlice, assetETH, big.NewInt(100)); err != nil {
		t.Fatalf("mint collateral: %v", err)
	}
	if err := engine.Borrow(accAlice, assetUSDX, big.NewInt(70_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
}

func TestSupportMarketRejectsRelisting(t *testing.T) {
	engine, _ := newTestProtocol(t)
	if err := engine.SupportMarket(assetETH, nil); !errors.Is(err, ErrAlreadyListed) {
		t.Fatalf("expected ErrAlreadyListed, got %v", err)
	}
}

func TestSetCollateralFactorValidation(t *testing.T) {
	engine, oracle := newTestProtocol(t)

	above := new(big.Int).Add(expScale, big.NewInt(1))
	if err := engine.SetCollateralFactor(assetETH, above); !errors.Is(err, ErrInvalidFactor) {
		t.Fatalf("factor above 1.0: expected ErrInvalidFactor, got %v", err)
	}
	if err := engine.SetCollateralFactor("GHOST", mantissa(5)); !errors.Is(err, ErrInvalidFactor) {
		t.Fatalf("unlisted market: expected ErrInvalidFactor, got %v", err)
	}

	oracle.SetPrice(assetETH, nil)
	if err := engine.SetCollateralFactor(assetETH, mantissa(5)); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("unpriced asset: expected ErrPriceUnavailable, got %v", err)
	}
}

func TestSetCloseFactorBounds(t *testing.T) {
	engine, _ := newTestProtocol(t)
	if err := engine.SetCloseFactor(big.NewInt(0)); !errors.Is(err, ErrInvalidFactor) {
		t.Fatalf("zero close factor: expected ErrInvalidFactor, got %v", err)
	}
	if err := engine.SetCloseFactor(new(big.Int).Add(expScale, big.NewInt(1))); !errors.Is(err, ErrInvalidFactor) {
		t.Fatalf("close factor above 1.0: expected ErrInvalidFactor, got %v", err)
	}
	if err := engine.SetCloseFactor(expScale); err != nil {
		t.Fatalf("close factor of exactly 1.0 must be accepted: %v", err)
	}
}

func TestSetLiquidationIncentiveBounds(t *testing.T) {
	engine, _ := newTestProtocol(t)
	below := new(big.Int).Sub(expScale, big.NewInt(1))
	if err := engine.SetLiquidationIncentive(below); !errors.Is(err, ErrInvalidFactor) {
		t.Fatalf("incentive below 1.0: expected ErrInvalidFactor, got %v", err)
	}
	if err := engine.SetLiquidationIncentive(expScale); err != nil {
		t.Fatalf("incentive of exactly 1.0 must be accepted: %v", err)
	}
}

func TestEnterMarketsIdempotent(t *testing.T) {
	engine, _ := newTestProtocol(t)
	if err := engine.EnterMarkets(accAlice, []string{assetETH, assetETH, assetUSDX}); err != nil {
		t.Fatalf("enter markets: %v", err)
	}
	entered, err := engine.GetAssetsIn(accAlice)
	if err != nil {
		t.Fatalf("assets in: %v", err)
	}
	if len(entered) != 2 || entered[0] != assetETH || entered[1] != assetUSDX {
		t.Fatalf("unexpected membership: %v", entered)
	}
	if err := engine.EnterMarkets(accAlice, []string{"GHOST"}); !errors.Is(err, ErrMarketNotListed) {
		t.Fatalf("unlisted market: expected ErrMarketNotListed, got %v", err)
	}
}

func TestEnterMarketsRespectsMaxAssets(t *testing.T) {
	engine, _ := newTestProtocol(t)
	engine.SetMaxAssets(1)
	if err := engine.EnterMarkets(accAlice, []string{assetETH}); err != nil {
		t.Fatalf("enter first market: %v", err)
	}
	if err := engine.EnterMarkets(accAlice, []string{assetUSDX}); !errors.Is(err, ErrTooManyAssets) {
		t.Fatalf("expected ErrTooManyAssets, got %v", err)
	}
	// re-entering the same market stays idempotent under the cap
	if err := engine.EnterMarkets(accAlice, []string{assetETH}); err != nil {
		t.Fatalf("re-enter under cap: %v", err)
	}
}

func TestExitMarketRequiresZeroBalance(t *testing.T) {
	engine, _ := newTestProtocol(t)
	supplyAndBorrow(t, engine)

	if err := engine.ExitMarket(accAlice, assetETH); !errors.Is(err, ErrNonzeroBalance) {
		t.Fatalf("tokens held: expected ErrNonzeroBalance, got %v", err)
	}
	if err := engine.ExitMarket(accAlice, assetUSDX); !errors.Is(err, ErrNonzeroBalance) {
		t.Fatalf("borrow outstanding: expected ErrNonzeroBalance, got %v", err)
	}

	if _, err := engine.RepayBorrow(accAlice, assetUSDX, big.NewInt(70_000)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if err := engine.ExitMarket(accAlice, assetUSDX); err != nil {
		t.Fatalf("exit after repay: %v", err)
	}
	entered, err := engine.GetAssetsIn(accAlice)
	if err != nil {
		t.Fatalf("assets in: %v", err)
	}
	if len(entered) != 1 || entered[0] != assetETH {
		t.Fatalf("unexpected membership after exit: %v", entered)
	}
}

func TestAccountLiquidity(t *testing.T) {
	engine, _ := newTestProtocol(t)
	supplyAndBorrow(t, engine)

	liquidity, shortfall, err := engine.GetAccountLiquidity(accAlice)
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	// 100 ETH * 1000 * 0.8 = 80_000 of borrowing power against 70_000 debt
	if liquidity.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("unexpected liquidity: %s", liquidity)
	}
	if shortfall.Sign() != 0 {
		t.Fatalf("expected zero shortfall, got %s", shortfall)
	}
}

func TestAccountLiquidityShortfallExclusive(t *testing.T) {
	engine, oracle := newTestProtocol(t)
	supplyAndBorrow(t, engine)

	oracle.SetPrice(assetETH, e18(800))
	liquidity, shortfall, err := engine.GetAccountLiquidity(accAlice)
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	if liquidity.Sign() != 0 {
		t.Fatalf("expected zero liquidity, got %s", liquidity)
	}
	// 100 * 800 * 0.8 = 64_000 of power against 70_000 debt
	if shortfall.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("unexpected shortfall: %s", shortfall)
	}
}

func TestAccountLiquidityAbortsOnMissingPrice(t *testing.T) {
	engine, oracle := newTestProtocol(t)
	supplyAndBorrow(t, engine)

	oracle.SetPrice(assetETH, nil)
	if _, _, err := engine.GetAccountLiquidity(accAlice); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected ErrPriceUnavailable, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClass
	}{
		{ErrInsufficientLiquidity, ClassPolicyRejection},
		{ErrInsufficientCash, ClassResourceExhaustion},
		{ErrPriceUnavailable, ClassDataUnavailable},
		{ErrExchangeRateDecreased, ClassInvariantViolation},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("classify %v: got %v want %v", tc.err, got, tc.want)
		}
	}
}
