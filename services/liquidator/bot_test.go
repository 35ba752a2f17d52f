package liquidator_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lendex/native/lending"
	"lendex/services/liquidator"
)

type recordedMetrics struct {
	liquidations map[string]int
	flashLoans   map[string]int
	scans        int
}

func newRecordedMetrics() *recordedMetrics {
	return &recordedMetrics{
		liquidations: make(map[string]int),
		flashLoans:   make(map[string]int),
	}
}

func (m *recordedMetrics) RecordLiquidation(outcome string) { m.liquidations[outcome]++ }
func (m *recordedMetrics) RecordFlashLoan(phase string)     { m.flashLoans[phase]++ }
func (m *recordedMetrics) ObserveScan(float64)              { m.scans++ }

func newBot(engine *lending.Engine, oracle *lending.SimpleOracle, opts ...liquidator.BotOption) *liquidator.Bot {
	pool := &liquidator.FlashPool{Account: accPool, FeeBps: 10}
	swapper := &liquidator.OracleSwapper{Oracle: oracle, Venue: accVenue}
	scanner := liquidator.NewScanner(engine, oracle)
	return liquidator.NewBot(engine, scanner, pool, swapper, accBot, opts...)
}

func TestBotExecuteSettles(t *testing.T) {
	engine, oracle := newProtocol(t)
	oracle.SetPrice(assetETH, e18(800))
	metrics := newRecordedMetrics()
	bot := newBot(engine, oracle, liquidator.WithMetrics(metrics))

	receipt, err := bot.Execute(lending.LiquidationOrder{
		Borrower:        accBorrower,
		RepayAsset:      assetUSDX,
		CollateralAsset: assetETH,
		RepayAmount:     big.NewInt(35_000),
	})
	require.NoError(t, err)
	require.Equal(t, liquidator.PhaseSettled, receipt.Phase)
	require.NotEmpty(t, receipt.ID)

	// 35_000 * 1.08 / 800 = 47.25 -> 47 tokens, redeemed 1:1, swapped at 800
	require.Equal(t, big.NewInt(47), receipt.Seized)
	require.Equal(t, big.NewInt(47), receipt.Redeemed)
	require.Equal(t, big.NewInt(37_600), receipt.Received)
	// owed back to the pool is 35_000 plus the 10 bps fee
	require.Equal(t, big.NewInt(2_565), receipt.Profit)

	require.Equal(t, big.NewInt(2_565), engine.BalanceOf(accBot, assetUSDX))
	require.Equal(t, big.NewInt(1_000_035), engine.BalanceOf(accPool, assetUSDX))

	owed, err := engine.BorrowBalanceOf(accBorrower, assetUSDX)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(35_000), owed)
	tokens, err := engine.TokenBalanceOf(accBorrower, assetETH)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(53), tokens)

	require.Equal(t, 1, metrics.liquidations["settled"])
	require.Equal(t, 1, metrics.flashLoans["borrowed"])
	require.Equal(t, 1, metrics.flashLoans["liquidating"])
	require.Equal(t, 1, metrics.flashLoans["collateral_received"])
	require.Equal(t, 1, metrics.flashLoans["settled"])
}

func TestBotUnprofitableChainReverts(t *testing.T) {
	engine, oracle := newProtocol(t)
	oracle.SetPrice(assetETH, e18(800))
	metrics := newRecordedMetrics()
	bot := newBot(engine, oracle,
		liquidator.WithMetrics(metrics),
		liquidator.WithMinProfit(big.NewInt(1_000_000)),
	)

	receipt, err := bot.Execute(lending.LiquidationOrder{
		Borrower:        accBorrower,
		RepayAsset:      assetUSDX,
		CollateralAsset: assetETH,
		RepayAmount:     big.NewInt(35_000),
	})
	require.ErrorIs(t, err, liquidator.ErrUnprofitable)
	require.Equal(t, liquidator.PhaseReverted, receipt.Phase)

	// zero net ledger change: every leg of the chain unwound
	require.True(t, engine.BalanceOf(accBot, assetUSDX).Sign() == 0)
	require.Equal(t, big.NewInt(1_000_000), engine.BalanceOf(accPool, assetUSDX))
	require.Equal(t, big.NewInt(1_000_000), engine.BalanceOf(accVenue, assetUSDX))

	owed, err := engine.BorrowBalanceOf(accBorrower, assetUSDX)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(70_000), owed)
	tokens, err := engine.TokenBalanceOf(accBorrower, assetETH)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100), tokens)

	require.Equal(t, 1, metrics.liquidations["reverted"])
	require.Equal(t, 1, metrics.flashLoans["borrowed"])
	require.Equal(t, 1, metrics.flashLoans["reverted"])
}

// sponsoredLender fronts a pool account without being a FlashPool itself.
type sponsoredLender struct {
	pool liquidator.FlashPool
}

func (l *sponsoredLender) Loan(led liquidator.Ledger, asset, borrower string, amount *big.Int, fn func() error) error {
	return l.pool.Loan(led, asset, borrower, amount, fn)
}

func (l *sponsoredLender) Owed(amount *big.Int) *big.Int { return l.pool.Owed(amount) }

func (l *sponsoredLender) Recipient() string { return l.pool.Account }

func TestBotSettlesThroughCustomLender(t *testing.T) {
	engine, oracle := newProtocol(t)
	oracle.SetPrice(assetETH, e18(800))
	lender := &sponsoredLender{pool: liquidator.FlashPool{Account: accPool, FeeBps: 10}}
	swapper := &liquidator.OracleSwapper{Oracle: oracle, Venue: accVenue}
	scanner := liquidator.NewScanner(engine, oracle)
	bot := liquidator.NewBot(engine, scanner, lender, swapper, accBot)

	receipt, err := bot.Execute(lending.LiquidationOrder{
		Borrower:        accBorrower,
		RepayAsset:      assetUSDX,
		CollateralAsset: assetETH,
		RepayAmount:     big.NewInt(35_000),
	})
	require.NoError(t, err)
	require.Equal(t, liquidator.PhaseSettled, receipt.Phase)
	require.Equal(t, big.NewInt(1_000_035), engine.BalanceOf(accPool, assetUSDX))
}

func TestBotRevertsWhenBorrowerHealthy(t *testing.T) {
	engine, oracle := newProtocol(t)
	bot := newBot(engine, oracle)

	receipt, err := bot.Execute(lending.LiquidationOrder{
		Borrower:        accBorrower,
		RepayAsset:      assetUSDX,
		CollateralAsset: assetETH,
		RepayAmount:     big.NewInt(35_000),
	})
	require.ErrorIs(t, err, lending.ErrBorrowerHealthy)
	require.Equal(t, liquidator.PhaseReverted, receipt.Phase)
	require.Equal(t, big.NewInt(1_000_000), engine.BalanceOf(accPool, assetUSDX))
}

func TestBotSweep(t *testing.T) {
	engine, oracle := newProtocol(t)
	oracle.SetPrice(assetETH, e18(800))
	metrics := newRecordedMetrics()
	bot := newBot(engine, oracle, liquidator.WithMetrics(metrics))

	receipts, err := bot.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, liquidator.PhaseSettled, receipts[0].Phase)
	require.Equal(t, 1, metrics.scans)

	owed, err := engine.BorrowBalanceOf(accBorrower, assetUSDX)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(35_000), owed)
}

func TestBotSweepHonorsLimit(t *testing.T) {
	engine, oracle := newProtocol(t)
	oracle.SetPrice(assetETH, e18(800))
	bot := newBot(engine, oracle, liquidator.WithSweepLimit(0, 0))

	// zero arguments fall back to defaults rather than disabling the sweep
	receipts, err := bot.Sweep(context.Background())
	require.NoError(t, err)
	require.Len(t, receipts, 1)
}

func TestPhaseString(t *testing.T) {
	phases := map[liquidator.Phase]string{
		liquidator.PhaseIdle:               "idle",
		liquidator.PhaseBorrowed:           "borrowed",
		liquidator.PhaseLiquidating:        "liquidating",
		liquidator.PhaseCollateralReceived: "collateral_received",
		liquidator.PhaseSettled:            "settled",
		liquidator.PhaseReverted:           "reverted",
	}
	for phase, want := range phases {
		require.Equal(t, want, phase.String())
	}
}
