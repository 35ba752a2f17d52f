package liquidator

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"lendex/native/lending"
)

var ErrUnprofitable = errors.New("liquidator: chain would settle below minimum profit")

// Phase tracks a flash-loan liquidation chain through its state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseBorrowed
	PhaseLiquidating
	PhaseCollateralReceived
	PhaseSettled
	PhaseReverted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBorrowed:
		return "borrowed"
	case PhaseLiquidating:
		return "liquidating"
	case PhaseCollateralReceived:
		return "collateral_received"
	case PhaseSettled:
		return "settled"
	case PhaseReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Receipt records one executed (or reverted) liquidation chain.
type Receipt struct {
	ID       string
	Order    lending.LiquidationOrder
	Phase    Phase
	Seized   *big.Int
	Redeemed *big.Int
	Received *big.Int
	Profit   *big.Int
}

type metricsRecorder interface {
	RecordLiquidation(outcome string)
	RecordFlashLoan(phase string)
	ObserveScan(seconds float64)
}

// Bot executes flash-loan liquidations against the protocol engine. Each
// chain — borrow, liquidate, redeem, swap, settle — runs inside one atomic
// engine transaction: either it settles profitably or every ledger is left
// exactly as it was.
type Bot struct {
	engine    *lending.Engine
	scanner   *Scanner
	lender    FlashLender
	swapper   Swapper
	account   string
	minProfit *big.Int
	limiter   *rate.Limiter
	maxPer    int
	log       *slog.Logger
	metrics   metricsRecorder
}

// BotOption configures a Bot.
type BotOption func(*Bot)

// WithMinProfit sets the smallest acceptable net gain in repay-asset units.
func WithMinProfit(min *big.Int) BotOption {
	return func(b *Bot) {
		if min != nil && min.Sign() >= 0 {
			b.minProfit = new(big.Int).Set(min)
		}
	}
}

// WithSweepLimit bounds liquidations per sweep and their rate per second.
func WithSweepLimit(maxPerSweep int, perSecond float64) BotOption {
	return func(b *Bot) {
		if maxPerSweep > 0 {
			b.maxPer = maxPerSweep
		}
		if perSecond > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *slog.Logger) BotOption {
	return func(b *Bot) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m metricsRecorder) BotOption {
	return func(b *Bot) { b.metrics = m }
}

// NewBot constructs a liquidation bot acting as account.
func NewBot(engine *lending.Engine, scanner *Scanner, lender FlashLender, swapper Swapper, account string, opts ...BotOption) *Bot {
	bot := &Bot{
		engine:    engine,
		scanner:   scanner,
		lender:    lender,
		swapper:   swapper,
		account:   account,
		minProfit: big.NewInt(0),
		limiter:   rate.NewLimiter(rate.Inf, 1),
		maxPer:    10,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(bot)
	}
	return bot
}

// Execute runs one flash-loan liquidation chain. On failure the returned
// receipt is in PhaseReverted and the protocol state is exactly what it was
// before the call.
func (b *Bot) Execute(order lending.LiquidationOrder) (*Receipt, error) {
	receipt := &Receipt{
		ID:       uuid.NewString(),
		Order:    order,
		Phase:    PhaseIdle,
		Seized:   big.NewInt(0),
		Redeemed: big.NewInt(0),
		Received: big.NewInt(0),
		Profit:   big.NewInt(0),
	}

	err := b.engine.Atomic(func(tx *lending.Engine) error {
		return b.lender.Loan(tx, order.RepayAsset, b.account, order.RepayAmount, func() error {
			b.advance(receipt, PhaseBorrowed)

			b.advance(receipt, PhaseLiquidating)
			seized, err := tx.LiquidateBorrow(b.account, order)
			if err != nil {
				return err
			}
			receipt.Seized.Set(seized)

			b.advance(receipt, PhaseCollateralReceived)
			redeemed, err := tx.Redeem(b.account, order.CollateralAsset, seized)
			if err != nil {
				return err
			}
			receipt.Redeemed.Set(redeemed)

			received := new(big.Int).Set(redeemed)
			if order.CollateralAsset != order.RepayAsset {
				received, err = b.swapper.Swap(tx, b.account, order.CollateralAsset, order.RepayAsset, redeemed)
				if err != nil {
					return err
				}
			}
			receipt.Received.Set(received)

			owed := b.lender.Owed(order.RepayAmount)
			profit := new(big.Int).Sub(received, owed)
			if profit.Sign() < 0 || profit.Cmp(b.minProfit) < 0 {
				return ErrUnprofitable
			}
			receipt.Profit.Set(profit)

			// Authorize the lender's settlement pull.
			return tx.Approve(b.account, b.lender.Recipient(), order.RepayAsset, owed)
		})
	})
	if err != nil {
		b.advance(receipt, PhaseReverted)
		if b.metrics != nil {
			b.metrics.RecordLiquidation("reverted")
		}
		return receipt, err
	}

	b.advance(receipt, PhaseSettled)
	if b.metrics != nil {
		b.metrics.RecordLiquidation("settled")
	}
	return receipt, nil
}

// advance moves the receipt to the next phase and counts the transition, so
// a reverted chain still shows how far it got.
func (b *Bot) advance(receipt *Receipt, phase Phase) {
	receipt.Phase = phase
	if b.metrics != nil {
		b.metrics.RecordFlashLoan(phase.String())
	}
}

// Sweep scans for underwater borrowers and executes liquidations up to the
// per-sweep limit, pacing attempts through the rate limiter. Execution
// errors are logged and counted, not fatal: one stuck order must not stop
// the sweep.
func (b *Bot) Sweep(ctx context.Context) ([]*Receipt, error) {
	start := time.Now()
	candidates, err := b.scanner.Scan()
	if err != nil {
		return nil, err
	}
	receipts := make([]*Receipt, 0, len(candidates))
	executed := 0
	for _, candidate := range candidates {
		if executed >= b.maxPer {
			break
		}
		if err := b.limiter.Wait(ctx); err != nil {
			return receipts, err
		}
		receipt, err := b.Execute(candidate.Order)
		receipts = append(receipts, receipt)
		executed++
		if err != nil {
			b.log.Warn("liquidation reverted",
				"order", receipt.ID,
				"borrower", candidate.Borrower,
				"error", err.Error(),
			)
			continue
		}
		b.log.Info("liquidation settled",
			"order", receipt.ID,
			"borrower", candidate.Borrower,
			"repay_asset", candidate.Order.RepayAsset,
			"collateral_asset", candidate.Order.CollateralAsset,
			"repaid", candidate.Order.RepayAmount.String(),
			"seized", receipt.Seized.String(),
			"profit", receipt.Profit.String(),
		)
	}
	if b.metrics != nil {
		b.metrics.ObserveScan(time.Since(start).Seconds())
	}
	return receipts, nil
}
