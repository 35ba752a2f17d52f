package lending

import (
	"math/big"
	"strings"

	nativecommon "lendex/native/common"
)

const moduleName = "lending"

// Pause switch actions understood by the engine's guard.
const (
	ActionMint      = "mint"
	ActionRedeem    = "redeem"
	ActionBorrow    = "borrow"
	ActionRepay     = "repay"
	ActionLiquidate = "liquidate"
)

// MarketAccount returns the module account that custodies a market's
// underlying cash.
func MarketAccount(asset string) string {
	return "market:" + strings.TrimSpace(asset)
}

// Engine is the protocol core: the comptroller's risk policy, the per-market
// receipt token accounting, and the liquidation engine all mutate state
// through it. Calls are strictly serial; every state-changing call either
// commits fully or leaves the store untouched.
type Engine struct {
	state  State
	oracle PriceOracle
	models map[string]RateModel
	pauses nativecommon.PauseView

	closeFactor          *big.Int
	liquidationIncentive *big.Int
	maxAssets            int
	blockHeight          uint64

	// inTx marks a child engine created by Atomic. Its operations apply to
	// the transaction's working state and commit or vanish with it.
	inTx bool
}

// NewEngine constructs an engine over the given store. Policy parameters
// start inert: collateral factors default to zero per market, the close
// factor is zero (no liquidation repay allowance) until set, and the
// liquidation incentive defaults to 1.0.
func NewEngine(state State) *Engine {
	return &Engine{
		state:                state,
		models:               make(map[string]RateModel),
		closeFactor:          big.NewInt(0),
		liquidationIncentive: new(big.Int).Set(expScale),
		maxAssets:            0,
	}
}

// SetPriceOracle wires the external price feed.
func (e *Engine) SetPriceOracle(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetPauses wires the administrative pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetRateModel assigns the interest rate model accruals for a market will
// use. A market without a model accrues no interest.
func (e *Engine) SetRateModel(asset string, model RateModel) {
	if e == nil {
		return
	}
	e.models[asset] = model
}

// SetCloseFactor bounds how much of one borrow position a single liquidation
// may repay. The factor is an 18-decimal mantissa in (0, 1e18].
func (e *Engine) SetCloseFactor(factor *big.Int) error {
	if e == nil {
		return ErrNilState
	}
	if factor == nil || factor.Sign() <= 0 || factor.Cmp(expScale) > 0 {
		return ErrInvalidFactor
	}
	e.closeFactor = new(big.Int).Set(factor)
	return nil
}

// SetLiquidationIncentive sets the protocol-wide collateral bonus multiplier,
// an 18-decimal mantissa that must be at least 1.0.
func (e *Engine) SetLiquidationIncentive(incentive *big.Int) error {
	if e == nil {
		return ErrNilState
	}
	if incentive == nil || incentive.Cmp(expScale) < 0 {
		return ErrInvalidFactor
	}
	e.liquidationIncentive = new(big.Int).Set(incentive)
	return nil
}

// SetMaxAssets caps how many markets one account may enter. Zero disables
// the cap.
func (e *Engine) SetMaxAssets(n int) {
	if e == nil || n < 0 {
		return
	}
	e.maxAssets = n
}

// SetBlockHeight advances the engine clock used for interest accrual.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// BlockHeight returns the engine clock.
func (e *Engine) BlockHeight() uint64 {
	if e == nil {
		return 0
	}
	return e.blockHeight
}

// CloseFactor returns the configured close factor mantissa.
func (e *Engine) CloseFactor() *big.Int {
	if e == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(e.closeFactor)
}

// LiquidationIncentive returns the configured incentive mantissa.
func (e *Engine) LiquidationIncentive() *big.Int {
	if e == nil {
		return new(big.Int).Set(expScale)
	}
	return new(big.Int).Set(e.liquidationIncentive)
}

// exec runs a mutation against a clone of the current state and swaps the
// clone in only on success. A failed call therefore leaves the store
// byte-identical to its pre-call contents.
func (e *Engine) exec(fn func(State) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	work := e.state.Clone()
	if err := fn(work); err != nil {
		return err
	}
	e.state = work
	return nil
}

// Atomic runs fn against a child engine whose mutations only land if fn
// returns nil. The flash-loan liquidation chain runs borrow, liquidate,
// redeem, swap and settlement inside one Atomic call, which is what makes an
// unprofitable chain revert with zero net ledger change. Nesting is an
// invariant violation.
func (e *Engine) Atomic(fn func(tx *Engine) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.inTx {
		return ErrNestedTransaction
	}
	child := *e
	child.inTx = true
	child.state = e.state.Clone()
	if err := fn(&child); err != nil {
		return err
	}
	e.state = child.state
	return nil
}

// view hands read-only helpers a scratch clone so hypothetical computations
// (accrual-adjusted liquidity, quoted balances) never touch committed state.
func (e *Engine) view() (State, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Clone(), nil
}

// --- underlying token ledger -------------------------------------------------

// BalanceOf reports an account's underlying asset balance.
func (e *Engine) BalanceOf(account, asset string) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	return e.state.Balance(account, asset)
}

// SetBalance seeds an account balance. Intended for genesis wiring and tests;
// regular flows move value with Transfer.
func (e *Engine) SetBalance(account, asset string, amount *big.Int) error {
	return e.exec(func(s State) error {
		s.SetBalance(account, asset, bigOrZero(amount))
		return nil
	})
}

// Transfer moves underlying from one account to another.
func (e *Engine) Transfer(asset, from, to string, amount *big.Int) error {
	return e.exec(func(s State) error {
		return transfer(s, asset, from, to, amount)
	})
}

// Approve grants spender the right to pull up to amount of owner's asset.
func (e *Engine) Approve(owner, spender, asset string, amount *big.Int) error {
	return e.exec(func(s State) error {
		s.SetAllowance(owner, spender, asset, bigOrZero(amount))
		return nil
	})
}

// Allowance reports the remaining approved amount.
func (e *Engine) Allowance(owner, spender, asset string) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	return e.state.Allowance(owner, spender, asset)
}

// TransferFrom moves underlying out of from's balance on the strength of a
// prior approval, reducing the allowance.
func (e *Engine) TransferFrom(spender, asset, from, to string, amount *big.Int) error {
	return e.exec(func(s State) error {
		return transferFrom(s, spender, asset, from, to, amount)
	})
}

func transfer(s State, asset, from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBalance := s.Balance(from, asset)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	s.SetBalance(from, asset, new(big.Int).Sub(fromBalance, amount))
	s.SetBalance(to, asset, new(big.Int).Add(s.Balance(to, asset), amount))
	return nil
}

func transferFrom(s State, spender, asset, from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if spender != from {
		allowance := s.Allowance(from, spender, asset)
		if allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		s.SetAllowance(from, spender, asset, new(big.Int).Sub(allowance, amount))
	}
	return transfer(s, asset, from, to, amount)
}
