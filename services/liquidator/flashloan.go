package liquidator

import (
	"errors"
	"math/big"
)

var (
	ErrPoolIlliquid   = errors.New("flash pool: insufficient pool liquidity")
	ErrLoanNotSettled = errors.New("flash pool: loan not repaid with fee")
)

// Ledger is the slice of the protocol engine the liquidator needs for moving
// underlying assets. The *lending.Engine satisfies it, including the child
// engines handed out by Atomic.
type Ledger interface {
	BalanceOf(account, asset string) *big.Int
	Transfer(asset, from, to string, amount *big.Int) error
	TransferFrom(spender, asset, from, to string, amount *big.Int) error
	Approve(owner, spender, asset string, amount *big.Int) error
	Allowance(owner, spender, asset string) *big.Int
}

// FlashLender funds a borrower for the duration of one callback and enforces
// that principal plus fee return before the call ends. Implementations run
// inside the engine's atomic execution scope, so a failed settlement unwinds
// the whole chain. Recipient names the account the borrower must approve for
// the settlement pull.
type FlashLender interface {
	Loan(l Ledger, asset, borrower string, amount *big.Int, fn func() error) error
	Owed(amount *big.Int) *big.Int
	Recipient() string
}

// FlashPool lends from a dedicated pool account and pulls repayment through a
// borrower-granted allowance.
type FlashPool struct {
	Account string
	FeeBps  uint64
}

// Recipient returns the pool account repayment is pulled into.
func (p *FlashPool) Recipient() string {
	if p == nil {
		return ""
	}
	return p.Account
}

// Owed returns principal plus fee for a loan of amount.
func (p *FlashPool) Owed(amount *big.Int) *big.Int {
	if p == nil || amount == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(p.FeeBps))
	fee.Quo(fee, big.NewInt(10_000))
	return fee.Add(fee, amount)
}

// Loan transfers amount to the borrower, runs the callback, then pulls the
// owed repayment back on the borrower's approval. Any callback error or a
// short repayment aborts the chain before it can commit.
func (p *FlashPool) Loan(l Ledger, asset, borrower string, amount *big.Int, fn func() error) error {
	if p == nil || l == nil {
		return ErrPoolIlliquid
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrPoolIlliquid
	}
	if l.BalanceOf(p.Account, asset).Cmp(amount) < 0 {
		return ErrPoolIlliquid
	}
	if err := l.Transfer(asset, p.Account, borrower, amount); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	owed := p.Owed(amount)
	if err := l.TransferFrom(p.Account, asset, borrower, p.Account, owed); err != nil {
		return errors.Join(ErrLoanNotSettled, err)
	}
	return nil
}
