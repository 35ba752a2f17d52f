package lending

import (
	"math/big"

	nativecommon "lendex/native/common"
)

// accrue advances the market's borrow index over the blocks elapsed since the
// last accrual, scaling total borrows and reserves. It mutates the passed
// market; the caller persists it. Accrual runs to completion before any
// policy check reads the market, so admission decisions never see stale or
// half-updated balances.
func (e *Engine) accrue(s State, m *MarketState) error {
	if m == nil {
		return ErrMarketNotListed
	}
	m.ensureDefaults()
	if e.blockHeight <= m.AccrualBlock {
		return nil
	}
	delta := e.blockHeight - m.AccrualBlock
	m.AccrualBlock = e.blockHeight

	model := e.models[m.Asset]
	if model == nil || m.TotalBorrows.Sign() == 0 {
		return nil
	}

	cash := s.Balance(MarketAccount(m.Asset), m.Asset)
	apr := model.BorrowAPR(cash, m.TotalBorrows)
	if apr == nil || apr.Sign() <= 0 {
		return nil
	}

	// simple interest factor = apr * delta / blocksPerYear, truncated
	factor := new(big.Rat).Set(apr)
	factor.Mul(factor, new(big.Rat).SetUint64(delta))
	factor.Quo(factor, new(big.Rat).SetUint64(blocksPerYear))
	factorExp := ratToExp(factor)
	if factorExp.Sign() == 0 {
		return nil
	}

	interest := mulTruncate(m.TotalBorrows, factorExp)
	if interest.Sign() == 0 {
		return nil
	}
	m.TotalBorrows = new(big.Int).Add(m.TotalBorrows, interest)
	m.TotalReserves = new(big.Int).Add(m.TotalReserves, mulTruncate(interest, m.ReserveFactor))
	m.BorrowIndex = new(big.Int).Add(m.BorrowIndex, mulTruncate(m.BorrowIndex, factorExp))
	return nil
}

// checkExchangeRate enforces the monotonic exchange rate invariant. A
// decrease is a defect, surfaced loudly rather than clamped.
func checkExchangeRate(s State, m *MarketState) error {
	rate := exchangeRateStored(s, m)
	if rate.Cmp(m.ExchangeRateFloor) < 0 {
		return ErrExchangeRateDecreased
	}
	m.ExchangeRateFloor = rate
	return nil
}

// Accrue commits an interest accrual for the market at the current block.
func (e *Engine) Accrue(asset string) error {
	return e.exec(func(s State) error {
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		if err := e.accrue(s, market); err != nil {
			return err
		}
		return s.PutMarket(market)
	})
}

// Mint deposits underlying into the market and credits receipt tokens at the
// current exchange rate. The market is entered on the account's behalf so the
// new collateral participates in solvency accounting. Returns the minted
// token amount.
func (e *Engine) Mint(account, asset string, amount *big.Int) (*big.Int, error) {
	minted := new(big.Int)
	err := e.exec(func(s State) error {
		if err := nativecommon.Guard(e.pauses, moduleName, ActionMint); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		if err := e.accrue(s, market); err != nil {
			return err
		}

		// Rate is read before cash moves so the deposit itself does not
		// dilute the price paid.
		rate := exchangeRateStored(s, market)
		if err := transfer(s, asset, account, MarketAccount(asset), amount); err != nil {
			return err
		}
		minted.Set(expDiv(amount, rate))

		if err := enterMarket(s, account, asset, e.maxAssets); err != nil {
			return err
		}

		position, err := s.Position(asset, account)
		if err != nil {
			return err
		}
		position = positionOrEmpty(position, account)
		position.Tokens = new(big.Int).Add(position.Tokens, minted)
		if err := s.PutPosition(asset, position); err != nil {
			return err
		}

		market.TotalSupply = new(big.Int).Add(market.TotalSupply, minted)
		if err := checkExchangeRate(s, market); err != nil {
			return err
		}
		return s.PutMarket(market)
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Redeem burns receipt tokens and releases the corresponding underlying. The
// call is rejected when removing that collateral would leave the account with
// a shortfall. Returns the underlying amount released.
func (e *Engine) Redeem(account, asset string, tokens *big.Int) (*big.Int, error) {
	redeemed := new(big.Int)
	err := e.exec(func(s State) error {
		return e.redeem(s, account, asset, tokens, redeemed)
	})
	if err != nil {
		return nil, err
	}
	return redeemed, nil
}

// RedeemUnderlying redeems by underlying amount instead of token amount. The
// token burn rounds up so the redeemer, not the pool, absorbs the rounding.
func (e *Engine) RedeemUnderlying(account, asset string, amount *big.Int) (*big.Int, error) {
	redeemed := new(big.Int)
	err := e.exec(func(s State) error {
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		if err := e.accrue(s, market); err != nil {
			return err
		}
		if err := s.PutMarket(market); err != nil {
			return err
		}
		tokens := expDivCeil(amount, exchangeRateStored(s, market))
		return e.redeem(s, account, asset, tokens, redeemed)
	})
	if err != nil {
		return nil, err
	}
	return redeemed, nil
}

func (e *Engine) redeem(s State, account, asset string, tokens *big.Int, redeemed *big.Int) error {
	if err := nativecommon.Guard(e.pauses, moduleName, ActionRedeem); err != nil {
		return err
	}
	if tokens == nil || tokens.Sign() <= 0 {
		return ErrInvalidAmount
	}
	market, err := listedMarket(s, asset)
	if err != nil {
		return err
	}
	if err := e.accrue(s, market); err != nil {
		return err
	}
	if err := s.PutMarket(market); err != nil {
		return err
	}

	position, err := s.Position(asset, account)
	if err != nil {
		return err
	}
	position = positionOrEmpty(position, account)
	if position.Tokens.Cmp(tokens) < 0 {
		return ErrInsufficientBalance
	}

	// Hypothetically drop the redeemed collateral and recheck solvency.
	_, shortfall, err := e.hypotheticalLiquidity(s, account, asset, tokens, nil)
	if err != nil {
		return err
	}
	if shortfall.Sign() > 0 {
		return ErrInsufficientLiquidity
	}

	market, err = listedMarket(s, asset)
	if err != nil {
		return err
	}
	rate := exchangeRateStored(s, market)
	redeemed.Set(mulTruncate(tokens, rate))

	cash := s.Balance(MarketAccount(asset), asset)
	if cash.Cmp(redeemed) < 0 {
		return ErrInsufficientCash
	}
	if err := transfer(s, asset, MarketAccount(asset), account, redeemed); err != nil {
		return err
	}

	position.Tokens = new(big.Int).Sub(position.Tokens, tokens)
	if err := s.PutPosition(asset, position); err != nil {
		return err
	}
	market.TotalSupply = new(big.Int).Sub(market.TotalSupply, tokens)
	if err := checkExchangeRate(s, market); err != nil {
		return err
	}
	return s.PutMarket(market)
}

// Borrow draws underlying against the account's entered collateral. The
// account must remain strictly solvent after the draw: borrowing exactly to
// the boundary is rejected.
func (e *Engine) Borrow(account, asset string, amount *big.Int) error {
	return e.exec(func(s State) error {
		if err := nativecommon.Guard(e.pauses, moduleName, ActionBorrow); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		if err := e.accrue(s, market); err != nil {
			return err
		}

		cash := s.Balance(MarketAccount(asset), asset)
		if cash.Cmp(amount) < 0 {
			return ErrInsufficientCash
		}
		projected := new(big.Int).Add(market.TotalBorrows, amount)
		if market.BorrowCap.Sign() > 0 && projected.Cmp(market.BorrowCap) > 0 {
			return ErrBorrowCapExceeded
		}
		usage, err := nativecommon.CheckWindowQuota(
			market.PerBlockBorrowCap,
			e.blockHeight,
			nativecommon.WindowUsage{Block: market.WindowBlock, Used: market.WindowBorrows},
			amount,
		)
		if err != nil {
			return ErrBorrowCapExceeded
		}
		market.WindowBlock = usage.Block
		market.WindowBorrows = usage.Used
		if err := s.PutMarket(market); err != nil {
			return err
		}

		if err := enterMarket(s, account, asset, e.maxAssets); err != nil {
			return err
		}

		liquidity, shortfall, err := e.hypotheticalLiquidity(s, account, asset, nil, amount)
		if err != nil {
			return err
		}
		if shortfall.Sign() > 0 || liquidity.Sign() == 0 {
			// Healthy means strictly above the boundary.
			return ErrInsufficientLiquidity
		}

		market, err = listedMarket(s, asset)
		if err != nil {
			return err
		}
		position, err := s.Position(asset, account)
		if err != nil {
			return err
		}
		position = positionOrEmpty(position, account)

		owed := borrowBalance(position, market)
		position.BorrowPrincipal = new(big.Int).Add(owed, amount)
		position.BorrowIndex = new(big.Int).Set(market.BorrowIndex)
		if err := s.PutPosition(asset, position); err != nil {
			return err
		}

		market.TotalBorrows = new(big.Int).Add(market.TotalBorrows, amount)
		if err := s.PutMarket(market); err != nil {
			return err
		}
		return transfer(s, asset, MarketAccount(asset), account, amount)
	})
}

// RepayBorrow pays down the account's borrow. Repaying more than the
// outstanding balance is rejected outright rather than silently refunded.
// Returns the amount applied.
func (e *Engine) RepayBorrow(account, asset string, amount *big.Int) (*big.Int, error) {
	repaid := new(big.Int)
	err := e.exec(func(s State) error {
		if err := nativecommon.Guard(e.pauses, moduleName, ActionRepay); err != nil {
			return err
		}
		applied, err := e.repayBorrow(s, account, account, asset, amount)
		if err != nil {
			return err
		}
		repaid.Set(applied)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repaid, nil
}

// repayBorrow reduces borrower debt using payer's funds within an open
// working state. Shared by RepayBorrow and the liquidation repay leg.
func (e *Engine) repayBorrow(s State, payer, borrower, asset string, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	market, err := listedMarket(s, asset)
	if err != nil {
		return nil, err
	}
	if err := e.accrue(s, market); err != nil {
		return nil, err
	}

	position, err := s.Position(asset, borrower)
	if err != nil {
		return nil, err
	}
	position = positionOrEmpty(position, borrower)
	owed := borrowBalance(position, market)
	if amount.Cmp(owed) > 0 {
		return nil, ErrRepayTooMuch
	}

	if err := transfer(s, asset, payer, MarketAccount(asset), amount); err != nil {
		return nil, err
	}

	position.BorrowPrincipal = new(big.Int).Sub(owed, amount)
	position.BorrowIndex = new(big.Int).Set(market.BorrowIndex)
	if err := s.PutPosition(asset, position); err != nil {
		return nil, err
	}

	market.TotalBorrows = clampZero(new(big.Int).Sub(market.TotalBorrows, amount))
	if err := s.PutMarket(market); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

// ReduceReserves pays accumulated protocol reserves out to a recipient.
func (e *Engine) ReduceReserves(asset, recipient string, amount *big.Int) error {
	return e.exec(func(s State) error {
		if amount == nil || amount.Sign() <= 0 {
			return ErrInvalidAmount
		}
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		if err := e.accrue(s, market); err != nil {
			return err
		}
		if market.TotalReserves.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		cash := s.Balance(MarketAccount(asset), asset)
		if cash.Cmp(amount) < 0 {
			return ErrInsufficientCash
		}
		if err := transfer(s, asset, MarketAccount(asset), recipient, amount); err != nil {
			return err
		}
		market.TotalReserves = new(big.Int).Sub(market.TotalReserves, amount)
		if err := checkExchangeRate(s, market); err != nil {
			return err
		}
		return s.PutMarket(market)
	})
}

// --- views -------------------------------------------------------------------

// ExchangeRate reports the market's underlying-per-token rate with interest
// accrued to the current block.
func (e *Engine) ExchangeRate(asset string) (*big.Int, error) {
	scratch, err := e.view()
	if err != nil {
		return nil, err
	}
	market, err := listedMarket(scratch, asset)
	if err != nil {
		return nil, err
	}
	if err := e.accrue(scratch, market); err != nil {
		return nil, err
	}
	return exchangeRateStored(scratch, market), nil
}

// BorrowBalanceOf reports the account's current debt in the market, interest
// included.
func (e *Engine) BorrowBalanceOf(account, asset string) (*big.Int, error) {
	scratch, err := e.view()
	if err != nil {
		return nil, err
	}
	market, err := listedMarket(scratch, asset)
	if err != nil {
		return nil, err
	}
	if err := e.accrue(scratch, market); err != nil {
		return nil, err
	}
	position, err := scratch.Position(asset, account)
	if err != nil {
		return nil, err
	}
	return borrowBalance(positionOrEmpty(position, account), market), nil
}

// TokenBalanceOf reports the account's receipt token balance in the market.
func (e *Engine) TokenBalanceOf(account, asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	position, err := e.state.Position(asset, account)
	if err != nil {
		return nil, err
	}
	return copyBig(positionOrEmpty(position, account).Tokens), nil
}

// MarketSnapshot returns a copy of the stored market record.
func (e *Engine) MarketSnapshot(asset string) (*MarketState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return listedMarket(e.state, asset)
}

// ListMarkets returns the listed market assets.
func (e *Engine) ListMarkets() ([]string, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Markets()
}
