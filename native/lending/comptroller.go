package lending

import (
	"fmt"
	"math/big"
	"strings"
)

// SupportMarket admits a market to the protocol. The collateral factor
// defaults to zero so the market is inert as collateral until governance sets
// a factor. initialExchangeRate seeds the underlying-per-token rate while the
// market has no supply; nil defaults to 1.0.
func (e *Engine) SupportMarket(asset string, initialExchangeRate *big.Int) error {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return ErrMarketNotListed
	}
	return e.exec(func(s State) error {
		existing, err := s.Market(asset)
		if err != nil {
			return err
		}
		if existing != nil && existing.Listed {
			return ErrAlreadyListed
		}
		market := &MarketState{
			Asset:               asset,
			Listed:              true,
			InitialExchangeRate: copyBig(initialExchangeRate),
			AccrualBlock:        e.blockHeight,
		}
		market.ensureDefaults()
		return s.PutMarket(market)
	})
}

// SetCollateralFactor assigns the fraction of the market's supplied value
// usable as borrowing power. The market must be listed, the factor must not
// exceed 1.0, and the asset must be priced: risk cannot be assessed against
// unpriced collateral.
func (e *Engine) SetCollateralFactor(asset string, factor *big.Int) error {
	if factor == nil || factor.Sign() < 0 || factor.Cmp(expScale) > 0 {
		return ErrInvalidFactor
	}
	return e.exec(func(s State) error {
		market, err := listedMarket(s, asset)
		if err != nil {
			return ErrInvalidFactor
		}
		if e.oracle == nil {
			return ErrPriceUnavailable
		}
		if _, err := e.oracle.Price(asset); err != nil {
			return fmt.Errorf("%w: %s", ErrPriceUnavailable, asset)
		}
		market.CollateralFactor = new(big.Int).Set(factor)
		return s.PutMarket(market)
	})
}

// SetReserveFactor assigns the interest share routed to protocol reserves.
func (e *Engine) SetReserveFactor(asset string, factor *big.Int) error {
	if factor == nil || factor.Sign() < 0 || factor.Cmp(expScale) > 0 {
		return ErrInvalidFactor
	}
	return e.exec(func(s State) error {
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		market.ReserveFactor = new(big.Int).Set(factor)
		return s.PutMarket(market)
	})
}

// SetBorrowCap bounds the market's total outstanding borrows. Zero removes
// the cap.
func (e *Engine) SetBorrowCap(asset string, cap *big.Int) error {
	return e.exec(func(s State) error {
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		market.BorrowCap = bigOrZero(cap)
		return s.PutMarket(market)
	})
}

// SetPerBlockBorrowCap throttles borrow volume within one block. Zero removes
// the throttle.
func (e *Engine) SetPerBlockBorrowCap(asset string, cap *big.Int) error {
	return e.exec(func(s State) error {
		market, err := listedMarket(s, asset)
		if err != nil {
			return err
		}
		market.PerBlockBorrowCap = bigOrZero(cap)
		return s.PutMarket(market)
	})
}

// EnterMarkets adds the listed markets to the account's collateral set.
// Entry is idempotent; already-entered markets are skipped. An unlisted
// market aborts the call.
func (e *Engine) EnterMarkets(account string, assets []string) error {
	return e.exec(func(s State) error {
		for _, asset := range assets {
			if err := enterMarket(s, account, asset, e.maxAssets); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExitMarket removes the market from the account's collateral set. The
// account must hold no receipt tokens and no outstanding borrow there:
// exiting with a balance would silently drop collateral from solvency
// accounting.
func (e *Engine) ExitMarket(account, asset string) error {
	return e.exec(func(s State) error {
		position, err := s.Position(asset, account)
		if err != nil {
			return err
		}
		if position != nil {
			position.ensureDefaults()
			if position.Tokens.Sign() != 0 || position.BorrowPrincipal.Sign() != 0 {
				return ErrNonzeroBalance
			}
		}
		entered, err := s.Membership(account)
		if err != nil {
			return err
		}
		kept := entered[:0]
		for _, a := range entered {
			if a != asset {
				kept = append(kept, a)
			}
		}
		return s.PutMembership(account, kept)
	})
}

// GetAssetsIn returns the account's entered markets in insertion order.
func (e *Engine) GetAssetsIn(account string) ([]string, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Membership(account)
}

// Accounts lists every account known to the comptroller.
func (e *Engine) Accounts() ([]string, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Accounts()
}

// GetAccountLiquidity computes the account's spare borrowing power and
// shortfall across its entered markets, with interest accrued to the current
// block. Exactly one of the results is nonzero unless both are zero. Any
// entered market without an oracle price aborts the computation.
func (e *Engine) GetAccountLiquidity(account string) (*big.Int, *big.Int, error) {
	scratch, err := e.view()
	if err != nil {
		return nil, nil, err
	}
	return e.hypotheticalLiquidity(scratch, account, "", nil, nil)
}

// hypotheticalLiquidity runs the core solvency algorithm over a working
// state, optionally projecting the effect of redeeming redeemTokens of, or
// borrowing borrowAmount from, modifyAsset. Markets are accrued on the
// working state before their balances are read. All products truncate toward
// zero, which keeps the check conservative in the protocol's favour.
func (e *Engine) hypotheticalLiquidity(s State, account, modifyAsset string, redeemTokens, borrowAmount *big.Int) (*big.Int, *big.Int, error) {
	if e.oracle == nil {
		return nil, nil, ErrPriceUnavailable
	}
	entered, err := s.Membership(account)
	if err != nil {
		return nil, nil, err
	}

	sumCollateral := big.NewInt(0)
	sumDebt := big.NewInt(0)

	for _, asset := range entered {
		market, err := listedMarket(s, asset)
		if err != nil {
			return nil, nil, err
		}
		if err := e.accrue(s, market); err != nil {
			return nil, nil, err
		}
		if err := s.PutMarket(market); err != nil {
			return nil, nil, err
		}

		price, err := e.oracle.Price(asset)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, asset)
		}
		rate := exchangeRateStored(s, market)

		position, err := s.Position(asset, account)
		if err != nil {
			return nil, nil, err
		}
		position = positionOrEmpty(position, account)

		// tokens -> underlying -> value -> discounted value
		underlying := mulTruncate(position.Tokens, rate)
		value := mulTruncate(underlying, price)
		sumCollateral.Add(sumCollateral, mulTruncate(value, market.CollateralFactor))

		debt := borrowBalance(position, market)
		sumDebt.Add(sumDebt, mulTruncate(debt, price))

		if asset == modifyAsset {
			if redeemTokens != nil && redeemTokens.Sign() > 0 {
				redeemed := mulTruncate(mulTruncate(mulTruncate(redeemTokens, rate), price), market.CollateralFactor)
				sumDebt.Add(sumDebt, redeemed)
			}
			if borrowAmount != nil && borrowAmount.Sign() > 0 {
				sumDebt.Add(sumDebt, mulTruncate(borrowAmount, price))
			}
		}
	}

	if sumCollateral.Cmp(sumDebt) >= 0 {
		return new(big.Int).Sub(sumCollateral, sumDebt), big.NewInt(0), nil
	}
	return big.NewInt(0), new(big.Int).Sub(sumDebt, sumCollateral), nil
}

func enterMarket(s State, account, asset string, maxAssets int) error {
	if _, err := listedMarket(s, asset); err != nil {
		return err
	}
	entered, err := s.Membership(account)
	if err != nil {
		return err
	}
	for _, a := range entered {
		if a == asset {
			return nil
		}
	}
	if maxAssets > 0 && len(entered) >= maxAssets {
		return ErrTooManyAssets
	}
	return s.PutMembership(account, append(entered, asset))
}

func listedMarket(s State, asset string) (*MarketState, error) {
	market, err := s.Market(asset)
	if err != nil {
		return nil, err
	}
	if market == nil || !market.Listed {
		return nil, ErrMarketNotListed
	}
	market.ensureDefaults()
	return market, nil
}

func positionOrEmpty(p *Position, account string) *Position {
	if p == nil {
		p = &Position{Account: account}
	}
	p.ensureDefaults()
	return p
}

// borrowBalance scales the stored principal by the growth of the borrow
// index since the position's snapshot.
func borrowBalance(p *Position, m *MarketState) *big.Int {
	if p == nil || p.BorrowPrincipal == nil || p.BorrowPrincipal.Sign() == 0 {
		return big.NewInt(0)
	}
	principal := new(big.Int).Mul(p.BorrowPrincipal, m.BorrowIndex)
	return principal.Quo(principal, p.BorrowIndex)
}

// exchangeRateStored derives underlying-per-token from the market's balance
// sheet: (cash + borrows - reserves) / supply. An empty market reports the
// configured initial rate.
func exchangeRateStored(s State, m *MarketState) *big.Int {
	if m.TotalSupply == nil || m.TotalSupply.Sign() == 0 {
		return new(big.Int).Set(m.InitialExchangeRate)
	}
	cash := s.Balance(MarketAccount(m.Asset), m.Asset)
	numerator := new(big.Int).Add(cash, m.TotalBorrows)
	numerator.Sub(numerator, m.TotalReserves)
	return expDiv(clampZero(numerator), m.TotalSupply)
}
