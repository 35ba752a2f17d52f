package lending

import (
	"fmt"
	"math/big"

	nativecommon "lendex/native/common"
)

// LiquidationOrder describes one liquidation attempt: repay part of the
// borrower's debt in repayAsset and seize discounted collateral from
// collateralAsset. Orders are ephemeral; they are validated and either fully
// applied or rejected.
type LiquidationOrder struct {
	Borrower        string
	RepayAsset      string
	CollateralAsset string
	RepayAmount     *big.Int
}

// seizeGrant is the capability authorizing one cross-market collateral
// transfer. Only the validated liquidation path constructs it; markets never
// reach into each other's ledgers directly.
type seizeGrant struct {
	asset      string
	borrower   string
	liquidator string
	tokens     *big.Int
}

// LiquidateBorrowAllowed validates a liquidation without applying it.
func (e *Engine) LiquidateBorrowAllowed(borrower, repayAsset, collateralAsset string, repayAmount *big.Int) error {
	scratch, err := e.view()
	if err != nil {
		return err
	}
	return e.liquidateBorrowAllowed(scratch, borrower, repayAsset, collateralAsset, repayAmount)
}

func (e *Engine) liquidateBorrowAllowed(s State, borrower, repayAsset, collateralAsset string, repayAmount *big.Int) error {
	if repayAmount == nil || repayAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	repayMarket, err := listedMarket(s, repayAsset)
	if err != nil {
		return err
	}
	if _, err := listedMarket(s, collateralAsset); err != nil {
		return err
	}

	_, shortfall, err := e.hypotheticalLiquidity(s, borrower, "", nil, nil)
	if err != nil {
		return err
	}
	if shortfall.Sign() == 0 {
		return ErrBorrowerHealthy
	}

	// hypotheticalLiquidity accrued every entered market on s; reread the
	// repay market for the post-accrual debt.
	repayMarket, err = listedMarket(s, repayAsset)
	if err != nil {
		return err
	}
	position, err := s.Position(repayAsset, borrower)
	if err != nil {
		return err
	}
	owed := borrowBalance(positionOrEmpty(position, borrower), repayMarket)
	maxRepay := mulTruncate(owed, e.closeFactor)
	if repayAmount.Cmp(maxRepay) > 0 {
		return ErrTooMuchRepay
	}

	collateralPosition, err := s.Position(collateralAsset, borrower)
	if err != nil {
		return err
	}
	if positionOrEmpty(collateralPosition, borrower).Tokens.Sign() == 0 {
		return ErrCollateralNotHeld
	}
	return nil
}

// CalculateSeizeTokens prices a liquidation: the collateral receipt tokens
// owed for repaying repayAmount of the borrow, incentive included.
//
//	seize = repay * price(repay) * incentive / (price(coll) * exchangeRate(coll))
func (e *Engine) CalculateSeizeTokens(repayAsset, collateralAsset string, repayAmount *big.Int) (*big.Int, error) {
	scratch, err := e.view()
	if err != nil {
		return nil, err
	}
	collateralMarket, err := listedMarket(scratch, collateralAsset)
	if err != nil {
		return nil, err
	}
	if err := e.accrue(scratch, collateralMarket); err != nil {
		return nil, err
	}
	if err := scratch.PutMarket(collateralMarket); err != nil {
		return nil, err
	}
	return e.seizeTokens(scratch, collateralMarket, repayAsset, repayAmount)
}

func (e *Engine) seizeTokens(s State, collateralMarket *MarketState, repayAsset string, repayAmount *big.Int) (*big.Int, error) {
	if e.oracle == nil {
		return nil, ErrPriceUnavailable
	}
	repayPrice, err := e.oracle.Price(repayAsset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, repayAsset)
	}
	collateralPrice, err := e.oracle.Price(collateralMarket.Asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, collateralMarket.Asset)
	}
	rate := exchangeRateStored(s, collateralMarket)

	numerator := expMul(repayPrice, e.liquidationIncentive)
	denominator := expMul(collateralPrice, rate)
	if denominator.Sign() == 0 {
		return nil, ErrPriceUnavailable
	}
	return mulTruncate(repayAmount, expDiv(numerator, denominator)), nil
}

// LiquidateBorrow closes part of an unhealthy borrower's position: the
// liquidator supplies repayAmount of the borrowed asset and receives the
// priced collateral tokens. Both legs apply as one unit; any failure leaves
// every ledger untouched. Returns the seized token amount.
func (e *Engine) LiquidateBorrow(liquidator string, order LiquidationOrder) (*big.Int, error) {
	seized := new(big.Int)
	err := e.exec(func(s State) error {
		if err := nativecommon.Guard(e.pauses, moduleName, ActionLiquidate); err != nil {
			return err
		}
		if liquidator == order.Borrower {
			return ErrSelfLiquidation
		}
		if err := e.liquidateBorrowAllowed(s, order.Borrower, order.RepayAsset, order.CollateralAsset, order.RepayAmount); err != nil {
			return err
		}

		// Price the seizure before the repay leg lands so the repay
		// cannot shift the collateral market's exchange rate under it.
		collateralMarket, err := listedMarket(s, order.CollateralAsset)
		if err != nil {
			return err
		}
		tokens, err := e.seizeTokens(s, collateralMarket, order.RepayAsset, order.RepayAmount)
		if err != nil {
			return err
		}

		// Repay leg: liquidator funds extinguish borrower debt.
		if _, err := e.repayBorrow(s, liquidator, order.Borrower, order.RepayAsset, order.RepayAmount); err != nil {
			return err
		}

		// Seize leg: collateral receipt tokens move to the liquidator.
		grant := seizeGrant{
			asset:      order.CollateralAsset,
			borrower:   order.Borrower,
			liquidator: liquidator,
			tokens:     tokens,
		}
		if err := e.seize(s, grant); err != nil {
			return err
		}
		seized.Set(tokens)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seized, nil
}

// seize transfers collateral receipt tokens from borrower to liquidator under
// a grant. The seize is rejected, not truncated, when the borrower holds
// fewer tokens than the grant demands; clamping would make the seize math
// unauditable.
func (e *Engine) seize(s State, grant seizeGrant) error {
	borrowerPosition, err := s.Position(grant.asset, grant.borrower)
	if err != nil {
		return err
	}
	borrowerPosition = positionOrEmpty(borrowerPosition, grant.borrower)
	if borrowerPosition.Tokens.Cmp(grant.tokens) < 0 {
		return ErrInsufficientSeizeAmount
	}

	liquidatorPosition, err := s.Position(grant.asset, grant.liquidator)
	if err != nil {
		return err
	}
	liquidatorPosition = positionOrEmpty(liquidatorPosition, grant.liquidator)

	borrowerPosition.Tokens = new(big.Int).Sub(borrowerPosition.Tokens, grant.tokens)
	liquidatorPosition.Tokens = new(big.Int).Add(liquidatorPosition.Tokens, grant.tokens)

	if err := s.PutPosition(grant.asset, borrowerPosition); err != nil {
		return err
	}
	if err := s.PutPosition(grant.asset, liquidatorPosition); err != nil {
		return err
	}
	// Seized collateral joins the liquidator's solvency accounting. The
	// entered-market cap does not apply to collateral received through
	// liquidation.
	return enterMarket(s, grant.liquidator, grant.asset, 0)
}
