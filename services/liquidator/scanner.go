package liquidator

import (
	"math/big"
	"sort"

	"lendex/native/lending"
)

// Candidate is an account eligible for liquidation together with the order
// the scanner proposes for it.
type Candidate struct {
	Borrower  string
	Shortfall *big.Int
	Order     lending.LiquidationOrder
}

// Scanner sweeps every known account for shortfall and proposes liquidation
// orders: repay the borrower's most valuable debt, seize from their most
// valuable collateral, sized to the protocol close factor.
type Scanner struct {
	engine *lending.Engine
	oracle lending.PriceOracle
}

// NewScanner constructs a scanner over the engine and its price feed.
func NewScanner(engine *lending.Engine, oracle lending.PriceOracle) *Scanner {
	return &Scanner{engine: engine, oracle: oracle}
}

// Scan returns liquidation candidates ordered by descending shortfall.
// Accounts that cannot be evaluated (for example an unpriced entered market)
// are skipped; a stalled oracle must not stall the whole sweep.
func (s *Scanner) Scan() ([]Candidate, error) {
	accounts, err := s.engine.Accounts()
	if err != nil {
		return nil, err
	}
	candidates := make([]Candidate, 0)
	for _, account := range accounts {
		_, shortfall, err := s.engine.GetAccountLiquidity(account)
		if err != nil || shortfall.Sign() == 0 {
			continue
		}
		order, ok := s.buildOrder(account)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			Borrower:  account,
			Shortfall: shortfall,
			Order:     order,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Shortfall.Cmp(candidates[j].Shortfall) > 0
	})
	return candidates, nil
}

func (s *Scanner) buildOrder(borrower string) (lending.LiquidationOrder, bool) {
	assets, err := s.engine.GetAssetsIn(borrower)
	if err != nil {
		return lending.LiquidationOrder{}, false
	}

	var repayAsset, collateralAsset string
	var repayBalance *big.Int
	bestDebtValue := big.NewInt(0)
	bestCollateralValue := big.NewInt(0)

	for _, asset := range assets {
		price, err := s.oracle.Price(asset)
		if err != nil {
			continue
		}
		if owed, err := s.engine.BorrowBalanceOf(borrower, asset); err == nil && owed.Sign() > 0 {
			value := new(big.Int).Mul(owed, price)
			if value.Cmp(bestDebtValue) > 0 {
				bestDebtValue = value
				repayAsset = asset
				repayBalance = owed
			}
		}
		tokens, err := s.engine.TokenBalanceOf(borrower, asset)
		if err != nil || tokens.Sign() == 0 {
			continue
		}
		rate, err := s.engine.ExchangeRate(asset)
		if err != nil {
			continue
		}
		underlying := new(big.Int).Mul(tokens, rate)
		value := underlying.Mul(underlying, price)
		if value.Cmp(bestCollateralValue) > 0 {
			bestCollateralValue = value
			collateralAsset = asset
		}
	}

	if repayAsset == "" || collateralAsset == "" {
		return lending.LiquidationOrder{}, false
	}

	repayAmount := mulMantissa(repayBalance, s.engine.CloseFactor())
	if repayAmount.Sign() == 0 {
		return lending.LiquidationOrder{}, false
	}
	return lending.LiquidationOrder{
		Borrower:        borrower,
		RepayAsset:      repayAsset,
		CollateralAsset: collateralAsset,
		RepayAmount:     repayAmount,
	}, true
}

func mulMantissa(amount, mantissa *big.Int) *big.Int {
	if amount == nil || mantissa == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, mantissa)
	return product.Quo(product, big.NewInt(1e18))
}
