package liquidator

import (
	"errors"
	"math/big"

	"lendex/native/lending"
)

var ErrVenueIlliquid = errors.New("swap: venue lacks output inventory")

// Swapper converts one underlying asset into another at an externally quoted
// rate. The liquidator uses it to turn redeemed collateral back into the
// flash-loaned repay asset.
type Swapper interface {
	Swap(l Ledger, account, fromAsset, toAsset string, amount *big.Int) (*big.Int, error)
}

// OracleSwapper fills swaps against a venue account's inventory at the oracle
// price, minus a fee. It stands in for an external exchange; the venue's
// depth bounds what the liquidator can convert.
type OracleSwapper struct {
	Oracle lending.PriceOracle
	Venue  string
	FeeBps uint64
}

// Swap moves amount of fromAsset to the venue and returns the priced
// toAsset output to the account. Returns the output amount.
func (x *OracleSwapper) Swap(l Ledger, account, fromAsset, toAsset string, amount *big.Int) (*big.Int, error) {
	if x == nil || x.Oracle == nil {
		return nil, lending.ErrPriceUnavailable
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, lending.ErrInvalidAmount
	}
	fromPrice, err := x.Oracle.Price(fromAsset)
	if err != nil {
		return nil, err
	}
	toPrice, err := x.Oracle.Price(toAsset)
	if err != nil {
		return nil, err
	}
	if toPrice.Sign() == 0 {
		return nil, lending.ErrPriceUnavailable
	}

	gross := new(big.Int).Mul(amount, fromPrice)
	gross.Quo(gross, toPrice)
	fee := new(big.Int).Mul(gross, new(big.Int).SetUint64(x.FeeBps))
	fee.Quo(fee, big.NewInt(10_000))
	out := new(big.Int).Sub(gross, fee)
	if out.Sign() <= 0 {
		return nil, ErrVenueIlliquid
	}
	if l.BalanceOf(x.Venue, toAsset).Cmp(out) < 0 {
		return nil, ErrVenueIlliquid
	}

	if err := l.Transfer(fromAsset, account, x.Venue, amount); err != nil {
		return nil, err
	}
	if err := l.Transfer(toAsset, x.Venue, account, out); err != nil {
		return nil, err
	}
	return out, nil
}
