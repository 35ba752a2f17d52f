package lending

import (
	"math/big"
	"strings"
	"sync"
)

// PriceOracle maps an asset identifier to its price, expressed as an
// 18-decimal mantissa. Implementations own freshness; the engine treats a
// returned price as authoritative and aborts on ErrPriceUnavailable rather
// than substituting a default.
type PriceOracle interface {
	Price(asset string) (*big.Int, error)
}

// SimpleOracle is a mutable in-memory price feed used by the liquidator
// daemon and tests.
type SimpleOracle struct {
	mu     sync.RWMutex
	prices map[string]*big.Int
}

// NewSimpleOracle constructs an empty oracle.
func NewSimpleOracle() *SimpleOracle {
	return &SimpleOracle{prices: make(map[string]*big.Int)}
}

// SetPrice records the price for an asset. Non-positive prices clear the
// quote, making the asset unpriced.
func (o *SimpleOracle) SetPrice(asset string, price *big.Int) {
	if o == nil {
		return
	}
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if price == nil || price.Sign() <= 0 {
		delete(o.prices, asset)
		return
	}
	o.prices[asset] = new(big.Int).Set(price)
}

// Price returns the quoted price or ErrPriceUnavailable when the asset has no
// quote.
func (o *SimpleOracle) Price(asset string) (*big.Int, error) {
	if o == nil {
		return nil, ErrPriceUnavailable
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[strings.TrimSpace(asset)]
	if !ok {
		return nil, ErrPriceUnavailable
	}
	return new(big.Int).Set(price), nil
}
