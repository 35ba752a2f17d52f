package lending

import (
	"math/big"
)

var (
	expScale    = mustBigInt("1000000000000000000") // 1e18
	basisPoints = big.NewInt(10_000)
)

const blocksPerYear = 31_536_000

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// expMul multiplies two 18-decimal fixed-point mantissas, truncating toward
// zero. Truncation keeps every solvency check conservative in the protocol's
// favour.
func expMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, expScale)
}

// expDiv divides two 18-decimal mantissas, truncating toward zero. A zero
// divisor yields zero rather than panicking; callers guard the cases where
// that matters.
func expDiv(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, expScale)
	return scaled.Quo(scaled, b)
}

// expDivCeil divides rounding up. Used where truncation would round in the
// caller's favour instead of the protocol's (redeem-by-underlying).
func expDivCeil(a, b *big.Int) *big.Int {
	if a == nil || b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Int).Mul(a, expScale)
	quo, rem := new(big.Int).QuoRem(scaled, b, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// mulTruncate scales an integer amount by an 18-decimal mantissa, truncating.
func mulTruncate(amount, mantissa *big.Int) *big.Int {
	if amount == nil || mantissa == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(amount, mantissa)
	return product.Quo(product, expScale)
}

// ratToExp converts a rational to an 18-decimal mantissa, truncating.
func ratToExp(r *big.Rat) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(expScale))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

func bpsToExp(bps uint64) *big.Int {
	v := new(big.Int).SetUint64(bps)
	v.Mul(v, expScale)
	return v.Quo(v, basisPoints)
}

func clampZero(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return big.NewInt(0)
	}
	return v
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
