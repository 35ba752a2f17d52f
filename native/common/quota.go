package common

import (
	"errors"
	"math/big"
)

var (
	ErrWindowQuotaExceeded = errors.New("per-block quota exceeded")
)

// WindowUsage tracks volume consumed within a single block window.
type WindowUsage struct {
	Block uint64
	Used  *big.Int
}

// CheckWindowQuota verifies that adding amount to the usage recorded for the
// current block stays within cap. A nil or non-positive cap disables the
// quota. The returned usage reflects the updated counters when the quota is
// not exceeded; on rejection the previous usage is returned unchanged.
func CheckWindowQuota(cap *big.Int, nowBlock uint64, prev WindowUsage, amount *big.Int) (WindowUsage, error) {
	next := prev
	if prev.Block != nowBlock {
		next = WindowUsage{Block: nowBlock, Used: big.NewInt(0)}
	}
	if next.Used == nil {
		next.Used = big.NewInt(0)
	}
	if amount != nil && amount.Sign() > 0 {
		next.Used = new(big.Int).Add(next.Used, amount)
	}
	if cap != nil && cap.Sign() > 0 && next.Used.Cmp(cap) > 0 {
		return prev, ErrWindowQuotaExceeded
	}
	return next, nil
}
