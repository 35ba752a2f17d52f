package common

import (
	"errors"
	"math/big"
	"testing"
)

func TestCheckWindowQuota(t *testing.T) {
	cap := big.NewInt(10_000)

	usage, err := CheckWindowQuota(cap, 1, WindowUsage{}, big.NewInt(6_000))
	if err != nil {
		t.Fatalf("first draw: %v", err)
	}
	if usage.Block != 1 || usage.Used.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("unexpected usage: %+v", usage)
	}

	if _, err := CheckWindowQuota(cap, 1, usage, big.NewInt(6_000)); !errors.Is(err, ErrWindowQuotaExceeded) {
		t.Fatalf("expected ErrWindowQuotaExceeded, got %v", err)
	}

	// a new block resets the window
	usage, err = CheckWindowQuota(cap, 2, usage, big.NewInt(6_000))
	if err != nil {
		t.Fatalf("next block draw: %v", err)
	}
	if usage.Block != 2 || usage.Used.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("unexpected usage after reset: %+v", usage)
	}
}

func TestCheckWindowQuotaDisabled(t *testing.T) {
	usage, err := CheckWindowQuota(nil, 1, WindowUsage{}, big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("nil cap must disable the quota: %v", err)
	}
	if usage.Used.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if _, err := CheckWindowQuota(big.NewInt(0), 1, WindowUsage{}, big.NewInt(1)); err != nil {
		t.Fatalf("zero cap must disable the quota: %v", err)
	}
}

func TestCheckWindowQuotaRejectionPreservesUsage(t *testing.T) {
	cap := big.NewInt(100)
	usage, err := CheckWindowQuota(cap, 5, WindowUsage{}, big.NewInt(90))
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	rejected, err := CheckWindowQuota(cap, 5, usage, big.NewInt(20))
	if !errors.Is(err, ErrWindowQuotaExceeded) {
		t.Fatalf("expected ErrWindowQuotaExceeded, got %v", err)
	}
	if rejected.Used.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("rejection must not consume quota: %+v", rejected)
	}
}
