package lending

import (
	"math/big"
	"testing"
)

func rat(f float64) *big.Rat {
	r := new(big.Rat)
	r.SetFloat64(f)
	return r
}

func TestUtilisation(t *testing.T) {
	if Utilisation(big.NewInt(100), big.NewInt(0)).Sign() != 0 {
		t.Fatalf("expected zero utilisation with no borrows")
	}
	u := Utilisation(big.NewInt(930_000), big.NewInt(70_000))
	want := new(big.Rat).SetFrac64(7, 100)
	if u.Cmp(want) != 0 {
		t.Fatalf("utilisation: got %s want %s", u, want)
	}
}

func TestWhitePaperModel(t *testing.T) {
	model := NewWhitePaperModel(0.02, 0.1)
	base := model.BorrowAPR(big.NewInt(100), big.NewInt(0))
	if base.Cmp(rat(0.02)) != 0 {
		t.Fatalf("idle market should pay the base rate, got %s", base)
	}
	// base + slope * U at U = 0.5
	want := new(big.Rat).Add(rat(0.02), new(big.Rat).Mul(rat(0.1), new(big.Rat).SetFrac64(1, 2)))
	apr := model.BorrowAPR(big.NewInt(500), big.NewInt(500))
	if apr.Cmp(want) != 0 {
		t.Fatalf("apr at half utilisation: got %s want %s", apr, want)
	}
}

func TestJumpRateModelKink(t *testing.T) {
	model := NewJumpRateModel(0, 0.1, 1.0, 0.8)
	// below the kink: slope1 * U
	below := model.BorrowAPR(big.NewInt(500), big.NewInt(500))
	wantBelow := new(big.Rat).Mul(rat(0.1), new(big.Rat).SetFrac64(1, 2))
	if below.Cmp(wantBelow) != 0 {
		t.Fatalf("below kink: got %s want %s", below, wantBelow)
	}
	// above the kink the second slope takes over for the excess utilisation
	utilisation := new(big.Rat).SetFrac64(9, 10)
	excess := new(big.Rat).Sub(utilisation, rat(0.8))
	wantAbove := new(big.Rat).Mul(rat(0.1), rat(0.8))
	wantAbove.Add(wantAbove, new(big.Rat).Mul(rat(1.0), excess))
	above := model.BorrowAPR(big.NewInt(100), big.NewInt(900))
	if above.Cmp(wantAbove) != 0 {
		t.Fatalf("above kink: got %s want %s", above, wantAbove)
	}
}

func TestNilModelsReturnZero(t *testing.T) {
	var wp *WhitePaperModel
	if wp.BorrowAPR(big.NewInt(1), big.NewInt(1)).Sign() != 0 {
		t.Fatalf("nil whitepaper model should report zero")
	}
	var jump *JumpRateModel
	if jump.BorrowAPR(big.NewInt(1), big.NewInt(1)).Sign() != 0 {
		t.Fatalf("nil jump model should report zero")
	}
}
