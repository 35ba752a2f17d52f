package lending

import "math/big"

// RateModel derives the annualised borrow rate from the market's cash on hand
// and outstanding borrows. The engine scales the APR down to the elapsed
// block delta during accrual.
type RateModel interface {
	BorrowAPR(cash, borrows *big.Int) *big.Rat
}

// Utilisation computes U = borrows / (cash + borrows). With no outstanding
// borrows the utilisation is defined as zero.
func Utilisation(cash, borrows *big.Int) *big.Rat {
	if borrows == nil || borrows.Sign() == 0 {
		return new(big.Rat)
	}
	total := new(big.Int).Add(bigOrZero(cash), borrows)
	if total.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(borrows, total)
}

// WhitePaperModel is the single-slope rate curve: APR = base + slope * U.
type WhitePaperModel struct {
	BaseRate *big.Rat
	Slope    *big.Rat
}

// NewWhitePaperModel constructs the model from decimal inputs, e.g. a 2% base
// rate is 0.02.
func NewWhitePaperModel(baseRate, slope float64) *WhitePaperModel {
	model := &WhitePaperModel{BaseRate: new(big.Rat), Slope: new(big.Rat)}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope.SetFloat64(slope)
	return model
}

func (m *WhitePaperModel) BorrowAPR(cash, borrows *big.Int) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	rate := cloneRat(m.BaseRate)
	utilisation := Utilisation(cash, borrows)
	if utilisation.Sign() == 0 {
		return rate
	}
	return rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope), utilisation))
}

// JumpRateModel applies a steeper second slope beyond the kink utilisation to
// defend pool liquidity.
type JumpRateModel struct {
	BaseRate *big.Rat
	Slope1   *big.Rat
	Slope2   *big.Rat
	Kink     *big.Rat
}

// NewJumpRateModel constructs the kinked model from decimal inputs.
func NewJumpRateModel(baseRate, slope1, slope2, kink float64) *JumpRateModel {
	model := &JumpRateModel{
		BaseRate: new(big.Rat),
		Slope1:   new(big.Rat),
		Slope2:   new(big.Rat),
		Kink:     new(big.Rat),
	}
	model.BaseRate.SetFloat64(baseRate)
	model.Slope1.SetFloat64(slope1)
	model.Slope2.SetFloat64(slope2)
	model.Kink.SetFloat64(kink)
	return model
}

func (m *JumpRateModel) BorrowAPR(cash, borrows *big.Int) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	rate := cloneRat(m.BaseRate)
	utilisation := Utilisation(cash, borrows)
	if utilisation.Sign() == 0 {
		return rate
	}
	kink := cloneRat(m.Kink)
	slope1 := cloneRat(m.Slope1)
	if kink.Sign() == 0 || utilisation.Cmp(kink) <= 0 {
		return rate.Add(rate, new(big.Rat).Mul(slope1, utilisation))
	}
	rate.Add(rate, new(big.Rat).Mul(slope1, kink))
	excess := new(big.Rat).Sub(utilisation, kink)
	return rate.Add(rate, new(big.Rat).Mul(cloneRat(m.Slope2), excess))
}

func cloneRat(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}

// DefaultRateModel is a reasonable starting curve with a modest base rate and
// a kink at 80% utilisation.
var DefaultRateModel = NewJumpRateModel(0.02, 0.15, 0.6, 0.8)
