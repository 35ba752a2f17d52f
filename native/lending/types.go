package lending

import "math/big"

// MarketState captures the per-asset ledger for a listed market. Amounts are
// denominated in the smallest underlying unit; mantissa fields carry 18
// decimals.
type MarketState struct {
	// Asset is the underlying asset identifier the market wraps.
	Asset string
	// Listed reports whether the comptroller has admitted the market.
	Listed bool
	// CollateralFactor is the fraction of supplied value usable as
	// borrowing power, 18-decimal mantissa in [0, 1e18].
	CollateralFactor *big.Int
	// TotalSupply is the outstanding receipt token supply, in token units.
	TotalSupply *big.Int
	// TotalBorrows is the outstanding borrowed underlying including
	// accrued interest.
	TotalBorrows *big.Int
	// TotalReserves is the underlying amount set aside for the protocol.
	TotalReserves *big.Int
	// ReserveFactor is the interest share routed to reserves at accrual,
	// 18-decimal mantissa.
	ReserveFactor *big.Int
	// BorrowIndex is the cumulative interest index applied to borrower
	// debt, 18-decimal mantissa, monotonically non-decreasing.
	BorrowIndex *big.Int
	// BorrowCap bounds TotalBorrows when positive; zero means unlimited.
	BorrowCap *big.Int
	// PerBlockBorrowCap throttles borrow volume within a single block when
	// positive; zero means unlimited.
	PerBlockBorrowCap *big.Int
	// WindowBorrows and WindowBlock carry the per-block borrow quota usage.
	WindowBorrows *big.Int
	WindowBlock   uint64
	// InitialExchangeRate seeds the exchange rate while TotalSupply is
	// zero.
	InitialExchangeRate *big.Int
	// ExchangeRateFloor records the highest exchange rate observed. The
	// rate decreasing is an invariant violation, not a recoverable state.
	ExchangeRateFloor *big.Int
	// AccrualBlock is the height at which interest was last accrued.
	AccrualBlock uint64
}

// Clone returns a deep copy of the market state.
func (m *MarketState) Clone() *MarketState {
	if m == nil {
		return nil
	}
	clone := &MarketState{
		Asset:        m.Asset,
		Listed:       m.Listed,
		AccrualBlock: m.AccrualBlock,
		WindowBlock:  m.WindowBlock,
	}
	clone.PerBlockBorrowCap = copyBig(m.PerBlockBorrowCap)
	clone.WindowBorrows = copyBig(m.WindowBorrows)
	clone.CollateralFactor = copyBig(m.CollateralFactor)
	clone.TotalSupply = copyBig(m.TotalSupply)
	clone.TotalBorrows = copyBig(m.TotalBorrows)
	clone.TotalReserves = copyBig(m.TotalReserves)
	clone.ReserveFactor = copyBig(m.ReserveFactor)
	clone.BorrowIndex = copyBig(m.BorrowIndex)
	clone.BorrowCap = copyBig(m.BorrowCap)
	clone.InitialExchangeRate = copyBig(m.InitialExchangeRate)
	clone.ExchangeRateFloor = copyBig(m.ExchangeRateFloor)
	return clone
}

func (m *MarketState) ensureDefaults() {
	if m == nil {
		return
	}
	m.CollateralFactor = bigOrZero(m.CollateralFactor)
	m.TotalSupply = bigOrZero(m.TotalSupply)
	m.TotalBorrows = bigOrZero(m.TotalBorrows)
	m.TotalReserves = bigOrZero(m.TotalReserves)
	m.ReserveFactor = bigOrZero(m.ReserveFactor)
	m.BorrowCap = bigOrZero(m.BorrowCap)
	m.PerBlockBorrowCap = bigOrZero(m.PerBlockBorrowCap)
	m.WindowBorrows = bigOrZero(m.WindowBorrows)
	if m.BorrowIndex == nil || m.BorrowIndex.Sign() == 0 {
		m.BorrowIndex = new(big.Int).Set(expScale)
	}
	if m.InitialExchangeRate == nil || m.InitialExchangeRate.Sign() == 0 {
		m.InitialExchangeRate = new(big.Int).Set(expScale)
	}
	if m.ExchangeRateFloor == nil || m.ExchangeRateFloor.Sign() == 0 {
		m.ExchangeRateFloor = new(big.Int).Set(m.InitialExchangeRate)
	}
}

// Position is one account's stake in a single market: receipt tokens held
// plus the borrow snapshot used to carry interest forward.
type Position struct {
	Account string
	// Tokens is the receipt token balance.
	Tokens *big.Int
	// BorrowPrincipal is the underlying owed as of the last borrow-side
	// action.
	BorrowPrincipal *big.Int
	// BorrowIndex is the market borrow index captured when the principal
	// was last written. Current debt scales the principal by the ratio of
	// the live index to this snapshot.
	BorrowIndex *big.Int
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Account:         p.Account,
		Tokens:          copyBig(p.Tokens),
		BorrowPrincipal: copyBig(p.BorrowPrincipal),
		BorrowIndex:     copyBig(p.BorrowIndex),
	}
}

func (p *Position) ensureDefaults() {
	if p == nil {
		return
	}
	p.Tokens = bigOrZero(p.Tokens)
	p.BorrowPrincipal = bigOrZero(p.BorrowPrincipal)
	if p.BorrowIndex == nil || p.BorrowIndex.Sign() == 0 {
		p.BorrowIndex = new(big.Int).Set(expScale)
	}
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
