package lending

import "errors"

var (
	ErrNilState        = errors.New("lending engine: state not configured")
	ErrInvalidAmount   = errors.New("lending engine: amount must be positive")
	ErrAlreadyListed   = errors.New("lending engine: market already listed")
	ErrMarketNotListed = errors.New("lending engine: market not listed")
	ErrInvalidFactor   = errors.New("lending engine: factor out of range")
	ErrNonzeroBalance  = errors.New("lending engine: account holds a balance in this market")
	ErrTooManyAssets   = errors.New("lending engine: entered market limit reached")

	ErrInsufficientLiquidity = errors.New("lending engine: insufficient account liquidity")
	ErrInsufficientBalance   = errors.New("lending engine: insufficient balance")
	ErrRepayTooMuch          = errors.New("lending engine: repay exceeds outstanding borrow")
	ErrBorrowCapExceeded     = errors.New("lending engine: market borrow cap exceeded")

	ErrBorrowerHealthy   = errors.New("lending engine: borrower not eligible for liquidation")
	ErrTooMuchRepay      = errors.New("lending engine: repay exceeds close factor limit")
	ErrCollateralNotHeld = errors.New("lending engine: borrower holds no collateral in market")
	ErrSelfLiquidation   = errors.New("lending engine: borrower may not liquidate themselves")

	ErrInsufficientCash        = errors.New("lending engine: insufficient market cash")
	ErrInsufficientSeizeAmount = errors.New("lending engine: seize exceeds borrower collateral")
	ErrInsufficientAllowance   = errors.New("lending engine: insufficient allowance")

	ErrPriceUnavailable = errors.New("lending engine: oracle price unavailable")

	ErrExchangeRateDecreased = errors.New("lending engine: exchange rate decreased")
	ErrNestedTransaction     = errors.New("lending engine: nested transaction")
)

// ErrorClass partitions engine failures by how a caller should react.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	// ClassPolicyRejection marks caller-correctable admission failures. The
	// engine never retries these internally.
	ClassPolicyRejection
	// ClassResourceExhaustion marks failures a caller may retry with
	// adjusted parameters once the constraint clears.
	ClassResourceExhaustion
	// ClassDataUnavailable marks failures where required external data is
	// missing. The call aborts rather than substituting defaults.
	ClassDataUnavailable
	// ClassInvariantViolation marks defects. These should be unreachable.
	ClassInvariantViolation
)

func (c ErrorClass) String() string {
	switch c {
	case ClassPolicyRejection:
		return "policy_rejection"
	case ClassResourceExhaustion:
		return "resource_exhaustion"
	case ClassDataUnavailable:
		return "data_unavailable"
	case ClassInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// Classify maps an engine error onto its taxonomy class. Wrapped errors are
// unwrapped via errors.Is.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrAlreadyListed),
		errors.Is(err, ErrMarketNotListed),
		errors.Is(err, ErrInvalidFactor),
		errors.Is(err, ErrNonzeroBalance),
		errors.Is(err, ErrTooManyAssets),
		errors.Is(err, ErrInsufficientLiquidity),
		errors.Is(err, ErrRepayTooMuch),
		errors.Is(err, ErrBorrowCapExceeded),
		errors.Is(err, ErrBorrowerHealthy),
		errors.Is(err, ErrTooMuchRepay),
		errors.Is(err, ErrCollateralNotHeld),
		errors.Is(err, ErrSelfLiquidation),
		errors.Is(err, ErrInvalidAmount):
		return ClassPolicyRejection
	case errors.Is(err, ErrInsufficientCash),
		errors.Is(err, ErrInsufficientSeizeAmount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientAllowance):
		return ClassResourceExhaustion
	case errors.Is(err, ErrPriceUnavailable):
		return ClassDataUnavailable
	case errors.Is(err, ErrExchangeRateDecreased),
		errors.Is(err, ErrNestedTransaction),
		errors.Is(err, ErrNilState):
		return ClassInvariantViolation
	default:
		return ClassUnknown
	}
}
