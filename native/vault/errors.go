package vault

import "errors"

var (
	// Wiring failures.
	ErrNilState    = errors.New("vault engine: state not configured")
	ErrNilMover    = errors.New("vault engine: token mover not configured")
	ErrNilReceiver = errors.New("vault engine: flash loan receiver not configured")

	// Invalid input.
	ErrLengthMismatch    = errors.New("vault: tokens and amounts length mismatch")
	ErrInvalidController = errors.New("vault: controller must not be the zero address")
	ErrInvalidAmount     = errors.New("vault: amount must be positive")
	ErrInvalidPoolID     = errors.New("vault: malformed pool identifier")
	ErrTokenIndexRange   = errors.New("vault: token index out of range")
	ErrSameToken         = errors.New("vault: token in and token out must differ")

	// Authorization.
	ErrSenderNotAgent       = errors.New("vault: caller is not an agent for the sender")
	ErrCallerNotController  = errors.New("vault: caller is not the pool controller")
	ErrSenderNotManager     = errors.New("vault: caller is not the investment manager")
	ErrNotUniversalManager  = errors.New("vault: caller is not a universal-agent manager")
	ErrNotFeeController     = errors.New("vault: caller is not a fee controller")
	ErrCannotRemoveSelf     = errors.New("vault: users cannot remove themselves as agent")
	ErrAgentIsUniversal     = errors.New("vault: universal agents cannot be removed per user")

	// Insufficient funds.
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	ErrInsufficientManaged = errors.New("vault: insufficient managed balance")

	// Not found.
	ErrPoolNotRegistered = errors.New("vault: pool not registered")

	// Invariant violations.
	ErrDuplicatePool   = errors.New("vault: pool identifier already registered")
	ErrBalanceOverflow = errors.New("vault: balance exceeds component width")
	ErrManagedNotZero  = errors.New("vault: managed balance must be zero")
	ErrFeeAboveMax     = errors.New("vault: fee exceeds configured maximum")
	ErrPairTokensFixed = errors.New("vault: pair pool already holds two tokens")

	// Guards and external collaborators.
	ErrReentrancy                = errors.New("vault: reentrant call blocked")
	ErrSwapRejected              = errors.New("vault: swap rejected by pool")
	ErrInsufficientPoolLiquidity = errors.New("vault: pool liquidity below strategy minimum")
	ErrFlashLoanNotRepaid        = errors.New("vault: flash loan not repaid")
)
