package sale

import "errors"

var (
	// ErrNotActive rejects operations attempted in the wrong lifecycle phase.
	ErrNotActive = errors.New("sale: sale is not active")
	// ErrNotWhitelisted rejects purchases from accounts outside the whitelist.
	ErrNotWhitelisted = errors.New("sale: buyer is not whitelisted")
	// ErrZeroRate rejects schedule entries with a non-positive rate.
	ErrZeroRate = errors.New("sale: schedule rate must be positive")
	// ErrInvalidSchedule rejects empty or non-increasing rate schedules.
	ErrInvalidSchedule = errors.New("sale: invalid rate schedule")
	// ErrPaused rejects purchases while the administrative pause is engaged.
	ErrPaused = errors.New("sale: sale is paused")
	// ErrAlreadyInitialized rejects a second configuration attempt.
	ErrAlreadyInitialized = errors.New("sale: already initialized")
	// ErrNoFunds rejects a refund withdrawal when both balances are zero.
	ErrNoFunds = errors.New("sale: no refundable funds")
	// ErrIssuanceAuthority signals the engine no longer controls the token ledger.
	ErrIssuanceAuthority = errors.New("sale: issuance authority not held")
	// ErrAlreadyFinalized rejects repeated finalization.
	ErrAlreadyFinalized = errors.New("sale: already finalized")
	// ErrTooEarlyToFinalize rejects finalization before the end time or cap.
	ErrTooEarlyToFinalize = errors.New("sale: finalize not yet permitted")

	errNilState        = errors.New("sale: state not configured")
	errNotInitialized  = errors.New("sale: not initialized")
	errBuyerRequired   = errors.New("sale: buyer address required")
	errPaymentRequired = errors.New("sale: payment required")
	errNegativeAmount  = errors.New("sale: payment amount cannot be negative")
	errETHDisabled     = errors.New("sale: ether payments disabled")
	errInsufficient    = errors.New("sale: insufficient balance")
)
