package vault

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrZeroAmount indicates a money operation was invoked with a zero or
	// negative amount.
	ErrZeroAmount = errors.New("vault: amount must be positive")
	// ErrOracleCompromised indicates the price feed returned a non-positive
	// price or an unresolved round.
	ErrOracleCompromised = errors.New("vault: oracle reading compromised")
	// ErrStalePrice indicates the price feed reading exceeded the heartbeat.
	ErrStalePrice = errors.New("vault: oracle price stale")
	// ErrSwapFailed indicates the exchange router refused or shorted a swap.
	ErrSwapFailed = errors.New("vault: swap failed")
	// ErrTransferFailed indicates an external asset movement did not complete.
	ErrTransferFailed = errors.New("vault: asset transfer failed")
	// ErrInvalidSlippage indicates a slippage tolerance outside the allowed band.
	ErrInvalidSlippage = errors.New("vault: slippage tolerance out of bounds")
	// ErrInvalidParameters indicates an initialization or admin parameter
	// failed validation.
	ErrInvalidParameters = errors.New("vault: invalid parameters")
	// ErrUnsupportedAsset indicates the supplied asset cannot be deposited on
	// this path.
	ErrUnsupportedAsset = errors.New("vault: unsupported asset")
	// ErrCounterOverflow indicates a monotonic operation counter reached its
	// guarded ceiling.
	ErrCounterOverflow = errors.New("vault: operation counter overflow")
	// ErrOperationsSuspended indicates money operations are paused.
	ErrOperationsSuspended = errors.New("vault: operations suspended")
	// ErrReentrantCall indicates a guarded operation was invoked while another
	// one was already executing on the same engine.
	ErrReentrantCall = errors.New("vault: reentrant call rejected")
	// ErrUnauthorized indicates the caller lacks the role required for the
	// operation.
	ErrUnauthorized = errors.New("vault: caller not authorized")
	// ErrCapExceeded is the sentinel wrapped by CapExceededError.
	ErrCapExceeded = errors.New("vault: capacity exceeded")
	// ErrInsufficientBalance is the sentinel wrapped by InsufficientBalanceError.
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	// ErrWithdrawalLimitExceeded is the sentinel wrapped by WithdrawalLimitError.
	ErrWithdrawalLimitExceeded = errors.New("vault: withdrawal limit exceeded")
)

// CapExceededError reports a credit that would push the outstanding total
// past the capacity limit. Requested is the projected outstanding total,
// Available the configured capacity.
type CapExceededError struct {
	Requested *big.Int
	Available *big.Int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("vault: capacity exceeded: requested %s, available %s", amountOrZero(e.Requested), amountOrZero(e.Available))
}

func (e *CapExceededError) Unwrap() error { return ErrCapExceeded }

// InsufficientBalanceError reports a debit larger than the account balance.
type InsufficientBalanceError struct {
	Requested *big.Int
	Balance   *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("vault: insufficient balance: requested %s, balance %s", amountOrZero(e.Requested), amountOrZero(e.Balance))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// WithdrawalLimitError reports a single withdrawal above the per-transaction
// ceiling.
type WithdrawalLimitError struct {
	Requested *big.Int
	Limit     *big.Int
}

func (e *WithdrawalLimitError) Error() string {
	return fmt.Sprintf("vault: withdrawal limit exceeded: requested %s, limit %s", amountOrZero(e.Requested), amountOrZero(e.Limit))
}

func (e *WithdrawalLimitError) Unwrap() error { return ErrWithdrawalLimitExceeded }

func amountOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
