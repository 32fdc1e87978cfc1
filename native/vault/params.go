package vault

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
)

const (
	// AmountDecimals is the fixed-point precision of all reference-currency
	// amounts: an integer amount carries six fractional decimal digits.
	AmountDecimals = 6

	// MinSlippageBps and MaxSlippageBps bound the default slippage tolerance.
	MinSlippageBps uint64 = 50
	MaxSlippageBps uint64 = 500

	bpsDenominator uint64 = 10000

	// PriceHeartbeat is the maximum acceptable age of an oracle reading.
	PriceHeartbeat = 3600 * time.Second

	// SwapDeadlineWindow bounds how long a submitted conversion stays valid.
	SwapDeadlineWindow = 5 * time.Minute

	// MaxCounter is the guarded ceiling for the monotonic operation counters.
	MaxCounter uint64 = math.MaxUint64 - 1
)

// InitParams carries the immutable configuration fixed at engine
// initialization.
type InitParams struct {
	Admin             Account
	Vault             Account
	ReferenceAsset    string
	WrappedNative     string
	OracleID          string
	RouterID          string
	CapacityLimit     *big.Int
	WithdrawalCeiling *big.Int
	SlippageBps       uint64
}

// Normalise returns a defensive copy with canonical asset casing.
func (p InitParams) Normalise() InitParams {
	out := InitParams{
		Admin:          p.Admin,
		Vault:          p.Vault,
		ReferenceAsset: normaliseAsset(p.ReferenceAsset),
		WrappedNative:  normaliseAsset(p.WrappedNative),
		OracleID:       strings.TrimSpace(p.OracleID),
		RouterID:       strings.TrimSpace(p.RouterID),
		SlippageBps:    p.SlippageBps,
	}
	out.CapacityLimit = cloneBigInt(p.CapacityLimit)
	out.WithdrawalCeiling = cloneBigInt(p.WithdrawalCeiling)
	return out
}

// Validate enforces the initialization invariants: non-empty identifiers, a
// positive capacity, a withdrawal ceiling no larger than the capacity, and a
// slippage tolerance within the allowed band.
func (p InitParams) Validate() error {
	if p.Admin.IsZero() {
		return fmt.Errorf("%w: admin address required", ErrInvalidParameters)
	}
	if p.Vault.IsZero() {
		return fmt.Errorf("%w: vault holding address required", ErrInvalidParameters)
	}
	if normaliseAsset(p.ReferenceAsset) == "" {
		return fmt.Errorf("%w: reference asset required", ErrInvalidParameters)
	}
	if normaliseAsset(p.WrappedNative) == "" {
		return fmt.Errorf("%w: wrapped native asset required", ErrInvalidParameters)
	}
	if strings.TrimSpace(p.OracleID) == "" {
		return fmt.Errorf("%w: oracle identifier required", ErrInvalidParameters)
	}
	if strings.TrimSpace(p.RouterID) == "" {
		return fmt.Errorf("%w: router identifier required", ErrInvalidParameters)
	}
	if p.CapacityLimit == nil || p.CapacityLimit.Sign() <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidParameters)
	}
	if p.WithdrawalCeiling == nil || p.WithdrawalCeiling.Sign() <= 0 {
		return fmt.Errorf("%w: withdrawal ceiling must be positive", ErrInvalidParameters)
	}
	if p.WithdrawalCeiling.Cmp(p.CapacityLimit) > 0 {
		return fmt.Errorf("%w: withdrawal ceiling exceeds capacity", ErrInvalidParameters)
	}
	return ValidateSlippageBps(p.SlippageBps)
}

// ValidateSlippageBps checks the tolerance lies within [MinSlippageBps,
// MaxSlippageBps].
func ValidateSlippageBps(bps uint64) error {
	if bps < MinSlippageBps || bps > MaxSlippageBps {
		return fmt.Errorf("%w: %d bps outside [%d, %d]", ErrInvalidSlippage, bps, MinSlippageBps, MaxSlippageBps)
	}
	return nil
}

// ParseAmount converts a decimal string into fixed-point base units with
// AmountDecimals fractional digits. "500.25" parses to 500250000.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return nil, fmt.Errorf("vault: amount required")
	}
	trimmed = strings.TrimPrefix(trimmed, "+")
	if strings.HasPrefix(trimmed, "-") {
		return nil, fmt.Errorf("vault: amount must not be negative")
	}
	parts := strings.Split(trimmed, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("vault: invalid amount format %q", value)
	}
	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}
	if len(fractionalPart) > AmountDecimals {
		return nil, fmt.Errorf("vault: amount %q exceeds %d fractional digits", value, AmountDecimals)
	}
	digits := integerPart + fractionalPart
	if !isDigits(digits) {
		return nil, fmt.Errorf("vault: invalid amount format %q", value)
	}
	digits += strings.Repeat("0", AmountDecimals-len(fractionalPart))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	amount := new(big.Int)
	if _, ok := amount.SetString(digits, 10); !ok {
		return nil, fmt.Errorf("vault: invalid amount value %q", value)
	}
	return amount, nil
}

// FormatAmount renders base units back into the canonical decimal form with
// six fractional digits.
func FormatAmount(amount *big.Int) string {
	v := cloneBigInt(amount)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(AmountDecimals), nil)
	quo, rem := new(big.Int).QuoRem(v, scale, new(big.Int))
	return fmt.Sprintf("%s.%06d", quo.String(), rem)
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
