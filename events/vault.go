package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeDepositRecorded is emitted whenever a deposit credits an account.
	TypeDepositRecorded = "vault.deposit"
	// TypeWithdrawalRecorded is emitted whenever a withdrawal debits an account.
	TypeWithdrawalRecorded = "vault.withdrawal"
	// TypeCapacityChanged is emitted when an administrator adjusts the global cap.
	TypeCapacityChanged = "vault.capacityChanged"
	// TypeSlippageChanged is emitted when an administrator adjusts the default slippage.
	TypeSlippageChanged = "vault.slippageChanged"
	// TypePaused is emitted when a pauser suspends money operations.
	TypePaused = "vault.paused"
	// TypeResumed is emitted when a pauser resumes money operations.
	TypeResumed = "vault.resumed"
	// TypeAssetRescued is emitted when the treasurer sweeps stray holdings.
	TypeAssetRescued = "vault.assetRescued"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr [20]byte) string {
	return common.Address(addr).Hex()
}

// DepositRecorded captures an accepted deposit alongside the asset actually
// supplied and the reference units credited.
type DepositRecorded struct {
	Account        [20]byte
	Asset          string
	AmountIn       *big.Int
	AmountCredited *big.Int
}

func (DepositRecorded) EventType() string { return TypeDepositRecorded }

func (e DepositRecorded) Attributes() map[string]string {
	return map[string]string{
		"account":        addressString(e.Account),
		"asset":          strings.TrimSpace(e.Asset),
		"amountIn":       amountString(e.AmountIn),
		"amountCredited": amountString(e.AmountCredited),
	}
}

// WithdrawalRecorded captures a completed withdrawal alongside the amount
// debited in reference units and the amount actually sent to the account.
type WithdrawalRecorded struct {
	Account       [20]byte
	Asset         string
	AmountDebited *big.Int
	AmountSent    *big.Int
}

func (WithdrawalRecorded) EventType() string { return TypeWithdrawalRecorded }

func (e WithdrawalRecorded) Attributes() map[string]string {
	return map[string]string{
		"account":       addressString(e.Account),
		"asset":         strings.TrimSpace(e.Asset),
		"amountDebited": amountString(e.AmountDebited),
		"amountSent":    amountString(e.AmountSent),
	}
}

// CapacityChanged records the new global capacity limit.
type CapacityChanged struct {
	NewCapacity *big.Int
}

func (CapacityChanged) EventType() string { return TypeCapacityChanged }

func (e CapacityChanged) Attributes() map[string]string {
	return map[string]string{"newCapacity": amountString(e.NewCapacity)}
}

// SlippageChanged records the new default slippage tolerance in basis points.
type SlippageChanged struct {
	NewBps uint64
}

func (SlippageChanged) EventType() string { return TypeSlippageChanged }

func (e SlippageChanged) Attributes() map[string]string {
	return map[string]string{"newBps": strconv.FormatUint(e.NewBps, 10)}
}

// Paused marks the transition into the suspended state.
type Paused struct {
	By [20]byte
}

func (Paused) EventType() string { return TypePaused }

func (e Paused) Attributes() map[string]string {
	return map[string]string{"by": addressString(e.By)}
}

// Resumed marks the transition back into the active state.
type Resumed struct {
	By [20]byte
}

func (Resumed) EventType() string { return TypeResumed }

func (e Resumed) Attributes() map[string]string {
	return map[string]string{"by": addressString(e.By)}
}

// AssetRescued records a treasurer sweep of holdings not reflected in any
// account balance.
type AssetRescued struct {
	Treasurer [20]byte
	Asset     string
	Amount    *big.Int
}

func (AssetRescued) EventType() string { return TypeAssetRescued }

func (e AssetRescued) Attributes() map[string]string {
	return map[string]string{
		"treasurer": addressString(e.Treasurer),
		"asset":     strings.TrimSpace(e.Asset),
		"amount":    amountString(e.Amount),
	}
}
