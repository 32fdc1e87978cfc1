package vault

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

var (
	balancePrefix   = []byte("vault/balance/")
	globalStateKey  = []byte("vault/global")
	balanceIndexKey = []byte("vault/balance/index")
)

// GlobalState aggregates the admin-tunable fields and the operation counters.
// All mutation funnels through the Ledger under the engine's reentrancy
// guard; no other component writes these structures.
type GlobalState struct {
	TotalOutstanding *big.Int
	CapacityLimit    *big.Int
	SlippageBps      uint64
	DepositCount     uint64
	WithdrawalCount  uint64
	SwapCount        uint64
	Paused           bool
}

// Copy returns a deep copy to shield callers from accidental mutation.
func (g *GlobalState) Copy() *GlobalState {
	if g == nil {
		return nil
	}
	clone := *g
	clone.TotalOutstanding = cloneBigInt(g.TotalOutstanding)
	clone.CapacityLimit = cloneBigInt(g.CapacityLimit)
	return &clone
}

type storedGlobalState struct {
	TotalOutstanding string
	CapacityLimit    string
	SlippageBps      uint64
	DepositCount     uint64
	WithdrawalCount  uint64
	SwapCount        uint64
	Paused           bool
}

type storedBalance struct {
	Amount string
}

// Ledger owns per-account balances and the global outstanding total. Balances
// are created implicitly at first credit and never removed.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// Initialize persists the initial global state. It fails if the ledger was
// already initialised.
func (l *Ledger) Initialize(capacity *big.Int, slippageBps uint64) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("vault: ledger not initialised")
	}
	ok, err := l.store.KVGet(globalStateKey, nil)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: ledger already initialised", ErrInvalidParameters)
	}
	state := &GlobalState{
		TotalOutstanding: big.NewInt(0),
		CapacityLimit:    cloneBigInt(capacity),
		SlippageBps:      slippageBps,
	}
	return l.PutGlobal(state)
}

// Global loads the global state record.
func (l *Ledger) Global() (*GlobalState, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("vault: ledger not initialised")
	}
	var stored storedGlobalState
	ok, err := l.store.KVGet(globalStateKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ledger not initialised", ErrInvalidParameters)
	}
	total, err := parseStoredAmount(stored.TotalOutstanding)
	if err != nil {
		return nil, fmt.Errorf("vault: corrupt outstanding total: %w", err)
	}
	capacity, err := parseStoredAmount(stored.CapacityLimit)
	if err != nil {
		return nil, fmt.Errorf("vault: corrupt capacity: %w", err)
	}
	return &GlobalState{
		TotalOutstanding: total,
		CapacityLimit:    capacity,
		SlippageBps:      stored.SlippageBps,
		DepositCount:     stored.DepositCount,
		WithdrawalCount:  stored.WithdrawalCount,
		SwapCount:        stored.SwapCount,
		Paused:           stored.Paused,
	}, nil
}

// PutGlobal persists the supplied global state.
func (l *Ledger) PutGlobal(state *GlobalState) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("vault: ledger not initialised")
	}
	if state == nil {
		return fmt.Errorf("vault: global state must not be nil")
	}
	stored := storedGlobalState{
		TotalOutstanding: cloneBigInt(state.TotalOutstanding).String(),
		CapacityLimit:    cloneBigInt(state.CapacityLimit).String(),
		SlippageBps:      state.SlippageBps,
		DepositCount:     state.DepositCount,
		WithdrawalCount:  state.WithdrawalCount,
		SwapCount:        state.SwapCount,
		Paused:           state.Paused,
	}
	return l.store.KVPut(globalStateKey, stored)
}

// Balance returns the account balance, zero for accounts never credited.
func (l *Ledger) Balance(account Account) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("vault: ledger not initialised")
	}
	var stored storedBalance
	ok, err := l.store.KVGet(balanceKey(account), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseStoredAmount(stored.Amount)
}

// Credit increases the account balance and the outstanding total by amount,
// enforcing the capacity ceiling against the post-credit total. The check is
// always evaluated against the actual amount to be credited, never a
// pre-conversion estimate.
func (l *Ledger) Credit(account Account, amount *big.Int) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("vault: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	state, err := l.Global()
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(state.TotalOutstanding, amount)
	if projected.Cmp(state.CapacityLimit) > 0 {
		return &CapExceededError{Requested: projected, Available: cloneBigInt(state.CapacityLimit)}
	}
	balance, err := l.Balance(account)
	if err != nil {
		return err
	}
	if err := l.putBalance(account, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	state.TotalOutstanding = projected
	return l.PutGlobal(state)
}

// Debit decreases the account balance and the outstanding total by amount,
// enforcing the per-transaction ceiling and the account balance.
func (l *Ledger) Debit(account Account, amount *big.Int, ceiling *big.Int) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("vault: ledger not initialised")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if ceiling != nil && amount.Cmp(ceiling) > 0 {
		return &WithdrawalLimitError{Requested: cloneBigInt(amount), Limit: cloneBigInt(ceiling)}
	}
	balance, err := l.Balance(account)
	if err != nil {
		return err
	}
	if amount.Cmp(balance) > 0 {
		return &InsufficientBalanceError{Requested: cloneBigInt(amount), Balance: balance}
	}
	state, err := l.Global()
	if err != nil {
		return err
	}
	if err := l.putBalance(account, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	state.TotalOutstanding = new(big.Int).Sub(state.TotalOutstanding, amount)
	return l.PutGlobal(state)
}

// Accounts lists every account that has ever held a balance, in the order of
// first credit. Used by conservation audits.
func (l *Ledger) Accounts() ([]Account, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("vault: ledger not initialised")
	}
	var raw [][]byte
	if err := l.store.KVGetList(balanceIndexKey, &raw); err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != len(Account{}) {
			continue
		}
		var account Account
		copy(account[:], entry)
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// OutstandingMatches recomputes the balance sum and reports whether it equals
// the recorded outstanding total.
func (l *Ledger) OutstandingMatches() (bool, error) {
	accounts, err := l.Accounts()
	if err != nil {
		return false, err
	}
	sum := big.NewInt(0)
	for _, account := range accounts {
		balance, err := l.Balance(account)
		if err != nil {
			return false, err
		}
		sum.Add(sum, balance)
	}
	state, err := l.Global()
	if err != nil {
		return false, err
	}
	return sum.Cmp(state.TotalOutstanding) == 0, nil
}

func (l *Ledger) putBalance(account Account, amount *big.Int) error {
	ok, err := l.store.KVGet(balanceKey(account), nil)
	if err != nil {
		return err
	}
	if !ok {
		if err := l.store.KVAppend(balanceIndexKey, account[:]); err != nil {
			return err
		}
	}
	return l.store.KVPut(balanceKey(account), storedBalance{Amount: amount.String()})
}

func balanceKey(account Account) []byte {
	suffix := hex.EncodeToString(account[:])
	key := make([]byte, len(balancePrefix)+len(suffix))
	copy(key, balancePrefix)
	copy(key[len(balancePrefix):], suffix)
	return key
}

func parseStoredAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", value)
	}
	return amount, nil
}
