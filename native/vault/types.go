package vault

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Account identifies a balance holder. The raw form matches a 20-byte
// external address.
type Account [20]byte

// ParseAccount decodes a 0x-prefixed hex address into an Account.
func ParseAccount(s string) (Account, error) {
	trimmed := strings.TrimSpace(s)
	if !common.IsHexAddress(trimmed) {
		return Account{}, ErrInvalidParameters
	}
	return Account(common.HexToAddress(trimmed)), nil
}

// String renders the account in checksummed hex form.
func (a Account) String() string {
	return common.Address(a).Hex()
}

// IsZero reports whether the account is the all-zero address.
func (a Account) IsZero() bool {
	return a == (Account{})
}

// Storage abstracts the subset of key-value functionality the vault persists
// through. storage.KV satisfies it, as does any staged overlay wrapped in the
// same codec.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// AssetBank models the external fungible-asset transfer protocol. Pull debits
// the holder and credits the vault, Push moves vault holdings out, Authorize
// grants a spender (the exchange router) an allowance over vault holdings.
// Implementations must report failures explicitly; a nil error is the only
// accepted signal of completion.
type AssetBank interface {
	Pull(asset string, from Account, amount *big.Int) error
	Push(asset string, to Account, amount *big.Int) error
	Authorize(asset string, spender string, amount *big.Int) error
}

// DepositReceipt summarises a committed deposit.
type DepositReceipt struct {
	Account        Account
	Asset          string
	AmountIn       *big.Int
	AmountCredited *big.Int
}

// WithdrawalReceipt summarises a committed withdrawal.
type WithdrawalReceipt struct {
	Account       Account
	Asset         string
	AmountDebited *big.Int
	AmountSent    *big.Int
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func normaliseAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
