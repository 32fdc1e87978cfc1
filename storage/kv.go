package storage

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
)

// KV layers an rlp codec over a raw Database so higher-level components can
// persist typed records without caring about encoding. List values are stored
// as rlp-encoded [][]byte under a single key and grown via KVAppend.
type KV struct {
	db Database
}

// NewKV wraps the supplied database in the rlp codec layer.
func NewKV(db Database) *KV {
	return &KV{db: db}
}

// KVPut encodes value with rlp and stores it under key.
func (k *KV) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return k.db.Put(key, encoded)
}

// KVGet decodes the stored value into out. The boolean reports whether the
// key existed; a missing key is not an error.
func (k *KV) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, err := k.db.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVAppend appends a raw encoded entry to the list stored under key.
func (k *KV) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	encoded, err := k.db.Get(key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	default:
		if err := rlp.DecodeBytes(encoded, &list); err != nil {
			return err
		}
	}
	list = append(list, append([]byte(nil), value...))
	updated, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return k.db.Put(key, updated)
}

// KVGetList decodes the list stored under key into out. A missing key yields
// an empty list.
func (k *KV) KVGetList(key []byte, out interface{}) error {
	encoded, err := k.db.Get(key)
	if errors.Is(err, ErrNotFound) {
		empty, err := rlp.EncodeToBytes([][]byte{})
		if err != nil {
			return err
		}
		return rlp.DecodeBytes(empty, out)
	}
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(encoded, out)
}
