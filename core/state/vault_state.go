package state

import (
	"errors"

	"poolvault/native/vault"
	"poolvault/storage"
)

// VaultKV adapts a storage.Database to the vault engine's Storage contract.
// It is deliberately thin: the engine's overlay handles atomicity, so the
// adapter only translates the not-found convention.
type VaultKV struct {
	db storage.Database
}

// NewVaultKV wraps the given database.
func NewVaultKV(db storage.Database) *VaultKV {
	return &VaultKV{db: db}
}

var _ vault.Storage = (*VaultKV)(nil)

func (kv *VaultKV) KVGet(key []byte) ([]byte, bool, error) {
	value, err := kv.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (kv *VaultKV) KVPut(key []byte, value []byte) error {
	return kv.db.Put(key, value)
}

func (kv *VaultKV) KVDelete(key []byte) error {
	return kv.db.Delete(key)
}
