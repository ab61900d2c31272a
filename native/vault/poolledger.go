package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	poolRecordPrefix  = []byte("vault/pool/record/")
	poolBalancePrefix = []byte("vault/pool/balance/")
	poolTokensPrefix  = []byte("vault/pool/tokens/")
	poolManagerPrefix = []byte("vault/pool/manager/")
	poolNextIndexKey  = []byte("vault/pool/nextindex")
)

// storedPool is the rlp wire form of a pool record.
type storedPool struct {
	Controller common.Address
	Strategy   uint16
	Index      uint32
	PairA      common.Address
	PairB      common.Address
	PairCount  uint8
}

// poolLedger holds per-(pool, token) cash/managed balances, the pool records
// themselves, token membership for tuple pools and investment manager
// delegations.
type poolLedger struct {
	store Storage
}

func poolRecordKey(id PoolID) []byte {
	raw := id.Encode()
	return append(append([]byte(nil), poolRecordPrefix...), raw[:]...)
}

func poolBalanceKey(id PoolID, token common.Address) []byte {
	raw := id.Encode()
	key := append(append([]byte(nil), poolBalancePrefix...), raw[:]...)
	return append(key, token.Bytes()...)
}

func poolTokensKey(id PoolID) []byte {
	raw := id.Encode()
	return append(append([]byte(nil), poolTokensPrefix...), raw[:]...)
}

func poolManagerKey(id PoolID, token common.Address) []byte {
	raw := id.Encode()
	key := append(append([]byte(nil), poolManagerPrefix...), raw[:]...)
	return append(key, token.Bytes()...)
}

func (l poolLedger) getPool(id PoolID) (*Pool, bool, error) {
	raw, ok, err := l.store.KVGet(poolRecordKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedPool
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("vault: corrupted pool record: %w", err)
	}
	pool := &Pool{
		ID:         PoolID{Controller: stored.Controller, Strategy: StrategyType(stored.Strategy), Index: stored.Index},
		Controller: stored.Controller,
		Strategy:   StrategyType(stored.Strategy),
		PairTokens: [2]common.Address{stored.PairA, stored.PairB},
		PairCount:  stored.PairCount,
	}
	return pool, true, nil
}

func (l poolLedger) putPool(pool *Pool) error {
	encoded, err := rlp.EncodeToBytes(storedPool{
		Controller: pool.Controller,
		Strategy:   uint16(pool.Strategy),
		Index:      pool.ID.Index,
		PairA:      pool.PairTokens[0],
		PairB:      pool.PairTokens[1],
		PairCount:  pool.PairCount,
	})
	if err != nil {
		return err
	}
	return l.store.KVPut(poolRecordKey(pool.ID), encoded)
}

func (l poolLedger) nextIndex() (uint32, error) {
	raw, ok, err := l.store.KVGet(poolNextIndexKey)
	if err != nil || !ok {
		return 0, err
	}
	var index uint32
	if err := rlp.DecodeBytes(raw, &index); err != nil {
		return 0, fmt.Errorf("vault: corrupted pool index: %w", err)
	}
	return index, nil
}

func (l poolLedger) setNextIndex(index uint32) error {
	encoded, err := rlp.EncodeToBytes(index)
	if err != nil {
		return err
	}
	return l.store.KVPut(poolNextIndexKey, encoded)
}

// balance returns the stored balance, or a zero balance for tokens the pool
// has never held. Never an error for unknown tokens.
func (l poolLedger) balance(id PoolID, token common.Address) (*CashManagedBalance, error) {
	raw, ok, err := l.store.KVGet(poolBalanceKey(id, token))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &CashManagedBalance{}, nil
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("vault: corrupted pool balance record (%d bytes)", len(raw))
	}
	var word [32]byte
	copy(word[:], raw)
	return UnpackBalance(word)
}

// setBalance persists the balance and keeps the pool's token membership in
// step: pair pools fix their two slots the first time a token appears and
// keep them forever; tuple pools track non-zero presence in an explicit
// enumerable set.
func (l poolLedger) setBalance(pool *Pool, token common.Address, balance *CashManagedBalance) error {
	if balance.IsZero() {
		if err := l.store.KVDelete(poolBalanceKey(pool.ID, token)); err != nil {
			return err
		}
	} else {
		packed := balance.Pack()
		if err := l.store.KVPut(poolBalanceKey(pool.ID, token), packed[:]); err != nil {
			return err
		}
	}
	switch pool.Strategy {
	case StrategyPair:
		return l.notePairToken(pool, token)
	default:
		return l.noteTupleToken(pool.ID, token, !balance.IsZero())
	}
}

func (l poolLedger) notePairToken(pool *Pool, token common.Address) error {
	for i := uint8(0); i < pool.PairCount; i++ {
		if pool.PairTokens[i] == token {
			return nil
		}
	}
	if pool.PairCount >= 2 {
		return ErrPairTokensFixed
	}
	pool.PairTokens[pool.PairCount] = token
	pool.PairCount++
	return l.putPool(pool)
}

func (l poolLedger) noteTupleToken(id PoolID, token common.Address, present bool) error {
	tokens, err := l.tupleTokens(id)
	if err != nil {
		return err
	}
	has := containsAddress(tokens, token)
	switch {
	case present && !has:
		tokens = append(tokens, token)
	case !present && has:
		tokens = removeAddress(tokens, token)
	default:
		return nil
	}
	if len(tokens) == 0 {
		return l.store.KVDelete(poolTokensKey(id))
	}
	encoded, err := rlp.EncodeToBytes(tokens)
	if err != nil {
		return err
	}
	return l.store.KVPut(poolTokensKey(id), encoded)
}

func (l poolLedger) tupleTokens(id PoolID) ([]common.Address, error) {
	raw, ok, err := l.store.KVGet(poolTokensKey(id))
	if err != nil || !ok {
		return nil, err
	}
	var tokens []common.Address
	if err := rlp.DecodeBytes(raw, &tokens); err != nil {
		return nil, fmt.Errorf("vault: corrupted pool token set: %w", err)
	}
	return tokens, nil
}

// tokens enumerates the pool's current token set under its strategy layout.
func (l poolLedger) tokens(pool *Pool) ([]common.Address, error) {
	if pool.Strategy == StrategyPair {
		return append([]common.Address(nil), pool.PairTokens[:pool.PairCount]...), nil
	}
	return l.tupleTokens(pool.ID)
}

// increase adds amount to the pool's cash for token.
func (l poolLedger) increase(pool *Pool, token common.Address, amount *big.Int) error {
	balance, err := l.balance(pool.ID, token)
	if err != nil {
		return err
	}
	if err := balance.IncreaseCash(amount); err != nil {
		return err
	}
	return l.setBalance(pool, token, balance)
}

// decrease removes amount from the pool's cash for token.
func (l poolLedger) decrease(pool *Pool, token common.Address, amount *big.Int) error {
	balance, err := l.balance(pool.ID, token)
	if err != nil {
		return err
	}
	if err := balance.DecreaseCash(amount); err != nil {
		return err
	}
	return l.setBalance(pool, token, balance)
}

func (l poolLedger) manager(id PoolID, token common.Address) (common.Address, bool, error) {
	raw, ok, err := l.store.KVGet(poolManagerKey(id, token))
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	var manager common.Address
	if err := rlp.DecodeBytes(raw, &manager); err != nil {
		return common.Address{}, false, fmt.Errorf("vault: corrupted manager record: %w", err)
	}
	return manager, true, nil
}

func (l poolLedger) setManager(id PoolID, token common.Address, manager common.Address) error {
	encoded, err := rlp.EncodeToBytes(manager)
	if err != nil {
		return err
	}
	return l.store.KVPut(poolManagerKey(id, token), encoded)
}

func (l poolLedger) clearManager(id PoolID, token common.Address) error {
	return l.store.KVDelete(poolManagerKey(id, token))
}
