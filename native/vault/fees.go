package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var basisPoints = big.NewInt(10_000)

// Hard caps on the configurable protocol fees.
const (
	MaxSwapFeeBps      = 1_000
	MaxWithdrawFeeBps  = 500
	MaxFlashLoanFeeBps = 500
)

var collectedFeePrefix = []byte("vault/fees/collected/")

// FeeConfig carries the protocol fee rates, expressed in basis points of the
// moved amount. These are the system's fees, distinct from whatever swap fee
// a pool's own strategy charges.
type FeeConfig struct {
	SwapFeeBps      uint32
	WithdrawFeeBps  uint32
	FlashLoanFeeBps uint32
}

func (f FeeConfig) validate() error {
	if f.SwapFeeBps > MaxSwapFeeBps || f.WithdrawFeeBps > MaxWithdrawFeeBps || f.FlashLoanFeeBps > MaxFlashLoanFeeBps {
		return ErrFeeAboveMax
	}
	return nil
}

func feeOn(amount *big.Int, bps uint32) *big.Int {
	if amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Div(fee, basisPoints)
}

// feeLedger accumulates protocol fees per token until a fee controller
// withdraws them.
type feeLedger struct {
	store Storage
}

func collectedFeeKey(token common.Address) []byte {
	return append(append([]byte(nil), collectedFeePrefix...), token.Bytes()...)
}

func (l feeLedger) collected(token common.Address) (*big.Int, error) {
	raw, ok, err := l.store.KVGet(collectedFeeKey(token))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	var stored string
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("vault: corrupted fee record: %w", err)
	}
	value, valid := new(big.Int).SetString(stored, 10)
	if !valid || value.Sign() < 0 {
		return nil, fmt.Errorf("vault: corrupted fee value %q", stored)
	}
	return value, nil
}

func (l feeLedger) setCollected(token common.Address, value *big.Int) error {
	if value.Sign() < 0 {
		return ErrInsufficientBalance
	}
	if value.Sign() == 0 {
		return l.store.KVDelete(collectedFeeKey(token))
	}
	encoded, err := rlp.EncodeToBytes(value.String())
	if err != nil {
		return err
	}
	return l.store.KVPut(collectedFeeKey(token), encoded)
}

func (l feeLedger) accrue(token common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return nil
	}
	current, err := l.collected(token)
	if err != nil {
		return err
	}
	return l.setCollected(token, new(big.Int).Add(current, amount))
}

func (l feeLedger) withdraw(token common.Address, amount *big.Int) error {
	current, err := l.collected(token)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return l.setCollected(token, new(big.Int).Sub(current, amount))
}
