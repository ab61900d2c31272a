package vault

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolID identifies a registered pool. Internally it is a tagged struct; the
// packed 32-byte form exists only at the storage and interface boundary.
//
// Packed layout, low bit to high: controller address (160 bits), strategy
// discriminant (16 bits), creation index (32 bits), reserved zero (48 bits).
type PoolID struct {
	Controller common.Address
	Strategy   StrategyType
	Index      uint32
}

const (
	poolIDControllerBits = 160
	poolIDStrategyBits   = 16
	poolIDIndexBits      = 32
)

// Encode packs the identifier into its canonical 32-byte form. Encoding is
// total for in-width inputs and injective over the controller, strategy and
// index domain, so distinct registered pools never collide.
func (id PoolID) Encode() [32]byte {
	word := uint256.NewInt(uint64(id.Index))
	word.Lsh(word, poolIDStrategyBits)
	word.Or(word, uint256.NewInt(uint64(id.Strategy)))
	word.Lsh(word, poolIDControllerBits)
	word.Or(word, new(uint256.Int).SetBytes(id.Controller.Bytes()))
	return word.Bytes32()
}

// DecodePoolID unpacks a canonical identifier. Any non-zero reserved bits
// mark the input as malformed rather than a forward-compatible value.
func DecodePoolID(raw [32]byte) (PoolID, error) {
	word := new(uint256.Int).SetBytes32(raw[:])

	controllerMask := new(uint256.Int).Lsh(uint256.NewInt(1), poolIDControllerBits)
	controllerMask.SubUint64(controllerMask, 1)
	controller := new(uint256.Int).And(word, controllerMask)

	word.Rsh(word, poolIDControllerBits)
	strategy := word.Uint64() & ((1 << poolIDStrategyBits) - 1)

	word.Rsh(word, poolIDStrategyBits)
	index := word.Uint64() & ((1 << poolIDIndexBits) - 1)

	word.Rsh(word, poolIDIndexBits)
	if !word.IsZero() {
		return PoolID{}, ErrInvalidPoolID
	}

	return PoolID{
		Controller: common.BytesToAddress(controller.Bytes()),
		Strategy:   StrategyType(strategy),
		Index:      uint32(index),
	}, nil
}

// String renders the packed form as hex for logs and events.
func (id PoolID) String() string {
	raw := id.Encode()
	return hex.EncodeToString(raw[:])
}
