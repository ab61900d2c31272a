package vault

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPoolIDRoundTrip(t *testing.T) {
	cases := []PoolID{
		{},
		{Controller: newTestAddress(0x01), Strategy: StrategyPair, Index: 0},
		{Controller: newTestAddress(0xFF), Strategy: StrategyTuple, Index: 1},
		{Controller: common.HexToAddress("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"), Strategy: StrategyType(0xFFFF), Index: 0xFFFFFFFF},
	}
	for _, id := range cases {
		decoded, err := DecodePoolID(id.Encode())
		if err != nil {
			t.Fatalf("decode %v: %v", id, err)
		}
		if decoded != id {
			t.Fatalf("round trip mismatch: %v != %v", decoded, id)
		}
	}
}

func TestPoolIDDistinctIndicesDistinctIDs(t *testing.T) {
	controller := newTestAddress(0x42)
	a := PoolID{Controller: controller, Strategy: StrategyPair, Index: 7}
	b := PoolID{Controller: controller, Strategy: StrategyPair, Index: 8}
	if a.Encode() == b.Encode() {
		t.Fatalf("distinct indices produced identical packed ids")
	}
}

func TestPoolIDStrategyDoesNotCollideWithIndex(t *testing.T) {
	controller := newTestAddress(0x42)
	a := PoolID{Controller: controller, Strategy: StrategyType(1), Index: 0}
	b := PoolID{Controller: controller, Strategy: StrategyType(0), Index: 1}
	if a.Encode() == b.Encode() {
		t.Fatalf("strategy and index fields overlap in the packed layout")
	}
}

func TestDecodePoolIDRejectsReservedBits(t *testing.T) {
	raw := PoolID{Controller: newTestAddress(0x01)}.Encode()
	raw[0] = 0x80 // highest reserved bit
	if _, err := DecodePoolID(raw); !errors.Is(err, ErrInvalidPoolID) {
		t.Fatalf("expected ErrInvalidPoolID, got %v", err)
	}
}
