package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StrategyType discriminates how a pool's token set is laid out and which
// trading strategy family its controller implements.
type StrategyType uint16

const (
	// StrategyPair pools hold exactly two tokens whose slots are fixed the
	// first time liquidity arrives and never change afterwards.
	StrategyPair StrategyType = iota
	// StrategyTuple pools hold an open-ended token set; membership follows
	// non-zero presence.
	StrategyTuple
)

// Pool is the registered identity of a liquidity venue. The record is
// immutable after registration; only the pair token slots are filled in
// lazily for pair pools.
type Pool struct {
	ID         PoolID
	Controller common.Address
	Strategy   StrategyType
	PairTokens [2]common.Address
	PairCount  uint8
}

// Clone returns a copy callers can mutate without touching stored state.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// SwapKind selects how a batch's step amounts are interpreted.
type SwapKind uint8

const (
	// SwapGivenIn fixes the amount entering the pool; the quoter returns the
	// amount leaving it.
	SwapGivenIn SwapKind = iota
	// SwapGivenOut fixes the amount leaving the pool; the quoter returns the
	// amount entering it.
	SwapGivenOut
)

// SwapStep is one hop of a batch swap. Token indices point into the batch's
// shared token list.
type SwapStep struct {
	Pool          PoolID
	TokenInIndex  int
	TokenOutIndex int
	Amount        *big.Int
}

// FundsIn describes where a batch sources the tokens it is owed.
type FundsIn struct {
	Sender         common.Address
	UseUserBalance bool
}

// FundsOut describes where a batch sinks the tokens it owes.
type FundsOut struct {
	Recipient     common.Address
	ToUserBalance bool
}

// TokenMover is the physical transfer collaborator. Pull moves tokens into
// vault custody, Push moves them out, and VaultBalance reports the vault's
// direct holdings of a token. Implementations wrap the actual token
// primitive; the engine never touches token contracts itself.
type TokenMover interface {
	Pull(token, from common.Address, amount *big.Int) error
	Push(token, to common.Address, amount *big.Int) error
	VaultBalance(token common.Address) (*big.Int, error)
}

// SwapQuoter is the strategy collaborator. Given the live total balances of
// the two tokens involved, it returns the counter-amount for a step and may
// reject the swap outright, which the engine surfaces as ErrSwapRejected.
type SwapQuoter interface {
	Quote(pool *Pool, kind SwapKind, tokenIn, tokenOut common.Address, amount, balanceIn, balanceOut *big.Int) (*big.Int, error)
}

// FlashLoanReceiver is invoked after loaned amounts have been pushed out. By
// the time the callback returns the vault must hold at least the original
// balance plus the quoted fee for every token.
type FlashLoanReceiver interface {
	ReceiveFlashLoan(tokens []common.Address, amounts []*big.Int, fees []*big.Int, data []byte) error
}

// RoleView answers the administrative role queries the engine gates on. The
// role registry itself lives outside the vault.
type RoleView interface {
	IsUniversalAgentManager(addr common.Address) bool
	IsFeeController(addr common.Address) bool
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
