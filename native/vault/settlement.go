package vault

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BatchSwap executes an ordered sequence of swap steps against one or more
// pools and settles the resulting net token movement exactly once per token.
//
// Steps are processed strictly in order: a step's balance changes are
// visible to every later step touching the same pool, which is what lets a
// pool's own quoting see intermediate state. Per-token deltas (positive:
// owed to the vault, negative: owed by it) accumulate across the whole
// batch; physical movement happens only in the final pass. A batch whose
// net incoming requirement is zero or negative is accepted: every step was
// individually validated by its pool, so cross-pool arbitrage inside one
// batch is allowed behavior.
//
// The caller must be an agent for the funds sender. Returns the per-token
// net deltas aligned with the batch token list.
func (e *Engine) BatchSwap(caller common.Address, kind SwapKind, steps []SwapStep, tokens []common.Address, fundsIn FundsIn, fundsOut FundsOut) ([]*big.Int, error) {
	if err := e.requireMover(); err != nil {
		return nil, err
	}
	if e.quoter == nil {
		return nil, ErrSwapRejected
	}

	deltas := make([]*big.Int, len(tokens))
	for i := range deltas {
		deltas[i] = big.NewInt(0)
	}

	err := e.runMutation(func(ov *stateOverlay) error {
		users := userLedger{store: ov}
		if ok, err := users.isAgentFor(fundsIn.Sender, caller); err != nil {
			return err
		} else if !ok {
			return ErrSenderNotAgent
		}
		pools := poolLedger{store: ov}
		collected := feeLedger{store: ov}

		for _, step := range steps {
			if step.TokenInIndex < 0 || step.TokenInIndex >= len(tokens) ||
				step.TokenOutIndex < 0 || step.TokenOutIndex >= len(tokens) {
				return ErrTokenIndexRange
			}
			if step.TokenInIndex == step.TokenOutIndex {
				return ErrSameToken
			}
			amount := cloneBigInt(step.Amount)
			if amount.Sign() <= 0 {
				return ErrInvalidAmount
			}
			pool, err := e.loadPool(ov, step.Pool)
			if err != nil {
				return err
			}
			tokenIn := tokens[step.TokenInIndex]
			tokenOut := tokens[step.TokenOutIndex]

			balanceIn, err := pools.balance(pool.ID, tokenIn)
			if err != nil {
				return err
			}
			balanceOut, err := pools.balance(pool.ID, tokenOut)
			if err != nil {
				return err
			}

			quoted, err := e.quoter.Quote(pool, kind, tokenIn, tokenOut, amount, balanceIn.Total(), balanceOut.Total())
			if err != nil {
				if errors.Is(err, ErrInsufficientPoolLiquidity) {
					return err
				}
				return fmt.Errorf("%w: %v", ErrSwapRejected, err)
			}
			if quoted == nil || quoted.Sign() < 0 {
				return ErrSwapRejected
			}

			amountIn, amountOut := amount, quoted
			if kind == SwapGivenOut {
				amountIn, amountOut = quoted, amount
			}

			// The protocol swap fee is skimmed from what the pool
			// receives on the input side; the sender still owes the
			// full amount in.
			fee := feeOn(amountIn, e.fees.SwapFeeBps)
			if err := collected.accrue(tokenIn, fee); err != nil {
				return err
			}
			if err := pools.increase(pool, tokenIn, new(big.Int).Sub(amountIn, fee)); err != nil {
				return err
			}
			if err := pools.decrease(pool, tokenOut, amountOut); err != nil {
				return err
			}

			deltas[step.TokenInIndex].Add(deltas[step.TokenInIndex], amountIn)
			deltas[step.TokenOutIndex].Sub(deltas[step.TokenOutIndex], amountOut)
		}

		return e.settleDeltas(ov, tokens, deltas, fundsIn, fundsOut)
	})
	if err != nil {
		return nil, err
	}
	e.emit(NewBatchSettledEvent(fundsIn.Sender, fundsOut.Recipient, tokens, deltas, len(steps)))
	return deltas, nil
}

// settleDeltas performs the physical settlement: pull what the batch owes the
// vault, push what the vault owes the batch. All collections run before any
// push, so a failed pull cannot strand tokens already pushed out while the
// ledger rolls back.
func (e *Engine) settleDeltas(ov *stateOverlay, tokens []common.Address, deltas []*big.Int, fundsIn FundsIn, fundsOut FundsOut) error {
	users := userLedger{store: ov}
	for i, token := range tokens {
		delta := deltas[i]
		if delta.Sign() <= 0 {
			continue
		}
		toPull := delta
		if fundsIn.UseUserBalance {
			held, err := users.balance(fundsIn.Sender, token)
			if err != nil {
				return err
			}
			draw := held
			if held.Cmp(delta) > 0 {
				draw = delta
			}
			if draw.Sign() > 0 {
				if err := users.debit(fundsIn.Sender, token, draw); err != nil {
					return err
				}
				toPull = new(big.Int).Sub(delta, draw)
			}
		}
		if toPull.Sign() > 0 {
			if err := e.mover.Pull(token, fundsIn.Sender, toPull); err != nil {
				return err
			}
		}
	}
	for i, token := range tokens {
		delta := deltas[i]
		if delta.Sign() >= 0 {
			continue
		}
		owed := new(big.Int).Neg(delta)
		if fundsOut.ToUserBalance {
			if err := users.credit(fundsOut.Recipient, token, owed); err != nil {
				return err
			}
			continue
		}
		if err := e.mover.Push(token, fundsOut.Recipient, owed); err != nil {
			return err
		}
	}
	return nil
}
