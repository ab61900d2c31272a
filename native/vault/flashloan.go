package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FlashLoan pushes the requested amounts to the receiver, invokes its
// callback, and requires the vault's holdings of every token to be back to
// at least the original balance plus the flash-loan fee by the time the
// callback returns. The reentrancy lock stays held throughout, so no other
// vault-mutating entry point can run while the loan is outstanding.
func (e *Engine) FlashLoan(receiver FlashLoanReceiver, receiverAddr common.Address, tokens []common.Address, amounts []*big.Int, data []byte) error {
	if len(tokens) != len(amounts) {
		return ErrLengthMismatch
	}
	if receiver == nil {
		return ErrNilReceiver
	}
	if err := e.requireMover(); err != nil {
		return err
	}

	loaned := make([]*big.Int, len(amounts))
	fees := make([]*big.Int, len(amounts))
	for i, amount := range amounts {
		amt := cloneBigInt(amount)
		if amt.Sign() <= 0 {
			return ErrInvalidAmount
		}
		loaned[i] = amt
		fees[i] = feeOn(amt, e.fees.FlashLoanFeeBps)
	}

	err := e.runMutation(func(ov *stateOverlay) error {
		preBalances := make([]*big.Int, len(tokens))
		for i, token := range tokens {
			pre, err := e.mover.VaultBalance(token)
			if err != nil {
				return err
			}
			preBalances[i] = cloneBigInt(pre)
			if err := e.mover.Push(token, receiverAddr, loaned[i]); err != nil {
				return err
			}
		}

		if err := receiver.ReceiveFlashLoan(tokens, loaned, fees, data); err != nil {
			return fmt.Errorf("vault: flash loan receiver failed: %w", err)
		}

		collected := feeLedger{store: ov}
		for i, token := range tokens {
			post, err := e.mover.VaultBalance(token)
			if err != nil {
				return err
			}
			required := new(big.Int).Add(preBalances[i], fees[i])
			if post.Cmp(required) < 0 {
				return ErrFlashLoanNotRepaid
			}
			if err := collected.accrue(token, fees[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewFlashLoanEvent(receiverAddr, tokens, loaned, fees))
	return nil
}
