package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Read-only accessors. These go straight to the committed store and never
// take the reentrancy lock; a mutating operation in flight sees only its own
// overlay, so readers always observe fully settled state.

// GetPool returns the registered pool record, or ErrPoolNotRegistered.
func (e *Engine) GetPool(id PoolID) (*Pool, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	pool, ok, err := poolLedger{store: e.store}.getPool(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPoolNotRegistered
	}
	return pool.Clone(), nil
}

// GetPoolBalance returns the cash/managed balance of a (pool, token). A
// token the pool has never held reads as zero, not as an error.
func (e *Engine) GetPoolBalance(id PoolID, token common.Address) (*CashManagedBalance, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	if _, err := e.GetPool(id); err != nil {
		return nil, err
	}
	balance, err := poolLedger{store: e.store}.balance(id, token)
	if err != nil {
		return nil, err
	}
	return balance.Clone(), nil
}

// PoolTokens enumerates the pool's current token set.
func (e *Engine) PoolTokens(id PoolID) ([]common.Address, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	pool, err := e.GetPool(id)
	if err != nil {
		return nil, err
	}
	return poolLedger{store: e.store}.tokens(pool)
}

// PoolInvestmentManager returns the authorized manager for a (pool, token),
// if any.
func (e *Engine) PoolInvestmentManager(id PoolID, token common.Address) (common.Address, bool, error) {
	if e == nil || e.store == nil {
		return common.Address{}, false, ErrNilState
	}
	if _, err := e.GetPool(id); err != nil {
		return common.Address{}, false, err
	}
	return poolLedger{store: e.store}.manager(id, token)
}

// UserBalanceOf returns a user's internal balance for a token.
func (e *Engine) UserBalanceOf(user, token common.Address) (*big.Int, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	return userLedger{store: e.store}.balance(user, token)
}

// IsAgentFor reports whether candidate may direct user's funds.
func (e *Engine) IsAgentFor(user, candidate common.Address) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrNilState
	}
	return userLedger{store: e.store}.isAgentFor(user, candidate)
}

// CollectedFees returns the protocol fees accumulated for a token.
func (e *Engine) CollectedFees(token common.Address) (*big.Int, error) {
	if e == nil || e.store == nil {
		return nil, ErrNilState
	}
	return feeLedger{store: e.store}.collected(token)
}

// Fees returns the active protocol fee configuration.
func (e *Engine) Fees() FeeConfig { return e.fees }
