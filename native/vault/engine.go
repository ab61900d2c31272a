package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"poolvault/core/events"
	"poolvault/core/types"
	nativecommon "poolvault/native/common"
)

const moduleName = "vault"

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine is the accounting core of the vault: pool registry, cash/managed
// pool balances, user deposit ledger, batched settlement and flash loans.
// All physical token movement is delegated to the TokenMover collaborator;
// the engine only keeps the books.
type Engine struct {
	store   Storage
	mover   TokenMover
	quoter  SwapQuoter
	roles   RoleView
	emitter events.Emitter
	pauses  nativecommon.PauseView
	fees    FeeConfig
	lock    reentrancyGuard
}

// NewEngine creates a vault engine with a no-op emitter. Callers wire the
// storage and collaborators via the Set* methods before use.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetStorage configures the state backend used by the engine.
func (e *Engine) SetStorage(store Storage) { e.store = store }

// SetTokenMover configures the physical transfer collaborator.
func (e *Engine) SetTokenMover(mover TokenMover) { e.mover = mover }

// SetQuoter configures the strategy collaborator used by batch swaps.
func (e *Engine) SetQuoter(quoter SwapQuoter) { e.quoter = quoter }

// SetRoles configures the administrative role view.
func (e *Engine) SetRoles(roles RoleView) { e.roles = roles }

// SetPauses wires the module pause switchboard.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetFees installs the protocol fee configuration, enforcing the hard caps.
func (e *Engine) SetFees(fees FeeConfig) error {
	if err := fees.validate(); err != nil {
		return err
	}
	e.fees = fees
	return nil
}

func (e *Engine) emit(evts ...*types.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	for _, evt := range evts {
		if evt != nil {
			e.emitter.Emit(vaultEvent{evt: evt})
		}
	}
}

// runMutation executes fn against an overlay and commits only on success.
// The reentrancy lock is held for the full duration, including collaborator
// callbacks, so nested vault calls fail with ErrReentrancy instead of
// observing half-applied state.
func (e *Engine) runMutation(fn func(ov *stateOverlay) error) error {
	if e == nil || e.store == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.lock.enter(); err != nil {
		return err
	}
	defer e.lock.exit()
	ov := newOverlay(e.store)
	if err := fn(ov); err != nil {
		return err
	}
	return ov.flush()
}

func (e *Engine) requireMover() error {
	if e.mover == nil {
		return ErrNilMover
	}
	return nil
}

// --- User balance ledger ---

// Deposit pulls amount of token from the caller and credits user's internal
// balance. Anyone may fund any user.
func (e *Engine) Deposit(caller, user, token common.Address, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireMover(); err != nil {
		return err
	}
	err := e.runMutation(func(ov *stateOverlay) error {
		if err := e.mover.Pull(token, caller, amt); err != nil {
			return err
		}
		return userLedger{store: ov}.credit(user, token, amt)
	})
	if err != nil {
		return err
	}
	e.emit(NewDepositedEvent(user, token, amt))
	return nil
}

// Withdraw debits user's internal balance and pushes the amount, minus the
// withdrawal protocol fee, to recipient. The caller must be an agent for
// user.
func (e *Engine) Withdraw(caller, user, token common.Address, amount *big.Int, recipient common.Address) error {
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireMover(); err != nil {
		return err
	}
	fee := feeOn(amt, e.fees.WithdrawFeeBps)
	err := e.runMutation(func(ov *stateOverlay) error {
		users := userLedger{store: ov}
		if ok, err := users.isAgentFor(user, caller); err != nil {
			return err
		} else if !ok {
			return ErrSenderNotAgent
		}
		if err := users.debit(user, token, amt); err != nil {
			return err
		}
		if err := (feeLedger{store: ov}).accrue(token, fee); err != nil {
			return err
		}
		return e.mover.Push(token, recipient, new(big.Int).Sub(amt, fee))
	})
	if err != nil {
		return err
	}
	e.emit(NewWithdrawnEvent(user, token, recipient, amt, fee))
	return nil
}

// AddAgent authorizes agent to direct the caller's funds.
func (e *Engine) AddAgent(caller, agent common.Address) error {
	return e.runMutation(func(ov *stateOverlay) error {
		return userLedger{store: ov}.addAgent(caller, agent)
	})
}

// RemoveAgent revokes a previously added agent. Users cannot revoke
// themselves nor universal agents through this path.
func (e *Engine) RemoveAgent(caller, agent common.Address) error {
	return e.runMutation(func(ov *stateOverlay) error {
		return userLedger{store: ov}.removeAgent(caller, agent)
	})
}

// AddUniversalAgent registers an agent authorized for every user. Restricted
// to universal-agent managers.
func (e *Engine) AddUniversalAgent(caller, agent common.Address) error {
	if e.roles == nil || !e.roles.IsUniversalAgentManager(caller) {
		return ErrNotUniversalManager
	}
	return e.runMutation(func(ov *stateOverlay) error {
		return userLedger{store: ov}.addUniversalAgent(agent)
	})
}

// RemoveUniversalAgent drops an agent from the universal set. Restricted to
// universal-agent managers.
func (e *Engine) RemoveUniversalAgent(caller, agent common.Address) error {
	if e.roles == nil || !e.roles.IsUniversalAgentManager(caller) {
		return ErrNotUniversalManager
	}
	return e.runMutation(func(ov *stateOverlay) error {
		return userLedger{store: ov}.removeUniversalAgent(agent)
	})
}

// --- Pool registry ---

// RegisterPool creates a pool identity for the controller under the given
// strategy type. Identifiers embed a strictly increasing creation index and
// are never reused; pools cannot be deleted.
func (e *Engine) RegisterPool(controller common.Address, strategy StrategyType) (PoolID, error) {
	if controller == (common.Address{}) {
		return PoolID{}, ErrInvalidController
	}
	var registered *Pool
	err := e.runMutation(func(ov *stateOverlay) error {
		pools := poolLedger{store: ov}
		index, err := pools.nextIndex()
		if err != nil {
			return err
		}
		id := PoolID{Controller: controller, Strategy: strategy, Index: index}
		if _, exists, err := pools.getPool(id); err != nil {
			return err
		} else if exists {
			// Monotonic indices make this unreachable; a hit means the
			// invariant is broken, not that the caller erred.
			return ErrDuplicatePool
		}
		pool := &Pool{ID: id, Controller: controller, Strategy: strategy}
		if err := pools.putPool(pool); err != nil {
			return err
		}
		if err := pools.setNextIndex(index + 1); err != nil {
			return err
		}
		registered = pool
		return nil
	})
	if err != nil {
		return PoolID{}, err
	}
	e.emit(NewPoolRegisteredEvent(registered))
	return registered.ID, nil
}

func (e *Engine) loadPool(ov *stateOverlay, id PoolID) (*Pool, error) {
	pool, ok, err := poolLedger{store: ov}.getPool(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPoolNotRegistered
	}
	return pool, nil
}

// AddLiquidity moves tokens from `from` into the pool's cash balances. When
// useUserBalance is set, each amount is drawn from the sender's internal
// balance first (capped at that balance) and only the remainder is pulled
// physically. The caller must be the pool controller and an agent for the
// sender.
func (e *Engine) AddLiquidity(caller common.Address, id PoolID, from common.Address, tokens []common.Address, amounts []*big.Int, useUserBalance bool) error {
	if len(tokens) != len(amounts) {
		return ErrLengthMismatch
	}
	if err := e.requireMover(); err != nil {
		return err
	}
	err := e.runMutation(func(ov *stateOverlay) error {
		pool, err := e.loadPool(ov, id)
		if err != nil {
			return err
		}
		if caller != pool.Controller {
			return ErrCallerNotController
		}
		users := userLedger{store: ov}
		if ok, err := users.isAgentFor(from, caller); err != nil {
			return err
		} else if !ok {
			return ErrSenderNotAgent
		}
		pools := poolLedger{store: ov}
		for i, token := range tokens {
			amt := cloneBigInt(amounts[i])
			if amt.Sign() < 0 {
				return ErrInvalidAmount
			}
			if amt.Sign() == 0 {
				continue
			}
			toPull := amt
			if useUserBalance {
				held, err := users.balance(from, token)
				if err != nil {
					return err
				}
				draw := held
				if held.Cmp(amt) > 0 {
					draw = amt
				}
				if draw.Sign() > 0 {
					if err := users.debit(from, token, draw); err != nil {
						return err
					}
					toPull = new(big.Int).Sub(amt, draw)
				}
			}
			if toPull.Sign() > 0 {
				if err := e.mover.Pull(token, from, toPull); err != nil {
					return err
				}
			}
			if err := pools.increase(pool, token, amt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewLiquidityAddedEvent(id, from, tokens, amounts))
	return nil
}

// RemoveLiquidity drains tokens from the pool's cash balances to `to`,
// either crediting the internal ledger or pushing out minus the withdrawal
// protocol fee. The caller must be the pool controller. Physical pushes run
// only after every ledger step has succeeded, so a rejected token cannot
// leave earlier tokens already out of the vault while the ledger rolls back.
func (e *Engine) RemoveLiquidity(caller common.Address, id PoolID, to common.Address, tokens []common.Address, amounts []*big.Int, toUserBalance bool) error {
	if len(tokens) != len(amounts) {
		return ErrLengthMismatch
	}
	if err := e.requireMover(); err != nil {
		return err
	}
	err := e.runMutation(func(ov *stateOverlay) error {
		pool, err := e.loadPool(ov, id)
		if err != nil {
			return err
		}
		if caller != pool.Controller {
			return ErrCallerNotController
		}
		users := userLedger{store: ov}
		pools := poolLedger{store: ov}
		collected := feeLedger{store: ov}
		type stagedPush struct {
			token  common.Address
			amount *big.Int
		}
		var pushes []stagedPush
		for i, token := range tokens {
			amt := cloneBigInt(amounts[i])
			if amt.Sign() < 0 {
				return ErrInvalidAmount
			}
			if amt.Sign() == 0 {
				continue
			}
			if err := pools.decrease(pool, token, amt); err != nil {
				return err
			}
			if toUserBalance {
				if err := users.credit(to, token, amt); err != nil {
					return err
				}
				continue
			}
			fee := feeOn(amt, e.fees.WithdrawFeeBps)
			if err := collected.accrue(token, fee); err != nil {
				return err
			}
			pushes = append(pushes, stagedPush{token: token, amount: new(big.Int).Sub(amt, fee)})
		}
		for _, push := range pushes {
			if err := e.mover.Push(push.token, to, push.amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.emit(NewLiquidityRemovedEvent(id, to, tokens, amounts))
	return nil
}

// --- Investment managers ---

// AuthorizePoolInvestmentManager delegates a (pool, token) slot to manager.
// Restricted to the pool controller and rejected while any managed balance
// is outstanding, so funds delegated to a prior manager can never be
// silently orphaned.
func (e *Engine) AuthorizePoolInvestmentManager(caller common.Address, id PoolID, token, manager common.Address) error {
	err := e.runMutation(func(ov *stateOverlay) error {
		pool, err := e.loadPool(ov, id)
		if err != nil {
			return err
		}
		if caller != pool.Controller {
			return ErrCallerNotController
		}
		pools := poolLedger{store: ov}
		balance, err := pools.balance(id, token)
		if err != nil {
			return err
		}
		if balance.Managed().Sign() != 0 {
			return ErrManagedNotZero
		}
		return pools.setManager(id, token, manager)
	})
	if err != nil {
		return err
	}
	e.emit(NewManagerAuthorizedEvent(id, token, manager))
	return nil
}

// RevokePoolInvestmentManager clears the delegation once the managed balance
// has been fully returned. Restricted to the pool controller.
func (e *Engine) RevokePoolInvestmentManager(caller common.Address, id PoolID, token common.Address) error {
	err := e.runMutation(func(ov *stateOverlay) error {
		pool, err := e.loadPool(ov, id)
		if err != nil {
			return err
		}
		if caller != pool.Controller {
			return ErrCallerNotController
		}
		pools := poolLedger{store: ov}
		balance, err := pools.balance(id, token)
		if err != nil {
			return err
		}
		if balance.Managed().Sign() != 0 {
			return ErrManagedNotZero
		}
		return pools.clearManager(id, token)
	})
	if err != nil {
		return err
	}
	e.emit(NewManagerRevokedEvent(id, token))
	return nil
}

func (e *Engine) requireManager(ov *stateOverlay, caller common.Address, id PoolID, token common.Address) error {
	manager, ok, err := poolLedger{store: ov}.manager(id, token)
	if err != nil {
		return err
	}
	if !ok || manager != caller {
		return ErrSenderNotManager
	}
	return nil
}

// InvestPoolBalance moves amount from the pool's cash into managed custody
// and pushes the tokens to the manager. Restricted to the authorized
// manager for the (pool, token).
func (e *Engine) InvestPoolBalance(caller common.Address, id PoolID, token common.Address, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireMover(); err != nil {
		return err
	}
	err := e.runMutation(func(ov *stateOverlay) error {
		pool, err := e.loadPool(ov, id)
		if err != nil {
			return err
		}
		if err := e.requireManager(ov, caller, id, token); err != nil {
			return err
		}
		pools := poolLedger{store: ov}
		balance, err := pools.balance(id, token)
		if err != nil {
			return err
		}
		if err := balance.Invest(amt); err != nil {
			return err
		}
		if err := pools.setBalance(pool, token, balance); err != nil {
			return err
		}
		return e.mover.Push(token, caller, amt)
	})
	if err != nil {
		return err
	}
	e.emit(NewInvestedEvent(id, token, amt))
	return nil
}

// DivestPoolBalance pulls amount back from the manager and returns it from
// managed to cash. Restricted to the authorized manager.
func (e *Engine) DivestPoolBalance(caller common.Address, id PoolID, token common.Address, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.requireMover(); err != nil {
		return err
	}
	err := e.runMutation(func(ov *stateOverlay) error {
		pool, err := e.loadPool(ov, id)
		if err != nil {
			return err
		}
		if err := e.requireManager(ov, caller, id, token); err != nil {
			return err
		}
		pools := poolLedger{store: ov}
		balance, err := pools.balance(id, token)
		if err != nil {
			return err
		}
		if err := balance.Divest(amt); err != nil {
			return err
		}
		if err := pools.setBalance(pool, token, balance); err != nil {
			return err
		}
		return e.mover.Pull(token, caller, amt)
	})
	if err != nil {
		return err
	}
	e.emit(NewDivestedEvent(id, token, amt))
	return nil
}

// UpdateInvested overwrites the managed component with the manager's
// reported absolute value, reflecting external yield or loss. No tokens
// move. Restricted to the authorized manager.
func (e *Engine) UpdateInvested(caller common.Address, id PoolID, token common.Address, managed *big.Int) error {
	reported := cloneBigInt(managed)
	if reported.Sign() < 0 {
		return ErrInvalidAmount
	}
	err := e.runMutation(func(ov *stateOverlay) error {
		pool, err := e.loadPool(ov, id)
		if err != nil {
			return err
		}
		if err := e.requireManager(ov, caller, id, token); err != nil {
			return err
		}
		pools := poolLedger{store: ov}
		balance, err := pools.balance(id, token)
		if err != nil {
			return err
		}
		if err := balance.SetManaged(reported); err != nil {
			return err
		}
		return pools.setBalance(pool, token, balance)
	})
	if err != nil {
		return err
	}
	e.emit(NewManagedUpdatedEvent(id, token, reported))
	return nil
}

// --- Protocol fees ---

// WithdrawCollectedFees pays out accumulated protocol fees for a token.
// Restricted to fee controllers.
func (e *Engine) WithdrawCollectedFees(caller common.Address, token common.Address, amount *big.Int, recipient common.Address) error {
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.roles == nil || !e.roles.IsFeeController(caller) {
		return ErrNotFeeController
	}
	if err := e.requireMover(); err != nil {
		return err
	}
	err := e.runMutation(func(ov *stateOverlay) error {
		if err := (feeLedger{store: ov}).withdraw(token, amt); err != nil {
			return err
		}
		return e.mover.Push(token, recipient, amt)
	})
	if err != nil {
		return err
	}
	e.emit(NewFeesWithdrawnEvent(token, recipient, amt))
	return nil
}
