package vault

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"poolvault/core/types"
)

const (
	EventTypePoolRegistered    = "vault.pool_registered"
	EventTypeLiquidityAdded    = "vault.liquidity_added"
	EventTypeLiquidityRemoved  = "vault.liquidity_removed"
	EventTypeDeposited         = "vault.deposited"
	EventTypeWithdrawn         = "vault.withdrawn"
	EventTypeInvested          = "vault.invested"
	EventTypeDivested          = "vault.divested"
	EventTypeManagedUpdated    = "vault.managed_updated"
	EventTypeManagerAuthorized = "vault.manager_authorized"
	EventTypeManagerRevoked    = "vault.manager_revoked"
	EventTypeBatchSettled      = "vault.batch_settled"
	EventTypeFlashLoan         = "vault.flash_loan"
	EventTypeFeesWithdrawn     = "vault.fees_withdrawn"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewPoolRegisteredEvent emits the canonical payload for a new pool.
func NewPoolRegisteredEvent(pool *Pool) *types.Event {
	return &types.Event{
		Type: EventTypePoolRegistered,
		Attributes: map[string]string{
			"poolId":     pool.ID.String(),
			"controller": pool.Controller.Hex(),
			"strategy":   strconv.FormatUint(uint64(pool.Strategy), 10),
			"index":      strconv.FormatUint(uint64(pool.ID.Index), 10),
		},
	}
}

func newLiquidityEvent(eventType string, id PoolID, account common.Address, tokens []common.Address, amounts []*big.Int) *types.Event {
	attrs := map[string]string{
		"poolId":  id.String(),
		"account": account.Hex(),
		"tokens":  strconv.Itoa(len(tokens)),
	}
	for i, token := range tokens {
		suffix := strconv.Itoa(i)
		attrs["token"+suffix] = token.Hex()
		attrs["amount"+suffix] = formatAmount(amounts[i])
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewLiquidityAddedEvent emits the payload for a completed liquidity add.
func NewLiquidityAddedEvent(id PoolID, from common.Address, tokens []common.Address, amounts []*big.Int) *types.Event {
	return newLiquidityEvent(EventTypeLiquidityAdded, id, from, tokens, amounts)
}

// NewLiquidityRemovedEvent emits the payload for a completed liquidity removal.
func NewLiquidityRemovedEvent(id PoolID, to common.Address, tokens []common.Address, amounts []*big.Int) *types.Event {
	return newLiquidityEvent(EventTypeLiquidityRemoved, id, to, tokens, amounts)
}

// NewDepositedEvent emits the payload for a user ledger deposit.
func NewDepositedEvent(user, token common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposited,
		Attributes: map[string]string{
			"user":   user.Hex(),
			"token":  token.Hex(),
			"amount": formatAmount(amount),
		},
	}
}

// NewWithdrawnEvent emits the payload for a user ledger withdrawal, including
// the protocol fee skimmed before the push-out.
func NewWithdrawnEvent(user, token, recipient common.Address, amount, fee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"user":      user.Hex(),
			"token":     token.Hex(),
			"recipient": recipient.Hex(),
			"amount":    formatAmount(amount),
			"fee":       formatAmount(fee),
		},
	}
}

func newInvestmentEvent(eventType string, id PoolID, token common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"poolId": id.String(),
			"token":  token.Hex(),
			"amount": formatAmount(amount),
		},
	}
}

// NewInvestedEvent emits the payload when cash is delegated to a manager.
func NewInvestedEvent(id PoolID, token common.Address, amount *big.Int) *types.Event {
	return newInvestmentEvent(EventTypeInvested, id, token, amount)
}

// NewDivestedEvent emits the payload when managed funds return to cash.
func NewDivestedEvent(id PoolID, token common.Address, amount *big.Int) *types.Event {
	return newInvestmentEvent(EventTypeDivested, id, token, amount)
}

// NewManagedUpdatedEvent emits the payload for an absolute managed update.
func NewManagedUpdatedEvent(id PoolID, token common.Address, managed *big.Int) *types.Event {
	return newInvestmentEvent(EventTypeManagedUpdated, id, token, managed)
}

// NewManagerAuthorizedEvent emits the payload for a manager authorization.
func NewManagerAuthorizedEvent(id PoolID, token, manager common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeManagerAuthorized,
		Attributes: map[string]string{
			"poolId":  id.String(),
			"token":   token.Hex(),
			"manager": manager.Hex(),
		},
	}
}

// NewManagerRevokedEvent emits the payload for a manager revocation.
func NewManagerRevokedEvent(id PoolID, token common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeManagerRevoked,
		Attributes: map[string]string{
			"poolId": id.String(),
			"token":  token.Hex(),
		},
	}
}

// NewBatchSettledEvent emits the payload for a settled batch: the per-token
// net deltas as seen from the vault (positive means pulled in).
func NewBatchSettledEvent(sender, recipient common.Address, tokens []common.Address, deltas []*big.Int, steps int) *types.Event {
	attrs := map[string]string{
		"sender":    sender.Hex(),
		"recipient": recipient.Hex(),
		"steps":     strconv.Itoa(steps),
		"tokens":    strconv.Itoa(len(tokens)),
	}
	for i, token := range tokens {
		suffix := strconv.Itoa(i)
		attrs["token"+suffix] = token.Hex()
		attrs["delta"+suffix] = formatAmount(deltas[i])
	}
	return &types.Event{Type: EventTypeBatchSettled, Attributes: attrs}
}

// NewFlashLoanEvent emits the payload for a repaid flash loan.
func NewFlashLoanEvent(receiver common.Address, tokens []common.Address, amounts, fees []*big.Int) *types.Event {
	attrs := map[string]string{
		"receiver": receiver.Hex(),
		"tokens":   strconv.Itoa(len(tokens)),
	}
	for i, token := range tokens {
		suffix := strconv.Itoa(i)
		attrs["token"+suffix] = token.Hex()
		attrs["amount"+suffix] = formatAmount(amounts[i])
		attrs["fee"+suffix] = formatAmount(fees[i])
	}
	return &types.Event{Type: EventTypeFlashLoan, Attributes: attrs}
}

// NewFeesWithdrawnEvent emits the payload for a protocol fee withdrawal.
func NewFeesWithdrawnEvent(token, recipient common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFeesWithdrawn,
		Attributes: map[string]string{
			"token":     token.Hex(),
			"recipient": recipient.Hex(),
			"amount":    formatAmount(amount),
		},
	}
}
