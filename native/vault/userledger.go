package vault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	userBalancePrefix = []byte("vault/user/balance/")
	userAgentsPrefix  = []byte("vault/user/agents/")
	universalAgentKey = []byte("vault/agents/universal")
)

// userLedger tracks deposited balances per (user, token) and the agent
// relation that authorizes third parties to direct those funds. It is a thin
// view over a Storage; entry points bind it to their overlay.
type userLedger struct {
	store Storage
}

func userBalanceKey(user, token common.Address) []byte {
	key := append([]byte(nil), userBalancePrefix...)
	key = append(key, user.Bytes()...)
	return append(key, token.Bytes()...)
}

func userAgentsKey(user common.Address) []byte {
	return append(append([]byte(nil), userAgentsPrefix...), user.Bytes()...)
}

func (l userLedger) balance(user, token common.Address) (*big.Int, error) {
	raw, ok, err := l.store.KVGet(userBalanceKey(user, token))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	var stored string
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("vault: corrupted user balance record: %w", err)
	}
	value, valid := new(big.Int).SetString(stored, 10)
	if !valid || value.Sign() < 0 {
		return nil, fmt.Errorf("vault: corrupted user balance value %q", stored)
	}
	return value, nil
}

func (l userLedger) setBalance(user, token common.Address, value *big.Int) error {
	if value.Sign() < 0 {
		return ErrInsufficientBalance
	}
	if value.Sign() == 0 {
		return l.store.KVDelete(userBalanceKey(user, token))
	}
	encoded, err := rlp.EncodeToBytes(value.String())
	if err != nil {
		return err
	}
	return l.store.KVPut(userBalanceKey(user, token), encoded)
}

// credit increases the (user, token) balance. Entries appear implicitly on
// first credit.
func (l userLedger) credit(user, token common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, err := l.balance(user, token)
	if err != nil {
		return err
	}
	return l.setBalance(user, token, new(big.Int).Add(current, amount))
}

// debit decreases the (user, token) balance, failing on underflow.
func (l userLedger) debit(user, token common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, err := l.balance(user, token)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return l.setBalance(user, token, new(big.Int).Sub(current, amount))
}

func (l userLedger) agents(user common.Address) ([]common.Address, error) {
	return l.addressSet(userAgentsKey(user))
}

func (l userLedger) universalAgents() ([]common.Address, error) {
	return l.addressSet(universalAgentKey)
}

func (l userLedger) addressSet(key []byte) ([]common.Address, error) {
	raw, ok, err := l.store.KVGet(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var set []common.Address
	if err := rlp.DecodeBytes(raw, &set); err != nil {
		return nil, fmt.Errorf("vault: corrupted agent set: %w", err)
	}
	return set, nil
}

func (l userLedger) putAddressSet(key []byte, set []common.Address) error {
	if len(set) == 0 {
		return l.store.KVDelete(key)
	}
	encoded, err := rlp.EncodeToBytes(set)
	if err != nil {
		return err
	}
	return l.store.KVPut(key, encoded)
}

// isAgentFor reports whether candidate may direct user's funds: the user
// itself, an explicit per-user agent, or a universal agent.
func (l userLedger) isAgentFor(user, candidate common.Address) (bool, error) {
	if user == candidate {
		return true, nil
	}
	agents, err := l.agents(user)
	if err != nil {
		return false, err
	}
	if containsAddress(agents, candidate) {
		return true, nil
	}
	universal, err := l.universalAgents()
	if err != nil {
		return false, err
	}
	return containsAddress(universal, candidate), nil
}

func (l userLedger) addAgent(user, agent common.Address) error {
	agents, err := l.agents(user)
	if err != nil {
		return err
	}
	if containsAddress(agents, agent) {
		return nil
	}
	return l.putAddressSet(userAgentsKey(user), append(agents, agent))
}

func (l userLedger) removeAgent(user, agent common.Address) error {
	if user == agent {
		return ErrCannotRemoveSelf
	}
	universal, err := l.universalAgents()
	if err != nil {
		return err
	}
	if containsAddress(universal, agent) {
		return ErrAgentIsUniversal
	}
	agents, err := l.agents(user)
	if err != nil {
		return err
	}
	return l.putAddressSet(userAgentsKey(user), removeAddress(agents, agent))
}

func (l userLedger) addUniversalAgent(agent common.Address) error {
	set, err := l.universalAgents()
	if err != nil {
		return err
	}
	if containsAddress(set, agent) {
		return nil
	}
	return l.putAddressSet(universalAgentKey, append(set, agent))
}

func (l userLedger) removeUniversalAgent(agent common.Address) error {
	set, err := l.universalAgents()
	if err != nil {
		return err
	}
	return l.putAddressSet(universalAgentKey, removeAddress(set, agent))
}

func containsAddress(set []common.Address, addr common.Address) bool {
	for _, member := range set {
		if member == addr {
			return true
		}
	}
	return false
}

func removeAddress(set []common.Address, addr common.Address) []common.Address {
	filtered := set[:0]
	for _, member := range set {
		if member != addr {
			filtered = append(filtered, member)
		}
	}
	return filtered
}
