package vault

import (
	"math/big"

	"github.com/holiman/uint256"
)

const balanceComponentBits = 112

// maxBalanceComponent bounds each balance component so cash+managed always
// fits the shared 256-bit word with room to spare.
var maxBalanceComponent = func() *uint256.Int {
	max := new(uint256.Int).Lsh(uint256.NewInt(1), balanceComponentBits)
	return max.SubUint64(max, 1)
}()

// CashManagedBalance splits a pool's holdings of one token into the portion
// held directly by the vault (cash) and the portion delegated to an
// investment manager (managed). Components are unsigned; every mutation is
// bound-checked so Total can never overflow.
type CashManagedBalance struct {
	cash    uint256.Int
	managed uint256.Int
}

// NewCashManagedBalance builds a balance from big.Int components, rejecting
// negative or out-of-width values.
func NewCashManagedBalance(cash, managed *big.Int) (*CashManagedBalance, error) {
	b := &CashManagedBalance{}
	c, err := toComponent(cash)
	if err != nil {
		return nil, err
	}
	m, err := toComponent(managed)
	if err != nil {
		return nil, err
	}
	b.cash.Set(c)
	b.managed.Set(m)
	return b, nil
}

func toComponent(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	u, overflow := uint256.FromBig(v)
	if overflow || u.Gt(maxBalanceComponent) {
		return nil, ErrBalanceOverflow
	}
	return u, nil
}

// Cash returns the directly transferable component.
func (b *CashManagedBalance) Cash() *big.Int { return b.cash.ToBig() }

// Managed returns the externally delegated component.
func (b *CashManagedBalance) Managed() *big.Int { return b.managed.ToBig() }

// Total returns cash+managed, the externally visible balance.
func (b *CashManagedBalance) Total() *big.Int {
	sum := new(uint256.Int).Add(&b.cash, &b.managed)
	return sum.ToBig()
}

// IsZero reports whether both components are zero.
func (b *CashManagedBalance) IsZero() bool {
	return b.cash.IsZero() && b.managed.IsZero()
}

// Clone returns a copy detached from stored state.
func (b *CashManagedBalance) Clone() *CashManagedBalance {
	if b == nil {
		return &CashManagedBalance{}
	}
	clone := &CashManagedBalance{}
	clone.cash.Set(&b.cash)
	clone.managed.Set(&b.managed)
	return clone
}

// IncreaseCash adds amount to cash, keeping the component within width.
func (b *CashManagedBalance) IncreaseCash(amount *big.Int) error {
	amt, err := toComponent(amount)
	if err != nil {
		return err
	}
	next := new(uint256.Int).Add(&b.cash, amt)
	if next.Gt(maxBalanceComponent) {
		return ErrBalanceOverflow
	}
	b.cash.Set(next)
	return nil
}

// DecreaseCash removes amount from cash.
func (b *CashManagedBalance) DecreaseCash(amount *big.Int) error {
	amt, err := toComponent(amount)
	if err != nil {
		return err
	}
	if b.cash.Lt(amt) {
		return ErrInsufficientBalance
	}
	b.cash.Sub(&b.cash, amt)
	return nil
}

// Invest moves amount from cash to managed. Total is unchanged. The
// receiving component is bound-checked like every other mutation; the two
// sides can sum past the component width even though neither may hold it
// alone.
func (b *CashManagedBalance) Invest(amount *big.Int) error {
	amt, err := toComponent(amount)
	if err != nil {
		return err
	}
	if b.cash.Lt(amt) {
		return ErrInsufficientBalance
	}
	next := new(uint256.Int).Add(&b.managed, amt)
	if next.Gt(maxBalanceComponent) {
		return ErrBalanceOverflow
	}
	b.cash.Sub(&b.cash, amt)
	b.managed.Set(next)
	return nil
}

// Divest moves amount from managed back to cash. Total is unchanged.
func (b *CashManagedBalance) Divest(amount *big.Int) error {
	amt, err := toComponent(amount)
	if err != nil {
		return err
	}
	if b.managed.Lt(amt) {
		return ErrInsufficientManaged
	}
	next := new(uint256.Int).Add(&b.cash, amt)
	if next.Gt(maxBalanceComponent) {
		return ErrBalanceOverflow
	}
	b.managed.Sub(&b.managed, amt)
	b.cash.Set(next)
	return nil
}

// SetManaged overwrites the managed component with an absolute value. The
// manager reconciles yield or loss externally before reporting.
func (b *CashManagedBalance) SetManaged(amount *big.Int) error {
	amt, err := toComponent(amount)
	if err != nil {
		return err
	}
	b.managed.Set(amt)
	return nil
}

// Pack serialises the balance into one 32-byte word: cash in the low 112
// bits, managed in the next 112, high 32 bits zero. Only the persistence
// layer touches the packed form.
func (b *CashManagedBalance) Pack() [32]byte {
	word := new(uint256.Int).Set(&b.managed)
	word.Lsh(word, balanceComponentBits)
	word.Or(word, &b.cash)
	return word.Bytes32()
}

// UnpackBalance is the inverse of Pack.
func UnpackBalance(raw [32]byte) (*CashManagedBalance, error) {
	word := new(uint256.Int).SetBytes32(raw[:])
	b := &CashManagedBalance{}
	b.cash.And(word, maxBalanceComponent)
	word.Rsh(word, balanceComponentBits)
	b.managed.And(word, maxBalanceComponent)
	word.Rsh(word, balanceComponentBits)
	if !word.IsZero() {
		return nil, ErrBalanceOverflow
	}
	return b, nil
}
