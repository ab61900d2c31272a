package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

// mockQuoter quotes at a fixed per-pool rate: amountOut = amountIn * num/den.
// It records the balances it was shown so tests can assert step ordering.
type mockQuoter struct {
	num  map[PoolID]int64
	den  map[PoolID]int64
	seen [][2]*big.Int
	err  error
}

func newMockQuoter() *mockQuoter {
	return &mockQuoter{num: make(map[PoolID]int64), den: make(map[PoolID]int64)}
}

func (q *mockQuoter) setRate(id PoolID, num, den int64) {
	q.num[id] = num
	q.den[id] = den
}

func (q *mockQuoter) Quote(pool *Pool, kind SwapKind, tokenIn, tokenOut common.Address, amount, balanceIn, balanceOut *big.Int) (*big.Int, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.seen = append(q.seen, [2]*big.Int{new(big.Int).Set(balanceIn), new(big.Int).Set(balanceOut)})
	num, den := q.num[pool.ID], q.den[pool.ID]
	if den == 0 {
		return nil, fmt.Errorf("no rate for pool")
	}
	var quoted *big.Int
	if kind == SwapGivenIn {
		quoted = new(big.Int).Mul(amount, big.NewInt(num))
		quoted.Div(quoted, big.NewInt(den))
	} else {
		quoted = new(big.Int).Mul(amount, big.NewInt(den))
		quoted.Div(quoted, big.NewInt(num))
	}
	return quoted, nil
}

func seedPool(t *testing.T, engine *Engine, controller common.Address, strategy StrategyType, tokens []common.Address, amounts []int64) PoolID {
	t.Helper()
	id := mustRegisterPool(t, engine, controller, strategy)
	bigs := make([]*big.Int, len(amounts))
	for i, a := range amounts {
		bigs[i] = big.NewInt(a)
	}
	if err := engine.AddLiquidity(controller, id, controller, tokens, bigs, false); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	return id
}

func TestBatchSwapSingleStepGivenIn(t *testing.T) {
	engine, _, mover, _, emitter := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 1, 1)

	steps := []SwapStep{{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(100)}}
	deltas, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if err != nil {
		t.Fatalf("batch swap: %v", err)
	}

	if deltas[0].Cmp(big.NewInt(100)) != 0 || deltas[1].Cmp(big.NewInt(-100)) != 0 {
		t.Fatalf("expected deltas [100, -100], got [%s, %s]", deltas[0], deltas[1])
	}
	if got := poolCash(t, engine, id, tokenA); got.Cmp(big.NewInt(1100)) != 0 {
		t.Fatalf("expected pool cash A 1100, got %s", got)
	}
	if got := poolCash(t, engine, id, tokenB); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("expected pool cash B 900, got %s", got)
	}

	lastPull := mover.pulls[len(mover.pulls)-1]
	if lastPull.token != tokenA || lastPull.amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected pull of 100 A, got %+v", lastPull)
	}
	lastPush := mover.pushes[len(mover.pushes)-1]
	if lastPush.token != tokenB || lastPush.amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected push of 100 B, got %+v", lastPush)
	}
	if emitter.lastType() != EventTypeBatchSettled {
		t.Fatalf("expected batch_settled event, got %q", emitter.lastType())
	}
}

func TestBatchSwapGivenOut(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 2, 1) // 1 in buys 2 out

	steps := []SwapStep{{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(100)}}
	deltas, err := engine.BatchSwap(trader, SwapGivenOut, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if err != nil {
		t.Fatalf("batch swap: %v", err)
	}
	if deltas[0].Cmp(big.NewInt(50)) != 0 || deltas[1].Cmp(big.NewInt(-100)) != 0 {
		t.Fatalf("expected deltas [50, -100], got [%s, %s]", deltas[0], deltas[1])
	}
}

func TestBatchSwapChargesProtocolFeeOnInputSide(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	if err := engine.SetFees(FeeConfig{SwapFeeBps: 100}); err != nil { // 1%
		t.Fatalf("set fees: %v", err)
	}
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 1, 1)

	steps := []SwapStep{{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(100)}}
	deltas, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if err != nil {
		t.Fatalf("batch swap: %v", err)
	}

	// The sender owes the full 100; the pool receives 99, the fee ledger 1.
	if deltas[0].Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected sender delta 100, got %s", deltas[0])
	}
	if got := poolCash(t, engine, id, tokenA); got.Cmp(big.NewInt(1099)) != 0 {
		t.Fatalf("expected pool cash A 1099, got %s", got)
	}
	collected, _ := engine.CollectedFees(tokenA)
	if collected.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected collected fee 1, got %s", collected)
	}
}

func TestBatchSwapNetsAcrossPools(t *testing.T) {
	engine, _, mover, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}

	pool1 := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	pool2 := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(pool1, 1, 1)
	quoter.setRate(pool2, 2, 1) // pool2 pays out double

	pullsBefore, pushesBefore := len(mover.pulls), len(mover.pushes)
	steps := []SwapStep{
		{Pool: pool1, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(100)},
		{Pool: pool2, TokenInIndex: 1, TokenOutIndex: 0, Amount: big.NewInt(100)},
	}
	deltas, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if err != nil {
		t.Fatalf("batch swap: %v", err)
	}

	// A: +100 into pool1, -200 out of pool2. B nets to zero entirely.
	if deltas[0].Cmp(big.NewInt(-100)) != 0 || deltas[1].Sign() != 0 {
		t.Fatalf("expected deltas [-100, 0], got [%s, %s]", deltas[0], deltas[1])
	}
	if len(mover.pulls) != pullsBefore {
		t.Fatalf("net-negative batch should pull nothing, got %v", mover.pulls[pullsBefore:])
	}
	pushes := mover.pushes[pushesBefore:]
	if len(pushes) != 1 || pushes[0].token != tokenA || pushes[0].amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected single push of 100 A, got %v", pushes)
	}
}

func TestBatchSwapStepOrderingIsVisible(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 1, 1)

	steps := []SwapStep{
		{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(100)},
		{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(100)},
	}
	if _, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader}); err != nil {
		t.Fatalf("batch swap: %v", err)
	}

	if len(quoter.seen) != 2 {
		t.Fatalf("expected two quotes, got %d", len(quoter.seen))
	}
	// The second quote must see the first step's effect on the same pool.
	if quoter.seen[1][0].Cmp(big.NewInt(1100)) != 0 || quoter.seen[1][1].Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("second step saw stale balances: %s / %s", quoter.seen[1][0], quoter.seen[1][1])
	}
}

func TestBatchSwapUsesUserBalances(t *testing.T) {
	engine, _, mover, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 1, 1)

	if err := engine.Deposit(trader, trader, tokenA, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	pullsBefore, pushesBefore := len(mover.pulls), len(mover.pushes)

	steps := []SwapStep{{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(100)}}
	_, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader, UseUserBalance: true},
		FundsOut{Recipient: trader, ToUserBalance: true})
	if err != nil {
		t.Fatalf("batch swap: %v", err)
	}

	if len(mover.pulls) != pullsBefore || len(mover.pushes) != pushesBefore {
		t.Fatalf("fully internal batch should move nothing physically")
	}
	balA, _ := engine.UserBalanceOf(trader, tokenA)
	balB, _ := engine.UserBalanceOf(trader, tokenB)
	if balA.Sign() != 0 || balB.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected internal balances (0, 100), got (%s, %s)", balA, balB)
	}
}

func TestBatchSwapRequiresAgentForSender(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	other := newTestAddress(0x44)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 1, 1)

	steps := []SwapStep{{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(10)}}
	_, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: other}, FundsOut{Recipient: trader})
	if !errors.Is(err, ErrSenderNotAgent) {
		t.Fatalf("expected ErrSenderNotAgent, got %v", err)
	}
}

func TestBatchSwapUnknownPool(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	engine.SetQuoter(newMockQuoter())
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}

	ghost := PoolID{Controller: newTestAddress(0x77), Strategy: StrategyPair, Index: 9}
	steps := []SwapStep{{Pool: ghost, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(10)}}
	_, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if !errors.Is(err, ErrPoolNotRegistered) {
		t.Fatalf("expected ErrPoolNotRegistered, got %v", err)
	}
}

func TestBatchSwapSurfacesQuoterRejections(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 1, 1)

	steps := []SwapStep{{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(10)}}

	quoter.err = fmt.Errorf("strategy says no")
	_, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if !errors.Is(err, ErrSwapRejected) {
		t.Fatalf("expected ErrSwapRejected, got %v", err)
	}

	quoter.err = ErrInsufficientPoolLiquidity
	_, err = engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if !errors.Is(err, ErrInsufficientPoolLiquidity) {
		t.Fatalf("expected ErrInsufficientPoolLiquidity, got %v", err)
	}
}

func TestBatchSwapAtomicRollback(t *testing.T) {
	engine, store, mover, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 50})
	quoter.setRate(id, 1, 1)

	snapshot := make(map[string][]byte, len(store.data))
	for k, v := range store.data {
		snapshot[k] = append([]byte(nil), v...)
	}
	pullsBefore, pushesBefore := len(mover.pulls), len(mover.pushes)

	// First step succeeds against the ledger, second drains B below zero.
	steps := []SwapStep{
		{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(40)},
		{Pool: id, TokenInIndex: 0, TokenOutIndex: 1, Amount: big.NewInt(40)},
	}
	_, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	for k, v := range snapshot {
		if string(store.data[k]) != string(v) {
			t.Fatalf("state key %q mutated after failed batch", k)
		}
	}
	if len(store.data) != len(snapshot) {
		t.Fatalf("state size changed after failed batch")
	}
	if len(mover.pulls) != pullsBefore || len(mover.pushes) != pushesBefore {
		t.Fatalf("failed batch must not move tokens")
	}
}

func TestBatchSwapFailedPullPushesNothing(t *testing.T) {
	engine, store, mover, _, _ := newTestEngine(t)
	quoter := newMockQuoter()
	engine.SetQuoter(quoter)

	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	// The owed token sorts before the owing one in the batch list.
	tokens := []common.Address{tokenB, tokenA}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{1000, 1000})
	quoter.setRate(id, 1, 1)

	snapshot := make(map[string][]byte, len(store.data))
	for k, v := range store.data {
		snapshot[k] = append([]byte(nil), v...)
	}
	pushesBefore := len(mover.pushes)
	mover.failPull = true

	steps := []SwapStep{{Pool: id, TokenInIndex: 1, TokenOutIndex: 0, Amount: big.NewInt(100)}}
	_, err := engine.BatchSwap(trader, SwapGivenIn, steps, tokens,
		FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if err == nil {
		t.Fatalf("expected batch to fail on refused pull")
	}

	if len(mover.pushes) != pushesBefore {
		t.Fatalf("failed batch pushed tokens out: %v", mover.pushes[pushesBefore:])
	}
	for k, v := range snapshot {
		if string(store.data[k]) != string(v) {
			t.Fatalf("state key %q mutated after failed batch", k)
		}
	}
	if len(store.data) != len(snapshot) {
		t.Fatalf("state size changed after failed batch")
	}
}

func TestBatchSwapValidatesTokenIndices(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	engine.SetQuoter(newMockQuoter())
	controller := newTestAddress(0x11)
	trader := newTestAddress(0x33)
	tokenA := newTestAddress(0xA0)
	tokenB := newTestAddress(0xB0)
	tokens := []common.Address{tokenA, tokenB}
	id := seedPool(t, engine, controller, StrategyPair, tokens, []int64{100, 100})

	_, err := engine.BatchSwap(trader, SwapGivenIn,
		[]SwapStep{{Pool: id, TokenInIndex: 0, TokenOutIndex: 2, Amount: big.NewInt(1)}},
		tokens, FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if !errors.Is(err, ErrTokenIndexRange) {
		t.Fatalf("expected ErrTokenIndexRange, got %v", err)
	}

	_, err = engine.BatchSwap(trader, SwapGivenIn,
		[]SwapStep{{Pool: id, TokenInIndex: 1, TokenOutIndex: 1, Amount: big.NewInt(1)}},
		tokens, FundsIn{Sender: trader}, FundsOut{Recipient: trader})
	if !errors.Is(err, ErrSameToken) {
		t.Fatalf("expected ErrSameToken, got %v", err)
	}
}
