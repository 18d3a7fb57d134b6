package rental

import (
	"errors"
	"math/big"
	"testing"

	"rentpool/crypto"
)

func TestAddLiquidityBootstrapsSharesOneToOne(t *testing.T) {
	env := newTestEnv(t)
	provider := makeAddress(crypto.RentPrefix, 0x10)
	env.fund(provider, "RNT", 1_000)

	env.engine.SetBlockHeight(9)
	id, shares, err := env.engine.AddLiquidity(provider, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if shares.Int64() != 1_000 {
		t.Fatalf("bootstrap shares: got %d want 1000", shares.Int64())
	}
	if got := env.ledger.balance("RNT", env.module); got.Int64() != 1_000 {
		t.Fatalf("module custody: got %d want 1000", got.Int64())
	}
	if owner, err := env.receipts.OwnerOf(ReceiptLiquidity, id); err != nil || !owner.Equal(provider) {
		t.Fatalf("receipt owner: %v %v", owner, err)
	}
	pool := env.state.pool
	if pool.FixedReserve.Int64() != 1_000 || pool.TotalShares.Int64() != 1_000 {
		t.Fatalf("pool accounting: fixed=%s shares=%s", pool.FixedReserve, pool.TotalShares)
	}
}

func TestAddLiquidityRejectsInvalidAmounts(t *testing.T) {
	env := newTestEnv(t)
	provider := makeAddress(crypto.RentPrefix, 0x10)

	if _, _, err := env.engine.AddLiquidity(provider, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v", err)
	}
	if _, _, err := env.engine.AddLiquidity(provider, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if _, _, err := env.engine.AddLiquidity(provider, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v", err)
	}
}

func TestRemoveLiquidityBlockedInCreationBlock(t *testing.T) {
	env := newTestEnv(t)
	provider := makeAddress(crypto.RentPrefix, 0x10)
	env.fund(provider, "RNT", 1_000)

	id, _, err := env.engine.AddLiquidity(provider, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if _, err := env.engine.RemoveLiquidity(provider, id); !errors.Is(err, ErrFlashRemoval) {
		t.Fatalf("same-block removal: got %v", err)
	}
	if err := env.engine.DecreaseLiquidity(provider, id, big.NewInt(100)); !errors.Is(err, ErrFlashRemoval) {
		t.Fatalf("same-block decrease: got %v", err)
	}

	env.engine.SetBlockHeight(11)
	if _, err := env.engine.RemoveLiquidity(provider, id); err != nil {
		t.Fatalf("next-block removal: %v", err)
	}
}

func TestRemoveLiquidityRoundTripWithoutInterest(t *testing.T) {
	env := newTestEnv(t)
	provider, id := env.seedLiquidity(t, 1_000)

	other := makeAddress(crypto.RentPrefix, 0x11)
	env.fund(other, "RNT", 500)
	env.engine.SetBlockHeight(9)
	otherID, _, err := env.engine.AddLiquidity(other, big.NewInt(500))
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	env.engine.SetBlockHeight(10)

	value, err := env.engine.RemoveLiquidity(provider, id)
	if err != nil {
		t.Fatalf("remove first: %v", err)
	}
	if value.Int64() != 1_000 {
		t.Fatalf("first payout: got %d want 1000", value.Int64())
	}
	value, err = env.engine.RemoveLiquidity(other, otherID)
	if err != nil {
		t.Fatalf("remove second: %v", err)
	}
	if value.Int64() != 500 {
		t.Fatalf("second payout: got %d want 500", value.Int64())
	}
	pool := env.state.pool
	if pool.FixedReserve.Sign() != 0 || pool.TotalShares.Sign() != 0 {
		t.Fatalf("pool must drain: fixed=%s shares=%s", pool.FixedReserve, pool.TotalShares)
	}
	if _, err := env.engine.RemoveLiquidity(provider, id); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("removed position must be gone: got %v", err)
	}
}

func TestRemoveLiquidityWithClockDerivedHeight(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetHeightSource(func() uint64 { return uint64(env.now) })
	provider := makeAddress(crypto.RentPrefix, 0x10)
	env.fund(provider, "RNT", 1_000)

	id, _, err := env.engine.AddLiquidity(provider, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if _, err := env.engine.RemoveLiquidity(provider, id); !errors.Is(err, ErrFlashRemoval) {
		t.Fatalf("same-second removal: got %v", err)
	}

	env.advance(86_400)
	value, err := env.engine.RemoveLiquidity(provider, id)
	if err != nil {
		t.Fatalf("remove after a day: %v", err)
	}
	if value.Int64() != 1_000 {
		t.Fatalf("payout: got %d want 1000", value.Int64())
	}
	if got := env.ledger.balance("RNT", provider); got.Int64() != 1_000 {
		t.Fatalf("provider balance: got %d want 1000", got.Int64())
	}
}

func TestRemoveLiquidityRequiresReceipt(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.seedLiquidity(t, 1_000)

	stranger := makeAddress(crypto.RentPrefix, 0x22)
	if _, err := env.engine.RemoveLiquidity(stranger, id); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger removal: got %v", err)
	}
}

func TestDecreaseLiquidityBoundedByPrincipal(t *testing.T) {
	env := newTestEnv(t)
	provider, id := env.seedLiquidity(t, 1_000)

	if err := env.engine.DecreaseLiquidity(provider, id, big.NewInt(1_001)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("over-principal decrease: got %v", err)
	}
	if err := env.engine.DecreaseLiquidity(provider, id, big.NewInt(400)); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if got := env.ledger.balance("RNT", provider).Int64(); got != 400 {
		t.Fatalf("provider refund: got %d want 400", got)
	}
	pos := env.state.positions[id]
	if pos.Principal.Int64() != 600 || pos.Shares.Int64() != 600 {
		t.Fatalf("position after decrease: principal=%s shares=%s", pos.Principal, pos.Shares)
	}
}

func TestIncreaseLiquidityResetsFlashGuard(t *testing.T) {
	env := newTestEnv(t)
	provider, id := env.seedLiquidity(t, 1_000)
	env.fund(provider, "RNT", 500)

	shares, err := env.engine.IncreaseLiquidity(provider, id, big.NewInt(500))
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if shares.Int64() != 500 {
		t.Fatalf("increase shares: got %d want 500", shares.Int64())
	}
	// The top-up happened at the current height; removal in the same block is
	// blocked again.
	if _, err := env.engine.RemoveLiquidity(provider, id); !errors.Is(err, ErrFlashRemoval) {
		t.Fatalf("post-increase removal: got %v", err)
	}
}

func TestWithdrawInterestAfterLoanSettles(t *testing.T) {
	env := newTestEnv(t)
	provider, posID := env.seedLiquidity(t, 1_000_000)
	serviceIndex := env.registerTestService(t, 0)

	borrower := makeAddress(crypto.RentPrefix, 0x20)
	env.fund(borrower, "RNT", 10_000)
	if _, err := env.engine.Borrow(borrower, serviceIndex, "", big.NewInt(100_000), 3_600, nil); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	// Nothing is withdrawable until the streamed interest vests.
	env.advance(90_000)
	interest, err := env.engine.AccruedInterest(posID)
	if err != nil {
		t.Fatalf("accrued interest: %v", err)
	}
	if interest.Sign() <= 0 {
		t.Fatalf("expected positive accrued interest, got %s", interest)
	}

	before := env.ledger.balance("RNT", provider).Int64()
	paid, err := env.engine.WithdrawInterest(provider, posID)
	if err != nil {
		t.Fatalf("withdraw interest: %v", err)
	}
	if paid.Cmp(interest) != 0 {
		t.Fatalf("paid %s, accrued %s", paid, interest)
	}
	if got := env.ledger.balance("RNT", provider).Int64(); got != before+paid.Int64() {
		t.Fatalf("provider balance: got %d want %d", got, before+paid.Int64())
	}
	// Principal stays intact and the accrual resets.
	if env.state.positions[posID].Principal.Int64() != 1_000_000 {
		t.Fatalf("principal must stay untouched")
	}
	if _, err := env.engine.WithdrawInterest(provider, posID); !errors.Is(err, ErrNoAccruedInterest) {
		t.Fatalf("second withdrawal: got %v", err)
	}
}

func TestLastPositionExitDrainsPoolExactly(t *testing.T) {
	env := newTestEnv(t)
	provider, posID := env.seedLiquidity(t, 1_000_000)
	serviceIndex := env.registerTestService(t, 0)

	borrower := makeAddress(crypto.RentPrefix, 0x20)
	env.fund(borrower, "RNT", 10_000)
	loanID, err := env.engine.Borrow(borrower, serviceIndex, "", big.NewInt(100_000), 3_600, nil)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	env.advance(3_700)
	if err := env.engine.ReturnLoan(borrower, loanID); err != nil {
		t.Fatalf("return loan: %v", err)
	}

	// The interest is still vesting, but the sole provider's exit recognizes
	// it all so the pool empties exactly.
	value, err := env.engine.RemoveLiquidity(provider, posID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if value.Cmp(big.NewInt(1_000_000)) <= 0 {
		t.Fatalf("final payout must include interest, got %s", value)
	}
	pool := env.state.pool
	if pool.FixedReserve.Sign() != 0 || pool.TotalShares.Sign() != 0 || pool.StreamingTarget.Sign() != 0 {
		t.Fatalf("pool must be empty: fixed=%s shares=%s target=%s", pool.FixedReserve, pool.TotalShares, pool.StreamingTarget)
	}
	if got := env.ledger.balance("RNT", env.module); got.Sign() != 0 {
		t.Fatalf("module custody must be empty, got %s", got)
	}
}
