package rental

import (
	"math/big"

	"rentpool/core/events"
	"rentpool/crypto"
	nativecommon "rentpool/native/common"
)

// AddLiquidity deposits amount of the pool asset, mints a liquidity claim
// receipt for the provider and issues shares against the current reserve. The
// new position identifier and the minted share count are returned.
func (e *Engine) AddLiquidity(provider crypto.Address, amount *big.Int) (uint64, *big.Int, error) {
	if e == nil || e.state == nil {
		return 0, nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	pool, err := e.ensurePool()
	if err != nil {
		return 0, nil, err
	}
	if pool.Shutdown {
		return 0, nil, ErrShutdown
	}

	now := e.nowUnix()
	reserve := reserveAt(pool, now, e.streamingWindow)
	shares := sharesForAmount(amount, pool.TotalShares, reserve)
	if shares.Sign() == 0 {
		return 0, nil, ErrInvalidAmount
	}

	if err := e.tokens.Transfer(pool.PoolToken, provider, e.moduleAddress, amount); err != nil {
		return 0, nil, err
	}
	id, err := e.receipts.Mint(ReceiptLiquidity, provider)
	if err != nil {
		return 0, nil, err
	}

	position := &LiquidityPosition{
		Principal:      new(big.Int).Set(amount),
		Shares:         shares,
		CreatedAtBlock: e.currentHeight(),
	}
	if err := e.state.PutPosition(id, position); err != nil {
		return 0, nil, err
	}

	pool.FixedReserve = new(big.Int).Add(pool.FixedReserve, amount)
	pool.TotalShares = new(big.Int).Add(pool.TotalShares, shares)
	if err := e.state.PutPool(pool); err != nil {
		return 0, nil, err
	}

	e.emit(events.LiquidityChanged{
		Kind:        events.LiquidityKindAdd,
		Account:     addr20(provider),
		PositionID:  id,
		Amount:      amount,
		Shares:      shares,
		TotalShares: pool.TotalShares,
		Reserve:     reserveAt(pool, now, e.streamingWindow),
		UsedReserve: pool.UsedReserve,
	})
	e.emitReserveTotals(pool)
	return id, new(big.Int).Set(shares), nil
}

// IncreaseLiquidity tops up an existing position. The creation block is reset
// so the flash-removal guard covers the increased amount too.
func (e *Engine) IncreaseLiquidity(caller crypto.Address, id uint64, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	if pool.Shutdown {
		return nil, ErrShutdown
	}
	position, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	if err := e.requireReceiptOwner(ReceiptLiquidity, id, caller); err != nil {
		return nil, err
	}

	now := e.nowUnix()
	reserve := reserveAt(pool, now, e.streamingWindow)
	shares := sharesForAmount(amount, pool.TotalShares, reserve)
	if shares.Sign() == 0 {
		return nil, ErrInvalidAmount
	}

	if err := e.tokens.Transfer(pool.PoolToken, caller, e.moduleAddress, amount); err != nil {
		return nil, err
	}

	position.Principal = new(big.Int).Add(position.Principal, amount)
	position.Shares = new(big.Int).Add(position.Shares, shares)
	position.CreatedAtBlock = e.currentHeight()
	if err := e.state.PutPosition(id, position); err != nil {
		return nil, err
	}

	pool.FixedReserve = new(big.Int).Add(pool.FixedReserve, amount)
	pool.TotalShares = new(big.Int).Add(pool.TotalShares, shares)
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.LiquidityChanged{
		Kind:        events.LiquidityKindIncrease,
		Account:     addr20(caller),
		PositionID:  id,
		Amount:      amount,
		Shares:      shares,
		TotalShares: pool.TotalShares,
		Reserve:     reserveAt(pool, now, e.streamingWindow),
		UsedReserve: pool.UsedReserve,
	})
	e.emitReserveTotals(pool)
	return new(big.Int).Set(shares), nil
}

// DecreaseLiquidity withdraws part of a position's principal. The withdrawal
// is bounded by the available reserve and blocked in the creation block.
func (e *Engine) DecreaseLiquidity(caller crypto.Address, id uint64, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	position, err := e.activePosition(id)
	if err != nil {
		return err
	}
	if err := e.requireReceiptOwner(ReceiptLiquidity, id, caller); err != nil {
		return err
	}
	if position.CreatedAtBlock >= e.currentHeight() {
		return ErrFlashRemoval
	}
	if amount.Cmp(position.Principal) > 0 {
		return ErrInvalidAmount
	}

	now := e.nowUnix()
	if amount.Cmp(availableAt(pool, now, e.streamingWindow)) > 0 {
		return ErrInsufficientLiquidity
	}
	if pool.FixedReserve.Cmp(amount) < 0 {
		flushStreamingReserve(pool, now, e.streamingWindow)
	}

	reserve := reserveAt(pool, now, e.streamingWindow)
	shares := sharesForAmount(amount, pool.TotalShares, reserve)
	if shares.Cmp(position.Shares) > 0 {
		shares = new(big.Int).Set(position.Shares)
	}

	if err := e.tokens.Transfer(pool.PoolToken, e.moduleAddress, caller, amount); err != nil {
		return err
	}

	position.Principal = new(big.Int).Sub(position.Principal, amount)
	position.Shares = new(big.Int).Sub(position.Shares, shares)
	if err := e.state.PutPosition(id, position); err != nil {
		return err
	}

	pool.FixedReserve = new(big.Int).Sub(pool.FixedReserve, amount)
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, shares)
	if err := e.state.PutPool(pool); err != nil {
		return err
	}

	e.emit(events.LiquidityChanged{
		Kind:        events.LiquidityKindDecrease,
		Account:     addr20(caller),
		PositionID:  id,
		Amount:      amount,
		Shares:      shares,
		TotalShares: pool.TotalShares,
		Reserve:     reserveAt(pool, now, e.streamingWindow),
		UsedReserve: pool.UsedReserve,
	})
	e.emitReserveTotals(pool)
	return nil
}

// RemoveLiquidity pays out a position's full value (principal plus accrued
// interest), burns the claim receipt and deletes the position. When the last
// position leaves, any still-streaming interest is recognized immediately so
// an empty pool holds an empty reserve.
func (e *Engine) RemoveLiquidity(caller crypto.Address, id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	position, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	if err := e.requireReceiptOwner(ReceiptLiquidity, id, caller); err != nil {
		return nil, err
	}
	if position.CreatedAtBlock >= e.currentHeight() {
		return nil, ErrFlashRemoval
	}

	now := e.nowUnix()
	lastPosition := position.Shares.Cmp(pool.TotalShares) == 0
	if lastPosition {
		forceVestStreaming(pool)
		pool.StreamingUpdated = now
	}

	reserve := reserveAt(pool, now, e.streamingWindow)
	value := liquidityForShares(position.Shares, pool.TotalShares, reserve)
	if value.Cmp(availableAt(pool, now, e.streamingWindow)) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	if pool.FixedReserve.Cmp(value) < 0 {
		flushStreamingReserve(pool, now, e.streamingWindow)
	}

	if err := e.tokens.Transfer(pool.PoolToken, e.moduleAddress, caller, value); err != nil {
		return nil, err
	}
	if err := e.receipts.Burn(ReceiptLiquidity, id); err != nil {
		return nil, err
	}

	shares := position.Shares
	if err := e.state.DeletePosition(id); err != nil {
		return nil, err
	}
	pool.FixedReserve = new(big.Int).Sub(pool.FixedReserve, value)
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, shares)
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.LiquidityChanged{
		Kind:        events.LiquidityKindRemove,
		Account:     addr20(caller),
		PositionID:  id,
		Amount:      value,
		Shares:      shares,
		TotalShares: pool.TotalShares,
		Reserve:     reserveAt(pool, now, e.streamingWindow),
		UsedReserve: pool.UsedReserve,
	})
	e.emitReserveTotals(pool)
	return value, nil
}

// WithdrawInterest pays out a position's accrued interest while leaving its
// principal untouched. The position's share count shrinks to whatever the
// unchanged principal is worth at the post-withdrawal reserve.
func (e *Engine) WithdrawInterest(caller crypto.Address, id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	position, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	if err := e.requireReceiptOwner(ReceiptLiquidity, id, caller); err != nil {
		return nil, err
	}

	now := e.nowUnix()
	reserve := reserveAt(pool, now, e.streamingWindow)
	interest := accruedInterest(position, pool.TotalShares, reserve)
	if interest.Sign() == 0 {
		return nil, ErrNoAccruedInterest
	}
	if interest.Cmp(availableAt(pool, now, e.streamingWindow)) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	if pool.FixedReserve.Cmp(interest) < 0 {
		flushStreamingReserve(pool, now, e.streamingWindow)
	}

	if err := e.tokens.Transfer(pool.PoolToken, e.moduleAddress, caller, interest); err != nil {
		return nil, err
	}

	pool.FixedReserve = new(big.Int).Sub(pool.FixedReserve, interest)

	// Re-derive the share count for the unchanged principal at the reduced
	// reserve; the difference is retired from the total supply.
	newReserve := reserveAt(pool, now, e.streamingWindow)
	newShares := sharesForAmount(position.Principal, pool.TotalShares, newReserve)
	if newShares.Cmp(position.Shares) > 0 {
		newShares = new(big.Int).Set(position.Shares)
	}
	retired := new(big.Int).Sub(position.Shares, newShares)
	position.Shares = newShares
	if err := e.state.PutPosition(id, position); err != nil {
		return nil, err
	}
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, retired)
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}

	e.emit(events.LiquidityChanged{
		Kind:        events.LiquidityKindInterest,
		Account:     addr20(caller),
		PositionID:  id,
		Amount:      interest,
		Shares:      retired,
		TotalShares: pool.TotalShares,
		Reserve:     reserveAt(pool, now, e.streamingWindow),
		UsedReserve: pool.UsedReserve,
	})
	e.emitReserveTotals(pool)
	return interest, nil
}

// AccruedInterest reports how much a position's value exceeds its principal.
func (e *Engine) AccruedInterest(id uint64) (*big.Int, error) {
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	position, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	reserve := reserveAt(pool, e.nowUnix(), e.streamingWindow)
	return accruedInterest(position, pool.TotalShares, reserve), nil
}

func accruedInterest(position *LiquidityPosition, totalShares, reserve *big.Int) *big.Int {
	value := liquidityForShares(position.Shares, totalShares, reserve)
	if value.Cmp(position.Principal) <= 0 {
		return big.NewInt(0)
	}
	return value.Sub(value, position.Principal)
}
