package rental

import "math/big"

// The streaming reserve smooths newly realized interest into the withdrawable
// reserve. Interest earned from settled loans accumulates in StreamingTarget
// and vests linearly over the streaming window, so a depositor cannot add
// liquidity right before a large interest realization and withdraw a
// disproportionate share immediately after: interest recognition is bounded in
// rate regardless of position size or timing.

// vestedStreaming returns the portion of the streaming target vested by now.
// Vesting restarts from the recorded snapshot at each stream mutation and
// progresses linearly over windowSecs.
func vestedStreaming(pool *PoolState, now int64, windowSecs int64) *big.Int {
	target := bigOrZero(pool.StreamingTarget)
	snapshot := bigOrZero(pool.StreamingReserve)
	if target.Sign() == 0 {
		return big.NewInt(0)
	}
	remaining := new(big.Int).Sub(target, snapshot)
	if remaining.Sign() <= 0 {
		return new(big.Int).Set(target)
	}
	elapsed := now - pool.StreamingUpdated
	if elapsed <= 0 {
		return new(big.Int).Set(snapshot)
	}
	if windowSecs <= 0 || elapsed >= windowSecs {
		return new(big.Int).Set(target)
	}
	vested := new(big.Int).Mul(remaining, big.NewInt(elapsed))
	vested.Quo(vested, big.NewInt(windowSecs))
	return vested.Add(vested, snapshot)
}

// reserveAt returns fixedReserve plus the vested streaming portion.
func reserveAt(pool *PoolState, now int64, windowSecs int64) *big.Int {
	reserve := new(big.Int).Set(bigOrZero(pool.FixedReserve))
	return reserve.Add(reserve, vestedStreaming(pool, now, windowSecs))
}

// availableAt returns the reserve ceiling for new borrows and withdrawals.
func availableAt(pool *PoolState, now int64, windowSecs int64) *big.Int {
	available := reserveAt(pool, now, windowSecs)
	available.Sub(available, bigOrZero(pool.UsedReserve))
	if available.Sign() < 0 {
		return big.NewInt(0)
	}
	return available
}

// queueStreamingInterest snapshots the vested amount, restarts the window and
// adds newly earned interest to the streaming target.
func queueStreamingInterest(pool *PoolState, amount *big.Int, now int64, windowSecs int64) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	pool.StreamingReserve = vestedStreaming(pool, now, windowSecs)
	pool.StreamingUpdated = now
	pool.StreamingTarget = new(big.Int).Add(bigOrZero(pool.StreamingTarget), amount)
}

// flushStreamingReserve folds the fully vested portion into the fixed reserve
// and returns the flushed amount. Invoked automatically whenever a withdrawal
// needs more than the settled fixed reserve can cover.
func flushStreamingReserve(pool *PoolState, now int64, windowSecs int64) *big.Int {
	vested := vestedStreaming(pool, now, windowSecs)
	if vested.Sign() > 0 {
		pool.FixedReserve = new(big.Int).Add(bigOrZero(pool.FixedReserve), vested)
		pool.StreamingTarget = new(big.Int).Sub(bigOrZero(pool.StreamingTarget), vested)
		if pool.StreamingTarget.Sign() < 0 {
			pool.StreamingTarget = big.NewInt(0)
		}
	}
	pool.StreamingReserve = big.NewInt(0)
	pool.StreamingUpdated = now
	return vested
}

// forceVestStreaming recognizes the entire streaming target immediately. Used
// on terminal shutdown and when the last liquidity position leaves the pool.
func forceVestStreaming(pool *PoolState) *big.Int {
	target := bigOrZero(pool.StreamingTarget)
	if target.Sign() > 0 {
		pool.FixedReserve = new(big.Int).Add(bigOrZero(pool.FixedReserve), target)
	}
	pool.StreamingTarget = big.NewInt(0)
	pool.StreamingReserve = big.NewInt(0)
	return target
}
