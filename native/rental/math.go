package rental

import "math/big"

var basisPoints = big.NewInt(10_000)

// sharesForAmount converts a deposit into freshly issued shares at the current
// reserve. Division truncates so rounding always favors the pool.
func sharesForAmount(amount, totalShares, reserve *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		// Bootstrap 1:1.
		return new(big.Int).Set(amount)
	}
	if reserve == nil || reserve.Sign() == 0 {
		return big.NewInt(0)
	}
	shares := new(big.Int).Mul(totalShares, amount)
	return shares.Quo(shares, reserve)
}

// liquidityForShares converts a share count back into pool-asset liquidity,
// truncating in the pool's favor.
func liquidityForShares(shares, totalShares, reserve *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 {
		return big.NewInt(0)
	}
	if totalShares == nil || totalShares.Sign() == 0 || reserve == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(reserve, shares)
	return value.Quo(value, totalShares)
}

// bpsShare carves bps/10000 out of amount, truncating.
func bpsShare(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return share.Quo(share, basisPoints)
}

// ratFloor truncates an exact rational down to an integer amount.
func ratFloor(r *big.Rat) *big.Int {
	if r == nil || r.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(r.Num(), r.Denom())
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
