package rental

import (
	"math/big"
)

// PricingCurve derives the marginal interest cost of drawing reserve from the
// pool. Cost is strictly convex in cumulative utilization: the first unit is
// cheap, the last unit near full utilization is disproportionately expensive.
//
// With free fraction u(x) = (R - x) / R after drawing x, the convexity
// transform is
//
//	f(u) = (1 - pole) * slope / (u - pole) + (1 - slope)
//
// and the cumulative cost function is h(x) = x * f(u(x)). The marginal cost of
// drawing amount a on top of U already drawn is h(U + a) - h(U), scaled by the
// service base rate and the loan duration.
type PricingCurve struct {
	// Pole is the free-fraction asymptote in (0,1). Costs diverge as the free
	// fraction approaches it.
	Pole *big.Rat
	// Slope is the shape constant in (0,1) controlling how sharply f grows.
	Slope *big.Rat
}

// DefaultPricingCurve returns the system-wide shape constants.
func DefaultPricingCurve() PricingCurve {
	return PricingCurve{
		Pole:  big.NewRat(1, 20),
		Slope: big.NewRat(3, 10),
	}
}

// Clone returns a deep copy of the curve.
func (c PricingCurve) Clone() PricingCurve {
	clone := PricingCurve{}
	if c.Pole != nil {
		clone.Pole = new(big.Rat).Set(c.Pole)
	}
	if c.Slope != nil {
		clone.Slope = new(big.Rat).Set(c.Slope)
	}
	return clone
}

// Valid reports whether both shape constants lie strictly inside (0,1).
func (c PricingCurve) Valid() bool {
	one := big.NewRat(1, 1)
	if c.Pole == nil || c.Pole.Sign() <= 0 || c.Pole.Cmp(one) >= 0 {
		return false
	}
	if c.Slope == nil || c.Slope.Sign() <= 0 || c.Slope.Cmp(one) >= 0 {
		return false
	}
	return true
}

// h evaluates the cumulative cost function at x drawn out of reserve R. It
// fails with ErrInsufficientLiquidity when the free fraction does not stay
// strictly above the pole, where the transform diverges.
func (c PricingCurve) h(reserve, x *big.Int) (*big.Rat, error) {
	if x.Sign() == 0 {
		return new(big.Rat), nil
	}
	free := new(big.Rat).SetFrac(new(big.Int).Sub(reserve, x), reserve)
	den := new(big.Rat).Sub(free, c.Pole)
	if den.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	one := big.NewRat(1, 1)
	factor := new(big.Rat).Sub(one, c.Pole)
	factor.Mul(factor, c.Slope)
	factor.Quo(factor, den)
	factor.Add(factor, new(big.Rat).Sub(one, c.Slope))
	return factor.Mul(factor, new(big.Rat).SetInt(x)), nil
}

// MarginalCost returns h(used+amount) - h(used) as an exact rational, in pool
// units before rate and duration scaling.
func (c PricingCurve) MarginalCost(reserve, used, amount *big.Int) (*big.Rat, error) {
	if reserve == nil || reserve.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	used = bigOrZero(used)
	amount = bigOrZero(amount)
	after, err := c.h(reserve, new(big.Int).Add(used, amount))
	if err != nil {
		return nil, err
	}
	before, err := c.h(reserve, used)
	if err != nil {
		return nil, err
	}
	return after.Sub(after, before), nil
}

// BaseCost computes the loan base cost in pool units for drawing amount over
// durationSecs at baseRate (pool units per unit amount per second). The result
// truncates toward zero; callers carve the service fee out of it.
func (c PricingCurve) BaseCost(reserve, used, amount *big.Int, baseRate *big.Rat, durationSecs int64) (*big.Int, error) {
	marginal, err := c.MarginalCost(reserve, used, amount)
	if err != nil {
		return nil, err
	}
	if baseRate == nil || baseRate.Sign() <= 0 || durationSecs <= 0 {
		return big.NewInt(0), nil
	}
	cost := new(big.Rat).Mul(marginal, baseRate)
	cost.Mul(cost, new(big.Rat).SetInt64(durationSecs))
	return ratFloor(cost), nil
}
