package rental

import (
	"fmt"
	"math/big"
)

// Config captures the runtime configuration for the rental module.
type Config struct {
	// PoolToken is the symbol of the pool's base asset.
	PoolToken string `toml:"PoolToken"`
	// CurvePole and CurveSlope are the pricing curve shape constants, parsed
	// as exact rationals ("1/20") or decimals ("0.05").
	CurvePole  string `toml:"CurvePole"`
	CurveSlope string `toml:"CurveSlope"`
	// StreamingWindowSecs is the linear vesting window for new interest.
	StreamingWindowSecs int64 `toml:"StreamingWindowSecs"`
	// BorrowerGraceSecs extends the borrower-only return window past maturity.
	BorrowerGraceSecs int64 `toml:"BorrowerGraceSecs"`
	// CollectorGraceSecs extends the borrower-or-collector window past the
	// borrower deadline.
	CollectorGraceSecs int64 `toml:"CollectorGraceSecs"`
	// MaxServices bounds the service catalog size.
	MaxServices uint16 `toml:"MaxServices"`
}

// EnsureDefaults populates unset fields with the module defaults.
func (c *Config) EnsureDefaults() {
	if c.PoolToken == "" {
		c.PoolToken = "RNT"
	}
	if c.CurvePole == "" {
		c.CurvePole = "1/20"
	}
	if c.CurveSlope == "" {
		c.CurveSlope = "3/10"
	}
	if c.StreamingWindowSecs <= 0 {
		c.StreamingWindowSecs = 86_400
	}
	if c.BorrowerGraceSecs <= 0 {
		c.BorrowerGraceSecs = 43_200
	}
	if c.CollectorGraceSecs <= 0 {
		c.CollectorGraceSecs = 3_600
	}
	if c.MaxServices == 0 {
		c.MaxServices = 1_024
	}
}

// ParseCurve builds the pricing curve from the configured shape constants.
func (c Config) ParseCurve() (PricingCurve, error) {
	pole, ok := new(big.Rat).SetString(c.CurvePole)
	if !ok {
		return PricingCurve{}, fmt.Errorf("rental: invalid curve pole %q", c.CurvePole)
	}
	slope, ok := new(big.Rat).SetString(c.CurveSlope)
	if !ok {
		return PricingCurve{}, fmt.Errorf("rental: invalid curve slope %q", c.CurveSlope)
	}
	curve := PricingCurve{Pole: pole, Slope: slope}
	if !curve.Valid() {
		return PricingCurve{}, fmt.Errorf("rental: curve shape constants must lie in (0,1)")
	}
	return curve, nil
}
