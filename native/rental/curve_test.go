package rental

import (
	"errors"
	"math/big"
	"testing"
)

func TestDefaultPricingCurveValid(t *testing.T) {
	if !DefaultPricingCurve().Valid() {
		t.Fatal("default curve must be valid")
	}
	invalid := PricingCurve{Pole: big.NewRat(1, 1), Slope: big.NewRat(1, 2)}
	if invalid.Valid() {
		t.Fatal("pole at 1 must be rejected")
	}
	invalid = PricingCurve{Pole: big.NewRat(1, 20), Slope: big.NewRat(0, 1)}
	if invalid.Valid() {
		t.Fatal("zero slope must be rejected")
	}
}

func TestMarginalCostIncreasesWithUtilization(t *testing.T) {
	curve := DefaultPricingCurve()
	reserve := big.NewInt(1_000)
	amount := big.NewInt(100)

	var previous *big.Rat
	for _, used := range []int64{0, 300, 500, 700, 800} {
		cost, err := curve.MarginalCost(reserve, big.NewInt(used), amount)
		if err != nil {
			t.Fatalf("marginal cost at used=%d: %v", used, err)
		}
		if previous != nil && cost.Cmp(previous) <= 0 {
			t.Fatalf("marginal cost must grow with utilization: %s at used=%d not above %s", cost.RatString(), used, previous.RatString())
		}
		previous = cost
	}
}

func TestBaseCostNearlyLinearAtLowUtilization(t *testing.T) {
	curve := DefaultPricingCurve()
	reserve := new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)
	amount := big.NewInt(100)

	// At negligible utilization the convexity transform evaluates to ~1, so
	// the cost reduces to amount * rate * duration.
	cost, err := curve.BaseCost(reserve, big.NewInt(0), amount, big.NewRat(1, 1), 10)
	if err != nil {
		t.Fatalf("base cost: %v", err)
	}
	linear := big.NewInt(1_000)
	diff := new(big.Int).Sub(cost, linear)
	if diff.Sign() < 0 || diff.Cmp(big.NewInt(1)) > 0 {
		t.Fatalf("expected near-linear cost ~%s, got %s", linear, cost)
	}
}

func TestMarginalCostRejectsPoleCrossing(t *testing.T) {
	curve := DefaultPricingCurve()
	reserve := big.NewInt(1_000)

	// Free fraction hits the pole at 950 drawn out of 1000 with pole 1/20.
	if _, err := curve.MarginalCost(reserve, big.NewInt(0), big.NewInt(950)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity at the pole, got %v", err)
	}
	if _, err := curve.MarginalCost(reserve, big.NewInt(900), big.NewInt(100)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity past the pole, got %v", err)
	}
	if _, err := curve.MarginalCost(reserve, big.NewInt(0), big.NewInt(949)); err != nil {
		t.Fatalf("draw strictly above the pole must price: %v", err)
	}
}

func TestMarginalCostEmptyReserve(t *testing.T) {
	curve := DefaultPricingCurve()
	if _, err := curve.MarginalCost(big.NewInt(0), nil, big.NewInt(1)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity for empty reserve, got %v", err)
	}
}

func TestBaseCostZeroDuration(t *testing.T) {
	curve := DefaultPricingCurve()
	cost, err := curve.BaseCost(big.NewInt(1_000), big.NewInt(0), big.NewInt(10), big.NewRat(1, 1), 0)
	if err != nil {
		t.Fatalf("base cost: %v", err)
	}
	if cost.Sign() != 0 {
		t.Fatalf("zero duration must cost nothing, got %s", cost)
	}
}
