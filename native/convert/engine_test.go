package convert

import (
	"errors"
	"math/big"
	"testing"

	"rentpool/crypto"
	"rentpool/native/bank"
	"rentpool/state"
	"rentpool/storage"
)

func newTestConverter(t *testing.T) (*Engine, *bank.Ledger, crypto.Address) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	ledger := bank.NewLedger(manager)
	treasury := crypto.NewAddress(crypto.VaultPrefix, []byte("convert-treasury----"))
	return NewEngine(ledger, treasury), ledger, treasury
}

func TestSetRateRequiresPositiveRatio(t *testing.T) {
	engine, _, _ := newTestConverter(t)
	if err := engine.SetRate("RNT", "USDQ", nil); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("nil rate: got %v", err)
	}
	if err := engine.SetRate("RNT", "USDQ", big.NewRat(0, 1)); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("zero rate: got %v", err)
	}
	if err := engine.SetRate("RNT", "USDQ", big.NewRat(-1, 2)); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("negative rate: got %v", err)
	}
}

func TestSetRateInstallsReciprocal(t *testing.T) {
	engine, _, _ := newTestConverter(t)
	if err := engine.SetRate("rnt", "usdq", big.NewRat(2, 1)); err != nil {
		t.Fatalf("set rate: %v", err)
	}

	out, err := engine.EstimateConvert("RNT", big.NewInt(7), "USDQ")
	if err != nil || out.Int64() != 14 {
		t.Fatalf("forward: %v %v", out, err)
	}
	back, err := engine.EstimateConvert("USDQ", big.NewInt(14), "RNT")
	if err != nil || back.Int64() != 7 {
		t.Fatalf("reciprocal: %v %v", back, err)
	}
}

func TestEstimateConvertTruncatesTowardZero(t *testing.T) {
	engine, _, _ := newTestConverter(t)
	if err := engine.SetRate("RNT", "USDQ", big.NewRat(1, 3)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	out, err := engine.EstimateConvert("RNT", big.NewInt(10), "USDQ")
	if err != nil || out.Int64() != 3 {
		t.Fatalf("10/3 must floor to 3: %v %v", out, err)
	}
}

func TestEstimateConvertEdgeCases(t *testing.T) {
	engine, _, _ := newTestConverter(t)

	if _, err := engine.EstimateConvert("RNT", nil, "USDQ"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil amount: got %v", err)
	}
	if _, err := engine.EstimateConvert("RNT", big.NewInt(-1), "USDQ"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v", err)
	}
	if _, err := engine.EstimateConvert("RNT", big.NewInt(5), "USDQ"); !errors.Is(err, ErrUnknownPair) {
		t.Fatalf("unconfigured pair: got %v", err)
	}
	// Identity needs no rate entry.
	same, err := engine.EstimateConvert("rnt", big.NewInt(5), "RNT")
	if err != nil || same.Int64() != 5 {
		t.Fatalf("identity: %v %v", same, err)
	}
	zero, err := engine.EstimateConvert("RNT", big.NewInt(0), "USDQ")
	if err != nil || zero.Sign() != 0 {
		t.Fatalf("zero amount: %v %v", zero, err)
	}
}

func TestConvertSwapsTreasuryHoldings(t *testing.T) {
	engine, ledger, treasury := newTestConverter(t)
	if err := engine.SetRate("RNT", "USDQ", big.NewRat(2, 1)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	if err := ledger.Mint("RNT", treasury, big.NewInt(100)); err != nil {
		t.Fatalf("fund: %v", err)
	}

	out, err := engine.Convert("RNT", big.NewInt(40), "USDQ")
	if err != nil || out.Int64() != 80 {
		t.Fatalf("convert: %v %v", out, err)
	}
	if bal, err := ledger.BalanceOf("RNT", treasury); err != nil || bal.Int64() != 60 {
		t.Fatalf("source custody: %v %v", bal, err)
	}
	if bal, err := ledger.BalanceOf("USDQ", treasury); err != nil || bal.Int64() != 80 {
		t.Fatalf("target custody: %v %v", bal, err)
	}

	// Converting more than the treasury holds surfaces the custody error.
	if _, err := engine.Convert("RNT", big.NewInt(1000), "USDQ"); !errors.Is(err, bank.ErrInsufficientBalance) {
		t.Fatalf("overdrawn convert: got %v", err)
	}
}
