package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"rentpool/crypto"
)

func testOwnerAddress() string {
	raw := make([]byte, 20)
	raw[0] = 0x42
	return crypto.NewAddress(crypto.RentPrefix, raw).String()
}

func TestLoadParsesSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf(`ListenAddress = "0.0.0.0:7000"
RPCAddress = "0.0.0.0:9000"
DataDir = "./pool-data"
Environment = "staging"
OwnerAddress = "%s"
RPCRequestsPerMinute = 120.0

[rental]
PoolToken = "rnt"
CurvePole = "1/25"
CurveSlope = "2/10"
StreamingWindowSecs = 3600
MaxServices = 16
`, testOwnerAddress())
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != "0.0.0.0:7000" || cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected listen addresses: %q %q", cfg.ListenAddress, cfg.RPCAddress)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("unexpected environment: %q", cfg.Environment)
	}
	if cfg.RPCRequestsPerMinute != 120 {
		t.Fatalf("unexpected rpc rate: %v", cfg.RPCRequestsPerMinute)
	}
	if cfg.ViewRequestsPerMinute != 600 {
		t.Fatalf("view rate default not applied: %v", cfg.ViewRequestsPerMinute)
	}
	if cfg.Rental.PoolToken != "rnt" || cfg.Rental.CurvePole != "1/25" {
		t.Fatalf("rental section not decoded: %+v", cfg.Rental)
	}
	if cfg.Rental.BorrowerGraceSecs != 43_200 || cfg.Rental.CollectorGraceSecs != 3_600 {
		t.Fatalf("rental defaults not applied: %+v", cfg.Rental)
	}
	if _, err := cfg.Rental.ParseCurve(); err != nil {
		t.Fatalf("parse curve: %v", err)
	}
}

func TestLoadRejectsMissingOwner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`ListenAddress = "0.0.0.0:7000"`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected missing OwnerAddress to fail validation")
	}
}

func TestLoadRejectsInvalidCurve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf(`OwnerAddress = "%s"

[rental]
CurvePole = "7/5"
`, testOwnerAddress())
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected out-of-range curve pole to fail validation")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load with missing file: %v", err)
	}
	if cfg.ListenAddress != "0.0.0.0:8080" || cfg.Rental.PoolToken != "RNT" {
		t.Fatalf("defaults not populated: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	contents := fmt.Sprintf(`services:
  - name: Compute Minutes
    symbol: CMP
    baseRate: 1/1000000
    serviceFeeBps: 1000
    minDurationSecs: 60
    maxDurationSecs: 2592000
    minGcFee: "25"
accounts:
  - address: %s
    token: RNT
    balance: "5000000"
rates:
  - from: RNT
    to: USDQ
    rate: 2/1
`, testOwnerAddress())
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if len(manifest.Services) != 1 || len(manifest.Accounts) != 1 || len(manifest.Rates) != 1 {
		t.Fatalf("unexpected manifest shape: %+v", manifest)
	}

	svc, err := manifest.Services[0].Service()
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	if svc.Name != "Compute Minutes" || svc.MinGCFee.Int64() != 25 {
		t.Fatalf("service seed not converted: %+v", svc)
	}
	if svc.BaseRate.Cmp(big.NewRat(1, 1_000_000)) != 0 {
		t.Fatalf("base rate mismatch: %v", svc.BaseRate)
	}

	amount, err := manifest.Accounts[0].Amount()
	if err != nil || amount.Int64() != 5_000_000 {
		t.Fatalf("account seed: %v %v", amount, err)
	}
	rate, err := manifest.Rates[0].Ratio()
	if err != nil || rate.Cmp(big.NewRat(2, 1)) != 0 {
		t.Fatalf("rate seed: %v %v", rate, err)
	}
}

func TestManifestRejectsBadSeeds(t *testing.T) {
	if _, err := (ServiceSeed{Name: "x", BaseRate: "not-a-rate"}).Service(); err == nil {
		t.Fatal("expected invalid base rate to fail")
	}
	if _, err := (AccountSeed{Address: "a", Balance: "-5"}).Amount(); err == nil {
		t.Fatal("expected negative balance to fail")
	}
	if _, err := (RateSeed{From: "A", To: "B", Rate: "0"}).Ratio(); err == nil {
		t.Fatal("expected zero rate to fail")
	}
}
