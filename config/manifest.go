package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"rentpool/native/rental"
)

// ServiceSeed describes one catalog entry in the bootstrap manifest.
type ServiceSeed struct {
	Name                   string `yaml:"name"`
	Symbol                 string `yaml:"symbol"`
	BaseRate               string `yaml:"baseRate"`
	ServiceFeeBps          uint64 `yaml:"serviceFeeBps"`
	MinDurationSecs        int64  `yaml:"minDurationSecs"`
	MaxDurationSecs        int64  `yaml:"maxDurationSecs"`
	MinGCFee               string `yaml:"minGcFee"`
	EnergyGapHalvingPeriod int64  `yaml:"energyGapHalvingPeriod"`
	AllowsPerpetual        bool   `yaml:"allowsPerpetual"`
}

// AccountSeed funds one account at first start.
type AccountSeed struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
	Balance string `yaml:"balance"`
}

// RateSeed fixes one conversion pair for the payment converter.
type RateSeed struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Rate string `yaml:"rate"`
}

// Manifest is the YAML bootstrap document applied once against an empty
// database: catalog entries, funded accounts and conversion rates.
type Manifest struct {
	Services []ServiceSeed `yaml:"services"`
	Accounts []AccountSeed `yaml:"accounts"`
	Rates    []RateSeed    `yaml:"rates"`
}

// LoadManifest parses the YAML manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	manifest := &Manifest{}
	if err := yaml.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	return manifest, nil
}

// Service converts a seed into a catalog entry, validating its numeric fields.
func (s ServiceSeed) Service() (rental.Service, error) {
	baseRate, ok := new(big.Rat).SetString(strings.TrimSpace(s.BaseRate))
	if !ok {
		return rental.Service{}, fmt.Errorf("manifest: service %q: invalid base rate %q", s.Name, s.BaseRate)
	}
	minGCFee := big.NewInt(0)
	if trimmed := strings.TrimSpace(s.MinGCFee); trimmed != "" {
		fee, feeOK := new(big.Int).SetString(trimmed, 10)
		if !feeOK || fee.Sign() < 0 {
			return rental.Service{}, fmt.Errorf("manifest: service %q: invalid GC fee %q", s.Name, s.MinGCFee)
		}
		minGCFee = fee
	}
	return rental.Service{
		Name:                   s.Name,
		Symbol:                 s.Symbol,
		BaseRate:               baseRate,
		ServiceFeeBps:          s.ServiceFeeBps,
		MinDuration:            s.MinDurationSecs,
		MaxDuration:            s.MaxDurationSecs,
		MinGCFee:               minGCFee,
		EnergyGapHalvingPeriod: s.EnergyGapHalvingPeriod,
		AllowsPerpetual:        s.AllowsPerpetual,
	}, nil
}

// Amount parses the seed balance.
func (a AccountSeed) Amount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(a.Balance), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("manifest: account %s: invalid balance %q", a.Address, a.Balance)
	}
	return amount, nil
}

// Ratio parses the conversion rate.
func (r RateSeed) Ratio() (*big.Rat, error) {
	rate, ok := new(big.Rat).SetString(strings.TrimSpace(r.Rate))
	if !ok || rate.Sign() <= 0 {
		return nil, fmt.Errorf("manifest: rate %s->%s: invalid ratio %q", r.From, r.To, r.Rate)
	}
	return rate, nil
}
