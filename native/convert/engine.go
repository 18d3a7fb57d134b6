package convert

import (
	"errors"
	"math/big"
	"strings"
	"sync"

	"rentpool/crypto"
)

var (
	ErrUnknownPair   = errors.New("convert: no rate configured for pair")
	ErrInvalidRate   = errors.New("convert: rate must be positive")
	ErrInvalidAmount = errors.New("convert: amount must not be negative")
)

type pair struct {
	source string
	target string
}

// custody is the minimal fungible-custody surface the converter swaps against.
type custody interface {
	Mint(token string, to crypto.Address, amount *big.Int) error
	Burn(token string, from crypto.Address, amount *big.Int) error
}

// Engine is the reference price-conversion capability: a fixed rate table
// seeded from configuration. Estimates are pure; Convert additionally swaps
// the holdings of the configured treasury account so custody balances track
// the conversion.
type Engine struct {
	mu       sync.RWMutex
	rates    map[pair]*big.Rat
	ledger   custody
	treasury crypto.Address
}

// NewEngine constructs a converter swapping against the treasury account.
func NewEngine(ledger custody, treasury crypto.Address) *Engine {
	return &Engine{
		rates:    make(map[pair]*big.Rat),
		ledger:   ledger,
		treasury: treasury,
	}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SetRate configures the source→target rate and its reciprocal.
func (e *Engine) SetRate(source, target string, rate *big.Rat) error {
	if rate == nil || rate.Sign() <= 0 {
		return ErrInvalidRate
	}
	source, target = normalize(source), normalize(target)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rates[pair{source, target}] = new(big.Rat).Set(rate)
	e.rates[pair{target, source}] = new(big.Rat).Inv(rate)
	return nil
}

func (e *Engine) rate(source, target string) (*big.Rat, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rate, ok := e.rates[pair{source, target}]
	if !ok {
		return nil, ErrUnknownPair
	}
	return new(big.Rat).Set(rate), nil
}

// EstimateConvert translates amount from source into target units, truncating.
func (e *Engine) EstimateConvert(source string, amount *big.Int, target string) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	source, target = normalize(source), normalize(target)
	if source == target {
		return new(big.Int).Set(amount), nil
	}
	if amount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	rate, err := e.rate(source, target)
	if err != nil {
		return nil, err
	}
	out := new(big.Rat).Mul(rate, new(big.Rat).SetInt(amount))
	return new(big.Int).Quo(out.Num(), out.Denom()), nil
}

// Convert performs the conversion against the treasury holdings: the source
// units are burned and the converted target units minted in their place.
func (e *Engine) Convert(source string, amount *big.Int, target string) (*big.Int, error) {
	converted, err := e.EstimateConvert(source, amount, target)
	if err != nil {
		return nil, err
	}
	source, target = normalize(source), normalize(target)
	if source == target || amount.Sign() == 0 {
		return converted, nil
	}
	if e.ledger != nil {
		if err := e.ledger.Burn(source, e.treasury, amount); err != nil {
			return nil, err
		}
		if converted.Sign() > 0 {
			if err := e.ledger.Mint(target, e.treasury, converted); err != nil {
				return nil, err
			}
		}
	}
	return converted, nil
}
