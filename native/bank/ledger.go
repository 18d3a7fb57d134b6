package bank

import (
	"errors"
	"math/big"
	"strings"

	"rentpool/crypto"
)

var (
	ErrInvalidToken        = errors.New("bank: token symbol required")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrNilStore            = errors.New("bank: store not configured")
)

// LedgerStore is the persistence surface for fungible balances.
type LedgerStore interface {
	Balance(token string, addr crypto.Address) (*big.Int, error)
	SetBalance(token string, addr crypto.Address, amount *big.Int) error
}

// Ledger is the reference fungible-custody collaborator: a multi-asset balance
// sheet keyed by token symbol and account address.
type Ledger struct {
	store LedgerStore
}

// NewLedger constructs a ledger backed by the supplied store.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store}
}

func normalizeToken(token string) (string, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

func (l *Ledger) balance(token string, addr crypto.Address) (*big.Int, error) {
	bal, err := l.store.Balance(token, addr)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return bal, nil
}

// BalanceOf returns the current balance, zero when the account is unknown.
func (l *Ledger) BalanceOf(token string, addr crypto.Address) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, ErrNilStore
	}
	token, err := normalizeToken(token)
	if err != nil {
		return nil, err
	}
	return l.balance(token, addr)
}

// Transfer moves amount between two accounts, failing when the source balance
// is inadequate.
func (l *Ledger) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return ErrNilStore
	}
	token, err := normalizeToken(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBal, err := l.balance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer is a funded no-op; writing the destination last would
	// otherwise credit the amount without the matching debit.
	if from.Equal(to) {
		return nil
	}
	toBal, err := l.balance(token, to)
	if err != nil {
		return err
	}
	if err := l.store.SetBalance(token, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.store.SetBalance(token, to, new(big.Int).Add(toBal, amount))
}

// Mint credits freshly issued units to an account.
func (l *Ledger) Mint(token string, to crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return ErrNilStore
	}
	token, err := normalizeToken(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := l.balance(token, to)
	if err != nil {
		return err
	}
	return l.store.SetBalance(token, to, new(big.Int).Add(bal, amount))
}

// Burn destroys units held by an account.
func (l *Ledger) Burn(token string, from crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return ErrNilStore
	}
	token, err := normalizeToken(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := l.balance(token, from)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return l.store.SetBalance(token, from, new(big.Int).Sub(bal, amount))
}

// ForceTransfer moves amount without consent checks. Reserved for authorized
// administrative flows.
func (l *Ledger) ForceTransfer(token string, from, to crypto.Address, amount *big.Int) error {
	return l.Transfer(token, from, to, amount)
}
