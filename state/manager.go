package state

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"rentpool/crypto"
	"rentpool/native/rental"
	"rentpool/storage"
)

const (
	keyPool          = "rental/pool"
	prefixService    = "rental/service/"
	prefixPosition   = "rental/position/"
	prefixLoan       = "rental/loan/"
	prefixBalance    = "bank/balance/"
	prefixReceipt    = "bank/receipt/"
	prefixReceiptSeq = "bank/receiptseq/"
)

// Manager persists the rental pool, catalog, positions, loans, balances and
// claim receipts as JSON records in a key-value store. It satisfies the rental
// engine's state interface and the bank's ledger and receipt stores.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getJSON(key string, out interface{}) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

// --- rental engine state ---

// Pool loads the pool record, nil when the pool was never initialised.
func (m *Manager) Pool() (*rental.PoolState, error) {
	pool := new(rental.PoolState)
	ok, err := m.getJSON(keyPool, pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pool, nil
}

// PutPool stores the pool record.
func (m *Manager) PutPool(pool *rental.PoolState) error {
	return m.putJSON(keyPool, pool)
}

func serviceKey(index uint16) string {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], index)
	return prefixService + hex.EncodeToString(buf[:])
}

// Service loads a catalog entry, nil when the slot is empty.
func (m *Manager) Service(index uint16) (*rental.Service, error) {
	svc := new(rental.Service)
	ok, err := m.getJSON(serviceKey(index), svc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return svc, nil
}

// PutService stores a catalog entry under its index.
func (m *Manager) PutService(svc *rental.Service) error {
	if svc == nil {
		return fmt.Errorf("state: nil service")
	}
	return m.putJSON(serviceKey(svc.Index), svc)
}

func idKey(prefix string, id uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return prefix + hex.EncodeToString(buf[:])
}

// Position loads a liquidity position, nil when absent.
func (m *Manager) Position(id uint64) (*rental.LiquidityPosition, error) {
	pos := new(rental.LiquidityPosition)
	ok, err := m.getJSON(idKey(prefixPosition, id), pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pos, nil
}

// PutPosition stores a liquidity position.
func (m *Manager) PutPosition(id uint64, pos *rental.LiquidityPosition) error {
	return m.putJSON(idKey(prefixPosition, id), pos)
}

// DeletePosition removes a liquidity position.
func (m *Manager) DeletePosition(id uint64) error {
	return m.db.Delete([]byte(idKey(prefixPosition, id)))
}

// Loan loads a loan record, nil when absent.
func (m *Manager) Loan(id uint64) (*rental.Loan, error) {
	loan := new(rental.Loan)
	ok, err := m.getJSON(idKey(prefixLoan, id), loan)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return loan, nil
}

// PutLoan stores a loan record.
func (m *Manager) PutLoan(id uint64, loan *rental.Loan) error {
	return m.putJSON(idKey(prefixLoan, id), loan)
}

// DeleteLoan removes a loan record.
func (m *Manager) DeleteLoan(id uint64) error {
	return m.db.Delete([]byte(idKey(prefixLoan, id)))
}

// --- bank ledger store ---

func balanceKey(token string, addr crypto.Address) string {
	return prefixBalance + token + "/" + hex.EncodeToString(addr.Bytes())
}

// Balance loads a fungible balance, nil when the account is unknown.
func (m *Manager) Balance(token string, addr crypto.Address) (*big.Int, error) {
	var encoded string
	ok, err := m.getJSON(balanceKey(token, addr), &encoded)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	value, valid := new(big.Int).SetString(encoded, 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt balance for %s", token)
	}
	return value, nil
}

// SetBalance stores a fungible balance.
func (m *Manager) SetBalance(token string, addr crypto.Address, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.putJSON(balanceKey(token, addr), amount.String())
}

// --- bank receipt store ---

func receiptKindName(kind rental.ReceiptKind) string {
	if kind == rental.ReceiptLoan {
		return "loan"
	}
	return "liquidity"
}

func receiptKey(kind rental.ReceiptKind, id uint64) string {
	return idKey(prefixReceipt+receiptKindName(kind)+"/", id)
}

// ReceiptOwner resolves a claim receipt's holder.
func (m *Manager) ReceiptOwner(kind rental.ReceiptKind, id uint64) (crypto.Address, bool, error) {
	var encoded string
	ok, err := m.getJSON(receiptKey(kind, id), &encoded)
	if err != nil || !ok {
		return crypto.Address{}, false, err
	}
	owner, err := crypto.DecodeAddress(encoded)
	if err != nil {
		return crypto.Address{}, false, fmt.Errorf("state: corrupt receipt owner: %w", err)
	}
	return owner, true, nil
}

// SetReceiptOwner stores a claim receipt's holder.
func (m *Manager) SetReceiptOwner(kind rental.ReceiptKind, id uint64, owner crypto.Address) error {
	return m.putJSON(receiptKey(kind, id), owner.String())
}

// DeleteReceipt removes a claim receipt.
func (m *Manager) DeleteReceipt(kind rental.ReceiptKind, id uint64) error {
	return m.db.Delete([]byte(receiptKey(kind, id)))
}

// NextReceiptID increments and returns the per-kind receipt counter.
// Identifiers start at 1 so zero can mean "no receipt".
func (m *Manager) NextReceiptID(kind rental.ReceiptKind) (uint64, error) {
	key := prefixReceiptSeq + receiptKindName(kind)
	var current uint64
	if _, err := m.getJSON(key, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.putJSON(key, next); err != nil {
		return 0, err
	}
	return next, nil
}
