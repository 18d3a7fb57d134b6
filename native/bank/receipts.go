package bank

import (
	"errors"

	"rentpool/crypto"
	"rentpool/native/rental"
)

var (
	ErrUnknownReceipt     = errors.New("bank: unknown receipt")
	ErrReceiptNotOwned    = errors.New("bank: receipt not owned by sender")
	ErrTransferNotAllowed = errors.New("bank: receipt transfer not allowed")
)

// ReceiptStore is the persistence surface for claim-receipt ownership.
type ReceiptStore interface {
	ReceiptOwner(kind rental.ReceiptKind, id uint64) (crypto.Address, bool, error)
	SetReceiptOwner(kind rental.ReceiptKind, id uint64, owner crypto.Address) error
	DeleteReceipt(kind rental.ReceiptKind, id uint64) error
	NextReceiptID(kind rental.ReceiptKind) (uint64, error)
}

// TransferAuthorizer is consulted before a peer-to-peer loan receipt transfer.
// The rental engine implements it with its maturity freeze.
type TransferAuthorizer interface {
	LoanTransferAllowed(id uint64, from, to crypto.Address) (bool, error)
}

// Receipts is the reference claim-receipt custodian. It assigns identifiers,
// tracks ownership and enforces the engine's transfer authorization for
// loan-bound receipts.
type Receipts struct {
	store      ReceiptStore
	authorizer TransferAuthorizer
}

// NewReceipts constructs a receipt registry backed by the supplied store.
func NewReceipts(store ReceiptStore) *Receipts {
	return &Receipts{store: store}
}

// SetAuthorizer wires the loan transfer authorization hook.
func (r *Receipts) SetAuthorizer(authorizer TransferAuthorizer) {
	if r == nil {
		return
	}
	r.authorizer = authorizer
}

// Mint issues a fresh receipt of the given kind to owner and returns its id.
func (r *Receipts) Mint(kind rental.ReceiptKind, owner crypto.Address) (uint64, error) {
	if r == nil || r.store == nil {
		return 0, ErrNilStore
	}
	id, err := r.store.NextReceiptID(kind)
	if err != nil {
		return 0, err
	}
	if err := r.store.SetReceiptOwner(kind, id, owner); err != nil {
		return 0, err
	}
	return id, nil
}

// Burn destroys a receipt.
func (r *Receipts) Burn(kind rental.ReceiptKind, id uint64) error {
	if r == nil || r.store == nil {
		return ErrNilStore
	}
	_, ok, err := r.store.ReceiptOwner(kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownReceipt
	}
	return r.store.DeleteReceipt(kind, id)
}

// OwnerOf resolves the current holder of a receipt.
func (r *Receipts) OwnerOf(kind rental.ReceiptKind, id uint64) (crypto.Address, error) {
	if r == nil || r.store == nil {
		return crypto.Address{}, ErrNilStore
	}
	owner, ok, err := r.store.ReceiptOwner(kind, id)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok {
		return crypto.Address{}, ErrUnknownReceipt
	}
	return owner, nil
}

// Transfer moves a receipt between two holders. Loan receipts consult the
// engine's authorization hook, which freezes matured loans.
func (r *Receipts) Transfer(kind rental.ReceiptKind, id uint64, from, to crypto.Address) error {
	if r == nil || r.store == nil {
		return ErrNilStore
	}
	owner, ok, err := r.store.ReceiptOwner(kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownReceipt
	}
	if !owner.Equal(from) {
		return ErrReceiptNotOwned
	}
	if kind == rental.ReceiptLoan && r.authorizer != nil {
		allowed, err := r.authorizer.LoanTransferAllowed(id, from, to)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrTransferNotAllowed
		}
	}
	return r.store.SetReceiptOwner(kind, id, to)
}
