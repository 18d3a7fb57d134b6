package bank

import (
	"errors"
	"testing"

	"rentpool/crypto"
	"rentpool/native/rental"
	"rentpool/state"
	"rentpool/storage"
)

type stubAuthorizer struct {
	allow bool
	err   error
}

func (s stubAuthorizer) LoanTransferAllowed(uint64, crypto.Address, crypto.Address) (bool, error) {
	return s.allow, s.err
}

func newTestReceipts() *Receipts {
	return NewReceipts(state.NewManager(storage.NewMemDB()))
}

func TestReceiptsMintAssignsSequentialIDs(t *testing.T) {
	receipts := newTestReceipts()
	alice := testAddr(0x01)

	first, err := receipts.Mint(rental.ReceiptLiquidity, alice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, err := receipts.Mint(rental.ReceiptLiquidity, alice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if first == 0 || second != first+1 {
		t.Fatalf("ids must be sequential and non-zero: %d %d", first, second)
	}

	// Kinds number independently.
	loanID, err := receipts.Mint(rental.ReceiptLoan, alice)
	if err != nil {
		t.Fatalf("mint loan: %v", err)
	}
	if loanID != first {
		t.Fatalf("loan numbering must restart: got %d want %d", loanID, first)
	}
}

func TestReceiptsOwnershipLifecycle(t *testing.T) {
	receipts := newTestReceipts()
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	id, err := receipts.Mint(rental.ReceiptLiquidity, alice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	owner, err := receipts.OwnerOf(rental.ReceiptLiquidity, id)
	if err != nil || !owner.Equal(alice) {
		t.Fatalf("owner: %v %v", owner, err)
	}
	if err := receipts.Transfer(rental.ReceiptLiquidity, id, bob, alice); !errors.Is(err, ErrReceiptNotOwned) {
		t.Fatalf("transfer by non-owner: got %v", err)
	}
	if err := receipts.Transfer(rental.ReceiptLiquidity, id, alice, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := receipts.Burn(rental.ReceiptLiquidity, id); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if _, err := receipts.OwnerOf(rental.ReceiptLiquidity, id); !errors.Is(err, ErrUnknownReceipt) {
		t.Fatalf("owner after burn: got %v", err)
	}
	if err := receipts.Burn(rental.ReceiptLiquidity, id); !errors.Is(err, ErrUnknownReceipt) {
		t.Fatalf("double burn: got %v", err)
	}
}

func TestLoanReceiptTransferConsultsAuthorizer(t *testing.T) {
	receipts := newTestReceipts()
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	id, err := receipts.Mint(rental.ReceiptLoan, alice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	receipts.SetAuthorizer(stubAuthorizer{allow: false})
	if err := receipts.Transfer(rental.ReceiptLoan, id, alice, bob); !errors.Is(err, ErrTransferNotAllowed) {
		t.Fatalf("frozen transfer: got %v", err)
	}
	receipts.SetAuthorizer(stubAuthorizer{allow: true})
	if err := receipts.Transfer(rental.ReceiptLoan, id, alice, bob); err != nil {
		t.Fatalf("allowed transfer: %v", err)
	}

	// Liquidity receipts never consult the hook.
	receipts.SetAuthorizer(stubAuthorizer{allow: false})
	liqID, err := receipts.Mint(rental.ReceiptLiquidity, alice)
	if err != nil {
		t.Fatalf("mint liquidity: %v", err)
	}
	if err := receipts.Transfer(rental.ReceiptLiquidity, liqID, alice, bob); err != nil {
		t.Fatalf("liquidity transfer: %v", err)
	}
}
