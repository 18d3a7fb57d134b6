package rental

import (
	"math/big"

	"rentpool/core/events"
	"rentpool/crypto"
	nativecommon "rentpool/native/common"
)

// returnTier resolves which callers may close the loan at the given time.
//
//  1. Before the borrower deadline only the receipt holder may return.
//  2. Until the collector deadline the designated collector may also return.
//  3. Afterwards anyone may return and claim the GC fee.
func (e *Engine) returnAuthorized(loan *Loan, owner, caller crypto.Address, now int64) bool {
	if caller.Equal(owner) {
		return true
	}
	if now < loan.BorrowerReturnDeadline {
		return false
	}
	if now < loan.CollectorReturnDeadline {
		return !e.collector.IsZero() && caller.Equal(e.collector)
	}
	return true
}

// ReturnLoan settles an active loan: releases the used reserve (unless the
// pool is shut down, which already zeroed it), pays the held GC fee to the
// closer, burns the loan receipt and deletes the record.
func (e *Engine) ReturnLoan(caller crypto.Address, loanID uint64) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	loan, err := e.activeLoan(loanID)
	if err != nil {
		return err
	}
	owner, err := e.receipts.OwnerOf(ReceiptLoan, loanID)
	if err != nil {
		return err
	}
	now := e.nowUnix()
	if !e.returnAuthorized(loan, owner, caller, now) {
		return ErrNotAuthorized
	}

	if loan.GCFee != nil && loan.GCFee.Sign() > 0 {
		if err := e.tokens.Transfer(loan.GCFeeToken, e.moduleAddress, caller, loan.GCFee); err != nil {
			return err
		}
	}
	if err := e.receipts.Burn(ReceiptLoan, loanID); err != nil {
		return err
	}
	if err := e.state.DeleteLoan(loanID); err != nil {
		return err
	}

	if !pool.Shutdown {
		pool.UsedReserve = new(big.Int).Sub(pool.UsedReserve, loan.Amount)
		if pool.UsedReserve.Sign() < 0 {
			pool.UsedReserve = big.NewInt(0)
		}
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}

	e.emit(events.LoanReturned{
		LoanID:      loanID,
		Closer:      addr20(caller),
		Amount:      loan.Amount,
		GCFee:       bigOrZero(loan.GCFee),
		GCFeeToken:  loan.GCFeeToken,
		UsedReserve: pool.UsedReserve,
	})
	e.emitReserveTotals(pool)
	return nil
}

// LoanTransferAllowed is the authorization hook the claim-receipt custodian
// consults before moving a loan receipt. Minting (zero source) and burning
// (zero destination) are always allowed; a peer-to-peer transfer is allowed
// only while the loan has not matured, freezing expired unreturned claims to
// force timely settlement.
func (e *Engine) LoanTransferAllowed(loanID uint64, from, to crypto.Address) (bool, error) {
	if from.IsZero() || to.IsZero() {
		return true, nil
	}
	loan, err := e.activeLoan(loanID)
	if err != nil {
		return false, err
	}
	return e.nowUnix() < loan.MaturityTime, nil
}
