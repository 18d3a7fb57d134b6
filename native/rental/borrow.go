package rental

import (
	"math/big"
	"strings"

	"rentpool/core/events"
	"rentpool/crypto"
	nativecommon "rentpool/native/common"
)

// EstimateLoan quotes the total payment-asset cost of borrowing amount for
// durationSecs against the current utilization.
func (e *Engine) EstimateLoan(serviceIndex uint16, payToken string, amount *big.Int, durationSecs int64) (*big.Int, error) {
	quote, err := e.EstimateLoanDetailed(serviceIndex, payToken, amount, durationSecs)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(quote.Total), nil
}

// EstimateLoanDetailed quotes the full fee breakdown for a prospective loan.
func (e *Engine) EstimateLoanDetailed(serviceIndex uint16, payToken string, amount *big.Int, durationSecs int64) (*LoanQuote, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	svc, payToken, err := e.validateBorrowInput(pool, serviceIndex, payToken, amount, durationSecs)
	if err != nil {
		return nil, err
	}
	return e.quoteLoan(pool, svc, payToken, amount, durationSecs, true)
}

func (e *Engine) validateBorrowInput(pool *PoolState, serviceIndex uint16, payToken string, amount *big.Int, durationSecs int64) (*Service, string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, "", ErrInvalidAmount
	}
	svc, err := e.state.Service(serviceIndex)
	if err != nil {
		return nil, "", err
	}
	if svc == nil {
		return nil, "", ErrUnknownService
	}
	if durationSecs < svc.MinDuration || durationSecs > svc.MaxDuration {
		return nil, "", ErrInvalidDuration
	}
	payToken = strings.ToUpper(strings.TrimSpace(payToken))
	if payToken == "" {
		payToken = pool.PoolToken
	}
	if !e.paymentTokenEnabled(pool, payToken) {
		return nil, "", ErrPaymentTokenDisabled
	}
	return svc, payToken, nil
}

// Borrow draws a utility claim of amount against the pool for durationSecs,
// collects the dynamically priced cost in payToken and mints a loan receipt to
// the borrower. maxPayment bounds the total payment-asset cost; the quote is
// checked against it before any transfer. The loan identifier is returned.
func (e *Engine) Borrow(borrower crypto.Address, serviceIndex uint16, payToken string, amount *big.Int, durationSecs int64, maxPayment *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	pool, err := e.ensurePool()
	if err != nil {
		return 0, err
	}
	if pool.Shutdown {
		return 0, ErrShutdown
	}
	svc, payToken, err := e.validateBorrowInput(pool, serviceIndex, payToken, amount, durationSecs)
	if err != nil {
		return 0, err
	}

	now := e.nowUnix()
	if amount.Cmp(availableAt(pool, now, e.streamingWindow)) > 0 {
		return 0, ErrInsufficientLiquidity
	}

	quote, err := e.quoteLoan(pool, svc, payToken, amount, durationSecs, true)
	if err != nil {
		return 0, err
	}
	if maxPayment != nil && quote.Total.Cmp(maxPayment) > 0 {
		return 0, ErrCostExceedsMax
	}

	if err := e.collectLoanPayment(pool, borrower, payToken, quote); err != nil {
		return 0, err
	}

	pool.UsedReserve = new(big.Int).Add(pool.UsedReserve, amount)

	maturity := now + durationSecs
	loan := &Loan{
		Amount:                  new(big.Int).Set(amount),
		ServiceIndex:            svc.Index,
		BorrowingTime:           now,
		MaturityTime:            maturity,
		BorrowerReturnDeadline:  maturity + e.borrowerGrace,
		CollectorReturnDeadline: maturity + e.borrowerGrace + e.collectorGrace,
		GCFee:                   new(big.Int).Set(quote.PayGCFee),
		GCFeeToken:              payToken,
	}

	id, err := e.receipts.Mint(ReceiptLoan, borrower)
	if err != nil {
		return 0, err
	}
	if err := e.state.PutLoan(id, loan); err != nil {
		return 0, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return 0, err
	}

	e.emit(events.LoanOpened{
		LoanID:            id,
		Borrower:          addr20(borrower),
		ServiceIndex:      svc.Index,
		Amount:            loan.Amount,
		PaymentToken:      payToken,
		Interest:          quote.Interest,
		ServiceFee:        quote.ServiceFee,
		GCFee:             quote.PayGCFee,
		BorrowingTime:     loan.BorrowingTime,
		MaturityTime:      loan.MaturityTime,
		BorrowerDeadline:  loan.BorrowerReturnDeadline,
		CollectorDeadline: loan.CollectorReturnDeadline,
	})
	e.emitReserveTotals(pool)
	return id, nil
}

// Reborrow extends an active loan by durationSecs past its current maturity,
// charging the marginal cost of re-drawing the same amount at current
// utilization. The borrowing time and amount never change; maturity and both
// grace deadlines move out. Any caller may pay for the extension.
func (e *Engine) Reborrow(payer crypto.Address, loanID uint64, payToken string, durationSecs int64, maxPayment *big.Int) error {
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
	if pool.Shutdown {
		return ErrShutdown
	}
	loan, err := e.activeLoan(loanID)
	if err != nil {
		return err
	}
	svc, payToken, err := e.validateBorrowInput(pool, loan.ServiceIndex, payToken, loan.Amount, durationSecs)
	if err != nil {
		return err
	}

	now := e.nowUnix()
	newMaturity := loan.MaturityTime + durationSecs
	if newMaturity < now {
		return ErrInvalidDuration
	}

	// Price the extension as if the loan were returned and immediately drawn
	// again, so the quote reflects the true marginal cost at current
	// utilization.
	priced := pool.Clone()
	priced.UsedReserve = new(big.Int).Sub(priced.UsedReserve, loan.Amount)
	if priced.UsedReserve.Sign() < 0 {
		priced.UsedReserve = big.NewInt(0)
	}
	quote, err := e.quoteLoan(priced, svc, payToken, loan.Amount, durationSecs, false)
	if err != nil {
		return err
	}
	if maxPayment != nil && quote.Total.Cmp(maxPayment) > 0 {
		return ErrCostExceedsMax
	}

	if err := e.collectLoanPayment(pool, payer, payToken, quote); err != nil {
		return err
	}

	loan.MaturityTime = newMaturity
	loan.BorrowerReturnDeadline = newMaturity + e.borrowerGrace
	loan.CollectorReturnDeadline = newMaturity + e.borrowerGrace + e.collectorGrace
	if err := e.state.PutLoan(loanID, loan); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}

	owner, err := e.receipts.OwnerOf(ReceiptLoan, loanID)
	if err != nil {
		return err
	}
	e.emit(events.LoanExtended{
		LoanID:            loanID,
		Borrower:          addr20(owner),
		Amount:            loan.Amount,
		Interest:          quote.Interest,
		ServiceFee:        quote.ServiceFee,
		MaturityTime:      loan.MaturityTime,
		BorrowerDeadline:  loan.BorrowerReturnDeadline,
		CollectorDeadline: loan.CollectorReturnDeadline,
	})
	e.emitReserveTotals(pool)
	return nil
}
