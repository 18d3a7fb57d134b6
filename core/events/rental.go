package events

import (
	"math/big"
	"strconv"

	"rentpool/core/types"
	"rentpool/crypto"
)

const (
	// TypeLiquidityChanged captures deposits, withdrawals and interest payouts.
	TypeLiquidityChanged = "rental.liquidityChanged"
	// TypeServiceRegistered is emitted when a new service enters the catalog.
	TypeServiceRegistered = "rental.serviceRegistered"
	// TypePaymentTokenUpdated signals a payment token being enabled or disabled.
	TypePaymentTokenUpdated = "rental.paymentTokenUpdated"
	// TypeLoanOpened captures a freshly borrowed utility claim.
	TypeLoanOpened = "rental.loanOpened"
	// TypeLoanExtended captures a reborrow extending an active loan.
	TypeLoanExtended = "rental.loanExtended"
	// TypeLoanReturned captures the settlement of an active loan.
	TypeLoanReturned = "rental.loanReturned"
	// TypeReserveTotals reports the reserve and share totals after a mutation.
	TypeReserveTotals = "rental.reserveTotals"
	// TypeShutdown marks the one-way terminal shutdown of the pool.
	TypeShutdown = "rental.shutdown"

	// LiquidityKindAdd identifies a fresh deposit creating a position.
	LiquidityKindAdd = "add"
	// LiquidityKindIncrease identifies a top-up of an existing position.
	LiquidityKindIncrease = "increase"
	// LiquidityKindDecrease identifies a partial principal withdrawal.
	LiquidityKindDecrease = "decrease"
	// LiquidityKindRemove identifies a full position removal.
	LiquidityKindRemove = "remove"
	// LiquidityKindInterest identifies an interest-only payout.
	LiquidityKindInterest = "interest"
)

// LiquidityChanged captures a single liquidity mutation together with the pool
// totals observed immediately after it.
type LiquidityChanged struct {
	Kind        string
	Account     [20]byte
	PositionID  uint64
	Amount      *big.Int
	Shares      *big.Int
	TotalShares *big.Int
	Reserve     *big.Int
	UsedReserve *big.Int
}

// EventType satisfies the Event interface.
func (LiquidityChanged) EventType() string { return TypeLiquidityChanged }

// Event converts the structured payload into a broadcastable event.
func (e LiquidityChanged) Event() *types.Event {
	attrs := map[string]string{
		"kind":        e.Kind,
		"addr":        crypto.MustNewAddress(crypto.RentPrefix, e.Account[:]).String(),
		"positionId":  strconv.FormatUint(e.PositionID, 10),
		"amount":      formatAmount(e.Amount),
		"totalShares": formatAmount(e.TotalShares),
		"reserve":     formatAmount(e.Reserve),
		"usedReserve": formatAmount(e.UsedReserve),
	}
	if e.Shares != nil {
		attrs["shares"] = formatAmount(e.Shares)
	}
	return &types.Event{Type: TypeLiquidityChanged, Attributes: attrs}
}

// ServiceRegistered captures the catalog slot assigned to a new service.
type ServiceRegistered struct {
	Index         uint16
	Name          string
	Symbol        string
	BaseRate      string
	ServiceFeeBps uint64
	MinDuration   int64
	MaxDuration   int64
	MinGCFee      *big.Int
}

// EventType satisfies the Event interface.
func (ServiceRegistered) EventType() string { return TypeServiceRegistered }

// Event converts the structured payload into a broadcastable event.
func (e ServiceRegistered) Event() *types.Event {
	return &types.Event{Type: TypeServiceRegistered, Attributes: map[string]string{
		"index":         strconv.FormatUint(uint64(e.Index), 10),
		"name":          e.Name,
		"symbol":        e.Symbol,
		"baseRate":      e.BaseRate,
		"serviceFeeBps": strconv.FormatUint(e.ServiceFeeBps, 10),
		"minDuration":   strconv.FormatInt(e.MinDuration, 10),
		"maxDuration":   strconv.FormatInt(e.MaxDuration, 10),
		"minGcFee":      formatAmount(e.MinGCFee),
	}}
}

// PaymentTokenUpdated signals that a payment token was toggled.
type PaymentTokenUpdated struct {
	Index   uint16
	Symbol  string
	Enabled bool
}

// EventType satisfies the Event interface.
func (PaymentTokenUpdated) EventType() string { return TypePaymentTokenUpdated }

// Event converts the structured payload into a broadcastable event.
func (e PaymentTokenUpdated) Event() *types.Event {
	return &types.Event{Type: TypePaymentTokenUpdated, Attributes: map[string]string{
		"index":   strconv.FormatUint(uint64(e.Index), 10),
		"symbol":  normalizeAsset(e.Symbol),
		"enabled": strconv.FormatBool(e.Enabled),
	}}
}

// LoanOpened captures a new loan together with its full fee breakdown.
type LoanOpened struct {
	LoanID           uint64
	Borrower         [20]byte
	ServiceIndex     uint16
	Amount           *big.Int
	PaymentToken     string
	Interest         *big.Int
	ServiceFee       *big.Int
	GCFee            *big.Int
	BorrowingTime    int64
	MaturityTime     int64
	BorrowerDeadline int64
	CollectorDeadline int64
}

// EventType satisfies the Event interface.
func (LoanOpened) EventType() string { return TypeLoanOpened }

// Event converts the structured payload into a broadcastable event.
func (e LoanOpened) Event() *types.Event {
	return &types.Event{Type: TypeLoanOpened, Attributes: map[string]string{
		"loanId":            strconv.FormatUint(e.LoanID, 10),
		"borrower":          crypto.MustNewAddress(crypto.RentPrefix, e.Borrower[:]).String(),
		"serviceIndex":      strconv.FormatUint(uint64(e.ServiceIndex), 10),
		"amount":            formatAmount(e.Amount),
		"paymentToken":      normalizeAsset(e.PaymentToken),
		"interest":          formatAmount(e.Interest),
		"serviceFee":        formatAmount(e.ServiceFee),
		"gcFee":             formatAmount(e.GCFee),
		"borrowingTime":     strconv.FormatInt(e.BorrowingTime, 10),
		"maturityTime":      strconv.FormatInt(e.MaturityTime, 10),
		"borrowerDeadline":  strconv.FormatInt(e.BorrowerDeadline, 10),
		"collectorDeadline": strconv.FormatInt(e.CollectorDeadline, 10),
	}}
}

// LoanExtended captures a reborrow that pushed out the loan maturity.
type LoanExtended struct {
	LoanID            uint64
	Borrower          [20]byte
	Amount            *big.Int
	Interest          *big.Int
	ServiceFee        *big.Int
	MaturityTime      int64
	BorrowerDeadline  int64
	CollectorDeadline int64
}

// EventType satisfies the Event interface.
func (LoanExtended) EventType() string { return TypeLoanExtended }

// Event converts the structured payload into a broadcastable event.
func (e LoanExtended) Event() *types.Event {
	return &types.Event{Type: TypeLoanExtended, Attributes: map[string]string{
		"loanId":            strconv.FormatUint(e.LoanID, 10),
		"borrower":          crypto.MustNewAddress(crypto.RentPrefix, e.Borrower[:]).String(),
		"amount":            formatAmount(e.Amount),
		"interest":          formatAmount(e.Interest),
		"serviceFee":        formatAmount(e.ServiceFee),
		"maturityTime":      strconv.FormatInt(e.MaturityTime, 10),
		"borrowerDeadline":  strconv.FormatInt(e.BorrowerDeadline, 10),
		"collectorDeadline": strconv.FormatInt(e.CollectorDeadline, 10),
	}}
}

// LoanReturned captures a loan settlement, including who closed it.
type LoanReturned struct {
	LoanID      uint64
	Closer      [20]byte
	Amount      *big.Int
	GCFee       *big.Int
	GCFeeToken  string
	UsedReserve *big.Int
}

// EventType satisfies the Event interface.
func (LoanReturned) EventType() string { return TypeLoanReturned }

// Event converts the structured payload into a broadcastable event.
func (e LoanReturned) Event() *types.Event {
	return &types.Event{Type: TypeLoanReturned, Attributes: map[string]string{
		"loanId":      strconv.FormatUint(e.LoanID, 10),
		"closer":      crypto.MustNewAddress(crypto.RentPrefix, e.Closer[:]).String(),
		"amount":      formatAmount(e.Amount),
		"gcFee":       formatAmount(e.GCFee),
		"gcFeeToken":  normalizeAsset(e.GCFeeToken),
		"usedReserve": formatAmount(e.UsedReserve),
	}}
}

// ReserveTotals reports the aggregate reserve figures after a mutation.
type ReserveTotals struct {
	FixedReserve    *big.Int
	StreamingTarget *big.Int
	UsedReserve     *big.Int
	TotalShares     *big.Int
}

// EventType satisfies the Event interface.
func (ReserveTotals) EventType() string { return TypeReserveTotals }

// Event converts the structured payload into a broadcastable event.
func (e ReserveTotals) Event() *types.Event {
	return &types.Event{Type: TypeReserveTotals, Attributes: map[string]string{
		"fixedReserve":    formatAmount(e.FixedReserve),
		"streamingTarget": formatAmount(e.StreamingTarget),
		"usedReserve":     formatAmount(e.UsedReserve),
		"totalShares":     formatAmount(e.TotalShares),
	}}
}

// Shutdown marks the terminal shutdown of the pool.
type Shutdown struct {
	Caller       [20]byte
	FinalReserve *big.Int
	Timestamp    int64
}

// EventType satisfies the Event interface.
func (Shutdown) EventType() string { return TypeShutdown }

// Event converts the structured payload into a broadcastable event.
func (e Shutdown) Event() *types.Event {
	return &types.Event{Type: TypeShutdown, Attributes: map[string]string{
		"caller":       crypto.MustNewAddress(crypto.RentPrefix, e.Caller[:]).String(),
		"finalReserve": formatAmount(e.FinalReserve),
		"timestamp":    strconv.FormatInt(e.Timestamp, 10),
	}}
}
