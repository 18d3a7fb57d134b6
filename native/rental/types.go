package rental

import "math/big"

// PaymentToken is a slot in the ordered registry of accepted payment assets.
// The pool's base asset always occupies index 0 and cannot be disabled.
type PaymentToken struct {
	Symbol  string `json:"symbol"`
	Enabled bool   `json:"enabled"`
}

// PoolState captures the global accounting state of the rental pool. Amount
// values are denominated in the pool asset's smallest unit and expressed as
// big integers for deterministic fixed-point accounting.
type PoolState struct {
	// PoolToken is the symbol of the base asset backing all claims.
	PoolToken string `json:"poolToken"`
	// FixedReserve is the settled, immediately withdrawable reserve.
	FixedReserve *big.Int `json:"fixedReserve"`
	// StreamingReserve snapshots the vested portion of the streaming target
	// at StreamingUpdated. It is folded into FixedReserve on flush.
	StreamingReserve *big.Int `json:"streamingReserve"`
	// StreamingTarget is the total interest still vesting into the reserve.
	StreamingTarget *big.Int `json:"streamingTarget"`
	// StreamingUpdated records when the stream was last mutated, unix seconds.
	StreamingUpdated int64 `json:"streamingUpdated"`
	// UsedReserve is the portion of the reserve currently lent out.
	UsedReserve *big.Int `json:"usedReserve"`
	// TotalShares is the aggregate share supply across all positions.
	TotalShares *big.Int `json:"totalShares"`
	// ServiceCount is the next free catalog index.
	ServiceCount uint16 `json:"serviceCount"`
	// PaymentTokens is the ordered registry of accepted payment assets.
	PaymentTokens []PaymentToken `json:"paymentTokens"`
	// Shutdown is the one-way terminal flag.
	Shutdown bool `json:"shutdown"`
}

// Clone returns a deep copy of the pool state.
func (p *PoolState) Clone() *PoolState {
	if p == nil {
		return nil
	}
	clone := &PoolState{
		PoolToken:        p.PoolToken,
		StreamingUpdated: p.StreamingUpdated,
		ServiceCount:     p.ServiceCount,
		Shutdown:         p.Shutdown,
	}
	if p.FixedReserve != nil {
		clone.FixedReserve = new(big.Int).Set(p.FixedReserve)
	}
	if p.StreamingReserve != nil {
		clone.StreamingReserve = new(big.Int).Set(p.StreamingReserve)
	}
	if p.StreamingTarget != nil {
		clone.StreamingTarget = new(big.Int).Set(p.StreamingTarget)
	}
	if p.UsedReserve != nil {
		clone.UsedReserve = new(big.Int).Set(p.UsedReserve)
	}
	if p.TotalShares != nil {
		clone.TotalShares = new(big.Int).Set(p.TotalShares)
	}
	if len(p.PaymentTokens) > 0 {
		clone.PaymentTokens = append([]PaymentToken(nil), p.PaymentTokens...)
	}
	return clone
}

// LiquidityPosition maintains a single provider's claim on the pool.
type LiquidityPosition struct {
	// Principal is the deposited amount net of withdrawals.
	Principal *big.Int `json:"principal"`
	// Shares is the position's proportional claim on the reserve.
	Shares *big.Int `json:"shares"`
	// CreatedAtBlock guards against flash add-then-remove within one block.
	CreatedAtBlock uint64 `json:"createdAtBlock"`
}

// Clone returns a deep copy of the position.
func (p *LiquidityPosition) Clone() *LiquidityPosition {
	if p == nil {
		return nil
	}
	clone := &LiquidityPosition{CreatedAtBlock: p.CreatedAtBlock}
	if p.Principal != nil {
		clone.Principal = new(big.Int).Set(p.Principal)
	}
	if p.Shares != nil {
		clone.Shares = new(big.Int).Set(p.Shares)
	}
	return clone
}

// Service is a catalog entry describing one rentable utility.
type Service struct {
	// Index is the stable catalog slot assigned at registration.
	Index uint16 `json:"index"`
	// Name is the human-readable service name.
	Name string `json:"name"`
	// Symbol is the short ticker used in receipts and events.
	Symbol string `json:"symbol"`
	// BaseRate is the price per unit amount per second, as an exact rational.
	BaseRate *big.Rat `json:"baseRate"`
	// ServiceFeeBps is the protocol fee carved out of the loan cost, in
	// basis points.
	ServiceFeeBps uint64 `json:"serviceFeeBps"`
	// MinDuration and MaxDuration bound the loan duration in seconds.
	MinDuration int64 `json:"minDuration"`
	MaxDuration int64 `json:"maxDuration"`
	// MinGCFee is the flat garbage-collection incentive floor in pool units.
	MinGCFee *big.Int `json:"minGcFee"`
	// EnergyGapHalvingPeriod is the decay constant, in seconds, consumed by
	// the external usage metering concept. Stored here, never interpreted.
	EnergyGapHalvingPeriod int64 `json:"energyGapHalvingPeriod"`
	// AllowsPerpetual marks services whose claims may be held indefinitely by
	// external wrappers.
	AllowsPerpetual bool `json:"allowsPerpetual"`
}

// Clone returns a deep copy of the service record.
func (s *Service) Clone() *Service {
	if s == nil {
		return nil
	}
	clone := &Service{
		Index:                  s.Index,
		Name:                   s.Name,
		Symbol:                 s.Symbol,
		ServiceFeeBps:          s.ServiceFeeBps,
		MinDuration:            s.MinDuration,
		MaxDuration:            s.MaxDuration,
		EnergyGapHalvingPeriod: s.EnergyGapHalvingPeriod,
		AllowsPerpetual:        s.AllowsPerpetual,
	}
	if s.BaseRate != nil {
		clone.BaseRate = new(big.Rat).Set(s.BaseRate)
	}
	if s.MinGCFee != nil {
		clone.MinGCFee = new(big.Int).Set(s.MinGCFee)
	}
	return clone
}

// Loan is a per-loan record. A nil record (or zero amount) marks "no loan".
type Loan struct {
	// Amount is the utility claim drawn against the pool. Positive while active.
	Amount *big.Int `json:"amount"`
	// ServiceIndex references the catalog entry the loan was priced against.
	ServiceIndex uint16 `json:"serviceIndex"`
	// BorrowingTime is when the loan was opened, unix seconds. Never reset.
	BorrowingTime int64 `json:"borrowingTime"`
	// MaturityTime is when the claim expires.
	MaturityTime int64 `json:"maturityTime"`
	// BorrowerReturnDeadline closes the borrower-only return window.
	BorrowerReturnDeadline int64 `json:"borrowerReturnDeadline"`
	// CollectorReturnDeadline closes the borrower-or-collector window; after
	// it anyone may return the loan and claim the GC fee.
	CollectorReturnDeadline int64 `json:"collectorReturnDeadline"`
	// GCFee is the garbage-collection incentive held for the eventual closer,
	// denominated in GCFeeToken.
	GCFee *big.Int `json:"gcFee"`
	// GCFeeToken is the payment asset the GC fee was collected in.
	GCFeeToken string `json:"gcFeeToken"`
}

// Clone returns a deep copy of the loan record.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := &Loan{
		ServiceIndex:            l.ServiceIndex,
		BorrowingTime:           l.BorrowingTime,
		MaturityTime:            l.MaturityTime,
		BorrowerReturnDeadline:  l.BorrowerReturnDeadline,
		CollectorReturnDeadline: l.CollectorReturnDeadline,
		GCFeeToken:              l.GCFeeToken,
	}
	if l.Amount != nil {
		clone.Amount = new(big.Int).Set(l.Amount)
	}
	if l.GCFee != nil {
		clone.GCFee = new(big.Int).Set(l.GCFee)
	}
	return clone
}

// ReceiptKind distinguishes the two claim-receipt classes handed to the
// external custody collaborator.
type ReceiptKind uint8

const (
	// ReceiptLiquidity marks receipts representing liquidity positions.
	ReceiptLiquidity ReceiptKind = iota
	// ReceiptLoan marks receipts representing active loans.
	ReceiptLoan
)
