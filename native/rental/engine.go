package rental

import (
	"math/big"
	"strings"
	"time"

	"rentpool/core/events"
	"rentpool/crypto"
	nativecommon "rentpool/native/common"
)

const moduleName = "rental"

// engineState is the narrow persistence surface the engine operates against.
// Getters return (nil, nil) when the record does not exist.
type engineState interface {
	Pool() (*PoolState, error)
	PutPool(pool *PoolState) error
	Service(index uint16) (*Service, error)
	PutService(service *Service) error
	Position(id uint64) (*LiquidityPosition, error)
	PutPosition(id uint64, pos *LiquidityPosition) error
	DeletePosition(id uint64) error
	Loan(id uint64) (*Loan, error)
	PutLoan(id uint64, loan *Loan) error
	DeleteLoan(id uint64) error
}

// TokenLedger is the external custody capability for fungible assets.
type TokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
	Mint(token string, to crypto.Address, amount *big.Int) error
	Burn(token string, from crypto.Address, amount *big.Int) error
	ForceTransfer(token string, from, to crypto.Address, amount *big.Int) error
}

// ReceiptRegistry is the external custody capability for claim receipts. The
// registry owns identifier assignment; the engine never assumes a numbering
// scheme beyond uniqueness per kind.
type ReceiptRegistry interface {
	Mint(kind ReceiptKind, owner crypto.Address) (uint64, error)
	Burn(kind ReceiptKind, id uint64) error
	OwnerOf(kind ReceiptKind, id uint64) (crypto.Address, error)
}

// Converter is the external price-conversion capability. Pure with respect to
// the core: no state of this engine is owned or mutated by it.
type Converter interface {
	EstimateConvert(source string, amount *big.Int, target string) (*big.Int, error)
	Convert(source string, amount *big.Int, target string) (*big.Int, error)
}

// Engine orchestrates the primary state transitions for the rental module.
type Engine struct {
	state     engineState
	tokens    TokenLedger
	receipts  ReceiptRegistry
	converter Converter
	emitter   events.Emitter
	pauses    nativecommon.PauseView

	moduleAddress crypto.Address
	vaultAddress  crypto.Address
	owner         crypto.Address
	collector     crypto.Address

	poolToken       string
	curve           PricingCurve
	streamingWindow int64
	borrowerGrace   int64
	collectorGrace  int64
	maxServices     uint16

	blockHeight uint64
	heightFn    func() uint64
	now         func() time.Time
}

// NewEngine constructs a rental engine configured with the module treasury
// addresses and the supplied module configuration.
func NewEngine(moduleAddr, vaultAddr crypto.Address, cfg Config) (*Engine, error) {
	cfg.EnsureDefaults()
	curve, err := cfg.ParseCurve()
	if err != nil {
		return nil, err
	}
	return &Engine{
		moduleAddress:   moduleAddr,
		vaultAddress:    vaultAddr,
		poolToken:       strings.ToUpper(strings.TrimSpace(cfg.PoolToken)),
		curve:           curve,
		streamingWindow: cfg.StreamingWindowSecs,
		borrowerGrace:   cfg.BorrowerGraceSecs,
		collectorGrace:  cfg.CollectorGraceSecs,
		maxServices:     cfg.MaxServices,
		now:             time.Now,
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenLedger wires the fungible custody collaborator.
func (e *Engine) SetTokenLedger(ledger TokenLedger) {
	if e == nil {
		return
	}
	e.tokens = ledger
}

// SetReceiptRegistry wires the claim-receipt custody collaborator.
func (e *Engine) SetReceiptRegistry(registry ReceiptRegistry) {
	if e == nil {
		return
	}
	e.receipts = registry
}

// SetConverter wires the price-conversion capability.
func (e *Engine) SetConverter(converter Converter) {
	if e == nil {
		return
	}
	e.converter = converter
}

// SetEmitter wires the audit event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

// SetPauses installs the governance pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetOwner assigns the administrative owner able to register services, toggle
// payment tokens and trigger the terminal shutdown.
func (e *Engine) SetOwner(owner crypto.Address) {
	if e == nil {
		return
	}
	e.owner = owner
}

// Owner reports the configured administrative owner.
func (e *Engine) Owner() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.owner
}

// SetCollector assigns the designated collector role for the middle grace tier.
func (e *Engine) SetCollector(collector crypto.Address) {
	if e == nil {
		return
	}
	e.collector = collector
}

// SetBlockHeight records the block height used by the flash-removal guard.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight = height
}

// SetHeightSource installs a callback supplying the logical height consulted
// by the flash-removal guard. When set it takes precedence over the height
// recorded with SetBlockHeight.
func (e *Engine) SetHeightSource(fn func() uint64) {
	if e == nil || fn == nil {
		return
	}
	e.heightFn = fn
}

func (e *Engine) currentHeight() uint64 {
	if e.heightFn != nil {
		return e.heightFn()
	}
	return e.blockHeight
}

// SetClock overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetClock(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.now = now
}

func (e *Engine) nowUnix() int64 { return e.now().Unix() }

func (e *Engine) emit(ev events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

func (e *Engine) emitReserveTotals(pool *PoolState) {
	e.emit(events.ReserveTotals{
		FixedReserve:    bigOrZero(pool.FixedReserve),
		StreamingTarget: bigOrZero(pool.StreamingTarget),
		UsedReserve:     bigOrZero(pool.UsedReserve),
		TotalShares:     bigOrZero(pool.TotalShares),
	})
}

func addr20(a crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], a.Bytes())
	return out
}

func (e *Engine) ensurePool() (*PoolState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pool, err := e.state.Pool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		if e.poolToken == "" {
			return nil, ErrNilPool
		}
		pool = &PoolState{PoolToken: e.poolToken, StreamingUpdated: e.nowUnix()}
	}
	if pool.FixedReserve == nil {
		pool.FixedReserve = big.NewInt(0)
	}
	if pool.StreamingReserve == nil {
		pool.StreamingReserve = big.NewInt(0)
	}
	if pool.StreamingTarget == nil {
		pool.StreamingTarget = big.NewInt(0)
	}
	if pool.UsedReserve == nil {
		pool.UsedReserve = big.NewInt(0)
	}
	if pool.TotalShares == nil {
		pool.TotalShares = big.NewInt(0)
	}
	if len(pool.PaymentTokens) == 0 {
		pool.PaymentTokens = []PaymentToken{{Symbol: pool.PoolToken, Enabled: true}}
	}
	return pool, nil
}

// Reserve returns the current total reserve (fixed plus vested streaming).
func (e *Engine) Reserve() (*big.Int, error) {
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return reserveAt(pool, e.nowUnix(), e.streamingWindow), nil
}

// AvailableReserve returns the ceiling for new borrows and withdrawals.
func (e *Engine) AvailableReserve() (*big.Int, error) {
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return availableAt(pool, e.nowUnix(), e.streamingWindow), nil
}

// PoolSnapshot returns a defensive copy of the pool record.
func (e *Engine) PoolSnapshot() (*PoolState, error) {
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// ServiceByIndex returns a copy of the catalog entry at index.
func (e *Engine) ServiceByIndex(index uint16) (*Service, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	svc, err := e.state.Service(index)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, ErrUnknownService
	}
	return svc.Clone(), nil
}

// LoanByID returns a copy of an active loan record.
func (e *Engine) LoanByID(id uint64) (*Loan, error) {
	loan, err := e.activeLoan(id)
	if err != nil {
		return nil, err
	}
	return loan.Clone(), nil
}

// PositionByID returns a copy of a liquidity position.
func (e *Engine) PositionByID(id uint64) (*LiquidityPosition, error) {
	pos, err := e.activePosition(id)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

func (e *Engine) activeLoan(id uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	loan, err := e.state.Loan(id)
	if err != nil {
		return nil, err
	}
	if loan == nil || loan.Amount == nil || loan.Amount.Sign() == 0 {
		return nil, ErrUnknownLoan
	}
	return loan, nil
}

func (e *Engine) activePosition(id uint64) (*LiquidityPosition, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.Shares == nil || pos.Shares.Sign() == 0 {
		return nil, ErrUnknownPosition
	}
	if pos.Principal == nil {
		pos.Principal = big.NewInt(0)
	}
	return pos, nil
}

// requireReceiptOwner verifies the caller currently owns the claim receipt.
func (e *Engine) requireReceiptOwner(kind ReceiptKind, id uint64, caller crypto.Address) error {
	owner, err := e.receipts.OwnerOf(kind, id)
	if err != nil {
		return err
	}
	if !owner.Equal(caller) {
		return ErrNotAuthorized
	}
	return nil
}

// RegisterService validates the definition, assigns the next catalog index and
// stores the record. Owner-gated.
func (e *Engine) RegisterService(caller crypto.Address, svc Service) (uint16, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if !caller.Equal(e.owner) {
		return 0, ErrNotAuthorized
	}
	if strings.TrimSpace(svc.Name) == "" || strings.TrimSpace(svc.Symbol) == "" {
		return 0, ErrInvalidService
	}
	if svc.BaseRate == nil || svc.BaseRate.Sign() <= 0 {
		return 0, ErrInvalidService
	}
	if svc.MinDuration <= 0 || svc.MaxDuration < svc.MinDuration {
		return 0, ErrInvalidService
	}
	if svc.ServiceFeeBps > 10_000 {
		return 0, ErrInvalidService
	}
	if svc.MinGCFee != nil && svc.MinGCFee.Sign() < 0 {
		return 0, ErrInvalidService
	}
	pool, err := e.ensurePool()
	if err != nil {
		return 0, err
	}
	if pool.Shutdown {
		return 0, ErrShutdown
	}
	if pool.ServiceCount >= e.maxServices {
		return 0, ErrCatalogFull
	}

	record := svc.Clone()
	record.Index = pool.ServiceCount
	if record.MinGCFee == nil {
		record.MinGCFee = big.NewInt(0)
	}
	if err := e.state.PutService(record); err != nil {
		return 0, err
	}
	pool.ServiceCount++
	if err := e.state.PutPool(pool); err != nil {
		return 0, err
	}

	e.emit(events.ServiceRegistered{
		Index:         record.Index,
		Name:          record.Name,
		Symbol:        record.Symbol,
		BaseRate:      record.BaseRate.RatString(),
		ServiceFeeBps: record.ServiceFeeBps,
		MinDuration:   record.MinDuration,
		MaxDuration:   record.MaxDuration,
		MinGCFee:      record.MinGCFee,
	})
	return record.Index, nil
}

// SetPaymentTokenEnabled enables or disables a payment asset. The pool asset
// at index 0 is implicitly accepted and cannot be disabled. Owner-gated.
func (e *Engine) SetPaymentTokenEnabled(caller crypto.Address, symbol string, enabled bool) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !caller.Equal(e.owner) {
		return ErrNotAuthorized
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ErrInvalidService
	}
	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	if symbol == pool.PoolToken {
		return ErrInvalidService
	}
	for i := range pool.PaymentTokens {
		if pool.PaymentTokens[i].Symbol == symbol {
			pool.PaymentTokens[i].Enabled = enabled
			if err := e.state.PutPool(pool); err != nil {
				return err
			}
			e.emit(events.PaymentTokenUpdated{Index: uint16(i), Symbol: symbol, Enabled: enabled})
			return nil
		}
	}
	if !enabled {
		return ErrPaymentTokenDisabled
	}
	pool.PaymentTokens = append(pool.PaymentTokens, PaymentToken{Symbol: symbol, Enabled: true})
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(events.PaymentTokenUpdated{Index: uint16(len(pool.PaymentTokens) - 1), Symbol: symbol, Enabled: true})
	return nil
}

func (e *Engine) paymentTokenEnabled(pool *PoolState, symbol string) bool {
	if symbol == pool.PoolToken {
		return true
	}
	for _, token := range pool.PaymentTokens {
		if token.Symbol == symbol {
			return token.Enabled
		}
	}
	return false
}

// ShutdownForever permanently disables add/borrow/reborrow, zeroes the used
// reserve and recognizes all pending streamed interest immediately. One-way;
// owner-gated.
func (e *Engine) ShutdownForever(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !caller.Equal(e.owner) {
		return ErrNotAuthorized
	}
	pool, err := e.ensurePool()
	if err != nil {
		return err
	}
	if pool.Shutdown {
		return ErrAlreadyShutdown
	}
	now := e.nowUnix()
	forceVestStreaming(pool)
	pool.StreamingUpdated = now
	pool.UsedReserve = big.NewInt(0)
	pool.Shutdown = true
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emit(events.Shutdown{
		Caller:       addr20(caller),
		FinalReserve: bigOrZero(pool.FixedReserve),
		Timestamp:    now,
	})
	e.emitReserveTotals(pool)
	return nil
}
