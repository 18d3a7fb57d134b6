package rental

import "errors"

var (
	// ErrNilState indicates the engine was used before wiring a state store.
	ErrNilState = errors.New("rental engine: state not configured")
	// ErrNilPool indicates the pool record is missing from state.
	ErrNilPool = errors.New("rental engine: pool not initialised")
	// ErrInvalidAmount rejects zero, negative or dust amounts.
	ErrInvalidAmount = errors.New("rental engine: amount must be positive")
	// ErrInvalidDuration rejects durations outside the service bounds or
	// extensions whose maturity would land in the past.
	ErrInvalidDuration = errors.New("rental engine: duration out of bounds")
	// ErrInvalidService rejects malformed service registration input.
	ErrInvalidService = errors.New("rental engine: invalid service definition")
	// ErrCatalogFull indicates the service catalog reached its maximum size.
	ErrCatalogFull = errors.New("rental engine: service catalog full")
	// ErrInsufficientLiquidity indicates the request exceeds the available reserve.
	ErrInsufficientLiquidity = errors.New("rental engine: insufficient available reserve")
	// ErrNotAuthorized indicates the caller lacks ownership or is outside the
	// current grace tier.
	ErrNotAuthorized = errors.New("rental engine: caller not authorized")
	// ErrShutdown rejects mutations that are permanently disabled after shutdown.
	ErrShutdown = errors.New("rental engine: pool is shut down")
	// ErrAlreadyShutdown indicates the terminal flag was already set.
	ErrAlreadyShutdown = errors.New("rental engine: pool already shut down")
	// ErrFlashRemoval rejects removing liquidity in the block it was added.
	ErrFlashRemoval = errors.New("rental engine: liquidity added in current block")
	// ErrUnknownService indicates the service index is not registered.
	ErrUnknownService = errors.New("rental engine: unknown service")
	// ErrUnknownLoan indicates no active loan exists for the identifier.
	ErrUnknownLoan = errors.New("rental engine: unknown loan")
	// ErrUnknownPosition indicates no liquidity position exists for the identifier.
	ErrUnknownPosition = errors.New("rental engine: unknown position")
	// ErrPaymentTokenDisabled indicates the payment asset is not accepted.
	ErrPaymentTokenDisabled = errors.New("rental engine: payment token disabled")
	// ErrCostExceedsMax indicates the quoted cost breached the caller ceiling.
	ErrCostExceedsMax = errors.New("rental engine: cost exceeds payment ceiling")
	// ErrNoAccruedInterest indicates a position has nothing to withdraw.
	ErrNoAccruedInterest = errors.New("rental engine: no accrued interest")
)

// ErrorKind enumerates the stable error taxonomy surfaced to callers.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindLiquidity
	KindAuthorization
	KindState
	KindSlippage
)

// KindOf classifies an engine error into its taxonomy bucket. Unknown errors
// map to KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidService),
		errors.Is(err, ErrCatalogFull),
		errors.Is(err, ErrNoAccruedInterest):
		return KindValidation
	case errors.Is(err, ErrInsufficientLiquidity):
		return KindLiquidity
	case errors.Is(err, ErrNotAuthorized):
		return KindAuthorization
	case errors.Is(err, ErrShutdown),
		errors.Is(err, ErrAlreadyShutdown),
		errors.Is(err, ErrFlashRemoval),
		errors.Is(err, ErrUnknownService),
		errors.Is(err, ErrUnknownLoan),
		errors.Is(err, ErrUnknownPosition),
		errors.Is(err, ErrPaymentTokenDisabled),
		errors.Is(err, ErrNilPool):
		return KindState
	case errors.Is(err, ErrCostExceedsMax):
		return KindSlippage
	default:
		return KindInternal
	}
}
