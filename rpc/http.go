package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"rentpool/crypto"
	"rentpool/native/bank"
	nativecommon "rentpool/native/common"
	"rentpool/native/rental"
	"rentpool/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeValidation     = -32010
	codeLiquidity      = -32011
	codeForbidden      = -32012
	codeShutdown       = -32013
	codeSlippage       = -32014
)

// Server exposes the rental engine over JSON-RPC 2.0. Mutating methods are
// serialised so the engine only ever sees one state transition at a time.
type Server struct {
	engine   *rental.Engine
	receipts *bank.Receipts
	logger   *slog.Logger
	pauses   *nativecommon.Pauses

	mu        sync.Mutex
	authToken string
}

func NewServer(engine *rental.Engine, logger *slog.Logger) *Server {
	token := strings.TrimSpace(os.Getenv("RENTPOOL_RPC_TOKEN"))
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger, authToken: token}
}

// SetPauses wires the pause set toggled by the module_setPaused admin method.
func (s *Server) SetPauses(p *nativecommon.Pauses) {
	s.pauses = p
}

// SetReceipts wires the receipt registry backing rental_transferLoan.
func (s *Server) SetReceipts(r *bank.Receipts) {
	s.receipts = r
}

// Handler returns the HTTP handler serving the RPC endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps an engine failure onto a JSON-RPC error code by its
// classification.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusBadRequest
	code := codeServerError
	switch rental.KindOf(err) {
	case rental.KindValidation:
		code = codeValidation
	case rental.KindLiquidity:
		code = codeLiquidity
	case rental.KindAuthorization:
		code = codeForbidden
		status = http.StatusForbidden
	case rental.KindState:
		code = codeShutdown
		status = http.StatusConflict
	case rental.KindSlippage:
		code = codeSlippage
	default:
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, code, err.Error(), nil)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}

	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, req)
	observability.RentalMetrics().ObserveRequest(req.Method, recorder.errorCode, time.Since(started))
	s.publishPoolTotals()
}

// publishPoolTotals refreshes the pool gauges after every request so scrapes
// track the current reserve without a dedicated collector.
func (s *Server) publishPoolTotals() {
	pool, err := s.engine.PoolSnapshot()
	if err != nil || pool == nil {
		return
	}
	reserve, err := s.engine.Reserve()
	if err != nil {
		return
	}
	observability.RentalMetrics().SetPoolTotals(pool.PoolToken, reserve, pool.UsedReserve, pool.TotalShares)
}

type statusRecorder struct {
	http.ResponseWriter
	status    int
	errorCode int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	if status >= 400 && r.errorCode == 0 {
		r.errorCode = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "rental_addLiquidity":
		s.handleAddLiquidity(w, req)
	case "rental_increaseLiquidity":
		s.handleIncreaseLiquidity(w, req)
	case "rental_decreaseLiquidity":
		s.handleDecreaseLiquidity(w, req)
	case "rental_removeLiquidity":
		s.handleRemoveLiquidity(w, req)
	case "rental_withdrawInterest":
		s.handleWithdrawInterest(w, req)
	case "rental_accruedInterest":
		s.handleAccruedInterest(w, req)
	case "rental_estimateLoan":
		s.handleEstimateLoan(w, req)
	case "rental_borrow":
		s.handleBorrow(w, req)
	case "rental_reborrow":
		s.handleReborrow(w, req)
	case "rental_returnLoan":
		s.handleReturnLoan(w, req)
	case "rental_transferLoan":
		s.handleTransferLoan(w, req)
	case "rental_getPool":
		s.handleGetPool(w, req)
	case "rental_getService":
		s.handleGetService(w, req)
	case "rental_getLoan":
		s.handleGetLoan(w, req)
	case "rental_getPosition":
		s.handleGetPosition(w, req)
	case "rental_registerService":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRegisterService(w, req)
	case "rental_setPaymentToken":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetPaymentToken(w, req)
	case "rental_shutdown":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleShutdown(w, req)
	case "module_setPaused":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleSetPaused(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

// singleParam decodes the sole positional parameter into out.
func singleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object: %w", err)
	}
	return nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("invalid %s address: %w", field, err)
	}
	return addr, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("missing %s", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s amount", field)
	}
	return amount, nil
}

func parseOptionalAmount(field, value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parseAmount(field, value)
}
