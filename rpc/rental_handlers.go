package rpc

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"rentpool/native/bank"
	nativecommon "rentpool/native/common"
	"rentpool/native/rental"
)

type positionRefParams struct {
	Caller     string `json:"caller"`
	PositionID uint64 `json:"positionId"`
}

type addLiquidityParams struct {
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
}

type changeLiquidityParams struct {
	Caller     string `json:"caller"`
	PositionID uint64 `json:"positionId"`
	Amount     string `json:"amount"`
}

type estimateLoanParams struct {
	ServiceIndex uint16 `json:"serviceIndex"`
	PayToken     string `json:"payToken,omitempty"`
	Amount       string `json:"amount"`
	Duration     int64  `json:"durationSecs"`
}

type borrowParams struct {
	Borrower     string `json:"borrower"`
	ServiceIndex uint16 `json:"serviceIndex"`
	PayToken     string `json:"payToken,omitempty"`
	Amount       string `json:"amount"`
	Duration     int64  `json:"durationSecs"`
	MaxPayment   string `json:"maxPayment,omitempty"`
}

type reborrowParams struct {
	Payer      string `json:"payer"`
	LoanID     uint64 `json:"loanId"`
	PayToken   string `json:"payToken,omitempty"`
	Duration   int64  `json:"durationSecs"`
	MaxPayment string `json:"maxPayment,omitempty"`
}

type returnLoanParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
}

type registerServiceParams struct {
	Owner                  string `json:"owner"`
	Name                   string `json:"name"`
	Symbol                 string `json:"symbol"`
	BaseRate               string `json:"baseRate"`
	ServiceFeeBps          uint64 `json:"serviceFeeBps"`
	MinDuration            int64  `json:"minDuration"`
	MaxDuration            int64  `json:"maxDuration"`
	MinGCFee               string `json:"minGcFee,omitempty"`
	EnergyGapHalvingPeriod int64  `json:"energyGapHalvingPeriod,omitempty"`
	AllowsPerpetual        bool   `json:"allowsPerpetual,omitempty"`
}

type setPaymentTokenParams struct {
	Owner   string `json:"owner"`
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

type ownerParams struct {
	Owner string `json:"owner"`
}

type idParams struct {
	ID uint64 `json:"id"`
}

type serviceIndexParams struct {
	Index uint16 `json:"index"`
}

type liquidityResult struct {
	PositionID uint64   `json:"positionId"`
	Shares     *big.Int `json:"shares"`
}

type amountResult struct {
	Amount *big.Int `json:"amount"`
}

type loanQuoteResult struct {
	Interest      *big.Int `json:"interest"`
	ServiceFee    *big.Int `json:"serviceFee"`
	GCFee         *big.Int `json:"gcFee"`
	PayInterest   *big.Int `json:"payInterest"`
	PayServiceFee *big.Int `json:"payServiceFee"`
	PayGCFee      *big.Int `json:"payGcFee"`
	Total         *big.Int `json:"total"`
}

type loanResult struct {
	LoanID uint64 `json:"loanId"`
}

type poolResult struct {
	Pool      *rental.PoolState `json:"pool"`
	Reserve   *big.Int          `json:"reserve"`
	Available *big.Int          `json:"available"`
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, req *RPCRequest) {
	var params addLiquidityParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	provider, err := parseAddress("provider", params.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	id, shares, err := s.engine.AddLiquidity(provider, amount)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, liquidityResult{PositionID: id, Shares: shares})
}

func (s *Server) handleIncreaseLiquidity(w http.ResponseWriter, req *RPCRequest) {
	var params changeLiquidityParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	shares, err := s.engine.IncreaseLiquidity(caller, params.PositionID, amount)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, liquidityResult{PositionID: params.PositionID, Shares: shares})
}

func (s *Server) handleDecreaseLiquidity(w http.ResponseWriter, req *RPCRequest) {
	var params changeLiquidityParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	err = s.engine.DecreaseLiquidity(caller, params.PositionID, amount)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount})
}

func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, req *RPCRequest) {
	var params positionRefParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	value, err := s.engine.RemoveLiquidity(caller, params.PositionID)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: value})
}

func (s *Server) handleWithdrawInterest(w http.ResponseWriter, req *RPCRequest) {
	var params positionRefParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	interest, err := s.engine.WithdrawInterest(caller, params.PositionID)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: interest})
}

func (s *Server) handleAccruedInterest(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	interest, err := s.engine.AccruedInterest(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: interest})
}

func (s *Server) handleEstimateLoan(w http.ResponseWriter, req *RPCRequest) {
	var params estimateLoanParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	quote, err := s.engine.EstimateLoanDetailed(params.ServiceIndex, params.PayToken, amount, params.Duration)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanQuoteResult{
		Interest:      quote.Interest,
		ServiceFee:    quote.ServiceFee,
		GCFee:         quote.GCFee,
		PayInterest:   quote.PayInterest,
		PayServiceFee: quote.PayServiceFee,
		PayGCFee:      quote.PayGCFee,
		Total:         quote.Total,
	})
}

func (s *Server) handleBorrow(w http.ResponseWriter, req *RPCRequest) {
	var params borrowParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	maxPayment, err := parseOptionalAmount("maxPayment", params.MaxPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	loanID, err := s.engine.Borrow(borrower, params.ServiceIndex, params.PayToken, amount, params.Duration, maxPayment)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanResult{LoanID: loanID})
}

func (s *Server) handleReborrow(w http.ResponseWriter, req *RPCRequest) {
	var params reborrowParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payer, err := parseAddress("payer", params.Payer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	maxPayment, err := parseOptionalAmount("maxPayment", params.MaxPayment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	err = s.engine.Reborrow(payer, params.LoanID, params.PayToken, params.Duration, maxPayment)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanResult{LoanID: params.LoanID})
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, req *RPCRequest) {
	var params returnLoanParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	err = s.engine.ReturnLoan(caller, params.LoanID)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loanResult{LoanID: params.LoanID})
}

type transferLoanParams struct {
	LoanID uint64 `json:"loanId"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type transferLoanResult struct {
	LoanID uint64 `json:"loanId"`
	Owner  string `json:"owner"`
}

func (s *Server) handleTransferLoan(w http.ResponseWriter, req *RPCRequest) {
	if s.receipts == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "receipt registry not configured", nil)
		return
	}
	var params transferLoanParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	from, err := parseAddress("from", params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	err = nativecommon.Guard(s.pauses, "rental")
	if err == nil {
		err = s.receipts.Transfer(rental.ReceiptLoan, params.LoanID, from, to)
	}
	s.mu.Unlock()
	if err != nil {
		switch {
		case errors.Is(err, bank.ErrUnknownReceipt):
			writeError(w, http.StatusConflict, req.ID, codeShutdown, err.Error(), nil)
		case errors.Is(err, bank.ErrReceiptNotOwned), errors.Is(err, bank.ErrTransferNotAllowed):
			writeError(w, http.StatusForbidden, req.ID, codeForbidden, err.Error(), nil)
		default:
			writeEngineError(w, req.ID, err)
		}
		return
	}
	writeResult(w, req.ID, transferLoanResult{LoanID: params.LoanID, Owner: to.String()})
}

func (s *Server) handleGetPool(w http.ResponseWriter, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	pool, err := s.engine.PoolSnapshot()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	reserve, err := s.engine.Reserve()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	available, err := s.engine.AvailableReserve()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, poolResult{Pool: pool, Reserve: reserve, Available: available})
}

func (s *Server) handleGetService(w http.ResponseWriter, req *RPCRequest) {
	var params serviceIndexParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	svc, err := s.engine.ServiceByIndex(params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, svc)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	loan, err := s.engine.LoanByID(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loan)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pos, err := s.engine.PositionByID(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pos)
}

func (s *Server) handleRegisterService(w http.ResponseWriter, req *RPCRequest) {
	var params registerServiceParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	baseRate, ok := new(big.Rat).SetString(params.BaseRate)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid base rate %q", params.BaseRate), nil)
		return
	}
	minGCFee := big.NewInt(0)
	if params.MinGCFee != "" {
		minGCFee, err = parseAmount("minGcFee", params.MinGCFee)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	svc := rental.Service{
		Name:                   params.Name,
		Symbol:                 params.Symbol,
		BaseRate:               baseRate,
		ServiceFeeBps:          params.ServiceFeeBps,
		MinDuration:            params.MinDuration,
		MaxDuration:            params.MaxDuration,
		MinGCFee:               minGCFee,
		EnergyGapHalvingPeriod: params.EnergyGapHalvingPeriod,
		AllowsPerpetual:        params.AllowsPerpetual,
	}
	s.mu.Lock()
	index, err := s.engine.RegisterService(owner, svc)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, serviceIndexParams{Index: index})
}

func (s *Server) handleSetPaymentToken(w http.ResponseWriter, req *RPCRequest) {
	var params setPaymentTokenParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	err = s.engine.SetPaymentTokenEnabled(owner, params.Token, params.Enabled)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, setPaymentTokenParams{Owner: params.Owner, Token: params.Token, Enabled: params.Enabled})
}

func (s *Server) handleShutdown(w http.ResponseWriter, req *RPCRequest) {
	var params ownerParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.mu.Lock()
	err = s.engine.ShutdownForever(owner)
	s.mu.Unlock()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"shutdown": true})
}

type setPausedParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, req *RPCRequest) {
	var params setPausedParams
	if err := singleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	module := strings.TrimSpace(params.Module)
	if module == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "missing module name", nil)
		return
	}
	if s.pauses == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "pause control not configured", nil)
		return
	}
	s.pauses.SetPaused(module, params.Paused)
	s.logger.Info("module pause toggled", "module", module, "paused", params.Paused)
	writeResult(w, req.ID, map[string]bool{"paused": params.Paused})
}
