package routes

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rentpool/native/rental"
)

const estimateRequestLimit = 1 << 16 // 64 KiB

// rentalViews exposes read-only REST projections of the pool state, backed by
// the in-process engine.
type rentalViews struct {
	engine *rental.Engine
}

func (v *rentalViews) mount(r chi.Router) {
	r.Get("/pool", v.getPool)
	r.Get("/services/{index}", v.getService)
	r.Get("/loans/{id}", v.getLoan)
	r.Get("/positions/{id}", v.getPosition)
	r.Get("/positions/{id}/interest", v.getAccruedInterest)
	r.Post("/loans/estimate", v.estimateLoan)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeViewError translates an engine failure into an HTTP status.
func writeViewError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch rental.KindOf(err) {
	case rental.KindValidation:
		status = http.StatusBadRequest
	case rental.KindLiquidity:
		status = http.StatusUnprocessableEntity
	case rental.KindAuthorization:
		status = http.StatusForbidden
	case rental.KindState:
		status = http.StatusConflict
	case rental.KindSlippage:
		status = http.StatusConflict
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func pathUint64(r *http.Request, name string) (uint64, bool) {
	raw := chi.URLParam(r, name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

type poolView struct {
	Pool      *rental.PoolState `json:"pool"`
	Reserve   *big.Int          `json:"reserve"`
	Available *big.Int          `json:"available"`
}

func (v *rentalViews) getPool(w http.ResponseWriter, r *http.Request) {
	pool, err := v.engine.PoolSnapshot()
	if err != nil {
		writeViewError(w, err)
		return
	}
	reserve, err := v.engine.Reserve()
	if err != nil {
		writeViewError(w, err)
		return
	}
	available, err := v.engine.AvailableReserve()
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolView{Pool: pool, Reserve: reserve, Available: available})
}

func (v *rentalViews) getService(w http.ResponseWriter, r *http.Request) {
	index, ok := pathUint64(r, "index")
	if !ok || index > 0xffff {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid service index"})
		return
	}
	svc, err := v.engine.ServiceByIndex(uint16(index))
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (v *rentalViews) getLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid loan id"})
		return
	}
	loan, err := v.engine.LoanByID(id)
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (v *rentalViews) getPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid position id"})
		return
	}
	pos, err := v.engine.PositionByID(id)
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (v *rentalViews) getAccruedInterest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint64(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid position id"})
		return
	}
	interest, err := v.engine.AccruedInterest(id)
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*big.Int{"interest": interest})
}

type estimateRequest struct {
	ServiceIndex uint16 `json:"serviceIndex"`
	PayToken     string `json:"payToken,omitempty"`
	Amount       string `json:"amount"`
	Duration     int64  `json:"durationSecs"`
}

type estimateResponse struct {
	Interest      *big.Int `json:"interest"`
	ServiceFee    *big.Int `json:"serviceFee"`
	GCFee         *big.Int `json:"gcFee"`
	PayInterest   *big.Int `json:"payInterest"`
	PayServiceFee *big.Int `json:"payServiceFee"`
	PayGCFee      *big.Int `json:"payGcFee"`
	Total         *big.Int `json:"total"`
}

func (v *rentalViews) estimateLoan(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, estimateRequestLimit)
	defer func() {
		_ = reader.Close()
	}()
	var req estimateRequest
	if err := json.NewDecoder(reader).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid amount"})
		return
	}
	quote, err := v.engine.EstimateLoanDetailed(req.ServiceIndex, req.PayToken, amount, req.Duration)
	if err != nil {
		writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse{
		Interest:      quote.Interest,
		ServiceFee:    quote.ServiceFee,
		GCFee:         quote.GCFee,
		PayInterest:   quote.PayInterest,
		PayServiceFee: quote.PayServiceFee,
		PayGCFee:      quote.PayGCFee,
		Total:         quote.Total,
	})
}
