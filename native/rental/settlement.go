package rental

import (
	"math/big"

	"rentpool/crypto"
)

// LoanQuote is the detailed fee breakdown for a prospective loan. Interest,
// service fee and GC fee are computed in the pool asset's unit first, then
// translated into the payment asset for collection.
type LoanQuote struct {
	// Interest is the pool's share of the base cost, in pool units.
	Interest *big.Int
	// ServiceFee is the protocol's carve-out of the base cost, in pool units.
	ServiceFee *big.Int
	// GCFee is the garbage-collection incentive floor, in pool units.
	GCFee *big.Int
	// PayInterest, PayServiceFee and PayGCFee are the same figures translated
	// into the payment asset.
	PayInterest   *big.Int
	PayServiceFee *big.Int
	PayGCFee      *big.Int
	// Total is the full payment-asset amount the borrower must cover.
	Total *big.Int
}

// quoteLoan prices a draw of amount over durationSecs against the current
// utilization, splitting the convex base cost into pool interest and protocol
// fee, and translating everything into the payment asset.
func (e *Engine) quoteLoan(pool *PoolState, svc *Service, payToken string, amount *big.Int, durationSecs int64, includeGC bool) (*LoanQuote, error) {
	now := e.nowUnix()
	reserve := reserveAt(pool, now, e.streamingWindow)
	baseCost, err := e.curve.BaseCost(reserve, pool.UsedReserve, amount, svc.BaseRate, durationSecs)
	if err != nil {
		return nil, err
	}
	serviceFee := bpsShare(baseCost, svc.ServiceFeeBps)
	interest := new(big.Int).Sub(baseCost, serviceFee)

	quote := &LoanQuote{
		Interest:   interest,
		ServiceFee: serviceFee,
		GCFee:      big.NewInt(0),
	}
	if includeGC && svc.MinGCFee != nil && svc.MinGCFee.Sign() > 0 {
		quote.GCFee = new(big.Int).Set(svc.MinGCFee)
	}

	if payToken == pool.PoolToken {
		quote.PayInterest = new(big.Int).Set(quote.Interest)
		quote.PayServiceFee = new(big.Int).Set(quote.ServiceFee)
		quote.PayGCFee = new(big.Int).Set(quote.GCFee)
	} else {
		if quote.PayInterest, err = e.converter.EstimateConvert(pool.PoolToken, quote.Interest, payToken); err != nil {
			return nil, err
		}
		if quote.PayServiceFee, err = e.converter.EstimateConvert(pool.PoolToken, quote.ServiceFee, payToken); err != nil {
			return nil, err
		}
		if quote.PayGCFee, err = e.converter.EstimateConvert(pool.PoolToken, quote.GCFee, payToken); err != nil {
			return nil, err
		}
	}
	quote.Total = new(big.Int).Add(quote.PayInterest, quote.PayServiceFee)
	quote.Total.Add(quote.Total, quote.PayGCFee)
	return quote, nil
}

// collectLoanPayment moves the quoted amounts out of the payer: the service
// fee share to the protocol vault, the interest share into the pool (converted
// into the pool asset when paid in another token, then queued into the
// streaming reserve), and the GC fee into module custody for the eventual
// loan closer.
func (e *Engine) collectLoanPayment(pool *PoolState, payer crypto.Address, payToken string, quote *LoanQuote) error {
	if quote.PayServiceFee.Sign() > 0 {
		if err := e.tokens.Transfer(payToken, payer, e.vaultAddress, quote.PayServiceFee); err != nil {
			return err
		}
	}
	if quote.PayInterest.Sign() > 0 {
		if err := e.tokens.Transfer(payToken, payer, e.moduleAddress, quote.PayInterest); err != nil {
			return err
		}
		poolInterest := quote.PayInterest
		if payToken != pool.PoolToken {
			converted, err := e.converter.Convert(payToken, quote.PayInterest, pool.PoolToken)
			if err != nil {
				return err
			}
			poolInterest = converted
		}
		queueStreamingInterest(pool, poolInterest, e.nowUnix(), e.streamingWindow)
	}
	if quote.PayGCFee.Sign() > 0 {
		if err := e.tokens.Transfer(payToken, payer, e.moduleAddress, quote.PayGCFee); err != nil {
			return err
		}
	}
	return nil
}
