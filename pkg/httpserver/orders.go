package httpserver

import (
	"net/http"

	"github.com/mselser95/bangr-engine/pkg/types"
)

// PlaceOrderRequest is the body of POST /api/orders. Shares and price are
// base-unit decimal strings.
type PlaceOrderRequest struct {
	MarketID uint64       `json:"market_id"`
	Side     string       `json:"side"`
	Outcome  string       `json:"outcome"`
	Shares   types.Amount `json:"shares"`
	Price    types.Amount `json:"price"`
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	side, err := types.ParseSide(req.Side)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	outcome, err := types.ParseOutcome(req.Outcome)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.engine.PlaceLimitOrder(types.PlaceOrderRequest{
		Maker:    caller(r),
		MarketID: req.MarketID,
		Side:     side,
		Outcome:  outcome,
		Shares:   req.Shares,
		Price:    req.Price,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	order, err := s.engine.CancelOrder(caller(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}
