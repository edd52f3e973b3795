package httpserver

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/internal/tweets"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/mselser95/bangr-engine/pkg/wallet"
	"go.uber.org/zap"
)

// CreateMarketRequest is the body of POST /api/markets. Tweet may be a bare
// id or a status URL. When CurrentValue is absent the counters are fetched
// from the metrics provider.
type CreateMarketRequest struct {
	Tweet        string  `json:"tweet"`
	Metric       string  `json:"metric"`
	Duration     string  `json:"duration"`
	Multiplier   uint64  `json:"multiplier"`
	CurrentValue *uint64 `json:"current_value,omitempty"`
}

// ResolveRequest is the body of POST /api/markets/{id}/resolve.
type ResolveRequest struct {
	FinalValue uint64 `json:"final_value"`
}

// InvalidateRequest is the body of POST /api/markets/{id}/invalidate.
type InvalidateRequest struct {
	Reason string `json:"reason"`
}

// RedeemRequest is the body of POST /api/markets/{id}/redeem.
type RedeemRequest struct {
	Outcome string `json:"outcome"`
}

// SharesRequest is the body of the split and merge endpoints.
type SharesRequest struct {
	Shares types.Amount `json:"shares"`
}

// NextIDResponse is the body of GET /api/markets/next-id.
type NextIDResponse struct {
	NextID uint64 `json:"next_id"`
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	if tweet := r.URL.Query().Get("tweet"); tweet != "" {
		id, err := tweets.ParseTweetID(tweet)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, s.engine.MarketsByTweet(id))
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.ListMarkets())
}

func (s *Server) handleNextMarketID(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, NextIDResponse{NextID: s.engine.NextMarketID()})
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	market, err := s.engine.GetMarket(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, market)
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	params, err := req.params(caller(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var market types.Market
	if req.CurrentValue == nil {
		market, err = s.engine.CreateMarketFromTweet(r.Context(), params)
	} else {
		params.CurrentValue = *req.CurrentValue
		market, err = s.engine.CreateMarket(params)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, market)
}

func (req *CreateMarketRequest) params(creator common.Address) (types.CreateMarketParams, error) {
	tweetID, err := tweets.ParseTweetID(req.Tweet)
	if err != nil {
		return types.CreateMarketParams{}, err
	}
	metric, err := types.ParseMetric(req.Metric)
	if err != nil {
		return types.CreateMarketParams{}, err
	}
	window, err := types.ParseWindow(req.Duration)
	if err != nil {
		return types.CreateMarketParams{}, err
	}

	params := types.CreateMarketParams{
		Creator:    creator,
		TweetID:    tweetID,
		Metric:     metric,
		Duration:   window,
		Multiplier: req.Multiplier,
	}
	if strings.Contains(req.Tweet, "/") {
		params.TweetURL = strings.TrimSpace(req.Tweet)
		params.AuthorHandle = tweets.AuthorFromURL(req.Tweet)
	}
	return params, nil
}

func (s *Server) handleMarketOrders(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	outcome, err := types.ParseOutcome(r.URL.Query().Get("outcome"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	side, err := types.ParseSide(r.URL.Query().Get("side"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	orders, err := s.engine.GetMarketOrders(id, outcome, side)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	outcome, err := types.ParseOutcome(r.URL.Query().Get("outcome"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var generation uint64
	if s.depth != nil {
		if depth, ok := s.depth.Get(id, outcome); ok {
			s.writeJSON(w, http.StatusOK, depth)
			return
		}
		generation = s.depth.Generation(id)
	}

	depth, err := s.engine.Depth(id, outcome)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.depth != nil {
		s.depth.Set(depth, generation)
	}
	s.writeJSON(w, http.StatusOK, depth)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err = s.engine.GetMarket(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	var trader *common.Address
	if raw := r.URL.Query().Get("trader"); raw != "" {
		addr, parseErr := wallet.ParseAddress(raw)
		if parseErr != nil {
			s.writeError(w, r, parseErr)
			return
		}
		trader = &addr
	}
	s.writeJSON(w, http.StatusOK, s.engine.TradeHistory(id, trader))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.requireOracle(r); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req ResolveRequest
	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	market, err := s.engine.ResolveMarket(id, req.FinalValue)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, market)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.requireOracle(r); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req InvalidateRequest
	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "invalidated by oracle"
	}

	market, err := s.engine.InvalidateMarket(id, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, market)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req RedeemRequest
	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	outcome, err := types.ParseOutcome(req.Outcome)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.engine.RedeemWinningShares(caller(r), id, outcome)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	s.handleCompleteSet(w, r, s.engine.SplitPosition)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	s.handleCompleteSet(w, r, s.engine.MergePositions)
}

func (s *Server) handleCompleteSet(w http.ResponseWriter, r *http.Request, op func(common.Address, uint64, types.Amount) error) {
	id, err := uintParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req SharesRequest
	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	account := caller(r)
	if err = op(account, id, req.Shares); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Debug("complete-set-handled",
		zap.String("path", r.URL.Path),
		zap.String("account", account.Hex()))
	s.writeJSON(w, http.StatusOK, s.engine.Balances(account))
}
