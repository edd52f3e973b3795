package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mselser95/bangr-engine/pkg/cache"
	"github.com/mselser95/bangr-engine/pkg/healthprobe"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/mselser95/bangr-engine/pkg/wallet"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Engine is the market engine served over HTTP.
type Engine interface {
	CreateMarket(params types.CreateMarketParams) (types.Market, error)
	CreateMarketFromTweet(ctx context.Context, params types.CreateMarketParams) (types.Market, error)
	GetMarket(id uint64) (types.Market, error)
	ListMarkets() []types.Market
	MarketsByTweet(tweetID string) []types.Market
	NextMarketID() uint64
	GetMarketOrders(marketID uint64, outcome types.Outcome, side types.Side) ([]types.Order, error)
	Depth(marketID uint64, outcome types.Outcome) (types.Depth, error)
	TradeHistory(marketID uint64, trader *common.Address) []types.Trade
	ResolveMarket(marketID, finalValue uint64) (types.Market, error)
	InvalidateMarket(marketID uint64, reason string) (types.Market, error)
	RedeemWinningShares(account common.Address, marketID uint64, outcome types.Outcome) (types.RedeemResult, error)
	SplitPosition(account common.Address, marketID uint64, shares types.Amount) error
	MergePositions(account common.Address, marketID uint64, shares types.Amount) error
	PlaceLimitOrder(req types.PlaceOrderRequest) (types.PlaceResult, error)
	CancelOrder(caller common.Address, orderID uint64) (types.Order, error)
	GetUserOrders(account common.Address) []types.Order
	Balances(account common.Address) types.AccountBalances
	Deposit(account common.Address, amount types.Amount) error
	Withdraw(account common.Address, amount types.Amount) error
}

// Server provides the engine API plus metrics and health endpoints.
type Server struct {
	server        *http.Server
	handler       http.Handler
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker

	engine            Engine
	depth             *cache.DepthCache
	oracle            *common.Address
	requireSignatures bool
	replay            *wallet.ReplayGuard
	now               func() time.Time
	faucetAmount      types.Amount
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Engine        Engine

	// DepthCache caches book depth responses. Optional.
	DepthCache *cache.DepthCache

	// Events serves the event stream on /ws/events. Optional.
	Events http.Handler

	// Oracle is the only account allowed to resolve or invalidate markets.
	// Nil disables manual resolution.
	Oracle *common.Address

	// RequireSignatures makes write requests prove their X-Account with an
	// X-Signature. When false the X-Account header is trusted.
	RequireSignatures bool

	// SignatureMaxAge bounds the age of a signed request's X-Timestamp.
	// Zero uses wallet.DefaultSignatureMaxAge.
	SignatureMaxAge time.Duration

	// Now returns the clock signed timestamps are checked against. Defaults
	// to time.Now.
	Now func() time.Time

	// FaucetAmount is credited per faucet call. Zero disables the faucet.
	FaucetAmount types.Amount
}

// New creates a new HTTP server.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.HealthChecker == nil {
		return nil, fmt.Errorf("health checker cannot be nil")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		logger:            cfg.Logger,
		healthChecker:     cfg.HealthChecker,
		engine:            cfg.Engine,
		depth:             cfg.DepthCache,
		oracle:            cfg.Oracle,
		requireSignatures: cfg.RequireSignatures,
		replay:            wallet.NewReplayGuard(cfg.SignatureMaxAge),
		now:               now,
		faucetAmount:      cfg.FaucetAmount,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.Events != nil {
		r.Handle("/ws/events", cfg.Events)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/markets", s.handleListMarkets)
		r.Get("/markets/next-id", s.handleNextMarketID)
		r.Get("/markets/{id}", s.handleGetMarket)
		r.Get("/markets/{id}/orders", s.handleMarketOrders)
		r.Get("/markets/{id}/book", s.handleBook)
		r.Get("/markets/{id}/trades", s.handleTrades)
		r.Get("/accounts/{address}/orders", s.handleAccountOrders)
		r.Get("/accounts/{address}/balances", s.handleBalances)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/markets", s.handleCreateMarket)
			r.Post("/markets/{id}/resolve", s.handleResolve)
			r.Post("/markets/{id}/invalidate", s.handleInvalidate)
			r.Post("/markets/{id}/redeem", s.handleRedeem)
			r.Post("/markets/{id}/split", s.handleSplit)
			r.Post("/markets/{id}/merge", s.handleMerge)
			r.Post("/orders", s.handlePlaceOrder)
			r.Delete("/orders/{id}", s.handleCancelOrder)
			r.Post("/accounts/{address}/faucet", s.handleFaucet)
			r.Post("/accounts/{address}/withdraw", s.handleWithdraw)
		})
	})

	s.handler = r
	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
