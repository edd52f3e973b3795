// Package exchange is the public entry point of the market engine. Every
// operation runs under one lock as a single transaction: any error rolls
// back every ledger, book and registry mutation made by the call, and the
// call's events are published only after it commits.
package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/internal/ledger"
	"github.com/mselser95/bangr-engine/internal/lifecycle"
	"github.com/mselser95/bangr-engine/internal/matching"
	"github.com/mselser95/bangr-engine/internal/orderbook"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// Publisher receives committed events in commit order.
type Publisher interface {
	Publish(events []types.Event)
}

// TweetProvider fetches the current counters of a tweet.
type TweetProvider interface {
	FetchTweet(ctx context.Context, tweetID string) (*types.Tweet, error)
}

// Exchange coordinates the ledger, order book, matching engine and market
// registry.
type Exchange struct {
	mu sync.Mutex

	logger    *zap.Logger
	now       func() time.Time
	publisher Publisher
	provider  TweetProvider

	ledger  *ledger.Ledger
	book    *orderbook.Registry
	engine  *matching.Engine
	markets *lifecycle.Registry

	journal  *journal.Journal
	sequence uint64
	trades   []types.Trade
}

// Config holds exchange configuration.
type Config struct {
	Logger *zap.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Publisher receives committed events. Optional.
	Publisher Publisher

	// Provider fetches tweet counters for market creation. Optional.
	Provider TweetProvider
}

// New creates an exchange with empty state.
func New(cfg *Config) (*Exchange, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := ledger.New(&ledger.Config{Logger: cfg.Logger.Named("ledger")})
	book := orderbook.New(&orderbook.Config{Logger: cfg.Logger.Named("orderbook")})

	engine, err := matching.New(&matching.Config{
		Logger: cfg.Logger.Named("matching"),
		Ledger: l,
		Book:   book,
	})
	if err != nil {
		return nil, fmt.Errorf("create matching engine: %w", err)
	}

	markets, err := lifecycle.New(&lifecycle.Config{
		Logger: cfg.Logger.Named("lifecycle"),
		Ledger: l,
	})
	if err != nil {
		return nil, fmt.Errorf("create market registry: %w", err)
	}

	return &Exchange{
		logger:    cfg.Logger,
		now:       now,
		publisher: cfg.Publisher,
		provider:  cfg.Provider,
		ledger:    l,
		book:      book,
		engine:    engine,
		markets:   markets,
		journal:   journal.New(),
		trades:    make([]types.Trade, 0),
	}, nil
}

// apply runs fn as one transaction under the exchange lock.
func (e *Exchange) apply(op string, fn func(j *journal.Journal, now time.Time) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() {
		OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	now := e.now()
	if err := fn(e.journal, now); err != nil {
		e.journal.Rollback()
		OperationsTotal.WithLabelValues(op, string(types.KindOf(err))).Inc()
		e.logger.Debug("operation-rejected",
			zap.String("operation", op),
			zap.String("code", types.CodeOf(err)),
			zap.Error(err))
		return err
	}

	events := e.journal.Commit()
	for i := range events {
		e.sequence++
		events[i].ID = uuid.NewString()
		events[i].Sequence = e.sequence
		events[i].Time = now
	}
	OperationsTotal.WithLabelValues(op, "ok").Inc()

	if e.publisher != nil && len(events) > 0 {
		e.publisher.Publish(events)
	}
	return nil
}

// read runs fn under the exchange lock without a transaction.
func (e *Exchange) read(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

// Now returns the exchange clock.
func (e *Exchange) Now() time.Time {
	return e.now()
}

// CreateMarket registers a market from explicit parameters.
func (e *Exchange) CreateMarket(params types.CreateMarketParams) (types.Market, error) {
	var market types.Market
	err := e.apply("create_market", func(j *journal.Journal, now time.Time) error {
		m, err := e.markets.Create(j, &params, now)
		if err != nil {
			return err
		}
		market = *m
		return nil
	})
	if err != nil {
		return types.Market{}, err
	}

	e.logger.Info("market-created",
		zap.Uint64("market-id", market.ID),
		zap.String("tweet-id", market.TweetID),
		zap.String("metric", string(market.Metric)),
		zap.String("duration", string(market.Duration)),
		zap.Uint64("target-value", market.TargetValue),
		zap.Time("end-time", market.EndTime))
	return market, nil
}

// CreateMarketFromTweet fetches the tweet's counters through the provider,
// snapshots them into the market and creates it. A fetch failure fails the
// creation.
func (e *Exchange) CreateMarketFromTweet(ctx context.Context, params types.CreateMarketParams) (types.Market, error) {
	if e.provider == nil {
		return types.Market{}, types.ErrProviderDisabled
	}

	tweet, err := e.provider.FetchTweet(ctx, params.TweetID)
	if err != nil {
		return types.Market{}, fmt.Errorf("fetch tweet %s: %w", params.TweetID, err)
	}

	current, err := tweet.MetricValue(params.Metric)
	if err != nil {
		return types.Market{}, err
	}
	params.CurrentValue = current
	params.Tweet = tweet
	if params.AuthorHandle == "" {
		params.AuthorHandle = tweet.AuthorHandle
	}
	return e.CreateMarket(params)
}

// GetMarket returns a copy of a market.
func (e *Exchange) GetMarket(id uint64) (types.Market, error) {
	var (
		market types.Market
		err    error
	)
	e.read(func() {
		var m *types.Market
		m, err = e.markets.Get(id)
		if err == nil {
			market = *m
		}
	})
	return market, err
}

// ListMarkets returns all markets, oldest first.
func (e *Exchange) ListMarkets() []types.Market {
	var out []types.Market
	e.read(func() { out = e.markets.List() })
	return out
}

// MarketsByTweet returns the markets created on a tweet, newest first.
func (e *Exchange) MarketsByTweet(tweetID string) []types.Market {
	var out []types.Market
	e.read(func() { out = e.markets.ByTweet(tweetID) })
	return out
}

// NextMarketID returns the id the next created market will receive.
func (e *Exchange) NextMarketID() uint64 {
	var id uint64
	e.read(func() { id = e.markets.NextID() })
	return id
}

// ExpiredMarkets returns pending markets whose window has ended.
func (e *Exchange) ExpiredMarkets() []types.Market {
	var out []types.Market
	e.read(func() { out = e.markets.Expired(e.now()) })
	return out
}
