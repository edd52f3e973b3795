// Package resolver settles markets whose window has ended from the tweet's
// final counters.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// Engine is the subset of the exchange the resolver drives.
type Engine interface {
	Now() time.Time
	ExpiredMarkets() []types.Market
	ResolveMarket(marketID, finalValue uint64) (types.Market, error)
	InvalidateMarket(marketID uint64, reason string) (types.Market, error)
}

// Provider fetches the current counters of a tweet.
type Provider interface {
	FetchTweet(ctx context.Context, tweetID string) (*types.Tweet, error)
}

// Resolver periodically resolves expired markets. A market whose tweet
// cannot be read until EndTime plus the grace period is invalidated.
type Resolver struct {
	engine   Engine
	provider Provider
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
}

// Config holds resolver configuration.
type Config struct {
	Engine      Engine
	Provider    Provider
	Interval    time.Duration
	GracePeriod time.Duration
	Logger      *zap.Logger
}

// New creates a resolver.
func New(cfg *Config) (*Resolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if cfg.GracePeriod < 0 {
		return nil, fmt.Errorf("grace period cannot be negative")
	}

	return &Resolver{
		engine:   cfg.Engine,
		provider: cfg.Provider,
		interval: cfg.Interval,
		grace:    cfg.GracePeriod,
		logger:   cfg.Logger,
	}, nil
}

// Run resolves expired markets every interval until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context) {
	r.logger.Info("resolver-started",
		zap.Duration("interval", r.interval),
		zap.Duration("grace-period", r.grace))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("resolver-stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick makes one pass over the expired markets and returns how many it settled.
func (r *Resolver) Tick(ctx context.Context) int {
	start := time.Now()
	defer func() {
		TickDuration.Observe(time.Since(start).Seconds())
	}()

	settled := 0
	for _, market := range r.engine.ExpiredMarkets() {
		if ctx.Err() != nil {
			break
		}
		if r.settle(ctx, &market) {
			settled++
		}
	}
	return settled
}

func (r *Resolver) settle(ctx context.Context, market *types.Market) bool {
	final, err := r.finalValue(ctx, market)
	if err != nil {
		FetchFailuresTotal.Inc()

		deadline := market.EndTime.Add(r.grace)
		if r.engine.Now().Before(deadline) {
			r.logger.Warn("resolution-fetch-failed",
				zap.Uint64("market-id", market.ID),
				zap.String("tweet-id", market.TweetID),
				zap.Time("invalidate-after", deadline),
				zap.Error(err))
			return false
		}

		_, err = r.engine.InvalidateMarket(market.ID, fmt.Sprintf("metrics unavailable: %v", err))
		return r.record(market, types.StatusResolvedInvalid, err)
	}

	resolved, err := r.engine.ResolveMarket(market.ID, final)
	return r.record(market, resolved.Status, err)
}

func (r *Resolver) finalValue(ctx context.Context, market *types.Market) (uint64, error) {
	tweet, err := r.provider.FetchTweet(ctx, market.TweetID)
	if err != nil {
		return 0, err
	}
	return tweet.MetricValue(market.Metric)
}

func (r *Resolver) record(market *types.Market, status types.MarketStatus, err error) bool {
	if err != nil {
		if errors.Is(err, types.ErrAlreadyResolved) {
			r.logger.Debug("market-already-resolved", zap.Uint64("market-id", market.ID))
			return false
		}
		r.logger.Error("resolution-failed",
			zap.Uint64("market-id", market.ID),
			zap.Error(err))
		return false
	}

	ResolutionsTotal.WithLabelValues(string(status)).Inc()
	r.logger.Info("market-auto-resolved",
		zap.Uint64("market-id", market.ID),
		zap.String("status", string(status)))
	return true
}
