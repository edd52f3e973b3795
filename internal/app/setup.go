package app

import (
	"context"
	"fmt"

	"github.com/mselser95/bangr-engine/internal/circuitbreaker"
	"github.com/mselser95/bangr-engine/internal/events"
	"github.com/mselser95/bangr-engine/internal/exchange"
	"github.com/mselser95/bangr-engine/internal/resolver"
	"github.com/mselser95/bangr-engine/internal/storage"
	"github.com/mselser95/bangr-engine/internal/tweets"
	"github.com/mselser95/bangr-engine/pkg/cache"
	"github.com/mselser95/bangr-engine/pkg/config"
	"github.com/mselser95/bangr-engine/pkg/healthprobe"
	"github.com/mselser95/bangr-engine/pkg/httpserver"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/mselser95/bangr-engine/pkg/websocket"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a, err := build(ctx, cfg, logger, opts)
	if err != nil {
		cancel()
		return nil, err
	}
	a.ctx = ctx
	a.cancel = cancel
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
	}

	bus, err := events.New(&events.Config{
		Logger:     logger.Named("events"),
		BufferSize: cfg.EventBufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create event bus: %w", err)
	}
	a.bus = bus

	a.tweetClient, err = setupTweetClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tweet client: %w", err)
	}

	a.readCache, err = cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100000, // 10x expected max items
		MaxCost:     10000,  // depth snapshots and tweet snapshots, one unit each
		BufferItems: 64,
		Logger:      logger.Named("cache"),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	exCfg := &exchange.Config{
		Logger:    logger.Named("exchange"),
		Publisher: bus,
	}
	if a.tweetClient != nil {
		// Creation reads through the snapshot cache, settlement never does
		if cfg.TweetCacheTTL > 0 {
			exCfg.Provider = tweets.NewCachedFetcher(a.tweetClient, a.readCache, cfg.TweetCacheTTL)
		} else {
			exCfg.Provider = a.tweetClient
		}
	}
	a.exchange, err = exchange.New(exCfg)
	if err != nil {
		a.readCache.Close()
		return nil, fmt.Errorf("create exchange: %w", err)
	}

	if cfg.ResolverEnabled && !opts.DisableResolver {
		if a.tweetClient == nil {
			logger.Warn("resolver-disabled-no-provider",
				zap.String("note", "TWITTER_API_KEY not set, expired markets must be resolved by the oracle"))
		} else {
			a.resolver, err = resolver.New(&resolver.Config{
				Engine:      a.exchange,
				Provider:    a.tweetClient,
				Interval:    cfg.ResolverInterval,
				GracePeriod: cfg.ResolverGracePeriod,
				Logger:      logger.Named("resolver"),
			})
			if err != nil {
				a.readCache.Close()
				return nil, fmt.Errorf("create resolver: %w", err)
			}
		}
	}

	a.sink, err = setupStorage(ctx, cfg, logger, a.healthChecker)
	if err != nil {
		a.readCache.Close()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	a.recorder, err = storage.NewRecorder(&storage.RecorderConfig{
		Sink:   a.sink,
		Logger: logger.Named("recorder"),
	})
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("create recorder: %w", err)
	}

	a.depthCache = cache.NewDepthCache(a.readCache, cfg.BookCacheTTL, logger.Named("depth-cache"))

	a.hub, err = websocket.NewHub(&websocket.HubConfig{
		Bus:          bus,
		Logger:       logger.Named("stream"),
		PingInterval: cfg.WSPingInterval,
		WriteTimeout: cfg.WSWriteTimeout,
	})
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("create stream hub: %w", err)
	}

	a.httpServer, err = setupHTTPServer(cfg, logger, a)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("setup http server: %w", err)
	}

	return a, nil
}

// setupTweetClient returns nil when no API key is configured.
func setupTweetClient(cfg *config.Config, logger *zap.Logger) (*tweets.Client, error) {
	if cfg.TwitterAPIKey == "" {
		logger.Warn("tweet-provider-disabled",
			zap.String("note", "TWITTER_API_KEY not set, markets need an explicit current_value"))
		return nil, nil
	}

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		Name:             "twitterapi",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
		Trips:            tweets.Trips,
		Logger:           logger.Named("breaker"),
	})
	if err != nil {
		return nil, fmt.Errorf("create circuit breaker: %w", err)
	}

	return tweets.NewClient(&tweets.Config{
		BaseURL: cfg.TwitterAPIURL,
		APIKey:  cfg.TwitterAPIKey,
		Timeout: cfg.TwitterTimeout,
		Breaker: breaker,
		Logger:  logger.Named("tweets"),
	})
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger, hc *healthprobe.HealthChecker) (storage.Sink, error) {
	switch cfg.StorageMode {
	case storage.ModePostgres:
		pg, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger.Named("postgres"),
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		hc.AddCheck("postgres", pg.Ping)
		return pg, nil

	case storage.ModeRedis:
		rs, err := storage.NewRedisStorage(ctx, &storage.RedisConfig{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			ChannelPrefix: cfg.RedisChannelPrefix,
			Logger:        logger.Named("redis"),
		})
		if err != nil {
			return nil, fmt.Errorf("create redis storage: %w", err)
		}
		return rs, nil

	default:
		return storage.NewConsoleStorage(logger.Named("events")), nil
	}
}

func setupHTTPServer(cfg *config.Config, logger *zap.Logger, a *App) (*httpserver.Server, error) {
	srvCfg := &httpserver.Config{
		Port:              cfg.HTTPPort,
		Logger:            logger.Named("http"),
		HealthChecker:     a.healthChecker,
		Engine:            a.exchange,
		DepthCache:        a.depthCache,
		Events:            a.hub,
		RequireSignatures: cfg.RequireSignatures,
		SignatureMaxAge:   cfg.SignatureMaxAge,
	}

	if oracle, ok := cfg.Oracle(); ok {
		srvCfg.Oracle = &oracle
	}

	if cfg.FaucetEnabled {
		amount, err := cfg.FaucetCollateral()
		if err != nil {
			return nil, fmt.Errorf("parse faucet amount: %w", err)
		}
		srvCfg.FaucetAmount = amount
		logger.Info("faucet-enabled", zap.String("amount", amount.FormatUnits(types.CollateralDecimals)))
	}

	return httpserver.New(srvCfg)
}

func (a *App) closeStores() {
	a.readCache.Close()
	if err := a.sink.Close(); err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}
}
