// Package app wires the engine, its HTTP surface and background jobs.
package app

import (
	"context"
	"sync"

	"github.com/mselser95/bangr-engine/internal/events"
	"github.com/mselser95/bangr-engine/internal/exchange"
	"github.com/mselser95/bangr-engine/internal/resolver"
	"github.com/mselser95/bangr-engine/internal/storage"
	"github.com/mselser95/bangr-engine/internal/tweets"
	"github.com/mselser95/bangr-engine/pkg/cache"
	"github.com/mselser95/bangr-engine/pkg/config"
	"github.com/mselser95/bangr-engine/pkg/healthprobe"
	"github.com/mselser95/bangr-engine/pkg/httpserver"
	"github.com/mselser95/bangr-engine/pkg/websocket"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	bus           *events.Bus
	exchange      *exchange.Exchange
	tweetClient   *tweets.Client
	resolver      *resolver.Resolver
	sink          storage.Sink
	recorder      *storage.Recorder
	readCache     *cache.RistrettoCache
	depthCache    *cache.DepthCache
	hub           *websocket.Hub
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdownOnce  sync.Once
}

// Options holds application options.
type Options struct {
	// DisableResolver keeps expired markets pending until resolved by hand.
	DisableResolver bool
}

// Exchange returns the engine.
func (a *App) Exchange() *exchange.Exchange {
	return a.exchange
}
