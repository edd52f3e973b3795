package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mselser95/bangr-engine/pkg/cache"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.Bool("require-signatures", a.cfg.RequireSignatures),
		zap.Bool("resolver", a.resolver != nil),
		zap.String("log-level", a.cfg.LogLevel))

	a.Start()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("stream-path", "/ws/events"))

	return a.waitForShutdown()
}

// Start launches every background component and marks the app ready.
func (a *App) Start() {
	// The recorder drains a lossless subscription until the bus closes, so it
	// does not share the app context.
	recorderSub := a.bus.SubscribeDurable("recorder", nil)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.recorder.Run(context.Background(), recorderSub.Events())
	}()

	// A missed invalidation would serve a stale book, so the depth cache also
	// reads losslessly, and only the events that change a book.
	cacheSub := a.bus.SubscribeDurable("depth-cache", func(ev *types.Event) bool {
		return cache.Affects(ev.Type)
	})
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.depthCache.Watch(context.Background(), cacheSub.Events())
	}()

	if a.resolver != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.resolver.Run(a.ctx)
		}()
	}

	a.wg.Add(1)
	go a.runHTTPServer()

	a.healthChecker.SetReady(true)
}

// Handler returns the HTTP handler, for serving without a listener.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler()
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
