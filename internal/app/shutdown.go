package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. Safe to call more than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(a.shutdown)
	return nil
}

func (a *App) shutdown() {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop accepting writes before anything downstream goes away
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Stops the resolver and the cache watcher
	a.cancel()

	a.hub.Close()

	// Closing the bus ends every subscription, which lets the recorder
	// finish the events it already holds.
	a.bus.Close()

	a.wg.Wait()

	a.closeStores()

	a.logger.Info("application-shutdown-complete")
}
