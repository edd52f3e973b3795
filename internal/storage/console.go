package storage

import (
	"context"

	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// ConsoleStorage implements Sink by logging every event.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// Store logs the event with its payload.
func (c *ConsoleStorage) Store(_ context.Context, ev *types.Event) error {
	c.logger.Info("engine-event",
		zap.Uint64("sequence", ev.Sequence),
		zap.String("event-id", ev.ID),
		zap.String("event-type", string(ev.Type)),
		zap.Uint64("market-id", ev.MarketID),
		zap.Time("time", ev.Time),
		zap.Any("payload", ev.Payload))
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
