package websocket

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the configuration for exponential backoff reconnection.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = up to 20% longer
}

// ReconnectManager retries a connect function with exponential backoff and jitter.
type ReconnectManager struct {
	config ReconnectConfig
	logger *zap.Logger
	jitter func() float64

	mu      sync.Mutex
	backoff time.Duration
}

// NewReconnectManager creates a reconnection manager. Zero fields fall back
// to a 1s initial delay, a 30s cap and a multiplier of 2.
func NewReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *ReconnectManager {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2
	}
	return &ReconnectManager{
		config:  cfg,
		logger:  logger,
		jitter:  rand.Float64,
		backoff: cfg.InitialDelay,
	}
}

// Reconnect calls connect until it succeeds or ctx ends, sleeping the current
// backoff before every attempt.
func (rm *ReconnectManager) Reconnect(ctx context.Context, connect func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		delay := rm.next()
		rm.logger.Info("attempting-reconnection",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay))
		ReconnectAttemptsTotal.Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err := connect(ctx)
		if err == nil {
			rm.Reset()
			rm.logger.Info("reconnection-successful", zap.Int("attempt", attempt))
			return nil
		}

		rm.logger.Warn("reconnection-failed", zap.Int("attempt", attempt), zap.Error(err))
		ReconnectFailuresTotal.Inc()
		rm.grow()
	}
}

// Reset returns the backoff to the initial delay.
func (rm *ReconnectManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.backoff = rm.config.InitialDelay
}

// next returns the current backoff stretched by jitter.
func (rm *ReconnectManager) next() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return time.Duration(float64(rm.backoff) * (1 + rm.jitter()*rm.config.JitterPercent))
}

func (rm *ReconnectManager) grow() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.backoff = time.Duration(float64(rm.backoff) * rm.config.BackoffMultiplier)
	if rm.backoff > rm.config.MaxDelay {
		rm.backoff = rm.config.MaxDelay
	}
}
