package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewReconnectManagerDefaults(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{}, zap.NewNop())
	assert.Equal(t, time.Second, rm.config.InitialDelay)
	assert.Equal(t, 30*time.Second, rm.config.MaxDelay)
	assert.InDelta(t, 2.0, rm.config.BackoffMultiplier, 0)
}

func TestReconnectBacksOffUntilSuccess(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2,
	}, zap.NewNop())
	rm.jitter = func() float64 { return 0 }

	var delays []time.Duration
	attempts := 0
	err := rm.Reconnect(context.Background(), func(context.Context) error {
		attempts++
		rm.mu.Lock()
		delays = append(delays, rm.backoff)
		rm.mu.Unlock()
		if attempts < 5 {
			return errors.New("refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond,
	}, delays)

	rm.mu.Lock()
	defer rm.mu.Unlock()
	assert.Equal(t, time.Millisecond, rm.backoff, "reset after success")
}

func TestReconnectStopsOnCancel(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{InitialDelay: time.Hour, MaxDelay: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rm.Reconnect(ctx, func(context.Context) error {
		t.Fatal("connect called after cancel")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextAppliesJitter(t *testing.T) {
	rm := NewReconnectManager(ReconnectConfig{InitialDelay: 100 * time.Millisecond, JitterPercent: 0.5}, zap.NewNop())
	rm.jitter = func() float64 { return 1 }
	assert.Equal(t, 150*time.Millisecond, rm.next())
}
