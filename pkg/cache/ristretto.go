package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

const (
	defaultMaxEntries  = 10_000
	defaultBufferItems = 64
)

// RistrettoCache is the in-process snapshot cache. Every entry costs one, so
// MaxCost bounds the number of snapshots held.
type RistrettoCache struct {
	store  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig sizes the snapshot cache.
type RistrettoConfig struct {
	NumCounters int64 // admission counters, ~10x MaxCost
	MaxCost     int64 // max snapshots held
	BufferItems int64
	Logger      *zap.Logger
}

// NewRistrettoCache creates the snapshot cache. Zero sizes fall back to room
// for 10k snapshots.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = defaultMaxEntries
	}
	numCounters := cfg.NumCounters
	if numCounters <= 0 {
		numCounters = maxCost * 10
	}
	bufferItems := cfg.BufferItems
	if bufferItems <= 0 {
		bufferItems = defaultBufferItems
	}

	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	cfg.Logger.Debug("snapshot-cache-created",
		zap.Int64("max-entries", maxCost),
		zap.Int64("counters", numCounters))

	return &RistrettoCache{store: store, logger: cfg.Logger}, nil
}

// Get returns the snapshot stored under key.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := r.store.Get(key)
	result := "miss"
	if found {
		result = "hit"
	}
	LookupsTotal.WithLabelValues(Namespace(key), result).Inc()
	return value, found
}

// Set queues a snapshot for admission. It returns false when the write was
// dropped.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	ns := Namespace(key)
	if !r.store.SetWithTTL(key, value, 1, ttl) {
		RejectedTotal.WithLabelValues(ns).Inc()
		r.logger.Debug("snapshot-rejected", zap.String("key", key))
		return false
	}
	WritesTotal.WithLabelValues(ns, "set").Inc()
	return true
}

// Delete drops a snapshot.
func (r *RistrettoCache) Delete(key string) {
	r.store.Del(key)
	WritesTotal.WithLabelValues(Namespace(key), "delete").Inc()
}

// Close stops the cache's background goroutines.
func (r *RistrettoCache) Close() {
	r.logger.Info("snapshot-cache-closed",
		zap.Uint64("hits", r.store.Metrics.Hits()),
		zap.Uint64("misses", r.store.Metrics.Misses()))
	r.store.Close()
}

// Metrics exposes ristretto's own counters.
func (r *RistrettoCache) Metrics() *ristretto.Metrics {
	return r.store.Metrics
}

// Wait blocks until queued writes are applied.
func (r *RistrettoCache) Wait() {
	r.store.Wait()
}
