package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// DepthCache caches aggregated book depth per market outcome. Entries are
// dropped as soon as an event that can change the book is observed, and
// expire after the TTL regardless. Each invalidation bumps the market's
// generation; a snapshot computed under an older generation is not stored.
type DepthCache struct {
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger

	mu          sync.Mutex
	generations map[uint64]uint64
}

// NewDepthCache wraps c. A non-positive ttl defaults to one second.
func NewDepthCache(c Cache, ttl time.Duration, logger *zap.Logger) *DepthCache {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &DepthCache{
		cache:       c,
		ttl:         ttl,
		logger:      logger,
		generations: make(map[uint64]uint64),
	}
}

// DepthKey is the cache key of one market outcome's depth.
func DepthKey(marketID uint64, outcome types.Outcome) string {
	return fmt.Sprintf("depth:%d:%s", marketID, outcome)
}

// Get returns the cached depth, if any.
func (d *DepthCache) Get(marketID uint64, outcome types.Outcome) (types.Depth, bool) {
	v, ok := d.cache.Get(DepthKey(marketID, outcome))
	if !ok {
		return types.Depth{}, false
	}
	depth, ok := v.(types.Depth)
	return depth, ok
}

// Generation returns the market's invalidation count. Read it before
// computing a snapshot and pass it to Set.
func (d *DepthCache) Generation(marketID uint64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generations[marketID]
}

// Set stores a depth snapshot computed at generation. It reports false and
// stores nothing when the market was invalidated since.
func (d *DepthCache) Set(depth types.Depth, generation uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generations[depth.MarketID] != generation {
		d.logger.Debug("depth-snapshot-outdated",
			zap.Uint64("market-id", depth.MarketID),
			zap.Uint64("generation", generation))
		return false
	}
	return d.cache.Set(DepthKey(depth.MarketID, depth.Outcome), depth, d.ttl)
}

// Invalidate drops both outcomes of a market.
func (d *DepthCache) Invalidate(marketID uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generations[marketID]++
	d.cache.Delete(DepthKey(marketID, types.OutcomeYes))
	d.cache.Delete(DepthKey(marketID, types.OutcomeNo))
}

// Affects reports whether an event can change a market's depth.
func Affects(eventType types.EventType) bool {
	switch eventType {
	case types.EventOrderPlaced, types.EventOrderCancelled, types.EventTradeExecuted, types.EventMarketResolved:
		return true
	default:
		return false
	}
}

// Watch invalidates entries from an event stream until it closes or ctx ends.
func (d *DepthCache) Watch(ctx context.Context, events <-chan types.Event) {
	d.logger.Debug("depth-cache-watching")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if Affects(ev.Type) {
				d.Invalidate(ev.MarketID)
			}
		}
	}
}
