package tweets

import (
	"context"
	"time"

	"github.com/mselser95/bangr-engine/pkg/cache"
	"github.com/mselser95/bangr-engine/pkg/types"
)

// Fetcher fetches a tweet's counters.
type Fetcher interface {
	FetchTweet(ctx context.Context, tweetID string) (*types.Tweet, error)
}

// CachedFetcher wraps a Fetcher with a short-lived cache so that several
// markets created on the same tweet share one provider call. Settlement must
// not read through it.
type CachedFetcher struct {
	fetcher Fetcher
	cache   cache.Cache
	ttl     time.Duration
}

// NewCachedFetcher creates a cached fetcher. A nil cache disables caching.
func NewCachedFetcher(fetcher Fetcher, c cache.Cache, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
	}
}

func cacheKey(tweetID string) string {
	return "tweet:" + tweetID
}

// FetchTweet returns the cached snapshot when fresh, otherwise fetches it.
func (c *CachedFetcher) FetchTweet(ctx context.Context, tweetID string) (*types.Tweet, error) {
	id, err := ParseTweetID(tweetID)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey(id)); ok {
			if tweet, ok := cached.(*types.Tweet); ok {
				CacheHitsTotal.Inc()
				out := *tweet
				return &out, nil
			}
		}
		CacheMissesTotal.Inc()
	}

	tweet, err := c.fetcher.FetchTweet(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		stored := *tweet
		c.cache.Set(cacheKey(id), &stored, c.ttl)
	}
	return tweet, nil
}

// Forget drops a tweet from the cache.
func (c *CachedFetcher) Forget(tweetID string) {
	if c.cache == nil {
		return
	}
	c.cache.Delete(cacheKey(tweetID))
}
