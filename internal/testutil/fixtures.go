package testutil

import (
	"sync"
	"time"

	"github.com/mselser95/bangr-engine/pkg/types"
)

// Epoch is the default start of a test Clock.
var Epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a clock at start, or at Epoch when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = Epoch
	}
	return &Clock{t: start}
}

// Now returns the current time. Pass it as a Now func.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// CreateTestTweet creates a tweet with the given likes and views.
func CreateTestTweet(id, handle string, likes, views uint64) *types.Tweet {
	return &types.Tweet{
		ID:           id,
		Text:         "test tweet " + id,
		AuthorHandle: handle,
		AuthorName:   handle,
		Likes:        likes,
		Views:        views,
		Retweets:     likes / 4,
		Replies:      likes / 10,
	}
}

// CreateTestMarketParams creates explicit market parameters on a tweet.
func CreateTestMarketParams(tweetID string, metric types.Metric, current, multiplier uint64) types.CreateMarketParams {
	return types.CreateMarketParams{
		TweetID:      tweetID,
		Metric:       metric,
		Duration:     types.WindowHour1,
		Multiplier:   multiplier,
		CurrentValue: current,
	}
}
