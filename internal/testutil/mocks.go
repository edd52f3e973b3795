package testutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/bangr-engine/pkg/types"
)

// MockTwitterAPI is a mock HTTP server that simulates the twitterapi.io
// tweet lookup endpoint.
type MockTwitterAPI struct {
	*httptest.Server
	APIKey string

	mu       sync.RWMutex
	tweets   map[string]*types.Tweet
	status   int
	requests int
}

// NewMockTwitterAPI creates a new mock API that requires apiKey.
func NewMockTwitterAPI(apiKey string, tweets ...*types.Tweet) *MockTwitterAPI {
	mock := &MockTwitterAPI{
		APIKey: apiKey,
		tweets: make(map[string]*types.Tweet),
	}
	for _, t := range tweets {
		mock.tweets[t.ID] = t
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests++
		status := mock.status
		mock.mu.Unlock()

		if r.URL.Path != "/twitter/tweets" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-api-key") != mock.APIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}

		mock.mu.RLock()
		defer mock.mu.RUnlock()

		found := make([]map[string]any, 0)
		for _, id := range strings.Split(r.URL.Query().Get("tweet_ids"), ",") {
			if t, ok := mock.tweets[id]; ok {
				found = append(found, apiTweet(t))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tweets": found,
			"status": "success",
		})
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// apiTweet renders a tweet in the provider's flat counter shape.
func apiTweet(t *types.Tweet) map[string]any {
	return map[string]any{
		"id":            t.ID,
		"text":          t.Text,
		"author":        map[string]any{"userName": t.AuthorHandle, "name": t.AuthorName},
		"viewCount":     t.Views,
		"likeCount":     t.Likes,
		"retweetCount":  t.Retweets,
		"replyCount":    t.Replies,
		"quoteCount":    t.Quotes,
		"bookmarkCount": t.Bookmarks,
	}
}

// SetTweet adds or replaces a tweet.
func (m *MockTwitterAPI) SetTweet(t *types.Tweet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tweets[t.ID] = t
}

// FailWith makes every request answer with status. Zero restores normal replies.
func (m *MockTwitterAPI) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Requests returns the number of requests served.
func (m *MockTwitterAPI) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests
}

// MockTweetProvider is an in-memory tweet provider.
type MockTweetProvider struct {
	mu     sync.Mutex
	tweets map[string]*types.Tweet
	err    error
	calls  int
}

// NewMockTweetProvider creates a provider serving tweets.
func NewMockTweetProvider(tweets ...*types.Tweet) *MockTweetProvider {
	m := &MockTweetProvider{tweets: make(map[string]*types.Tweet)}
	for _, t := range tweets {
		m.tweets[t.ID] = t
	}
	return m
}

// SetTweet adds or replaces a tweet.
func (m *MockTweetProvider) SetTweet(t *types.Tweet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tweets[t.ID] = t
}

// SetErr sets the error returned for unknown tweets. Nil means not found.
func (m *MockTweetProvider) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// FetchTweet returns a copy of the stored tweet.
func (m *MockTweetProvider) FetchTweet(_ context.Context, tweetID string) (*types.Tweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	t, ok := m.tweets[tweetID]
	if !ok {
		if m.err != nil {
			return nil, m.err
		}
		return nil, types.Errorf(types.ErrTweetNotFound, "tweet %s", tweetID)
	}
	out := *t
	return &out, nil
}

// Calls returns the number of fetches.
func (m *MockTweetProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSink is an in-memory event sink.
type MockSink struct {
	mu     sync.Mutex
	events []types.Event
	failOn map[uint64]bool
	delay  time.Duration
	closed bool
}

// NewMockSink creates a sink that rejects the given sequence numbers.
func NewMockSink(failOn ...uint64) *MockSink {
	s := &MockSink{failOn: make(map[uint64]bool)}
	for _, seq := range failOn {
		s.failOn[seq] = true
	}
	return s
}

// SetDelay makes every Store take at least d.
func (s *MockSink) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Store records the event.
func (s *MockSink) Store(_ context.Context, ev *types.Event) error {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sink closed")
	}
	if s.failOn[ev.Sequence] {
		return errors.New("disk full")
	}
	s.events = append(s.events, *ev)
	return nil
}

// Close marks the sink closed.
func (s *MockSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Sequences returns the stored sequence numbers in arrival order.
func (s *MockSink) Sequences() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Sequence)
	}
	return out
}

// Closed reports whether Close was called.
func (s *MockSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
