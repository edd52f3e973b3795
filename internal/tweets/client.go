// Package tweets fetches tweet counters from twitterapi.io.
package tweets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/bangr-engine/internal/circuitbreaker"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// DefaultBaseURL is the twitterapi.io endpoint.
const DefaultBaseURL = "https://api.twitterapi.io"

//nolint:gochecknoglobals // compiled once
var (
	statusURLPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.|mobile\.)?(?:twitter\.com|x\.com)/([A-Za-z0-9_]+)/status(?:es)?/(\d+)`)
	tweetIDPattern   = regexp.MustCompile(`^\d{1,20}$`)
)

// ParseTweetID accepts a bare tweet id or a twitter.com / x.com status URL
// and returns the id.
func ParseTweetID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if tweetIDPattern.MatchString(s) {
		return s, nil
	}
	if m := statusURLPattern.FindStringSubmatch(s); m != nil {
		return m[2], nil
	}
	return "", types.Errorf(types.ErrInvalidArgument, "not a tweet id or status url: %q", s)
}

// AuthorFromURL returns the handle in a status URL, or "" if s is not one.
func AuthorFromURL(s string) string {
	if m := statusURLPattern.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		return m[1]
	}
	return ""
}

// StatusError is a non-200 response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Body)
}

// Client is an HTTP client for twitterapi.io.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	now        func() time.Time
	logger     *zap.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Breaker guards the API. Optional.
	Breaker *circuitbreaker.Breaker

	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// NewClient creates a new twitterapi.io client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key cannot be empty")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		breaker:    cfg.Breaker,
		now:        time.Now,
		logger:     cfg.Logger,
	}, nil
}

// Trips reports whether err means the API itself is unhealthy: rate limits,
// 5xx responses and transport failures. It is the breaker classifier for
// this client.
func Trips(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, types.ErrTweetNotFound) || errors.Is(err, types.ErrInvalidArgument) {
		return false
	}
	return true
}

// FetchTweet fetches the tweet's text, author and counters.
func (c *Client) FetchTweet(ctx context.Context, tweetID string) (*types.Tweet, error) {
	id, err := ParseTweetID(tweetID)
	if err != nil {
		return nil, err
	}

	var tweet *types.Tweet
	fetch := func() error {
		var fetchErr error
		tweet, fetchErr = c.fetch(ctx, id)
		return fetchErr
	}

	if c.breaker != nil {
		err = c.breaker.Do(fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return tweet, nil
}

func (c *Client) fetch(ctx context.Context, tweetID string) (*types.Tweet, error) {
	start := time.Now()

	params := url.Values{}
	params.Add("tweet_ids", tweetID)
	requestURL := fmt.Sprintf("%s/twitter/tweets?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("User-Agent", "bangr-engine/1.0")

	c.logger.Debug("fetching-tweet", zap.String("tweet-id", tweetID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		RequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	RequestsTotal.WithLabelValues(http.StatusText(resp.StatusCode)).Inc()
	RequestDuration.Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, types.Errorf(types.ErrRateLimited, "twitterapi.io rate limit for tweet %s", tweetID)
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.Errorf(types.ErrTweetNotFound, "tweet %s", tweetID)
	case resp.StatusCode != http.StatusOK:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var parsed tweetsResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Status != "" && parsed.Status != "success" {
		return nil, fmt.Errorf("api error: %s", parsed.Msg)
	}
	if len(parsed.Tweets) == 0 {
		return nil, types.Errorf(types.ErrTweetNotFound, "tweet %s", tweetID)
	}

	tweet := parsed.Tweets[0].toTweet(tweetID)
	tweet.FetchedAt = c.now().UTC()

	c.logger.Debug("fetched-tweet",
		zap.String("tweet-id", tweet.ID),
		zap.String("author", tweet.AuthorHandle),
		zap.Uint64("views", tweet.Views),
		zap.Uint64("likes", tweet.Likes),
		zap.Uint64("retweets", tweet.Retweets),
		zap.Uint64("replies", tweet.Replies))

	return tweet, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
