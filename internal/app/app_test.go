package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/mselser95/bangr-engine/internal/testutil"
	"github.com/mselser95/bangr-engine/pkg/config"
	"github.com/mselser95/bangr-engine/pkg/httpserver"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/mselser95/bangr-engine/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:                "debug",
		HTTPPort:                "0",
		TwitterAPIURL:           "http://127.0.0.1:1",
		TwitterTimeout:          time.Second,
		BreakerFailureThreshold: 3,
		BreakerCooldown:         time.Minute,
		ResolverEnabled:         true,
		ResolverInterval:        time.Second,
		FaucetEnabled:           true,
		FaucetAmount:            "250",
		EventBufferSize:         256,
		WSPingInterval:          time.Second,
		WSWriteTimeout:          time.Second,
		BookCacheTTL:            time.Second,
		StorageMode:             "console",
	}
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(wallet.HeaderAccount, alice.Hex())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    *config.Config
		logger *zap.Logger
		errMsg string
	}{
		{name: "nil-config", logger: zap.NewNop(), errMsg: "config cannot be nil"},
		{name: "nil-logger", cfg: testConfig(), errMsg: "logger cannot be nil"},
		{
			name:   "bad-faucet-amount",
			cfg:    func() *config.Config { c := testConfig(); c.FaucetAmount = "lots"; return c }(),
			logger: zap.NewNop(),
			errMsg: "parse faucet amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := New(tt.cfg, tt.logger, nil)
			require.Error(t, err)
			assert.Nil(t, a)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestResolverNeedsProvider(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(), zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	assert.Nil(t, a.tweetClient)
	assert.Nil(t, a.resolver)

	cfg := testConfig()
	cfg.TwitterAPIKey = "test-key"
	b, err := New(cfg, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Shutdown() })

	assert.NotNil(t, b.tweetClient)
	assert.NotNil(t, b.resolver)

	c, err := New(cfg, zaptest.NewLogger(t), &Options{DisableResolver: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown() })

	assert.NotNil(t, c.tweetClient)
	assert.Nil(t, c.resolver)
}

func TestEventsReachStorage(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a, err := New(testConfig(), zap.New(core), nil)
	require.NoError(t, err)

	a.Start()
	h := a.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	current := uint64(10)
	w = post(t, h, "/api/markets", httpserver.CreateMarketRequest{
		Tweet:        "77",
		Metric:       "views",
		Duration:     "6h",
		Multiplier:   4,
		CurrentValue: &current,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(t, h, "/api/accounts/"+alice.Hex()+"/faucet", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, a.Exchange().CollateralOf(alice).Eq(types.Collateral("250")))

	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())

	seen := map[string]int{}
	for _, entry := range logs.FilterMessage("engine-event").All() {
		eventType, _ := entry.ContextMap()["event-type"].(string)
		seen[eventType]++
	}
	assert.Equal(t, 1, seen[string(types.EventMarketCreated)])
	assert.Equal(t, 1, seen[string(types.EventCollateralMoved)])
	assert.Equal(t, 1, logs.FilterMessage("application-shutdown-complete").Len())
}

func TestCreateMarketThroughProvider(t *testing.T) {
	api := testutil.NewMockTwitterAPI("test-key", testutil.CreateTestTweet("1890", "jack", 40, 1000))
	t.Cleanup(api.Close)

	cfg := testConfig()
	cfg.TwitterAPIKey = "test-key"
	cfg.TwitterAPIURL = api.URL
	cfg.TweetCacheTTL = time.Minute

	a, err := New(cfg, zaptest.NewLogger(t), &Options{DisableResolver: true})
	require.NoError(t, err)
	a.Start()
	t.Cleanup(func() { _ = a.Shutdown() })

	h := a.Handler()
	for _, metric := range []string{"likes", "views"} {
		w := post(t, h, "/api/markets", httpserver.CreateMarketRequest{
			Tweet:      "https://x.com/jack/status/1890",
			Metric:     metric,
			Duration:   "1h",
			Multiplier: 2,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		a.readCache.Wait()
	}

	markets := a.Exchange().MarketsByTweet("1890")
	require.Len(t, markets, 2)
	values := map[types.Metric]uint64{}
	for _, m := range markets {
		values[m.Metric] = m.CurrentValue
		assert.Equal(t, "jack", m.AuthorHandle)
	}
	assert.Equal(t, uint64(40), values[types.MetricLikes])
	assert.Equal(t, uint64(1000), values[types.MetricViews])
	assert.Equal(t, 1, api.Requests(), "second market reuses the cached snapshot")
}
