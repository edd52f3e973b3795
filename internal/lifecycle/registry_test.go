package lifecycle

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/internal/ledger"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	creator = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	holder  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	start   = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
)

func newTestRegistry(t *testing.T) (*Registry, *ledger.Ledger) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	l := ledger.New(&ledger.Config{Logger: logger})
	r, err := New(&Config{Logger: logger, Ledger: l})
	require.NoError(t, err)
	return r, l
}

func params() *types.CreateMarketParams {
	return &types.CreateMarketParams{
		Creator:      creator,
		TweetURL:     "https://x.com/someone/status/1790000000000000001",
		TweetID:      "1790000000000000001",
		AuthorHandle: "someone",
		Metric:       types.MetricViews,
		Duration:     types.WindowHour6,
		Multiplier:   2,
		CurrentValue: 500_000,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	l := ledger.New(&ledger.Config{Logger: logger})

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{name: "valid-config", config: &Config{Logger: logger, Ledger: l}},
		{name: "nil-config", errMsg: "config cannot be nil"},
		{name: "nil-logger", config: &Config{Ledger: l}, errMsg: "logger cannot be nil"},
		{name: "nil-ledger", config: &Config{Logger: logger}, errMsg: "ledger cannot be nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.config)
			if tt.errMsg != "" {
				require.EqualError(t, err, tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	j := journal.New()

	assert.Equal(t, uint64(1), r.NextID())

	m, err := r.Create(j, params(), start)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), m.ID)
	assert.Equal(t, uint64(1_000_000), m.TargetValue)
	assert.Equal(t, start.Add(6*time.Hour), m.EndTime)
	assert.Equal(t, types.StatusPending, m.Status)
	assert.Equal(t, uint64(2), m.YesTokenID)
	assert.Equal(t, uint64(3), m.NoTokenID)
	assert.Equal(t, uint64(2), r.NextID())

	other := params()
	other.Multiplier = 3
	m2, err := r.Create(j, other, start)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m2.ID)

	byTweet := r.ByTweet(other.TweetID)
	require.Len(t, byTweet, 2)
	assert.Equal(t, uint64(2), byTweet[0].ID, "most recent market first")

	events := j.Commit()
	require.Len(t, events, 2)
	assert.Equal(t, types.EventMarketCreated, events[0].Type)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	j := journal.New()

	_, err := r.Create(j, params(), start)
	require.NoError(t, err)

	_, err = r.Create(j, params(), start.Add(time.Minute))
	require.ErrorIs(t, err, types.ErrMarketExists)
	assert.Contains(t, err.Error(), "market already exists")
	assert.Equal(t, types.KindDuplicate, types.KindOf(err))
	assert.Equal(t, uint64(2), r.NextID())
}

func TestCreateRollback(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	j := journal.New()

	_, err := r.Create(j, params(), start)
	require.NoError(t, err)
	j.Rollback()

	assert.Equal(t, uint64(1), r.NextID())
	assert.Empty(t, r.List())
	assert.Empty(t, r.ByTweet(params().TweetID))

	_, err = r.Create(j, params(), start)
	require.NoError(t, err, "rolled back market must not count as duplicate")
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		finalValue uint64
		want       types.MarketStatus
	}{
		{name: "above-target", finalValue: 1_500_000, want: types.StatusResolvedYes},
		{name: "exactly-target", finalValue: 1_000_000, want: types.StatusResolvedYes},
		{name: "below-target", finalValue: 999_999, want: types.StatusResolvedNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, _ := newTestRegistry(t)
			j := journal.New()
			m, err := r.Create(j, params(), start)
			require.NoError(t, err)

			_, err = r.Resolve(j, m.ID, tt.finalValue, m.EndTime)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Status)
			assert.Equal(t, tt.finalValue, m.FinalValue)
			assert.Equal(t, m.EndTime, m.ResolvedAt)
		})
	}
}

func TestResolveGuards(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	j := journal.New()
	m, err := r.Create(j, params(), start)
	require.NoError(t, err)

	_, err = r.Resolve(j, m.ID, 1, m.EndTime.Add(-time.Second))
	assert.ErrorIs(t, err, types.ErrTooEarly)
	assert.Equal(t, types.KindState, types.KindOf(err))

	_, err = r.Invalidate(j, m.ID, "oracle timeout", m.EndTime.Add(-time.Second))
	assert.ErrorIs(t, err, types.ErrTooEarly)

	_, err = r.Resolve(j, 42, 1, m.EndTime)
	assert.ErrorIs(t, err, types.ErrMarketNotFound)

	_, err = r.Resolve(j, m.ID, 2_000_000, m.EndTime)
	require.NoError(t, err)

	_, err = r.Resolve(j, m.ID, 0, m.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, types.ErrAlreadyResolved)
	assert.Equal(t, types.StatusResolvedYes, m.Status)

	_, err = r.Invalidate(j, m.ID, "late", m.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, types.ErrAlreadyResolved)
}

func TestResolveRollback(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	setup := journal.New()
	m, err := r.Create(setup, params(), start)
	require.NoError(t, err)
	setup.Commit()

	j := journal.New()
	_, err = r.Invalidate(j, m.ID, "oracle timeout", m.EndTime)
	require.NoError(t, err)
	assert.Equal(t, "oracle timeout", m.InvalidNote)
	j.Rollback()

	assert.Equal(t, types.StatusPending, m.Status)
	assert.True(t, m.ResolvedAt.IsZero())
	assert.Len(t, r.Expired(m.EndTime), 1)
	assert.Empty(t, r.Expired(m.EndTime.Add(-time.Nanosecond)))
}

func TestRedeem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		finalValue uint64
		invalidate bool
		outcome    types.Outcome
		wantPayout types.Amount
	}{
		{name: "yes-wins-yes-holder", finalValue: 1_500_000, outcome: types.OutcomeYes, wantPayout: types.Collateral("4")},
		{name: "yes-wins-no-holder", finalValue: 1_500_000, outcome: types.OutcomeNo, wantPayout: types.Amount{}},
		{name: "no-wins-no-holder", finalValue: 10, outcome: types.OutcomeNo, wantPayout: types.Collateral("4")},
		{name: "invalid-yes-holder", invalidate: true, outcome: types.OutcomeYes, wantPayout: types.Collateral("2")},
		{name: "invalid-no-holder", invalidate: true, outcome: types.OutcomeNo, wantPayout: types.Collateral("2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, l := newTestRegistry(t)
			j := journal.New()
			m, err := r.Create(j, params(), start)
			require.NoError(t, err)

			cost := types.Collateral("4")
			require.NoError(t, l.Deposit(j, holder, cost))
			require.NoError(t, l.DepositToVault(j, m.ID, holder, cost))
			require.NoError(t, l.Mint(j, holder, m.ID, types.OutcomeYes, types.Shares("4")))
			require.NoError(t, l.Mint(j, holder, m.ID, types.OutcomeNo, types.Shares("4")))

			_, err = r.Redeem(j, holder, m.ID, tt.outcome)
			require.ErrorIs(t, err, types.ErrNotResolved)

			if tt.invalidate {
				_, err = r.Invalidate(j, m.ID, "oracle timeout", m.EndTime)
			} else {
				_, err = r.Resolve(j, m.ID, tt.finalValue, m.EndTime)
			}
			require.NoError(t, err)

			res, err := r.Redeem(j, holder, m.ID, tt.outcome)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPayout, res.Payout)
			assert.Equal(t, types.Shares("4"), res.Shares)
			assert.Equal(t, tt.wantPayout, l.CollateralOf(holder))
			assert.True(t, l.BalanceOf(holder, m.ID, tt.outcome).IsZero())
			require.NoError(t, l.CheckSolvency(m.ID, m.Status))

			_, err = r.Redeem(j, holder, m.ID, tt.outcome)
			assert.ErrorIs(t, err, types.ErrAlreadyRedeemed)
		})
	}
}

func TestRedeemNeverHeld(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t)
	j := journal.New()
	m, err := r.Create(j, params(), start)
	require.NoError(t, err)
	_, err = r.Resolve(j, m.ID, 0, m.EndTime)
	require.NoError(t, err)

	_, err = r.Redeem(j, holder, m.ID, types.OutcomeNo)
	assert.ErrorIs(t, err, types.ErrNotHolder)
	assert.Equal(t, types.KindAuthorization, types.KindOf(err))
}
