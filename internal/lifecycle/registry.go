// Package lifecycle owns the market registry: creation, resolution to a
// terminal status and redemption of resolved positions.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/internal/ledger"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// Registry stores markets in creation order. Market ids start at 1 and are
// never reused. Registry is not safe for concurrent use.
type Registry struct {
	logger *zap.Logger
	ledger *ledger.Ledger

	markets map[uint64]*types.Market
	byKey   map[types.MarketKey]uint64
	byTweet map[string][]uint64
	nextID  uint64
}

// Config holds registry configuration.
type Config struct {
	Logger *zap.Logger
	Ledger *ledger.Ledger
}

// New creates an empty market registry.
func New(cfg *Config) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	return &Registry{
		logger:  cfg.Logger,
		ledger:  cfg.Ledger,
		markets: make(map[uint64]*types.Market),
		byKey:   make(map[types.MarketKey]uint64),
		byTweet: make(map[string][]uint64),
		nextID:  1,
	}, nil
}

// NextID returns the id the next market will receive.
func (r *Registry) NextID() uint64 {
	return r.nextID
}

// Get returns the stored market.
func (r *Registry) Get(id uint64) (*types.Market, error) {
	m, ok := r.markets[id]
	if !ok {
		return nil, types.Errorf(types.ErrMarketNotFound, "market %d", id)
	}
	return m, nil
}

// List returns copies of all markets, oldest first.
func (r *Registry) List() []types.Market {
	out := make([]types.Market, 0, len(r.markets))
	for id := uint64(1); id < r.nextID; id++ {
		if m, ok := r.markets[id]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// ByTweet returns copies of the markets created on a tweet, newest first.
func (r *Registry) ByTweet(tweetID string) []types.Market {
	ids := r.byTweet[tweetID]
	out := make([]types.Market, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, *r.markets[ids[i]])
	}
	return out
}

// Expired returns copies of pending markets whose window ended at or before now.
func (r *Registry) Expired(now time.Time) []types.Market {
	out := make([]types.Market, 0)
	for _, m := range r.markets {
		if m.Status == types.StatusPending && !now.Before(m.EndTime) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Create registers a new pending market. A market with the same tweet,
// metric, duration and multiplier is rejected.
func (r *Registry) Create(j *journal.Journal, params *types.CreateMarketParams, now time.Time) (*types.Market, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	key := types.MarketKey{
		TweetID:    params.TweetID,
		Metric:     params.Metric,
		Duration:   params.Duration,
		Multiplier: params.Multiplier,
	}
	if existing, ok := r.byKey[key]; ok {
		return nil, types.Errorf(types.ErrMarketExists, "market already exists (id %d)", existing)
	}

	id := r.nextID
	yes, no := types.TokenIDs(id)
	market := &types.Market{
		ID:           id,
		TweetURL:     params.TweetURL,
		TweetID:      params.TweetID,
		AuthorHandle: params.AuthorHandle,
		Creator:      params.Creator,
		Metric:       params.Metric,
		Duration:     params.Duration,
		Multiplier:   params.Multiplier,
		CurrentValue: params.CurrentValue,
		TargetValue:  params.CurrentValue * params.Multiplier,
		StartTime:    now,
		EndTime:      now.Add(params.Duration.Period()),
		Status:       types.StatusPending,
		YesTokenID:   yes,
		NoTokenID:    no,
		Tweet:        params.Tweet,
	}

	r.nextID++
	r.markets[id] = market
	r.byKey[key] = id
	r.byTweet[params.TweetID] = append(r.byTweet[params.TweetID], id)
	j.Record(func() {
		r.nextID = id
		delete(r.markets, id)
		delete(r.byKey, key)
		r.byTweet[params.TweetID] = r.byTweet[params.TweetID][:len(r.byTweet[params.TweetID])-1]
		if len(r.byTweet[params.TweetID]) == 0 {
			delete(r.byTweet, params.TweetID)
		}
	})

	j.Emit(types.EventMarketCreated, id, types.MarketCreatedPayload{Market: *market})
	j.OnCommit(MarketsCreatedTotal.WithLabelValues(string(market.Metric)).Inc)
	return market, nil
}

// Resolve settles a market from the final metric value: YES when it reached
// the target, NO otherwise. Only allowed once and only after the window ends.
func (r *Registry) Resolve(j *journal.Journal, id, finalValue uint64, now time.Time) (*types.Market, error) {
	market, err := r.terminable(id, now)
	if err != nil {
		return nil, err
	}

	status := types.StatusResolvedNo
	if finalValue >= market.TargetValue {
		status = types.StatusResolvedYes
	}
	r.setTerminal(j, market, status, finalValue, "", now)
	return market, nil
}

// Invalidate settles a market as RESOLVED_INVALID; both outcomes redeem at half value.
func (r *Registry) Invalidate(j *journal.Journal, id uint64, reason string, now time.Time) (*types.Market, error) {
	market, err := r.terminable(id, now)
	if err != nil {
		return nil, err
	}
	r.setTerminal(j, market, types.StatusResolvedInvalid, 0, reason, now)
	return market, nil
}

func (r *Registry) terminable(id uint64, now time.Time) (*types.Market, error) {
	market, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if market.Status.Terminal() {
		return nil, types.Errorf(types.ErrAlreadyResolved, "market %d is %s", id, market.Status)
	}
	if now.Before(market.EndTime) {
		return nil, types.Errorf(types.ErrTooEarly, "market %d ends at %s", id, market.EndTime.Format(time.RFC3339))
	}
	return market, nil
}

func (r *Registry) setTerminal(j *journal.Journal, market *types.Market, status types.MarketStatus, finalValue uint64, reason string, now time.Time) {
	prev := *market
	market.Status = status
	market.FinalValue = finalValue
	market.ResolvedAt = now
	market.InvalidNote = reason
	j.Record(func() { *market = prev })

	j.Emit(types.EventMarketResolved, market.ID, types.MarketResolvedPayload{
		MarketID:   market.ID,
		Status:     status,
		FinalValue: finalValue,
		Reason:     reason,
	})
	j.OnCommit(MarketsResolvedTotal.WithLabelValues(string(status)).Inc)
}

// Redeem burns the account's shares of one outcome of a resolved market and
// pays their settlement value out of the market vault.
func (r *Registry) Redeem(j *journal.Journal, account common.Address, id uint64, outcome types.Outcome) (types.RedeemResult, error) {
	market, err := r.Get(id)
	if err != nil {
		return types.RedeemResult{}, err
	}
	if !market.Status.Terminal() {
		return types.RedeemResult{}, types.Errorf(types.ErrNotResolved, "market %d is pending", id)
	}
	if r.ledger.Redeemed(account, id, outcome) {
		return types.RedeemResult{}, types.Errorf(types.ErrAlreadyRedeemed, "%s already redeemed %s", account.Hex(), outcome)
	}
	if !r.ledger.HasHeld(account, id, outcome) {
		return types.RedeemResult{}, types.Errorf(types.ErrNotHolder, "%s never held %s", account.Hex(), outcome)
	}

	shares := r.ledger.BalanceOf(account, id, outcome)
	if shares.IsZero() {
		return types.RedeemResult{}, types.Errorf(types.ErrNothingToRedeem, "%s holds no %s shares", account.Hex(), outcome)
	}

	payout := types.Cost(shares, market.Status.PayoutRate(outcome))
	if err = r.ledger.Burn(j, account, id, outcome, shares); err != nil {
		return types.RedeemResult{}, err
	}
	if err = r.ledger.PayFromVault(j, id, account, payout, "redeem"); err != nil {
		return types.RedeemResult{}, err
	}
	r.ledger.MarkRedeemed(j, account, id, outcome)

	j.Emit(types.EventRedeemed, id, types.RedeemedPayload{
		Account: account,
		Outcome: outcome,
		Shares:  shares,
		Payout:  payout,
	})

	return types.RedeemResult{
		MarketID: id,
		Outcome:  outcome,
		Status:   market.Status,
		Shares:   shares,
		Payout:   payout,
	}, nil
}
