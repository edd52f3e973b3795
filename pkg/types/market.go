package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome is one side of a binary market.
type Outcome string

// Outcomes.
const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// ParseOutcome accepts YES/NO in any case.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "TRUE":
		return OutcomeYes, nil
	case "NO", "FALSE":
		return OutcomeNo, nil
	default:
		return "", Errorf(ErrInvalidArgument, "unknown outcome %q", s)
	}
}

// Valid reports whether o is YES or NO.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Complement returns the other outcome.
func (o Outcome) Complement() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// IsYes reports whether o is YES.
func (o Outcome) IsYes() bool {
	return o == OutcomeYes
}

// Side is the direction of an order.
type Side string

// Sides.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts BUY/SELL in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", Errorf(ErrInvalidArgument, "unknown side %q", s)
	}
}

// Valid reports whether s is BUY or SELL.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// IsBuy reports whether s is BUY.
func (s Side) IsBuy() bool {
	return s == SideBuy
}

// Metric is the tweet counter a market wagers on.
type Metric string

// Metrics.
const (
	MetricViews    Metric = "VIEWS"
	MetricLikes    Metric = "LIKES"
	MetricRetweets Metric = "RETWEETS"
	MetricComments Metric = "COMMENTS"
)

// ParseMetric accepts metric names in any case; "replies" is an alias of COMMENTS.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "VIEWS":
		return MetricViews, nil
	case "LIKES":
		return MetricLikes, nil
	case "RETWEETS":
		return MetricRetweets, nil
	case "COMMENTS", "REPLIES":
		return MetricComments, nil
	default:
		return "", Errorf(ErrInvalidMarket, "unknown metric %q", s)
	}
}

// Window is one of the fixed market durations.
type Window string

// Windows.
const (
	WindowHour1  Window = "HOUR_1"
	WindowHour6  Window = "HOUR_6"
	WindowHour12 Window = "HOUR_12"
	WindowDay1   Window = "DAY_1"
)

// ParseWindow accepts the enum names and the short forms 1h, 6h, 12h, 24h.
func ParseWindow(s string) (Window, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HOUR_1", "1H":
		return WindowHour1, nil
	case "HOUR_6", "6H":
		return WindowHour6, nil
	case "HOUR_12", "12H":
		return WindowHour12, nil
	case "DAY_1", "24H", "1D":
		return WindowDay1, nil
	default:
		return "", Errorf(ErrInvalidMarket, "unknown duration %q", s)
	}
}

// Period returns the wall-clock length of the window, or zero if unknown.
func (w Window) Period() time.Duration {
	switch w {
	case WindowHour1:
		return time.Hour
	case WindowHour6:
		return 6 * time.Hour
	case WindowHour12:
		return 12 * time.Hour
	case WindowDay1:
		return 24 * time.Hour
	default:
		return 0
	}
}

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

// Statuses. PENDING is the only non-terminal one.
const (
	StatusPending         MarketStatus = "PENDING"
	StatusResolvedYes     MarketStatus = "RESOLVED_YES"
	StatusResolvedNo      MarketStatus = "RESOLVED_NO"
	StatusResolvedInvalid MarketStatus = "RESOLVED_INVALID"
)

// Terminal reports whether the status is one of the resolved states.
func (s MarketStatus) Terminal() bool {
	return s == StatusResolvedYes || s == StatusResolvedNo || s == StatusResolvedInvalid
}

// PayoutRate returns the collateral paid per whole share of outcome o.
// Pending markets pay nothing.
func (s MarketStatus) PayoutRate(o Outcome) Amount {
	switch s {
	case StatusResolvedYes:
		if o == OutcomeYes {
			return OneCollateral
		}
	case StatusResolvedNo:
		if o == OutcomeNo {
			return OneCollateral
		}
	case StatusResolvedInvalid:
		return HalfCollateral
	case StatusPending:
	}
	return Amount{}
}

// Tweet is the snapshot of a tweet taken when a market is created.
type Tweet struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	AuthorHandle string    `json:"author_handle"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	QuotedTweet  *Tweet    `json:"quoted_tweet,omitempty"`
	Views        uint64    `json:"views"`
	Likes        uint64    `json:"likes"`
	Retweets     uint64    `json:"retweets"`
	Replies      uint64    `json:"replies"`
	Quotes       uint64    `json:"quotes"`
	Bookmarks    uint64    `json:"bookmarks"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// MetricValue returns the counter the metric refers to.
func (t *Tweet) MetricValue(m Metric) (uint64, error) {
	switch m {
	case MetricViews:
		return t.Views, nil
	case MetricLikes:
		return t.Likes, nil
	case MetricRetweets:
		return t.Retweets, nil
	case MetricComments:
		return t.Replies, nil
	default:
		return 0, Errorf(ErrInvalidMarket, "unknown metric %q", m)
	}
}

// Market is a binary-outcome market on a tweet metric.
type Market struct {
	ID           uint64         `json:"id"`
	TweetURL     string         `json:"tweet_url"`
	TweetID      string         `json:"tweet_id"`
	AuthorHandle string         `json:"author_handle"`
	Creator      common.Address `json:"creator"`
	Metric       Metric         `json:"metric"`
	Duration     Window         `json:"duration"`
	Multiplier   uint64         `json:"multiplier"`
	CurrentValue uint64         `json:"current_value"`
	TargetValue  uint64         `json:"target_value"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Status       MarketStatus   `json:"status"`
	FinalValue   uint64         `json:"final_value,omitempty"`
	ResolvedAt   time.Time      `json:"resolved_at,omitempty"`
	InvalidNote  string         `json:"invalid_reason,omitempty"`
	YesTokenID   uint64         `json:"yes_token_id"`
	NoTokenID    uint64         `json:"no_token_id"`
	Tweet        *Tweet         `json:"tweet,omitempty"`
}

// TokenID returns the share token id of the given outcome.
func (m *Market) TokenID(o Outcome) uint64 {
	if o == OutcomeYes {
		return m.YesTokenID
	}
	return m.NoTokenID
}

// TradingOpen reports whether new orders are accepted at now.
func (m *Market) TradingOpen(now time.Time) bool {
	return m.Status == StatusPending && now.Before(m.EndTime)
}

// Key returns the duplicate-detection key of the market.
func (m *Market) Key() MarketKey {
	return MarketKey{TweetID: m.TweetID, Metric: m.Metric, Duration: m.Duration, Multiplier: m.Multiplier}
}

// MarketKey identifies markets that would be duplicates of each other.
type MarketKey struct {
	TweetID    string
	Metric     Metric
	Duration   Window
	Multiplier uint64
}

func (k MarketKey) String() string {
	return fmt.Sprintf("%s/%s/%s/x%d", k.TweetID, k.Metric, k.Duration, k.Multiplier)
}

// TokenIDs returns the YES and NO share token ids for a market id.
func TokenIDs(marketID uint64) (yes, no uint64) {
	return 2 * marketID, 2*marketID + 1
}

// CreateMarketParams are the inputs to market creation.
type CreateMarketParams struct {
	Creator      common.Address `json:"creator"`
	TweetURL     string         `json:"tweet_url"`
	TweetID      string         `json:"tweet_id"`
	AuthorHandle string         `json:"author_handle"`
	Metric       Metric         `json:"metric"`
	Duration     Window         `json:"duration"`
	Multiplier   uint64         `json:"multiplier"`
	CurrentValue uint64         `json:"current_value"`
	Tweet        *Tweet         `json:"tweet,omitempty"`
}

// Validate checks the parameters independent of engine state.
func (p *CreateMarketParams) Validate() error {
	if strings.TrimSpace(p.TweetID) == "" {
		return Errorf(ErrInvalidMarket, "tweet id is required")
	}
	switch p.Metric {
	case MetricViews, MetricLikes, MetricRetweets, MetricComments:
	default:
		return Errorf(ErrInvalidMarket, "unknown metric %q", p.Metric)
	}
	if p.Duration.Period() <= 0 {
		return Errorf(ErrInvalidMarket, "unknown duration %q", p.Duration)
	}
	if p.Multiplier == 0 {
		return Errorf(ErrInvalidMarket, "multiplier must be positive")
	}
	if p.CurrentValue != 0 && p.Multiplier > ^uint64(0)/p.CurrentValue {
		return Errorf(ErrInvalidMarket, "target value overflows")
	}
	return nil
}
