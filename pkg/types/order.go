package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Order is a limit order. Shares and Filled are in share base units (18
// decimals), Price in collateral base units per whole share (6 decimals).
type Order struct {
	ID        uint64         `json:"id"`
	MarketID  uint64         `json:"market_id"`
	Maker     common.Address `json:"maker"`
	Side      Side           `json:"side"`
	Outcome   Outcome        `json:"outcome"`
	Shares    Amount         `json:"shares"`
	Price     Amount         `json:"price"`
	Filled    Amount         `json:"filled"`
	Cancelled bool           `json:"cancelled"`
	Timestamp time.Time      `json:"timestamp"`
	Seq       uint64         `json:"seq"`
	IsActive  bool           `json:"is_active"` // populated on snapshots
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() Amount {
	r, ok := o.Shares.Sub(o.Filled)
	if !ok {
		return Amount{}
	}
	return r
}

// Active reports whether the order can still trade.
func (o *Order) Active() bool {
	return !o.Cancelled && o.Filled.Lt(o.Shares)
}

// Escrow returns what the order currently has locked: collateral for a BUY,
// shares for a SELL.
func (o *Order) Escrow() Amount {
	if !o.Active() {
		return Amount{}
	}
	if o.Side == SideBuy {
		return Cost(o.Remaining(), o.Price)
	}
	return o.Remaining()
}

// Snapshot returns a detached copy with IsActive populated.
func (o *Order) Snapshot() Order {
	c := *o
	c.IsActive = o.Active()
	return c
}

// PlaceOrderRequest is the input to limit order placement.
type PlaceOrderRequest struct {
	Maker    common.Address `json:"maker"`
	MarketID uint64         `json:"market_id"`
	Side     Side           `json:"side"`
	Outcome  Outcome        `json:"outcome"`
	Shares   Amount         `json:"shares"`
	Price    Amount         `json:"price"`
}

// Validate checks the request independent of market state.
func (r *PlaceOrderRequest) Validate() error {
	if !r.Side.Valid() {
		return Errorf(ErrInvalidArgument, "unknown side %q", r.Side)
	}
	if !r.Outcome.Valid() {
		return Errorf(ErrInvalidArgument, "unknown outcome %q", r.Outcome)
	}
	if err := ValidateShares(r.Shares); err != nil {
		return err
	}
	return ValidatePrice(r.Price)
}

// PlaceResult describes what happened to a placed order.
type PlaceResult struct {
	OrderID uint64  `json:"order_id"`
	Order   Order   `json:"order"`
	Trades  []Trade `json:"trades"`
	Resting bool    `json:"resting"`
}

// ValidatePrice enforces 0 < price < 1 on the price tick.
func ValidatePrice(price Amount) error {
	if price.IsZero() || !price.Lt(OneCollateral) {
		return Errorf(ErrInvalidPrice, "price %s outside (0, 1)", price.FormatUnits(CollateralDecimals))
	}
	if !price.IsMultipleOf(PriceTick) {
		return Errorf(ErrInvalidPrice, "price %s is not a multiple of 0.01", price.FormatUnits(CollateralDecimals))
	}
	return nil
}

// ValidateShares enforces a positive share quantity on the share tick.
func ValidateShares(shares Amount) error {
	if shares.IsZero() {
		return Errorf(ErrInvalidShares, "shares must be positive")
	}
	if !shares.IsMultipleOf(ShareTick) {
		return Errorf(ErrInvalidShares, "shares %s is not a multiple of 0.01", shares.FormatUnits(ShareDecimals))
	}
	if shares.Gt(MaxShares) {
		return Errorf(ErrInvalidShares, "shares %s exceeds maximum", shares.FormatUnits(ShareDecimals))
	}
	return nil
}

// MaxShares bounds a single order or position change (1e30 whole shares).
//
//nolint:gochecknoglobals // fixed-point constant
var MaxShares = MustParseAmount("1000000000000000000000000000000000000000000000000")
