package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Liquidity tells whether a trade side was the resting or the incoming order.
type Liquidity string

// Liquidity roles.
const (
	LiquidityMaker Liquidity = "MAKER"
	LiquidityTaker Liquidity = "TAKER"
)

// FillKind is how a fill was settled.
type FillKind string

// Fill kinds.
const (
	// FillTransfer moves existing shares from seller to buyer.
	FillTransfer FillKind = "TRANSFER"
	// FillMint pairs a YES buyer with a NO buyer and mints a complete set.
	FillMint FillKind = "MINT"
)

// Trade is one side of a fill. Every fill produces two trades sharing FillID.
type Trade struct {
	FillID        uint64         `json:"fill_id"`
	MarketID      uint64         `json:"market_id"`
	OrderID       uint64         `json:"order_id"`
	Trader        common.Address `json:"trader"`
	Outcome       Outcome        `json:"outcome"`
	Side          Side           `json:"side"`
	Shares        Amount         `json:"shares"`
	PricePerShare Amount         `json:"price_per_share"`
	TotalCost     Amount         `json:"total_cost"`
	Liquidity     Liquidity      `json:"liquidity"`
	Kind          FillKind       `json:"kind"`
	Timestamp     time.Time      `json:"timestamp"`
}

// IsYesShare mirrors the TradeExecuted event field.
func (t *Trade) IsYesShare() bool {
	return t.Outcome == OutcomeYes
}

// IsBuy mirrors the TradeExecuted event field.
func (t *Trade) IsBuy() bool {
	return t.Side == SideBuy
}

// Position is an account's holding in one outcome of one market.
type Position struct {
	MarketID uint64  `json:"market_id"`
	Outcome  Outcome `json:"outcome"`
	TokenID  uint64  `json:"token_id"`
	Shares   Amount  `json:"shares"`
	Locked   Amount  `json:"locked"`
	Redeemed bool    `json:"redeemed"`
}

// AccountBalances is the full balance view of an account.
type AccountBalances struct {
	Account          common.Address `json:"account"`
	Collateral       Amount         `json:"collateral"`
	LockedCollateral Amount         `json:"locked_collateral"`
	Positions        []Position     `json:"positions"`
}

// RedeemResult is the outcome of a redemption.
type RedeemResult struct {
	MarketID uint64       `json:"market_id"`
	Outcome  Outcome      `json:"outcome"`
	Status   MarketStatus `json:"status"`
	Shares   Amount       `json:"shares"`
	Payout   Amount       `json:"payout"`
}

// DepthLevel is the aggregated resting quantity at one price.
type DepthLevel struct {
	Price  Amount `json:"price"`
	Shares Amount `json:"shares"`
	Orders int    `json:"orders"`
}

// Depth is the aggregated book of one (market, outcome).
type Depth struct {
	MarketID uint64       `json:"market_id"`
	Outcome  Outcome      `json:"outcome"`
	Bids     []DepthLevel `json:"bids"`
	Asks     []DepthLevel `json:"asks"`
}
