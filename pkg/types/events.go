package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventVersion is the schema version stamped on every event.
const EventVersion = 1

// EventType names a domain event.
type EventType string

// Event types.
const (
	EventMarketCreated   EventType = "MarketCreated"
	EventMarketResolved  EventType = "MarketResolved"
	EventOrderPlaced     EventType = "OrderPlaced"
	EventOrderCancelled  EventType = "OrderCancelled"
	EventTradeExecuted   EventType = "TradeExecuted"
	EventTransferSingle  EventType = "TransferSingle"
	EventRedeemed        EventType = "Redeemed"
	EventCollateralMoved EventType = "CollateralMoved"
)

//nolint:gochecknoglobals // well-known addresses
var (
	// ZeroAddress is the from of a mint and the to of a burn.
	ZeroAddress = common.Address{}

	// EscrowAddress holds shares locked by resting SELL orders and the
	// collateral of resting BUY orders.
	EscrowAddress = common.HexToAddress("0x00000000000000000000000000000000000e5c70")

	// VaultAddress holds the collateral backing outstanding complete sets.
	VaultAddress = common.HexToAddress("0x000000000000000000000000000000000000a017")
)

// Event is the versioned envelope of a domain event. ID and Sequence are
// assigned when the producing call commits.
type Event struct {
	ID       string    `json:"id"`
	Version  int       `json:"version"`
	Sequence uint64    `json:"sequence"`
	Type     EventType `json:"type"`
	MarketID uint64    `json:"market_id"`
	Time     time.Time `json:"time"`
	Payload  any       `json:"payload"`
}

// MarketCreatedPayload carries the new market.
type MarketCreatedPayload struct {
	Market Market `json:"market"`
}

// MarketResolvedPayload carries the terminal status.
type MarketResolvedPayload struct {
	MarketID   uint64       `json:"market_id"`
	Status     MarketStatus `json:"status"`
	FinalValue uint64       `json:"final_value"`
	Reason     string       `json:"reason,omitempty"`
}

// OrderPlacedPayload carries the order as accepted, before matching.
type OrderPlacedPayload struct {
	Order Order `json:"order"`
}

// Cancellation reasons.
const (
	CancelByMaker      = "maker"
	CancelByResolution = "resolution"
)

// OrderCancelledPayload describes a cancellation and the escrow it released.
type OrderCancelledPayload struct {
	OrderID  uint64         `json:"order_id"`
	Maker    common.Address `json:"maker"`
	Side     Side           `json:"side"`
	Outcome  Outcome        `json:"outcome"`
	Released Amount         `json:"released"`
	Reason   string         `json:"reason"`
}

// TransferSinglePayload mirrors the ERC-1155 TransferSingle event.
type TransferSinglePayload struct {
	Operator common.Address `json:"operator"`
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	TokenID  uint64         `json:"token_id"`
	Amount   Amount         `json:"amount"`
}

// RedeemedPayload describes a redemption.
type RedeemedPayload struct {
	Account common.Address `json:"account"`
	Outcome Outcome        `json:"outcome"`
	Shares  Amount         `json:"shares"`
	Payout  Amount         `json:"payout"`
}

// CollateralMovedPayload describes a collateral balance change.
type CollateralMovedPayload struct {
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount Amount         `json:"amount"`
	Reason string         `json:"reason"`
}
