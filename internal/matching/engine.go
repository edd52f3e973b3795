// Package matching crosses incoming orders against resting liquidity and
// settles every fill through the ledger.
package matching

import (
	"fmt"
	"time"

	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/internal/ledger"
	"github.com/mselser95/bangr-engine/internal/orderbook"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// Engine matches taker orders. It is not safe for concurrent use.
type Engine struct {
	logger     *zap.Logger
	ledger     *ledger.Ledger
	book       *orderbook.Registry
	nextFillID uint64
}

// Config holds engine configuration.
type Config struct {
	Logger *zap.Logger
	Ledger *ledger.Ledger
	Book   *orderbook.Registry
}

// New creates a matching engine.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg.Book == nil {
		return nil, fmt.Errorf("order book cannot be nil")
	}
	return &Engine{
		logger:     cfg.Logger,
		ledger:     cfg.Ledger,
		book:       cfg.Book,
		nextFillID: 1,
	}, nil
}

// candidate is a resting order the taker can trade with.
type candidate struct {
	order *types.Order
	kind  types.FillKind
	// price is what the taker pays (BUY) or receives (SELL) per share.
	price types.Amount
}

// Match crosses the taker against the book until it is filled or nothing
// crosses any more. The taker's escrow must already be locked. Fills are
// executed at the resting order's price.
func (e *Engine) Match(j *journal.Journal, taker *types.Order, now time.Time) ([]types.Trade, error) {
	trades := make([]types.Trade, 0)

	for taker.Active() {
		c, ok := e.bestCandidate(taker)
		if !ok {
			break
		}

		qty := types.MinAmount(taker.Remaining(), c.order.Remaining())
		fillID := e.takeFillID(j)

		var (
			fillTrades []types.Trade
			err        error
		)
		switch c.kind {
		case types.FillMint:
			fillTrades, err = e.settleMint(j, fillID, taker, c.order, qty, now)
		default:
			fillTrades, err = e.settleTransfer(j, fillID, taker, c.order, qty, now)
		}
		if err != nil {
			return nil, fmt.Errorf("settle fill %d: %w", fillID, err)
		}

		e.book.Fill(j, taker, qty)
		e.book.Fill(j, c.order, qty)

		for i := range fillTrades {
			j.Emit(types.EventTradeExecuted, taker.MarketID, fillTrades[i])
		}
		trades = append(trades, fillTrades...)

		j.OnCommit(FillsTotal.WithLabelValues(string(c.kind)).Inc)
		e.logger.Debug("order-filled",
			zap.Uint64("fill-id", fillID),
			zap.Uint64("taker-order-id", taker.ID),
			zap.Uint64("maker-order-id", c.order.ID),
			zap.String("kind", string(c.kind)),
			zap.String("shares", qty.FormatUnits(types.ShareDecimals)),
			zap.String("price", c.price.FormatUnits(types.CollateralDecimals)))
	}

	return trades, nil
}

// bestCandidate picks the resting order that gives the taker the best price.
// A BUY taker sees both same-outcome asks and complementary bids (which mint
// a new pair); ties go to the earlier order. A SELL taker sees only
// same-outcome bids.
func (e *Engine) bestCandidate(taker *types.Order) (candidate, bool) {
	if taker.Side == types.SideSell {
		bid := e.book.Best(taker.MarketID, taker.Outcome, types.SideBuy)
		if bid == nil || bid.Price.Lt(taker.Price) {
			return candidate{}, false
		}
		return candidate{order: bid, kind: types.FillTransfer, price: bid.Price}, true
	}

	var best candidate
	found := false

	if ask := e.book.Best(taker.MarketID, taker.Outcome, types.SideSell); ask != nil && !ask.Price.Gt(taker.Price) {
		best = candidate{order: ask, kind: types.FillTransfer, price: ask.Price}
		found = true
	}

	if bid := e.book.Best(taker.MarketID, taker.Outcome.Complement(), types.SideBuy); bid != nil {
		effective := types.ComplementPrice(bid.Price)
		if !effective.Gt(taker.Price) {
			c := candidate{order: bid, kind: types.FillMint, price: effective}
			if !found || c.price.Lt(best.price) || (c.price.Eq(best.price) && c.order.Seq < best.order.Seq) {
				best = c
				found = true
			}
		}
	}

	return best, found
}

// settleTransfer moves escrowed shares from the seller to the buyer and
// escrowed collateral from the buyer to the seller.
func (e *Engine) settleTransfer(j *journal.Journal, fillID uint64, taker, maker *types.Order, qty types.Amount, now time.Time) ([]types.Trade, error) {
	buyer, seller := taker, maker
	if taker.Side == types.SideSell {
		buyer, seller = maker, taker
	}

	price := maker.Price
	cost := types.Cost(qty, price)
	marketID := taker.MarketID

	if err := e.ledger.SpendCollateral(j, marketID, buyer.Maker, seller.Maker, cost); err != nil {
		return nil, err
	}
	if err := e.refundImprovement(j, taker, qty, cost); err != nil {
		return nil, err
	}
	if err := e.ledger.SpendShares(j, seller.Maker, buyer.Maker, marketID, taker.Outcome, qty); err != nil {
		return nil, err
	}

	return []types.Trade{
		newTrade(fillID, taker, qty, price, cost, types.LiquidityTaker, types.FillTransfer, now),
		newTrade(fillID, maker, qty, price, cost, types.LiquidityMaker, types.FillTransfer, now),
	}, nil
}

// settleMint pairs a BUY taker with a resting BUY of the other outcome. The
// maker pays its own price, the taker pays the complement, the full unit of
// collateral goes to the vault and one share of each outcome is minted.
func (e *Engine) settleMint(j *journal.Journal, fillID uint64, taker, maker *types.Order, qty types.Amount, now time.Time) ([]types.Trade, error) {
	marketID := taker.MarketID
	makerPrice := maker.Price
	takerPrice := types.ComplementPrice(makerPrice)
	makerCost := types.Cost(qty, makerPrice)
	takerCost := types.Cost(qty, takerPrice)

	if err := e.ledger.SpendCollateralToVault(j, marketID, maker.Maker, makerCost); err != nil {
		return nil, err
	}
	if err := e.ledger.SpendCollateralToVault(j, marketID, taker.Maker, takerCost); err != nil {
		return nil, err
	}
	if err := e.refundImprovement(j, taker, qty, takerCost); err != nil {
		return nil, err
	}
	if err := e.ledger.Mint(j, taker.Maker, marketID, taker.Outcome, qty); err != nil {
		return nil, err
	}
	if err := e.ledger.Mint(j, maker.Maker, marketID, maker.Outcome, qty); err != nil {
		return nil, err
	}

	return []types.Trade{
		newTrade(fillID, taker, qty, takerPrice, takerCost, types.LiquidityTaker, types.FillMint, now),
		newTrade(fillID, maker, qty, makerPrice, makerCost, types.LiquidityMaker, types.FillMint, now),
	}, nil
}

// refundImprovement releases the part of a BUY taker's escrow it did not need
// because the fill executed below its limit.
func (e *Engine) refundImprovement(j *journal.Journal, taker *types.Order, qty, paid types.Amount) error {
	if taker.Side != types.SideBuy {
		return nil
	}
	reserved := types.Cost(qty, taker.Price)
	improvement, ok := reserved.Sub(paid)
	if !ok {
		return types.Errorf(types.ErrInsolvent, "fill cost %s exceeds reserved %s", paid, reserved)
	}
	return e.ledger.ReleaseCollateral(j, taker.MarketID, taker.Maker, improvement)
}

func (e *Engine) takeFillID(j *journal.Journal) uint64 {
	id := e.nextFillID
	e.nextFillID++
	j.Record(func() { e.nextFillID = id })
	return id
}

func newTrade(fillID uint64, o *types.Order, qty, price, cost types.Amount, liquidity types.Liquidity, kind types.FillKind, now time.Time) types.Trade {
	return types.Trade{
		FillID:        fillID,
		MarketID:      o.MarketID,
		OrderID:       o.ID,
		Trader:        o.Maker,
		Outcome:       o.Outcome,
		Side:          o.Side,
		Shares:        qty,
		PricePerShare: price,
		TotalCost:     cost,
		Liquidity:     liquidity,
		Kind:          kind,
		Timestamp:     now,
	}
}
