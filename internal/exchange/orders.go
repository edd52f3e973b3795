package exchange

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// PlaceLimitOrder validates and escrows a limit order, matches it against
// the book and rests any remainder.
func (e *Exchange) PlaceLimitOrder(req types.PlaceOrderRequest) (types.PlaceResult, error) {
	var result types.PlaceResult

	err := e.apply("place_order", func(j *journal.Journal, now time.Time) error {
		if err := req.Validate(); err != nil {
			return err
		}

		market, err := e.markets.Get(req.MarketID)
		if err != nil {
			return err
		}
		if !market.TradingOpen(now) {
			return types.Errorf(types.ErrMarketClosed, "market %d is %s, ends %s",
				market.ID, market.Status, market.EndTime.Format(time.RFC3339))
		}

		if req.Side == types.SideBuy {
			err = e.ledger.LockCollateral(j, market.ID, req.Maker, types.Cost(req.Shares, req.Price))
		} else {
			err = e.ledger.LockShares(j, req.Maker, market.ID, req.Outcome, req.Shares)
		}
		if err != nil {
			return err
		}

		order := e.book.NewOrder(j, &req, now)
		j.Emit(types.EventOrderPlaced, market.ID, types.OrderPlacedPayload{Order: order.Snapshot()})

		trades, err := e.engine.Match(j, order, now)
		if err != nil {
			return err
		}
		e.book.Rest(j, order)
		e.recordTrades(j, trades)

		result = types.PlaceResult{
			OrderID: order.ID,
			Order:   order.Snapshot(),
			Trades:  trades,
			Resting: e.book.IsResting(order.ID),
		}
		return nil
	})
	if err != nil {
		return types.PlaceResult{}, err
	}

	e.logger.Info("order-placed",
		zap.Uint64("order-id", result.OrderID),
		zap.Uint64("market-id", req.MarketID),
		zap.String("maker", req.Maker.Hex()),
		zap.String("side", string(req.Side)),
		zap.String("outcome", string(req.Outcome)),
		zap.String("shares", req.Shares.FormatUnits(types.ShareDecimals)),
		zap.String("price", req.Price.FormatUnits(types.CollateralDecimals)),
		zap.Int("fills", len(result.Trades)/2),
		zap.Bool("resting", result.Resting))
	return result, nil
}

// CancelOrder cancels an active order of the caller and releases its escrow.
// Cancelling after the market window ended is allowed.
func (e *Exchange) CancelOrder(caller common.Address, orderID uint64) (types.Order, error) {
	var cancelled types.Order

	err := e.apply("cancel_order", func(j *journal.Journal, _ time.Time) error {
		order, ok := e.book.Get(orderID)
		if !ok {
			return types.Errorf(types.ErrOrderNotFound, "order %d", orderID)
		}
		if order.Maker != caller {
			return types.Errorf(types.ErrNotOwner, "order %d belongs to %s", orderID, order.Maker.Hex())
		}
		if !order.Active() {
			return types.Errorf(types.ErrAlreadyInactive, "order %d", orderID)
		}
		if err := e.cancel(j, order, types.CancelByMaker); err != nil {
			return err
		}
		cancelled = order.Snapshot()
		return nil
	})
	if err != nil {
		return types.Order{}, err
	}

	e.logger.Info("order-cancelled",
		zap.Uint64("order-id", orderID),
		zap.String("maker", caller.Hex()))
	return cancelled, nil
}

// cancel releases the order's remaining escrow and takes it off the book.
func (e *Exchange) cancel(j *journal.Journal, order *types.Order, reason string) error {
	released := order.Escrow()

	var err error
	if order.Side == types.SideBuy {
		err = e.ledger.ReleaseCollateral(j, order.MarketID, order.Maker, released)
	} else {
		err = e.ledger.ReleaseShares(j, order.Maker, order.MarketID, order.Outcome, released)
	}
	if err != nil {
		return err
	}

	e.book.Cancel(j, order)
	j.Emit(types.EventOrderCancelled, order.MarketID, types.OrderCancelledPayload{
		OrderID:  order.ID,
		Maker:    order.Maker,
		Side:     order.Side,
		Outcome:  order.Outcome,
		Released: released,
		Reason:   reason,
	})
	return nil
}

func (e *Exchange) recordTrades(j *journal.Journal, trades []types.Trade) {
	if len(trades) == 0 {
		return
	}
	n := len(e.trades)
	e.trades = append(e.trades, trades...)
	j.Record(func() { e.trades = e.trades[:n] })
}

// GetOrder returns a snapshot of one order.
func (e *Exchange) GetOrder(orderID uint64) (types.Order, error) {
	var (
		order types.Order
		err   error
	)
	e.read(func() {
		o, ok := e.book.Get(orderID)
		if !ok {
			err = types.Errorf(types.ErrOrderNotFound, "order %d", orderID)
			return
		}
		order = o.Snapshot()
	})
	return order, err
}

// GetMarketOrders returns the active orders of one book side in priority order.
func (e *Exchange) GetMarketOrders(marketID uint64, outcome types.Outcome, side types.Side) ([]types.Order, error) {
	var (
		out []types.Order
		err error
	)
	e.read(func() {
		if _, err = e.markets.Get(marketID); err != nil {
			return
		}
		out = e.book.MarketOrders(marketID, outcome, side)
	})
	return out, err
}

// GetUserOrders returns every order the account placed, each flagged with IsActive.
func (e *Exchange) GetUserOrders(account common.Address) []types.Order {
	var out []types.Order
	e.read(func() { out = e.book.UserOrders(account) })
	return out
}

// Depth returns the aggregated book of one market outcome.
func (e *Exchange) Depth(marketID uint64, outcome types.Outcome) (types.Depth, error) {
	var (
		depth types.Depth
		err   error
	)
	e.read(func() {
		if _, err = e.markets.Get(marketID); err != nil {
			return
		}
		depth = e.book.Depth(marketID, outcome)
	})
	return depth, err
}

// TradeHistory returns the executed trades of a market, optionally limited to
// one trader, oldest first.
func (e *Exchange) TradeHistory(marketID uint64, trader *common.Address) []types.Trade {
	out := make([]types.Trade, 0)
	e.read(func() {
		for i := range e.trades {
			t := e.trades[i]
			if t.MarketID != marketID {
				continue
			}
			if trader != nil && t.Trader != *trader {
				continue
			}
			out = append(out, t)
		}
	})
	return out
}
