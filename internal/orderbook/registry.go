// Package orderbook stores orders and keeps, per market and outcome, the
// resting bids and asks in strict price-time priority.
package orderbook

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

type bookKey struct {
	marketID uint64
	outcome  types.Outcome
}

// Registry is the order arena plus the per-(market, outcome) books. Every
// mutation is recorded in the caller's journal. Registry is not safe for
// concurrent use.
type Registry struct {
	logger *zap.Logger

	books    map[bookKey]*book
	orders   map[uint64]*types.Order
	byMaker  map[common.Address][]uint64
	byMarket map[uint64][]uint64
	resting  map[uint64]bool
	nextID   uint64
}

// Config holds registry configuration.
type Config struct {
	Logger *zap.Logger
}

// New creates an empty registry. Order ids start at 1.
func New(cfg *Config) *Registry {
	return &Registry{
		logger:   cfg.Logger,
		books:    make(map[bookKey]*book),
		orders:   make(map[uint64]*types.Order),
		byMaker:  make(map[common.Address][]uint64),
		byMarket: make(map[uint64][]uint64),
		resting:  make(map[uint64]bool),
		nextID:   1,
	}
}

// NewOrder assigns the next id to a validated request and stores the order.
// The id doubles as the submission sequence used for time priority.
func (r *Registry) NewOrder(j *journal.Journal, req *types.PlaceOrderRequest, now time.Time) *types.Order {
	id := r.nextID
	order := &types.Order{
		ID:        id,
		MarketID:  req.MarketID,
		Maker:     req.Maker,
		Side:      req.Side,
		Outcome:   req.Outcome,
		Shares:    req.Shares,
		Price:     req.Price,
		Timestamp: now,
		Seq:       id,
	}

	r.nextID++
	r.orders[id] = order
	r.byMaker[req.Maker] = append(r.byMaker[req.Maker], id)
	r.byMarket[req.MarketID] = append(r.byMarket[req.MarketID], id)
	j.OnCommit(OrdersCreatedTotal.WithLabelValues(string(req.Side)).Inc)

	j.Record(func() {
		r.nextID = id
		delete(r.orders, id)
		r.byMaker[req.Maker] = r.byMaker[req.Maker][:len(r.byMaker[req.Maker])-1]
		r.byMarket[req.MarketID] = r.byMarket[req.MarketID][:len(r.byMarket[req.MarketID])-1]
	})
	return order
}

// Get returns the stored order.
func (r *Registry) Get(id uint64) (*types.Order, bool) {
	o, ok := r.orders[id]
	return o, ok
}

// NextOrderID returns the id the next order will receive.
func (r *Registry) NextOrderID() uint64 {
	return r.nextID
}

// IsResting reports whether the order currently sits in a book.
func (r *Registry) IsResting(id uint64) bool {
	return r.resting[id]
}

// Rest appends an active order to the back of its price level.
func (r *Registry) Rest(j *journal.Journal, order *types.Order) {
	if !order.Active() || r.resting[order.ID] {
		return
	}

	b := r.bookFor(j, bookKey{order.MarketID, order.Outcome})
	tree := b.side(order.Side)

	lvl, found := tree.Get(&level{price: order.Price})
	if !found {
		lvl = &level{price: order.Price}
		tree.ReplaceOrInsert(lvl)
	}
	lvl.orders = append(lvl.orders, order)
	r.resting[order.ID] = true

	j.Record(func() {
		delete(r.resting, order.ID)
		lvl.orders = lvl.orders[:len(lvl.orders)-1]
		if !found {
			tree.Delete(lvl)
		}
	})

	j.OnCommit(RestingOrders.Inc)
}

// Fill adds qty to the order's filled quantity and takes it out of the book
// once it is exhausted.
func (r *Registry) Fill(j *journal.Journal, order *types.Order, qty types.Amount) {
	prev := order.Filled
	order.Filled = prev.Add(qty)
	j.Record(func() { order.Filled = prev })

	if !order.Active() {
		r.unrest(j, order)
	}
}

// Cancel marks the order cancelled and removes it from the book.
func (r *Registry) Cancel(j *journal.Journal, order *types.Order) {
	order.Cancelled = true
	j.Record(func() { order.Cancelled = false })
	r.unrest(j, order)
}

func (r *Registry) unrest(j *journal.Journal, order *types.Order) {
	if !r.resting[order.ID] {
		return
	}

	b := r.books[bookKey{order.MarketID, order.Outcome}]
	tree := b.side(order.Side)
	lvl, found := tree.Get(&level{price: order.Price})
	if !found {
		r.logger.Error("resting-order-without-level",
			zap.Uint64("order-id", order.ID),
			zap.String("price", order.Price.String()))
		return
	}

	idx := -1
	for i, o := range lvl.orders {
		if o.ID == order.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	prev := lvl.orders
	remaining := make([]*types.Order, 0, len(prev)-1)
	remaining = append(remaining, prev[:idx]...)
	remaining = append(remaining, prev[idx+1:]...)
	lvl.orders = remaining
	delete(r.resting, order.ID)

	emptied := len(remaining) == 0
	if emptied {
		tree.Delete(lvl)
	}

	j.Record(func() {
		lvl.orders = prev
		r.resting[order.ID] = true
		if emptied {
			tree.ReplaceOrInsert(lvl)
		}
	})

	j.OnCommit(RestingOrders.Dec)
}

func (r *Registry) bookFor(j *journal.Journal, key bookKey) *book {
	if b, ok := r.books[key]; ok {
		return b
	}
	b := newBook()
	r.books[key] = b
	j.Record(func() { delete(r.books, key) })
	return b
}

// Best returns the first order in priority order on one side of a book.
func (r *Registry) Best(marketID uint64, outcome types.Outcome, side types.Side) *types.Order {
	b, ok := r.books[bookKey{marketID, outcome}]
	if !ok {
		return nil
	}
	lvl, ok := b.best(side)
	if !ok || len(lvl.orders) == 0 {
		return nil
	}
	return lvl.orders[0]
}

// MarketOrders returns snapshots of the active orders on one side of a book,
// best price first and earliest submission first within a price.
func (r *Registry) MarketOrders(marketID uint64, outcome types.Outcome, side types.Side) []types.Order {
	out := make([]types.Order, 0)
	b, ok := r.books[bookKey{marketID, outcome}]
	if !ok {
		return out
	}
	b.walk(side, func(lvl *level) bool {
		for _, o := range lvl.orders {
			out = append(out, o.Snapshot())
		}
		return true
	})
	return out
}

// UserOrders returns snapshots of every order the account placed, active or
// not, oldest first.
func (r *Registry) UserOrders(account common.Address) []types.Order {
	ids := r.byMaker[account]
	out := make([]types.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.orders[id].Snapshot())
	}
	return out
}

// ActiveMarketOrders returns the live orders of a market, oldest first.
func (r *Registry) ActiveMarketOrders(marketID uint64) []*types.Order {
	out := make([]*types.Order, 0)
	for _, id := range r.byMarket[marketID] {
		if o := r.orders[id]; o.Active() {
			out = append(out, o)
		}
	}
	return out
}

// Depth aggregates the resting quantity per price level of one book.
func (r *Registry) Depth(marketID uint64, outcome types.Outcome) types.Depth {
	depth := types.Depth{
		MarketID: marketID,
		Outcome:  outcome,
		Bids:     make([]types.DepthLevel, 0),
		Asks:     make([]types.DepthLevel, 0),
	}
	b, ok := r.books[bookKey{marketID, outcome}]
	if !ok {
		return depth
	}

	aggregate := func(dst *[]types.DepthLevel) func(*level) bool {
		return func(lvl *level) bool {
			var total types.Amount
			for _, o := range lvl.orders {
				total = total.Add(o.Remaining())
			}
			*dst = append(*dst, types.DepthLevel{Price: lvl.price, Shares: total, Orders: len(lvl.orders)})
			return true
		}
	}
	b.walk(types.SideBuy, aggregate(&depth.Bids))
	b.walk(types.SideSell, aggregate(&depth.Asks))
	return depth
}
