package orderbook

import (
	"github.com/google/btree"
	"github.com/mselser95/bangr-engine/pkg/types"
)

// btreeDegree is the fan-out of the price level trees.
const btreeDegree = 8

// level is the FIFO queue of resting orders at one price.
type level struct {
	price  types.Amount
	orders []*types.Order
}

func levelLess(a, b *level) bool {
	return a.price.Lt(b.price)
}

// book holds the resting orders of one (market, outcome).
type book struct {
	bids *btree.BTreeG[*level]
	asks *btree.BTreeG[*level]
}

func newBook() *book {
	return &book{
		bids: btree.NewG[*level](btreeDegree, levelLess),
		asks: btree.NewG[*level](btreeDegree, levelLess),
	}
}

func (b *book) side(side types.Side) *btree.BTreeG[*level] {
	if side == types.SideBuy {
		return b.bids
	}
	return b.asks
}

// best returns the best level of a side: the highest bid or the lowest ask.
func (b *book) best(side types.Side) (*level, bool) {
	if side == types.SideBuy {
		return b.bids.Max()
	}
	return b.asks.Min()
}

// walk visits levels of a side in priority order until fn returns false.
func (b *book) walk(side types.Side, fn func(*level) bool) {
	if side == types.SideBuy {
		b.bids.Descend(fn)
		return
	}
	b.asks.Ascend(fn)
}
