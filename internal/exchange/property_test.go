package exchange

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

var traders = []common.Address{alice, bob, carol}

func ticks(unit types.Amount, n uint64) types.Amount {
	v, ok := unit.Mul(types.NewAmount(n))
	if !ok {
		panic("tick overflow")
	}
	return v
}

func sum(amounts ...types.Amount) types.Amount {
	total := types.Amount{}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// checkEscrow verifies locked balances equal what the active orders hold.
func checkEscrow(t *rapid.T, ex *Exchange, marketID uint64) {
	for _, acct := range traders {
		lockedCollateral := types.Amount{}
		lockedShares := map[types.Outcome]types.Amount{}
		for _, o := range ex.GetUserOrders(acct) {
			if !o.IsActive {
				continue
			}
			if o.Side == types.SideBuy {
				lockedCollateral = lockedCollateral.Add(o.Escrow())
			} else {
				lockedShares[o.Outcome] = lockedShares[o.Outcome].Add(o.Escrow())
			}
		}

		ex.read(func() {
			if got := ex.ledger.LockedCollateralOf(acct); !got.Eq(lockedCollateral) {
				t.Fatalf("%s locked collateral %s, active buys hold %s", acct.Hex(), got, lockedCollateral)
			}
			for _, outcome := range []types.Outcome{types.OutcomeYes, types.OutcomeNo} {
				if got := ex.ledger.LockedSharesOf(acct, marketID, outcome); !got.Eq(lockedShares[outcome]) {
					t.Fatalf("%s locked %s shares %s, active sells hold %s", acct.Hex(), outcome, got, lockedShares[outcome])
				}
			}
		})
	}
	if err := ex.CheckSolvency(marketID); err != nil {
		t.Fatalf("solvency: %v", err)
	}
}

func totalCollateral(ex *Exchange, marketID uint64) types.Amount {
	var total types.Amount
	ex.read(func() {
		total = ex.ledger.VaultOf(marketID)
		for _, acct := range traders {
			total = sum(total, ex.ledger.CollateralOf(acct), ex.ledger.LockedCollateralOf(acct))
		}
	})
	return total
}

func TestPropertyBookKeepsEscrowAndCollateral(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		c := &clock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
		ex, err := New(&Config{Logger: zap.NewNop(), Now: c.now})
		if err != nil {
			rt.Fatalf("new: %v", err)
		}
		m, err := ex.CreateMarket(types.CreateMarketParams{
			TweetID: "1", Metric: types.MetricLikes, Duration: types.WindowHour6, Multiplier: 3, CurrentValue: 100,
		})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}

		deposited := types.Collateral("100")
		for _, acct := range traders {
			if err = ex.Deposit(acct, deposited); err != nil {
				rt.Fatalf("deposit: %v", err)
			}
		}
		total := ticks(deposited, uint64(len(traders)))

		steps := rapid.IntRange(1, 60).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			acct := rapid.SampledFrom(traders).Draw(rt, "trader")
			switch rapid.IntRange(0, 3).Draw(rt, "action") {
			case 0:
				if err = ex.SplitPosition(acct, m.ID, ticks(types.ShareTick, rapid.Uint64Range(1, 500).Draw(rt, "split"))); err != nil &&
					types.KindOf(err) != types.KindResource {
					rt.Fatalf("split: %v", err)
				}
			case 1, 2:
				req := types.PlaceOrderRequest{
					Maker:    acct,
					MarketID: m.ID,
					Side:     rapid.SampledFrom([]types.Side{types.SideBuy, types.SideSell}).Draw(rt, "side"),
					Outcome:  rapid.SampledFrom([]types.Outcome{types.OutcomeYes, types.OutcomeNo}).Draw(rt, "outcome"),
					Shares:   ticks(types.ShareTick, rapid.Uint64Range(1, 1000).Draw(rt, "shares")),
					Price:    ticks(types.PriceTick, rapid.Uint64Range(1, 99).Draw(rt, "price")),
				}
				resting := restingPrices(ex)
				res, placeErr := ex.PlaceLimitOrder(req)
				if placeErr != nil {
					if types.KindOf(placeErr) != types.KindResource {
						rt.Fatalf("place: %v", placeErr)
					}
					break
				}
				checkFills(rt, req, res, resting)
			case 3:
				orders := ex.GetUserOrders(acct)
				if len(orders) == 0 {
					break
				}
				o := rapid.SampledFrom(orders).Draw(rt, "order")
				_, cancelErr := ex.CancelOrder(acct, o.ID)
				if o.IsActive && cancelErr != nil {
					rt.Fatalf("cancel active order %d: %v", o.ID, cancelErr)
				}
				if !o.IsActive && cancelErr == nil {
					rt.Fatalf("cancel inactive order %d succeeded", o.ID)
				}
			}

			checkEscrow(rt, ex, m.ID)
			if got := totalCollateral(ex, m.ID); !got.Eq(total) {
				rt.Fatalf("collateral %s after step %d, deposited %s", got, i, total)
			}
		}

		c.advance(6 * time.Hour)
		if rapid.Bool().Draw(rt, "invalidate") {
			_, err = ex.InvalidateMarket(m.ID, "property")
		} else {
			_, err = ex.ResolveMarket(m.ID, rapid.Uint64Range(0, 600).Draw(rt, "final"))
		}
		if err != nil {
			rt.Fatalf("settle: %v", err)
		}
		checkEscrow(rt, ex, m.ID)

		for _, acct := range traders {
			for _, outcome := range []types.Outcome{types.OutcomeYes, types.OutcomeNo} {
				res, redeemErr := ex.RedeemWinningShares(acct, m.ID, outcome)
				if redeemErr != nil {
					continue
				}
				if res.Payout.Gt(types.Cost(res.Shares, types.OneCollateral)) {
					rt.Fatalf("payout %s exceeds %s shares", res.Payout, res.Shares)
				}
			}
		}

		if got := totalCollateral(ex, m.ID); !got.Eq(total) {
			rt.Fatalf("collateral %s after redemption, deposited %s", got, total)
		}
		ex.read(func() {
			if vault := ex.ledger.VaultOf(m.ID); !vault.IsZero() {
				rt.Fatalf("vault holds %s after every share was redeemed", vault)
			}
		})
	})
}

// restingPrices maps every active order to its limit price.
func restingPrices(ex *Exchange) map[uint64]types.Amount {
	out := make(map[uint64]types.Amount)
	for _, acct := range traders {
		for _, o := range ex.GetUserOrders(acct) {
			if o.IsActive {
				out[o.ID] = o.Price
			}
		}
	}
	return out
}

// checkFills verifies that each fill pair moves equal shares, executes at the
// resting order's price (its complement for the taker of a mint) and never
// crosses the taker's limit.
func checkFills(t *rapid.T, req types.PlaceOrderRequest, res types.PlaceResult, resting map[uint64]types.Amount) {
	if len(res.Trades)%2 != 0 {
		t.Fatalf("odd trade count %d", len(res.Trades))
	}
	filled := types.Amount{}
	for i := 0; i < len(res.Trades); i += 2 {
		taker, maker := res.Trades[i], res.Trades[i+1]
		if taker.FillID != maker.FillID {
			t.Fatalf("fill ids differ: %d and %d", taker.FillID, maker.FillID)
		}
		if taker.Liquidity != types.LiquidityTaker || maker.Liquidity != types.LiquidityMaker {
			t.Fatalf("trade pair out of order")
		}
		if !taker.Shares.Eq(maker.Shares) {
			t.Fatalf("taker shares %s, maker shares %s", taker.Shares, maker.Shares)
		}
		makerPrice, ok := resting[maker.OrderID]
		if !ok {
			t.Fatalf("fill %d against order %d that was not resting", maker.FillID, maker.OrderID)
		}
		if !maker.PricePerShare.Eq(makerPrice) {
			t.Fatalf("maker order %d filled at %s, rests at %s", maker.OrderID, maker.PricePerShare, makerPrice)
		}
		wantTaker := makerPrice
		if taker.Kind == types.FillMint {
			wantTaker = types.ComplementPrice(makerPrice)
		}
		if !taker.PricePerShare.Eq(wantTaker) {
			t.Fatalf("%s fill %d: taker paid %s, maker price %s", taker.Kind, taker.FillID, taker.PricePerShare, makerPrice)
		}
		if req.Side == types.SideBuy && taker.PricePerShare.Gt(req.Price) {
			t.Fatalf("buyer paid %s over limit %s", taker.PricePerShare, req.Price)
		}
		if req.Side == types.SideSell && taker.PricePerShare.Lt(req.Price) {
			t.Fatalf("seller received %s under limit %s", taker.PricePerShare, req.Price)
		}
		filled = filled.Add(taker.Shares)
	}
	if !filled.Eq(res.Order.Filled) {
		t.Fatalf("trades fill %s, order reports %s", filled, res.Order.Filled)
	}
}

func TestPropertyPlaceThenCancelRestoresBalances(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		ex, err := New(&Config{Logger: zap.NewNop()})
		if err != nil {
			rt.Fatalf("new: %v", err)
		}
		m, err := ex.CreateMarket(types.CreateMarketParams{
			TweetID: "7", Metric: types.MetricViews, Duration: types.WindowDay1, Multiplier: 2, CurrentValue: 10,
		})
		if err != nil {
			rt.Fatalf("create: %v", err)
		}
		if err = ex.Deposit(alice, types.Collateral("50")); err != nil {
			rt.Fatalf("deposit: %v", err)
		}
		if err = ex.SplitPosition(alice, m.ID, types.Shares("20")); err != nil {
			rt.Fatalf("split: %v", err)
		}
		before := ex.Balances(alice)

		res, err := ex.PlaceLimitOrder(types.PlaceOrderRequest{
			Maker:    alice,
			MarketID: m.ID,
			Side:     rapid.SampledFrom([]types.Side{types.SideBuy, types.SideSell}).Draw(rt, "side"),
			Outcome:  rapid.SampledFrom([]types.Outcome{types.OutcomeYes, types.OutcomeNo}).Draw(rt, "outcome"),
			Shares:   ticks(types.ShareTick, rapid.Uint64Range(1, 2000).Draw(rt, "shares")),
			Price:    ticks(types.PriceTick, rapid.Uint64Range(1, 99).Draw(rt, "price")),
		})
		if err != nil {
			rt.Fatalf("place: %v", err)
		}
		if len(res.Trades) != 0 {
			rt.Fatalf("lone order traded")
		}
		if _, err = ex.CancelOrder(alice, res.OrderID); err != nil {
			rt.Fatalf("cancel: %v", err)
		}

		after := ex.Balances(alice)
		if !after.Collateral.Eq(before.Collateral) || !after.LockedCollateral.IsZero() {
			rt.Fatalf("collateral %s/%s, want %s/0", after.Collateral, after.LockedCollateral, before.Collateral)
		}
		for i := range after.Positions {
			if !after.Positions[i].Shares.Eq(before.Positions[i].Shares) || !after.Positions[i].Locked.IsZero() {
				rt.Fatalf("position %d changed", i)
			}
		}
	})
}
