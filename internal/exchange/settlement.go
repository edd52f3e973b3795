package exchange

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

// ResolveMarket settles a market from its final metric value and cancels
// every order still resting on it.
func (e *Exchange) ResolveMarket(marketID, finalValue uint64) (types.Market, error) {
	var market types.Market
	err := e.apply("resolve_market", func(j *journal.Journal, now time.Time) error {
		m, err := e.markets.Resolve(j, marketID, finalValue, now)
		if err != nil {
			return err
		}
		if err = e.cancelAll(j, marketID); err != nil {
			return err
		}
		market = *m
		return nil
	})
	if err != nil {
		return types.Market{}, err
	}

	e.logger.Info("market-resolved",
		zap.Uint64("market-id", marketID),
		zap.String("status", string(market.Status)),
		zap.Uint64("final-value", finalValue),
		zap.Uint64("target-value", market.TargetValue))
	return market, nil
}

// InvalidateMarket settles a market as RESOLVED_INVALID and cancels its orders.
func (e *Exchange) InvalidateMarket(marketID uint64, reason string) (types.Market, error) {
	var market types.Market
	err := e.apply("invalidate_market", func(j *journal.Journal, now time.Time) error {
		m, err := e.markets.Invalidate(j, marketID, reason, now)
		if err != nil {
			return err
		}
		if err = e.cancelAll(j, marketID); err != nil {
			return err
		}
		market = *m
		return nil
	})
	if err != nil {
		return types.Market{}, err
	}

	e.logger.Warn("market-invalidated",
		zap.Uint64("market-id", marketID),
		zap.String("reason", reason))
	return market, nil
}

func (e *Exchange) cancelAll(j *journal.Journal, marketID uint64) error {
	for _, order := range e.book.ActiveMarketOrders(marketID) {
		if err := e.cancel(j, order, types.CancelByResolution); err != nil {
			return err
		}
	}
	return nil
}

// RedeemWinningShares burns the caller's shares of one outcome of a resolved
// market and pays out their settlement value.
func (e *Exchange) RedeemWinningShares(account common.Address, marketID uint64, outcome types.Outcome) (types.RedeemResult, error) {
	var result types.RedeemResult
	err := e.apply("redeem", func(j *journal.Journal, _ time.Time) error {
		if !outcome.Valid() {
			return types.Errorf(types.ErrInvalidArgument, "unknown outcome %q", outcome)
		}
		var err error
		result, err = e.markets.Redeem(j, account, marketID, outcome)
		return err
	})
	if err != nil {
		return types.RedeemResult{}, err
	}

	e.logger.Info("shares-redeemed",
		zap.Uint64("market-id", marketID),
		zap.String("account", account.Hex()),
		zap.String("outcome", string(outcome)),
		zap.String("shares", result.Shares.FormatUnits(types.ShareDecimals)),
		zap.String("payout", result.Payout.FormatUnits(types.CollateralDecimals)))
	return result, nil
}

// SplitPosition converts collateral into a complete set: one YES and one NO
// share per collateral unit.
func (e *Exchange) SplitPosition(account common.Address, marketID uint64, shares types.Amount) error {
	return e.apply("split", func(j *journal.Journal, now time.Time) error {
		if err := types.ValidateShares(shares); err != nil {
			return err
		}
		market, err := e.markets.Get(marketID)
		if err != nil {
			return err
		}
		if !market.TradingOpen(now) {
			return types.Errorf(types.ErrMarketClosed, "market %d is not open", marketID)
		}
		if err = e.ledger.DepositToVault(j, marketID, account, types.Cost(shares, types.OneCollateral)); err != nil {
			return err
		}
		if err = e.ledger.Mint(j, account, marketID, types.OutcomeYes, shares); err != nil {
			return err
		}
		return e.ledger.Mint(j, account, marketID, types.OutcomeNo, shares)
	})
}

// MergePositions burns a complete set and returns its collateral. Allowed
// until the market resolves.
func (e *Exchange) MergePositions(account common.Address, marketID uint64, shares types.Amount) error {
	return e.apply("merge", func(j *journal.Journal, _ time.Time) error {
		if err := types.ValidateShares(shares); err != nil {
			return err
		}
		market, err := e.markets.Get(marketID)
		if err != nil {
			return err
		}
		if market.Status != types.StatusPending {
			return types.Errorf(types.ErrMarketClosed, "market %d is %s", marketID, market.Status)
		}
		if err = e.ledger.Burn(j, account, marketID, types.OutcomeYes, shares); err != nil {
			return err
		}
		if err = e.ledger.Burn(j, account, marketID, types.OutcomeNo, shares); err != nil {
			return err
		}
		return e.ledger.PayFromVault(j, marketID, account, types.Cost(shares, types.OneCollateral), "merge")
	})
}

// Deposit credits collateral to an account.
func (e *Exchange) Deposit(account common.Address, amount types.Amount) error {
	return e.apply("deposit", func(j *journal.Journal, _ time.Time) error {
		return e.ledger.Deposit(j, account, amount)
	})
}

// Withdraw debits free collateral from an account.
func (e *Exchange) Withdraw(account common.Address, amount types.Amount) error {
	return e.apply("withdraw", func(j *journal.Journal, _ time.Time) error {
		return e.ledger.Withdraw(j, account, amount)
	})
}

// BalanceOf returns the free shares of one outcome held by the account.
func (e *Exchange) BalanceOf(account common.Address, marketID uint64, outcome types.Outcome) types.Amount {
	var balance types.Amount
	e.read(func() { balance = e.ledger.BalanceOf(account, marketID, outcome) })
	return balance
}

// CollateralOf returns the account's free collateral.
func (e *Exchange) CollateralOf(account common.Address) types.Amount {
	var balance types.Amount
	e.read(func() { balance = e.ledger.CollateralOf(account) })
	return balance
}

// Balances returns the full balance view of an account.
func (e *Exchange) Balances(account common.Address) types.AccountBalances {
	var out types.AccountBalances
	e.read(func() {
		out = types.AccountBalances{
			Account:          account,
			Collateral:       e.ledger.CollateralOf(account),
			LockedCollateral: e.ledger.LockedCollateralOf(account),
			Positions:        e.ledger.Positions(account),
		}
	})
	return out
}

// CheckSolvency verifies that a market's vault backs its outstanding shares.
func (e *Exchange) CheckSolvency(marketID uint64) error {
	var err error
	e.read(func() {
		var m *types.Market
		if m, err = e.markets.Get(marketID); err != nil {
			return
		}
		err = e.ledger.CheckSolvency(marketID, m.Status)
	})
	return err
}
