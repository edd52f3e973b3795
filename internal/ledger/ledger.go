// Package ledger holds collateral accounts, outcome share balances, order
// escrow and the per-market collateral vault.
package ledger

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/internal/journal"
	"github.com/mselser95/bangr-engine/pkg/types"
	"go.uber.org/zap"
)

type positionKey struct {
	account  common.Address
	marketID uint64
	outcome  types.Outcome
}

type supplyKey struct {
	marketID uint64
	outcome  types.Outcome
}

// Ledger is the authoritative balance store. Every mutating method records
// its undo in the supplied journal and buffers the matching balance events.
// Ledger is not safe for concurrent use.
type Ledger struct {
	logger *zap.Logger

	collateral map[common.Address]types.Amount
	locked     map[common.Address]types.Amount
	shares     map[positionKey]types.Amount
	lockedSh   map[positionKey]types.Amount
	held       map[positionKey]bool
	redeemed   map[positionKey]bool
	supply     map[supplyKey]types.Amount
	vault      map[uint64]types.Amount
}

// Config holds ledger configuration.
type Config struct {
	Logger *zap.Logger
}

// New creates an empty ledger.
func New(cfg *Config) *Ledger {
	return &Ledger{
		logger:     cfg.Logger,
		collateral: make(map[common.Address]types.Amount),
		locked:     make(map[common.Address]types.Amount),
		shares:     make(map[positionKey]types.Amount),
		lockedSh:   make(map[positionKey]types.Amount),
		held:       make(map[positionKey]bool),
		redeemed:   make(map[positionKey]bool),
		supply:     make(map[supplyKey]types.Amount),
		vault:      make(map[uint64]types.Amount),
	}
}

// set writes m[k] = v and records how to restore the previous entry.
func set[K comparable, V any](j *journal.Journal, m map[K]V, k K, v V) {
	old, existed := m[k]
	m[k] = v
	j.Record(func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

func credit[K comparable](j *journal.Journal, m map[K]types.Amount, k K, amount types.Amount) error {
	sum, ok := m[k].AddChecked(amount)
	if !ok {
		return types.Errorf(types.ErrInvalidAmount, "balance overflow")
	}
	set(j, m, k, sum)
	return nil
}

func debit[K comparable](j *journal.Journal, m map[K]types.Amount, k K, amount types.Amount, insufficient *types.Error) error {
	rest, ok := m[k].Sub(amount)
	if !ok {
		return types.Errorf(insufficient, "have %s, need %s", m[k], amount)
	}
	set(j, m, k, rest)
	return nil
}

// CollateralOf returns the free collateral of an account.
func (l *Ledger) CollateralOf(account common.Address) types.Amount {
	return l.collateral[account]
}

// LockedCollateralOf returns the collateral escrowed by the account's open BUY orders.
func (l *Ledger) LockedCollateralOf(account common.Address) types.Amount {
	return l.locked[account]
}

// BalanceOf returns the free shares an account holds in one outcome.
func (l *Ledger) BalanceOf(account common.Address, marketID uint64, outcome types.Outcome) types.Amount {
	return l.shares[positionKey{account, marketID, outcome}]
}

// LockedSharesOf returns the shares escrowed by the account's open SELL orders.
func (l *Ledger) LockedSharesOf(account common.Address, marketID uint64, outcome types.Outcome) types.Amount {
	return l.lockedSh[positionKey{account, marketID, outcome}]
}

// HasHeld reports whether the account ever received shares of the outcome.
func (l *Ledger) HasHeld(account common.Address, marketID uint64, outcome types.Outcome) bool {
	return l.held[positionKey{account, marketID, outcome}]
}

// Redeemed reports whether the account already redeemed the outcome.
func (l *Ledger) Redeemed(account common.Address, marketID uint64, outcome types.Outcome) bool {
	return l.redeemed[positionKey{account, marketID, outcome}]
}

// SupplyOf returns outstanding shares of an outcome, free and escrowed.
func (l *Ledger) SupplyOf(marketID uint64, outcome types.Outcome) types.Amount {
	return l.supply[supplyKey{marketID, outcome}]
}

// VaultOf returns the collateral backing a market's outstanding shares.
func (l *Ledger) VaultOf(marketID uint64) types.Amount {
	return l.vault[marketID]
}

// Positions lists every outcome position the account has held, ordered by
// market then outcome.
func (l *Ledger) Positions(account common.Address) []types.Position {
	positions := make([]types.Position, 0)
	for key := range l.held {
		if key.account != account {
			continue
		}
		yes, no := types.TokenIDs(key.marketID)
		tokenID := no
		if key.outcome == types.OutcomeYes {
			tokenID = yes
		}
		positions = append(positions, types.Position{
			MarketID: key.marketID,
			Outcome:  key.outcome,
			TokenID:  tokenID,
			Shares:   l.shares[key],
			Locked:   l.lockedSh[key],
			Redeemed: l.redeemed[key],
		})
	}
	sort.Slice(positions, func(i, k int) bool {
		if positions[i].MarketID != positions[k].MarketID {
			return positions[i].MarketID < positions[k].MarketID
		}
		return positions[i].Outcome == types.OutcomeYes && positions[k].Outcome == types.OutcomeNo
	})
	return positions
}

// Deposit credits free collateral from outside the engine.
func (l *Ledger) Deposit(j *journal.Journal, account common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return types.Errorf(types.ErrInvalidAmount, "deposit must be positive")
	}
	if err := credit(j, l.collateral, account, amount); err != nil {
		return err
	}
	l.emitCollateral(j, 0, types.ZeroAddress, account, amount, "deposit")
	j.OnCommit(CollateralFlowTotal.WithLabelValues("deposit").Inc)
	return nil
}

// Withdraw debits free collateral out of the engine.
func (l *Ledger) Withdraw(j *journal.Journal, account common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return types.Errorf(types.ErrInvalidAmount, "withdrawal must be positive")
	}
	if err := debit(j, l.collateral, account, amount, types.ErrInsufficientBalance); err != nil {
		return err
	}
	l.emitCollateral(j, 0, account, types.ZeroAddress, amount, "withdraw")
	j.OnCommit(CollateralFlowTotal.WithLabelValues("withdraw").Inc)
	return nil
}

// LockCollateral moves free collateral into order escrow.
func (l *Ledger) LockCollateral(j *journal.Journal, marketID uint64, account common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := debit(j, l.collateral, account, amount, types.ErrInsufficientBalance); err != nil {
		return err
	}
	if err := credit(j, l.locked, account, amount); err != nil {
		return err
	}
	l.emitCollateral(j, marketID, account, types.EscrowAddress, amount, "lock")
	return nil
}

// ReleaseCollateral returns escrowed collateral to the free balance.
func (l *Ledger) ReleaseCollateral(j *journal.Journal, marketID uint64, account common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := debit(j, l.locked, account, amount, types.ErrInsolvent); err != nil {
		return err
	}
	if err := credit(j, l.collateral, account, amount); err != nil {
		return err
	}
	l.emitCollateral(j, marketID, types.EscrowAddress, account, amount, "release")
	return nil
}

// SpendCollateral pays escrowed collateral of from to the free balance of to.
func (l *Ledger) SpendCollateral(j *journal.Journal, marketID uint64, from, to common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := debit(j, l.locked, from, amount, types.ErrInsolvent); err != nil {
		return err
	}
	if err := credit(j, l.collateral, to, amount); err != nil {
		return err
	}
	l.emitCollateral(j, marketID, from, to, amount, "trade")
	return nil
}

// SpendCollateralToVault moves escrowed collateral into the market vault.
func (l *Ledger) SpendCollateralToVault(j *journal.Journal, marketID uint64, from common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return nil
	}
	if err := debit(j, l.locked, from, amount, types.ErrInsolvent); err != nil {
		return err
	}
	if err := credit(j, l.vault, marketID, amount); err != nil {
		return err
	}
	l.emitCollateral(j, marketID, from, types.VaultAddress, amount, "mint")
	return nil
}

// DepositToVault moves free collateral into the market vault.
func (l *Ledger) DepositToVault(j *journal.Journal, marketID uint64, from common.Address, amount types.Amount) error {
	if err := debit(j, l.collateral, from, amount, types.ErrInsufficientBalance); err != nil {
		return err
	}
	if err := credit(j, l.vault, marketID, amount); err != nil {
		return err
	}
	l.emitCollateral(j, marketID, from, types.VaultAddress, amount, "split")
	return nil
}

// PayFromVault moves collateral out of the market vault to an account.
func (l *Ledger) PayFromVault(j *journal.Journal, marketID uint64, to common.Address, amount types.Amount, reason string) error {
	if amount.IsZero() {
		return nil
	}
	if err := debit(j, l.vault, marketID, amount, types.ErrInsolvent); err != nil {
		return err
	}
	if err := credit(j, l.collateral, to, amount); err != nil {
		return err
	}
	l.emitCollateral(j, marketID, types.VaultAddress, to, amount, reason)
	return nil
}

// Mint creates new shares for an account.
func (l *Ledger) Mint(j *journal.Journal, account common.Address, marketID uint64, outcome types.Outcome, amount types.Amount) error {
	key := positionKey{account, marketID, outcome}
	if err := credit(j, l.supply, supplyKey{marketID, outcome}, amount); err != nil {
		return err
	}
	if err := credit(j, l.shares, key, amount); err != nil {
		return err
	}
	l.markHeld(j, key)
	l.emitTransfer(j, marketID, outcome, types.ZeroAddress, account, amount)
	minted := wholeShares(amount)
	j.OnCommit(func() { SharesMintedTotal.WithLabelValues(string(outcome)).Add(minted) })

	l.logger.Debug("shares-minted",
		zap.String("account", account.Hex()),
		zap.Uint64("market-id", marketID),
		zap.String("outcome", string(outcome)),
		zap.String("amount", amount.FormatUnits(types.ShareDecimals)))
	return nil
}

// Burn destroys free shares of an account.
func (l *Ledger) Burn(j *journal.Journal, account common.Address, marketID uint64, outcome types.Outcome, amount types.Amount) error {
	key := positionKey{account, marketID, outcome}
	if err := debit(j, l.shares, key, amount, types.ErrInsufficientShares); err != nil {
		return err
	}
	if err := debit(j, l.supply, supplyKey{marketID, outcome}, amount, types.ErrInsolvent); err != nil {
		return err
	}
	l.emitTransfer(j, marketID, outcome, account, types.ZeroAddress, amount)
	burned := wholeShares(amount)
	j.OnCommit(func() { SharesBurnedTotal.WithLabelValues(string(outcome)).Add(burned) })
	return nil
}

// Transfer moves free shares between accounts.
func (l *Ledger) Transfer(j *journal.Journal, from, to common.Address, marketID uint64, outcome types.Outcome, amount types.Amount) error {
	fromKey := positionKey{from, marketID, outcome}
	toKey := positionKey{to, marketID, outcome}
	if err := debit(j, l.shares, fromKey, amount, types.ErrInsufficientShares); err != nil {
		return err
	}
	if err := credit(j, l.shares, toKey, amount); err != nil {
		return err
	}
	l.markHeld(j, toKey)
	l.emitTransfer(j, marketID, outcome, from, to, amount)
	return nil
}

// LockShares moves free shares into SELL order escrow.
func (l *Ledger) LockShares(j *journal.Journal, account common.Address, marketID uint64, outcome types.Outcome, amount types.Amount) error {
	key := positionKey{account, marketID, outcome}
	if err := debit(j, l.shares, key, amount, types.ErrInsufficientShares); err != nil {
		return err
	}
	if err := credit(j, l.lockedSh, key, amount); err != nil {
		return err
	}
	l.emitTransfer(j, marketID, outcome, account, types.EscrowAddress, amount)
	return nil
}

// ReleaseShares returns escrowed shares to the free balance.
func (l *Ledger) ReleaseShares(j *journal.Journal, account common.Address, marketID uint64, outcome types.Outcome, amount types.Amount) error {
	if amount.IsZero() {
		return nil
	}
	key := positionKey{account, marketID, outcome}
	if err := debit(j, l.lockedSh, key, amount, types.ErrInsolvent); err != nil {
		return err
	}
	if err := credit(j, l.shares, key, amount); err != nil {
		return err
	}
	l.emitTransfer(j, marketID, outcome, types.EscrowAddress, account, amount)
	return nil
}

// SpendShares delivers escrowed shares of from to the free balance of to.
func (l *Ledger) SpendShares(j *journal.Journal, from, to common.Address, marketID uint64, outcome types.Outcome, amount types.Amount) error {
	fromKey := positionKey{from, marketID, outcome}
	toKey := positionKey{to, marketID, outcome}
	if err := debit(j, l.lockedSh, fromKey, amount, types.ErrInsolvent); err != nil {
		return err
	}
	if err := credit(j, l.shares, toKey, amount); err != nil {
		return err
	}
	l.markHeld(j, toKey)
	l.emitTransfer(j, marketID, outcome, types.EscrowAddress, to, amount)
	return nil
}

// MarkRedeemed records that the account redeemed the outcome.
func (l *Ledger) MarkRedeemed(j *journal.Journal, account common.Address, marketID uint64, outcome types.Outcome) {
	set(j, l.redeemed, positionKey{account, marketID, outcome}, true)
}

func (l *Ledger) markHeld(j *journal.Journal, key positionKey) {
	if l.held[key] {
		return
	}
	set(j, l.held, key, true)
}

// CheckSolvency verifies the collateral backing of a market. While trading,
// both outcomes must have equal supply fully backed by the vault; after
// resolution the vault must cover every outstanding payout.
func (l *Ledger) CheckSolvency(marketID uint64, status types.MarketStatus) error {
	yes := l.SupplyOf(marketID, types.OutcomeYes)
	no := l.SupplyOf(marketID, types.OutcomeNo)
	vault := l.VaultOf(marketID)

	if status == types.StatusPending {
		if !yes.Eq(no) {
			return types.Errorf(types.ErrInsolvent, "market %d: YES supply %s != NO supply %s", marketID, yes, no)
		}
		if backing := types.Cost(yes, types.OneCollateral); !vault.Eq(backing) {
			return types.Errorf(types.ErrInsolvent, "market %d: vault %s != backing %s", marketID, vault, backing)
		}
		return nil
	}

	owed := types.Cost(yes, status.PayoutRate(types.OutcomeYes)).
		Add(types.Cost(no, status.PayoutRate(types.OutcomeNo)))
	if vault.Lt(owed) {
		return types.Errorf(types.ErrInsolvent, "market %d: vault %s < owed %s", marketID, vault, owed)
	}
	return nil
}

func (l *Ledger) emitTransfer(j *journal.Journal, marketID uint64, outcome types.Outcome, from, to common.Address, amount types.Amount) {
	yes, no := types.TokenIDs(marketID)
	tokenID := no
	if outcome == types.OutcomeYes {
		tokenID = yes
	}
	j.Emit(types.EventTransferSingle, marketID, types.TransferSinglePayload{
		Operator: types.EscrowAddress,
		From:     from,
		To:       to,
		TokenID:  tokenID,
		Amount:   amount,
	})
}

func (l *Ledger) emitCollateral(j *journal.Journal, marketID uint64, from, to common.Address, amount types.Amount, reason string) {
	j.Emit(types.EventCollateralMoved, marketID, types.CollateralMovedPayload{
		From:   from,
		To:     to,
		Amount: amount,
		Reason: reason,
	})
}

func wholeShares(amount types.Amount) float64 {
	return float64(amount.Div(types.ShareTick).Uint256().Uint64()) / 100
}
