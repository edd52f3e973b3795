package httpserver

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/mselser95/bangr-engine/pkg/wallet"
	"go.uber.org/zap"
)

// WithdrawRequest is the body of POST /api/accounts/{address}/withdraw.
type WithdrawRequest struct {
	Amount types.Amount `json:"amount"`
}

func addressParam(r *http.Request) (common.Address, error) {
	return wallet.ParseAddress(chi.URLParam(r, "address"))
}

func (s *Server) handleAccountOrders(w http.ResponseWriter, r *http.Request) {
	account, err := addressParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.GetUserOrders(account))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	account, err := addressParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Balances(account))
}

// handleFaucet credits development collateral to the path account.
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	if s.faucetAmount.IsZero() {
		s.writeError(w, r, types.ErrFaucetDisabled)
		return
	}
	account, err := addressParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err = s.engine.Deposit(account, s.faucetAmount); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("faucet-credited",
		zap.String("account", account.Hex()),
		zap.String("requested-by", caller(r).Hex()),
		zap.String("amount", s.faucetAmount.FormatUnits(types.CollateralDecimals)))
	s.writeJSON(w, http.StatusOK, s.engine.Balances(account))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	account, err := addressParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if account != caller(r) {
		s.writeError(w, r, types.Errorf(types.ErrNotOwner, "%s cannot withdraw for %s", caller(r).Hex(), account.Hex()))
		return
	}

	var req WithdrawRequest
	if err = decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.engine.Withdraw(account, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Balances(account))
}
