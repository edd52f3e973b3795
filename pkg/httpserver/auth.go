package httpserver

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/mselser95/bangr-engine/pkg/wallet"
	"go.uber.org/zap"
)

type accountKey struct{}

// authenticate resolves the calling account of a write request from its
// X-Account header. When signatures are required, X-Signature must cover the
// method, path, X-Timestamp and body, and each timestamp is accepted once per
// account within the signature window.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(wallet.HeaderAccount)
		account, err := wallet.ParseAddress(header)
		if err != nil {
			s.writeError(w, r, types.Errorf(types.ErrBadSignature, "missing or invalid %s header %q", wallet.HeaderAccount, header))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			s.writeError(w, r, types.Errorf(types.ErrInvalidArgument, "read body: %v", err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if s.requireSignatures {
			err = s.verifySignature(account, r, body)
			if err != nil {
				s.logger.Warn("signature-rejected",
					zap.String("account", account.Hex()),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				s.writeError(w, r, err)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, account)))
	})
}

func (s *Server) verifySignature(account common.Address, r *http.Request, body []byte) error {
	ts, err := wallet.ParseTimestamp(r.Header.Get(wallet.HeaderTimestamp))
	if err != nil {
		return err
	}
	err = wallet.VerifyRequest(account, r.Method, r.URL.Path, ts, body, r.Header.Get(wallet.HeaderSignature))
	if err != nil {
		return err
	}
	return s.replay.Accept(account, ts, s.now())
}

// caller returns the account resolved by authenticate.
func caller(r *http.Request) common.Address {
	account, _ := r.Context().Value(accountKey{}).(common.Address)
	return account
}

func (s *Server) requireOracle(r *http.Request) error {
	if s.oracle == nil {
		return types.Errorf(types.ErrNotOracle, "no oracle configured")
	}
	if account := caller(r); account != *s.oracle {
		return types.Errorf(types.ErrNotOracle, "%s is not the oracle", account.Hex())
	}
	return nil
}
