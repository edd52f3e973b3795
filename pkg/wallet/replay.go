package wallet

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/pkg/types"
)

// DefaultSignatureMaxAge bounds how far a request's X-Timestamp may drift
// from the server clock.
const DefaultSignatureMaxAge = 5 * time.Minute

// ReplayGuard rejects signed requests whose timestamp is outside the
// allowed window or was already used by the same account. Each account's
// timestamps act as nonces: a second request with the same value is refused
// even when its body differs.
type ReplayGuard struct {
	mu     sync.Mutex
	maxAge time.Duration
	seen   map[common.Address]map[int64]struct{}
	oldest time.Time
}

// NewReplayGuard creates a guard. A non-positive maxAge uses
// DefaultSignatureMaxAge.
func NewReplayGuard(maxAge time.Duration) *ReplayGuard {
	if maxAge <= 0 {
		maxAge = DefaultSignatureMaxAge
	}
	return &ReplayGuard{
		maxAge: maxAge,
		seen:   make(map[common.Address]map[int64]struct{}),
	}
}

// Accept records timestamp for account. It fails when the timestamp is stale,
// too far in the future, or already used.
func (g *ReplayGuard) Accept(account common.Address, timestamp int64, now time.Time) error {
	signedAt := time.UnixMilli(timestamp)
	if drift := now.Sub(signedAt); drift > g.maxAge || drift < -g.maxAge {
		SignatureChecksTotal.WithLabelValues("stale").Inc()
		return types.Errorf(types.ErrBadSignature, "request signed at %s is outside the %s window",
			signedAt.UTC().Format(time.RFC3339), g.maxAge)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.prune(now)

	used := g.seen[account]
	if used == nil {
		used = make(map[int64]struct{})
		g.seen[account] = used
	}
	if _, ok := used[timestamp]; ok {
		SignatureChecksTotal.WithLabelValues("replayed").Inc()
		return types.Errorf(types.ErrBadSignature, "%s %d already used by %s", HeaderTimestamp, timestamp, account.Hex())
	}
	used[timestamp] = struct{}{}
	return nil
}

// prune drops timestamps that can no longer pass the window check. It runs at
// most once per window.
func (g *ReplayGuard) prune(now time.Time) {
	if now.Sub(g.oldest) < g.maxAge {
		return
	}
	cutoff := now.Add(-g.maxAge).UnixMilli()
	for account, used := range g.seen {
		for ts := range used {
			if ts < cutoff {
				delete(used, ts)
			}
		}
		if len(used) == 0 {
			delete(g.seen, account)
		}
	}
	g.oldest = now
}
