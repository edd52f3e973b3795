package wallet

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/bangr-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayGuard(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	alice := common.HexToAddress("0x0000000000000000000000000000000000a11ce0")
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	tests := []struct {
		name    string
		account common.Address
		at      time.Time
		wantErr bool
	}{
		{name: "fresh", account: alice, at: now},
		{name: "same-timestamp-replayed", account: alice, at: now, wantErr: true},
		{name: "same-timestamp-other-account", account: bob, at: now},
		{name: "next-millisecond", account: alice, at: now.Add(time.Millisecond)},
		{name: "slightly-old", account: alice, at: now.Add(-time.Minute)},
		{name: "stale", account: alice, at: now.Add(-DefaultSignatureMaxAge - time.Second), wantErr: true},
		{name: "from-the-future", account: alice, at: now.Add(DefaultSignatureMaxAge + time.Second), wantErr: true},
	}

	g := NewReplayGuard(0)
	for _, tt := range tests {
		err := g.Accept(tt.account, tt.at.UnixMilli(), now)
		if tt.wantErr {
			require.ErrorIs(t, err, types.ErrBadSignature, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
	}
}

func TestReplayGuardPrunesOutsideWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	alice := common.HexToAddress("0x0000000000000000000000000000000000a11ce0")

	g := NewReplayGuard(time.Minute)
	require.NoError(t, g.Accept(alice, now.UnixMilli(), now))

	later := now.Add(2 * time.Minute)
	require.NoError(t, g.Accept(alice, later.UnixMilli(), later))

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Len(t, g.seen[alice], 1)
}
