package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-sync/internal/models"
	"github.com/wallet-sync/internal/types"
)

func TestPlanEVMWindows(t *testing.T) {
	p := New()

	first := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC)
	wallet := models.NewWallet("0xAbC0000000000000000000000000000000000001", types.ChainEthereum)
	wallet.FirstActivityAt = &first

	plan, err := p.Plan(wallet, 10, now)
	require.NoError(t, err)
	require.Len(t, plan.Chunks, 10)

	// contiguous, non-overlapping, union covers the full span
	assert.True(t, plan.Chunks[0].FromTime.Equal(first))
	assert.True(t, plan.Chunks[len(plan.Chunks)-1].ToTime.Equal(now))
	for i := 1; i < len(plan.Chunks); i++ {
		assert.True(t, plan.Chunks[i].FromTime.Equal(plan.Chunks[i-1].ToTime),
			"chunk %d does not start where chunk %d ends", i, i-1)
	}

	// priorities strictly increase and stay below the live path
	for i, c := range plan.Chunks {
		assert.Less(t, c.Priority, LivePriority)
		if i > 0 {
			assert.Greater(t, c.Priority, plan.Chunks[i-1].Priority)
		}
	}

	for _, c := range plan.Chunks {
		assert.False(t, c.Unbounded)
		assert.Equal(t, wallet.Address, c.WalletAddress)
		assert.Equal(t, types.ChunkQueued, c.Status)
		assert.NotEmpty(t, c.ID)
	}
}

func TestPlanEVMDefaultsToGenesis(t *testing.T) {
	p := New()

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	wallet := models.NewWallet("0xAbC0000000000000000000000000000000000002", types.ChainPolygon)

	plan, err := p.Plan(wallet, 4, now)
	require.NoError(t, err)
	require.Len(t, plan.Chunks, 4)
	assert.True(t, plan.Chunks[0].FromTime.Before(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, plan.Chunks[3].ToTime.Equal(now))
}

func TestPlanUnboundedEcosystems(t *testing.T) {
	p := New()
	now := time.Now().UTC()

	for _, chain := range []types.ChainID{types.ChainBitcoin, types.ChainSolana} {
		wallet := models.NewWallet("addr-"+string(chain), chain)
		plan, err := p.Plan(wallet, 10, now)
		require.NoError(t, err, "chain %s", chain)
		require.Len(t, plan.Chunks, 1)

		c := plan.Chunks[0]
		assert.True(t, c.Unbounded)
		assert.True(t, c.FromTime.IsZero())
		assert.True(t, c.ToTime.IsZero())
		assert.Less(t, c.Priority, LivePriority)
	}
}

func TestPlanUnsupportedChain(t *testing.T) {
	p := New()
	wallet := models.NewWallet("addr", types.ChainID("dogecoin"))

	_, err := p.Plan(wallet, 10, time.Now())
	require.Error(t, err)
}
