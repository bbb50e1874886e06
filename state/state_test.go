package state_test

import (
	"testing"

	"chainbft_core/state"
	"chainbft_core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateBasic(t *testing.T) {
	assert.NoError(t, state.DefaultConfig().ValidateBasic())
	assert.NoError(t, state.TestConfig().ValidateBasic())

	cfg := state.TestConfig()
	cfg.ChainID = ""
	assert.Error(t, cfg.ValidateBasic())

	cfg = state.TestConfig()
	cfg.MaxPrunedBlocksInMem = -1
	assert.Error(t, cfg.ValidateBasic())

	cfg = state.TestConfig()
	cfg.DBBackend = "rocksdb"
	assert.Error(t, cfg.ValidateBasic())
}

func TestStateCopy(t *testing.T) {
	h := newHarness(t)
	cp := h.state.Copy()

	assert.Equal(t, h.state.ChainID, cp.ChainID)
	assert.Same(t, h.state.BlockTree, cp.BlockTree, "the tree is shared")
	assert.NotSame(t, h.state.EpochState, cp.EpochState)
	assert.True(t, h.state.EpochState.Equal(cp.EpochState))

	cp.Epoch = 7
	assert.Equal(t, uint64(1), h.state.Epoch)
}

func TestNewBranch(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()

	parent, qc := h.state.NewBranch()
	assert.Equal(t, genesis.ID(), parent.ID())
	assert.Equal(t, genesis.ID(), qc.CertifiedBlock().ID)

	b1 := h.extend(t, genesis, 1, "a")
	b2 := h.extend(t, b1, 2, "b")
	parent, qc = h.state.NewBranch()
	assert.Equal(t, b1.ID(), parent.ID(), "b2 is not certified yet")
	assert.Equal(t, b1.ID(), qc.CertifiedBlock().ID)

	// 提交b2之后root没有记录QC
	h.commit(t, b2)
	parent, qc = h.state.NewBranch()
	require.Equal(t, b2.ID(), parent.ID())
	assert.Equal(t, b2.ID(), qc.CertifiedBlock().ID)

	block, err := types.NewProposalBlock(nil, 3, 10, qc)
	require.NoError(t, err)
	_, err = h.exec.ExecuteAndInsert(ctx(), h.state, block)
	assert.NoError(t, err)
}
