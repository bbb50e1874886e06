package rpc

import (
	"context"
	"testing"

	"chainbft_core/libs/metric"
	mempl "chainbft_core/mempool"
	"chainbft_core/state"
	"chainbft_core/state/mock"
	"chainbft_core/store"
	"chainbft_core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
	"github.com/tendermint/tm-db/memdb"
)

// setupEnv 提交一个区块, 另有一个被认证和一个只执行的区块
func setupEnv(t *testing.T) (state.State, []*types.ExecutedBlock) {
	verifier := types.NewValidatorSet([]*types.Validator{types.NewValidator([]byte("val"), 1)})
	genesis := types.NewExecutedBlock(types.MakeGenesisBlock(1, 0, 0), types.NewEmptyStateComputeResult())
	st, err := state.MakeGenesisState("rpc_test", genesis, types.NewEpochState(1, verifier), 10)
	require.NoError(t, err)

	mem := mempl.NewListMempool(cfg.TestMempoolConfig())
	ledger := store.NewLedgerStoreWithDB(memdb.NewDB(), log.TestingLogger())
	blockExec := state.NewBlockExecutor(mock.NewStateComputer(verifier), mem, ledger, state.TestConfig())

	ms := metric.NewMetricSet()
	require.NoError(t, ms.SetMetrics("state", blockExec.Metric()))
	SetEnvironment(&Environment{Mempool: mem, BlockTree: st.BlockTree, Ledger: ledger, MetricSet: ms})

	blocks := []*types.ExecutedBlock{}
	parent := genesis
	for round := uint64(1); round <= 3; round++ {
		qc, ok := st.BlockTree.GetQuorumCert(parent.ID())
		require.True(t, ok)
		block, err := types.NewProposalBlock(types.NewPayload(types.Transaction("tx"), types.Transaction("discard:tx")), round, round, qc)
		require.NoError(t, err)
		eb, err := blockExec.ExecuteAndInsert(context.Background(), st, block)
		require.NoError(t, err)
		if round < 3 {
			vd := types.NewVoteData(eb.BlockInfo(), parent.BlockInfo())
			require.NoError(t, st.BlockTree.InsertQuorumCert(
				types.NewQuorumCert(vd, types.NewLedgerInfo(types.EmptyBlockInfo(), vd.Hash()), nil)))
		}
		blocks = append(blocks, eb)
		parent = eb
	}

	st, err = blockExec.Commit(context.Background(), st, blocks[0].BlockInfo())
	require.NoError(t, err)
	return st, blocks
}

func TestBlockTree(t *testing.T) {
	_, blocks := setupEnv(t)

	res, err := BlockTree(&rpctypes.Context{})
	require.NoError(t, err)
	assert.Equal(t, blocks[0].ID().Bytes(), []byte(res.Root))
	assert.Equal(t, blocks[1].ID().Bytes(), []byte(res.HighestCertified))
	require.Len(t, res.Blocks, 3)

	statuses := []string{}
	for _, b := range res.Blocks {
		statuses = append(statuses, b.BlockStatus)
		assert.Equal(t, 2, b.TxNum)
		assert.Equal(t, 1, b.CommittedTxNum)
	}
	assert.Equal(t, []string{statusCommitted, statusCertified, statusExecuted}, statuses)
	assert.Equal(t, blocks[0].ID().Bytes(), []byte(res.Blocks[1].ParentID))
}

func TestCommittedBlocks(t *testing.T) {
	_, blocks := setupEnv(t)

	res, err := CommittedBlocks(&rpctypes.Context{}, 1)
	require.NoError(t, err)
	require.Len(t, res.Blocks, 1)
	assert.True(t, res.Blocks[0].Equal(blocks[0].BlockInfo()))

	res, err = CommittedBlocks(&rpctypes.Context{}, 2)
	require.NoError(t, err)
	assert.Empty(t, res.Blocks)
}

func TestBroadcastTxAndMetrics(t *testing.T) {
	setupEnv(t)

	res, err := BroadcastTxAsync(&rpctypes.Context{}, types.Transaction("new-tx"))
	require.NoError(t, err)
	assert.Equal(t, types.Transaction("new-tx").Hash().Bytes(), []byte(res.Hash))
	_, err = BroadcastTxAsync(&rpctypes.Context{}, types.Transaction("new-tx"))
	assert.Error(t, err, "duplicated tx")

	unconfirmed, err := NumUnconfirmedTxs(&rpctypes.Context{})
	require.NoError(t, err)
	assert.Equal(t, 1, unconfirmed.Count)

	metrics, err := JSONMetrics(&rpctypes.Context{}, "")
	require.NoError(t, err)
	assert.Contains(t, metrics.Metrics["state"], `"committed_blocks":1`)

	metrics, err = JSONMetrics(&rpctypes.Context{}, "missing")
	require.NoError(t, err)
	assert.Empty(t, metrics.Metrics)
}
