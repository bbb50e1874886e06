package state_test

import (
	"context"
	"errors"
	"testing"

	mempoolmock "chainbft_core/mempool/mock"
	"chainbft_core/privval"
	"chainbft_core/state"
	"chainbft_core/state/mock"
	"chainbft_core/store"
	"chainbft_core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"
)

func TestExecuteAndCommit(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()

	b1 := h.extend(t, genesis, 1, "a", "discard:x", "retry:y")
	b2 := h.extend(t, b1, 2, "c")
	assert.Equal(t, 2, h.computer.Calls())
	assert.Equal(t, []types.TransactionStatus{
		types.Keep(types.KeptSuccess),
		types.Discard(types.DiscardMalformed),
		types.Retry(),
	}, b1.ComputeResult().ComputeStatus())
	assert.Equal(t, uint64(1), b2.ComputeResult().NumLeaves()-b1.ComputeResult().NumLeaves())

	h.commit(t, b2)

	committed := h.store.Committed()
	require.Len(t, committed, 2)
	assert.Equal(t, []types.Transaction{types.Transaction("a")}, committed[0].Txns)
	assert.Equal(t, []types.Transaction{types.Transaction("c")}, committed[1].Txns)
	assert.True(t, committed[1].Info.Equal(b2.BlockInfo()))

	assert.True(t, h.state.LastCommitted.Equal(b2.BlockInfo()))
	assert.Equal(t, b2.ID(), h.state.BlockTree.Root().ID())
	assert.NoError(t, h.state.BlockTree.CheckInvariants())

	last, err := h.store.LastCommitted()
	require.NoError(t, err)
	assert.True(t, last.Equal(b2.BlockInfo()))
}

func TestExecuteIsIdempotent(t *testing.T) {
	h := newHarness(t)
	block := h.proposal(t, h.state.BlockTree.Root(), 1, "a")

	first, err := h.exec.ExecuteAndInsert(context.Background(), h.state, block)
	require.NoError(t, err)
	second, err := h.exec.ExecuteAndInsert(context.Background(), h.state, block)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, h.computer.Calls())
}

func TestExecuteRejects(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()

	_, err := h.exec.ExecuteAndInsert(context.Background(), h.state, types.MakeGenesisBlock(1, 5, 0))
	assert.Error(t, err, "a block without parent can't be executed")

	// parent unknown to the tree
	orphanParent := types.NewExecutedBlock(types.MakeGenesisBlock(1, 3, 0), types.NewEmptyStateComputeResult())
	orphan, err := types.NewProposalBlock(nil, 4, 1, certify(orphanParent, types.EmptyBlockInfo()))
	require.NoError(t, err)
	_, err = h.exec.ExecuteAndInsert(context.Background(), h.state, orphan)
	assert.True(t, errors.Is(err, types.ErrMissingParentInTree), "got %v", err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.exec.ExecuteAndInsert(ctx, h.state, h.proposal(t, genesis, 1, "a"))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, h.computer.Calls())
}

func TestExecuteRejectsStatusMismatch(t *testing.T) {
	h := newHarness(t)
	badVM := state.StateComputerFunc(func(_ context.Context, block *types.Block, parent *types.ExecutedBlock) (*types.StateComputeResult, error) {
		return types.NewStateComputeResult(parent.ComputeResult().Accumulator(), nil,
			[]types.TransactionStatus{types.Retry()}, nil, nil), nil
	})
	blockExec := state.NewBlockExecutor(badVM, h.mempool, h.store, state.TestConfig())

	block := h.proposal(t, h.state.BlockTree.Root(), 1, "a", "b")
	_, err := blockExec.ExecuteAndInsert(context.Background(), h.state, block)
	mismatch, ok := types.IsComputeStatusMismatch(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 2, mismatch.TxnCount)
	assert.Equal(t, 1, mismatch.StatusCount)
	assert.False(t, h.state.BlockTree.BlockExists(block.ID()))
}

func TestReconfigurationSuffix(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()

	b1 := h.extend(t, genesis, 1, "a", "reconfig", "z")
	require.True(t, b1.ComputeResult().HasReconfiguration())
	assert.False(t, b1.IsReconfigurationSuffix())
	assert.Equal(t, []types.TransactionStatus{
		types.Keep(types.KeptSuccess),
		types.Keep(types.KeptSuccess),
		types.Retry(),
	}, b1.ComputeResult().ComputeStatus())

	// 重配置之后的区块不能有交易
	_, err := h.exec.ExecuteAndInsert(context.Background(), h.state, h.proposal(t, b1, 2, "late"))
	assert.True(t, errors.Is(err, state.ErrReconfigSuffixPayload), "got %v", err)

	b2 := h.extend(t, b1, 2)
	b3 := h.extend(t, b2, 3)
	assert.Equal(t, 1, h.computer.Calls(), "suffix blocks are not executed")
	assert.True(t, b2.IsReconfigurationSuffix())
	assert.True(t, b3.IsReconfigurationSuffix())
	assert.Equal(t, b1.Epoch(), b2.Epoch())
	assert.Equal(t, b1.Epoch(), b3.Epoch())
	assert.Equal(t, b1.BlockInfo().ExecutedStateID, b3.BlockInfo().ExecutedStateID)
	assert.Equal(t, b1.BlockInfo().Version, b3.BlockInfo().Version)

	h.commit(t, b3)

	committed := h.store.Committed()
	require.Len(t, committed, 3)
	assert.Equal(t, []types.Transaction{types.Transaction("a"), types.Transaction("reconfig")}, committed[0].Txns)
	require.Len(t, committed[0].Events, 1)
	assert.True(t, committed[0].Events[0].IsNewEpoch())
	for _, c := range committed[1:] {
		assert.Empty(t, c.Txns)
		assert.Empty(t, c.Events, "reconfig events are emitted once")
	}

	assert.Equal(t, uint64(2), h.state.Epoch)
	assert.True(t, h.state.EpochState.Equal(types.NewEpochState(2, testValidatorSet())))
}

func TestCommitAbortsOnStatusMismatch(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()
	b1 := h.extend(t, genesis, 1, "a")

	// 绕过执行器, 直接把结果不一致的区块放入树中
	block := h.proposal(t, b1, 2, "b", "c")
	result := types.NewStateComputeResult(b1.ComputeResult().Accumulator(),
		[]types.HashValue{types.Transaction("b").Hash()},
		[]types.TransactionStatus{types.Keep(types.KeptSuccess)}, nil, nil)
	bad, err := h.state.BlockTree.InsertBlock(types.NewExecutedBlock(block, result))
	require.NoError(t, err)

	_, err = h.exec.Commit(context.Background(), h.state, bad.BlockInfo())
	_, ok := types.IsComputeStatusMismatch(err)
	require.True(t, ok, "got %v", err)

	assert.Empty(t, h.store.Batches(), "nothing is persisted")
	assert.Equal(t, genesis.ID(), h.state.BlockTree.Root().ID())
	assert.True(t, h.state.LastCommitted.Equal(genesis.BlockInfo()))
	assert.Contains(t, h.exec.Metric().JSONString(), `"aborted_commits":1`)
}

func TestCommitStaleAndStoreFailure(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()
	b1 := h.extend(t, genesis, 1, "a")

	_, err := h.exec.Commit(context.Background(), h.state, genesis.BlockInfo())
	assert.True(t, errors.Is(err, state.ErrStaleCommit), "got %v", err)

	h.store.SetError(errors.New("disk full"))
	_, err = h.exec.Commit(context.Background(), h.state, b1.BlockInfo())
	assert.Error(t, err)
	assert.Equal(t, genesis.ID(), h.state.BlockTree.Root().ID(), "tree is not pruned when saving fails")

	h.store.SetError(nil)
	h.commit(t, b1)
	_, err = h.exec.Commit(context.Background(), h.state, b1.BlockInfo())
	assert.True(t, errors.Is(err, state.ErrStaleCommit))
}

func TestCommitRejectsDivergedResult(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()
	b1 := h.extend(t, genesis, 1, "a")

	local := b1.BlockInfo()
	diverged := types.NewBlockInfo(local.Epoch, local.Round, local.ID,
		types.Transaction("other").Hash(), local.Version+1, local.TimestampUsecs, nil)
	_, err := h.exec.Commit(context.Background(), h.state, diverged)
	assert.True(t, errors.Is(err, state.ErrCommitDiverged), "got %v", err)
	assert.Empty(t, h.store.Batches(), "nothing is persisted")
	assert.Equal(t, genesis.ID(), h.state.BlockTree.Root().ID())

	// 解耦执行时QC只认证排序
	ordered := types.NewBlockInfo(local.Epoch, local.Round, local.ID,
		types.AccumulatorPlaceholderHash, 0, local.TimestampUsecs, nil)
	h.state, err = h.exec.Commit(context.Background(), h.state, ordered)
	require.NoError(t, err)
	assert.Equal(t, b1.ID(), h.state.BlockTree.Root().ID())
}

func TestInsertQuorumCertCommits(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()
	b1 := h.extend(t, genesis, 1, "a")
	b2 := h.extend(t, b1, 2, "b")
	b3 := h.extend(t, b2, 3, "c")

	// 只认证, 不提交
	newState, err := h.exec.InsertQuorumCert(context.Background(), h.state, certify(b3, types.EmptyBlockInfo()))
	require.NoError(t, err)
	assert.Empty(t, h.store.Batches())
	assert.Equal(t, b3.ID(), newState.BlockTree.HighestCertifiedBlock().ID())

	newState, err = h.exec.InsertQuorumCert(context.Background(), newState, certify(b3, b1.BlockInfo()))
	require.NoError(t, err)
	h.state = newState
	require.Len(t, h.store.Committed(), 1)
	assert.True(t, h.state.LastCommitted.Equal(b1.BlockInfo()))
	assert.Equal(t, b1.ID(), h.state.BlockTree.Root().ID())

	// 已经提交过的commit info被忽略
	newState, err = h.exec.InsertQuorumCert(context.Background(), h.state, certify(b2, b1.BlockInfo()))
	require.NoError(t, err)
	assert.Len(t, h.store.Committed(), 1)
	assert.True(t, newState.LastCommitted.Equal(b1.BlockInfo()))

	path, err := h.state.BlockTree.PathFromRoot(b3.ID())
	require.NoError(t, err)
	assert.Equal(t, []*types.ExecutedBlock{b2, b3}, path)
}

func TestCreateProposalUpdatesMempool(t *testing.T) {
	h := newHarness(t)
	h.checkTxs(t, "a", "discard:b", "retry:c")

	block, err := h.exec.CreateProposal(h.state, 1, 2000)
	require.NoError(t, err)
	assert.Equal(t, 3, block.TransactionCount())
	assert.Equal(t, int64(3), h.mempool.LockedSize())
	assert.Empty(t, h.mempool.ReapMaxTxs(-1), "proposed txs are locked")

	eb, err := h.exec.ExecuteAndInsert(context.Background(), h.state, block)
	require.NoError(t, err)
	h.commit(t, eb)

	assert.Equal(t, 1, h.mempool.Size())
	assert.Equal(t, int64(0), h.mempool.LockedSize())
	assert.Equal(t, toTxs("retry:c"), h.mempool.ReapMaxTxs(-1))
}

func TestCreateProposalAfterReconfiguration(t *testing.T) {
	h := newHarness(t)
	b1 := h.extend(t, h.state.BlockTree.Root(), 1, "reconfig")
	_, err := h.exec.InsertQuorumCert(context.Background(), h.state, certify(b1, types.EmptyBlockInfo()))
	require.NoError(t, err)
	h.checkTxs(t, "a")

	block, err := h.exec.CreateProposal(h.state, 2, 3000)
	require.NoError(t, err)
	assert.False(t, block.HasPayload(), "only empty blocks follow a reconfiguration")
	assert.Equal(t, b1.Epoch(), block.Epoch(), "the suffix keeps the epoch of its parent")
	assert.Equal(t, int64(0), h.mempool.LockedSize())
}

func TestAbandonedBranchTxsAreReleased(t *testing.T) {
	h := newHarness(t)
	genesis := h.state.BlockTree.Root()
	txs := h.checkTxs(t, "x", "y", "z")
	require.NoError(t, h.mempool.LockTxs(txs))

	b1 := h.extend(t, genesis, 1, "x")
	fork := h.extend(t, genesis, 2, "y", "z")
	b2 := h.extend(t, b1, 3, "z")
	require.True(t, h.state.BlockTree.BlockExists(fork.ID()))

	h.commit(t, b1)

	// y回到mempool, z仍在b2中保持锁定
	assert.Equal(t, 2, h.mempool.Size())
	assert.Equal(t, int64(1), h.mempool.LockedSize())
	assert.Equal(t, toTxs("y"), h.mempool.ReapMaxTxs(-1))

	path, err := h.state.BlockTree.PathFromRoot(fork.ID())
	assert.Error(t, err)
	assert.Nil(t, path)
	assert.NoError(t, h.state.BlockTree.CheckInvariants())
	assert.Equal(t, b1.ID(), h.state.BlockTree.HighestCertifiedBlock().ID())
	assert.True(t, h.state.BlockTree.BlockExists(b2.ID()))
}

func TestSignedVoteProposals(t *testing.T) {
	signer, err := privval.GenSigner("", []byte("state_test"))
	require.NoError(t, err)
	h := newHarness(t, mock.WithSigner(signer, false))

	b1 := h.extend(t, h.state.BlockTree.Root(), 1, "a")
	msp := b1.MaybeSignedVoteProposal(false)
	require.True(t, msp.IsSigned())
	assert.NoError(t, privval.VerifyVoteProposal(signer.PubKeyBytes(), msp))

	vd, err := msp.VoteProposal.GenVoteData()
	require.NoError(t, err)
	assert.True(t, vd.Proposed.Equal(b1.BlockInfo()))
}

func TestCommitToLedgerStore(t *testing.T) {
	ls := store.NewLedgerStoreWithDB(memdb.NewDB(), log.TestingLogger())
	h := newHarnessWithStore(t, ls)
	genesis := h.state.BlockTree.Root()

	b1 := h.extend(t, genesis, 1, "a", "retry:b")
	b2 := h.extend(t, b1, 2, "reconfig")
	h.commit(t, b2)

	last, err := ls.LastCommitted()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(b2.BlockInfo()))
	assert.True(t, last.HasReconfiguration())

	txns, _, err := ls.LoadCommitted(b1.ID())
	require.NoError(t, err)
	assert.Equal(t, []types.Transaction{types.Transaction("a")}, txns)
	_, events, err := ls.LoadCommitted(b2.ID())
	require.NoError(t, err)
	assert.Len(t, events, 1)

	blocks, err := ls.CommittedBlocks(1)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	acc, err := ls.LoadAccumulator()
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, b2.BlockInfo().ExecutedStateID, acc.RootHash())
	assert.Equal(t, b2.BlockInfo().Version, acc.Version())
}

func TestMetrics(t *testing.T) {
	h := newHarness(t)
	b1 := h.extend(t, h.state.BlockTree.Root(), 1, "a")
	h.commit(t, b1)

	js := h.exec.Metric().JSONString()
	assert.Contains(t, js, `"executed_blocks":1`)
	assert.Contains(t, js, `"committed_blocks":1`)
	assert.Contains(t, js, `"committed_round":1`)
}

// 不依赖mempool: 空的mempool只产生空区块, 外部提交的区块照常执行和提交
func TestExecutorWithNopMempool(t *testing.T) {
	config := state.TestConfig()
	genesis := types.NewExecutedBlock(types.MakeGenesisBlock(1, 0, 0), types.NewEmptyStateComputeResult())
	st, err := state.MakeGenesisState(config.ChainID, genesis, types.NewEpochState(1, testValidatorSet()), 0)
	require.NoError(t, err)

	ms := store.NewMockStore()
	exec := state.NewBlockExecutor(mock.NewStateComputer(testValidatorSet()), mempoolmock.Mempool{}, ms, config)

	block, err := exec.CreateProposal(st, 1, 1)
	require.NoError(t, err)
	assert.False(t, block.HasPayload())

	qc := types.CertificateForGenesis(genesis.BlockInfo())
	withTxs, err := types.NewProposalBlock(types.NewPayload(toTxs("a", "b")...), 2, 2, qc)
	require.NoError(t, err)
	eb, err := exec.ExecuteAndInsert(ctx(), st, withTxs)
	require.NoError(t, err)

	st, err = exec.Commit(ctx(), st, eb.BlockInfo())
	require.NoError(t, err)
	assert.True(t, st.LastCommitted.Equal(eb.BlockInfo()))
	require.Len(t, ms.Committed(), 1)
	assert.Len(t, ms.Committed()[0].Txns, 2)
}
