package state_test

import (
	"context"
	"testing"

	mempl "chainbft_core/mempool"
	"chainbft_core/state"
	"chainbft_core/state/mock"
	"chainbft_core/store"
	"chainbft_core/types"

	"github.com/stretchr/testify/require"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
)

type harness struct {
	exec     state.BlockExecutor
	state    state.State
	mempool  *mempl.ListMempool
	store    *store.MockStore
	computer *mock.StateComputer
}

func testValidatorSet() *types.ValidatorSet {
	return types.NewValidatorSet([]*types.Validator{
		types.NewValidator([]byte("validator-0"), 10),
		types.NewValidator([]byte("validator-1"), 10),
	})
}

func newHarness(t *testing.T, options ...mock.Option) *harness {
	return newHarnessWithStore(t, store.NewMockStore(), options...)
}

func newHarnessWithStore(t *testing.T, s state.Store, options ...mock.Option) *harness {
	logger := log.NewFilter(log.TestingLogger(), log.AllowDebug())
	genesis := types.NewExecutedBlock(types.MakeGenesisBlock(1, 0, 1000), types.NewEmptyStateComputeResult())
	config := state.TestConfig()

	genState, err := state.MakeGenesisState(config.ChainID, genesis,
		types.NewEpochState(1, testValidatorSet()), config.MaxPrunedBlocksInMem)
	require.NoError(t, err)

	listMempool := mempl.NewListMempool(cfg.TestMempoolConfig())
	listMempool.SetLogger(logger)
	computer := mock.NewStateComputer(testValidatorSet(), options...)
	blockExec := state.NewBlockExecutor(computer, listMempool, s, config)
	blockExec.SetLogger(logger)

	ms, _ := s.(*store.MockStore)
	return &harness{
		exec:     blockExec,
		state:    genState,
		mempool:  listMempool,
		store:    ms,
		computer: computer,
	}
}

// certify 构造一个认证eb的QC, commit为空表示不提交任何区块
func certify(eb *types.ExecutedBlock, commit types.BlockInfo) *types.QuorumCert {
	parent := eb.BlockInfo()
	if qc := eb.QuorumCert(); qc != nil {
		parent = qc.CertifiedBlock()
	}
	vd := types.NewVoteData(eb.BlockInfo(), parent)
	return types.NewQuorumCert(vd, types.NewLedgerInfo(commit, vd.Hash()), [][]byte{[]byte("sig")})
}

func toTxs(txns ...string) types.Txs {
	res := make(types.Txs, len(txns))
	for i, tx := range txns {
		res[i] = types.Transaction(tx)
	}
	return res
}

// proposal 在parent之后生成一个未执行的区块, 必要时先认证parent
func (h *harness) proposal(t *testing.T, parent *types.ExecutedBlock, round uint64, txns ...string) *types.Block {
	qc, ok := h.state.BlockTree.GetQuorumCert(parent.ID())
	if !ok {
		qc = certify(parent, types.EmptyBlockInfo())
		require.NoError(t, h.state.BlockTree.InsertQuorumCert(qc))
	}
	var payload *types.Payload
	if len(txns) > 0 {
		payload = types.NewPayload(toTxs(txns...)...)
	}
	block, err := types.NewProposalBlock(payload, round, parent.TimestampUsecs()+1, qc)
	require.NoError(t, err)
	return block
}

func (h *harness) extend(t *testing.T, parent *types.ExecutedBlock, round uint64, txns ...string) *types.ExecutedBlock {
	eb, err := h.exec.ExecuteAndInsert(context.Background(), h.state, h.proposal(t, parent, round, txns...))
	require.NoError(t, err)
	return eb
}

func (h *harness) commit(t *testing.T, eb *types.ExecutedBlock) {
	newState, err := h.exec.Commit(context.Background(), h.state, eb.BlockInfo())
	require.NoError(t, err)
	h.state = newState
}

func (h *harness) checkTxs(t *testing.T, txns ...string) types.Txs {
	txs := toTxs(txns...)
	for _, tx := range txs {
		require.NoError(t, h.mempool.CheckTx(tx, mempl.TxInfo{SenderID: mempl.UnknownPeerID}))
	}
	return txs
}

func ctx() context.Context {
	return context.Background()
}
