package state

import (
	"context"
	"time"

	"chainbft_core/libs/metric"
	"chainbft_core/mempool"
	"chainbft_core/types"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// StateComputer 执行区块payload的虚拟机. parent为已经执行过的父区块,
// 返回的结果中ComputeStatus必须与payload中的交易一一对应
type StateComputer interface {
	Compute(ctx context.Context, block *types.Block, parent *types.ExecutedBlock) (*types.StateComputeResult, error)
}

// StateComputerFunc adapts a function to the StateComputer interface.
type StateComputerFunc func(ctx context.Context, block *types.Block, parent *types.ExecutedBlock) (*types.StateComputeResult, error)

func (f StateComputerFunc) Compute(ctx context.Context, block *types.Block, parent *types.ExecutedBlock) (*types.StateComputeResult, error) {
	return f(ctx, block, parent)
}

type BlockExecutor interface {
	// CreateProposal 从mempool按照交易到达的顺序打包交易, 扩展最高的被认证区块.
	// 被打包的交易在mempool中被锁定
	CreateProposal(state State, round, timestampUsecs uint64) (*types.Block, error)

	// ExecuteAndInsert 执行一个区块并把结果加入区块树
	ExecuteAndInsert(ctx context.Context, state State, block *types.Block) (*types.ExecutedBlock, error)

	// InsertQuorumCert 记录一个QC, 如果QC提交了新的区块则执行提交
	InsertQuorumCert(ctx context.Context, state State, qc *types.QuorumCert) (State, error)

	// Commit 提交从root到commitInfo的所有区块, 返回新的state
	Commit(ctx context.Context, state State, commitInfo types.BlockInfo) (State, error)

	Metric() metric.MetricItem

	SetLogger(logger log.Logger)
}

// BlockExecutorOption sets an optional parameter on the blockExecutor.
type BlockExecutorOption func(*blockExecutor)

// BlockExecutorWithMetrics sets the metrics.
func BlockExecutorWithMetrics(metrics *Metrics) BlockExecutorOption {
	return func(exec *blockExecutor) {
		exec.metrics = metrics
	}
}

func NewBlockExecutor(
	computer StateComputer,
	mempool mempool.Mempool,
	store Store,
	config *Config,
	options ...BlockExecutorOption,
) BlockExecutor {
	blockexec := &blockExecutor{
		computer:   computer,
		mempool:    mempool,
		store:      store,
		config:     config,
		metrics:    NopMetrics(),
		treeMetric: newTreeMetric(),
		logger:     log.NewNopLogger(),
	}

	for _, option := range options {
		option(blockexec)
	}

	return blockexec
}

type blockExecutor struct {
	computer StateComputer
	mempool  mempool.Mempool
	store    Store
	config   *Config

	metrics    *Metrics
	treeMetric *treeMetric

	logger log.Logger
}

// SetLogger implements BlockExecutor
func (exec *blockExecutor) SetLogger(logger log.Logger) {
	exec.logger = logger
}

// Metric implements BlockExecutor
func (exec *blockExecutor) Metric() metric.MetricItem {
	return exec.treeMetric
}

// CreateProposal implements BlockExecutor
// 父区块带有重配置时只能提出空区块
func (exec *blockExecutor) CreateProposal(state State, round, timestampUsecs uint64) (*types.Block, error) {
	parent, qc := state.NewBranch()

	var payload *types.Payload
	if !parent.ComputeResult().HasReconfiguration() {
		txs := exec.mempool.ReapMaxTxs(exec.config.MaxBlockTxs)
		if len(txs) > 0 {
			if err := exec.mempool.LockTxs(txs); err != nil {
				return nil, errors.Wrap(err, "lock proposed txs")
			}
			payload = types.NewPayload(txs...)
		}
	}

	block, err := types.NewProposalBlock(payload, round, timestampUsecs, qc)
	if err != nil {
		return nil, ErrInvalidBlock(err)
	}
	exec.logger.Debug("create proposal", "block", block, "parent", parent.ID().ShortString())
	return block, nil
}

// ExecuteAndInsert implements BlockExecutor
func (exec *blockExecutor) ExecuteAndInsert(ctx context.Context, state State, block *types.Block) (*types.ExecutedBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if existing, err := state.BlockTree.GetBlock(block.ID()); err == nil {
		return existing, nil
	}

	parentID, ok := block.ParentID()
	if !ok {
		return nil, ErrInvalidBlock(errors.Errorf("block %v has no parent to execute on", block.ID().ShortString()))
	}
	parent, err := state.BlockTree.GetBlock(parentID)
	if err != nil {
		return nil, errors.Wrapf(types.ErrMissingParentInTree, "block %v, parent %v",
			block.ID().ShortString(), parentID.ShortString())
	}
	if block.Epoch() != parent.Epoch() {
		return nil, errors.Wrapf(ErrEpochMismatch, "block %v epoch %d, parent epoch %d",
			block.ID().ShortString(), block.Epoch(), parent.Epoch())
	}

	var result *types.StateComputeResult
	if parent.ComputeResult().HasReconfiguration() {
		// 重配置之后的区块不执行, 沿用父区块的状态
		if block.TransactionCount() > 0 {
			return nil, errors.Wrapf(ErrReconfigSuffixPayload, "block %v carries %d txs",
				block.ID().ShortString(), block.TransactionCount())
		}
		result = types.NewReconfigurationSuffixResult(parent.ComputeResult())
		exec.treeMetric.suffixBlocks.Inc(1)
	} else {
		start := time.Now()
		result, err = exec.computer.Compute(ctx, block, parent)
		if err != nil {
			return nil, ErrExecution{BlockID: block.ID(), Err: err}
		}
		exec.metrics.BlockExecutionTime.Observe(time.Since(start).Seconds())

		if len(result.ComputeStatus()) != block.TransactionCount() {
			return nil, ErrExecution{BlockID: block.ID(), Err: &types.ComputeStatusMismatchError{
				BlockID:     block.ID(),
				TxnCount:    block.TransactionCount(),
				StatusCount: len(result.ComputeStatus()),
			}}
		}
	}

	eb, err := state.BlockTree.InsertBlock(types.NewExecutedBlock(block, result))
	if err != nil {
		return nil, ErrInvalidBlock(err)
	}

	exec.treeMetric.executedBlocks.Inc(1)
	exec.treeMetric.markTree(state)
	exec.logger.Debug("executed block",
		"block", eb,
		"state", result.RootHash().ShortString(),
		"version", result.Version(),
		"suffix", eb.IsReconfigurationSuffix())
	return eb, nil
}

// InsertQuorumCert implements BlockExecutor
func (exec *blockExecutor) InsertQuorumCert(ctx context.Context, state State, qc *types.QuorumCert) (State, error) {
	if err := state.BlockTree.InsertQuorumCert(qc); err != nil {
		return state, err
	}
	if qc.CommitsBlock() && qc.CommitInfo().Round > state.LastCommitted.Round {
		return exec.Commit(ctx, state, qc.CommitInfo())
	}
	return state, nil
}

// Commit implements BlockExecutor
// 按照从root开始的顺序提交多个区块. 任何一个区块的执行结果与交易数量不一致时,
// 整批提交中止, 不持久化任何内容
func (exec *blockExecutor) Commit(ctx context.Context, state State, commitInfo types.BlockInfo) (State, error) {
	if err := ctx.Err(); err != nil {
		return state, err
	}
	if commitInfo.Round <= state.LastCommitted.Round {
		return state, errors.Wrapf(ErrStaleCommit, "commit round %d, committed round %d",
			commitInfo.Round, state.LastCommitted.Round)
	}

	blocksToCommit, err := state.BlockTree.PathFromRoot(commitInfo.ID)
	if err != nil {
		return state, errors.Wrapf(err, "commit %v", commitInfo.ID.ShortString())
	}
	if len(blocksToCommit) == 0 {
		return state, errors.Wrapf(ErrStaleCommit, "commit %v", commitInfo.ID.ShortString())
	}
	if err := checkCertifiedResult(blocksToCommit[len(blocksToCommit)-1].BlockInfo(), commitInfo); err != nil {
		exec.treeMetric.abortedCommits.Inc(1)
		exec.logger.Error("abort commit", "commit_info", commitInfo, "err", err)
		return state, err
	}

	batch := make([]CommittedBlock, 0, len(blocksToCommit))
	committedIDs := make(map[types.HashValue]struct{}, len(blocksToCommit))
	var committed, discarded, retried types.Txs
	for idx, eb := range blocksToCommit {
		txns, err := eb.TransactionsToCommit()
		if err != nil {
			exec.treeMetric.abortedCommits.Inc(1)
			exec.logger.Error("abort commit", "block", eb, "idx", idx, "err", err)
			return state, err
		}
		d, r := failedTxs(eb)
		discarded = append(discarded, d...)
		retried = append(retried, r...)
		committed = append(committed, txns...)
		committedIDs[eb.ID()] = struct{}{}

		batch = append(batch, CommittedBlock{
			Info:               eb.BlockInfo(),
			Txns:               txns,
			Events:             eb.ReconfigEvents(),
			FrozenSubtreeRoots: eb.ComputeResult().FrozenSubtreeRoots(),
			NumLeaves:          eb.ComputeResult().NumLeaves(),
		})
		exec.logger.Debug("commit block", "block", eb, "idx", idx, "txs", len(txns))
	}

	if err := exec.store.SaveCommitted(batch); err != nil {
		return state, errors.Wrap(err, "save committed blocks")
	}

	// 剪掉不在新root子树中的分支, 其中未提交的交易重新释放
	last := blocksToCommit[len(blocksToCommit)-1]
	oldRootID := state.BlockTree.Root().ID()
	pruned := state.BlockTree.FindBlocksToPrune(last.ID())
	abandoned := types.Txs{}
	for _, id := range pruned {
		if _, ok := committedIDs[id]; ok || id == oldRootID {
			continue
		}
		if eb, err := state.BlockTree.GetBlock(id); err == nil {
			abandoned = append(abandoned, eb.Block().TransactionsToExecute()...)
		}
	}
	if err := state.BlockTree.ProcessPrunedBlocks(last.ID(), pruned); err != nil {
		return state, errors.Wrap(err, "prune block tree")
	}
	retried = append(retried, exec.notInTree(state, abandoned)...)

	exec.mempool.Lock()
	err = exec.mempool.Update(commitInfo.Round, committed, discarded, retried)
	exec.mempool.Unlock()
	if err != nil {
		return state, errors.Wrap(err, "update mempool")
	}

	newState := state.Copy()
	newState.LastCommitted = last.BlockInfo()
	newState.LastCommitTime = time.Now()
	for _, eb := range blocksToCommit {
		if es := eb.ComputeResult().EpochState(); es != nil && es.Epoch > newState.Epoch {
			newState.Epoch = es.Epoch
			newState.EpochState = es.Copy()
			exec.logger.Info("new epoch", "epoch", es.Epoch, "block", eb)
		}
	}

	exec.metrics.CommittedBlocks.Add(float64(len(blocksToCommit)))
	exec.metrics.CommittedTxs.Add(float64(len(committed)))
	exec.metrics.DiscardedTxs.Add(float64(len(discarded)))
	exec.metrics.RetriedTxs.Add(float64(len(retried)))
	exec.metrics.CommittedRound.Set(float64(newState.LastCommitted.Round))
	exec.metrics.Epoch.Set(float64(newState.Epoch))
	exec.treeMetric.committedBlocks.Inc(int64(len(blocksToCommit)))
	exec.treeMetric.committedRound.Update(int64(newState.LastCommitted.Round))
	exec.treeMetric.commitBatch.Update(int64(len(blocksToCommit)))
	exec.treeMetric.markTree(newState)

	exec.logger.Info("committed blocks",
		"blocks", len(blocksToCommit),
		"txs", len(committed),
		"round", newState.LastCommitted.Round,
		"state", newState.LastCommitted.ExecutedStateID.ShortString())
	return newState, nil
}

// failedTxs 返回区块中被丢弃和需要重试的交易. 重配置之后的区块不执行任何交易,
// 全部重试
func failedTxs(eb *types.ExecutedBlock) (discarded, retried types.Txs) {
	txns := eb.Block().TransactionsToExecute()
	if eb.IsReconfigurationSuffix() {
		return nil, txns
	}
	statuses := eb.ComputeResult().ComputeStatus()
	for i, tx := range txns {
		switch {
		case statuses[i].IsDiscard():
			discarded = append(discarded, tx)
		case statuses[i].IsRetry():
			retried = append(retried, tx)
		}
	}
	return discarded, retried
}

// notInTree 过滤掉仍被树中某个区块包含的交易
func (exec *blockExecutor) notInTree(state State, txs types.Txs) types.Txs {
	if len(txs) == 0 {
		return nil
	}
	live := make(map[types.HashValue]struct{})
	state.BlockTree.ForEach(func(eb *types.ExecutedBlock) {
		for _, tx := range eb.Block().TransactionsToExecute() {
			live[tx.Hash()] = struct{}{}
		}
	})
	res := types.Txs{}
	for _, tx := range txs {
		if _, ok := live[tx.Hash()]; !ok {
			res = append(res, tx)
		}
	}
	return res
}

// checkCertifiedResult 比较本地执行结果与QC中的提交信息. 解耦执行时投票不包含
// 执行结果, 此时只比较排序部分
func checkCertifiedResult(local, certified types.BlockInfo) error {
	if local.Epoch != certified.Epoch || local.Round != certified.Round {
		return errors.Wrapf(ErrCommitDiverged, "block %v at (%d, %d), certified at (%d, %d)",
			local.ID.ShortString(), local.Epoch, local.Round, certified.Epoch, certified.Round)
	}
	if certified.ExecutedStateID == types.AccumulatorPlaceholderHash {
		return nil
	}
	if local.ExecutedStateID != certified.ExecutedStateID || local.Version != certified.Version {
		return errors.Wrapf(ErrCommitDiverged, "block %v state %v version %d, certified state %v version %d",
			local.ID.ShortString(), local.ExecutedStateID.ShortString(), local.Version,
			certified.ExecutedStateID.ShortString(), certified.Version)
	}
	return nil
}
