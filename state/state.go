package state

import (
	"fmt"
	"time"

	"chainbft_core/types"
)

// MakeGenesisState 以一个已提交的根区块初始化状态, 根区块由rootQC认证
func MakeGenesisState(
	chainID string,
	root *types.ExecutedBlock,
	epochState *types.EpochState,
	maxPrunedBlocksInMem int,
) (State, error) {
	tree, err := types.NewBlockTree(root, types.CertificateForGenesis(root.BlockInfo()), maxPrunedBlocksInMem)
	if err != nil {
		return State{}, err
	}
	return State{
		ChainID:       chainID,
		Epoch:         root.Epoch(),
		EpochState:    epochState.Copy(),
		LastCommitted: root.BlockInfo(),
		BlockTree:     tree,
	}, nil
}

// State 最后提交区块的信息以及推测执行的区块树.
// BlockTree在所有副本之间共享, 其余字段在提交时替换
type State struct {
	// 初始设定值 const value
	ChainID string

	// 当前epoch以及它的验证者集合
	Epoch      uint64
	EpochState *types.EpochState

	// 最后提交的区块的信息
	LastCommitted  types.BlockInfo
	LastCommitTime time.Time // 提交的时间 - 物理时间

	// block tree - 根节点为最后提交的区块
	BlockTree *types.BlockTree
}

// 返回当前state的拷贝副本, BlockTree除外
func (state *State) Copy() State {
	return State{
		ChainID:        state.ChainID,
		Epoch:          state.Epoch,
		EpochState:     state.EpochState.Copy(),
		LastCommitted:  state.LastCommitted,
		LastCommitTime: state.LastCommitTime,
		BlockTree:      state.BlockTree,
	}
}

// NewBranch 新区块应该follow的区块, 即最高的被认证区块
func (state *State) NewBranch() (*types.ExecutedBlock, *types.QuorumCert) {
	parent := state.BlockTree.HighestCertifiedBlock()
	if qc, ok := state.BlockTree.GetQuorumCert(parent.ID()); ok {
		return parent, qc
	}
	// 提交后root的QC可能没有被记录
	return parent, types.CertificateForGenesis(parent.BlockInfo())
}

func (state *State) String() string {
	return fmt.Sprintf("State{%s epoch:%d committed:%v}",
		state.ChainID, state.Epoch, state.LastCommitted)
}
