package state

import "chainbft_core/types"

// CommittedBlock 提交一个区块时需要持久化的内容
type CommittedBlock struct {
	Info   types.BlockInfo
	Txns   []types.Transaction
	Events []types.ContractEvent

	// 提交后的累加器, 用于重启后重建区块树的root
	FrozenSubtreeRoots []types.HashValue
	NumLeaves          uint64
}

// Store 已提交账本的持久化接口
type Store interface {
	// SaveCommitted 按顺序原子地保存一批提交的区块
	SaveCommitted(blocks []CommittedBlock) error

	// LastCommitted 返回最后提交的区块, 账本为空时返回nil
	LastCommitted() (*types.BlockInfo, error)
}
