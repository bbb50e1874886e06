package mempool

import (
	"chainbft_core/types"
)

// UnknownPeerID is the peer ID to use when running CheckTx when there is
// no peer (e.g. RPC)
const UnknownPeerID uint16 = 0

type Mempool interface {
	// CheckTx检验一个新交易是否合法，来决定能否将其加入到mempool中
	CheckTx(types.Transaction, TxInfo) error

	// ReapTxs从mempool中打包交易，打包交易的大小小于maxBytes
	// maxBytes为负数表示不限制
	ReapTxs(maxBytes int64) types.Txs

	// ReapMaxTxs从mempool中取出caller指定数量的交易
	// 如果max是负数则表示取出mempool所有的交易
	// 已经被锁定(打包进未提交区块)的交易不会被取出
	ReapMaxTxs(max int) types.Txs

	// Lock locks the mempool，更新mempool前必须lock mempool
	Lock()

	// UnLock the Mempool
	Unlock()

	// Update 将committed和discarded交易从mempool中删去, 其余被锁定的交易在
	// retried中给出, 会被释放等待重新打包
	// NOTE: 该函数只能在block被提交后才能调用
	// NOTE: caller负责Lock/Unlock
	Update(round uint64, committed, discarded, retried types.Txs) error

	// 将txs所在mempool中的交易变更状态锁住
	LockTxs(txs types.Txs) error

	// 将txs所在mempool中的交易变更状态释放
	ReleaseTxs(txs types.Txs) error

	// Flush将mempool中的所有交易和和cache清空
	Flush()

	// Size返回mempool中的交易条数
	Size() int

	// TxsBytes返回mempool所有交易的byte大小
	TxsBytes() int64
}

//--------------------------------------------------------------------------------

// PreCheckFunc is an optional filter executed before CheckTx.
type PreCheckFunc func(types.Transaction) error

// PreCheckMaxBytes checks that the size of the transaction is smaller or equal
// to the expected maxBytes.
func PreCheckMaxBytes(maxBytes int64) PreCheckFunc {
	return func(tx types.Transaction) error {
		if tx.ComputeSize() > maxBytes {
			return ErrTxTooLarge{Max: maxBytes, Actual: tx.ComputeSize()}
		}
		return nil
	}
}

// TxInfo are parameters that get passed when attempting to add a tx to the
// mempool.
type TxInfo struct {
	// SenderID is the internal peer ID used in the mempool to identify the
	// sender.
	SenderID uint16
}
