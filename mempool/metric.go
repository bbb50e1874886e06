package mempool

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
)

func newMemMetric() *memMetric {
	return &memMetric{}
}

// memMetric 实现libs/metric.MetricItem
type memMetric struct {
	mtx           sync.RWMutex
	TxsNum        int   `json:"txs_num"`         // mempool中所有的交易总数
	PendingTxsNum int64 `json:"pending_txs_num"` // mempool中正在等待打包的交易总数
	LockedTxsNum  int64 `json:"locked_txs_num"`  // 打包进未提交区块而被锁定的交易总数
	TotalTxsBytes int64 `json:"total_txs_bytes"` // 目前mempool所有的交易的大小
}

func (mm *memMetric) JSONString() string {
	mm.mtx.RLock()
	defer mm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(mm)
	return s
}

func (mm *memMetric) MarkTxsNum(txsNum int) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.TxsNum = txsNum
}

func (mm *memMetric) MarkPendingTxsNum(pendingTxsNum int64) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.PendingTxsNum = pendingTxsNum
}

func (mm *memMetric) MarkLockedTxsNum(lockedTxsNum int64) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.LockedTxsNum = lockedTxsNum
}

func (mm *memMetric) MarkTotalTxsBytes(totalTxsBytes int64) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.TotalTxsBytes = totalTxsBytes
}
