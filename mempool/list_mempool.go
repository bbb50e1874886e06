package mempool

import (
	"container/list"
	"crypto/sha256"
	"sync"
	"sync/atomic"

	"chainbft_core/types"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	TxKeySize = 32
)

func NewListMempool(config *cfg.MempoolConfig, options ...ListMempoolOption) *ListMempool {
	mem := &ListMempool{
		config: config,
		txs:    clist.New(),
		metric: newMemMetric(),
		logger: log.NewNopLogger(),
	}

	if config.CacheSize > 0 {
		mem.cache = newMapTxCache(config.CacheSize)
	} else {
		mem.cache = nopTxCache{}
	}

	for _, option := range options {
		option(mem)
	}

	return mem
}

// ListMempool 按照交易到达的顺序保存交易的mempool.
// 被打包进未提交区块的交易会被锁定, 区块提交后删除或释放
type ListMempool struct {
	// Atomic integers
	round       uint64 // the last round Update()'d to
	txsBytes    int64  // total size of mempool, in bytes
	lockedTxNum int64

	config *cfg.MempoolConfig

	updateMtx sync.RWMutex
	preCheck  PreCheckFunc

	txs    *clist.CList
	txsMap sync.Map

	// Keep a cache of already-seen txs.
	cache txCache

	metric *memMetric
	logger log.Logger
}

var _ Mempool = (*ListMempool)(nil)

type ListMempoolOption func(memppol *ListMempool)

func SetPreCheck(precheck PreCheckFunc) ListMempoolOption {
	return func(mem *ListMempool) {
		mem.preCheck = precheck
	}
}

func (mem *ListMempool) SetLogger(logger log.Logger) {
	mem.logger = logger
}

// Metric 返回mempool的metric, 可以加入到MetricSet中
func (mem *ListMempool) Metric() *memMetric {
	return mem.metric
}

func (mem *ListMempool) CheckTx(tx types.Transaction, txinfo TxInfo) error {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	if len(tx) == 0 {
		return ErrEmptyTx
	}
	if max := int64(mem.config.MaxTxBytes); max > 0 && tx.ComputeSize() > max {
		return ErrTxTooLarge{Max: max, Actual: tx.ComputeSize()}
	}
	if mem.preCheck != nil {
		if err := mem.preCheck(tx); err != nil {
			return err
		}
	}
	if err := mem.isFull(tx.ComputeSize()); err != nil {
		return err
	}

	// 先判断tx是否已经在mempool中
	if e, ok := mem.txsMap.Load(TxKey(tx)); ok {
		memTx := e.(*clist.CElement).Value.(*mempoolTx)
		memTx.senders.LoadOrStore(txinfo.SenderID, struct{}{})
		return ErrTxInMap
	}
	if !mem.cache.Push(tx) {
		return ErrTxInCache
	}

	memTx := &mempoolTx{
		round: atomic.LoadUint64(&mem.round),
		tx:    tx,
	}
	memTx.senders.Store(txinfo.SenderID, struct{}{})

	mem.addTx(memTx)
	mem.logger.Debug("added tx", "tx", tx.Hash().ShortString(), "sender", txinfo.SenderID, "total", mem.Size())
	mem.markMetric()

	return nil
}

func (mem *ListMempool) isFull(txSize int64) error {
	var (
		memSize  = mem.Size()
		txsBytes = mem.TxsBytes()
	)

	if (mem.config.Size > 0 && memSize >= mem.config.Size) ||
		(mem.config.MaxTxsBytes > 0 && txSize+txsBytes > mem.config.MaxTxsBytes) {
		return ErrMempoolIsFull{
			NumTxs:      memSize,
			MaxTxs:      mem.config.Size,
			TxsBytes:    txsBytes,
			MaxTxsBytes: mem.config.MaxTxsBytes,
		}
	}
	return nil
}

// ReapTxs 按照到达顺序取出未锁定的交易, 总大小不超过maxBytes
func (mem *ListMempool) ReapTxs(maxBytes int64) types.Txs {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	var totalBytes int64
	txs := types.Txs{}
	for e := mem.txs.Front(); e != nil; e = e.Next() {
		memTx := e.Value.(*mempoolTx)
		if memTx.isLocked() {
			continue
		}
		if maxBytes > -1 && totalBytes+memTx.tx.ComputeSize() > maxBytes {
			return txs
		}
		totalBytes += memTx.tx.ComputeSize()
		txs = append(txs, memTx.tx)
	}
	return txs
}

func (mem *ListMempool) ReapMaxTxs(max int) types.Txs {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	txs := types.Txs{}
	for e := mem.txs.Front(); e != nil && (max < 0 || len(txs) < max); e = e.Next() {
		memTx := e.Value.(*mempoolTx)
		if memTx.isLocked() {
			continue
		}
		txs = append(txs, memTx.tx)
	}
	return txs
}

// Lock 锁定mempool的updateMtx读写锁的写锁
func (mem *ListMempool) Lock() {
	mem.updateMtx.Lock()
}

// Unlock 释放mempool的updateMtx读写锁的写锁
func (mem *ListMempool) Unlock() {
	mem.updateMtx.Unlock()
}

// Update implements Mempool
// NOTE caller负责加锁
func (mem *ListMempool) Update(round uint64, committed, discarded, retried types.Txs) error {
	atomic.StoreUint64(&mem.round, round)

	for _, tx := range committed {
		// 已提交的交易保留在cache中, 防止重复提交
		mem.removeTx(tx)
	}
	for _, tx := range discarded {
		mem.cache.Remove(tx)
		mem.removeTx(tx)
	}
	for _, tx := range retried {
		if e, ok := mem.txsMap.Load(TxKey(tx)); ok {
			mem.unlockTx(e.(*clist.CElement).Value.(*mempoolTx))
		}
	}

	mem.logger.Debug("mempool updated",
		"round", round,
		"committed", len(committed),
		"discarded", len(discarded),
		"retried", len(retried),
		"remaining", mem.Size())
	mem.markMetric()
	return nil
}

func (mem *ListMempool) LockTxs(txs types.Txs) error {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	for _, tx := range txs {
		e, ok := mem.txsMap.Load(TxKey(tx))
		if !ok {
			return ErrTxNotInMap
		}
		memTx := e.(*clist.CElement).Value.(*mempoolTx)
		if atomic.CompareAndSwapInt32(&memTx.locked, 0, 1) {
			atomic.AddInt64(&mem.lockedTxNum, 1)
		}
	}
	mem.markMetric()
	return nil
}

func (mem *ListMempool) ReleaseTxs(txs types.Txs) error {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	for _, tx := range txs {
		e, ok := mem.txsMap.Load(TxKey(tx))
		if !ok {
			return ErrTxNotInMap
		}
		mem.unlockTx(e.(*clist.CElement).Value.(*mempoolTx))
	}
	mem.markMetric()
	return nil
}

func (mem *ListMempool) Flush() {
	mem.updateMtx.Lock()
	defer mem.updateMtx.Unlock()

	atomic.StoreInt64(&mem.txsBytes, 0)
	atomic.StoreInt64(&mem.lockedTxNum, 0)
	mem.cache.Reset()

	for e := mem.txs.Front(); e != nil; e = e.Next() {
		mem.txs.Remove(e)
		e.DetachPrev()
	}

	mem.txsMap.Range(func(key, _ interface{}) bool {
		mem.txsMap.Delete(key)
		return true
	})
	mem.markMetric()
}

func (mem *ListMempool) Size() int {
	return mem.txs.Len()
}

func (mem *ListMempool) LockedSize() int64 {
	return atomic.LoadInt64(&mem.lockedTxNum)
}

func (mem *ListMempool) TxsBytes() int64 {
	return atomic.LoadInt64(&mem.txsBytes)
}

// addTx 将tx加入到mempool的双向链表；
// 并且更新快速查询表txMap和mempool的tx总大小
func (mem *ListMempool) addTx(memTx *mempoolTx) {
	e := mem.txs.PushBack(memTx)
	mem.txsMap.Store(TxKey(memTx.tx), e)
	atomic.AddInt64(&mem.txsBytes, memTx.tx.ComputeSize())
}

// removeTx 从链表和txMap中删除交易
func (mem *ListMempool) removeTx(tx types.Transaction) {
	e, ok := mem.txsMap.Load(TxKey(tx))
	if !ok {
		return
	}
	elem := e.(*clist.CElement)
	memTx := elem.Value.(*mempoolTx)
	mem.unlockTx(memTx)
	mem.txs.Remove(elem)
	elem.DetachPrev()
	mem.txsMap.Delete(TxKey(tx))
	atomic.AddInt64(&mem.txsBytes, -tx.ComputeSize())
}

func (mem *ListMempool) unlockTx(memTx *mempoolTx) {
	if atomic.CompareAndSwapInt32(&memTx.locked, 1, 0) {
		atomic.AddInt64(&mem.lockedTxNum, -1)
	}
}

func (mem *ListMempool) markMetric() {
	locked := mem.LockedSize()
	mem.metric.MarkTxsNum(mem.Size())
	mem.metric.MarkLockedTxsNum(locked)
	mem.metric.MarkPendingTxsNum(int64(mem.Size()) - locked)
	mem.metric.MarkTotalTxsBytes(mem.TxsBytes())
}

func (mem *ListMempool) TxsWaitChan() <-chan struct{} {
	return mem.txs.WaitChan()
}

func (mem *ListMempool) TxsFront() *clist.CElement {
	return mem.txs.Front()
}

// ------------------------------

type txCache interface {
	Reset()
	Push(tx types.Transaction) bool
	Remove(tx types.Transaction)
}

// mapTxCache 固定大小的LRU cache
type mapTxCache struct {
	mtx      sync.Mutex
	size     int
	cacheMap map[[TxKeySize]byte]*list.Element
	list     *list.List
}

func newMapTxCache(cacheSize int) *mapTxCache {
	return &mapTxCache{
		size:     cacheSize,
		cacheMap: make(map[[TxKeySize]byte]*list.Element, cacheSize),
		list:     list.New(),
	}
}

func (cache *mapTxCache) Reset() {
	cache.mtx.Lock()
	cache.cacheMap = make(map[[TxKeySize]byte]*list.Element, cache.size)
	cache.list.Init()
	cache.mtx.Unlock()
}

// Push adds the given tx to the cache and returns true. It returns
// false if tx is already in the cache.
func (cache *mapTxCache) Push(tx types.Transaction) bool {
	cache.mtx.Lock()
	defer cache.mtx.Unlock()

	txHash := TxKey(tx)
	if moved, exists := cache.cacheMap[txHash]; exists {
		cache.list.MoveToBack(moved)
		return false
	}

	if cache.list.Len() >= cache.size {
		popped := cache.list.Front()
		if popped != nil {
			poppedTxHash := popped.Value.([TxKeySize]byte)
			delete(cache.cacheMap, poppedTxHash)
			cache.list.Remove(popped)
		}
	}
	e := cache.list.PushBack(txHash)
	cache.cacheMap[txHash] = e
	return true
}

func (cache *mapTxCache) Remove(tx types.Transaction) {
	cache.mtx.Lock()
	txHash := TxKey(tx)
	popped := cache.cacheMap[txHash]
	delete(cache.cacheMap, txHash)
	if popped != nil {
		cache.list.Remove(popped)
	}
	cache.mtx.Unlock()
}

type nopTxCache struct {
}

func (cache nopTxCache) Reset() {
	return
}
func (cache nopTxCache) Push(tx types.Transaction) bool {
	return true
}
func (cache nopTxCache) Remove(tx types.Transaction) {
	return
}

type mempoolTx struct {
	round  uint64
	locked int32 // 1表示已被打包进未提交的区块

	tx      types.Transaction
	senders sync.Map
}

// Round returns the round in which the tx entered the mempool
func (memTx *mempoolTx) Round() uint64 {
	return atomic.LoadUint64(&memTx.round)
}

func (memTx *mempoolTx) isLocked() bool {
	return atomic.LoadInt32(&memTx.locked) == 1
}

// ------------------------------
// TxKey is the fixed length array hash used as the key in maps.
func TxKey(tx types.Transaction) [TxKeySize]byte {
	return sha256.Sum256(tx)
}
