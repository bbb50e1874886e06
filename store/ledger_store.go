package store

import (
	"fmt"

	"chainbft_core/state"
	"chainbft_core/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	leveldb "github.com/tendermint/tm-db/goleveldb"
	"github.com/tendermint/tm-db/memdb"
)

const (
	tableBlockInfo = "info"
	tableRecord    = "record"
	tableRound     = "round"
)

var (
	lastCommittedKey   = []byte("last_committed")
	lastAccumulatorKey = []byte("last_accumulator")
)

// committedRecord 一个提交区块中被持久化的交易与事件
type committedRecord struct {
	Txns   [][]byte              `cramberry:"1"`
	Events []types.ContractEvent `cramberry:"2"`
}

type accumulatorRecord struct {
	FrozenSubtreeRoots []types.HashValue `cramberry:"1"`
	NumLeaves          uint64            `cramberry:"2"`
}

func NewLedgerStore(name, backend, dir string, logger log.Logger) (*LedgerStore, error) {
	switch backend {
	case state.MemDBBackend:
		return NewLedgerStoreWithDB(memdb.NewDB(), logger), nil
	case state.GoLevelDBBackend:
		levelDB, err := leveldb.NewDB(name, dir)
		if err != nil {
			return nil, errors.Wrapf(err, "open ledger db %s in %s", name, dir)
		}
		return NewLedgerStoreWithDB(levelDB, logger), nil
	default:
		return nil, errors.Errorf("unsupported db_backend %s", backend)
	}
}

func NewLedgerStoreWithDB(db tmdb.DB, logger log.Logger) *LedgerStore {
	return &LedgerStore{db: db, logger: logger}
}

// LedgerStore 已提交账本, 每个区块保存BlockInfo, 提交的交易以及重配置事件
// table definition：
// info table: key=info_{blockID}; value=encoded BlockInfo
// record table: key=record_{blockID}; value=committedRecord
// round table: key=round_{epoch}_{round}; value=blockID
type LedgerStore struct {
	db tmdb.DB

	logger log.Logger
}

var _ state.Store = (*LedgerStore)(nil)

// SaveCommitted implements state.Store
func (ls *LedgerStore) SaveCommitted(blocks []state.CommittedBlock) error {
	if len(blocks) == 0 {
		return nil
	}

	batch := ls.db.NewBatch()
	defer batch.Close()

	for _, b := range blocks {
		info, err := b.Info.Encode()
		if err != nil {
			return err
		}
		txns := make([][]byte, len(b.Txns))
		for i, tx := range b.Txns {
			txns[i] = tx
		}
		record, err := cramberry.Marshal(committedRecord{Txns: txns, Events: b.Events})
		if err != nil {
			return errors.Wrapf(err, "encode record of block %v", b.Info.ID.ShortString())
		}

		id := b.Info.ID.Bytes()
		if err := batch.Set(genKey(tableBlockInfo, id), info); err != nil {
			return err
		}
		if err := batch.Set(genKey(tableRecord, id), record); err != nil {
			return err
		}
		if err := batch.Set(roundKey(b.Info.Epoch, b.Info.Round), id); err != nil {
			return err
		}
		ls.logger.Debug("save committed block", "block", b.Info, "txs", len(b.Txns), "events", len(b.Events))
	}

	lastBlock := blocks[len(blocks)-1]
	last, err := lastBlock.Info.Encode()
	if err != nil {
		return err
	}
	acc, err := cramberry.Marshal(accumulatorRecord{
		FrozenSubtreeRoots: lastBlock.FrozenSubtreeRoots,
		NumLeaves:          lastBlock.NumLeaves,
	})
	if err != nil {
		return errors.Wrap(err, "encode accumulator")
	}
	if err := batch.Set(lastCommittedKey, last); err != nil {
		return err
	}
	if err := batch.Set(lastAccumulatorKey, acc); err != nil {
		return err
	}
	return batch.WriteSync()
}

// LastCommitted implements state.Store
func (ls *LedgerStore) LastCommitted() (*types.BlockInfo, error) {
	bz, err := ls.db.Get(lastCommittedKey)
	if err != nil || bz == nil {
		return nil, err
	}
	info, err := types.DecodeBlockInfo(bz)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// LoadAccumulator 返回最后提交区块之后的累加器, 账本为空时返回nil
func (ls *LedgerStore) LoadAccumulator() (*types.InMemoryAccumulator, error) {
	bz, err := ls.db.Get(lastAccumulatorKey)
	if err != nil || bz == nil {
		return nil, err
	}
	var record accumulatorRecord
	if err := cramberry.Unmarshal(bz, &record); err != nil {
		return nil, errors.Wrap(err, "decode accumulator")
	}
	return types.NewInMemoryAccumulator(record.FrozenSubtreeRoots, record.NumLeaves)
}

// LoadBlockInfo 返回nil表示该区块没有被提交
func (ls *LedgerStore) LoadBlockInfo(id types.HashValue) (*types.BlockInfo, error) {
	bz, err := ls.db.Get(genKey(tableBlockInfo, id.Bytes()))
	if err != nil || bz == nil {
		return nil, err
	}
	info, err := types.DecodeBlockInfo(bz)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// LoadCommitted 返回一个提交区块中Keep的交易与重配置事件
func (ls *LedgerStore) LoadCommitted(id types.HashValue) ([]types.Transaction, []types.ContractEvent, error) {
	bz, err := ls.db.Get(genKey(tableRecord, id.Bytes()))
	if err != nil {
		return nil, nil, err
	}
	if bz == nil {
		return nil, nil, fmt.Errorf("block %v is not committed", id.ShortString())
	}
	var record committedRecord
	if err := cramberry.Unmarshal(bz, &record); err != nil {
		return nil, nil, errors.Wrapf(err, "decode record of block %v", id.ShortString())
	}
	txns := make([]types.Transaction, len(record.Txns))
	for i, tx := range record.Txns {
		txns[i] = tx
	}
	return txns, record.Events, nil
}

// CommittedBlocks 按照(epoch, round)顺序返回一个epoch中提交的所有区块
func (ls *LedgerStore) CommittedBlocks(epoch uint64) ([]types.BlockInfo, error) {
	ite, err := ls.db.Iterator(roundKey(epoch, 0), roundKey(epoch+1, 0))
	if err != nil {
		return nil, err
	}
	defer ite.Close()

	res := []types.BlockInfo{}
	for ; ite.Valid(); ite.Next() {
		id, err := types.HashFromBytes(ite.Value())
		if err != nil {
			return nil, err
		}
		info, err := ls.LoadBlockInfo(id)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, fmt.Errorf("round index points to missing block %v", id.ShortString())
		}
		res = append(res, *info)
	}
	return res, ite.Error()
}

func (ls *LedgerStore) Close() error {
	return ls.db.Close()
}

func genKey(table string, key []byte) []byte {
	return append([]byte(table+"_"), key...)
}

// 定长十进制, 保证迭代顺序与(epoch, round)一致
func roundKey(epoch, round uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d_%020d", tableRound, epoch, round))
}
