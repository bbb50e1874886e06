package store

import (
	"testing"

	"chainbft_core/state"
	"chainbft_core/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"
)

func committedBlock(epoch, round uint64, txns ...string) state.CommittedBlock {
	id := types.Sum([]byte{byte(epoch), byte(round)})
	info := types.NewBlockInfo(epoch, round, id, types.Sum(id.Bytes()), round*10, 1000+round, nil)
	txs := make([]types.Transaction, len(txns))
	for i, tx := range txns {
		txs[i] = types.Transaction(tx)
	}
	return state.CommittedBlock{Info: info, Txns: txs, Events: []types.ContractEvent{}}
}

func TestLedgerStoreSaveAndLoad(t *testing.T) {
	ls := NewLedgerStoreWithDB(memdb.NewDB(), log.TestingLogger())
	defer ls.Close()

	last, err := ls.LastCommitted()
	require.NoError(t, err)
	assert.Nil(t, last, "empty ledger")

	b1 := committedBlock(1, 1, "a", "b")
	b2 := committedBlock(1, 2)
	b2.Info.NextEpochState = types.NewEpochState(2, types.NewValidatorSet([]*types.Validator{
		types.NewValidator([]byte("pubkey"), 10),
	}))
	b2.Events = []types.ContractEvent{types.NewEpochEvent(0, 2)}
	require.NoError(t, ls.SaveCommitted([]state.CommittedBlock{b1, b2}))

	last, err = ls.LastCommitted()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, b2.Info.Equal(*last))
	assert.True(t, last.HasReconfiguration())

	info, err := ls.LoadBlockInfo(b1.Info.ID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, b1.Info.Equal(*info))

	txns, events, err := ls.LoadCommitted(b1.Info.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.Transaction{types.Transaction("a"), types.Transaction("b")}, txns)
	assert.Empty(t, events)

	_, events, err = ls.LoadCommitted(b2.Info.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsNewEpoch())

	missing, err := ls.LoadBlockInfo(types.Sum([]byte("missing")))
	assert.NoError(t, err)
	assert.Nil(t, missing)
	_, _, err = ls.LoadCommitted(types.Sum([]byte("missing")))
	assert.Error(t, err)
}

func TestLedgerStoreCommittedBlocksInOrder(t *testing.T) {
	ls := NewLedgerStoreWithDB(memdb.NewDB(), log.TestingLogger())

	require.NoError(t, ls.SaveCommitted([]state.CommittedBlock{committedBlock(1, 2), committedBlock(1, 11)}))
	require.NoError(t, ls.SaveCommitted([]state.CommittedBlock{committedBlock(1, 12), committedBlock(2, 13)}))
	require.NoError(t, ls.SaveCommitted(nil))

	blocks, err := ls.CommittedBlocks(1)
	require.NoError(t, err)
	rounds := []uint64{}
	for _, b := range blocks {
		rounds = append(rounds, b.Round)
	}
	assert.Equal(t, []uint64{2, 11, 12}, rounds)

	blocks, err = ls.CommittedBlocks(2)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, uint64(13), blocks[0].Round)

	last, err := ls.LastCommitted()
	require.NoError(t, err)
	assert.Equal(t, uint64(13), last.Round)
}

func TestNewLedgerStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	ls, err := NewLedgerStore("ledger", state.GoLevelDBBackend, dir, log.TestingLogger())
	require.NoError(t, err)
	require.NoError(t, ls.SaveCommitted([]state.CommittedBlock{committedBlock(1, 1, "tx")}))
	require.NoError(t, ls.Close())

	reopened, err := NewLedgerStore("ledger", state.GoLevelDBBackend, dir, log.TestingLogger())
	require.NoError(t, err)
	defer reopened.Close()
	last, err := reopened.LastCommitted()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, uint64(1), last.Round)
}

func TestNewLedgerStoreUnsupportedBackend(t *testing.T) {
	_, err := NewLedgerStore("ledger", "boltdb", t.TempDir(), log.TestingLogger())
	assert.Error(t, err)

	ls, err := NewLedgerStore("ledger", state.MemDBBackend, "", log.TestingLogger())
	require.NoError(t, err)
	defer ls.Close()
	last, err := ls.LastCommitted()
	require.NoError(t, err)
	assert.Nil(t, last)
}
