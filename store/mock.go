package store

import (
	"sync"

	"chainbft_core/state"
	"chainbft_core/types"
)

func NewMockStore() *MockStore {
	return &MockStore{}
}

// MockStore 在内存中记录提交的区块, 可以注入写入错误
type MockStore struct {
	mtx     sync.Mutex
	batches [][]state.CommittedBlock
	err     error
}

var _ state.Store = (*MockStore)(nil)

func (mock *MockStore) SaveCommitted(blocks []state.CommittedBlock) error {
	mock.mtx.Lock()
	defer mock.mtx.Unlock()
	if mock.err != nil {
		return mock.err
	}
	mock.batches = append(mock.batches, append([]state.CommittedBlock{}, blocks...))
	return nil
}

func (mock *MockStore) LastCommitted() (*types.BlockInfo, error) {
	mock.mtx.Lock()
	defer mock.mtx.Unlock()
	if len(mock.batches) == 0 {
		return nil, nil
	}
	last := mock.batches[len(mock.batches)-1]
	info := last[len(last)-1].Info
	return &info, nil
}

// SetError makes every following SaveCommitted fail with err.
func (mock *MockStore) SetError(err error) {
	mock.mtx.Lock()
	defer mock.mtx.Unlock()
	mock.err = err
}

// Batches returns every saved batch in order.
func (mock *MockStore) Batches() [][]state.CommittedBlock {
	mock.mtx.Lock()
	defer mock.mtx.Unlock()
	return append([][]state.CommittedBlock{}, mock.batches...)
}

// Committed flattens the saved batches.
func (mock *MockStore) Committed() []state.CommittedBlock {
	mock.mtx.Lock()
	defer mock.mtx.Unlock()
	res := []state.CommittedBlock{}
	for _, b := range mock.batches {
		res = append(res, b...)
	}
	return res
}
