package mock

import (
	mempl "chainbft_core/mempool"
	"chainbft_core/types"
)

// Mempool is an empty implementation of a Mempool, useful for testing.
type Mempool struct{}

var _ mempl.Mempool = Mempool{}

func (Mempool) Lock()     {}
func (Mempool) Unlock()   {}
func (Mempool) Size() int { return 0 }
func (Mempool) CheckTx(_ types.Transaction, _ mempl.TxInfo) error {
	return nil
}
func (Mempool) ReapTxs(_ int64) types.Txs  { return types.Txs{} }
func (Mempool) ReapMaxTxs(_ int) types.Txs { return types.Txs{} }
func (Mempool) Update(
	_ uint64,
	_, _, _ types.Txs,
) error {
	return nil
}
func (Mempool) LockTxs(_ types.Txs) error    { return nil }
func (Mempool) ReleaseTxs(_ types.Txs) error { return nil }
func (Mempool) Flush()                       {}
func (Mempool) TxsBytes() int64              { return 0 }
