package rpc

import (
	"chainbft_core/libs/metric"
	"chainbft_core/mempool"
	"chainbft_core/store"
	"chainbft_core/types"
)

var env *Environment

func SetEnvironment(e *Environment) {
	env = e
}

type Environment struct {
	Mempool   mempool.Mempool
	BlockTree *types.BlockTree
	Ledger    *store.LedgerStore

	MetricSet *metric.MetricSet
}
