package rpc

import rpc "github.com/tendermint/tendermint/rpc/jsonrpc/server"

var Routes = map[string]*rpc.RPCFunc{
	"broadcast_tx":        rpc.NewRPCFunc(BroadcastTxAsync, "tx"),
	"num_unconfirmed_txs": rpc.NewRPCFunc(NumUnconfirmedTxs, ""),
	"block_tree":          rpc.NewRPCFunc(BlockTree, ""),
	"committed_blocks":    rpc.NewRPCFunc(CommittedBlocks, "epoch"),
	"metrics":             rpc.NewRPCFunc(JSONMetrics, "label"),
}
