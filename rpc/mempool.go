package rpc

import (
	meml "chainbft_core/mempool"
	"chainbft_core/types"

	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

// BroadcastTxAsync 检验交易并加入mempool, 不等待交易被提交
func BroadcastTxAsync(ctx *rpctypes.Context, tx types.Transaction) (*ctypes.ResultBroadcastTx, error) {
	if err := env.Mempool.CheckTx(tx, meml.TxInfo{SenderID: meml.UnknownPeerID}); err != nil {
		return nil, err
	}
	return &ctypes.ResultBroadcastTx{Hash: tx.Hash().Bytes()}, nil
}

type ResultUnconfirmedTxs struct {
	Count      int   `json:"n_txs"`
	Total      int   `json:"total"`
	TotalBytes int64 `json:"total_bytes"`
}

func NumUnconfirmedTxs(ctx *rpctypes.Context) (*ResultUnconfirmedTxs, error) {
	return &ResultUnconfirmedTxs{
		Count:      env.Mempool.Size(),
		Total:      env.Mempool.Size(),
		TotalBytes: env.Mempool.TxsBytes(),
	}, nil
}
