package rpc

import (
	"errors"

	"chainbft_core/types"

	"github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

const (
	statusCommitted = "committed"
	statusCertified = "certified"
	statusExecuted  = "executed"
)

type ResultBlockTree struct {
	Root             bytes.HexBytes `json:"root"`
	HighestCertified bytes.HexBytes `json:"highest_certified"`
	Blocks           []ResultBlock  `json:"blocks"`
}

type ResultBlock struct {
	Epoch           uint64         `json:"epoch"`
	Round           uint64         `json:"round"`
	BlockID         bytes.HexBytes `json:"block_id"`
	ParentID        bytes.HexBytes `json:"parent_id"`
	ExecutedStateID bytes.HexBytes `json:"executed_state_id"`
	Version         uint64         `json:"version"`
	TxNum           int            `json:"tx_num"`
	CommittedTxNum  int            `json:"committed_tx_num"`
	Reconfiguration bool           `json:"reconfiguration"`
	Suffix          bool           `json:"reconfiguration_suffix"`
	BlockStatus     string         `json:"block_status"`
}

// BlockTree 以层级遍历的顺序返回区块树中的所有区块
func BlockTree(ctx *rpctypes.Context) (*ResultBlockTree, error) {
	tree := env.BlockTree
	if tree == nil {
		return nil, errors.New("block tree is not available")
	}
	root := tree.Root()

	blocks := []ResultBlock{}
	tree.ForEach(func(eb *types.ExecutedBlock) {
		blocks = append(blocks, newResultBlock(tree, root, eb))
	})

	return &ResultBlockTree{
		Root:             root.ID().Bytes(),
		HighestCertified: tree.HighestCertifiedBlock().ID().Bytes(),
		Blocks:           blocks,
	}, nil
}

func newResultBlock(tree *types.BlockTree, root, eb *types.ExecutedBlock) ResultBlock {
	info := eb.BlockInfo()
	res := ResultBlock{
		Epoch:           info.Epoch,
		Round:           info.Round,
		BlockID:         info.ID.Bytes(),
		ExecutedStateID: info.ExecutedStateID.Bytes(),
		Version:         info.Version,
		TxNum:           eb.Block().TransactionCount(),
		Reconfiguration: info.HasReconfiguration(),
		Suffix:          eb.IsReconfigurationSuffix(),
		BlockStatus:     statusExecuted,
	}
	if parentID, err := eb.ParentID(); err == nil {
		res.ParentID = parentID.Bytes()
	}
	// 结果不一致的区块不能提交, 数量记为-1
	if txns, err := eb.TransactionsToCommit(); err == nil {
		res.CommittedTxNum = len(txns)
	} else {
		res.CommittedTxNum = -1
	}

	if eb.ID() == root.ID() {
		res.BlockStatus = statusCommitted
	} else if _, ok := tree.GetQuorumCert(eb.ID()); ok {
		res.BlockStatus = statusCertified
	}
	return res
}

type ResultCommittedBlocks struct {
	Epoch  uint64            `json:"epoch"`
	Blocks []types.BlockInfo `json:"blocks"`
}

// CommittedBlocks 返回账本中一个epoch提交的所有区块
func CommittedBlocks(ctx *rpctypes.Context, epoch uint64) (*ResultCommittedBlocks, error) {
	if env.Ledger == nil {
		return nil, errors.New("ledger is not available")
	}
	blocks, err := env.Ledger.CommittedBlocks(epoch)
	if err != nil {
		return nil, err
	}
	return &ResultCommittedBlocks{Epoch: epoch, Blocks: blocks}, nil
}
