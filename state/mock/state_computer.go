package mock

import (
	"bytes"
	"context"
	"sync"

	"chainbft_core/privval"
	"chainbft_core/types"
)

// 交易内容决定执行结果
var (
	DiscardPrefix = []byte("discard:")
	RetryPrefix   = []byte("retry:")
	ReconfigTx    = types.Transaction("reconfig")
)

// StateComputer 按照交易内容给出确定结果的虚拟机:
// discard:前缀的交易被丢弃, retry:前缀的交易需要重试, reconfig交易开启新的epoch,
// 同一区块中位于reconfig之后的交易全部重试, 其余交易Keep
type StateComputer struct {
	mtx   sync.Mutex
	calls int

	verifier  *types.ValidatorSet
	signer    *privval.Signer
	decoupled bool
}

type Option func(*StateComputer)

// WithSigner 对每个执行结果的vote proposal签名
func WithSigner(signer *privval.Signer, decoupledExecution bool) Option {
	return func(sc *StateComputer) {
		sc.signer = signer
		sc.decoupled = decoupledExecution
	}
}

// NewStateComputer returns a computer whose reconfigurations install verifier
// as the next validator set.
func NewStateComputer(verifier *types.ValidatorSet, options ...Option) *StateComputer {
	sc := &StateComputer{verifier: verifier}
	for _, option := range options {
		option(sc)
	}
	return sc
}

func (sc *StateComputer) Compute(ctx context.Context, block *types.Block, parent *types.ExecutedBlock) (*types.StateComputeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc.mtx.Lock()
	sc.calls++
	sc.mtx.Unlock()

	txns := block.TransactionsToExecute()
	statuses := make([]types.TransactionStatus, len(txns))
	hashes := []types.HashValue{}
	var (
		epochState *types.EpochState
		events     []types.ContractEvent
	)
	for i, tx := range txns {
		switch {
		case epochState != nil:
			statuses[i] = types.Retry()
		case bytes.HasPrefix(tx, DiscardPrefix):
			statuses[i] = types.Discard(types.DiscardMalformed)
		case bytes.HasPrefix(tx, RetryPrefix):
			statuses[i] = types.Retry()
		case bytes.Equal(tx, ReconfigTx):
			statuses[i] = types.Keep(types.KeptSuccess)
			nextEpoch := block.Epoch() + 1
			epochState = types.NewEpochState(nextEpoch, sc.verifier)
			events = append(events, types.NewEpochEvent(block.Epoch(), nextEpoch))
		default:
			statuses[i] = types.Keep(types.KeptSuccess)
		}
		if statuses[i].IsKeep() {
			hashes = append(hashes, tx.Hash())
		}
	}

	result := types.NewStateComputeResult(parent.ComputeResult().Accumulator(), hashes, statuses, epochState, events)
	if sc.signer == nil {
		return result, nil
	}
	vp := types.NewExecutedBlock(block, result).MaybeSignedVoteProposal(sc.decoupled).VoteProposal
	sig, err := sc.signer.SignVoteProposal(vp)
	if err != nil {
		return nil, err
	}
	return result.WithSignature(sig), nil
}

// Calls 返回Compute被调用的次数
func (sc *StateComputer) Calls() int {
	sc.mtx.Lock()
	defer sc.mtx.Unlock()
	return sc.calls
}
