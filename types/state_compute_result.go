package types

import "fmt"

// StateComputeResult 执行一个区块的payload得到的结果, 创建之后不再修改.
//
// ComputeStatus与payload中的交易一一对应; TransactionInfoHashes只包含Keep的交易,
// 它们被追加到父区块的累加器上得到RootHash.
type StateComputeResult struct {
	rootHash                 HashValue
	frozenSubtreeRoots       []HashValue
	numLeaves                uint64
	parentFrozenSubtreeRoots []HashValue
	parentNumLeaves          uint64
	epochState               *EpochState
	computeStatus            []TransactionStatus
	transactionInfoHashes    []HashValue
	reconfigEvents           []ContractEvent
	signature                []byte
}

// NewStateComputeResult extends parent with txnInfoHashes.
func NewStateComputeResult(
	parent *InMemoryAccumulator,
	txnInfoHashes []HashValue,
	computeStatus []TransactionStatus,
	epochState *EpochState,
	reconfigEvents []ContractEvent,
) *StateComputeResult {
	acc := parent.Append(txnInfoHashes)
	return &StateComputeResult{
		rootHash:                 acc.RootHash(),
		frozenSubtreeRoots:       acc.FrozenSubtreeRoots(),
		numLeaves:                acc.NumLeaves(),
		parentFrozenSubtreeRoots: parent.FrozenSubtreeRoots(),
		parentNumLeaves:          parent.NumLeaves(),
		epochState:               epochState.Copy(),
		computeStatus:            append([]TransactionStatus{}, computeStatus...),
		transactionInfoHashes:    append([]HashValue{}, txnInfoHashes...),
		reconfigEvents:           append([]ContractEvent{}, reconfigEvents...),
	}
}

// NewEmptyStateComputeResult is the result of a root block on an empty ledger.
func NewEmptyStateComputeResult() *StateComputeResult {
	return &StateComputeResult{rootHash: AccumulatorPlaceholderHash}
}

// NewRootStateComputeResult describes an already committed ledger state, used
// as the root of the tree after a restart.
func NewRootStateComputeResult(acc *InMemoryAccumulator, epochState *EpochState) *StateComputeResult {
	return &StateComputeResult{
		rootHash:                 acc.RootHash(),
		frozenSubtreeRoots:       acc.FrozenSubtreeRoots(),
		numLeaves:                acc.NumLeaves(),
		parentFrozenSubtreeRoots: acc.FrozenSubtreeRoots(),
		parentNumLeaves:          acc.NumLeaves(),
		epochState:               epochState.Copy(),
	}
}

// NewReconfigurationSuffixResult carries the state of a reconfiguration block
// over to a descendant without executing anything: same root, same epoch
// state, no statuses and no events.
func NewReconfigurationSuffixResult(parent *StateComputeResult) *StateComputeResult {
	return &StateComputeResult{
		rootHash:                 parent.rootHash,
		frozenSubtreeRoots:       append([]HashValue{}, parent.frozenSubtreeRoots...),
		numLeaves:                parent.numLeaves,
		parentFrozenSubtreeRoots: append([]HashValue{}, parent.frozenSubtreeRoots...),
		parentNumLeaves:          parent.numLeaves,
		epochState:               parent.epochState.Copy(),
	}
}

// WithSignature returns a copy carrying sig.
func (r *StateComputeResult) WithSignature(sig []byte) *StateComputeResult {
	cp := *r
	cp.signature = append([]byte{}, sig...)
	return &cp
}

func (r *StateComputeResult) RootHash() HashValue     { return r.rootHash }
func (r *StateComputeResult) NumLeaves() uint64       { return r.numLeaves }
func (r *StateComputeResult) ParentNumLeaves() uint64 { return r.parentNumLeaves }
func (r *StateComputeResult) EpochState() *EpochState { return r.epochState.Copy() }

func (r *StateComputeResult) Version() uint64 {
	if r.numLeaves == 0 {
		return 0
	}
	return r.numLeaves - 1
}

func (r *StateComputeResult) FrozenSubtreeRoots() []HashValue {
	return append([]HashValue{}, r.frozenSubtreeRoots...)
}

func (r *StateComputeResult) ParentFrozenSubtreeRoots() []HashValue {
	return append([]HashValue{}, r.parentFrozenSubtreeRoots...)
}

func (r *StateComputeResult) ComputeStatus() []TransactionStatus {
	return append([]TransactionStatus{}, r.computeStatus...)
}

func (r *StateComputeResult) TransactionInfoHashes() []HashValue {
	return append([]HashValue{}, r.transactionInfoHashes...)
}

func (r *StateComputeResult) ReconfigEvents() []ContractEvent {
	return append([]ContractEvent{}, r.reconfigEvents...)
}

// Signature returns nil when the result is unsigned.
func (r *StateComputeResult) Signature() []byte {
	if r.signature == nil {
		return nil
	}
	return append([]byte{}, r.signature...)
}

func (r *StateComputeResult) HasReconfiguration() bool {
	return r.epochState != nil
}

// Accumulator rebuilds the accumulator of the resulting state, to be extended
// by a child block.
func (r *StateComputeResult) Accumulator() *InMemoryAccumulator {
	return &InMemoryAccumulator{
		frozenSubtreeRoots: append([]HashValue{}, r.frozenSubtreeRoots...),
		numLeaves:          r.numLeaves,
		rootHash:           r.rootHash,
	}
}

func (r *StateComputeResult) ExtensionProof() AccumulatorExtensionProof {
	return NewAccumulatorExtensionProof(r.parentFrozenSubtreeRoots, r.parentNumLeaves, r.transactionInfoHashes)
}

func (r *StateComputeResult) String() string {
	return fmt.Sprintf("StateComputeResult{root:%v, version:%d, statuses:%d, reconfig:%v}",
		r.rootHash.ShortString(), r.Version(), len(r.computeStatus), r.HasReconfiguration())
}
