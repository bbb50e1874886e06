package types

// ExecutedBlock 一个区块与它的推测执行结果. 构造之后不可修改, 可以被多个goroutine同时读取
type ExecutedBlock struct {
	block  *Block
	result *StateComputeResult
}

func NewExecutedBlock(block *Block, result *StateComputeResult) *ExecutedBlock {
	return &ExecutedBlock{block: block, result: result}
}

func (eb *ExecutedBlock) Block() *Block           { return eb.block }
func (eb *ExecutedBlock) ID() HashValue           { return eb.block.ID() }
func (eb *ExecutedBlock) Epoch() uint64           { return eb.block.Epoch() }
func (eb *ExecutedBlock) Round() uint64           { return eb.block.Round() }
func (eb *ExecutedBlock) TimestampUsecs() uint64  { return eb.block.TimestampUsecs() }
func (eb *ExecutedBlock) Payload() *Payload       { return eb.block.Payload() }
func (eb *ExecutedBlock) QuorumCert() *QuorumCert { return eb.block.QuorumCert() }

// ComputeResult returns the raw result. Use TransactionsToCommit and
// ReconfigEvents for what is actually committed.
func (eb *ExecutedBlock) ComputeResult() *StateComputeResult { return eb.result }

// ParentID is the id certified by the block's quorum cert. A root block has no
// parent and yields a *MissingParentError.
func (eb *ExecutedBlock) ParentID() (HashValue, error) {
	id, ok := eb.block.ParentID()
	if !ok {
		return ZeroHash, &MissingParentError{BlockID: eb.ID()}
	}
	return id, nil
}

// IsReconfigurationSuffix reports a block that follows a reconfiguration and
// executed nothing.
func (eb *ExecutedBlock) IsReconfigurationSuffix() bool {
	return eb.result.HasReconfiguration() && len(eb.result.computeStatus) == 0
}

// TransactionsToCommit returns the Keep transactions of the payload in order.
// A payload and status list of different lengths is fatal for the block.
func (eb *ExecutedBlock) TransactionsToCommit() ([]Transaction, error) {
	if eb.IsReconfigurationSuffix() {
		return []Transaction{}, nil
	}

	txns := eb.block.TransactionsToExecute()
	statuses := eb.result.computeStatus
	if len(txns) != len(statuses) {
		return nil, &ComputeStatusMismatchError{
			BlockID:     eb.ID(),
			TxnCount:    len(txns),
			StatusCount: len(statuses),
		}
	}

	res := make([]Transaction, 0, len(txns))
	for i, tx := range txns {
		if statuses[i].IsKeep() {
			res = append(res, tx)
		}
	}
	return res, nil
}

// ReconfigEvents is empty for a suffix block; the events belong to the
// ancestor that triggered the reconfiguration.
func (eb *ExecutedBlock) ReconfigEvents() []ContractEvent {
	if eb.IsReconfigurationSuffix() {
		return []ContractEvent{}
	}
	return eb.result.ReconfigEvents()
}

func (eb *ExecutedBlock) BlockInfo() BlockInfo {
	return eb.block.GenBlockInfo(eb.result.RootHash(), eb.result.Version(), eb.result.EpochState())
}

// MaybeSignedVoteProposal assembles the message to vote on this block.
func (eb *ExecutedBlock) MaybeSignedVoteProposal(decoupledExecution bool) *MaybeSignedVoteProposal {
	return &MaybeSignedVoteProposal{
		VoteProposal: NewVoteProposal(
			eb.result.ExtensionProof(),
			eb.block,
			eb.result.EpochState(),
			decoupledExecution,
		),
		Signature: eb.result.Signature(),
	}
}

func (eb *ExecutedBlock) String() string {
	return eb.block.String()
}
