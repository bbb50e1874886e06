package types

import (
	"fmt"
)

func testValidatorSet(n int) *ValidatorSet {
	vals := make([]*Validator, n)
	for i := 0; i < n; i++ {
		vals[i] = NewValidator([]byte(fmt.Sprintf("validator-pubkey-%d", i)), 10)
	}
	return NewValidatorSet(vals)
}

func testGenesis() *ExecutedBlock {
	return NewExecutedBlock(MakeGenesisBlock(1, 0, 1000), NewEmptyStateComputeResult())
}

// certify 构造一个认证eb的QC, 不提交任何区块
func certify(eb *ExecutedBlock, parent BlockInfo) *QuorumCert {
	vd := NewVoteData(eb.BlockInfo(), parent)
	return NewQuorumCert(vd, NewLedgerInfo(EmptyBlockInfo(), vd.Hash()), [][]byte{[]byte("sig")})
}

func certifyAndCommit(eb *ExecutedBlock, parent, commit BlockInfo) *QuorumCert {
	vd := NewVoteData(eb.BlockInfo(), parent)
	return NewQuorumCert(vd, NewLedgerInfo(commit, vd.Hash()), [][]byte{[]byte("sig")})
}

func rootQC(root *ExecutedBlock) *QuorumCert {
	return CertificateForGenesis(root.BlockInfo())
}

// keepAll 执行所有交易, 全部为Keep
func keepAll(parent *StateComputeResult, txns []Transaction) *StateComputeResult {
	hashes := make([]HashValue, len(txns))
	statuses := make([]TransactionStatus, len(txns))
	for i, tx := range txns {
		hashes[i] = tx.Hash()
		statuses[i] = Keep(KeptSuccess)
	}
	return NewStateComputeResult(parent.Accumulator(), hashes, statuses, nil, nil)
}

// childOf 在parent之后生成一个执行过的区块, parent的QC来自qc
func childOf(parent *ExecutedBlock, qc *QuorumCert, round uint64, txns ...Transaction) *ExecutedBlock {
	var payload *Payload
	if len(txns) > 0 {
		payload = NewPayload(txns...)
	}
	block, err := NewProposalBlock(payload, round, parent.TimestampUsecs()+1, qc)
	if err != nil {
		panic(err)
	}
	return NewExecutedBlock(block, keepAll(parent.ComputeResult(), txns))
}

func txs(names ...string) []Transaction {
	res := make([]Transaction, len(names))
	for i, n := range names {
		res[i] = Transaction(n)
	}
	return res
}

// executedWith pairs a block carrying txns with a result having the given
// statuses. Only the Keep transactions extend the accumulator.
func executedWith(txns []Transaction, statuses []TransactionStatus, epochState *EpochState, events []ContractEvent) *ExecutedBlock {
	genesis := testGenesis()
	var payload *Payload
	if txns != nil {
		payload = NewPayload(txns...)
	}
	block, err := NewProposalBlock(payload, 1, 2000, rootQC(genesis))
	if err != nil {
		panic(err)
	}
	hashes := []HashValue{}
	for i, st := range statuses {
		if st.IsKeep() && i < len(txns) {
			hashes = append(hashes, txns[i].Hash())
		}
	}
	result := NewStateComputeResult(genesis.ComputeResult().Accumulator(), hashes, statuses, epochState, events)
	return NewExecutedBlock(block, result)
}
