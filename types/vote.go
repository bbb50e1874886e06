package types

import (
	"fmt"
)

// VoteProposal 发送给其他节点用于投票的消息, 由ExecutedBlock生成
type VoteProposal struct {
	accumulatorExtensionProof AccumulatorExtensionProof
	block                     *Block
	nextEpochState            *EpochState
	decoupledExecution        bool
}

func NewVoteProposal(
	proof AccumulatorExtensionProof,
	block *Block,
	nextEpochState *EpochState,
	decoupledExecution bool,
) *VoteProposal {
	return &VoteProposal{
		accumulatorExtensionProof: proof,
		block:                     block,
		nextEpochState:            nextEpochState.Copy(),
		decoupledExecution:        decoupledExecution,
	}
}

func (vp *VoteProposal) AccumulatorExtensionProof() AccumulatorExtensionProof {
	return vp.accumulatorExtensionProof
}

func (vp *VoteProposal) Block() *Block               { return vp.block }
func (vp *VoteProposal) NextEpochState() *EpochState { return vp.nextEpochState.Copy() }
func (vp *VoteProposal) DecoupledExecution() bool    { return vp.decoupledExecution }

// GenVoteData builds the data a replica votes on. With decoupled execution
// only the ordering is voted on; otherwise the extension proof must extend the
// state the parent block was certified with.
func (vp *VoteProposal) GenVoteData() (VoteData, error) {
	qc := vp.block.QuorumCert()
	if qc == nil {
		return VoteData{}, &MissingParentError{BlockID: vp.block.ID()}
	}
	parent := qc.CertifiedBlock()

	if vp.decoupledExecution {
		return NewVoteData(
			vp.block.GenBlockInfo(AccumulatorPlaceholderHash, 0, vp.nextEpochState),
			parent,
		), nil
	}

	acc, err := vp.accumulatorExtensionProof.Verify(parent.ExecutedStateID)
	if err != nil {
		return VoteData{}, fmt.Errorf("verify extension proof of block %v: %w", vp.block.ID().ShortString(), err)
	}
	return NewVoteData(
		vp.block.GenBlockInfo(acc.RootHash(), acc.Version(), vp.nextEpochState),
		parent,
	), nil
}

type voteProposalWire struct {
	Proof              AccumulatorExtensionProof `cramberry:"1"`
	Block              blockWire                 `cramberry:"2"`
	NextEpochState     *EpochState               `cramberry:"3"`
	DecoupledExecution bool                      `cramberry:"4"`
}

// Encode returns the versioned binary encoding of the proposal.
func (vp *VoteProposal) Encode() ([]byte, error) {
	return encodeVersioned(voteProposalVersion, voteProposalWire{
		Proof:              vp.accumulatorExtensionProof,
		Block:              vp.block.toWire(),
		NextEpochState:     vp.nextEpochState,
		DecoupledExecution: vp.decoupledExecution,
	})
}

func DecodeVoteProposal(bz []byte) (*VoteProposal, error) {
	var w voteProposalWire
	if err := decodeVersioned(voteProposalVersion, bz, &w); err != nil {
		return nil, err
	}
	return NewVoteProposal(w.Proof, w.Block.toBlock(), w.NextEpochState, w.DecoupledExecution), nil
}

// Hash is the message signed by the execution result signer.
func (vp *VoteProposal) Hash() HashValue {
	bz, err := vp.Encode()
	if err != nil {
		panic(fmt.Sprintf("encode vote proposal: %v", err))
	}
	return Sum(bz)
}

func (vp *VoteProposal) String() string {
	return fmt.Sprintf("VoteProposal[block: %v, decoupled: %v]", vp.block, vp.decoupledExecution)
}

// MaybeSignedVoteProposal pairs a proposal with the signature of the
// execution result, if any.
type MaybeSignedVoteProposal struct {
	VoteProposal *VoteProposal
	Signature    []byte
}

func (m *MaybeSignedVoteProposal) IsSigned() bool {
	return len(m.Signature) > 0
}
