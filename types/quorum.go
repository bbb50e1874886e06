package types

import (
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// VoteData 投票的对象: 被提议的区块以及它的父区块
type VoteData struct {
	Proposed BlockInfo `json:"proposed" cramberry:"1"`
	Parent   BlockInfo `json:"parent" cramberry:"2"`
}

func NewVoteData(proposed, parent BlockInfo) VoteData {
	return VoteData{Proposed: proposed, Parent: parent}
}

func (vd VoteData) Hash() HashValue {
	return mustHash(vd)
}

// Verify checks that the proposed block is a plausible child of Parent.
func (vd VoteData) Verify() error {
	if vd.Parent.Epoch != vd.Proposed.Epoch {
		return errors.New("parent and proposed epochs do not match")
	}
	if vd.Parent.Round >= vd.Proposed.Round {
		return errors.New("proposed round is not higher than parent round")
	}
	if vd.Parent.TimestampUsecs > vd.Proposed.TimestampUsecs {
		return errors.New("proposed timestamp is lower than parent timestamp")
	}
	if vd.Parent.Version > vd.Proposed.Version {
		return errors.New("proposed version is lower than parent version")
	}
	return nil
}

func (vd VoteData) String() string {
	return fmt.Sprintf("VoteData{proposed:%v, parent:%v}", vd.Proposed, vd.Parent)
}

// LedgerInfo 法定人数签名的对象. CommitInfo为空表示该QC不提交任何区块
type LedgerInfo struct {
	CommitInfo        BlockInfo `json:"commit_info" cramberry:"1"`
	ConsensusDataHash HashValue `json:"consensus_data_hash" cramberry:"2"`
}

func NewLedgerInfo(commitInfo BlockInfo, consensusDataHash HashValue) LedgerInfo {
	return LedgerInfo{CommitInfo: commitInfo, ConsensusDataHash: consensusDataHash}
}

func (li LedgerInfo) EndsEpoch() bool {
	return li.CommitInfo.HasReconfiguration()
}

// QuorumCert明确的表示某个区块有2f+1个节点赞同.
// 签名在进入本模块之前已经被验证过, 这里只作为不透明的数据保存
type QuorumCert struct {
	VoteData   VoteData   `json:"vote_data" cramberry:"1"`
	LedgerInfo LedgerInfo `json:"ledger_info" cramberry:"2"`
	Signatures [][]byte   `json:"signatures" cramberry:"3"`
}

func NewQuorumCert(voteData VoteData, ledgerInfo LedgerInfo, signatures [][]byte) *QuorumCert {
	sigs := make([][]byte, len(signatures))
	for i, sig := range signatures {
		sigs[i] = append([]byte{}, sig...)
	}
	return &QuorumCert{VoteData: voteData, LedgerInfo: ledgerInfo, Signatures: sigs}
}

// CertificateForGenesis builds the self-referencing certificate of a root
// block: it certifies, and commits, the root itself.
func CertificateForGenesis(root BlockInfo) *QuorumCert {
	vd := NewVoteData(root, root)
	return NewQuorumCert(vd, NewLedgerInfo(root, vd.Hash()), nil)
}

// Copy returns a certificate sharing nothing with qc.
func (qc *QuorumCert) Copy() *QuorumCert {
	if qc == nil {
		return nil
	}
	return NewQuorumCert(
		NewVoteData(qc.VoteData.Proposed.Copy(), qc.VoteData.Parent.Copy()),
		NewLedgerInfo(qc.LedgerInfo.CommitInfo.Copy(), qc.LedgerInfo.ConsensusDataHash),
		qc.Signatures,
	)
}

func (qc *QuorumCert) CertifiedBlock() BlockInfo {
	return qc.VoteData.Proposed.Copy()
}

func (qc *QuorumCert) ParentBlock() BlockInfo {
	return qc.VoteData.Parent.Copy()
}

func (qc *QuorumCert) CommitInfo() BlockInfo {
	return qc.LedgerInfo.CommitInfo.Copy()
}

// CommitsBlock reports whether the certificate carries a commit target.
func (qc *QuorumCert) CommitsBlock() bool {
	return !qc.LedgerInfo.CommitInfo.IsEmpty()
}

func (qc *QuorumCert) EndsEpoch() bool {
	return qc.LedgerInfo.EndsEpoch()
}

func (qc *QuorumCert) Hash() HashValue {
	if qc == nil {
		return ZeroHash
	}
	return mustHash(qc)
}

func (qc *QuorumCert) String() string {
	return fmt.Sprintf("QuorumCert{certified:%v, commit:%v}",
		qc.CertifiedBlock().ID.ShortString(), qc.CommitInfo().ID.ShortString())
}

func mustHash(v interface{}) HashValue {
	bz, err := cramberry.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encode %T: %v", v, err))
	}
	return Sum(bz)
}
