package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tendermint/tendermint/crypto/merkle"
)

// Block 共识提案的基本单位. 构造之后不可修改, 所有字段只能通过方法读取
type Block struct {
	id             HashValue
	epoch          uint64
	round          uint64
	timestampUsecs uint64
	payload        *Payload    // nil表示没有payload
	quorumCert     *QuorumCert // 父区块的QC, 只有root区块为nil
}

// MakeGenesisBlock creates the root of a tree. It has no parent certificate.
func MakeGenesisBlock(epoch, round, timestampUsecs uint64) *Block {
	return newBlock(epoch, round, timestampUsecs, nil, nil)
}

// NewProposalBlock creates a block extending the block certified by qc. The
// block stays in the epoch of the certified block, also after a
// reconfiguration; the next epoch starts from a new genesis root.
func NewProposalBlock(payload *Payload, round, timestampUsecs uint64, qc *QuorumCert) (*Block, error) {
	if qc == nil {
		return nil, errors.New("proposal needs the quorum cert of its parent")
	}
	parent := qc.CertifiedBlock()
	if round <= parent.Round {
		return nil, fmt.Errorf("round %d must be higher than parent round %d", round, parent.Round)
	}
	return newBlock(parent.Epoch, round, timestampUsecs, payload.Copy(), qc.Copy()), nil
}

// NewNilBlock 超时后产生的空区块, 时间戳沿用父区块
func NewNilBlock(round uint64, qc *QuorumCert) (*Block, error) {
	if qc == nil {
		return nil, errors.New("nil block needs the quorum cert of its parent")
	}
	return NewProposalBlock(nil, round, qc.CertifiedBlock().TimestampUsecs, qc)
}

func newBlock(epoch, round, ts uint64, payload *Payload, qc *QuorumCert) *Block {
	b := &Block{
		epoch:          epoch,
		round:          round,
		timestampUsecs: ts,
		payload:        payload,
		quorumCert:     qc,
	}
	b.id = b.computeID()
	return b
}

// id为以下字段形成的merkle tree的根
func (b *Block) computeID() HashValue {
	payloadHash := b.payload.Hash()
	var qcHash []byte
	if b.quorumCert != nil {
		h := b.quorumCert.Hash()
		qcHash = h[:]
	}
	var id HashValue
	copy(id[:], merkle.HashFromByteSlices([][]byte{
		uint64Bytes(b.epoch),
		uint64Bytes(b.round),
		uint64Bytes(b.timestampUsecs),
		payloadHash[:],
		qcHash,
	}))
	return id
}

func (b *Block) ID() HashValue           { return b.id }
func (b *Block) Epoch() uint64           { return b.epoch }
func (b *Block) Round() uint64           { return b.round }
func (b *Block) TimestampUsecs() uint64  { return b.timestampUsecs }
func (b *Block) IsGenesisBlock() bool    { return b.quorumCert == nil }
func (b *Block) HasPayload() bool        { return b.payload != nil }
func (b *Block) TransactionCount() int   { return b.payload.Len() }
func (b *Block) Payload() *Payload       { return b.payload.Copy() }
func (b *Block) QuorumCert() *QuorumCert { return b.quorumCert.Copy() }

// ParentID returns the id certified by the block's quorum cert. The second
// value is false for a root block.
func (b *Block) ParentID() (HashValue, bool) {
	if b.quorumCert == nil {
		return ZeroHash, false
	}
	return b.quorumCert.CertifiedBlock().ID, true
}

// TransactionsToExecute returns the payload transactions in order.
func (b *Block) TransactionsToExecute() []Transaction {
	if b.payload == nil {
		return nil
	}
	return b.payload.Copy().Txns
}

// GenBlockInfo 结合执行结果生成区块摘要
func (b *Block) GenBlockInfo(executedStateID HashValue, version uint64, nextEpochState *EpochState) BlockInfo {
	return NewBlockInfo(b.epoch, b.round, b.id, executedStateID, version, b.timestampUsecs, nextEpochState)
}

func (b *Block) String() string {
	parent := "nil"
	if id, ok := b.ParentID(); ok {
		parent = id.ShortString()
	}
	return fmt.Sprintf("[id: %v, epoch: %d, round: %d, parent_id: %v, txs: %d]",
		b.id.ShortString(), b.epoch, b.round, parent, b.payload.Len())
}

// blockWire is the encodable form of a Block. The id is not encoded; it is
// recomputed on decode.
type blockWire struct {
	Epoch          uint64      `cramberry:"1"`
	Round          uint64      `cramberry:"2"`
	TimestampUsecs uint64      `cramberry:"3"`
	Payload        *Payload    `cramberry:"4"`
	QuorumCert     *QuorumCert `cramberry:"5"`
}

func (b *Block) toWire() blockWire {
	return blockWire{
		Epoch:          b.epoch,
		Round:          b.round,
		TimestampUsecs: b.timestampUsecs,
		Payload:        b.payload,
		QuorumCert:     b.quorumCert,
	}
}

func (w blockWire) toBlock() *Block {
	return newBlock(w.Epoch, w.Round, w.TimestampUsecs, w.Payload, w.QuorumCert)
}

func uint64Bytes(v uint64) []byte {
	var bz [8]byte
	binary.BigEndian.PutUint64(bz[:], v)
	return bz[:]
}
