package types

import (
	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
)

// Transaction is an opaque user transaction. The core never looks inside it.
type Transaction []byte

func (tx Transaction) Hash() HashValue {
	return Sum(tx)
}

func (tx Transaction) ComputeSize() int64 {
	return int64(len(tx))
}

// ===== tx array =====
type Txs []Transaction

func ComputeSizeForTxs(txs []Transaction) int64 {
	var dataSize int64

	for _, tx := range txs {
		dataSize += tx.ComputeSize()
	}

	return dataSize
}

// 返回交易形成的merkle tree的根value
func (txs Txs) Hash() HashValue {
	txBzs := make([][]byte, len(txs))
	for i := 0; i < len(txs); i++ {
		h := txs[i].Hash()
		txBzs[i] = h[:]
	}
	var root HashValue
	copy(root[:], merkle.HashFromByteSlices(txBzs))
	return root
}

// Payload is the ordered transaction list a proposal carries.
type Payload struct {
	Txns Txs `cramberry:"1"`
}

func NewPayload(txns ...Transaction) *Payload {
	return &Payload{Txns: append(Txs{}, txns...)}
}

// Copy returns a payload sharing nothing with p.
func (p *Payload) Copy() *Payload {
	if p == nil {
		return nil
	}
	txns := make(Txs, len(p.Txns))
	for i, tx := range p.Txns {
		txns[i] = append(Transaction{}, tx...)
	}
	return &Payload{Txns: txns}
}

func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Txns)
}

func (p *Payload) IsEmpty() bool {
	return p.Len() == 0
}

// Hash of an absent payload differs from the hash of an empty one.
func (p *Payload) Hash() HashValue {
	if p == nil {
		return Sum(nil)
	}
	h := tmhash.New()
	h.Write([]byte("payload"))
	root := p.Txns.Hash()
	h.Write(root[:])
	var out HashValue
	copy(out[:], h.Sum(nil))
	return out
}
