package types

import (
	"fmt"
	"math/bits"

	"github.com/tendermint/tendermint/crypto/tmhash"
)

var innerPrefix = []byte{1}

func hashInternalNode(left, right HashValue) HashValue {
	h := tmhash.New()
	h.Write(innerPrefix)
	h.Write(left[:])
	h.Write(right[:])
	var out HashValue
	copy(out[:], h.Sum(nil))
	return out
}

// InMemoryAccumulator 只保存冻结子树根的Merkle累加器.
// 第i个叶子即账本中version为i的交易信息hash.
// 不可修改, Append返回新的累加器
type InMemoryAccumulator struct {
	frozenSubtreeRoots []HashValue
	numLeaves          uint64
	rootHash           HashValue
}

// NewInMemoryAccumulator rebuilds an accumulator from the roots of its frozen
// subtrees, ordered from the leftmost (largest) subtree.
func NewInMemoryAccumulator(frozenSubtreeRoots []HashValue, numLeaves uint64) (*InMemoryAccumulator, error) {
	if len(frozenSubtreeRoots) != bits.OnesCount64(numLeaves) {
		return nil, fmt.Errorf("%d frozen subtree roots do not match %d leaves",
			len(frozenSubtreeRoots), numLeaves)
	}
	roots := append([]HashValue{}, frozenSubtreeRoots...)
	return &InMemoryAccumulator{
		frozenSubtreeRoots: roots,
		numLeaves:          numLeaves,
		rootHash:           computeRootHash(roots, numLeaves),
	}, nil
}

func NewEmptyAccumulator() *InMemoryAccumulator {
	return &InMemoryAccumulator{rootHash: AccumulatorPlaceholderHash}
}

// Append returns a new accumulator with leaves appended.
func (acc *InMemoryAccumulator) Append(leaves []HashValue) *InMemoryAccumulator {
	roots := append([]HashValue{}, acc.frozenSubtreeRoots...)
	numLeaves := acc.numLeaves
	for _, leaf := range leaves {
		roots = appendOne(roots, numLeaves, leaf)
		numLeaves++
	}
	return &InMemoryAccumulator{
		frozenSubtreeRoots: roots,
		numLeaves:          numLeaves,
		rootHash:           computeRootHash(roots, numLeaves),
	}
}

// 每个末尾的1代表一棵与新叶子等高的冻结子树, 需要合并
func appendOne(roots []HashValue, numLeaves uint64, leaf HashValue) []HashValue {
	newRoot := leaf
	for numLeaves&1 == 1 {
		left := roots[len(roots)-1]
		roots = roots[:len(roots)-1]
		newRoot = hashInternalNode(left, newRoot)
		numLeaves >>= 1
	}
	return append(roots, newRoot)
}

func computeRootHash(roots []HashValue, numLeaves uint64) HashValue {
	switch len(roots) {
	case 0:
		return AccumulatorPlaceholderHash
	case 1:
		return roots[0]
	}

	bitmap := numLeaves >> uint(bits.TrailingZeros64(numLeaves))
	current := AccumulatorPlaceholderHash
	next := len(roots) - 1
	for bitmap > 0 {
		if bitmap&1 != 0 {
			current = hashInternalNode(roots[next], current)
			next--
		} else {
			current = hashInternalNode(current, AccumulatorPlaceholderHash)
		}
		bitmap >>= 1
	}
	return current
}

func (acc *InMemoryAccumulator) RootHash() HashValue {
	return acc.rootHash
}

func (acc *InMemoryAccumulator) NumLeaves() uint64 {
	return acc.numLeaves
}

func (acc *InMemoryAccumulator) FrozenSubtreeRoots() []HashValue {
	return append([]HashValue{}, acc.frozenSubtreeRoots...)
}

// Version of the last leaf. An empty accumulator reports 0.
func (acc *InMemoryAccumulator) Version() uint64 {
	if acc.numLeaves == 0 {
		return 0
	}
	return acc.numLeaves - 1
}

// AccumulatorExtensionProof shows that appending Leaves to the accumulator
// described by FrozenSubtreeRoots/NumLeaves yields a new state.
type AccumulatorExtensionProof struct {
	FrozenSubtreeRoots []HashValue `json:"frozen_subtree_roots" cramberry:"1"`
	NumLeaves          uint64      `json:"num_leaves" cramberry:"2"`
	Leaves             []HashValue `json:"leaves" cramberry:"3"`
}

func NewAccumulatorExtensionProof(frozenSubtreeRoots []HashValue, numLeaves uint64, leaves []HashValue) AccumulatorExtensionProof {
	return AccumulatorExtensionProof{
		FrozenSubtreeRoots: append([]HashValue{}, frozenSubtreeRoots...),
		NumLeaves:          numLeaves,
		Leaves:             append([]HashValue{}, leaves...),
	}
}

// Verify checks that the proof starts from originalRoot and returns the
// extended accumulator.
func (p AccumulatorExtensionProof) Verify(originalRoot HashValue) (*InMemoryAccumulator, error) {
	acc, err := NewInMemoryAccumulator(p.FrozenSubtreeRoots, p.NumLeaves)
	if err != nil {
		return nil, err
	}
	if acc.RootHash() != originalRoot {
		return nil, fmt.Errorf("root hashes do not match: actual %v, expected %v",
			acc.RootHash(), originalRoot)
	}
	return acc.Append(p.Leaves), nil
}
