package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naiveRootHash 用完整的二叉树计算根, 空子树为占位hash
func naiveRootHash(leaves []HashValue) HashValue {
	if len(leaves) == 0 {
		return AccumulatorPlaceholderHash
	}
	size := 1
	for size < len(leaves) {
		size <<= 1
	}
	return naiveSubtree(leaves, size)
}

func naiveSubtree(leaves []HashValue, size int) HashValue {
	if len(leaves) == 0 {
		return AccumulatorPlaceholderHash
	}
	if size == 1 {
		return leaves[0]
	}
	half := size / 2
	if len(leaves) <= half {
		return hashInternalNode(naiveSubtree(leaves, half), AccumulatorPlaceholderHash)
	}
	return hashInternalNode(naiveSubtree(leaves[:half], half), naiveSubtree(leaves[half:], half))
}

func testLeaves(n int) []HashValue {
	leaves := make([]HashValue, n)
	for i := range leaves {
		leaves[i] = Sum([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	return leaves
}

func TestAccumulatorMatchesNaiveRoot(t *testing.T) {
	for n := 0; n <= 33; n++ {
		leaves := testLeaves(n)
		acc := NewEmptyAccumulator().Append(leaves)
		assert.Equal(t, naiveRootHash(leaves), acc.RootHash(), "leaves: %d", n)
		assert.Equal(t, uint64(n), acc.NumLeaves())
		if n > 0 {
			assert.Equal(t, uint64(n-1), acc.Version())
		}
	}
}

func TestAccumulatorIncrementalAppend(t *testing.T) {
	leaves := testLeaves(20)
	acc := NewEmptyAccumulator()
	for i := 0; i < len(leaves); i += 3 {
		end := i + 3
		if end > len(leaves) {
			end = len(leaves)
		}
		next := acc.Append(leaves[i:end])
		assert.Equal(t, uint64(i), acc.NumLeaves(), "append does not modify the receiver")
		acc = next
	}
	assert.Equal(t, NewEmptyAccumulator().Append(leaves).RootHash(), acc.RootHash())

	rebuilt, err := NewInMemoryAccumulator(acc.FrozenSubtreeRoots(), acc.NumLeaves())
	require.NoError(t, err)
	assert.Equal(t, acc.RootHash(), rebuilt.RootHash())
}

func TestAccumulatorRejectsBadFrozenRoots(t *testing.T) {
	_, err := NewInMemoryAccumulator(testLeaves(1), 3)
	assert.Error(t, err)
}

func TestExtensionProofVerify(t *testing.T) {
	base := NewEmptyAccumulator().Append(testLeaves(5))
	extra := testLeaves(8)[5:]
	proof := NewAccumulatorExtensionProof(base.FrozenSubtreeRoots(), base.NumLeaves(), extra)

	acc, err := proof.Verify(base.RootHash())
	require.NoError(t, err)
	assert.Equal(t, NewEmptyAccumulator().Append(testLeaves(8)).RootHash(), acc.RootHash())
	assert.Equal(t, uint64(7), acc.Version())

	_, err = proof.Verify(Sum([]byte("other")))
	assert.Error(t, err)
}
