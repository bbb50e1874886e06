package types

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// linkableBlock 树中的节点. 父子关系使用id表示, 不使用指针
type linkableBlock struct {
	executedBlock *ExecutedBlock
	parentID      HashValue
	children      map[HashValue]struct{}
}

func newLinkableBlock(eb *ExecutedBlock, parentID HashValue) *linkableBlock {
	return &linkableBlock{
		executedBlock: eb,
		parentID:      parentID,
		children:      make(map[HashValue]struct{}),
	}
}

func (lb *linkableBlock) id() HashValue { return lb.executedBlock.ID() }

// BlockTree 推测执行的区块组成的多叉树, root为最后提交的区块.
// 插入与剪枝只能由一个goroutine完成, 读操作可以并发.
// 节点在完全构造之后才被加入到idToBlock中
type BlockTree struct {
	mtx sync.RWMutex

	idToBlock map[HashValue]*linkableBlock
	rootID    HashValue

	highestCertifiedBlockID HashValue
	highestQuorumCert       *QuorumCert
	highestCommitCert       *QuorumCert
	idToQuorumCert          map[HashValue]*QuorumCert

	// 被剪掉但暂时保留在内存中的区块, 先进先出
	prunedBlockIDs       []HashValue
	maxPrunedBlocksInMem int
}

// NewBlockTree creates a tree rooted at root. rootQC must certify root.
func NewBlockTree(root *ExecutedBlock, rootQC *QuorumCert, maxPrunedBlocksInMem int) (*BlockTree, error) {
	if rootQC == nil {
		return nil, fmt.Errorf("root %v needs a quorum cert", root.ID().ShortString())
	}
	if rootQC.CertifiedBlock().ID != root.ID() {
		return nil, fmt.Errorf("root quorum cert certifies %v, not root %v",
			rootQC.CertifiedBlock().ID.ShortString(), root.ID().ShortString())
	}
	if maxPrunedBlocksInMem < 0 {
		maxPrunedBlocksInMem = 0
	}

	rootID := root.ID()
	return &BlockTree{
		idToBlock:               map[HashValue]*linkableBlock{rootID: newLinkableBlock(root, ZeroHash)},
		rootID:                  rootID,
		highestCertifiedBlockID: rootID,
		highestQuorumCert:       rootQC,
		highestCommitCert:       rootQC,
		idToQuorumCert:          map[HashValue]*QuorumCert{rootID: rootQC},
		prunedBlockIDs:          []HashValue{},
		maxPrunedBlocksInMem:    maxPrunedBlocksInMem,
	}, nil
}

func (tree *BlockTree) BlockExists(id HashValue) bool {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	_, ok := tree.idToBlock[id]
	return ok
}

// GetBlock 根据区块id查找区块
func (tree *BlockTree) GetBlock(id HashValue) (*ExecutedBlock, error) {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	lb, ok := tree.idToBlock[id]
	if !ok {
		return nil, ErrNoQueryBlock
	}
	return lb.executedBlock, nil
}

func (tree *BlockTree) Root() *ExecutedBlock {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	return tree.idToBlock[tree.rootID].executedBlock
}

func (tree *BlockTree) HighestCertifiedBlock() *ExecutedBlock {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	return tree.idToBlock[tree.highestCertifiedBlockID].executedBlock
}

func (tree *BlockTree) HighestQuorumCert() *QuorumCert {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	return tree.highestQuorumCert
}

func (tree *BlockTree) HighestCommitCert() *QuorumCert {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	return tree.highestCommitCert
}

func (tree *BlockTree) GetQuorumCert(blockID HashValue) (*QuorumCert, bool) {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	qc, ok := tree.idToQuorumCert[blockID]
	return qc, ok
}

// Size counts every block held in memory, including pruned ones not yet
// released.
func (tree *BlockTree) Size() int {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	return len(tree.idToBlock)
}

func (tree *BlockTree) PrunedSize() int {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()
	return len(tree.prunedBlockIDs)
}

// InsertBlock links eb under its parent. Inserting a block that is already in
// the tree returns the existing one.
func (tree *BlockTree) InsertBlock(eb *ExecutedBlock) (*ExecutedBlock, error) {
	parentID, err := eb.ParentID()
	if err != nil {
		return nil, err
	}
	node := newLinkableBlock(eb, parentID)

	tree.mtx.Lock()
	defer tree.mtx.Unlock()

	if existing, ok := tree.idToBlock[eb.ID()]; ok {
		return existing.executedBlock, nil
	}
	parent, ok := tree.idToBlock[parentID]
	if !ok {
		return nil, fmt.Errorf("block %v, parent %v: %w", eb.ID().ShortString(), parentID.ShortString(), ErrMissingParentInTree)
	}
	if tree.isPruned(parentID) {
		return nil, fmt.Errorf("block %v extends pruned block %v: %w", eb.ID().ShortString(), parentID.ShortString(), ErrNotOnRootPath)
	}
	if eb.Round() <= parent.executedBlock.Round() {
		return nil, fmt.Errorf("block %v round %d, parent round %d: %w",
			eb.ID().ShortString(), eb.Round(), parent.executedBlock.Round(), ErrRoundNotIncreasing)
	}

	parent.children[eb.ID()] = struct{}{}
	tree.idToBlock[eb.ID()] = node
	return eb, nil
}

// InsertQuorumCert records qc for its certified block and updates the highest
// certified block and the highest commit cert.
func (tree *BlockTree) InsertQuorumCert(qc *QuorumCert) error {
	certified := qc.CertifiedBlock()

	tree.mtx.Lock()
	defer tree.mtx.Unlock()

	lb, ok := tree.idToBlock[certified.ID]
	if !ok {
		return fmt.Errorf("quorum cert for block %v: %w", certified.ID.ShortString(), ErrNoQueryBlock)
	}
	highest := tree.idToBlock[tree.highestCertifiedBlockID].executedBlock
	if lb.executedBlock.Round() > highest.Round() {
		tree.highestCertifiedBlockID = certified.ID
		tree.highestQuorumCert = qc
	}
	if _, ok := tree.idToQuorumCert[certified.ID]; !ok {
		tree.idToQuorumCert[certified.ID] = qc
	}
	if qc.CommitsBlock() && qc.CommitInfo().Round > tree.highestCommitCert.CommitInfo().Round {
		tree.highestCommitCert = qc
	}
	return nil
}

// PathFromRoot returns the blocks after the root up to and including id, in
// chain order. It is empty when id is the root.
func (tree *BlockTree) PathFromRoot(id HashValue) ([]*ExecutedBlock, error) {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()

	root := tree.idToBlock[tree.rootID].executedBlock
	res := []*ExecutedBlock{}
	cur := id
	for {
		lb, ok := tree.idToBlock[cur]
		if !ok {
			return nil, fmt.Errorf("block %v: %w", id.ShortString(), ErrNotOnRootPath)
		}
		if lb.executedBlock.Round() <= root.Round() {
			break
		}
		res = append(res, lb.executedBlock)
		cur = lb.parentID
	}
	if cur != tree.rootID {
		return nil, fmt.Errorf("block %v: %w", id.ShortString(), ErrNotOnRootPath)
	}

	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// FindBlocksToPrune returns the ids of all live blocks that are not in the
// subtree of nextRootID, the current root included.
func (tree *BlockTree) FindBlocksToPrune(nextRootID HashValue) []HashValue {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()

	if nextRootID == tree.rootID {
		return []HashValue{}
	}

	pruned := []HashValue{}
	stack := []*linkableBlock{tree.idToBlock[tree.rootID]}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for childID := range cur.children {
			if childID == nextRootID {
				continue
			}
			if child, ok := tree.idToBlock[childID]; ok {
				stack = append(stack, child)
			}
		}
		pruned = append(pruned, cur.id())
	}
	return pruned
}

// ProcessPrunedBlocks moves the root to nextRootID and queues the pruned ids.
// Pruned blocks stay readable until more than maxPrunedBlocksInMem are
// queued, then the oldest are released.
func (tree *BlockTree) ProcessPrunedBlocks(nextRootID HashValue, pruned []HashValue) error {
	tree.mtx.Lock()
	defer tree.mtx.Unlock()

	if _, ok := tree.idToBlock[nextRootID]; !ok {
		return fmt.Errorf("next root %v: %w", nextRootID.ShortString(), ErrNoQueryBlock)
	}
	tree.rootID = nextRootID

	tree.prunedBlockIDs = append(tree.prunedBlockIDs, pruned...)
	if n := len(tree.prunedBlockIDs) - tree.maxPrunedBlocksInMem; n > 0 {
		for _, id := range tree.prunedBlockIDs[:n] {
			tree.removeBlock(id)
		}
		tree.prunedBlockIDs = append([]HashValue{}, tree.prunedBlockIDs[n:]...)
	}

	if cur, ok := tree.idToBlock[tree.highestCertifiedBlockID]; !ok ||
		cur.executedBlock.Round() < tree.idToBlock[nextRootID].executedBlock.Round() {
		tree.highestCertifiedBlockID = nextRootID
	}
	return nil
}

// NOTE caller负责加锁
func (tree *BlockTree) isPruned(id HashValue) bool {
	for _, pruned := range tree.prunedBlockIDs {
		if pruned == id {
			return true
		}
	}
	return false
}

// NOTE caller负责加锁
func (tree *BlockTree) removeBlock(id HashValue) {
	if id == tree.rootID {
		return
	}
	delete(tree.idToBlock, id)
	delete(tree.idToQuorumCert, id)
}

// ForEach 以层级遍历的顺序, 对root的子树中所有区块执行lambda函数
func (tree *BlockTree) ForEach(lambda func(eb *ExecutedBlock)) {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()

	queue := []*linkableBlock{tree.idToBlock[tree.rootID]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for childID := range cur.children {
			if child, ok := tree.idToBlock[childID]; ok {
				queue = append(queue, child)
			}
		}
		lambda(cur.executedBlock)
	}
}

// CheckInvariants verifies the structure of the live tree and returns every
// violation found.
func (tree *BlockTree) CheckInvariants() error {
	tree.mtx.RLock()
	defer tree.mtx.RUnlock()

	var result *multierror.Error
	root, ok := tree.idToBlock[tree.rootID]
	if !ok {
		return multierror.Append(result, fmt.Errorf("root %v is missing", tree.rootID.ShortString()))
	}

	pruned := make(map[HashValue]struct{}, len(tree.prunedBlockIDs))
	for _, id := range tree.prunedBlockIDs {
		pruned[id] = struct{}{}
	}

	for id, lb := range tree.idToBlock {
		if id != lb.id() {
			result = multierror.Append(result, fmt.Errorf("block %v stored under id %v", lb.id().ShortString(), id.ShortString()))
		}
		if _, ok := pruned[id]; ok || id == tree.rootID {
			continue
		}
		parent, ok := tree.idToBlock[lb.parentID]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("block %v: %w", id.ShortString(), ErrMissingParentInTree))
			continue
		}
		if _, ok := parent.children[id]; !ok {
			result = multierror.Append(result, fmt.Errorf("block %v is not a child of its parent %v", id.ShortString(), lb.parentID.ShortString()))
		}
		if lb.executedBlock.Round() <= parent.executedBlock.Round() {
			result = multierror.Append(result, fmt.Errorf("block %v: %w", id.ShortString(), ErrRoundNotIncreasing))
		}
		if lb.executedBlock.Round() <= root.executedBlock.Round() {
			result = multierror.Append(result, fmt.Errorf("live block %v is not above root round %d", id.ShortString(), root.executedBlock.Round()))
		}
	}

	if _, ok := tree.idToBlock[tree.highestCertifiedBlockID]; !ok {
		result = multierror.Append(result, fmt.Errorf("highest certified block %v is missing", tree.highestCertifiedBlockID.ShortString()))
	}
	return result.ErrorOrNil()
}
