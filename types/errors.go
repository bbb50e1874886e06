package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingParent 在root区块(没有QC)上查询父区块
	ErrMissingParent = errors.New("block has no parent quorum cert")

	ErrDuplicatedBlock     = errors.New("duplicated block data in block tree")
	ErrNoQueryBlock        = errors.New("no such block queried by hash value")
	ErrMissingParentInTree = errors.New("parent block is not in block tree")
	ErrNotOnRootPath       = errors.New("block is not a descendant of the tree root")
	ErrRoundNotIncreasing  = errors.New("block round is not higher than its parent round")
)

// MissingParentError is returned by ParentID on a root block.
type MissingParentError struct {
	BlockID HashValue
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("block %v: %v", e.BlockID.ShortString(), ErrMissingParent)
}

func (e *MissingParentError) Unwrap() error { return ErrMissingParent }

// IsMissingParent reports whether err signals a root block.
func IsMissingParent(err error) bool {
	return errors.Is(err, ErrMissingParent)
}

// ComputeStatusMismatchError means an execution result does not have one
// status per payload transaction. The block must not be committed.
type ComputeStatusMismatchError struct {
	BlockID     HashValue
	TxnCount    int
	StatusCount int
}

func (e *ComputeStatusMismatchError) Error() string {
	return fmt.Sprintf("block %v: %d transactions but %d compute statuses",
		e.BlockID.ShortString(), e.TxnCount, e.StatusCount)
}

// IsComputeStatusMismatch checks whether an error is a ComputeStatusMismatchError
// and returns it.
func IsComputeStatusMismatch(err error) (*ComputeStatusMismatchError, bool) {
	var e *ComputeStatusMismatchError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
