package state

import (
	"errors"
	"fmt"

	"chainbft_core/types"
)

var (
	// ErrReconfigSuffixPayload 重配置之后的区块不能携带交易
	ErrReconfigSuffixPayload = errors.New("block after a reconfiguration must not carry transactions")
	ErrStaleCommit           = errors.New("commit info is not above the committed root")
	ErrEpochMismatch         = errors.New("block epoch does not match its parent")
	// ErrCommitDiverged 本地执行结果与被认证的结果不一致
	ErrCommitDiverged        = errors.New("local execution result differs from the certified one")
)

type (
	ErrInvalidBlock error
)

// ErrExecution wraps a failure of the state computer for one block.
type ErrExecution struct {
	BlockID types.HashValue
	Err     error
}

func (e ErrExecution) Error() string {
	return fmt.Sprintf("execute block %v: %v", e.BlockID.ShortString(), e.Err)
}

func (e ErrExecution) Unwrap() error { return e.Err }
