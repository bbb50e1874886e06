package types

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// EpochState is the verifier set and epoch number that become active once a
// reconfiguration is committed.
type EpochState struct {
	Epoch    uint64        `json:"epoch" cramberry:"1"`
	Verifier *ValidatorSet `json:"verifier" cramberry:"2"`
}

func NewEpochState(epoch uint64, verifier *ValidatorSet) *EpochState {
	return &EpochState{Epoch: epoch, Verifier: verifier}
}

func (es *EpochState) Copy() *EpochState {
	if es == nil {
		return nil
	}
	cp := &EpochState{Epoch: es.Epoch}
	if es.Verifier != nil {
		cp.Verifier = es.Verifier.Copy()
	}
	return cp
}

func (es *EpochState) Equal(other *EpochState) bool {
	if es == nil || other == nil {
		return es == other
	}
	return es.Epoch == other.Epoch && es.Verifier.Hash() == other.Verifier.Hash()
}

func (es *EpochState) String() string {
	if es == nil {
		return "EpochState{nil}"
	}
	return fmt.Sprintf("EpochState{epoch:%d, verifier:%v}", es.Epoch, es.Verifier.Hash().ShortString())
}

// BlockInfo is the compact summary of an executed block. It is the value that
// quorum certificates point at, so it must be reproducible bit for bit by every
// replica that executed the same block.
type BlockInfo struct {
	Epoch           uint64      `json:"epoch" cramberry:"1"`
	Round           uint64      `json:"round" cramberry:"2"`
	ID              HashValue   `json:"id" cramberry:"3"`
	ExecutedStateID HashValue   `json:"executed_state_id" cramberry:"4"`
	Version         uint64      `json:"version" cramberry:"5"`
	TimestampUsecs  uint64      `json:"timestamp_usecs" cramberry:"6"`
	NextEpochState  *EpochState `json:"next_epoch_state,omitempty" cramberry:"7"`
}

func NewBlockInfo(
	epoch, round uint64,
	id, executedStateID HashValue,
	version, timestampUsecs uint64,
	nextEpochState *EpochState,
) BlockInfo {
	return BlockInfo{
		Epoch:           epoch,
		Round:           round,
		ID:              id,
		ExecutedStateID: executedStateID,
		Version:         version,
		TimestampUsecs:  timestampUsecs,
		NextEpochState:  nextEpochState.Copy(),
	}
}

// EmptyBlockInfo 用于尚未提交任何区块的ledger info
func EmptyBlockInfo() BlockInfo {
	return BlockInfo{ExecutedStateID: AccumulatorPlaceholderHash}
}

func (bi BlockInfo) IsEmpty() bool {
	return bi.ID.IsZero() && bi.Round == 0 && bi.Epoch == 0
}

// Copy returns a summary whose NextEpochState is not shared with bi.
func (bi BlockInfo) Copy() BlockInfo {
	bi.NextEpochState = bi.NextEpochState.Copy()
	return bi
}

func (bi BlockInfo) HasReconfiguration() bool {
	return bi.NextEpochState != nil
}

// NextBlockEpoch is the epoch of the root started once this block is
// committed. Children in the tree keep the block's own epoch.
func (bi BlockInfo) NextBlockEpoch() uint64 {
	if bi.NextEpochState != nil {
		return bi.NextEpochState.Epoch
	}
	return bi.Epoch
}

// Encode returns the versioned binary encoding of the summary.
func (bi BlockInfo) Encode() ([]byte, error) {
	return encodeVersioned(blockInfoVersion, bi)
}

func DecodeBlockInfo(bz []byte) (BlockInfo, error) {
	var bi BlockInfo
	err := decodeVersioned(blockInfoVersion, bz, &bi)
	return bi, err
}

// Hash is the hash of the encoding. Panics only if cramberry cannot encode the
// struct, which is a programming error.
func (bi BlockInfo) Hash() HashValue {
	bz, err := bi.Encode()
	if err != nil {
		panic(fmt.Sprintf("encode block info: %v", err))
	}
	return Sum(bz)
}

func (bi BlockInfo) Equal(other BlockInfo) bool {
	return bi.Epoch == other.Epoch &&
		bi.Round == other.Round &&
		bi.ID == other.ID &&
		bi.ExecutedStateID == other.ExecutedStateID &&
		bi.Version == other.Version &&
		bi.TimestampUsecs == other.TimestampUsecs &&
		bi.NextEpochState.Equal(other.NextEpochState)
}

func (bi BlockInfo) String() string {
	return fmt.Sprintf("BlockInfo{id:%v, epoch:%d, round:%d, state:%v, version:%d, ts:%d, epoch_state:%v}",
		bi.ID.ShortString(), bi.Epoch, bi.Round, bi.ExecutedStateID.ShortString(),
		bi.Version, bi.TimestampUsecs, bi.NextEpochState)
}

// ----- versioned encoding -----

const (
	blockInfoVersion    = byte(1)
	voteProposalVersion = byte(1)
)

func encodeVersioned(version byte, v interface{}) ([]byte, error) {
	bz, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cramberry marshal: %w", err)
	}
	return append([]byte{version}, bz...), nil
}

func decodeVersioned(version byte, bz []byte, v interface{}) error {
	if len(bz) == 0 {
		return fmt.Errorf("empty encoding")
	}
	if bz[0] != version {
		return fmt.Errorf("unsupported encoding version %d, expected %d", bz[0], version)
	}
	if err := cramberry.Unmarshal(bz[1:], v); err != nil {
		return fmt.Errorf("cramberry unmarshal: %w", err)
	}
	return nil
}
