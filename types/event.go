package types

import (
	"bytes"
	"fmt"
)

// NewEpochEventKey 标识"新epoch"事件的固定key
var NewEpochEventKey = []byte("new_epoch_event")

const NewEpochEventType = "NewEpochEvent"

// ContractEvent is an event emitted while executing a transaction.
type ContractEvent struct {
	Key            []byte `json:"key" cramberry:"1"`
	SequenceNumber uint64 `json:"sequence_number" cramberry:"2"`
	TypeTag        string `json:"type_tag" cramberry:"3"`
	Data           []byte `json:"data" cramberry:"4"`
}

func NewContractEvent(key []byte, seq uint64, typeTag string, data []byte) ContractEvent {
	return ContractEvent{
		Key:            append([]byte{}, key...),
		SequenceNumber: seq,
		TypeTag:        typeTag,
		Data:           append([]byte{}, data...),
	}
}

// NewEpochEvent builds the event a reconfiguration transaction emits.
func NewEpochEvent(seq, epoch uint64) ContractEvent {
	return NewContractEvent(NewEpochEventKey, seq, NewEpochEventType, []byte(fmt.Sprintf("%d", epoch)))
}

func (e ContractEvent) IsNewEpoch() bool {
	return bytes.Equal(e.Key, NewEpochEventKey)
}

func (e ContractEvent) String() string {
	return fmt.Sprintf("ContractEvent{key:%X, seq:%d, type:%s}", e.Key, e.SequenceNumber, e.TypeTag)
}
