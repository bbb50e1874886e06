package types

import "fmt"

type TransactionStatusKind uint8

const (
	// StatusKeep 交易已执行, 写入账本
	StatusKeep TransactionStatusKind = iota + 1
	// StatusDiscard 交易被丢弃, 不会上链
	StatusDiscard
	// StatusRetry 交易未执行, 需要在之后的区块中重试
	StatusRetry
)

func (k TransactionStatusKind) String() string {
	switch k {
	case StatusKeep:
		return "Keep"
	case StatusDiscard:
		return "Discard"
	case StatusRetry:
		return "Retry"
	}
	return fmt.Sprintf("Unknown(%d)", uint8(k))
}

type KeptStatus uint8

const (
	KeptSuccess KeptStatus = iota
	KeptMoveAbort
	KeptOutOfGas
)

type DiscardReason uint8

const (
	DiscardUnknown DiscardReason = iota
	DiscardInvalidSignature
	DiscardSequenceNumberTooOld
	DiscardMalformed
)

// TransactionStatus is the execution verdict for one input transaction.
// Kept is only meaningful for StatusKeep and Reason for StatusDiscard.
type TransactionStatus struct {
	Kind   TransactionStatusKind
	Kept   KeptStatus
	Reason DiscardReason
}

func Keep(s KeptStatus) TransactionStatus {
	return TransactionStatus{Kind: StatusKeep, Kept: s}
}

func Discard(r DiscardReason) TransactionStatus {
	return TransactionStatus{Kind: StatusDiscard, Reason: r}
}

func Retry() TransactionStatus {
	return TransactionStatus{Kind: StatusRetry}
}

func (s TransactionStatus) IsKeep() bool    { return s.Kind == StatusKeep }
func (s TransactionStatus) IsDiscard() bool { return s.Kind == StatusDiscard }
func (s TransactionStatus) IsRetry() bool   { return s.Kind == StatusRetry }

func (s TransactionStatus) String() string {
	switch s.Kind {
	case StatusKeep:
		return fmt.Sprintf("Keep(%d)", s.Kept)
	case StatusDiscard:
		return fmt.Sprintf("Discard(%d)", s.Reason)
	}
	return s.Kind.String()
}

// Transaction paired with its status.
type TxWithStatus struct {
	Tx     Transaction
	Status TransactionStatus
}
