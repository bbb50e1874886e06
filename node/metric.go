package node

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

func newNodeMetric() *nodeMetric {
	return &nodeMetric{
		Round:          0,
		Slot:           0,
		Epoch:          0,
		CommittedRound: 0,
		LastStepTime:   time.Time{},
		IsWorking:      false,
		Signed:         false,
	}
}

// nodeMetric 节点驱动轮次的状态, 以label "node"注册到MetricSet
type nodeMetric struct {
	mtx sync.Mutex

	Round          uint64    `json:"current_round"`
	Slot           uint64    `json:"current_slot"`
	Epoch          uint64    `json:"epoch"`
	CommittedRound uint64    `json:"committed_round"`
	LastStepTime   time.Time `json:"last_step_time"`

	IsWorking bool   `json:"is_working"`
	Signed    bool   `json:"signed"`
	LastError string `json:"last_error,omitempty"`
}

func (nm *nodeMetric) JSONString() string {
	nm.mtx.Lock()
	defer nm.mtx.Unlock()
	s, _ := jsoniter.MarshalToString(nm)
	return s
}

func (nm *nodeMetric) MarkStep(round, epoch, committedRound uint64) {
	nm.mtx.Lock()
	defer nm.mtx.Unlock()
	nm.Round = round
	nm.Epoch = epoch
	nm.CommittedRound = committedRound
	nm.LastStepTime = time.Now()
	nm.LastError = ""
}

func (nm *nodeMetric) MarkSlot(slot uint64) {
	nm.mtx.Lock()
	defer nm.mtx.Unlock()
	nm.Slot = slot
}

func (nm *nodeMetric) MarkIsWorking(v bool) {
	nm.mtx.Lock()
	defer nm.mtx.Unlock()
	nm.IsWorking = v
}

func (nm *nodeMetric) MarkSigned(v bool) {
	nm.mtx.Lock()
	defer nm.mtx.Unlock()
	nm.Signed = v
}

func (nm *nodeMetric) MarkError(err error) {
	nm.mtx.Lock()
	defer nm.mtx.Unlock()
	nm.LastError = err.Error()
}
