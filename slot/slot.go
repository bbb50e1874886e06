package slot

import (
	"sync"
	"time"

	"github.com/tendermint/tendermint/libs/service"
)

const tickTockBufferSize = 10

// Slot提供逻辑时钟, 每次超时slot加一
type Slot interface {
	service.Service

	// 获取当前的slot
	GetSlot() uint64

	// 获取超时channel, 超时事件携带超时之后的slot
	Chan() <-chan uint64

	// 重置超时定时器
	ResetClock(duration time.Duration)
}

// SlotClock 用一个time.Timer实现Slot. 启动后在第一次ResetClock之前不会超时
type SlotClock struct {
	service.BaseService

	mtx          sync.Mutex
	slot         uint64
	lastUpdate   time.Time
	lastDuration time.Duration

	timer   *time.Timer
	resetCh chan time.Duration
	tockCh  chan uint64
}

var _ Slot = (*SlotClock)(nil)

func NewSlotClock(initial uint64) *SlotClock {
	sc := &SlotClock{
		slot:    initial,
		timer:   time.NewTimer(0),
		resetCh: make(chan time.Duration, tickTockBufferSize),
		tockCh:  make(chan uint64, tickTockBufferSize),
	}
	sc.BaseService = *service.NewBaseService(nil, "SlotClock", sc)
	sc.stopTimer()
	return sc
}

// OnStart implements service.Service. It starts the timeout routine.
func (sc *SlotClock) OnStart() error {
	go sc.timeoutRoutine()
	return nil
}

// OnStop implements service.Service. It stops the timeout routine.
func (sc *SlotClock) OnStop() {}

func (sc *SlotClock) GetSlot() uint64 {
	sc.mtx.Lock()
	defer sc.mtx.Unlock()
	return sc.slot
}

// GetLastUptTime 最近一次超时的时间
func (sc *SlotClock) GetLastUptTime() time.Time {
	sc.mtx.Lock()
	defer sc.mtx.Unlock()
	return sc.lastUpdate
}

func (sc *SlotClock) GetLastDuration() time.Duration {
	sc.mtx.Lock()
	defer sc.mtx.Unlock()
	return sc.lastDuration
}

func (sc *SlotClock) Chan() <-chan uint64 {
	return sc.tockCh
}

// ResetClock 丢弃尚未触发的超时, duration之后重新触发
func (sc *SlotClock) ResetClock(duration time.Duration) {
	sc.resetCh <- duration
}

// stop the timer and drain if necessary
func (sc *SlotClock) stopTimer() {
	// Stop() returns false if it was already fired or was stopped
	if !sc.timer.Stop() {
		select {
		case <-sc.timer.C:
		default:
			sc.Logger.Debug("Timer already stopped")
		}
	}
}

// 只有这个goroutine操作timer
func (sc *SlotClock) timeoutRoutine() {
	sc.Logger.Debug("Starting timeout routine")
	for {
		select {
		case d := <-sc.resetCh:
			sc.stopTimer()
			sc.mtx.Lock()
			sc.lastDuration = d
			sc.mtx.Unlock()
			sc.timer.Reset(d)
			sc.Logger.Debug("Scheduled timeout", "dur", d, "slot", sc.GetSlot())
		case <-sc.timer.C:
			sc.mtx.Lock()
			sc.slot++
			sc.lastUpdate = time.Now()
			slot := sc.slot
			sc.mtx.Unlock()
			sc.Logger.Debug("Timed out", "slot", slot)
			// 不阻塞timer, 接收方可能正在调用ResetClock
			go func() { sc.tockCh <- slot }()
		case <-sc.Quit():
			sc.stopTimer()
			return
		}
	}
}
