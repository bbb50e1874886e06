package slot

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

func getTestLogWithDebug() log.Logger {
	return log.NewFilter(log.TestingLogger(), log.AllowDebug())
}

// 启动后在第一次ResetClock之前不会收到任何事件
func TestSlotDefaultTimeout(t *testing.T) {
	sc := NewSlotClock(0)
	sc.SetLogger(getTestLogWithDebug())
	require.NoError(t, sc.Start())
	defer sc.Stop()

	select {
	case <-sc.Chan():
		t.Error("有额外的超时事件")
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, uint64(0), sc.GetSlot())
}

// 多次Reset, clock能否正确更新slot值
func TestSlotNormalCase(t *testing.T) {
	initial := uint64(100)
	sc := NewSlotClock(initial)
	sc.SetLogger(getTestLogWithDebug())
	require.NoError(t, sc.Start())
	defer sc.Stop()

	after := 50 * time.Millisecond
	for i := 1; i <= 5; i++ {
		resetNow := time.Now()
		sc.ResetClock(after)

		select {
		case slot := <-sc.Chan():
			assert.Equal(t, initial+uint64(i), slot)
		case <-time.After(time.Second):
			t.Fatal("超时事件没有正确触发")
		}
		assert.Equal(t, initial+uint64(i), sc.GetSlot())
		assert.True(t, sc.GetLastUptTime().Sub(resetNow) >= after, "超时事件没有按照预设时间触发")
		assert.Equal(t, after, sc.GetLastDuration())
	}
}

// 先设置一个长的超时, 再用一个短的时间间隔reset
func TestResetClock(t *testing.T) {
	defer leaktest.Check(t)()

	sc := NewSlotClock(0)
	sc.SetLogger(log.TestingLogger())
	require.NoError(t, sc.Start())

	longDuration := 2 * time.Second
	shortDuration := 100 * time.Millisecond
	sc.ResetClock(longDuration)
	time.Sleep(50 * time.Millisecond)
	resetNow := time.Now()
	sc.ResetClock(shortDuration)

	select {
	case slot := <-sc.Chan():
		assert.Equal(t, uint64(1), slot)
		assert.True(t, sc.GetLastUptTime().Sub(resetNow) >= shortDuration)
		assert.Equal(t, shortDuration, sc.GetLastDuration())
	case <-time.After(longDuration):
		t.Error("超时事件一直没有触发")
	}
	require.NoError(t, sc.Stop())
}
