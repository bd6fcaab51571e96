package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConvertTicksNoOverflow(t *testing.T) {
	// 1e15 ticks at a 1e6 femtosecond period (1 nanosecond per tick):
	// the product 1e21 would overflow a naive ticks*period/1e6
	// computed in 64 bits before the division; ConvertTicks must
	// still get this right.
	const ticks = 1_000_000_000_000_000
	const periodFs = 1_000_000
	got := ConvertTicks(ticks, periodFs)
	assert.EqualValues(t, ticks*periodFs/1_000_000, got)
}

func TestConvertTicksZero(t *testing.T) {
	assert.EqualValues(t, 0, ConvertTicks(0, 12345))
}

func TestEngineNowAdvancesMonotonically(t *testing.T) {
	e := NewEngine()
	defer e.Stop()

	first := e.Now()
	time.Sleep(5 * time.Millisecond)
	second := e.Now()
	assert.True(t, second.After(first), "Now must advance as ticks elapse since the engine's epoch")
}

func TestEngineOneShotFires(t *testing.T) {
	e := NewEngine()
	defer e.Stop()

	fired := make(chan struct{})
	e.OneShot(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestEngineCancelPreventsFire(t *testing.T) {
	e := NewEngine()
	defer e.Stop()

	var fired int32
	d := e.OneShot(20*time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel(), "a second Cancel must report false")

	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&fired))
}

func TestEngineFiresInDeadlineOrder(t *testing.T) {
	e := NewEngine()
	defer e.Stop()

	order := make(chan int, 2)
	e.OneShot(40*time.Millisecond, func() { order <- 2 })
	e.OneShot(10*time.Millisecond, func() { order <- 1 })

	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}
