package mp

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosekernel/archif/sim"
	"rosekernel/defs"
)

func TestParallelExecuteAllRunsOnEveryCore(t *testing.T) {
	// cpu's IPI channel is buffered (see archif/sim), so ParallelExecute's
	// SendIPI calls need no drainer: the per-core work queues inside
	// Bus are what actually deliver the dispatched function.
	cpu := sim.NewCore(0)
	cores := []defs.CoreID{0, 1, 2}
	bus := NewBus(0, cpu, cores)

	stop := make(chan struct{})
	defer close(stop)
	for _, c := range cores {
		go bus.RunPump(c, stop)
	}

	var count int32
	bus.ParallelExecute(PolicyAll, 0, func() { atomic.AddInt32(&count, 1) })
	assert.EqualValues(t, 3, count)
}

func TestParallelExecuteSpecificTargetsOneCore(t *testing.T) {
	cpu := sim.NewCore(0)
	cores := []defs.CoreID{0, 1}
	bus := NewBus(0, cpu, cores)

	stop := make(chan struct{})
	defer close(stop)
	for _, c := range cores {
		go bus.RunPump(c, stop)
	}

	ran := make(chan defs.CoreID, 2)
	bus.ParallelExecute(PolicySpecific, 1, func() { ran <- 1 })

	select {
	case c := <-ran:
		assert.EqualValues(t, 1, c)
	case <-time.After(time.Second):
		t.Fatal("dispatched work never ran")
	}
}

func TestParallelExecuteNoMatchPanics(t *testing.T) {
	cpu := sim.NewCore(0)
	bus := NewBus(0, cpu, []defs.CoreID{0})
	require.Panics(t, func() { bus.ParallelExecute(PolicySpecific, 99, func() {}) })
}
