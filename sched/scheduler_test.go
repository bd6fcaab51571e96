package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rosekernel/archif/sim"
)

func TestInstanceScheduleAndDeschedule(t *testing.T) {
	cpu := sim.NewCore(0)
	idle := &Thread{Tid: -1}
	in := NewInstance(0, cpu, idle)
	assert.Same(t, idle, in.CurrentThread())

	th := &Thread{Tid: 1}
	in.Schedule(0, th)
	assert.Equal(t, 100, in.AverageLoad())

	ran := in.Deschedule()
	assert.Same(t, idle, ran, "Deschedule returns the thread that *was* running before the swap")
	assert.Same(t, th, in.CurrentThread())
}

func TestInstanceScheduleCurrentThreadPanics(t *testing.T) {
	cpu := sim.NewCore(0)
	idle := &Thread{Tid: -1}
	in := NewInstance(0, cpu, idle)
	assert.Panics(t, func() { in.Schedule(0, idle) })
}

func TestInstanceCrossCoreScheduleSendsIPI(t *testing.T) {
	cpu := sim.NewCore(1)
	idle := &Thread{Tid: -1}
	in := NewInstance(1, cpu, idle)

	in.Schedule(0, &Thread{Tid: 5})

	select {
	case target := <-cpu.IPIChannel():
		assert.EqualValues(t, 1, target)
	default:
		t.Fatal("cross-core Schedule must send an IPI to the owning core")
	}
}

func TestAggregatePicksLowestLoadedChild(t *testing.T) {
	a := &Aggregate{}
	light := NewInstance(0, sim.NewCore(0), &Thread{Tid: -1})
	heavy := NewInstance(1, sim.NewCore(1), &Thread{Tid: -2})
	heavy.Schedule(1, &Thread{Tid: 10})
	heavy.Schedule(1, &Thread{Tid: 11})

	a.AddChild(light)
	a.AddChild(heavy)

	th := &Thread{Tid: 99}
	a.Schedule(0, th)
	assert.Same(t, th, light.threads[0], "the lightest-loaded child must receive the new thread")
}

func TestAggregateAverageLoad(t *testing.T) {
	a := &Aggregate{}
	i0 := NewInstance(0, sim.NewCore(0), &Thread{Tid: -1})
	i1 := NewInstance(1, sim.NewCore(1), &Thread{Tid: -2})
	i1.Schedule(1, &Thread{Tid: 1})
	a.AddChild(i0)
	a.AddChild(i1)
	assert.Equal(t, 50, a.AverageLoad())
}

func TestAggregateAverageLoadWithNoChildrenPanics(t *testing.T) {
	a := &Aggregate{}
	assert.Panics(t, func() { a.AverageLoad() })
}
