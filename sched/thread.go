// Package sched implements the multi-core scheduler: a per-core
// instance holding threads in a min-heap ordered by last-scheduled
// timestamp, and a root aggregate that load-balances across instances
// and dispatches across cores via IPI when needed. Ported from the
// reference kernel's scheduler/{instance,types}.{h,cpp}.
package sched

import (
	"container/heap"
	"time"

	"rosekernel/defs"
	"rosekernel/handle"
)

// Thread is one schedulable unit of execution, always owned by
// exactly one handle.Process (its "container", in the reference
// kernel's terms). Thread/process/VAS teardown semantics are left for
// callers to define -- the reference kernel's own vas destructor is
// PANIC("this requires an amount of work tbh") -- rosekernel provides
// only the sched.Reaper hook for it (see reaper.go), which nothing in
// sched invokes.
type Thread struct {
	Tid       defs.Tid_t
	Container *handle.Process
	Timestamp time.Time

	// UserNS/SysNS hold CPU time charged in user or kernel mode,
	// generalized from biscuit's accnt.Accnt_t -- the reference
	// kernel tracks no per-thread timing at all. Nothing in rosekernel
	// updates them; they stay at whatever the creator set.
	UserNS, SysNS int64

	// killed and doomed generalize biscuit's Tnote_t: killed is set
	// once a termination request has been posted, doomed once the
	// thread has acknowledged it and is unwinding toward its final
	// Deschedule. Neither the reference kernel nor biscuit's own
	// Tnote_t resolves what happens after that point -- see Reaper.
	killed, doomed bool

	index int // heap slot
}

// Kill marks t as having received a termination request. It does not
// itself deschedule t; a thread notices Killed on its own schedule
// point, the same cooperative-cancellation contract Tnote_t.Killed
// documents.
func (t *Thread) Kill() { t.killed = true }

// Killed reports whether Kill has been called.
func (t *Thread) Killed() bool { return t.killed }

// MarkDoomed records that t has acknowledged termination and is
// unwinding; Doomed mirrors Tnote_t.Doomed's read side.
func (t *Thread) MarkDoomed() { t.doomed = true }

// Doomed reports whether MarkDoomed has been called.
func (t *Thread) Doomed() bool { return t.doomed }

func (t *Thread) Kind() defs.ObjectKind { return defs.KindProcess } // threads aren't separately handle-addressable

type threadHeap []*Thread

func (h threadHeap) Len() int           { return len(h) }
func (h threadHeap) Less(i, j int) bool { return h[i].Timestamp.Before(h[j].Timestamp) }
func (h threadHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *threadHeap) Push(x any) {
	t := x.(*Thread)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *threadHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

var _ = heap.Interface(&threadHeap{})
