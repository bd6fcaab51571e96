// Package mp is the cross-core runtime: a per-core queue of pending
// work items and a parallel_execute barrier that fans work out to a
// policy-selected set of cores and waits for every one of them to
// acknowledge. Ported from the reference kernel's
// util/mp.{h,cpp} (ipi_queue, erased_parallel_execute). The original
// has the initiating core self-drain its own queue while waiting,
// because it cannot otherwise run work queued for itself (receiving
// its own IPI requires interrupts it has deliberately left disabled
// while spinning). Goroutines have no such reentrancy hazard -- every
// core, including the caller's, already runs an independent pump
// goroutine draining its queue -- so the barrier here is expressed
// with golang.org/x/sync/errgroup waiting on one acknowledgement
// channel per dispatched core instead of a manual spin-drain loop.
package mp

import (
	"golang.org/x/sync/errgroup"

	"rosekernel/archif"
	"rosekernel/defs"
)

// Policy selects which cores a ParallelExecute call targets.
type Policy int

const (
	PolicyAll Policy = iota
	PolicySpecific
)

type workItem struct {
	fn  func()
	ack chan struct{}
}

// Bus holds one buffered work queue per core. RunPump must be started
// as a long-running goroutine for every core before ParallelExecute is
// used against it -- boot.Bootstrap does this as part of bring-up.
type Bus struct {
	self    defs.CoreID
	queues  map[defs.CoreID]chan *workItem
	cpu     archif.CPU
	ordered []defs.CoreID
}

// NewBus creates a queue for every core in cores, with self identifying
// the core this Bus instance issues IPIs from.
func NewBus(self defs.CoreID, cpu archif.CPU, cores []defs.CoreID) *Bus {
	b := &Bus{self: self, cpu: cpu, queues: make(map[defs.CoreID]chan *workItem)}
	for _, c := range cores {
		b.queues[c] = make(chan *workItem, 64)
		b.ordered = append(b.ordered, c)
	}
	return b
}

// RunPump drains core's queue until stop is closed, running each
// item's fn and signalling its ack channel -- the goroutine standing
// in for a core's IPI interrupt handler continuously draining
// get_ipi_queue().
func (b *Bus) RunPump(core defs.CoreID, stop <-chan struct{}) {
	q := b.queues[core]
	for {
		select {
		case <-stop:
			return
		case item := <-q:
			item.fn()
			close(item.ack)
		}
	}
}

// ParallelExecute runs fn on every core matching pol (and target, for
// PolicySpecific), blocking until all of them have finished.
func (b *Bus) ParallelExecute(pol Policy, target defs.CoreID, fn func()) {
	var g errgroup.Group
	dispatched := false
	for _, c := range b.ordered {
		if !matches(pol, target, c) {
			continue
		}
		dispatched = true
		item := &workItem{fn: fn, ack: make(chan struct{})}
		b.queues[c] <- item
		g.Go(func() error {
			<-item.ack
			return nil
		})
		b.cpu.SendIPI(c)
	}
	if !dispatched {
		panic("mp: parallel_execute matched no cores")
	}
	_ = g.Wait()
}

func matches(pol Policy, target, core defs.CoreID) bool {
	switch pol {
	case PolicyAll:
		return true
	case PolicySpecific:
		return target == core
	default:
		panic("mp: unknown policy")
	}
}
