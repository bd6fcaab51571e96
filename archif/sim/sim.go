// Package sim is the one concrete archif backend: it models physical
// memory as a single byte arena, cores as goroutines, and
// inter-processor interrupts as buffered channels. It exists so the
// kernel core can run as ordinary hosted Go code and so its tests can
// exercise every component (mem, vm, handle, ipc, timer, sched, mp,
// dispatch, boot) against a real, if simulated, collaborator instead
// of a mock.
package sim

import (
	"sync"
	"sync/atomic"

	"rosekernel/archif"
	"rosekernel/mem"
)

// Arena is a flat byte slice standing in for physical memory. Frame
// addresses are offsets into it, matching mem.Allocator's base-0
// convention when constructed with base 0.
type Arena struct {
	bytes []byte
}

// NewArena allocates an arena of the given size.
func NewArena(size uint64) *Arena {
	return &Arena{bytes: make([]byte, size)}
}

// Bytes implements archif.Memory.
func (a *Arena) Bytes(f mem.Frame, n uint64) []byte {
	start := uint64(f)
	if start+n > uint64(len(a.bytes)) {
		panic("sim: frame access out of arena bounds")
	}
	return a.bytes[start : start+n]
}

var _ archif.Memory = (*Arena)(nil)

// Core is one simulated logical core: interrupts-disabled flag,
// pending IPI queue, and a pause hint that does nothing.
type Core struct {
	id       archif.CoreID
	disabled int32
	ipiCh    chan archif.CoreID
	booted   int32
}

// NewCore returns a Core identified by id, with a buffered IPI queue.
func NewCore(id archif.CoreID) *Core {
	return &Core{id: id, ipiCh: make(chan archif.CoreID, 64)}
}

func (c *Core) DisableInterrupts() { atomic.StoreInt32(&c.disabled, 1) }
func (c *Core) EnableInterrupts()  { atomic.StoreInt32(&c.disabled, 0) }
func (c *Core) InterruptsDisabled() bool {
	return atomic.LoadInt32(&c.disabled) != 0
}
func (c *Core) InvalidatePage(va uint64) { /* no TLB to simulate; mappings are consulted live */ }
func (c *Core) Pause()                   { /* cooperative simulation needs no real pause */ }

// SendIPI enqueues target's id on this core's own IPI queue as a
// wake-up hint. mp.Bus dispatches the actual cross-core work through
// its own per-core queues and RunPump goroutines; nothing on that live
// path ever calls IPIChannel (only tests do, to assert a hint was
// sent), so SendIPI must never block on it -- a full queue drops the
// hint instead of stalling the caller the way a real IPI send
// wouldn't stall on a target whose APIC is momentarily busy either.
func (c *Core) SendIPI(target archif.CoreID) {
	select {
	case c.ipiCh <- target:
	default:
	}
}

// IPIChannel exposes the IPI hint queue; only tests read it.
func (c *Core) IPIChannel() <-chan archif.CoreID { return c.ipiCh }

var _ archif.CPU = (*Core)(nil)

// System bundles an Arena and a fixed set of Cores, the simulated
// collaborator boot.Bootstrap and mp.Bus are built against.
type System struct {
	mu    sync.Mutex
	Arena *Arena
	Cores []*Core
}

// NewSystem builds a simulated machine with the given arena size and
// core count.
func NewSystem(arenaSize uint64, numCores int) *System {
	s := &System{Arena: NewArena(arenaSize)}
	for i := 0; i < numCores; i++ {
		s.Cores = append(s.Cores, NewCore(archif.CoreID(i)))
	}
	return s
}

// BootInfo renders a single-run free memory map covering the whole
// arena, the minimum archif.BootInfo a simulated boot needs.
func (s *System) BootInfo() archif.BootInfo {
	return archif.BootInfo{
		MemMap: []archif.MemMapEntry{
			{Base: 0, Length: uint64(len(s.Arena.bytes)), Kind: archif.MemFree},
		},
		NumCores: len(s.Cores),
	}
}
