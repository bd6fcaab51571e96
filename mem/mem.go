// Package mem implements the physical frame allocator: a set of
// power-of-two size classes, each backed by a free stack, with
// splitting from the next class up on exhaustion. It is grounded on
// biscuit's mem package (Physmem_t, _phys_new/_phys_put, the per-CPU
// page cache) and on the reference kernel's pmm::instance
// (kernel/memory/pmm.cpp), which this generalizes from a single 4K
// class plus ad-hoc 2M/1G paths into three uniformly-split classes.
package mem

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/pprof/profile"

	"rosekernel/klog"
)

// Class indexes a frame size class, smallest first.
type Class int

const (
	Class4K Class = iota
	Class2M
	Class1G
	numClasses
)

// Sizes gives the byte size of each class, matching the three page
// sizes the reference kernel's pmm tracks.
var Sizes = [numClasses]uint64{
	Class4K: 4 * 1024,
	Class2M: 2 * 1024 * 1024,
	Class1G: 1 * 1024 * 1024 * 1024,
}

// ratio is how many frames of class c-1 make up one frame of class c.
func ratio(c Class) uint64 {
	return Sizes[c] / Sizes[c-1]
}

// Frame is a physical frame's base address, in bytes.
type Frame uint64

type class struct {
	mu   sync.Mutex
	free []Frame
}

// Allocator is the frame allocator for one physical-memory arena. In
// the hosted simulation (see archif/sim) the arena is a plain byte
// slice rather than real physical memory; Pop/Push only ever hand out
// and accept frame base addresses within it.
type Allocator struct {
	base    Frame
	classes [numClasses]class

	// OOMChannel, if set, is offered a chance to rescue an
	// exhausted top-level Pop before it panics -- the "inter-
	// instance rebalancer is a documented extension point" the
	// reference kernel leaves as a TODO ("...and now implement
	// cross-pmm-instance rebalancing", pmm.cpp). A rescuer drains
	// the channel, frees frames via Push, and replies on Resume.
	OOMChannel chan OOMRequest

	used [numClasses]uint64 // stats, gated by StatsEnabled
}

// OOMRequest is posted to OOMChannel when the top-level class is
// exhausted; Resume is signalled once the rescuer has pushed at
// least one frame back, or closed to indicate no rescue is possible.
type OOMRequest struct {
	Need   Class
	Resume chan bool
}

// StatsEnabled gates the per-class used-frame counters, mirroring
// biscuit's stats package compile-time toggle (const Stats = false):
// the hot allocation path costs nothing when this is false.
const StatsEnabled = true

// NewAllocator reserves an arena of size bytes starting at base and
// greedily partitions it into free-list entries. Used directly by
// tests and by any caller with a single flat arena and no firmware
// memory map to walk; a real boot path uses Initialize instead.
func NewAllocator(base Frame, size uint64) *Allocator {
	a := &Allocator{base: base}
	a.carve(base, size)
	return a
}

// MemMapEntry is the subset of one firmware memory-map run Initialize
// acts on: its extent and whether pmm::initialize would consider it
// free at all. mem cannot depend on archif's richer, typed
// archif.MemMapEntry/MemKind directly (archif already depends on mem
// for the Frame type its Memory interface is expressed over), so
// boot.Bootstrap narrows archif.BootInfo's typed entries down to this
// shape -- Kind == archif.MemFree becomes Free: true, every other
// recognized kind (kernel image, initrd, the memory map and paging
// structures themselves, the log buffer, the loader's own working
// stack, ...) becomes Free: false and contributes nothing to the free
// lists, matching pmm::initialize's per-range scan.
type MemMapEntry struct {
	Base, Length uint64
	Free         bool
}

// reserveBelow1MiB is the sub-1MiB region AP trampoline code is
// staged into during bring-up (see boot.Bootstrap's wakeAPs). It is
// carved out of the free lists unconditionally, regardless of what
// the firmware memory map reports for it, mirroring pmm::initialize
// reserving the same region for "the AP bringup trampoline" before it
// ever looks at a free run's typed kind.
const reserveBelow1MiB = 1 << 20

// Initialize builds an Allocator by walking a firmware-reported
// memory map: each free run is split into free-list entries the same
// largest-aligned-first, then-recursively-smaller way NewAllocator
// partitions a single flat arena, runs typed as anything other than
// free contribute nothing, and the sub-1MiB region is excluded from
// every run to leave room for AP trampoline bring-up. Ported from
// pmm::initialize's per-range scan (kernel/memory/pmm.cpp), applied
// here to however many runs the caller's memory map actually has
// (one, in the simulated single-run case; several on a real machine).
func Initialize(entries []MemMapEntry) *Allocator {
	a := &Allocator{}
	for _, e := range entries {
		if !e.Free || e.Length == 0 {
			continue
		}
		base, end := e.Base, e.Base+e.Length
		if base < reserveBelow1MiB {
			base = reserveBelow1MiB
		}
		if base >= end {
			continue
		}
		a.carve(Frame(base), end-base)
	}
	return a
}

// carve partitions [start,start+size) into free-list entries,
// largest-aligned-first then recursively smaller -- the same
// two-phase loop pmm::initialize uses per free memory-map run, shared
// by both NewAllocator's single-run case and Initialize's multi-run
// walk.
func (a *Allocator) carve(start Frame, size uint64) {
	cur := uint64(start)
	end := uint64(start) + size
	// Phase 1: align up to the largest size class by emitting
	// smaller pages for the unaligned remainder.
	for c := Class(1); c < numClasses; c++ {
		for cur%Sizes[c] != 0 && cur+Sizes[c-1] <= end {
			a.classes[c-1].free = append(a.classes[c-1].free, Frame(cur))
			cur += Sizes[c-1]
		}
	}
	// Phase 2: emit as many of the largest class as fit, then
	// recurse down through the remainder.
	for c := Class(numClasses - 1); c >= 0; c-- {
		for cur+Sizes[c] <= end {
			a.classes[c].free = append(a.classes[c].free, Frame(cur))
			cur += Sizes[c]
		}
	}
}

// Pop removes and returns a free frame of the given class, splitting
// a frame from the next class up if none is free, recursively. If the
// largest class is exhausted it offers OOMChannel one rescue attempt
// before panicking -- Pop must not fail silently, since every caller
// in vm treats a nil frame as an invariant violation, not a
// recoverable error.
func (a *Allocator) Pop(c Class) Frame {
	cl := &a.classes[c]
	cl.mu.Lock()
	if n := len(cl.free); n > 0 {
		f := cl.free[n-1]
		cl.free = cl.free[:n-1]
		if StatsEnabled {
			a.used[c]++
		}
		cl.mu.Unlock()
		return f
	}
	cl.mu.Unlock()

	if c == numClasses-1 {
		if a.tryRescue(c) {
			return a.Pop(c)
		}
		panic(fmt.Sprintf("mem: class %d exhausted, no rebalancer registered", c))
	}

	big := a.Pop(c + 1)
	n := ratio(c + 1)
	cl.mu.Lock()
	for i := uint64(1); i < n; i++ {
		cl.free = append(cl.free, big+Frame(i*Sizes[c]))
	}
	var f Frame
	if n > 0 {
		f = big
	}
	if StatsEnabled {
		a.used[c]++
	}
	cl.mu.Unlock()
	return f
}

func (a *Allocator) tryRescue(c Class) bool {
	if a.OOMChannel == nil {
		return false
	}
	resume := make(chan bool)
	a.OOMChannel <- OOMRequest{Need: c, Resume: resume}
	ok, open := <-resume
	return open && ok
}

// Push returns a frame of class c to the free stack.
func (a *Allocator) Push(c Class, f Frame) {
	cl := &a.classes[c]
	cl.mu.Lock()
	cl.free = append(cl.free, f)
	if StatsEnabled && a.used[c] > 0 {
		a.used[c]--
	}
	cl.mu.Unlock()
}

// Report renders a free/used breakdown per size class in
// GiB/MiB/KiB, mirroring pmm::report().
func (a *Allocator) Report() string {
	var b []byte
	for c := Class(0); c < numClasses; c++ {
		a.classes[c].mu.Lock()
		free := uint64(len(a.classes[c].free)) * Sizes[c]
		used := a.used[c] * Sizes[c]
		a.classes[c].mu.Unlock()
		b = append(b, []byte(fmt.Sprintf("class %-4s free %s used %s\n",
			className(c), klog.ByteSize(free), klog.ByteSize(used)))...)
	}
	return string(b)
}

// WriteProfile emits a pprof-format profile of frame usage, two
// samples per size class (labelled state=used and state=free) at a
// location named for the class, so the same
// tooling that reads a Go heap profile can be pointed at frame-level
// memory pressure -- there is no equivalent in the reference kernel,
// which only ever has pmm::report()'s text dump.
func (a *Allocator) WriteProfile(w io.Writer) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "frames", Unit: "count"}, {Type: "bytes", Unit: "bytes"}},
		Function:   make([]*profile.Function, 0, numClasses),
		Location:   make([]*profile.Location, 0, numClasses),
		Sample:     make([]*profile.Sample, 0, numClasses),
	}
	for c := Class(0); c < numClasses; c++ {
		a.classes[c].mu.Lock()
		freeN := uint64(len(a.classes[c].free))
		used := a.used[c]
		a.classes[c].mu.Unlock()

		fn := &profile.Function{ID: uint64(c) + 1, Name: className(c), SystemName: className(c)}
		loc := &profile.Location{ID: uint64(c) + 1, Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(used), int64(used * Sizes[c])},
			Label:    map[string][]string{"state": {"used"}},
		})
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(freeN), int64(freeN * Sizes[c])},
			Label:    map[string][]string{"state": {"free"}},
		})
	}
	return p.Write(w)
}

func className(c Class) string {
	switch c {
	case Class4K:
		return "4K"
	case Class2M:
		return "2M"
	case Class1G:
		return "1G"
	default:
		return "?"
	}
}
