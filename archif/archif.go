// Package archif defines the fixed boundary between the portable
// kernel core (mem, vm, handle, ipc, timer, sched, mp, dispatch, boot)
// and the architecture/firmware layer the core treats as an external
// collaborator: CPU intrinsics, the boot ABI, and a direct-mapped view
// of physical memory. Exactly one implementation exists, archif/sim,
// which stands in for real register pokes and firmware tables with a
// goroutine- and byte-arena-based simulation so the kernel core can
// run, and be tested, as ordinary hosted Go code.
package archif

import "rosekernel/mem"

// Memory is the direct-mapped physical-memory window: every physical
// frame the allocator hands out is reachable as a byte slice through
// it, the same role Dmap/Dmap8 play in biscuit's mem package.
type Memory interface {
	// Bytes returns a slice viewing n bytes of physical memory
	// starting at f. The slice aliases the underlying frame; writes
	// through it are visible to every other viewer of the same frame.
	Bytes(f mem.Frame, n uint64) []byte
}

// CPU is the per-core intrinsics vocabulary design note 9 calls for:
// open-coded, deliberately non-portable primitives exposed as an
// interface boundary instead of inline assembly, since this module
// has no freestanding build target.
type CPU interface {
	DisableInterrupts()
	EnableInterrupts()
	InterruptsDisabled() bool
	InvalidatePage(va uint64)
	SendIPI(target CoreID)
	Pause()
}

// CoreID names a logical core, dense from 0 after bring-up compaction.
type CoreID int

// BootInfo is the fixed boot ABI: the memory map, ACPI pointers and
// core count the loader hands the kernel at entry, mirroring the
// Boot ABI struct named in section 6 of the governing interface spec.
// It carries no video-mode descriptor.
type BootInfo struct {
	MemMap       []MemMapEntry
	ACPIRevision int
	ACPIRoot     uint64
	NumCores     int
}

// MemMapEntry describes one physical-memory-map run.
type MemMapEntry struct {
	Base, Length uint64
	Kind         MemKind
}

// MemKind classifies a memory-map run the way the reference kernel's
// loader does, including the usage labels pmm::initialize and
// pmm::report break "used" memory down by.
type MemKind int

const (
	MemFree MemKind = iota
	MemLoader
	MemKernel
	MemInitrd
	MemPagingStructures
	MemMemoryMap
	MemBackbuffer
	MemLogBuffer
	MemWorkingStack
	MemReserved
)

// Context is the fixed-register syscall calling convention: a
// syscall number, a fixed number of argument registers, and a result
// register, matching section 6's "fixed-number register convention".
type Context struct {
	Num    uint64
	Args   [6]uint64
	Result uint64
}
