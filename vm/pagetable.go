// Package vm implements the page-table engine, virtual memory
// objects, virtual address spaces, and the mapping reader/writer lock
// used to validate syscall pointer arguments. It is grounded on
// biscuit's vm package (Vm_t, Userdmap8_inner, Sys_pgfault,
// Vmadd_anon/_file/_shareanon/_sharefile) and on the reference
// kernel's memory/{vas,vmo,vmo_mapping,vm}.cpp, which this keeps the
// shape of while replacing POSIX-style anon/file-backed regions with
// the physical/sparse VMO model those files actually describe.
package vm

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"rosekernel/archif"
	"rosekernel/mem"
	"rosekernel/util"
)

const (
	entriesPerTable = 512
	levels          = 4

	peFlagPresent  = uint64(1) << 0
	peFlagWritable = uint64(1) << 1
	peFlagUser     = uint64(1) << 2
	peFlagHuge     = uint64(1) << 7
	peFlagLock     = uint64(52) // bit index, not a mask: see util.BitLock

	peFrameMask = uint64(0x000ffffffffff000)
)

// PageTable is a 4-level, 512-entry-per-level radix tree whose nodes
// are physical frames viewed through a Memory window -- the same
// layout biscuit's Pmap_t walks and the reference kernel's
// arch::vm::map_physical targets, generalized to an explicit Go type
// instead of a raw *Pmap_t.
type PageTable struct {
	root mem.Frame
	pool *mem.Allocator
	win  archif.Memory
}

// NewPageTable allocates a fresh, all-zero root table.
func NewPageTable(pool *mem.Allocator, win archif.Memory) *PageTable {
	root := pool.Pop(mem.Class4K)
	zero(win, root)
	return &PageTable{root: root, pool: pool, win: win}
}

// Root returns the physical frame of the PML4-equivalent root table,
// i.e. the value archif loads into the ASID/CR3-equivalent register
// on a VAS switch.
func (pt *PageTable) Root() mem.Frame { return pt.root }

func zero(win archif.Memory, f mem.Frame) {
	b := win.Bytes(f, mem.Sizes[mem.Class4K])
	for i := range b {
		b[i] = 0
	}
}

func tableEntries(win archif.Memory, f mem.Frame) []uint64 {
	b := win.Bytes(f, mem.Sizes[mem.Class4K])
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), entriesPerTable)
}

func index(va uint64, level int) int {
	shift := 12 + 9*level
	return int((va >> shift) & (entriesPerTable - 1))
}

// Map installs a leaf translation for va -> frame with the given
// write/user permissions, allocating any missing intermediate tables
// from pool. It panics if va is already mapped, matching the
// "overlap -> PANIC" contract vas::map_vmo enforces at the VAS layer;
// PageTable itself is the mechanism, not the policy, so double-map
// here always indicates a bug in a caller that should have checked
// first.
func (pt *PageTable) Map(va uint64, frame mem.Frame, writable, user bool) {
	node := pt.root
	for level := levels - 1; level > 0; level-- {
		entries := tableEntries(pt.win, node)
		i := index(va, level)
		release := util.BitLock(&entries[i], peFlagLock)
		e := entries[i]
		if e&peFlagPresent == 0 {
			child := pt.pool.Pop(mem.Class4K)
			zero(pt.win, child)
			flags := peFlagPresent | peFlagWritable
			if user {
				flags |= peFlagUser
			}
			entries[i] = uint64(child) | flags
			e = entries[i]
		}
		release()
		node = mem.Frame(e & peFrameMask)
	}
	entries := tableEntries(pt.win, node)
	i := index(va, 0)
	release := util.BitLock(&entries[i], peFlagLock)
	defer release()
	if entries[i]&peFlagPresent != 0 {
		panic(fmt.Sprintf("vm: Map called on already-present va %#x", va))
	}
	flags := peFlagPresent
	if writable {
		flags |= peFlagWritable
	}
	if user {
		flags |= peFlagUser
	}
	entries[i] = uint64(frame) | flags
}

// Unmap clears the leaf translation for va. It panics if va was not
// mapped.
func (pt *PageTable) Unmap(va uint64) mem.Frame {
	node := pt.root
	for level := levels - 1; level > 0; level-- {
		entries := tableEntries(pt.win, node)
		i := index(va, level)
		e := atomic.LoadUint64(&entries[i])
		if e&peFlagPresent == 0 {
			panic(fmt.Sprintf("vm: Unmap called on unmapped va %#x", va))
		}
		node = mem.Frame(e & peFrameMask)
	}
	entries := tableEntries(pt.win, node)
	i := index(va, 0)
	release := util.BitLock(&entries[i], peFlagLock)
	defer release()
	e := entries[i]
	if e&peFlagPresent == 0 {
		panic(fmt.Sprintf("vm: Unmap called on unmapped va %#x", va))
	}
	entries[i] = 0
	return mem.Frame(e & peFrameMask)
}

// Translate looks up va without locking, for read-only diagnostics
// and for the page-fault handler's initial probe.
func (pt *PageTable) Translate(va uint64) (mem.Frame, bool) {
	node := pt.root
	for level := levels - 1; level >= 0; level-- {
		entries := tableEntries(pt.win, node)
		i := index(va, level)
		e := atomic.LoadUint64(&entries[i])
		if e&peFlagPresent == 0 {
			return 0, false
		}
		if level == 0 {
			return mem.Frame(e & peFrameMask), true
		}
		node = mem.Frame(e & peFrameMask)
	}
	return 0, false
}

// CloneUpperHalf copies every present PML4-level (level 3) entry at
// or above splitVA into dst, giving every process's address space a
// shared view of kernel mappings without copying the lower tables --
// the same "clone upper half" step biscuit's Dmap_init performs via
// Kents when constructing a fresh Pmap_t.
func (pt *PageTable) CloneUpperHalf(dst *PageTable, splitVA uint64) {
	srcEntries := tableEntries(pt.win, pt.root)
	dstEntries := tableEntries(dst.win, dst.root)
	start := index(splitVA, levels-1)
	for i := start; i < entriesPerTable; i++ {
		e := atomic.LoadUint64(&srcEntries[i])
		if e&peFlagPresent != 0 {
			atomic.StoreUint64(&dstEntries[i], e)
		}
	}
}
