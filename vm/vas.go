package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"rosekernel/archif"
	"rosekernel/mem"
	"rosekernel/util"
)

// KernelSplit is the virtual address at and above which mappings are
// shared across every VAS (the "upper half"); below it is private to
// one VAS. It mirrors the canonical-higher-half split biscuit's
// Dmap_init/Kents mechanism clones for every fresh Pmap_t.
const KernelSplit = uint64(1) << 47

// VAS is a page-table root together with an ordered, non-overlapping
// set of VMO mappings. Ported from the reference kernel's vas class
// (memory/vas.cpp): the "claimed by a process" latch, the vDSO slot,
// and the overlap-checked map_vmo/unmap pair all carry over with the
// same names reworded into Go idiom.
type VAS struct {
	mu      sync.Mutex
	pt      *PageTable
	pool    *mem.Allocator
	win     archif.Memory
	claimed int32

	mappings util.RangeSet[*Mapping]

	hasVDSO  bool
	vdsoBase uint64
}

// NewVAS allocates a fresh page table and clones the kernel's shared
// upper half into it.
func NewVAS(pool *mem.Allocator, win archif.Memory, kernel *PageTable) *VAS {
	pt := NewPageTable(pool, win)
	if kernel != nil {
		kernel.CloneUpperHalf(pt, KernelSplit)
	}
	return &VAS{pt: pt, pool: pool, win: win}
}

// Root returns the page-table root frame, the value a core's ASID
// register is loaded with when scheduling a thread in this VAS.
func (v *VAS) Root() mem.Frame { return v.pt.Root() }

// ClaimForProcess latches the VAS to its owning process exactly once;
// subsequent calls report false, matching vas::claim_for_process's
// idempotent-failing contract (original_source/memory/vas.cpp).
func (v *VAS) ClaimForProcess() bool {
	return atomic.CompareAndSwapInt32(&v.claimed, 0, 1)
}

// VDSOBase returns the vDSO mapping's base address, if one has been
// registered.
func (v *VAS) VDSOBase() (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vdsoBase, v.hasVDSO
}

// SetVDSOBase records the vDSO mapping's base address. It is called
// once, from the same path that installs the vDSO's Mapping.
func (v *VAS) SetVDSOBase(base uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vdsoBase = base
	v.hasVDSO = true
}

// MapVMO installs vmo over [start,start+vmo.Length()) with flags. It
// panics on misalignment or overlap, matching map_vmo's PANIC-on-bad-
// input contract -- callers (dispatch's rose_mapping_create handler)
// are expected to have already validated user-controllable addresses
// before reaching this layer. Sparse VMOs are committed in full before
// mapping (see vm.VMO.CommitAll): demand paging of sparse regions is
// out of scope here, matching the "TODO: remove when on demand
// mapping is supported" stopgap in
// vas::syscall_rose_mapping_create_handler, which this keeps as a
// deliberate simplification rather than porting the on-demand path
// the original never implemented either.
func (v *VAS) MapVMO(start uint64, vmo *VMO, flags MapFlags) (*Mapping, error) {
	length := vmo.Length()
	if start%vmo.pageSize != 0 {
		panic(fmt.Sprintf("vm: MapVMO start %#x not aligned to page size %d", start, vmo.pageSize))
	}
	end := start + length

	v.mu.Lock()
	if _, overlap := v.mappings.FindRange(start, end); overlap {
		v.mu.Unlock()
		panic(fmt.Sprintf("vm: MapVMO [%#x,%#x) overlaps an existing mapping", start, end))
	}
	vmo.Ref()
	m := newMapping(v, start, end, vmo, flags)
	v.mappings.Insert(start, end, m)
	v.mu.Unlock()

	if vmo.typ == VMOSparse {
		vmo.CommitAll()
	}
	user := flags.Has(FlagUser)
	writable := !flags.Has(FlagReadOnly)
	for off := uint64(0); off < length; off += vmo.pageSize {
		v.pt.Map(start+off, vmo.FrameAt(off), writable, user)
	}
	return m, nil
}

// Unmap removes m from the VAS, clearing its page-table translations
// and releasing its VMO reference. It follows unmap()'s lock
// ordering: the mapping's own lock is taken first, then the VAS lock,
// then the mapping is released.
func (v *VAS) Unmap(m *Mapping) {
	release := m.Lock()
	v.mu.Lock()
	start, end := m.Range()
	for off := start; off < end; off += m.vmo.pageSize {
		v.pt.Unmap(off)
	}
	v.mappings.Remove(start)
	v.mu.Unlock()
	m.release()
	release()
}

// LockAddressRange finds the single mapping that fully contains
// [start,end) and returns a lock release function appropriate to
// write, or ok=false if no mapping covers the whole range or a write
// was requested against a read-only mapping -- the exact contract of
// vas::lock_address_range, used by dispatch to validate and pin a
// syscall's in/out pointer arguments before copying through them.
// FindRange only reports overlap, so containment is checked against
// the candidate's own bounds before it is trusted.
func (v *VAS) LockAddressRange(start, end uint64, write bool) (release func(), ok bool) {
	v.mu.Lock()
	m, found := v.mappings.FindRange(start, end)
	v.mu.Unlock()
	if !found {
		return nil, false
	}
	mStart, mEnd := m.Range()
	if start < mStart || end > mEnd {
		return nil, false
	}
	if write && m.Flags().Has(FlagReadOnly) {
		return nil, false
	}
	if write {
		return m.Lock(), true
	}
	return m.SharedLock(), true
}

// Translate resolves va to a physical frame through this VAS's page
// table, for diagnostics and for the page-fault path.
func (v *VAS) Translate(va uint64) (mem.Frame, bool) {
	return v.pt.Translate(va)
}
