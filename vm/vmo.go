package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"rosekernel/mem"
	"rosekernel/util"
)

// VMOType tags a VMO as a contiguous pre-existing range or a
// page-indexed, commit-on-demand sparse region, mirroring vmo_type in
// the reference kernel's memory/vmo.h.
type VMOType int

const (
	VMOPhysical VMOType = iota
	VMOSparse
)

// VMO is a reference-counted virtual memory object: either a fixed
// physical range, or a sparse, page-indexed set of committed frames
// that grows on demand. Ported from memory/vmo.cpp's commit_all /
// commit_between_offsets algorithm, which walks an ordered map of
// elements keyed by page-aligned offset and fills gaps by inserting
// new elements at a fixed stride -- here util.RangeSet stands in for
// the intrusive avl_tree<_sparse_vmo_element> the original uses.
type VMO struct {
	mu       sync.Mutex
	refs     int32
	typ      VMOType
	length   uint64
	pageSize uint64
	pool     *mem.Allocator

	physBase mem.Frame // VMOPhysical only

	sparse util.RangeSet[mem.Frame] // VMOSparse only: offset -> committed frame
}

// NewPhysicalVMO wraps a pre-existing contiguous frame range. length
// is rounded up to pageSize.
func NewPhysicalVMO(pool *mem.Allocator, base mem.Frame, length, pageSize uint64) *VMO {
	return &VMO{
		refs: 1, typ: VMOPhysical,
		length: util.Roundup(length, pageSize), pageSize: pageSize,
		pool: pool, physBase: base,
	}
}

// NewSparseVMO creates an initially-uncommitted sparse VMO of the
// given length, rounded up to pageSize -- the counterpart of
// create_sparse_vmo. Its committed-page set starts empty; pages are
// added one element each as they are committed.
func NewSparseVMO(pool *mem.Allocator, length, pageSize uint64) *VMO {
	return &VMO{
		refs: 1, typ: VMOSparse,
		length: util.Roundup(length, pageSize), pageSize: pageSize,
		pool: pool,
	}
}

func (v *VMO) Type() VMOType   { return v.typ }
func (v *VMO) Length() uint64  { return v.length }

// Ref increments the VMO's reference count; called whenever a new
// mapping or handle takes ownership of it.
func (v *VMO) Ref() { atomic.AddInt32(&v.refs, 1) }

// Unref drops a reference, freeing all committed sparse frames back
// to pool once the count reaches zero -- the Go equivalent of
// vmo::~vmo()'s commit-frame teardown loop.
func (v *VMO) Unref() {
	if atomic.AddInt32(&v.refs, -1) != 0 {
		return
	}
	if v.typ != VMOSparse {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sparse.Each(func(_, _ uint64, f mem.Frame) {
		v.pool.Push(mem.Class4K, f)
	})
}

// Base returns the physical base of a physical VMO. It panics for a
// sparse VMO, matching vmo::base()'s PANIC-if-not-physical contract.
func (v *VMO) Base() mem.Frame {
	if v.typ != VMOPhysical {
		panic("vm: Base called on a non-physical VMO")
	}
	return v.physBase
}

// CommitAll commits every page of a sparse VMO; a no-op for physical
// VMOs (they have nothing to commit), matching vmo::commit_all.
func (v *VMO) CommitAll() {
	v.CommitRange(0, v.length)
}

// CommitRange ensures every page in [start,end) of a sparse VMO is
// backed by a frame, popping new frames from pool for any
// uncommitted offset, and is a no-op for physical VMOs.
func (v *VMO) CommitRange(start, end uint64) {
	if v.typ != VMOSparse {
		return
	}
	if end > v.length || start >= end {
		panic(fmt.Sprintf("vm: CommitRange [%d,%d) out of bounds for length %d", start, end, v.length))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	for off := util.Rounddown(start, v.pageSize); off < end; off += v.pageSize {
		if _, ok := v.sparse.Find(off); ok {
			continue
		}
		f := v.pool.Pop(mem.Class4K)
		if !v.sparse.Insert(off, off+v.pageSize, f) {
			panic("vm: sparse commit raced with itself")
		}
	}
}

// FrameAt returns the frame backing offset off, committing it first
// if needed. It is the read path the page-table installer in
// VAS.MapVMO calls through.
func (v *VMO) FrameAt(off uint64) mem.Frame {
	if v.typ == VMOPhysical {
		return v.physBase + mem.Frame(util.Rounddown(off, v.pageSize))
	}
	v.CommitRange(off, off+v.pageSize)
	v.mu.Lock()
	f, _ := v.sparse.Find(off)
	v.mu.Unlock()
	return f
}

// IsCommitted reports whether offset off of a sparse VMO already has
// a backing frame, without committing it. VAS.MapVMO does not call it:
// instead of rejecting uncommitted sparse VMOs the way vas::map_vmo
// does, it calls CommitAll up front.
func (v *VMO) IsCommitted(off uint64) bool {
	if v.typ == VMOPhysical {
		return true
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.sparse.Find(off)
	return ok
}
