package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosekernel/archif/sim"
	"rosekernel/mem"
)

func newPoolAndWin(t *testing.T, size uint64) (*mem.Allocator, *sim.Arena) {
	t.Helper()
	return mem.NewAllocator(0, size), sim.NewArena(size)
}

func TestPageTableMapTranslateUnmap(t *testing.T) {
	pool, win := newPoolAndWin(t, 16*mem.Sizes[mem.Class2M])
	pt := NewPageTable(pool, win)

	data := pool.Pop(mem.Class4K)
	pt.Map(0x400000, data, true, true)

	got, ok := pt.Translate(0x400000)
	require.True(t, ok)
	assert.Equal(t, data, got)

	_, ok = pt.Translate(0x401000)
	assert.False(t, ok)

	freed := pt.Unmap(0x400000)
	assert.Equal(t, data, freed)
	_, ok = pt.Translate(0x400000)
	assert.False(t, ok)
}

func TestPageTableDoubleMapPanics(t *testing.T) {
	pool, win := newPoolAndWin(t, 16*mem.Sizes[mem.Class2M])
	pt := NewPageTable(pool, win)
	f := pool.Pop(mem.Class4K)
	pt.Map(0x1000, f, true, false)
	assert.Panics(t, func() { pt.Map(0x1000, f, true, false) })
}

func TestPageTableUnmapUnmappedPanics(t *testing.T) {
	pool, win := newPoolAndWin(t, 16*mem.Sizes[mem.Class2M])
	pt := NewPageTable(pool, win)
	assert.Panics(t, func() { pt.Unmap(0x1000) })
}

func TestPageTableCloneUpperHalf(t *testing.T) {
	pool, win := newPoolAndWin(t, 32*mem.Sizes[mem.Class2M])
	kernel := NewPageTable(pool, win)
	f := pool.Pop(mem.Class4K)
	kernelVA := uint64(1) << 47 // at the canonical split
	kernel.Map(kernelVA, f, true, false)

	fresh := NewPageTable(pool, win)
	kernel.CloneUpperHalf(fresh, kernelVA)

	got, ok := fresh.Translate(kernelVA)
	require.True(t, ok)
	assert.Equal(t, f, got)
}
