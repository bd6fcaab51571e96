package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rosekernel/mem"
)

func TestMappingLockRejectsAfterRelease(t *testing.T) {
	pool, win := newVASFixture(t, 8*mem.Sizes[mem.Class2M])
	v := NewVAS(pool, win, nil)
	vmo := NewPhysicalVMO(pool, pool.Pop(mem.Class4K), mem.Sizes[mem.Class4K], mem.Sizes[mem.Class4K])
	m, err := v.MapVMO(0x10000, vmo, FlagUser)
	if err != nil {
		t.Fatal(err)
	}

	assert.True(t, m.IsValid())
	v.Unmap(m)
	assert.False(t, m.IsValid())
	assert.Panics(t, func() { m.Lock() })
	assert.Panics(t, func() { m.SharedLock() })
}

func TestMapFlagsHas(t *testing.T) {
	f := FlagUser | FlagReadOnly
	assert.True(t, f.Has(FlagUser))
	assert.True(t, f.Has(FlagReadOnly))
	assert.False(t, FlagUser.Has(FlagReadOnly))
}
