package vm

import (
	"sync"
)

// MapFlags mirrors vm::flags in memory/vm.h: a small bitmask attached
// to a mapping at creation time.
type MapFlags uint32

const (
	FlagNone MapFlags = 0
	FlagUser MapFlags = 1 << iota
	FlagReadOnly
)

func (f MapFlags) Has(want MapFlags) bool { return f&want == want }

// Mapping binds a VMO into a VAS over [Start,End). It carries its own
// reader/writer lock so dispatch can validate and pin a syscall
// pointer argument against exactly the mapping it falls in, without
// taking the whole VAS lock for the duration of the copy -- ported
// from vmo_mapping's lock()/shared_lock() pair in
// memory/vmo_mapping.h.
type Mapping struct {
	mu      sync.RWMutex
	vas     *VAS
	start   uint64
	end     uint64
	vmo     *VMO
	flags   MapFlags
	valid   bool
}

func newMapping(vas *VAS, start, end uint64, vmo *VMO, flags MapFlags) *Mapping {
	return &Mapping{vas: vas, start: start, end: end, vmo: vmo, flags: flags, valid: true}
}

func (m *Mapping) Range() (uint64, uint64) { return m.start, m.end }
func (m *Mapping) VAS() *VAS               { return m.vas }
func (m *Mapping) VMO() *VMO               { return m.vmo }
func (m *Mapping) Flags() MapFlags         { return m.flags }

// Lock acquires the mapping for exclusive (write) access and returns
// a release function. It panics if the mapping has already been
// released, matching vmo_mapping::lock()'s precondition.
func (m *Mapping) Lock() func() {
	m.mu.Lock()
	if !m.valid {
		m.mu.Unlock()
		panic("vm: Lock on a released mapping")
	}
	return m.mu.Unlock
}

// SharedLock acquires the mapping for concurrent read access.
func (m *Mapping) SharedLock() func() {
	m.mu.RLock()
	if !m.valid {
		m.mu.RUnlock()
		panic("vm: SharedLock on a released mapping")
	}
	return m.mu.RUnlock
}

// IsValid reports whether the mapping is still valid: true until
// release has been called.
func (m *Mapping) IsValid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valid
}

// release marks the mapping invalid and drops its VMO reference. The
// caller must already hold the write lock (vas.Unmap arranges this),
// matching vmo_mapping::release()'s precondition that the lock is
// already held.
func (m *Mapping) release() {
	m.valid = false
	m.vmo.Unref()
	m.vmo = nil
}
