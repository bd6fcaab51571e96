package util

import (
	"runtime"
	"sync/atomic"
)

// BitLock acquires bit within the 64-bit word at addr, spinning with a
// pause hint between attempts, and returns a function that releases it.
// It is the page-table-entry locking primitive: the lock lives inside
// the word being protected rather than beside it, so no extra storage
// is needed per entry (kernel/util/bit_lock.h in the reference kernel
// this was ported from).
func BitLock(addr *uint64, bit uint) func() {
	mask := uint64(1) << bit
	for {
		old := atomic.LoadUint64(addr)
		if old&mask != 0 {
			runtime.Gosched()
			continue
		}
		if atomic.CompareAndSwapUint64(addr, old, old|mask) {
			break
		}
	}
	var released bool
	return func() {
		if released {
			panic("bitlock: double release")
		}
		released = true
		for {
			old := atomic.LoadUint64(addr)
			if atomic.CompareAndSwapUint64(addr, old, old&^mask) {
				return
			}
		}
	}
}
