package util

import "sync/atomic"

// Limit is an atomic give/take counter bounded by a maximum, used to
// cap per-process resources; handle.Table uses it to bound live
// handles, and no other resource is capped with it.
// It is the generalized descendant of biscuit's limits.Sysatomic_t,
// which the teacher used for exactly one global counter (total
// processes); here every caller gets its own instance instead of a
// single global set.
type Limit struct {
	max   int64
	taken int64
}

// NewLimit returns a Limit that allows up to max concurrently taken.
func NewLimit(max int64) *Limit {
	return &Limit{max: max}
}

// Take reserves one unit, reporting false if the limit is already
// exhausted.
func (l *Limit) Take() bool {
	for {
		cur := atomic.LoadInt64(&l.taken)
		if cur >= l.max {
			return false
		}
		if atomic.CompareAndSwapInt64(&l.taken, cur, cur+1) {
			return true
		}
	}
}

// Give releases one unit previously reserved by Take.
func (l *Limit) Give() {
	if atomic.AddInt64(&l.taken, -1) < 0 {
		panic("limit: gave back more than was taken")
	}
}

// Taken returns the number of units currently reserved.
func (l *Limit) Taken() int64 {
	return atomic.LoadInt64(&l.taken)
}
