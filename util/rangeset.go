package util

import "sort"

// RangeSet holds a set of non-overlapping, half-open [Start,End)
// ranges, ordered by Start. Two ranges are considered equal -- and
// therefore conflicting -- iff they overlap, mirroring the
// range-vs-range comparator reference kernels use to store VAS
// mappings and sparse VMO elements in an intrusive ordered tree
// (vmo_mapping_address_compare in the system this was ported from).
// Go has no generic balanced-tree container in the standard library;
// a sorted slice with binary search serves the same access pattern
// (few hundred entries per address space, occasional insert/remove,
// frequent point lookup) without pulling in an external tree package.
type RangeSet[V any] struct {
	items []rsItem[V]
}

type rsItem[V any] struct {
	start, end uint64
	val        V
}

// Insert adds [start,end) with the given value. It reports false
// without modifying the set if the range overlaps an existing one.
func (rs *RangeSet[V]) Insert(start, end uint64, val V) bool {
	if end <= start {
		panic("rangeset: empty or inverted range")
	}
	i := sort.Search(len(rs.items), func(i int) bool { return rs.items[i].end > start })
	if i < len(rs.items) && rs.items[i].start < end {
		return false
	}
	rs.items = append(rs.items, rsItem[V]{})
	copy(rs.items[i+1:], rs.items[i:])
	rs.items[i] = rsItem[V]{start: start, end: end, val: val}
	return true
}

// Find returns the value whose range contains point, if any.
func (rs *RangeSet[V]) Find(point uint64) (V, bool) {
	i := sort.Search(len(rs.items), func(i int) bool { return rs.items[i].end > point })
	if i < len(rs.items) && rs.items[i].start <= point {
		return rs.items[i].val, true
	}
	var zero V
	return zero, false
}

// FindRange returns the value whose range overlaps [start,end), if any.
func (rs *RangeSet[V]) FindRange(start, end uint64) (V, bool) {
	i := sort.Search(len(rs.items), func(i int) bool { return rs.items[i].end > start })
	if i < len(rs.items) && rs.items[i].start < end {
		return rs.items[i].val, true
	}
	var zero V
	return zero, false
}

// Remove deletes the range that starts exactly at start. It panics if
// no such range exists, matching the "del of non-existing key" panic
// idiom used elsewhere in this kernel's containers.
func (rs *RangeSet[V]) Remove(start uint64) {
	for i := range rs.items {
		if rs.items[i].start == start {
			rs.items = append(rs.items[:i], rs.items[i+1:]...)
			return
		}
	}
	panic("rangeset: remove of non-existing range")
}

// Len returns the number of ranges currently stored.
func (rs *RangeSet[V]) Len() int { return len(rs.items) }

// Each calls f for every range in ascending order of Start.
func (rs *RangeSet[V]) Each(f func(start, end uint64, val V)) {
	for _, it := range rs.items {
		f(it.start, it.end, it.val)
	}
}
