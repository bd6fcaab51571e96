package defs

/// Perm is a bitmask of the operations a handle token permits. A
/// caller's request is checked as a subset test against the handle's
/// stored mask; see handle.Table.Resolve.
type Perm uint32

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermTransfer /// may be copied into another process's mailbox message
	PermClone    /// may be duplicated into a fresh handle in the same process
	PermCreateMapping
	PermDestroy
)

/// Has reports whether want is entirely covered by p.
func (p Perm) Has(want Perm) bool {
	return p&want == want
}

/// VASDefault is granted to the handle returned by
/// rose_vas_create (original_source vas.cpp).
const VASDefault = PermRead | PermWrite | PermTransfer | PermClone | PermCreateMapping

/// MappingDefault is granted to the handle returned by
/// rose_mapping_create.
const MappingDefault = PermRead | PermWrite | PermTransfer | PermDestroy
