// Package defs holds the small shared types and constants that cross
// every package boundary in the kernel: error codes, identifier types,
// and permission bits. It mirrors biscuit's defs package, which plays
// the same role for Err_t and friends.
package defs

/// ErrT is the tier-1 error representation returned across the
/// syscall boundary (see dispatch). A zero value means success;
/// negative values name a specific failure.
type ErrT int

const (
	ENONE      ErrT = 0
	EINVAL     ErrT = -1  /// bad argument
	ENOMEM     ErrT = -2  /// out of frames/handles/threads
	EPERM      ErrT = -3  /// permission bits on handle do not cover the operation
	EBADTOKEN  ErrT = -4  /// token does not resolve to a live handle
	EOVERLAP   ErrT = -5  /// mapping would overlap an existing one
	EALIGN     ErrT = -6  /// address or length is not page aligned
	ENOTREADY  ErrT = -7  /// mailbox read with no pending message and no wait requested
	ECLAIMED   ErrT = -8  /// VAS already claimed by a process
	EFAULT     ErrT = -9  /// user pointer does not resolve to a valid mapping
	ETIMEDOUT  ErrT = -10 /// blocking operation's deadline elapsed
	ECANCELLED ErrT = -11 /// timer or wait was cancelled before firing
)

/// String renders the error for log messages; it is not part of the
/// ABI and callers must not parse it.
func (e ErrT) String() string {
	switch e {
	case ENONE:
		return "none"
	case EINVAL:
		return "invalid argument"
	case ENOMEM:
		return "out of memory"
	case EPERM:
		return "permission denied"
	case EBADTOKEN:
		return "bad token"
	case EOVERLAP:
		return "overlapping range"
	case EALIGN:
		return "misaligned"
	case ENOTREADY:
		return "not ready"
	case ECLAIMED:
		return "already claimed"
	case EFAULT:
		return "bad user pointer"
	case ETIMEDOUT:
		return "timed out"
	case ECANCELLED:
		return "cancelled"
	default:
		return "unknown error"
	}
}
