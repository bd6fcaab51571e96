// Package dispatch implements syscall dispatch: per-handler decoding
// of argument registers (value, token, in/out pointer), permission checks, and
// shadow-struct copies through a validated, locked mapping. Grounded
// on the handler pattern visible throughout the reference kernel's
// vas/vmo_mapping/process syscall_rose_*_handler methods, and on
// biscuit's Userstr/Userdmap8_inner/Userwriten (vm/as.go,
// vm/userbuf.go) for the page-at-a-time copy mechanics.
package dispatch

import (
	"rosekernel/archif"
	"rosekernel/defs"
	"rosekernel/vm"
)

const pageSize = 4096

// CopyIn reads length bytes starting at the user virtual address addr
// in vas, validating and locking each page's mapping for read access
// before copying out of the direct-mapped window -- the shadow-copy
// half of the in-pointer marshalling contract.
func CopyIn(win archif.Memory, vas *vm.VAS, addr, length uint64) ([]byte, defs.ErrT) {
	out := make([]byte, 0, length)
	for off := uint64(0); off < length; {
		pageBase := (addr + off) - (addr+off)%pageSize
		release, ok := vas.LockAddressRange(pageBase, pageBase+pageSize, false)
		if !ok {
			return nil, defs.EFAULT
		}
		frame, ok := vas.Translate(pageBase)
		if !ok {
			release()
			return nil, defs.EFAULT
		}
		pageBytes := win.Bytes(frame, pageSize)
		start := (addr + off) % pageSize
		n := pageSize - start
		if remain := length - off; n > remain {
			n = remain
		}
		out = append(out, pageBytes[start:start+n]...)
		release()
		off += n
	}
	return out, defs.ENONE
}

// CopyOut writes data into the user virtual address addr in vas,
// validating and locking each page's mapping for write access and
// rejecting read-only mappings -- the out-copy half of the
// out-pointer marshalling contract. Pages are validated and written
// one at a time, so when a later page fails validation with EFAULT the
// earlier pages of the range have already been written. Handlers call
// CopyOut only after their own work has succeeded.
func CopyOut(win archif.Memory, vas *vm.VAS, addr uint64, data []byte) defs.ErrT {
	length := uint64(len(data))
	for off := uint64(0); off < length; {
		pageBase := (addr + off) - (addr+off)%pageSize
		release, ok := vas.LockAddressRange(pageBase, pageBase+pageSize, true)
		if !ok {
			return defs.EFAULT
		}
		frame, ok := vas.Translate(pageBase)
		if !ok {
			release()
			return defs.EFAULT
		}
		pageBytes := win.Bytes(frame, pageSize)
		start := (addr + off) % pageSize
		n := pageSize - start
		if remain := length - off; n > remain {
			n = remain
		}
		copy(pageBytes[start:start+n], data[off:off+n])
		release()
		off += n
	}
	return defs.ENONE
}

// UserString reads a NUL-terminated string of at most maxLen bytes
// starting at addr, one byte at a time through CopyIn -- the same incremental scan
// Userstr performs, generalized off biscuit's defs.Err_t-returning
// convention.
func UserString(win archif.Memory, vas *vm.VAS, addr uint64, maxLen int) (string, defs.ErrT) {
	buf := make([]byte, 0, 64)
	for len(buf) < maxLen {
		chunk, errt := CopyIn(win, vas, addr+uint64(len(buf)), 1)
		if errt != defs.ENONE {
			return "", errt
		}
		if chunk[0] == 0 {
			return string(buf), defs.ENONE
		}
		buf = append(buf, chunk[0])
	}
	return "", defs.EINVAL
}
