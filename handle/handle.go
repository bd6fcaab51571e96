// Package handle implements the capability layer: opaque 64-bit
// tokens, permission-checked resolution, and the per-process table
// that owns them. Ported from the reference kernel's
// scheduler/process.{h,cpp} (register_for_token / get_handle /
// unregister_token) and generalized onto util.HashTable in place of
// the intrusive _handle_store avl_tree biscuit's hashtable package
// already generalizes the same workload for.
package handle

import (
	"fmt"
	"time"
	"unsafe"

	"rosekernel/defs"
	"rosekernel/util"
)

// Object is anything a handle can refer to: a VAS, VMO, Mapping,
// Process, Mailbox, or Timer. Kind exists purely for diagnostics and
// default-permission lookups.
type Object interface {
	Kind() defs.ObjectKind
}

// Handle pairs an Object with the permission mask its token grants.
type Handle struct {
	Obj  Object
	Perm defs.Perm
}

// Table is a process's handle table: a token-indexed map from
// defs.Token_t to *Handle, bounded by a Limit so a runaway process
// cannot grow it without end.
type Table struct {
	owner *int // address identity for token mixing; see newToken
	limit *util.Limit
	byTok *util.HashTable[defs.Token_t, *Handle]
}

// NewTable creates an empty handle table for a process, allowing up
// to maxHandles live handles at once.
func NewTable(maxHandles int64) *Table {
	return &Table{
		owner: new(int),
		limit: util.NewLimit(maxHandles),
		byTok: util.NewHashTable[defs.Token_t, *Handle](64),
	}
}

// Register allocates a fresh token for obj/perm and inserts it,
// mixing the table's own address, the handle's address, and a
// monotonic timestamp the same way process::register_for_token does,
// retrying on the (astronomically unlikely) collision. It panics if
// the table's handle limit is exhausted, since callers are expected
// to size the limit generously and treat exhaustion as a resource
// leak, not routine backpressure.
func (t *Table) Register(obj Object, perm defs.Perm) defs.Token_t {
	if !t.limit.Take() {
		panic("handle: table handle limit exhausted")
	}
	h := &Handle{Obj: obj, Perm: perm}
	for {
		tok := newToken(t.owner, h)
		if tok == defs.NoToken {
			continue
		}
		if t.byTok.Set(tok, h) {
			return tok
		}
	}
}

// newToken mixes three address-derived/time-derived quantities into
// a token, exactly the xor-mix process::register_for_token uses, and
// clears the top bit, which is reserved.
func newToken(owner *int, h *Handle) defs.Token_t {
	self := uint64(uintptr(unsafe.Pointer(owner)))
	obj := uint64(uintptr(unsafe.Pointer(h)))
	ts := uint64(time.Now().UnixNano())
	return defs.Token_t((self ^ obj ^ ts) &^ (1 << 63))
}

// Resolve looks up token and checks that its stored permission mask
// covers want, returning the object and EPERM/EBADTOKEN as
// appropriate -- the permission-subset check dispatch performs before
// invoking any typed syscall handler.
func (t *Table) Resolve(tok defs.Token_t, want defs.Perm) (Object, defs.ErrT) {
	if tok == defs.NoToken {
		return nil, defs.EBADTOKEN
	}
	h, ok := t.byTok.Get(tok)
	if !ok {
		return nil, defs.EBADTOKEN
	}
	if !h.Perm.Has(want) {
		return nil, defs.EPERM
	}
	return h.Obj, defs.ENONE
}

// Unregister removes token from the table. It panics if the token is
// not present, matching unregister_token's PANIC-on-double-release
// contract.
func (t *Table) Unregister(tok defs.Token_t) {
	if _, ok := t.byTok.Get(tok); !ok {
		panic(fmt.Sprintf("handle: unregister of unknown token %#x", uint64(tok)))
	}
	t.byTok.Del(tok)
	t.limit.Give()
}

// Size returns the number of live handles in the table.
func (t *Table) Size() int { return t.byTok.Size() }
