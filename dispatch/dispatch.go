package dispatch

import (
	"rosekernel/archif"
	"rosekernel/defs"
	"rosekernel/handle"
)

// ParamKind tags one syscall argument's marshalling discipline,
// matching the parameter-kind table the syscall ABI defines.
type ParamKind int

const (
	KindValue ParamKind = iota
	KindToken
	KindInPtr
	KindOutPtr
	KindInOutPtr
)

// Number is a syscall number. The minimum surface named by the
// governing interface is assigned numbers 1-10 in the order given
// there; RoseDebugWrite is a rosekernel addition (see SPEC_FULL.md)
// giving tests and a simulated userspace a way to observe kernel
// behavior without a real console driver.
type Number uint64

const (
	RoseVasCreate Number = iota + 1
	RoseMappingCreate
	RoseMappingDestroy
	RoseVmoCreate
	RoseProcessCreate
	RoseProcessStart
	RoseMailboxCreate
	RoseMailboxWrite
	RoseMailboxRead
	RoseTokenRelease
	RoseDebugWrite
)

// Call bundles everything a handler needs: the calling process (whose
// handle table and VAS every token and pointer argument resolve
// against) and the raw argument registers.
type Call struct {
	Proc *handle.Process
	Args [6]uint64
	Win  archif.Memory
}

// HandlerFunc implements one syscall number's typed semantics. It
// receives the raw argument registers in Call; Dispatcher.Invoke only
// looks up the handler and writes its result, so each handler resolves
// its own tokens (Process.Handles.Resolve) and validates its own
// pointers (CopyIn/CopyOut), the way the reference kernel's typed
// *_handler methods do.
type HandlerFunc func(call *Call) (uint64, defs.ErrT)

// Dispatcher maps syscall numbers to handlers.
type Dispatcher struct {
	handlers map[Number]HandlerFunc
}

// NewDispatcher returns a Dispatcher with no syscalls registered.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Number]HandlerFunc)}
}

// Register installs h as the handler for num. It panics if num
// already has a handler, since the syscall table is fixed at
// bring-up, not mutable at runtime.
func (d *Dispatcher) Register(num Number, h HandlerFunc) {
	if _, dup := d.handlers[num]; dup {
		panic("dispatch: duplicate handler registration")
	}
	d.handlers[num] = h
}

// Invoke looks up ctx.Num's handler and runs it against proc, writing
// the result (or the negative error code) into ctx.Result, matching
// the ABI convention that a single register carries both a
// successful return value and a negated ErrT.
func (d *Dispatcher) Invoke(ctx *archif.Context, proc *handle.Process, win archif.Memory) {
	h, ok := d.handlers[Number(ctx.Num)]
	if !ok {
		ctx.Result = uint64(int64(defs.EINVAL))
		return
	}
	call := &Call{Proc: proc, Args: ctx.Args, Win: win}
	result, errt := h(call)
	if errt != defs.ENONE {
		ctx.Result = uint64(int64(errt))
		return
	}
	ctx.Result = result
}
