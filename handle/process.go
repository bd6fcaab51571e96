package handle

import (
	"rosekernel/defs"
	"rosekernel/vm"
)

// Process owns a VAS and a handle table, and is itself the container
// every Thread (see sched.Thread) points back to, mirroring
// scheduler::process in the reference kernel.
type Process struct {
	Pid     defs.Pid_t
	VAS     *vm.VAS
	Handles *Table
}

// NewProcess wraps vas in a fresh process with its own handle table.
func NewProcess(pid defs.Pid_t, vas *vm.VAS, maxHandles int64) *Process {
	return &Process{Pid: pid, VAS: vas, Handles: NewTable(maxHandles)}
}

func (p *Process) Kind() defs.ObjectKind { return defs.KindProcess }

// VASObject adapts a *vm.VAS to the handle.Object interface so it can
// be registered in a Table.
type VASObject struct{ VAS *vm.VAS }

func (VASObject) Kind() defs.ObjectKind { return defs.KindVAS }

// MappingObject adapts a *vm.Mapping to handle.Object.
type MappingObject struct{ Mapping *vm.Mapping }

func (MappingObject) Kind() defs.ObjectKind { return defs.KindMapping }

// VMOObject adapts a *vm.VMO to handle.Object.
type VMOObject struct{ VMO *vm.VMO }

func (VMOObject) Kind() defs.ObjectKind { return defs.KindVMO }
