package sched

import "rosekernel/handle"

// Reaper is the hook for the termination semantics the reference
// kernel leaves undefined (vas::~vas is PANIC("this requires an amount
// of work tbh"); process and thread destructors are never written at
// all): an implementation receives a process to clean up. This package
// defines only the interface and the ReaperFunc adapter; nothing in
// sched calls ReapProcess (Deschedule does not), and no implementation
// here unmaps mappings or unregisters tokens.
type Reaper interface {
	ReapProcess(p *handle.Process)
}

// ReaperFunc adapts a plain function to the Reaper interface.
type ReaperFunc func(p *handle.Process)

func (f ReaperFunc) ReapProcess(p *handle.Process) { f(p) }
