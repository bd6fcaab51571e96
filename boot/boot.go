// Package boot implements core bring-up: BSP initialization order and
// the AP trampoline/INIT-SIPI-SIPI batching sequence, ported from the
// reference kernel's arch/amd64/mp/mp.cpp. In the simulated backend
// (archif/sim) there is no real sub-1MiB trampoline or LAPIC register
// to poke; Bootstrap drives the identical state machine -- batched
// wake-up, timed resend, dead-core compaction, dense ID reassignment
// -- against the Wake/Booted closures each ApInfo supplies instead.
package boot

import (
	"fmt"
	"time"

	"rosekernel/archif"
	"rosekernel/defs"
	"rosekernel/klog"
	"rosekernel/mem"
	"rosekernel/mp"
	"rosekernel/sched"
	"rosekernel/timer"
	"rosekernel/vm"
)

// Machine is everything bring-up assembles: the frame allocator, the
// per-core scheduler instances under a root aggregate, the IPI bus,
// the global high-precision timer engine, and the process-wide vDSO.
type Machine struct {
	Pool       *mem.Allocator
	Root       *sched.Aggregate
	Instances  map[defs.CoreID]*sched.Instance
	Bus        *mp.Bus
	GlobalTime *timer.Engine
	Cores      []defs.CoreID

	// VDSO is the single physical VMO every user VAS may map the
	// syscall-trampoline page from, registered once here at init --
	// "a single process-wide physical VMO is registered at init"
	// (memory/vas.cpp's vDSO section).
	VDSO *vm.VMO

	stop chan struct{}
}

// ApInfo is one application processor's bring-up record: its logical
// ID and whether it acknowledged being started.
type ApInfo struct {
	ID     defs.CoreID
	CPU    archif.CPU
	Booted func() bool
	Wake   func()
}

// Bootstrap runs BSP bring-up (frame allocator, global timer, root
// aggregate) and then the AP batch wake-up sequence: it signals every
// AP via Wake, waits 10ms, resends to any that haven't acknowledged,
// waits a further 500us, and finally compacts the set of
// successfully booted APs into dense logical core IDs starting at 1
// (the BSP is always core 0) -- mirroring mp.cpp's INIT-SIPI-SIPI
// timing and its "dead AP" compaction pass. The frame allocator is
// seeded by walking info's typed memory map through mem.Initialize,
// the same pmm::initialize scan the reference kernel runs before it
// does anything else.
func Bootstrap(info archif.BootInfo, bspCPU archif.CPU, aps []ApInfo) *Machine {
	pool := mem.Initialize(memMapEntries(info))

	// The vDSO is a single page-sized physical VMO, reserved once here
	// and shared read-only into every VAS that opts in at creation
	// time (dispatch.vasCreateHandler) -- never rebuilt per-process.
	vdsoFrame := pool.Pop(mem.Class4K)
	vdso := vm.NewPhysicalVMO(pool, vdsoFrame, mem.Sizes[mem.Class4K], mem.Sizes[mem.Class4K])

	m := &Machine{
		Pool:       pool,
		Root:       &sched.Aggregate{},
		Instances:  make(map[defs.CoreID]*sched.Instance),
		GlobalTime: timer.NewEngine(),
		VDSO:       vdso,
		stop:       make(chan struct{}),
	}

	bspIdle := &sched.Thread{Tid: -1}
	bspInstance := sched.NewInstance(0, bspCPU, bspIdle)
	m.Root.AddChild(bspInstance)
	m.Instances[0] = bspInstance
	m.Cores = append(m.Cores, 0)

	booted := wakeAPs(aps)

	nextID := defs.CoreID(1)
	for _, ap := range aps {
		if !booted[ap.ID] {
			continue
		}
		id := nextID
		nextID++
		idle := &sched.Thread{Tid: -int64(id) - 1}
		inst := sched.NewInstance(id, ap.CPU, idle)
		m.Root.AddChild(inst)
		m.Instances[id] = inst
		m.Cores = append(m.Cores, id)
	}

	m.Bus = mp.NewBus(0, bspCPU, m.Cores)
	for _, c := range m.Cores {
		go m.Bus.RunPump(c, m.stop)
	}

	return m
}

// memMapEntries narrows archif's typed memory map down to the
// free/not-free distinction mem.Initialize acts on: only runs the
// firmware reported as archif.MemFree feed the free lists, exactly as
// pmm::initialize treats every other recognized kind (kernel image,
// initrd, the memory map and paging structures, the log buffer, the
// loader's working stack, ...) as already spoken for. mem cannot
// import archif directly (archif already imports mem for the Frame
// type its Memory interface is expressed over), so this conversion
// lives here, in the one package that already depends on both.
func memMapEntries(info archif.BootInfo) []mem.MemMapEntry {
	out := make([]mem.MemMapEntry, len(info.MemMap))
	for i, e := range info.MemMap {
		out[i] = mem.MemMapEntry{Base: e.Base, Length: e.Length, Free: e.Kind == archif.MemFree}
	}
	return out
}

// wakeAPs drives the batched wake sequence and returns which APs
// acknowledged.
func wakeAPs(aps []ApInfo) map[defs.CoreID]bool {
	booted := make(map[defs.CoreID]bool, len(aps))
	for _, ap := range aps {
		ap.Wake()
	}
	time.Sleep(10 * time.Millisecond)
	for _, ap := range aps {
		if !ap.Booted() {
			ap.Wake()
		}
	}
	time.Sleep(500 * time.Microsecond)
	for _, ap := range aps {
		booted[ap.ID] = ap.Booted()
	}
	return booted
}

// Shutdown stops every core's IPI pump goroutine.
func (m *Machine) Shutdown() {
	close(m.stop)
}

// Report renders the frame allocator and core-topology summary
// printed at the end of bring-up.
func (m *Machine) Report() string {
	s := m.Pool.Report()
	rows := make([][]string, 0, len(m.Cores))
	for _, c := range m.Cores {
		rows = append(rows, []string{fmt.Sprintf("%d", c), "online"})
	}
	return s + klog.Table([]string{"core", "status"}, rows)
}
