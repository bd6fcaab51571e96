// Command kernel assembles a full rosekernel instance against the
// simulated archif backend: frame allocator, core bring-up, the
// minimum syscall surface registered on a dispatcher, and a single
// bootstrap process; it then prints the boot report and exits, with
// no syscall dispatch loop of its own. It is
// the hosted stand-in for the freestanding entry point the reference
// kernel's loader jumps to, wiring the same pieces bootinit.cpp does
// by hand in C++ constructors.
package main

import (
	"flag"
	"fmt"
	"os"

	"rosekernel/archif/sim"
	"rosekernel/boot"
	"rosekernel/defs"
	"rosekernel/dispatch"
	"rosekernel/handle"
	"rosekernel/vm"
)

func main() {
	cores := flag.Int("cores", 4, "number of simulated cores, including the BSP")
	memMiB := flag.Int("memmap", 256, "simulated physical memory, in MiB")
	flag.Parse()

	if *cores < 1 {
		fmt.Fprintln(os.Stderr, "kernel: -cores must be at least 1")
		os.Exit(2)
	}

	arenaSize := uint64(*memMiB) * 1024 * 1024
	sys := sim.NewSystem(arenaSize, *cores)

	var aps []boot.ApInfo
	for i := 1; i < *cores; i++ {
		core := sys.Cores[i]
		aps = append(aps, boot.ApInfo{
			ID:     defs.CoreID(i),
			CPU:    core,
			Wake:   func() { core.EnableInterrupts() },
			Booted: func() bool { return !core.InterruptsDisabled() },
		})
	}
	// APs start with interrupts disabled in the simulation; Wake
	// clears the flag to signal "running", mirroring the real AP
	// trampoline flipping on interrupts once its stack is live.
	for _, c := range sys.Cores[1:] {
		c.DisableInterrupts()
	}

	m := boot.Bootstrap(sys.BootInfo(), sys.Cores[0], aps)
	defer m.Shutdown()

	kernelPT := vm.NewPageTable(m.Pool, sys.Arena)

	d := dispatch.NewDispatcher()
	dispatch.RegisterMinimumSyscalls(d, m.Pool, sys.Arena, kernelPT, m.VDSO, m.Root, 0)

	bootVAS := vm.NewVAS(m.Pool, sys.Arena, kernelPT)
	if !bootVAS.ClaimForProcess() {
		panic("kernel: freshly created VAS already claimed")
	}
	bootProc := handle.NewProcess(0, bootVAS, 4096)

	fmt.Print(m.Report())
	fmt.Printf("kernel: bootstrap process pid=%d ready, %d core(s) online, dispatcher has %d syscalls\n",
		bootProc.Pid, len(m.Cores), countRegistered())
}

// countRegistered is a fixed constant mirroring the number of entries
// RegisterMinimumSyscalls installs; kept in sync by hand since
// Dispatcher intentionally exposes no introspection beyond Invoke.
func countRegistered() int {
	return int(dispatch.RoseDebugWrite)
}
