package boot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosekernel/archif"
	"rosekernel/archif/sim"
)

// testArenaSize must exceed mem.Initialize's sub-1MiB trampoline
// reservation with room to spare, or the BSP's own page table/VAS
// allocations in tests that build on Bootstrap would have nothing
// left to pop.
const testArenaSize = 4 << 20

func testBootInfo() archif.BootInfo {
	return archif.BootInfo{MemMap: []archif.MemMapEntry{{Base: 0, Length: testArenaSize, Kind: archif.MemFree}}}
}

func TestBootstrapBringsUpAcknowledgedAPs(t *testing.T) {
	bsp := sim.NewCore(0)

	var ap1Booted, ap2Booted bool
	aps := []ApInfo{
		{ID: 1, CPU: sim.NewCore(1), Wake: func() { ap1Booted = true }, Booted: func() bool { return ap1Booted }},
		{ID: 2, CPU: sim.NewCore(2), Wake: func() {}, Booted: func() bool { return ap2Booted }},
	}

	m := Bootstrap(testBootInfo(), bsp, aps)
	defer m.Shutdown()

	require.Len(t, m.Cores, 2, "only the BSP and the AP that acknowledged Wake are compacted in")
	assert.EqualValues(t, 0, m.Cores[0])
	assert.EqualValues(t, 1, m.Cores[1], "the dead AP must not consume a dense core ID")
	assert.Len(t, m.Instances, 2)
}

func TestBootstrapNoAPsIsJustTheBSP(t *testing.T) {
	bsp := sim.NewCore(0)
	m := Bootstrap(testBootInfo(), bsp, nil)
	defer m.Shutdown()

	require.Len(t, m.Cores, 1)
	assert.EqualValues(t, 0, m.Cores[0])
}

func TestWakeAPsResendsToUnacknowledged(t *testing.T) {
	wakes := 0
	acked := false
	aps := []ApInfo{
		{
			ID: 1,
			Wake: func() {
				wakes++
				// acknowledges only on the resend, forcing wakeAPs
				// through its "still not booted after 10ms" branch.
				if wakes == 2 {
					acked = true
				}
			},
			Booted: func() bool { return acked },
		},
	}
	booted := wakeAPs(aps)
	assert.Equal(t, 2, wakes)
	assert.True(t, booted[1])
}

func TestMachineReportIncludesCoreTable(t *testing.T) {
	bsp := sim.NewCore(0)
	m := Bootstrap(testBootInfo(), bsp, nil)
	defer m.Shutdown()

	report := m.Report()
	assert.True(t, strings.Contains(report, "core"))
	assert.True(t, strings.Contains(report, "online"))
}

func TestShutdownIsNotReentrant(t *testing.T) {
	bsp := sim.NewCore(0)
	m := Bootstrap(testBootInfo(), bsp, nil)
	m.Shutdown()
	assert.Panics(t, m.Shutdown, "closing an already-closed stop channel must panic")
}
