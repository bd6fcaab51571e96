package diag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAroundDecodesKnownInstructions(t *testing.T) {
	// nop; ret; mov rbp, rsp
	code := []uint8{0x90, 0xC3, 0x48, 0x89, 0xE5}
	lines := DecodeAround(code, 10)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "nop")
	assert.Contains(t, lines[1], "ret")
}

func TestDecodeAroundRespectsMaxInsns(t *testing.T) {
	code := []uint8{0x90, 0x90, 0x90, 0x90}
	lines := DecodeAround(code, 2)
	assert.Len(t, lines, 2)
}

func TestDecodeAroundReportsDecodeError(t *testing.T) {
	code := []uint8{0x0F, 0xFF}
	lines := DecodeAround(code, 5)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "decode error")
}

func callerDumpHelper() []string { return CallerDump(0) }

func TestCallerDumpIncludesCallChain(t *testing.T) {
	lines := callerDumpHelper()
	require.NotEmpty(t, lines)
	found := false
	for _, l := range lines {
		if strings.Contains(l, "TestCallerDumpIncludesCallChain") {
			found = true
		}
	}
	assert.True(t, found, "CallerDump must name the function that invoked the dumping helper")
}

func TestDistinctCallerCountsRepeats(t *testing.T) {
	d := NewDistinctCaller()
	chainA := []string{"a.go:1 main.A", "b.go:2 main.B"}
	chainB := []string{"c.go:3 main.C"}

	assert.Equal(t, 1, d.Seen(chainA))
	assert.Equal(t, 2, d.Seen(chainA))
	assert.Equal(t, 1, d.Seen(chainB))
}
