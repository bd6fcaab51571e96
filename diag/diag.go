// Package diag renders kernel panic diagnostics: a decoded dump of
// the instruction bytes surrounding a faulting address, plus a
// deduplicated call-stack dump for repeated faults -- the two things
// a kernel panic handler needs to tell a developer where and how
// often something went wrong. Grounded on biscuit's caller package
// (Callerdump, Distinct_caller_t) for the call-stack side, and wired
// to golang.org/x/arch's x86asm decoder for the instruction side,
// which the reference kernel's own panic path has no equivalent of
// (it only ever prints a message and halts).
package diag

import (
	"fmt"
	"runtime"

	"golang.org/x/arch/x86/x86asm"
)

// DecodeAround disassembles up to maxInsns instructions starting at
// the beginning of code, returning one formatted line per
// instruction. code is the raw byte window around a faulting
// instruction pointer; callers in a real freestanding build would
// capture it from the direct-mapped physical window, but diag itself
// is agnostic to where the bytes came from.
func DecodeAround(code []uint8, maxInsns int) []string {
	var lines []string
	off := 0
	for i := 0; i < maxInsns && off < len(code); i++ {
		inst, err := x86asm.Decode(code[off:], 64)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%#x: <decode error: %v>", off, err))
			break
		}
		lines = append(lines, fmt.Sprintf("%#x: %s", off, x86asm.GNUSyntax(inst, uint64(off), nil)))
		off += inst.Len
	}
	return lines
}

// CallerDump returns the call stack, one line per frame, starting skip
// frames above its own caller, matching biscuit's caller.Callerdump.
func CallerDump(skip int) []string {
	var lines []string
	for i := skip + 1; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		name := "?"
		if fn != nil {
			name = fn.Name()
		}
		lines = append(lines, fmt.Sprintf("%s:%d %s", file, line, name))
	}
	return lines
}

// DistinctCaller deduplicates identical call chains, so a
// rate-limited diagnostic (a repeated page fault, say) logs a full
// backtrace once per distinct chain rather than once per occurrence --
// ported from biscuit's Distinct_caller_t.
type DistinctCaller struct {
	seen map[string]int
}

// NewDistinctCaller returns an empty deduplicator.
func NewDistinctCaller() *DistinctCaller {
	return &DistinctCaller{seen: make(map[string]int)}
}

// Seen records chain and reports how many times (including this one)
// it has been seen before.
func (d *DistinctCaller) Seen(chain []string) int {
	key := fmt.Sprintf("%v", chain)
	d.seen[key]++
	return d.seen[key]
}
