package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rosekernel/handle"
)

func TestReaperFuncAdapts(t *testing.T) {
	var reaped *handle.Process
	var r Reaper = ReaperFunc(func(p *handle.Process) { reaped = p })

	p := &handle.Process{Pid: 7}
	r.ReapProcess(p)
	assert.Same(t, p, reaped)
}
