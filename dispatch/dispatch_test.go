package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosekernel/archif"
	"rosekernel/defs"
	"rosekernel/handle"
)

func TestRegisterDuplicatePanics(t *testing.T) {
	d := NewDispatcher()
	d.Register(RoseTokenRelease, func(*Call) (uint64, defs.ErrT) { return 0, defs.ENONE })
	assert.Panics(t, func() {
		d.Register(RoseTokenRelease, func(*Call) (uint64, defs.ErrT) { return 0, defs.ENONE })
	})
}

func TestInvokeUnknownNumberReturnsEINVAL(t *testing.T) {
	d := NewDispatcher()
	ctx := &archif.Context{Num: 999}
	d.Invoke(ctx, nil, nil)
	assert.EqualValues(t, int64(defs.EINVAL), int64(ctx.Result))
}

func TestInvokeDispatchesAndWritesResult(t *testing.T) {
	d := NewDispatcher()
	d.Register(RoseTokenRelease, func(call *Call) (uint64, defs.ErrT) { return 42, defs.ENONE })

	ctx := &archif.Context{Num: uint64(RoseTokenRelease)}
	d.Invoke(ctx, &handle.Process{}, nil)
	assert.EqualValues(t, 42, ctx.Result)
}

func TestInvokeHandlerErrorWritesNegatedErrT(t *testing.T) {
	d := NewDispatcher()
	d.Register(RoseTokenRelease, func(call *Call) (uint64, defs.ErrT) { return 0, defs.EPERM })

	ctx := &archif.Context{Num: uint64(RoseTokenRelease)}
	d.Invoke(ctx, &handle.Process{}, nil)
	require.EqualValues(t, int64(defs.EPERM), int64(ctx.Result))
}
