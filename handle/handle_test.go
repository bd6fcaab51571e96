package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosekernel/defs"
)

type fakeObject struct{ kind defs.ObjectKind }

func (f fakeObject) Kind() defs.ObjectKind { return f.kind }

func TestTableRegisterResolveUnregister(t *testing.T) {
	tbl := NewTable(16)
	tok := tbl.Register(fakeObject{defs.KindVAS}, defs.PermRead|defs.PermWrite)
	assert.NotEqual(t, defs.NoToken, tok)
	assert.Equal(t, 1, tbl.Size())

	obj, errt := tbl.Resolve(tok, defs.PermRead)
	require.Equal(t, defs.ENONE, errt)
	assert.Equal(t, defs.KindVAS, obj.Kind())

	tbl.Unregister(tok)
	assert.Equal(t, 0, tbl.Size())
	_, errt = tbl.Resolve(tok, defs.PermRead)
	assert.Equal(t, defs.EBADTOKEN, errt)
}

func TestTableResolveRejectsInsufficientPermission(t *testing.T) {
	tbl := NewTable(16)
	tok := tbl.Register(fakeObject{defs.KindMailbox}, defs.PermRead)
	_, errt := tbl.Resolve(tok, defs.PermWrite)
	assert.Equal(t, defs.EPERM, errt)
}

func TestTableResolveNoTokenIsBadToken(t *testing.T) {
	tbl := NewTable(16)
	_, errt := tbl.Resolve(defs.NoToken, defs.PermRead)
	assert.Equal(t, defs.EBADTOKEN, errt)
}

func TestTableUnregisterUnknownPanics(t *testing.T) {
	tbl := NewTable(16)
	assert.Panics(t, func() { tbl.Unregister(defs.Token_t(0xdeadbeef)) })
}

func TestTableRegisterPanicsAtLimit(t *testing.T) {
	tbl := NewTable(2)
	tbl.Register(fakeObject{defs.KindVAS}, defs.PermRead)
	tbl.Register(fakeObject{defs.KindVAS}, defs.PermRead)
	assert.Panics(t, func() { tbl.Register(fakeObject{defs.KindVAS}, defs.PermRead) })
}
