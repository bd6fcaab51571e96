package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitTakeGive(t *testing.T) {
	l := NewLimit(2)
	assert.True(t, l.Take())
	assert.True(t, l.Take())
	assert.False(t, l.Take())
	assert.EqualValues(t, 2, l.Taken())

	l.Give()
	assert.EqualValues(t, 1, l.Taken())
	assert.True(t, l.Take())
}

func TestLimitGiveUnderflowPanics(t *testing.T) {
	l := NewLimit(1)
	assert.Panics(t, func() { l.Give() })
}
