package klog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteSizeUnits(t *testing.T) {
	assert.Equal(t, "512 B", ByteSize(512))
	assert.Equal(t, "1.00 KiB", ByteSize(1<<10))
	assert.Equal(t, "1.50 MiB", ByteSize(1<<20+1<<19))
	assert.Equal(t, "2.00 GiB", ByteSize(2<<30))
}

func TestTableAlignsColumns(t *testing.T) {
	out := Table([]string{"core", "status"}, [][]string{
		{"0", "online"},
		{"12", "offline"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "core")
	assert.Contains(t, lines[0], "status")
	assert.Contains(t, lines[2], "12")
	assert.Contains(t, lines[2], "offline")
}
