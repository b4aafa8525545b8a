package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageTableTranslateRequiresPresent(t *testing.T) {
	pt := NewPageTable(4096)
	pt.Map(5, 42, DefaultFlags)

	frame, ok := pt.Translate(5)
	require.True(t, ok)
	assert.Equal(t, 42, frame)

	_, ok = pt.Translate(6)
	assert.False(t, ok, "unmapped page must not translate")

	pt.Map(7, 43, FlagWritable|FlagUser)
	_, ok = pt.Translate(7)
	assert.False(t, ok, "page without the present bit must not translate")
}

func TestPageTableUnmap(t *testing.T) {
	pt := NewPageTable(4096)
	pt.Map(1, 10, DefaultFlags)

	entry, ok := pt.Unmap(1)
	require.True(t, ok)
	assert.Equal(t, 10, entry.PhysicalFrame)

	_, ok = pt.Unmap(1)
	assert.False(t, ok)
	assert.Equal(t, 0, pt.Len())
}

func TestPageTableUpdateFlags(t *testing.T) {
	pt := NewPageTable(4096)
	pt.Map(3, 9, DefaultFlags)

	require.True(t, pt.UpdateFlags(3, FlagPresent|FlagUser))
	entry, ok := pt.Entry(3)
	require.True(t, ok)
	assert.False(t, entry.Flags.Has(FlagWritable))

	assert.False(t, pt.UpdateFlags(99, DefaultFlags))
}

func TestPageTableStats(t *testing.T) {
	pt := NewPageTable(4096)
	pt.Map(1, 10, DefaultFlags)
	pt.Map(2, 11, DefaultFlags|FlagDirty)
	pt.Map(3, 12, FlagWritable)

	s := pt.Stats()
	assert.Equal(t, 3, s.TotalPages)
	assert.Equal(t, 2, s.PresentPages)
	assert.Equal(t, 1, s.DirtyPages)
	assert.Equal(t, 3*4096, s.MemoryUsed)
}
