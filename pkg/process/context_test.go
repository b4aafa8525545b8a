package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchSavesOutgoingContext(t *testing.T) {
	cs := NewContextSwitcher()

	out := NewPCB(5, 1, "out", 0, 100)
	in := NewPCB(6, 1, "in", 0, 100)

	cs.Switch(nil, out)
	require.Same(t, out, cs.Current())

	cs.Switch(out, in)

	// The instruction pointer advanced by the slice that just ran.
	assert.Equal(t, uint64(100), out.Context.Instruction)
	for i, reg := range out.Context.Registers {
		assert.Equal(t, uint64(i*1000+5), reg)
	}
	assert.Same(t, in, cs.Current())
	assert.Equal(t, 6, cs.CurrentPID())
}

func TestSwitchToIdle(t *testing.T) {
	cs := NewContextSwitcher()
	p := NewPCB(5, 1, "p", 0, 100)

	cs.Switch(nil, p)
	cs.Switch(p, nil)

	assert.Nil(t, cs.Current())
	assert.Equal(t, 0, cs.CurrentPID())
}

func TestForkContextIsCopy(t *testing.T) {
	cs := NewContextSwitcher()
	parent := NewPCB(5, 1, "parent", 0, 100)
	parent.Context.Instruction = 0x4000
	parent.Context.Registers[0] = 7

	child := cs.ForkContext(parent)
	assert.Equal(t, *parent.Context, *child)

	child.Registers[0] = 8
	assert.Equal(t, uint64(7), parent.Context.Registers[0])
}

func TestExecContextResets(t *testing.T) {
	cs := NewContextSwitcher()
	p := NewPCB(5, 1, "p", 0, 100)
	p.Context.Instruction = 0x4000
	p.Context.Registers[2] = 9
	p.Context.StackPointer = 0x1000

	cs.ExecContext(p)

	assert.Equal(t, uint64(0), p.Context.Instruction)
	assert.Equal(t, uint64(InitialStackPointer), p.Context.StackPointer)
	assert.Equal(t, uint64(0), p.Context.Registers[2])
}

func TestSwitchStats(t *testing.T) {
	cs := NewContextSwitcher()
	a := NewPCB(5, 1, "a", 0, 100)
	b := NewPCB(6, 1, "b", 0, 100)

	cs.Switch(nil, a)
	cs.Switch(a, b)
	cs.Switch(b, a)
	cs.Switch(a, nil)

	s := cs.Stats()
	assert.Equal(t, 4, s.Switches)
	assert.Equal(t, 1, s.FromIdle)
	assert.Equal(t, 2, s.ProcessToProcess)
	assert.Equal(t, 1, s.ToIdle)
	assert.GreaterOrEqual(t, int64(s.MeanLatency), int64(0))

	cs.Reset()
	assert.Equal(t, 0, cs.Stats().Switches)
	assert.Nil(t, cs.Current())
}
