package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPCBDefaults(t *testing.T) {
	p := NewPCB(5, 1, "worker", 3, 100)

	assert.Equal(t, StateNew, p.State())
	assert.Equal(t, "/", p.CWD())
	assert.Equal(t, uint64(InitialStackPointer), p.Context.StackPointer)
	assert.Equal(t, uint64(0), p.Context.Instruction)

	// stdin, stdout, stderr are preassigned.
	assert.Len(t, p.Resources.OpenFiles, 3)
}

func TestPCBStateTransitionEnforced(t *testing.T) {
	p := NewPCB(5, 1, "worker", 0, 100)

	var stateErr *StateError
	require.ErrorAs(t, p.SetState(StateRunning), &stateErr)
	assert.Equal(t, StateNew, stateErr.From)

	require.NoError(t, p.SetState(StateReady))
	require.NoError(t, p.SetState(StateRunning))
	assert.Equal(t, StateRunning, p.State())
}

func TestPCBSignalQueueFIFO(t *testing.T) {
	p := NewPCB(5, 1, "worker", 0, 100)

	require.True(t, p.SendSignal(SIGTERM))
	require.True(t, p.SendSignal(SIGUSR1))

	sig, ok := p.NextSignal()
	require.True(t, ok)
	assert.Equal(t, SIGTERM, sig)

	sig, ok = p.NextSignal()
	require.True(t, ok)
	assert.Equal(t, SIGUSR1, sig)

	_, ok = p.NextSignal()
	assert.False(t, ok)
}

func TestPCBBlockedSignalsDropped(t *testing.T) {
	p := NewPCB(5, 1, "worker", 0, 100)

	p.BlockSignal(SIGUSR1)
	assert.False(t, p.SendSignal(SIGUSR1))
	assert.Equal(t, 0, p.PendingSignals())

	p.UnblockSignal(SIGUSR1)
	assert.True(t, p.SendSignal(SIGUSR1))

	// SIGKILL and SIGSTOP can never be blocked.
	p.BlockSignal(SIGKILL)
	p.BlockSignal(SIGSTOP)
	assert.True(t, p.SendSignal(SIGKILL))
	assert.True(t, p.SendSignal(SIGSTOP))
}

func TestPCBHandlerRefusedForKillStop(t *testing.T) {
	p := NewPCB(5, 1, "worker", 0, 100)

	assert.False(t, p.InstallHandler(SIGKILL, func(Signal) {}))
	assert.False(t, p.InstallHandler(SIGSTOP, func(Signal) {}))
	assert.True(t, p.InstallHandler(SIGTERM, func(Signal) {}))

	_, ok := p.Handler(SIGTERM)
	assert.True(t, ok)
}

func TestPCBFileDescriptors(t *testing.T) {
	p := NewPCB(5, 1, "worker", 0, 100)

	fd := p.AllocateFD("/tmp/a")
	assert.Equal(t, 3, fd)
	assert.Equal(t, 4, p.AllocateFD("/tmp/b"))

	require.True(t, p.FreeFD(fd))
	assert.False(t, p.FreeFD(fd))

	// Descriptors are not reused after close.
	assert.Equal(t, 5, p.AllocateFD("/tmp/c"))
}

func TestPCBChildren(t *testing.T) {
	p := NewPCB(5, 1, "worker", 0, 100)

	p.AddChild(10)
	p.AddChild(11)
	assert.Equal(t, []int{10, 11}, p.Children())

	p.RemoveChild(10)
	assert.Equal(t, []int{11}, p.Children())

	p.RemoveChild(99) // unknown pid is a no-op
	assert.Equal(t, []int{11}, p.Children())
}

func TestCPUContextClone(t *testing.T) {
	ctx := NewCPUContext()
	ctx.Registers[3] = 42
	ctx.Instruction = 0x1000

	clone := ctx.Clone()
	assert.Equal(t, *ctx, *clone)

	clone.Registers[3] = 99
	assert.Equal(t, uint64(42), ctx.Registers[3], "clone must not share storage")
}
