package process

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// maxLatencySamples bounds the latency window kept for averaging.
const maxLatencySamples = 4096

// ContextSwitcher saves and restores simulated CPU contexts and tracks which
// process currently holds the CPU. Switch latency is sampled so the mean
// cost shows up in monitoring output.
type ContextSwitcher struct {
	mu        sync.Mutex
	current   *PCB
	switches  int
	processes int
	toIdle    int
	fromIdle  int
	latency   []float64
}

// SwitchStats summarizes context switch activity.
type SwitchStats struct {
	Switches int
	// ProcessToProcess counts switches where both sides were present;
	// FromIdle and ToIdle count dispatches from and descheduling to an
	// empty CPU.
	ProcessToProcess int
	FromIdle         int
	ToIdle           int
	// MeanLatency is the average wall-clock cost of a switch.
	MeanLatency time.Duration
}

// NewContextSwitcher creates a switcher with no process on the CPU.
func NewContextSwitcher() *ContextSwitcher {
	return &ContextSwitcher{}
}

// Switch saves the outgoing process's context and installs the incoming one
// on the CPU. Either side may be nil: a nil outgoing process is a dispatch
// from idle, a nil incoming process idles the CPU.
func (cs *ContextSwitcher) Switch(out, in *PCB) {
	start := time.Now()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if out != nil {
		cs.saveContext(out)
		out.Stats.ContextSwitches++
		out.Stats.CPUTime += out.TimeSlice
	}
	if in != nil {
		in.Stats.ContextSwitches++
	}
	cs.current = in

	switch {
	case out != nil && in != nil:
		cs.processes++
	case out == nil && in != nil:
		cs.fromIdle++
	case out != nil:
		cs.toIdle++
	}
	cs.switches++
	cs.latency = append(cs.latency, float64(time.Since(start)))
	if len(cs.latency) > maxLatencySamples {
		cs.latency = cs.latency[len(cs.latency)-maxLatencySamples:]
	}
}

// saveContext writes the simulated register file of a descheduled process.
// The instruction pointer advances by the slice it just ran; register values
// are a deterministic function of slot and pid so saved state is visibly
// per-process.
func (cs *ContextSwitcher) saveContext(p *PCB) {
	p.Context.Instruction += uint64(p.TimeSlice)
	for i := range p.Context.Registers {
		p.Context.Registers[i] = uint64(i*1000 + p.PID)
	}
}

// ForkContext returns the child's starting context: an exact copy of the
// parent's.
func (cs *ContextSwitcher) ForkContext(parent *PCB) *CPUContext {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return parent.Context.Clone()
}

// ExecContext discards a process's register file for a fresh image.
func (cs *ContextSwitcher) ExecContext(p *PCB) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	p.Context.Reset()
}

// Current returns the process on the CPU, or nil when idle.
func (cs *ContextSwitcher) Current() *PCB {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.current
}

// CurrentPID returns the pid on the CPU, or 0 when idle.
func (cs *ContextSwitcher) CurrentPID() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.current == nil {
		return 0
	}
	return cs.current.PID
}

// Stats returns the switch count and mean latency over the sample window.
func (cs *ContextSwitcher) Stats() SwitchStats {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	s := SwitchStats{
		Switches:         cs.switches,
		ProcessToProcess: cs.processes,
		FromIdle:         cs.fromIdle,
		ToIdle:           cs.toIdle,
	}
	if len(cs.latency) > 0 {
		if mean, err := stats.Mean(cs.latency); err == nil {
			s.MeanLatency = time.Duration(mean)
		}
	}
	return s
}

// Reset clears the CPU and the statistics.
func (cs *ContextSwitcher) Reset() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.current = nil
	cs.switches = 0
	cs.processes = 0
	cs.fromIdle = 0
	cs.toIdle = 0
	cs.latency = nil
}
