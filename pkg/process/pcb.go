package process

import (
	"sync"
	"time"
)

// RegisterCount is the number of simulated general-purpose registers saved
// per process.
const RegisterCount = 16

// Initial values of the simulated stack and instruction pointers.
const (
	InitialStackPointer = 0x7FFFFFFF
	InitialInstruction  = 0x0
)

// CPUContext is the simulated register file saved and restored across
// context switches.
type CPUContext struct {
	Registers    [RegisterCount]uint64
	StackPointer uint64
	Instruction  uint64
	Flags        uint64
}

// NewCPUContext returns a fresh context with the canonical initial stack and
// instruction pointers.
func NewCPUContext() *CPUContext {
	return &CPUContext{
		StackPointer: InitialStackPointer,
		Instruction:  InitialInstruction,
	}
}

// Clone returns a copy of the context. Forked children start from an exact
// copy of the parent's registers.
func (c *CPUContext) Clone() *CPUContext {
	clone := *c
	return &clone
}

// Reset returns the context to the state a fresh executable image starts
// from. Exec uses this to discard the caller's register file.
func (c *CPUContext) Reset() {
	*c = CPUContext{
		StackPointer: InitialStackPointer,
		Instruction:  InitialInstruction,
	}
}

// Resources is the per-process resource accounting block.
type Resources struct {
	OpenFiles   map[int]string
	nextFD      int
	MemoryUsage int
}

// NewResources returns an accounting block with stdin, stdout, and stderr
// preassigned.
func NewResources() *Resources {
	return &Resources{
		OpenFiles: map[int]string{
			0: "stdin",
			1: "stdout",
			2: "stderr",
		},
		nextFD: 3,
	}
}

// Stats is the per-process activity record.
type Stats struct {
	CreatedAt       time.Time
	CPUTime         int
	ContextSwitches int
	SignalsReceived int
	PageFaults      int
}

// PCB is a process control block. Scheduling fields (Priority, TimeSlice)
// are mutated under the owning scheduler's or manager's lock; the PCB mutex
// guards the signal queue, children list, state, and resources.
type PCB struct {
	PID      int
	PPID     int
	Name     string
	Command  string
	UID      int
	GID      int
	Daemon   bool
	Priority int
	Nice     int

	// Entry is the simulated program entry point, if any.
	Entry func()

	// TimeSlice is the quantum in simulated ticks granted per dispatch;
	// TimeRemaining counts down while the process holds the CPU.
	TimeSlice     int
	TimeRemaining int
	ExitCode      int

	Context   *CPUContext
	Resources *Resources
	Stats     Stats

	mu       sync.Mutex
	state    State
	cwd      string
	env      map[string]string
	children []int
	pending  []Signal
	blocked  SignalSet
	handlers map[Signal]SignalHandler
}

// Info is a read-only snapshot of a PCB for listings and logs.
type Info struct {
	PID      int
	PPID     int
	Name     string
	State    State
	Priority int
	ExitCode int
	Memory   int
	CPUTime  int
	Children int
	Pending  int
}

// NewPCB creates a control block in the NEW state with a fresh context and
// standard streams open.
func NewPCB(pid, ppid int, name string, priority, timeSlice int) *PCB {
	return &PCB{
		PID:       pid,
		PPID:      ppid,
		Name:      name,
		Priority:  priority,
		TimeSlice: timeSlice,
		Context:   NewCPUContext(),
		Resources: NewResources(),
		Stats:     Stats{CreatedAt: time.Now()},
		state:     StateNew,
		cwd:       "/",
		env:       make(map[string]string),
		blocked:   make(SignalSet),
		handlers:  make(map[Signal]SignalHandler),
	}
}

// Setenv sets one environment variable.
func (p *PCB) Setenv(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.env[key] = value
}

// Getenv reads one environment variable.
func (p *PCB) Getenv(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.env[key]
	return v, ok
}

// Environ returns a copy of the environment.
func (p *PCB) Environ() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	env := make(map[string]string, len(p.env))
	for k, v := range p.env {
		env[k] = v
	}
	return env
}

// State returns the current lifecycle state.
func (p *PCB) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState moves the process to a new state, enforcing the lifecycle edges.
func (p *PCB) SetState(to State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !CanTransition(p.state, to) {
		return &StateError{PID: p.PID, From: p.state, To: to}
	}
	p.state = to
	return nil
}

// CWD returns the working directory.
func (p *PCB) CWD() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

// SetCWD changes the working directory.
func (p *PCB) SetCWD(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cwd = dir
}

// SendSignal queues a signal for delivery. Signals in the blocked set are
// dropped; SIGKILL and SIGSTOP can never be blocked. Reports whether the
// signal was queued.
func (p *PCB) SendSignal(s Signal) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blocked.Contains(s) {
		return false
	}
	p.pending = append(p.pending, s)
	p.Stats.SignalsReceived++
	return true
}

// NextSignal dequeues the oldest pending signal.
func (p *PCB) NextSignal() (Signal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) == 0 {
		return 0, false
	}
	s := p.pending[0]
	p.pending = p.pending[1:]
	return s, true
}

// PendingSignals returns the number of queued signals.
func (p *PCB) PendingSignals() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// BlockSignal adds a signal to the process mask. SIGKILL and SIGSTOP are
// silently refused.
func (p *PCB) BlockSignal(s Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked.Add(s)
}

// UnblockSignal removes a signal from the mask.
func (p *PCB) UnblockSignal(s Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked.Remove(s)
}

// InstallHandler registers a handler for a signal. Handlers for SIGKILL and
// SIGSTOP are refused.
func (p *PCB) InstallHandler(s Signal, h SignalHandler) bool {
	if s == SIGKILL || s == SIGSTOP {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[s] = h
	return true
}

// Handler returns the installed handler for a signal, if any.
func (p *PCB) Handler(s Signal) (SignalHandler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.handlers[s]
	return h, ok
}

// AddChild records a child pid.
func (p *PCB) AddChild(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.children = append(p.children, pid)
}

// RemoveChild forgets a child pid.
func (p *PCB) RemoveChild(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.children {
		if c == pid {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// Children returns a copy of the child pid list.
func (p *PCB) Children() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.children))
	copy(out, p.children)
	return out
}

// AllocateFD opens a named resource and returns its descriptor. Descriptors
// start at 3 and are never reused within a process lifetime.
func (p *PCB) AllocateFD(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	fd := p.Resources.nextFD
	p.Resources.nextFD++
	p.Resources.OpenFiles[fd] = name
	return fd
}

// FreeFD closes a descriptor. Reports whether it was open.
func (p *PCB) FreeFD(fd int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.Resources.OpenFiles[fd]; !ok {
		return false
	}
	delete(p.Resources.OpenFiles, fd)
	return true
}

// Snapshot returns a consistent read-only view for listings.
func (p *PCB) Snapshot() Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Info{
		PID:      p.PID,
		PPID:     p.PPID,
		Name:     p.Name,
		State:    p.state,
		Priority: p.Priority,
		ExitCode: p.ExitCode,
		Memory:   p.Resources.MemoryUsage,
		CPUTime:  p.Stats.CPUTime,
		Children: len(p.children),
		Pending:  len(p.pending),
	}
}
