package process

import (
	"fmt"
	"path"
	"sort"
	"sync"

	"go.uber.org/zap"

	"simos/pkg/config"
)

// InitPID is the pid of the init process, the ancestor that adopts and reaps
// orphaned zombies.
const InitPID = 1

// CreateSpec describes a process to create.
type CreateSpec struct {
	Name      string
	Command   string
	ParentPID int
	UID       int
	GID       int
	Priority  int
	Nice      int
	Daemon    bool
	Env       map[string]string
	Entry     func()
}

// ManagerStats is a snapshot of the process table and scheduler.
type ManagerStats struct {
	Processes int
	ByState   map[State]int
	Queued    int
	Switches  SwitchStats
}

// Manager is the process lifecycle subsystem. It owns the PID table, the
// scheduler, and the context switcher, and drives signal delivery and zombie
// reaping from the kernel clock.
type Manager struct {
	mu  sync.Mutex
	cfg config.Config
	log *zap.SugaredLogger

	table     map[int]*PCB
	scheduler Scheduler
	switcher  *ContextSwitcher
	pidCursor int
	running   bool

	// reapHook runs after a process is fully reaped, under no lock other
	// than the manager's. The kernel uses it to tear down address spaces.
	reapHook func(pid int)
}

// NewManager creates a process manager for the given configuration.
func NewManager(cfg config.Config, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		cfg: cfg,
		log: log,
	}
}

// SetReapHook installs a callback invoked with the pid of every fully reaped
// process.
func (m *Manager) SetReapHook(hook func(pid int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reapHook = hook
}

// Name implements subsystem.Subsystem.
func (m *Manager) Name() string { return "process" }

// Initialize builds the scheduler and context switcher and installs the init
// process (pid 1) on the CPU.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sched, err := NewScheduler(m.cfg.Scheduler)
	if err != nil {
		return err
	}
	m.scheduler = sched
	m.switcher = NewContextSwitcher()
	m.table = make(map[int]*PCB)
	m.pidCursor = 2

	init := NewPCB(InitPID, 0, "init", 0, m.cfg.Scheduler.Quantum)
	init.Command = "/sbin/init"
	if err := init.SetState(StateReady); err != nil {
		return err
	}
	if err := init.SetState(StateRunning); err != nil {
		return err
	}
	m.table[InitPID] = init
	m.switcher.Switch(nil, init)

	m.log.Infow("process manager initialized",
		"scheduler", m.scheduler.Name(),
		"quantum", m.cfg.Scheduler.Quantum,
		"max_processes", m.cfg.Process.MaxProcesses)
	return nil
}

// Start implements subsystem.Subsystem.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	return nil
}

// Stop implements subsystem.Subsystem.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Cleanup terminates everything except init.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid := range m.table {
		if pid == InitPID {
			continue
		}
		if p, ok := m.table[pid]; ok && p.State().Alive() {
			m.terminateLocked(p, 0, true)
		}
	}
	m.reapZombiesLocked()
	return nil
}

// HealthCheck reports whether the subsystem is running and init is alive.
func (m *Manager) HealthCheck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	init, ok := m.table[InitPID]
	return m.running && ok && init.State().Alive()
}

// allocatePIDLocked probes linearly from the cursor for a free pid in
// [2, MaxPID]. Pids 0 and 1 are reserved for the kernel and init.
func (m *Manager) allocatePIDLocked() (int, error) {
	maxPID := m.cfg.Process.MaxPID
	for probed := 0; probed <= maxPID-2; probed++ {
		pid := m.pidCursor
		m.pidCursor++
		if m.pidCursor > maxPID {
			m.pidCursor = 2
		}
		if _, inUse := m.table[pid]; !inUse {
			return pid, nil
		}
	}
	return 0, ErrPIDExhausted
}

// CreateProcess admits a new process in the READY state and queues it on the
// scheduler.
func (m *Manager) CreateProcess(spec CreateSpec) (*PCB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.table) >= m.cfg.Process.MaxProcesses {
		return nil, fmt.Errorf("create %q: %w", spec.Name, ErrProcessLimit)
	}

	parentPID := spec.ParentPID
	if parentPID == 0 {
		parentPID = InitPID
	}
	parent, ok := m.table[parentPID]
	if !ok {
		return nil, fmt.Errorf("create %q: parent pid %d: %w", spec.Name, parentPID, ErrProcessNotFound)
	}

	pid, err := m.allocatePIDLocked()
	if err != nil {
		return nil, fmt.Errorf("create %q: %w", spec.Name, err)
	}

	p := NewPCB(pid, parentPID, spec.Name, spec.Priority, m.cfg.Scheduler.Quantum)
	p.Command = spec.Command
	p.UID = spec.UID
	p.GID = spec.GID
	p.Nice = spec.Nice
	p.Daemon = spec.Daemon
	p.Entry = spec.Entry
	for k, v := range spec.Env {
		p.Setenv(k, v)
	}

	if err := p.SetState(StateReady); err != nil {
		return nil, err
	}
	m.table[pid] = p
	parent.AddChild(pid)
	m.scheduler.Add(p)

	m.log.Infow("process created", "pid", pid, "name", spec.Name, "parent", parentPID)
	return p, nil
}

// Fork clones a process. The child gets a fresh pid, a copy of the parent's
// context and descriptor table, and enters the run queue READY.
func (m *Manager) Fork(parentPID int) (*PCB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.table[parentPID]
	if !ok {
		return nil, &ForkError{ParentPID: parentPID, Err: ErrProcessNotFound}
	}
	if len(m.table) >= m.cfg.Process.MaxProcesses {
		return nil, &ForkError{ParentPID: parentPID, Err: ErrProcessLimit}
	}

	pid, err := m.allocatePIDLocked()
	if err != nil {
		return nil, &ForkError{ParentPID: parentPID, Err: err}
	}

	child := NewPCB(pid, parentPID, parent.Name, parent.Priority, parent.TimeSlice)
	child.Command = parent.Command
	child.UID = parent.UID
	child.GID = parent.GID
	child.Nice = parent.Nice
	child.Entry = parent.Entry
	child.SetCWD(parent.CWD())
	for k, v := range parent.Environ() {
		child.Setenv(k, v)
	}
	child.Context = m.switcher.ForkContext(parent)

	// The descriptor table and signal setup carry over to the child.
	parent.mu.Lock()
	for fd, name := range parent.Resources.OpenFiles {
		child.Resources.OpenFiles[fd] = name
	}
	child.Resources.nextFD = parent.Resources.nextFD
	for sig := range parent.blocked {
		child.blocked[sig] = true
	}
	for sig, handler := range parent.handlers {
		child.handlers[sig] = handler
	}
	parent.mu.Unlock()

	if err := child.SetState(StateReady); err != nil {
		return nil, &ForkError{ParentPID: parentPID, Err: err}
	}
	m.table[pid] = child
	parent.AddChild(pid)
	m.scheduler.Add(child)

	m.log.Infow("forked", "parent", parentPID, "child", pid)
	return child, nil
}

// Exec replaces a process's image: the register file resets to the fresh
// state, the process takes the new command's name and entry point, pending
// signals are discarded, and runtime statistics and the memory-usage
// counter restart. Open descriptors survive.
func (m *Manager) Exec(pid int, command string, entry func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.table[pid]
	if !ok {
		return &ExecError{PID: pid, Command: command, Err: ErrProcessNotFound}
	}
	if !p.State().Alive() {
		return &ExecError{PID: pid, Command: command, Err: fmt.Errorf("state %s", p.State())}
	}

	m.switcher.ExecContext(p)
	p.Command = command
	p.Name = path.Base(command)
	p.Entry = entry
	p.Stats = Stats{CreatedAt: p.Stats.CreatedAt}
	p.mu.Lock()
	p.pending = nil
	p.Resources.MemoryUsage = 0
	p.mu.Unlock()

	m.log.Infow("exec", "pid", pid, "command", command)
	return nil
}

// TerminateProcess ends a process and its whole subtree, children first.
// Children exit with code 1; the named process exits with the given code. A
// STOPPED process refuses termination unless force is set.
func (m *Manager) TerminateProcess(pid, exitCode int, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.table[pid]
	if !ok {
		return &TerminationError{PID: pid, Err: ErrProcessNotFound}
	}
	if p.State() == StateZombie {
		// Double terminate is a no-op.
		return nil
	}
	if p.State() == StateStopped && !force {
		return &TerminationError{PID: pid, Err: ErrStopped}
	}
	if !p.State().Alive() {
		return &TerminationError{PID: pid, Err: fmt.Errorf("state %s", p.State())}
	}

	m.terminateLocked(p, exitCode, force)
	return nil
}

// terminateLocked recursively terminates the subtree rooted at p. Callers
// hold m.mu.
func (m *Manager) terminateLocked(p *PCB, exitCode int, force bool) {
	for _, childPID := range p.Children() {
		if child, ok := m.table[childPID]; ok && child.State().Alive() {
			m.terminateLocked(child, 1, true)
		}
	}

	m.scheduler.Remove(p.PID)
	if m.switcher.Current() == p {
		m.switcher.Switch(p, nil)
	}

	p.ExitCode = exitCode

	parent, parentAlive := m.table[p.PPID]
	if parentAlive && parent.State().Alive() {
		p.SetState(StateZombie)
		parent.SendSignal(SIGCHLD)
		m.log.Debugw("process became zombie", "pid", p.PID, "exit_code", exitCode)
		return
	}

	p.SetState(StateZombie)
	m.reapLocked(p)
}

// reapLocked finishes a zombie: TERMINATED, out of the table, off the
// parent's child list, reap hook fired.
func (m *Manager) reapLocked(p *PCB) {
	p.SetState(StateTerminated)
	delete(m.table, p.PID)
	if parent, ok := m.table[p.PPID]; ok {
		parent.RemoveChild(p.PID)
	}
	if m.reapHook != nil {
		m.reapHook(p.PID)
	}
	m.log.Debugw("process reaped", "pid", p.PID, "exit_code", p.ExitCode)
}

// Kill delivers a signal to a process. SIGKILL, SIGSTOP, and SIGCONT act
// immediately; everything else queues for the next tick.
func (m *Manager) Kill(pid int, sig Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.table[pid]
	if !ok {
		return fmt.Errorf("kill pid %d: %w", pid, ErrProcessNotFound)
	}

	switch sig {
	case SIGKILL:
		if p.State().Alive() {
			m.terminateLocked(p, -9, true)
		}
	case SIGSTOP:
		m.stopLocked(p)
	case SIGCONT:
		m.continueLocked(p)
	default:
		p.SendSignal(sig)
	}
	return nil
}

// SendSignal queues a signal without immediate action; the tick delivers it.
func (m *Manager) SendSignal(pid int, sig Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.table[pid]
	if !ok {
		return fmt.Errorf("signal pid %d: %w", pid, ErrProcessNotFound)
	}
	p.SendSignal(sig)
	return nil
}

func (m *Manager) stopLocked(p *PCB) {
	if p.State() == StateStopped || !p.State().Alive() {
		return
	}
	m.scheduler.Remove(p.PID)
	if m.switcher.Current() == p {
		m.switcher.Switch(p, nil)
	}
	p.SetState(StateStopped)
	m.log.Debugw("process stopped", "pid", p.PID)
}

func (m *Manager) continueLocked(p *PCB) {
	if p.State() != StateStopped {
		return
	}
	p.SetState(StateReady)
	m.scheduler.Add(p)
	m.log.Debugw("process continued", "pid", p.PID)
}

// handleSignalLocked applies one dequeued signal: an installed handler wins,
// otherwise the default disposition runs. A panicking handler is contained
// and logged so it cannot stall delivery or reaping.
func (m *Manager) handleSignalLocked(p *PCB, sig Signal) {
	if handler, ok := p.Handler(sig); ok && sig != SIGKILL && sig != SIGSTOP {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Errorw("signal handler panicked", "pid", p.PID, "signal", sig, "panic", r)
				}
			}()
			handler(sig)
		}()
		return
	}

	switch DefaultDisposition(sig) {
	case DispositionIgnore:
	case DispositionStop:
		m.stopLocked(p)
	case DispositionContinue:
		m.continueLocked(p)
	case DispositionTerminate, DispositionCore:
		if p.State().Alive() {
			m.terminateLocked(p, 128+int(sig), true)
		}
	}
}

// Tick is one beat of the kernel clock: each live process gets at most one
// pending signal delivered, schedulers age their queues, and orphaned
// zombies are reaped.
func (m *Manager) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	pids := make([]int, 0, len(m.table))
	for pid := range m.table {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	for _, pid := range pids {
		p, ok := m.table[pid]
		if !ok || !p.State().Alive() {
			continue
		}
		if sig, ok := p.NextSignal(); ok {
			m.handleSignalLocked(p, sig)
		}
	}

	m.scheduler.Tick()
	m.reapZombiesLocked()
}

// ReapZombies collects zombies whose parent is init or gone.
func (m *Manager) ReapZombies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reapZombiesLocked()
}

func (m *Manager) reapZombiesLocked() int {
	reaped := 0
	for {
		progress := false
		for pid, p := range m.table {
			if p.State() != StateZombie {
				continue
			}
			parent, ok := m.table[p.PPID]
			if !ok || p.PPID == InitPID || !parent.State().Alive() {
				m.reapLocked(m.table[pid])
				reaped++
				progress = true
			}
		}
		if !progress {
			return reaped
		}
	}
}

// Schedule runs one scheduling decision, called once per clock quantum. The
// incumbent's remaining slice is charged one quantum; while it has slice
// left it keeps the CPU. On expiry it is requeued and the next READY
// process is dispatched. With an idle CPU the next process is dispatched
// directly.
func (m *Manager) Schedule() *PCB {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.switcher.Current()
	if current != nil && current.State() == StateRunning {
		current.TimeRemaining -= m.cfg.Scheduler.Quantum
		if current.TimeRemaining > 0 {
			return current
		}
		current.TimeRemaining = 0
	}
	return m.dispatchLocked(false)
}

// Yield deschedules the current process voluntarily, whatever slice it has
// left; it keeps its queue level under feedback scheduling.
func (m *Manager) Yield() *PCB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dispatchLocked(true)
}

func (m *Manager) dispatchLocked(voluntary bool) *PCB {
	current := m.switcher.Current()

	next := m.scheduler.Next()
	if next == nil {
		// Nothing else is runnable; the incumbent keeps the CPU with a
		// fresh slice.
		if current != nil && current.State() == StateRunning {
			current.TimeRemaining = current.TimeSlice
		}
		return current
	}

	if current != nil && current.State() == StateRunning {
		current.SetState(StateReady)
		if voluntary {
			m.scheduler.Yield(current)
		} else {
			m.scheduler.TimeSliceExpired(current)
		}
	}

	next.SetState(StateRunning)
	next.TimeRemaining = next.TimeSlice
	m.switcher.Switch(current, next)
	return next
}

// GetProcess looks up a live or zombie process by pid.
func (m *Manager) GetProcess(pid int) (*PCB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.table[pid]
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}
	return p, nil
}

// ListProcesses returns a snapshot of every table entry, ordered by pid.
func (m *Manager) ListProcesses() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]Info, 0, len(m.table))
	for _, p := range m.table {
		infos = append(infos, p.Snapshot())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].PID < infos[j].PID })
	return infos
}

// Children returns the pids of a process's children.
func (m *Manager) Children(pid int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.table[pid]
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrProcessNotFound)
	}
	return p.Children(), nil
}

// CurrentPID returns the pid holding the CPU, or 0 when idle.
func (m *Manager) CurrentPID() int {
	return m.switcher.CurrentPID()
}

// Count returns the number of table entries, zombies included.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}

// UpdateMemoryUsage records the bytes charged to a process by the memory
// subsystem.
func (m *Manager) UpdateMemoryUsage(pid, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.table[pid]; ok {
		p.mu.Lock()
		p.Resources.MemoryUsage = bytes
		p.mu.Unlock()
	}
}

// Stats returns a snapshot of the table, queues, and switch activity.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := ManagerStats{
		Processes: len(m.table),
		ByState:   make(map[State]int),
		Queued:    m.scheduler.Count(),
		Switches:  m.switcher.Stats(),
	}
	for _, p := range m.table {
		s.ByState[p.State()]++
	}
	return s
}
