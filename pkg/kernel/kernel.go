// Package kernel assembles the subsystems into a running simulated OS: it
// boots them through the registry, drives the scheduler clock, and wires
// process lifecycle events to address space lifecycle.
package kernel

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"simos/pkg/config"
	"simos/pkg/memory"
	"simos/pkg/process"
	"simos/pkg/subsystem"
)

// monitorInterval is how often the kernel logs a stats line.
const monitorInterval = time.Second

// Kernel owns the subsystem registry and the clock. One clock tick delivers
// signals, ages scheduler queues, reaps zombies, and makes a scheduling
// decision.
type Kernel struct {
	cfg config.Config
	log *zap.SugaredLogger

	registry *subsystem.Registry
	procs    *process.Manager
	mem      *memory.Manager

	mu      sync.Mutex
	booted  time.Time
	ticks   int64
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// Stats aggregates the snapshots of both subsystems.
type Stats struct {
	Uptime  time.Duration
	Ticks   int64
	Process process.ManagerStats
	Memory  memory.ManagerStats
}

// New assembles a kernel from the configuration. Nothing runs until Boot.
func New(cfg config.Config, log *zap.SugaredLogger) *Kernel {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	k := &Kernel{
		cfg:      cfg,
		log:      log,
		registry: subsystem.NewRegistry(log.Named("registry")),
		procs:    process.NewManager(cfg, log.Named("process")),
		mem:      memory.NewManager(cfg.Memory, log.Named("memory")),
	}

	k.procs.SetReapHook(func(pid int) {
		if err := k.mem.DestroyAddressSpace(pid); err != nil {
			k.log.Warnw("address space teardown failed", "pid", pid, "error", err)
		}
	})

	k.registry.Register(k.mem)
	k.registry.Register(k.procs)
	return k
}

// Boot initializes and starts every subsystem and launches the clock.
func (k *Kernel) Boot() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return fmt.Errorf("kernel already booted")
	}

	if err := k.registry.InitializeAll(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	// Init (pid 1) exists now; give it an address space like any process.
	if _, err := k.mem.CreateAddressSpace(process.InitPID); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	if err := k.registry.StartAll(); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	k.booted = time.Now()
	k.stop = make(chan struct{})
	k.running = true
	k.wg.Add(1)
	go k.clock()

	k.log.Infow("kernel booted",
		"scheduler", k.cfg.Scheduler.Algorithm,
		"total_memory", humanize.IBytes(uint64(k.cfg.Memory.TotalMemory)))
	return nil
}

// Shutdown stops the clock and tears the subsystems down in reverse order.
func (k *Kernel) Shutdown() error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	k.running = false
	close(k.stop)
	k.mu.Unlock()

	k.wg.Wait()

	k.registry.StopAll()
	k.registry.CleanupAll()
	k.log.Infow("kernel halted", "uptime", time.Since(k.booted))
	return nil
}

// clock drives ticks at the scheduler quantum, treating one quantum as one
// millisecond of wall time per simulated tick, and logs a stats line every
// monitor interval.
func (k *Kernel) clock() {
	defer k.wg.Done()

	tick := time.NewTicker(time.Duration(k.cfg.Scheduler.Quantum) * time.Millisecond)
	defer tick.Stop()
	monitor := time.NewTicker(monitorInterval)
	defer monitor.Stop()

	for {
		select {
		case <-k.stop:
			return
		case <-tick.C:
			k.Tick()
		case <-monitor.C:
			k.logStats()
		}
	}
}

// Tick runs one beat of the kernel clock by hand. The background clock calls
// this on every quantum; tests and the demo drive it directly.
func (k *Kernel) Tick() {
	k.mu.Lock()
	k.ticks++
	k.mu.Unlock()

	k.procs.Tick()
	k.procs.Schedule()
}

func (k *Kernel) logStats() {
	ps := k.procs.Stats()
	ms := k.mem.Stats()
	k.log.Infow("stats",
		"processes", ps.Processes,
		"ready", ps.ByState[process.StateReady],
		"zombies", ps.ByState[process.StateZombie],
		"switches", ps.Switches.Switches,
		"mem_used", humanize.IBytes(uint64(ms.Frames.UsedFrames*k.cfg.Memory.PageSize)),
		"mem_free", humanize.IBytes(uint64(ms.Frames.FreeFrames*k.cfg.Memory.PageSize)),
		"page_faults", ms.PageFaults)
}

// CreateProcess creates a process and its address space together.
func (k *Kernel) CreateProcess(spec process.CreateSpec) (*process.PCB, error) {
	p, err := k.procs.CreateProcess(spec)
	if err != nil {
		return nil, err
	}
	if _, err := k.mem.CreateAddressSpace(p.PID); err != nil {
		k.procs.TerminateProcess(p.PID, 1, true)
		return nil, err
	}
	return p, nil
}

// Fork clones a process and gives the child its own empty address space.
func (k *Kernel) Fork(parentPID int) (*process.PCB, error) {
	child, err := k.procs.Fork(parentPID)
	if err != nil {
		return nil, err
	}
	if _, err := k.mem.CreateAddressSpace(child.PID); err != nil {
		k.procs.TerminateProcess(child.PID, 1, true)
		return nil, err
	}
	return child, nil
}

// Exec replaces a process image.
func (k *Kernel) Exec(pid int, command string) error {
	return k.procs.Exec(pid, command, nil)
}

// Terminate ends a process subtree. Address spaces fall with the reap hook.
func (k *Kernel) Terminate(pid, exitCode int) error {
	return k.procs.TerminateProcess(pid, exitCode, false)
}

// Kill delivers a signal through the process manager.
func (k *Kernel) Kill(pid int, sig process.Signal) error {
	return k.procs.Kill(pid, sig)
}

// Allocate reserves memory for a process and refreshes its accounting.
func (k *Kernel) Allocate(pid, size int) (int, error) {
	addr, err := k.mem.Allocate(pid, size, memory.DefaultFlags)
	if err != nil {
		return 0, err
	}
	k.procs.UpdateMemoryUsage(pid, k.mem.ProcessUsage(pid))
	return addr, nil
}

// Free releases a process allocation and refreshes its accounting.
func (k *Kernel) Free(pid, address int) error {
	if err := k.mem.Free(pid, address); err != nil {
		return err
	}
	k.procs.UpdateMemoryUsage(pid, k.mem.ProcessUsage(pid))
	return nil
}

// PageFault resolves a page fault on behalf of a process. A fault the memory
// manager cannot handle becomes a SIGSEGV queued at the faulting process.
func (k *Kernel) PageFault(pid, virtualAddr int, write bool) error {
	if p, err := k.procs.GetProcess(pid); err == nil {
		p.Stats.PageFaults++
	}
	if !k.mem.HandlePageFault(pid, virtualAddr, write) {
		return k.procs.Kill(pid, process.SIGSEGV)
	}
	k.procs.UpdateMemoryUsage(pid, k.mem.ProcessUsage(pid))
	return nil
}

// Translate resolves a virtual address for a process.
func (k *Kernel) Translate(pid, virtualAddr int) (int, error) {
	return k.mem.Translate(pid, virtualAddr)
}

// Processes returns the process manager for direct use.
func (k *Kernel) Processes() *process.Manager { return k.procs }

// Memory returns the memory manager for direct use.
func (k *Kernel) Memory() *memory.Manager { return k.mem }

// Registry returns the subsystem registry.
func (k *Kernel) Registry() *subsystem.Registry { return k.registry }

// Stats returns a combined snapshot.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	ticks := k.ticks
	booted := k.booted
	k.mu.Unlock()

	return Stats{
		Uptime:  time.Since(booted),
		Ticks:   ticks,
		Process: k.procs.Stats(),
		Memory:  k.mem.Stats(),
	}
}
