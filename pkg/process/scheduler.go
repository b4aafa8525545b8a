package process

import (
	"fmt"
	"sync"

	"simos/pkg/config"
)

// Scheduler algorithm names accepted by NewScheduler.
const (
	AlgorithmRoundRobin = "round_robin"
	AlgorithmPriority   = "priority"
	AlgorithmMLFQ       = "mlfq"
)

// Scheduler decides which READY process runs next. Implementations order
// processes; they never change process state, with one exception: aging
// schedulers may raise a waiting process's Priority field.
//
// Add admits a process to the run queue. Remove withdraws a process by pid
// and reports whether it was queued. Next dequeues the process to dispatch.
// TimeSliceExpired requeues a process whose quantum ran out; Yield requeues
// a process that gave up the CPU voluntarily. Tick advances scheduler-local
// time for aging.
type Scheduler interface {
	Name() string
	Add(p *PCB)
	Remove(pid int) bool
	Next() *PCB
	TimeSliceExpired(p *PCB)
	Yield(p *PCB)
	Tick()
	Count() int
}

// NewScheduler builds the scheduler named by the configuration.
func NewScheduler(cfg config.SchedulerConfig) (Scheduler, error) {
	switch cfg.Algorithm {
	case AlgorithmRoundRobin:
		return NewRoundRobin(cfg.Quantum), nil
	case AlgorithmPriority:
		return NewPriorityScheduler(cfg.PriorityLevels), nil
	case AlgorithmMLFQ:
		return NewMLFQ(cfg.PriorityLevels, cfg.Quantum), nil
	default:
		return nil, fmt.Errorf("unknown scheduler algorithm %q", cfg.Algorithm)
	}
}

// RoundRobin runs every process in FIFO order with a fixed quantum.
type RoundRobin struct {
	mu      sync.Mutex
	queue   []*PCB
	quantum int
}

// NewRoundRobin creates a round-robin scheduler with the given quantum in
// simulated ticks.
func NewRoundRobin(quantum int) *RoundRobin {
	return &RoundRobin{quantum: quantum}
}

// Name implements Scheduler.
func (rr *RoundRobin) Name() string { return AlgorithmRoundRobin }

// Add appends the process to the tail of the run queue and grants it the
// scheduler's quantum.
func (rr *RoundRobin) Add(p *PCB) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	p.TimeSlice = rr.quantum
	rr.queue = append(rr.queue, p)
}

// Remove withdraws a process from the queue by pid.
func (rr *RoundRobin) Remove(pid int) bool {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	for i, p := range rr.queue {
		if p.PID == pid {
			rr.queue = append(rr.queue[:i], rr.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Next dequeues the head of the run queue.
func (rr *RoundRobin) Next() *PCB {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if len(rr.queue) == 0 {
		return nil
	}
	p := rr.queue[0]
	rr.queue = rr.queue[1:]
	return p
}

// TimeSliceExpired sends the process to the back of the queue.
func (rr *RoundRobin) TimeSliceExpired(p *PCB) {
	rr.Add(p)
}

// Yield is identical to expiry under round robin.
func (rr *RoundRobin) Yield(p *PCB) {
	rr.Add(p)
}

// Tick implements Scheduler. Round robin has no aging.
func (rr *RoundRobin) Tick() {}

// Count returns the number of queued processes.
func (rr *RoundRobin) Count() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.queue)
}
