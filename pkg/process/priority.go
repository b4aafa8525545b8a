package process

import "sync"

// DefaultAgingThreshold is the number of scheduler ticks a process may wait
// before its priority is boosted one level.
const DefaultAgingThreshold = 500

// PriorityScheduler runs the highest-priority READY process first, with
// FIFO order inside a level. The effective level is base priority plus
// nice, clamped to the configured range; level 0 is the highest. Waiting
// processes age: after the aging threshold their base priority is raised
// one level and their wait clock restarts.
type PriorityScheduler struct {
	mu        sync.Mutex
	levels    int
	threshold int
	queues    [][]*PCB
	waiting   map[int]int
}

// NewPriorityScheduler creates a priority scheduler with the given number of
// levels and the default aging threshold.
func NewPriorityScheduler(levels int) *PriorityScheduler {
	return &PriorityScheduler{
		levels:    levels,
		threshold: DefaultAgingThreshold,
		queues:    make([][]*PCB, levels),
		waiting:   make(map[int]int),
	}
}

// SetAgingThreshold overrides the aging threshold in ticks.
func (ps *PriorityScheduler) SetAgingThreshold(ticks int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.threshold = ticks
}

// Name implements Scheduler.
func (ps *PriorityScheduler) Name() string { return AlgorithmPriority }

// Add queues the process at its effective priority and starts its wait
// clock.
func (ps *PriorityScheduler) Add(p *PCB) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.addLocked(p)
}

func (ps *PriorityScheduler) addLocked(p *PCB) {
	level := clampLevel(p.Priority+p.Nice, ps.levels)
	ps.queues[level] = append(ps.queues[level], p)
	ps.waiting[p.PID] = 0
}

// Remove withdraws a process by pid. Every level is scanned because aging
// may have moved the process since it was added.
func (ps *PriorityScheduler) Remove(pid int) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for level, queue := range ps.queues {
		for i, p := range queue {
			if p.PID == pid {
				ps.queues[level] = append(queue[:i], queue[i+1:]...)
				delete(ps.waiting, pid)
				return true
			}
		}
	}
	return false
}

// Next dequeues the head of the highest non-empty level.
func (ps *PriorityScheduler) Next() *PCB {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for level := 0; level < ps.levels; level++ {
		if len(ps.queues[level]) == 0 {
			continue
		}
		p := ps.queues[level][0]
		ps.queues[level] = ps.queues[level][1:]
		delete(ps.waiting, p.PID)
		return p
	}
	return nil
}

// TimeSliceExpired requeues the process at its current priority.
func (ps *PriorityScheduler) TimeSliceExpired(p *PCB) {
	ps.Add(p)
}

// Yield requeues the process at its current priority.
func (ps *PriorityScheduler) Yield(p *PCB) {
	ps.Add(p)
}

// Tick advances every queued process's wait clock. A process that has waited
// past the threshold moves up one level and its clock restarts.
func (ps *PriorityScheduler) Tick() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var boosted []*PCB
	for level := 1; level < ps.levels; level++ {
		queue := ps.queues[level]
		kept := queue[:0]
		for _, p := range queue {
			ps.waiting[p.PID]++
			if ps.waiting[p.PID] >= ps.threshold {
				boosted = append(boosted, p)
				continue
			}
			kept = append(kept, p)
		}
		ps.queues[level] = kept
	}
	for _, p := range ps.queues[0] {
		ps.waiting[p.PID]++
	}

	for _, p := range boosted {
		p.Priority--
		level := clampLevel(p.Priority+p.Nice, ps.levels)
		ps.queues[level] = append(ps.queues[level], p)
		ps.waiting[p.PID] = 0
	}
}

// Count returns the number of queued processes across all levels.
func (ps *PriorityScheduler) Count() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	n := 0
	for _, queue := range ps.queues {
		n += len(queue)
	}
	return n
}

func clampLevel(level, levels int) int {
	if level < 0 {
		return 0
	}
	if level >= levels {
		return levels - 1
	}
	return level
}
