package process

import "sync"

// MLFQ is a multi-level feedback queue. New arrivals enter the top level
// with the base quantum; each level below doubles the quantum. A process
// that burns its whole slice is demoted one level; a process that yields
// keeps its level. Waiting past the aging threshold boosts a process back to
// the top level.
//
// Level placement is scheduler-local state keyed by pid. A process the queue
// has never seen always starts at the top, whatever its Priority field says.
type MLFQ struct {
	mu          sync.Mutex
	numLevels   int
	baseQuantum int
	threshold   int
	queues      [][]*PCB
	levels      map[int]int
	waiting     map[int]int
}

// MLFQStats reports the queue depth and quantum of each level.
type MLFQStats struct {
	Levels []MLFQLevelStats
}

// MLFQLevelStats describes one feedback level.
type MLFQLevelStats struct {
	Level   int
	Quantum int
	Queued  int
}

// NewMLFQ creates a feedback queue with the given number of levels and the
// quantum of the top level.
func NewMLFQ(levels, baseQuantum int) *MLFQ {
	return &MLFQ{
		numLevels:   levels,
		baseQuantum: baseQuantum,
		threshold:   DefaultAgingThreshold,
		queues:      make([][]*PCB, levels),
		levels:      make(map[int]int),
		waiting:     make(map[int]int),
	}
}

// SetAgingThreshold overrides the aging threshold in ticks.
func (m *MLFQ) SetAgingThreshold(ticks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = ticks
}

// Name implements Scheduler.
func (m *MLFQ) Name() string { return AlgorithmMLFQ }

// QuantumAt returns the quantum of a level: the base quantum doubled per
// level of descent.
func (m *MLFQ) QuantumAt(level int) int {
	return m.baseQuantum << level
}

// Add admits a process. First-time arrivals enter the top level; a process
// the queue already tracks re-enters at its remembered level.
func (m *MLFQ) Add(p *PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.levels[p.PID]
	if !ok {
		level = 0
	}
	m.enqueueLocked(p, level)
}

func (m *MLFQ) enqueueLocked(p *PCB, level int) {
	level = clampLevel(level, m.numLevels)
	m.levels[p.PID] = level
	p.TimeSlice = m.QuantumAt(level)
	m.queues[level] = append(m.queues[level], p)
	m.waiting[p.PID] = 0
}

// Remove withdraws a process by pid and forgets its level.
func (m *MLFQ) Remove(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.levels[pid]
	if !ok {
		return false
	}
	delete(m.levels, pid)
	delete(m.waiting, pid)
	queue := m.queues[level]
	for i, p := range queue {
		if p.PID == pid {
			m.queues[level] = append(queue[:i], queue[i+1:]...)
			return true
		}
	}
	return false
}

// Next dequeues the head of the highest non-empty level. The process keeps
// its level entry so expiry and yield know where it came from.
func (m *MLFQ) Next() *PCB {
	m.mu.Lock()
	defer m.mu.Unlock()
	for level := 0; level < m.numLevels; level++ {
		if len(m.queues[level]) == 0 {
			continue
		}
		p := m.queues[level][0]
		m.queues[level] = m.queues[level][1:]
		delete(m.waiting, p.PID)
		return p
	}
	return nil
}

// TimeSliceExpired demotes the process one level, bottoming out at the
// lowest level, and requeues it there with the longer quantum.
func (m *MLFQ) TimeSliceExpired(p *PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueLocked(p, m.levels[p.PID]+1)
}

// Yield requeues the process at its current level.
func (m *MLFQ) Yield(p *PCB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueueLocked(p, m.levels[p.PID])
}

// Tick advances wait clocks. A process waiting past the threshold below the
// top level is boosted back to level 0.
func (m *MLFQ) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var boosted []*PCB
	for level := 1; level < m.numLevels; level++ {
		queue := m.queues[level]
		kept := queue[:0]
		for _, p := range queue {
			m.waiting[p.PID]++
			if m.waiting[p.PID] >= m.threshold {
				boosted = append(boosted, p)
				continue
			}
			kept = append(kept, p)
		}
		m.queues[level] = kept
	}
	for _, p := range m.queues[0] {
		m.waiting[p.PID]++
	}

	for _, p := range boosted {
		m.enqueueLocked(p, 0)
	}
}

// Count returns the number of queued processes across all levels.
func (m *MLFQ) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, queue := range m.queues {
		n += len(queue)
	}
	return n
}

// Stats returns per-level depths and quanta.
func (m *MLFQ) Stats() MLFQStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MLFQStats{Levels: make([]MLFQLevelStats, m.numLevels)}
	for level := 0; level < m.numLevels; level++ {
		s.Levels[level] = MLFQLevelStats{
			Level:   level,
			Quantum: m.QuantumAt(level),
			Queued:  len(m.queues[level]),
		}
	}
	return s
}
