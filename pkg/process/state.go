package process

// State is a process lifecycle state.
type State string

// Process states.
const (
	// StateNew marks a process that is created but not yet admitted to a
	// scheduler.
	StateNew State = "NEW"
	// StateReady marks a process waiting in a run queue.
	StateReady State = "READY"
	// StateRunning marks the process currently holding the CPU.
	StateRunning State = "RUNNING"
	// StateWaiting marks a process blocked on an event.
	StateWaiting State = "WAITING"
	// StateStopped marks a process suspended by SIGSTOP or SIGTSTP.
	StateStopped State = "STOPPED"
	// StateZombie marks a terminated process whose parent has not reaped
	// its exit status yet.
	StateZombie State = "ZOMBIE"
	// StateTerminated marks a fully reaped process.
	StateTerminated State = "TERMINATED"
)

// validTransitions holds the allowed lifecycle edges. Terminated is a sink.
var validTransitions = map[State][]State{
	StateNew:     {StateReady, StateTerminated},
	StateReady:   {StateRunning, StateStopped, StateZombie, StateTerminated},
	StateRunning: {StateReady, StateWaiting, StateStopped, StateZombie, StateTerminated},
	StateWaiting: {StateReady, StateStopped, StateZombie, StateTerminated},
	StateStopped: {StateReady, StateZombie, StateTerminated},
	StateZombie:  {StateTerminated},
}

// CanTransition reports whether the lifecycle permits moving from one state
// to another. A transition to the same state is always allowed.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Alive reports whether the state belongs to a process that still exists as
// a schedulable or wakeable entity.
func (s State) Alive() bool {
	switch s {
	case StateNew, StateReady, StateRunning, StateWaiting, StateStopped:
		return true
	}
	return false
}
