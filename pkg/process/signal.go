package process

import "fmt"

// Signal is a POSIX-style signal number.
type Signal int

// Signal numbers. The set mirrors the common POSIX assignments.
const (
	SIGHUP  Signal = 1
	SIGINT  Signal = 2
	SIGQUIT Signal = 3
	SIGILL  Signal = 4
	SIGTRAP Signal = 5
	SIGABRT Signal = 6
	SIGBUS  Signal = 7
	SIGFPE  Signal = 8
	SIGKILL Signal = 9
	SIGUSR1 Signal = 10
	SIGSEGV Signal = 11
	SIGUSR2 Signal = 12
	SIGPIPE Signal = 13
	SIGALRM Signal = 14
	SIGTERM Signal = 15
	SIGCHLD Signal = 17
	SIGCONT Signal = 18
	SIGSTOP Signal = 19
	SIGTSTP Signal = 20
	SIGTTIN Signal = 21
	SIGTTOU Signal = 22
)

var signalNames = map[Signal]string{
	SIGHUP:  "SIGHUP",
	SIGINT:  "SIGINT",
	SIGQUIT: "SIGQUIT",
	SIGILL:  "SIGILL",
	SIGTRAP: "SIGTRAP",
	SIGABRT: "SIGABRT",
	SIGBUS:  "SIGBUS",
	SIGFPE:  "SIGFPE",
	SIGKILL: "SIGKILL",
	SIGUSR1: "SIGUSR1",
	SIGSEGV: "SIGSEGV",
	SIGUSR2: "SIGUSR2",
	SIGPIPE: "SIGPIPE",
	SIGALRM: "SIGALRM",
	SIGTERM: "SIGTERM",
	SIGCHLD: "SIGCHLD",
	SIGCONT: "SIGCONT",
	SIGSTOP: "SIGSTOP",
	SIGTSTP: "SIGTSTP",
	SIGTTIN: "SIGTTIN",
	SIGTTOU: "SIGTTOU",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("signal %d", int(s))
}

// Disposition is the default action taken when a signal reaches a process
// that has no handler installed for it.
type Disposition int

const (
	// DispositionTerminate kills the process with exit code 128+signal.
	DispositionTerminate Disposition = iota
	// DispositionIgnore discards the signal.
	DispositionIgnore
	// DispositionStop suspends the process.
	DispositionStop
	// DispositionContinue resumes a stopped process.
	DispositionContinue
	// DispositionCore terminates as if dumping core.
	DispositionCore
)

var defaultDispositions = map[Signal]Disposition{
	SIGHUP:  DispositionTerminate,
	SIGINT:  DispositionTerminate,
	SIGKILL: DispositionTerminate,
	SIGTERM: DispositionTerminate,
	SIGUSR1: DispositionTerminate,
	SIGUSR2: DispositionTerminate,
	SIGPIPE: DispositionTerminate,
	SIGALRM: DispositionTerminate,
	SIGCHLD: DispositionIgnore,
	SIGCONT: DispositionContinue,
	SIGSTOP: DispositionStop,
	SIGTSTP: DispositionStop,
	SIGTTIN: DispositionStop,
	SIGTTOU: DispositionStop,
	SIGQUIT: DispositionCore,
	SIGILL:  DispositionCore,
	SIGABRT: DispositionCore,
	SIGBUS:  DispositionCore,
	SIGFPE:  DispositionCore,
	SIGSEGV: DispositionCore,
	SIGTRAP: DispositionCore,
}

// DefaultDisposition returns the default action for a signal. Unknown
// signals terminate.
func DefaultDisposition(s Signal) Disposition {
	if d, ok := defaultDispositions[s]; ok {
		return d
	}
	return DispositionTerminate
}

// SignalHandler is a process-installed handler invoked in place of the
// default disposition. SIGKILL and SIGSTOP handlers are never honored.
type SignalHandler func(Signal)

// SignalSet is a set of signal numbers, used for per-process masks.
type SignalSet map[Signal]bool

// Add puts a signal in the set. SIGKILL and SIGSTOP cannot be masked.
func (ss SignalSet) Add(s Signal) {
	if s == SIGKILL || s == SIGSTOP {
		return
	}
	ss[s] = true
}

// Remove takes a signal out of the set.
func (ss SignalSet) Remove(s Signal) {
	delete(ss, s)
}

// Contains reports whether the set holds the signal.
func (ss SignalSet) Contains(s Signal) bool {
	return ss[s]
}
