// Package process implements the process lifecycle subsystem: process
// control blocks, the state machine, POSIX-style signals, pluggable CPU
// schedulers, the context switcher, and the process manager that ties them
// together.
//
// Processes here are simulated kernel objects, not OS processes. A PCB holds
// identity, hierarchy, scheduling state, a saved CPU context, resource
// accounting, and a pending-signal queue. The Manager owns the PID table and
// drives scheduling and signal delivery; schedulers decide only ordering and
// never touch process state beyond the priority field.
package process
