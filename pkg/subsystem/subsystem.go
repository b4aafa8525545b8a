// Package subsystem defines the lifecycle contract shared by the kernel
// subsystems and the registry that sequences boot and shutdown.
package subsystem

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"simos/pkg/logging"
)

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("subsystem already registered")
	ErrNotRegistered     = errors.New("subsystem not registered")
)

// State is the lifecycle state of a subsystem.
type State string

const (
	StateRegistered   State = "registered"
	StateInitializing State = "initializing"
	StateInitialized  State = "initialized"
	StateRunning      State = "running"
	StateStopped      State = "stopped"
	StateError        State = "error"
)

// Subsystem is the lifecycle contract every kernel subsystem implements.
//
// Lifecycle order: Initialize, Start, Stop, Cleanup. Stop and Cleanup run in
// reverse registration order so dependents shut down before their
// dependencies.
type Subsystem interface {
	// Name identifies the subsystem in logs and lookups.
	Name() string
	// Initialize allocates the subsystem's resources.
	Initialize() error
	// Start begins normal operation.
	Start() error
	// Stop halts active operations.
	Stop() error
	// Cleanup releases all resources.
	Cleanup() error
	// HealthCheck reports whether the subsystem is operational.
	HealthCheck() bool
}

type entry struct {
	sub   Subsystem
	state State
}

// Registry owns the registered subsystems and drives their lifecycle in
// registration order. It is constructed explicitly and passed where needed;
// there is no process-wide instance.
type Registry struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*entry
	logger  *zap.SugaredLogger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logging.Named(logger, "registry"),
	}
}

// Register adds a subsystem. Registration order is initialization order.
func (r *Registry) Register(sub Subsystem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := sub.Name()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.entries[name] = &entry{sub: sub, state: StateRegistered}
	r.order = append(r.order, name)
	r.logger.Debugw("registered subsystem", "name", name)
	return nil
}

// Get returns a registered subsystem by name.
func (r *Registry) Get(name string) (Subsystem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return e.sub, nil
}

// StateOf reports the lifecycle state of a subsystem.
func (r *Registry) StateOf(name string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return e.state, nil
}

// InitializeAll initializes every subsystem in registration order. The first
// failure aborts the sequence.
func (r *Registry) InitializeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		e := r.entries[name]
		e.state = StateInitializing
		if err := e.sub.Initialize(); err != nil {
			e.state = StateError
			r.logger.Errorw("subsystem initialization failed", "name", name, "error", err)
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		e.state = StateInitialized
		r.logger.Debugw("subsystem initialized", "name", name)
	}
	return nil
}

// StartAll starts every initialized subsystem in registration order.
func (r *Registry) StartAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range r.order {
		e := r.entries[name]
		if e.state != StateInitialized {
			continue
		}
		if err := e.sub.Start(); err != nil {
			e.state = StateError
			r.logger.Errorw("subsystem start failed", "name", name, "error", err)
			return fmt.Errorf("start %s: %w", name, err)
		}
		e.state = StateRunning
	}
	return nil
}

// StopAll stops running subsystems in reverse registration order. Stop
// errors are logged and do not prevent the remaining subsystems from
// stopping.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.entries[r.order[i]]
		if e.state != StateRunning {
			continue
		}
		if err := e.sub.Stop(); err != nil {
			r.logger.Errorw("subsystem stop failed", "name", r.order[i], "error", err)
			e.state = StateError
			continue
		}
		e.state = StateStopped
	}
}

// CleanupAll releases subsystem resources in reverse registration order.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.entries[r.order[i]]
		if e.state == StateRegistered {
			continue
		}
		if err := e.sub.Cleanup(); err != nil {
			r.logger.Errorw("subsystem cleanup failed", "name", r.order[i], "error", err)
		}
	}
}

// HealthCheck reports the health of every registered subsystem.
func (r *Registry) HealthCheck() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	health := make(map[string]bool, len(r.entries))
	for name, e := range r.entries {
		health[name] = e.sub.HealthCheck()
	}
	return health
}
