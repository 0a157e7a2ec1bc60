// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corralhq/corral/lib/docker"
	"github.com/corralhq/corral/lib/version"
)

// Labels attached to every container corral starts. The managed label
// is the listing filter; the workdir label makes `corral --list` output
// meaningful without a reverse lookup from name to path.
const (
	LabelManaged = "io.corral.managed"
	LabelWorkdir = "io.corral.workdir"
	LabelVersion = "io.corral.version"
)

// State tracks where a session is in its lifecycle. There are no
// other states: a session is never paused, restarted, or reused.
type State int

const (
	StateAbsent State = iota
	StateRunning
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StartError reports that the sandbox container could not be started.
// The underlying error carries the runtime's own output.
type StartError struct {
	Name string
	Err  error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start environment %q: %v", e.Name, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// CreateSpec describes the container a launch needs.
type CreateSpec struct {
	// Name is the session identity, normally Manager.Name of the
	// canonical working directory.
	Name string

	// HostPath is the canonical working directory. It is bind-mounted
	// at the identical path inside the container so path-sensitive
	// tooling behaves the same on both sides of the boundary.
	HostPath string

	// Image is the container image to run.
	Image string

	// EnvNames lists environment variables forwarded into the
	// container by NAME. Values are inherited from the corral process's
	// own environment by the runtime client, so secrets never appear in
	// an argument vector.
	EnvNames []string

	// Mounts are extra binds ("host:container[:ro]") beyond the
	// working directory.
	Mounts []string

	// Memory and CPUs are optional runtime resource limits.
	Memory string
	CPUs   string
}

// Session is a live container created by [Manager.Create].
type Session struct {
	Name     string
	HostPath string

	state State
}

// State reports the session's lifecycle state as this process last
// observed it.
func (s *Session) State() State {
	return s.state
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Docker is the runtime client. Required.
	Docker *docker.Client

	// Name derives a container identity from a canonical working
	// directory path. Nil means DeriveName; tests inject fixed names.
	Name func(canonicalPath string) string

	// Logger receives cleanup and teardown diagnostics. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Manager owns session lifecycle: cleanup of stale containers, creation
// of fresh ones, and unconditional teardown.
type Manager struct {
	docker *docker.Client
	name   func(string) string
	logger *slog.Logger
}

// NewManager returns a Manager for the given configuration.
func NewManager(config ManagerConfig) *Manager {
	manager := &Manager{
		docker: config.Docker,
		name:   config.Name,
		logger: config.Logger,
	}
	if manager.name == nil {
		manager.name = DeriveName
	}
	if manager.logger == nil {
		manager.logger = slog.Default()
	}
	return manager
}

// Name returns the session identity for a canonical working directory.
func (m *Manager) Name(canonicalPath string) string {
	return m.name(canonicalPath)
}

// Cleanup removes any container holding the given identity, typically
// one leaked by a previous invocation that was killed too hard to tear
// itself down. It is idempotent and never fails the caller: absence is
// the goal state, and a removal error only means the subsequent create
// will fail with a better message. Errors are logged at debug level and
// swallowed. This is the only lifecycle operation whose errors are
// absorbed.
func (m *Manager) Cleanup(ctx context.Context, name string) {
	if err := m.docker.Remove(ctx, name); err != nil {
		m.logger.Debug("cleanup ignored error", "name", name, "error", err)
	}
}

// Create starts the detached long-lived container for a launch. The
// container runs a sleep process as PID 1 and exists solely as an
// execution environment; all real work happens through exec. Failure
// is an environment start error, and any half-created container is
// removed before returning so the identity is left absent.
func (m *Manager) Create(ctx context.Context, spec CreateSpec) (*Session, error) {
	containerID, err := m.docker.Run(ctx, docker.RunSpec{
		Name:  spec.Name,
		Image: spec.Image,
		Labels: map[string]string{
			LabelManaged: "true",
			LabelWorkdir: spec.HostPath,
			LabelVersion: version.Short(),
		},
		// Raw sockets and network administration: the in-container
		// firewall activator needs both to install packet rules.
		CapAdd:   []string{"NET_ADMIN", "NET_RAW"},
		Binds:    append([]string{spec.HostPath + ":" + spec.HostPath}, spec.Mounts...),
		EnvNames: spec.EnvNames,
		Memory:   spec.Memory,
		CPUs:     spec.CPUs,
		Command:  []string{"sleep", "infinity"},
	})
	if err != nil {
		// docker run can create the container and then fail to start
		// it; remove the husk so the identity is genuinely absent.
		m.Cleanup(ctx, spec.Name)
		return nil, &StartError{Name: spec.Name, Err: err}
	}
	m.logger.Debug("session started", "name", spec.Name, "container", containerID)
	return &Session{
		Name:     spec.Name,
		HostPath: spec.HostPath,
		state:    StateRunning,
	}, nil
}

// Destroy forcefully removes the session's container. It is
// unconditional: the launcher defers it as soon as Create succeeds, so
// it runs on success, on every error path, and on signal-driven
// unwinding. The error return exists for the caller's log line; by the
// time Destroy runs there is no outcome left for it to change.
func (m *Manager) Destroy(ctx context.Context, sess *Session) error {
	sess.state = StateTerminating
	if err := m.docker.Remove(ctx, sess.Name); err != nil {
		return fmt.Errorf("destroy session %q: %w", sess.Name, err)
	}
	sess.state = StateAbsent
	m.logger.Debug("session destroyed", "name", sess.Name)
	return nil
}

// Stop removes the container for an identity and reports whether one
// existed, for `corral --stop` feedback.
func (m *Manager) Stop(ctx context.Context, name string) (bool, error) {
	exists, err := m.docker.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := m.docker.Remove(ctx, name); err != nil {
		return true, err
	}
	return true, nil
}
