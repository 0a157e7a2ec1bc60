// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/corralhq/corral/lib/docker"
	"github.com/corralhq/corral/lib/shellquote"
)

// CommandSpec is the user's command as a structured argument list. The
// command string is a shell expression (pipelines and expansions are
// the user's to use); the extra args are opaque tokens whose boundaries
// must survive all the way into the container.
type CommandSpec struct {
	Command string
	Args    []string

	// Dir is the in-container working directory the command starts in,
	// normally the session's HostPath.
	Dir string
}

// commandLine flattens the command and its extra tokens into the single
// string handed to the in-container shell. This is the only place
// tokens are flattened, and each extra token goes through the quoting
// round trip, so embedded whitespace and quotes reach the command
// verbatim instead of being re-split.
func (spec CommandSpec) commandLine() string {
	if len(spec.Args) == 0 {
		return spec.Command
	}
	parts := make([]string, 0, len(spec.Args)+1)
	parts = append(parts, spec.Command)
	for _, arg := range spec.Args {
		parts = append(parts, shellquote.Quote(arg))
	}
	return strings.Join(parts, " ")
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Docker is the runtime client. Required.
	Docker *docker.Client

	// User is the unprivileged in-container user the command runs as.
	// Required: running user commands as root would collapse the
	// privilege boundary the provisioner just established.
	User string

	// IsTerminal reports whether the invoking stdin is a terminal,
	// which decides pseudo-terminal allocation. Nil means probing the
	// real stdin; tests inject a constant.
	IsTerminal func() bool

	// Logger, nil means slog.Default().
	Logger *slog.Logger
}

// Runner executes user commands inside a running session as the
// unprivileged user, attached to the invoking terminal.
type Runner struct {
	docker     *docker.Client
	user       string
	isTerminal func() bool
	logger     *slog.Logger
}

// NewRunner returns a Runner for the given configuration.
func NewRunner(config RunnerConfig) *Runner {
	runner := &Runner{
		docker:     config.Docker,
		user:       config.User,
		isTerminal: config.IsTerminal,
		logger:     config.Logger,
	}
	if runner.isTerminal == nil {
		runner.isTerminal = func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		}
	}
	if runner.logger == nil {
		runner.logger = slog.Default()
	}
	return runner
}

// Run executes the command inside the session and blocks until it
// exits. The exec changes into spec.Dir first, runs as the unprivileged
// user, and inherits the corral process's stdio; a pseudo-terminal is
// allocated only when stdin is one, so piped input keeps working. A
// non-zero exit comes back as *docker.ExitError and is the user's
// result, not corral's failure.
func (r *Runner) Run(ctx context.Context, sess *Session, spec CommandSpec) error {
	line := spec.commandLine()
	r.logger.Debug("running command", "session", sess.Name, "command", line)
	return r.docker.ExecInteractive(ctx, docker.ExecSpec{
		Container: sess.Name,
		User:      r.user,
		Workdir:   spec.Dir,
		TTY:       r.isTerminal(),
		Argv:      []string{"bash", "-lc", line},
	})
}
