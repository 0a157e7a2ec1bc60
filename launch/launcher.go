// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/corralhq/corral/lib/config"
	"github.com/corralhq/corral/lib/docker"
	"github.com/corralhq/corral/lib/shellquote"
	"github.com/corralhq/corral/policy"
	"github.com/corralhq/corral/session"
)

// Request is one fenced command execution, as the CLI hands it over:
// defaults applied, nothing validated yet.
type Request struct {
	// WorkDir is the directory to fence. The launcher canonicalizes it;
	// callers pass whatever the user gave them.
	WorkDir string

	// Command is the user's command string; Args are extra tokens
	// appended to it inside the environment.
	Command string
	Args    []string

	// RawDomains is the unparsed allowlist, whitespace separated.
	RawDomains string

	// EnvNames are environment variable names forwarded opaquely into
	// the container (the API credential, plus configured passthrough).
	EnvNames []string
}

// Options configures a Launcher.
type Options struct {
	// Config supplies image, users, mounts, limits, and timeouts.
	// Required.
	Config *config.Config

	// Docker overrides the runtime client, for tests and planning.
	// Nil builds a real client from Config.
	Docker *docker.Client

	// IsTerminal overrides the stdin terminal probe used for
	// pseudo-terminal allocation. Nil probes the real stdin.
	IsTerminal func() bool

	// Logger, nil means slog.Default().
	Logger *slog.Logger
}

// Launcher runs fenced commands. One Launcher serves one process; it
// holds no cross-invocation state.
type Launcher struct {
	cfg         *config.Config
	docker      *docker.Client
	sessions    *session.Manager
	provisioner *policy.Provisioner
	runner      *session.Runner
	logger      *slog.Logger
}

// New returns a Launcher for the given options.
func New(options Options) *Launcher {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := options.Docker
	if client == nil {
		client = docker.New(docker.Config{Binary: options.Config.Docker})
	}
	return &Launcher{
		cfg:    options.Config,
		docker: client,
		sessions: session.NewManager(session.ManagerConfig{
			Docker: client,
			Logger: logger,
		}),
		provisioner: policy.NewProvisioner(policy.ProvisionerConfig{
			Docker: client,
			Logger: logger,
		}),
		runner: session.NewRunner(session.RunnerConfig{
			Docker:     client,
			User:       options.Config.User,
			IsTerminal: options.IsTerminal,
			Logger:     logger,
		}),
		logger: logger,
	}
}

// Run executes the full launch sequence and blocks until the user's
// command exits. The returned error is either one of the validation and
// provisioning errors (the launch failed, exit 1) or *docker.ExitError
// (the launch worked and this is the command's own status).
//
// Sequencing is strict and sequential. Both validations complete before
// the runtime is touched, so an invalid launch never creates anything.
// Cleanup of a stale container is best-effort. From successful creation
// onward, exactly one deferred teardown covers every exit path —
// success, any error below, panic, and signal-driven cancellation.
func (l *Launcher) Run(ctx context.Context, req Request) error {
	hostPath, err := session.ResolvePath(req.WorkDir)
	if err != nil {
		return err
	}
	allowlist, err := policy.ParseAllowlist(req.RawDomains)
	if err != nil {
		return err
	}

	name := l.sessions.Name(hostPath)
	logger := l.logger.With("session", name)

	cleanupCtx, cancelCleanup := context.WithTimeout(ctx, l.cfg.StopTimeoutDuration())
	l.sessions.Cleanup(cleanupCtx, name)
	cancelCleanup()

	createCtx, cancelCreate := context.WithTimeout(ctx, l.cfg.StartTimeoutDuration())
	sess, err := l.sessions.Create(createCtx, session.CreateSpec{
		Name:     name,
		HostPath: hostPath,
		Image:    l.cfg.Image,
		EnvNames: req.EnvNames,
		Mounts:   l.cfg.Mounts,
		Memory:   l.cfg.Memory,
		CPUs:     l.cfg.CPUs,
	})
	cancelCreate()
	if err != nil {
		return err
	}

	// The single unconditional teardown. Detached from ctx: a signal
	// cancels the command, not the removal that must follow it.
	defer func() {
		destroyCtx, cancel := context.WithTimeout(
			context.WithoutCancel(ctx), l.cfg.StopTimeoutDuration())
		defer cancel()
		if err := l.sessions.Destroy(destroyCtx, sess); err != nil {
			logger.Warn("session teardown failed", "error", err)
		}
	}()

	provisionCtx, cancelProvision := context.WithTimeout(ctx, l.cfg.StartTimeoutDuration())
	err = l.provisioner.Provision(provisionCtx, sess.Name, allowlist)
	cancelProvision()
	if err != nil {
		return err
	}

	logger.Debug("launching command", "workdir", hostPath)
	return l.runner.Run(ctx, sess, session.CommandSpec{
		Command: req.Command,
		Args:    req.Args,
		Dir:     hostPath,
	})
}

// Plan validates a request and returns the docker command sequence the
// launch would execute, one line per invocation, without touching the
// runtime. Payloads piped to a step (the allowlist file) are rendered
// as indented lines under it.
func Plan(cfg *config.Config, req Request) ([]string, error) {
	recorder := &docker.Recorder{}
	launcher := New(Options{
		Config: cfg,
		Docker: docker.New(docker.Config{Binary: cfg.Docker, Runner: recorder.Run}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := launcher.Run(context.Background(), req); err != nil {
		return nil, err
	}

	var lines []string
	for _, call := range recorder.Calls() {
		lines = append(lines, cfg.Docker+" "+shellquote.Join(call.Args))
		if len(call.Stdin) > 0 {
			payload := strings.TrimSuffix(string(call.Stdin), "\n")
			for _, line := range strings.Split(payload, "\n") {
				lines = append(lines, "    | "+line)
			}
		}
	}
	return lines, nil
}

// Stop removes the session for a working directory and reports whether
// one was running. Unlike a launch, it only needs the directory to
// resolve; nothing is created.
func (l *Launcher) Stop(ctx context.Context, workDir string) (bool, error) {
	hostPath, err := session.ResolvePath(workDir)
	if err != nil {
		return false, err
	}
	name := l.sessions.Name(hostPath)
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StopTimeoutDuration())
	defer cancel()
	stopped, err := l.sessions.Stop(ctx, name)
	if err != nil {
		return false, fmt.Errorf("stop session %q: %w", name, err)
	}
	return stopped, nil
}
