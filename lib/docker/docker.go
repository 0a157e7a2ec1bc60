// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package docker provides a typed interface to the docker CLI. Corral
// drives the container runtime exclusively through its command-line
// client — there is no API socket dependency — so every runtime
// operation in the codebase goes through Client, which owns the binary
// name and the execution seam.
//
// The execution seam (Runner) is injectable: tests and dry-run planning
// substitute a Recorder that captures argument vectors instead of
// spawning processes. This makes the full launch sequence assertable
// without a docker daemon.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"

	"github.com/corralhq/corral/lib/shellquote"
)

// Invocation is a single docker CLI call: the argument vector after the
// binary name, optional stdin, and whether the call inherits the
// launcher's terminal.
type Invocation struct {
	Args        []string
	Stdin       io.Reader
	Interactive bool
}

// String renders the invocation as a copy-pasteable shell command line.
func (inv Invocation) String() string {
	return "docker " + shellquote.Join(inv.Args)
}

// Runner executes one docker invocation. For non-interactive calls,
// output is the trimmed combined output; interactive calls inherit the
// caller's stdio and return empty output. code is the process exit
// status. err is non-nil only when the process could not be run at all
// (binary missing, context canceled before start, I/O failure).
type Runner func(ctx context.Context, inv Invocation) (output string, code int, err error)

// ExitError reports a non-zero exit from the user's command inside the
// container. It is not an internal failure: the launcher propagates the
// code as the corral process's own exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// ExitCode returns the command's exit status. The corral main function
// checks for this interface on returned errors to distinguish "the
// user's command failed" from "the launch failed": the former exits
// with this code and no extra message, since the command already wrote
// its own output.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// IsExitError checks if an error wraps an ExitError and returns the code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// Config describes a Client. The zero value is usable: it targets the
// "docker" binary on PATH and executes invocations as subprocesses.
type Config struct {
	// Binary is the docker CLI to invoke. Empty means "docker".
	Binary string

	// Runner executes invocations. Nil means real subprocess execution;
	// tests and dry-run planning inject a Recorder.
	Runner Runner
}

// Client issues docker CLI commands. All container runtime operations
// target this client — there is no package-level default, so tests can
// never accidentally reach a real daemon.
type Client struct {
	binary string
	run    Runner
}

// New returns a Client for the given configuration.
func New(config Config) *Client {
	client := &Client{binary: config.Binary, run: config.Runner}
	if client.binary == "" {
		client.binary = "docker"
	}
	if client.run == nil {
		client.run = subprocessRunner(client.binary)
	}
	return client
}

// Binary returns the docker CLI name or path this client invokes.
func (c *Client) Binary() string {
	return c.binary
}

// Ping checks that the docker daemon is reachable. The version call is
// the cheapest round trip that fails when only the client half of the
// installation is present.
func (c *Client) Ping(ctx context.Context) error {
	output, code, err := c.run(ctx, Invocation{
		Args: []string{"version", "--format", "{{.Server.Version}}"},
	})
	if err != nil {
		return fmt.Errorf("docker version: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("docker daemon unreachable: exit %d (%s)", code, output)
	}
	return nil
}

// RunSpec describes a detached container to create and start.
type RunSpec struct {
	Name     string
	Image    string
	Labels   map[string]string
	CapAdd   []string
	Binds    []string // "host:container[:ro]"
	EnvNames []string // forwarded by name from the launcher's environment
	Memory   string
	CPUs     string
	Command  []string
}

// args assembles the docker run argument vector. Labels are emitted in
// sorted key order so the vector is deterministic.
func (spec RunSpec) args() []string {
	args := []string{"run", "-d", "--name", spec.Name}
	for _, key := range slices.Sorted(maps.Keys(spec.Labels)) {
		args = append(args, "--label", key+"="+spec.Labels[key])
	}
	for _, capability := range spec.CapAdd {
		args = append(args, "--cap-add", capability)
	}
	for _, bind := range spec.Binds {
		args = append(args, "-v", bind)
	}
	for _, name := range spec.EnvNames {
		args = append(args, "-e", name)
	}
	if spec.Memory != "" {
		args = append(args, "--memory", spec.Memory)
	}
	if spec.CPUs != "" {
		args = append(args, "--cpus", spec.CPUs)
	}
	args = append(args, spec.Image)
	args = append(args, spec.Command...)
	return args
}

// Run creates and starts a detached container, returning the container
// ID reported by the daemon.
func (c *Client) Run(ctx context.Context, spec RunSpec) (string, error) {
	output, code, err := c.run(ctx, Invocation{Args: spec.args()})
	if err != nil {
		return "", fmt.Errorf("docker run %q: %w", spec.Name, err)
	}
	if code != 0 {
		return "", fmt.Errorf("docker run %q: exit %d (%s)", spec.Name, code, output)
	}
	return output, nil
}

// ExecSpec describes a command to execute inside a running container.
type ExecSpec struct {
	Container string
	User      string    // in-container user; empty = image default
	Workdir   string    // in-container working directory; empty = image default
	TTY       bool      // allocate a pseudo-terminal (interactive execs only)
	Stdin     io.Reader // piped stdin for non-interactive execs
	Argv      []string
}

// args assembles the docker exec argument vector. interactive selects
// inherited stdio; non-interactive execs get -i only when data is piped.
func (spec ExecSpec) args(interactive bool) []string {
	args := []string{"exec"}
	if interactive || spec.Stdin != nil {
		args = append(args, "-i")
	}
	if interactive && spec.TTY {
		args = append(args, "-t")
	}
	if spec.User != "" {
		args = append(args, "-u", spec.User)
	}
	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}
	args = append(args, spec.Container)
	args = append(args, spec.Argv...)
	return args
}

// Exec runs a command inside the container with captured output.
// Non-zero exits are errors that include the command's output, because
// captured execs are always corral's own provisioning steps, never the
// user's command.
func (c *Client) Exec(ctx context.Context, spec ExecSpec) (string, error) {
	output, code, err := c.run(ctx, Invocation{Args: spec.args(false), Stdin: spec.Stdin})
	if err != nil {
		return "", fmt.Errorf("docker exec %q %s: %w", spec.Container, firstWord(spec.Argv), err)
	}
	if code != 0 {
		return output, fmt.Errorf("docker exec %q %s: exit %d (%s)",
			spec.Container, firstWord(spec.Argv), code, output)
	}
	return output, nil
}

// ExecInteractive runs a command inside the container with the corral
// process's own stdio. A non-zero exit from the command is returned as
// *ExitError so the caller can propagate the code; a canceled context
// (signal arrival) is reported as an interruption instead, since the
// docker CLI's own death says nothing about the command's status.
func (c *Client) ExecInteractive(ctx context.Context, spec ExecSpec) error {
	_, code, err := c.run(ctx, Invocation{Args: spec.args(true), Interactive: true})
	if err != nil {
		return fmt.Errorf("docker exec %q: %w", spec.Container, err)
	}
	if code != 0 {
		if ctx.Err() != nil {
			return fmt.Errorf("command interrupted: %w", ctx.Err())
		}
		return &ExitError{Code: code}
	}
	return nil
}

// Remove force-removes a container. Returns nil if the container did
// not exist — absence is the goal state, not an error. Real failures
// (daemon down, permission denied) are returned.
func (c *Client) Remove(ctx context.Context, name string) error {
	output, code, err := c.run(ctx, Invocation{Args: []string{"rm", "-f", name}})
	if err != nil {
		return fmt.Errorf("docker rm %q: %w", name, err)
	}
	if code != 0 {
		if strings.Contains(output, "No such container") {
			return nil
		}
		return fmt.Errorf("docker rm %q: exit %d (%s)", name, code, output)
	}
	return nil
}

// Exists reports whether a container with the given name exists, in any
// state.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	output, code, err := c.run(ctx, Invocation{
		Args: []string{"container", "inspect", "--format", "{{.Name}}", name},
	})
	if err != nil {
		return false, fmt.Errorf("docker inspect %q: %w", name, err)
	}
	if code != 0 {
		if strings.Contains(output, "No such container") {
			return false, nil
		}
		return false, fmt.Errorf("docker inspect %q: exit %d (%s)", name, code, output)
	}
	return true, nil
}

// ImageExists reports whether an image is present locally.
func (c *Client) ImageExists(ctx context.Context, image string) (bool, error) {
	output, code, err := c.run(ctx, Invocation{
		Args: []string{"image", "inspect", "--format", "{{.Id}}", image},
	})
	if err != nil {
		return false, fmt.Errorf("docker image inspect %q: %w", image, err)
	}
	if code != 0 {
		if strings.Contains(output, "No such image") {
			return false, nil
		}
		return false, fmt.Errorf("docker image inspect %q: exit %d (%s)", image, code, output)
	}
	return true, nil
}

// ContainerInfo is one row of List output.
type ContainerInfo struct {
	Name    string
	Workdir string
	Status  string
}

// List returns the running containers carrying the given label filter
// ("key=value"). workdirLabel names the label whose value fills the
// Workdir column.
func (c *Client) List(ctx context.Context, filter, workdirLabel string) ([]ContainerInfo, error) {
	format := fmt.Sprintf(`{{.Names}}\t{{.Label %q}}\t{{.Status}}`, workdirLabel)
	output, code, err := c.run(ctx, Invocation{
		Args: []string{"ps", "--filter", "label=" + filter, "--format", format},
	})
	if err != nil {
		return nil, fmt.Errorf("docker ps: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("docker ps: exit %d (%s)", code, output)
	}
	var containers []ContainerInfo
	for line := range strings.Lines(output) {
		fields := strings.SplitN(strings.TrimRight(line, "\n"), "\t", 3)
		if len(fields) != 3 || fields[0] == "" {
			continue
		}
		containers = append(containers, ContainerInfo{
			Name:    fields[0],
			Workdir: fields[1],
			Status:  fields[2],
		})
	}
	return containers, nil
}

// firstWord returns the leading token of an argv for error messages.
func firstWord(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}

// subprocessRunner returns the production Runner: real subprocess
// execution of the docker binary. Non-zero exits are reported through
// the code return, not the error, so callers can distinguish "docker
// said no" from "docker could not run".
func subprocessRunner(binary string) Runner {
	return func(ctx context.Context, inv Invocation) (string, int, error) {
		cmd := exec.CommandContext(ctx, binary, inv.Args...)
		if inv.Interactive {
			cmd.Stdin = os.Stdin
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			if err := cmd.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return "", exitErr.ExitCode(), nil
				}
				return "", 0, err
			}
			return "", 0, nil
		}
		cmd.Stdin = inv.Stdin
		output, err := cmd.CombinedOutput()
		trimmed := strings.TrimSpace(string(output))
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return trimmed, exitErr.ExitCode(), nil
			}
			return trimmed, 0, err
		}
		return trimmed, 0, nil
	}
}

// RecordedCall is one invocation captured by a Recorder. Stdin content
// is drained into Stdin so assertions can check piped payloads.
type RecordedCall struct {
	Args        []string
	Stdin       []byte
	Interactive bool
}

// Recorder is a Runner that records invocations without executing
// anything. Every call succeeds with empty output. It backs --dry-run
// and the unit tests for the launch sequence.
type Recorder struct {
	mu    sync.Mutex
	calls []RecordedCall

	// Reply, when non-nil, lets tests script per-call outcomes. It is
	// consulted after recording.
	Reply func(call RecordedCall) (output string, code int, err error)
}

// Run implements Runner.
func (r *Recorder) Run(ctx context.Context, inv Invocation) (string, int, error) {
	call := RecordedCall{
		Args:        slices.Clone(inv.Args),
		Interactive: inv.Interactive,
	}
	if inv.Stdin != nil {
		data, err := io.ReadAll(inv.Stdin)
		if err != nil {
			return "", 0, fmt.Errorf("read stdin: %w", err)
		}
		call.Stdin = data
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	reply := r.Reply
	r.mu.Unlock()
	if reply != nil {
		return reply(call)
	}
	return "", 0, nil
}

// Calls returns the invocations recorded so far.
func (r *Recorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}
