// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/corralhq/corral/lib/docker"
)

// In-container policy paths. Fixed constants rather than configuration:
// the firewall activator baked into the image reads the same paths, and
// the two sides must never drift apart.
const (
	PolicyDir     = "/etc/corral"
	AllowlistPath = "/etc/corral/allowed_domains.txt"
	ActivatorPath = "/usr/local/bin/corral-firewall"
)

// privilegedUser performs every provisioning step. The user command
// later runs as an unprivileged user that must be unable to redo or
// undo any of them.
const privilegedUser = "root"

// ActivationError reports a firewall activator that exited non-zero.
// The fence could not be established, so the launch aborts; the
// launcher's teardown still destroys the session.
type ActivationError struct {
	Err error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("firewall activation failed: %v", e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// ErrActivatorConsumed reports a second Activate call on the same
// activator. There is no legitimate caller for it: the policy is
// installed exactly once per session.
var ErrActivatorConsumed = errors.New("firewall activator already consumed")

// FirewallActivator is the one-shot capability to turn the network
// fence on. Activate succeeds at most once per value, and success
// deletes the in-container binary, so neither this process nor anything
// inside the container can re-run the policy step with different
// contents.
type FirewallActivator struct {
	docker    *docker.Client
	container string
	consumed  atomic.Bool
}

// NewFirewallActivator returns the activator capability for a session's
// container. Each launch constructs exactly one.
func NewFirewallActivator(client *docker.Client, container string) *FirewallActivator {
	return &FirewallActivator{docker: client, container: container}
}

// Activate runs the activator binary as the privileged user with no
// arguments — its internals (packet rules, resolver setup) are the
// image's business — and then deletes it. A non-zero exit is an
// ActivationError; deletion is skipped on failure so the binary remains
// available for diagnosis in the doomed session's last moments.
func (a *FirewallActivator) Activate(ctx context.Context) error {
	if !a.consumed.CompareAndSwap(false, true) {
		return ErrActivatorConsumed
	}
	if _, err := a.docker.Exec(ctx, docker.ExecSpec{
		Container: a.container,
		User:      privilegedUser,
		Argv:      []string{ActivatorPath},
	}); err != nil {
		return &ActivationError{Err: err}
	}
	if _, err := a.docker.Exec(ctx, docker.ExecSpec{
		Container: a.container,
		User:      privilegedUser,
		Argv:      []string{"rm", "-f", ActivatorPath},
	}); err != nil {
		return fmt.Errorf("remove firewall activator: %w", err)
	}
	return nil
}

// ProvisionerConfig configures a Provisioner.
type ProvisionerConfig struct {
	// Docker is the runtime client. Required.
	Docker *docker.Client

	// Logger, nil means slog.Default().
	Logger *slog.Logger
}

// Provisioner installs egress policy into freshly created sessions.
type Provisioner struct {
	docker *docker.Client
	logger *slog.Logger
}

// NewProvisioner returns a Provisioner for the given configuration.
func NewProvisioner(config ProvisionerConfig) *Provisioner {
	provisioner := &Provisioner{
		docker: config.Docker,
		logger: config.Logger,
	}
	if provisioner.logger == nil {
		provisioner.logger = slog.Default()
	}
	return provisioner
}

// Provision installs and activates the allowlist in a session's
// container. Steps run strictly in order as the privileged user,
// aborting on the first failure:
//
//  1. create the policy directory
//  2. write the allowlist, one domain per line, replacing any previous
//     content
//  3. seal the file: read-only for everyone, owned by the privileged
//     user
//  4. run the firewall activator
//  5. delete the activator binary
//
// The allowlist was validated at parse time; Provision trusts its
// contents and pipes them through stdin, so no domain string is ever
// part of a shell word.
func (p *Provisioner) Provision(ctx context.Context, container string, allowlist Allowlist) error {
	if len(allowlist) == 0 {
		return ErrEmptyAllowlist
	}
	if _, err := p.exec(ctx, container, nil, "mkdir", "-p", PolicyDir); err != nil {
		return fmt.Errorf("create policy directory: %w", err)
	}
	content := strings.NewReader(allowlist.FileContent())
	if _, err := p.exec(ctx, container, content, "sh", "-c", "cat > "+AllowlistPath); err != nil {
		return fmt.Errorf("write allowlist: %w", err)
	}
	if _, err := p.exec(ctx, container, nil, "chmod", "0444", AllowlistPath); err != nil {
		return fmt.Errorf("seal allowlist: %w", err)
	}
	if _, err := p.exec(ctx, container, nil, "chown", "root:root", AllowlistPath); err != nil {
		return fmt.Errorf("seal allowlist: %w", err)
	}
	activator := NewFirewallActivator(p.docker, container)
	if err := activator.Activate(ctx); err != nil {
		return err
	}
	p.logger.Debug("egress policy active",
		"container", container, "domains", len(allowlist))
	return nil
}

// exec runs one provisioning step as the privileged user.
func (p *Provisioner) exec(ctx context.Context, container string, stdin *strings.Reader, argv ...string) (string, error) {
	spec := docker.ExecSpec{
		Container: container,
		User:      privilegedUser,
		Argv:      argv,
	}
	if stdin != nil {
		spec.Stdin = stdin
	}
	return p.docker.Exec(ctx, spec)
}
