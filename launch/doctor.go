// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/corralhq/corral/lib/config"
	"github.com/corralhq/corral/lib/docker"
	"github.com/corralhq/corral/policy"
	"github.com/corralhq/corral/session"
)

// CheckResult holds the result of one doctor probe.
type CheckResult struct {
	Name    string
	Passed  bool
	Message string
	Warning bool // true if this is a warning, not an error
}

// Doctor performs preflight diagnostics for launching: everything that
// can be checked without creating a container. It exists because the
// two most common launch failures — no daemon, image not built — are
// cheaper to diagnose up front than from a mid-launch error chain.
type Doctor struct {
	cfg     *config.Config
	docker  *docker.Client
	results []CheckResult
	errors  int
}

// NewDoctor creates a Doctor using the given runtime client.
func NewDoctor(cfg *config.Config, client *docker.Client) *Doctor {
	return &Doctor{cfg: cfg, docker: client}
}

// Results returns all probe results.
func (d *Doctor) Results() []CheckResult {
	return d.results
}

// HasErrors returns true if any probe failed.
func (d *Doctor) HasErrors() bool {
	return d.errors > 0
}

func (d *Doctor) pass(name, message string) {
	d.results = append(d.results, CheckResult{Name: name, Passed: true, Message: message})
}

func (d *Doctor) warn(name, message string) {
	d.results = append(d.results, CheckResult{Name: name, Passed: true, Message: message, Warning: true})
}

func (d *Doctor) fail(name, message string) {
	d.results = append(d.results, CheckResult{Name: name, Passed: false, Message: message})
	d.errors++
}

// CheckAll runs every probe against a prospective launch. configPath
// names the config file in effect, empty for built-in defaults.
func (d *Doctor) CheckAll(ctx context.Context, workDir, rawDomains, configPath string) {
	d.CheckConfig(configPath)
	d.CheckBinary()
	d.CheckDaemon(ctx)
	d.CheckImage(ctx)
	d.CheckWorkDir(workDir)
	d.CheckAllowlist(rawDomains)
	d.CheckTerminal()
}

// CheckConfig reports where the effective configuration came from. The
// config was already loaded by the time the doctor runs, so this is
// provenance, not validation: a broken file fails the process before
// any probe runs.
func (d *Doctor) CheckConfig(path string) {
	if path == "" {
		d.pass("config", "built-in defaults (no config file)")
		return
	}
	d.pass("config", path)
}

// CheckBinary checks that the container CLI the client will invoke is
// on PATH.
func (d *Doctor) CheckBinary() {
	path, err := exec.LookPath(d.docker.Binary())
	if err != nil {
		d.fail("docker", fmt.Sprintf("%q not found in PATH", d.docker.Binary()))
		return
	}
	d.pass("docker", path)
}

// CheckDaemon checks that the container daemon answers.
func (d *Doctor) CheckDaemon(ctx context.Context) {
	if err := d.docker.Ping(ctx); err != nil {
		d.fail("daemon", err.Error())
		return
	}
	d.pass("daemon", "reachable")
}

// CheckImage checks that the configured image is present locally. A
// missing image is a warning rather than a failure so doctor output
// stays useful on a machine being set up: everything else can be
// verified before the image is built.
func (d *Doctor) CheckImage(ctx context.Context) {
	exists, err := d.docker.ImageExists(ctx, d.cfg.Image)
	if err != nil {
		d.warn("image", fmt.Sprintf("cannot check %q: daemon unreachable", d.cfg.Image))
		return
	}
	if !exists {
		d.warn("image", fmt.Sprintf("%q not present locally; build or pull it before launching", d.cfg.Image))
		return
	}
	d.pass("image", d.cfg.Image)
}

// CheckWorkDir checks that the working directory resolves and is
// writable by the invoking user. access(2) is the real answer here —
// a stat-based guess gets group membership wrong.
func (d *Doctor) CheckWorkDir(workDir string) {
	resolved, err := session.ResolvePath(workDir)
	if err != nil {
		d.fail("workdir", err.Error())
		return
	}
	if err := unix.Access(resolved, unix.W_OK); err != nil {
		d.fail("workdir", fmt.Sprintf("%s not writable: %v", resolved, err))
		return
	}
	d.pass("workdir", resolved)
}

// CheckAllowlist checks the domain allowlist grammar.
func (d *Doctor) CheckAllowlist(rawDomains string) {
	allowlist, err := policy.ParseAllowlist(rawDomains)
	if err != nil {
		d.fail("allowlist", err.Error())
		return
	}
	d.pass("allowlist", fmt.Sprintf("%d domain(s)", len(allowlist)))
}

// CheckTerminal reports how the command will be attached. Informational
// only: both modes are fine, but "why is there no prompt" is a frequent
// question with an answer worth printing.
func (d *Doctor) CheckTerminal() {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		d.pass("terminal", "stdin is a terminal; commands get a pseudo-terminal")
		return
	}
	d.pass("terminal", "stdin is not a terminal; commands run without one")
}

// PrintResults writes human-readable probe results.
func (d *Doctor) PrintResults(w io.Writer) {
	for _, r := range d.results {
		var prefix string
		if r.Passed {
			if r.Warning {
				prefix = "⚠"
			} else {
				prefix = "✓"
			}
		} else {
			prefix = "✗"
		}
		fmt.Fprintf(w, "%s %s: %s\n", prefix, r.Name, r.Message)
	}

	fmt.Fprintln(w)
	if d.HasErrors() {
		fmt.Fprintf(w, "Doctor found %d problem(s)\n", d.errors)
	} else {
		fmt.Fprintln(w, "Ready to launch")
	}
}
