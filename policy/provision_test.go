// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/corralhq/corral/lib/docker"
)

func newTestProvisioner(reply func(docker.RecordedCall) (string, int, error)) (*Provisioner, *docker.Recorder) {
	recorder := &docker.Recorder{Reply: reply}
	provisioner := NewProvisioner(ProvisionerConfig{
		Docker: docker.New(docker.Config{Runner: recorder.Run}),
	})
	return provisioner, recorder
}

func TestProvisionStepOrder(t *testing.T) {
	t.Parallel()

	provisioner, recorder := newTestProvisioner(nil)
	allowlist := Allowlist{"api.example.com", "cdn.example.com"}

	if err := provisioner.Provision(context.Background(), "corral_x", allowlist); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	calls := recorder.Calls()
	want := [][]string{
		{"exec", "-u", "root", "corral_x", "mkdir", "-p", "/etc/corral"},
		{"exec", "-i", "-u", "root", "corral_x", "sh", "-c", "cat > /etc/corral/allowed_domains.txt"},
		{"exec", "-u", "root", "corral_x", "chmod", "0444", "/etc/corral/allowed_domains.txt"},
		{"exec", "-u", "root", "corral_x", "chown", "root:root", "/etc/corral/allowed_domains.txt"},
		{"exec", "-u", "root", "corral_x", "/usr/local/bin/corral-firewall"},
		{"exec", "-u", "root", "corral_x", "rm", "-f", "/usr/local/bin/corral-firewall"},
	}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d:\n%v", len(calls), len(want), calls)
	}
	for i, call := range calls {
		if !reflect.DeepEqual(call.Args, want[i]) {
			t.Errorf("step %d argv = %v, want %v", i, call.Args, want[i])
		}
	}

	// The file is written exactly as validated: one domain per line,
	// order preserved, created fresh.
	if got := string(calls[1].Stdin); got != "api.example.com\ncdn.example.com\n" {
		t.Errorf("allowlist content = %q", got)
	}
}

func TestProvisionAbortsOnFirstFailure(t *testing.T) {
	t.Parallel()

	provisioner, recorder := newTestProvisioner(func(call docker.RecordedCall) (string, int, error) {
		if slices.Contains(call.Args, "mkdir") {
			return "mkdir: cannot create directory", 1, nil
		}
		return "", 0, nil
	})

	err := provisioner.Provision(context.Background(), "corral_x", Allowlist{"api.example.com"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "create policy directory") {
		t.Errorf("error should name the step: %v", err)
	}
	if calls := recorder.Calls(); len(calls) != 1 {
		t.Errorf("got %d calls after first-step failure, want 1", len(calls))
	}
}

func TestProvisionActivationFailure(t *testing.T) {
	t.Parallel()

	provisioner, recorder := newTestProvisioner(func(call docker.RecordedCall) (string, int, error) {
		if call.Args[len(call.Args)-1] == ActivatorPath {
			return "firewall: unable to resolve allowlist", 9, nil
		}
		return "", 0, nil
	})

	err := provisioner.Provision(context.Background(), "corral_x", Allowlist{"api.example.com"})
	var activationErr *ActivationError
	if !errors.As(err, &activationErr) {
		t.Fatalf("expected ActivationError, got %v", err)
	}

	// The abort happens at the activation step: the binary is not
	// deleted, so the failure can be diagnosed before teardown.
	calls := recorder.Calls()
	last := calls[len(calls)-1]
	if last.Args[len(last.Args)-1] != ActivatorPath {
		t.Errorf("last call should be the activator, got %v", last.Args)
	}
}

func TestProvisionRejectsEmptyAllowlist(t *testing.T) {
	t.Parallel()

	provisioner, recorder := newTestProvisioner(nil)
	err := provisioner.Provision(context.Background(), "corral_x", nil)
	if !errors.Is(err, ErrEmptyAllowlist) {
		t.Fatalf("expected ErrEmptyAllowlist, got %v", err)
	}
	if calls := recorder.Calls(); len(calls) != 0 {
		t.Errorf("empty allowlist must not touch the container, got %v", calls)
	}
}

func TestFirewallActivatorIsOneShot(t *testing.T) {
	t.Parallel()

	recorder := &docker.Recorder{}
	client := docker.New(docker.Config{Runner: recorder.Run})
	activator := NewFirewallActivator(client, "corral_x")

	if err := activator.Activate(context.Background()); err != nil {
		t.Fatalf("first Activate: %v", err)
	}
	if err := activator.Activate(context.Background()); !errors.Is(err, ErrActivatorConsumed) {
		t.Fatalf("second Activate = %v, want ErrActivatorConsumed", err)
	}

	// One activation, one deletion, nothing more.
	calls := recorder.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2: %v", len(calls), calls)
	}
	if calls[0].Args[len(calls[0].Args)-1] != ActivatorPath {
		t.Errorf("first call should run the activator, got %v", calls[0].Args)
	}
	if !reflect.DeepEqual(calls[1].Args[len(calls[1].Args)-3:], []string{"rm", "-f", ActivatorPath}) {
		t.Errorf("second call should delete the activator, got %v", calls[1].Args)
	}
}

func TestActivatorDeletionFailureIsAnError(t *testing.T) {
	t.Parallel()

	recorder := &docker.Recorder{Reply: func(call docker.RecordedCall) (string, int, error) {
		if call.Args[len(call.Args)-3] == "rm" {
			return "rm: cannot remove", 1, nil
		}
		return "", 0, nil
	}}
	client := docker.New(docker.Config{Runner: recorder.Run})
	activator := NewFirewallActivator(client, "corral_x")

	err := activator.Activate(context.Background())
	if err == nil {
		t.Fatal("expected error when the one-shot binary cannot be removed")
	}
	var activationErr *ActivationError
	if errors.As(err, &activationErr) {
		t.Errorf("deletion failure is not an activation failure: %v", err)
	}
}
