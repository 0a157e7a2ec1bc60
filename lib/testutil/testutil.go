// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared helpers for corral's tests.
//
// Unit tests run against recording runtime clients and never need a
// daemon; the helpers here serve the handful of integration tests that
// exercise a real docker installation.
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// SkipWithoutDocker skips the test unless a docker daemon is reachable
// and CORRAL_TEST_IMAGE names an image prepared for corral (firewall
// activator installed, unprivileged user present). Returns the image
// name. Integration tests are opt-in: a plain `go test ./...` must
// pass on machines with no container runtime at all.
func SkipWithoutDocker(t *testing.T) string {
	t.Helper()
	image := os.Getenv("CORRAL_TEST_IMAGE")
	if image == "" {
		t.Skip("CORRAL_TEST_IMAGE not set; skipping docker integration test")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker binary not found: %v", err)
	}
	if err := exec.Command("docker", "version", "--format", "{{.Server.Version}}").Run(); err != nil {
		t.Skipf("docker daemon unreachable: %v", err)
	}
	return image
}
