// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/corralhq/corral/lib/docker"
)

func TestListFiltersOnManagedLabel(t *testing.T) {
	t.Parallel()
	recorder := &docker.Recorder{}
	recorder.Reply = func(call docker.RecordedCall) (string, int, error) {
		return "corral_proj_0a1b2c3d\t/home/user/proj\tUp 2 minutes\n" +
			"corral_api_4e5f6a7b\t/home/user/api\tUp 3 hours", 0, nil
	}
	client := docker.New(docker.Config{Runner: recorder.Run})

	sessions, err := List(context.Background(), client)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	calls := recorder.Calls()
	if len(calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(calls))
	}
	if !slices.Contains(calls[0].Args, "label=io.corral.managed=true") {
		t.Errorf("ps args = %q, want managed-label filter", calls[0].Args)
	}

	if len(sessions) != 2 {
		t.Fatalf("parsed %d sessions, want 2", len(sessions))
	}
	if sessions[0].Name != "corral_proj_0a1b2c3d" || sessions[0].Workdir != "/home/user/proj" {
		t.Errorf("first session = %+v", sessions[0])
	}
}

func TestPrintSessions(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	PrintSessions(&buf, []docker.ContainerInfo{
		{Name: "corral_proj_0a1b2c3d", Workdir: "/home/user/proj", Status: "Up 2 minutes"},
		{Name: "corral_old_ffffffff", Workdir: "", Status: "Up 9 days"},
	})
	output := buf.String()

	for _, want := range []string{"SESSION", "DIRECTORY", "STATUS", "corral_proj_0a1b2c3d", "/home/user/proj"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	// A row with no recorded directory still lines up.
	if !strings.Contains(output, "-") {
		t.Errorf("missing placeholder for absent workdir:\n%s", output)
	}
}

func TestPrintSessionsEmpty(t *testing.T) {
	t.Parallel()
	var buf strings.Builder
	PrintSessions(&buf, nil)

	if !strings.Contains(buf.String(), "No corral sessions running") {
		t.Errorf("output = %q", buf.String())
	}
}
