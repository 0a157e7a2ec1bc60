// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/corralhq/corral/lib/docker"
)

// newTestManager returns a Manager over a recording docker client with
// a pinned identity function.
func newTestManager(reply func(docker.RecordedCall) (string, int, error)) (*Manager, *docker.Recorder) {
	recorder := &docker.Recorder{Reply: reply}
	manager := NewManager(ManagerConfig{
		Docker: docker.New(docker.Config{Runner: recorder.Run}),
		Name:   func(string) string { return "corral_test_deadbeef" },
	})
	return manager, recorder
}

func TestCleanupIsIdempotent(t *testing.T) {
	t.Parallel()

	manager, recorder := newTestManager(func(docker.RecordedCall) (string, int, error) {
		return "Error response from daemon: No such container: corral_test_deadbeef", 1, nil
	})

	// Two cleanups of an absent identity: both must return without
	// complaint.
	manager.Cleanup(context.Background(), "corral_test_deadbeef")
	manager.Cleanup(context.Background(), "corral_test_deadbeef")

	calls := recorder.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	want := []string{"rm", "-f", "corral_test_deadbeef"}
	for i, call := range calls {
		if !reflect.DeepEqual(call.Args, want) {
			t.Errorf("call %d argv = %v, want %v", i, call.Args, want)
		}
	}
}

func TestCleanupSwallowsRealErrors(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(func(docker.RecordedCall) (string, int, error) {
		return "Error response from daemon: permission denied", 1, nil
	})

	// Must not panic, must not propagate: cleanup has no failure mode
	// visible to its caller.
	manager.Cleanup(context.Background(), "corral_test_deadbeef")
}

func TestCreateStartsFencedContainer(t *testing.T) {
	t.Parallel()

	manager, recorder := newTestManager(func(docker.RecordedCall) (string, int, error) {
		return "f00dcafe", 0, nil
	})

	sess, err := manager.Create(context.Background(), CreateSpec{
		Name:     "corral_test_deadbeef",
		HostPath: "/home/user/proj",
		Image:    "corral",
		EnvNames: []string{"CORRAL_API_KEY"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.State() != StateRunning {
		t.Errorf("state = %v, want running", sess.State())
	}
	if sess.HostPath != "/home/user/proj" {
		t.Errorf("HostPath = %q", sess.HostPath)
	}

	calls := recorder.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	argv := calls[0].Args

	// The fence: both packet-rule capabilities, the identical-path
	// mount, the credential forwarded by name only, and a long-lived
	// benign main process.
	wantPairs := [][2]string{
		{"--name", "corral_test_deadbeef"},
		{"--cap-add", "NET_ADMIN"},
		{"--cap-add", "NET_RAW"},
		{"-v", "/home/user/proj:/home/user/proj"},
		{"-e", "CORRAL_API_KEY"},
		{"--label", LabelWorkdir + "=/home/user/proj"},
		{"--label", LabelManaged + "=true"},
	}
	for _, pair := range wantPairs {
		if !hasArgPair(argv, pair[0], pair[1]) {
			t.Errorf("argv missing %q %q: %v", pair[0], pair[1], argv)
		}
	}
	if argv[len(argv)-3] != "corral" || argv[len(argv)-2] != "sleep" || argv[len(argv)-1] != "infinity" {
		t.Errorf("argv should end with image and sleep command: %v", argv)
	}
	for _, arg := range argv {
		if arg == "sk-secret" {
			t.Errorf("credential value leaked into argv: %v", argv)
		}
	}
}

func TestCreateFailureLeavesIdentityAbsent(t *testing.T) {
	t.Parallel()

	manager, recorder := newTestManager(func(call docker.RecordedCall) (string, int, error) {
		if call.Args[0] == "run" {
			return "Unable to find image 'corral:latest' locally", 125, nil
		}
		return "", 0, nil
	})

	_, err := manager.Create(context.Background(), CreateSpec{
		Name:     "corral_test_deadbeef",
		HostPath: "/home/user/proj",
		Image:    "corral",
	})
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected StartError, got %v", err)
	}
	if startErr.Name != "corral_test_deadbeef" {
		t.Errorf("StartError.Name = %q", startErr.Name)
	}

	calls := recorder.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want run then rm: %v", len(calls), calls)
	}
	if calls[1].Args[0] != "rm" {
		t.Errorf("failed create must remove the husk, got %v", calls[1].Args)
	}
}

func TestDestroyIsUnconditional(t *testing.T) {
	t.Parallel()

	manager, recorder := newTestManager(nil)
	sess, err := manager.Create(context.Background(), CreateSpec{
		Name:     "corral_test_deadbeef",
		HostPath: "/home/user/proj",
		Image:    "corral",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := manager.Destroy(context.Background(), sess); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if sess.State() != StateAbsent {
		t.Errorf("state after destroy = %v, want absent", sess.State())
	}

	calls := recorder.Calls()
	last := calls[len(calls)-1]
	if !reflect.DeepEqual(last.Args, []string{"rm", "-f", "corral_test_deadbeef"}) {
		t.Errorf("last call = %v, want forced removal", last.Args)
	}
}

func TestDestroyReportsFailureForLogging(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(func(call docker.RecordedCall) (string, int, error) {
		if call.Args[0] == "rm" {
			return "Error response from daemon: permission denied", 1, nil
		}
		return "", 0, nil
	})
	sess := &Session{Name: "corral_test_deadbeef", state: StateRunning}

	err := manager.Destroy(context.Background(), sess)
	if err == nil {
		t.Fatal("expected destroy failure to be reported")
	}
}

func TestStopReportsWhetherAnythingRan(t *testing.T) {
	t.Parallel()

	t.Run("running container", func(t *testing.T) {
		t.Parallel()
		manager, recorder := newTestManager(func(call docker.RecordedCall) (string, int, error) {
			if call.Args[0] == "container" {
				return "/corral_test_deadbeef", 0, nil
			}
			return "", 0, nil
		})
		stopped, err := manager.Stop(context.Background(), "corral_test_deadbeef")
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
		if !stopped {
			t.Error("Stop = false, want true")
		}
		calls := recorder.Calls()
		if calls[len(calls)-1].Args[0] != "rm" {
			t.Errorf("expected removal, got %v", calls[len(calls)-1].Args)
		}
	})

	t.Run("nothing running", func(t *testing.T) {
		t.Parallel()
		manager, _ := newTestManager(func(call docker.RecordedCall) (string, int, error) {
			return "Error: No such container: corral_test_deadbeef", 1, nil
		})
		stopped, err := manager.Stop(context.Background(), "corral_test_deadbeef")
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
		if stopped {
			t.Error("Stop = true, want false")
		}
	})
}

// hasArgPair reports whether flag is immediately followed by value
// anywhere in argv.
func hasArgPair(argv []string, flag, value string) bool {
	for i := 0; i+1 < len(argv); i++ {
		if argv[i] == flag && argv[i+1] == value {
			return true
		}
	}
	return false
}
