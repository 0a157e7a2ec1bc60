// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package launch orchestrates one fenced command execution from end to
// end: resolve and validate the inputs, adopt the working directory's
// session identity, start the container, install the egress policy, run
// the command, tear everything down.
//
// The ordering invariants live here, not in the packages doing the
// work. Validation (path resolution, allowlist grammar) completes
// before any container operation, so a bad launch costs nothing.
// Teardown is registered the moment creation succeeds and runs on a
// context detached from the launch's own, so a signal that kills the
// user's command cannot also kill the cleanup that follows it. Between
// those two points every step returns an error and aborts the sequence;
// nothing retries.
//
// [Plan] runs the identical sequence against a recording runtime client
// for --dry-run: same validation, same ordering, zero side effects.
// [Doctor] provides the preflight diagnostics behind --doctor, and
// [List] and [Launcher.Stop] the session housekeeping modes.
package launch
