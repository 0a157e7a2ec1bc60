// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package session manages the lifecycle of corral's sandbox containers.
//
// A session is one network-fenced container tied to one working
// directory. Its identity is derived deterministically from the
// directory's canonical path ([ResolvePath], [DeriveName]): the same
// directory always maps to the same container name, which is what lets
// a new launch adopt and replace a stale container left by a previous
// one. Identities carry a short keyed digest suffix so distinct
// directories can never collide after sanitization.
//
// The central type is [Manager], which owns the three lifecycle
// operations. Cleanup is best-effort removal whose errors are swallowed
// (absence is its goal state, so there is nothing useful to fail with).
// Create starts the detached container: the working directory is
// bind-mounted at the identical in-container path, NET_ADMIN and
// NET_RAW are granted so the in-container firewall activator can
// install packet rules, and credentials are forwarded by environment
// variable name only — their values never appear in an argument vector.
// Destroy is forceful and unconditional; the launcher registers it to
// run on every exit path, so a container outliving its invocation is a
// bug, not a configuration choice.
//
// A session moves through absent → running → terminating → absent.
// There is no restart or reuse: each invocation creates fresh and tears
// down completely.
//
// [Runner] executes the user's command inside a running session as the
// unprivileged user, attached to the invoking terminal. The command
// travels as a structured argument list and is flattened exactly once,
// with each extra token escaped, immediately before the in-container
// shell sees it.
package session
