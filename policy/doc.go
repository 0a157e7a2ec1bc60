// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy validates and installs the egress domain allowlist.
//
// The allowlist is corral's first trust boundary. Domain entries arrive
// from the environment and end up in a file that a privileged,
// network-rule-writing script consumes, so every entry is checked
// against a strict hostname grammar before anything else happens —
// one bad entry aborts the whole launch before any container exists.
// Shell metacharacters, whitespace tricks, and wildcard patterns all
// fail the grammar; there is no escaping path into the policy file.
//
// [Provisioner] installs a validated allowlist into a running session.
// The sequence is fixed: create the root-owned policy directory, write
// the domains one per line, seal the file read-only, run the firewall
// activator, delete the activator binary. Each step runs as root inside
// the container; the unprivileged command user can read the sealed
// policy but cannot modify, replay, or re-point it afterward.
//
// [FirewallActivator] is a one-shot value: Activate succeeds at most
// once per launch, and consuming it deletes the in-container binary, so
// the policy cannot be re-run with a doctored file later in the
// session's life. The activator script itself (packet rules, resolver
// setup) ships in the image and is opaque to corral.
package policy
