// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"strings"
)

// Allowlist is an ordered list of validated egress domains. Order is
// preserved exactly as given and duplicates are kept: the firewall
// script owns the file's interpretation, and corral does not second-
// guess it.
type Allowlist []string

// ErrEmptyAllowlist rejects a launch with no egress domains. An empty
// allowlist is far more likely a broken environment variable than an
// intentional air gap, so it fails loudly instead of fencing everything
// off.
var ErrEmptyAllowlist = errors.New("domain allowlist is empty")

// ParseAllowlist splits a raw allowlist on whitespace (spaces and
// newlines both work), validates every entry, and preserves order. The
// first invalid entry aborts with that entry named. This runs before
// any container work, so a bad allowlist never costs a started
// environment.
func ParseAllowlist(raw string) (Allowlist, error) {
	entries := strings.Fields(raw)
	if len(entries) == 0 {
		return nil, ErrEmptyAllowlist
	}
	for _, entry := range entries {
		if err := ValidateDomain(entry); err != nil {
			return nil, err
		}
	}
	return Allowlist(entries), nil
}

// FileContent renders the allowlist in the policy file format: one
// domain per line with a trailing newline.
func (a Allowlist) FileContent() string {
	return strings.Join(a, "\n") + "\n"
}
