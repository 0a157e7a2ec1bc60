// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"regexp"
)

// domainPattern is the allowlist entry grammar: a leading alphanumeric,
// a body of alphanumerics, dots, and hyphens, and an alphabetic
// top-level label of at least two characters. Deliberately narrower
// than the full hostname RFCs: entries feed a privileged script, so
// anything surprising is rejected rather than interpreted. No
// wildcards, no IP literals, no underscores, no whitespace, no shell
// metacharacters.
var domainPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// InvalidDomainError reports the offending allowlist entry. The launch
// aborts before any environment exists, so the message is the user's
// only lead.
type InvalidDomainError struct {
	Domain string
}

func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid domain in allowlist: %q", e.Domain)
}

// ValidateDomain checks one allowlist entry against the grammar.
func ValidateDomain(domain string) error {
	if !domainPattern.MatchString(domain) {
		return &InvalidDomainError{Domain: domain}
	}
	return nil
}
