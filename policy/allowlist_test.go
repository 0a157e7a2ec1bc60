// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseAllowlist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Allowlist
	}{
		{
			name: "space separated",
			raw:  "api.example.com cdn.example.com",
			want: Allowlist{"api.example.com", "cdn.example.com"},
		},
		{
			name: "newline separated",
			raw:  "api.example.com\ncdn.example.com\n",
			want: Allowlist{"api.example.com", "cdn.example.com"},
		},
		{
			name: "mixed whitespace preserves order",
			raw:  "  z.example.com\n a.example.com\t m.example.com ",
			want: Allowlist{"z.example.com", "a.example.com", "m.example.com"},
		},
		{
			name: "duplicates kept",
			raw:  "api.example.com api.example.com",
			want: Allowlist{"api.example.com", "api.example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseAllowlist(tt.raw)
			if err != nil {
				t.Fatalf("ParseAllowlist(%q): %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAllowlist(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAllowlistEmpty(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "\n\n\t"} {
		_, err := ParseAllowlist(raw)
		if !errors.Is(err, ErrEmptyAllowlist) {
			t.Errorf("ParseAllowlist(%q) = %v, want ErrEmptyAllowlist", raw, err)
		}
	}
}

func TestParseAllowlistFailsFastNamingTheEntry(t *testing.T) {
	t.Parallel()

	_, err := ParseAllowlist("good.example.com bad_domain also.good.example.com")
	var invalidErr *InvalidDomainError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidDomainError, got %v", err)
	}
	if invalidErr.Domain != "bad_domain" {
		t.Errorf("offending entry = %q, want %q", invalidErr.Domain, "bad_domain")
	}
}

func TestFileContent(t *testing.T) {
	t.Parallel()

	allowlist := Allowlist{"api.example.com", "cdn.example.com"}
	want := "api.example.com\ncdn.example.com\n"
	if got := allowlist.FileContent(); got != want {
		t.Errorf("FileContent() = %q, want %q", got, want)
	}
}
