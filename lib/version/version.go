// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the corral
// binary.
//
// Version information is injected at build time via -ldflags, for
// example:
//
//	go build -ldflags "-X github.com/corralhq/corral/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time.
var (
	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"

	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)

// Info returns a formatted version string suitable for --version
// output.
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, GitCommit, BuildTime)
}

// Full returns detailed version information including the Go runtime.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number. Containers are labeled with it
// so a fleet of sessions can be audited for stale builds.
func Short() string {
	return Version
}

// Print writes the binary name and version line for --version output.
func Print(binary string) {
	fmt.Printf("%s %s\n", binary, Info())
}
