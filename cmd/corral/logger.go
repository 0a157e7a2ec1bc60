// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newCommandLogger creates the process logger. When stderr is a
// terminal, it uses slog.TextHandler for human-readable output. When
// stderr is piped or redirected (CI, scripts), it uses slog.JSONHandler
// for machine-parseable output. CORRAL_DEBUG enables debug-level
// records, which include every container invocation.
func newCommandLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv(envDebug) != "" {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
