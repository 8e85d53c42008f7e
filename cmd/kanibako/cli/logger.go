// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger builds the structured logger for a command
// invocation. A terminal stderr gets human-readable text output;
// a piped or redirected stderr (scripts, CI) gets JSON lines.
// KANIBAKO_DEBUG=1 lowers the level to debug.
//
// Commands scope it with their own context:
//
//	logger := cli.NewCommandLogger().With("command", "box/migrate")
func NewCommandLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("KANIBAKO_DEBUG") != "" {
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
