// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/doctorjei/kanibako/lib/config"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/prompt"
	"github.com/doctorjei/kanibako/lib/workset"
)

// Context carries the loaded environment every command needs:
// configuration, resolved standard paths, the workset registry, and a
// scoped logger.
type Context struct {
	Config   *config.Config
	Std      *paths.StandardPaths
	Registry *workset.Registry
	Logger   *slog.Logger
}

// LoadContext loads configuration and resolves the standard paths for
// a command invocation. A missing config file falls back to the
// defaults so a fresh installation works before `kanibako setup` has
// run; any other config problem is fatal.
func LoadContext(command string) (*Context, error) {
	logger := NewCommandLogger().With("command", command)

	cfg, err := config.Load()
	if err != nil {
		if !errors.Is(err, config.ErrConfigMissing) {
			return nil, err
		}
		logger.Debug("no configuration file, using defaults")
		cfg = config.Default()
	}

	std, err := paths.LoadStandardPaths(cfg)
	if err != nil {
		return nil, err
	}
	return &Context{
		Config:   cfg,
		Std:      std,
		Registry: workset.NewRegistry(std.RegistryFile()),
		Logger:   logger,
	}, nil
}

// CancelToExit translates a declined confirmation into exit code 2,
// keeping it distinct from hard failures (exit 1). Other errors pass
// through unchanged.
func CancelToExit(err error) error {
	if errors.Is(err, prompt.ErrCancelled) {
		fmt.Fprintln(os.Stderr, "Cancelled.")
		return &ExitError{Code: 2}
	}
	return err
}
