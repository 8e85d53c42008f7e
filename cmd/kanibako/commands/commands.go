// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete kanibako CLI command tree.
package commands

import (
	"fmt"
	"os"

	"github.com/doctorjei/kanibako/cmd/kanibako/box"
	"github.com/doctorjei/kanibako/cmd/kanibako/cli"
	"github.com/doctorjei/kanibako/cmd/kanibako/vaultcmd"
	"github.com/doctorjei/kanibako/cmd/kanibako/worksetcmd"
	"github.com/doctorjei/kanibako/lib/config"
	"github.com/doctorjei/kanibako/lib/version"
)

// Root builds and returns the complete kanibako CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "kanibako",
		Description: `Kanibako: per-project session state for sandboxed coding agents.

Track project identity, move projects between storage modes, and
version the files shared with session containers.`,
		Subcommands: []*cli.Command{
			box.Command(),
			worksetcmd.Command(),
			vaultcmd.Command(),
			setupCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("kanibako %s\n", version.String())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Write the default configuration file",
				Command:     "kanibako setup",
			},
			{
				Description: "Initialize state for the current project",
				Command:     "kanibako box init",
			},
			{
				Description: "List tracked projects",
				Command:     "kanibako box list",
			},
			{
				Description: "Convert the current project to self-contained storage",
				Command:     "kanibako box convert --to decentralized",
			},
			{
				Description: "Snapshot the files shared with the session container",
				Command:     "kanibako vault snapshot",
			},
		},
	}
}

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:    "setup",
		Summary: "Write the default configuration file",
		Description: "Create the configuration file with default values so layout\n" +
			"settings have an explicit, editable home. Existing configuration\n" +
			"is never overwritten.",
		Run: func(args []string) error {
			path := os.Getenv("KANIBAKO_CONFIG")
			if path == "" {
				path = config.DefaultPath()
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("Configuration already exists at %s\n", path)
				return nil
			}
			if err := config.Default().WriteFile(path); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", path)
			return nil
		},
	}
}
