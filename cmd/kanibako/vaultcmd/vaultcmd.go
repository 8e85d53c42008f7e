// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package vaultcmd implements the `kanibako vault` commands: taking,
// listing, restoring, and pruning snapshots of a project's writable
// share directory.
package vaultcmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/doctorjei/kanibako/cmd/kanibako/cli"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/prompt"
	"github.com/doctorjei/kanibako/lib/vault"
)

// Command returns the `kanibako vault` command tree.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "vault",
		Summary: "Snapshot and restore a project's shared files",
		Description: "The vault is the share-ro/share-rw directory pair exchanged with\n" +
			"session containers. Snapshots version the writable side as\n" +
			"compressed archives next to the pair.",
		Subcommands: []*cli.Command{
			newSnapshotCommand(),
			newListCommand(),
			newRestoreCommand(),
			newPruneCommand(),
		},
	}
}

// resolveShareRW loads the context and resolves the project's writable
// share directory, enforcing the vault.disabled config switch.
func resolveShareRW(command, project string) (*cli.Context, string, error) {
	ctx, err := cli.LoadContext(command)
	if err != nil {
		return nil, "", err
	}
	if ctx.Config.Vault.Disabled {
		return nil, "", fmt.Errorf("the vault is disabled in the configuration (vault.disabled)")
	}
	resolved, err := paths.ResolveAny(ctx.Std, ctx.Registry, project, false)
	if err != nil {
		return nil, "", err
	}
	return ctx, resolved.VaultRWPath, nil
}

func projectFlag(name string, target *string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.StringVar(target, "project", "", "project directory (default: current directory)")
	return flags
}

func newSnapshotCommand() *cli.Command {
	var project string
	cmd := &cli.Command{
		Name:    "snapshot",
		Summary: "Take a snapshot of the writable share directory",
	}
	cmd.Flags = func() *pflag.FlagSet { return projectFlag("snapshot", &project) }
	cmd.Run = func(args []string) error {
		_, shareRW, err := resolveShareRW("vault/snapshot", project)
		if err != nil {
			return err
		}
		name, err := vault.CreateSnapshot(shareRW)
		if err != nil {
			return err
		}
		if name == "" {
			fmt.Println("Nothing to snapshot: the writable share is empty.")
			return nil
		}
		fmt.Printf("Created snapshot %s\n", name)
		return nil
	}
	return cmd
}

func newListCommand() *cli.Command {
	var project string
	cmd := &cli.Command{
		Name:    "list",
		Summary: "List stored snapshots",
	}
	cmd.Flags = func() *pflag.FlagSet { return projectFlag("list", &project) }
	cmd.Run = func(args []string) error {
		_, shareRW, err := resolveShareRW("vault/list", project)
		if err != nil {
			return err
		}
		snapshots, err := vault.ListSnapshots(shareRW)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
		fmt.Fprintln(tw, "SNAPSHOT\tCREATED\tSIZE")
		for _, snapshot := range snapshots {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", snapshot.Name, snapshot.FormatCreatedAt(), snapshot.Size)
		}
		tw.Flush()
		return nil
	}
	return cmd
}

func newRestoreCommand() *cli.Command {
	var project string
	var force bool
	cmd := &cli.Command{
		Name:    "restore",
		Summary: "Replace the writable share with a snapshot's contents",
		Usage:   "kanibako vault restore <snapshot-name> [flags]",
		Description: "Restore a snapshot exactly: files created since the snapshot are\n" +
			"removed, not merged.",
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := projectFlag("restore", &project)
		flags.BoolVar(&force, "force", false, "skip confirmation")
		return flags
	}
	cmd.Run = func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("exactly one snapshot name required")
		}
		_, shareRW, err := resolveShareRW("vault/restore", project)
		if err != nil {
			return err
		}

		if !force {
			confirmer := &prompt.Terminal{}
			message := fmt.Sprintf("Replace the contents of %s with snapshot %s?", shareRW, args[0])
			if err := cli.CancelToExit(confirmer.Confirm(message)); err != nil {
				return err
			}
		}
		if err := vault.RestoreSnapshot(shareRW, args[0]); err != nil {
			return err
		}
		fmt.Printf("Restored snapshot %s\n", args[0])
		return nil
	}
	return cmd
}

func newPruneCommand() *cli.Command {
	var project string
	var keep int
	cmd := &cli.Command{
		Name:    "prune",
		Summary: "Delete all but the most recent snapshots",
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := projectFlag("prune", &project)
		flags.IntVar(&keep, "keep", -1, "number of most recent snapshots to keep (default: vault.max_snapshots; 0 removes all)")
		return flags
	}
	cmd.Run = func(args []string) error {
		ctx, shareRW, err := resolveShareRW("vault/prune", project)
		if err != nil {
			return err
		}
		// --keep 0 is an explicit "remove everything"; only an unset
		// flag falls back to the configured limit.
		limit := keep
		if limit < 0 {
			limit = ctx.Config.Vault.MaxSnapshots
		}
		removed, err := vault.PruneSnapshots(shareRW, limit)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d snapshot(s), keeping the most recent %d\n", removed, limit)
		return nil
	}
	return cmd
}
