// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package worksetcmd implements the `kanibako workset` commands:
// creating and deleting worksets and managing their members.
package worksetcmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/doctorjei/kanibako/cmd/kanibako/cli"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/prompt"
	"github.com/doctorjei/kanibako/lib/workset"
)

// Command returns the `kanibako workset` command tree.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "workset",
		Summary: "Manage named multi-project worksets",
		Description: "A workset is a named root directory holding several projects keyed\n" +
			"by name, with shared workspaces, metadata, vault, and shell trees.",
		Subcommands: []*cli.Command{
			newCreateCommand(),
			newListCommand(),
			newInfoCommand(),
			newAddCommand(),
			newRemoveCommand(),
			newDeleteCommand(),
		},
	}
}

func confirmOrForce(message string, force bool) error {
	if force {
		return nil
	}
	confirmer := &prompt.Terminal{}
	return confirmer.Confirm(message)
}

func newCreateCommand() *cli.Command {
	return &cli.Command{
		Name:    "create",
		Summary: "Create and register a new workset",
		Usage:   "kanibako workset create <name> <root-directory>",
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("usage: kanibako workset create <name> <root-directory>")
			}
			ctx, err := cli.LoadContext("workset/create")
			if err != nil {
				return err
			}
			ws, err := ctx.Registry.Create(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Created workset %q at %s\n", ws.Name, ws.Root)
			return nil
		},
	}
}

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "List registered worksets",
		Run: func(args []string) error {
			ctx, err := cli.LoadContext("workset/list")
			if err != nil {
				return err
			}
			names, roots, err := ctx.Registry.List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "WORKSET\tMEMBERS\tROOT")
			for _, name := range names {
				members := "?"
				if ws, err := workset.LoadManifest(roots[name]); err == nil {
					members = fmt.Sprintf("%d", len(ws.Members))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, members, roots[name])
			}
			tw.Flush()
			return nil
		},
	}
}

func newInfoCommand() *cli.Command {
	return &cli.Command{
		Name:    "info",
		Summary: "Show a workset's members and their status",
		Usage:   "kanibako workset info <name>",
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: kanibako workset info <name>")
			}
			ctx, err := cli.LoadContext("workset/info")
			if err != nil {
				return err
			}
			ws, err := ctx.Registry.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Workset %s\nRoot: %s\nCreated: %s\n\n",
				ws.Name, ws.Root, ws.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "MEMBER\tSTATUS\tSOURCE")
			for _, member := range ws.Members {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", member.Name, ws.MemberStatus(member.Name), member.SourcePath)
			}
			tw.Flush()
			return nil
		},
	}
}

func newAddCommand() *cli.Command {
	var source string
	cmd := &cli.Command{
		Name:    "add",
		Summary: "Register a new member and create its skeleton",
		Usage:   "kanibako workset add <workset> <member-name> [flags]",
		Description: "Register a member name in the workset and create its skeleton\n" +
			"directories. No data is copied; use 'kanibako box convert --to\n" +
			"workset' to move an existing project in.",
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("add", pflag.ContinueOnError)
		flags.StringVar(&source, "source", "", "original project path recorded for later conversion out")
		return flags
	}
	cmd.Run = func(args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("usage: kanibako workset add <workset> <member-name>")
		}
		ctx, err := cli.LoadContext("workset/add")
		if err != nil {
			return err
		}
		ws, err := ctx.Registry.Load(args[0])
		if err != nil {
			return err
		}
		if err := workset.AddProject(ws, args[1], source); err != nil {
			return err
		}
		if _, err := paths.ResolveWorksetProject(ctx.Std, ws, args[1], true); err != nil {
			return err
		}
		fmt.Printf("Added member %q to workset %q\n", args[1], ws.Name)
		return nil
	}
	return cmd
}

func newRemoveCommand() *cli.Command {
	var removeFiles, force bool
	cmd := &cli.Command{
		Name:    "remove",
		Summary: "Remove a member from a workset",
		Usage:   "kanibako workset remove <workset> <member-name> [flags]",
		Description: "Drop a member from the workset manifest. With --remove-files its\n" +
			"metadata, vault, and shell trees are deleted as well; the\n" +
			"workspace directory is always left in place.",
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("remove", pflag.ContinueOnError)
		flags.BoolVar(&removeFiles, "remove-files", false, "also delete the member's metadata, vault, and shell trees")
		flags.BoolVar(&force, "force", false, "skip confirmation")
		return flags
	}
	cmd.Run = func(args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("usage: kanibako workset remove <workset> <member-name>")
		}
		ctx, err := cli.LoadContext("workset/remove")
		if err != nil {
			return err
		}
		ws, err := ctx.Registry.Load(args[0])
		if err != nil {
			return err
		}
		if _, ok := ws.Member(args[1]); !ok {
			return fmt.Errorf("%w: %q in workset %q", workset.ErrProjectNotInWorkset, args[1], ws.Name)
		}

		if removeFiles {
			message := fmt.Sprintf("Remove member %q from workset %q and delete its stored state?", args[1], ws.Name)
			if err := cli.CancelToExit(confirmOrForce(message, force)); err != nil {
				return err
			}
		}
		if err := workset.RemoveProject(ws, args[1], removeFiles); err != nil {
			return err
		}
		fmt.Printf("Removed member %q from workset %q\n", args[1], ws.Name)
		return nil
	}
	return cmd
}

func newDeleteCommand() *cli.Command {
	var removeFiles, force bool
	cmd := &cli.Command{
		Name:    "delete",
		Summary: "Unregister a workset",
		Usage:   "kanibako workset delete <name> [flags]",
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("delete", pflag.ContinueOnError)
		flags.BoolVar(&removeFiles, "remove-files", false, "also delete the entire workset root, workspaces included")
		flags.BoolVar(&force, "force", false, "skip confirmation")
		return flags
	}
	cmd.Run = func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("usage: kanibako workset delete <name>")
		}
		ctx, err := cli.LoadContext("workset/delete")
		if err != nil {
			return err
		}

		message := fmt.Sprintf("Unregister workset %q?", args[0])
		if removeFiles {
			message = fmt.Sprintf("Unregister workset %q and DELETE its entire root directory?", args[0])
		}
		if err := cli.CancelToExit(confirmOrForce(message, force)); err != nil {
			return err
		}
		if err := ctx.Registry.Delete(args[0], removeFiles); err != nil {
			return err
		}
		fmt.Printf("Deleted workset %q\n", args[0])
		return nil
	}
	return cmd
}
