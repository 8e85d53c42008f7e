// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package box implements the project commands: listing and inspecting
// tracked projects, initializing their storage, and migrating them
// between identities and storage modes.
package box

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/doctorjei/kanibako/cmd/kanibako/cli"
	"github.com/doctorjei/kanibako/lib/migrate"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/vault"
)

// Command returns the `kanibako box` command tree.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "box",
		Summary: "Inspect and migrate project storage",
		Description: "Manage per-project session state: list tracked projects, inspect\n" +
			"a project's storage layout, and move projects between paths and\n" +
			"storage modes.",
		Subcommands: []*cli.Command{
			newListCommand(),
			newInfoCommand(),
			newInitCommand(),
			newMigrateCommand(),
			newConvertCommand(),
			newDuplicateCommand(),
		},
	}
}

func newEngine(ctx *cli.Context) *migrate.Engine {
	return &migrate.Engine{
		Std:      ctx.Std,
		Registry: ctx.Registry,
		Logger:   ctx.Logger,
	}
}

func newListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Summary: "List tracked projects and workset members",
		Run: func(args []string) error {
			ctx, err := cli.LoadContext("box/list")
			if err != nil {
				return err
			}

			projects, err := paths.ListProjects(ctx.Std)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "HASH\tSTATUS\tPROJECT")
			for _, project := range projects {
				path := project.ProjectPath
				if path == "" {
					path = "(no breadcrumb)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", paths.ShortHash(project.Hash), project.Status, path)
			}
			tw.Flush()

			listings, err := paths.ListWorksetProjects(ctx.Registry, ctx.Logger)
			if err != nil {
				return err
			}
			for _, listing := range listings {
				fmt.Printf("\nWorkset %s (%s)\n", listing.Workset.Name, listing.Workset.Root)
				tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
				fmt.Fprintln(tw, "MEMBER\tSTATUS\tSOURCE")
				for _, member := range listing.Members {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", member.Name, member.Status, member.SourcePath)
				}
				tw.Flush()
			}
			return nil
		},
	}
}

func newInfoCommand() *cli.Command {
	return &cli.Command{
		Name:    "info",
		Summary: "Show a project's storage mode and paths",
		Usage:   "kanibako box info [directory]",
		Run: func(args []string) error {
			ctx, err := cli.LoadContext("box/info")
			if err != nil {
				return err
			}
			directory := ""
			if len(args) > 0 {
				directory = args[0]
			}

			project, err := paths.ResolveAny(ctx.Std, ctx.Registry, directory, false)
			if err != nil {
				return err
			}
			snapshots, err := vault.ListSnapshots(project.VaultRWPath)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Project:\t%s\n", project.ProjectPath)
			fmt.Fprintf(tw, "Mode:\t%s\n", project.Mode)
			fmt.Fprintf(tw, "Hash:\t%s\n", project.ProjectHash)
			fmt.Fprintf(tw, "Metadata:\t%s\n", project.MetadataPath)
			fmt.Fprintf(tw, "Home:\t%s\n", project.HomePath)
			fmt.Fprintf(tw, "Vault:\t%s\n", project.VaultDir())
			fmt.Fprintf(tw, "Snapshots:\t%d\n", len(snapshots))
			fmt.Fprintf(tw, "Locked:\t%t\n", project.Locked())
			tw.Flush()
			return nil
		},
	}
}

func newInitCommand() *cli.Command {
	var mode string
	cmd := &cli.Command{
		Name:    "init",
		Summary: "Initialize project storage without starting a session",
		Usage:   "kanibako box init [directory] [flags]",
		Examples: []cli.Example{
			{Description: "Initialize the current directory account-centrically", Command: "kanibako box init"},
			{Description: "Initialize with in-project state", Command: "kanibako box init --mode decentralized"},
		},
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
		flags.StringVar(&mode, "mode", "", "storage mode for a new project (default: detected)")
		return flags
	}
	cmd.Run = func(args []string) error {
		ctx, err := cli.LoadContext("box/init")
		if err != nil {
			return err
		}
		directory := ""
		if len(args) > 0 {
			directory = args[0]
		}

		var project *paths.ProjectPaths
		if mode == "" {
			project, err = paths.ResolveAny(ctx.Std, ctx.Registry, directory, true)
		} else {
			var parsed paths.ProjectMode
			parsed, err = paths.ParseMode(mode)
			if err != nil {
				return err
			}
			switch parsed {
			case paths.ModeDecentralized:
				project, err = paths.ResolveDecentralized(ctx.Std, directory, true)
			case paths.ModeAccountCentric:
				project, err = paths.ResolveProject(ctx.Std, directory, true)
			default:
				return fmt.Errorf("workset members are initialized through 'kanibako workset add'")
			}
		}
		if err != nil {
			return err
		}

		if project.IsNew {
			fmt.Printf("Initialized %s project state for %s\n", project.Mode, project.ProjectPath)
		} else {
			fmt.Printf("Project state already initialized (%s) for %s\n", project.Mode, project.ProjectPath)
		}
		return nil
	}
	return cmd
}

func newMigrateCommand() *cli.Command {
	var project string
	var force bool
	cmd := &cli.Command{
		Name:    "migrate",
		Summary: "Move a project directory and re-key its identity",
		Usage:   "kanibako box migrate <destination> [flags]",
		Description: "Move a project directory to a new location. Stored state follows\n" +
			"the move: account-centric metadata is re-keyed to the new path's\n" +
			"hash and the breadcrumb is rewritten. If the directory was already\n" +
			"moved by hand, pass the old path with --project and only the\n" +
			"stored state is remapped.",
		Examples: []cli.Example{
			{Description: "Rename the current project directory", Command: "kanibako box migrate ../renamed-project"},
			{Description: "Re-key after an external move", Command: "kanibako box migrate --project /old/path /new/path"},
		},
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
		flags.StringVar(&project, "project", "", "project directory (default: current directory)")
		flags.BoolVar(&force, "force", false, "skip confirmation and proceed past a lock marker")
		return flags
	}
	cmd.Run = func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("exactly one destination argument required")
		}
		ctx, err := cli.LoadContext("box/migrate")
		if err != nil {
			return err
		}

		moved, err := newEngine(ctx).Rekey(project, args[0], migrate.Options{Force: force})
		if err != nil {
			return cli.CancelToExit(err)
		}
		fmt.Printf("Moved project to %s (hash %s)\n", moved.ProjectPath, paths.ShortHash(moved.ProjectHash))
		return nil
	}
	return cmd
}

func newConvertCommand() *cli.Command {
	var project, to, worksetName, memberName, dest string
	var force bool
	cmd := &cli.Command{
		Name:    "convert",
		Summary: "Convert a project to another storage mode",
		Usage:   "kanibako box convert --to <mode> [flags]",
		Description: "Relocate a project's stored state into another layout. Converting\n" +
			"into a workset moves the project directory under the workset root;\n" +
			"converting out moves it back to the member's recorded source path.",
		Examples: []cli.Example{
			{Description: "Make the current project self-contained", Command: "kanibako box convert --to decentralized"},
			{Description: "Move a project into a workset", Command: "kanibako box convert --to workset --workset research --name parser"},
		},
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("convert", pflag.ContinueOnError)
		flags.StringVar(&project, "project", "", "project directory (default: current directory)")
		flags.StringVar(&to, "to", "", "target mode: account-centric, decentralized, or workset")
		flags.StringVar(&worksetName, "workset", "", "target workset name (workset mode only)")
		flags.StringVar(&memberName, "name", "", "member name in the target workset (default: directory base name)")
		flags.StringVar(&dest, "dest", "", "destination directory when leaving a workset (default: recorded source path)")
		flags.BoolVar(&force, "force", false, "skip confirmation and proceed past a lock marker")
		return flags
	}
	cmd.Run = func(args []string) error {
		if to == "" {
			return fmt.Errorf("--to is required")
		}
		target, err := paths.ParseMode(to)
		if err != nil {
			return err
		}
		ctx, err := cli.LoadContext("box/convert")
		if err != nil {
			return err
		}

		converted, err := newEngine(ctx).Convert(project, target, migrate.Options{
			Force:   force,
			Workset: worksetName,
			Name:    memberName,
			Dest:    dest,
		})
		if err != nil {
			return cli.CancelToExit(err)
		}
		fmt.Printf("Converted to %s mode: %s\n", converted.Mode, converted.ProjectPath)
		return nil
	}
	return cmd
}

func newDuplicateCommand() *cli.Command {
	var project, to, worksetName, memberName string
	var bare, force bool
	cmd := &cli.Command{
		Name:    "duplicate",
		Summary: "Copy a project under a new identity",
		Usage:   "kanibako box duplicate <destination> [flags]",
		Description: "Copy a project to a new directory under a new identity. The source\n" +
			"is never modified. A full duplicate carries the working tree and\n" +
			"all stored state; --bare copies only the stored state. With --to,\n" +
			"the copy lands in a different storage mode.",
		Examples: []cli.Example{
			{Description: "Fork a project with its settings and home", Command: "kanibako box duplicate ../project-fork"},
			{Description: "Duplicate into a workset", Command: "kanibako box duplicate --to workset --workset research ."},
		},
	}
	cmd.Flags = func() *pflag.FlagSet {
		flags := pflag.NewFlagSet("duplicate", pflag.ContinueOnError)
		flags.StringVar(&project, "project", "", "project directory (default: current directory)")
		flags.StringVar(&to, "to", "", "storage mode for the copy (default: the source's mode)")
		flags.StringVar(&worksetName, "workset", "", "target workset name (workset mode only)")
		flags.StringVar(&memberName, "name", "", "member name in the target workset (default: directory base name)")
		flags.BoolVar(&bare, "bare", false, "copy only the stored state, not the working tree")
		flags.BoolVar(&force, "force", false, "replace an existing destination")
		return flags
	}
	cmd.Run = func(args []string) error {
		ctx, err := cli.LoadContext("box/duplicate")
		if err != nil {
			return err
		}

		var target paths.ProjectMode
		if to != "" {
			target, err = paths.ParseMode(to)
			if err != nil {
				return err
			}
		} else {
			target, err = paths.DetectMode(ctx.Std, ctx.Registry, project)
			if err != nil {
				return err
			}
			// A workset member duplicates out as a plain project by
			// default; duplicating into a workset is always explicit.
			if target == paths.ModeWorkset {
				target = paths.ModeAccountCentric
			}
		}

		dest := ""
		if len(args) > 0 {
			dest = args[0]
		}
		if target != paths.ModeWorkset && len(args) != 1 {
			return fmt.Errorf("exactly one destination argument required")
		}

		duplicated, err := newEngine(ctx).Duplicate(project, dest, target, migrate.Options{
			Bare:    bare,
			Force:   force,
			Workset: worksetName,
			Name:    memberName,
		})
		if err != nil {
			return cli.CancelToExit(err)
		}
		kind := "full"
		if bare {
			kind = "bare"
		}
		fmt.Printf("Duplicated project (%s copy, %s mode) to %s\n", kind, duplicated.Mode, duplicated.ProjectPath)
		return nil
	}
	return cmd
}
