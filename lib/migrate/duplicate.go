// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/workset"
)

// Duplicate copies a project's stored state to a new identity in the
// target layout, never modifying or deleting the source. A full
// duplicate carries the working tree as well; a bare one
// (Options.Bare) copies only the stored state, so the destination
// starts with the source's settings and home but an empty working
// tree. For a workset target the duplicate is registered as a new
// member (Options.Workset, Options.Name); a workset source duplicates
// out by member name while staying in its workset.
//
// An existing destination is a precondition failure unless Force is
// set, in which case the destination directory and any stored state
// under its identity are replaced.
func (e *Engine) Duplicate(projectDir, destDir string, target paths.ProjectMode, opts Options) (*paths.ProjectPaths, error) {
	canonical, err := paths.Canonicalize(projectDir)
	if err != nil {
		return nil, err
	}

	ws, memberName, err := paths.FindWorksetForPath(e.Registry, canonical)
	if err != nil {
		return nil, err
	}
	var source *paths.ProjectPaths
	var sourceTree string
	switch {
	case ws != nil:
		source, err = paths.ResolveWorksetProject(e.Std, ws, memberName, false)
		if err != nil {
			return nil, err
		}
		sourceTree = filepath.Join(ws.WorkspacesDir(), memberName)
	default:
		mode, err := paths.DetectMode(e.Std, e.Registry, canonical)
		if err != nil {
			return nil, err
		}
		if mode == paths.ModeDecentralized {
			source, err = paths.ResolveDecentralized(e.Std, canonical, false)
		} else {
			source, err = paths.ResolveProject(e.Std, canonical, false)
		}
		if err != nil {
			return nil, err
		}
		sourceTree = canonical
	}
	if !exists(source.MetadataPath) {
		return nil, fmt.Errorf("%w: no stored state for %s", paths.ErrProjectNotFound, canonical)
	}

	if target == paths.ModeWorkset {
		return e.duplicateToWorkset(source, sourceTree, opts)
	}

	destPath, err := canonicalizeTarget(destDir)
	if err != nil {
		return nil, err
	}
	if destPath == canonical {
		return nil, fmt.Errorf("%w: %s", ErrSameIdentity, canonical)
	}

	destMetadata := filepath.Join(e.Std.ProjectsDir, paths.ProjectHash(destPath))
	occupied := (!opts.Bare && exists(destPath)) ||
		(target == paths.ModeAccountCentric && exists(destMetadata)) ||
		(target == paths.ModeDecentralized && exists(filepath.Join(destPath, paths.MetadataDirName)))
	if occupied {
		if !opts.Force {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, destPath)
		}
		// A bare duplicate replaces only the stored state; a full one
		// replaces the destination directory as well.
		stale := []string{destMetadata,
			filepath.Join(destPath, paths.MetadataDirName),
			filepath.Join(destPath, paths.HomeDirName)}
		if !opts.Bare {
			stale = []string{destPath, destMetadata}
		}
		for _, path := range stale {
			if err := os.RemoveAll(path); err != nil {
				return nil, fmt.Errorf("replacing destination %s: %w", path, err)
			}
		}
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	if err := e.confirm(duplicateMessage(canonical, destPath, target, opts), opts); err != nil {
		return nil, err
	}

	// Working tree first, unless bare. In-project state directories are
	// carried over piecewise below, re-laid-out for the target mode.
	if opts.Bare {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", destPath, err)
		}
	} else {
		treeExclusions := []string{paths.LockMarkerName}
		if source.Mode == paths.ModeDecentralized {
			treeExclusions = append(treeExclusions, paths.MetadataDirName, paths.HomeDirName)
		}
		if err := stageCopy(sourceTree, destPath, treeExclusions...); err != nil {
			return nil, err
		}
	}
	destCanonical, err := paths.Canonicalize(destPath)
	if err != nil {
		return nil, err
	}

	if target == paths.ModeDecentralized {
		if err := copyInto(source.MetadataPath, filepath.Join(destCanonical, paths.MetadataDirName),
			paths.LockMarkerName, paths.BreadcrumbName, paths.HomeDirName); err != nil {
			return nil, err
		}
		if exists(source.HomePath) {
			if err := copyInto(source.HomePath, filepath.Join(destCanonical, paths.HomeDirName),
				paths.LockMarkerName); err != nil {
				return nil, err
			}
		}
		if err := paths.EnsureProjectGitignore(destCanonical); err != nil {
			return nil, err
		}
	} else {
		// Account-centric destination: stored state under the new hash,
		// fresh breadcrumb.
		destMetadata = filepath.Join(e.Std.ProjectsDir, paths.ProjectHash(destCanonical))
		if err := copyInto(source.MetadataPath, destMetadata,
			paths.LockMarkerName, paths.BreadcrumbName, paths.HomeDirName); err != nil {
			return nil, err
		}
		if exists(source.HomePath) {
			if err := copyInto(source.HomePath, filepath.Join(destMetadata, paths.HomeDirName),
				paths.LockMarkerName); err != nil {
				return nil, err
			}
		}
		if err := paths.WriteBreadcrumb(filepath.Join(destMetadata, paths.BreadcrumbName), destCanonical); err != nil {
			return nil, err
		}
	}

	// A workset source's vault lives outside its workspace and must be
	// carried over explicitly, regaining its .gitignore.
	if source.Mode == paths.ModeWorkset && !opts.Bare && exists(source.VaultDir()) {
		if err := copyInto(source.VaultDir(), filepath.Join(destCanonical, paths.VaultDirName)); err != nil {
			return nil, err
		}
		if err := paths.EnsureVault(filepath.Join(destCanonical, paths.VaultDirName), true); err != nil {
			return nil, err
		}
	}

	if target == paths.ModeDecentralized {
		return paths.ResolveDecentralized(e.Std, destCanonical, false)
	}
	return paths.ResolveProject(e.Std, destCanonical, false)
}

// duplicateToWorkset registers the duplicate as a new member of the
// named workset. The source project is untouched and keeps its own
// mode; the member records the source path it was duplicated from.
func (e *Engine) duplicateToWorkset(source *paths.ProjectPaths, sourceTree string, opts Options) (*paths.ProjectPaths, error) {
	if source.Mode == paths.ModeWorkset {
		return nil, fmt.Errorf("source is already a workset member: duplicate it to a directory instead")
	}
	if opts.Workset == "" {
		return nil, fmt.Errorf("duplicating to workset mode requires a target workset name")
	}
	ws, err := e.Registry.Load(opts.Workset)
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = filepath.Base(sourceTree)
	}
	if _, ok := ws.Member(name); ok {
		return nil, fmt.Errorf("%w: member %q in workset %q", ErrAlreadyExists, name, ws.Name)
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Duplicate project %s into workset %q as %q?\nThe source project is not modified.",
		sourceTree, ws.Name, name)
	if err := e.confirm(message, opts); err != nil {
		return nil, err
	}

	if err := workset.AddProject(ws, name, sourceTree); err != nil {
		return nil, err
	}

	if err := copyInto(source.MetadataPath, filepath.Join(ws.ProjectsDir(), name),
		paths.LockMarkerName, paths.BreadcrumbName, paths.HomeDirName); err != nil {
		return nil, err
	}
	if exists(source.HomePath) {
		if err := copyInto(source.HomePath, filepath.Join(ws.ShellDir(), name), paths.LockMarkerName); err != nil {
			return nil, err
		}
	}
	if !opts.Bare {
		treeExclusions := []string{paths.LockMarkerName, paths.VaultDirName}
		if source.Mode == paths.ModeDecentralized {
			treeExclusions = append(treeExclusions, paths.MetadataDirName, paths.HomeDirName)
		}
		if err := copyInto(sourceTree, filepath.Join(ws.WorkspacesDir(), name), treeExclusions...); err != nil {
			return nil, err
		}
		if exists(source.VaultDir()) {
			if err := copyInto(source.VaultDir(), filepath.Join(ws.VaultDir(), name), ".gitignore"); err != nil {
				return nil, err
			}
		}
	}
	return paths.ResolveWorksetProject(e.Std, ws, name, false)
}

func duplicateMessage(source, dest string, target paths.ProjectMode, opts Options) string {
	kind := "workspace and stored state"
	if opts.Bare {
		kind = "stored state only"
	}
	return fmt.Sprintf("Duplicate project (%s) to %s mode?\n  from: %s\n    to: %s",
		kind, target, source, dest)
}
