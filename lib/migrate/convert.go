// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package migrate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/doctorjei/kanibako/lib/fsutil"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/workset"
)

// Convert changes a project's storage mode in place: the working tree
// keeps its logical identity while all stored state (metadata, home,
// vault) is relocated to the target layout. For conversions into a
// workset the working tree physically moves under the workset root;
// out of a workset it moves back to the member's recorded source path
// (or Options.Dest). The source layout's state is deleted only after
// the target layout is complete.
func (e *Engine) Convert(projectDir string, target paths.ProjectMode, opts Options) (*paths.ProjectPaths, error) {
	canonical, err := paths.Canonicalize(projectDir)
	if err != nil {
		return nil, err
	}

	ws, memberName, err := paths.FindWorksetForPath(e.Registry, canonical)
	if err != nil {
		return nil, err
	}
	if ws != nil {
		return e.convertFromWorkset(ws, memberName, target, opts)
	}

	sourceMode, err := paths.DetectMode(e.Std, e.Registry, canonical)
	if err != nil {
		return nil, err
	}
	if sourceMode == target {
		return nil, fmt.Errorf("%w: %s is already %s", ErrSameIdentity, canonical, target)
	}

	switch target {
	case paths.ModeWorkset:
		return e.convertToWorkset(sourceMode, canonical, opts)
	case paths.ModeDecentralized:
		return e.convertToDecentralized(canonical, opts)
	case paths.ModeAccountCentric:
		return e.convertToAccountCentric(canonical, opts)
	default:
		return nil, fmt.Errorf("unknown target mode %v", target)
	}
}

// convertToDecentralized relocates account-centric state into the
// project directory. The vault pair already lives there, so only
// metadata and home move. No breadcrumb is carried over: the
// decentralized layout has no hash-keyed directory to map back from.
func (e *Engine) convertToDecentralized(canonical string, opts Options) (*paths.ProjectPaths, error) {
	source, err := paths.ResolveProject(e.Std, canonical, false)
	if err != nil {
		return nil, err
	}
	if !exists(source.MetadataPath) {
		return nil, fmt.Errorf("%w: no stored state for %s", paths.ErrProjectNotFound, canonical)
	}

	destination, err := paths.ResolveDecentralized(e.Std, canonical, false)
	if err != nil {
		return nil, err
	}
	if exists(destination.MetadataPath) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, destination.MetadataPath)
	}
	if exists(destination.HomePath) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, destination.HomePath)
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Convert %s to decentralized mode?\nState moves from %s into the project directory.",
		canonical, source.MetadataPath)
	if err := e.confirm(message, opts); err != nil {
		return nil, err
	}

	if err := stageCopy(source.MetadataPath, destination.MetadataPath,
		paths.LockMarkerName, paths.BreadcrumbName, paths.HomeDirName); err != nil {
		return nil, err
	}
	if exists(source.HomePath) {
		if err := stageCopy(source.HomePath, destination.HomePath, paths.LockMarkerName); err != nil {
			return nil, err
		}
	}
	if err := paths.EnsureProjectGitignore(canonical); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(source.MetadataPath); err != nil {
		return nil, fmt.Errorf("removing converted source state %s: %w", source.MetadataPath, err)
	}
	return paths.ResolveDecentralized(e.Std, canonical, true)
}

// convertToAccountCentric relocates in-project state under the data
// directory, keyed by the project hash, and records a fresh breadcrumb.
func (e *Engine) convertToAccountCentric(canonical string, opts Options) (*paths.ProjectPaths, error) {
	source, err := paths.ResolveDecentralized(e.Std, canonical, false)
	if err != nil {
		return nil, err
	}
	if !exists(source.MetadataPath) {
		return nil, fmt.Errorf("%w: no stored state for %s", paths.ErrProjectNotFound, canonical)
	}

	destination, err := paths.ResolveProject(e.Std, canonical, false)
	if err != nil {
		return nil, err
	}
	if exists(destination.MetadataPath) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, destination.MetadataPath)
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Convert %s to account-centric mode?\nState moves from the project directory to %s.",
		canonical, destination.MetadataPath)
	if err := e.confirm(message, opts); err != nil {
		return nil, err
	}

	if err := stageCopy(source.MetadataPath, destination.MetadataPath,
		paths.LockMarkerName, paths.BreadcrumbName); err != nil {
		return nil, err
	}
	if exists(source.HomePath) {
		if err := stageCopy(source.HomePath, destination.HomePath, paths.LockMarkerName); err != nil {
			return nil, err
		}
	}
	if err := paths.WriteBreadcrumb(destination.BreadcrumbPath(), canonical); err != nil {
		return nil, err
	}
	for _, stale := range []string{source.MetadataPath, source.HomePath} {
		if err := os.RemoveAll(stale); err != nil {
			return nil, fmt.Errorf("removing converted source state %s: %w", stale, err)
		}
	}
	return paths.ResolveProject(e.Std, canonical, true)
}

// convertToWorkset registers the project as a member of the named
// workset and moves its working tree, metadata, home, and vault under
// the workset root. The member is registered before any data moves so
// an interrupted conversion is visible in the manifest rather than
// silently half-done.
func (e *Engine) convertToWorkset(sourceMode paths.ProjectMode, canonical string, opts Options) (*paths.ProjectPaths, error) {
	if opts.Workset == "" {
		return nil, fmt.Errorf("converting to workset mode requires a target workset name")
	}
	ws, err := e.Registry.Load(opts.Workset)
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = filepath.Base(canonical)
	}
	if _, ok := ws.Member(name); ok {
		return nil, fmt.Errorf("%w: member %q in workset %q", ErrAlreadyExists, name, ws.Name)
	}
	workspace := filepath.Join(ws.WorkspacesDir(), name)
	if empty, err := fsutil.IsEmptyDir(workspace); err != nil {
		return nil, err
	} else if !empty {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, workspace)
	}

	var source *paths.ProjectPaths
	if sourceMode == paths.ModeDecentralized {
		source, err = paths.ResolveDecentralized(e.Std, canonical, false)
	} else {
		source, err = paths.ResolveProject(e.Std, canonical, false)
	}
	if err != nil {
		return nil, err
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Move project %s into workset %q as %q?\nThe project directory relocates to %s.",
		canonical, ws.Name, name, workspace)
	if err := e.confirm(message, opts); err != nil {
		return nil, err
	}

	if err := workset.AddProject(ws, name, canonical); err != nil {
		return nil, err
	}

	// Working tree. State directories living inside the project stay
	// behind; they are carried over piecewise below.
	treeExclusions := []string{paths.LockMarkerName, paths.VaultDirName}
	if sourceMode == paths.ModeDecentralized {
		treeExclusions = append(treeExclusions, paths.MetadataDirName, paths.HomeDirName)
	}
	if err := copyInto(canonical, workspace, treeExclusions...); err != nil {
		return nil, err
	}

	if exists(source.MetadataPath) {
		if err := copyInto(source.MetadataPath, filepath.Join(ws.ProjectsDir(), name),
			paths.LockMarkerName, paths.BreadcrumbName, paths.HomeDirName); err != nil {
			return nil, err
		}
	}
	if exists(source.HomePath) {
		if err := copyInto(source.HomePath, filepath.Join(ws.ShellDir(), name), paths.LockMarkerName); err != nil {
			return nil, err
		}
	}
	if exists(source.VaultDir()) {
		// Workset vaults live outside any repository, so the
		// .gitignore guarding share-rw is dropped.
		if err := copyInto(source.VaultDir(), filepath.Join(ws.VaultDir(), name), ".gitignore"); err != nil {
			return nil, err
		}
	}

	if sourceMode == paths.ModeAccountCentric {
		if err := os.RemoveAll(source.MetadataPath); err != nil {
			return nil, fmt.Errorf("removing converted source state %s: %w", source.MetadataPath, err)
		}
	}
	if err := os.RemoveAll(canonical); err != nil {
		return nil, fmt.Errorf("removing converted source %s: %w", canonical, err)
	}
	return paths.ResolveWorksetProject(e.Std, ws, name, false)
}

// convertFromWorkset moves a member out of its workset: the working
// tree returns to Options.Dest (default: the member's recorded source
// path) and stored state is re-laid-out for the target mode. With a
// target workset named in Options.Workset, the member transfers
// between worksets instead.
func (e *Engine) convertFromWorkset(ws *workset.Workset, memberName string, target paths.ProjectMode, opts Options) (*paths.ProjectPaths, error) {
	member, ok := ws.Member(memberName)
	if !ok {
		return nil, fmt.Errorf("%w: %q in workset %q", workset.ErrProjectNotInWorkset, memberName, ws.Name)
	}
	source, err := paths.ResolveWorksetProject(e.Std, ws, memberName, false)
	if err != nil {
		return nil, err
	}

	if target == paths.ModeWorkset {
		return e.transferBetweenWorksets(ws, member, source, opts)
	}

	destDir := opts.Dest
	if destDir == "" {
		destDir = member.SourcePath
	}
	if destDir == "" {
		return nil, fmt.Errorf("member %q has no recorded source path: a destination is required", memberName)
	}
	destPath, err := canonicalizeTarget(destDir)
	if err != nil {
		return nil, err
	}
	if exists(destPath) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, destPath)
	}
	destMetadata := ""
	if target == paths.ModeAccountCentric {
		destMetadata = filepath.Join(e.Std.ProjectsDir, paths.ProjectHash(destPath))
		if exists(destMetadata) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, destMetadata)
		}
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Move %q out of workset %q?\nThe project directory relocates to %s.",
		memberName, ws.Name, destPath)
	if err := e.confirm(message, opts); err != nil {
		return nil, err
	}

	workspace := filepath.Join(ws.WorkspacesDir(), memberName)
	if err := stageCopy(workspace, destPath, paths.LockMarkerName); err != nil {
		return nil, err
	}
	canonical, err := paths.Canonicalize(destPath)
	if err != nil {
		return nil, err
	}

	if target == paths.ModeAccountCentric {
		homeDest := filepath.Join(destMetadata, paths.HomeDirName)
		if exists(source.MetadataPath) {
			if err := stageCopy(source.MetadataPath, destMetadata,
				paths.LockMarkerName, paths.BreadcrumbName, paths.HomeDirName); err != nil {
				return nil, err
			}
		}
		if exists(source.HomePath) {
			if err := stageCopy(source.HomePath, homeDest, paths.LockMarkerName); err != nil {
				return nil, err
			}
		}
		if err := os.MkdirAll(destMetadata, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", destMetadata, err)
		}
		if err := paths.WriteBreadcrumb(filepath.Join(destMetadata, paths.BreadcrumbName), canonical); err != nil {
			return nil, err
		}
	} else {
		if exists(source.MetadataPath) {
			if err := stageCopy(source.MetadataPath, filepath.Join(canonical, paths.MetadataDirName),
				paths.LockMarkerName, paths.BreadcrumbName); err != nil {
				return nil, err
			}
		}
		if exists(source.HomePath) {
			if err := stageCopy(source.HomePath, filepath.Join(canonical, paths.HomeDirName),
				paths.LockMarkerName); err != nil {
				return nil, err
			}
		}
		if err := paths.EnsureProjectGitignore(canonical); err != nil {
			return nil, err
		}
	}

	// The vault returns to the project directory and regains its
	// .gitignore, since it now sits inside a user repository again.
	if exists(source.VaultDir()) {
		if err := copyInto(source.VaultDir(), filepath.Join(canonical, paths.VaultDirName)); err != nil {
			return nil, err
		}
	}
	if err := paths.EnsureVault(filepath.Join(canonical, paths.VaultDirName), true); err != nil {
		return nil, err
	}

	if err := workset.RemoveProject(ws, memberName, true); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(workspace); err != nil {
		return nil, fmt.Errorf("removing converted workspace %s: %w", workspace, err)
	}

	if target == paths.ModeAccountCentric {
		return paths.ResolveProject(e.Std, canonical, true)
	}
	return paths.ResolveDecentralized(e.Std, canonical, true)
}

// transferBetweenWorksets moves a member from one workset to another,
// keeping the recorded source path.
func (e *Engine) transferBetweenWorksets(ws *workset.Workset, member workset.Member, source *paths.ProjectPaths, opts Options) (*paths.ProjectPaths, error) {
	if opts.Workset == "" {
		return nil, fmt.Errorf("converting to workset mode requires a target workset name")
	}
	if opts.Workset == ws.Name {
		return nil, fmt.Errorf("%w: %q is already a member of workset %q", ErrSameIdentity, member.Name, ws.Name)
	}
	targetWs, err := e.Registry.Load(opts.Workset)
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = member.Name
	}
	if _, ok := targetWs.Member(name); ok {
		return nil, fmt.Errorf("%w: member %q in workset %q", ErrAlreadyExists, name, targetWs.Name)
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	message := fmt.Sprintf("Transfer %q from workset %q to workset %q as %q?",
		member.Name, ws.Name, targetWs.Name, name)
	if err := e.confirm(message, opts); err != nil {
		return nil, err
	}

	if err := workset.AddProject(targetWs, name, member.SourcePath); err != nil {
		return nil, err
	}

	transfers := []struct{ from, to string }{
		{filepath.Join(ws.WorkspacesDir(), member.Name), filepath.Join(targetWs.WorkspacesDir(), name)},
		{source.MetadataPath, filepath.Join(targetWs.ProjectsDir(), name)},
		{source.HomePath, filepath.Join(targetWs.ShellDir(), name)},
		{source.VaultDir(), filepath.Join(targetWs.VaultDir(), name)},
	}
	for _, transfer := range transfers {
		if !exists(transfer.from) {
			continue
		}
		if err := copyInto(transfer.from, transfer.to, paths.LockMarkerName); err != nil {
			return nil, err
		}
	}

	if err := workset.RemoveProject(ws, member.Name, true); err != nil {
		return nil, err
	}
	workspace := filepath.Join(ws.WorkspacesDir(), member.Name)
	if err := os.RemoveAll(workspace); err != nil {
		return nil, fmt.Errorf("removing transferred workspace %s: %w", workspace, err)
	}
	return paths.ResolveWorksetProject(e.Std, targetWs, name, false)
}
