// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package migrate moves project state between identities and storage
// modes: re-keying after a directory move, converting between the
// account-centric, decentralized, and workset layouts, and duplicating
// a project under a new identity.
//
// Every operation checks all preconditions before its first write, so
// a precondition failure leaves both source and destination exactly as
// they were. Copies into a fresh destination are staged under a
// temporary name and renamed into place; the source is deleted only
// after the destination is complete.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/doctorjei/kanibako/lib/fsutil"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/prompt"
	"github.com/doctorjei/kanibako/lib/workset"
)

// Precondition errors. When one is returned, nothing on disk changed.
var (
	// ErrAlreadyExists indicates the destination identity is already
	// occupied (a directory, metadata entry, or workset member).
	ErrAlreadyExists = errors.New("destination already exists")

	// ErrSameIdentity indicates source and destination resolve to the
	// same identity, making the operation a no-op at best.
	ErrSameIdentity = errors.New("source and destination are the same")

	// ErrLockActive indicates the source carries an advisory lock
	// marker, suggesting a session may still be running.
	ErrLockActive = errors.New("project lock marker present")
)

// stagingSuffix names the temporary destination during a staged copy.
const stagingSuffix = ".migrate-tmp"

// Engine performs migrations. All fields must be set except Confirm
// and Logger, which default to an interactive terminal prompt and
// slog.Default.
type Engine struct {
	Std      *paths.StandardPaths
	Registry *workset.Registry
	Confirm  prompt.Confirmer
	Logger   *slog.Logger
}

// Options tune a migration.
type Options struct {
	// Force skips the confirmation prompt, proceeds past an advisory
	// lock marker, and (for Duplicate) replaces an existing
	// destination.
	Force bool

	// Bare restricts Duplicate to metadata and home state; the working
	// tree and vault do not travel.
	Bare bool

	// Workset names the target workset for conversions and
	// duplications into workset mode.
	Workset string

	// Name overrides the member name for conversions and duplications
	// into workset mode. Defaults to the project directory's base name.
	Name string

	// Dest overrides the destination directory for conversions out of
	// workset mode. Defaults to the member's recorded source path.
	Dest string
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// confirm gates a destructive step. Force answers yes without asking.
func (e *Engine) confirm(message string, opts Options) error {
	if opts.Force {
		return nil
	}
	confirmer := e.Confirm
	if confirmer == nil {
		confirmer = &prompt.Terminal{}
	}
	return confirmer.Confirm(message)
}

// checkLock enforces the advisory lock precondition: a present marker
// is always logged, and aborts the operation unless Force is set.
func (e *Engine) checkLock(project *paths.ProjectPaths, opts Options) error {
	return e.checkLockMarker(project.ProjectPath, project.LockMarkerPath(), opts)
}

func (e *Engine) checkLockMarker(projectPath, markerPath string, opts Options) error {
	if !exists(markerPath) {
		return nil
	}
	e.logger().Warn("project lock marker present, a session may be running",
		"project", projectPath,
		"marker", markerPath)
	if opts.Force {
		return nil
	}
	return fmt.Errorf("%w: %s (use --force to migrate anyway)", ErrLockActive, markerPath)
}

// canonicalizeTarget resolves a destination path that may not exist
// yet: the nearest existing ancestor is symlink-resolved and the
// remaining segments are appended verbatim.
func canonicalizeTarget(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(absolute); err == nil {
		return resolved, nil
	}

	var pending []string
	current := absolute
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			result := resolved
			for i := len(pending) - 1; i >= 0; i-- {
				result = filepath.Join(result, pending[i])
			}
			return result, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absolute, nil
		}
		pending = append(pending, filepath.Base(current))
		current = parent
	}
}

// stageCopy copies source into destination via a sibling staging
// directory, so a crash mid-copy never leaves a half-populated
// destination under its final name.
func stageCopy(source, destination string, exclude ...string) error {
	staging := destination + stagingSuffix
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clearing staging directory %s: %w", staging, err)
	}
	if err := fsutil.CopyTree(source, staging, exclude...); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, destination); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("moving %s into place: %w", staging, err)
	}
	return nil
}

// moveDir relocates a directory: a rename when source and destination
// share a filesystem, a staged copy followed by source removal
// otherwise.
func moveDir(source, destination string, exclude ...string) error {
	sameDevice, err := fsutil.SameDevice(source, destination)
	if err != nil {
		return err
	}
	if sameDevice && len(exclude) == 0 {
		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(destination), err)
		}
		if err := os.Rename(source, destination); err != nil {
			return fmt.Errorf("moving %s to %s: %w", source, destination, err)
		}
		return nil
	}
	if err := stageCopy(source, destination, exclude...); err != nil {
		return err
	}
	if err := os.RemoveAll(source); err != nil {
		return fmt.Errorf("removing migrated source %s: %w", source, err)
	}
	return nil
}

// copyInto copies source's contents directly into destination, which
// may already exist (a member skeleton directory, for example).
// Contrast with stageCopy, which requires a fresh destination and
// renames it into place atomically.
func copyInto(source, destination string, exclude ...string) error {
	return fsutil.CopyTree(source, destination, exclude...)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Rekey moves a project directory to a new location and re-keys its
// stored identity to match. Account-centric metadata is renamed to the
// new hash and the breadcrumb rewritten; a decentralized project
// carries its state inside the directory, so the move alone suffices.
// When the source directory is already gone (the user moved it
// themselves), the stored state is remapped to the destination, which
// must then exist. Workset members are keyed by name, not path:
// convert them out of the workset instead.
func (e *Engine) Rekey(projectDir, destDir string, opts Options) (*paths.ProjectPaths, error) {
	sourcePath, err := paths.Canonicalize(projectDir)
	if err != nil {
		if !errors.Is(err, paths.ErrProjectNotFound) {
			return nil, err
		}
		oldPath, pathErr := canonicalizeTarget(projectDir)
		if pathErr != nil {
			return nil, pathErr
		}
		return e.rekeyMetadataOnly(oldPath, destDir, opts)
	}

	mode, err := paths.DetectMode(e.Std, e.Registry, sourcePath)
	if err != nil {
		return nil, err
	}
	if mode == paths.ModeWorkset {
		return nil, fmt.Errorf("workset members are keyed by name: convert %s out of its workset instead", projectDir)
	}

	destPath, err := canonicalizeTarget(destDir)
	if err != nil {
		return nil, err
	}
	if destPath == sourcePath {
		return nil, fmt.Errorf("%w: %s", ErrSameIdentity, sourcePath)
	}
	if exists(destPath) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, destPath)
	}

	var source *paths.ProjectPaths
	if mode == paths.ModeDecentralized {
		source, err = paths.ResolveDecentralized(e.Std, sourcePath, false)
	} else {
		source, err = paths.ResolveProject(e.Std, sourcePath, false)
	}
	if err != nil {
		return nil, err
	}
	newMetadata := filepath.Join(e.Std.ProjectsDir, paths.ProjectHash(destPath))
	if mode == paths.ModeAccountCentric {
		if !exists(source.MetadataPath) {
			return nil, fmt.Errorf("%w: no stored state for %s", paths.ErrProjectNotFound, sourcePath)
		}
		if exists(newMetadata) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, newMetadata)
		}
	}
	if err := e.checkLock(source, opts); err != nil {
		return nil, err
	}
	if err := e.confirm(fmt.Sprintf("Move project %s to %s?", sourcePath, destPath), opts); err != nil {
		return nil, err
	}

	if err := moveDir(sourcePath, destPath); err != nil {
		return nil, err
	}

	if mode == paths.ModeDecentralized {
		os.Remove(filepath.Join(destPath, paths.MetadataDirName, paths.LockMarkerName))
		return paths.ResolveDecentralized(e.Std, destPath, false)
	}

	// Account-centric: rename the hash-keyed metadata directory and
	// refresh the breadcrumb.
	if err := os.Rename(source.MetadataPath, newMetadata); err != nil {
		return nil, fmt.Errorf("re-keying metadata: %w", err)
	}
	if err := paths.WriteBreadcrumb(filepath.Join(newMetadata, paths.BreadcrumbName), destPath); err != nil {
		return nil, err
	}
	// A lock marker describes a session against the old identity and
	// never carries over.
	os.Remove(filepath.Join(newMetadata, paths.LockMarkerName))
	return paths.ResolveProject(e.Std, destPath, false)
}

// rekeyMetadataOnly handles a re-key whose directory move already
// happened outside kanibako: the old path no longer exists, so its
// stored state is renamed to the destination's hash without touching
// the working tree. Only account-centric projects leave state behind
// this way; a decentralized project's state travels with the
// directory.
func (e *Engine) rekeyMetadataOnly(oldPath, destDir string, opts Options) (*paths.ProjectPaths, error) {
	destPath, err := paths.Canonicalize(destDir)
	if err != nil {
		return nil, fmt.Errorf("destination must exist when the source directory is already gone: %w", err)
	}
	oldMetadata := filepath.Join(e.Std.ProjectsDir, paths.ProjectHash(oldPath))
	if !exists(oldMetadata) {
		return nil, fmt.Errorf("%w: no stored state for %s", paths.ErrProjectNotFound, oldPath)
	}
	newMetadata := filepath.Join(e.Std.ProjectsDir, paths.ProjectHash(destPath))
	if exists(newMetadata) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, newMetadata)
	}
	if err := e.checkLockMarker(oldPath, filepath.Join(oldMetadata, paths.LockMarkerName), opts); err != nil {
		return nil, err
	}
	if err := e.confirm(fmt.Sprintf("Re-key stored state from %s to %s?", oldPath, destPath), opts); err != nil {
		return nil, err
	}

	if err := os.Rename(oldMetadata, newMetadata); err != nil {
		return nil, fmt.Errorf("re-keying metadata: %w", err)
	}
	if err := paths.WriteBreadcrumb(filepath.Join(newMetadata, paths.BreadcrumbName), destPath); err != nil {
		return nil, err
	}
	os.Remove(filepath.Join(newMetadata, paths.LockMarkerName))
	return paths.ResolveProject(e.Std, destPath, false)
}
