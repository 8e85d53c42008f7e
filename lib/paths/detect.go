// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/doctorjei/kanibako/lib/workset"
)

// DetectMode determines the authoritative storage mode for an existing
// directory without mutating anything. Precedence, highest first:
//
//  1. workset — the path sits under a registered workset's workspaces
//     directory
//  2. account-centric — metadata exists for the path's hash under the
//     data directory
//  3. decentralized — the path contains a kanibako metadata directory
//  4. account-centric — the default for untracked projects
//
// The ordering matters when stale state survives a conversion: workset
// membership wins over a leftover account-centric metadata directory,
// which in turn wins over a leftover in-project kanibako directory.
func DetectMode(std *StandardPaths, reg *workset.Registry, projectDir string) (ProjectMode, error) {
	canonical, err := Canonicalize(projectDir)
	if err != nil {
		return 0, err
	}

	if ws, _, err := FindWorksetForPath(reg, canonical); err != nil {
		return 0, err
	} else if ws != nil {
		return ModeWorkset, nil
	}

	if isDir(filepath.Join(std.ProjectsDir, ProjectHash(canonical))) {
		return ModeAccountCentric, nil
	}
	if isDir(filepath.Join(canonical, MetadataDirName)) {
		return ModeDecentralized, nil
	}
	return ModeAccountCentric, nil
}

// FindWorksetForPath returns the registered workset whose workspaces
// directory contains canonicalPath, along with the member name (the
// first path segment under workspaces/). Returns (nil, "", nil) when no
// workset contains the path. Registry entries whose manifest cannot be
// read are skipped: a broken workset must not block resolution of
// unrelated projects.
func FindWorksetForPath(reg *workset.Registry, canonicalPath string) (*workset.Workset, string, error) {
	names, roots, err := reg.List()
	if err != nil {
		return nil, "", err
	}

	for _, name := range names {
		workspaces := filepath.Join(roots[name], "workspaces")
		if resolved, err := Canonicalize(workspaces); err == nil {
			workspaces = resolved
		}
		relative, err := filepath.Rel(workspaces, canonicalPath)
		if err != nil || relative == "." || strings.HasPrefix(relative, "..") {
			continue
		}
		memberName := strings.Split(filepath.ToSlash(relative), "/")[0]
		ws, err := reg.Load(name)
		if err != nil {
			continue
		}
		return ws, memberName, nil
	}
	return nil, "", nil
}

// ResolveAny resolves projectDir under whatever mode [DetectMode]
// assigns it, initializing structure when initialize is set. For a
// workset path, the member must already be registered in the manifest.
func ResolveAny(std *StandardPaths, reg *workset.Registry, projectDir string, initialize bool) (*ProjectPaths, error) {
	canonical, err := Canonicalize(projectDir)
	if err != nil {
		return nil, err
	}

	ws, memberName, err := FindWorksetForPath(reg, canonical)
	if err != nil {
		return nil, err
	}
	if ws != nil {
		resolved, err := ResolveWorksetProject(std, ws, memberName, initialize)
		if err != nil {
			return nil, fmt.Errorf("resolving %s in workset %q: %w", canonical, ws.Name, err)
		}
		return resolved, nil
	}

	mode, err := DetectMode(std, reg, canonical)
	if err != nil {
		return nil, err
	}
	if mode == ModeDecentralized {
		return ResolveDecentralized(std, canonical, initialize)
	}
	return ResolveProject(std, canonical, initialize)
}
