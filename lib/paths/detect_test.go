// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package paths_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/testutil"
	"github.com/doctorjei/kanibako/lib/workset"
)

func TestDetectModeDefaultsToAccountCentric(t *testing.T) {
	env := testutil.NewEnv(t)
	dir := env.ProjectDir(t, "fresh")

	mode, err := paths.DetectMode(env.Std, env.Registry, dir)
	if err != nil {
		t.Fatalf("DetectMode: %v", err)
	}
	if mode != paths.ModeAccountCentric {
		t.Errorf("mode = %v, want account-centric default", mode)
	}
}

func TestDetectModePrecedence(t *testing.T) {
	env := testutil.NewEnv(t)
	dir := env.ProjectDir(t, "layered")

	// In-project metadata directory: decentralized.
	if err := os.MkdirAll(filepath.Join(dir, paths.MetadataDirName), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mode, err := paths.DetectMode(env.Std, env.Registry, dir)
	if err != nil {
		t.Fatalf("DetectMode: %v", err)
	}
	if mode != paths.ModeDecentralized {
		t.Errorf("mode = %v, want decentralized", mode)
	}

	// Account-centric metadata outranks the in-project directory.
	canonical, _ := paths.Canonicalize(dir)
	acMetadata := filepath.Join(env.Std.ProjectsDir, paths.ProjectHash(canonical))
	if err := os.MkdirAll(acMetadata, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mode, err = paths.DetectMode(env.Std, env.Registry, dir)
	if err != nil {
		t.Fatalf("DetectMode: %v", err)
	}
	if mode != paths.ModeAccountCentric {
		t.Errorf("mode = %v, want account-centric over stale in-project state", mode)
	}
}

func TestDetectModeWorksetWins(t *testing.T) {
	env := testutil.NewEnv(t)
	ws, err := env.Registry.Create("team", filepath.Join(env.Root, "team"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := workset.AddProject(ws, "member", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	workspace := filepath.Join(ws.WorkspacesDir(), "member")

	// Even stale account-centric metadata for the same path loses to
	// workset membership.
	canonical, _ := paths.Canonicalize(workspace)
	if err := os.MkdirAll(filepath.Join(env.Std.ProjectsDir, paths.ProjectHash(canonical)), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	mode, err := paths.DetectMode(env.Std, env.Registry, workspace)
	if err != nil {
		t.Fatalf("DetectMode: %v", err)
	}
	if mode != paths.ModeWorkset {
		t.Errorf("mode = %v, want workset", mode)
	}

	found, memberName, err := paths.FindWorksetForPath(env.Registry, canonical)
	if err != nil {
		t.Fatalf("FindWorksetForPath: %v", err)
	}
	if found == nil || found.Name != "team" || memberName != "member" {
		t.Errorf("FindWorksetForPath = (%v, %q)", found, memberName)
	}
}

func TestFindWorksetForPathOutside(t *testing.T) {
	env := testutil.NewEnv(t)
	if _, err := env.Registry.Create("team", filepath.Join(env.Root, "team")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dir := env.ProjectDir(t, "outside")
	canonical, _ := paths.Canonicalize(dir)

	found, _, err := paths.FindWorksetForPath(env.Registry, canonical)
	if err != nil {
		t.Fatalf("FindWorksetForPath: %v", err)
	}
	if found != nil {
		t.Errorf("path outside any workset matched %q", found.Name)
	}
}

func TestListProjects(t *testing.T) {
	env := testutil.NewEnv(t)
	okDir := env.ProjectDir(t, "ok")
	goneDir := env.ProjectDir(t, "gone")

	okProject, err := paths.ResolveProject(env.Std, okDir, true)
	if err != nil {
		t.Fatalf("ResolveProject: %v", err)
	}
	goneProject, err := paths.ResolveProject(env.Std, goneDir, true)
	if err != nil {
		t.Fatalf("ResolveProject: %v", err)
	}
	if err := os.RemoveAll(goneDir); err != nil {
		t.Fatalf("removing project dir: %v", err)
	}

	entries, err := paths.ListProjects(env.Std)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	statuses := map[string]string{}
	for _, entry := range entries {
		statuses[entry.Hash] = entry.Status
	}
	if statuses[okProject.ProjectHash] != "ok" {
		t.Errorf("live project status = %q, want ok", statuses[okProject.ProjectHash])
	}
	if statuses[goneProject.ProjectHash] != "missing" {
		t.Errorf("removed project status = %q, want missing", statuses[goneProject.ProjectHash])
	}
}

func TestListProjectsUnknownWithoutBreadcrumb(t *testing.T) {
	env := testutil.NewEnv(t)
	dir := env.ProjectDir(t, "anon")
	project, err := paths.ResolveProject(env.Std, dir, true)
	if err != nil {
		t.Fatalf("ResolveProject: %v", err)
	}
	if err := os.Remove(project.BreadcrumbPath()); err != nil {
		t.Fatalf("removing breadcrumb: %v", err)
	}

	entries, err := paths.ListProjects(env.Std)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != "unknown" {
		t.Errorf("entries = %+v, want one unknown entry", entries)
	}
}

func TestListWorksetProjects(t *testing.T) {
	env := testutil.NewEnv(t)
	ws, err := env.Registry.Create("team", filepath.Join(env.Root, "team"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := workset.AddProject(ws, "present", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if err := workset.AddProject(ws, "lost", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(ws.WorkspacesDir(), "lost")); err != nil {
		t.Fatalf("removing workspace: %v", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	listings, err := paths.ListWorksetProjects(env.Registry, quiet)
	if err != nil {
		t.Fatalf("ListWorksetProjects: %v", err)
	}
	if len(listings) != 1 || len(listings[0].Members) != 2 {
		t.Fatalf("listings = %+v, want one workset with two members", listings)
	}
	statuses := map[string]string{}
	for _, member := range listings[0].Members {
		statuses[member.Name] = member.Status
	}
	if statuses["present"] != "ok" {
		t.Errorf("present member status = %q, want ok", statuses["present"])
	}
	if statuses["lost"] != "missing" {
		t.Errorf("lost member status = %q, want missing", statuses["lost"])
	}
}
