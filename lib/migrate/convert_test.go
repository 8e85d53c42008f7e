// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package migrate_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/doctorjei/kanibako/lib/migrate"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/prompt"
	"github.com/doctorjei/kanibako/lib/testutil"
	"github.com/doctorjei/kanibako/lib/workset"
)

func TestConvertSameModeRejected(t *testing.T) {
	env := testutil.NewEnv(t)
	dir, _ := initAccountCentric(t, env, "alpha")

	_, err := newTestEngine(env, true).Convert(dir, paths.ModeAccountCentric, migrate.Options{})
	if !errors.Is(err, migrate.ErrSameIdentity) {
		t.Errorf("error = %v, want ErrSameIdentity", err)
	}
}

func TestConvertAccountCentricDecentralizedRoundTrip(t *testing.T) {
	env := testutil.NewEnv(t)
	dir, source := initAccountCentric(t, env, "alpha")
	homeBefore := testutil.TreeSnapshot(t, source.HomePath)
	engine := newTestEngine(env, true)

	converted, err := engine.Convert(dir, paths.ModeDecentralized, migrate.Options{})
	if err != nil {
		t.Fatalf("Convert to decentralized: %v", err)
	}
	if _, err := os.Stat(source.MetadataPath); !os.IsNotExist(err) {
		t.Error("account-centric metadata survived the conversion")
	}
	if got := testutil.ReadFile(t, filepath.Join(converted.MetadataPath, "settings.yaml")); got != "theme: dark\n" {
		t.Errorf("settings after conversion = %q", got)
	}
	if _, err := os.Stat(filepath.Join(converted.MetadataPath, paths.BreadcrumbName)); !os.IsNotExist(err) {
		t.Error("breadcrumb carried into decentralized metadata")
	}
	if !reflect.DeepEqual(homeBefore, testutil.TreeSnapshot(t, converted.HomePath)) {
		t.Errorf("home changed in conversion:\n%s",
			testutil.DiffSnapshots(homeBefore, testutil.TreeSnapshot(t, converted.HomePath)))
	}
	gitignore := testutil.ReadFile(t, filepath.Join(converted.ProjectPath, ".gitignore"))
	if !strings.Contains(gitignore, "kanibako/\n") || !strings.Contains(gitignore, "home/\n") {
		t.Errorf("project .gitignore = %q", gitignore)
	}

	restored, err := engine.Convert(dir, paths.ModeAccountCentric, migrate.Options{})
	if err != nil {
		t.Fatalf("Convert back to account-centric: %v", err)
	}
	for _, stale := range []string{converted.MetadataPath, converted.HomePath} {
		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Errorf("in-project state %s survived the conversion back", stale)
		}
	}
	if got := testutil.ReadFile(t, filepath.Join(restored.MetadataPath, "settings.yaml")); got != "theme: dark\n" {
		t.Errorf("settings after round trip = %q", got)
	}
	if !reflect.DeepEqual(homeBefore, testutil.TreeSnapshot(t, restored.HomePath)) {
		t.Errorf("home changed across round trip:\n%s",
			testutil.DiffSnapshots(homeBefore, testutil.TreeSnapshot(t, restored.HomePath)))
	}
	canonical, _ := paths.Canonicalize(dir)
	if got := testutil.ReadFile(t, restored.BreadcrumbPath()); got != canonical+"\n" {
		t.Errorf("breadcrumb = %q", got)
	}
	// The vault never moved: it lives in the project directory in both
	// layouts.
	if got := testutil.ReadFile(t, filepath.Join(restored.VaultRWPath, "notes.md")); got != "shared notes\n" {
		t.Errorf("vault content = %q", got)
	}
}

func TestConvertToDecentralizedAlreadyExists(t *testing.T) {
	env := testutil.NewEnv(t)
	dir, source := initAccountCentric(t, env, "alpha")
	testutil.WriteFile(t, filepath.Join(dir, paths.MetadataDirName, "stale.txt"), "old")
	metadataBefore := testutil.TreeSnapshot(t, source.MetadataPath)

	_, err := newTestEngine(env, true).Convert(dir, paths.ModeDecentralized, migrate.Options{})
	if !errors.Is(err, migrate.ErrAlreadyExists) {
		t.Fatalf("error = %v, want ErrAlreadyExists", err)
	}
	if diff := testutil.DiffSnapshots(metadataBefore, testutil.TreeSnapshot(t, source.MetadataPath)); diff != "" {
		t.Errorf("metadata mutated on precondition failure:\n%s", diff)
	}
}

func TestConvertLockRequiresForce(t *testing.T) {
	env := testutil.NewEnv(t)
	dir, source := initAccountCentric(t, env, "alpha")
	testutil.WriteFile(t, source.LockMarkerPath(), "")

	_, err := newTestEngine(env, true).Convert(dir, paths.ModeDecentralized, migrate.Options{})
	if !errors.Is(err, migrate.ErrLockActive) {
		t.Fatalf("error = %v, want ErrLockActive", err)
	}

	converted, err := newTestEngine(env, true).Convert(dir, paths.ModeDecentralized, migrate.Options{Force: true})
	if err != nil {
		t.Fatalf("forced Convert: %v", err)
	}
	// The marker describes a session against the old layout and is
	// never copied.
	if converted.Locked() {
		t.Error("lock marker carried into the new layout")
	}
}

func TestConvertCancelledZeroMutation(t *testing.T) {
	env := testutil.NewEnv(t)
	dir, _ := initAccountCentric(t, env, "alpha")

	projectBefore := testutil.TreeSnapshot(t, dir)
	dataBefore := testutil.TreeSnapshot(t, env.Std.DataDir)

	_, err := newTestEngine(env, false).Convert(dir, paths.ModeDecentralized, migrate.Options{})
	if !errors.Is(err, prompt.ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if diff := testutil.DiffSnapshots(projectBefore, testutil.TreeSnapshot(t, dir)); diff != "" {
		t.Errorf("project mutated on cancellation:\n%s", diff)
	}
	if diff := testutil.DiffSnapshots(dataBefore, testutil.TreeSnapshot(t, env.Std.DataDir)); diff != "" {
		t.Errorf("data directory mutated on cancellation:\n%s", diff)
	}
}

func TestConvertIntoWorkset(t *testing.T) {
	env := testutil.NewEnv(t)
	ws, err := env.Registry.Create("research", filepath.Join(env.Root, "research"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	dir, source := initAccountCentric(t, env, "parser")
	canonical, _ := paths.Canonicalize(dir)

	converted, err := newTestEngine(env, true).Convert(dir, paths.ModeWorkset, migrate.Options{
		Workset: "research",
		Name:    "parser",
	})
	if err != nil {
		t.Fatalf("Convert into workset: %v", err)
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("original project directory survived")
	}
	if _, err := os.Stat(source.MetadataPath); !os.IsNotExist(err) {
		t.Error("account-centric metadata survived")
	}

	workspace := filepath.Join(ws.WorkspacesDir(), "parser")
	if got := testutil.ReadFile(t, filepath.Join(workspace, "main.go")); got != "package main\n" {
		t.Errorf("workspace content = %q", got)
	}
	if _, err := os.Stat(filepath.Join(workspace, paths.VaultDirName)); !os.IsNotExist(err) {
		t.Error("vault directory left inside the workspace")
	}
	if got := testutil.ReadFile(t, filepath.Join(ws.ProjectsDir(), "parser", "settings.yaml")); got != "theme: dark\n" {
		t.Errorf("member metadata = %q", got)
	}
	if _, err := os.Stat(filepath.Join(ws.ProjectsDir(), "parser", paths.BreadcrumbName)); !os.IsNotExist(err) {
		t.Error("breadcrumb carried into workset metadata")
	}
	if got := testutil.ReadFile(t, filepath.Join(ws.ShellDir(), "parser", ".history")); got != "make test\n" {
		t.Errorf("member home = %q", got)
	}
	if got := testutil.ReadFile(t, filepath.Join(ws.VaultDir(), "parser", paths.VaultRWDirName, "notes.md")); got != "shared notes\n" {
		t.Errorf("member vault = %q", got)
	}
	if _, err := os.Stat(filepath.Join(ws.VaultDir(), "parser", ".gitignore")); !os.IsNotExist(err) {
		t.Error("vault .gitignore carried into the workset")
	}

	reloaded, err := env.Registry.Load("research")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	member, ok := reloaded.Member("parser")
	if !ok || member.SourcePath != canonical {
		t.Errorf("member = %+v, ok=%t, want source path %s", member, ok, canonical)
	}
	if converted.Mode != paths.ModeWorkset {
		t.Errorf("mode = %v, want workset", converted.Mode)
	}
}

func TestConvertOutOfWorkset(t *testing.T) {
	env := testutil.NewEnv(t)
	if _, err := env.Registry.Create("research", filepath.Join(env.Root, "research")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dir, _ := initAccountCentric(t, env, "parser")
	engine := newTestEngine(env, true)

	if _, err := engine.Convert(dir, paths.ModeWorkset, migrate.Options{Workset: "research", Name: "parser"}); err != nil {
		t.Fatalf("Convert into workset: %v", err)
	}
	ws, err := env.Registry.Load("research")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	workspace := filepath.Join(ws.WorkspacesDir(), "parser")

	restored, err := engine.Convert(workspace, paths.ModeAccountCentric, migrate.Options{})
	if err != nil {
		t.Fatalf("Convert out of workset: %v", err)
	}

	// Back at the recorded source path, fully account-centric again.
	canonical, _ := paths.Canonicalize(dir)
	if restored.ProjectPath != canonical {
		t.Errorf("restored at %s, want recorded source path %s", restored.ProjectPath, canonical)
	}
	if got := testutil.ReadFile(t, filepath.Join(dir, "main.go")); got != "package main\n" {
		t.Errorf("working tree = %q", got)
	}
	if got := testutil.ReadFile(t, filepath.Join(restored.MetadataPath, "settings.yaml")); got != "theme: dark\n" {
		t.Errorf("metadata = %q", got)
	}
	if got := testutil.ReadFile(t, filepath.Join(restored.HomePath, ".history")); got != "make test\n" {
		t.Errorf("home = %q", got)
	}
	if got := testutil.ReadFile(t, filepath.Join(restored.VaultRWPath, "notes.md")); got != "shared notes\n" {
		t.Errorf("vault = %q", got)
	}
	if got := testutil.ReadFile(t, filepath.Join(restored.VaultDir(), ".gitignore")); got != "share-rw/\n" {
		t.Errorf("vault .gitignore = %q", got)
	}
	if got := testutil.ReadFile(t, restored.BreadcrumbPath()); got != canonical+"\n" {
		t.Errorf("breadcrumb = %q", got)
	}

	// The workset forgot the member entirely.
	reloaded, err := env.Registry.Load("research")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := reloaded.Member("parser"); ok {
		t.Error("member still in manifest")
	}
	for _, stale := range []string{
		workspace,
		filepath.Join(ws.ProjectsDir(), "parser"),
		filepath.Join(ws.ShellDir(), "parser"),
		filepath.Join(ws.VaultDir(), "parser"),
	} {
		if _, err := os.Stat(stale); !os.IsNotExist(err) {
			t.Errorf("workset residue at %s", stale)
		}
	}
}

func TestConvertIntoWorksetNameCollision(t *testing.T) {
	env := testutil.NewEnv(t)
	ws, err := env.Registry.Create("research", filepath.Join(env.Root, "research"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := workset.AddProject(ws, "parser", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	dir, _ := initAccountCentric(t, env, "parser")
	manifestBefore := testutil.ReadFile(t, ws.ManifestPath())
	projectBefore := testutil.TreeSnapshot(t, dir)

	_, err = newTestEngine(env, true).Convert(dir, paths.ModeWorkset, migrate.Options{
		Workset: "research",
		Name:    "parser",
	})
	if !errors.Is(err, migrate.ErrAlreadyExists) {
		t.Fatalf("error = %v, want ErrAlreadyExists", err)
	}
	if got := testutil.ReadFile(t, ws.ManifestPath()); got != manifestBefore {
		t.Error("manifest changed on rejected conversion")
	}
	if diff := testutil.DiffSnapshots(projectBefore, testutil.TreeSnapshot(t, dir)); diff != "" {
		t.Errorf("project mutated on rejected conversion:\n%s", diff)
	}
}
