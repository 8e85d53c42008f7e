// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package workset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	return NewRegistry(filepath.Join(root, "worksets.yaml")), root
}

func TestCreateLaysOutRoot(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)

	ws, err := registry.Create("research", filepath.Join(root, "research"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, dir := range []string{ws.WorkspacesDir(), ws.ProjectsDir(), ws.VaultDir(), ws.ShellDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("canonical directory %s not created: %v", dir, err)
		}
	}
	if _, err := os.Stat(ws.ManifestPath()); err != nil {
		t.Errorf("manifest not written: %v", err)
	}

	loaded, err := registry.Load("research")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != "research" || loaded.Root != ws.Root {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestCreateRejectsCollisions(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)
	if _, err := registry.Create("research", filepath.Join(root, "research")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := registry.Create("research", filepath.Join(root, "other")); !errors.Is(err, ErrNameCollision) {
		t.Errorf("duplicate name error = %v, want ErrNameCollision", err)
	}
	if _, err := registry.Create("other", filepath.Join(root, "research")); !errors.Is(err, ErrNameCollision) {
		t.Errorf("existing root error = %v, want ErrNameCollision", err)
	}
	if _, err := registry.Create("", filepath.Join(root, "unnamed")); err == nil {
		t.Error("empty name accepted")
	}
}

func TestLoadUnregistered(t *testing.T) {
	t.Parallel()
	registry, _ := newTestRegistry(t)
	if _, err := registry.Load("ghost"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("error = %v, want ErrNotRegistered", err)
	}
}

func TestListSorted(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := registry.Create(name, filepath.Join(root, name)); err != nil {
			t.Fatalf("Create(%s): %v", name, err)
		}
	}
	names, roots, err := registry.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("names = %v, want %v", names, want)
		}
		if roots[name] == "" {
			t.Errorf("no root recorded for %s", name)
		}
	}
}

func TestAddProjectCreatesSkeleton(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)
	ws, err := registry.Create("team", filepath.Join(root, "team"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := AddProject(ws, "parser", "/old/home/parser"); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	skeleton := []string{
		filepath.Join(ws.WorkspacesDir(), "parser"),
		filepath.Join(ws.ProjectsDir(), "parser"),
		filepath.Join(ws.ShellDir(), "parser"),
		filepath.Join(ws.VaultDir(), "parser", "share-ro"),
		filepath.Join(ws.VaultDir(), "parser", "share-rw"),
	}
	for _, dir := range skeleton {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("skeleton directory %s not created: %v", dir, err)
		}
	}

	reloaded, err := LoadManifest(ws.Root)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	member, ok := reloaded.Member("parser")
	if !ok || member.SourcePath != "/old/home/parser" {
		t.Errorf("member = %+v, ok = %t", member, ok)
	}
	if got := reloaded.MemberStatus("parser"); got != "ok" {
		t.Errorf("MemberStatus = %q, want ok", got)
	}
}

func TestAddProjectCollisionLeavesManifestUntouched(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)
	ws, err := registry.Create("team", filepath.Join(root, "team"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := AddProject(ws, "parser", "/first"); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
	before, err := os.ReadFile(ws.ManifestPath())
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}

	if err := AddProject(ws, "parser", "/second"); !errors.Is(err, ErrNameCollision) {
		t.Fatalf("duplicate member error = %v, want ErrNameCollision", err)
	}
	after, err := os.ReadFile(ws.ManifestPath())
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if string(before) != string(after) {
		t.Error("manifest changed on rejected add")
	}
}

func TestRemoveProject(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)
	ws, err := registry.Create("team", filepath.Join(root, "team"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := AddProject(ws, "parser", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	if err := RemoveProject(ws, "ghost", false); !errors.Is(err, ErrProjectNotInWorkset) {
		t.Errorf("unknown member error = %v, want ErrProjectNotInWorkset", err)
	}

	if err := RemoveProject(ws, "parser", true); err != nil {
		t.Fatalf("RemoveProject: %v", err)
	}
	for _, dir := range []string{
		filepath.Join(ws.ProjectsDir(), "parser"),
		filepath.Join(ws.VaultDir(), "parser"),
		filepath.Join(ws.ShellDir(), "parser"),
	} {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("member directory %s not removed", dir)
		}
	}
	// The workspace survives even with removeFiles.
	if _, err := os.Stat(filepath.Join(ws.WorkspacesDir(), "parser")); err != nil {
		t.Errorf("workspace removed: %v", err)
	}
	if _, ok := ws.Member("parser"); ok {
		t.Error("member still in manifest")
	}
}

func TestDeleteWorkset(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)
	ws, err := registry.Create("doomed", filepath.Join(root, "doomed"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := registry.Delete("doomed", true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Error("root not removed with removeFiles")
	}
	if _, err := registry.Load("doomed"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Load after delete = %v, want ErrNotRegistered", err)
	}
	if err := registry.Delete("doomed", false); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("second delete = %v, want ErrNotRegistered", err)
	}
}

func TestMemberStatusVariants(t *testing.T) {
	t.Parallel()
	registry, root := newTestRegistry(t)
	ws, err := registry.Create("team", filepath.Join(root, "team"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := AddProject(ws, "parser", ""); err != nil {
		t.Fatalf("AddProject: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(ws.WorkspacesDir(), "parser")); err != nil {
		t.Fatalf("removing workspace: %v", err)
	}
	if got := ws.MemberStatus("parser"); got != "missing" {
		t.Errorf("status without workspace = %q, want missing", got)
	}

	if err := os.RemoveAll(filepath.Join(ws.ProjectsDir(), "parser")); err != nil {
		t.Fatalf("removing metadata: %v", err)
	}
	if got := ws.MemberStatus("parser"); got != "no-data" {
		t.Errorf("status without metadata = %q, want no-data", got)
	}
}
