// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides filesystem helpers shared by the package
// tests: scratch environments, tree builders, and tree snapshots for
// before/after comparison.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/doctorjei/kanibako/lib/config"
	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/workset"
)

// Env is a self-contained kanibako environment rooted in a scratch
// directory: XDG variables point inside it, so nothing a test does can
// touch the real user directories.
type Env struct {
	Root     string
	Config   *config.Config
	Std      *paths.StandardPaths
	Registry *workset.Registry
}

// NewEnv builds a scratch environment. XDG variables are redirected
// with t.Setenv, so tests using NewEnv must not call t.Parallel.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))

	cfg := config.Default()
	std, err := paths.LoadStandardPaths(cfg)
	if err != nil {
		t.Fatalf("LoadStandardPaths: %v", err)
	}
	return &Env{
		Root:     root,
		Config:   cfg,
		Std:      std,
		Registry: workset.NewRegistry(std.RegistryFile()),
	}
}

// ProjectDir creates a project directory with a couple of working-tree
// files and returns its path.
func (e *Env) ProjectDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(e.Root, "work", name)
	WriteFile(t, filepath.Join(dir, "main.go"), "package main\n")
	WriteFile(t, filepath.Join(dir, "docs", "notes.md"), "# "+name+"\n")
	return dir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadFile returns the file's content as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// TreeSnapshot captures a directory tree as a sorted relative-path →
// content map. Directories appear with a trailing slash and empty
// content; symlinks record their target. Comparing two snapshots with
// reflect.DeepEqual checks structure and content in one step. A
// missing root yields an empty map.
func TreeSnapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	snapshot := map[string]string{}
	if _, err := os.Stat(root); err != nil {
		return snapshot
	}
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		relative, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relative = filepath.ToSlash(relative)
		switch {
		case entry.IsDir():
			snapshot[relative+"/"] = ""
		case entry.Type()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			snapshot[relative] = "-> " + target
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			snapshot[relative] = string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("snapshotting %s: %v", root, err)
	}
	return snapshot
}

// DiffSnapshots renders the differences between two tree snapshots for
// test failure messages, one line per changed entry.
func DiffSnapshots(before, after map[string]string) string {
	var lines []string
	for path, content := range before {
		if got, ok := after[path]; !ok {
			lines = append(lines, "removed: "+path)
		} else if got != content {
			lines = append(lines, "changed: "+path)
		}
	}
	for path := range after {
		if _, ok := before[path]; !ok {
			lines = append(lines, "added: "+path)
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
