// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if cfg.Paths.RelativeDir != "kanibako" {
		t.Errorf("RelativeDir = %q", cfg.Paths.RelativeDir)
	}
	if cfg.Paths.ProjectsDir != "projects" {
		t.Errorf("ProjectsDir = %q", cfg.Paths.ProjectsDir)
	}
	if cfg.Vault.MaxSnapshots != 10 {
		t.Errorf("MaxSnapshots = %d", cfg.Vault.MaxSnapshots)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, ErrConfigMissing) {
		t.Errorf("error = %v, want ErrConfigMissing", err)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "kanibako.yaml")
	content := "paths:\n  relative_dir: kani-test\nvault:\n  max_snapshots: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.RelativeDir != "kani-test" {
		t.Errorf("RelativeDir = %q, want override", cfg.Paths.RelativeDir)
	}
	if cfg.Paths.ProjectsDir != "projects" {
		t.Errorf("ProjectsDir = %q, want default preserved", cfg.Paths.ProjectsDir)
	}
	if cfg.Vault.MaxSnapshots != 3 {
		t.Errorf("MaxSnapshots = %d, want 3", cfg.Vault.MaxSnapshots)
	}
}

func TestLoadFileExpandsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanibako.yaml")
	content := "paths:\n  relative_dir: ${KANIBAKO_TEST_DIR:-fallback}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.RelativeDir != "fallback" {
		t.Errorf("RelativeDir = %q, want default expansion", cfg.Paths.RelativeDir)
	}

	t.Setenv("KANIBAKO_TEST_DIR", "from-env")
	cfg, err = LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.RelativeDir != "from-env" {
		t.Errorf("RelativeDir = %q, want env expansion", cfg.Paths.RelativeDir)
	}
}

func TestValidateRejectsPathEscapes(t *testing.T) {
	t.Parallel()
	cases := []string{"/absolute", "../parent", "nested/dir", ""}
	for _, value := range cases {
		cfg := Default()
		cfg.Paths.ProjectsDir = value
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate accepted projects_dir %q", value)
		}
	}
}

func TestValidateRejectsNegativeRetention(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Vault.MaxSnapshots = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "max_snapshots") {
		t.Errorf("Validate error = %v, want max_snapshots complaint", err)
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", "kanibako.yaml")
	original := Default()
	original.Container.Image = "example.com/image:tag"
	if err := original.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if loaded.Container.Image != "example.com/image:tag" {
		t.Errorf("Image = %q after round trip", loaded.Container.Image)
	}
}
