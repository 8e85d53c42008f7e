// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package vaultcmd

import (
	"path/filepath"
	"testing"

	"github.com/doctorjei/kanibako/lib/paths"
	"github.com/doctorjei/kanibako/lib/testutil"
	"github.com/doctorjei/kanibako/lib/vault"
)

func TestPruneKeepZeroRemovesEverything(t *testing.T) {
	env := testutil.NewEnv(t)
	dir := env.ProjectDir(t, "alpha")
	project, err := paths.ResolveProject(env.Std, dir, true)
	if err != nil {
		t.Fatalf("ResolveProject: %v", err)
	}
	for _, stamp := range []string{"20240101T000000Z", "20240201T000000Z", "20240301T000000Z"} {
		testutil.WriteFile(t, filepath.Join(vault.VersionsDir(project.VaultRWPath), stamp+vault.SnapshotSuffix), "")
	}

	// Without --keep the configured limit applies, and three snapshots
	// sit well under it.
	if err := newPruneCommand().Execute([]string{"--project", dir}); err != nil {
		t.Fatalf("prune: %v", err)
	}
	snapshots, err := vault.ListSnapshots(project.VaultRWPath)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("got %d snapshots after default prune, want 3", len(snapshots))
	}

	// An explicit --keep 0 removes everything.
	if err := newPruneCommand().Execute([]string{"--project", dir, "--keep", "0"}); err != nil {
		t.Fatalf("prune --keep 0: %v", err)
	}
	snapshots, err = vault.ListSnapshots(project.VaultRWPath)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snapshots) != 0 {
		t.Errorf("got %d snapshots after --keep 0, want none", len(snapshots))
	}
}
