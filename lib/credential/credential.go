// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential seeds a project's agent home directory from the
// central credential template. The template is an opaque file tree —
// kanibako copies it byte-for-byte and never interprets the contents.
// Refreshing credentials inside a running session is the session
// manager's job, not this package's.
package credential

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doctorjei/kanibako/lib/fsutil"
)

// agentConfigDir is the dot-directory inside the agent home that
// receives the template's directory contents.
const agentConfigDir = ".claude"

// agentConfigFile is the top-level agent config file inside the home.
const agentConfigFile = ".claude.json"

// CopyTemplateInto seeds homePath from the credential template at
// templateDir.
//
// The template keeps the central-store layout: a single subdirectory
// holding credential files, plus loose top-level config files. The
// subdirectory's files land in home/.claude/; a loose file named
// "claude.json" lands as home/.claude.json (already-dotted names are
// kept as-is).
//
// When no template exists, the minimal empty structure is created
// instead so a session can still start and log in interactively.
// Seeding happens once per home — callers must not re-invoke this on
// an existing home, or a live session's refreshed credentials would be
// rolled back to the template.
func CopyTemplateInto(templateDir, homePath string) error {
	info, err := os.Stat(templateDir)
	if err != nil || !info.IsDir() {
		return writeMinimal(homePath)
	}

	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return fmt.Errorf("listing credential template %s: %w", templateDir, err)
	}
	if err := os.MkdirAll(homePath, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", homePath, err)
	}

	for _, entry := range entries {
		sourcePath := filepath.Join(templateDir, entry.Name())
		switch {
		case entry.IsDir():
			targetDir := filepath.Join(homePath, agentConfigDir)
			if err := os.MkdirAll(targetDir, 0o700); err != nil {
				return fmt.Errorf("creating %s: %w", targetDir, err)
			}
			files, err := os.ReadDir(sourcePath)
			if err != nil {
				return fmt.Errorf("listing credential template %s: %w", sourcePath, err)
			}
			for _, file := range files {
				if !file.Type().IsRegular() {
					continue
				}
				if err := fsutil.CopyFile(
					filepath.Join(sourcePath, file.Name()),
					filepath.Join(targetDir, file.Name()),
				); err != nil {
					return err
				}
			}
		case entry.Type().IsRegular():
			name := entry.Name()
			if !strings.HasPrefix(name, ".") {
				name = "." + name
			}
			if err := fsutil.CopyFile(sourcePath, filepath.Join(homePath, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeMinimal creates the empty structure a session needs when no
// credential template has been installed.
func writeMinimal(homePath string) error {
	if err := os.MkdirAll(filepath.Join(homePath, agentConfigDir), 0o700); err != nil {
		return fmt.Errorf("creating minimal credential structure: %w", err)
	}
	configFile := filepath.Join(homePath, agentConfigFile)
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := os.WriteFile(configFile, nil, 0o600); err != nil {
			return fmt.Errorf("creating %s: %w", configFile, err)
		}
	}
	return nil
}
