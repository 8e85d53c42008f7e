// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package fsutil provides the filesystem primitives shared by the
// layout resolver, the migration engine, and the snapshot store:
// recursive copying with exclusions, emptiness checks, and
// same-filesystem detection.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// CopyTree recursively copies the directory tree at source into
// destination, creating destination if needed. Entries whose name (at
// any depth) appears in exclude are skipped. Regular files, directories,
// and symlinks are copied; file modes are preserved. Other entry types
// (sockets, devices) are skipped — project metadata never legitimately
// contains them.
//
// A failure mid-copy leaves the destination partially populated. The
// error is returned unwrapped of any retry logic: re-running a partial
// recursive copy risks mixing stale and fresh data, so the caller is
// expected to surface the error for manual inspection instead.
func CopyTree(source, destination string, exclude ...string) error {
	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}
	return copyTree(source, destination, excluded)
}

func copyTree(source, destination string, excluded map[string]bool) error {
	sourceInfo, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("reading copy source %s: %w", source, err)
	}
	if err := os.MkdirAll(destination, sourceInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("creating copy destination %s: %w", destination, err)
	}

	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("listing copy source %s: %w", source, err)
	}
	for _, entry := range entries {
		if excluded[entry.Name()] {
			continue
		}
		sourcePath := filepath.Join(source, entry.Name())
		destinationPath := filepath.Join(destination, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			target, err := os.Readlink(sourcePath)
			if err != nil {
				return fmt.Errorf("reading symlink %s: %w", sourcePath, err)
			}
			if err := os.Symlink(target, destinationPath); err != nil {
				return fmt.Errorf("creating symlink %s: %w", destinationPath, err)
			}
		case entry.IsDir():
			if err := copyTree(sourcePath, destinationPath, excluded); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := CopyFile(sourcePath, destinationPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyFile copies a single regular file, preserving its mode.
func CopyFile(source, destination string) error {
	sourceFile, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening %s: %w", source, err)
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}

	destinationFile, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", destination, err)
	}
	defer destinationFile.Close()

	if _, err := io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("copying %s to %s: %w", source, destination, err)
	}
	if err := destinationFile.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", destination, err)
	}
	return nil
}

// IsEmptyDir reports whether path is a directory containing no
// entries. A missing path reads as empty.
func IsEmptyDir(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("listing %s: %w", path, err)
	}
	return len(entries) == 0, nil
}

// SameDevice reports whether two paths live on the same filesystem, by
// comparing stat device IDs. When either path does not exist, its
// nearest existing parent is checked instead, so the question "would a
// rename into this location be atomic" can be answered before the
// destination exists.
func SameDevice(a, b string) (bool, error) {
	deviceA, err := deviceOf(a)
	if err != nil {
		return false, err
	}
	deviceB, err := deviceOf(b)
	if err != nil {
		return false, err
	}
	return deviceA == deviceB, nil
}

func deviceOf(path string) (uint64, error) {
	for {
		var stat unix.Stat_t
		err := unix.Stat(path, &stat)
		if err == nil {
			return uint64(stat.Dev), nil
		}
		if !os.IsNotExist(err) {
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}
		parent := filepath.Dir(path)
		if parent == path {
			return 0, fmt.Errorf("stat %s: no existing parent", path)
		}
		path = parent
	}
}
