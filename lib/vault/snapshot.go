// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault versions the writable side of a project's shared
// directory pair. Snapshots are zstd-compressed tar archives of the
// share-rw tree, named by UTC timestamp so lexicographic order is
// chronological, stored in a .versions directory next to the share
// pair.
package vault

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// SnapshotSuffix is the archive file extension.
const SnapshotSuffix = ".tar.zst"

// VersionsDirName is the snapshot directory, a sibling of the
// share-ro/share-rw pair.
const VersionsDirName = ".versions"

// timestampLayout names snapshots; second resolution, UTC. Two
// snapshots within the same second collapse to one file, last writer
// wins.
const timestampLayout = "20060102T150405Z"

// ErrSnapshotNotFound indicates the named snapshot does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot describes one stored archive.
type Snapshot struct {
	// Name is the archive file name, timestamp plus suffix.
	Name string

	// CreatedAt is the snapshot time parsed back out of the name.
	CreatedAt time.Time

	// Size is the compressed archive size in bytes.
	Size int64
}

// FormatCreatedAt renders the snapshot time for display.
func (s Snapshot) FormatCreatedAt() string {
	return s.CreatedAt.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// VersionsDir returns the snapshot directory for a share-rw path.
func VersionsDir(shareRW string) string {
	return filepath.Join(filepath.Dir(shareRW), VersionsDirName)
}

// CreateSnapshot archives the current share-rw contents and returns
// the snapshot name. An empty or missing share-rw is a no-op returning
// "" — there is nothing worth versioning and no archive is written.
func CreateSnapshot(shareRW string) (string, error) {
	entries, err := os.ReadDir(shareRW)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("listing %s: %w", shareRW, err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	versionsDir := VersionsDir(shareRW)
	if err := os.MkdirAll(versionsDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", versionsDir, err)
	}

	name := time.Now().UTC().Format(timestampLayout) + SnapshotSuffix
	archivePath := filepath.Join(versionsDir, name)
	if err := writeArchive(shareRW, archivePath); err != nil {
		os.Remove(archivePath)
		return "", err
	}
	return name, nil
}

func writeArchive(shareRW, archivePath string) error {
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating snapshot %s: %w", archivePath, err)
	}
	defer file.Close()

	compressor, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("initializing snapshot compressor: %w", err)
	}
	archive := tar.NewWriter(compressor)

	err = filepath.WalkDir(shareRW, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == shareRW {
			return nil
		}
		relative, err := filepath.Rel(shareRW, path)
		if err != nil {
			return err
		}
		relative = filepath.ToSlash(relative)

		info, err := entry.Info()
		if err != nil {
			return err
		}
		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			if linkTarget, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}
		header.Name = relative
		if entry.IsDir() {
			header.Name += "/"
		}
		if err := archive.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		source, err := os.Open(path)
		if err != nil {
			return err
		}
		defer source.Close()
		_, err = io.Copy(archive, source)
		return err
	})
	if err != nil {
		archive.Close()
		compressor.Close()
		return fmt.Errorf("archiving %s: %w", shareRW, err)
	}

	if err := archive.Close(); err != nil {
		compressor.Close()
		return fmt.Errorf("finishing snapshot archive: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("finishing snapshot compression: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("finishing snapshot %s: %w", archivePath, err)
	}
	return nil
}

// ListSnapshots returns the stored snapshots in ascending timestamp
// order. A missing versions directory yields an empty list. Files that
// do not look like snapshots are ignored.
func ListSnapshots(shareRW string) ([]Snapshot, error) {
	versionsDir := VersionsDir(shareRW)
	entries, err := os.ReadDir(versionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", versionsDir, err)
	}

	var snapshots []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, SnapshotSuffix) {
			continue
		}
		createdAt, err := time.Parse(timestampLayout, strings.TrimSuffix(name, SnapshotSuffix))
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		snapshots = append(snapshots, Snapshot{
			Name:      name,
			CreatedAt: createdAt,
			Size:      info.Size(),
		})
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	return snapshots, nil
}

// RestoreSnapshot replaces the share-rw contents with the named
// snapshot's contents exactly: files created since the snapshot are
// removed, not merged. Returns [ErrSnapshotNotFound] for an unknown
// name.
func RestoreSnapshot(shareRW, name string) error {
	archivePath := filepath.Join(VersionsDir(shareRW), name)
	file, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
		}
		return fmt.Errorf("opening snapshot %s: %w", archivePath, err)
	}
	defer file.Close()

	decompressor, err := zstd.NewReader(file)
	if err != nil {
		return fmt.Errorf("initializing snapshot decompressor: %w", err)
	}
	defer decompressor.Close()

	if err := clearDir(shareRW); err != nil {
		return err
	}
	return extractArchive(tar.NewReader(decompressor), shareRW)
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("clearing %s: %w", dir, err)
		}
	}
	return nil
}

func extractArchive(archive *tar.Reader, destination string) error {
	for {
		header, err := archive.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading snapshot archive: %w", err)
		}

		target, err := sanitizePath(destination, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, header.FileInfo().Mode().Perm())
			if err != nil {
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
			if _, err := io.Copy(out, archive); err != nil {
				out.Close()
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("extracting %s: %w", header.Name, err)
			}
		}
	}
}

// sanitizePath rejects archive entries that would escape the
// destination directory.
func sanitizePath(destination, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("snapshot entry escapes destination: %q", name)
	}
	return filepath.Join(destination, cleaned), nil
}

// PruneSnapshots keeps the most recent keep snapshots and deletes the
// rest, returning how many were removed. keep <= 0 removes everything.
func PruneSnapshots(shareRW string, keep int) (int, error) {
	snapshots, err := ListSnapshots(shareRW)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(snapshots) <= keep {
		return 0, nil
	}

	versionsDir := VersionsDir(shareRW)
	excess := snapshots[:len(snapshots)-keep]
	for _, snapshot := range excess {
		if err := os.Remove(filepath.Join(versionsDir, snapshot.Name)); err != nil {
			return 0, fmt.Errorf("removing snapshot %s: %w", snapshot.Name, err)
		}
	}
	return len(excess), nil
}

// AutoSnapshot takes a snapshot and then prunes to maxSnapshots. It is
// the pre-session hook: failures are logged and swallowed so a vault
// problem never blocks a session from starting.
func AutoSnapshot(shareRW string, maxSnapshots int, logger *slog.Logger) string {
	name, err := CreateSnapshot(shareRW)
	if err != nil {
		logger.Warn("vault auto-snapshot failed", "path", shareRW, "error", err)
		return ""
	}
	if name == "" {
		return ""
	}
	if _, err := PruneSnapshots(shareRW, maxSnapshots); err != nil {
		logger.Warn("vault snapshot pruning failed", "path", shareRW, "error", err)
	}
	return name
}
