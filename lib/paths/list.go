// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/doctorjei/kanibako/lib/workset"
)

// ProjectEntry describes one account-centric metadata directory found
// under the projects directory.
type ProjectEntry struct {
	// Hash is the metadata directory name (the project hash).
	Hash string

	// MetadataPath is the metadata directory itself.
	MetadataPath string

	// ProjectPath is the breadcrumb's recorded path, "" when unknown.
	ProjectPath string

	// Status is "ok" when the recorded project directory exists,
	// "missing" when it does not, and "unknown" when no breadcrumb
	// maps the hash back to a path.
	Status string
}

// ListProjects scans the account-centric projects directory and
// cross-references each entry's breadcrumb against the filesystem.
// Entries are sorted by hash. A missing projects directory yields an
// empty list.
func ListProjects(std *StandardPaths) ([]ProjectEntry, error) {
	entries, err := os.ReadDir(std.ProjectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", std.ProjectsDir, err)
	}

	var projects []ProjectEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metadataPath := filepath.Join(std.ProjectsDir, entry.Name())
		project := ProjectEntry{
			Hash:         entry.Name(),
			MetadataPath: metadataPath,
			ProjectPath:  ReadBreadcrumb(filepath.Join(metadataPath, BreadcrumbName)),
		}
		switch {
		case project.ProjectPath == "":
			project.Status = "unknown"
		case isDir(project.ProjectPath):
			project.Status = "ok"
		default:
			project.Status = "missing"
		}
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Hash < projects[j].Hash })
	return projects, nil
}

// WorksetListing is one registered workset together with the on-disk
// status of each of its members.
type WorksetListing struct {
	Workset *workset.Workset
	Members []WorksetMemberEntry
}

// WorksetMemberEntry is one workset member with its health status as
// reported by [workset.Workset.MemberStatus].
type WorksetMemberEntry struct {
	Name       string
	SourcePath string
	Status     string
}

// ListWorksetProjects loads every registered workset and reports each
// member's status. Worksets whose manifest cannot be read are skipped
// with a warning so one broken root does not hide the rest.
func ListWorksetProjects(reg *workset.Registry, logger *slog.Logger) ([]WorksetListing, error) {
	names, _, err := reg.List()
	if err != nil {
		return nil, err
	}

	var listings []WorksetListing
	for _, name := range names {
		ws, err := reg.Load(name)
		if err != nil {
			logger.Warn("skipping unreadable workset",
				"workset", name,
				"error", err)
			continue
		}
		listing := WorksetListing{Workset: ws}
		for _, member := range ws.Members {
			listing.Members = append(listing.Members, WorksetMemberEntry{
				Name:       member.Name,
				SourcePath: member.SourcePath,
				Status:     ws.MemberStatus(member.Name),
			})
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
