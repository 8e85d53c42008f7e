// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package workset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// RegistryFileName is the global registry file under the kanibako
	// data directory, mapping workset names to root directories.
	RegistryFileName = "worksets.yaml"

	// ManifestFileName is the per-workset manifest at the workset root.
	ManifestFileName = "workset.yaml"
)

// Sentinel errors for workset operations. All are pure precondition
// guards: when one is returned, nothing on disk has changed.
var (
	// ErrNotRegistered indicates the named workset does not appear in
	// the global registry.
	ErrNotRegistered = errors.New("workset not registered")

	// ErrNameCollision indicates a name is already taken — either a
	// workset name in the global registry or a member name within a
	// workset manifest.
	ErrNameCollision = errors.New("name already in use")

	// ErrProjectNotInWorkset indicates the named member does not appear
	// in the workset's manifest.
	ErrProjectNotInWorkset = errors.New("project not in workset")
)

// Member is one project registered in a workset: a name (the key for
// all per-member directories) and the directory the project originally
// lived at before it was moved into the workset. The source path is
// the default destination when the project is later converted back out.
type Member struct {
	Name       string `yaml:"name"`
	SourcePath string `yaml:"source_path"`
}

// Workset is a named root directory holding multiple projects keyed by
// name instead of path hash. The root owns four canonical
// subdirectories: workspaces (the working trees), projects (per-member
// metadata), vault (per-member share directories), and shell
// (per-member home trees).
type Workset struct {
	Name      string    `yaml:"name"`
	CreatedAt time.Time `yaml:"created"`
	Members   []Member  `yaml:"projects"`

	// Root is the workset's base directory. It comes from the global
	// registry, not the manifest, so a workset root can be relocated by
	// editing one registry entry.
	Root string `yaml:"-"`
}

// WorkspacesDir returns the directory holding member working trees.
func (w *Workset) WorkspacesDir() string { return filepath.Join(w.Root, "workspaces") }

// ProjectsDir returns the directory holding member metadata trees.
func (w *Workset) ProjectsDir() string { return filepath.Join(w.Root, "projects") }

// VaultDir returns the directory holding member vault trees.
func (w *Workset) VaultDir() string { return filepath.Join(w.Root, "vault") }

// ShellDir returns the directory holding member home trees.
func (w *Workset) ShellDir() string { return filepath.Join(w.Root, "shell") }

// ManifestPath returns the path of the workset's manifest file.
func (w *Workset) ManifestPath() string { return filepath.Join(w.Root, ManifestFileName) }

// Member returns the named member and whether it exists.
func (w *Workset) Member(name string) (Member, bool) {
	for _, member := range w.Members {
		if member.Name == name {
			return member, true
		}
	}
	return Member{}, false
}

// MemberStatus reports the on-disk health of a member by
// cross-referencing the manifest against actual directory presence:
// "ok" when both the metadata dir and the workspace exist, "missing"
// when the workspace is absent, "no-data" when the metadata dir is
// absent.
func (w *Workset) MemberStatus(name string) string {
	hasProjectDir := isDir(filepath.Join(w.ProjectsDir(), name))
	hasWorkspace := isDir(filepath.Join(w.WorkspacesDir(), name))
	switch {
	case hasProjectDir && hasWorkspace:
		return "ok"
	case hasProjectDir:
		return "missing"
	default:
		return "no-data"
	}
}

// saveManifest writes the manifest to the workset root.
func (w *Workset) saveManifest() error {
	data, err := yaml.Marshal(w)
	if err != nil {
		return fmt.Errorf("encoding workset manifest: %w", err)
	}
	if err := os.WriteFile(w.ManifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing workset manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest at root/workset.yaml.
func LoadManifest(root string) (*Workset, error) {
	manifestPath := filepath.Join(root, ManifestFileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading workset manifest %s: %w", manifestPath, err)
	}
	ws := &Workset{}
	if err := yaml.Unmarshal(data, ws); err != nil {
		return nil, fmt.Errorf("parsing workset manifest %s: %w", manifestPath, err)
	}
	ws.Root = root
	return ws, nil
}

// Registry is the global name → root mapping, backed by a single YAML
// file. Every workset operation goes through a Registry value so tests
// can point it at a scratch file; there is no package-level state.
//
// The registry file is read and rewritten without locking. Two
// processes racing a create/delete can lose one of the writes; this is
// an accepted limitation of the single-file design.
type Registry struct {
	path string
}

// NewRegistry returns a registry bound to the given file path. The
// file does not need to exist yet — an absent file reads as an empty
// registry.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// registryFile is the on-disk shape of the global registry.
type registryFile struct {
	Worksets map[string]string `yaml:"worksets"`
}

func (r *Registry) read() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading workset registry %s: %w", r.path, err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing workset registry %s: %w", r.path, err)
	}
	if file.Worksets == nil {
		file.Worksets = map[string]string{}
	}
	return file.Worksets, nil
}

func (r *Registry) write(worksets map[string]string) error {
	data, err := yaml.Marshal(registryFile{Worksets: worksets})
	if err != nil {
		return fmt.Errorf("encoding workset registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("writing workset registry %s: %w", r.path, err)
	}
	return nil
}

// List returns the registered workset names and roots, names sorted.
func (r *Registry) List() ([]string, map[string]string, error) {
	worksets, err := r.read()
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(worksets))
	for name := range worksets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, worksets, nil
}

// Load returns the named workset with its manifest loaded.
func (r *Registry) Load(name string) (*Workset, error) {
	worksets, err := r.read()
	if err != nil {
		return nil, err
	}
	root, ok := worksets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registry: %s)", ErrNotRegistered, name, r.path)
	}
	return LoadManifest(root)
}

// Create registers a new workset and lays out its root: the four
// canonical subdirectories plus an empty manifest. The name must be
// non-empty and unregistered; the root must not already exist.
func (r *Registry) Create(name, root string) (*Workset, error) {
	if name == "" {
		return nil, fmt.Errorf("workset name must not be empty")
	}
	worksets, err := r.read()
	if err != nil {
		return nil, err
	}
	if existing, ok := worksets[name]; ok {
		return nil, fmt.Errorf("%w: workset %q already registered at %s", ErrNameCollision, name, existing)
	}

	root, err = filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workset root: %w", err)
	}
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("%w: workset root already exists: %s", ErrNameCollision, root)
	}

	ws := &Workset{
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Root:      root,
	}
	for _, dir := range []string{ws.WorkspacesDir(), ws.ProjectsDir(), ws.VaultDir(), ws.ShellDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating workset directory %s: %w", dir, err)
		}
	}
	if err := ws.saveManifest(); err != nil {
		return nil, err
	}

	worksets[name] = root
	if err := r.write(worksets); err != nil {
		return nil, err
	}
	return ws, nil
}

// Delete removes the workset from the global registry. With
// removeFiles, the entire workset root (workspaces included) is
// recursively deleted.
func (r *Registry) Delete(name string, removeFiles bool) error {
	worksets, err := r.read()
	if err != nil {
		return err
	}
	root, ok := worksets[name]
	if !ok {
		return fmt.Errorf("%w: %q (registry: %s)", ErrNotRegistered, name, r.path)
	}

	delete(worksets, name)
	if err := r.write(worksets); err != nil {
		return err
	}

	if removeFiles {
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("removing workset root %s: %w", root, err)
		}
	}
	return nil
}

// AddProject records a new member and creates its skeleton
// directories under each of the workset's four roots. It performs no
// content copying — moving data into the workset is the migration
// engine's job.
func AddProject(ws *Workset, name, sourcePath string) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if _, ok := ws.Member(name); ok {
		return fmt.Errorf("%w: project %q already exists in workset %q", ErrNameCollision, name, ws.Name)
	}

	skeleton := []string{
		filepath.Join(ws.WorkspacesDir(), name),
		filepath.Join(ws.ProjectsDir(), name),
		filepath.Join(ws.ShellDir(), name),
		filepath.Join(ws.VaultDir(), name, "share-ro"),
		filepath.Join(ws.VaultDir(), name, "share-rw"),
	}
	for _, dir := range skeleton {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating member directory %s: %w", dir, err)
		}
	}

	ws.Members = append(ws.Members, Member{Name: name, SourcePath: sourcePath})
	return ws.saveManifest()
}

// RemoveProject deletes the member's manifest entry. With removeFiles,
// the member's metadata, vault, and shell directories are deleted; the
// workspace directory is left untouched so working-tree data is never
// destroyed as a side effect of unregistering.
func RemoveProject(ws *Workset, name string, removeFiles bool) error {
	index := -1
	for i, member := range ws.Members {
		if member.Name == name {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("%w: %q not found in workset %q", ErrProjectNotInWorkset, name, ws.Name)
	}

	ws.Members = append(ws.Members[:index], ws.Members[index+1:]...)
	if err := ws.saveManifest(); err != nil {
		return err
	}

	if removeFiles {
		for _, dir := range []string{
			filepath.Join(ws.ProjectsDir(), name),
			filepath.Join(ws.VaultDir(), name),
			filepath.Join(ws.ShellDir(), name),
		} {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("removing member directory %s: %w", dir, err)
			}
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
