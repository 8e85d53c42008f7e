// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doctorjei/kanibako/lib/config"
	"github.com/doctorjei/kanibako/lib/credential"
	"github.com/doctorjei/kanibako/lib/workset"
)

// On-disk names that form the project layout contract. These are
// protocol constants: existing installations depend on them.
const (
	// BreadcrumbName is the file inside an account-centric metadata
	// directory recording the project's canonical path (single line,
	// trailing newline). It is the only way to map a hash-keyed
	// directory back to its project.
	BreadcrumbName = "project-path.txt"

	// LockMarkerName is the advisory lock marker inside a metadata
	// directory. Its presence signals a possibly-active session; this
	// package only ever reads it — the session manager owns
	// acquisition and release.
	LockMarkerName = ".kanibako.lock"

	// MetadataDirName is the metadata directory created inside a
	// decentralized project.
	MetadataDirName = "kanibako"

	// HomeDirName is the agent home directory: nested in the metadata
	// directory for account-centric projects, at the project top level
	// for decentralized ones.
	HomeDirName = "home"

	// VaultDirName is the directory holding the share-ro/share-rw
	// pair inside a project (or under a workset's vault root).
	VaultDirName = "vault"

	// VaultRODirName holds owner-provided, read-only shared files.
	VaultRODirName = "share-ro"

	// VaultRWDirName holds agent-writable shared files; it is the only
	// vault directory the snapshot store versions.
	VaultRWDirName = "share-rw"
)

// ErrProjectNotFound indicates a project path does not exist as a
// directory, or that no metadata exists where an operation required it.
var ErrProjectNotFound = errors.New("project not found")

// ProjectMode says how a project's persistent state is organized on
// disk. Exactly one mode is authoritative for a canonical path at any
// time; changing it requires an explicit conversion.
type ProjectMode int

const (
	// ModeAccountCentric keeps metadata under the user's data
	// directory, keyed by project hash. The default for new projects.
	ModeAccountCentric ProjectMode = iota

	// ModeDecentralized keeps all state inside the project directory
	// itself; nothing is written to the data directory.
	ModeDecentralized

	// ModeWorkset keeps state under a named workset root, keyed by
	// member name instead of path hash.
	ModeWorkset
)

// String returns the user-facing mode name.
func (m ProjectMode) String() string {
	switch m {
	case ModeAccountCentric:
		return "account-centric"
	case ModeDecentralized:
		return "decentralized"
	case ModeWorkset:
		return "workset"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMode parses a user-facing mode name.
func ParseMode(name string) (ProjectMode, error) {
	switch name {
	case "account-centric":
		return ModeAccountCentric, nil
	case "decentralized":
		return ModeDecentralized, nil
	case "workset":
		return ModeWorkset, nil
	default:
		return 0, fmt.Errorf("unknown project mode %q (want account-centric, decentralized, or workset)", name)
	}
}

// StandardPaths holds the resolved kanibako base directories. Loaded
// once per invocation by [LoadStandardPaths] and read-only afterwards.
type StandardPaths struct {
	ConfigHome string
	DataHome   string
	StateHome  string
	CacheHome  string

	// ConfigFile is the resolved configuration file location.
	ConfigFile string

	// DataDir, StateDir, and CacheDir are the kanibako subdirectories
	// of the respective XDG bases. LoadStandardPaths creates them.
	DataDir  string
	StateDir string
	CacheDir string

	// ProjectsDir holds hash-keyed account-centric metadata.
	ProjectsDir string

	// CredentialsDir is the credential template root.
	CredentialsDir string
}

// RegistryFile returns the global workset registry location.
func (s *StandardPaths) RegistryFile() string {
	return filepath.Join(s.DataDir, workset.RegistryFileName)
}

// xdg resolves an XDG base directory from the environment, defaulting
// to the given suffix under the user's home.
func xdg(envVariable, defaultSuffix string) string {
	if value := os.Getenv(envVariable); value != "" {
		if absolute, err := filepath.Abs(value); err == nil {
			return absolute
		}
		return value
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultSuffix)
}

// LoadStandardPaths computes all standard kanibako directories from
// the XDG environment and the configuration, creating the data, state,
// and cache directories as needed.
func LoadStandardPaths(cfg *config.Config) (*StandardPaths, error) {
	std := &StandardPaths{
		ConfigHome: xdg("XDG_CONFIG_HOME", ".config"),
		DataHome:   xdg("XDG_DATA_HOME", filepath.Join(".local", "share")),
		StateHome:  xdg("XDG_STATE_HOME", filepath.Join(".local", "state")),
		CacheHome:  xdg("XDG_CACHE_HOME", ".cache"),
	}
	std.ConfigFile = filepath.Join(std.ConfigHome, "kanibako", "kanibako.yaml")
	std.DataDir = filepath.Join(std.DataHome, cfg.Paths.RelativeDir)
	std.StateDir = filepath.Join(std.StateHome, cfg.Paths.RelativeDir)
	std.CacheDir = filepath.Join(std.CacheHome, cfg.Paths.RelativeDir)
	std.ProjectsDir = filepath.Join(std.DataDir, cfg.Paths.ProjectsDir)
	std.CredentialsDir = filepath.Join(std.DataDir, cfg.Paths.CredentialsDir)

	for _, dir := range []string{std.DataDir, std.StateDir, std.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return std, nil
}

// ProjectPaths is the resolved path descriptor for one project. It is
// ephemeral — recomputed from canonical inputs on every invocation and
// never persisted.
type ProjectPaths struct {
	// ProjectPath is the canonical project directory (the working
	// tree the user edits, mounted into the session container).
	ProjectPath string

	// ProjectHash is the stable identity hash of ProjectPath.
	ProjectHash string

	// MetadataPath is the host-only metadata directory: settings,
	// breadcrumb, lock marker, and (in account-centric mode) the home
	// tree.
	MetadataPath string

	// HomePath is the persistent agent home, mounted as the session
	// user's home directory.
	HomePath string

	// VaultROPath and VaultRWPath are the shared directory pair.
	VaultROPath string
	VaultRWPath string

	// IsNew is true when this resolution performed first-time
	// initialization.
	IsNew bool

	// Mode identifies which layout produced these paths.
	Mode ProjectMode
}

// BreadcrumbPath returns the breadcrumb file location.
func (p *ProjectPaths) BreadcrumbPath() string {
	return filepath.Join(p.MetadataPath, BreadcrumbName)
}

// LockMarkerPath returns the advisory lock marker location.
func (p *ProjectPaths) LockMarkerPath() string {
	return filepath.Join(p.MetadataPath, LockMarkerName)
}

// Locked reports whether the advisory lock marker is present. This is
// a best-effort, point-in-time signal: presence suggests an active
// session, absence proves nothing.
func (p *ProjectPaths) Locked() bool {
	_, err := os.Stat(p.LockMarkerPath())
	return err == nil
}

// VaultDir returns the directory containing the share-ro/share-rw pair.
func (p *ProjectPaths) VaultDir() string {
	return filepath.Dir(p.VaultRWPath)
}

// Canonicalize resolves path to its absolute, symlink-resolved form
// and verifies it is an existing directory. An empty path means the
// current working directory. This canonical string is the sole input
// to identity hashing.
func Canonicalize(path string) (string, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		path = cwd
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", ErrProjectNotFound, absolute)
		}
		return "", fmt.Errorf("resolving %s: %w", absolute, err)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrProjectNotFound, resolved)
	}
	return resolved, nil
}

// ResolveProject resolves (and optionally initializes) account-centric
// paths for projectDir. With initialize, missing structure is created:
// first-time setup lays out the metadata directory, breadcrumb, home
// with shell skeleton and seeded credentials, and the vault pair;
// repeat calls self-heal a missing home or breadcrumb but never
// re-seed credentials into an existing home.
func ResolveProject(std *StandardPaths, projectDir string, initialize bool) (*ProjectPaths, error) {
	projectPath, err := Canonicalize(projectDir)
	if err != nil {
		return nil, err
	}

	hash := ProjectHash(projectPath)
	metadataPath := filepath.Join(std.ProjectsDir, hash)
	paths := &ProjectPaths{
		ProjectPath:  projectPath,
		ProjectHash:  hash,
		MetadataPath: metadataPath,
		HomePath:     filepath.Join(metadataPath, HomeDirName),
		VaultROPath:  filepath.Join(projectPath, VaultDirName, VaultRODirName),
		VaultRWPath:  filepath.Join(projectPath, VaultDirName, VaultRWDirName),
		Mode:         ModeAccountCentric,
	}
	if !initialize {
		return paths, nil
	}

	if !isDir(metadataPath) {
		if err := initializeProject(std, paths, true); err != nil {
			return nil, err
		}
		paths.IsNew = true
		return paths, nil
	}

	// Self-healing for pre-existing metadata: structure is made
	// complete again, but credentials are never re-seeded.
	if err := ensureHome(paths.HomePath, ""); err != nil {
		return nil, err
	}
	if err := writeBreadcrumbIfMissing(paths.BreadcrumbPath(), projectPath); err != nil {
		return nil, err
	}
	return paths, nil
}

// ResolveDecentralized resolves (and optionally initializes) the
// self-contained layout: metadata, home, and vault all live inside the
// project directory, and nothing touches the data directory. No
// breadcrumb is written — the project directory is its own record.
func ResolveDecentralized(std *StandardPaths, projectDir string, initialize bool) (*ProjectPaths, error) {
	projectPath, err := Canonicalize(projectDir)
	if err != nil {
		return nil, err
	}

	metadataPath := filepath.Join(projectPath, MetadataDirName)
	paths := &ProjectPaths{
		ProjectPath:  projectPath,
		ProjectHash:  ProjectHash(projectPath),
		MetadataPath: metadataPath,
		HomePath:     filepath.Join(projectPath, HomeDirName),
		VaultROPath:  filepath.Join(projectPath, VaultDirName, VaultRODirName),
		VaultRWPath:  filepath.Join(projectPath, VaultDirName, VaultRWDirName),
		Mode:         ModeDecentralized,
	}
	if !initialize {
		return paths, nil
	}

	if !isDir(metadataPath) {
		if err := initializeProject(std, paths, false); err != nil {
			return nil, err
		}
		if err := EnsureProjectGitignore(projectPath); err != nil {
			return nil, err
		}
		paths.IsNew = true
		return paths, nil
	}

	if err := ensureHome(paths.HomePath, ""); err != nil {
		return nil, err
	}
	return paths, nil
}

// ResolveWorksetProject resolves (and optionally initializes)
// name-keyed paths for a workset member. The identity hash is computed
// from the member's workspace path so container naming stays uniform
// across modes. Returns [workset.ErrProjectNotInWorkset] when the
// member is not in the manifest.
//
// Workset members get no breadcrumb (the manifest records the source
// path) and no vault .gitignore (the vault lives under the workset
// root, outside any user repository).
func ResolveWorksetProject(std *StandardPaths, ws *workset.Workset, name string, initialize bool) (*ProjectPaths, error) {
	if _, ok := ws.Member(name); !ok {
		return nil, fmt.Errorf("%w: %q not found in workset %q", workset.ErrProjectNotInWorkset, name, ws.Name)
	}

	workspacePath := filepath.Join(ws.WorkspacesDir(), name)
	canonical := workspacePath
	if resolved, err := Canonicalize(workspacePath); err == nil {
		canonical = resolved
	}

	metadataPath := filepath.Join(ws.ProjectsDir(), name)
	paths := &ProjectPaths{
		ProjectPath:  workspacePath,
		ProjectHash:  ProjectHash(canonical),
		MetadataPath: metadataPath,
		HomePath:     filepath.Join(ws.ShellDir(), name),
		VaultROPath:  filepath.Join(ws.VaultDir(), name, VaultRODirName),
		VaultRWPath:  filepath.Join(ws.VaultDir(), name, VaultRWDirName),
		Mode:         ModeWorkset,
	}
	if !initialize {
		return paths, nil
	}

	// The member skeleton (including an empty home) already exists
	// from registration, so "new" means the home has never been
	// bootstrapped. Credentials are seeded exactly once, at that
	// point.
	bootstrapped := isDir(paths.HomePath) && !isEmptyDir(paths.HomePath)
	if err := os.MkdirAll(metadataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", metadataPath, err)
	}
	if !bootstrapped {
		if err := ensureHome(paths.HomePath, std.CredentialsDir); err != nil {
			return nil, err
		}
		paths.IsNew = true
		return paths, nil
	}
	if err := ensureHome(paths.HomePath, ""); err != nil {
		return nil, err
	}
	return paths, nil
}

// initializeProject performs first-time setup shared by the
// account-centric and decentralized layouts.
func initializeProject(std *StandardPaths, paths *ProjectPaths, withBreadcrumb bool) error {
	if err := os.MkdirAll(paths.MetadataPath, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", paths.MetadataPath, err)
	}
	if withBreadcrumb {
		if err := WriteBreadcrumb(paths.BreadcrumbPath(), paths.ProjectPath); err != nil {
			return err
		}
	}
	if err := ensureHome(paths.HomePath, std.CredentialsDir); err != nil {
		return err
	}
	return EnsureVault(paths.VaultDir(), true)
}

// ensureHome creates the home directory with its shell skeleton if
// missing. When credentialsDir is non-empty, the credential template
// is seeded in — callers pass it only on first-time initialization.
func ensureHome(homePath, credentialsDir string) error {
	if err := os.MkdirAll(homePath, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", homePath, err)
	}
	if err := bootstrapShell(homePath); err != nil {
		return err
	}
	if credentialsDir != "" {
		if err := credential.CopyTemplateInto(credentialsDir, homePath); err != nil {
			return err
		}
	}
	return nil
}

// bootstrapShell writes the minimal shell skeleton into a home
// directory, leaving existing files alone.
func bootstrapShell(homePath string) error {
	skeleton := map[string]string{
		".bashrc": "# kanibako shell environment\n" +
			"[ -f /etc/bashrc ] && . /etc/bashrc\n" +
			"export PS1=\"(kanibako) \\u@\\h:\\w\\$ \"\n",
		".profile": "# kanibako login profile\n" +
			"[ -f ~/.bashrc ] && . ~/.bashrc\n",
	}
	for name, content := range skeleton {
		path := filepath.Join(homePath, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// WriteBreadcrumb records the canonical project path: one line,
// trailing newline.
func WriteBreadcrumb(path, projectPath string) error {
	if err := os.WriteFile(path, []byte(projectPath+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing breadcrumb %s: %w", path, err)
	}
	return nil
}

// ReadBreadcrumb returns the recorded project path, or "" when the
// breadcrumb is absent or empty.
func ReadBreadcrumb(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeBreadcrumbIfMissing(path, projectPath string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return WriteBreadcrumb(path, projectPath)
}

// EnsureVault creates the share-ro/share-rw pair under vaultDir. With
// withGitignore, a .gitignore excluding the writable side is written —
// used for layouts where the vault sits inside a user repository
// (account-centric and decentralized, never workset).
func EnsureVault(vaultDir string, withGitignore bool) error {
	for _, name := range []string{VaultRODirName, VaultRWDirName} {
		if err := os.MkdirAll(filepath.Join(vaultDir, name), 0o755); err != nil {
			return fmt.Errorf("creating vault directory: %w", err)
		}
	}
	if !withGitignore {
		return nil
	}
	gitignore := filepath.Join(vaultDir, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte(VaultRWDirName+"/\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", gitignore, err)
		}
	}
	return nil
}

// EnsureProjectGitignore makes sure a decentralized project's
// .gitignore excludes the kanibako metadata and home trees. Existing
// entries are preserved; missing ones are appended.
func EnsureProjectGitignore(projectPath string) error {
	wanted := []string{MetadataDirName + "/", HomeDirName + "/"}
	gitignorePath := filepath.Join(projectPath, ".gitignore")

	existing := map[string]bool{}
	var lines []string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			lines = append(lines, line)
			existing[strings.TrimSpace(line)] = true
		}
	}

	changed := false
	for _, entry := range wanted {
		if !existing[entry] {
			lines = append(lines, entry)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(gitignorePath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", gitignorePath, err)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) == 0
}
