// Copyright 2026 The Kanibako Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for kanibako.
//
// Configuration is loaded from a single YAML file:
//   - the path in the KANIBAKO_CONFIG environment variable, or
//   - $XDG_CONFIG_HOME/kanibako/kanibako.yaml
//
// The config file is the single source of truth. Environment variables
// do not override individual values — the only expansion performed is
// ${HOME} and similar path variables for portability. This keeps
// configuration deterministic and auditable.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrConfigMissing indicates that no configuration file exists at the
// resolved location. Callers distinguish this from parse errors so
// they can point the user at `kanibako setup`.
var ErrConfigMissing = errors.New("configuration file missing")

// Config is the master configuration for kanibako.
type Config struct {
	// Paths configures the directory component names used when
	// composing project layouts.
	Paths PathsConfig `yaml:"paths"`

	// Container configures the session container. The core never
	// invokes the runtime; the image name is recorded here for the
	// session manager.
	Container ContainerConfig `yaml:"container"`

	// Vault configures the shared-file vault and its snapshot store.
	Vault VaultConfig `yaml:"vault"`
}

// PathsConfig names the path components kanibako composes its layouts
// from. These are directory names, not absolute paths.
type PathsConfig struct {
	// RelativeDir is the subdirectory created under each XDG base
	// directory (data, state, cache). Default: kanibako.
	RelativeDir string `yaml:"relative_dir"`

	// ProjectsDir is the directory under the data dir that holds
	// hash-keyed project metadata. Default: projects.
	ProjectsDir string `yaml:"projects_dir"`

	// CredentialsDir is the directory under the data dir holding the
	// credential template that seeds new project homes.
	// Default: credentials.
	CredentialsDir string `yaml:"credentials_dir"`
}

// ContainerConfig configures the session container image.
type ContainerConfig struct {
	// Image is the container image reference used for sessions.
	Image string `yaml:"image"`
}

// VaultConfig configures the vault snapshot store.
type VaultConfig struct {
	// Disabled turns the vault off for all projects. Vault commands
	// fail with an explanatory error when set.
	Disabled bool `yaml:"disabled"`

	// MaxSnapshots is the retention limit applied by automatic
	// snapshots. Explicit prune commands take their own limit.
	// Default: 10.
	MaxSnapshots int `yaml:"max_snapshots"`
}

// Default returns the default configuration. These defaults make a
// fresh installation fully functional; the config file only needs to
// exist so that path layout changes are an explicit, recorded act.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			RelativeDir:    "kanibako",
			ProjectsDir:    "projects",
			CredentialsDir: "credentials",
		},
		Container: ContainerConfig{
			Image: "ghcr.io/doctorjei/kanibako-base:latest",
		},
		Vault: VaultConfig{
			MaxSnapshots: 10,
		},
	}
}

// DefaultPath returns the standard config file location:
// $XDG_CONFIG_HOME/kanibako/kanibako.yaml (or ~/.config/... when the
// variable is unset).
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "kanibako", "kanibako.yaml")
}

// Load loads configuration from KANIBAKO_CONFIG, falling back to the
// default XDG location. A missing file is reported as
// [ErrConfigMissing] with the resolved path in the message.
func Load() (*Config, error) {
	path := os.Getenv("KANIBAKO_CONFIG")
	if path == "" {
		path = DefaultPath()
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging the
// file's values over [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (run 'kanibako setup' to create it)", ErrConfigMissing, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteFile writes the configuration to path, creating parent
// directories as needed. Used by `kanibako setup`.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// string fields that may hold user-provided path fragments.
func (c *Config) expandVariables() {
	c.Paths.RelativeDir = expandVars(c.Paths.RelativeDir)
	c.Paths.ProjectsDir = expandVars(c.Paths.ProjectsDir)
	c.Paths.CredentialsDir = expandVars(c.Paths.CredentialsDir)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors. Path component names
// must be single relative path segments — anything else would let a
// config file redirect metadata outside the kanibako roots.
func (c *Config) Validate() error {
	var errs []error

	components := map[string]string{
		"paths.relative_dir":    c.Paths.RelativeDir,
		"paths.projects_dir":    c.Paths.ProjectsDir,
		"paths.credentials_dir": c.Paths.CredentialsDir,
	}
	for name, value := range components {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			continue
		}
		if filepath.IsAbs(value) || filepath.Base(filepath.Clean(value)) != value {
			errs = append(errs, fmt.Errorf("%s must be a single relative directory name, got %q", name, value))
		}
	}

	if c.Vault.MaxSnapshots < 0 {
		errs = append(errs, fmt.Errorf("vault.max_snapshots must not be negative, got %d", c.Vault.MaxSnapshots))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
