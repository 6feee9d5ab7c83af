package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/madmti/release-kit/internal/commit"
	"github.com/madmti/release-kit/internal/semver"
)

// Config models release-kit.yml.
type Config struct {
	CommitTypes []CommitType `yaml:"commit_types"`
	Files       []FileTarget `yaml:"files"`
	Changelog   struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"changelog"`
	Tags struct {
		UpdateLatest bool `yaml:"update_latest"`
		UpdateMajors bool `yaml:"update_majors"`
	} `yaml:"tags"`
	Hosting struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"hosting"`
	Identity struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
	} `yaml:"identity"`
}

// CommitType is one configured commit classification rule.
type CommitType struct {
	Type    string `yaml:"type"`
	Section string `yaml:"section"`
	Bump    string `yaml:"bump"`
	Hidden  bool   `yaml:"hidden"`
}

// FileTarget is one file whose version string is rewritten on release.
type FileTarget struct {
	Path    string `yaml:"path"`
	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
}

// Load reads and validates config from the repository root.
func Load(repoPath string) (*Config, error) {
	path := Path(repoPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with relkit init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if no file exists in the repo.
func LoadOptional(repoPath string) (*Config, error) {
	data, err := os.ReadFile(Path(repoPath))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	cfg.CommitTypes = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if len(cfg.CommitTypes) == 0 {
		cfg.CommitTypes = defaultCommitTypes()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure. Duplicate commit type
// tags are rejected here so rule matching stays deterministic.
func (c *Config) Validate() error {
	seen := map[string]bool{}
	for i, ct := range c.CommitTypes {
		if ct.Type == "" {
			return fmt.Errorf("commit_types[%d].type is required", i)
		}
		if seen[ct.Type] {
			return fmt.Errorf("commit type %q declared twice", ct.Type)
		}
		seen[ct.Type] = true
		if _, err := semver.ParseBump(ct.Bump); err != nil {
			return fmt.Errorf("commit type %q: %w", ct.Type, err)
		}
		if !ct.Hidden && ct.Section == "" {
			return fmt.Errorf("commit type %q needs a section label or hidden: true", ct.Type)
		}
	}
	for i, f := range c.Files {
		if f.Path == "" {
			return fmt.Errorf("files[%d].path is required", i)
		}
	}
	if c.Changelog.Enabled && c.Changelog.Path == "" {
		return fmt.Errorf("changelog.path is required when changelog is enabled")
	}
	if c.Identity.Name == "" || c.Identity.Email == "" {
		return fmt.Errorf("identity.name and identity.email are required")
	}
	return nil
}

// Rules converts the configured commit types into classifier rules,
// preserving declaration order. Bump values were validated already; an
// unknown one still degrades to none rather than panicking.
func (c *Config) Rules() []commit.Rule {
	rules := make([]commit.Rule, 0, len(c.CommitTypes))
	for _, ct := range c.CommitTypes {
		bump, _ := semver.ParseBump(ct.Bump)
		rules = append(rules, commit.Rule{
			Type:    ct.Type,
			Section: ct.Section,
			Bump:    bump,
			Hidden:  ct.Hidden,
		})
	}
	return rules
}

// Path returns the config file path for a repository.
func Path(repoPath string) string {
	if repoPath == "" {
		repoPath = "."
	}
	return filepath.Join(repoPath, "release-kit.yml")
}

// Default returns the built-in configuration: conventional-commit rules,
// changelog on, floating tags and hosting off.
func Default() *Config {
	var cfg Config
	cfg.CommitTypes = defaultCommitTypes()
	cfg.Changelog.Enabled = true
	cfg.Changelog.Path = "CHANGELOG.md"
	cfg.Identity.Name = "release-kit[bot]"
	cfg.Identity.Email = "release-kit[bot]@users.noreply.github.com"
	return &cfg
}

func defaultCommitTypes() []CommitType {
	defaults := commit.DefaultRules()
	types := make([]CommitType, 0, len(defaults))
	for _, r := range defaults {
		types = append(types, CommitType{
			Type:    r.Type,
			Section: r.Section,
			Bump:    r.Bump.String(),
			Hidden:  r.Hidden,
		})
	}
	return types
}

// GenerateDefault returns the default config YAML for relkit init.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `commit_types:
  - type: feat
    section: Features
    bump: minor
  - type: fix
    section: Bug Fixes
    bump: patch
  - type: perf
    section: Performance
    bump: patch
  - type: revert
    section: Reverts
    bump: patch
  - type: docs
    section: Documentation
    bump: none
    hidden: true
  - type: refactor
    section: Refactoring
    bump: none
    hidden: true
  - type: test
    section: Tests
    bump: none
    hidden: true
  - type: chore
    section: Chores
    bump: none
    hidden: true
  - type: ci
    section: CI
    bump: none
    hidden: true

# Files whose version strings are rewritten on release.
# Types: json (also npm), text, python, custom-regex (requires pattern).
files: []
#  - path: package.json
#    type: json
#  - path: internal/version.py
#    type: python

changelog:
  enabled: true
  path: CHANGELOG.md

# Floating tags rewrite history on the remote; both default off.
tags:
  update_latest: false
  update_majors: false

hosting:
  enabled: false

identity:
  name: release-kit[bot]
  email: release-kit[bot]@users.noreply.github.com
`
