package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/savaki/site-deployer/internal/builder"
	"github.com/savaki/site-deployer/internal/constants"
	errs "github.com/savaki/site-deployer/internal/errors"
	"gopkg.in/yaml.v3"
)

// Settings holds the deployment configuration for a single site.
// It is loaded once at startup and passed explicitly to every component.
type Settings struct {
	Bucket         string `yaml:"bucket"`
	DistributionID string `yaml:"cloudfront_distribution_id"`
	Prefix         string `yaml:"prefix"`
	BuildDir       string `yaml:"build_dir"`

	Build        BuildSettings        `yaml:"build"`
	Patch        PatchSettings        `yaml:"patch"`
	Sync         SyncSettings         `yaml:"sync"`
	Invalidation InvalidationSettings `yaml:"invalidation"`
}

// BuildSettings lists the command lines run before upload
type BuildSettings struct {
	Verify []builder.Step    `yaml:"verify"`
	Steps  []builder.Step    `yaml:"steps"`
	Env    map[string]string `yaml:"env"`
}

// PatchSettings controls the post-build placeholder replacement
type PatchSettings struct {
	Token      string   `yaml:"token"`
	Extensions []string `yaml:"extensions"`
	Minify     bool     `yaml:"minify"`
}

// SyncSettings controls how the build output reaches the bucket
type SyncSettings struct {
	Mode         string `yaml:"mode"`
	Delete       *bool  `yaml:"delete"`
	Concurrency  int    `yaml:"concurrency"`
	CacheControl string `yaml:"cache_control"`
}

// DeleteEnabled reports whether remote keys missing locally are removed; defaults to true
func (s SyncSettings) DeleteEnabled() bool {
	return s.Delete == nil || *s.Delete
}

// InvalidationSettings controls which paths are invalidated and how long to wait
type InvalidationSettings struct {
	Mode         string        `yaml:"mode"`
	Paths        []string      `yaml:"paths"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

// ApplyDefaults fills every empty optional value
func (s *Settings) ApplyDefaults() {
	if s.BuildDir == "" {
		s.BuildDir = constants.BuildDir
	}
	if len(s.Build.Steps) == 0 {
		s.Build.Steps = []builder.Step{{Name: constants.BuildStepName, Run: constants.BuildCommand}}
	}
	if s.Patch.Token == "" {
		s.Patch.Token = constants.PlaceholderToken
	}
	if len(s.Patch.Extensions) == 0 {
		s.Patch.Extensions = slices.Clone(constants.PatchExtensions)
	}
	if s.Sync.Mode == "" {
		s.Sync.Mode = constants.SyncModeSDK
	}
	if s.Sync.Concurrency <= 0 {
		s.Sync.Concurrency = constants.SyncConcurrency
	}
	if s.Invalidation.Mode == "" {
		s.Invalidation.Mode = constants.InvalidationModeWildcard
	}
	if s.Invalidation.PollInterval <= 0 {
		s.Invalidation.PollInterval = constants.PollInterval
	}
	if s.Invalidation.MaxAttempts <= 0 {
		s.Invalidation.MaxAttempts = constants.PollMaxAttempts
	}
}

// Validate checks required keys and enumerated values
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Bucket) == "" {
		return fmt.Errorf("%w: bucket", errs.ErrMissingSetting)
	}
	if strings.TrimSpace(s.DistributionID) == "" {
		return fmt.Errorf("%w: cloudfront_distribution_id", errs.ErrMissingSetting)
	}

	switch s.Sync.Mode {
	case constants.SyncModeSDK, constants.SyncModeCLI:
	default:
		return fmt.Errorf("%w: sync.mode %q (want %s or %s)", errs.ErrInvalidSetting,
			s.Sync.Mode, constants.SyncModeSDK, constants.SyncModeCLI)
	}

	switch s.Invalidation.Mode {
	case constants.InvalidationModeWildcard, constants.InvalidationModeChanged:
	case constants.InvalidationModeExplicit:
		if len(s.Invalidation.Paths) == 0 {
			return fmt.Errorf("%w: invalidation.paths is required for explicit mode", errs.ErrInvalidSetting)
		}
	default:
		return fmt.Errorf("%w: invalidation.mode %q", errs.ErrInvalidSetting, s.Invalidation.Mode)
	}

	for _, step := range slices.Concat(s.Build.Verify, s.Build.Steps) {
		if strings.TrimSpace(step.Run) == "" {
			return fmt.Errorf("%w: build step %q has no run command", errs.ErrInvalidSetting, step.Name)
		}
	}

	return nil
}

// BuildPath returns the build output directory for a project rooted at root
func (s *Settings) BuildPath(root string) string {
	if filepath.IsAbs(s.BuildDir) {
		return s.BuildDir
	}
	return filepath.Join(root, s.BuildDir)
}

// ParseSettings decodes a YAML settings document, applies defaults and validates it
func ParseSettings(data []byte) (*Settings, error) {
	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidSetting, err)
	}

	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SettingsStore loads deployment settings from some backing source
type SettingsStore interface {
	Load(ctx context.Context) (*Settings, error)
}

// FileSettingsStore implements SettingsStore using a YAML file
type FileSettingsStore struct {
	path string
}

// NewFileSettingsStore creates a file-backed settings store; a leading ~ is expanded
func NewFileSettingsStore(path string) (*FileSettingsStore, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	return &FileSettingsStore{path: expanded}, nil
}

// Path returns the resolved settings file path
func (f *FileSettingsStore) Path() string {
	return f.path
}

// Load reads and validates the settings file
func (f *FileSettingsStore) Load(ctx context.Context) (*Settings, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrSettingsNotFound, f.path)
		}
		return nil, fmt.Errorf("failed to read settings %s: %w", f.path, err)
	}

	settings, err := ParseSettings(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	return settings, nil
}

// DefaultSettingsPath returns the settings file in the user's home directory
func DefaultSettingsPath() string {
	return filepath.Join("~", constants.SettingsFileName)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// SSMSource reports whether source names a Parameter Store path (ssm:/path)
// and returns the path.
func SSMSource(source string) (string, bool) {
	path, ok := strings.CutPrefix(source, "ssm:")
	if !ok {
		return "", false
	}
	return "/" + strings.Trim(path, "/"), true
}
