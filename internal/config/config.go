// Package config provides hierarchical configuration management for
// specrunner using koanf. Configuration is loaded with priority:
// environment variables > project config (.specrunner.yml) > user config
// (~/.config/specrunner/config.yml) > defaults, per SPEC_FULL.md §10.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Configuration is the typed record for the whole configuration surface
// named in spec.md §4/§6/§9 ("Dynamic config" design note): an explicit
// struct with defaults, not a free-form map.
type Configuration struct {
	// Concurrency is the executor's worker pool cap C (spec.md §4.4).
	// 0 means "use host CPU count".
	Concurrency int `koanf:"concurrency"`

	// EffortMode selects the rerun policy: none | regression | converge | max.
	EffortMode string `koanf:"effort_mode"`
	// MaxReruns bounds reruns per test under converge.
	MaxReruns int `koanf:"max_reruns"`
	// MaxFailures is the detection-mode early-stop threshold; 0 = unlimited.
	MaxFailures int `koanf:"max_failures"`

	// SPRT parameters (spec.md §4.3).
	SprtP0    float64 `koanf:"sprt_p0"`
	SprtP1    float64 `koanf:"sprt_p1"`
	SprtAlpha float64 `koanf:"sprt_alpha"`
	SprtBeta  float64 `koanf:"sprt_beta"`

	// Demotion overrides; zero value means "use the forward SPRT tuple"
	// (spec.md §9 Open Questions).
	DemotionP0    float64 `koanf:"demotion_p0"`
	DemotionP1    float64 `koanf:"demotion_p1"`
	DemotionAlpha float64 `koanf:"demotion_alpha"`
	DemotionBeta  float64 `koanf:"demotion_beta"`

	// FlakyDeadlineDays enables auto-disable (spec.md §4.6) when >= 0.
	FlakyDeadlineDays int `koanf:"flaky_deadline_days"`
	// SkipUnchanged enables hash-pooling skip of conclusive tests.
	SkipUnchanged bool `koanf:"skip_unchanged"`

	// Regression selector parameters (spec.md §4.8).
	MaxTestPercentage float64 `koanf:"max_test_percentage"`
	MaxHops           int     `koanf:"max_hops"`

	// Paths for the durable artifacts.
	StatusPath     string `koanf:"status_path"`
	GraphPath      string `koanf:"graph_path"`
	MeasurementDir string `koanf:"measurement_dir"`
	LogDir         string `koanf:"log_dir"`
}

// LoadOptions configures how configuration is loaded.
type LoadOptions struct {
	// ProjectConfigPath overrides the project config path (default: .specrunner.yml).
	ProjectConfigPath string
	// WarningWriter receives load warnings (default: os.Stderr).
	WarningWriter io.Writer
}

// Load loads configuration from user, project, and environment sources.
// Priority: environment variables > project config > user config > defaults.
func Load(projectConfigPath string) (*Configuration, error) {
	return LoadWithOptions(LoadOptions{ProjectConfigPath: projectConfigPath})
}

// LoadWithOptions loads configuration with custom options.
func LoadWithOptions(opts LoadOptions) (*Configuration, error) {
	k := koanf.New(".")
	warningWriter := opts.WarningWriter
	if warningWriter == nil {
		warningWriter = os.Stderr
	}

	loadDefaults(k)

	if err := loadUserConfig(k); err != nil {
		return nil, err
	}

	if err := loadProjectConfig(k, opts.ProjectConfigPath); err != nil {
		return nil, err
	}

	if err := loadEnvironmentConfig(k); err != nil {
		return nil, err
	}

	return finalizeConfig(k)
}

func loadDefaults(k *koanf.Koanf) {
	for key, value := range GetDefaults() {
		k.Set(key, value)
	}
}

// loadUserConfig loads the user-level YAML config, if present.
func loadUserConfig(k *koanf.Koanf) error {
	path, err := UserConfigPath()
	if err != nil || !fileExists(path) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("loading user config %s: %w", path, err)
	}
	return nil
}

// loadProjectConfig loads the project-level YAML config, if present.
func loadProjectConfig(k *koanf.Koanf, customPath string) error {
	path := ProjectConfigPath()
	if customPath != "" {
		path = customPath
	}
	if !fileExists(path) {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("loading project config %s: %w", path, err)
	}
	return nil
}

// loadEnvironmentConfig loads SPECRUNNER_* environment variable overrides.
func loadEnvironmentConfig(k *koanf.Koanf) error {
	if err := k.Load(env.Provider("SPECRUNNER_", ".", envTransform), nil); err != nil {
		return fmt.Errorf("loading environment config: %w", err)
	}
	return nil
}

// finalizeConfig unmarshals and applies final path transformations.
func finalizeConfig(k *koanf.Koanf) (*Configuration, error) {
	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.StatusPath = expandHomePath(cfg.StatusPath)
	cfg.GraphPath = expandHomePath(cfg.GraphPath)
	cfg.MeasurementDir = expandHomePath(cfg.MeasurementDir)
	cfg.LogDir = expandHomePath(cfg.LogDir)

	if cfg.Concurrency <= 0 {
		// Resolved by the executor when a run starts (host CPU count);
		// keep 0 as the explicit "unset" sentinel here.
		cfg.Concurrency = 0
	}

	return &cfg, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// envTransform converts SPECRUNNER_MAX_RETRIES -> max_retries.
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "SPECRUNNER_"))
}

// expandHomePath expands a leading ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
