// Package config loads CodePrism's layered configuration: built-in
// defaults, overridden by a project config file, overridden again by
// environment variables, mirroring the teacher's internal/config
// defaults-then-merge shape but collapsed to a single layered Load
// instead of a base-then-project KDL merge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/codeprism-dev/codeprism/internal/observability"
)

// Project identifies the indexed repository.
type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

// Index controls file discovery (internal/scanner.Options inputs).
type Index struct {
	ExcludeDirs       []string `toml:"exclude_dirs"`
	IncludeExtensions []string `toml:"include_extensions"`
	IncludeGlobs      []string `toml:"include_globs"`
	FollowSymlinks    bool     `toml:"follow_symlinks"`
}

// Performance controls bulk-indexing resource usage
// (internal/bulkindex.Options inputs).
type Performance struct {
	BatchSize               int   `toml:"batch_size"`
	ParallelWorkers          int   `toml:"parallel_workers"` // 0 = max(1, runtime.NumCPU()-1), filled by Validate
	MemoryLimitBytes         int64 `toml:"memory_limit_bytes"`
	StreamingThresholdFiles  int   `toml:"streaming_threshold_files"`
	MaxPatchesInMemory       int   `toml:"max_patches_in_memory"`
}

// Cache controls the analysis cache (internal/anacache.Option inputs).
type Cache struct {
	MaxEntries int   `toml:"max_entries"`
	MaxBytes   int64 `toml:"max_bytes"`
}

// FeatureFlags toggles optional behavior, following the teacher's
// FeatureFlags rollback-capable switch pattern.
type FeatureFlags struct {
	EnableWatch         bool `toml:"enable_watch"`          // not read outside config; no file watcher is implemented
	EnableFuzzyFallback bool `toml:"enable_fuzzy_fallback"` // not read outside config; the resolver's go-edlib fallback always runs
	ContinueOnError     bool `toml:"continue_on_error"`     // bulkindex.Options.ContinueOnError
}

// Config is CodePrism's full layered configuration.
type Config struct {
	Project      Project                `toml:"project"`
	Index        Index                  `toml:"index"`
	Performance  Performance            `toml:"performance"`
	Cache        Cache                  `toml:"cache"`
	Sandbox      observability.Budget   `toml:"sandbox"`
	FeatureFlags FeatureFlags           `toml:"feature_flags"`
}

// Default returns CodePrism's built-in defaults, mirroring the
// teacher's parseKDL's hard-coded starting Config literal.
func Default() *Config {
	return &Config{
		Project: Project{Root: "."},
		Index: Index{
			FollowSymlinks: false,
		},
		Performance: Performance{
			BatchSize:               30,
			ParallelWorkers:         runtime.NumCPU(),
			MemoryLimitBytes:        4 << 30,
			StreamingThresholdFiles: 10_000,
			MaxPatchesInMemory:      100,
		},
		Cache: Cache{
			MaxEntries: 10_000,
			MaxBytes:   256 << 20,
		},
		Sandbox: observability.DefaultBudget(),
		FeatureFlags: FeatureFlags{
			EnableWatch:         false,
			EnableFuzzyFallback: true,
			ContinueOnError:     true,
		},
	}
}

// Load builds a Config by layering, in order: built-in defaults, a
// project TOML file (codeprism.toml) if present, a KDL profile
// (.codeprism.kdl) if present, then environment overrides. rootDir is
// the directory to search for both config files; each layer only
// overrides fields present in it.
func Load(rootDir string) (*Config, error) {
	cfg := Default()
	cfg.Project.Root = rootDir

	tomlPath := filepath.Join(rootDir, "codeprism.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		if err := mergeTOML(cfg, tomlPath); err != nil {
			return nil, fmt.Errorf("config: %s: %w", tomlPath, err)
		}
	}

	kdlPath := filepath.Join(rootDir, ".codeprism.kdl")
	if _, err := os.Stat(kdlPath); err == nil {
		if err := mergeKDL(cfg, kdlPath); err != nil {
			return nil, fmt.Errorf("config: %s: %w", kdlPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
