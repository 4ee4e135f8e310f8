package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// mergeTOML parses path (codeprism.toml) and overlays any non-zero
// field onto cfg, following the teacher's mergeConfigs "project
// overrides base" rule, just applied one field at a time instead of a
// whole-struct overwrite, since a TOML file is expected to set only a
// handful of fields.
func mergeTOML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return err
	}
	overlay(cfg, &file)
	return nil
}

// overlay copies every field set in src onto dst. Zero values in src
// (the TOML file didn't mention that key) leave dst's existing value
// - usually a Default() value, possibly already set by an earlier
// layer - untouched.
func overlay(dst, src *Config) {
	if src.Project.Root != "" {
		dst.Project.Root = src.Project.Root
	}
	if src.Project.Name != "" {
		dst.Project.Name = src.Project.Name
	}

	if len(src.Index.ExcludeDirs) > 0 {
		dst.Index.ExcludeDirs = src.Index.ExcludeDirs
	}
	if len(src.Index.IncludeExtensions) > 0 {
		dst.Index.IncludeExtensions = src.Index.IncludeExtensions
	}
	if len(src.Index.IncludeGlobs) > 0 {
		dst.Index.IncludeGlobs = src.Index.IncludeGlobs
	}
	if src.Index.FollowSymlinks {
		dst.Index.FollowSymlinks = true
	}

	if src.Performance.BatchSize != 0 {
		dst.Performance.BatchSize = src.Performance.BatchSize
	}
	if src.Performance.ParallelWorkers != 0 {
		dst.Performance.ParallelWorkers = src.Performance.ParallelWorkers
	}
	if src.Performance.MemoryLimitBytes != 0 {
		dst.Performance.MemoryLimitBytes = src.Performance.MemoryLimitBytes
	}
	if src.Performance.StreamingThresholdFiles != 0 {
		dst.Performance.StreamingThresholdFiles = src.Performance.StreamingThresholdFiles
	}
	if src.Performance.MaxPatchesInMemory != 0 {
		dst.Performance.MaxPatchesInMemory = src.Performance.MaxPatchesInMemory
	}

	if src.Cache.MaxEntries != 0 {
		dst.Cache.MaxEntries = src.Cache.MaxEntries
	}
	if src.Cache.MaxBytes != 0 {
		dst.Cache.MaxBytes = src.Cache.MaxBytes
	}

	if src.Sandbox.CPUSeconds != 0 {
		dst.Sandbox.CPUSeconds = src.Sandbox.CPUSeconds
	}
	if src.Sandbox.MemoryBytes != 0 {
		dst.Sandbox.MemoryBytes = src.Sandbox.MemoryBytes
	}
	if src.Sandbox.FileHandles != 0 {
		dst.Sandbox.FileHandles = src.Sandbox.FileHandles
	}
	if src.Sandbox.DiskBytes != 0 {
		dst.Sandbox.DiskBytes = src.Sandbox.DiskBytes
	}

	// Bool flags can only be turned on by an overlay, never off: a TOML
	// file omitting a key and one explicitly setting it false are both
	// the zero value, so there is no way to distinguish "inherit the
	// default" from "turn it off" at this layer. Defaults that start
	// true (EnableFuzzyFallback, ContinueOnError) are therefore only
	// disableable via a Default() change, the KDL profile (kdl.go, which
	// reads typed bool arguments), or an environment override (env.go,
	// which reads an explicit string); both of those can set false.
	if src.FeatureFlags.EnableWatch {
		dst.FeatureFlags.EnableWatch = true
	}
	if src.FeatureFlags.EnableFuzzyFallback {
		dst.FeatureFlags.EnableFuzzyFallback = true
	}
	if src.FeatureFlags.ContinueOnError {
		dst.FeatureFlags.ContinueOnError = true
	}
}
