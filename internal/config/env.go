package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides is the final, highest-precedence config layer:
// CODEPRISM_-prefixed environment variables, read as explicit strings
// so "false" can disable a flag a file layer left enabled (the one
// thing the TOML layer's zero-value overlay in toml.go cannot do).
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("CODEPRISM_PROJECT_ROOT"); ok {
		cfg.Project.Root = v
	}
	if v, ok := os.LookupEnv("CODEPRISM_PROJECT_NAME"); ok {
		cfg.Project.Name = v
	}
	if v, ok := envInt("CODEPRISM_PARALLEL_WORKERS"); ok {
		cfg.Performance.ParallelWorkers = v
	}
	if v, ok := envInt("CODEPRISM_BATCH_SIZE"); ok {
		cfg.Performance.BatchSize = v
	}
	if v, ok := envInt64("CODEPRISM_MEMORY_LIMIT_BYTES"); ok {
		cfg.Performance.MemoryLimitBytes = v
	}
	if v, ok := envInt("CODEPRISM_CACHE_MAX_ENTRIES"); ok {
		cfg.Cache.MaxEntries = v
	}
	if v, ok := envInt64("CODEPRISM_CACHE_MAX_BYTES"); ok {
		cfg.Cache.MaxBytes = v
	}
	if v, ok := envBool("CODEPRISM_ENABLE_WATCH"); ok {
		cfg.FeatureFlags.EnableWatch = v
	}
	if v, ok := envBool("CODEPRISM_ENABLE_FUZZY_FALLBACK"); ok {
		cfg.FeatureFlags.EnableFuzzyFallback = v
	}
	if v, ok := envBool("CODEPRISM_CONTINUE_ON_ERROR"); ok {
		cfg.FeatureFlags.ContinueOnError = v
	}
}

func envInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envInt64(name string) (int64, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
