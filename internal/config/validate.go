package config

import (
	"fmt"
	"runtime"

	"github.com/codeprism-dev/codeprism/internal/errors"
	"github.com/codeprism-dev/codeprism/internal/observability"
)

// Validate checks cfg for out-of-range values and fills in any
// still-zero setting with a runtime-derived smart default, mirroring
// the teacher's Validator.ValidateAndSetDefaults section-by-section
// shape (one sub-check per config section, smart defaults applied
// last).
func (c *Config) Validate() error {
	if err := validateProject(&c.Project); err != nil {
		return errors.New(errors.KindConfiguration, errors.SeverityError, "config.project", err)
	}
	if err := validatePerformance(&c.Performance); err != nil {
		return errors.New(errors.KindConfiguration, errors.SeverityError, "config.performance", err)
	}
	if err := validateCache(&c.Cache); err != nil {
		return errors.New(errors.KindConfiguration, errors.SeverityError, "config.cache", err)
	}
	if err := validateSandbox(&c.Sandbox); err != nil {
		return errors.New(errors.KindConfiguration, errors.SeverityError, "config.sandbox", err)
	}
	setSmartDefaults(c)
	return nil
}

func validateProject(p *Project) error {
	if p.Root == "" {
		return fmt.Errorf("project root cannot be empty")
	}
	return nil
}

func validatePerformance(perf *Performance) error {
	if perf.ParallelWorkers < 0 {
		return fmt.Errorf("parallel_workers cannot be negative, got %d", perf.ParallelWorkers)
	}
	if perf.BatchSize < 0 {
		return fmt.Errorf("batch_size cannot be negative, got %d", perf.BatchSize)
	}
	if perf.MemoryLimitBytes < 0 {
		return fmt.Errorf("memory_limit_bytes cannot be negative, got %d", perf.MemoryLimitBytes)
	}
	return nil
}

func validateCache(c *Cache) error {
	if c.MaxEntries < 0 {
		return fmt.Errorf("max_entries cannot be negative, got %d", c.MaxEntries)
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("max_bytes cannot be negative, got %d", c.MaxBytes)
	}
	return nil
}

func validateSandbox(b *observability.Budget) error {
	if b.CPUSeconds < 0 || b.MemoryBytes < 0 || b.FileHandles < 0 || b.DiskBytes < 0 {
		return fmt.Errorf("sandbox budgets cannot be negative: %+v", *b)
	}
	return nil
}

// setSmartDefaults fills in any still-zero performance/cache setting
// with a runtime-derived default, following the teacher's
// setSmartDefaults (cores-1 worker counts, a conservative memory
// floor).
func setSmartDefaults(cfg *Config) {
	if cfg.Performance.ParallelWorkers == 0 {
		cfg.Performance.ParallelWorkers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Performance.BatchSize == 0 {
		cfg.Performance.BatchSize = 30
	}
	if cfg.Performance.MemoryLimitBytes == 0 {
		cfg.Performance.MemoryLimitBytes = 4 << 30
	}
	if cfg.Performance.StreamingThresholdFiles == 0 {
		cfg.Performance.StreamingThresholdFiles = 10_000
	}
	if cfg.Performance.MaxPatchesInMemory == 0 {
		cfg.Performance.MaxPatchesInMemory = 100
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10_000
	}
	if cfg.Cache.MaxBytes == 0 {
		cfg.Cache.MaxBytes = 256 << 20
	}
}
