package config

import (
	"os"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// mergeKDL parses path (.codeprism.kdl) and overlays it onto cfg,
// following the teacher's parseKDL node-walking shape: one switch over
// top-level node names, a nested switch per section's children. The
// KDL profile is deliberately a narrower surface than the TOML file -
// sandbox budgets, feature flags, and the parallel_workers/batch_size
// performance knobs, the values an operator is most likely to want
// per-machine-profile rather than per-project.
func mergeKDL(cfg *Config, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := kdl.Parse(strings.NewReader(string(content)))
	if err != nil {
		return err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "sandbox":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "cpu_seconds":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Sandbox.CPUSeconds = v
					}
				case "memory_bytes":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Sandbox.MemoryBytes = v
					}
				case "file_handles":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Sandbox.FileHandles = v
					}
				case "disk_bytes":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Sandbox.DiskBytes = v
					}
				}
			}
		case "feature_flags":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enable_watch":
					if b, ok := firstBoolArg(cn); ok {
						cfg.FeatureFlags.EnableWatch = b
					}
				case "enable_fuzzy_fallback":
					if b, ok := firstBoolArg(cn); ok {
						cfg.FeatureFlags.EnableFuzzyFallback = b
					}
				case "continue_on_error":
					if b, ok := firstBoolArg(cn); ok {
						cfg.FeatureFlags.ContinueOnError = b
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "parallel_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.ParallelWorkers = v
					}
				case "batch_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.BatchSize = v
					}
				}
			}
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	b, ok := n.Arguments[0].Value.(bool)
	return b, ok
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
