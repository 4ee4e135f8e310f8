package mcpserver

import (
	"encoding/json"

	"github.com/codeprism-dev/codeprism/internal/anacache"
)

// cached consults the analysis cache for tool calls spec.md §4.9 and
// anacache.Cacheable mark as cacheable, and populates it on a miss.
// Tools outside the whitelist, or a nil cache, always recompute.
func (s *Server) cached(toolName, target string, params any, compute func() (any, error)) (any, error) {
	if s.cache == nil || !anacache.Cacheable[toolName] {
		return compute()
	}

	hash, err := anacache.HashParams(params)
	if err != nil {
		return compute()
	}
	key := anacache.Key{ToolName: toolName, ParamsHash: hash, Target: target}

	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, v, estimateSizeBytes(v))
	return v, nil
}

func estimateSizeBytes(v any) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}
