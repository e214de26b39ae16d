package compaction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExecutorSpec describes one internal worker pool a service's planner
// options request, e.g. {'name':'small','numThreads':2}.
type ExecutorSpec struct {
	Name       string `json:"name"`
	NumThreads int    `json:"numThreads"`
	// Queue names an external queue instead of an internal pool when set;
	// NumThreads is ignored in that case. Not produced by the legacy
	// synthesis path, but accepted from hand-written planner options.
	Queue string `json:"queue,omitempty"`
}

// parseExecutorSpecs parses the "executors" planner option. Hand-written
// configuration uses ordinary JSON; the legacy synthesis path (config.go)
// emits single-quoted pseudo-JSON the way the original Java implementation
// does, so single quotes are normalized to double quotes before decoding.
func parseExecutorSpecs(raw string) ([]ExecutorSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	normalized := strings.ReplaceAll(raw, "'", `"`)

	var specs []ExecutorSpec
	if err := json.Unmarshal([]byte(normalized), &specs); err != nil {
		return nil, fmt.Errorf("compaction: parse executors option %q: %w", raw, err)
	}
	return specs, nil
}

// deprecatedExecutorSpecJSON renders the synthesized single-executor list
// the legacy "max concurrent" property maps to, matching the original's
// "[{'name':'deprecated', 'numThreads':N}]" literally.
func deprecatedExecutorSpecJSON(numThreads int) string {
	return fmt.Sprintf("[{'name':'deprecated', 'numThreads':%d}]", numThreads)
}
