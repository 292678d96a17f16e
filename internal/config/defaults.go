package config

// GetDefaultConfigTemplate returns a fully commented config template that
// helps users understand all available options.
func GetDefaultConfigTemplate() string {
	return `# specrunner configuration
# See 'specrunner --help' for the command tree.

# Execution
concurrency: 0                # Worker pool size; 0 = host CPU count (spec.md §4.4)
effort_mode: none             # none | regression | converge | max
max_reruns: 100                # Cap on reruns under converge (per test)
max_failures: 0                # Detection-mode early stop; 0 = unlimited

# SPRT (spec.md §4.3)
sprt_p0: 0.995
sprt_p1: 0.95
sprt_alpha: 0.05
sprt_beta: 0.10
# Demotion overrides default to the forward tuple above when zero.
demotion_p0: 0
demotion_p1: 0
demotion_alpha: 0
demotion_beta: 0

# Lifecycle (spec.md §4.6)
flaky_deadline_days: -1        # -1 disables auto-disable
skip_unchanged: true

# Regression selection (spec.md §4.8)
max_test_percentage: 0.10
max_hops: 2

# Paths
status_path: .specrunner/status.json
graph_path: .specrunner/graph.json
measurement_dir: .specrunner/measurements
log_dir: .specrunner/logs
`
}

// GetDefaults returns the default configuration values as a flat map keyed
// by koanf path, applied before any file/env layer.
func GetDefaults() map[string]interface{} {
	return map[string]interface{}{
		"concurrency":  0,
		"effort_mode":  "none",
		"max_reruns":   100,
		"max_failures": 0,

		"sprt_p0":    0.995,
		"sprt_p1":    0.95,
		"sprt_alpha": 0.05,
		"sprt_beta":  0.10,

		"demotion_p0":    0.0,
		"demotion_p1":    0.0,
		"demotion_alpha": 0.0,
		"demotion_beta":  0.0,

		"flaky_deadline_days": -1,
		"skip_unchanged":      true,

		"max_test_percentage": 0.10,
		"max_hops":            2,

		"status_path":     ".specrunner/status.json",
		"graph_path":      ".specrunner/graph.json",
		"measurement_dir": ".specrunner/measurements",
		"log_dir":         ".specrunner/logs",
	}
}
