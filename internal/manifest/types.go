// Package manifest parses the JSON manifest described in spec.md §6.1 into
// the in-memory test-set tree and test-node index, and builds the
// dag.Graph consumed by the executor. Struct shape is grounded on the
// internal/dag/types.go's recursive layer/feature tree (adapted
// from YAML layers-of-features to JSON test-sets-of-tests).
package manifest

// TestNode is one test_set_tests entry (spec.md §3 "Test node").
type TestNode struct {
	Assertion           string            `json:"assertion"`
	Executable          string            `json:"executable"`
	DependsOn           []string          `json:"depends_on,omitempty"`
	RequirementID       string            `json:"requirement_id,omitempty"`
	JudgementExecutable string            `json:"judgement_executable,omitempty"`
	Disabled            bool              `json:"disabled,omitempty"`
	Parameters          map[string]string `json:"parameters,omitempty"`
	Args                []string          `json:"args,omitempty"`
	TimeoutSeconds      int               `json:"timeout_seconds,omitempty"`
}

// TestSet is a named group of tests plus child sets (spec.md §3 "Test set").
// Subsets are embedded literally per the wire format in §6.1; Name gives
// every node in the tree an addressable identity for the arena-style name
// index built during Load (spec.md §9 "Cyclic references" design note).
type TestSet struct {
	Name          string     `json:"name"`
	Assertion     string     `json:"assertion,omitempty"`
	RequirementID string     `json:"requirement_id,omitempty"`
	Tests         []string   `json:"tests,omitempty"`
	Subsets       []*TestSet `json:"subsets,omitempty"`
}

// Manifest is the top-level parsed document (spec.md §6.1).
type Manifest struct {
	TestSet      TestSet             `json:"test_set"`
	TestSetTests map[string]TestNode `json:"test_set_tests"`
}
