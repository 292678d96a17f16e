package dag

import "fmt"

// CycleError reports a dependency cycle found while building the graph,
// grounded on validator.go's CycleError/buildCyclePath shape.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %v", e.Path)
}

// UnknownDepError reports a depends_on label with no matching node.
type UnknownDepError struct {
	Label string
	Dep   string
}

func (e *UnknownDepError) Error() string {
	return fmt.Sprintf("test %q depends on unknown label %q", e.Label, e.Dep)
}
