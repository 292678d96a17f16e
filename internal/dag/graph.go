package dag

import "sort"

// Build constructs a Graph from nodes, rejecting dangling dependencies and
// cycles (spec.md §4.1). Cycle detection uses the same DFS
// visited/recStack approach, walking nodes in lexicographic order so the
// reported cycle path is deterministic.
func Build(nodes []Node) (*Graph, error) {
	byLabel := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byLabel[n.Label] = n
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := byLabel[dep]; !ok {
				return nil, &UnknownDepError{Label: n.Label, Dep: dep}
			}
		}
	}

	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			dependents[dep] = append(dependents[dep], n.Label)
		}
	}
	for k := range dependents {
		sort.Strings(dependents[k])
	}

	g := &Graph{nodes: byLabel, dependents: dependents}

	if cycle := detectCycle(g); cycle != nil {
		return nil, &CycleError{Path: cycle}
	}

	return g, nil
}

// detectCycle runs DFS from every label in lexicographic order, recording
// the recursion stack (recStack) to reconstruct the cycle path on detection.
func detectCycle(g *Graph) []string {
	visited := make(map[string]bool, len(g.nodes))
	recStack := make(map[string]bool, len(g.nodes))
	var path []string

	var visit func(label string) []string
	visit = func(label string) []string {
		visited[label] = true
		recStack[label] = true
		path = append(path, label)

		deps := append([]string(nil), g.nodes[label].DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			if recStack[dep] {
				return buildCyclePath(path, dep)
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		path = path[:len(path)-1]
		recStack[label] = false
		return nil
	}

	for _, label := range g.Labels() {
		if !visited[label] {
			if cycle := visit(label); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// buildCyclePath trims path to start at the repeated label and appends it
// again to close the loop for display.
func buildCyclePath(path []string, repeat string) []string {
	for i, l := range path {
		if l == repeat {
			cycle := append([]string(nil), path[i:]...)
			return append(cycle, repeat)
		}
	}
	return append(append([]string(nil), path...), repeat)
}

// Topological returns labels leaves-first (no dependencies before their
// dependents), breaking ties lexicographically within a layer so parallel
// result attribution is reproducible (spec.md §4.1).
func (g *Graph) Topological() []string {
	inDegree := make(map[string]int, len(g.nodes))
	for label, n := range g.nodes {
		inDegree[label] = len(n.DependsOn)
	}

	var order []string
	remaining := len(g.nodes)
	for remaining > 0 {
		var ready []string
		for _, label := range g.Labels() {
			if inDegree[label] == 0 {
				ready = append(ready, label)
			}
		}
		sort.Strings(ready)
		for _, label := range ready {
			order = append(order, label)
			inDegree[label] = -1 // consumed
			remaining--
			for _, dependent := range g.dependents[label] {
				if inDegree[dependent] > 0 {
					inDegree[dependent]--
				}
			}
		}
	}
	return order
}

// BFSFromRoots returns labels roots-first (no dependents before their
// prerequisites are reachable), used by detection mode (spec.md §4.4).
func (g *Graph) BFSFromRoots() []string {
	var roots []string
	for _, label := range g.Labels() {
		if len(g.dependents[label]) == 0 {
			roots = append(roots, label)
		}
	}
	sort.Strings(roots)

	visited := make(map[string]bool, len(g.nodes))
	var order []string
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		label := queue[0]
		queue = queue[1:]
		if visited[label] {
			continue
		}
		visited[label] = true
		order = append(order, label)

		next := append([]string(nil), g.DependsOn(label)...)
		sort.Strings(next)
		for _, dep := range next {
			if !visited[dep] {
				queue = append(queue, dep)
			}
		}
	}
	// Any label unreachable from a root (shouldn't happen on a graph that
	// passed Build's cycle check) is appended for completeness.
	for _, label := range g.Labels() {
		if !visited[label] {
			order = append(order, label)
		}
	}
	return order
}

// Closure returns subset plus every transitive dependency, so the result is
// self-contained (spec.md §4.1, used after regression selection).
func (g *Graph) Closure(subset []string) []string {
	seen := make(map[string]bool, len(subset))
	var walk func(label string)
	walk = func(label string) {
		if seen[label] {
			return
		}
		seen[label] = true
		for _, dep := range g.DependsOn(label) {
			walk(dep)
		}
	}
	for _, label := range subset {
		walk(label)
	}

	out := make([]string, 0, len(seen))
	for label := range seen {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// Descendants returns every label that transitively depends on label
// (direct and indirect dependents), used to mark dependents
// dependencies_failed (spec.md §4.1).
func (g *Graph) Descendants(label string) []string {
	seen := make(map[string]bool)
	var walk func(l string)
	walk = func(l string) {
		for _, dependent := range g.dependents[l] {
			if !seen[dependent] {
				seen[dependent] = true
				walk(dependent)
			}
		}
	}
	walk(label)

	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
